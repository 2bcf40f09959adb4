package vector

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/lumos-db/lumosdb/internal/errs"
)

// Index is the shared contract over both ANN index variants (§4.9
// "Contract for both"). An index is a derived, non-authoritative snapshot
// of a CollectionStore: if the store changes, the index is stale until
// rebuilt (spec.md §4 "Ownership").
type Index interface {
	Add(id string, vec []float32, metadata string) error
	Remove(id string) (bool, error)
	Search(query []float32, k int) ([]ScoredEmbedding, error)
	Size() int
	Dimension() int
	Metric() Metric
}

// FlatIndex holds id→normalized-vector and id→metadata maps and scores
// every member on every search (§4.9 "Flat").
type FlatIndex struct {
	mu        sync.RWMutex
	dimension int
	metric    Metric
	vectors   map[string][]float32
	metadata  map[string]string
}

// NewFlatIndex constructs an empty flat index for the given dimension and
// metric.
func NewFlatIndex(dimension int, metric Metric) *FlatIndex {
	return &FlatIndex{
		dimension: dimension,
		metric:    metric,
		vectors:   make(map[string][]float32),
		metadata:  make(map[string]string),
	}
}

func (f *FlatIndex) Dimension() int { return f.dimension }
func (f *FlatIndex) Metric() Metric { return f.metric }

func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Add dimension-checks, L2-normalizes, and inserts vec under id (§4.9
// "add(id, vector, metadata)").
func (f *FlatIndex) Add(id string, vec []float32, metadata string) error {
	if len(vec) != f.dimension {
		return &errs.DimensionMismatch{Want: f.dimension, Got: len(vec)}
	}
	normalized := normalizeVector(vec)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[id] = normalized
	f.metadata[id] = metadata
	return nil
}

// Remove reports whether id was present.
func (f *FlatIndex) Remove(id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.vectors[id]; !ok {
		return false, nil
	}
	delete(f.vectors, id)
	delete(f.metadata, id)
	return true, nil
}

// Search L2-normalizes q, scores every stored vector, and returns the
// top-k (§4.9 "search(q, k)").
func (f *FlatIndex) Search(query []float32, k int) ([]ScoredEmbedding, error) {
	if len(query) != f.dimension {
		return nil, &errs.DimensionMismatch{Want: f.dimension, Got: len(query)}
	}
	q := normalizeVector(query)

	f.mu.RLock()
	defer f.mu.RUnlock()

	scored := make([]ScoredEmbedding, 0, len(f.vectors))
	for id, v := range f.vectors {
		scored = append(scored, ScoredEmbedding{
			EmbeddingRecord: EmbeddingRecord{ID: id, Vector: v, Metadata: f.metadata[id]},
			Score:           Similarity(f.metric, q, v),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// PartitionedIndex is the IVF-like index of §4.9: P centroids, each owning
// a bucket of members, searched by scoring centroids first and probing
// buckets in descending centroid score (top-probe).
type PartitionedIndex struct {
	mu         sync.RWMutex
	dimension  int
	metric     Metric
	partitions int
	rnd        *rand.Rand

	centroids [][]float32
	buckets   []map[string][]float32
	metadata  map[string]string
	owner     map[string]int // id -> partition index
}

// NewPartitionedIndex constructs an empty partitioned index with up to
// `partitions` centroids, lazily initialized on first Add (§4.9 "State").
func NewPartitionedIndex(dimension, partitions int, metric Metric) *PartitionedIndex {
	return &PartitionedIndex{
		dimension:  dimension,
		metric:     metric,
		partitions: partitions,
		rnd:        rand.New(rand.NewSource(1)),
		metadata:   make(map[string]string),
		owner:      make(map[string]int),
	}
}

func (p *PartitionedIndex) Dimension() int { return p.dimension }
func (p *PartitionedIndex) Metric() Metric { return p.metric }

func (p *PartitionedIndex) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.owner)
}

// Add validates dimension, lazily initializes centroids from the
// singleton sample, normalizes, assigns to the nearest partition, and
// inserts into that bucket (§4.9 "Add").
func (p *PartitionedIndex) Add(id string, vec []float32, metadata string) error {
	if len(vec) != p.dimension {
		return &errs.DimensionMismatch{Want: p.dimension, Got: len(vec)}
	}
	normalized := normalizeVector(vec)

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.centroids) == 0 {
		p.centroids = [][]float32{cloneVector(normalized)}
		p.buckets = []map[string][]float32{make(map[string][]float32)}
	}

	part, err := p.assignLocked(normalized)
	if err != nil {
		return err
	}
	p.buckets[part][id] = normalized
	p.metadata[id] = metadata
	p.owner[id] = part
	return nil
}

// assignLocked returns argmin metric-distance to centroid (§4.9 "Assign").
// Caller must hold p.mu.
func (p *PartitionedIndex) assignLocked(v []float32) (int, error) {
	best := -1
	bestDist := 0.0
	for i, c := range p.centroids {
		d := distance(p.metric, v, c)
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 || best >= len(p.centroids) {
		return 0, errs.ErrInvalidPartition
	}
	return best, nil
}

// Remove reports whether id was present, scanning only its owning bucket.
func (p *PartitionedIndex) Remove(id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	part, ok := p.owner[id]
	if !ok {
		return false, nil
	}
	if part < 0 || part >= len(p.buckets) {
		return false, errs.ErrInvalidPartition
	}
	delete(p.buckets[part], id)
	delete(p.metadata, id)
	delete(p.owner, id)
	return true, nil
}

// Search normalizes q, scores centroids by similarity, then visits
// partitions in descending centroid score, accumulating candidates from
// each partition's members until at least max(k, 2k) candidates have been
// seen and at least one partition has been fully consumed (§4.9
// "Search(q,k)").
func (p *PartitionedIndex) Search(query []float32, k int) ([]ScoredEmbedding, error) {
	if len(query) != p.dimension {
		return nil, &errs.DimensionMismatch{Want: p.dimension, Got: len(query)}
	}
	q := normalizeVector(query)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.centroids) == 0 {
		return nil, nil
	}

	type scoredCentroid struct {
		idx   int
		score float64
	}
	ordered := make([]scoredCentroid, len(p.centroids))
	for i, c := range p.centroids {
		ordered[i] = scoredCentroid{idx: i, score: Similarity(p.metric, q, c)}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].score > ordered[j].score })

	threshold := k
	if 2*k > threshold {
		threshold = 2 * k
	}

	var candidates []ScoredEmbedding
	partitionsConsumed := 0
	for _, sc := range ordered {
		for id, v := range p.buckets[sc.idx] {
			candidates = append(candidates, ScoredEmbedding{
				EmbeddingRecord: EmbeddingRecord{ID: id, Vector: v, Metadata: p.metadata[id]},
				Score:           Similarity(p.metric, q, v),
			})
		}
		partitionsConsumed++
		if len(candidates) >= threshold && partitionsConsumed >= 1 {
			break
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if k < len(candidates) {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// RecomputeCentroids is optional maintenance: each centroid becomes the
// mean of its bucket's current members; empty buckets keep their previous
// centroid (§4.9 "Recompute centroids").
func (p *PartitionedIndex) RecomputeCentroids() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, bucket := range p.buckets {
		if len(bucket) == 0 {
			continue
		}
		mean := make([]float32, p.dimension)
		for _, v := range bucket {
			for d := 0; d < p.dimension && d < len(v); d++ {
				mean[d] += v[d]
			}
		}
		n := float32(len(bucket))
		for d := range mean {
			mean[d] /= n
		}
		p.centroids[i] = mean
	}
}

// InitCentroids runs k-means++ centroid initialization over samples,
// replacing any existing centroids and reassigning all current members
// (§4.9 "Centroid init"). It is exposed for explicit (re)build calls; Add
// alone only ever lazily creates a single centroid.
func (p *PartitionedIndex) InitCentroids(samples [][]float32) error {
	if len(samples) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Collect previously-added members (from the old bucket layout) before
	// replacing it, so they can be reassigned under the fresh centroids.
	previousMembers := make(map[string][]float32, len(p.owner))
	for _, bucket := range p.buckets {
		for id, v := range bucket {
			previousMembers[id] = v
		}
	}

	p.centroids = kMeansPlusPlus(samples, p.partitions, p.rnd)
	p.buckets = make([]map[string][]float32, len(p.centroids))
	for i := range p.buckets {
		p.buckets[i] = make(map[string][]float32)
	}

	p.owner = make(map[string]int, len(previousMembers))
	for id, v := range previousMembers {
		part, err := p.assignLocked(v)
		if err != nil {
			return err
		}
		p.buckets[part][id] = v
		p.owner[id] = part
	}
	return nil
}

// kMeansPlusPlus implements §4.9's "Centroid init": the first centroid is
// picked uniformly at random; each subsequent centroid is sampled with
// probability proportional to its squared distance to the nearest chosen
// centroid, until P are chosen or samples are exhausted. If fewer distinct
// points than P are available, the first centroid is perturbed by small
// noise to pad out the remainder.
func kMeansPlusPlus(samples [][]float32, p int, rnd *rand.Rand) [][]float32 {
	if p <= 0 {
		p = 1
	}
	first := cloneVector(samples[rnd.Intn(len(samples))])
	centroids := [][]float32{first}

	for len(centroids) < p && len(centroids) < len(samples) {
		distances := make([]float64, len(samples))
		var total float64
		for i, s := range samples {
			minD := math.MaxFloat64
			for _, c := range centroids {
				d := l2Distance(s, c)
				d2 := d * d
				if d2 < minD {
					minD = d2
				}
			}
			distances[i] = minD
			total += minD
		}
		if total == 0 {
			break
		}
		target := rnd.Float64() * total
		var cum float64
		chosen := samples[len(samples)-1]
		for i, d := range distances {
			cum += d
			if cum >= target {
				chosen = samples[i]
				break
			}
		}
		centroids = append(centroids, cloneVector(chosen))
	}

	for len(centroids) < p {
		centroids = append(centroids, perturb(first, rnd))
	}
	return centroids
}

func perturb(v []float32, rnd *rand.Rand) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x + float32(rnd.Float64()*1e-6)
	}
	return out
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
