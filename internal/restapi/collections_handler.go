package restapi

import (
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/lumos-db/lumosdb/internal/vector"
)

type createCollectionRequest struct {
	Name      string `json:"name" binding:"required"`
	Dimension int    `json:"dimension" binding:"required"`
	Metric    string `json:"metric"`
}

type collectionInfo struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
}

// listCollections is GET /collections.
func (s *Server) listCollections(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]collectionInfo, 0, len(s.collections))
	for name, store := range s.collections {
		out = append(out, collectionInfo{Name: name, Dimension: store.Dimension(), Metric: store.Metric().String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	successResponse(c, out)
}

// createCollection is POST /collections: it constructs and Init()s a new
// vector.CollectionStore, matching the in-process Vector API 1:1.
func (s *Server) createCollection(c *gin.Context) {
	var req createCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestError(c, err.Error())
		return
	}

	metric, ok := parseMetric(req.Metric, s.cfg.Vector.DefaultMetric)
	if !ok {
		badRequestError(c, "unknown metric: "+req.Metric)
		return
	}

	s.mu.Lock()
	if _, exists := s.collections[req.Name]; exists {
		s.mu.Unlock()
		badRequestError(c, "collection already exists: "+req.Name)
		return
	}
	store := vector.NewCollectionStore(s.column, req.Name, req.Dimension, metric)
	s.collections[req.Name] = store
	s.mu.Unlock()

	if err := store.Init(c.Request.Context()); err != nil {
		s.mu.Lock()
		delete(s.collections, req.Name)
		s.mu.Unlock()
		internalError(c, err.Error())
		return
	}

	createdResponse(c, collectionInfo{Name: req.Name, Dimension: req.Dimension, Metric: metric.String()})
}

// deleteCollection is DELETE /collections/:name.
func (s *Server) deleteCollection(c *gin.Context) {
	name := c.Param("name")

	s.mu.Lock()
	_, exists := s.collections[name]
	delete(s.collections, name)
	s.mu.Unlock()

	if !exists {
		notFoundError(c, "collection not found: "+name)
		return
	}
	successResponse(c, gin.H{"name": name, "deleted": true})
}

type searchRequest struct {
	Vector []float32 `json:"vector" binding:"required"`
	K      int       `json:"k"`
}

type searchHit struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score"`
	Metadata string  `json:"metadata,omitempty"`
}

// searchCollection is POST /collections/:name/search.
func (s *Server) searchCollection(c *gin.Context) {
	name := c.Param("name")

	s.mu.RLock()
	store, exists := s.collections[name]
	s.mu.RUnlock()
	if !exists {
		notFoundError(c, "collection not found: "+name)
		return
	}

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestError(c, err.Error())
		return
	}
	k := req.K
	if k <= 0 {
		k = 10
	}

	results, err := store.FindSimilar(c.Request.Context(), req.Vector, k)
	if err != nil {
		badRequestError(c, err.Error())
		return
	}

	hits := make([]searchHit, len(results))
	for i, r := range results {
		hits[i] = searchHit{ID: r.ID, Score: r.Score, Metadata: r.Metadata}
	}
	successResponse(c, hits)
}

func parseMetric(name, fallback string) (vector.Metric, bool) {
	if name == "" {
		name = fallback
	}
	switch name {
	case "cosine":
		return vector.MetricCosine, true
	case "euclidean":
		return vector.MetricEuclidean, true
	case "dot_product", "dot":
		return vector.MetricDotProduct, true
	case "manhattan":
		return vector.MetricManhattan, true
	case "hamming":
		return vector.MetricHamming, true
	default:
		return 0, false
	}
}
