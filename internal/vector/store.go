package vector

import (
	"context"
	"fmt"
	"sort"

	"github.com/lumos-db/lumosdb/internal/columnengine"
	"github.com/lumos-db/lumosdb/internal/errs"
	"github.com/lumos-db/lumosdb/internal/logging"
)

var log = logging.GetLogger("vector")

// EmbeddingRecord is one persisted row of a collection (§4.8 "Persistent
// layout").
type EmbeddingRecord struct {
	ID       string
	Vector   []float32
	Metadata string // JSON text; "null" when absent, per §4.8
}

// ScoredEmbedding is a FindSimilar result.
type ScoredEmbedding struct {
	EmbeddingRecord
	Score float64
}

// CollectionStore is the Vector Collection Store (C10): a dimension-typed,
// persistent embedding store backed by one internal/columnengine table per
// collection.
type CollectionStore struct {
	column    *columnengine.Engine
	name      string
	dimension int
	metric    Metric
}

// NewCollectionStore constructs a store bound to one column-engine table.
func NewCollectionStore(column *columnengine.Engine, name string, dimension int, metric Metric) *CollectionStore {
	return &CollectionStore{column: column, name: name, dimension: dimension, metric: metric}
}

// Name returns the collection's name.
func (s *CollectionStore) Name() string { return s.name }

// Dimension returns the collection's configured vector width.
func (s *CollectionStore) Dimension() int { return s.dimension }

// Metric returns the collection's configured similarity metric.
func (s *CollectionStore) Metric() Metric { return s.metric }

func (s *CollectionStore) tableName() string { return "vec_" + s.name }

// Init creates the collection's backing table if absent (§4.8 "init()").
func (s *CollectionStore) Init(ctx context.Context) error {
	table := columnengine.QuoteIdent(s.tableName())
	createSQL := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id VARCHAR PRIMARY KEY, vector_blob BLOB, metadata VARCHAR)",
		table,
	)
	if _, err := s.column.Exec(ctx, createSQL); err != nil {
		return err
	}
	log.Info("vector collection initialized", "collection", s.name, "dimension", s.dimension, "metric", s.metric)
	return nil
}

func (s *CollectionStore) validateDimension(v []float32) error {
	if len(v) != s.dimension {
		return &errs.DimensionMismatch{Want: s.dimension, Got: len(v)}
	}
	return nil
}

// Insert validates the embedding's dimension and upserts it by id (§4.8
// "insert(embedding)").
func (s *CollectionStore) Insert(ctx context.Context, id string, vec []float32, metadata string) error {
	if err := s.validateDimension(vec); err != nil {
		return err
	}
	if metadata == "" {
		metadata = "null"
	}
	table := columnengine.QuoteIdent(s.tableName())
	upsertSQL := fmt.Sprintf(
		"INSERT INTO %s (id, vector_blob, metadata) VALUES (?, ?, ?) "+
			"ON CONFLICT (id) DO UPDATE SET vector_blob = EXCLUDED.vector_blob, metadata = EXCLUDED.metadata",
		table,
	)
	_, err := s.column.Exec(ctx, upsertSQL, id, encodeVector(vec), metadata)
	return err
}

// InsertBatch applies per-row validation and upsert; each row is
// independently durable, with no implicit shared transaction across rows
// (§4.8 "insert_batch(list)").
func (s *CollectionStore) InsertBatch(ctx context.Context, records []EmbeddingRecord) error {
	var errList []error
	for _, r := range records {
		if err := s.Insert(ctx, r.ID, r.Vector, r.Metadata); err != nil {
			errList = append(errList, fmt.Errorf("id %q: %w", r.ID, err))
		}
	}
	if len(errList) > 0 {
		return fmt.Errorf("insert_batch: %d of %d rows failed: %v", len(errList), len(records), errList[0])
	}
	return nil
}

// Get deserializes the stored vector and metadata, returning (nil, nil) if
// the id is missing or its blob fails to decode (§4.8 "get(id)").
func (s *CollectionStore) Get(ctx context.Context, id string) (*EmbeddingRecord, error) {
	table := columnengine.QuoteIdent(s.tableName())
	row := s.column.QueryRow(ctx, fmt.Sprintf("SELECT vector_blob, metadata FROM %s WHERE id = ?", table), id)

	var blob []byte
	var metadata string
	if err := row.Scan(&blob, &metadata); err != nil {
		return nil, nil //nolint:nilerr // missing row is a nil result, not an error (§4.8)
	}

	vec, err := decodeVector(blob)
	if err != nil {
		log.Warn("vector blob failed to decode", "collection", s.name, "id", id, "error", err)
		return nil, nil
	}
	return &EmbeddingRecord{ID: id, Vector: vec, Metadata: metadata}, nil
}

// Delete removes the row for id, reporting whether one was removed (§4.8
// "delete(id)").
func (s *CollectionStore) Delete(ctx context.Context, id string) (bool, error) {
	table := columnengine.QuoteIdent(s.tableName())
	res, err := s.column.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindSimilar scans all rows, decodes each, scores by the collection's
// metric, and returns the top-k by descending similarity with stable
// ordering within ties (§4.8 "find_similar(query, k)").
func (s *CollectionStore) FindSimilar(ctx context.Context, query []float32, k int) ([]ScoredEmbedding, error) {
	if err := s.validateDimension(query); err != nil {
		return nil, err
	}

	all, err := s.ExportEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredEmbedding, len(all))
	for i, r := range all {
		scored[i] = ScoredEmbedding{EmbeddingRecord: r, Score: Similarity(s.metric, query, r.Vector)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// Count returns the total number of embeddings in the collection (§4.8
// "count()").
func (s *CollectionStore) Count(ctx context.Context) (int64, error) {
	table := columnengine.QuoteIdent(s.tableName())
	var n int64
	err := s.column.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n)
	return n, err
}

// ExportEmbeddings yields all rows, approximating insertion order via the
// column engine's physical scan order (§4.8 "export_embeddings()"); no
// stronger ordering guarantee is offered since the on-disk schema carries
// no explicit sequence column.
func (s *CollectionStore) ExportEmbeddings(ctx context.Context) ([]EmbeddingRecord, error) {
	table := columnengine.QuoteIdent(s.tableName())
	rows, err := s.column.Query(ctx, fmt.Sprintf("SELECT id, vector_blob, metadata FROM %s", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EmbeddingRecord
	for rows.Next() {
		var id, metadata string
		var blob []byte
		if err := rows.Scan(&id, &blob, &metadata); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			log.Warn("vector blob failed to decode during export", "collection", s.name, "id", id, "error", err)
			continue
		}
		out = append(out, EmbeddingRecord{ID: id, Vector: vec, Metadata: metadata})
	}
	return out, rows.Err()
}

// ImportEmbeddings restores a set of rows previously produced by
// ExportEmbeddings, for backup/restore round-trips.
func (s *CollectionStore) ImportEmbeddings(ctx context.Context, records []EmbeddingRecord) error {
	return s.InsertBatch(ctx, records)
}
