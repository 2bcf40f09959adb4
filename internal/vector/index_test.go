package vector

import (
	"errors"
	"testing"

	"github.com/lumos-db/lumosdb/internal/errs"
)

func TestFlatIndexSearchOrdersByScore(t *testing.T) {
	idx := NewFlatIndex(3, MetricCosine)
	idx.Add("v1", []float32{1, 0, 0}, "")
	idx.Add("v2", []float32{0, 1, 0}, "")
	idx.Add("v3", []float32{0, 0, 1}, "")
	idx.Add("v4", []float32{0.7, 0.7, 0}, "")

	results, err := idx.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "v1" {
		t.Errorf("expected v1 first, got %s", results[0].ID)
	}
	if results[0].Score < 0.999 {
		t.Errorf("expected v1 score ~1.0, got %f", results[0].Score)
	}
	if results[1].ID != "v4" {
		t.Errorf("expected v4 second, got %s", results[1].ID)
	}
}

func TestFlatIndexDimensionMismatch(t *testing.T) {
	idx := NewFlatIndex(3, MetricCosine)
	err := idx.Add("v1", []float32{1, 0}, "")
	var dm *errs.DimensionMismatch
	if !errors.As(err, &dm) {
		t.Fatalf("expected DimensionMismatch, got %v", err)
	}
}

func TestFlatIndexRemove(t *testing.T) {
	idx := NewFlatIndex(2, MetricCosine)
	idx.Add("v1", []float32{1, 0}, "")

	removed, err := idx.Remove("v1")
	if err != nil || !removed {
		t.Fatalf("expected removal of v1, got removed=%v err=%v", removed, err)
	}
	if idx.Size() != 0 {
		t.Errorf("expected size 0 after removal, got %d", idx.Size())
	}

	removedAgain, _ := idx.Remove("v1")
	if removedAgain {
		t.Error("expected second removal to report false")
	}
}

func TestPartitionedIndexAddAndSearch(t *testing.T) {
	idx := NewPartitionedIndex(3, 2, MetricCosine)
	idx.Add("v1", []float32{1, 0, 0}, "")
	idx.Add("v2", []float32{0, 1, 0}, "")
	idx.Add("v3", []float32{0, 0, 1}, "")
	idx.Add("v4", []float32{0.9, 0.1, 0}, "")

	if idx.Size() != 4 {
		t.Fatalf("expected size 4, got %d", idx.Size())
	}

	results, err := idx.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].ID != "v1" && results[0].ID != "v4" {
		t.Errorf("expected v1 or v4 as the closest match to [1,0,0], got %s", results[0].ID)
	}
}

func TestPartitionedIndexRemoveUnknown(t *testing.T) {
	idx := NewPartitionedIndex(2, 2, MetricCosine)
	idx.Add("v1", []float32{1, 0}, "")

	removed, err := idx.Remove("unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed {
		t.Error("expected Remove to report false for unknown id")
	}
}

func TestPartitionedIndexInitCentroidsAndRecompute(t *testing.T) {
	idx := NewPartitionedIndex(2, 2, MetricEuclidean)
	samples := [][]float32{{0, 0}, {0, 1}, {10, 10}, {10, 11}}
	if err := idx.InitCentroids(samples); err != nil {
		t.Fatalf("InitCentroids failed: %v", err)
	}
	if len(idx.centroids) != 2 {
		t.Fatalf("expected 2 centroids, got %d", len(idx.centroids))
	}

	idx.Add("a", []float32{0, 0}, "")
	idx.Add("b", []float32{10, 10}, "")
	idx.RecomputeCentroids()

	if len(idx.centroids) != 2 {
		t.Errorf("expected centroid count to remain 2 after recompute, got %d", len(idx.centroids))
	}
}

func TestPartitionedIndexDimensionMismatchOnSearch(t *testing.T) {
	idx := NewPartitionedIndex(3, 2, MetricCosine)
	idx.Add("v1", []float32{1, 0, 0}, "")

	_, err := idx.Search([]float32{1, 0}, 1)
	var dm *errs.DimensionMismatch
	if !errors.As(err, &dm) {
		t.Fatalf("expected DimensionMismatch, got %v", err)
	}
}
