package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/passage/storage"
)

func TestVectorBasics(t *testing.T) {
	// Create in-memory repositories
	passageRepo, vectorRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { vectorRepo.Close(); passageRepo.Close(); backend.Close() }()

	ctx := context.Background()

	// Test storing a vector
	record := &storage.VectorRecord{
		PassageId: "p1",
		Vector:    []float32{0.1, 0.2, 0.3},
	}
	err = vectorRepo.PutVectors(ctx, record)
	if err != nil {
		t.Fatalf("Failed to put vector: %v", err)
	}

	// Test retrieving the vector
	vector, err := vectorRepo.GetVector(ctx, "p1")
	if err != nil {
		t.Fatalf("Failed to get vector: %v", err)
	}

	if len(vector) != 3 {
		t.Fatalf("Expected 3 components, got %d", len(vector))
	}
	if vector[0] != 0.1 || vector[1] != 0.2 || vector[2] != 0.3 {
		t.Fatalf("Unexpected vector contents: %v", vector)
	}
}

func TestPutVectors_Overwrite(t *testing.T) {
	passageRepo, vectorRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { vectorRepo.Close(); passageRepo.Close(); backend.Close() }()

	ctx := context.Background()

	err = vectorRepo.PutVectors(ctx, &storage.VectorRecord{PassageId: "p1", Vector: []float32{1.0}})
	if err != nil {
		t.Fatalf("Failed to put vector: %v", err)
	}

	err = vectorRepo.PutVectors(ctx, &storage.VectorRecord{PassageId: "p1", Vector: []float32{2.0, 3.0}})
	if err != nil {
		t.Fatalf("Failed to overwrite vector: %v", err)
	}

	vector, err := vectorRepo.GetVector(ctx, "p1")
	if err != nil {
		t.Fatalf("Failed to get vector: %v", err)
	}
	if len(vector) != 2 || vector[0] != 2.0 {
		t.Fatalf("Expected overwritten vector, got %v", vector)
	}
}

func TestGetVector_NotFound(t *testing.T) {
	passageRepo, vectorRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { vectorRepo.Close(); passageRepo.Close(); backend.Close() }()

	ctx := context.Background()

	_, err = vectorRepo.GetVector(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteVectors(t *testing.T) {
	passageRepo, vectorRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { vectorRepo.Close(); passageRepo.Close(); backend.Close() }()

	ctx := context.Background()

	records := []*storage.VectorRecord{
		{PassageId: "p1", Vector: []float32{0.1}},
		{PassageId: "p2", Vector: []float32{0.2}},
	}
	err = vectorRepo.PutVectors(ctx, records...)
	if err != nil {
		t.Fatalf("Failed to put vectors: %v", err)
	}

	// Delete first vector
	err = vectorRepo.DeleteVectors(ctx, "p1")
	if err != nil {
		t.Fatalf("Failed to delete vector: %v", err)
	}

	// Verify it's deleted
	_, err = vectorRepo.GetVector(ctx, "p1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	// Verify second vector still exists
	vector, err := vectorRepo.GetVector(ctx, "p2")
	if err != nil {
		t.Fatalf("Failed to get remaining vector: %v", err)
	}
	if len(vector) != 1 {
		t.Fatalf("Expected 1 component, got %d", len(vector))
	}

	// Deleting a missing vector reports ErrNotFound
	err = vectorRepo.DeleteVectors(ctx, "p1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestForEachVector(t *testing.T) {
	passageRepo, vectorRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { vectorRepo.Close(); passageRepo.Close(); backend.Close() }()

	ctx := context.Background()

	records := []*storage.VectorRecord{
		{PassageId: "p1", Vector: []float32{0.1}},
		{PassageId: "p2", Vector: []float32{0.2}},
		{PassageId: "p3", Vector: []float32{0.3}},
	}
	err = vectorRepo.PutVectors(ctx, records...)
	if err != nil {
		t.Fatalf("Failed to put vectors: %v", err)
	}

	seen := make(map[string]int)
	err = vectorRepo.ForEachVector(ctx, func(record *storage.VectorRecord) error {
		seen[record.PassageId] = len(record.Vector)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to iterate vectors: %v", err)
	}

	if len(seen) != 3 {
		t.Fatalf("Expected 3 vectors, got %d", len(seen))
	}
	if seen["p2"] != 1 {
		t.Fatalf("Expected p2 vector with 1 component, got %d", seen["p2"])
	}

	// Iteration stops on the first error from fn
	stop := errors.New("stop")
	count := 0
	err = vectorRepo.ForEachVector(ctx, func(record *storage.VectorRecord) error {
		count++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("Expected stop error, got %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected iteration to stop after 1 vector, got %d", count)
	}
}

func TestVectorRepository_FindSimilar(t *testing.T) {
	passageRepo, vectorRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { vectorRepo.Close(); passageRepo.Close(); backend.Close() }()

	ctx := context.Background()

	records := []*storage.VectorRecord{
		{PassageId: "close", Vector: []float32{1.0, 0.0, 0.0}},
		{PassageId: "near", Vector: []float32{0.9, 0.1, 0.0}},
	}
	err = vectorRepo.PutVectors(ctx, records...)
	if err != nil {
		t.Fatalf("Failed to put vectors: %v", err)
	}

	queryVector := []float32{1.0, 0.0, 0.0}
	results, err := vectorRepo.FindSimilar(ctx, queryVector, 0.8, 10)
	if err != nil {
		t.Fatalf("Failed to find similar: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	// Results should be sorted by score descending
	for i := 0; i < len(results)-1; i++ {
		if results[i].Score < results[i+1].Score {
			t.Fatal("Results should be sorted by score descending")
		}
	}
	if results[0].PassageId != "close" {
		t.Fatalf("Expected 'close' first, got %s", results[0].PassageId)
	}
}
