package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/storage"
)

// VectorRepository implements storage.VectorRepository for BadgerDB.
type VectorRepository struct {
	backend *Backend
}

var _ storage.VectorRepository = (*VectorRepository)(nil)

// NewVectorRepository creates a new VectorRepository.
func NewVectorRepository(backend *Backend) *VectorRepository {
	return &VectorRepository{
		backend: backend,
	}
}

// Close releases resources. VectorRepository has no resources to release.
func (r *VectorRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *VectorRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// FindSimilar delegates to the backend.
func (r *VectorRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.VectorMatch, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// PutVectors stores embedding vectors keyed by passage ID.
func (r *VectorRepository) PutVectors(ctx context.Context, records ...*storage.VectorRecord) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			key := makeVectorKey(record.PassageId)
			value := storage.MarshalVectorRecord(record)
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetVector retrieves the embedding vector for a passage ID.
func (r *VectorRepository) GetVector(ctx context.Context, passageID string) ([]float32, error) {
	var vector []float32
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeVectorKey(passageID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		return item.Value(func(val []byte) error {
			record, err := storage.UnmarshalVectorRecord(val)
			if err != nil {
				return err
			}
			vector = record.Vector
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// DeleteVectors removes stored vectors by passage ID.
func (r *VectorRepository) DeleteVectors(ctx context.Context, passageIDs ...string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, passageID := range passageIDs {
			key := makeVectorKey(passageID)

			if _, err := tx.Get(key); err != nil {
				if err == badger.ErrKeyNotFound {
					return storage.ErrNotFound
				}
				return err
			}

			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ForEachVector iterates over all stored vectors in key order.
func (r *VectorRepository) ForEachVector(ctx context.Context, fn func(record *storage.VectorRecord) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeRecordPrefix(vectorRecordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()

			var record *storage.VectorRecord
			err := item.Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalVectorRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if record == nil {
				continue
			}

			if err := fn(record); err != nil {
				return err
			}
		}
		return nil
	}, false)
}
