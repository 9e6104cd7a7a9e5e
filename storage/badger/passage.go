package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/storage"
)

// PassageRepository implements storage.PassageRepository for BadgerDB.
type PassageRepository struct {
	backend *Backend
}

var _ storage.PassageRepository = (*PassageRepository)(nil)

// NewPassageRepository creates a new PassageRepository.
func NewPassageRepository(backend *Backend) *PassageRepository {
	return &PassageRepository{
		backend: backend,
	}
}

// Close releases resources. PassageRepository has no resources to release.
func (r *PassageRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *PassageRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddPassages adds one or more passages to storage.
func (r *PassageRepository) AddPassages(ctx context.Context, passages ...*core.Passage) ([]*core.Passage, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, passage := range passages {
			// Use content-based ID if not set
			if passage.Id == "" {
				passage.Id = core.IDFromContent(passage.Content)
			}

			// Reject metadata the record format cannot hold
			if err := core.ValidateMetadata(passage.Metadata); err != nil {
				return err
			}

			// Set timestamps
			passage.InsertedAt = time.Now().UTC()
			passage.UpdatedAt = passage.InsertedAt

			// Store primary record
			key := makePassageKey(passage.Id)
			value := storage.MarshalPassage(passage)
			if err := tx.Set(key, value); err != nil {
				return err
			}

			// Update document index
			if documentID, ok := documentIDOf(passage); ok {
				docKey := makeDocumentKey(documentID, passage.Id)
				if err := tx.Set(docKey, []byte(passage.Id)); err != nil {
					return err
				}
			}

			// Store the embedding alongside when one is present
			if len(passage.Vector) > 0 {
				record := &storage.VectorRecord{PassageId: passage.Id, Vector: passage.Vector}
				if err := tx.Set(makeVectorKey(passage.Id), storage.MarshalVectorRecord(record)); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)

	return passages, err
}

// UpdatePassages updates existing passages.
func (r *PassageRepository) UpdatePassages(ctx context.Context, passages ...*core.Passage) ([]*core.Passage, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, passage := range passages {
			key := makePassageKey(passage.Id)

			// Read old passage to detect changes
			old, err := r.readPassage(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			if err := core.ValidateMetadata(passage.Metadata); err != nil {
				return err
			}

			// Update timestamp, keep the original insertion time
			if passage.InsertedAt.IsZero() {
				passage.InsertedAt = old.InsertedAt
			}
			passage.UpdatedAt = time.Now().UTC()

			// Store updated record
			value := storage.MarshalPassage(passage)
			if err := tx.Set(key, value); err != nil {
				return err
			}

			// Update document index if the document changed
			oldDoc, oldOk := documentIDOf(old)
			newDoc, newOk := documentIDOf(passage)
			if oldDoc != newDoc || oldOk != newOk {
				if oldOk {
					if err := tx.Delete(makeDocumentKey(oldDoc, passage.Id)); err != nil {
						return err
					}
				}
				if newOk {
					if err := tx.Set(makeDocumentKey(newDoc, passage.Id), []byte(passage.Id)); err != nil {
						return err
					}
				}
			}

			// Rewrite the embedding when one is present
			if len(passage.Vector) > 0 {
				record := &storage.VectorRecord{PassageId: passage.Id, Vector: passage.Vector}
				if err := tx.Set(makeVectorKey(passage.Id), storage.MarshalVectorRecord(record)); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)

	return passages, err
}

// DeletePassages removes passages by their IDs.
func (r *PassageRepository) DeletePassages(ctx context.Context, ids ...string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makePassageKey(id)

			// Read passage to get metadata for index cleanup
			passage, err := r.readPassage(tx, key)
			if err != nil {
				return err
			}
			if passage == nil {
				return storage.ErrNotFound
			}

			// Delete from document index
			if documentID, ok := documentIDOf(passage); ok {
				if err := tx.Delete(makeDocumentKey(documentID, id)); err != nil {
					return err
				}
			}

			// Delete stored vector, if any
			if err := tx.Delete(makeVectorKey(id)); err != nil {
				return err
			}

			// Delete primary record
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetPassage retrieves a single passage by ID.
func (r *PassageRepository) GetPassage(ctx context.Context, id string) (*core.Passage, error) {
	var result *core.Passage
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makePassageKey(id)
		var err error
		result, err = r.readPassage(tx, key)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetPassages retrieves multiple passages by their IDs.
func (r *PassageRepository) GetPassages(ctx context.Context, ids ...string) ([]*core.Passage, error) {
	var result []*core.Passage
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makePassageKey(id)
			passage, err := r.readPassage(tx, key)
			if err != nil {
				return err
			}
			if passage != nil {
				result = append(result, passage)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetPassagesByDocument retrieves all passages belonging to a source document.
func (r *PassageRepository) GetPassagesByDocument(ctx context.Context, documentID string) ([]*core.Passage, error) {
	var results []*core.Passage
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialDocumentKey(documentID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()

			var passageID string
			err := item.Value(func(val []byte) error {
				passageID = string(val)
				return nil
			})
			if err != nil {
				return err
			}

			passage, err := r.readPassage(tx, makePassageKey(passageID))
			if err != nil {
				return err
			}
			if passage == nil {
				// Stale index entry
				continue
			}

			// The prefix scan can overmatch when one document ID is a
			// prefix of another, so verify against the stored metadata.
			if docID, ok := documentIDOf(passage); !ok || docID != documentID {
				continue
			}
			results = append(results, passage)
		}
		return nil
	}, false)

	return results, err
}

// ForEachPassage iterates over all stored passages in key order.
func (r *PassageRepository) ForEachPassage(ctx context.Context, fn func(passage *core.Passage) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeRecordPrefix(passageRecordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()

			var passage *core.Passage
			err := item.Value(func(val []byte) error {
				var err error
				passage, err = storage.UnmarshalPassage(val)
				return err
			})
			if err != nil {
				return err
			}
			if passage == nil {
				continue
			}

			if err := fn(passage); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// CountPassages returns the number of stored passages.
func (r *PassageRepository) CountPassages(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeRecordPrefix(passageRecordPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// readPassage reads a passage from the transaction.
// Returns nil, nil when the key does not exist.
func (r *PassageRepository) readPassage(tx *badger.Txn, key []byte) (*core.Passage, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var passage *core.Passage
	err = item.Value(func(val []byte) error {
		var err error
		passage, err = storage.UnmarshalPassage(val)
		return err
	})
	return passage, err
}

// documentIDOf extracts the owning document ID from passage metadata.
func documentIDOf(passage *core.Passage) (string, bool) {
	v, ok := passage.Metadata[core.MetaDocumentID]
	if !ok {
		return "", false
	}
	documentID, ok := v.(string)
	if !ok || documentID == "" {
		return "", false
	}
	return documentID, true
}
