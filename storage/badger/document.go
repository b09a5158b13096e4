package badger

import (
	"bytes"
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	idSeq, err := backend.GetSequence(documentIDSeq)
	if err != nil {
		return nil, err
	}

	return &DocumentRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *DocumentRepository) Close() error {
	return r.idSeq.Release()
}

// CreateDocument persists a new document, assigning its ID and CreatedAt.
func (r *DocumentRepository) CreateDocument(ctx context.Context, document *core.Document) (*core.Document, error) {
	if err := core.ValidateDocument(document); err != nil {
		return nil, err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if document.Id == 0 {
			nextID, err := r.idSeq.Next()
			if err != nil {
				return err
			}
			// BadgerDB sequences can return 0 on first call, so we skip it
			if nextID == 0 {
				nextID, err = r.idSeq.Next()
				if err != nil {
					return err
				}
			}
			document.Id = core.ID(nextID)
		}

		if document.CreatedAt.IsZero() {
			document.CreatedAt = time.Now().UTC()
		}

		value, err := storage.MarshalDocument(document)
		if err != nil {
			return err
		}
		if err := tx.Set(makeDocumentKey(document.Id), value); err != nil {
			return err
		}

		// Per-user recency index
		userKey := makeDocumentUserKey(document.UserId, document.CreatedAt, document.Id)
		if err := tx.Set(userKey, storage.MarshalID(document.Id)); err != nil {
			return err
		}

		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return document, nil
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, makeDocumentKey(id))
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

// GetDocumentsByUser retrieves a user's documents, most recent first.
func (r *DocumentRepository) GetDocumentsByUser(ctx context.Context, userId string) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialDocumentUserKey(userId)

		// Reverse iteration over the recency index yields newest first.
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek past the last possible key for this user.
		seekKey := append(append([]byte{}, prefix...), 0xff)

		for iter.Seek(seekKey); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if !bytes.HasPrefix(key, prefix) {
				break
			}

			var documentID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				documentID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			document, err := readDocument(tx, makeDocumentKey(documentID))
			if err != nil {
				return err
			}
			if document != nil {
				results = append(results, document)
			}
		}
		return nil
	}, false)

	return results, err
}

// UpdateStatus transitions a document's status.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id core.ID, status core.DocumentStatus, opts ...storage.StatusOption) error {
	if err := core.ValidateStatus(status); err != nil {
		return err
	}

	update := &storage.StatusUpdate{}
	for _, opt := range opts {
		opt(update)
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		document, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if document == nil {
			return storage.ErrNotFound
		}

		document.Status = status
		switch status {
		case core.StatusCompleted:
			document.ChunkCount = update.ChunkCount
			document.ErrorMessage = ""
			document.ProcessedAt = time.Now().UTC()
		case core.StatusFailed:
			document.ErrorMessage = update.ErrorMessage
			document.ProcessedAt = time.Now().UTC()
		}

		value, err := storage.MarshalDocument(document)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteDocument removes a document record and its index entry.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		document, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if document == nil {
			return storage.ErrNotFound
		}

		userKey := makeDocumentUserKey(document.UserId, document.CreatedAt, document.Id)
		if err := tx.Delete(userKey); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// readDocument reads a document by key inside a transaction.
// Returns (nil, nil) if the key does not exist.
func readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var document *core.Document
	err = item.Value(func(val []byte) error {
		var err error
		document, err = storage.UnmarshalDocument(val)
		return err
	})
	return document, err
}
