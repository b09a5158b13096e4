package badger

import (
	"bytes"
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

// VectorRepository implements storage.VectorRepository for BadgerDB.
// Similarity search is an exact scan over stored chunk vectors; there is no
// approximate index.
type VectorRepository struct {
	backend *Backend
}

var _ storage.VectorRepository = (*VectorRepository)(nil)

// NewVectorRepository creates a new VectorRepository.
func NewVectorRepository(backend *Backend) (*VectorRepository, error) {
	return &VectorRepository{backend: backend}, nil
}

// Close releases resources held by the repository.
func (r *VectorRepository) Close() error {
	return nil
}

// InsertChunks persists chunks as one atomic batch. A failure on any chunk
// discards the whole transaction, so partial batches are never visible.
func (r *VectorRepository) InsertChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, chunk := range chunks {
			if chunk.Id == 0 {
				chunk.Id = core.ChunkID(chunk.DocumentId, chunk.Index, chunk.Content)
			}
			chunk.CreatedAt = now

			value, err := storage.MarshalChunk(chunk)
			if err != nil {
				return err
			}
			if err := tx.Set(makeChunkKey(chunk.Id), value); err != nil {
				return err
			}

			// Per-document index, ordered by chunk index
			docKey := makeChunkDocKey(chunk.DocumentId, chunk.Index)
			if err := tx.Set(docKey, storage.MarshalID(chunk.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// FindSimilar scans chunk records and returns those with cosine similarity
// at or above minSimilarity, ordered by score descending, up to limit.
func (r *VectorRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int, opts ...storage.SearchOption) ([]*core.SearchResult, error) {
	filter := &storage.SearchFilter{}
	for _, opt := range opts {
		opt(filter)
	}

	var results []*core.SearchResult

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Owning documents are looked up once per document, both for
		// filtering and for the citation filename.
		documents := make(map[core.ID]*core.Document)
		lookupDocument := func(id core.ID) (*core.Document, error) {
			if document, ok := documents[id]; ok {
				return document, nil
			}
			document, err := readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return nil, err
			}
			documents[id] = document
			return document, nil
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if chunk == nil || len(chunk.Vector) == 0 {
				continue
			}

			if filter.DocumentId != 0 && chunk.DocumentId != filter.DocumentId {
				continue
			}

			document, err := lookupDocument(chunk.DocumentId)
			if err != nil {
				return err
			}
			if document == nil {
				// Orphaned chunk; skip rather than fail the search.
				continue
			}
			if filter.UserId != "" && document.UserId != filter.UserId {
				continue
			}

			// Cosine similarity (dot product for normalized vectors)
			similarity := dotProduct(vector, chunk.Vector)
			if similarity >= minSimilarity {
				results = append(results, &core.SearchResult{
					ChunkId:    chunk.Id,
					DocumentId: chunk.DocumentId,
					Content:    chunk.Content,
					Score:      similarity,
					Filename:   document.Filename,
				})
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	// Sort by similarity descending; equal scores keep scan order.
	slices.SortStableFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetChunksByDocument retrieves a document's chunks ordered by chunk index.
func (r *VectorRepository) GetChunksByDocument(ctx context.Context, documentId core.ID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialChunkDocKey(documentId)
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if !bytes.HasPrefix(key, prefix) {
				break
			}

			var chunkID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				chunkID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			chunk, err := readChunk(tx, makeChunkKey(chunkID))
			if err != nil {
				return err
			}
			if chunk != nil {
				results = append(results, chunk)
			}
		}
		return nil
	}, false)

	return results, err
}

// UpdateChunkVectors rewrites the embedding vectors of existing chunks.
func (r *VectorRepository) UpdateChunkVectors(ctx context.Context, chunks ...*core.Chunk) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			key := makeChunkKey(chunk.Id)
			stored, err := readChunk(tx, key)
			if err != nil {
				return err
			}
			if stored == nil {
				return storage.ErrNotFound
			}

			stored.Vector = chunk.Vector
			value, err := storage.MarshalChunk(stored)
			if err != nil {
				return err
			}
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteChunksByDocument removes every chunk belonging to a document.
func (r *VectorRepository) DeleteChunksByDocument(ctx context.Context, documentId core.ID) error {
	// Collect first: Badger iterators must not observe writes made in the
	// same loop.
	var indexKeys [][]byte
	var chunkIDs []core.ID

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialChunkDocKey(documentId)
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if !bytes.HasPrefix(key, prefix) {
				break
			}
			indexKeys = append(indexKeys, iter.Item().KeyCopy(nil))

			var chunkID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				chunkID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}
			chunkIDs = append(chunkIDs, chunkID)
		}
		return nil
	}, false)
	if err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range chunkIDs {
			if err := tx.Delete(makeChunkKey(id)); err != nil {
				return err
			}
		}
		for _, key := range indexKeys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// readChunk reads a chunk by key inside a transaction.
// Returns (nil, nil) if the key does not exist.
func readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var err error
		chunk, err = storage.UnmarshalChunk(val)
		return err
	})
	return chunk, err
}

// dotProduct computes the dot product of two vectors. Mismatched lengths
// compare only the shared prefix.
func dotProduct(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
