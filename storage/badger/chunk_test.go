package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

func TestInsertChunksAssignsIDs(t *testing.T) {
	documents, vectors := setupRepositories(t)
	ctx := context.Background()

	document, err := documents.CreateDocument(ctx, newTestDocument("user-1", "a.txt"))
	require.NoError(t, err)

	inserted, err := vectors.InsertChunks(ctx,
		&core.Chunk{DocumentId: document.Id, Content: "first part", Vector: []float32{1, 0}, Index: 0},
		&core.Chunk{DocumentId: document.Id, Content: "second part", Vector: []float32{0, 1}, Index: 1},
	)
	require.NoError(t, err)
	require.Len(t, inserted, 2)
	assert.NotZero(t, inserted[0].Id)
	assert.NotEqual(t, inserted[0].Id, inserted[1].Id)
	assert.False(t, inserted[0].CreatedAt.IsZero())
}

func TestInsertChunksRejectsInvalid(t *testing.T) {
	_, vectors := setupRepositories(t)

	_, err := vectors.InsertChunks(context.Background(),
		&core.Chunk{DocumentId: 1, Content: "fine", Index: 0},
		&core.Chunk{DocumentId: 1, Content: "", Index: 1},
	)
	assert.ErrorIs(t, err, core.ErrInvalidChunk)

	// The batch is all-or-nothing: nothing from the failed batch is visible.
	chunks, err := vectors.GetChunksByDocument(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestGetChunksByDocumentOrdered(t *testing.T) {
	documents, vectors := setupRepositories(t)
	ctx := context.Background()

	document, err := documents.CreateDocument(ctx, newTestDocument("user-1", "a.txt"))
	require.NoError(t, err)

	_, err = vectors.InsertChunks(ctx,
		&core.Chunk{DocumentId: document.Id, Content: "alpha", Vector: []float32{1}, Index: 0},
		&core.Chunk{DocumentId: document.Id, Content: "bravo", Vector: []float32{1}, Index: 1},
		&core.Chunk{DocumentId: document.Id, Content: "charlie", Vector: []float32{1}, Index: 2},
	)
	require.NoError(t, err)

	chunks, err := vectors.GetChunksByDocument(ctx, document.Id)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
	}
	assert.Equal(t, "alpha", chunks[0].Content)
	assert.Equal(t, "charlie", chunks[2].Content)
}

func TestFindSimilarOrderingAndFloor(t *testing.T) {
	documents, vectors := setupRepositories(t)
	ctx := context.Background()

	document, err := documents.CreateDocument(ctx, newTestDocument("user-1", "notes.txt"))
	require.NoError(t, err)

	_, err = vectors.InsertChunks(ctx,
		&core.Chunk{DocumentId: document.Id, Content: "close match", Vector: []float32{1, 0}, Index: 0},
		&core.Chunk{DocumentId: document.Id, Content: "partial match", Vector: []float32{0.8, 0.6}, Index: 1},
		&core.Chunk{DocumentId: document.Id, Content: "unrelated", Vector: []float32{0, 1}, Index: 2},
	)
	require.NoError(t, err)

	results, err := vectors.FindSimilar(ctx, []float32{1, 0}, 0.7, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "close match", results[0].Content)
	assert.Equal(t, "partial match", results[1].Content)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.Equal(t, "notes.txt", results[0].Filename)
}

func TestFindSimilarLimit(t *testing.T) {
	documents, vectors := setupRepositories(t)
	ctx := context.Background()

	document, err := documents.CreateDocument(ctx, newTestDocument("user-1", "a.txt"))
	require.NoError(t, err)

	var chunks []*core.Chunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, &core.Chunk{
			DocumentId: document.Id,
			Content:    "identical scoring chunk",
			Vector:     []float32{1, 0},
			Index:      i,
		})
	}
	_, err = vectors.InsertChunks(ctx, chunks...)
	require.NoError(t, err)

	results, err := vectors.FindSimilar(ctx, []float32{1, 0}, 0.5, 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestFindSimilarScoping(t *testing.T) {
	documents, vectors := setupRepositories(t)
	ctx := context.Background()

	mine, err := documents.CreateDocument(ctx, newTestDocument("user-1", "mine.txt"))
	require.NoError(t, err)
	other, err := documents.CreateDocument(ctx, newTestDocument("user-2", "other.txt"))
	require.NoError(t, err)

	_, err = vectors.InsertChunks(ctx,
		&core.Chunk{DocumentId: mine.Id, Content: "my chunk", Vector: []float32{1, 0}, Index: 0},
		&core.Chunk{DocumentId: other.Id, Content: "their chunk", Vector: []float32{1, 0}, Index: 0},
	)
	require.NoError(t, err)

	results, err := vectors.FindSimilar(ctx, []float32{1, 0}, 0.5, 10, storage.ForUser("user-1"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "my chunk", results[0].Content)

	results, err = vectors.FindSimilar(ctx, []float32{1, 0}, 0.5, 10, storage.ForDocument(other.Id))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "their chunk", results[0].Content)
}

func TestUpdateChunkVectors(t *testing.T) {
	documents, vectors := setupRepositories(t)
	ctx := context.Background()

	document, err := documents.CreateDocument(ctx, newTestDocument("user-1", "a.txt"))
	require.NoError(t, err)

	inserted, err := vectors.InsertChunks(ctx,
		&core.Chunk{DocumentId: document.Id, Content: "stable content", Vector: []float32{1, 0}, Index: 0},
	)
	require.NoError(t, err)

	inserted[0].Vector = []float32{0, 1}
	require.NoError(t, vectors.UpdateChunkVectors(ctx, inserted[0]))

	chunks, err := vectors.GetChunksByDocument(ctx, document.Id)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []float32{0, 1}, chunks[0].Vector)
	assert.Equal(t, "stable content", chunks[0].Content)

	err = vectors.UpdateChunkVectors(ctx, &core.Chunk{Id: 424242, Vector: []float32{1}})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteChunksByDocument(t *testing.T) {
	documents, vectors := setupRepositories(t)
	ctx := context.Background()

	keep, err := documents.CreateDocument(ctx, newTestDocument("user-1", "keep.txt"))
	require.NoError(t, err)
	drop, err := documents.CreateDocument(ctx, newTestDocument("user-1", "drop.txt"))
	require.NoError(t, err)

	_, err = vectors.InsertChunks(ctx,
		&core.Chunk{DocumentId: keep.Id, Content: "kept", Vector: []float32{1}, Index: 0},
		&core.Chunk{DocumentId: drop.Id, Content: "dropped one", Vector: []float32{1}, Index: 0},
		&core.Chunk{DocumentId: drop.Id, Content: "dropped two", Vector: []float32{1}, Index: 1},
	)
	require.NoError(t, err)

	require.NoError(t, vectors.DeleteChunksByDocument(ctx, drop.Id))

	gone, err := vectors.GetChunksByDocument(ctx, drop.Id)
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := vectors.GetChunksByDocument(ctx, keep.Id)
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	// Deleting chunks of an unknown document is a no-op, not an error.
	assert.NoError(t, vectors.DeleteChunksByDocument(ctx, 999999))
}
