package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

func setupRepositories(t *testing.T) (*DocumentRepository, *VectorRepository) {
	t.Helper()

	backend, err := OpenBackend(t.TempDir(), false)
	require.NoError(t, err)

	documents, err := NewDocumentRepository(backend)
	require.NoError(t, err)

	vectors, err := NewVectorRepository(backend)
	require.NoError(t, err)

	t.Cleanup(func() {
		vectors.Close()
		documents.Close()
		backend.Close()
	})

	return documents, vectors
}

func newTestDocument(userId, filename string) *core.Document {
	return &core.Document{
		UserId:      userId,
		Filename:    filename,
		ContentType: "text/plain",
		SizeBytes:   128,
		Status:      core.StatusPending,
	}
}

func TestCreateAndGetDocument(t *testing.T) {
	documents, _ := setupRepositories(t)
	ctx := context.Background()

	created, err := documents.CreateDocument(ctx, newTestDocument("user-1", "a.txt"))
	require.NoError(t, err)
	assert.NotZero(t, created.Id)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := documents.GetDocument(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, created.Filename, got.Filename)
	assert.Equal(t, core.StatusPending, got.Status)
}

func TestGetDocumentNotFound(t *testing.T) {
	documents, _ := setupRepositories(t)

	_, err := documents.GetDocument(context.Background(), 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateDocumentValidates(t *testing.T) {
	documents, _ := setupRepositories(t)

	_, err := documents.CreateDocument(context.Background(), &core.Document{
		Filename: "no-user.txt",
		Status:   core.StatusPending,
	})
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}

func TestGetDocumentsByUserOrder(t *testing.T) {
	documents, _ := setupRepositories(t)
	ctx := context.Background()

	first, err := documents.CreateDocument(ctx, newTestDocument("user-1", "first.txt"))
	require.NoError(t, err)
	second, err := documents.CreateDocument(ctx, newTestDocument("user-1", "second.txt"))
	require.NoError(t, err)
	_, err = documents.CreateDocument(ctx, newTestDocument("user-2", "other.txt"))
	require.NoError(t, err)

	list, err := documents.GetDocumentsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	// Most recent first; same-microsecond creations fall back to ID order.
	ids := []core.ID{list[0].Id, list[1].Id}
	assert.Contains(t, ids, first.Id)
	assert.Contains(t, ids, second.Id)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt) ||
		(list[0].CreatedAt.Equal(list[1].CreatedAt) && list[0].Id > list[1].Id))

	empty, err := documents.GetDocumentsByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdateStatusTransitions(t *testing.T) {
	documents, _ := setupRepositories(t)
	ctx := context.Background()

	document, err := documents.CreateDocument(ctx, newTestDocument("user-1", "a.txt"))
	require.NoError(t, err)

	require.NoError(t, documents.UpdateStatus(ctx, document.Id, core.StatusProcessing))
	got, err := documents.GetDocument(ctx, document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, got.Status)
	assert.True(t, got.ProcessedAt.IsZero())

	require.NoError(t, documents.UpdateStatus(ctx, document.Id, core.StatusCompleted,
		storage.WithChunkCount(7)))
	got, err = documents.GetDocument(ctx, document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, got.Status)
	assert.Equal(t, 7, got.ChunkCount)
	assert.False(t, got.ProcessedAt.IsZero())
}

func TestUpdateStatusFailed(t *testing.T) {
	documents, _ := setupRepositories(t)
	ctx := context.Background()

	document, err := documents.CreateDocument(ctx, newTestDocument("user-1", "a.txt"))
	require.NoError(t, err)

	require.NoError(t, documents.UpdateStatus(ctx, document.Id, core.StatusFailed,
		storage.WithErrorMessage("no text content could be extracted")))

	got, err := documents.GetDocument(ctx, document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, "no text content could be extracted", got.ErrorMessage)
}

func TestUpdateStatusNotFound(t *testing.T) {
	documents, _ := setupRepositories(t)

	err := documents.UpdateStatus(context.Background(), 12345, core.StatusProcessing)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteDocument(t *testing.T) {
	documents, _ := setupRepositories(t)
	ctx := context.Background()

	document, err := documents.CreateDocument(ctx, newTestDocument("user-1", "a.txt"))
	require.NoError(t, err)

	require.NoError(t, documents.DeleteDocument(ctx, document.Id))

	_, err = documents.GetDocument(ctx, document.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	list, err := documents.GetDocumentsByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, documents.DeleteDocument(ctx, document.Id), storage.ErrNotFound)
}
