package ingestion

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/extract"
	"github.com/poiesic/docqa/storage"
)

// fakeDocumentRepository is an in-memory storage.DocumentRepository.
type fakeDocumentRepository struct {
	mu        sync.Mutex
	nextID    core.ID
	documents map[core.ID]*core.Document
}

func newFakeDocumentRepository() *fakeDocumentRepository {
	return &fakeDocumentRepository{documents: make(map[core.ID]*core.Document)}
}

func (f *fakeDocumentRepository) CreateDocument(_ context.Context, document *core.Document) (*core.Document, error) {
	if err := core.ValidateDocument(document); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	document.Id = f.nextID
	document.CreatedAt = time.Now().UTC()
	f.documents[document.Id] = document
	return document, nil
}

func (f *fakeDocumentRepository) GetDocument(_ context.Context, id core.ID) (*core.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	document, ok := f.documents[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return document, nil
}

func (f *fakeDocumentRepository) GetDocumentsByUser(_ context.Context, userId string) ([]*core.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []*core.Document
	for _, document := range f.documents {
		if document.UserId == userId {
			results = append(results, document)
		}
	}
	return results, nil
}

func (f *fakeDocumentRepository) UpdateStatus(_ context.Context, id core.ID, status core.DocumentStatus, opts ...storage.StatusOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	document, ok := f.documents[id]
	if !ok {
		return storage.ErrNotFound
	}
	update := &storage.StatusUpdate{}
	for _, opt := range opts {
		opt(update)
	}
	document.Status = status
	switch status {
	case core.StatusCompleted:
		document.ChunkCount = update.ChunkCount
		document.ErrorMessage = ""
	case core.StatusFailed:
		document.ErrorMessage = update.ErrorMessage
	}
	return nil
}

func (f *fakeDocumentRepository) DeleteDocument(_ context.Context, id core.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.documents[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.documents, id)
	return nil
}

func (f *fakeDocumentRepository) Close() error { return nil }

// fakeVectorRepository is an in-memory storage.VectorRepository.
type fakeVectorRepository struct {
	mu        sync.Mutex
	chunks    []*core.Chunk
	insertErr error
}

func (f *fakeVectorRepository) InsertChunks(_ context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.chunks = append(f.chunks, chunks...)
	return chunks, nil
}

func (f *fakeVectorRepository) FindSimilar(_ context.Context, _ []float32, _ float32, _ int, _ ...storage.SearchOption) ([]*core.SearchResult, error) {
	return nil, nil
}

func (f *fakeVectorRepository) GetChunksByDocument(_ context.Context, documentId core.ID) ([]*core.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []*core.Chunk
	for _, chunk := range f.chunks {
		if chunk.DocumentId == documentId {
			results = append(results, chunk)
		}
	}
	return results, nil
}

func (f *fakeVectorRepository) UpdateChunkVectors(_ context.Context, _ ...*core.Chunk) error {
	return nil
}

func (f *fakeVectorRepository) DeleteChunksByDocument(_ context.Context, _ core.ID) error {
	return nil
}

func (f *fakeVectorRepository) Close() error { return nil }

func setupPipeline(t *testing.T, opts ...Option) (*Pipeline, *fakeDocumentRepository, *fakeVectorRepository) {
	t.Helper()

	documents := newFakeDocumentRepository()
	vectors := &fakeVectorRepository{}

	opts = append([]Option{WithStagingDir(t.TempDir())}, opts...)
	pipeline, err := NewPipeline(documents, vectors, mock.NewMockProvider(),
		extract.New(), NewQueue(10), opts...)
	require.NoError(t, err)

	return pipeline, documents, vectors
}

func TestQueueDocument(t *testing.T) {
	pipeline, documents, _ := setupPipeline(t)
	ctx := context.Background()

	document, err := pipeline.QueueDocument(ctx, "user-1", "notes.txt", "text/plain",
		11, strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.NotZero(t, document.Id)
	assert.Equal(t, core.StatusPending, document.Status)
	assert.Equal(t, int64(11), document.SizeBytes)

	stored, err := documents.GetDocument(ctx, document.Id)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", stored.Filename)

	// The staged file must exist until processing removes it.
	job := <-pipeline.Queue().Dequeue()
	assert.Equal(t, document.Id, job.DocumentId)
	_, err = os.Stat(job.FilePath)
	assert.NoError(t, err)
}

func TestQueueDocumentRejectsUnsupportedType(t *testing.T) {
	pipeline, documents, _ := setupPipeline(t)

	_, err := pipeline.QueueDocument(context.Background(), "user-1", "archive.zip",
		"application/zip", 10, strings.NewReader("zip bytes"))
	assert.ErrorIs(t, err, ErrUnsupportedContentType)
	assert.Empty(t, documents.documents)
}

func TestQueueDocumentRejectsOversize(t *testing.T) {
	pipeline, _, _ := setupPipeline(t)

	_, err := pipeline.QueueDocument(context.Background(), "user-1", "big.txt",
		"text/plain", DefaultMaxFileSize+1, strings.NewReader("irrelevant"))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestQueueDocumentRejectsOversizeContent(t *testing.T) {
	pipeline, _, _ := setupPipeline(t, WithMaxFileSize(64))

	// Declared size lies; the actual content is over the limit.
	big := strings.NewReader(strings.Repeat("a", 65))
	_, err := pipeline.QueueDocument(context.Background(), "user-1", "big.txt",
		"text/plain", 10, big)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestQueueDocumentConfiguredLimit(t *testing.T) {
	pipeline, documents, _ := setupPipeline(t, WithMaxFileSize(64))
	ctx := context.Background()

	assert.Equal(t, int64(64), pipeline.MaxFileSize())

	_, err := pipeline.QueueDocument(ctx, "user-1", "big.txt",
		"text/plain", 65, strings.NewReader("irrelevant"))
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Empty(t, documents.documents)

	document, err := pipeline.QueueDocument(ctx, "user-1", "small.txt",
		"text/plain", 5, strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), document.SizeBytes)
}

func TestProcessDocumentSuccess(t *testing.T) {
	pipeline, documents, vectors := setupPipeline(t)
	ctx := context.Background()

	text := "First sentence about storage. Second sentence about indexing. Third sentence about queries."
	document, err := pipeline.QueueDocument(ctx, "user-1", "notes.txt", "text/plain",
		int64(len(text)), strings.NewReader(text))
	require.NoError(t, err)

	job := <-pipeline.Queue().Dequeue()
	require.NoError(t, pipeline.ProcessDocument(ctx, job))

	stored, err := documents.GetDocument(ctx, document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, stored.Status)
	assert.Equal(t, len(vectors.chunks), stored.ChunkCount)
	assert.NotEmpty(t, vectors.chunks)
	for _, chunk := range vectors.chunks {
		assert.Equal(t, document.Id, chunk.DocumentId)
		assert.NotEmpty(t, chunk.Vector)
	}

	// The staged file is removed after processing.
	_, err = os.Stat(job.FilePath)
	assert.True(t, os.IsNotExist(err))
}

func TestProcessDocumentEmptyExtraction(t *testing.T) {
	pipeline, documents, _ := setupPipeline(t)
	ctx := context.Background()

	document, err := pipeline.QueueDocument(ctx, "user-1", "empty.txt", "text/plain",
		0, strings.NewReader(""))
	require.NoError(t, err)

	job := <-pipeline.Queue().Dequeue()
	err = pipeline.ProcessDocument(ctx, job)
	assert.ErrorIs(t, err, ErrEmptyExtraction)

	stored, getErr := documents.GetDocument(ctx, document.Id)
	require.NoError(t, getErr)
	assert.Equal(t, core.StatusFailed, stored.Status)
	assert.Equal(t, ErrEmptyExtraction.Error(), stored.ErrorMessage)

	_, err = os.Stat(job.FilePath)
	assert.True(t, os.IsNotExist(err))
}

func TestProcessDocumentInsertFailure(t *testing.T) {
	pipeline, documents, vectors := setupPipeline(t)
	ctx := context.Background()

	vectors.insertErr = errors.New("disk full")

	document, err := pipeline.QueueDocument(ctx, "user-1", "notes.txt", "text/plain",
		10, strings.NewReader("some text."))
	require.NoError(t, err)

	job := <-pipeline.Queue().Dequeue()
	err = pipeline.ProcessDocument(ctx, job)
	require.Error(t, err)

	stored, getErr := documents.GetDocument(ctx, document.Id)
	require.NoError(t, getErr)
	assert.Equal(t, core.StatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "disk full")
}

func TestProcessDocumentEmbeddingMismatch(t *testing.T) {
	documents := newFakeDocumentRepository()
	vectors := &fakeVectorRepository{}

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil // always one vector, regardless of input
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockChatModel())

	pipeline, err := NewPipeline(documents, vectors, provider, extract.New(),
		NewQueue(10), WithStagingDir(t.TempDir()))
	require.NoError(t, err)

	ctx := context.Background()
	text := strings.Repeat("A sentence that fills space for chunking purposes. ", 100)
	_, err = pipeline.QueueDocument(ctx, "user-1", "notes.txt", "text/plain",
		int64(len(text)), strings.NewReader(text))
	require.NoError(t, err)

	job := <-pipeline.Queue().Dequeue()
	err = pipeline.ProcessDocument(ctx, job)
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}

func TestNewPipelineValidation(t *testing.T) {
	documents := newFakeDocumentRepository()
	vectors := &fakeVectorRepository{}
	provider := mock.NewMockProvider()
	extractor := extract.New()
	queue := NewQueue(10)

	_, err := NewPipeline(nil, vectors, provider, extractor, queue)
	assert.ErrorIs(t, err, ErrDocumentRepositoryRequired)

	_, err = NewPipeline(documents, nil, provider, extractor, queue)
	assert.ErrorIs(t, err, ErrVectorRepositoryRequired)

	_, err = NewPipeline(documents, vectors, nil, extractor, queue)
	assert.ErrorIs(t, err, ErrAIProviderRequired)

	_, err = NewPipeline(documents, vectors, provider, nil, queue)
	assert.ErrorIs(t, err, ErrExtractorRequired)

	// A nil queue gets a default.
	pipeline, err := NewPipeline(documents, vectors, provider, extractor, nil)
	require.NoError(t, err)
	assert.NotNil(t, pipeline.Queue())
}
