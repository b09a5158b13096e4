package docqa

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/chunk"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/reembed"
)

func TestNewSystem(t *testing.T) {
	t.Run("create new system", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		system, err := NewSystem(tmpDir, WithProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		require.NotNil(t, system)
		defer system.Close()

		// Verify components are initialized
		assert.NotNil(t, system.DocumentRepository())
		assert.NotNil(t, system.VectorRepository())
		assert.NotNil(t, system.Provider())
		assert.NotNil(t, system.backend)
		assert.NotNil(t, system.logger)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// A file where the database directory should be
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		system, err := NewSystem(tmpFile, WithProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, system)
	})

	t.Run("in-memory storage", func(t *testing.T) {
		system, err := NewSystem("", WithInMemoryStorage(), WithProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		require.NotNil(t, system)
		assert.NoError(t, system.Close())
	})
}

func TestSystem_Close(t *testing.T) {
	system, err := NewSystem(t.TempDir(), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	require.NotNil(t, system)

	err = system.Close()
	assert.NoError(t, err)
}

func TestSystem_FactoryMethods(t *testing.T) {
	system, err := NewSystem(t.TempDir(), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	require.NotNil(t, system)
	defer system.Close()

	t.Run("can create ingestion pipeline", func(t *testing.T) {
		pipeline, err := system.NewIngestionPipeline(chunk.New(), ingestion.NewQueue(10))
		require.NoError(t, err)
		require.NotNil(t, pipeline)
	})

	t.Run("can create answer service", func(t *testing.T) {
		answers, err := system.NewAnswerService()
		require.NoError(t, err)
		require.NotNil(t, answers)
	})

	t.Run("can create reembedder", func(t *testing.T) {
		reembedder := system.NewReembedder(reembed.DefaultConfig(), os.Stderr)
		require.NotNil(t, reembedder)
	})
}
