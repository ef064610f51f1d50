package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/crewd/internal/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), logging.NewNop())
	require.NoError(t, err)
	return store
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem := NewProjectMemory("Todo API", "build a REST todo service")
	require.NoError(t, mem.Apply(FieldFilesCreated, "app.py"))
	require.NoError(t, mem.Apply(FieldNextSteps, []string{"add auth", "write docs"}))
	mem.SetAgentSpecialization("coder", "python services")

	require.NoError(t, store.Save(ctx, mem))

	loaded := store.Load(ctx, "Todo API")
	assert.Equal(t, "Todo API", loaded.ProjectName)
	assert.Equal(t, "build a REST todo service", loaded.OriginalRequirements)
	assert.Equal(t, []string{"app.py"}, loaded.FilesCreated)
	assert.Equal(t, []string{"add auth", "write docs"}, loaded.NextSteps)
	assert.Equal(t, "python services", loaded.AgentSpecializations["coder"])
}

func TestStoreLoadMissingReturnsFresh(t *testing.T) {
	store := newTestStore(t)

	mem := store.Load(context.Background(), "never-seen")
	require.NotNil(t, mem)
	assert.Equal(t, "never-seen", mem.ProjectName)
	assert.Empty(t, mem.FilesCreated)
	assert.NotNil(t, mem.AgentSpecializations)
}

func TestStoreLoadCorruptReturnsFresh(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewTestLogger()
	store, err := NewStore(dir, logger.Logger)
	require.NoError(t, err)

	path := store.Path("broken")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	mem := store.Load(context.Background(), "broken")
	require.NotNil(t, mem)
	assert.Equal(t, "broken", mem.ProjectName)
	logger.AssertLogged(t, zapcore.WarnLevel, "corrupt project memory")
}

func TestStoreSaveIsAtomic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mem := NewProjectMemory("atomic", "req")
	require.NoError(t, store.Save(ctx, mem))

	// No temp file is left behind and the document parses.
	entries, err := os.ReadDir(filepath.Dir(store.Path("atomic")))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
	loaded := store.Load(ctx, "atomic")
	assert.Equal(t, "atomic", loaded.ProjectName)
}

func TestStoreList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, NewProjectMemory("Alpha One", "a")))
	require.NoError(t, store.Save(ctx, NewProjectMemory("beta", "b")))

	names, err := store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha_one", "beta"}, names)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "todo_api", slug("Todo API"))
	assert.Equal(t, "my_app_2", slug("  My-App 2 "))
	assert.Equal(t, "project", slug(""))
}
