package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
)

func TestNewStore_MissingFileUsesDefaults(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	cfg := store.Config()
	assert.True(t, cfg.FDIC.Enabled)
	assert.False(t, cfg.NewsAPI.Enabled)
	assert.Equal(t, 24, cfg.Scheduler.IntervalHours)
	assert.Equal(t, domain.DefaultCollectionConfig(), cfg.CollectionConfig())
}

func TestNewStore_LoadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[collection]
parallelism = 2
max_attempts = 5

[scheduler]
enabled = false

[newsapi]
enabled = true
api_key = "secret"
watchlist = ["Example Bank"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	store, err := NewStore(dir)
	require.NoError(t, err)

	cfg := store.Config()
	assert.Equal(t, 2, cfg.Collection.Parallelism)
	assert.Equal(t, 5, cfg.Collection.MaxAttempts)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.True(t, cfg.NewsAPI.Enabled)
	assert.Equal(t, "secret", cfg.NewsAPI.APIKey)
	assert.Equal(t, []string{"Example Bank"}, cfg.NewsAPI.Watchlist)

	// Fields the file does not set keep their defaults.
	assert.True(t, cfg.FDIC.Enabled)
	assert.Equal(t, domain.DefaultCollectionConfig().QueueSize, cfg.CollectionConfig().QueueSize)
}

func TestStore_UpdatePersists(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	err = store.Update(func(c *Config) {
		c.NewsAPI.Enabled = true
		c.NewsAPI.APIKey = "new-key"
	})
	require.NoError(t, err)

	reloaded, err := NewStore(dir)
	require.NoError(t, err)
	assert.True(t, reloaded.Config().NewsAPI.Enabled)
	assert.Equal(t, "new-key", reloaded.Config().NewsAPI.APIKey)
}

func TestStore_SaveRestrictsPermissions(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save())

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfig_CollectionConfigOverrides(t *testing.T) {
	cfg := Config{Collection: CollectionConfig{
		Parallelism:      8,
		InitialBackoffMS: 250,
	}}

	got := cfg.CollectionConfig()
	assert.Equal(t, 8, got.Parallelism)
	assert.Equal(t, 250*time.Millisecond, got.InitialBackoff)
	// Unset fields keep defaults.
	assert.Equal(t, domain.DefaultCollectionConfig().MaxAttempts, got.MaxAttempts)
}

func TestConfig_SchedulerConfig(t *testing.T) {
	cfg := Config{Scheduler: SchedulerConfig{Enabled: true, IntervalHours: 6}}

	got := cfg.SchedulerConfig()
	assert.True(t, got.Enabled)
	task := got.GetTaskConfig(domain.TaskIDEventCollection)
	assert.True(t, task.Enabled)
	assert.Equal(t, 6*time.Hour, task.Interval)
}
