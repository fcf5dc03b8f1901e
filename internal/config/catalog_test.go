package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogDefaults(t *testing.T) {
	c, err := NewCatalog(CatalogConfig{})
	require.NoError(t, err)

	assert.True(t, c.IsPermitted("anything"))
	assert.True(t, c.SupportsVision("gpt-4o"))
	assert.False(t, c.SupportsVision("mistral-nemo"))
	assert.True(t, c.IsImageModel("dall-e-3"))
	assert.Equal(t, DefaultChatModels, c.Listed())
}

func TestCatalogSubset(t *testing.T) {
	c, err := NewCatalog(CatalogConfig{PermitSubsetOnly: true, Subset: []string{"gpt-4o-mini", "mistral-nemo"}})
	require.NoError(t, err)

	assert.True(t, c.IsPermitted("gpt-4o-mini"))
	assert.False(t, c.IsPermitted("gpt-4o"))
	assert.Equal(t, []string{"gpt-4o-mini", "mistral-nemo"}, c.Listed())
}

func TestParseCatalogKeepsDefaultsForEmptyLists(t *testing.T) {
	snapshot, err := ParseCatalog([]byte("vision_models:\n  - my-vision\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"my-vision"}, snapshot.VisionModels)
	assert.Equal(t, DefaultChatModels, snapshot.ChatModels)

	_, err = ParseCatalog([]byte("vision_models: [unterminated"))
	assert.Error(t, err)
}

func TestCatalogReloadKeepsOldListsOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat_models: [a, b]\n"), 0o600))

	c, err := NewCatalog(CatalogConfig{File: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, c.Listed())

	require.NoError(t, os.WriteFile(path, []byte("chat_models: [broken"), 0o600))
	assert.Error(t, c.Reload())
	assert.Equal(t, []string{"a", "b"}, c.Listed())
}

func TestCatalogWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vision_models: [v1]\n"), 0o600))

	c, err := NewCatalog(CatalogConfig{File: path})
	require.NoError(t, err)

	reloaded := make(chan error, 4)
	w := NewCatalogWatcher(c, 20*time.Millisecond, func(err error) { reloaded <- err })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("vision_models: [v2]\n"), 0o600))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("catalog was not reloaded")
	}
	assert.True(t, c.SupportsVision("v2"))

	cancel()
	assert.NoError(t, <-done)
}

func TestCatalogWatcherWithoutFile(t *testing.T) {
	c, err := NewCatalog(CatalogConfig{})
	require.NoError(t, err)
	assert.NoError(t, NewCatalogWatcher(c, 0, nil).Run(context.Background()))
}
