package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfigStore(t *testing.T) (*ConfigStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestConfigStoreSetAndGet(t *testing.T) {
	store, _ := newTestConfigStore(t)

	require.NoError(t, store.Set("embedding.model", "nomic-embed-text"))
	require.NoError(t, store.Set("retrieval.k", 10))
	require.NoError(t, store.Set("retrieval.entity_weight", 0.25))
	require.NoError(t, store.Set("watch.enabled", true))

	assert.Equal(t, "nomic-embed-text", store.GetString("embedding.model"))
	assert.Equal(t, 10, store.GetInt("retrieval.k"))
	assert.Equal(t, 0.25, store.GetFloat("retrieval.entity_weight"))
	assert.True(t, store.GetBool("watch.enabled"))
}

func TestConfigStoreMissingKeys(t *testing.T) {
	store, _ := newTestConfigStore(t)

	_, ok := store.Get("absent")
	assert.False(t, ok)
	assert.Empty(t, store.GetString("absent"))
	assert.Zero(t, store.GetInt("absent"))
	assert.Zero(t, store.GetFloat("absent"))
	assert.False(t, store.GetBool("absent"))
}

func TestConfigStoreWrongTypes(t *testing.T) {
	store, _ := newTestConfigStore(t)
	require.NoError(t, store.Set("key", "a string"))

	assert.Zero(t, store.GetInt("key"))
	assert.Zero(t, store.GetFloat("key"))
	assert.False(t, store.GetBool("key"))
}

func TestConfigStoreLoadFlattensNestedTables(t *testing.T) {
	dir := t.TempDir()
	content := "[retrieval]\nk = 7\nnegation_boost = 2.0\n\n[embedding]\nprovider = \"ollama\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, 7, store.GetInt("retrieval.k"))
	assert.Equal(t, 2.0, store.GetFloat("retrieval.negation_boost"))
	assert.Equal(t, "ollama", store.GetString("embedding.provider"))
}

func TestConfigStoreGetFloatAcceptsIntegers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("entity_weight = 1\n"), 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 1.0, store.GetFloat("entity_weight"))
}

func TestConfigStorePersistsAcrossInstances(t *testing.T) {
	store, dir := newTestConfigStore(t)
	require.NoError(t, store.Set("embedding.provider", "openai"))

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "openai", reloaded.GetString("embedding.provider"))
}
