package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ZeroValuesNotMerged(t *testing.T) {
	withIsolatedHome(t)
	dir := t.TempDir()
	// An explicit zero for max_results should not clobber the default,
	// since mergeWith only merges non-zero values (YAML can't distinguish
	// "unset" from "zero" without a pointer field).
	writeFile(t, filepath.Join(dir, ".kbcore.yaml"), "search:\n  max_results: 0\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search.MaxResults, cfg.Search.MaxResults)
}

func TestLoad_NegativeMaxResults_Rejected(t *testing.T) {
	withIsolatedHome(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".kbcore.yaml"), "search:\n  max_results: -1\n")

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_WeightsSumValidated(t *testing.T) {
	withIsolatedHome(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".kbcore.yaml"), "search:\n  bm25_weight: 0.9\n  semantic_weight: 0.9\n")

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_InvalidChunkStrategy_Rejected(t *testing.T) {
	withIsolatedHome(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".kbcore.yaml"), "defaults:\n  chunk_strategy: paragraph\n")

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_InvalidStorageBackend_Rejected(t *testing.T) {
	withIsolatedHome(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".kbcore.yaml"), "storage:\n  backend: filesystem\n")

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_UnreadableConfigFile_ReturnsError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission bits are not enforced")
	}
	withIsolatedHome(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".kbcore.yaml")
	writeFile(t, path, "version: 1\n")
	require.NoError(t, os.Chmod(path, 0000))
	t.Cleanup(func() { _ = os.Chmod(path, 0644) })

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestConfig_JSONRoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Defaults.EmbeddingModel = "text-embedding-3-small"

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, cfg.Defaults.EmbeddingModel, decoded.Defaults.EmbeddingModel)
	assert.Equal(t, cfg.Search.RRFConstant, decoded.Search.RRFConstant)
	assert.Equal(t, cfg.Cache.SemanticCacheTTL, decoded.Cache.SemanticCacheTTL)
}

func TestConfig_UnmarshalJSON_InvalidJSON_ReturnsError(t *testing.T) {
	var cfg Config
	err := json.Unmarshal([]byte("{not valid json"), &cfg)
	assert.Error(t, err)
}

func TestNewConfig_DataDir_UsesHomeDir(t *testing.T) {
	withIsolatedHome(t)
	cfg := NewConfig()
	assert.NotEmpty(t, cfg.Storage.DataDir)
}

func TestMergeNewDefaults_FillsZeroFields(t *testing.T) {
	cfg := &Config{}
	added := cfg.MergeNewDefaults()

	assert.Contains(t, added, "search.rrf_constant")
	assert.Contains(t, added, "cache.semantic_cache_size")
	assert.Equal(t, NewConfig().Search.RRFConstant, cfg.Search.RRFConstant)
	assert.Equal(t, NewConfig().Cache.SemanticCacheSize, cfg.Cache.SemanticCacheSize)
}

func TestMergeNewDefaults_LeavesExistingValuesAlone(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.RRFConstant = 100
	added := cfg.MergeNewDefaults()

	assert.NotContains(t, added, "search.rrf_constant")
	assert.Equal(t, 100, cfg.Search.RRFConstant)
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	withIsolatedHome(t)
	cfg := NewConfig()
	cfg.Search.RRFConstant = 123

	dir := t.TempDir()
	path := filepath.Join(dir, ".kbcore.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 123, loaded.Search.RRFConstant)
}
