package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete ambient configuration for the knowledge
// base core: storage location, per-project defaults applied when a caller
// omits them, retrieval tuning, cache sizing, heartbeat cadence, and the
// rate-limit windows a consumer-facing boundary enforces around the core.
type Config struct {
	Version   int               `yaml:"version" json:"version"`
	Storage   StorageConfig     `yaml:"storage" json:"storage"`
	Defaults  ProjectDefaults   `yaml:"defaults" json:"defaults"`
	Search    SearchConfig      `yaml:"search" json:"search"`
	Cache     CacheConfig       `yaml:"cache" json:"cache"`
	Heartbeat HeartbeatConfig   `yaml:"heartbeat" json:"heartbeat"`
	RateLimit RateLimitConfig   `yaml:"rate_limit" json:"rate_limit"`
	Server    ServerConfig      `yaml:"server" json:"server"`
}

// StorageConfig configures where project metadata, documents, and API keys
// are persisted, and which backend new projects provision by default.
type StorageConfig struct {
	// DataDir is the root directory under which project metadata, the
	// document repository, and API key stores are persisted.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Backend selects the default vector/keyword store new projects
	// provision. Options: "embedded" (in-process HNSW+bleve) or
	// "relational" (SQLite FTS5 + brute-force vector scan).
	Backend string `yaml:"backend" json:"backend"`
}

// ProjectDefaults are applied to a new project whenever a caller omits the
// corresponding field at creation time.
type ProjectDefaults struct {
	EmbeddingModel string `yaml:"embedding_model" json:"embedding_model"`
	Dimensions     int    `yaml:"dimensions" json:"dimensions"`
	ChunkSize      int    `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap" json:"chunk_overlap"`

	// ChunkStrategy names the default chunker: "fixed", "sentence",
	// "markdown", or "code".
	ChunkStrategy string `yaml:"chunk_strategy" json:"chunk_strategy"`
}

// SearchConfig configures hybrid retrieval fusion and diversification.
// BM25Weight and SemanticWeight are loaded and validated here; the query
// command does not read them and takes a fixed fusion weight from --alpha.
type SearchConfig struct {
	// RRFConstant is the RRF fusion smoothing parameter (k). Default 60,
	// the value used by Azure AI Search and OpenSearch.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	BM25Weight     float64 `yaml:"bm25_weight" json:"bm25_weight"`
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// MMRLambda trades off relevance (1.0) against diversity (0.0) in
	// SearchWithMMR.
	MMRLambda float64 `yaml:"mmr_lambda" json:"mmr_lambda"`

	// MMRFetchK is the candidate pool size MMR diversifies over before
	// truncating to the caller's requested topK.
	MMRFetchK int `yaml:"mmr_fetch_k" json:"mmr_fetch_k"`

	MaxResults int `yaml:"max_results" json:"max_results"`
}

// CacheConfig sizes the per-project embedding LRU and the semantic result
// cache shared by every project's retrieval engine.
type CacheConfig struct {
	EmbeddingCacheSize int `yaml:"embedding_cache_size" json:"embedding_cache_size"`
	SemanticCacheSize  int `yaml:"semantic_cache_size" json:"semantic_cache_size"`

	// SemanticCacheThreshold is the minimum cosine similarity at which a
	// query is served from the semantic cache rather than re-run.
	SemanticCacheThreshold float64 `yaml:"semantic_cache_threshold" json:"semantic_cache_threshold"`

	SemanticCacheTTL time.Duration `yaml:"semantic_cache_ttl" json:"semantic_cache_ttl"`
}

// HeartbeatConfig configures the background liveness/warming loop.
type HeartbeatConfig struct {
	// IntervalSeconds is clamped up to heartbeat.MinInterval by the
	// worker itself; this field only carries the configured value.
	IntervalSeconds int `yaml:"interval_seconds" json:"interval_seconds"`
}

// RateLimitConfig mirrors ratelimit.DefaultWindows, expressed as
// requests-per-minute so it round-trips cleanly through YAML.
type RateLimitConfig struct {
	CreatePerMinute int `yaml:"create_per_minute" json:"create_per_minute"`
	ListPerMinute   int `yaml:"list_per_minute" json:"list_per_minute"`
	QueryPerMinute  int `yaml:"query_per_minute" json:"query_per_minute"`
	IngestPerMinute int `yaml:"ingest_per_minute" json:"ingest_per_minute"`
}

// ServerConfig configures process-wide logging.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
			Backend: "embedded",
		},
		Defaults: ProjectDefaults{
			EmbeddingModel: "",
			Dimensions:     768,
			ChunkSize:      512,
			ChunkOverlap:   64,
			ChunkStrategy:  "sentence",
		},
		Search: SearchConfig{
			RRFConstant:    60,
			BM25Weight:     0.5,
			SemanticWeight: 0.5,
			MMRLambda:      0.5,
			MMRFetchK:      20,
			MaxResults:     10,
		},
		Cache: CacheConfig{
			EmbeddingCacheSize:     10000,
			SemanticCacheSize:      1000,
			SemanticCacheThreshold: 0.95,
			SemanticCacheTTL:       5 * time.Minute,
		},
		Heartbeat: HeartbeatConfig{
			IntervalSeconds: 30,
		},
		RateLimit: RateLimitConfig{
			CreatePerMinute: 10,
			ListPerMinute:   60,
			QueryPerMinute:  30,
			IngestPerMinute: 20,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// defaultDataDir returns the default root for project persistence, under
// XDG_DATA_HOME when set, else ~/.local/share/kbcore.
func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "kbcore")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "kbcore", "data")
	}
	return filepath.Join(home, ".local", "share", "kbcore")
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/kbcore/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/kbcore/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "kbcore", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "kbcore", "config.yaml")
	}
	return filepath.Join(home, ".config", "kbcore", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// Load loads configuration for dataDir, applying layers in order of
// increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/kbcore/config.yaml)
//  3. Deployment config (.kbcore.yaml in dataDir)
//  4. Environment variables (KBCORE_*)
func Load(dataDir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dataDir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .kbcore.yaml or
// .kbcore.yml in dir.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".kbcore.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".kbcore.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Storage.DataDir != "" {
		c.Storage.DataDir = other.Storage.DataDir
	}
	if other.Storage.Backend != "" {
		c.Storage.Backend = other.Storage.Backend
	}

	if other.Defaults.EmbeddingModel != "" {
		c.Defaults.EmbeddingModel = other.Defaults.EmbeddingModel
	}
	if other.Defaults.Dimensions != 0 {
		c.Defaults.Dimensions = other.Defaults.Dimensions
	}
	if other.Defaults.ChunkSize != 0 {
		c.Defaults.ChunkSize = other.Defaults.ChunkSize
	}
	if other.Defaults.ChunkOverlap != 0 {
		c.Defaults.ChunkOverlap = other.Defaults.ChunkOverlap
	}
	if other.Defaults.ChunkStrategy != "" {
		c.Defaults.ChunkStrategy = other.Defaults.ChunkStrategy
	}

	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.BM25Weight != 0 {
		c.Search.BM25Weight = other.Search.BM25Weight
	}
	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.MMRLambda != 0 {
		c.Search.MMRLambda = other.Search.MMRLambda
	}
	if other.Search.MMRFetchK != 0 {
		c.Search.MMRFetchK = other.Search.MMRFetchK
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	if other.Cache.EmbeddingCacheSize != 0 {
		c.Cache.EmbeddingCacheSize = other.Cache.EmbeddingCacheSize
	}
	if other.Cache.SemanticCacheSize != 0 {
		c.Cache.SemanticCacheSize = other.Cache.SemanticCacheSize
	}
	if other.Cache.SemanticCacheThreshold != 0 {
		c.Cache.SemanticCacheThreshold = other.Cache.SemanticCacheThreshold
	}
	if other.Cache.SemanticCacheTTL != 0 {
		c.Cache.SemanticCacheTTL = other.Cache.SemanticCacheTTL
	}

	if other.Heartbeat.IntervalSeconds != 0 {
		c.Heartbeat.IntervalSeconds = other.Heartbeat.IntervalSeconds
	}

	if other.RateLimit.CreatePerMinute != 0 {
		c.RateLimit.CreatePerMinute = other.RateLimit.CreatePerMinute
	}
	if other.RateLimit.ListPerMinute != 0 {
		c.RateLimit.ListPerMinute = other.RateLimit.ListPerMinute
	}
	if other.RateLimit.QueryPerMinute != 0 {
		c.RateLimit.QueryPerMinute = other.RateLimit.QueryPerMinute
	}
	if other.RateLimit.IngestPerMinute != 0 {
		c.RateLimit.IngestPerMinute = other.RateLimit.IngestPerMinute
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies KBCORE_* environment variable overrides, the
// highest-precedence configuration layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KBCORE_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("KBCORE_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}

	if v := os.Getenv("KBCORE_EMBEDDING_MODEL"); v != "" {
		c.Defaults.EmbeddingModel = v
	}
	if v := os.Getenv("KBCORE_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Defaults.Dimensions = n
		}
	}
	if v := os.Getenv("KBCORE_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Defaults.ChunkSize = n
		}
	}
	if v := os.Getenv("KBCORE_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Defaults.ChunkOverlap = n
		}
	}
	if v := os.Getenv("KBCORE_CHUNK_STRATEGY"); v != "" {
		c.Defaults.ChunkStrategy = v
	}

	if v := os.Getenv("KBCORE_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.RRFConstant = n
		}
	}
	if v := os.Getenv("KBCORE_BM25_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.BM25Weight = w
		}
	}
	if v := os.Getenv("KBCORE_SEMANTIC_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("KBCORE_MMR_LAMBDA"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.MMRLambda = w
		}
	}
	if v := os.Getenv("KBCORE_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.MaxResults = n
		}
	}

	if v := os.Getenv("KBCORE_EMBEDDING_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.EmbeddingCacheSize = n
		}
	}
	if v := os.Getenv("KBCORE_SEMANTIC_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.SemanticCacheSize = n
		}
	}
	if v := os.Getenv("KBCORE_SEMANTIC_CACHE_THRESHOLD"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Cache.SemanticCacheThreshold = w
		}
	}
	if v := os.Getenv("KBCORE_SEMANTIC_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.SemanticCacheTTL = d
		}
	}

	if v := os.Getenv("KBCORE_HEARTBEAT_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Heartbeat.IntervalSeconds = n
		}
	}

	if v := os.Getenv("KBCORE_RATE_LIMIT_CREATE_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.CreatePerMinute = n
		}
	}
	if v := os.Getenv("KBCORE_RATE_LIMIT_LIST_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.ListPerMinute = n
		}
	}
	if v := os.Getenv("KBCORE_RATE_LIMIT_QUERY_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.QueryPerMinute = n
		}
	}
	if v := os.Getenv("KBCORE_RATE_LIMIT_INGEST_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.IngestPerMinute = n
		}
	}

	if v := os.Getenv("KBCORE_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// parseFloat64 parses a string to float64, used for env var overrides.
func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.BM25Weight < 0 || c.Search.BM25Weight > 1 {
		return fmt.Errorf("bm25_weight must be between 0 and 1, got %f", c.Search.BM25Weight)
	}
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("semantic_weight must be between 0 and 1, got %f", c.Search.SemanticWeight)
	}
	if sum := c.Search.BM25Weight + c.Search.SemanticWeight; math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("bm25_weight + semantic_weight must equal 1.0, got %.2f", sum)
	}
	if c.Search.MMRLambda < 0 || c.Search.MMRLambda > 1 {
		return fmt.Errorf("mmr_lambda must be between 0 and 1, got %f", c.Search.MMRLambda)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("max_results must be non-negative, got %d", c.Search.MaxResults)
	}
	if c.Defaults.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be non-negative, got %d", c.Defaults.ChunkSize)
	}
	if c.Defaults.Dimensions < 0 {
		return fmt.Errorf("dimensions must be non-negative, got %d", c.Defaults.Dimensions)
	}

	if c.Defaults.ChunkStrategy != "" {
		validStrategies := map[string]bool{"fixed": true, "sentence": true, "markdown": true, "code": true}
		if !validStrategies[strings.ToLower(c.Defaults.ChunkStrategy)] {
			return fmt.Errorf("defaults.chunk_strategy must be 'fixed', 'sentence', 'markdown', or 'code', got %s", c.Defaults.ChunkStrategy)
		}
	}

	validBackends := map[string]bool{"embedded": true, "relational": true}
	if !validBackends[strings.ToLower(c.Storage.Backend)] {
		return fmt.Errorf("storage.backend must be 'embedded' or 'relational', got %s", c.Storage.Backend)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if c.Heartbeat.IntervalSeconds < 0 {
		return fmt.Errorf("heartbeat.interval_seconds must be non-negative, got %d", c.Heartbeat.IntervalSeconds)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeNewDefaults adds new default fields while preserving existing
// values, for configs written by an older version of this package.
// Returns the field names that were added with their default values.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Search.RRFConstant == 0 {
		c.Search.RRFConstant = defaults.Search.RRFConstant
		added = append(added, "search.rrf_constant")
	}
	if c.Search.MMRLambda == 0 {
		c.Search.MMRLambda = defaults.Search.MMRLambda
		added = append(added, "search.mmr_lambda")
	}
	if c.Search.MMRFetchK == 0 {
		c.Search.MMRFetchK = defaults.Search.MMRFetchK
		added = append(added, "search.mmr_fetch_k")
	}
	if c.Cache.EmbeddingCacheSize == 0 {
		c.Cache.EmbeddingCacheSize = defaults.Cache.EmbeddingCacheSize
		added = append(added, "cache.embedding_cache_size")
	}
	if c.Cache.SemanticCacheSize == 0 {
		c.Cache.SemanticCacheSize = defaults.Cache.SemanticCacheSize
		added = append(added, "cache.semantic_cache_size")
	}
	if c.Cache.SemanticCacheThreshold == 0 {
		c.Cache.SemanticCacheThreshold = defaults.Cache.SemanticCacheThreshold
		added = append(added, "cache.semantic_cache_threshold")
	}
	if c.Cache.SemanticCacheTTL == 0 {
		c.Cache.SemanticCacheTTL = defaults.Cache.SemanticCacheTTL
		added = append(added, "cache.semantic_cache_ttl")
	}
	if c.Heartbeat.IntervalSeconds == 0 {
		c.Heartbeat.IntervalSeconds = defaults.Heartbeat.IntervalSeconds
		added = append(added, "heartbeat.interval_seconds")
	}

	return added
}
