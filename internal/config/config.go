package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// DirName is the per-user data directory under the home directory.
const DirName = ".palmscan"

// EnvPrefix is the prefix of environment variables that override the config file.
const EnvPrefix = "PALMSCAN"

// Config holds application configuration.
type Config struct {
	// PreviewMaxChars is the preview length attached to enriched fortunes.
	PreviewMaxChars int `json:"preview_max_chars"`

	// VocabularyPath points to a TOML keyword file that extends (or replaces) the
	// built-in section/tips/caution keywords. Empty means built-in only.
	VocabularyPath string `json:"vocabulary_path,omitempty"`

	// WatchVocabulary reloads VocabularyPath on change while the web or MCP server runs.
	WatchVocabulary bool `json:"watch_vocabulary,omitempty"`

	// Locale selects the FormatDate layout ("en", "en-GB", "th").
	Locale string `json:"locale"`

	// Timezone is an IANA name used when rendering dates.
	Timezone string `json:"timezone"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.palmscan/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// LogLevel is a zerolog level name.
	LogLevel string `json:"log_level,omitempty"`

	// LogPretty switches to the human-readable console writer.
	LogPretty bool `json:"log_pretty,omitempty"`

	Service  ServiceConfig  `json:"service"`
	Defaults PredictDefault `json:"defaults"`
}

// ServiceConfig locates the remote analyze and fortune services.
type ServiceConfig struct {
	// BaseURL serves /scan/save and /fortune/predict.
	BaseURL string `json:"base_url,omitempty"`

	// AnalyzeURL serves /analyze. Empty means BaseURL.
	AnalyzeURL string `json:"analyze_url,omitempty"`

	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	// Token is a static bearer token. When empty the token is read from TokenEnv.
	Token    string `json:"token,omitempty"`
	TokenEnv string `json:"token_env,omitempty"`
}

// Timeout returns the request timeout as a duration.
func (s ServiceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// AnalyzeBase returns the analyze service URL, falling back to BaseURL.
func (s ServiceConfig) AnalyzeBase() string {
	if s.AnalyzeURL != "" {
		return s.AnalyzeURL
	}
	return s.BaseURL
}

// PredictDefault holds the prediction parameters used when a request omits them.
type PredictDefault struct {
	Language string `json:"language,omitempty"`
	Style    string `json:"style,omitempty"`
	Model    string `json:"model,omitempty"`
	Period   string `json:"period,omitempty"`
}

// envOverrides mirrors the scalar settings that may come from the environment,
// e.g. PALMSCAN_SERVICE_BASE_URL or PALMSCAN_LOG_LEVEL.
type envOverrides struct {
	PreviewMaxChars  int      `envconfig:"PREVIEW_MAX_CHARS"`
	VocabularyPath   string   `envconfig:"VOCABULARY_PATH"`
	WatchVocabulary  bool     `envconfig:"WATCH_VOCABULARY"`
	Locale           string   `envconfig:"LOCALE"`
	Timezone         string   `envconfig:"TIMEZONE"`
	AllowUnsafePaths bool     `envconfig:"ALLOW_UNSAFE_PATHS"`
	DBMaxOpenConns   int      `envconfig:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns   int      `envconfig:"DB_MAX_IDLE_CONNS"`
	DisabledTools    []string `envconfig:"DISABLED_TOOLS"`
	LogLevel         string   `envconfig:"LOG_LEVEL"`
	LogPretty        bool     `envconfig:"LOG_PRETTY"`

	ServiceBaseURL    string `envconfig:"SERVICE_BASE_URL"`
	ServiceAnalyzeURL string `envconfig:"SERVICE_ANALYZE_URL"`
	ServiceTimeout    int    `envconfig:"SERVICE_TIMEOUT_SECONDS"`
	ServiceToken      string `envconfig:"SERVICE_TOKEN"`
	ServiceTokenEnv   string `envconfig:"SERVICE_TOKEN_ENV"`

	DefaultLanguage string `envconfig:"DEFAULT_LANGUAGE"`
	DefaultStyle    string `envconfig:"DEFAULT_STYLE"`
	DefaultModel    string `envconfig:"DEFAULT_MODEL"`
	DefaultPeriod   string `envconfig:"DEFAULT_PERIOD"`
}

func (e envOverrides) config() *Config {
	return &Config{
		PreviewMaxChars:  e.PreviewMaxChars,
		VocabularyPath:   e.VocabularyPath,
		WatchVocabulary:  e.WatchVocabulary,
		Locale:           e.Locale,
		Timezone:         e.Timezone,
		AllowUnsafePaths: e.AllowUnsafePaths,
		DBMaxOpenConns:   e.DBMaxOpenConns,
		DBMaxIdleConns:   e.DBMaxIdleConns,
		DisabledTools:    e.DisabledTools,
		LogLevel:         e.LogLevel,
		LogPretty:        e.LogPretty,
		Service: ServiceConfig{
			BaseURL:        e.ServiceBaseURL,
			AnalyzeURL:     e.ServiceAnalyzeURL,
			TimeoutSeconds: e.ServiceTimeout,
			Token:          e.ServiceToken,
			TokenEnv:       e.ServiceTokenEnv,
		},
		Defaults: PredictDefault{
			Language: e.DefaultLanguage,
			Style:    e.DefaultStyle,
			Model:    e.DefaultModel,
			Period:   e.DefaultPeriod,
		},
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		PreviewMaxChars: 160,
		Locale:          "en",
		Timezone:        "UTC",
		LogLevel:        "info",
		Service: ServiceConfig{
			TimeoutSeconds: 60,
			TokenEnv:       "PALMSCAN_TOKEN",
		},
		Defaults: PredictDefault{
			Language: "th",
			Style:    "friendly",
			Model:    "deepseek-chat",
			Period:   "today",
		},
	}
}

// Load loads configuration from baseDir/config.json and applies environment
// overrides. Returns default config (plus overrides) if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.palmscan.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}

	env, err := loadEnv()
	if err != nil {
		return nil, err
	}
	cfg = Merge(cfg, env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work at runtime.
func (c *Config) Validate() error {
	if c.PreviewMaxChars < 0 {
		return fmt.Errorf("preview_max_chars must be >= 0, got %d", c.PreviewMaxChars)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured timezone, or UTC if it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func loadEnv() (*Config, error) {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	return env.config(), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.PreviewMaxChars = pick(overlay.PreviewMaxChars, base.PreviewMaxChars)
	result.VocabularyPath = pick(overlay.VocabularyPath, base.VocabularyPath)
	result.Locale = pick(overlay.Locale, base.Locale)
	result.Timezone = pick(overlay.Timezone, base.Timezone)
	result.DBMaxOpenConns = pick(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pick(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.LogLevel = pick(overlay.LogLevel, base.LogLevel)

	result.Service = ServiceConfig{
		BaseURL:        pick(overlay.Service.BaseURL, base.Service.BaseURL),
		AnalyzeURL:     pick(overlay.Service.AnalyzeURL, base.Service.AnalyzeURL),
		TimeoutSeconds: pick(overlay.Service.TimeoutSeconds, base.Service.TimeoutSeconds),
		Token:          pick(overlay.Service.Token, base.Service.Token),
		TokenEnv:       pick(overlay.Service.TokenEnv, base.Service.TokenEnv),
	}
	result.Defaults = PredictDefault{
		Language: pick(overlay.Defaults.Language, base.Defaults.Language),
		Style:    pick(overlay.Defaults.Style, base.Defaults.Style),
		Model:    pick(overlay.Defaults.Model, base.Defaults.Model),
		Period:   pick(overlay.Defaults.Period, base.Defaults.Period),
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths
	result.WatchVocabulary = base.WatchVocabulary || overlay.WatchVocabulary
	result.LogPretty = base.LogPretty || overlay.LogPretty

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s != "" && !seen[s] {
				seen[s] = true
				result = append(result, s)
			}
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
