/*
Package config manages the TOML config of the MarioServe engine and its
front ends.
*/
package config

import (
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mariohealth/marioserve/internal/utils"
	"github.com/mariohealth/marioserve/pkg/engine"
	"github.com/mariohealth/marioserve/pkg/fuzzy"
	"github.com/mariohealth/marioserve/pkg/rank"
	"github.com/mariohealth/marioserve/pkg/source"
	"github.com/mariohealth/marioserve/pkg/suggest"
)

// FileName is the config file name inside the config dir
const FileName = "marioserve.toml"

// Config holds the entire config structure
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Suggest SuggestConfig `toml:"suggest"`
	Spell   SpellConfig   `toml:"spell"`
	Async   AsyncConfig   `toml:"async"`
	Ranker  RankerConfig  `toml:"ranker"`
	Data    DataConfig    `toml:"data"`
	HTTP    HTTPConfig    `toml:"http"`
}

// ServerConfig bounds IPC requests.
type ServerConfig struct {
	MaxLimit        int `toml:"max_limit"`
	MinQuery        int `toml:"min_query"`
	MaxQuery        int `toml:"max_query"`
	SessionPoolSize int `toml:"session_pool_size"`
}

// SuggestConfig tunes autocomplete scoring.
type SuggestConfig struct {
	DefaultLimit     int     `toml:"default_limit"`
	MinQueryLen      int     `toml:"min_query_len"`
	ContainmentBonus float64 `toml:"containment_bonus"`
	MinSimilarity    float64 `toml:"min_similarity"`
	CacheSize        int     `toml:"cache_size"`
}

// SpellConfig tunes "did you mean" corrections.
type SpellConfig struct {
	Threshold   float64 `toml:"threshold"`
	MinInputLen int     `toml:"min_input_len"`
}

// AsyncConfig controls keystroke debouncing.
type AsyncConfig struct {
	DebounceMs int `toml:"debounce_ms"`
	TimeoutMs  int `toml:"timeout_ms"`
}

// RankerConfig holds paging and best value weights.
type RankerConfig struct {
	DefaultPageSize    int     `toml:"default_page_size"`
	MaxPageSize        int     `toml:"max_page_size"`
	PriceWeight        float64 `toml:"price_weight"`
	SavingsWeight      float64 `toml:"savings_weight"`
	DefaultMaxDistance float64 `toml:"default_max_distance"`
}

// DataConfig locates the data provider. BaseURL wins over Path when set.
type DataConfig struct {
	Path               string `toml:"path"`
	BaseURL            string `toml:"base_url"`
	VocabularyEndpoint string `toml:"vocabulary_endpoint"`
	CandidatesEndpoint string `toml:"candidates_endpoint"`
	RefreshIntervalS   int    `toml:"refresh_interval_s"`
	HTTPTimeoutS       int    `toml:"http_timeout_s"`
}

// HTTPConfig holds the HTTP API listener options.
type HTTPConfig struct {
	Addr string `toml:"addr"`
	Mode string `toml:"mode"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	so := suggest.DefaultOptions()
	rc := rank.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			MaxLimit:        64,
			MinQuery:        1,
			MaxQuery:        120,
			SessionPoolSize: 16,
		},
		Suggest: SuggestConfig{
			DefaultLimit:     8,
			MinQueryLen:      so.MinQueryLen,
			ContainmentBonus: so.ContainmentBonus,
			MinSimilarity:    so.MinSimilarity,
			CacheSize:        so.CacheSize,
		},
		Spell: SpellConfig{
			Threshold:   fuzzy.DefaultThreshold,
			MinInputLen: fuzzy.DefaultMinInputLen,
		},
		Async: AsyncConfig{
			DebounceMs: 300,
			TimeoutMs:  5000,
		},
		Ranker: RankerConfig{
			DefaultPageSize:    rc.DefaultPageSize,
			MaxPageSize:        rc.MaxPageSize,
			PriceWeight:        rc.PriceWeight,
			SavingsWeight:      rc.SavingsWeight,
			DefaultMaxDistance: rank.DefaultMaxDistance,
		},
		Data: DataConfig{
			Path:               "data/vocabulary.json",
			VocabularyEndpoint: "/api/v1/vocabulary",
			CandidatesEndpoint: "/api/v1/search",
			RefreshIntervalS:   0,
			HTTPTimeoutS:       10,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
			Mode: "release",
		},
	}
}

// EngineOptions converts the config into engine options
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		Suggest: suggest.Options{
			ContainmentBonus: c.Suggest.ContainmentBonus,
			MinSimilarity:    c.Suggest.MinSimilarity,
			MinQueryLen:      c.Suggest.MinQueryLen,
			CacheSize:        c.Suggest.CacheSize,
		},
		Ranker: rank.Config{
			DefaultPageSize: c.Ranker.DefaultPageSize,
			MaxPageSize:     c.Ranker.MaxPageSize,
			PriceWeight:     c.Ranker.PriceWeight,
			SavingsWeight:   c.Ranker.SavingsWeight,
		},
		SpellThreshold:   c.Spell.Threshold,
		SpellMinInputLen: c.Spell.MinInputLen,
		RefreshInterval:  time.Duration(c.Data.RefreshIntervalS) * time.Second,
	}
}

// FilterSpec returns the default filter with the configured radius
func (c *Config) FilterSpec() rank.FilterSpec {
	spec := rank.DefaultFilterSpec()
	if c.Ranker.DefaultMaxDistance > 0 {
		spec = spec.WithMaxDistance(c.Ranker.DefaultMaxDistance)
	}
	return spec
}

// Debounce returns the keystroke debounce delay
func (c *Config) Debounce() time.Duration {
	return time.Duration(max(c.Async.DebounceMs, 0)) * time.Millisecond
}

// LookupTimeout returns the per lookup timeout, 0 for none
func (c *Config) LookupTimeout() time.Duration {
	return time.Duration(max(c.Async.TimeoutMs, 0)) * time.Millisecond
}

// NewSource builds the configured data source. dataPath, when non-empty,
// overrides the configured snapshot path; a base URL selects HTTP.
func (c *Config) NewSource(dataPath string, coercer *source.Coercer) source.Source {
	if dataPath == "" && c.Data.BaseURL != "" {
		return source.NewHTTPSource(source.HTTPConfig{
			BaseURL:            c.Data.BaseURL,
			VocabularyEndpoint: c.Data.VocabularyEndpoint,
			CandidatesEndpoint: c.Data.CandidatesEndpoint,
			Timeout:            time.Duration(c.Data.HTTPTimeoutS) * time.Second,
		}, coercer)
	}
	if dataPath == "" {
		dataPath = c.Data.Path
	}
	if pr, err := utils.NewPathResolver(); err == nil {
		dataPath = pr.GetDataFile(dataPath)
	}
	return source.NewFileSource(dataPath, coercer)
}

// GetDefaultConfigPath returns the default path for marioserve.toml
func GetDefaultConfigPath() (string, error) {
	pr, err := utils.NewPathResolver()
	if err != nil {
		return "", err
	}
	return pr.GetConfigPath(FileName)
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from the -config flag
// 2. Default path: [UserConfigDir]/marioserve/marioserve.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if utils.FileExists(customConfigPath) {
			config, err := LoadConfig(customConfigPath)
			if err == nil {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
			log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
		} else {
			log.Warnf("Custom config file not found at %s. Trying default path...", customConfigPath)
		}
	}

	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}
	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)
	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}
	return LoadConfig(configPath)
}

// LoadConfig loads from a TOML file. Keys missing from the file keep their
// defaults; a file with bad values is recovered section by section.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse picks every well-typed value out of a file that failed
// to decode as a whole
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractInts(section, map[string]*int{
			"max_limit":         &config.Server.MaxLimit,
			"min_query":         &config.Server.MinQuery,
			"max_query":         &config.Server.MaxQuery,
			"session_pool_size": &config.Server.SessionPoolSize,
		})
	}
	if section, ok := utils.ExtractSection(tempConfig, "suggest"); ok {
		extractInts(section, map[string]*int{
			"default_limit": &config.Suggest.DefaultLimit,
			"min_query_len": &config.Suggest.MinQueryLen,
			"cache_size":    &config.Suggest.CacheSize,
		})
		extractFloats(section, map[string]*float64{
			"containment_bonus": &config.Suggest.ContainmentBonus,
			"min_similarity":    &config.Suggest.MinSimilarity,
		})
	}
	if section, ok := utils.ExtractSection(tempConfig, "spell"); ok {
		extractInts(section, map[string]*int{"min_input_len": &config.Spell.MinInputLen})
		extractFloats(section, map[string]*float64{"threshold": &config.Spell.Threshold})
	}
	if section, ok := utils.ExtractSection(tempConfig, "async"); ok {
		extractInts(section, map[string]*int{
			"debounce_ms": &config.Async.DebounceMs,
			"timeout_ms":  &config.Async.TimeoutMs,
		})
	}
	if section, ok := utils.ExtractSection(tempConfig, "ranker"); ok {
		extractInts(section, map[string]*int{
			"default_page_size": &config.Ranker.DefaultPageSize,
			"max_page_size":     &config.Ranker.MaxPageSize,
		})
		extractFloats(section, map[string]*float64{
			"price_weight":         &config.Ranker.PriceWeight,
			"savings_weight":       &config.Ranker.SavingsWeight,
			"default_max_distance": &config.Ranker.DefaultMaxDistance,
		})
	}
	if section, ok := utils.ExtractSection(tempConfig, "data"); ok {
		extractStrings(section, map[string]*string{
			"path":                &config.Data.Path,
			"base_url":            &config.Data.BaseURL,
			"vocabulary_endpoint": &config.Data.VocabularyEndpoint,
			"candidates_endpoint": &config.Data.CandidatesEndpoint,
		})
		extractInts(section, map[string]*int{
			"refresh_interval_s": &config.Data.RefreshIntervalS,
			"http_timeout_s":     &config.Data.HTTPTimeoutS,
		})
	}
	if section, ok := utils.ExtractSection(tempConfig, "http"); ok {
		extractStrings(section, map[string]*string{
			"addr": &config.HTTP.Addr,
			"mode": &config.HTTP.Mode,
		})
	}
	return config, nil
}

func extractInts(data map[string]any, fields map[string]*int) {
	for key, dst := range fields {
		if val, ok := utils.ExtractInt64(data, key); ok {
			*dst = val
		}
	}
}

func extractFloats(data map[string]any, fields map[string]*float64) {
	for key, dst := range fields {
		if val, ok := utils.ExtractFloat64(data, key); ok {
			*dst = val
		}
	}
}

func extractStrings(data map[string]any, fields map[string]*string) {
	for key, dst := range fields {
		if val, ok := utils.ExtractString(data, key); ok {
			*dst = val
		}
	}
}

// RebuildConfigFile force creates a new marioserve.toml at the default path
func RebuildConfigFile() (string, error) {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return "", err
	}
	if err := utils.EnsureDir(filepath.Dir(defaultPath)); err != nil {
		return "", err
	}
	return defaultPath, SaveConfig(DefaultConfig(), defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// Update changes the IPC limits and saves to file. Nil arguments are left
// unchanged.
func (c *Config) Update(configPath string, maxLimit, minQuery, maxQuery *int) error {
	if maxLimit != nil {
		c.Server.MaxLimit = *maxLimit
	}
	if minQuery != nil {
		c.Server.MinQuery = *minQuery
	}
	if maxQuery != nil {
		c.Server.MaxQuery = *maxQuery
	}
	return SaveConfig(c, configPath)
}
