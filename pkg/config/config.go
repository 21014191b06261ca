// Package config loads the scancat configuration file.
//
// The file lives at ~/.config/scancat/config.toml and holds the storage
// root, cache settings, and per-dataset raw-data roots. Every value has
// a default, so a missing file yields a fully usable configuration.
package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/scancat/scancat/pkg/checksum"
	"github.com/scancat/scancat/pkg/errors"
)

// Config is the decoded configuration.
type Config struct {
	Storage  StorageConfig            `toml:"storage"`
	Cache    CacheConfig              `toml:"cache"`
	Datasets map[string]DatasetConfig `toml:"datasets"`
}

// StorageConfig locates the content-addressed blob store.
type StorageConfig struct {
	Root string `toml:"root"`
}

// CacheConfig controls the cache index.
type CacheConfig struct {
	Dir     string      `toml:"dir"`
	Backend string      `toml:"backend"` // file, redis, none
	Verify  string      `toml:"verify"`  // off, warn, strict
	Redis   RedisConfig `toml:"redis"`
}

// RedisConfig configures the redis cache backend.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// DatasetConfig holds settings for one dataset.
type DatasetConfig struct {
	// Root is the directory holding the dataset's raw files.
	Root string `toml:"root"`
}

// Path returns the config file location, honoring SCANCAT_CONFIG.
func Path() string {
	if p := os.Getenv("SCANCAT_CONFIG"); p != "" {
		return p
	}
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "scancat", "config.toml")
}

// Default returns the configuration used when no file exists.
func Default() Config {
	data := dataDir()
	return Config{
		Storage: StorageConfig{Root: filepath.Join(data, "storage")},
		Cache: CacheConfig{
			Dir:     filepath.Join(data, "cache"),
			Backend: "file",
			Verify:  "warn",
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
		Datasets: map[string]DatasetConfig{},
	}
}

func dataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "scancat")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".local", "share", "scancat")
}

// Load reads the file at path, filling defaults for absent values. A
// missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parsing %s", path)
	}
	if cfg.Datasets == nil {
		cfg.Datasets = map[string]DatasetConfig{}
	}
	return cfg, cfg.Validate()
}

// Validate rejects values outside the known enumerations.
func (c Config) Validate() error {
	switch c.Cache.Backend {
	case "file", "redis", "none":
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"cache.backend must be file, redis, or none, got %q", c.Cache.Backend)
	}
	if _, err := checksum.ParseLevel(c.Cache.Verify); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "cache.verify")
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.backend is redis but cache.redis.addr is empty")
	}
	return nil
}

// VerifyLevel returns the parsed cache.verify setting.
func (c Config) VerifyLevel() checksum.Level {
	lvl, err := checksum.ParseLevel(c.Cache.Verify)
	if err != nil {
		return checksum.Warn
	}
	return lvl
}

// DatasetRoot returns the configured raw-data root for a dataset, or ""
// when none is set.
func (c Config) DatasetRoot(name string) string {
	return c.Datasets[name].Root
}

// Write marshals the configuration to path, creating parent directories.
func (c Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(c); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// ConfiguredDatasets lists the dataset names with a root set, sorted.
func (c Config) ConfiguredDatasets() []string {
	names := make([]string, 0, len(c.Datasets))
	for name, dc := range c.Datasets {
		if dc.Root != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
