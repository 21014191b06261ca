package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/scancat/scancat/pkg/checksum"
	"github.com/scancat/scancat/pkg/errors"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.Backend != "file" {
		t.Errorf("Cache.Backend = %q, want file", cfg.Cache.Backend)
	}
	if cfg.Cache.Verify != "warn" {
		t.Errorf("Cache.Verify = %q, want warn", cfg.Cache.Verify)
	}
	if cfg.Storage.Root == "" {
		t.Error("Storage.Root is empty")
	}
	if cfg.Datasets == nil {
		t.Error("Datasets map is nil")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[storage]
root = "/srv/scancat/storage"

[cache]
dir = "/srv/scancat/cache"
backend = "redis"
verify = "strict"

[cache.redis]
addr = "redis.internal:6379"
db = 2

[datasets.ctich]
root = "/data/ct-ich"

[datasets.verse]
root = "/data/verse"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Root != "/srv/scancat/storage" {
		t.Errorf("Storage.Root = %q", cfg.Storage.Root)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.Redis.Addr != "redis.internal:6379" || cfg.Cache.Redis.DB != 2 {
		t.Errorf("cache config = %+v", cfg.Cache)
	}
	if got := cfg.VerifyLevel(); got != checksum.Strict {
		t.Errorf("VerifyLevel() = %v, want strict", got)
	}
	if got := cfg.DatasetRoot("ctich"); got != "/data/ct-ich" {
		t.Errorf("DatasetRoot(ctich) = %q", got)
	}
	if got := cfg.DatasetRoot("unknown"); got != "" {
		t.Errorf("DatasetRoot(unknown) = %q, want empty", got)
	}
	if got := cfg.ConfiguredDatasets(); len(got) != 2 || got[0] != "ctich" || got[1] != "verse" {
		t.Errorf("ConfiguredDatasets() = %v", got)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[datasets.medseg9]\nroot = \"/data/medseg9\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.Backend != "file" {
		t.Errorf("Cache.Backend = %q, want default file", cfg.Cache.Backend)
	}
	if got := cfg.DatasetRoot("medseg9"); got != "/data/medseg9" {
		t.Errorf("DatasetRoot(medseg9) = %q", got)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad backend", "[cache]\nbackend = \"memcached\"\n"},
		{"bad verify", "[cache]\nverify = \"paranoid\"\n"},
		{"redis without addr", "[cache]\nbackend = \"redis\"\n[cache.redis]\naddr = \"\"\n"},
		{"not toml", "{\"cache\": {}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("Load() error = %v, want %s", err, errors.ErrCodeInvalidConfig)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.Storage.Root = "/srv/storage"
	cfg.Datasets["cc359"] = DatasetConfig{Root: "/data/cc359"}
	if err := cfg.Write(path); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Storage.Root != "/srv/storage" {
		t.Errorf("Storage.Root = %q", got.Storage.Root)
	}
	if got.DatasetRoot("cc359") != "/data/cc359" {
		t.Errorf("DatasetRoot(cc359) = %q", got.DatasetRoot("cc359"))
	}
}

func TestPathEnvOverride(t *testing.T) {
	t.Setenv("SCANCAT_CONFIG", "/tmp/custom.toml")
	if got := Path(); got != "/tmp/custom.toml" {
		t.Errorf("Path() = %q", got)
	}
}
