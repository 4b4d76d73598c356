package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/mmp/oem"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("got %+v, want default", cfg)
	}
	if cfg.Source.URL != oem.ISSURL {
		t.Errorf("default URL = %q", cfg.Source.URL)
	}
	if cfg.Parse.MaxLines != 0 {
		t.Errorf("default max_lines = %d, want 0 (unlimited)", cfg.Parse.MaxLines)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := Default()
	cfg.Source.URL = "http://example.com/ephem.txt"
	cfg.Source.HTTPTimeout = "5s"
	cfg.Parse.MaxLines = 60
	cfg.Store.Path = "/var/lib/oem"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("got %+v, want %+v", got, cfg)
	}
	if d, _ := got.Source.Timeout(); d != 5*time.Second {
		t.Errorf("timeout = %v", d)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("parse:\n  max_lines: 50\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Parse.MaxLines != 50 {
		t.Errorf("max_lines = %d", cfg.Parse.MaxLines)
	}
	if cfg.Source.URL != oem.ISSURL || cfg.Source.HTTPTimeout != "60s" {
		t.Errorf("defaults lost: %+v", cfg.Source)
	}
}

func TestLoadInvalid(t *testing.T) {
	for name, contents := range map[string]string{
		"yaml":      "source: [not a map\n",
		"timeout":   "source:\n  http_timeout: soon\n",
		"max_lines": "parse:\n  max_lines: -1\n",
	} {
		path := filepath.Join(t.TempDir(), name+".yaml")
		if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
