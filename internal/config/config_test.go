package config

import (
	"path/filepath"
	"testing"
)

func TestStoreWritesDefaultOnFirstUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	driver := NewYAML(path)

	store, err := NewStore(driver)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if ok, _ := driver.Exists(); !ok {
		t.Fatal("default config was not written")
	}

	cfg, err := store.GetConfig()
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.Desktops != defaultConfig.Desktops {
		t.Fatalf("desktops = %d, want %d", cfg.Desktops, defaultConfig.Desktops)
	}
	if cfg.Theme.ActiveColor != defaultConfig.Theme.ActiveColor {
		t.Fatalf("theme did not round-trip: %+v", cfg.Theme)
	}
}

func TestStoreUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	store, err := NewStore(NewYAML(path))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	err = store.UpdateConfig(func(cfg Config) (Config, error) {
		cfg.Desktops = 9
		cfg.FocusFollows = true
		return cfg, nil
	})
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}

	cfg, err := store.GetConfig()
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.Desktops != 9 || !cfg.FocusFollows {
		t.Fatalf("update lost: %+v", cfg)
	}
}

func TestOptionsConversion(t *testing.T) {
	cfg := defaultConfig
	cfg.Desktops = 6
	cfg.Theme.ActiveColor = "#102030"

	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if opts.Desktops != 6 {
		t.Fatalf("desktops = %d", opts.Desktops)
	}
	if opts.Theme.ActiveColor != 0x102030 {
		t.Fatalf("active color = %#x", opts.Theme.ActiveColor)
	}
	if opts.Theme.BorderWidth != 2 || opts.Theme.TitleHeight != 22 {
		t.Fatalf("theme metrics = %+v", opts.Theme)
	}
}

func TestOptionsRejectsMalformedColor(t *testing.T) {
	cfg := defaultConfig
	cfg.Theme.UrgentColor = "red"
	if _, err := cfg.Options(); err == nil {
		t.Fatal("malformed color accepted")
	}
}

func TestOptionsZeroConfigFallsBack(t *testing.T) {
	opts, err := Config{}.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if opts.Desktops == 0 {
		t.Fatal("zero desktops not defaulted")
	}
	if opts.Theme.FontName == "" {
		t.Fatal("font not defaulted")
	}
}
