package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	SetConfigDir(t.TempDir())
	defer SetConfigDir("")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("missing config must not be an error: %v", err)
	}
	if cfg.Color != "" || cfg.Demangle {
		t.Errorf("zero config expected, got %+v", cfg)
	}
}

func TestLoadParsesToml(t *testing.T) {
	dir := t.TempDir()
	SetConfigDir(dir)
	defer SetConfigDir("")

	content := "color = \"always\"\nhyperlink = false\ndemangle = true\nruntime_dir = \"/custom/run\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Color != "always" || !cfg.Demangle || cfg.RuntimeDir != "/custom/run" {
		t.Errorf("bad parse: %+v", cfg)
	}
	if cfg.Hyperlink == nil || *cfg.Hyperlink {
		t.Errorf("hyperlink should be explicitly false")
	}
}

func TestWantColor(t *testing.T) {
	if !(&Config{Color: "always"}).WantColor(false) {
		t.Error("always must color without a tty")
	}
	if (&Config{Color: "never"}).WantColor(true) {
		t.Error("never must not color on a tty")
	}
	if !(&Config{}).WantColor(true) || (&Config{}).WantColor(false) {
		t.Error("auto must follow the tty")
	}
}

func TestWantHyperlink(t *testing.T) {
	off := false
	if (&Config{Hyperlink: &off}).WantHyperlink(true) {
		t.Error("explicit hyperlink=false must win")
	}
	if !(&Config{}).WantHyperlink(true) {
		t.Error("unset hyperlink follows color")
	}
}
