package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestFlagSet(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	fs := flag.NewFlagSet("bronze-test", flag.ContinueOnError)
	fs.String("url", "", "")
	fs.String("source", defaultSource, "")
	fs.Duration("timeout", defaultTimeout, "")
	fs.String("format", defaultFormat, "")
	fs.String("output", "", "")
	fs.Bool("serve", false, "")
	fs.Int("api-port", defaultAPIPort, "")
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadConfig("", newTestFlagSet(t, "-url", "http://example.com/data"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.URL != "http://example.com/data" {
		t.Errorf("url = %q", cfg.URL)
	}
	if cfg.Timeout != 20*time.Second {
		t.Errorf("timeout = %v, want 20s", cfg.Timeout)
	}
	if cfg.Source != defaultSource {
		t.Errorf("source = %q, want %q", cfg.Source, defaultSource)
	}
	if cfg.Format != formatNDJSON {
		t.Errorf("format = %q, want ndjson", cfg.Format)
	}
	if cfg.APIAddr != "127.0.0.1:3000" {
		t.Errorf("api addr = %q, want 127.0.0.1:3000", cfg.APIAddr)
	}
	if cfg.ConfigPath != "" {
		t.Errorf("config path = %q, want empty when no file exists", cfg.ConfigPath)
	}
	if !strings.HasSuffix(cfg.LogFile, filepath.Join(".local", "state", "bronze", "bronze.log")) {
		t.Errorf("log file = %q, want default state path", cfg.LogFile)
	}
}

func TestLoadConfig_FileEnvAndFlags(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, "bronze.yml")
	content := strings.Join([]string{
		"url: http://file.example/data",
		"source: from-file",
		"timeout: 5s",
		"format: yaml",
		"output: ~/out/rows.yml",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BRONZE_SOURCE", "from-env")

	cfg, err := loadConfig(path, newTestFlagSet(t, "-timeout", "3s"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.URL != "http://file.example/data" {
		t.Errorf("url = %q, want file value", cfg.URL)
	}
	if cfg.Source != "from-env" {
		t.Errorf("source = %q, want env override", cfg.Source)
	}
	if cfg.Timeout != 3*time.Second {
		t.Errorf("timeout = %v, want flag override 3s", cfg.Timeout)
	}
	if cfg.Format != formatYAML {
		t.Errorf("format = %q, want yaml", cfg.Format)
	}
	if cfg.Output != filepath.Join(home, "out", "rows.yml") {
		t.Errorf("output = %q, want expanded home path", cfg.Output)
	}
	if cfg.ConfigPath != path {
		t.Errorf("config path = %q, want %q", cfg.ConfigPath, path)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing url", nil},
		{"bad format", []string{"-url", "http://x", "-format", "csv"}},
		{"bad port", []string{"-serve", "-api-port", "70000"}},
		{"empty source", []string{"-url", "http://x", "-source", " "}},
		{"zero timeout", []string{"-url", "http://x", "-timeout", "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			if _, err := loadConfig("", newTestFlagSet(t, tt.args...)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadConfig_ServeWithoutURL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadConfig("", newTestFlagSet(t, "-serve", "-api-port", "3100"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !cfg.Serve {
		t.Fatal("serve = false, want true")
	}
	if cfg.APIAddr != "127.0.0.1:3100" {
		t.Fatalf("api addr = %q, want 127.0.0.1:3100", cfg.APIAddr)
	}
}

func TestRenderStartupBanner(t *testing.T) {
	out := renderStartupBanner(appConfig{APIAddr: "127.0.0.1:3000", Timeout: 20 * time.Second})
	for _, want := range []string{"HTTP API", "127.0.0.1:3000", "20s", "default (no file)"} {
		if !strings.Contains(out, want) {
			t.Errorf("banner missing %q", want)
		}
	}
}
