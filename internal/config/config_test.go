package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := writeConfig(t, `
remote:
  url: https://example.supabase.co
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Monitor.Interval() != 5*time.Minute {
		t.Fatalf("default interval = %v", cfg.Monitor.Interval())
	}
	if cfg.Monitor.Reconnect() != 30*time.Second {
		t.Fatalf("default reconnect = %v", cfg.Monitor.Reconnect())
	}
	if cfg.Monitor.Settle() != 3*time.Second {
		t.Fatalf("default settle = %v", cfg.Monitor.Settle())
	}
	if cfg.Storage.Path != DefaultStoragePath {
		t.Fatalf("default storage path = %q", cfg.Storage.Path)
	}
	if cfg.Probe.Address != DefaultProbeAddress || cfg.Probe.Timeout() != 3*time.Second {
		t.Fatalf("default probe = %+v", cfg.Probe)
	}
}

func TestLoadFullConfig(t *testing.T) {
	t.Setenv("RADIOWATCH_TEST_KEY", "secret-anon-key")

	dir := writeConfig(t, `
monitor:
  interval_minutes: 10
  show_browser: true
  reconnect_seconds: 15
  settle_ms: 500
storage:
  path: /tmp/radiowatch-test.db
  report_path: /tmp/radiowatch-report.txt
remote:
  url: https://example.supabase.co
  api_key_env: RADIOWATCH_TEST_KEY
probe:
  address: 1.1.1.1:53
  timeout_seconds: 5
normalizer:
  extra_markers:
    - "^publicidade$"
stations:
  - name: Club FM Recife
    url: https://clubefm.com.br/recife
    active: true
  - name: Old FM
    url: https://example.com
    active: false
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Monitor.Interval() != 10*time.Minute || !cfg.Monitor.ShowBrowser {
		t.Fatalf("monitor not parsed: %+v", cfg.Monitor)
	}
	if cfg.Remote.APIKey != "secret-anon-key" {
		t.Fatalf("api key not resolved from env")
	}
	if len(cfg.Normalizer.ExtraMarkers) != 1 {
		t.Fatalf("extra markers not parsed")
	}
	if len(cfg.Stations) != 2 || !cfg.Stations[0].Active || cfg.Stations[1].Active {
		t.Fatalf("stations not parsed: %+v", cfg.Stations)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"no remote and no active fallback",
			"stations:\n  - name: X FM\n    url: https://x\n    active: false\n",
			"fallback station",
		},
		{
			"bad remote url",
			"remote:\n  url: '::not a url'\n",
			"remote.url",
		},
		{
			"station missing url",
			"remote:\n  url: https://example.supabase.co\nstations:\n  - name: X FM\n",
			"stations",
		},
		{
			"interval below minimum",
			"monitor:\n  interval_minutes: -1\nremote:\n  url: https://example.supabase.co\n",
			"interval_minutes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeConfig(t, tt.content)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected error for missing config file")
	}
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}
