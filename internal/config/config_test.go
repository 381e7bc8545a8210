package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
graph:
  name: from-file
  token: file-token
sync:
  refresh_interval: 45s
  max_retries: 5
log:
  level: DEBUG
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ROAM_API_TOKEN", "env-token")
	t.Setenv("ROAM_GRAPH", "")
	t.Setenv("ROAM_BASE_URL", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Graph.Name != "from-file" {
		t.Fatalf("name = %q", cfg.Graph.Name)
	}
	if cfg.Graph.Token != "env-token" {
		t.Fatalf("token = %q, env must win", cfg.Graph.Token)
	}
	if cfg.Sync.RefreshInterval != 45*time.Second || cfg.Sync.MaxRetries != 5 {
		t.Fatalf("sync = %+v", cfg.Sync)
	}
	if cfg.Log.Level.Level != slog.LevelDebug {
		t.Fatalf("level = %v", cfg.Log.Level)
	}
	if cfg.State.Path == "" {
		t.Fatal("state path must default")
	}
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("ROAM_GRAPH", "my-graph")
	t.Setenv("ROAM_API_TOKEN", "tok")
	t.Setenv("ROAM_BASE_URL", "http://localhost:9999")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Graph.Name != "my-graph" || cfg.Graph.BaseURL != "http://localhost:9999" {
		t.Fatalf("cfg = %+v", cfg.Graph)
	}
	if cfg.Sync.RefreshInterval != 30*time.Second {
		t.Fatalf("default refresh = %v", cfg.Sync.RefreshInterval)
	}
}

func TestValidateRejectsMissingToken(t *testing.T) {
	cfg := Default()
	cfg.Graph.Name = "g"
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty token must fail validation")
	}
}

func TestValidateRejectsTinyRefreshInterval(t *testing.T) {
	cfg := Default()
	cfg.Graph = GraphConfig{Name: "g", Token: "t"}
	cfg.Sync.RefreshInterval = time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatal("sub-5s refresh must fail validation")
	}
}
