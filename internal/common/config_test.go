package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_DefaultPort(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port default = %d, want %d", cfg.Server.Port, 5000)
	}
}

func TestConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("SUMMARY_PORT", "9090")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d after env override, want %d", cfg.Server.Port, 9090)
	}
}

func TestConfig_DataPathEnvOverride(t *testing.T) {
	t.Setenv("SUMMARY_DATA_PATH", "/var/lib/summary")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Storage.Credentials.Path != "/var/lib/summary/credentials" {
		t.Errorf("Credentials.Path = %q", cfg.Storage.Credentials.Path)
	}
	if cfg.Storage.Digests.Path != "/var/lib/summary/digests" {
		t.Errorf("Digests.Path = %q", cfg.Storage.Digests.Path)
	}
}

func TestConfig_GoogleOAuthEnvOverride(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "env-client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "env-client-secret")
	t.Setenv("GOOGLE_REDIRECT_URI", "https://example.com/cb")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Auth.Google.ClientID != "env-client-id" {
		t.Errorf("ClientID = %q", cfg.Auth.Google.ClientID)
	}
	if cfg.Auth.Google.ClientSecret != "env-client-secret" {
		t.Errorf("ClientSecret = %q", cfg.Auth.Google.ClientSecret)
	}
	if cfg.Auth.RedirectURL != "https://example.com/cb" {
		t.Errorf("RedirectURL = %q", cfg.Auth.RedirectURL)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.toml")
	content := `
environment = "production"

[server]
port = 8443

[digest]
staleness_window = "15m"
sweep_workers = 8
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.IsProduction() {
		t.Error("expected production environment")
	}
	if cfg.Server.Port != 8443 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if got := cfg.Digest.GetStalenessWindow(); got != 15*time.Minute {
		t.Errorf("StalenessWindow = %v", got)
	}
	if cfg.Digest.SweepWorkers != 8 {
		t.Errorf("SweepWorkers = %d", cfg.Digest.SweepWorkers)
	}
	// Untouched sections keep their defaults.
	if cfg.Clients.Gemini.Model != "gemini-2.0-flash" {
		t.Errorf("Gemini.Model = %q", cfg.Clients.Gemini.Model)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
}

func TestLoadConfig_InvalidSweepWorkersReset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.toml")
	if err := os.WriteFile(path, []byte("[digest]\nsweep_workers = -1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Digest.SweepWorkers != 4 {
		t.Errorf("SweepWorkers = %d, want 4", cfg.Digest.SweepWorkers)
	}
}

func TestDurationAccessorsFallBack(t *testing.T) {
	cfg := &Config{}
	if got := cfg.Digest.GetStalenessWindow(); got != DefaultStalenessWindow {
		t.Errorf("GetStalenessWindow() = %v", got)
	}
	if got := cfg.Digest.GetSweepInterval(); got != DefaultSweepInterval {
		t.Errorf("GetSweepInterval() = %v", got)
	}
	if got := cfg.Clients.Google.GetTimeout(); got != 30*time.Second {
		t.Errorf("Google.GetTimeout() = %v", got)
	}
	if got := cfg.Clients.Gemini.GetTimeout(); got != 60*time.Second {
		t.Errorf("Gemini.GetTimeout() = %v", got)
	}
}
