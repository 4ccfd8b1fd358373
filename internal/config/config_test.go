package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "repository: octo/demo\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Repository != "octo/demo" {
		t.Errorf("Repository = %q", cfg.Repository)
	}
	if cfg.Budget != 5000 {
		t.Errorf("Budget = %d, want 5000", cfg.Budget)
	}
	if cfg.PerPage != 100 {
		t.Errorf("PerPage = %d, want 100", cfg.PerPage)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if !filepath.IsAbs(cfg.DatabasePath) {
		t.Errorf("DatabasePath %q not made absolute", cfg.DatabasePath)
	}
	if filepath.Dir(cfg.DatabasePath) != filepath.Dir(path) {
		t.Errorf("relative DatabasePath resolved to %q, want next to config", cfg.DatabasePath)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `repository: octo/demo
database_path: /var/lib/ghmirror/demo.db
budget: 250
per_page: 50
interval_seconds: 60
workers: 2
retry_attempts: 5
journal_dir: /var/lib/ghmirror/conflicts
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabasePath != "/var/lib/ghmirror/demo.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.Budget != 250 || cfg.PerPage != 50 || cfg.Workers != 2 || cfg.RetryAttempts != 5 {
		t.Errorf("explicit values not honored: %+v", cfg)
	}
	if cfg.JournalDir != "/var/lib/ghmirror/conflicts" {
		t.Errorf("JournalDir = %q", cfg.JournalDir)
	}
}

func TestLoadTokenEnvOverride(t *testing.T) {
	path := writeConfig(t, "repository: octo/demo\ngithub_token: from-file\n")

	t.Setenv(EnvGithubToken, "from-env")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GitHubToken != "from-env" {
		t.Errorf("GitHubToken = %q, want env override", cfg.GitHubToken)
	}
}

func TestLoadRejectsBadRepository(t *testing.T) {
	tests := []string{
		"repository: nodash\n",
		"repository: /name\n",
		"repository: owner/\n",
		"",
	}
	for _, content := range tests {
		path := writeConfig(t, content)
		if _, err := Load(path); err == nil {
			t.Errorf("Load accepted config %q", content)
		}
	}
}

func TestLoadRejectsOversizedPage(t *testing.T) {
	path := writeConfig(t, "repository: octo/demo\nper_page: 500\n")
	if _, err := Load(path); err == nil {
		t.Error("Load accepted per_page over the API maximum")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default("octo/demo")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	owner, name := cfg.OwnerName()
	if owner != "octo" || name != "demo" {
		t.Errorf("OwnerName() = %q, %q", owner, name)
	}
}
