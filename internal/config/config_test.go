package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Model.Provider != "command" {
		t.Errorf("expected provider 'command', got %q", cfg.Model.Provider)
	}
	if cfg.Model.Name != "phi3:3.8b" {
		t.Errorf("expected model 'phi3:3.8b', got %q", cfg.Model.Name)
	}
	if cfg.Model.Command != "ollama" {
		t.Errorf("expected command 'ollama', got %q", cfg.Model.Command)
	}
	if cfg.Model.Timeout != 0 {
		t.Errorf("expected no timeout by default, got %d", cfg.Model.Timeout)
	}
	if cfg.Journal.Enabled {
		t.Error("expected journal to be disabled by default")
	}
}

func TestDefaultPromptTemplate(t *testing.T) {
	tmpl := Default().Prompt.Template
	if !strings.HasPrefix(tmpl, "Analyze the following executive townhall question/comment.\n") {
		t.Errorf("unexpected template start: %q", tmpl)
	}
	if !strings.HasSuffix(tmpl, "Question/Comment: \"{comment}\"\n") {
		t.Errorf("unexpected template end: %q", tmpl)
	}
	if !strings.Contains(tmpl, `keys "summary" and "theme"`) {
		t.Error("expected template to name the summary and theme keys")
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
model:
  provider: ollama
  name: llama3.2:1b
journal:
  enabled: true
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Model.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.Model.Provider)
	}
	if cfg.Model.Name != "llama3.2:1b" {
		t.Errorf("expected model 'llama3.2:1b', got %q", cfg.Model.Name)
	}
	if !cfg.Journal.Enabled {
		t.Error("expected journal enabled")
	}
	// Defaults should still be set for unspecified fields
	if cfg.Model.OllamaURL != "http://localhost:11434" {
		t.Errorf("expected default ollama_url, got %q", cfg.Model.OllamaURL)
	}
	if !strings.Contains(cfg.Prompt.Template, CommentPlaceholder) {
		t.Error("expected default prompt template to survive overlay")
	}
}

func TestParseRejectsTemplateWithoutPlaceholder(t *testing.T) {
	data := []byte(`
prompt:
  template: "Summarize this."
`)
	if _, err := parse(data); err == nil {
		t.Fatal("expected error for template without placeholder")
	}
}

func TestParseRejectsUnknownProvider(t *testing.T) {
	if _, err := parse([]byte("model:\n  provider: llamafile\n")); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("model:\n  name: gemma2:2b\n"), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Model.Name != "gemma2:2b" {
		t.Errorf("expected model from file, got %q", cfg.Model.Name)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model.Name != "phi3:3.8b" {
		t.Errorf("expected default model, got %q", cfg.Model.Name)
	}
}

func TestResolveConfigPathMissingExplicit(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestGetPaths(t *testing.T) {
	cfg := &Config{}
	if cfg.GetOutputPath() != "output.csv" {
		t.Errorf("expected 'output.csv', got %q", cfg.GetOutputPath())
	}
	if cfg.GetDataDir() == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if got := cfg.GetJournalPath(); got != filepath.Join("/custom/path", "townhall.db") {
		t.Errorf("unexpected journal path %q", got)
	}
	cfg.Journal.Path = "/tmp/j.db"
	if cfg.GetJournalPath() != "/tmp/j.db" {
		t.Errorf("expected explicit journal path, got %q", cfg.GetJournalPath())
	}
}
