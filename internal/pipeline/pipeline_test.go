package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/townhall/internal/annotate"
	"github.com/TobiSchelling/townhall/internal/config"
	"github.com/TobiSchelling/townhall/internal/database"
)

// mockProvider implements llm.Provider, answering by comment text.
type mockProvider struct {
	answers map[string]string
}

func (m *mockProvider) Generate(_ context.Context, prompt string, _ int) (string, error) {
	for comment, answer := range m.answers {
		if strings.Contains(prompt, `"`+comment+`"`) {
			if answer == "" {
				return "", errors.New("exit status 1")
			}
			return answer, nil
		}
	}
	return "I cannot help with that.", nil
}

func (m *mockProvider) IsConfigured() bool { return true }

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func writeInput(t *testing.T, content string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "comments.csv")
	if err := os.WriteFile(in, []byte(content), 0o644); err != nil {
		t.Fatalf("writing input: %v", err)
	}
	return in, filepath.Join(dir, "output.csv")
}

var provider = &mockProvider{answers: map[string]string{
	"Why no raises this year?": `{"summary":"Why were there no raises this year?","theme":"Compensation"}`,
	"Will the office reopen?":  "```json\n{\"summary\":\"Will the office reopen?\",\"theme\":\"Facilities\"}\n```",
	"Crash me":                 "",
}}

func TestRunWithJournal(t *testing.T) {
	db := openTestDB(t)
	in, out := writeInput(t, "Why no raises this year?\nCrash me\nWhat is the plan?\nWill the office reopen?\n")

	p := NewWithProvider(config.Default(), db, provider, &bytes.Buffer{})
	result, err := p.Run(context.Background(), in, out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RunID == "" {
		t.Fatal("expected a journal run ID")
	}
	if result.Stats.Rows != 4 || result.Stats.ProcessFailures != 1 || result.Stats.ParseFailures != 1 {
		t.Errorf("unexpected stats %+v", result.Stats)
	}
	if len(result.Steps) != 2 || result.Steps[1].Err != nil {
		t.Errorf("unexpected steps %+v", result.Steps)
	}

	run, _ := db.GetRun(result.RunID)
	if run.Status != database.RunCompleted || run.RowCount != 4 || run.FailureCount != 2 {
		t.Errorf("unexpected journal run %+v", run)
	}
	if run.Model != "phi3:3.8b" || run.Provider != "command" {
		t.Errorf("unexpected model/provider %q/%q", run.Model, run.Provider)
	}

	rows, _ := db.GetAnnotations(result.RunID)
	if len(rows) != 4 {
		t.Fatalf("expected 4 journal rows, got %d", len(rows))
	}
	wantStatus := []string{database.StatusOK, database.StatusProcessError, database.StatusParseError, database.StatusOK}
	for i, r := range rows {
		if r.Status != wantStatus[i] {
			t.Errorf("row %d: expected %s, got %s", i+1, wantStatus[i], r.Status)
		}
	}
	if rows[3].Theme != "Facilities" {
		t.Errorf("expected fenced reply to be parsed, got %+v", rows[3])
	}
}

func TestRunWithoutJournal(t *testing.T) {
	in, out := writeInput(t, "Why no raises this year?\n")

	p := NewWithProvider(config.Default(), nil, provider, &bytes.Buffer{})
	result, err := p.Run(context.Background(), in, out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RunID != "" || len(result.Steps) != 1 {
		t.Errorf("expected annotate step only, got %+v", result)
	}

	data, _ := os.ReadFile(out)
	want := "original_question,summary,theme\r\nWhy no raises this year?,Why were there no raises this year?,Compensation\r\n"
	if string(data) != want {
		t.Errorf("expected %q, got %q", want, string(data))
	}
}

func TestRunMissingInputMarksRunFailed(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()

	p := NewWithProvider(config.Default(), db, provider, &bytes.Buffer{})
	result, err := p.Run(context.Background(), filepath.Join(dir, "missing.csv"), filepath.Join(dir, "output.csv"))
	if !errors.Is(err, annotate.ErrInputNotFound) {
		t.Fatalf("expected ErrInputNotFound, got %v", err)
	}

	run, _ := db.GetRun(result.RunID)
	if run == nil || run.Status != database.RunFailed {
		t.Errorf("expected failed journal run, got %+v", run)
	}
}

func TestNewRejectsMissingOpenAIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := config.Default()
	cfg.Model.Provider = "openai"
	if _, err := New(cfg, nil, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error creating openai pipeline without key")
	}
}
