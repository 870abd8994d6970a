package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/TobiSchelling/townhall/internal/annotate"
	"github.com/TobiSchelling/townhall/internal/config"
	"github.com/TobiSchelling/townhall/internal/database"
	"github.com/TobiSchelling/townhall/internal/llm"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a batch run.
type Result struct {
	RunID string
	Stats annotate.Stats
	Steps []StepResult
}

// Pipeline runs one batch: annotate the input table and, when a journal is
// open, record the run in it.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	provider llm.Provider
	out      io.Writer
}

// New creates a pipeline with the provider named in the config. db may be nil.
func New(cfg *config.Config, db *database.DB, out io.Writer) (*Pipeline, error) {
	provider, err := llm.CreateProvider(cfg.Model)
	if err != nil {
		return nil, err
	}
	return NewWithProvider(cfg, db, provider, out), nil
}

// NewWithProvider creates a pipeline around an existing provider.
func NewWithProvider(cfg *config.Config, db *database.DB, provider llm.Provider, out io.Writer) *Pipeline {
	return &Pipeline{cfg: cfg, db: db, provider: provider, out: out}
}

// Run annotates inputPath into outputPath. Only fatal errors are returned;
// row failures are counted in the result.
func (p *Pipeline) Run(ctx context.Context, inputPath, outputPath string) (*Result, error) {
	r := &Result{}

	var observer annotate.Observer
	if p.db != nil {
		runID, err := p.db.StartRun(inputPath, outputPath, p.cfg.Model.Provider, p.modelName())
		if err != nil {
			log.Printf("Journal unavailable, continuing without it: %v", err)
		} else {
			r.RunID = runID
			observer = &journalObserver{db: p.db, runID: runID}
		}
	}

	a := annotate.New(p.provider, annotate.Options{
		Template:  p.cfg.Prompt.Template,
		MaxTokens: p.cfg.Model.MaxTokens,
		Out:       p.out,
		Observer:  observer,
	})

	stats, runErr := a.ProcessFile(ctx, inputPath, outputPath)
	if stats != nil {
		r.Stats = *stats
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Annotate",
		Summary: fmt.Sprintf("Wrote %d rows to %s (%d process failures, %d parse failures)", r.Stats.Rows, outputPath, r.Stats.ProcessFailures, r.Stats.ParseFailures),
		Err:     runErr,
	})

	if r.RunID != "" {
		r.Steps = append(r.Steps, p.finishJournal(r, runErr))
	}

	return r, runErr
}

func (p *Pipeline) finishJournal(r *Result, runErr error) StepResult {
	if err := p.db.FinishRun(r.RunID, r.Stats.Rows, r.Stats.Failures(), runErr); err != nil {
		log.Printf("Error finishing journal run %s: %v", r.RunID, err)
		return StepResult{Name: "Journal", Err: err}
	}
	return StepResult{
		Name:    "Journal",
		Summary: fmt.Sprintf("Recorded run %s in %s", r.RunID, p.db.Path()),
	}
}

func (p *Pipeline) modelName() string {
	if strings.EqualFold(p.cfg.Model.Provider, "openai") {
		return p.cfg.Model.OpenAIModel
	}
	return p.cfg.Model.Name
}

// journalObserver writes every output row to the run journal. Journal
// failures are logged and never stop the batch.
type journalObserver struct {
	db     *database.DB
	runID  string
	failed bool
}

func (j *journalObserver) ObserveRow(_ context.Context, row annotate.RowResult) {
	a := database.Annotation{
		RunID:    j.runID,
		RowIndex: row.Index,
		Comment:  row.Record.Comment,
		Summary:  row.Record.Summary,
		Theme:    row.Record.Theme,
		Status:   database.StatusOK,
	}
	if row.Err != nil {
		a.Status = database.StatusProcessError
		if errors.Is(row.Err, annotate.ErrResponseParse) {
			a.Status = database.StatusParseError
		}
		msg := row.Err.Error()
		a.ErrorText = &msg
	}

	if err := j.db.RecordAnnotation(a); err != nil && !j.failed {
		log.Printf("Error writing to journal (further errors suppressed): %v", err)
		j.failed = true
	}
}
