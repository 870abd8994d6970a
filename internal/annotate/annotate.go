// Package annotate runs each comment of an input table through a language
// model and writes the comment with its read-aloud summary and theme.
package annotate

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/TobiSchelling/townhall/internal/config"
	"github.com/TobiSchelling/townhall/internal/llm"
)

// Header is the first row of every output table.
var Header = []string{"original_question", "summary", "theme"}

const utf8BOM = "\ufeff"

// Record is one row of the output table.
type Record struct {
	Comment string
	Summary string
	Theme   string
}

// Row returns the record in output column order.
func (r Record) Row() []string {
	return []string{r.Comment, r.Summary, r.Theme}
}

// Analysis is the parsed model reply for one comment.
type Analysis struct {
	Summary string
	Theme   string
	// Fields holds the whole parsed object, extra keys included.
	Fields map[string]any
}

// RowResult describes one processed row.
type RowResult struct {
	Index  int // 1-based among non-empty rows
	Record Record
	Err    error
}

// Observer is notified after every row is written.
type Observer interface {
	ObserveRow(ctx context.Context, row RowResult)
}

// Stats summarizes a batch.
type Stats struct {
	Rows            int
	Succeeded       int
	ProcessFailures int
	ParseFailures   int
}

// Failures returns the number of rows written with empty fields because of an error.
func (s Stats) Failures() int {
	return s.ProcessFailures + s.ParseFailures
}

// Options configures an Annotator. Zero values fall back to the built-in
// prompt template and stdout.
type Options struct {
	Template  string
	MaxTokens int
	Out       io.Writer
	Observer  Observer
}

// Annotator analyzes comments one at a time with an LLM provider.
type Annotator struct {
	provider  llm.Provider
	template  string
	maxTokens int
	out       io.Writer
	observer  Observer
}

// New creates an annotator.
func New(provider llm.Provider, opts Options) *Annotator {
	a := &Annotator{
		provider:  provider,
		template:  opts.Template,
		maxTokens: opts.MaxTokens,
		out:       opts.Out,
		observer:  opts.Observer,
	}
	if a.template == "" {
		a.template = config.Default().Prompt.Template
	}
	if a.out == nil {
		a.out = os.Stdout
	}
	return a
}

// BuildPrompt substitutes the comment into the template. The comment is
// inserted verbatim.
func BuildPrompt(template, comment string) string {
	return strings.ReplaceAll(template, config.CommentPlaceholder, comment)
}

// Analyze asks the model about one comment. Failures are reported to the
// annotator's output and returned as *ProcessError or *ParseError.
func (a *Annotator) Analyze(ctx context.Context, comment string) (*Analysis, error) {
	if a.provider == nil {
		err := &ProcessError{Comment: comment, Err: errors.New("no LLM provider available")}
		fmt.Fprintf(a.out, "Error running LLM for comment: %s\n%v\n", comment, err.Err)
		return nil, err
	}

	prompt := BuildPrompt(a.template, comment)

	raw, err := a.provider.Generate(ctx, prompt, a.maxTokens)
	if err != nil {
		fmt.Fprintf(a.out, "Error running LLM for comment: %s\n%v\n", comment, err)
		return nil, &ProcessError{Comment: comment, Err: err}
	}

	fields, err := llm.ParseJSONObject(raw)
	if err != nil {
		cleaned := llm.StripCodeFence(raw)
		fmt.Fprintf(a.out, "Error parsing JSON for comment: %s\nOutput was: %s\n%v\n", comment, cleaned, err)
		return nil, &ParseError{Comment: comment, Raw: raw, Err: err}
	}

	return &Analysis{
		Summary: fieldString(fields, "summary"),
		Theme:   fieldString(fields, "theme"),
		Fields:  fields,
	}, nil
}

// ProcessFile annotates the table at inputPath and writes the result to
// outputPath, replacing any existing file.
func (a *Annotator) ProcessFile(ctx context.Context, inputPath, outputPath string) (*Stats, error) {
	in, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputNotFound, err)
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("creating output: %w", err)
	}

	stats, err := a.Process(ctx, in, out)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("closing output: %w", cerr)
	}
	return stats, err
}

// Process reads comments from the first column of r and writes one output
// row per non-empty input row to w, in input order. Every row is flushed
// as soon as it is written. Row-level model failures never stop the batch;
// only read/write errors and context cancellation do.
func (a *Annotator) Process(ctx context.Context, r io.Reader, w io.Writer) (*Stats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	writer := csv.NewWriter(w)
	writer.UseCRLF = true

	stats := &Stats{}
	if err := writeRow(writer, Header); err != nil {
		return stats, err
	}

	first := true
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("reading input: %w", err)
		}
		if len(row) == 0 {
			continue
		}
		if first {
			row[0] = strings.TrimPrefix(row[0], utf8BOM)
			first = false
		}

		comment := row[0]

		fmt.Fprintln(a.out, "=== Processing Iteration ===")
		fmt.Fprintf(a.out, "Input: %s\n", comment)

		rec := Record{Comment: comment}
		analysis, aerr := a.Analyze(ctx, comment)
		if err := ctx.Err(); err != nil {
			// Interrupted mid-row: leave the row out rather than record a bogus failure.
			return stats, err
		}
		stats.Rows++
		switch {
		case aerr == nil:
			rec.Summary = analysis.Summary
			rec.Theme = analysis.Theme
			stats.Succeeded++
			if len(analysis.Fields) == 0 {
				fmt.Fprintln(a.out, "Output: No valid response received.")
			} else {
				fmt.Fprintf(a.out, "Output: %s\n", formatFields(analysis.Fields))
			}
		case errors.Is(aerr, ErrResponseParse):
			stats.ParseFailures++
			fmt.Fprintln(a.out, "Output: No valid response received.")
		default:
			stats.ProcessFailures++
			fmt.Fprintln(a.out, "Output: No valid response received.")
		}

		if err := writeRow(writer, rec.Row()); err != nil {
			return stats, err
		}
		fmt.Fprintf(a.out, "Processed: %s\n\n", comment)

		if a.observer != nil {
			a.observer.ObserveRow(ctx, RowResult{Index: stats.Rows, Record: rec, Err: aerr})
		}
	}

	return stats, nil
}

func writeRow(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// fieldString returns m[key] as text: strings as-is, missing or null as "",
// anything else as compact JSON.
func fieldString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func formatFields(fields map[string]any) string {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Sprint(fields)
	}
	return string(data)
}
