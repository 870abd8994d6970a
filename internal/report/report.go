// Package report turns an annotated output table into a moderator's
// run sheet grouped by theme.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/townhall/internal/annotate"
)

const unclassified = "Unclassified"

var md = goldmark.New()

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`,
	`<`, `\<`, `>`, `\>`, `#`, `\#`, `|`, `\|`, "\r\n", " ", "\n", " ",
)

// Row is one data row of an output table.
type Row struct {
	Comment string
	Summary string
	Theme   string
}

// Group holds the rows sharing a theme.
type Group struct {
	Theme string
	Rows  []Row
}

// Report is a theme-grouped view of an output table.
type Report struct {
	Title  string
	Total  int
	Groups []Group
}

// Load reads an output table written by the annotator.
func Load(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening table: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses an output table. The header row must match the annotator's.
func Read(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(annotate.Header)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("table is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i, name := range annotate.Header {
		if header[i] != name {
			return nil, fmt.Errorf("unexpected header %q, want %q", strings.Join(header, ","), strings.Join(annotate.Header, ","))
		}
	}

	var rows []Row
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading table: %w", err)
		}
		rows = append(rows, Row{Comment: rec[0], Summary: rec[1], Theme: rec[2]})
	}
	return rows, nil
}

// Build groups rows by theme. Themes compare case-insensitively and the first
// spelling seen is kept. Larger groups come first; rows without a theme are
// collected last under "Unclassified".
func Build(title string, rows []Row) *Report {
	index := map[string]int{}
	var groups []Group
	var rest []Row

	for _, row := range rows {
		theme := strings.TrimSpace(row.Theme)
		if theme == "" {
			rest = append(rest, row)
			continue
		}
		key := strings.ToLower(theme)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Theme: theme})
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i].Rows) != len(groups[j].Rows) {
			return len(groups[i].Rows) > len(groups[j].Rows)
		}
		return strings.ToLower(groups[i].Theme) < strings.ToLower(groups[j].Theme)
	})
	if len(rest) > 0 {
		groups = append(groups, Group{Theme: unclassified, Rows: rest})
	}

	return &Report{Title: title, Total: len(rows), Groups: groups}
}

// Markdown renders the report. Each entry is the read-aloud summary, or the
// original comment when the model gave none.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escape(r.Title))
	fmt.Fprintf(&b, "%d questions in %d themes.\n", r.Total, len(r.Groups))

	for _, g := range r.Groups {
		fmt.Fprintf(&b, "\n## %s (%d)\n\n", escape(g.Theme), len(g.Rows))
		for _, row := range g.Rows {
			if strings.TrimSpace(row.Summary) == "" {
				fmt.Fprintf(&b, "- %s\n", escape(row.Comment))
				continue
			}
			fmt.Fprintf(&b, "- %s\n", escape(row.Summary))
		}
	}
	return b.String()
}

// HTML renders the report as a standalone HTML page.
func (r *Report) HTML() (string, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(r.Markdown()), &body); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(r.Title))
	b.WriteString("</head>\n<body>\n")
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
