package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// File names written by Report.Write
const (
	MarkdownFile = "report.md"
	HTMLFile     = "report.html"
)

// Count is one labelled tally in the report header table
type Count struct {
	Label string
	Value int
}

// Report is the human-readable diagnostics summary of a sweep or
// reconciliation
type Report struct {
	Title       string
	RunID       string
	GeneratedAt time.Time
	Counts      []Count
	Strategies  []StrategySummary
	Notes       []string
}

// Markdown renders the report as GitHub-flavoured markdown
func (r *Report) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	if r.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`, generated %s.\n\n", r.RunID, r.GeneratedAt.UTC().Format(time.RFC3339))
	}

	if len(r.Counts) > 0 {
		b.WriteString("| item | count |\n|------|------:|\n")
		for _, c := range r.Counts {
			fmt.Fprintf(&b, "| %s | %d |\n", c.Label, c.Value)
		}
		b.WriteString("\n")
	}

	if len(r.Strategies) > 0 {
		b.WriteString("## Calibration by strategy\n\n")
		b.WriteString("| strategy | records | rho mean | rho median | rho sd | tau mean | mae mean | conflict mean | low confidence | degenerate |\n")
		b.WriteString("|----------|--------:|---------:|-----------:|-------:|---------:|---------:|--------------:|---------------:|-----------:|\n")
		for _, s := range r.Strategies {
			fmt.Fprintf(&b, "| %s | %d | %s | %s | %s | %s | %s | %s | %d | %d |\n",
				s.Strategy, s.Records,
				cell(s.Rho.Mean), cell(s.Rho.Median), cell(s.Rho.StdDev),
				cell(s.KendallsTau.Mean), cell(s.MAE.Mean), cell(s.Conflict.Mean),
				s.LowConfidence, s.Degenerate)
		}
		b.WriteString("\n")
	}

	if len(r.Notes) > 0 {
		b.WriteString("## Notes\n\n")
		for _, n := range r.Notes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	return b.String()
}

// HTML renders the markdown as a complete HTML page
func (r *Report) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: r.Title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(r.Markdown()), p, renderer)
}

// Write stores report.md and report.html in dir
func (r *Report) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, MarkdownFile), []byte(r.Markdown()), 0o644); err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, HTMLFile), r.HTML(), 0o644); err != nil {
		return fmt.Errorf("failed to write html report: %w", err)
	}
	return nil
}

func cell(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", v)
}
