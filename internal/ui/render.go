// Package ui renders command output: sync reports, search results, and
// collection status, plain or colored depending on the destination.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/citewise/citewise/internal/search"
	"github.com/citewise/citewise/internal/syncer"
)

// snippetRunes caps the text shown per search hit.
const snippetRunes = 200

// Renderer writes human-readable command output.
type Renderer struct {
	out    io.Writer
	styles Styles
}

// NewRenderer creates a renderer for the writer. Colors apply only when
// the writer is an interactive terminal and neither noColor, NO_COLOR,
// nor a CI environment disables them.
func NewRenderer(out io.Writer, noColor bool) *Renderer {
	plain := noColor || DetectNoColor() || DetectCI() || !IsTTY(out)
	return &Renderer{out: out, styles: GetStyles(plain)}
}

// Report prints a reconciliation report.
func (r *Renderer) Report(rep syncer.Report) {
	fmt.Fprintln(r.out, r.styles.Header.Render(fmt.Sprintf(
		"Sync: %d added, %d removed, %d errors (%d files on disk)",
		len(rep.Added), len(rep.Deleted), len(rep.Errors), rep.TotalOnDisk)))

	for _, name := range rep.Added {
		fmt.Fprintln(r.out, "  "+r.styles.Success.Render("+ "+name))
	}
	for _, name := range rep.Deleted {
		fmt.Fprintln(r.out, "  "+r.styles.Error.Render("- "+name))
	}
	for _, msg := range rep.Errors {
		fmt.Fprintln(r.out, "  "+r.styles.Warning.Render("! "+msg))
	}
}

// Summary prints the outcome of indexing one document.
func (r *Renderer) Summary(s syncer.IndexSummary) {
	if s.Status != "ok" {
		fmt.Fprintln(r.out, r.styles.Error.Render(
			fmt.Sprintf("%s: %s", s.Source, s.Status)))
		return
	}
	fmt.Fprintln(r.out, r.styles.Success.Render(fmt.Sprintf(
		"%s: %d chunks, %d definitions", s.Source, s.GeneralCount, s.DefinitionCount)))
}

// Status prints collection counts and the indexed sources.
func (r *Renderer) Status(s syncer.Status) {
	fmt.Fprintln(r.out, r.styles.Header.Render("Index status"))
	fmt.Fprintf(r.out, "  %s %d\n", r.styles.Label.Render("General chunks:   "), s.GeneralCount)
	fmt.Fprintf(r.out, "  %s %d\n", r.styles.Label.Render("Definition chunks:"), s.DefinitionCount)
	fmt.Fprintf(r.out, "  %s %d\n", r.styles.Label.Render("Sources:          "), len(s.Sources))
	for _, src := range s.Sources {
		fmt.Fprintln(r.out, "    "+r.styles.Dim.Render(src))
	}
}

// Results prints the definitions hits followed by the general hits.
func (r *Renderer) Results(query string, general, definitions []search.Result) {
	if len(general) == 0 && len(definitions) == 0 {
		fmt.Fprintln(r.out, r.styles.Dim.Render("No results for "+strings.TrimSpace(query)))
		return
	}

	if len(definitions) > 0 {
		fmt.Fprintln(r.out, r.styles.Header.Render("Definitions"))
		for i, res := range definitions {
			term := res.Chunk.Term
			if term == "" {
				term = "(unextracted)"
			}
			fmt.Fprintf(r.out, "  %d. %s  %s\n", i+1,
				r.styles.Term.Render(term), r.locator(res))
			fmt.Fprintln(r.out, "     "+r.styles.Dim.Render(snippet(res.Chunk.Text)))
		}
	}

	if len(general) > 0 {
		fmt.Fprintln(r.out, r.styles.Header.Render("Results"))
		for i, res := range general {
			fmt.Fprintf(r.out, "  %d. %s\n", i+1, r.locator(res))
			fmt.Fprintln(r.out, "     "+r.styles.Dim.Render(snippet(res.Chunk.Text)))
		}
	}
}

// Errorf prints an error line to the writer.
func (r *Renderer) Errorf(format string, args ...any) {
	fmt.Fprintln(r.out, r.styles.Error.Render(fmt.Sprintf(format, args...)))
}

func (r *Renderer) locator(res search.Result) string {
	return r.styles.Label.Render(fmt.Sprintf("%s p.%d", res.Chunk.Source, res.Chunk.Page)) +
		"  " + r.styles.Score.Render(fmt.Sprintf("%.3f", res.Score))
}

// snippet flattens whitespace and truncates to snippetRunes.
func snippet(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= snippetRunes {
		return flat
	}
	return string(runes[:snippetRunes]) + "…"
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
