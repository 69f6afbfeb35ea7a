package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Loader extracts cleaned page text from one document format.
type Loader interface {
	// Load reads the file and returns cleaned pages. Empty pages are
	// dropped; an empty result is not an error.
	Load(path string) ([]Page, error)

	// Extensions returns the lowercase file extensions this loader handles.
	Extensions() []string
}

// Registry maps file extensions to loaders.
type Registry struct {
	loaders map[string]Loader
}

// NewRegistry creates a registry with the built-in text loader. PDF and Word
// extraction are external collaborators; their cleaned output enters through
// the same Page shape.
func NewRegistry() *Registry {
	r := &Registry{loaders: make(map[string]Loader)}
	r.Register(&TextLoader{})
	return r
}

// Register adds a loader for its extensions, replacing any previous one.
func (r *Registry) Register(l Loader) {
	for _, ext := range l.Extensions() {
		r.loaders[strings.ToLower(ext)] = l
	}
}

// LoaderFor returns the loader for the file's extension.
func (r *Registry) LoaderFor(path string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := r.loaders[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	return l, nil
}

// Supported reports whether the file's extension has a registered loader.
func (r *Registry) Supported(path string) bool {
	_, ok := r.loaders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	return exts
}

// TextLoader loads plain-text and markdown documents as a single page.
type TextLoader struct{}

var _ Loader = (*TextLoader)(nil)

// Load reads the whole file, cleans it, and returns one page.
func (l *TextLoader) Load(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	cleaned := CleanText(string(data))
	if cleaned == "" {
		return nil, nil
	}
	return []Page{{
		Source: filepath.Base(path),
		Number: 1,
		Text:   cleaned,
	}}, nil
}

func (l *TextLoader) Extensions() []string {
	return []string{".txt", ".md"}
}

// Standalone page-number lines ("- 3 -", "3", "עמוד 3").
var rePageNum = regexp.MustCompile(`(?m)^\s*(-\s*)?\d{1,4}(\s*-)?\s*$|^\s*עמוד\s+\d+\s*$`)

// Recurring auto-line numbers at the start of a line ("  1  text...").
var reLineNum = regexp.MustCompile(`(?m)^\s{0,4}\d{1,3}\s{2,}`)

var reMultiSpace = regexp.MustCompile(`  +`)

var reParagraphBreak = regexp.MustCompile(`\n{2,}`)

// Smart and curly quotes to their ASCII equivalents. U+201E is common in
// Hebrew documents.
var quoteReplacer = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
	"„", `"`,
	"‚", "'",
)

// Hebrew gershayim: a double quote or doubled apostrophe between Hebrew
// letters is an abbreviation mark, not a quote.
var (
	reGershayimQuote = regexp.MustCompile(`([א-ת])"([א-ת])`)
	reGershayimApos  = regexp.MustCompile(`([א-ת])''([א-ת])`)
)

// CleanText applies document cleaning to raw extracted text: smart-quote
// normalization, removal of standalone page-number lines and auto-line
// numbers, joining of broken lines within paragraphs (double newlines mark
// clause boundaries and are preserved), whitespace collapsing, and Hebrew
// gershayim normalization. Section numbering (1.1, (א), 3.2.1) is never
// stripped.
func CleanText(raw string) string {
	text := quoteReplacer.Replace(raw)
	text = rePageNum.ReplaceAllString(text, "")
	text = reLineNum.ReplaceAllString(text, "")

	paragraphs := reParagraphBreak.Split(text, -1)
	joined := make([]string, 0, len(paragraphs))
	for _, para := range paragraphs {
		merged := strings.ReplaceAll(para, "\n", " ")
		merged = strings.TrimSpace(reMultiSpace.ReplaceAllString(merged, " "))
		if merged != "" {
			joined = append(joined, merged)
		}
	}
	text = strings.Join(joined, "\n\n")

	text = reGershayimQuote.ReplaceAllString(text, "$1״$2")
	text = reGershayimApos.ReplaceAllString(text, "$1״$2")

	return strings.TrimSpace(text)
}
