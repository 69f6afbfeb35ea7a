package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/citewise/citewise/internal/store"
)

// Split boundaries in preference order: clause, line, sentence (including
// Hebrew/Arabic question mark), word, hard cut.
var splitSeparators = []string{"\n\n", "\n", ". ", "؟", "! ", " "}

// Section headers that open a definitions section, Hebrew and English.
var definitionHeaderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?mi)^\s*(הגדרות|פרשנות|מונחים|הגדרה)\s*$`),
	regexp.MustCompile(`(?mi)^\s*\d+[.)]\s*(הגדרות|פרשנות)\s*$`),
	regexp.MustCompile(`(?mi)^\s*Definitions\s*$`),
}

// Phrases whose density marks a definitions chunk even without a header.
var definitionSignals = []string{
	"פירושו", "פירושה", "משמעותו", "means", "shall mean", "יהיה פירושו",
}

// Chunker splits cleaned pages into tagged chunks.
type Chunker struct {
	// Size is the maximum chunk length in runes.
	Size int

	// Overlap is the number of runes carried between adjacent chunks.
	Overlap int

	// Extractor pulls structured definitions out of definitions chunks.
	// Nil disables extraction; raw definition chunks are stored as-is.
	Extractor Extractor
}

// NewChunker creates a chunker with the given size and overlap.
func NewChunker(size, overlap int, extractor Extractor) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}
	if extractor == nil {
		extractor = NoopExtractor{}
	}
	return &Chunker{Size: size, Overlap: overlap, Extractor: extractor}
}

// ChunkID derives the deterministic chunk identifier from source, page,
// position within the page, and a short content hash. Identical content at
// the same position yields the identical ID, making re-indexing idempotent.
func ChunkID(source string, page int32, index int, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s__p%d__c%d__%s", source, page, index, hex.EncodeToString(sum[:4]))
}

// ChunkPages splits pages and separates the results into general chunks and
// definition chunks. Chunks that look like a definitions section go through
// the extractor; each extracted pair becomes its own "term: definition"
// chunk for high-precision retrieval, and on extraction failure or an empty
// result the raw chunk is kept in the definitions set instead.
func (c *Chunker) ChunkPages(ctx context.Context, pages []Page) (general, definitions []store.Chunk) {
	for _, page := range pages {
		for idx, text := range c.Split(page.Text) {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}

			chunk := store.Chunk{
				ID:     ChunkID(page.Source, page.Number, idx, text),
				Text:   text,
				Source: page.Source,
				Page:   page.Number,
			}

			if !isDefinitionsChunk(text) {
				general = append(general, chunk)
				continue
			}
			chunk.IsDefinition = true

			defs := c.extractDefinitions(ctx, text, page)
			if len(defs) == 0 {
				definitions = append(definitions, chunk)
				continue
			}
			for _, d := range defs {
				defText := d.Term + ": " + d.Text
				definitions = append(definitions, store.Chunk{
					ID:           ChunkID(page.Source, page.Number, idx, defText),
					Text:         defText,
					Source:       page.Source,
					Page:         page.Number,
					IsDefinition: true,
					Term:         d.Term,
				})
			}
		}
	}
	return general, definitions
}

// extractDefinitions runs the extractor and filters incomplete pairs. A
// failed extraction is logged and treated as an unstructured result.
func (c *Chunker) extractDefinitions(ctx context.Context, text string, page Page) []Definition {
	result, err := c.Extractor.Extract(ctx, text)
	if err != nil {
		slog.Warn("definition extraction failed, storing raw chunk",
			"source", page.Source, "page", page.Number, "error", err)
		return nil
	}
	if result.Kind != ExtractionStructured {
		return nil
	}

	defs := make([]Definition, 0, len(result.Definitions))
	for _, d := range result.Definitions {
		term := strings.TrimSpace(d.Term)
		body := strings.TrimSpace(d.Text)
		if term == "" || body == "" {
			continue
		}
		defs = append(defs, Definition{Term: term, Text: body})
	}
	return defs
}

// isDefinitionsChunk is the fast heuristic check for definitions content:
// a section header, or at least two definition signal phrases.
func isDefinitionsChunk(text string) bool {
	for _, pattern := range definitionHeaderPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	matches := 0
	for _, sig := range definitionSignals {
		if strings.Contains(text, sig) {
			matches++
		}
	}
	return matches >= 2
}

// Split divides text into chunks of at most Size runes, carrying Overlap
// runes between adjacent chunks and preferring clause, line, sentence, and
// word boundaries in that order.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	pieces := c.divide(text, splitSeparators)
	return c.merge(pieces)
}

// divide recursively cuts text at the coarsest separator that keeps every
// piece within Size runes.
func (c *Chunker) divide(text string, seps []string) []string {
	if runeLen(text) <= c.Size {
		return []string{text}
	}
	if len(seps) == 0 {
		return c.hardCut(text)
	}

	parts := strings.SplitAfter(text, seps[0])
	if len(parts) == 1 {
		return c.divide(text, seps[1:])
	}

	var out []string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if runeLen(p) <= c.Size {
			out = append(out, p)
		} else {
			out = append(out, c.divide(p, seps[1:])...)
		}
	}
	return out
}

// merge greedily joins pieces into chunks of at most Size runes. When a
// chunk is flushed, its last Overlap runes seed the next chunk if the next
// piece still fits alongside them; otherwise the seed is dropped so no
// chunk ever exceeds Size.
func (c *Chunker) merge(pieces []string) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() string {
		chunk := strings.TrimSpace(current.String())
		current.Reset()
		currentLen = 0
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		return chunk
	}

	for _, piece := range pieces {
		pieceLen := runeLen(piece)
		if currentLen > 0 && currentLen+pieceLen > c.Size {
			flushed := flush()
			if c.Overlap > 0 && flushed != "" {
				tail := tailRunes(flushed, c.Overlap)
				if runeLen(tail)+1+pieceLen <= c.Size {
					current.WriteString(tail)
					current.WriteString(" ")
					currentLen = runeLen(tail) + 1
				}
			}
		}
		current.WriteString(piece)
		currentLen += pieceLen
	}
	flush()
	return chunks
}

// hardCut slices text every Size runes, stepping back Overlap runes between
// slices, used only when no separator fits.
func (c *Chunker) hardCut(text string) []string {
	runes := []rune(text)
	step := c.Size - c.Overlap
	if step <= 0 {
		step = c.Size
	}

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + c.Size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}

func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
