package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	citeerrors "github.com/citewise/citewise/internal/errors"
)

// ExtractionKind tags an ExtractionResult.
type ExtractionKind int

const (
	// ExtractionUnstructured means no structured pairs were produced; the
	// caller stores the raw chunk. This is a valid outcome, distinct from
	// an extraction error.
	ExtractionUnstructured ExtractionKind = iota

	// ExtractionStructured means Definitions carries extracted pairs.
	ExtractionStructured
)

// ExtractionResult is the tagged outcome of a definition extraction.
type ExtractionResult struct {
	Kind        ExtractionKind
	Definitions []Definition
}

// Extractor pulls structured definitions out of a definitions chunk.
type Extractor interface {
	Extract(ctx context.Context, text string) (ExtractionResult, error)
}

// NoopExtractor never extracts; raw definition chunks are stored as-is.
type NoopExtractor struct{}

var _ Extractor = NoopExtractor{}

func (NoopExtractor) Extract(context.Context, string) (ExtractionResult, error) {
	return ExtractionResult{Kind: ExtractionUnstructured}, nil
}

// extractionPrompt instructs the model to return definitions as bare JSON.
const extractionPrompt = "אתה עוזר משפטי מומחה. הטקסט הבא לקוח ממסמך משפטי ומכיל הגדרות.\n" +
	"חלץ את כל ההגדרות ממנו והחזר אותן כ-JSON בלבד, ללא טקסט נוסף.\n" +
	"הפורמט הנדרש: [{\"term\": \"...\", \"definition\": \"...\"}]\n\n" +
	"טקסט:\n%s\n\nJSON בלבד:"

// Models often wrap JSON in markdown code fences despite instructions.
var reCodeFence = regexp.MustCompile("^```(?:json)?\\s*|\\s*```$")

// ollamaChatRequest is the Ollama /api/chat request body.
type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatResponse is the Ollama /api/chat response body.
type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
}

// OllamaExtractor extracts definitions with a chat model over Ollama.
type OllamaExtractor struct {
	client  *http.Client
	host    string
	model   string
	timeout time.Duration
}

var _ Extractor = (*OllamaExtractor)(nil)

// NewOllamaExtractor creates an extractor against the given Ollama host.
func NewOllamaExtractor(host, model string, timeout time.Duration) *OllamaExtractor {
	if host == "" {
		host = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OllamaExtractor{
		client:  &http.Client{},
		host:    host,
		model:   model,
		timeout: timeout,
	}
}

// Extract sends the chunk to the model and parses the JSON reply. A reply
// that parses to an empty list is a valid unstructured result; transport
// and parse failures are extraction errors the caller downgrades to the
// raw-chunk fallback.
func (e *OllamaExtractor) Extract(ctx context.Context, text string) (ExtractionResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(ollamaChatRequest{
		Model: e.model,
		Messages: []ollamaChatMessage{
			{Role: "user", Content: fmt.Sprintf(extractionPrompt, text)},
		},
	})
	if err != nil {
		return ExtractionResult{}, citeerrors.New(citeerrors.ErrCodeExtractionFailed, "marshal chat request", err)
	}

	url := strings.TrimSuffix(e.host, "/") + "/api/chat"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ExtractionResult{}, citeerrors.New(citeerrors.ErrCodeExtractionFailed, "build chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return ExtractionResult{}, citeerrors.New(citeerrors.ErrCodeExtractionFailed, "chat request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return ExtractionResult{}, citeerrors.New(citeerrors.ErrCodeExtractionFailed,
			fmt.Sprintf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))), nil)
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ExtractionResult{}, citeerrors.New(citeerrors.ErrCodeExtractionFailed, "decode chat response", err)
	}

	raw := strings.TrimSpace(out.Message.Content)
	raw = reCodeFence.ReplaceAllString(raw, "")

	var defs []Definition
	if err := json.Unmarshal([]byte(raw), &defs); err != nil {
		return ExtractionResult{}, citeerrors.New(citeerrors.ErrCodeExtractionFailed, "model returned invalid JSON", err)
	}
	if len(defs) == 0 {
		return ExtractionResult{Kind: ExtractionUnstructured}, nil
	}
	return ExtractionResult{Kind: ExtractionStructured, Definitions: defs}, nil
}
