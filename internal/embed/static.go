package embed

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/citewise/citewise/internal/keyword"
)

// Static embedder weights. Token features dominate; character n-grams add
// partial-match signal for inflected forms.
const (
	staticTokenWeight = 0.7
	staticNgramWeight = 0.3
	staticNgramSize   = 3
)

// StaticEmbedder generates deterministic embeddings from hashed token and
// character n-gram features. No external service is needed, so it serves
// offline operation and tests. Vectors are L2-normalized; cosine similarity
// tracks token overlap between texts.
type StaticEmbedder struct {
	dims int
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder with the given dimension.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed generates a deterministic embedding for the text.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)

	for _, tok := range keyword.Tokenize(text) {
		vec[e.slot(tok)] += staticTokenWeight
		runes := []rune(tok)
		for i := 0; i+staticNgramSize <= len(runes); i++ {
			vec[e.slot(string(runes[i:i+staticNgramSize]))] += staticNgramWeight
		}
	}

	normalizeL2(vec)
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// slot maps a feature string to a vector index.
func (e *StaticEmbedder) slot(feature string) int {
	h := fnv.New32a()
	h.Write([]byte(feature)) //nolint:errcheck
	return int(h.Sum32() % uint32(e.dims))
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return "static-hash"
}

// Available always reports true; the static embedder has no backend.
func (e *StaticEmbedder) Available(context.Context) bool {
	return true
}

// Close is a no-op.
func (e *StaticEmbedder) Close() error {
	return nil
}

// normalizeL2 scales the vector to unit length in place. Zero vectors are
// left unchanged.
func normalizeL2(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
