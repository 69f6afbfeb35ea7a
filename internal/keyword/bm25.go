// Package keyword scores retrieval candidates with Okapi BM25.
//
// Scoring is restricted to the candidate set produced by the semantic stage:
// document frequencies and average length are computed over the candidates,
// not a global index. This keeps keyword scoring a pure function of its
// inputs with no index to maintain or invalidate.
package keyword

import (
	"math"
	"regexp"
	"strings"
)

// BM25 free parameters.
const (
	k1 = 1.5
	b  = 0.75
)

// tokenRE matches runs of word characters, including the Hebrew block so
// mixed-script legal text tokenizes correctly.
var tokenRE = regexp.MustCompile(`[0-9A-Za-z_\x{0590}-\x{05FF}]+`)

// Tokenize lowercases text and splits it into word tokens.
func Tokenize(text string) []string {
	return tokenRE.FindAllString(strings.ToLower(text), -1)
}

// Scores computes BM25 scores for each candidate text against the query.
// The returned slice is parallel to texts. An empty candidate set or a
// query with no tokens yields all-zero scores.
func Scores(query string, texts []string) []float64 {
	scores := make([]float64, len(texts))
	if len(texts) == 0 {
		return scores
	}

	qTokens := Tokenize(query)
	if len(qTokens) == 0 {
		return scores
	}

	docTokens := make([][]string, len(texts))
	totalLen := 0
	for i, t := range texts {
		docTokens[i] = Tokenize(t)
		totalLen += len(docTokens[i])
	}
	avgLen := float64(totalLen) / float64(len(texts))
	if avgLen == 0 {
		return scores
	}

	// Term frequencies per document, document frequencies over candidates.
	tf := make([]map[string]int, len(texts))
	df := make(map[string]int)
	for i, toks := range docTokens {
		freq := make(map[string]int, len(toks))
		for _, tok := range toks {
			freq[tok]++
		}
		tf[i] = freq
		for tok := range freq {
			df[tok]++
		}
	}

	n := float64(len(texts))
	for _, q := range qTokens {
		dfq, ok := df[q]
		if !ok {
			continue
		}
		idf := math.Log((n-float64(dfq)+0.5)/(float64(dfq)+0.5) + 1)
		for i := range texts {
			f := float64(tf[i][q])
			if f == 0 {
				continue
			}
			docLen := float64(len(docTokens[i]))
			scores[i] += idf * (f * (k1 + 1)) / (f + k1*(1-b+b*docLen/avgLen))
		}
	}
	return scores
}

// Normalize rescales scores into [0, 1] by dividing by the maximum.
// All-zero input is returned unchanged.
func Normalize(scores []float64) []float64 {
	max := 0.0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	if max == 0 {
		return scores
	}
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = s / max
	}
	return out
}
