// Package ingest turns source documents into tagged, embeddable chunks.
//
// The pipeline is load → clean → chunk → tag: loaders extract per-page text
// and apply cleaning, the chunker splits pages on clause boundaries and
// detects definitions sections, and an optional extractor pulls structured
// term/definition pairs out of those sections.
package ingest

// Page is one page of cleaned document text.
type Page struct {
	// Source is the document's base file name.
	Source string

	// Number is the 1-based page number.
	Number int32

	// Text is the cleaned page content.
	Text string
}

// Definition is a structured term/definition pair extracted from a
// definitions section.
type Definition struct {
	Term string `json:"term"`
	Text string `json:"definition"`
}
