// Package store persists indexed chunks in named collections.
//
// Each collection pairs an in-memory HNSW graph (vectors, cosine metric)
// with rows in a shared SQLite database (chunk text and metadata). The
// graph is persisted with atomic temp-file+rename saves; SQLite runs in
// WAL mode with a single writer connection. A file lock on the data
// directory keeps concurrent indexers out.
package store

import "time"

// Field bounds enforced on upsert.
const (
	// MaxIDLen bounds chunk IDs.
	MaxIDLen = 256

	// MaxTextLen bounds chunk text.
	MaxTextLen = 65000

	// MaxSourceLen bounds source names.
	MaxSourceLen = 512
)

// Chunk is one indexed unit of a source document.
type Chunk struct {
	// ID uniquely identifies the chunk within its collection.
	ID string `json:"id"`

	// Text is the chunk content.
	Text string `json:"text"`

	// Source is the originating document's base name.
	Source string `json:"source"`

	// Page is the 1-based page number the chunk starts on.
	Page int32 `json:"page"`

	// IsDefinition marks chunks from a definitions section.
	IsDefinition bool `json:"is_definition"`

	// Term is the defined term for definition chunks, empty otherwise.
	Term string `json:"term,omitempty"`
}

// SearchHit is a chunk returned by vector search.
type SearchHit struct {
	Chunk Chunk

	// Score is the similarity score in [0, 1] (1 = identical).
	Score float32

	// Distance is the raw cosine distance in [0, 2].
	Distance float32
}

// CollectionStats summarizes a collection.
type CollectionStats struct {
	Name    string
	Chunks  int
	Sources int
}

// Options configures the store at open time.
type Options struct {
	// Dimensions is the embedding dimension all collections share.
	Dimensions int

	// M is HNSW max connections per layer.
	M int

	// EfConstruction is HNSW build-time search width.
	EfConstruction int

	// EfSearch is HNSW query-time search width.
	EfSearch int

	// LockTimeout bounds the wait for the data directory lock.
	LockTimeout time.Duration
}
