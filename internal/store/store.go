package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	citeerrors "github.com/citewise/citewise/internal/errors"
)

// distinctSourcesPageSize is the keyset-pagination page size for source
// enumeration. Enumeration always walks every page; the size only bounds
// memory per round trip.
const distinctSourcesPageSize = 512

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	collection    TEXT NOT NULL,
	id            TEXT NOT NULL,
	text          TEXT NOT NULL,
	source        TEXT NOT NULL,
	page          INTEGER NOT NULL DEFAULT 0,
	is_definition INTEGER NOT NULL DEFAULT 0,
	term          TEXT NOT NULL DEFAULT '',
	chunk_id      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(collection, source);
`

// Store owns the SQLite metadata database and all vector collections.
// An exclusive file lock on the data directory guards against concurrent
// writers from other processes.
type Store struct {
	mu     sync.RWMutex
	dir    string
	opts   Options
	db     *sql.DB
	lock   *flock.Flock
	cols   map[string]*collection
	closed bool
}

// Open opens (or creates) the store in the given data directory.
func Open(dir string, opts Options) (*Store, error) {
	if opts.Dimensions <= 0 {
		return nil, citeerrors.New(citeerrors.ErrCodeConfigInvalid,
			"store dimensions must be positive", nil)
	}
	if opts.M <= 0 {
		opts.M = 16
	}
	if opts.EfConstruction <= 0 {
		opts.EfConstruction = 200
	}
	if opts.EfSearch <= 0 {
		opts.EfSearch = 64
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 5 * time.Second
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, citeerrors.StoreUnavailable("create data directory", err)
	}

	lock := flock.New(filepath.Join(dir, "citewise.lock"))
	lockCtx, cancel := context.WithTimeout(context.Background(), opts.LockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil || !locked {
		return nil, citeerrors.New(citeerrors.ErrCodeLockHeld,
			fmt.Sprintf("data directory %s is locked by another process", dir), err).
			WithSuggestion("stop the other citewise process or use a different data directory")
	}

	db, err := openDatabase(filepath.Join(dir, "citewise.db"))
	if err != nil {
		lock.Unlock() //nolint:errcheck
		return nil, err
	}

	s := &Store{
		dir:  dir,
		opts: opts,
		db:   db,
		lock: lock,
		cols: make(map[string]*collection),
	}
	return s, nil
}

// openDatabase opens the SQLite database and applies pragmas. WAL mode must
// be set via PRAGMA; modernc.org/sqlite may ignore DSN parameters.
func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, citeerrors.StoreUnavailable("open database", err)
	}

	// Single writer connection; WAL readers do not block on it.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, citeerrors.StoreUnavailable("set pragma", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, citeerrors.SchemaError("create chunks table", err)
	}
	return db, nil
}

// EnsureCollection creates the named collection if absent, loading a
// previously saved graph from disk when one exists. Ensuring an existing
// collection is a no-op.
func (s *Store) EnsureCollection(name string) error {
	if name == "" {
		return citeerrors.New(citeerrors.ErrCodeConfigInvalid,
			"collection name must not be empty", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return citeerrors.StoreUnavailable("store is closed", nil)
	}
	if _, ok := s.cols[name]; ok {
		return nil
	}

	col := newCollection(name, s.opts)
	if _, err := os.Stat(graphPath(s.dir, name)); err == nil {
		if err := col.load(s.dir); err != nil {
			return citeerrors.New(citeerrors.ErrCodeCorruptIndex,
				fmt.Sprintf("load collection %s", name), err).
				WithSuggestion("delete the data directory and re-index")
		}
		slog.Info("collection loaded", "collection", name, "chunks", col.count())
	} else {
		slog.Info("collection created", "collection", name)
	}

	s.cols[name] = col
	return nil
}

// Upsert inserts or replaces chunks with their vectors and returns the
// number of chunks written. Validation and the SQLite transaction happen
// before any graph mutation, so a failed batch returns 0 and leaves both
// the rows and the graph untouched. Chunks with empty IDs are assigned
// random ones.
func (s *Store) Upsert(ctx context.Context, collection string, chunks []Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, citeerrors.New(citeerrors.ErrCodeIndexFailed,
			fmt.Sprintf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors)), nil)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collectionLocked(collection)
	if err != nil {
		return 0, err
	}

	ids := make([]string, len(chunks))
	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = uuid.NewString()
		}
		if len(chunks[i].ID) > MaxIDLen {
			return 0, citeerrors.New(citeerrors.ErrCodeIndexFailed,
				fmt.Sprintf("chunk ID exceeds %d bytes", MaxIDLen), nil)
		}
		if len(chunks[i].Text) > MaxTextLen {
			return 0, citeerrors.New(citeerrors.ErrCodeIndexFailed,
				fmt.Sprintf("chunk %s text exceeds %d bytes", chunks[i].ID, MaxTextLen), nil)
		}
		if err := ValidateSourceName(chunks[i].Source); err != nil {
			return 0, err
		}
		if len(vectors[i]) != s.opts.Dimensions {
			return 0, citeerrors.New(citeerrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("vector %d has dimension %d, expected %d", i, len(vectors[i]), s.opts.Dimensions), nil)
		}
		ids[i] = chunks[i].ID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, citeerrors.New(citeerrors.ErrCodeIndexFailed, "begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// chunk_id duplicates id as a plain scalar field for equality filters.
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (collection, id, text, source, page, is_definition, term, chunk_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, citeerrors.New(citeerrors.ErrCodeIndexFailed, "prepare insert", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, collection, c.ID, c.Text, c.Source,
			c.Page, c.IsDefinition, c.Term, c.ID); err != nil {
			return 0, citeerrors.New(citeerrors.ErrCodeIndexFailed,
				fmt.Sprintf("insert chunk %s", c.ID), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, citeerrors.New(citeerrors.ErrCodeIndexFailed, "commit transaction", err)
	}

	// Rows are durable; graph adds cannot fail after dimension validation.
	col.add(ids, vectors)
	return len(chunks), nil
}

// Search returns up to k chunks nearest the query vector, with cosine
// similarity scores.
func (s *Store) Search(ctx context.Context, collection string, query []float32, k int) ([]SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, err := s.collectionLocked(collection)
	if err != nil {
		return nil, err
	}
	if len(query) != s.opts.Dimensions {
		return nil, citeerrors.New(citeerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query has dimension %d, expected %d", len(query), s.opts.Dimensions), nil)
	}

	ids, distances := col.search(query, k)
	if len(ids) == 0 {
		return []SearchHit{}, nil
	}

	stmt, err := s.db.PrepareContext(ctx, `
		SELECT id, text, source, page, is_definition, term
		FROM chunks WHERE collection = ? AND id = ?`)
	if err != nil {
		return nil, citeerrors.SearchFailed("prepare chunk lookup", err)
	}
	defer stmt.Close()

	hits := make([]SearchHit, 0, len(ids))
	for i, id := range ids {
		var c Chunk
		err := stmt.QueryRowContext(ctx, collection, id).Scan(
			&c.ID, &c.Text, &c.Source, &c.Page, &c.IsDefinition, &c.Term)
		if err == sql.ErrNoRows {
			// Graph entry without a row: skip rather than fail the search.
			slog.Warn("vector without chunk row", "collection", collection, "id", id)
			continue
		}
		if err != nil {
			return nil, citeerrors.SearchFailed(fmt.Sprintf("load chunk %s", id), err)
		}
		hits = append(hits, SearchHit{
			Chunk:    c,
			Score:    distanceToScore(distances[i]),
			Distance: distances[i],
		})
	}
	return hits, nil
}

// DeleteBySource removes all chunks of the given source from the collection
// and returns how many rows were deleted. Deleting an unknown source is a
// no-op returning zero.
func (s *Store) DeleteBySource(ctx context.Context, collection, source string) (int, error) {
	if err := ValidateSourceName(source); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collectionLocked(collection)
	if err != nil {
		return 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM chunks WHERE collection = ? AND source = ?`, collection, source)
	if err != nil {
		return 0, citeerrors.DeleteFailed("query chunk IDs", err)
	}
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, citeerrors.DeleteFailed("scan chunk ID", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, citeerrors.DeleteFailed("iterate chunk IDs", err)
	}
	rows.Close()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE collection = ? AND source = ?`, collection, source)
	if err != nil {
		return 0, citeerrors.DeleteFailed(fmt.Sprintf("delete source %s", source), err)
	}
	deleted, _ := res.RowsAffected()

	col.deleteIDs(ids)
	return int(deleted), nil
}

// DistinctSources returns every source name in the collection, sorted
// ascending. Pagination is keyset-based so the enumeration is complete
// regardless of corpus size.
func (s *Store) DistinctSources(ctx context.Context, collection string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.collectionLocked(collection); err != nil {
		return nil, err
	}

	sources := make([]string, 0)
	cursor := ""
	for {
		rows, err := s.db.QueryContext(ctx, `
			SELECT DISTINCT source FROM chunks
			WHERE collection = ? AND source > ?
			ORDER BY source LIMIT ?`,
			collection, cursor, distinctSourcesPageSize)
		if err != nil {
			return nil, citeerrors.SearchFailed("query distinct sources", err)
		}

		n := 0
		for rows.Next() {
			var src string
			if err := rows.Scan(&src); err != nil {
				rows.Close()
				return nil, citeerrors.SearchFailed("scan source", err)
			}
			sources = append(sources, src)
			cursor = src
			n++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, citeerrors.SearchFailed("iterate sources", err)
		}
		rows.Close()

		if n < distinctSourcesPageSize {
			return sources, nil
		}
	}
}

// Stats returns chunk and source counts for the collection. A collection
// that was never ensured reports zeros rather than an error.
func (s *Store) Stats(ctx context.Context, collection string) (CollectionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return CollectionStats{}, citeerrors.StoreUnavailable("store is closed", nil)
	}

	stats := CollectionStats{Name: collection}
	if _, ok := s.cols[collection]; !ok {
		return stats, nil
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT source) FROM chunks WHERE collection = ?`,
		collection).Scan(&stats.Chunks, &stats.Sources)
	if err != nil {
		return CollectionStats{}, citeerrors.SearchFailed("query collection stats", err)
	}
	return stats, nil
}

// Collections returns the names of ensured collections.
func (s *Store) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.cols))
	for name := range s.cols {
		names = append(names, name)
	}
	return names
}

// Save persists every collection's graph to disk.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return citeerrors.StoreUnavailable("store is closed", nil)
	}
	for name, col := range s.cols {
		if err := col.save(s.dir); err != nil {
			return citeerrors.New(citeerrors.ErrCodeIndexFailed,
				fmt.Sprintf("save collection %s", name), err)
		}
	}
	return nil
}

// Close saves all collections, checkpoints the WAL, and releases the data
// directory lock. Safe to call multiple times.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	var firstErr error
	for name, col := range s.cols {
		if err := col.save(s.dir); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("save collection %s: %w", name, err)
		}
	}

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		slog.Warn("wal checkpoint failed", "error", err)
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}

	s.closed = true
	return firstErr
}

// collectionLocked returns the named collection. Callers must hold s.mu.
func (s *Store) collectionLocked(name string) (*collection, error) {
	if s.closed {
		return nil, citeerrors.StoreUnavailable("store is closed", nil)
	}
	col, ok := s.cols[name]
	if !ok {
		return nil, citeerrors.New(citeerrors.ErrCodeSchemaError,
			fmt.Sprintf("collection %s does not exist", name), nil).
			WithSuggestion("run index or sync to create the collection")
	}
	return col, nil
}
