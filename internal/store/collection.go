package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/coder/hnsw"
)

// collection wraps one HNSW graph with string-ID mappings. Vector keys are
// monotonically increasing uint64s; deletions are lazy (mappings dropped,
// node orphaned) because removing graph nodes can corrupt small graphs.
// Access is serialized by the owning Store's mutex.
type collection struct {
	name    string
	graph   *hnsw.Graph[uint64]
	dims    int
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

// collectionMeta is the gob-persisted sidecar for a collection's graph.
type collectionMeta struct {
	IDMap   map[string]uint64
	NextKey uint64
	Dims    int
}

func newCollection(name string, opts Options) *collection {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = opts.M
	graph.EfSearch = opts.EfSearch
	graph.Ml = 0.25

	return &collection{
		name:   name,
		graph:  graph,
		dims:   opts.Dimensions,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// add inserts or replaces vectors. Existing IDs are lazily deleted first.
// Dimensions must be validated by the caller.
func (c *collection) add(ids []string, vectors [][]float32) {
	for i, id := range ids {
		if oldKey, ok := c.idMap[id]; ok {
			delete(c.keyMap, oldKey)
			delete(c.idMap, id)
		}

		key := c.nextKey
		c.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVector(vec)

		c.graph.Add(hnsw.MakeNode(key, vec))
		c.idMap[id] = key
		c.keyMap[key] = id
	}
}

// search returns up to k nearest IDs with cosine distances. Orphaned nodes
// are filtered out, so fewer than k results may come back near deletions.
func (c *collection) search(query []float32, k int) ([]string, []float32) {
	if c.graph.Len() == 0 || k <= 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVector(normalized)

	// Over-fetch to compensate for lazily deleted nodes.
	orphans := c.graph.Len() - len(c.idMap)
	if orphans < 0 {
		orphans = 0
	}
	nodes := c.graph.Search(normalized, k+orphans)

	ids := make([]string, 0, k)
	distances := make([]float32, 0, k)
	for _, node := range nodes {
		id, ok := c.keyMap[node.Key]
		if !ok {
			continue
		}
		ids = append(ids, id)
		distances = append(distances, c.graph.Distance(normalized, node.Value))
		if len(ids) == k {
			break
		}
	}
	return ids, distances
}

// deleteIDs lazily removes vectors by ID and reports how many existed.
func (c *collection) deleteIDs(ids []string) int {
	removed := 0
	for _, id := range ids {
		if key, ok := c.idMap[id]; ok {
			delete(c.keyMap, key)
			delete(c.idMap, id)
			removed++
		}
	}
	return removed
}

func (c *collection) count() int {
	return len(c.idMap)
}

// graphPath returns the on-disk path of the collection's graph file.
func graphPath(dir, name string) string {
	return filepath.Join(dir, name+".hnsw")
}

// save persists the graph and its ID mappings atomically.
func (c *collection) save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	path := graphPath(dir, c.name)
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}
	if err := c.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close graph file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename graph file: %w", err)
	}

	return c.saveMeta(path + ".meta")
}

func (c *collection) saveMeta(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}

	meta := collectionMeta{
		IDMap:   c.idMap,
		NextKey: c.nextKey,
		Dims:    c.dims,
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// load restores the graph and mappings from disk.
func (c *collection) load(dir string) error {
	path := graphPath(dir, c.name)

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer metaFile.Close()

	var meta collectionMeta
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	if meta.Dims != c.dims {
		return fmt.Errorf("graph dimension %d does not match configured %d", meta.Dims, c.dims)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open graph file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := c.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	c.idMap = meta.IDMap
	c.nextKey = meta.NextKey
	c.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range meta.IDMap {
		c.keyMap[key] = id
	}
	return nil
}

// normalizeVector scales the vector to unit length in place so cosine
// distance behaves on raw backend output.
func normalizeVector(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore converts cosine distance (0..2) to similarity (1..0).
func distanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}
