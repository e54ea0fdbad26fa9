// Package vector provides an exact cosine-similarity index with scope
// filtering and crash-safe file persistence.
//
// The index is brute force on purpose: per-scope memory sets are small, and
// exact search keeps result ordering deterministic across runs, which
// approximate structures do not guarantee.
package vector

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/recallhq/recall/internal/core/domain"
	"github.com/recallhq/recall/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// fileMagic identifies a persisted index file.
const fileMagic = uint32(0x5245434C) // "RECL"

// fileVersion is the current on-disk format version.
const fileVersion = uint32(1)

// Index stores normalised vectors with their segment id and scope.
type Index struct {
	mu        sync.RWMutex
	path      string
	dimension int
	entries   []entry
	byID      map[string]int
	closed    bool
}

type entry struct {
	segmentID string
	scope     domain.Scope
	vector    []float32
}

// New creates an index persisted at path, loading any existing state.
// A dimension of zero accepts the first upserted vector's size.
func New(path string, dimension int) (*Index, error) {
	if path == "" {
		return nil, errors.New("vector: path cannot be empty")
	}

	idx := &Index{
		path:      path,
		dimension: dimension,
		byID:      make(map[string]int),
	}

	if err := idx.Load(); err != nil {
		return nil, err
	}

	return idx, nil
}

// Upsert inserts or replaces the vector for a segment. The vector is
// normalised before storage so search reduces to a dot product.
func (idx *Index) Upsert(_ context.Context, e driven.VectorEntry) error {
	if e.SegmentID == "" {
		return fmt.Errorf("%w: vector entry requires a segment id", domain.ErrInvalidInput)
	}
	if err := e.Scope.Validate(); err != nil {
		return err
	}

	normalised, err := normalise(e.Vector)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errors.New("vector: index is closed")
	}
	if idx.dimension == 0 {
		idx.dimension = len(normalised)
	}
	if len(normalised) != idx.dimension {
		return fmt.Errorf("vector: embedding dimension %d does not match index dimension %d",
			len(normalised), idx.dimension)
	}

	ent := entry{segmentID: e.SegmentID, scope: e.Scope, vector: normalised}
	if pos, ok := idx.byID[e.SegmentID]; ok {
		idx.entries[pos] = ent
		return nil
	}
	idx.byID[e.SegmentID] = len(idx.entries)
	idx.entries = append(idx.entries, ent)
	return nil
}

// Search finds the k most similar segments visible to scope. Ordering is
// deterministic: descending similarity, ties broken by ascending id.
func (idx *Index) Search(_ context.Context, query []float32, k int, scope domain.Scope) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	q, err := normalise(query)
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, errors.New("vector: index is closed")
	}
	if idx.dimension != 0 && len(q) != idx.dimension {
		return nil, fmt.Errorf("vector: query dimension %d does not match index dimension %d",
			len(q), idx.dimension)
	}

	hits := make([]driven.VectorHit, 0, k)
	for i := range idx.entries {
		ent := &idx.entries[i]
		if !ent.scope.Covers(scope) {
			continue
		}
		sim := dot(q, ent.vector)
		if math.IsNaN(sim) {
			continue
		}
		hits = append(hits, driven.VectorHit{SegmentID: ent.segmentID, Similarity: sim})
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Similarity != hits[b].Similarity {
			return hits[a].Similarity > hits[b].Similarity
		}
		return hits[a].SegmentID < hits[b].SegmentID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes the vectors for the given segment ids. Unknown ids are
// ignored.
func (idx *Index) Delete(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	kept := idx.entries[:0]
	for _, ent := range idx.entries {
		if drop[ent.segmentID] {
			continue
		}
		kept = append(kept, ent)
	}
	idx.entries = kept

	idx.byID = make(map[string]int, len(idx.entries))
	for i, ent := range idx.entries {
		idx.byID[ent.segmentID] = i
	}
	return nil
}

// DeleteScope removes every vector stored under the scope's (user, project).
func (idx *Index) DeleteScope(_ context.Context, scope domain.Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	kept := idx.entries[:0]
	for _, ent := range idx.entries {
		if ent.scope.UserID == scope.UserID && ent.scope.ProjectID == scope.ProjectID {
			continue
		}
		kept = append(kept, ent)
	}
	idx.entries = kept

	idx.byID = make(map[string]int, len(idx.entries))
	for i, ent := range idx.entries {
		idx.byID[ent.segmentID] = i
	}
	return nil
}

// Len returns the number of stored vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Persist writes the index to disk. The write goes to a temporary file in
// the same directory followed by a rename, so a crash mid-write leaves
// either the previous or the fully written file, never a torn one.
func (idx *Index) Persist() error {
	idx.mu.RLock()
	data := idx.encode()
	path := idx.path
	idx.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("vector: creating index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("vector: creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("vector: writing index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("vector: syncing index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("vector: closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("vector: replacing index file: %w", err)
	}
	return nil
}

// Load reads the persisted index, replacing in-memory state. A missing
// file yields an empty index.
func (idx *Index) Load() error {
	data, err := os.ReadFile(idx.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("vector: reading index file: %w", err)
	}

	entries, dim, err := decode(data)
	if err != nil {
		return fmt.Errorf("vector: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries = entries
	if idx.dimension == 0 {
		idx.dimension = dim
	}
	idx.byID = make(map[string]int, len(entries))
	for i, ent := range entries {
		idx.byID[ent.segmentID] = i
	}
	return nil
}

// Close persists the index and marks it unusable.
func (idx *Index) Close() error {
	if err := idx.Persist(); err != nil {
		return err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	return nil
}

// encode serialises the index. Layout: magic, version, dim, count, then
// per entry: segment id, user, project, conversation (each length-prefixed)
// and the float32 vector. Caller holds at least a read lock.
func (idx *Index) encode() []byte {
	size := 16
	for _, ent := range idx.entries {
		size += 16 + len(ent.segmentID) + len(ent.scope.UserID) +
			len(ent.scope.ProjectID) + len(ent.scope.ConversationID) + 4*idx.dimension
	}

	buf := make([]byte, 0, size)
	putU32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf = append(buf, b[:]...)
	}
	putString := func(s string) {
		putU32(uint32(len(s)))
		buf = append(buf, s...)
	}

	putU32(fileMagic)
	putU32(fileVersion)
	putU32(uint32(idx.dimension))
	putU32(uint32(len(idx.entries)))

	for _, ent := range idx.entries {
		putString(ent.segmentID)
		putString(ent.scope.UserID)
		putString(ent.scope.ProjectID)
		putString(ent.scope.ConversationID)
		for _, f := range ent.vector {
			putU32(math.Float32bits(f))
		}
	}
	return buf
}

// decode deserialises a persisted index.
func decode(data []byte) ([]entry, int, error) {
	off := 0
	getU32 := func() (uint32, error) {
		if off+4 > len(data) {
			return 0, errors.New("truncated index file")
		}
		v := binary.LittleEndian.Uint32(data[off : off+4])
		off += 4
		return v, nil
	}
	getString := func() (string, error) {
		n, err := getU32()
		if err != nil {
			return "", err
		}
		if off+int(n) > len(data) {
			return "", errors.New("truncated index file")
		}
		s := string(data[off : off+int(n)])
		off += int(n)
		return s, nil
	}

	magic, err := getU32()
	if err != nil {
		return nil, 0, err
	}
	if magic != fileMagic {
		return nil, 0, errors.New("not a recall vector index file")
	}
	version, err := getU32()
	if err != nil {
		return nil, 0, err
	}
	if version != fileVersion {
		return nil, 0, fmt.Errorf("unsupported index file version %d", version)
	}

	dimU, err := getU32()
	if err != nil {
		return nil, 0, err
	}
	countU, err := getU32()
	if err != nil {
		return nil, 0, err
	}
	dim := int(dimU)

	entries := make([]entry, 0, countU)
	for i := uint32(0); i < countU; i++ {
		var ent entry
		if ent.segmentID, err = getString(); err != nil {
			return nil, 0, err
		}
		if ent.scope.UserID, err = getString(); err != nil {
			return nil, 0, err
		}
		if ent.scope.ProjectID, err = getString(); err != nil {
			return nil, 0, err
		}
		if ent.scope.ConversationID, err = getString(); err != nil {
			return nil, 0, err
		}
		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			bits, err := getU32()
			if err != nil {
				return nil, 0, err
			}
			vec[j] = math.Float32frombits(bits)
		}
		ent.vector = vec
		entries = append(entries, ent)
	}
	return entries, dim, nil
}

// normalise returns a unit-length copy of the vector.
func normalise(vec []float32) ([]float32, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty vector", domain.ErrInvalidInput)
	}
	mag := math.Sqrt(dot(vec, vec))
	if mag == 0 {
		return nil, fmt.Errorf("%w: zero-magnitude vector", domain.ErrInvalidInput)
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / mag)
	}
	return out, nil
}

// dot computes the dot product in float64 for stability.
func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
