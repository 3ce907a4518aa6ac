package flat

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	appErr "github.com/logsage/logsage/internal/pkg/errors"
	"github.com/logsage/logsage/internal/vectorstore"
)

func init() {
	vectorstore.Register("flat", func(args *vectorstore.FactoryArgs) (vectorstore.IVectorStore, error) {
		return New(args.Dir)
	})
}

// store keeps one exact-search index per log file on local disk: a binary
// vector file plus a json sidecar listing the chunk id for each row. Both are
// replaced atomically on every write, and a row-count mismatch between the
// two reads back as ErrIndexCorruption.
type store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(dir string) (vectorstore.IVectorStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("flat store dir not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return &store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *store) fileLock(fileID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lk, ok := s.locks[fileID]
	if !ok {
		lk = &sync.Mutex{}
		s.locks[fileID] = lk
	}
	return lk
}

func (s *store) vecPath(fileID string) string {
	return filepath.Join(s.dir, fileID+".vec")
}

func (s *store) metaPath(fileID string) string {
	return filepath.Join(s.dir, fileID+".json")
}

type metaFile struct {
	ChunkIDs []string `json:"chunk_ids"`
}

func (s *store) Add(ctx context.Context, fileID string, vectors [][]float32, chunkIDs []string) error {
	if fileID == "" || len(vectors) == 0 || len(vectors) != len(chunkIDs) {
		return appErr.ErrInvalid
	}
	dim := len(vectors[0])
	for _, v := range vectors {
		if len(v) != dim {
			return appErr.ErrInvalid
		}
	}
	lk := s.fileLock(fileID)
	lk.Lock()
	defer lk.Unlock()

	existing, ids, err := s.load(fileID)
	if err != nil && err != appErr.ErrNotIndexed {
		return err
	}
	if len(existing) > 0 && len(existing[0]) != dim {
		return fmt.Errorf("vector dimension changed for file %s: got %d want %d", fileID, dim, len(existing[0]))
	}
	existing = append(existing, vectors...)
	ids = append(ids, chunkIDs...)
	return s.persist(fileID, existing, ids)
}

func (s *store) Search(ctx context.Context, fileID string, query []float32, topK int) ([]vectorstore.SearchResult, error) {
	if fileID == "" || len(query) == 0 || topK <= 0 {
		return nil, appErr.ErrInvalid
	}
	lk := s.fileLock(fileID)
	lk.Lock()
	defer lk.Unlock()

	vectors, ids, err := s.load(fileID)
	if err != nil {
		return nil, err
	}
	results := make([]vectorstore.SearchResult, 0, len(vectors))
	for i, vec := range vectors {
		if len(vec) != len(query) {
			return nil, fmt.Errorf("query dimension mismatch: got %d want %d", len(query), len(vec))
		}
		dist := l2Distance(query, vec)
		results = append(results, vectorstore.SearchResult{
			ChunkID:    ids[i],
			Distance:   dist,
			Similarity: vectorstore.Similarity(dist),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *store) Delete(ctx context.Context, fileID string) error {
	if fileID == "" {
		return appErr.ErrInvalid
	}
	lk := s.fileLock(fileID)
	lk.Lock()
	defer lk.Unlock()

	for _, p := range []string{s.vecPath(fileID), s.metaPath(fileID)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove index file: %w", err)
		}
	}
	return nil
}

func (s *store) Count(ctx context.Context, fileID string) (int, error) {
	if fileID == "" {
		return 0, appErr.ErrInvalid
	}
	lk := s.fileLock(fileID)
	lk.Lock()
	defer lk.Unlock()

	vectors, _, err := s.load(fileID)
	if err == appErr.ErrNotIndexed {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return len(vectors), nil
}

func (s *store) load(fileID string) ([][]float32, []string, error) {
	raw, err := os.ReadFile(s.vecPath(fileID))
	if os.IsNotExist(err) {
		return nil, nil, appErr.ErrNotIndexed
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read index: %w", err)
	}
	vectors, err := decodeVectors(raw)
	if err != nil {
		return nil, nil, appErr.ErrIndexCorruption
	}
	metaRaw, err := os.ReadFile(s.metaPath(fileID))
	if err != nil {
		return nil, nil, appErr.ErrIndexCorruption
	}
	var meta metaFile
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, nil, appErr.ErrIndexCorruption
	}
	if len(meta.ChunkIDs) != len(vectors) {
		return nil, nil, appErr.ErrIndexCorruption
	}
	return vectors, meta.ChunkIDs, nil
}

func (s *store) persist(fileID string, vectors [][]float32, ids []string) error {
	metaRaw, err := json.Marshal(metaFile{ChunkIDs: ids})
	if err != nil {
		return fmt.Errorf("encode index meta: %w", err)
	}
	if err := atomicWrite(s.metaPath(fileID), metaRaw); err != nil {
		return err
	}
	return atomicWrite(s.vecPath(fileID), encodeVectors(vectors))
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

func encodeVectors(vectors [][]float32) []byte {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	buf := make([]byte, 8, 8+len(vectors)*dim*4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(dim))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(vectors)))
	var scratch [4]byte
	for _, vec := range vectors {
		for _, v := range vec {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(v))
			buf = append(buf, scratch[:]...)
		}
	}
	return buf
}

func decodeVectors(raw []byte) ([][]float32, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("index file too short")
	}
	dim := int(binary.LittleEndian.Uint32(raw[0:4]))
	count := int(binary.LittleEndian.Uint32(raw[4:8]))
	if dim <= 0 || count < 0 {
		return nil, fmt.Errorf("invalid index header")
	}
	if len(raw) != 8+count*dim*4 {
		return nil, fmt.Errorf("index file size mismatch")
	}
	vectors := make([][]float32, count)
	off := 8
	for i := 0; i < count; i++ {
		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off : off+4]))
			off += 4
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
