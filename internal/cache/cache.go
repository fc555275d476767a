// Package cache keeps synthesized segment audio on disk so repeated
// conversions of the same text skip the remote call.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const fileSuffix = ".pcm.zst"

// DefaultCompressionLevel is the zstd level used when none is configured.
const DefaultCompressionLevel = 3

// Cache is a size-bounded LRU of segment PCM. Entries live as zstd files in
// one directory and the bound applies to their compressed size.
type Cache struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64
	used     int64
	index    map[string]*list.Element
	recency  *list.List // front is most recently used
	log      *slog.Logger

	enc *zstd.Encoder
	dec *zstd.Decoder
}

type item struct {
	key  string
	size int64
}

// Option customises a Cache.
type Option func(*settings)

type settings struct {
	level int
}

// WithCompressionLevel sets the zstd level (1 fastest .. 22 smallest).
func WithCompressionLevel(level int) Option {
	return func(s *settings) {
		if level > 0 {
			s.level = level
		}
	}
}

// New opens the cache in dir, creating it when missing, and indexes the
// segments already stored there.
func New(dir string, maxBytes int64, logger *slog.Logger, opts ...Option) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := settings{level: DefaultCompressionLevel}
	for _, opt := range opts {
		opt(&s)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(s.level)))
	if err != nil {
		return nil, fmt.Errorf("cache: create encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("cache: create decoder: %w", err)
	}
	c := &Cache{
		dir:      dir,
		maxBytes: maxBytes,
		index:    make(map[string]*list.Element),
		recency:  list.New(),
		log:      logger.With("component", "cache", "dir", dir),
		enc:      enc,
		dec:      dec,
	}
	c.scan()
	return c, nil
}

// Close releases the compression state. The files on disk are kept.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dec.Close()
	return c.enc.Close()
}

// Get returns the PCM stored under key. Unreadable or corrupt files are
// dropped and reported as a miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return nil, false
	}

	compressed, err := os.ReadFile(c.path(key))
	if err != nil {
		c.log.Warn("cache file unreadable, dropping entry", "key", key, "error", err)
		c.drop(el)
		return nil, false
	}
	data, err := c.dec.DecodeAll(compressed, nil)
	if err != nil {
		c.log.Warn("cache file corrupt, dropping entry", "key", key, "error", err)
		c.drop(el)
		return nil, false
	}

	c.recency.MoveToFront(el)
	return data, true
}

// Put compresses data and stores it under key, evicting the least recently
// used segments to stay within the bound. A segment that alone exceeds the
// bound is not stored.
func (c *Cache) Put(key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	compressed := c.enc.EncodeAll(data, make([]byte, 0, len(data)/4))
	size := int64(len(compressed))
	if size > c.maxBytes {
		c.log.Debug("segment larger than cache, not stored", "key", key, "size", size)
		return nil
	}

	if el, ok := c.index[key]; ok {
		c.drop(el)
	}
	c.shrinkTo(c.maxBytes - size)

	if err := os.WriteFile(c.path(key), compressed, 0o644); err != nil {
		return fmt.Errorf("cache: write: %w", err)
	}
	c.index[key] = c.recency.PushFront(&item{key: key, size: size})
	c.used += size
	return nil
}

// Len reports the number of stored segments.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Size reports the compressed bytes held on disk.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Key identifies one synthesized segment: the same text spoken by the same
// backend, model and voice always maps to the same key.
func Key(backend, text, model, voice string) string {
	h := sha256.New()
	fmt.Fprintf(h, "backend=%s\ntext=%s\nmodel=%s\nvoice=%s\n", backend, text, model, voice)
	return hex.EncodeToString(h.Sum(nil))
}

// rateHeader prefixes segment PCM with its sample rate.
const rateHeader = 4

// PutSegment stores PCM together with the rate it was produced at.
func (c *Cache) PutSegment(key string, sampleRate int, pcm []byte) error {
	data := make([]byte, rateHeader+len(pcm))
	binary.LittleEndian.PutUint32(data, uint32(sampleRate))
	copy(data[rateHeader:], pcm)
	return c.Put(key, data)
}

// GetSegment returns PCM stored by PutSegment and its sample rate.
func (c *Cache) GetSegment(key string) (pcm []byte, sampleRate int, ok bool) {
	data, ok := c.Get(key)
	if !ok || len(data) < rateHeader {
		return nil, 0, false
	}
	return data[rateHeader:], int(binary.LittleEndian.Uint32(data)), true
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+fileSuffix)
}

// drop forgets el and deletes its file. c.mu must be held.
func (c *Cache) drop(el *list.Element) {
	it := c.recency.Remove(el).(*item)
	delete(c.index, it.key)
	c.used -= it.size
	os.Remove(c.path(it.key))
}

// shrinkTo evicts from the cold end until at most limit bytes are used.
// c.mu must be held.
func (c *Cache) shrinkTo(limit int64) {
	for c.used > limit {
		el := c.recency.Back()
		if el == nil {
			return
		}
		it := el.Value.(*item)
		c.drop(el)
		c.log.Debug("evicted cache entry", "key", it.key, "size", it.size)
	}
}

// scan indexes existing files, oldest modification first so the newest
// files end up hottest.
func (c *Cache) scan() {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*"+fileSuffix))
	if err != nil {
		c.log.Warn("listing cache dir failed", "error", err)
		return
	}
	type found struct {
		key  string
		info os.FileInfo
	}
	files := make([]found, 0, len(matches))
	for _, p := range matches {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		files = append(files, found{key: strings.TrimSuffix(filepath.Base(p), fileSuffix), info: info})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].info.ModTime().Before(files[j].info.ModTime())
	})
	for _, f := range files {
		c.index[f.key] = c.recency.PushFront(&item{key: f.key, size: f.info.Size()})
		c.used += f.info.Size()
	}
	if len(files) > 0 {
		c.log.Info("indexed cached segments", "count", len(files), "bytes", c.used)
		// The bound may have shrunk since the files were written.
		c.shrinkTo(c.maxBytes)
	}
}
