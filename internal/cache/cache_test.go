package cache

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

// noise returns n incompressible bytes so on-disk sizes track the input.
func noise(seed int64, n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

func open(t *testing.T, dir string, maxBytes int64, opts ...Option) *Cache {
	t.Helper()
	c, err := New(dir, maxBytes, nil, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func seed(t *testing.T, dir, key string, data []byte, mtime time.Time) {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd.NewWriter: %v", err)
	}
	defer enc.Close()
	p := filepath.Join(dir, key+fileSuffix)
	if err := os.WriteFile(p, enc.EncodeAll(data, nil), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	if err := os.Chtimes(p, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", p, err)
	}
}

func TestSegmentRoundTrip(t *testing.T) {
	c := open(t, t.TempDir(), 1<<20)
	pcm := noise(7, 480)
	key := Key("gemini", "Chapter one.", "gemini-2.5-flash-preview-tts", "Kore")

	if err := c.Put(key, pcm); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	got, ok := c.Get(key)
	if !ok || string(got) != string(pcm) {
		t.Fatalf("Get() = %d bytes ok=%v, want the stored segment", len(got), ok)
	}
	if _, ok := c.Get(Key("gemini", "Chapter two.", "gemini-2.5-flash-preview-tts", "Kore")); ok {
		t.Error("Get() hit for a segment never stored")
	}
	if c.Len() != 1 || c.Size() <= 0 {
		t.Errorf("Len() = %d Size() = %d, want one non-empty entry", c.Len(), c.Size())
	}
}

func TestSegmentKeepsSampleRate(t *testing.T) {
	c := open(t, t.TempDir(), 1<<20)
	pcm := noise(3, 320)
	if err := c.PutSegment("nap-part", 16000, pcm); err != nil {
		t.Fatalf("PutSegment() error: %v", err)
	}
	got, rate, ok := c.GetSegment("nap-part")
	if !ok || rate != 16000 || string(got) != string(pcm) {
		t.Fatalf("GetSegment() = %d bytes rate=%d ok=%v, want %d bytes at 16000", len(got), rate, ok, len(pcm))
	}
	c.Put("headerless", []byte{1, 2})
	if _, _, ok := c.GetSegment("headerless"); ok {
		t.Error("GetSegment() hit on an entry without a rate header")
	}
}

func TestSilenceCompresses(t *testing.T) {
	dir := t.TempDir()
	c := open(t, dir, 1<<20, WithCompressionLevel(9))

	silence := make([]byte, 48000) // one second of 24 kHz mono
	if err := c.Put("silence", silence); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "silence"+fileSuffix))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() >= int64(len(silence)) || c.Size() != info.Size() {
		t.Errorf("file = %d bytes, Size() = %d, want compressed and tracked", info.Size(), c.Size())
	}
	if got, ok := c.Get("silence"); !ok || len(got) != len(silence) {
		t.Errorf("Get() = %d bytes ok=%v", len(got), ok)
	}
}

func TestEviction(t *testing.T) {
	type step struct {
		op   string // put or get
		key  string
		size int
	}
	tests := []struct {
		name     string
		max      int64
		steps    []step
		wantHit  []string
		wantMiss []string
	}{
		{
			name:     "second segment pushes out the first",
			max:      100,
			steps:    []step{{"put", "a", 60}, {"put", "b", 60}},
			wantHit:  []string{"b"},
			wantMiss: []string{"a"},
		},
		{
			name:     "read refreshes recency",
			max:      170,
			steps:    []step{{"put", "old", 50}, {"put", "mid", 50}, {"get", "old", 0}, {"put", "new", 60}},
			wantHit:  []string{"old", "new"},
			wantMiss: []string{"mid"},
		},
		{
			name:     "oversized segment is not stored",
			max:      50,
			steps:    []step{{"put", "small", 20}, {"put", "big", 100}},
			wantHit:  []string{"small"},
			wantMiss: []string{"big"},
		},
		{
			name:    "rewrite replaces in place",
			max:     100,
			steps:   []step{{"put", "a", 30}, {"put", "a", 30}, {"put", "b", 30}},
			wantHit: []string{"a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := open(t, t.TempDir(), tt.max)
			for i, s := range tt.steps {
				switch s.op {
				case "put":
					if err := c.Put(s.key, noise(int64(i+1), s.size)); err != nil {
						t.Fatalf("Put(%s) error: %v", s.key, err)
					}
				case "get":
					c.Get(s.key)
				}
			}
			for _, k := range tt.wantMiss {
				if _, ok := c.Get(k); ok {
					t.Errorf("%s still cached", k)
				}
			}
			for _, k := range tt.wantHit {
				if _, ok := c.Get(k); !ok {
					t.Errorf("%s missing", k)
				}
			}
			if c.Size() > tt.max {
				t.Errorf("Size() = %d, exceeds bound %d", c.Size(), tt.max)
			}
		})
	}
}

func TestScanIndexesExistingSegments(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	seed(t, dir, "first", []byte("part one pcm"), now.Add(-2*time.Minute))
	seed(t, dir, "second", []byte("part two pcm"), now.Add(-time.Minute))
	os.WriteFile(filepath.Join(dir, "README"), []byte("not a segment"), 0o644)

	c := open(t, dir, 1<<20)
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	for key, want := range map[string]string{"first": "part one pcm", "second": "part two pcm"} {
		if got, ok := c.Get(key); !ok || string(got) != want {
			t.Errorf("Get(%s) = %q ok=%v, want %q", key, got, ok, want)
		}
	}
}

func TestScanTrimsToNewBound(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	for i, key := range []string{"oldest", "older", "newest"} {
		seed(t, dir, key, noise(int64(i), 64), now.Add(time.Duration(i-3)*time.Minute))
	}
	size := func(key string) int64 {
		info, err := os.Stat(filepath.Join(dir, key+fileSuffix))
		if err != nil {
			t.Fatalf("stat %s: %v", key, err)
		}
		return info.Size()
	}
	bound := size("older") + size("newest")

	c := open(t, dir, bound)
	if c.Len() != 2 || c.Size() > bound {
		t.Fatalf("Len() = %d Size() = %d, want two entries within %d", c.Len(), c.Size(), bound)
	}
	if _, ok := c.Get("oldest"); ok {
		t.Error("oldest file survived the trim")
	}
	if _, ok := c.Get("newest"); !ok {
		t.Error("newest file was trimmed")
	}
}

func TestBrokenEntriesBecomeMisses(t *testing.T) {
	t.Run("corrupt", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, "bad"+fileSuffix), []byte("not zstd"), 0o644)
		c := open(t, dir, 1<<20)
		if _, ok := c.Get("bad"); ok {
			t.Fatal("Get() hit on corrupt entry")
		}
		if c.Len() != 0 || c.Size() != 0 {
			t.Errorf("Len() = %d Size() = %d after drop", c.Len(), c.Size())
		}
		if _, err := os.Stat(filepath.Join(dir, "bad"+fileSuffix)); !os.IsNotExist(err) {
			t.Errorf("corrupt file still present: %v", err)
		}
	})
	t.Run("removed behind our back", func(t *testing.T) {
		dir := t.TempDir()
		c := open(t, dir, 1<<20)
		c.Put("gone", []byte("pcm"))
		os.Remove(filepath.Join(dir, "gone"+fileSuffix))
		for i := 0; i < 2; i++ {
			if _, ok := c.Get("gone"); ok {
				t.Fatalf("Get() #%d hit on deleted file", i+1)
			}
		}
		if c.Len() != 0 {
			t.Errorf("Len() = %d, want 0", c.Len())
		}
	})
}

func TestKeyDependsOnEveryInput(t *testing.T) {
	base := Key("gemini", "hello", "m1", "Kore")
	if base != Key("gemini", "hello", "m1", "Kore") {
		t.Fatal("Key() is not deterministic")
	}
	variants := map[string]string{
		"backend": Key("stub", "hello", "m1", "Kore"),
		"text":    Key("gemini", "world", "m1", "Kore"),
		"model":   Key("gemini", "hello", "m2", "Kore"),
		"voice":   Key("gemini", "hello", "m1", "Puck"),
	}
	for field, k := range variants {
		if k == base {
			t.Errorf("changing %s kept the key", field)
		}
	}
}

func TestParallelSegments(t *testing.T) {
	c := open(t, t.TempDir(), 1<<20)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key("gemini", fmt.Sprintf("segment %d", i%4), "m", "Kore")
			c.Put(key, noise(int64(i), 200))
			c.Get(key)
		}(i)
	}
	wg.Wait()
	if c.Len() != 4 {
		t.Errorf("Len() = %d, want 4 distinct segments", c.Len())
	}
}
