package speech

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		size      int
		wantCount int
		wantLast  int // length in runes of the final segment
	}{
		{name: "empty", text: "", size: 10, wantCount: 0},
		{name: "shorter than size", text: "hello", size: 10, wantCount: 1, wantLast: 5},
		{name: "exact multiple", text: strings.Repeat("a", 9000), size: 4500, wantCount: 2, wantLast: 4500},
		{name: "one over", text: strings.Repeat("a", 4501), size: 4500, wantCount: 2, wantLast: 1},
		{name: "ten thousand", text: strings.Repeat("x", 10000), size: 4500, wantCount: 3, wantLast: 1000},
		{name: "multibyte", text: strings.Repeat("é", 7), size: 3, wantCount: 3, wantLast: 1},
		{name: "default size", text: strings.Repeat("a", 4501), size: 0, wantCount: 2, wantLast: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := Split(tt.text, tt.size)
			if len(segs) != tt.wantCount {
				t.Fatalf("len(Split) = %d, want %d", len(segs), tt.wantCount)
			}
			if tt.wantCount == 0 {
				return
			}

			var joined strings.Builder
			size := tt.size
			if size <= 0 {
				size = DefaultSegmentSize
			}
			for i, seg := range segs {
				if seg.Index != i {
					t.Errorf("segment %d has Index %d", i, seg.Index)
				}
				if seg.Total != tt.wantCount {
					t.Errorf("segment %d has Total %d, want %d", i, seg.Total, tt.wantCount)
				}
				if n := utf8.RuneCountInString(seg.Text); n > size {
					t.Errorf("segment %d has %d runes, want <= %d", i, n, size)
				}
				joined.WriteString(seg.Text)
			}
			if joined.String() != tt.text {
				t.Error("segments do not concatenate back to the input")
			}
			if n := utf8.RuneCountInString(segs[len(segs)-1].Text); n != tt.wantLast {
				t.Errorf("last segment has %d runes, want %d", n, tt.wantLast)
			}
		})
	}
}

func TestSplitInvalidUTF8(t *testing.T) {
	text := "ab\xffcd\xfe"
	segs := Split(text, 2)

	var joined string
	for _, s := range segs {
		joined += s.Text
	}
	if joined != text {
		t.Errorf("joined = %q, want %q", joined, text)
	}
	if len(segs) != 3 {
		t.Errorf("len(Split) = %d, want 3", len(segs))
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		index, total, want int
	}{
		{0, 1, 95},
		{0, 3, 32},
		{1, 3, 63},
		{2, 3, 95},
		{0, 2, 48},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := Progress(tt.index, tt.total); got != tt.want {
			t.Errorf("Progress(%d, %d) = %d, want %d", tt.index, tt.total, got, tt.want)
		}
	}
}
