package speech

import "math"

// DefaultSegmentSize is the maximum number of characters sent in one remote call.
const DefaultSegmentSize = 4500

// progressCeiling is the share of the job's progress owned by synthesis; the
// remainder is reserved for encoding.
const progressCeiling = 95

// Segment is one contiguous slice of the source text.
type Segment struct {
	Index int
	Text  string
	Total int
}

// Split cuts text into consecutive segments of at most size characters
// (Unicode code points). Segments are not word-aware and concatenate back to
// text exactly. Empty text yields no segments.
func Split(text string, size int) []Segment {
	if size <= 0 {
		size = DefaultSegmentSize
	}
	if text == "" {
		return nil
	}

	var parts []string
	start, count := 0, 0
	for i := range text {
		if count == size {
			parts = append(parts, text[start:i])
			start, count = i, 0
		}
		count++
	}
	parts = append(parts, text[start:])

	segments := make([]Segment, len(parts))
	for i, p := range parts {
		segments[i] = Segment{Index: i, Text: p, Total: len(parts)}
	}
	return segments
}

// Progress returns the job percentage reported when segment index of total starts.
func Progress(index, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(index+1) / float64(total) * progressCeiling))
}
