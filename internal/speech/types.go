package speech

import (
	"context"
	"fmt"

	"github.com/boxtvsaltogif/pdf-mp3/internal/pcm"
)

// Backend abstracts the remote speech provider so the synthesizer can be
// tested with a fake implementation.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Synthesize performs one remote call for one segment. An empty
	// Reply.Payload means the provider declined to produce audio.
	Synthesize(ctx context.Context, req Request) (Reply, error)
}

// Request is a single remote synthesis attempt.
type Request struct {
	Model   string
	Voice   string
	Segment Segment
}

// Reply is the provider's answer to a Request.
type Reply struct {
	// Payload is base64-encoded 16-bit little-endian mono PCM.
	Payload string
	// SampleRate reported by the provider; zero means unknown.
	SampleRate int
	// Raw is the undecoded response, kept for diagnostics only.
	Raw []byte
}

// OutcomeKind classifies the terminal result of a segment.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeEmpty
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFailure:
		return "failure"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of one segment after retries.
type Outcome struct {
	Index  int
	Kind   OutcomeKind
	Bytes  int
	Cached bool
	Err    error
}

// Result aggregates a synthesis run. Buffers holds one entry per successful
// segment, in segment order; skipped segments leave no gap.
type Result struct {
	Buffers  []pcm.Buffer
	Outcomes []Outcome
	Skipped  int
	Segments int
}

// Partial reports whether some segments were skipped but audio exists.
func (r *Result) Partial() bool {
	return r != nil && r.Skipped > 0 && len(r.Buffers) > 0
}

// ProgressFunc receives the job percentage and a human-readable status line.
type ProgressFunc func(percent int, message string)
