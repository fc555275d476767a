package pipeline

import (
	"sync"
	"time"

	"github.com/boxtvsaltogif/pdf-mp3/internal/speech"
)

// State is a job lifecycle stage.
type State string

const (
	StateIdle         State = "idle"
	StateExtracting   State = "extracting"
	StateSynthesizing State = "synthesizing"
	StateEncoding     State = "encoding"
	StateComplete     State = "complete"
	StateFailed       State = "failed"
)

// Busy reports whether a job in this state is still running.
func (s State) Busy() bool {
	switch s {
	case StateExtracting, StateSynthesizing, StateEncoding:
		return true
	}
	return false
}

// Terminal reports whether the state ends a job.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Job tracks one conversion. It is written by the goroutine running the
// pipeline and read concurrently through Snapshot.
type Job struct {
	mu sync.Mutex

	id         string
	fileName   string
	voice      string
	state      State
	progress   int
	message    string
	segments   int
	skipped    int
	partial    bool
	warning    string
	errMsg     string
	outcomes   []speech.Outcome
	outputName string
	bytes      int
	startedAt  time.Time
	finishedAt time.Time
}

// Snapshot is a consistent copy of a Job.
type Snapshot struct {
	ID         string    `json:"id,omitempty"`
	FileName   string    `json:"file_name,omitempty"`
	Voice      string    `json:"voice,omitempty"`
	State      State     `json:"state"`
	Progress   int       `json:"progress"`
	Message    string    `json:"message,omitempty"`
	Segments   int       `json:"segments"`
	Skipped    int       `json:"skipped"`
	Partial    bool      `json:"partial_success"`
	Warning    string    `json:"warning,omitempty"`
	Error      string    `json:"error,omitempty"`
	OutputName string    `json:"output_name,omitempty"`
	Bytes      int       `json:"bytes"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	// Outcomes is not serialised; it is the per-segment record.
	Outcomes []speech.Outcome `json:"-"`
}

func newJob(id, fileName, voice string, now time.Time) *Job {
	return &Job{
		id:        id,
		fileName:  fileName,
		voice:     voice,
		state:     StateIdle,
		startedAt: now,
	}
}

// Snapshot returns a copy of the job's current fields.
func (j *Job) Snapshot() Snapshot {
	if j == nil {
		return Snapshot{State: StateIdle}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	s := Snapshot{
		ID:         j.id,
		FileName:   j.fileName,
		Voice:      j.voice,
		State:      j.state,
		Progress:   j.progress,
		Message:    j.message,
		Segments:   j.segments,
		Skipped:    j.skipped,
		Partial:    j.partial,
		Warning:    j.warning,
		Error:      j.errMsg,
		OutputName: j.outputName,
		Bytes:      j.bytes,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
	}
	if len(j.outcomes) > 0 {
		s.Outcomes = append([]speech.Outcome(nil), j.outcomes...)
	}
	return s
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

func (j *Job) setProgress(percent int, message string) {
	j.mu.Lock()
	j.progress = percent
	j.message = message
	j.mu.Unlock()
}

func (j *Job) recordSynthesis(res *speech.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.segments = res.Segments
	j.skipped = res.Skipped
	j.outcomes = res.Outcomes
	j.partial = res.Partial()
	if j.partial {
		j.warning = skippedWarning(res.Skipped)
	}
}

func (j *Job) complete(outputName string, size int, message string, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = StateComplete
	j.outputName = outputName
	j.bytes = size
	j.message = message
	j.finishedAt = now
}

func (j *Job) fail(userMessage string, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = StateFailed
	j.progress = 0
	j.message = ""
	j.partial = false
	j.warning = ""
	j.errMsg = userMessage
	j.finishedAt = now
}
