// Package notify announces finished conversion jobs.
package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Event describes a job that reached Complete.
type Event struct {
	JobID      string            `json:"job_id"`
	FileName   string            `json:"file_name"`
	OutputName string            `json:"output_name"`
	Voice      string            `json:"voice"`
	Bytes      int               `json:"bytes"`
	Segments   int               `json:"segments"`
	Skipped    int               `json:"skipped"`
	Partial    bool              `json:"partial"`
	Duration   time.Duration     `json:"duration_ns"`
	FinishedAt time.Time         `json:"finished_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Notifier receives completion events. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

// LogNotifier writes completion events to a logger.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier logs to logger, or slog.Default when nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{log: logger.With("component", "notify")}
}

// Notify logs one line per completed job.
func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	n.log.Info("conversion complete",
		"job_id", ev.JobID,
		"output", ev.OutputName,
		"bytes", ev.Bytes,
		"segments", ev.Segments,
		"skipped", ev.Skipped,
		"duration_sec", ev.Duration.Seconds(),
	)
	return nil
}

// BellNotifier rings the terminal bell.
type BellNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewBellNotifier rings on w, usually the terminal.
func NewBellNotifier(w io.Writer) *BellNotifier {
	return &BellNotifier{w: w}
}

// Notify writes the BEL character.
func (n *BellNotifier) Notify(context.Context, Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := io.WriteString(n.w, "\a")
	return err
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

// Notify calls every non-nil notifier in order, even after a failure.
func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
