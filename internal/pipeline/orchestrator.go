// Package pipeline runs one PDF to MP3 conversion at a time: extraction,
// segmented synthesis, encoding and delivery.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/boxtvsaltogif/pdf-mp3/internal/appinfo"
	"github.com/boxtvsaltogif/pdf-mp3/internal/history"
	"github.com/boxtvsaltogif/pdf-mp3/internal/mp3"
	"github.com/boxtvsaltogif/pdf-mp3/internal/notify"
	"github.com/boxtvsaltogif/pdf-mp3/internal/pcm"
	"github.com/boxtvsaltogif/pdf-mp3/internal/pdftext"
	"github.com/boxtvsaltogif/pdf-mp3/internal/speech"
	"github.com/boxtvsaltogif/pdf-mp3/internal/telemetry"
	"github.com/boxtvsaltogif/pdf-mp3/internal/voices"
)

// Status lines reported through the progress callback.
const (
	statusExtracting = "Extracting text from PDF..."
	statusStarting   = "Starting conversion..."
	statusFinalizing = "Finalizing and creating .mp3 file..."
	statusDone       = "Conversion complete!"
)

// Extractor returns the plain text of a PDF document.
type Extractor func(data []byte) (string, error)

// Synthesizer converts text to ordered PCM buffers.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, onProgress speech.ProgressFunc) (*speech.Result, error)
}

// Encoder packs PCM buffers into an MP3 container.
type Encoder interface {
	Encode(buffers []pcm.Buffer, sampleRate int) (*mp3.Container, error)
}

// HistoryWriter records finished jobs.
type HistoryWriter interface {
	Append(ctx context.Context, e history.Entry) error
	Prune(ctx context.Context, keep int) (int64, error)
}

// Config holds the per-process settings the orchestrator checks before a job.
type Config struct {
	APIKey string
	// RequireAPIKey makes a missing APIKey a validation error.
	RequireAPIKey bool
	// CatalogVoices restricts voices to the built-in catalogue.
	CatalogVoices bool
	DefaultVoice  string
	Model         string
	// SampleRate is used when buffers do not carry one.
	SampleRate int
	// HistoryKeep bounds the job history after each record; zero keeps all.
	HistoryKeep int
}

// Deps are the collaborators of an Orchestrator. Synthesizer and Encoder are
// required; the rest may be left nil.
type Deps struct {
	Extract     Extractor
	Synthesizer Synthesizer
	Encoder     Encoder
	Notifier    notify.Notifier
	History     HistoryWriter
	Metrics     *telemetry.Recorder
	Logger      *slog.Logger
	Clock       func() time.Time
	NewID       func() string
}

// Input is one conversion request.
type Input struct {
	FileName string
	Data     []byte
	Voice    string
	// OnProgress, if set, receives every progress update of the job.
	OnProgress speech.ProgressFunc
}

// Orchestrator sequences the pipeline and owns the current delivery.
type Orchestrator struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	busy atomic.Bool

	mu       sync.Mutex
	job      *Job
	delivery *Delivery
}

// New returns an Orchestrator. It panics when a required dependency is nil.
func New(cfg Config, deps Deps) *Orchestrator {
	if deps.Synthesizer == nil {
		panic("pipeline: synthesizer must not be nil")
	}
	if deps.Encoder == nil {
		panic("pipeline: encoder must not be nil")
	}
	if deps.Extract == nil {
		deps.Extract = pdftext.Extract
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = voices.DefaultID
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = pcm.DefaultSampleRate
	}
	return &Orchestrator{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger.With("component", "pipeline"),
	}
}

// State returns the state of the current job, or StateIdle before any job.
func (o *Orchestrator) State() State {
	return o.Snapshot().State
}

// Snapshot returns a copy of the current job.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	job := o.job
	o.mu.Unlock()
	return job.Snapshot()
}

// Busy reports whether a job is running.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// Delivery returns the result of the last completed job, or nil.
func (o *Orchestrator) Delivery() *Delivery {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.delivery == nil || o.delivery.Released() {
		return nil
	}
	return o.delivery
}

// Release drops the current delivery.
func (o *Orchestrator) Release() {
	o.mu.Lock()
	d := o.delivery
	o.delivery = nil
	o.mu.Unlock()
	d.Release()
}

// Run converts in to an MP3 delivery. Only one Run executes at a time;
// concurrent callers get ErrBusy.
//
// Precondition failures return a *ValidationError before any work starts and
// leave the current job untouched. Every other error moves the new job to
// StateFailed with its progress reset to zero.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*Delivery, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer o.busy.Store(false)

	voice, err := o.validate(in)
	if err != nil {
		o.log.Warn("conversion rejected", "file", in.FileName, "error", err)
		return nil, err
	}

	job := newJob(o.deps.NewID(), in.FileName, voice, o.deps.Clock())
	o.mu.Lock()
	previous := o.delivery
	o.delivery = nil
	o.job = job
	o.mu.Unlock()
	previous.Release()

	log := o.log.With("job_id", job.id, "file", in.FileName, "voice", voice)
	log.Info("conversion started", "bytes", len(in.Data))

	progress := func(percent int, message string) {
		job.setProgress(percent, message)
		if in.OnProgress != nil {
			in.OnProgress(percent, message)
		}
	}

	d, err := o.run(ctx, log, job, in, voice, progress)
	if err != nil {
		o.finishFailed(ctx, log, job, err)
		return nil, err
	}

	o.mu.Lock()
	o.delivery = d
	o.mu.Unlock()
	o.finishComplete(ctx, log, job, d)
	return d, nil
}

func (o *Orchestrator) validate(in Input) (string, error) {
	if len(in.Data) == 0 {
		return "", &ValidationError{Message: msgSelectFile}
	}
	if !strings.EqualFold(filepath.Ext(in.FileName), ".pdf") && !pdftext.LooksLikePDF(in.Data) {
		return "", &ValidationError{Message: msgSelectPDF}
	}

	voice := strings.TrimSpace(in.Voice)
	if voice == "" {
		voice = o.cfg.DefaultVoice
	}
	if o.cfg.CatalogVoices {
		id, err := voices.Resolve(voice)
		if err != nil {
			return "", &ValidationError{Message: msgSelectFile, Err: err}
		}
		voice = id
	}

	if o.cfg.RequireAPIKey && strings.TrimSpace(o.cfg.APIKey) == "" {
		return "", &ValidationError{Message: msgNoAPIKey}
	}
	return voice, nil
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, job *Job, in Input, voice string, progress speech.ProgressFunc) (*Delivery, error) {
	job.setState(StateExtracting)
	progress(0, statusExtracting)

	text, err := o.extract(in.Data)
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Message: msgEmptyText}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Debug("text extracted", "characters", len([]rune(text)))

	job.setState(StateSynthesizing)
	progress(0, statusStarting)

	res, err := o.deps.Synthesizer.Synthesize(ctx, text, voice, progress)
	if res != nil {
		job.recordSynthesis(res)
	}
	if err != nil {
		return nil, err
	}

	if len(res.Buffers) == 0 {
		return nil, &ValidationError{Message: msgNoAudio}
	}
	if res.Skipped > 0 {
		log.Warn("some segments produced no audio", "skipped", res.Skipped, "segments", res.Segments)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	job.setState(StateEncoding)
	progress(100, statusFinalizing)

	sampleRate := o.cfg.SampleRate
	if r := res.Buffers[0].SampleRate; r > 0 {
		sampleRate = r
	}
	container, err := o.deps.Encoder.Encode(res.Buffers, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("pipeline: encode: %w", err)
	}
	res.Buffers = nil

	return newDelivery(job.id, in.FileName, container), nil
}

// extract shields the job from extractor panics on hostile input.
func (o *Orchestrator) extract(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", pdftext.ErrUnreadable, r)
		}
	}()
	return o.deps.Extract(data)
}

func (o *Orchestrator) finishComplete(ctx context.Context, log *slog.Logger, job *Job, d *Delivery) {
	now := o.deps.Clock()
	job.complete(d.FileName, d.Len(), statusDone, now)
	snap := job.Snapshot()

	elapsed := now.Sub(snap.StartedAt)
	log.Info("conversion complete",
		"output", d.FileName,
		"bytes", d.Len(),
		"segments", snap.Segments,
		"skipped", snap.Skipped,
		"duration_sec", elapsed.Seconds(),
	)
	bg := context.WithoutCancel(ctx)
	o.deps.Metrics.JobFinished(bg, string(StateComplete), snap.Partial, d.Len(), elapsed)
	o.record(bg, log, snap, "")

	if o.deps.Notifier != nil {
		ev := notify.Event{
			JobID:      snap.ID,
			FileName:   snap.FileName,
			OutputName: d.FileName,
			Voice:      snap.Voice,
			Bytes:      d.Len(),
			Segments:   snap.Segments,
			Skipped:    snap.Skipped,
			Partial:    snap.Partial,
			Duration:   elapsed,
			FinishedAt: now,
			Metadata:   appinfo.EventMetadata(o.cfg.Model, snap.Voice),
		}
		if err := o.deps.Notifier.Notify(bg, ev); err != nil {
			log.Warn("completion notification failed", "error", err)
		}
	}
}

func (o *Orchestrator) finishFailed(ctx context.Context, log *slog.Logger, job *Job, err error) {
	now := o.deps.Clock()
	job.fail(UserMessage(err), now)
	snap := job.Snapshot()

	var validation *ValidationError
	if errors.As(err, &validation) {
		log.Warn("conversion failed", "reason", validation.Message)
	} else {
		log.Error("conversion failed", "error", err)
	}
	bg := context.WithoutCancel(ctx)
	o.deps.Metrics.JobFinished(bg, string(StateFailed), snap.Partial, 0, now.Sub(snap.StartedAt))
	o.record(bg, log, snap, err.Error())
}

func (o *Orchestrator) record(ctx context.Context, log *slog.Logger, snap Snapshot, errMsg string) {
	if o.deps.History == nil || !snap.State.Terminal() {
		return
	}
	err := o.deps.History.Append(ctx, history.Entry{
		JobID:      snap.ID,
		FileName:   snap.FileName,
		Voice:      snap.Voice,
		State:      string(snap.State),
		Segments:   snap.Segments,
		Skipped:    snap.Skipped,
		Bytes:      snap.Bytes,
		Error:      errMsg,
		StartedAt:  snap.StartedAt,
		FinishedAt: snap.FinishedAt,
	})
	if err != nil {
		log.Warn("recording job history failed", "error", err)
		return
	}
	if o.cfg.HistoryKeep > 0 {
		if _, err := o.deps.History.Prune(ctx, o.cfg.HistoryKeep); err != nil {
			log.Warn("pruning job history failed", "error", err)
		}
	}
}
