// Package speech turns document text into PCM audio by driving a remote
// speech backend one segment at a time.
package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/boxtvsaltogif/pdf-mp3/internal/cache"
	"github.com/boxtvsaltogif/pdf-mp3/internal/pcm"
	"github.com/boxtvsaltogif/pdf-mp3/internal/retry"
	"github.com/boxtvsaltogif/pdf-mp3/internal/telemetry"
)

const previewLength = 100

// Options tune the synthesizer.
type Options struct {
	Model       string
	SegmentSize int
	// SampleRate is assumed when the backend does not report one.
	SampleRate   int
	MaxRetries   int
	InitialDelay time.Duration
	// RequestsPerMinute caps remote calls; zero disables the limit.
	RequestsPerMinute int
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		SegmentSize:  DefaultSegmentSize,
		SampleRate:   pcm.DefaultSampleRate,
		MaxRetries:   retry.DefaultMaxRetries,
		InitialDelay: retry.DefaultInitialDelay,
	}
}

// Synthesizer converts text to PCM buffers, strictly one segment at a time.
type Synthesizer struct {
	backend Backend
	opts    Options
	log     *slog.Logger
	metrics *telemetry.Recorder
	cache   *cache.Cache // nil when caching is disabled
	limiter *rate.Limiter
	sleep   retry.SleepFunc
}

// New returns a Synthesizer. metrics and segmentCache may be nil.
func New(backend Backend, opts Options, logger *slog.Logger, metrics *telemetry.Recorder, segmentCache *cache.Cache) *Synthesizer {
	if backend == nil {
		panic("speech: backend must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SegmentSize <= 0 {
		opts.SegmentSize = DefaultSegmentSize
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = pcm.DefaultSampleRate
	}
	s := &Synthesizer{
		backend: backend,
		opts:    opts,
		log: logger.With(
			"component", "speech",
			"backend", backend.Name(),
			"model", opts.Model,
		),
		metrics: metrics,
		cache:   segmentCache,
		sleep:   retry.Sleep,
	}
	if opts.RequestsPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return s
}

// Synthesize splits text into segments and converts each one in order.
//
// A segment the backend declines is counted in Result.Skipped and the run
// continues. A segment that still fails after all retries aborts the run with
// a *TransportError; later segments are never attempted. On a fatal error
// the returned Result still reports the segment count and the outcomes of
// the segments attempted so far.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string, onProgress ProgressFunc) (*Result, error) {
	segments := Split(text, s.opts.SegmentSize)
	res := &Result{
		Segments: len(segments),
		Outcomes: make([]Outcome, 0, len(segments)),
	}

	log := s.log.With("voice", voice, "segments", len(segments))
	log.Info("synthesis started", "text_length", len(text))
	start := time.Now()

	for _, seg := range segments {
		if onProgress != nil {
			onProgress(Progress(seg.Index, seg.Total), fmt.Sprintf("Converting part %d of %d...", seg.Index+1, seg.Total))
		}

		outcome, buf, err := s.segment(ctx, log, voice, seg)
		res.Outcomes = append(res.Outcomes, outcome)
		s.metrics.Segment(ctx, outcome.Kind.String(), outcome.Cached)
		if err != nil {
			log.Warn("synthesis aborted", "segment", seg.Index+1, "error", err)
			return res, err
		}

		switch outcome.Kind {
		case OutcomeSuccess:
			res.Buffers = append(res.Buffers, buf)
		case OutcomeEmpty:
			res.Skipped++
		}
	}

	log.Info("synthesis finished",
		"buffers", len(res.Buffers),
		"skipped", res.Skipped,
		"duration_sec", time.Since(start).Seconds(),
	)
	return res, nil
}

func (s *Synthesizer) segment(ctx context.Context, log *slog.Logger, voice string, seg Segment) (Outcome, pcm.Buffer, error) {
	log = log.With("segment", seg.Index+1)
	outcome := Outcome{Index: seg.Index}

	var cacheKey string
	if s.cache != nil {
		cacheKey = cache.Key(s.backend.Name(), seg.Text, s.opts.Model, voice)
		data, sampleRate, ok := s.cache.GetSegment(cacheKey)
		s.metrics.CacheLookup(ctx, ok)
		if ok {
			log.Debug("cache hit", "key", cacheKey, "sample_rate", sampleRate)
			outcome.Kind = OutcomeSuccess
			outcome.Bytes = len(data)
			outcome.Cached = true
			return outcome, pcm.New(data, sampleRate), nil
		}
	}

	req := Request{Model: s.opts.Model, Voice: voice, Segment: seg}
	reply, err := retry.Do(ctx, func(ctx context.Context) (Reply, error) {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return Reply{}, err
			}
		}
		callStart := time.Now()
		reply, err := s.backend.Synthesize(ctx, req)
		s.metrics.RemoteCall(ctx, s.backend.Name(), time.Since(callStart), err)
		return reply, err
	},
		retry.WithMaxRetries(s.opts.MaxRetries),
		retry.WithInitialDelay(s.opts.InitialDelay),
		retry.WithLogger(log),
		retry.WithSleep(s.sleep),
		retry.WithNotify(func(int, time.Duration, error) {
			s.metrics.Retry(ctx, s.backend.Name())
		}),
	)
	if err != nil {
		outcome.Kind = OutcomeFailure
		outcome.Err = &TransportError{Segment: seg.Index, Total: seg.Total, Err: err}
		return outcome, pcm.Buffer{}, outcome.Err
	}

	if reply.Payload == "" {
		log.Warn("no audio returned for segment, skipping",
			"text_preview", preview(seg.Text),
			"response", string(reply.Raw),
		)
		outcome.Kind = OutcomeEmpty
		return outcome, pcm.Buffer{}, nil
	}

	data, err := base64.StdEncoding.DecodeString(reply.Payload)
	if err != nil {
		outcome.Kind = OutcomeFailure
		outcome.Err = &PayloadError{Segment: seg.Index, Err: err}
		return outcome, pcm.Buffer{}, outcome.Err
	}
	if len(data)%pcm.BytesPerSample != 0 {
		log.Warn("audio payload has a trailing partial sample, dropping it", "bytes", len(data))
		data = data[:len(data)-1]
	}

	sampleRate := reply.SampleRate
	if sampleRate <= 0 {
		sampleRate = s.opts.SampleRate
	}

	if s.cache != nil {
		if err := s.cache.PutSegment(cacheKey, sampleRate, data); err != nil {
			log.Warn("failed to store in cache", "error", err)
		}
	}

	outcome.Kind = OutcomeSuccess
	outcome.Bytes = len(data)
	log.Debug("segment synthesized", "bytes", len(data), "sample_rate", sampleRate)
	return outcome, pcm.New(data, sampleRate), nil
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength])
}
