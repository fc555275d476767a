package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"unicode/utf8"

	"github.com/boxtvsaltogif/pdf-mp3/internal/speech"
)

// stubBytesPerChar is 10 ms of 24 kHz mono PCM16.
const stubBytesPerChar = 480

// StubSynthesizer implements speech.Backend with deterministic silent PCM.
// It is intended for CI and offline runs where the real API is unavailable.
type StubSynthesizer struct {
	log *slog.Logger
}

// NewStubSynthesizer returns a stub that generates silence proportional to the
// input text length.
func NewStubSynthesizer(logger *slog.Logger) *StubSynthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubSynthesizer{log: logger.With("component", "gemini-stub")}
}

// Name implements speech.Backend.
func (s *StubSynthesizer) Name() string { return "stub" }

// Synthesize implements speech.Backend.
func (s *StubSynthesizer) Synthesize(_ context.Context, req speech.Request) (speech.Reply, error) {
	if req.Voice == "" {
		return speech.Reply{}, errors.New("gemini: voice is required")
	}
	if req.Segment.Text == "" {
		return speech.Reply{}, errors.New("gemini: text is required")
	}

	n := utf8.RuneCountInString(req.Segment.Text) * stubBytesPerChar
	s.log.Info("stub synthesis",
		"segment", req.Segment.Index+1,
		"text_length", len(req.Segment.Text),
		"voice", req.Voice,
		"bytes", n,
	)
	return speech.Reply{
		Payload:    base64.StdEncoding.EncodeToString(make([]byte, n)),
		SampleRate: 24000,
	}, nil
}
