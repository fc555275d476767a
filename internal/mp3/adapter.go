package mp3

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/boxtvsaltogif/pdf-mp3/internal/pcm"
)

// Adapter turns ordered PCM buffers into one MP3 container.
type Adapter struct {
	factory EncoderFactory
	bitrate int
	log     *slog.Logger
}

// NewAdapter returns an Adapter using factory for each Encode call.
func NewAdapter(factory EncoderFactory, bitrateKbps int, logger *slog.Logger) *Adapter {
	if factory == nil {
		panic("mp3: encoder factory must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if bitrateKbps <= 0 {
		bitrateKbps = DefaultBitrateKbps
	}
	return &Adapter{
		factory: factory,
		bitrate: bitrateKbps,
		log:     logger.With("component", "mp3"),
	}
}

// Encode feeds every buffer, in order, to a fresh mono encoder at sampleRate
// and appends one final flush. The adapter takes ownership of buffers: their
// samples are viewed without copying and the slice entries are cleared once
// encoded. Buffers must hold whole 16-bit samples.
func (a *Adapter) Encode(buffers []pcm.Buffer, sampleRate int) (_ *Container, err error) {
	if sampleRate <= 0 {
		sampleRate = pcm.DefaultSampleRate
	}
	enc, err := a.factory(pcm.Channels, sampleRate, a.bitrate)
	if err != nil {
		return nil, fmt.Errorf("mp3: open encoder: %w", err)
	}
	defer func() {
		if cerr := enc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("mp3: close encoder: %w", cerr)
		}
	}()

	var out bytes.Buffer
	frames := 0
	for i := range buffers {
		if len(buffers[i].Data)%pcm.BytesPerSample != 0 {
			return nil, errors.New("mp3: buffer holds a partial sample")
		}
		if buffers[i].SampleRate != 0 && buffers[i].SampleRate != sampleRate {
			a.log.Warn("buffer sample rate differs from container rate",
				"buffer", i,
				"buffer_rate", buffers[i].SampleRate,
				"container_rate", sampleRate,
			)
		}
		frame, err := enc.EncodeFrame(buffers[i].Samples())
		if err != nil {
			return nil, fmt.Errorf("mp3: encode buffer %d: %w", i, err)
		}
		if len(frame) > 0 {
			out.Write(frame)
			frames++
		}
		buffers[i] = pcm.Buffer{}
	}

	tail, err := enc.Flush()
	if err != nil {
		return nil, fmt.Errorf("mp3: flush: %w", err)
	}
	if len(tail) > 0 {
		out.Write(tail)
		frames++
	}

	a.log.Debug("mp3 container built",
		"buffers", len(buffers),
		"frames", frames,
		"bytes", out.Len(),
		"sample_rate", sampleRate,
	)
	return &Container{Data: out.Bytes(), Frames: frames, SampleRate: sampleRate}, nil
}
