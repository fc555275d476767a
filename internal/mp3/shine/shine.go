// Package shine provides an mp3.Encoder backed by the pure Go port of the
// shine fixed-point MP3 encoder.
package shine

import (
	"bytes"
	"fmt"

	shinemp3 "github.com/braheezy/shine-mp3/pkg/mp3"

	"github.com/boxtvsaltogif/pdf-mp3/internal/mp3"
)

// Bitrate is the only bitrate the shine port produces.
const Bitrate = 128

// nativeRates are the rates the port writes valid streams for, mapped to
// samples per channel per frame.
var nativeRates = map[int]int{
	// MPEG-1
	32000: 1152, 44100: 1152, 48000: 1152,
	// MPEG-2
	22050: 576, 24000: 576,
}

// upsampled maps low input rates to a native rate that is a whole multiple.
var upsampled = map[int]int{
	16000: 32000,
	12000: 24000,
	11025: 22050,
	8000:  24000,
}

// OutputRate reports the rate of the MP3 stream written for input at
// sampleRate, or 0 when the rate is not supported.
func OutputRate(sampleRate int) int {
	if _, ok := nativeRates[sampleRate]; ok {
		return sampleRate
	}
	return upsampled[sampleRate]
}

// Encoder feeds shine exactly one frame per call.
type Encoder struct {
	enc      *shinemp3.Encoder
	out      bytes.Buffer
	pending  []int16
	frameLen int // interleaved samples per frame
	channels int
	factor   int
	last     []int16 // previous input sample per channel, for interpolation
	closed   bool
}

// New opens a mono or stereo encoder. It satisfies mp3.EncoderFactory.
// Input at 8000, 11025, 12000 or 16000 Hz is linearly upsampled to
// OutputRate.
func New(channels, sampleRate, bitrateKbps int) (mp3.Encoder, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("shine: unsupported channel count %d", channels)
	}
	outRate := OutputRate(sampleRate)
	if outRate == 0 {
		return nil, fmt.Errorf("shine: unsupported sample rate %d", sampleRate)
	}
	if bitrateKbps != Bitrate {
		return nil, fmt.Errorf("shine: unsupported bitrate %d kbit/s (only %d)", bitrateKbps, Bitrate)
	}
	return &Encoder{
		enc:      shinemp3.NewEncoder(outRate, channels),
		frameLen: nativeRates[outRate] * channels,
		channels: channels,
		factor:   outRate / sampleRate,
		last:     make([]int16, channels),
	}, nil
}

// EncodeFrame encodes as many whole frames as samples (plus any carried-over
// remainder) allow and returns their bytes.
func (e *Encoder) EncodeFrame(samples []int16) ([]byte, error) {
	if e.closed {
		return nil, mp3.ErrClosed
	}
	samples = e.upsample(samples)
	var batch []int16
	if len(e.pending) == 0 {
		batch = samples
	} else {
		batch = append(e.pending, samples...)
	}

	whole := len(batch) - len(batch)%e.frameLen
	rest := batch[whole:]
	e.pending = append(make([]int16, 0, len(rest)), rest...)
	if whole == 0 {
		return nil, nil
	}
	return e.write(batch[:whole])
}

// Flush pads the remaining samples with silence to a whole frame and
// encodes it.
func (e *Encoder) Flush() ([]byte, error) {
	if e.closed {
		return nil, mp3.ErrClosed
	}
	if len(e.pending) == 0 {
		return nil, nil
	}
	tail := make([]int16, e.frameLen)
	copy(tail, e.pending)
	e.pending = nil
	return e.write(tail)
}

// Close ends the session. It is safe to call more than once.
func (e *Encoder) Close() error {
	e.closed = true
	e.pending = nil
	return nil
}

// write encodes samples, a whole number of frames, one frame per call:
// the port's Write strides as if every frame were stereo.
func (e *Encoder) write(samples []int16) ([]byte, error) {
	e.out.Reset()
	for off := 0; off < len(samples); off += e.frameLen {
		if err := e.enc.Write(&e.out, samples[off:off+e.frameLen]); err != nil {
			return nil, fmt.Errorf("shine: encode: %w", err)
		}
	}
	return bytes.Clone(e.out.Bytes()), nil
}

// upsample interpolates between consecutive samples of each channel.
func (e *Encoder) upsample(in []int16) []int16 {
	if e.factor == 1 || len(in) == 0 {
		return in
	}
	out := make([]int16, 0, len(in)*e.factor)
	for i := 0; i+e.channels <= len(in); i += e.channels {
		for step := 1; step <= e.factor; step++ {
			for ch := 0; ch < e.channels; ch++ {
				prev, cur := int(e.last[ch]), int(in[i+ch])
				out = append(out, int16(prev+(cur-prev)*step/e.factor))
			}
		}
		copy(e.last, in[i:i+e.channels])
	}
	return out
}
