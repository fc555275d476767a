package shine

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/boxtvsaltogif/pdf-mp3/internal/mp3"
	"github.com/boxtvsaltogif/pdf-mp3/internal/pcm"
)

var (
	layer3Kbps = map[bool][]int{
		true:  {0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320},
		false: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
	}
	headerRates = map[byte][]int{
		3: {44100, 48000, 32000}, // MPEG-1
		2: {22050, 24000, 16000}, // MPEG-2
		0: {11025, 12000, 8000},  // MPEG-2.5
	}
)

// walkFrames follows layer III frame headers from the first byte to the
// last and returns the frame count and the declared sample rate.
func walkFrames(t *testing.T, data []byte) (frames, rate int) {
	t.Helper()
	for pos := 0; pos < len(data); frames++ {
		if pos+4 > len(data) {
			t.Fatalf("frame %d: truncated header at byte %d of %d", frames, pos, len(data))
		}
		h := data[pos : pos+4]
		if h[0] != 0xFF || h[1]&0xE0 != 0xE0 || (h[1]>>1)&3 != 1 {
			t.Fatalf("frame %d: no layer III sync at byte %d: % x", frames, pos, h)
		}
		version := (h[1] >> 3) & 3
		rates, ok := headerRates[version]
		srIdx := (h[2] >> 2) & 3
		if !ok || srIdx > 2 {
			t.Fatalf("frame %d: bad version %d or rate index %d", frames, version, srIdx)
		}
		r := rates[srIdx]
		if rate != 0 && r != rate {
			t.Fatalf("frame %d: rate changed from %d to %d", frames, rate, r)
		}
		rate = r
		mpeg1 := version == 3
		brIdx := int(h[2] >> 4)
		if brIdx == 0 || brIdx == 15 {
			t.Fatalf("frame %d: unusable bitrate index %d", frames, brIdx)
		}
		kbps := layer3Kbps[mpeg1][brIdx]
		coeff := 72000
		if mpeg1 {
			coeff = 144000
		}
		pos += coeff*kbps/r + int((h[2]>>1)&1)
	}
	return frames, rate
}

func tone(n, rate int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(8000 * math.Sin(2*math.Pi*660*float64(i)/float64(rate)))
	}
	return s
}

// encodeAll feeds samples in three uneven parts, then flushes.
func encodeAll(t *testing.T, rate int, samples []int16) []byte {
	t.Helper()
	enc, err := New(1, rate, Bitrate)
	if err != nil {
		t.Fatalf("New(1, %d): %v", rate, err)
	}
	defer enc.Close()
	cuts := []int{0, len(samples) / 7, len(samples) / 2, len(samples)}
	var out []byte
	for i := 0; i < 3; i++ {
		b, err := enc.EncodeFrame(samples[cuts[i]:cuts[i+1]])
		if err != nil {
			t.Fatalf("EncodeFrame: %v", err)
		}
		out = append(out, b...)
	}
	tail, err := enc.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(enc.(*Encoder).pending) != 0 {
		t.Error("pending samples left after Flush")
	}
	return append(out, tail...)
}

func TestNewRejectsUnsupportedParameters(t *testing.T) {
	tests := []struct {
		name       string
		channels   int
		rate       int
		bitrateKbs int
	}{
		{"channels", 3, 24000, 128},
		{"sample rate", 1, 23000, 128},
		{"bitrate", 1, 24000, 320},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.channels, tt.rate, tt.bitrateKbs); err == nil {
				t.Errorf("New(%d, %d, %d) error = nil", tt.channels, tt.rate, tt.bitrateKbs)
			}
		})
	}
}

func TestEncodeFrameBuffersPartialFrames(t *testing.T) {
	enc, err := New(1, 24000, Bitrate)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer enc.Close()

	out, err := enc.EncodeFrame(make([]int16, 100))
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("EncodeFrame returned %d bytes for less than one frame", len(out))
	}
	if got := len(enc.(*Encoder).pending); got != 100 {
		t.Errorf("pending = %d samples, want 100", got)
	}
}

func TestEveryFrameSurvives(t *testing.T) {
	for rate, frameLen := range nativeRates {
		t.Run(strconv.Itoa(rate), func(t *testing.T) {
			out := encodeAll(t, rate, tone(20*frameLen, rate))
			frames, got := walkFrames(t, out)
			if frames != 20 || got != rate {
				t.Errorf("stream = %d frames at %d Hz, want 20 at %d Hz", frames, got, rate)
			}
		})
	}
}

func TestAdapterKeepsEveryFrame(t *testing.T) {
	samples := tone(100*576, 24000)
	buf := pcm.New(pcm.SampleBytes(samples), 24000)
	c, err := mp3.NewAdapter(New, Bitrate, nil).Encode([]pcm.Buffer{buf}, 24000)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if frames, _ := walkFrames(t, c.Data); frames != 100 {
		t.Errorf("container holds %d frames, want 100", frames)
	}
}

func TestFlushPadsTailToFrame(t *testing.T) {
	samples := tone(100*576+100, 24000)
	frames, _ := walkFrames(t, encodeAll(t, 24000, samples))
	if want := (len(samples) + 575) / 576; frames != want {
		t.Errorf("frames = %d, want %d", frames, want)
	}
}

func TestLowRatesAreUpsampled(t *testing.T) {
	tests := []struct {
		in, out int
	}{
		{16000, 32000},
		{12000, 24000},
		{11025, 22050},
		{8000, 24000},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.in), func(t *testing.T) {
			if got := OutputRate(tt.in); got != tt.out {
				t.Fatalf("OutputRate(%d) = %d, want %d", tt.in, got, tt.out)
			}
			samples := tone(tt.in, tt.in) // one second
			frames, rate := walkFrames(t, encodeAll(t, tt.in, samples))
			frameLen := nativeRates[tt.out]
			want := (len(samples)*(tt.out/tt.in) + frameLen - 1) / frameLen
			if rate != tt.out || frames != want {
				t.Errorf("stream = %d frames at %d Hz, want %d at %d Hz", frames, rate, want, tt.out)
			}
		})
	}
}

func TestUpsampleInterpolates(t *testing.T) {
	enc, err := New(1, 16000, Bitrate)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e := enc.(*Encoder)
	got := e.upsample([]int16{100, 300})
	want := []int16{50, 100, 200, 300}
	if len(got) != len(want) {
		t.Fatalf("upsample = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("upsample = %v, want %v", got, want)
		}
	}
	if next := e.upsample([]int16{500}); next[0] != 400 || next[1] != 500 {
		t.Errorf("upsample across calls = %v, want [400 500]", next)
	}
}

func TestClosedEncoder(t *testing.T) {
	enc, err := New(1, 24000, Bitrate)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := enc.EncodeFrame(make([]int16, 10)); !errors.Is(err, mp3.ErrClosed) {
		t.Errorf("EncodeFrame after Close = %v, want ErrClosed", err)
	}
	if _, err := enc.Flush(); !errors.Is(err, mp3.ErrClosed) {
		t.Errorf("Flush after Close = %v, want ErrClosed", err)
	}
}

func TestFactorySignature(t *testing.T) {
	var _ mp3.EncoderFactory = New
}
