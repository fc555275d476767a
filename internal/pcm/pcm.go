// Package pcm holds the raw audio buffers exchanged between the speech
// synthesizer and the MP3 encoder.
package pcm

import (
	"encoding/binary"
	"time"
	"unsafe"
)

const (
	// DefaultSampleRate is the rate used by the Gemini TTS models.
	DefaultSampleRate = 24000
	// Channels is fixed: every buffer in this system is mono.
	Channels = 1
	// BytesPerSample for signed 16-bit little-endian samples.
	BytesPerSample = 2
)

var littleEndianHost = func() bool {
	one := uint16(1)
	return *(*byte)(unsafe.Pointer(&one)) == 1
}()

// Buffer is a sequence of signed 16-bit little-endian mono samples.
type Buffer struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// New wraps data as a mono buffer at sampleRate. The buffer takes ownership of data.
func New(data []byte, sampleRate int) Buffer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return Buffer{Data: data, SampleRate: sampleRate, Channels: Channels}
}

// Len returns the number of whole samples in the buffer.
func (b Buffer) Len() int {
	return len(b.Data) / BytesPerSample
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Len()) * time.Second / time.Duration(b.SampleRate)
}

// Samples reinterprets the byte buffer as int16 samples. On little-endian
// hosts the returned slice aliases Data; no copy is made.
func (b Buffer) Samples() []int16 {
	n := b.Len()
	if n == 0 {
		return nil
	}
	if !littleEndianHost {
		out := make([]int16, n)
		for i := range out {
			out[i] = int16(binary.LittleEndian.Uint16(b.Data[i*2:]))
		}
		return out
	}
	return unsafe.Slice((*int16)(unsafe.Pointer(unsafe.SliceData(b.Data))), n)
}

// SampleBytes is the inverse of Samples: it views samples as little-endian bytes.
func SampleBytes(samples []int16) []byte {
	if len(samples) == 0 {
		return nil
	}
	if !littleEndianHost {
		out := make([]byte, len(samples)*BytesPerSample)
		for i, s := range samples {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
		}
		return out
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(samples))), len(samples)*BytesPerSample)
}
