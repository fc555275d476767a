// Package mp3 streams PCM buffers through an MP3 encoder into a single container.
package mp3

import "errors"

const (
	// DefaultBitrateKbps is the constant bitrate of produced files.
	DefaultBitrateKbps = 128
	// MIMEType of the produced container.
	MIMEType = "audio/mpeg"
)

// ErrClosed is returned when an encoder is used after Close.
var ErrClosed = errors.New("mp3: encoder closed")

// Encoder is a streaming MP3 encoder session. EncodeFrame and Flush may
// return empty output when no complete frame is available yet.
type Encoder interface {
	EncodeFrame(samples []int16) ([]byte, error)
	Flush() ([]byte, error)
	Close() error
}

// EncoderFactory opens a new encoder session.
type EncoderFactory func(channels, sampleRate, bitrateKbps int) (Encoder, error)

// Container is a finished MP3 file.
type Container struct {
	Data       []byte
	Frames     int
	SampleRate int
}

// Len returns the size of the encoded file in bytes.
func (c *Container) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Data)
}
