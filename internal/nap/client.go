// Package nap synthesizes speech through any text-to-speech adapter that
// speaks the Nupi Adapter Protocol over gRPC.
package nap

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	napv1 "github.com/nupi-ai/nupi/api/nap/v1"

	"github.com/boxtvsaltogif/pdf-mp3/internal/appinfo"
	"github.com/boxtvsaltogif/pdf-mp3/internal/speech"
)

// DefaultSampleRate is the PCM rate NAP adapters stream.
const DefaultSampleRate = 16000

// Client implements speech.Backend on top of a NAP TextToSpeechService.
type Client struct {
	conn       *grpc.ClientConn // nil when constructed from an existing connection
	tts        napv1.TextToSpeechServiceClient
	log        *slog.Logger
	sessionID  string
	sampleRate int
}

// Dial connects to the adapter at addr without transport security.
func Dial(addr string, logger *slog.Logger) (*Client, error) {
	if addr == "" {
		return nil, errors.New("nap: adapter address is required")
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("nap: dial %s: %w", addr, err)
	}
	c := NewClient(conn, logger)
	c.conn = conn
	return c, nil
}

// NewClient wraps an existing connection. The caller keeps ownership of cc.
func NewClient(cc grpc.ClientConnInterface, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		tts:        napv1.NewTextToSpeechServiceClient(cc),
		log:        logger.With("component", "nap"),
		sessionID:  uuid.NewString(),
		sampleRate: DefaultSampleRate,
	}
}

// Close releases the connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Name implements speech.Backend.
func (c *Client) Name() string { return "nap" }

// Synthesize implements speech.Backend. It drains the adapter's stream and
// returns the concatenated audio chunks as one payload.
func (c *Client) Synthesize(ctx context.Context, req speech.Request) (speech.Reply, error) {
	if req.Segment.Text == "" {
		return speech.Reply{}, errors.New("nap: text is required")
	}

	streamID := fmt.Sprintf("segment-%d", req.Segment.Index+1)
	stream, err := c.tts.StreamSynthesis(ctx, &napv1.StreamSynthesisRequest{
		SessionId: c.sessionID,
		StreamId:  streamID,
		Text:      req.Segment.Text,
		Metadata:  appinfo.EventMetadata(req.Model, req.Voice),
	})
	if err != nil {
		return speech.Reply{}, fmt.Errorf("nap: open stream: %w", err)
	}

	var (
		audio    []byte
		chunks   int
		metadata map[string]string
	)
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return speech.Reply{}, fmt.Errorf("nap: receive: %w", err)
		}

		switch resp.GetStatus() {
		case napv1.SynthesisStatus_SYNTHESIS_STATUS_ERROR:
			return speech.Reply{}, fmt.Errorf("nap: adapter error: %s", resp.GetErrorMessage())
		case napv1.SynthesisStatus_SYNTHESIS_STATUS_INTERRUPTED:
			return speech.Reply{}, fmt.Errorf("nap: synthesis interrupted: %s", resp.GetMetadata()["reason"])
		case napv1.SynthesisStatus_SYNTHESIS_STATUS_FINISHED:
			metadata = resp.GetMetadata()
		}

		if chunk := resp.GetChunk(); chunk != nil && len(chunk.GetData()) > 0 {
			audio = append(audio, chunk.GetData()...)
			chunks++
		}
	}

	raw, _ := json.Marshal(metadata)
	c.log.Debug("nap synthesis finished",
		"stream_id", streamID,
		"chunks", chunks,
		"bytes", len(audio),
	)

	reply := speech.Reply{Raw: raw}
	if len(audio) > 0 {
		reply.Payload = base64.StdEncoding.EncodeToString(audio)
		reply.SampleRate = c.sampleRate
	}
	return reply, nil
}
