package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/boxtvsaltogif/pdf-mp3/internal/speech"
)

func TestOutputName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"book.pdf", "book.mp3"},
		{"Book.PDF", "Book.mp3"},
		{"my.notes.Pdf", "my.notes.mp3"},
		{"/tmp/uploads/report.pdf", "report.mp3"},
		{"scan", "scan.mp3"},
		{"archive.pdf.bak", "archive.pdf.bak.mp3"},
		{".pdf", "audio.mp3"},
		{"", "audio.mp3"},
		{"   ", "audio.mp3"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.in); got != tt.want {
			t.Errorf("OutputName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeliveryRelease(t *testing.T) {
	d := &Delivery{FileName: "a.mp3", data: []byte{1, 2, 3}}
	if d.Len() != 3 || d.Released() {
		t.Fatalf("fresh delivery: len=%d released=%v", d.Len(), d.Released())
	}
	d.Release()
	d.Release()
	if d.Bytes() != nil || !d.Released() {
		t.Error("Release() kept the data")
	}

	var nilDelivery *Delivery
	nilDelivery.Release()
	if !nilDelivery.Released() || nilDelivery.Len() != 0 {
		t.Error("nil delivery should behave as released")
	}
}

func TestUserMessage(t *testing.T) {
	transport := &speech.TransportError{Segment: 1, Total: 4, Err: errors.New("dial tcp: timeout")}
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", &ValidationError{Message: msgNoAPIKey}, msgNoAPIKey},
		{"extraction", &ExtractionError{Err: errors.New("bad xref")}, msgUnreadable},
		{"busy", ErrBusy, msgBusy},
		{"transport", transport, "The speech service failed on part 2 of 4. Please try again later."},
		{"transport cancelled", &speech.TransportError{Segment: 0, Total: 1, Err: context.Canceled}, msgCancelled},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), msgTimedOut},
		{"payload", &speech.PayloadError{Segment: 0, Err: errors.New("illegal base64")}, msgBadAudio},
		{"other", errors.New("disk full"), msgGenericFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatePredicates(t *testing.T) {
	for _, s := range []State{StateExtracting, StateSynthesizing, StateEncoding} {
		if !s.Busy() || s.Terminal() {
			t.Errorf("%s: Busy=%v Terminal=%v", s, s.Busy(), s.Terminal())
		}
	}
	for _, s := range []State{StateComplete, StateFailed} {
		if s.Busy() || !s.Terminal() {
			t.Errorf("%s: Busy=%v Terminal=%v", s, s.Busy(), s.Terminal())
		}
	}
	if StateIdle.Busy() || StateIdle.Terminal() {
		t.Error("idle should be neither busy nor terminal")
	}
	var j *Job
	if j.Snapshot().State != StateIdle {
		t.Error("nil job snapshot should be idle")
	}
}
