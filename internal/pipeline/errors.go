package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/boxtvsaltogif/pdf-mp3/internal/speech"
)

// ErrBusy is returned by Run while another job is in flight.
var ErrBusy = errors.New("pipeline: a conversion is already running")

const (
	msgSelectFile    = "Please select a file and a voice."
	msgSelectPDF     = "Please select a PDF file."
	msgNoAPIKey      = "API key not found. Check the environment configuration."
	msgEmptyText     = "The PDF appears to be empty or contains no readable text."
	msgNoAudio       = "Could not generate any audio. The PDF content may have been entirely blocked or the API may be unavailable."
	msgUnreadable    = "Could not parse the PDF file. It might be corrupted or protected."
	msgBadAudio      = "The speech service returned audio that could not be decoded."
	msgBusy          = "A conversion is already in progress. Please wait for it to finish."
	msgCancelled     = "The conversion was cancelled."
	msgTimedOut      = "The conversion timed out."
	msgGenericFailed = "Failed to process the file."
)

// ValidationError reports a violated precondition or an unusable input.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pipeline: %s: %v", e.Message, e.Err)
	}
	return "pipeline: " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ExtractionError wraps a failure of the PDF text extractor.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("pipeline: extract text: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// UserMessage renders err as a message suitable for end users. Raw causes
// are left to the logs.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		validation *ValidationError
		extraction *ExtractionError
		transport  *speech.TransportError
		payload    *speech.PayloadError
	)
	switch {
	case errors.As(err, &validation):
		return validation.Message
	case errors.As(err, &extraction):
		return msgUnreadable
	case errors.Is(err, ErrBusy):
		return msgBusy
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimedOut
	case errors.As(err, &payload):
		return msgBadAudio
	case errors.As(err, &transport):
		return fmt.Sprintf("The speech service failed on part %d of %d. Please try again later.", transport.Segment+1, transport.Total)
	default:
		return msgGenericFailed
	}
}

func skippedWarning(skipped int) string {
	return fmt.Sprintf("Warning: %d part(s) of the document were not converted, possibly due to content policy violations. The remaining audio was generated.", skipped)
}
