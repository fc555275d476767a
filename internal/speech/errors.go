package speech

import "fmt"

// TransportError reports a segment whose remote call kept failing after all
// retries. The cause is the last error the backend returned.
type TransportError struct {
	Segment int
	Total   int
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("speech: segment %d of %d failed: %v", e.Segment+1, e.Total, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PayloadError reports audio that could not be decoded.
type PayloadError struct {
	Segment int
	Err     error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("speech: segment %d: decode audio payload: %v", e.Segment+1, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }
