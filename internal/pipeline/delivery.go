package pipeline

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/boxtvsaltogif/pdf-mp3/internal/mp3"
)

const fallbackOutputName = "audio.mp3"

// Delivery is the downloadable result of a completed job. It stays valid
// until Release is called or a new job supersedes it.
type Delivery struct {
	JobID    string
	FileName string
	MIMEType string

	mu       sync.Mutex
	data     []byte
	released bool
}

func newDelivery(jobID, inputName string, c *mp3.Container) *Delivery {
	return &Delivery{
		JobID:    jobID,
		FileName: OutputName(inputName),
		MIMEType: mp3.MIMEType,
		data:     c.Data,
	}
}

// Bytes returns the MP3 file, or nil once released.
func (d *Delivery) Bytes() []byte {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.data
}

// Len is the size of the MP3 file in bytes.
func (d *Delivery) Len() int {
	return len(d.Bytes())
}

// Release drops the file contents. Calling it more than once is harmless.
func (d *Delivery) Release() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.data = nil
	d.released = true
	d.mu.Unlock()
}

// Released reports whether the delivery can no longer be downloaded.
func (d *Delivery) Released() bool {
	if d == nil {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

// OutputName derives the MP3 file name from the uploaded file name by
// replacing a trailing ".pdf" (any case) with ".mp3".
func OutputName(inputName string) string {
	base := filepath.Base(strings.TrimSpace(inputName))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return fallbackOutputName
	}
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".pdf") {
		stem := strings.TrimSuffix(base, ext)
		if stem == "" {
			return fallbackOutputName
		}
		return stem + ".mp3"
	}
	return base + ".mp3"
}
