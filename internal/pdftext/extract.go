// Package pdftext extracts plain text from PDF documents.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnreadable is returned when the document cannot be parsed, typically
// because it is corrupted or password protected.
var ErrUnreadable = errors.New("pdftext: file is corrupted or protected")

var magic = []byte("%PDF-")

// LooksLikePDF reports whether data starts with the PDF header. Some writers
// put a few bytes of junk before the header, so the first KiB is searched.
func LooksLikePDF(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, magic)
}

// Extract returns the text of every page in order, one page per line. Runs
// of whitespace within a page collapse to single spaces.
func Extract(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if !page.V.IsNull() {
			raw, err := page.GetPlainText(nil)
			if err != nil {
				return "", fmt.Errorf("%w: page %d: %v", ErrUnreadable, i, err)
			}
			b.WriteString(strings.Join(strings.Fields(raw), " "))
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}
