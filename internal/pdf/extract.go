// Package pdf implements page-level operations on in-memory PDF buffers.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrPageOutOfRange is returned when a requested page index does not exist.
var ErrPageOutOfRange = errors.New("page index out of range")

// relaxedConf returns a pdfcpu configuration tolerant of the slightly
// malformed PDFs that scanners and office printers produce.
func relaxedConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages in the given PDF buffer.
func PageCount(pdf []byte) (int, error) {
	count, err := api.PageCount(bytes.NewReader(pdf), relaxedConf())
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return count, nil
}

// ExtractPage produces a new, independent single-page PDF containing only
// the page at the given zero-based index. The input buffer is not modified.
func ExtractPage(pdf []byte, index int) ([]byte, error) {
	count, err := PageCount(pdf)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= count {
		return nil, fmt.Errorf("%w: index %d, document has %d pages", ErrPageOutOfRange, index, count)
	}

	var out bytes.Buffer
	selected := []string{strconv.Itoa(index + 1)}
	if err := api.Trim(bytes.NewReader(pdf), &out, selected, relaxedConf()); err != nil {
		return nil, fmt.Errorf("failed to extract page %d: %w", index+1, err)
	}
	return out.Bytes(), nil
}
