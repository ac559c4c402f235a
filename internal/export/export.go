// Package export writes print jobs into the flat comma-separated file consumed by the
// label-printing application.
//
// Fields are joined with a bare comma and never quoted or escaped. A field that itself
// contains a comma shifts the columns of its line for the downstream template; the
// template depends on a fixed column count, so this is left as is.
package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxNameLength is the number of codepoints kept from an item name.
	MaxNameLength = 20
	// Ellipsis is appended to truncated names.
	Ellipsis = "..."
	// Delimiter separates fields on an output line.
	Delimiter = ","
)

var (
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrDirectoryCreate = errors.New("create data directory")
	ErrFileOpen        = errors.New("open data file")
	ErrWrite           = errors.New("write data file")
)

// Item is one row to print. Price is preformatted and never parsed.
type Item struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"qty"`
	Barcode  string `json:"barcode"`
}

// UnmarshalJSON accepts the copy count as either "qty" or "quantity".
func (i *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	var aux struct {
		plain
		Quantity *int `json:"quantity"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*i = Item(aux.plain)
	if aux.Quantity != nil {
		i.Quantity = *aux.Quantity
	}
	return nil
}

// Summary describes a completed export.
type Summary struct {
	JobID string
	Path  string
	Items int
	Lines int
}

// DisplayName caps name at MaxNameLength codepoints, appending Ellipsis when cut.
func DisplayName(name string) string {
	runes := []rune(name)
	if len(runes) <= MaxNameLength {
		return name
	}
	return string(runes[:MaxNameLength]) + Ellipsis
}

// Record renders the output line for item, without the trailing newline.
func Record(item Item) string {
	return strings.Join([]string{item.Code, DisplayName(item.Name), item.Price, item.Barcode}, Delimiter)
}

// Validate rejects items with a negative quantity.
func Validate(items []Item) error {
	for i, item := range items {
		if item.Quantity < 0 {
			return fmt.Errorf("%w: item %d (%s) has quantity %d", ErrInvalidQuantity, i, item.Code, item.Quantity)
		}
	}
	return nil
}

// Export truncates the file at path and writes Quantity copies of each item's record,
// in input order. Quantities are checked before the file is opened. The parent directory
// is created if needed; a failure there is only logged since opening the file reports
// the real problem. A write failure leaves the file partially written.
func Export(path string, items []Item) (*Summary, error) {
	if err := Validate(items); err != nil {
		return nil, err
	}

	jobID := uuid.New().String()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Printf("[export] %s: %v: %v (continuing)", jobID, ErrDirectoryCreate, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileOpen, err)
	}

	lines, writeErr := WriteRecords(f, items)
	closeErr := f.Close()
	if writeErr != nil {
		return nil, writeErr
	}
	if closeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, closeErr)
	}

	log.Printf("[export] %s: wrote %d lines for %d items to %s", jobID, lines, len(items), path)
	return &Summary{JobID: jobID, Path: path, Items: len(items), Lines: lines}, nil
}

// WriteRecords writes the expanded records for items to w and returns the number of
// lines written. It does not validate quantities; a negative quantity writes nothing.
func WriteRecords(w io.Writer, items []Item) (int, error) {
	bw := bufio.NewWriter(w)
	lines := 0
	for _, item := range items {
		line := Record(item) + "\n"
		for n := 0; n < item.Quantity; n++ {
			if _, err := bw.WriteString(line); err != nil {
				return lines, fmt.Errorf("%w: %w", ErrWrite, err)
			}
			lines++
		}
	}
	if err := bw.Flush(); err != nil {
		return lines, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return lines, nil
}
