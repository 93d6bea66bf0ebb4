// Package csvfeed downloads delimited open-data tables.
package csvfeed

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
)

// Getter downloads a document body.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Feed implements ports.TableSource.
type Feed struct {
	getter Getter
	comma  rune
}

// New creates a Feed reading comma-separated files.
func New(getter Getter) *Feed {
	return &Feed{getter: getter, comma: ','}
}

// FetchTable downloads url and returns every record, header first. Rows may
// have different lengths.
func (f *Feed) FetchTable(ctx context.Context, url string) ([][]string, error) {
	body, err := f.getter.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	rows, err := Decode(body, f.comma)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return rows, nil
}

// Decode parses body as a delimited table.
func Decode(body []byte, comma rune) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.Comma = comma
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}
