package kml

import (
	"bytes"
	"context"
	"fmt"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

// Getter downloads a document body.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Fetcher implements ports.RecordSource over HTTP.
type Fetcher struct {
	getter Getter
}

// NewFetcher wraps a downloader, usually an *httpfetch.Client.
func NewFetcher(getter Getter) *Fetcher {
	return &Fetcher{getter: getter}
}

// Fetch downloads and parses the KML document at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]domain.GeoRecord, error) {
	body, err := f.getter.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	records, err := Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return records, nil
}
