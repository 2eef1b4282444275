// Package sources implements the per-kind source readers. Each reader turns
// one configured origin into raw article records; normalization happens in
// the pipeline.
package sources

import (
	"context"
	"fmt"
	"time"

	"newsbuzz/config"
	"newsbuzz/types"
)

// Reader is the common capability of every source kind.
type Reader interface {
	Name() string
	Read(ctx context.Context) ([]types.RawRecord, error)
}

// New builds the reader for a source config. loc is the pinned timezone used
// for the search reader's date window; cap bounds the records one read may
// yield.
func New(cfg config.SourceConfig, retry config.RetryPolicy, loc *time.Location, cap int) (Reader, error) {
	fetcher := NewFetcher(retry)
	switch cfg.Kind {
	case config.KindPage:
		return NewPageReader(cfg, fetcher, cap), nil
	case config.KindFeed:
		return NewFeedReader(cfg, fetcher, cap), nil
	case config.KindSearch:
		return NewSearchReader(cfg, fetcher, loc, cap), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
