// Package planner splits a filter statement into bounded-size pages whose
// union reproduces the full result set, subject to an overall result cap.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pubops/admanager-site-export/pkg/statement"
)

// ErrNoResults is returned when the count probe reports an empty result set.
// An empty import never creates a destination.
var ErrNoResults = errors.New("no sites found")

// Counter reports the total result-set size for a statement. Implemented by
// the Ad Manager client as a single-record page fetch.
type Counter interface {
	CountByStatement(ctx context.Context, stmt statement.Statement) (int, error)
}

// Page is one bounded sub-query of a filter statement. Pages are immutable
// once created and consumed exactly once by the batch fetch driver.
type Page struct {
	Statement statement.Statement
	Limit     int
	Offset    int
}

// Options holds planning parameters.
type Options struct {
	// PageSize is the record count per page.
	PageSize int

	// MaxResults caps the total records an import may retrieve.
	MaxResults int
}

// DefaultOptions returns the default planning parameters.
func DefaultOptions() Options {
	return Options{
		PageSize:   100,
		MaxResults: 100000,
	}
}

// Plan is the ordered page sequence covering a filter's result set.
type Plan struct {
	Pages        []Page
	TotalResults int
}

// Planner builds page sequences from filter statements.
type Planner struct {
	counter Counter
	logger  zerolog.Logger
}

// New creates a planner using the given counter for the count probe.
func New(counter Counter) *Planner {
	return &Planner{
		counter: counter,
		logger:  log.With().Str("component", "planner").Logger(),
	}
}

// Plan validates the filter, probes the backing result-set size once, and
// builds the page sequence at offsets 0, PageSize, 2*PageSize, ...
//
// A filter that already carries pagination fails with
// statement.ErrPaginationClause before any remote call. A zero-size result
// set fails with ErrNoResults. Transient probe faults surface immediately;
// retry is owned by the counter implementation.
func (p *Planner) Plan(ctx context.Context, stmt statement.Statement, opts Options) (*Plan, error) {
	if err := stmt.Validate(); err != nil {
		return nil, err
	}

	if opts.PageSize <= 0 {
		opts.PageSize = DefaultOptions().PageSize
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultOptions().MaxResults
	}

	total, err := p.counter.CountByStatement(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("count probe: %w", err)
	}
	if total == 0 {
		return nil, ErrNoResults
	}
	if total > opts.MaxResults {
		p.logger.Warn().
			Int("total_result_set_size", total).
			Int("max_results", opts.MaxResults).
			Msg("Result set capped")
		total = opts.MaxResults
	}

	pages := make([]Page, 0, (total+opts.PageSize-1)/opts.PageSize)
	for offset := 0; offset < total; offset += opts.PageSize {
		pages = append(pages, Page{
			Statement: stmt.WithPagination(opts.PageSize, offset),
			Limit:     opts.PageSize,
			Offset:    offset,
		})
	}

	p.logger.Info().
		Int("total_results", total).
		Int("pages", len(pages)).
		Int("page_size", opts.PageSize).
		Msg("Import planned")

	return &Plan{Pages: pages, TotalResults: total}, nil
}
