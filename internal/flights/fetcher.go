package flights

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/35000ft/next-train-bot/pkg/logger"
)

// Default bounds for a single fetch operation.
const (
	// DefaultMaxResult bounds the number of records returned.
	DefaultMaxResult = 20
	// DefaultMaxFetchPage is the hard ceiling on page round-trips per fetch,
	// protecting against runaway scraping loops on noisy sources.
	DefaultMaxFetchPage = 3
)

// FetchOptions enumerates the recognized per-fetch options. Zero values mean
// "use the default"; WithDefaults normalizes the bounds.
type FetchOptions struct {
	Arrivals     bool   // query the arrival board instead of departures
	Cargo        bool   // cargo flights, on sources that distinguish them
	Headless     bool   // browser-automation sources: run without a window
	FromPage     int    // browser/paged sources: skip straight to this page
	Terminal     string // terminal filter, on sources that support one
	MaxResult    int    // output length bound, default 20
	MaxFetchPage int    // page round-trip ceiling, default 3
}

// WithDefaults returns a copy with the bounds normalized.
func (o FetchOptions) WithDefaults() FetchOptions {
	if o.MaxResult <= 0 {
		o.MaxResult = DefaultMaxResult
	}
	if o.MaxFetchPage <= 0 {
		o.MaxFetchPage = DefaultMaxFetchPage
	}
	return o
}

// Fetcher is the contract every per-airport adapter implements.
type Fetcher interface {
	// AirportName is the display name of the airport this fetcher serves.
	AirportName() string
	// AirportCode is the IATA code of the airport this fetcher serves.
	AirportCode() string
	// FetchFlights queries the source and returns records already filtered,
	// sorted by scheduled time and truncated to MaxResult.
	FetchFlights(ctx context.Context, form QueryFlightForm, opts FetchOptions) ([]FlightRecord, error)
}

// Page is one fetched page of a page-numbered source.
type Page struct {
	Records []FlightRecord
	// TotalPages is the page count reported by the source, 0 if unknown.
	TotalPages int
	// HasNext reports whether the source says more pages follow. Only
	// consulted when TotalPages is unknown.
	HasNext bool
}

// PageQuery carries the per-fetch inputs down to a PageSource.
type PageQuery struct {
	Form      QueryFlightForm
	Opts      FetchOptions
	Departure bool
	// Target is the instant the user cares about; page estimation and the
	// undershoot rule steer toward the page containing it.
	Target time.Time
}

// PageSource is the capability a paginated source exposes to the collector.
type PageSource interface {
	FetchPage(ctx context.Context, q PageQuery, page int) (Page, error)
}

// StartPageEstimator is implemented by sources that can guess which page
// holds flights near a target time.
type StartPageEstimator interface {
	EstimateStartPage(target time.Time, maxPage int) int
}

// CollectPages drives a paginated source: estimate a start page, fetch and
// filter page by page, and stop when MaxResult is reached, the fetch-page
// ceiling is hit, or the source runs out of pages. A page whose flights all
// precede the target advances the cursor without consuming fetch budget.
// A failure after the first page returns the records gathered so far.
func CollectPages(ctx context.Context, src PageSource, q PageQuery, pipe *Pipeline, log *logger.Logger) ([]FlightRecord, error) {
	opts := q.Opts.WithDefaults()

	page := 1
	if q.Opts.FromPage > 0 {
		page = q.Opts.FromPage
	}
	pg, err := src.FetchPage(ctx, q, page)
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", page, err)
	}

	maxPage := pg.TotalPages
	if est, ok := src.(StartPageEstimator); ok && q.Opts.FromPage == 0 && !q.Target.IsZero() && maxPage > 1 {
		if start := est.EstimateStartPage(q.Target, maxPage); start > page {
			log.Debug("jumping to estimated page",
				logger.Int("page", start),
				logger.Int("max_page", maxPage),
			)
			page = start
			pg, err = src.FetchPage(ctx, q, page)
			if err != nil {
				return nil, fmt.Errorf("fetch page %d: %w", page, err)
			}
		}
	}

	var out []FlightRecord
	fetched := 0
	for {
		fetched++

		// Undershoot: the estimated page can land before the target time.
		// Advancing does not count against the fetch ceiling, otherwise a
		// low estimate would burn the whole budget on stale pages.
		if undershoots(pg, q, page, maxPage) {
			log.Debug("page precedes target time, advancing", logger.Int("page", page))
			fetched = 0
			page++
			pg, err = src.FetchPage(ctx, q, page)
			if err != nil {
				log.Warn("page fetch failed, returning partial results",
					logger.Int("page", page), logger.Error(err))
				break
			}
			continue
		}

		out = append(out, pipe.Apply(pg.Records)...)
		if len(out) >= opts.MaxResult {
			break
		}
		if fetched >= opts.MaxFetchPage {
			break
		}
		if !hasNextPage(pg, page) {
			break
		}

		page++
		next, err := src.FetchPage(ctx, q, page)
		if err != nil {
			log.Warn("page fetch failed, returning partial results",
				logger.Int("page", page), logger.Error(err))
			break
		}
		pg = next
	}

	return SortAndTruncate(out, q.Departure, opts.MaxResult), nil
}

// undershoots reports whether every derivable time on the page precedes the
// target and more pages remain.
func undershoots(pg Page, q PageQuery, page, maxPage int) bool {
	if q.Target.IsZero() || maxPage <= 0 || page >= maxPage || len(pg.Records) == 0 {
		return false
	}
	var latest time.Time
	seen := false
	for _, r := range pg.Records {
		if at, ok := r.ScheduledAt(q.Departure); ok {
			seen = true
			if at.After(latest) {
				latest = at
			}
		}
	}
	return seen && latest.Before(q.Target)
}

func hasNextPage(pg Page, page int) bool {
	if pg.TotalPages > 0 {
		return page < pg.TotalPages
	}
	return pg.HasNext
}

// SortAndTruncate orders records ascending by derived scheduled time and
// bounds the result. Records with no derivable time sort last, preserving
// their fetch order.
func SortAndTruncate(records []FlightRecord, departure bool, maxResult int) []FlightRecord {
	sort.SliceStable(records, func(i, j int) bool {
		ti, iok := records[i].ScheduledAt(departure)
		tj, jok := records[j].ScheduledAt(departure)
		if iok != jok {
			return iok
		}
		if !iok {
			return false
		}
		return ti.Before(tj)
	})
	if maxResult > 0 && len(records) > maxResult {
		records = records[:maxResult]
	}
	return records
}
