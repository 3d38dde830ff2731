package flights

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/35000ft/next-train-bot/pkg/logger"
	"github.com/stretchr/testify/require"
)

// fakeSource serves canned pages and counts fetches.
type fakeSource struct {
	pages      []Page
	fetchCount int
	startPage  int
	failFrom   int // fail fetches for pages >= failFrom, 0 = never
}

func (s *fakeSource) FetchPage(_ context.Context, _ PageQuery, page int) (Page, error) {
	s.fetchCount++
	if s.failFrom > 0 && page >= s.failFrom {
		return Page{}, errors.New("boom")
	}
	if page < 1 || page > len(s.pages) {
		return Page{}, errors.New("no such page")
	}
	pg := s.pages[page-1]
	pg.TotalPages = len(s.pages)
	return pg, nil
}

func (s *fakeSource) EstimateStartPage(time.Time, int) int { return s.startPage }

func depRecord(no, clock string) FlightRecord {
	return FlightRecord{FlightNo: no, DepTime: clock, DepAirport: "测试", ArrAirport: "北京", Date: day(2025, 4, 14)}
}

func collect(t *testing.T, src PageSource, q PageQuery) []FlightRecord {
	t.Helper()
	pipe, err := NewPipeline(FilterOptionsFrom(q.Form, q.Departure))
	require.NoError(t, err)
	got, err := CollectPages(context.Background(), src, q, pipe, logger.Nop())
	require.NoError(t, err)
	return got
}

func TestCollectPagesStopsAtMaxResult(t *testing.T) {
	src := &fakeSource{pages: []Page{
		{Records: []FlightRecord{depRecord("MU1", "08:00")}},
		{Records: []FlightRecord{depRecord("MU2", "09:00")}},
		{Records: []FlightRecord{depRecord("MU3", "10:00")}},
	}}
	got := collect(t, src, PageQuery{
		Departure: true,
		Opts:      FetchOptions{MaxResult: 1, MaxFetchPage: 5},
	})
	require.Len(t, got, 1)
	require.Equal(t, 1, src.fetchCount, "must stop fetching once MaxResult is reached")
}

func TestCollectPagesHonorsFetchCeiling(t *testing.T) {
	src := &fakeSource{pages: []Page{
		{Records: []FlightRecord{depRecord("MU1", "08:00")}},
		{Records: []FlightRecord{depRecord("MU2", "09:00")}},
		{Records: []FlightRecord{depRecord("MU3", "10:00")}},
		{Records: []FlightRecord{depRecord("MU4", "11:00")}},
	}}
	got := collect(t, src, PageQuery{
		Departure: true,
		Opts:      FetchOptions{MaxResult: 20, MaxFetchPage: 2},
	})
	require.Equal(t, []string{"MU1", "MU2"}, flightNos(got))
	require.Equal(t, 2, src.fetchCount)
}

func TestCollectPagesSortsAscendingByScheduledTime(t *testing.T) {
	src := &fakeSource{pages: []Page{
		{Records: []FlightRecord{
			depRecord("MU3", "12:00"),
			depRecord("MU1", "06:30"),
			depRecord("MU2", "09:15"),
		}},
	}}
	got := collect(t, src, PageQuery{Departure: true})
	require.Equal(t, []string{"MU1", "MU2", "MU3"}, flightNos(got))
}

func TestCollectPagesUndershootAdvancesWithoutBudget(t *testing.T) {
	// Pages 1-2 are entirely before the target; the collector must skip
	// past them, resetting the ceiling, and still fetch two real pages.
	target := time.Date(2025, 4, 14, 15, 0, 0, 0, cst)
	src := &fakeSource{
		startPage: 1,
		pages: []Page{
			{Records: []FlightRecord{depRecord("MU1", "06:00")}},
			{Records: []FlightRecord{depRecord("MU2", "08:00")}},
			{Records: []FlightRecord{depRecord("MU3", "15:30")}},
			{Records: []FlightRecord{depRecord("MU4", "16:30")}},
		},
	}
	got := collect(t, src, PageQuery{
		Departure: true,
		Target:    target,
		Opts:      FetchOptions{MaxResult: 20, MaxFetchPage: 2},
	})
	require.Equal(t, []string{"MU3", "MU4"}, flightNos(got))
	require.Equal(t, 4, src.fetchCount)
}

func TestCollectPagesStartsAtEstimatedPage(t *testing.T) {
	target := time.Date(2025, 4, 14, 20, 0, 0, 0, cst)
	src := &fakeSource{
		startPage: 3,
		pages: []Page{
			{Records: []FlightRecord{depRecord("MU1", "06:00")}},
			{Records: []FlightRecord{depRecord("MU2", "12:00")}},
			{Records: []FlightRecord{depRecord("MU3", "20:30")}},
		},
	}
	got := collect(t, src, PageQuery{
		Departure: true,
		Target:    target,
		Opts:      FetchOptions{MaxFetchPage: 1},
	})
	require.Equal(t, []string{"MU3"}, flightNos(got))
	// page 1 to discover the page count, then the estimated page 3
	require.Equal(t, 2, src.fetchCount)
}

func TestCollectPagesPartialOnLaterPageFailure(t *testing.T) {
	src := &fakeSource{
		failFrom: 2,
		pages: []Page{
			{Records: []FlightRecord{depRecord("MU1", "08:00")}},
			{Records: []FlightRecord{depRecord("MU2", "09:00")}},
		},
	}
	got := collect(t, src, PageQuery{Departure: true, Opts: FetchOptions{MaxFetchPage: 3}})
	require.Equal(t, []string{"MU1"}, flightNos(got), "partial results survive a mid-loop failure")
}

func TestCollectPagesFirstPageFailurePropagates(t *testing.T) {
	src := &fakeSource{failFrom: 1, pages: []Page{{}}}
	pipe, err := NewPipeline(FilterOptions{})
	require.NoError(t, err)
	_, err = CollectPages(context.Background(), src, PageQuery{Departure: true}, pipe, logger.Nop())
	require.Error(t, err)
}

func TestSortAndTruncateNoTimeSortsLast(t *testing.T) {
	records := []FlightRecord{
		{FlightNo: "NO1", Date: day(2025, 4, 14)}, // no clock
		depRecord("MU2", "09:00"),
		depRecord("MU1", "07:00"),
	}
	got := SortAndTruncate(records, true, 0)
	require.Equal(t, []string{"MU1", "MU2", "NO1"}, flightNos(got))
}

func TestFetchOptionsWithDefaults(t *testing.T) {
	o := FetchOptions{}.WithDefaults()
	require.Equal(t, DefaultMaxResult, o.MaxResult)
	require.Equal(t, DefaultMaxFetchPage, o.MaxFetchPage)

	o = FetchOptions{MaxResult: 5, MaxFetchPage: 1}.WithDefaults()
	require.Equal(t, 5, o.MaxResult)
	require.Equal(t, 1, o.MaxFetchPage)
}
