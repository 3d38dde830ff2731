// Package nkg fetches the Nanjing Lukou (NKG) flight board. The site only
// renders behind a real browser, so a chromedp session drives the search
// form and pager and the rendered table is lifted out as HTML for parsing.
package nkg

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"github.com/35000ft/next-train-bot/internal/browser"
	"github.com/35000ft/next-train-bot/internal/flights"
	"github.com/35000ft/next-train-bot/internal/flights/sources/boardtable"
	"github.com/35000ft/next-train-bot/pkg/logger"
)

const (
	airportName = "南京"
	airportCode = "NKG"
	depURL      = "https://www.njiairport.com/cn/flightInformation1.html"
	arrURL      = "https://www.njiairport.com/cn/flightInformation2.html"
)

// Fetcher scrapes the Lukou airport board through a browser.
type Fetcher struct {
	log           *logger.Logger
	tz            *time.Location
	screenshotDir string
}

// New creates an NKG fetcher. screenshotDir receives failure captures.
func New(screenshotDir string, log *logger.Logger) *Fetcher {
	return &Fetcher{
		log:           log.Named("nkg-fetcher"),
		tz:            time.FixedZone("CST", 8*3600),
		screenshotDir: screenshotDir,
	}
}

func (f *Fetcher) AirportName() string { return airportName }
func (f *Fetcher) AirportCode() string { return airportCode }

// FetchFlights implements flights.Fetcher.
func (f *Fetcher) FetchFlights(ctx context.Context, form flights.QueryFlightForm, opts flights.FetchOptions) ([]flights.FlightRecord, error) {
	opts = opts.WithDefaults()
	departure := !opts.Arrivals

	pipe, err := flights.NewPipeline(flights.FilterOptionsFrom(form, departure))
	if err != nil {
		return nil, err
	}

	s, err := browser.NewSession(ctx, browser.Options{
		Headless:      opts.Headless,
		ScreenshotDir: f.screenshotDir,
	}, f.log)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	records, err := f.collect(s, form, opts, departure, pipe)
	if err != nil {
		s.CaptureFailure(airportCode)
		return nil, err
	}
	return flights.SortAndTruncate(records, departure, opts.MaxResult), nil
}

func (f *Fetcher) collect(s *browser.Session, form flights.QueryFlightForm, opts flights.FetchOptions, departure bool, pipe *flights.Pipeline) ([]flights.FlightRecord, error) {
	url := depURL
	if !departure {
		url = arrURL
	}
	if err := s.Navigate(url); err != nil {
		return nil, err
	}

	useQuery := false
	if form.FlightNo != "" {
		if err := s.SendKeys(`input[name="flightnumber"]`, form.FlightNo); err != nil {
			return nil, fmt.Errorf("fill flight number: %w", err)
		}
		useQuery = true
	}
	if form.Airlines != "" {
		ok, err := f.selectOption(s, `select#airlines`, form.Airlines, "所有航空公司")
		if err != nil {
			return nil, fmt.Errorf("select airline: %w", err)
		}
		useQuery = useQuery || ok
	}
	if form.Airport != "" {
		ok, err := f.selectOption(s, `select[name="address"]`, form.Airport, "所有城市")
		if err != nil {
			return nil, fmt.Errorf("select airport: %w", err)
		}
		useQuery = useQuery || ok
	}
	if useQuery {
		if err := s.Click(`input[value="查询"]`); err != nil {
			return nil, fmt.Errorf("submit search: %w", err)
		}
	}

	if opts.FromPage == 1 {
		// jump back to the first page in case the board kept its position
		_ = s.Click(`//ul[@class='pagination']/li/a[text()='1']`, chromedp.BySearch)
	}

	home := boardtable.Home{Name: airportName, Code: airportCode}
	var out []flights.FlightRecord
	for fetched := 0; fetched < opts.MaxFetchPage; fetched++ {
		if err := s.Sleep(pageDelay()); err != nil {
			return out, nil
		}
		html, err := s.OuterHTML("div.hangbanList")
		if err != nil {
			return nil, err
		}
		recs, err := boardtable.Parse(html, departure, home, f.tz)
		if err != nil {
			return nil, fmt.Errorf("parse board: %w", err)
		}
		if len(recs) == 0 {
			break
		}
		out = append(out, pipe.Apply(recs)...)
		if len(out) >= opts.MaxResult {
			break
		}
		if err := s.Click(`//ul[@class='pagination']/li/a[text()='»']`, chromedp.BySearch); err != nil {
			f.log.Debug("no next page", logger.Error(err))
			break
		}
	}
	return out, nil
}

// selectOption resolves a user-typed airline or city against the live option
// list of a <select> and picks the match. The wildcard entry never matches.
func (f *Fetcher) selectOption(s *browser.Session, sel, query, wildcard string) (bool, error) {
	html, err := s.OuterHTML(sel)
	if err != nil {
		return false, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		return false, err
	}

	value, found := "", false
	doc.Find("option").EachWithBreak(func(_ int, opt *goquery.Selection) bool {
		name := strings.TrimSpace(opt.Text())
		code, _ := opt.Attr("value")
		if strings.Contains(name, wildcard) {
			return true
		}
		if strings.Contains(name, query) || strings.EqualFold(code, query) {
			value, found = code, true
			return false
		}
		return true
	})
	if !found {
		return false, nil
	}
	return true, s.SetSelectValue(sel, value)
}

// pageDelay spaces page turns out so the scrape looks like a reader, not a
// crawler.
func pageDelay() time.Duration {
	return time.Second + time.Duration(rand.Int63n(int64(time.Second)))
}
