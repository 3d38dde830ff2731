// Package shanghai fetches the shared Shanghai airport board, which covers
// both Hongqiao (SHA) and Pudong (PVG). One implementation serves both
// airports; the constructors pin which one a fetcher answers for. Like the
// Nanjing board, the page only renders behind a real browser.
package shanghai

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

const boardURL = "https://www.shairport.com/flights/index.html"

// Fetcher scrapes the Shanghai Airport Authority board through a browser.
type Fetcher struct {
	name          string
	code          string
	log           *logger.Logger
	tz            *time.Location
	screenshotDir string
}

// NewSHA creates a fetcher answering for Hongqiao.
func NewSHA(screenshotDir string, log *logger.Logger) *Fetcher {
	return newFetcher("上海虹桥", "SHA", screenshotDir, log)
}

// NewPVG creates a fetcher answering for Pudong.
func NewPVG(screenshotDir string, log *logger.Logger) *Fetcher {
	return newFetcher("上海浦东", "PVG", screenshotDir, log)
}

func newFetcher(name, code, screenshotDir string, log *logger.Logger) *Fetcher {
	return &Fetcher{
		name:          name,
		code:          code,
		log:           log.Named(strings.ToLower(code) + "-fetcher"),
		tz:            time.FixedZone("CST", 8*3600),
		screenshotDir: screenshotDir,
	}
}

func (f *Fetcher) AirportName() string { return f.name }
func (f *Fetcher) AirportCode() string { return f.code }

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
		s.CaptureFailure(f.code)
		return nil, err
	}
	return flights.SortAndTruncate(records, departure, opts.MaxResult), nil
}

func (f *Fetcher) collect(s *browser.Session, form flights.QueryFlightForm, opts flights.FetchOptions, departure bool, pipe *flights.Pipeline) ([]flights.FlightRecord, error) {
	if err := s.Navigate(boardURL); err != nil {
		return nil, err
	}

	if opts.Cargo {
		if err := s.Click(`//div[@class='flightType']//a[text()='货班']`, chromedp.BySearch); err != nil {
			return nil, fmt.Errorf("switch to cargo board: %w", err)
		}
		if err := s.Sleep(5 * time.Second); err != nil {
			return nil, err
		}
	}

	useQuery := false
	if form.FlightNo != "" {
		if err := s.SendKeys("#txtFlightNum", form.FlightNo); err != nil {
			return nil, fmt.Errorf("fill flight number: %w", err)
		}
		if err := s.Click("#btnSearchFlightNum"); err != nil {
			return nil, fmt.Errorf("search by flight number: %w", err)
		}
		if err := s.Sleep(3 * time.Second); err != nil {
			return nil, err
		}
	}
	if form.Airlines != "" {
		ok, err := f.clickDropdownOption(s,
			`//div[contains(text(),'航空公司')]/following-sibling::div[@class='drop-down']`,
			form.Airlines)
		if err != nil {
			return nil, fmt.Errorf("pick airline: %w", err)
		}
		useQuery = useQuery || ok
	}
	if form.Airport != "" {
		ok, err := f.clickDropdownOption(s,
			`//div[@id='airCities']/following-sibling::dl`,
			form.Airport)
		if err != nil {
			return nil, fmt.Errorf("pick airport: %w", err)
		}
		useQuery = useQuery || ok
	}
	if useQuery {
		if err := s.Click("#btnSearch"); err != nil {
			return nil, fmt.Errorf("submit search: %w", err)
		}
		if err := s.Sleep(3 * time.Second); err != nil {
			return nil, err
		}
	}

	if opts.FromPage > 0 {
		sel := fmt.Sprintf(`//ul[@class='el-pager']/li[text()='%d']`, opts.FromPage)
		if err := s.Click(sel, chromedp.BySearch); err != nil {
			return nil, fmt.Errorf("no such page: %d", opts.FromPage)
		}
		if err := s.Sleep(5 * time.Second); err != nil {
			return nil, err
		}
	}

	home := boardtable.Home{Name: f.name, Code: f.code}
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

// clickDropdownOption resolves a user-typed name or code against a rendered
// dropdown and clicks the match. The "不限" wildcard entry never matches.
func (f *Fetcher) clickDropdownOption(s *browser.Session, listXPath, query string) (bool, error) {
	html, err := s.OuterHTML(listXPath, chromedp.BySearch)
	if err != nil {
		return false, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		return false, err
	}

	match := ""
	doc.Find("dd").EachWithBreak(func(_ int, dd *goquery.Selection) bool {
		name := strings.TrimSpace(dd.Text())
		code, _ := dd.Attr("value")
		if strings.Contains(name, "不限") {
			return true
		}
		if strings.Contains(name, query) || strings.EqualFold(code, query) {
			match = name
			return false
		}
		return true
	})
	if match == "" {
		return false, nil
	}
	return true, s.Click(fmt.Sprintf(`%s//dd[text()='%s']`, listXPath, match), chromedp.BySearch)
}

func pageDelay() time.Duration {
	return time.Second + time.Duration(rand.Int63n(int64(time.Second)))
}
