// Package hgh fetches the Hangzhou Xiaoshan (HGH) flight board. The site is
// plain server-rendered HTML: the first page carries the airline filter
// options and the page count, later pages are addressed by path segments.
package hgh

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/35000ft/next-train-bot/internal/flights"
	"github.com/35000ft/next-train-bot/internal/restyutil"
	"github.com/35000ft/next-train-bot/pkg/logger"
)

const (
	airportName = "杭州"
	airportCode = "HGH"
	baseURL     = "https://www.hzairport.com"
)

// Fetcher scrapes the Xiaoshan airport timetable pages.
type Fetcher struct {
	client  *resty.Client
	log     *logger.Logger
	tz      *time.Location
	baseURL string
}

// New creates an HGH fetcher.
func New(timeout time.Duration, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client:  restyutil.NewClient(timeout),
		log:     log.Named("hgh-fetcher"),
		tz:      time.FixedZone("CST", 8*3600),
		baseURL: baseURL,
	}
}

func (f *Fetcher) AirportName() string { return airportName }
func (f *Fetcher) AirportCode() string { return airportCode }

// FetchFlights implements flights.Fetcher.
func (f *Fetcher) FetchFlights(ctx context.Context, form flights.QueryFlightForm, opts flights.FetchOptions) ([]flights.FlightRecord, error) {
	opts = opts.WithDefaults()
	departure := !opts.Arrivals

	target := form.AtTime
	if target.IsZero() {
		target = time.Now().In(f.tz)
	}
	fo := flights.FilterOptionsFrom(form, departure)
	fo.After = target
	pipe, err := flights.NewPipeline(fo)
	if err != nil {
		return nil, err
	}

	s := &session{f: f, departure: departure, identity: form.FlightNo, city: form.Airport, airlineQuery: form.Airlines}
	q := flights.PageQuery{Form: form, Opts: opts, Departure: departure, Target: target}
	return flights.CollectPages(ctx, s, q, pipe, f.log)
}

// session is one fetch's view of the site. The first page resolves the
// airline path parameter and the page count; later FetchPage calls reuse them.
type session struct {
	f            *Fetcher
	departure    bool
	city         string
	identity     string
	airlineQuery string
	airline      string
	maxPage      int
}

// EstimateStartPage implements flights.StartPageEstimator. The board starts
// at 04:00 and pages are even time slices, so the page index is linear in the
// minutes elapsed since then. One page of slack covers early boards.
func (s *session) EstimateStartPage(target time.Time, maxPage int) int {
	if maxPage <= 1 {
		return 1
	}
	minutes := target.Hour()*60 + target.Minute() - 4*60
	if minutes < 0 {
		minutes += 24 * 60
	}
	page := minutes*maxPage/(24*60) + 1
	if page > maxPage {
		page = maxPage
	}
	if page > 1 {
		return page - 1
	}
	return page
}

// FetchPage implements flights.PageSource.
func (s *session) FetchPage(ctx context.Context, q flights.PageQuery, page int) (flights.Page, error) {
	var (
		doc *goquery.Document
		err error
	)
	if page == 1 {
		doc, err = s.fetchFirstPage(ctx)
	} else {
		doc, err = s.fetchNumberedPage(ctx, page)
	}
	if err != nil {
		return flights.Page{}, err
	}

	date := midnight(time.Now().In(s.f.tz))
	var records []flights.FlightRecord
	doc.Find("div.timetable_item").Each(func(_ int, row *goquery.Selection) {
		rec, ok := s.f.parseRow(row, s.departure, date)
		if !ok {
			return
		}
		records = append(records, rec)
	})

	return flights.Page{Records: records, TotalPages: s.maxPage}, nil
}

func (s *session) fetchFirstPage(ctx context.Context) (*goquery.Document, error) {
	url := s.f.baseURL + "/flight/index.html"
	if !s.departure {
		url = s.f.baseURL + "/flight/arrive.html"
	}

	s.f.log.Info("loading timetable", logger.String("url", url))
	resp, err := s.f.client.R().SetContext(ctx).Post(url)
	if err != nil {
		return nil, fmt.Errorf("request timetable: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse timetable: %w", err)
	}

	s.maxPage = parseMaxPage(doc)
	if s.airline == "" {
		s.airline = resolveAirline(doc, s.airlineQuery)
	}
	return doc, nil
}

func (s *session) fetchNumberedPage(ctx context.Context, page int) (*goquery.Document, error) {
	url := s.pageURL(page)
	s.f.log.Info("loading timetable page", logger.String("url", url))
	resp, err := s.f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("request timetable page: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse timetable page: %w", err)
	}
	return doc, nil
}

// pageURL builds the path-segment address the site uses for deep pages, e.g.
// /flight/index/identity/CA1701/p/4.
func (s *session) pageURL(page int) string {
	base := "/flight/index/"
	if !s.departure {
		base = "/flight/arrive/"
	}
	var segs []string
	if s.city != "" {
		segs = append(segs, "city", s.city)
	}
	if s.identity != "" {
		segs = append(segs, "identity", s.identity)
	}
	if s.airline != "" {
		segs = append(segs, "airline", s.airline)
	}
	segs = append(segs, "p", strconv.Itoa(page))
	return s.f.baseURL + base + strings.Join(segs, "/")
}

// parseMaxPage reads the page count out of the pager. The pager renders the
// last numbered link second to last, before the "next" arrow, sometimes with
// a ".." ellipsis prefix.
func parseMaxPage(doc *goquery.Document) int {
	nums := doc.Find("div.page_con a.num").Map(func(_ int, sel *goquery.Selection) string {
		return strings.TrimSpace(sel.Text())
	})
	if len(nums) <= 2 {
		return 1
	}
	last := strings.Trim(nums[len(nums)-2], ". ")
	n, err := strconv.Atoi(last)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// resolveAirline maps a user-typed airline name or code onto the site's own
// option value, which is what the path parameter expects.
func resolveAirline(doc *goquery.Document, query string) string {
	if query == "" {
		return ""
	}
	resolved := ""
	doc.Find("div.flight_select li").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		name := strings.TrimSpace(sel.Text())
		code, _ := sel.Attr("data-id")
		if strings.Contains(name, query) || strings.EqualFold(code, query) {
			resolved = name
			return false
		}
		return true
	})
	return resolved
}

// parseRow normalizes one timetable item. The flight cell lists the
// marketing flight first and codeshares after it.
func (f *Fetcher) parseRow(row *goquery.Selection, departure bool, date time.Time) (flights.FlightRecord, bool) {
	var codes []string
	airline := ""
	row.Find(".flight p").Each(func(i int, p *goquery.Selection) {
		no := strings.ReplaceAll(strings.TrimSpace(p.Find(".no").Text()), " ", "")
		if no == "" {
			return
		}
		codes = append(codes, no)
		if i == 0 {
			airline = strings.TrimSpace(p.Find(".airline").Text())
		}
	})
	if len(codes) == 0 {
		return flights.FlightRecord{}, false
	}

	sched := strings.TrimSpace(row.Find(".time").Text())
	city := strings.TrimSpace(row.Find(".city").Text())
	status := strings.TrimSpace(row.Find(".status").Text())

	rec := flights.FlightRecord{
		FlightNo:    codes[0],
		SharedCodes: codes[1:],
		Airlines:    airline,
		Date:        date,
		Terminal:    strings.TrimSpace(row.Find(".terminal").Text()),
		Status:      status,
	}

	if departure {
		rec.DepAirport = airportName
		rec.DepAirportCode = airportCode
		rec.ArrAirport = orUnknown(city)
		rec.DepTime = sched
		rec.Gate = strings.TrimSpace(row.Find(".gate").Text())
		rec.ActDepTime = parseStatusTime(status, "启航")
	} else {
		rec.ArrAirport = airportName
		rec.ArrAirportCode = airportCode
		rec.DepAirport = orUnknown(city)
		rec.ArrTime = sched
		rec.Carousel = strings.TrimSpace(row.Find(".baggage").Text())
		rec.Stand = strings.TrimSpace(row.Find(".stand").Text())
		rec.ActArrTime = parseStatusTime(status, "到闸口")
	}

	return rec, true
}

// parseStatusTime lifts the clock out of the status text when the flight has
// actually moved ("启航 07:40" / "到闸口 21:31") or carries an estimate
// ("预计 07:40").
func parseStatusTime(status, actualMarker string) *flights.TimedValue {
	if strings.Contains(status, actualMarker) {
		if clock := strings.TrimSpace(strings.ReplaceAll(status, actualMarker, "")); clock != "" {
			return flights.Actual(clock)
		}
		return nil
	}
	if strings.Contains(status, "预计") {
		if clock := strings.TrimSpace(strings.ReplaceAll(status, "预计", "")); clock != "" {
			return flights.Estimated(clock)
		}
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "未知"
	}
	return s
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
