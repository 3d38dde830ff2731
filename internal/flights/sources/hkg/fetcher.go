// Package hkg fetches the Hong Kong International (HKG) flight board from
// the airport's REST API. The API identifies the other end of a flight only
// by IATA code; a process-wide airport directory is fetched once and cached
// to resolve display names.
package hkg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/35000ft/next-train-bot/internal/flights"
	"github.com/35000ft/next-train-bot/internal/restyutil"
	"github.com/35000ft/next-train-bot/pkg/logger"
)

const (
	airportName = "香港"
	airportCode = "HKG"
	flightsURL  = "https://www.hongkongairport.com/flightinfo-rest/rest/flights"
	airportsURL = "https://www.hongkongairport.com/flightinfo-rest/rest/airports"
)

// Airport is one entry of the airport directory.
type Airport struct {
	Code        string
	Description string
	Country     string
}

// Fetcher queries the HKIA flight-info REST API.
type Fetcher struct {
	client      *resty.Client
	log         *logger.Logger
	tz          *time.Location
	flightsURL  string
	airportsURL string

	// airport directory, fetched once; the lock keeps concurrent fetches
	// from populating it twice
	mu       sync.Mutex
	airports map[string]Airport
}

// New creates an HKG fetcher.
func New(timeout time.Duration, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client:      restyutil.NewClient(timeout),
		log:         log.Named("hkg-fetcher"),
		tz:          time.FixedZone("HKT", 8*3600),
		flightsURL:  flightsURL,
		airportsURL: airportsURL,
	}
}

func (f *Fetcher) AirportName() string { return airportName }
func (f *Fetcher) AirportCode() string { return airportCode }

// flightRow mirrors one row of the REST payload.
type flightRow struct {
	Time   string `json:"time"`
	Status string `json:"status"`
	Flight []struct {
		No      string `json:"no"`
		Airline string `json:"airline"`
	} `json:"flight"`
	Destination []string `json:"destination"`
	Origin      []string `json:"origin"`
	Terminal    string   `json:"terminal"`
	Aisle       string   `json:"aisle"`
	Gate        string   `json:"gate"`
	Baggage     string   `json:"baggage"`
	Stand       string   `json:"stand"`
}

type dateGroup struct {
	Date string      `json:"date"`
	List []flightRow `json:"list"`
}

// FetchFlights implements flights.Fetcher. The API returns the whole day in
// one response, so the board is filtered from the reference time forward.
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

	f.log.Info("fetching flight list", logger.String("url", f.flightsURL))
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"span":    "1",
			"date":    target.Format("2006-01-02"),
			"lang":    "zh_CN",
			"cargo":   fmt.Sprintf("%t", opts.Cargo),
			"arrival": fmt.Sprintf("%t", !departure),
		}).
		Get(f.flightsURL)
	if err != nil {
		return nil, fmt.Errorf("request flight list: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var groups []dateGroup
	if err := json.Unmarshal(resp.Body(), &groups); err != nil {
		return nil, fmt.Errorf("parse flight list: %w", err)
	}

	var records []flights.FlightRecord
	for _, group := range groups {
		date, err := time.ParseInLocation("2006-01-02", group.Date, f.tz)
		if err != nil {
			f.log.Warn("dropping date group with bad date", logger.String("date", group.Date))
			continue
		}
		for _, row := range group.List {
			rec, ok := f.parseRow(ctx, row, departure, date)
			if !ok {
				continue
			}
			records = append(records, rec)
		}
	}

	return flights.SortAndTruncate(pipe.Apply(records), departure, opts.MaxResult), nil
}

func (f *Fetcher) parseRow(ctx context.Context, row flightRow, departure bool, date time.Time) (flights.FlightRecord, bool) {
	if len(row.Flight) == 0 {
		return flights.FlightRecord{}, false
	}
	main := row.Flight[0]
	flightNo := strings.ReplaceAll(main.No, " ", "")
	if flightNo == "" {
		return flights.FlightRecord{}, false
	}

	var shared []string
	for _, s := range row.Flight[1:] {
		shared = append(shared, strings.ReplaceAll(s.No, " ", ""))
	}

	otherEnds := row.Destination
	if !departure {
		otherEnds = row.Origin
	}
	otherName, otherCode := f.describeAirports(ctx, otherEnds)

	rec := flights.FlightRecord{
		FlightNo:    flightNo,
		SharedCodes: shared,
		Airlines:    main.Airline,
		Date:        date,
		Terminal:    row.Terminal,
		Status:      row.Status,
		Stand:       row.Stand,
	}

	if departure {
		rec.DepAirport = airportName
		rec.DepAirportCode = airportCode
		rec.ArrAirport = otherName
		rec.ArrAirportCode = otherCode
		rec.DepTime = row.Time
		rec.Gate = row.Gate
		rec.ActDepTime = parseStatusTime(row.Status, "启航")
	} else {
		rec.ArrAirport = airportName
		rec.ArrAirportCode = airportCode
		rec.DepAirport = otherName
		rec.DepAirportCode = otherCode
		rec.ArrTime = row.Time
		rec.Carousel = row.Baggage
		rec.ActArrTime = parseStatusTime(row.Status, "到闸口")
	}

	return rec, true
}

// parseStatusTime lifts the actual or estimated time out of the free-text
// status column. "启航 00:20" / "到闸口 00:31" carry an actual time, "预计
// 14:05" an estimated one; anything else carries no time at all.
func parseStatusTime(status, actualMarker string) *flights.TimedValue {
	status = strings.TrimSpace(status)
	if status == "" {
		return nil
	}
	if strings.Contains(status, actualMarker) {
		clock := strings.TrimSpace(strings.ReplaceAll(status, actualMarker, ""))
		if clock != "" {
			return flights.Actual(clock)
		}
		return nil
	}
	if strings.Contains(status, "预计") {
		clock := strings.TrimSpace(strings.ReplaceAll(status, "预计", ""))
		if clock != "" {
			return flights.Estimated(clock)
		}
	}
	return nil
}

// describeAirports joins the directory descriptions of a multi-leg
// destination list and returns the final leg's code.
func (f *Fetcher) describeAirports(ctx context.Context, codes []string) (string, string) {
	if len(codes) == 0 {
		return "UNKNOWN", "--"
	}
	directory, err := f.airportDirectory(ctx)
	if err != nil {
		f.log.Warn("airport directory unavailable", logger.Error(err))
		return strings.Join(codes, " / "), codes[len(codes)-1]
	}
	names := make([]string, 0, len(codes))
	for _, code := range codes {
		if ap, ok := directory[code]; ok {
			names = append(names, ap.Description)
		} else {
			f.log.Warn("airport not in directory", logger.String("code", code))
			names = append(names, code)
		}
	}
	return strings.Join(names, " / "), codes[len(codes)-1]
}

// airportDirectory returns the IATA-code directory, fetching it on first
// use. Concurrent fetches serialize on the lock so the endpoint is hit once.
func (f *Fetcher) airportDirectory(ctx context.Context) (map[string]Airport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.airports != nil {
		return f.airports, nil
	}

	f.log.Info("fetching airport directory", logger.String("url", f.airportsURL))
	resp, err := f.client.R().SetContext(ctx).Get(f.airportsURL)
	if err != nil {
		return nil, fmt.Errorf("request airport directory: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var raw []struct {
		Code        string   `json:"code"`
		Description []string `json:"description"`
		Country     string   `json:"country"`
	}
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("parse airport directory: %w", err)
	}

	directory := make(map[string]Airport, len(raw))
	for _, entry := range raw {
		if entry.Code == "" || len(entry.Description) == 0 {
			continue
		}
		// description[1] is the Chinese name when present
		name := entry.Description[0]
		if len(entry.Description) > 1 {
			name = entry.Description[1]
		}
		directory[entry.Code] = Airport{Code: entry.Code, Description: name, Country: entry.Country}
	}
	f.airports = directory
	return directory, nil
}
