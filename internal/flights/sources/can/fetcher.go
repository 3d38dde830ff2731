// Package can fetches the Guangzhou Baiyun (CAN) flight board. The site
// exposes a JSON list endpoint paginated by page number; the payload field
// names drift, so rows are probed with gjson rather than strict structs.
package can

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/35000ft/next-train-bot/internal/flights"
	"github.com/35000ft/next-train-bot/internal/restyutil"
	"github.com/35000ft/next-train-bot/pkg/logger"
)

const (
	airportName = "广州"
	airportCode = "CAN"
	listURL     = "https://www.baiyunairport.com/byairport-flight/flight/list"
	pageSize    = 15
)

// Departure-volume distribution per time band, measured off the board.
var bandRatios = flights.BandRatios{0.02352, 0.270588, 0.2823529, 0.2823529, 0.1411764}

// Fetcher queries the Baiyun airport list API.
type Fetcher struct {
	client  *resty.Client
	log     *logger.Logger
	tz      *time.Location
	listURL string
}

// New creates a CAN fetcher.
func New(timeout time.Duration, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client:  restyutil.NewClient(timeout),
		log:     log.Named("can-fetcher"),
		tz:      time.FixedZone("CST", 8*3600),
		listURL: listURL,
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

	target := form.AtTime
	if target.IsZero() {
		target = time.Now().In(f.tz)
	}

	q := flights.PageQuery{Form: form, Opts: opts, Departure: departure, Target: target}
	return flights.CollectPages(ctx, f, q, pipe, f.log)
}

// EstimateStartPage implements flights.StartPageEstimator.
func (f *Fetcher) EstimateStartPage(target time.Time, maxPage int) int {
	return flights.EstimatePage(target, maxPage, bandRatios, 0)
}

// FetchPage implements flights.PageSource.
func (f *Fetcher) FetchPage(ctx context.Context, q flights.PageQuery, page int) (flights.Page, error) {
	flightType := "1" // passenger
	if q.Opts.Cargo {
		flightType = "2"
	}
	depOrArr := "1"
	if !q.Departure {
		depOrArr = "2"
	}
	body := map[string]any{
		"day":      0, // today
		"pageNum":  page,
		"pageSize": pageSize,
		"terminal": strings.ToUpper(q.Opts.Terminal),
		"depOrArr": depOrArr,
		"type":     flightType,
	}

	f.log.Info("fetching page", logger.String("url", f.listURL), logger.Int("page", page))
	resp, err := f.client.R().SetContext(ctx).SetBody(body).Post(f.listURL)
	if err != nil {
		return flights.Page{}, fmt.Errorf("request flight list: %w", err)
	}
	if resp.IsError() {
		return flights.Page{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	root := gjson.ParseBytes(resp.Body())
	totalPages := int(root.Get("pages").Int())
	if totalPages < 1 {
		totalPages = 1
	}

	var records []flights.FlightRecord
	for _, row := range root.Get("data.list").Array() {
		rec, ok := f.parseRow(row, q.Departure)
		if !ok {
			f.log.Warn("dropping unparseable row", logger.String("row", row.Raw))
			continue
		}
		records = append(records, rec)
	}

	return flights.Page{Records: records, TotalPages: totalPages}, nil
}

// parseRow normalizes one board row. Rows missing the flight number or the
// flight date are dropped, never emitted with defaults.
func (f *Fetcher) parseRow(row gjson.Result, departure bool) (flights.FlightRecord, bool) {
	flightNo := row.Get("flightNo").String()
	date, err := time.ParseInLocation("2006-01-02", row.Get("flightDate").String(), f.tz)
	if flightNo == "" || err != nil {
		return flights.FlightRecord{}, false
	}

	var shared []string
	for _, s := range row.Get("shareFlight").Array() {
		if s.String() != "" {
			shared = append(shared, s.String())
		}
	}

	var via []string
	if v := row.Get("viaAirport").String(); v != "" {
		via = []string{v}
	}

	rec := flights.FlightRecord{
		FlightNo:      flightNo,
		SharedCodes:   shared,
		Airlines:      firstNonEmpty(row.Get("airlineCn").String(), row.Get("airline").String()),
		AircraftModel: row.Get("planeModle").String(),
		ViaAirports:   via,
		Date:          date,
		Terminal:      row.Get("terminal").String(),
		Status:        row.Get("flightStatusCn").String(),
	}

	if departure {
		rec.DepAirport = airportName
		rec.DepAirportCode = airportCode
		rec.ArrAirport = firstNonEmpty(row.Get("dstCityCn").String(), row.Get("dstCity").String(), "未知")
		rec.ArrAirportCode = row.Get("dstCity").String()
		rec.DepTime = parseClock(row.Get("setoffTimePlan").String())
		rec.Gate = row.Get("boardingGate").String()
		if act := parseClock(row.Get("setoffTimeAct").String()); act != "" {
			rec.ActDepTime = flights.Actual(act)
		} else if est := parseClock(row.Get("setoffTimePred").String()); est != "" {
			rec.ActDepTime = flights.Estimated(est)
		}
	} else {
		rec.ArrAirport = airportName
		rec.ArrAirportCode = airportCode
		rec.DepAirport = firstNonEmpty(row.Get("orgCityCn").String(), row.Get("orgCity").String(), "未知")
		rec.DepAirportCode = row.Get("orgCity").String()
		rec.ArrTime = parseClock(row.Get("arriTimePlan").String())
		rec.Carousel = row.Get("baggageTable").String()
		if act := parseClock(row.Get("arriTimeAct").String()); act != "" {
			rec.ActArrTime = flights.Actual(act)
		} else if est := parseClock(row.Get("arriTimePred").String()); est != "" {
			rec.ActArrTime = flights.Estimated(est)
		}
	}

	return rec, true
}

// parseClock lifts "HH:MM" out of the source's full timestamps; anything
// unparseable becomes an empty clock.
func parseClock(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return ""
	}
	return t.Format("15:04")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
