// Package szx fetches the Shenzhen Bao'an (SZX) flight board. The site
// answers one JSON document per query; each row carries its flight numbers
// in an "hbh" sub-array whose first entry is the marketing flight.
package szx

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/35000ft/next-train-bot/internal/flights"
	"github.com/35000ft/next-train-bot/internal/restyutil"
	"github.com/35000ft/next-train-bot/pkg/logger"
)

const (
	airportName = "深圳"
	airportCode = "SZX"
	apiURL      = "https://www.szairport.com/szjchbjk/hbcx/flightInfo"
)

// Fetcher queries the Bao'an airport flight-info endpoint.
type Fetcher struct {
	client *resty.Client
	log    *logger.Logger
	tz     *time.Location
	apiURL string
}

// New creates an SZX fetcher.
func New(timeout time.Duration, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client: restyutil.NewClient(timeout),
		log:    log.Named("szx-fetcher"),
		tz:     time.FixedZone("CST", 8*3600),
		apiURL: apiURL,
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

	flag := "D"
	if !departure {
		flag = "A"
	}
	keyword := form.FlightNo
	if keyword == "" {
		keyword = form.Airport
	}
	params := map[string]string{
		"type":        "cn",
		"flag":        flag,
		"currentDate": "1",
		"currentTime": "12", // 12 = whole day
		"hbxx_hbh":    keyword,
	}

	f.log.Info("fetching flight list", logger.String("url", f.apiURL))
	resp, err := f.client.R().SetContext(ctx).SetQueryParams(params).Get(f.apiURL)
	if err != nil {
		return nil, fmt.Errorf("request flight list: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	now := time.Now().In(f.tz)
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, f.tz)

	var records []flights.FlightRecord
	for _, row := range gjson.GetBytes(resp.Body(), "flightList").Array() {
		rec, ok := f.parseRow(row, departure, date)
		if !ok {
			f.log.Warn("dropping unparseable row", logger.String("row", row.Raw))
			continue
		}
		records = append(records, rec)
	}

	return flights.SortAndTruncate(pipe.Apply(records), departure, opts.MaxResult), nil
}

// parseRow normalizes one board row. The marketing flight number comes from
// hbh[0]; a row with an empty hbh list is dropped.
func (f *Fetcher) parseRow(row gjson.Result, departure bool, date time.Time) (flights.FlightRecord, bool) {
	var codes []string
	for _, c := range row.Get("hbh.#.flightNo").Array() {
		if c.String() != "" {
			codes = append(codes, c.String())
		}
	}
	if len(codes) == 0 {
		return flights.FlightRecord{}, false
	}

	rec := flights.FlightRecord{
		FlightNo:      codes[0],
		SharedCodes:   codes[1:],
		AircraftModel: row.Get("craftType").String(),
		Date:          date,
		Terminal:      row.Get("apot").String(),
		Status:        row.Get("fltNormalStatus").String(),
	}

	if departure {
		rec.DepAirport = airportName
		rec.DepAirportCode = airportCode
		rec.ArrAirport = firstNonEmpty(row.Get("terminalStationThreecharcode").String(), "未知")
		rec.DepTime = row.Get("startSchemeTakeoffTime").String()
		rec.Gate = row.Get("gateCode").String()
		if act := row.Get("startRealTakeoffTime").String(); act != "" {
			rec.ActDepTime = flights.Actual(act)
		}
	} else {
		rec.ArrAirport = airportName
		rec.ArrAirportCode = airportCode
		rec.DepAirport = firstNonEmpty(row.Get("startStationThreecharcode").String(), "未知")
		rec.ArrTime = row.Get("terminalSchemeLandinTime").String()
		rec.Carousel = row.Get("blls").String()
		if act := row.Get("terminalRealLandinTime").String(); act != "" {
			rec.ActArrTime = flights.Actual(act)
		}
	}

	return rec, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
