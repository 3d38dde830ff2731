// Package gmp fetches the Seoul Gimpo (GMP) flight board. The endpoint is a
// classic form POST that answers the rest of the current day in one JSON
// document; clocks come back as bare HHMM digits.
package gmp

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
	airportName = "首尔金浦"
	airportCode = "GMP"
	apiURL      = "https://www.airport.co.kr/gimpochn/ajaxf/frPryInfoSvc/getPryInfoList.do"
)

// Fetcher queries the Gimpo airport schedule endpoint.
type Fetcher struct {
	client *resty.Client
	log    *logger.Logger
	tz     *time.Location
	apiURL string
}

// New creates a GMP fetcher.
func New(timeout time.Duration, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client: restyutil.NewClient(timeout),
		log:    log.Named("gmp-fetcher"),
		tz:     time.FixedZone("KST", 9*3600),
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

	now := time.Now().In(f.tz)
	inOut := "O"
	if !departure {
		inOut = "I"
	}
	params := map[string]string{
		"pInoutGbn":  inOut,
		"pAirport":   airportCode,
		"pActDate":   now.Format("20060102"),
		"pSthourMin": now.Truncate(time.Hour).Format("15:04"),
		"pEnhourMin": "23:59",
		"pCity":      form.Airport,
		"pAirline":   form.Airlines,
		"pAirlinenum": form.FlightNo,
		"p0":         "",
	}

	f.log.Info("fetching flight list", logger.String("url", f.apiURL))
	resp, err := f.client.R().SetContext(ctx).SetFormData(params).Post(f.apiURL)
	if err != nil {
		return nil, fmt.Errorf("request flight list: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var records []flights.FlightRecord
	for _, row := range gjson.GetBytes(resp.Body(), "data.list").Array() {
		rec, ok := f.parseRow(row, departure)
		if !ok {
			f.log.Warn("dropping unparseable row", logger.String("row", row.Raw))
			continue
		}
		records = append(records, rec)
	}

	return flights.SortAndTruncate(pipe.Apply(records), departure, opts.MaxResult), nil
}

// parseRow normalizes one board row. A DEPARTED / ARRIVED remark promotes the
// estimated clock (ETD) to an actual one.
func (f *Fetcher) parseRow(row gjson.Result, departure bool) (flights.FlightRecord, bool) {
	flightNo := row.Get("AIR_FLN").String()
	date, err := time.ParseInLocation("20060102", row.Get("ACT_C_DATE").String(), f.tz)
	if flightNo == "" || err != nil {
		return flights.FlightRecord{}, false
	}

	sched := formatClock(row.Get("STD").String())
	etd := formatClock(row.Get("ETD").String())
	remark := strings.TrimSpace(row.Get("RMK_ENG").String())

	var timed *flights.TimedValue
	if etd != "" {
		done := "DEPARTED"
		if !departure {
			done = "ARRIVED"
		}
		if remark == done {
			timed = flights.Actual(etd)
		} else {
			timed = flights.Estimated(etd)
		}
	}

	otherName := firstNonEmpty(row.Get("ARRIVED_ENG").String(), row.Get("CITY").String(), "未知")

	rec := flights.FlightRecord{
		FlightNo:     flightNo,
		Airlines:     firstNonEmpty(row.Get("AIR_ENG").String(), row.Get("AIR_IATA").String()),
		AirlinesCode: row.Get("AIR_IATA").String(),
		Date:         date,
		Status:       row.Get("RMK_CHN").String(),
	}

	if departure {
		rec.DepAirport = airportName
		rec.DepAirportCode = airportCode
		rec.ArrAirport = otherName
		rec.ArrAirportCode = row.Get("CITY").String()
		rec.DepTime = sched
		rec.ActDepTime = timed
		rec.Gate = row.Get("GATE").String()
	} else {
		rec.ArrAirport = airportName
		rec.ArrAirportCode = airportCode
		rec.DepAirport = otherName
		rec.DepAirportCode = row.Get("CITY").String()
		rec.ArrTime = sched
		rec.ActArrTime = timed
		rec.Carousel = row.Get("GATE").String()
	}

	return rec, true
}

// formatClock turns the board's "HHMM" digits into "HH:MM"; anything of a
// different shape passes through untouched.
func formatClock(s string) string {
	if len(s) == 4 {
		return s[:2] + ":" + s[2:]
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
