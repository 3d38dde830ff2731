// Package icn fetches the Seoul Incheon (ICN) flight board. Departures and
// arrivals live on separate endpoints; codeshare slave rows duplicate their
// master flight and are skipped.
package icn

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
	airportName = "首尔仁川"
	airportCode = "ICN"
	depURL      = "https://www.airport.kr/dep/ap_ch/getDepPasSchList.do"
	arrURL      = "https://www.airport.kr/arr/ap_ch/getArrPasSchList.do"
)

// Fetcher queries the Incheon airport schedule endpoints.
type Fetcher struct {
	client *resty.Client
	log    *logger.Logger
	tz     *time.Location
	depURL string
	arrURL string
}

// New creates an ICN fetcher.
func New(timeout time.Duration, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client: restyutil.NewClient(timeout),
		log:    log.Named("icn-fetcher"),
		tz:     time.FixedZone("KST", 9*3600),
		depURL: depURL,
		arrURL: arrURL,
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

	url := f.depURL
	if !departure {
		url = f.arrURL
	}

	f.log.Info("fetching flight list", logger.String("url", url))
	resp, err := f.client.R().
		SetContext(ctx).
		SetFormData(f.searchParams(form, opts)).
		Post(url)
	if err != nil {
		return nil, fmt.Errorf("request flight list: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var records []flights.FlightRecord
	for _, row := range gjson.GetBytes(resp.Body(), "scheduleList").Array() {
		rec, ok := f.parseRow(row, departure)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	return flights.SortAndTruncate(pipe.Apply(records), departure, opts.MaxResult), nil
}

// searchParams builds the form body the schedule endpoints expect. The site
// pins the window to the current hour and widens it server-side.
func (f *Fetcher) searchParams(form flights.QueryFlightForm, opts flights.FetchOptions) map[string]string {
	now := time.Now().In(f.tz)
	today := now.Format("20060102")
	tomorrow := now.AddDate(0, 0, 1).Format("20060102")
	hourStart := now.Truncate(time.Hour).Format("1504")
	hourEnd := now.Truncate(time.Hour).Add(59 * time.Minute).Format("1504")

	return map[string]string{
		"intg":               "",
		"keyWord":            "",
		"curDate":            today,
		"startTime":          hourStart,
		"endTime":            hourEnd,
		"todayDate":          today,
		"tomorrowDate":       tomorrow,
		"todayTime":          now.Format("15:04"),
		"curSTime":           hourStart,
		"curETime":           hourEnd,
		"siteId":             "ap_ch",
		"langSe":             "zh",
		"scheduleListLength": "",
		"termId":             strings.ToUpper(opts.Terminal),
		"daySel":             today,
		"fromTime":           hourStart,
		"toTime":             hourEnd,
		"airPort":            form.Airport,
		"airport":            form.Airport,
		"airline":            form.Airlines,
		"airplane":           form.FlightNo,
	}
}

// parseRow normalizes one schedule row. Slave codeshare rows are dropped; a
// populated btime (block time) marks the flight as actually moved.
func (f *Fetcher) parseRow(row gjson.Result, departure bool) (flights.FlightRecord, bool) {
	if row.Get("codeshare").String() == "Slave" {
		return flights.FlightRecord{}, false
	}
	flightNo := row.Get("masterflight").String()
	date, err := time.ParseInLocation("20060102", row.Get("sdate").String(), f.tz)
	if flightNo == "" || err != nil {
		return flights.FlightRecord{}, false
	}

	var timed *flights.TimedValue
	if btime := row.Get("btime").String(); btime != "" {
		if at, err := time.Parse("200601021504", btime); err == nil {
			timed = flights.Actual(at.Format("15:04"))
		}
	}
	if timed == nil {
		if etime := row.Get("etime").String(); etime != "" {
			timed = flights.Estimated(etime)
		}
	}

	// airportName2..4 carry intermediate stops, ordered, stopping at the
	// first blank slot
	var via []string
	for i := 2; i <= 4; i++ {
		name := row.Get(fmt.Sprintf("airportName%d", i)).String()
		if name == "" {
			break
		}
		via = append(via, name)
	}

	otherName := firstNonEmpty(
		row.Get("airportName1").String(),
		row.Get("airportName1En").String(),
		row.Get("p1code").String(),
		"未知",
	)

	rec := flights.FlightRecord{
		FlightNo:     flightNo,
		Airlines:     firstNonEmpty(row.Get("airlineNameCh").String(), row.Get("flightCarrier").String()),
		AirlinesCode: row.Get("flightCarrier").String(),
		ViaAirports:  via,
		Date:         date,
		Terminal:     row.Get("terminal").String(),
		Status:       row.Get("stattxt").String(),
	}

	if departure {
		rec.DepAirport = airportName
		rec.DepAirportCode = airportCode
		rec.ArrAirport = otherName
		rec.ArrAirportCode = row.Get("p1code").String()
		rec.DepTime = row.Get("stime").String()
		rec.ActDepTime = timed
		rec.Gate = row.Get("gatenumber").String()
	} else {
		rec.ArrAirport = airportName
		rec.ArrAirportCode = airportCode
		rec.DepAirport = otherName
		rec.DepAirportCode = row.Get("p1code").String()
		rec.ArrTime = row.Get("stime").String()
		rec.ActArrTime = timed
		rec.Carousel = row.Get("carousel").String()
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
