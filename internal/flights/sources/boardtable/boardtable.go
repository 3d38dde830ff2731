// Package boardtable parses the flight-board table markup shared by the
// Nanjing and Shanghai airport sites. Both render the same twelve-column
// layout; only which side of the flight the home airport sits on differs.
package boardtable

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/35000ft/next-train-bot/internal/flights"
)

// Home names the airport the board belongs to.
type Home struct {
	Name string
	Code string
}

// Column layout of one board row:
//
//	0 date, 1 flight numbers (one per line), 2 airline, 3 aircraft model,
//	4/5 via and other-end airport (sides swap between boards),
//	6 scheduled, 7 estimated, 8 actual, 9 terminal, 10 gate or carousel,
//	11 status.
const (
	colDate = iota
	colFlights
	colAirline
	colModel
	colFourth
	colFifth
	colScheduled
	colEstimated
	colActual
	colTerminal
	colPosition
	colStatus
)

// Parse extracts records from board-table markup. The first <tr> is the
// header. Rows missing a flight number or a parseable date are dropped.
func Parse(html string, departure bool, home Home, tz *time.Location) ([]flights.FlightRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var records []flights.FlightRecord
	doc.Find("table tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return
		}
		if rec, ok := ParseRow(tr, departure, home, tz); ok {
			records = append(records, rec)
		}
	})
	return records, nil
}

// ParseRow normalizes one <tr>.
func ParseRow(tr *goquery.Selection, departure bool, home Home, tz *time.Location) (flights.FlightRecord, bool) {
	var cells [][]string
	tr.Find("td").Each(func(_ int, td *goquery.Selection) {
		cells = append(cells, cellLines(td))
	})
	if len(cells) <= colScheduled {
		return flights.FlightRecord{}, false
	}

	codes := cells[colFlights]
	if len(codes) == 0 {
		return flights.FlightRecord{}, false
	}
	date, err := time.ParseInLocation("2006-01-02", first(cells[colDate]), tz)
	if err != nil {
		return flights.FlightRecord{}, false
	}

	rec := flights.FlightRecord{
		FlightNo:      codes[0],
		SharedCodes:   codes[1:],
		Airlines:      cellAt(cells, colAirline),
		AircraftModel: cellAt(cells, colModel),
		Date:          date,
		Terminal:      cellAt(cells, colTerminal),
		Status:        cellAt(cells, colStatus),
	}

	sched := cellAt(cells, colScheduled)
	var timed *flights.TimedValue
	if act := cellAt(cells, colActual); act != "" {
		timed = flights.Actual(act)
	} else if est := cellAt(cells, colEstimated); est != "" {
		timed = flights.Estimated(est)
	}

	if departure {
		// departures list the via stop before the destination
		rec.DepAirport = home.Name
		rec.DepAirportCode = home.Code
		rec.ArrAirport = cellAt(cells, colFifth)
		if via := cellAt(cells, colFourth); via != "" {
			rec.ViaAirports = []string{via}
		}
		rec.DepTime = sched
		rec.ActDepTime = timed
		rec.Gate = cellAt(cells, colPosition)
	} else {
		// arrivals list the origin before the via stop
		rec.ArrAirport = home.Name
		rec.ArrAirportCode = home.Code
		rec.DepAirport = cellAt(cells, colFourth)
		if via := cellAt(cells, colFifth); via != "" {
			rec.ViaAirports = []string{via}
		}
		rec.ArrTime = sched
		rec.ActArrTime = timed
		rec.Carousel = cellAt(cells, colPosition)
	}

	return rec, true
}

// cellLines splits a cell into its visual lines: <br> starts a new line, the
// way a multi-codeshare flight cell renders.
func cellLines(td *goquery.Selection) []string {
	var lines []string
	cur := ""
	td.Contents().Each(func(_ int, n *goquery.Selection) {
		if goquery.NodeName(n) == "br" {
			lines = append(lines, cur)
			cur = ""
			return
		}
		cur += n.Text()
	})
	lines = append(lines, cur)

	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func cellAt(cells [][]string, i int) string {
	if i >= len(cells) {
		return ""
	}
	return first(cells[i])
}

func first(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}
