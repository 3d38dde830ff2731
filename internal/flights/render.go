package flights

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderBoard renders records as the text flight board sent back to chat:
// flight number, scheduled/actual time pair, other-end airport and aircraft
// model.
func RenderBoard(records []FlightRecord, departure bool) string {
	t := table.NewWriter()
	otherEnd := "目的地"
	if !departure {
		otherEnd = "出发地"
	}
	t.AppendHeader(table.Row{"航班号", "时刻", otherEnd, "机型"})
	for _, r := range records {
		airport := r.DepAirport
		if departure {
			airport = r.ArrAirport
		}
		t.AppendRow(table.Row{r.FlightNo, renderClock(r, departure), airport, r.AircraftModel})
	}
	t.SetStyle(table.StyleLight)
	return t.Render()
}

// renderClock pairs the scheduled clock with the actual/estimated one when
// present, e.g. "08:20/08:35(实)".
func renderClock(r FlightRecord, departure bool) string {
	scheduled := r.ScheduledClock(departure)
	if scheduled == "" {
		scheduled = "--:--"
	}
	if act := r.ActualTime(departure); act != nil {
		return fmt.Sprintf("%s/%s", scheduled, act)
	}
	return scheduled
}
