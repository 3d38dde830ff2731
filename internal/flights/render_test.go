package flights

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderBoardDepartures(t *testing.T) {
	records := []FlightRecord{
		{
			FlightNo:      "MU2871",
			ArrAirport:    "北京首都",
			DepTime:       "08:20",
			ActDepTime:    Actual("08:35"),
			AircraftModel: "A320",
		},
		{
			FlightNo:   "CA1501",
			ArrAirport: "上海虹桥",
			DepTime:    "09:10",
			ActDepTime: Estimated("09:25"),
		},
	}

	out := RenderBoard(records, true)
	require.Contains(t, out, "航班号")
	require.Contains(t, out, "目的地")
	require.Contains(t, out, "MU2871")
	require.Contains(t, out, "08:20/08:35(实)")
	require.Contains(t, out, "09:10/09:25(预)")
	require.Contains(t, out, "A320")
}

func TestRenderBoardArrivals(t *testing.T) {
	records := []FlightRecord{
		{FlightNo: "KE817", DepAirport: "首尔仁川", ArrTime: "12:40"},
	}

	out := RenderBoard(records, false)
	require.Contains(t, out, "出发地")
	require.Contains(t, out, "首尔仁川")
	require.Contains(t, out, "12:40")
	require.NotContains(t, out, "目的地")
}

func TestRenderBoardMissingClock(t *testing.T) {
	records := []FlightRecord{
		{FlightNo: "CZ3912", ArrAirport: "广州白云"},
	}

	out := RenderBoard(records, true)
	require.Contains(t, out, "--:--")
}
