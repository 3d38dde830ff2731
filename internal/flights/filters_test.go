package flights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleRecords() []FlightRecord {
	date := day(2025, 4, 14)
	return []FlightRecord{
		{FlightNo: "MU5101", Airlines: "中国东方航空", AircraftModel: "A359", DepAirport: "上海虹桥", ArrAirport: "北京首都", ArrAirportCode: "PEK", DepTime: "07:00", Date: date},
		{FlightNo: "CA1502", Airlines: "中国国际航空", AircraftModel: "B77W", DepAirport: "上海虹桥", ArrAirport: "北京首都", ArrAirportCode: "PEK", DepTime: "08:00", Date: date},
		{FlightNo: "CX363", Airlines: "国泰航空", AircraftModel: "A21N", DepAirport: "上海虹桥", ArrAirport: "香港", ArrAirportCode: "HKG", DepTime: "09:30", Date: date},
		{FlightNo: "HU7605", Airlines: "海南航空", AircraftModel: "B789", DepAirport: "上海虹桥", ArrAirport: "深圳宝安", ArrAirportCode: "SZX", DepTime: "10:10", Date: date},
		{FlightNo: "", Airlines: "占位"},
	}
}

func mustPipeline(t *testing.T, opts FilterOptions) *Pipeline {
	t.Helper()
	p, err := NewPipeline(opts)
	require.NoError(t, err)
	return p
}

func flightNos(records []FlightRecord) []string {
	nos := make([]string, 0, len(records))
	for _, r := range records {
		nos = append(nos, r.FlightNo)
	}
	return nos
}

func TestPipelineDropsEmptyRows(t *testing.T) {
	p := mustPipeline(t, FilterOptions{})
	got := p.Apply(sampleRecords())
	require.Len(t, got, 4)
	require.NotContains(t, flightNos(got), "")
}

func TestPipelineAlliance(t *testing.T) {
	p := mustPipeline(t, FilterOptions{Alliance: "天合"})
	require.Equal(t, []string{"MU5101"}, flightNos(p.Apply(sampleRecords())))

	p = mustPipeline(t, FilterOptions{Alliance: "海航"})
	require.Equal(t, []string{"HU7605"}, flightNos(p.Apply(sampleRecords())))
}

func TestPipelineUnknownAllianceIsValidationError(t *testing.T) {
	_, err := NewPipeline(FilterOptions{Alliance: "no_such_alliance"})
	require.ErrorIs(t, err, ErrUnknownAlliance)
}

func TestPipelineAircraftModelExactSet(t *testing.T) {
	p := mustPipeline(t, FilterOptions{AircraftModels: []string{"a359", "B789"}})
	require.Equal(t, []string{"MU5101", "HU7605"}, flightNos(p.Apply(sampleRecords())))
}

func TestPipelineCarrierCodes(t *testing.T) {
	p := mustPipeline(t, FilterOptions{AirlinesCodes: []string{"cx", "ca"}})
	require.Equal(t, []string{"CA1502", "CX363"}, flightNos(p.Apply(sampleRecords())))
}

func TestPipelineAirlinesNameSubstring(t *testing.T) {
	p := mustPipeline(t, FilterOptions{Airlines: "国泰"})
	require.Equal(t, []string{"CX363"}, flightNos(p.Apply(sampleRecords())))
}

func TestPipelineFlightNoCaseInsensitive(t *testing.T) {
	p := mustPipeline(t, FilterOptions{FlightNo: "mu51"})
	require.Equal(t, []string{"MU5101"}, flightNos(p.Apply(sampleRecords())))
}

func TestPipelineAirportNameOrCode(t *testing.T) {
	p := mustPipeline(t, FilterOptions{Airport: "北京", Departure: true})
	require.Equal(t, []string{"MU5101", "CA1502"}, flightNos(p.Apply(sampleRecords())))

	p = mustPipeline(t, FilterOptions{Airport: "hkg", Departure: true})
	require.Equal(t, []string{"CX363"}, flightNos(p.Apply(sampleRecords())))
}

func TestPipelineAfter(t *testing.T) {
	p := mustPipeline(t, FilterOptions{After: time.Date(2025, 4, 14, 9, 0, 0, 0, cst), Departure: true})
	require.Equal(t, []string{"CX363", "HU7605"}, flightNos(p.Apply(sampleRecords())))
}

func TestPipelineIdempotent(t *testing.T) {
	p := mustPipeline(t, FilterOptions{Alliance: "star", FlightNo: "CA"})
	once := p.Apply(sampleRecords())
	twice := p.Apply(once)
	require.Equal(t, once, twice)
}

// The seven predicates act on independent fields, so applying them as
// separate single-option pipelines in any order must agree with the combined
// pipeline.
func TestPipelineOrderIndependence(t *testing.T) {
	combined := mustPipeline(t, FilterOptions{
		Alliance:      "star",
		AirlinesCodes: []string{"CA", "CX"},
		FlightNo:      "1",
		Airport:       "北京",
		Departure:     true,
	})
	want := flightNos(combined.Apply(sampleRecords()))

	stages := []FilterOptions{
		{Airport: "北京", Departure: true},
		{FlightNo: "1"},
		{AirlinesCodes: []string{"CA", "CX"}},
		{Alliance: "star"},
	}
	// apply in reversed order relative to the combined pipeline
	got := sampleRecords()
	for _, opts := range stages {
		got = mustPipeline(t, opts).Apply(got)
	}
	require.Equal(t, want, flightNos(got))
}
