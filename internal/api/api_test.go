package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/35000ft/next-train-bot/internal/config"
	"github.com/35000ft/next-train-bot/internal/flights"
	"github.com/35000ft/next-train-bot/internal/radar"
	"github.com/35000ft/next-train-bot/internal/storage/sqlite"
	"github.com/35000ft/next-train-bot/internal/weather"
	"github.com/35000ft/next-train-bot/pkg/logger"
)

type stubFetcher struct {
	records []flights.FlightRecord
	err     error
}

func (s *stubFetcher) AirportName() string { return "测试机场" }
func (s *stubFetcher) AirportCode() string { return "TST" }

func (s *stubFetcher) FetchFlights(ctx context.Context, form flights.QueryFlightForm, opts flights.FetchOptions) ([]flights.FlightRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	pipe, err := flights.NewPipeline(flights.FilterOptionsFrom(form, !opts.Arrivals))
	if err != nil {
		return nil, err
	}
	return pipe.Apply(s.records), nil
}

func newTestServer(t *testing.T, fetcher flights.Fetcher) *httptest.Server {
	t.Helper()

	reg := flights.NewRegistry()
	reg.Register(fetcher, "测试", "TST")

	metarSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(metarSrv.Close)

	cfg := config.Default()
	cfg.Weather.APIBaseURL = metarSrv.URL
	cfg.Radar.StationFile = filepath.Join(t.TempDir(), "stations.json")

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	prefs, err := sqlite.NewPreferenceStorage(db, logger.Nop())
	require.NoError(t, err)

	router := NewRouter(
		reg,
		weather.NewClient(cfg.Weather, logger.Nop()),
		radar.NewService(cfg.Radar, logger.Nop()),
		prefs,
		cfg,
		logger.Nop(),
	)
	srv := httptest.NewServer(router.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var b strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		b.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return resp, b.String()
}

func TestGetFlights(t *testing.T) {
	fetcher := &stubFetcher{records: []flights.FlightRecord{{
		FlightNo:   "MU2871",
		DepAirport: "测试机场",
		ArrAirport: "北京首都",
		DepTime:    "07:25",
		Date:       time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC),
	}}}
	srv := newTestServer(t, fetcher)

	resp, body := get(t, srv.URL+"/api/v1/flights/测试")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "MU2871")
	require.Contains(t, body, "测试机场")

	resp, body = get(t, srv.URL+"/api/v1/flights/tst?format=text")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	require.Contains(t, body, "航班号")
	require.Contains(t, body, "MU2871")
}

func TestGetFlightsUnsupportedAirport(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{})

	resp, body := get(t, srv.URL+"/api/v1/flights/ABC")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body, "ABC")
}

func TestGetFlightsUnknownAlliance(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{})

	resp, body := get(t, srv.URL+"/api/v1/flights/TST?alliance=nonsense")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body, "nonsense")
}

func TestGetFlightsFetchFailure(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{err: errors.New("socket reset")})

	resp, body := get(t, srv.URL+"/api/v1/flights/TST")
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.NotContains(t, body, "socket reset", "transport details stay out of the reply")
}

func TestGetAirports(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{})

	resp, body := get(t, srv.URL+"/api/v1/airports")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "TST")
}

func TestGetWeatherUnknownStation(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{})

	resp, body := get(t, srv.URL+"/api/v1/wx/XXXX")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Contains(t, body, "XXXX")
}

func TestPreferenceRoundTrip(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{})

	resp, err := http.Post(srv.URL+"/api/v1/preferences", "application/json",
		strings.NewReader(`{"user_id": "u1", "airport": "TST"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	getResp, body := get(t, srv.URL+"/api/v1/preferences?user_id=u1")
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	require.Contains(t, body, "TST")
}

func TestSetPreferenceRejectsUnknownAirport(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{})

	resp, err := http.Post(srv.URL+"/api/v1/preferences", "application/json",
		strings.NewReader(`{"user_id": "u1", "airport": "北京"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubFetcher{})

	resp, body := get(t, srv.URL+"/api/v1/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "ok")
}
