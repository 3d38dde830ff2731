package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/35000ft/next-train-bot/internal/config"
	"github.com/35000ft/next-train-bot/pkg/logger"
)

func TestParseWindKnots(t *testing.T) {
	w, err := ParseWind("08013KT")
	require.NoError(t, err)
	require.Equal(t, 80, w.Degrees)
	require.Equal(t, "东风", w.Direction)
	require.Equal(t, 13, w.Speed)
	require.Equal(t, "节", w.Unit)
	require.InDelta(t, 13.0, w.Knots, 0.001)
	require.InDelta(t, 24.076, w.KMH, 0.001)
	require.InDelta(t, 6.688, w.MPS, 0.001)
	require.Zero(t, w.Gust)
}

func TestParseWindMPSAndGust(t *testing.T) {
	w, err := ParseWind("24006MPS")
	require.NoError(t, err)
	require.Equal(t, "西南风", w.Direction)
	require.Equal(t, "米每秒", w.Unit)
	require.InDelta(t, 21.6, w.KMH, 0.001)
	require.InDelta(t, 11.66, w.Knots, 0.01)

	w, err = ParseWind("32015G27KT")
	require.NoError(t, err)
	require.Equal(t, "西北风", w.Direction)
	require.Equal(t, 27, w.Gust)
}

func TestParseWindVariableAndErrors(t *testing.T) {
	w, err := ParseWind("VRB02KT")
	require.NoError(t, err)
	require.True(t, w.Variable)
	require.Equal(t, "风向不定", w.Direction)

	_, err = ParseWind("CAVOK")
	require.Error(t, err)
}

func TestDirectionTextBoundaries(t *testing.T) {
	require.Equal(t, "北风", directionText(0))
	require.Equal(t, "北风", directionText(360))
	require.Equal(t, "东北风", directionText(45))
	require.Equal(t, "南风", directionText(180))
	require.Equal(t, "西风", directionText(270))
}

const metarPayload = `[{
	"icaoId": "ZSNJ",
	"name": "Nanjing Lukou Intl, JS, CN",
	"reportTime": "2025-04-14 06:00:00",
	"receiptTime": "2025-04-14 06:07:11",
	"temp": 18.0,
	"dewp": 9.0,
	"visib": "10+",
	"altim": 1017.0,
	"clouds": [{"cover": "FEW", "base": 3000}, {"cover": "SCT"}],
	"rawOb": "ZSNJ 140600Z 08013KT 9999 FEW030 18/09 Q1017 NOSIG",
	"rawTaf": "TAF ZSNJ 140430Z 1406/1506 09006MPS 6000"
}]`

func newTestClient(t *testing.T, hits *int32, payload string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return NewClient(config.WeatherConfig{
		APIBaseURL:         srv.URL,
		TimeoutSeconds:     2,
		CacheExpiryMinutes: 10,
	}, logger.Nop())
}

func TestReportFetchAndCache(t *testing.T) {
	var hits int32
	c := newTestClient(t, &hits, metarPayload)

	r, err := c.Report(context.Background(), "zsnj")
	require.NoError(t, err)
	require.Equal(t, "ZSNJ", r.ICAOID)
	require.InDelta(t, 18.0, r.Temp, 0.001)
	require.Len(t, r.Clouds, 2)
	require.Equal(t, 3000, r.Clouds[0].Base)

	w, err := r.Wind()
	require.NoError(t, err)
	require.Equal(t, "东风", w.Direction)

	_, err = c.Report(context.Background(), "ZSNJ")
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&hits), "second lookup must come from cache")
}

func TestReportUnknownStation(t *testing.T) {
	var hits int32
	c := newTestClient(t, &hits, `[]`)

	_, err := c.Report(context.Background(), "XXXX")
	require.ErrorContains(t, err, "no such airport: XXXX")
}

func TestReportCacheExpiry(t *testing.T) {
	var hits int32
	c := newTestClient(t, &hits, metarPayload)
	c.ttl = time.Millisecond

	_, err := c.Report(context.Background(), "ZSNJ")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = c.Report(context.Background(), "ZSNJ")
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestReportString(t *testing.T) {
	var hits int32
	c := newTestClient(t, &hits, metarPayload)

	r, err := c.Report(context.Background(), "ZSNJ")
	require.NoError(t, err)

	text := r.String()
	require.Contains(t, text, "ZSNJ")
	require.Contains(t, text, "风向: 东风 风速: 13 节")
	require.Contains(t, text, "FEW 3000ft")
	require.Contains(t, text, "METAR原始报告: ZSNJ 140600Z")
	require.Contains(t, text, "TAF原始预报")
}
