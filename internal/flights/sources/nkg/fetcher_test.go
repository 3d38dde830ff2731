package nkg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/35000ft/next-train-bot/internal/flights"
	"github.com/35000ft/next-train-bot/pkg/logger"
)

func TestFetchFlightsRejectsUnknownAllianceBeforeBrowserStart(t *testing.T) {
	f := New(t.TempDir(), logger.Nop())
	_, err := f.FetchFlights(context.Background(), flights.QueryFlightForm{Alliance: "银河联盟"}, flights.FetchOptions{})
	require.ErrorIs(t, err, flights.ErrUnknownAlliance)
}

func TestPageDelayBounds(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := pageDelay()
		require.GreaterOrEqual(t, d, time.Second)
		require.Less(t, d, 2*time.Second)
	}
}

func TestAirportIdentity(t *testing.T) {
	f := New("", logger.Nop())
	require.Equal(t, "南京", f.AirportName())
	require.Equal(t, "NKG", f.AirportCode())
}
