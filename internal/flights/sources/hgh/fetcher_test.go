package hgh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/35000ft/next-train-bot/internal/flights"
	"github.com/35000ft/next-train-bot/pkg/logger"
)

const firstPageHTML = `<html><body>
<div class="flight_select fl">
	<ul>
		<li data-id="CA">中国国际航空</li>
		<li data-id="MU">中国东方航空</li>
	</ul>
</div>
<div class="timetable_list">
	<div class="timetable_item">
		<div class="time">07:25</div>
		<div class="flight">
			<p><span class="no">CA 1701</span><span class="airline">中国国际航空</span></p>
			<p><span class="no">ZH 1701</span><span class="airline">深圳航空</span></p>
		</div>
		<div class="city">北京首都</div>
		<div class="terminal">T4</div>
		<div class="gate">32</div>
		<div class="status">启航 07:40</div>
	</div>
	<div class="timetable_item">
		<div class="time">08:10</div>
		<div class="flight"><p><span class="no">MU 5518</span><span class="airline">中国东方航空</span></p></div>
		<div class="city">广州白云</div>
		<div class="terminal">T4</div>
		<div class="gate">18</div>
		<div class="status">预计 08:30</div>
	</div>
	<div class="timetable_item">
		<div class="time">09:00</div>
		<div class="flight"><p><span class="no"></span></p></div>
		<div class="city">成都天府</div>
	</div>
</div>
<div class="page_con clearfix">
	<a class="num">1</a><a class="num">2</a><a class="num">..12</a><a class="next">»</a>
</div>
</body></html>`

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseDepartureRows(t *testing.T) {
	f := New(time.Second, logger.Nop())
	doc := mustDoc(t, firstPageHTML)
	date := time.Date(2025, 4, 14, 0, 0, 0, 0, f.tz)

	var recs []flights.FlightRecord
	doc.Find("div.timetable_item").Each(func(_ int, row *goquery.Selection) {
		if rec, ok := f.parseRow(row, true, date); ok {
			recs = append(recs, rec)
		}
	})
	require.Len(t, recs, 2, "the row without a flight number must be dropped")

	require.Equal(t, "CA1701", recs[0].FlightNo)
	require.Equal(t, []string{"ZH1701"}, recs[0].SharedCodes)
	require.Equal(t, "中国国际航空", recs[0].Airlines)
	require.Equal(t, "杭州", recs[0].DepAirport)
	require.Equal(t, "北京首都", recs[0].ArrAirport)
	require.Equal(t, "07:25", recs[0].DepTime)
	require.Equal(t, "07:40(实)", recs[0].ActDepTime.String())
	require.Equal(t, "32", recs[0].Gate)
	require.Empty(t, recs[0].ArrTime)

	require.Equal(t, "MU5518", recs[1].FlightNo)
	require.Equal(t, "08:30(预)", recs[1].ActDepTime.String())
}

func TestParseArrivalRowUsesBaggage(t *testing.T) {
	html := `<div class="timetable_item">
		<div class="time">21:40</div>
		<div class="flight"><p><span class="no">CA 1702</span><span class="airline">中国国际航空</span></p></div>
		<div class="city">北京首都</div>
		<div class="baggage">5</div>
		<div class="status">到闸口 21:31</div>
	</div>`
	f := New(time.Second, logger.Nop())
	date := time.Date(2025, 4, 14, 0, 0, 0, 0, f.tz)

	rec, ok := f.parseRow(mustDoc(t, html).Find("div.timetable_item"), false, date)
	require.True(t, ok)
	require.Equal(t, "杭州", rec.ArrAirport)
	require.Equal(t, "北京首都", rec.DepAirport)
	require.Equal(t, "21:40", rec.ArrTime)
	require.Equal(t, "21:31(实)", rec.ActArrTime.String())
	require.Equal(t, "5", rec.Carousel)
	require.Empty(t, rec.DepTime)
}

func TestParseMaxPage(t *testing.T) {
	require.Equal(t, 12, parseMaxPage(mustDoc(t, firstPageHTML)))
	require.Equal(t, 1, parseMaxPage(mustDoc(t, `<div class="page_con clearfix"><a class="num">1</a></div>`)))
	require.Equal(t, 1, parseMaxPage(mustDoc(t, `<div></div>`)))
}

func TestResolveAirline(t *testing.T) {
	doc := mustDoc(t, firstPageHTML)
	require.Equal(t, "中国东方航空", resolveAirline(doc, "东方"))
	require.Equal(t, "中国国际航空", resolveAirline(doc, "ca"))
	require.Empty(t, resolveAirline(doc, "不存在"))
	require.Empty(t, resolveAirline(doc, ""))
}

func TestEstimateStartPage(t *testing.T) {
	s := &session{}
	at := func(h, m int) time.Time {
		return time.Date(2025, 4, 14, h, m, 0, 0, time.FixedZone("CST", 8*3600))
	}

	require.Equal(t, 1, s.EstimateStartPage(at(4, 0), 12))
	require.Equal(t, 1, s.EstimateStartPage(at(12, 0), 1))
	// 10:00 is 360 minutes past 04:00, page 4 of 12, minus one of slack
	require.Equal(t, 3, s.EstimateStartPage(at(10, 0), 12))
	// pre-dawn wraps to the end of the previous board day
	require.Equal(t, 11, s.EstimateStartPage(at(2, 0), 12))
}

func TestPageURL(t *testing.T) {
	f := New(time.Second, logger.Nop())
	s := &session{f: f, departure: true, identity: "CA1701", airline: "中国国际航空"}
	require.Equal(t,
		"https://www.hzairport.com/flight/index/identity/CA1701/airline/中国国际航空/p/4",
		s.pageURL(4))
}

func TestFetchFlightsCollectsFirstPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Replace(firstPageHTML, `<a class="num">..12</a>`, "", 1)))
	}))
	defer srv.Close()

	f := New(time.Second, logger.Nop())
	f.baseURL = srv.URL

	at := time.Date(2025, 4, 14, 7, 0, 0, 0, f.tz)
	got, err := f.FetchFlights(context.Background(), flights.QueryFlightForm{AtTime: at}, flights.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "CA1701", got[0].FlightNo)
	require.Equal(t, "MU5518", got[1].FlightNo)
}
