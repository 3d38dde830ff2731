// Package weather serves METAR observations for airports, fetched from the
// aviationweather.gov data API and cached per station.
package weather

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/35000ft/next-train-bot/internal/config"
	"github.com/35000ft/next-train-bot/internal/restyutil"
	"github.com/35000ft/next-train-bot/pkg/logger"
)

// Cloud is one cloud layer of an observation.
type Cloud struct {
	Cover string
	Base  int // feet AGL, 0 when not reported
}

// Report is one decoded METAR observation, with the raw texts kept for
// display.
type Report struct {
	ICAOID      string
	Name        string
	ReportTime  string
	ReceiptTime string
	Temp        float64
	Dewpoint    float64
	Visibility  string
	AltimHPA    float64
	Clouds      []Cloud
	RawMETAR    string
	RawTAF      string
}

// Client fetches and caches METAR reports.
type Client struct {
	http   *resty.Client
	log    *logger.Logger
	apiURL string
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]cachedReport
}

type cachedReport struct {
	report  *Report
	expires time.Time
}

// NewClient creates a METAR client from the weather configuration.
func NewClient(cfg config.WeatherConfig, log *logger.Logger) *Client {
	return &Client{
		http:   restyutil.NewClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
		log:    log.Named("weather"),
		apiURL: cfg.APIBaseURL,
		ttl:    time.Duration(cfg.CacheExpiryMinutes) * time.Minute,
	}
}

// Report returns the current observation for an ICAO station, serving from
// cache while fresh. An unknown station is an error naming the code.
func (c *Client) Report(ctx context.Context, icao string) (*Report, error) {
	icao = strings.ToUpper(strings.TrimSpace(icao))
	if icao == "" {
		return nil, fmt.Errorf("empty station code")
	}

	if r := c.cached(icao); r != nil {
		return r, nil
	}

	c.log.Info("fetching metar", logger.String("station", icao))
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":    icao,
			"format": "json",
			"taf":    "true",
		}).
		Get(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("request metar: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	reports := gjson.ParseBytes(resp.Body()).Array()
	if len(reports) == 0 {
		return nil, fmt.Errorf("no such airport: %s", icao)
	}
	report := parseReport(reports[0])

	c.store(icao, report)
	return report, nil
}

func (c *Client) cached(icao string) *Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[icao]
	if !ok || time.Now().After(entry.expires) {
		return nil
	}
	return entry.report
}

func (c *Client) store(icao string, r *Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		c.cache = make(map[string]cachedReport)
	}
	c.cache[icao] = cachedReport{report: r, expires: time.Now().Add(c.ttl)}
}

func parseReport(row gjson.Result) *Report {
	r := &Report{
		ICAOID:      row.Get("icaoId").String(),
		Name:        row.Get("name").String(),
		ReportTime:  row.Get("reportTime").String(),
		ReceiptTime: row.Get("receiptTime").String(),
		Temp:        row.Get("temp").Float(),
		Dewpoint:    row.Get("dewp").Float(),
		Visibility:  row.Get("visib").String(),
		AltimHPA:    row.Get("altim").Float(),
		RawMETAR:    row.Get("rawOb").String(),
		RawTAF:      row.Get("rawTaf").String(),
	}
	for _, cloud := range row.Get("clouds").Array() {
		r.Clouds = append(r.Clouds, Cloud{
			Cover: cloud.Get("cover").String(),
			Base:  int(cloud.Get("base").Int()),
		})
	}
	return r
}

// Wind decodes the wind group out of the raw METAR text.
func (r *Report) Wind() (Wind, error) {
	fields := strings.Fields(r.RawMETAR)
	// group 0 is the station, 1 the observation time, 2 the wind
	if len(fields) < 3 {
		return Wind{}, fmt.Errorf("truncated metar: %q", r.RawMETAR)
	}
	return ParseWind(fields[2])
}

// String renders the report as the chat reply text.
func (r *Report) String() string {
	var clouds []string
	for _, c := range r.Clouds {
		if c.Base > 0 {
			clouds = append(clouds, fmt.Sprintf("%s %dft", c.Cover, c.Base))
		} else {
			clouds = append(clouds, c.Cover)
		}
	}

	windLine := "风向风速: 无法解析"
	if w, err := r.Wind(); err == nil {
		windLine = fmt.Sprintf("风向: %s 风速: %d %s", w.Direction, w.Speed, w.Unit)
		if w.Gust > 0 {
			windLine += fmt.Sprintf(" 阵风: %d", w.Gust)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "机场: %s (ICAO代码: %s)\n", r.Name, r.ICAOID)
	fmt.Fprintf(&b, "报告时间: %s (UTC)\n", r.ReportTime)
	fmt.Fprintf(&b, "温度: %.0f°C, 露点: %.0f°C\n", r.Temp, r.Dewpoint)
	fmt.Fprintf(&b, "%s\n", windLine)
	fmt.Fprintf(&b, "能见度: %s\n", r.Visibility)
	fmt.Fprintf(&b, "气压: %.0f hPa\n", r.AltimHPA)
	fmt.Fprintf(&b, "云层信息: %s\n", strings.Join(clouds, ", "))
	fmt.Fprintf(&b, "\nMETAR原始报告: %s\n", r.RawMETAR)
	if r.RawTAF != "" {
		fmt.Fprintf(&b, "TAF原始预报: %s\n", r.RawTAF)
	}
	return b.String()
}
