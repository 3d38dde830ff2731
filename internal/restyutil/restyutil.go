// Package restyutil builds the preconfigured resty clients shared by the
// fetchers and the weather/radar scrapers.
package restyutil

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// BrowserUserAgent is sent on every outbound request; the airport sites
// reject obvious bot agents.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"

// NewClient creates a resty client with the shared user agent and timeout.
func NewClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", BrowserUserAgent)
}
