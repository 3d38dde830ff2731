// Package sources assembles the per-airport fetchers into a registry.
package sources

import (
	"time"

	"github.com/35000ft/next-train-bot/internal/flights"
	"github.com/35000ft/next-train-bot/internal/flights/sources/can"
	"github.com/35000ft/next-train-bot/internal/flights/sources/gmp"
	"github.com/35000ft/next-train-bot/internal/flights/sources/hgh"
	"github.com/35000ft/next-train-bot/internal/flights/sources/hkg"
	"github.com/35000ft/next-train-bot/internal/flights/sources/icn"
	"github.com/35000ft/next-train-bot/internal/flights/sources/nkg"
	"github.com/35000ft/next-train-bot/internal/flights/sources/shanghai"
	"github.com/35000ft/next-train-bot/internal/flights/sources/szx"
	"github.com/35000ft/next-train-bot/pkg/logger"
)

// Options carries the cross-cutting settings every fetcher shares.
type Options struct {
	// Timeout bounds each HTTP request issued by the API-backed fetchers.
	Timeout time.Duration
	// ScreenshotDir receives failure captures from the browser-backed
	// fetchers; empty disables them.
	ScreenshotDir string
}

// DefaultRegistry builds a registry with every supported airport wired in
// under its city name and IATA code.
func DefaultRegistry(opts Options, log *logger.Logger) *flights.Registry {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	reg := flights.NewRegistry()
	reg.Register(nkg.New(opts.ScreenshotDir, log), "南京", "NKG")
	reg.Register(hkg.New(opts.Timeout, log), "香港", "HKG")
	reg.Register(shanghai.NewSHA(opts.ScreenshotDir, log), "虹桥", "SHA", "上海")
	reg.Register(shanghai.NewPVG(opts.ScreenshotDir, log), "浦东", "PVG")
	reg.Register(can.New(opts.Timeout, log), "广州", "CAN")
	reg.Register(szx.New(opts.Timeout, log), "深圳", "SZX")
	reg.Register(hgh.New(opts.Timeout, log), "杭州", "HGH")
	reg.Register(gmp.New(opts.Timeout, log), "金浦", "GMP")
	reg.Register(icn.New(opts.Timeout, log), "仁川", "ICN")
	return reg
}
