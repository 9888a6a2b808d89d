package compositor

import (
	"image/color"
	"runtime"
	"time"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/internal/parallel"
)

// HostOption configures a Host during creation.
//
// Example:
//
//	// Defaults: GOMAXPROCS raster workers, white background
//	host := compositor.New(client)
//
//	// Injected raster pool (dependency injection, tests)
//	host := compositor.New(client, compositor.WithRasterPool(pool))
type HostOption func(*hostOptions)

// hostOptions holds optional configuration for Host creation.
type hostOptions struct {
	workers        int
	pool           RasterPool
	pollInterval   time.Duration
	background     color.Color
	transparent    bool
	viewport       geom.Size
	deviceScale    float64
	compositeBands int
}

// defaultOptions returns the default host options.
func defaultOptions() hostOptions {
	return hostOptions{
		workers:        0, // GOMAXPROCS
		pool:           nil,
		pollInterval:   parallel.DefaultPollInterval,
		background:     color.White,
		deviceScale:    1,
		compositeBands: runtime.GOMAXPROCS(0),
	}
}

// WithWorkers sets the number of raster workers of the host's own pool.
// Ignored when WithRasterPool is given. Zero or negative uses GOMAXPROCS.
func WithWorkers(n int) HostOption {
	return func(o *hostOptions) {
		o.workers = n
	}
}

// WithRasterPool makes the host submit raster tasks to pool instead of
// creating its own worker pool. The host does not close an injected pool.
func WithRasterPool(pool RasterPool) HostOption {
	return func(o *hostOptions) {
		o.pool = pool
	}
}

// WithPollInterval sets how often teardown polls for outstanding raster
// tasks. Non-positive values keep the default of 20ms.
func WithPollInterval(d time.Duration) HostOption {
	return func(o *hostOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithBackgroundColor sets the color DrawToCanvas clears to. A nil color
// makes the background transparent: the destination is left as is.
func WithBackgroundColor(c color.Color) HostOption {
	return func(o *hostOptions) {
		o.background = c
		o.transparent = c == nil
	}
}

// WithViewportSize sets the initial viewport size.
func WithViewportSize(s geom.Size) HostOption {
	return func(o *hostOptions) {
		o.viewport = s
	}
}

// WithDeviceScaleFactor sets the initial device scale factor applied when
// compositing. Non-positive values are ignored.
func WithDeviceScaleFactor(f float64) HostOption {
	return func(o *hostOptions) {
		if f > 0 {
			o.deviceScale = f
		}
	}
}

// WithCompositeBands sets how many horizontal bands DrawToCanvas composites
// in parallel. Values below 1 are treated as 1.
func WithCompositeBands(n int) HostOption {
	return func(o *hostOptions) {
		o.compositeBands = max(n, 1)
	}
}
