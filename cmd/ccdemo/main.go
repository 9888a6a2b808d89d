// Command ccdemo builds a small layer tree, animates it for a few frames
// through the tiled compositor and writes the last frame as a PNG.
package main

import (
	"context"
	"flag"
	"image"
	"image/color"
	"image/png"
	"log"
	"log/slog"
	"math"
	"os"
	"sync/atomic"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/layer"
)

// client counts the host's notifications.
type client struct {
	scheduled   atomic.Int64
	invalidated atomic.Int64
}

func (c *client) ScheduleAnimation()                { c.scheduled.Add(1) }
func (c *client) DidInvalidateRect(image.Rectangle) { c.invalidated.Add(1) }

func main() {
	var (
		width   = flag.Int("width", 800, "image width")
		height  = flag.Int("height", 600, "image height")
		frames  = flag.Int("frames", 8, "frames to animate")
		workers = flag.Int("workers", 0, "raster workers (0 = GOMAXPROCS)")
		scale   = flag.Float64("scale", 1, "device scale factor")
		output  = flag.String("output", "demo.png", "output file")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		compositor.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	viewport := geom.Sz(float64(*width), float64(*height))
	c := &client{}
	host := compositor.New(c,
		compositor.WithWorkers(*workers),
		compositor.WithViewportSize(viewport),
		compositor.WithDeviceScaleFactor(*scale),
		compositor.WithBackgroundColor(color.Black),
	)
	defer host.Close()

	root := host.NewLayer()
	root.SetBounds(viewport)
	root.SetDrawsContent(true)
	root.SetContent(layer.ContentFunc(drawGradient))

	panel := host.NewLayer()
	panel.SetPosition(geom.Pt(40, 40))
	panel.SetBounds(geom.Sz(320, 240))
	panel.SetMasksToBounds(true)
	panel.SetOpacity(0.8)
	panel.SetDrawsContent(true)
	panel.SetContent(layer.SolidColor{Color: color.NRGBA{R: 40, G: 60, B: 90, A: 255}})
	root.AddChild(panel)

	spinner := host.NewLayer()
	spinner.SetPosition(geom.Pt(100, 60))
	spinner.SetBounds(geom.Sz(120, 120))
	spinner.SetTransformOrigin(geom.Pt3(60, 60, 0))
	spinner.SetDrawsContent(true)
	spinner.SetContent(layer.SolidColor{Color: color.NRGBA{R: 255, G: 180, A: 255}})
	panel.AddChild(spinner)

	host.SetRoot(root)

	dst := image.NewRGBA(image.Rect(0, 0, int(float64(*width)**scale), int(float64(*height)**scale)))
	ctx := context.Background()
	for i := range *frames {
		host.BeginRecording()
		spinner.SetTransform(geom.RotationZ(float64(i) * math.Pi / 16))
		panel.SetPosition(geom.Pt(40+float64(i)*10, 40))
		host.EndRecording()

		if err := host.Frame(ctx, dst, dst.Bounds()); err != nil {
			log.Fatalf("frame %d: %v", i, err)
		}
		host.FinishAllRendering()
	}
	// Promote the last frame's tiles.
	if err := host.Frame(ctx, dst, dst.Bounds()); err != nil {
		log.Fatalf("final frame: %v", err)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, dst); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}

	log.Printf("Demo saved to %s (%dx%d), %d frames scheduled, %d invalidations\n",
		*output, dst.Bounds().Dx(), dst.Bounds().Dy(), c.scheduled.Load(), c.invalidated.Load())
}

func drawGradient(c layer.Canvas, bounds geom.Rect) {
	const steps = 64
	h := bounds.H / steps
	for i := range steps {
		t := float64(i) / steps
		c.FillRect(geom.Rect{X: bounds.X, Y: bounds.Y + float64(i)*h, W: bounds.W, H: h + 1}, color.NRGBA{
			R: uint8(25 + t*100),
			G: uint8(50 + t*75),
			B: uint8(100 + t*50),
			A: 255,
		})
	}
}
