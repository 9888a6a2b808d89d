package compositor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/compositor/geom"
)

// renderTwice records, rasterizes and composites a frame, then composites
// again once the tiles are ready.
func renderTwice(t *testing.T, h *Host, pool *fakePool, dst *image.RGBA) {
	t.Helper()
	ctx := context.Background()
	if err := h.Frame(ctx, dst, dst.Bounds()); err != nil {
		t.Fatalf("first Frame() = %v", err)
	}
	pool.RunAll()
	if err := h.Frame(ctx, dst, dst.Bounds()); err != nil {
		t.Fatalf("second Frame() = %v", err)
	}
}

func TestDrawToCanvas_TilePlacement(t *testing.T) {
	h, pool, _ := newTestHost(t, WithCompositeBands(3))

	root := h.NewLayer()
	root.SetBounds(geom.Sz(100, 100))
	root.AddChild(contentLayer(h, geom.Pt(10, 20), geom.Sz(30, 30), red()))
	h.SetRoot(root)

	dst := image.NewRGBA(image.Rect(0, 0, 100, 100))
	renderTwice(t, h, pool, dst)

	white := color.RGBA{255, 255, 255, 255}
	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{15, 25, opaqueRed},
		{10, 20, opaqueRed},
		{39, 49, opaqueRed},
		{5, 5, white},
		{40, 50, white},
		{90, 90, white},
	}
	for _, tt := range tests {
		if got := dst.RGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestDrawToCanvas_Opacity(t *testing.T) {
	h, pool, _ := newTestHost(t, WithBackgroundColor(color.Black))

	root := h.NewLayer()
	child := contentLayer(h, geom.Point{}, geom.Sz(20, 20), red())
	child.SetOpacity(0.5)
	root.AddChild(child)
	h.SetRoot(root)

	dst := image.NewRGBA(image.Rect(0, 0, 20, 20))
	renderTwice(t, h, pool, dst)

	got := dst.RGBAAt(5, 5)
	if got.R < 126 || got.R > 129 || got.G != 0 || got.A != 255 {
		t.Errorf("pixel = %v, want half red over black", got)
	}
}

func TestDrawToCanvas_MasksToBounds(t *testing.T) {
	h, pool, _ := newTestHost(t)

	root := h.NewLayer()
	root.SetBounds(geom.Sz(50, 50))
	root.SetMasksToBounds(true)
	root.AddChild(contentLayer(h, geom.Pt(40, 40), geom.Sz(30, 30), red()))
	h.SetRoot(root)

	dst := image.NewRGBA(image.Rect(0, 0, 100, 100))
	renderTwice(t, h, pool, dst)

	if got := dst.RGBAAt(45, 45); got != opaqueRed {
		t.Errorf("inside clip = %v, want %v", got, opaqueRed)
	}
	if got := dst.RGBAAt(55, 55); got == opaqueRed {
		t.Errorf("outside clip = %v, want background", got)
	}
}

func TestDrawToCanvas_DeviceScale(t *testing.T) {
	h, pool, _ := newTestHost(t, WithBackgroundColor(nil), WithDeviceScaleFactor(2))

	root := h.NewLayer()
	root.AddChild(contentLayer(h, geom.Pt(10, 20), geom.Sz(30, 30), red()))
	h.SetRoot(root)

	dst := image.NewRGBA(image.Rect(0, 0, 100, 120))
	renderTwice(t, h, pool, dst)

	if got := dst.RGBAAt(40, 60); got.R < 250 || got.G > 5 || got.A < 250 {
		t.Errorf("scaled pixel = %v, want red", got)
	}
	if got := dst.RGBAAt(18, 38); got.A != 0 {
		t.Errorf("pixel outside scaled layer = %v, want transparent", got)
	}
}

func TestDrawToCanvas_TransparentBackground(t *testing.T) {
	h, _, _ := newTestHost(t, WithBackgroundColor(nil))

	blue := color.RGBA{B: 255, A: 255}
	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := range dst.Pix {
		if i%4 == 2 || i%4 == 3 {
			dst.Pix[i] = 255
		}
	}

	if err := h.DrawToCanvas(context.Background(), dst, dst.Bounds()); err != nil {
		t.Fatalf("DrawToCanvas() = %v", err)
	}
	if got := dst.RGBAAt(5, 5); got != blue {
		t.Errorf("pixel = %v, want untouched %v", got, blue)
	}
}

func TestDrawToCanvas_RespectsClip(t *testing.T) {
	h, _, _ := newTestHost(t)

	dst := image.NewRGBA(image.Rect(0, 0, 100, 100))
	if err := h.DrawToCanvas(context.Background(), dst, image.Rect(0, 0, 50, 50)); err != nil {
		t.Fatalf("DrawToCanvas() = %v", err)
	}
	if got := dst.RGBAAt(10, 10); got.A != 255 {
		t.Errorf("pixel inside clip = %v, want background", got)
	}
	if got := dst.RGBAAt(60, 60); got.A != 0 {
		t.Errorf("pixel outside clip = %v, want untouched", got)
	}
}

func TestDrawToCanvas_Cancelled(t *testing.T) {
	h, _, _ := newTestHost(t)

	root := h.NewLayer()
	h.SetRoot(root)
	h.PreDrawFrame()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	if err := h.DrawToCanvas(ctx, dst, dst.Bounds()); !errors.Is(err, context.Canceled) {
		t.Errorf("DrawToCanvas() = %v, want context.Canceled", err)
	}
}

func TestSplitBands(t *testing.T) {
	tests := []struct {
		name    string
		r       image.Rectangle
		n       int
		heights []int
	}{
		{"even", image.Rect(0, 0, 10, 9), 3, []int{3, 3, 3}},
		{"uneven", image.Rect(0, 0, 10, 10), 3, []int{3, 3, 4}},
		{"more bands than rows", image.Rect(0, 5, 10, 7), 8, []int{1, 1}},
		{"zero bands", image.Rect(0, 0, 10, 10), 0, []int{10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bands := splitBands(tt.r, tt.n)
			if len(bands) != len(tt.heights) {
				t.Fatalf("len(bands) = %d, want %d", len(bands), len(tt.heights))
			}
			y := tt.r.Min.Y
			for i, b := range bands {
				if b.Min.Y != y || b.Dy() != tt.heights[i] || b.Min.X != tt.r.Min.X || b.Max.X != tt.r.Max.X {
					t.Errorf("band %d = %v, want height %d starting at y=%d", i, b, tt.heights[i], y)
				}
				y = b.Max.Y
			}
			if y != tt.r.Max.Y {
				t.Errorf("bands end at y=%d, want %d", y, tt.r.Max.Y)
			}
		})
	}
}

func TestPaintImmediate(t *testing.T) {
	h, pool, _ := newTestHost(t)

	root := h.NewLayer()
	root.AddChild(contentLayer(h, geom.Pt(5, 5), geom.Sz(20, 20), red()))
	h.SetRoot(root)

	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	h.PaintImmediate(NewImageCanvas(img), geom.Rect{W: 50, H: 50}, false)

	if got := img.RGBAAt(10, 10); got != opaqueRed {
		t.Errorf("painted pixel = %v, want %v", got, opaqueRed)
	}
	if got := img.RGBAAt(2, 2); got.A != 0 {
		t.Errorf("unpainted pixel = %v, want transparent", got)
	}
	if h.NeedsFullTreeSync() {
		t.Error("NeedsFullTreeSync() = true after PaintImmediate")
	}
	if pool.Queued() != 0 {
		t.Errorf("PaintImmediate queued %d raster tasks", pool.Queued())
	}
}
