package parallel

import (
	"image"
	"sync"
	"testing"
)

// =============================================================================
// DirtyRegion Tests
// =============================================================================

func TestDirtyRegion_Create(t *testing.T) {
	tests := []struct {
		name           string
		tilesX, tilesY int
	}{
		{"single", 1, 1},
		{"word boundary", 8, 8},
		{"over one word", 13, 7},
		{"zero", 0, 5},
		{"negative", -1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDirtyRegion(tt.tilesX, tt.tilesY)
			if d == nil {
				t.Fatal("NewDirtyRegion returned nil")
			}
			if !d.IsEmpty() || d.Count() != 0 {
				t.Error("new region is not clean")
			}
		})
	}
}

func TestDirtyRegion_EmptyIgnoresMarks(t *testing.T) {
	d := NewDirtyRegion(0, 0)
	d.Mark(0, 0)
	d.MarkRect(image.Rect(0, 0, 100, 100))
	d.MarkAll()
	if !d.IsEmpty() {
		t.Error("empty region accepted a mark")
	}
	if got := d.GetAndClear(); len(got) != 0 {
		t.Errorf("GetAndClear() = %v, want none", got)
	}
}

func TestDirtyRegion_ForSize(t *testing.T) {
	d := NewDirtyRegionForSize(130, 64)
	if d.TilesX() != 3 || d.TilesY() != 1 {
		t.Errorf("tiles = %dx%d, want 3x1", d.TilesX(), d.TilesY())
	}
}

func TestDirtyRegion_Mark(t *testing.T) {
	d := NewDirtyRegion(10, 10)
	d.Mark(3, 4)
	d.Mark(3, 4)
	d.Mark(-1, 0)
	d.Mark(10, 0)

	if !d.IsDirty(3, 4) {
		t.Error("IsDirty(3,4) = false")
	}
	if d.IsDirty(4, 3) {
		t.Error("IsDirty(4,3) = true")
	}
	if d.Count() != 1 {
		t.Errorf("Count() = %d, want 1", d.Count())
	}
}

func TestDirtyRegion_MarkRect(t *testing.T) {
	tests := []struct {
		name string
		r    image.Rectangle
		want []image.Point
	}{
		{"one tile", image.Rect(5, 5, 10, 10), []image.Point{{0, 0}}},
		{"straddles", image.Rect(60, 0, 70, 10), []image.Point{{0, 0}, {1, 0}}},
		{"exact edge", image.Rect(0, 0, 64, 64), []image.Point{{0, 0}}},
		{"clamped", image.Rect(-50, 120, 1000, 1000), []image.Point{{0, 1}, {1, 1}, {2, 1}}},
		{"empty", image.Rect(5, 5, 5, 10), nil},
		{"outside", image.Rect(500, 500, 600, 600), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDirtyRegion(3, 2)
			d.MarkRect(tt.r)
			got := d.GetAndClear()
			if len(got) != len(tt.want) {
				t.Fatalf("GetAndClear() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("tile %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDirtyRegion_MarkAllAndClear(t *testing.T) {
	d := NewDirtyRegion(13, 7)
	d.MarkAll()
	if d.Count() != 91 {
		t.Errorf("Count() after MarkAll = %d, want 91", d.Count())
	}
	d.Clear()
	if !d.IsEmpty() {
		t.Error("IsEmpty() after Clear = false")
	}
}

func TestDirtyRegion_GetAndClearOrder(t *testing.T) {
	d := NewDirtyRegion(9, 9)
	d.Mark(8, 8)
	d.Mark(0, 1)
	d.Mark(2, 0)

	got := d.GetAndClear()
	want := []image.Point{{2, 0}, {0, 1}, {8, 8}}
	if len(got) != len(want) {
		t.Fatalf("GetAndClear() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tile %d = %v, want %v", i, got[i], want[i])
		}
	}
	if !d.IsEmpty() {
		t.Error("region not cleared")
	}
}

func TestDirtyRegion_ConcurrentMark(t *testing.T) {
	d := NewDirtyRegion(16, 16)
	var wg sync.WaitGroup
	for ty := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tx := range 16 {
				d.Mark(tx, ty)
			}
		}()
	}
	wg.Wait()

	if d.Count() != 256 {
		t.Errorf("Count() = %d, want 256", d.Count())
	}
}

func BenchmarkDirtyRegion_MarkRect(b *testing.B) {
	d := NewDirtyRegionForSize(1920, 1080)
	r := image.Rect(100, 100, 900, 700)
	for i := 0; i < b.N; i++ {
		d.MarkRect(r)
		d.GetAndClear()
	}
}
