package parallel

import (
	"image"
	"sync"
	"testing"
)

// =============================================================================
// Tile Tests
// =============================================================================

func TestTile_Constants(t *testing.T) {
	if TileWidth != 64 || TileHeight != 64 {
		t.Errorf("tile size = %dx%d, want 64x64", TileWidth, TileHeight)
	}
	if TileBytes != 64*64*4 {
		t.Errorf("TileBytes = %d, want %d", TileBytes, 64*64*4)
	}
}

func TestTile_Geometry(t *testing.T) {
	g := NewTileGrid(100, 70, NewTilePool())
	tile, _ := g.Request(1, 1, 1)

	x, y, w, h := tile.Bounds()
	if x != 64 || y != 64 || w != 36 || h != 6 {
		t.Errorf("Bounds() = (%d,%d,%d,%d), want (64,64,36,6)", x, y, w, h)
	}
	if got, want := tile.Rect(), image.Rect(64, 64, 100, 70); got != want {
		t.Errorf("Rect() = %v, want %v", got, want)
	}
	if tile.Stride() != 36*4 {
		t.Errorf("Stride() = %d, want %d", tile.Stride(), 36*4)
	}
	if len(tile.Data) != 36*6*4 {
		t.Errorf("len(Data) = %d, want %d", len(tile.Data), 36*6*4)
	}
}

func TestTile_ImageSharesData(t *testing.T) {
	g := NewTileGrid(64, 64, NewTilePool())
	tile, _ := g.Request(0, 0, 1)

	img := tile.Image()
	img.Pix[0] = 0xAB
	if tile.Data[0] != 0xAB {
		t.Error("Image() does not share the tile buffer")
	}
	if img.Bounds() != image.Rect(0, 0, 64, 64) {
		t.Errorf("Image().Bounds() = %v", img.Bounds())
	}
}

func TestTileState_String(t *testing.T) {
	tests := []struct {
		s    TileState
		want string
	}{
		{TileRequested, "Requested"},
		{TileRasterizing, "Rasterizing"},
		{TileReady, "Ready"},
		{TilePendingRelease, "PendingRelease"},
		{TileFreed, "Freed"},
		{TileState(42), "TileState(42)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

// =============================================================================
// Tile Lifecycle Tests
// =============================================================================

func TestTile_Lifecycle(t *testing.T) {
	g := NewTileGrid(64, 64, NewTilePool())
	tile, _ := g.Request(0, 0, 3)

	if tile.State() != TileRequested || tile.Refs() != 1 {
		t.Fatalf("new tile: state %s refs %d, want Requested 1", tile.State(), tile.Refs())
	}
	if tile.DrawingIndex != 3 {
		t.Errorf("DrawingIndex = %d, want 3", tile.DrawingIndex)
	}

	tile.Ref()
	if !tile.BeginRaster() {
		t.Fatal("BeginRaster() = false")
	}
	if tile.BeginRaster() {
		t.Error("second BeginRaster() = true")
	}
	if !tile.FinishRaster() {
		t.Fatal("FinishRaster() = false")
	}
	tile.Unref()

	if !tile.Retire() {
		t.Fatal("Retire() = false")
	}
	if tile.Retire() {
		t.Error("second Retire() = true")
	}
	tile.Unref()

	if tile.State() != TileFreed {
		t.Errorf("state = %s, want Freed", tile.State())
	}
	if tile.Data != nil {
		t.Error("freed tile still owns its buffer")
	}
}

func TestTile_RetireBeforeRaster(t *testing.T) {
	g := NewTileGrid(64, 64, NewTilePool())
	tile, _ := g.Request(0, 0, 1)
	tile.Retire()

	if tile.BeginRaster() {
		t.Error("BeginRaster() on a retired tile = true")
	}
}

func TestTile_RetireDuringRaster(t *testing.T) {
	g := NewTileGrid(64, 64, NewTilePool())
	tile, _ := g.Request(0, 0, 1)
	tile.BeginRaster()
	tile.Retire()

	if tile.FinishRaster() {
		t.Error("FinishRaster() on a retired tile = true")
	}
	if tile.State() != TilePendingRelease {
		t.Errorf("state = %s, want PendingRelease", tile.State())
	}
}

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	fn()
}

func TestTile_UnrefPanics(t *testing.T) {
	g := NewTileGrid(64, 64, NewTilePool())

	live, _ := g.Request(0, 0, 1)
	expectPanic(t, "last Unref on a live tile", live.Unref)

	freed, _ := NewTileGrid(64, 64, nil).Request(0, 0, 1)
	freed.Retire()
	freed.Unref()
	expectPanic(t, "Unref on a freed tile", freed.Unref)
	expectPanic(t, "Ref on a freed tile", freed.Ref)
}

func TestTile_ConcurrentRefs(t *testing.T) {
	g := NewTileGrid(64, 64, NewTilePool())
	tile, _ := g.Request(0, 0, 1)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tile.Ref()
			tile.Unref()
		}()
	}
	wg.Wait()

	if tile.Refs() != 1 {
		t.Errorf("Refs() = %d, want 1", tile.Refs())
	}
}

// =============================================================================
// TileGrid Tests
// =============================================================================

func TestTileGrid_Create(t *testing.T) {
	tests := []struct {
		name           string
		width, height  int
		tilesX, tilesY int
	}{
		{"exact", 128, 64, 2, 1},
		{"edge", 100, 100, 2, 2},
		{"single pixel", 1, 1, 1, 1},
		{"empty", 0, 50, 0, 0},
		{"negative", -5, 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewTileGrid(tt.width, tt.height, nil)
			if g.TilesX() != tt.tilesX || g.TilesY() != tt.tilesY {
				t.Errorf("tiles = %dx%d, want %dx%d", g.TilesX(), g.TilesY(), tt.tilesX, tt.tilesY)
			}
			if g.ReadyCount() != 0 || g.PendingCount() != 0 {
				t.Error("new grid is not empty")
			}
		})
	}
}

func TestTileGrid_RequestOutOfRange(t *testing.T) {
	g := NewTileGrid(64, 64, nil)
	if tile, _ := g.Request(1, 0, 1); tile != nil {
		t.Error("Request outside the grid returned a tile")
	}
}

func TestTileGrid_RequestSupersedesPending(t *testing.T) {
	g := NewTileGrid(128, 128, NewTilePool())

	first, sup := g.Request(1, 1, 1)
	if sup != nil {
		t.Fatal("first request superseded something")
	}
	second, sup := g.Request(1, 1, 2)
	if sup != first {
		t.Fatalf("superseded = %p, want first tile %p", sup, first)
	}
	if first.State() != TilePendingRelease {
		t.Errorf("superseded state = %s, want PendingRelease", first.State())
	}
	if g.PendingAt(1, 1) != second {
		t.Error("PendingAt does not return the newest request")
	}
	if !second.IsSameGrid(g) || second.IsSameGrid(NewTileGrid(1, 1, nil)) {
		t.Error("IsSameGrid mismatch")
	}
}

func TestTileGrid_Promote(t *testing.T) {
	g := NewTileGrid(64, 64, NewTilePool())

	a, _ := g.Request(0, 0, 1)
	if _, ok := g.Promote(a); ok {
		t.Error("Promote of an unrastered tile succeeded")
	}
	a.BeginRaster()
	a.FinishRaster()
	old, ok := g.Promote(a)
	if !ok || old != nil {
		t.Fatalf("Promote(a) = (%v, %v), want (nil, true)", old, ok)
	}
	if g.TileAt(0, 0) != a || g.PendingAt(0, 0) != nil {
		t.Error("slot not updated after Promote")
	}

	b, _ := g.Request(0, 0, 2)
	b.BeginRaster()
	b.FinishRaster()
	old, ok = g.Promote(b)
	if !ok || old != a {
		t.Fatalf("Promote(b) = (%v, %v), want (a, true)", old, ok)
	}
	if a.State() != TilePendingRelease {
		t.Errorf("replaced tile state = %s, want PendingRelease", a.State())
	}
	a.Unref()
	if a.State() != TileFreed {
		t.Errorf("replaced tile state after Unref = %s, want Freed", a.State())
	}
}

func TestTileGrid_PromoteSuperseded(t *testing.T) {
	g := NewTileGrid(64, 64, NewTilePool())

	a, _ := g.Request(0, 0, 1)
	a.BeginRaster()
	g.Request(0, 0, 2)
	a.FinishRaster()

	if _, ok := g.Promote(a); ok {
		t.Error("Promote of a superseded tile succeeded")
	}
}

func TestTileGrid_PromoteForeignTile(t *testing.T) {
	g := NewTileGrid(64, 64, nil)
	other := NewTileGrid(64, 64, nil)
	tile, _ := other.Request(0, 0, 1)
	tile.BeginRaster()
	tile.FinishRaster()

	if _, ok := g.Promote(tile); ok {
		t.Error("Promote of a tile from another grid succeeded")
	}
}

func TestTileGrid_ResizeAndClose(t *testing.T) {
	g := NewTileGrid(128, 64, NewTilePool())
	a, _ := g.Request(0, 0, 1)
	a.BeginRaster()
	a.FinishRaster()
	g.Promote(a)
	g.Request(1, 0, 1)

	if evicted := g.Resize(128, 64); evicted != nil {
		t.Errorf("Resize to same size evicted %d tiles", len(evicted))
	}
	evicted := g.Resize(200, 10)
	if len(evicted) != 2 {
		t.Fatalf("Resize evicted %d tiles, want 2", len(evicted))
	}
	for _, tile := range evicted {
		if tile.State() != TilePendingRelease {
			t.Errorf("evicted state = %s, want PendingRelease", tile.State())
		}
	}
	if g.TilesX() != 4 || g.TilesY() != 1 {
		t.Errorf("tiles after resize = %dx%d, want 4x1", g.TilesX(), g.TilesY())
	}

	g.Request(3, 0, 2)
	closed := g.Close()
	if len(closed) != 1 || !g.Closed() {
		t.Errorf("Close returned %d tiles, closed=%v", len(closed), g.Closed())
	}
	if tile, _ := g.Request(0, 0, 3); tile != nil {
		t.Error("Request after Close returned a tile")
	}
}

// =============================================================================
// TilePool Tests
// =============================================================================

func TestTilePool_GetPut(t *testing.T) {
	p := NewTilePool()

	b := p.Get(TileWidth, TileHeight)
	if len(b) != TileBytes {
		t.Fatalf("len = %d, want %d", len(b), TileBytes)
	}
	b[0] = 0xFF
	p.Put(b)

	again := p.Get(TileWidth, TileHeight)
	for i, v := range again {
		if v != 0 {
			t.Fatalf("byte %d = %d, want zeroed buffer", i, v)
		}
	}
}

func TestTilePool_EdgeSizes(t *testing.T) {
	p := NewTilePool()

	b := p.Get(10, 20)
	if len(b) != 10*20*4 {
		t.Errorf("len = %d, want %d", len(b), 10*20*4)
	}
	p.Put(b)
	p.Put(nil)

	if p.Get(0, 10) != nil || p.Get(10, -1) != nil {
		t.Error("Get with non-positive size returned a buffer")
	}
}

func TestTilePool_Concurrent(t *testing.T) {
	p := NewTilePool()
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				w := TileWidth - i%3
				b := p.Get(w, TileHeight)
				if len(b) != w*TileHeight*4 {
					t.Errorf("len = %d, want %d", len(b), w*TileHeight*4)
					return
				}
				p.Put(b)
			}
		}()
	}
	wg.Wait()
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkTileGrid_RequestPromote(b *testing.B) {
	g := NewTileGrid(1920, 1080, NewTilePool())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tile, sup := g.Request(i%g.TilesX(), 0, int64(i))
		if sup != nil {
			sup.Unref()
		}
		tile.BeginRaster()
		tile.FinishRaster()
		if old, _ := g.Promote(tile); old != nil {
			old.Unref()
		}
	}
}
