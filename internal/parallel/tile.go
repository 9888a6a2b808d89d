// Package parallel provides the raster-side infrastructure of the compositor.
//
// Each compositing layer is divided into 64x64 pixel tiles that are rasterized
// independently on a worker pool. Key pieces:
//
//   - Tile: a reference-counted pixel buffer with an atomic lifecycle state
//   - TileGrid: the per-layer grid of ready and in-flight tiles
//   - TilePool: pixel-buffer reuse via sync.Pool
//   - DirtyRegion: lock-free bitmap of tiles that need rasterizing
//   - WorkerPool: work-stealing goroutine pool with pending-task accounting
//
// Thread safety: TileGrid is owned by a single goroutine. Tile reference
// counts and state transitions are atomic and may be touched from workers.
package parallel

import (
	"fmt"
	"image"
	"sync/atomic"
)

// Tile size constants.
const (
	// TileWidth is the width of a tile in pixels.
	TileWidth = 64

	// TileHeight is the height of a tile in pixels.
	TileHeight = 64

	// TilePixels is the total number of pixels in a full tile.
	TilePixels = TileWidth * TileHeight

	// TileBytes is the size of a full tile in bytes (RGBA = 4 bytes per pixel).
	TileBytes = TilePixels * 4
)

// TileState is the lifecycle state of a tile.
type TileState int32

const (
	// TileRequested means the tile was handed out by a grid and waits for a worker.
	TileRequested TileState = iota

	// TileRasterizing means a worker is painting into the tile.
	TileRasterizing

	// TileReady means the pixels are complete.
	TileReady

	// TilePendingRelease means the tile was retired and waits for its
	// remaining references to be dropped.
	TilePendingRelease

	// TileFreed means the last reference was dropped and the buffer returned.
	TileFreed
)

var tileStateNames = [...]string{
	TileRequested:      "Requested",
	TileRasterizing:    "Rasterizing",
	TileReady:          "Ready",
	TilePendingRelease: "PendingRelease",
	TileFreed:          "Freed",
}

// String returns the state name.
func (s TileState) String() string {
	if s < 0 || int(s) >= len(tileStateNames) {
		return fmt.Sprintf("TileState(%d)", int32(s))
	}
	return tileStateNames[s]
}

// Tile is one rectangular piece of a layer's rasterized content.
//
// A tile starts in TileRequested with one reference held by the grid that
// created it. Every additional holder (a raster task, the release queue)
// takes its own reference. A tile may only drop to zero references after it
// was retired to TilePendingRelease; anything else is a lifecycle bug and
// panics.
type Tile struct {
	// X is the tile column index (0-based).
	X int

	// Y is the tile row index (0-based).
	Y int

	// Width is the actual width in pixels (may be < TileWidth for edge tiles).
	Width int

	// Height is the actual height in pixels (may be < TileHeight for edge tiles).
	Height int

	// DrawingIndex is the frame that requested this tile.
	DrawingIndex int64

	// Data contains the RGBA pixel data owned by this tile.
	// Length is Width * Height * 4 bytes.
	Data []byte

	grid  *TileGrid
	pool  *TilePool
	refs  atomic.Int32
	state atomic.Int32
}

func newTile(g *TileGrid, pool *TilePool, tx, ty, w, h int, index int64) *Tile {
	t := &Tile{
		X:            tx,
		Y:            ty,
		Width:        w,
		Height:       h,
		DrawingIndex: index,
		Data:         pool.Get(w, h),
		grid:         g,
		pool:         pool,
	}
	t.refs.Store(1)
	t.state.Store(int32(TileRequested))
	return t
}

// State returns the current lifecycle state.
func (t *Tile) State() TileState {
	return TileState(t.state.Load())
}

// Refs returns the current reference count.
func (t *Tile) Refs() int32 {
	return t.refs.Load()
}

// Ref takes an additional reference.
func (t *Tile) Ref() {
	if t.refs.Add(1) <= 1 {
		panic("parallel: Ref on a released tile")
	}
}

// Unref drops a reference. Dropping the last reference frees the tile and
// returns its buffer to the pool.
func (t *Tile) Unref() {
	n := t.refs.Add(-1)
	switch {
	case n < 0:
		panic("parallel: tile released twice")
	case n > 0:
		return
	}
	if !t.state.CompareAndSwap(int32(TilePendingRelease), int32(TileFreed)) {
		panic(fmt.Sprintf("parallel: last reference dropped in state %s", t.State()))
	}
	t.pool.Put(t.Data)
	t.Data = nil
}

// BeginRaster moves a requested tile to TileRasterizing.
// Returns false if the tile was retired before a worker picked it up.
func (t *Tile) BeginRaster() bool {
	return t.state.CompareAndSwap(int32(TileRequested), int32(TileRasterizing))
}

// FinishRaster moves a rasterizing tile to TileReady.
// Returns false if the tile was retired while it was being painted.
func (t *Tile) FinishRaster() bool {
	return t.state.CompareAndSwap(int32(TileRasterizing), int32(TileReady))
}

// Retire moves the tile to TilePendingRelease. It returns false if the tile
// was already retired.
func (t *Tile) Retire() bool {
	for {
		s := TileState(t.state.Load())
		if s >= TilePendingRelease {
			return false
		}
		if t.state.CompareAndSwap(int32(s), int32(TilePendingRelease)) {
			return true
		}
	}
}

// IsSameGrid reports whether the tile was created by g.
func (t *Tile) IsSameGrid(g *TileGrid) bool {
	return t.grid == g
}

// Image returns an *image.RGBA view over the tile's pixels. The view shares
// Data and is only valid until the tile is freed.
func (t *Tile) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    t.Data,
		Stride: t.Stride(),
		Rect:   image.Rect(0, 0, t.Width, t.Height),
	}
}

// Bounds returns the pixel bounds of this tile in layer space.
// Returns (x, y, width, height) where x,y is the top-left corner.
func (t *Tile) Bounds() (x, y, w, h int) {
	return t.X * TileWidth, t.Y * TileHeight, t.Width, t.Height
}

// Rect returns the tile bounds in layer space as an image.Rectangle.
func (t *Tile) Rect() image.Rectangle {
	x, y, w, h := t.Bounds()
	return image.Rect(x, y, x+w, y+h)
}

// Stride returns the row stride in bytes.
func (t *Tile) Stride() int {
	return t.Width * 4
}
