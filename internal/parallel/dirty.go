package parallel

import (
	"image"
	"math/bits"
	"sync/atomic"
)

// DirtyRegion tracks which tiles of a layer need rasterizing using an atomic
// bitmap. One bit per tile, packed into uint64 words (64 tiles per word).
// All methods are safe for concurrent use without external synchronization.
type DirtyRegion struct {
	// Bit index = ty * tilesX + tx.
	words []atomic.Uint64

	tilesX int
	tilesY int
}

// NewDirtyRegion creates a dirty region for a grid of tilesX by tilesY tiles.
// All tiles start clean. Non-positive dimensions yield an empty region that
// ignores every mark.
func NewDirtyRegion(tilesX, tilesY int) *DirtyRegion {
	if tilesX <= 0 || tilesY <= 0 {
		return &DirtyRegion{}
	}
	total := tilesX * tilesY
	return &DirtyRegion{
		words:  make([]atomic.Uint64, (total+63)/64),
		tilesX: tilesX,
		tilesY: tilesY,
	}
}

// NewDirtyRegionForSize creates a dirty region covering a layer of the given
// pixel size.
func NewDirtyRegionForSize(width, height int) *DirtyRegion {
	return NewDirtyRegion(tilesFor(width, TileWidth), tilesFor(height, TileHeight))
}

// Mark marks a single tile as dirty. Out-of-bounds coordinates are ignored.
func (d *DirtyRegion) Mark(tx, ty int) {
	if tx < 0 || tx >= d.tilesX || ty < 0 || ty >= d.tilesY {
		return
	}
	idx := ty*d.tilesX + tx
	d.words[idx/64].Or(1 << (idx & 63))
}

// MarkRect marks every tile intersecting the pixel rectangle r.
func (d *DirtyRegion) MarkRect(r image.Rectangle) {
	if r.Empty() {
		return
	}
	tx1 := max(r.Min.X/TileWidth, 0)
	ty1 := max(r.Min.Y/TileHeight, 0)
	tx2 := min((r.Max.X-1)/TileWidth, d.tilesX-1)
	ty2 := min((r.Max.Y-1)/TileHeight, d.tilesY-1)

	for ty := ty1; ty <= ty2; ty++ {
		for tx := tx1; tx <= tx2; tx++ {
			d.Mark(tx, ty)
		}
	}
}

// MarkAll marks all tiles as dirty.
func (d *DirtyRegion) MarkAll() {
	total := d.tilesX * d.tilesY
	full := total / 64
	for i := 0; i < full; i++ {
		d.words[i].Store(^uint64(0))
	}
	if rem := total % 64; rem > 0 {
		d.words[full].Store((uint64(1) << rem) - 1)
	}
}

// Clear marks all tiles clean.
func (d *DirtyRegion) Clear() {
	for i := range d.words {
		d.words[i].Store(0)
	}
}

// IsDirty reports whether the tile at (tx, ty) is dirty.
func (d *DirtyRegion) IsDirty(tx, ty int) bool {
	if tx < 0 || tx >= d.tilesX || ty < 0 || ty >= d.tilesY {
		return false
	}
	idx := ty*d.tilesX + tx
	return d.words[idx/64].Load()&(1<<(idx&63)) != 0
}

// IsEmpty reports whether no tile is dirty.
func (d *DirtyRegion) IsEmpty() bool {
	for i := range d.words {
		if d.words[i].Load() != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of dirty tiles.
func (d *DirtyRegion) Count() int {
	n := 0
	for i := range d.words {
		n += bits.OnesCount64(d.words[i].Load())
	}
	return n
}

// GetAndClear atomically takes every dirty tile coordinate in row-major
// order and clears the bitmap.
func (d *DirtyRegion) GetAndClear() []image.Point {
	var dirty []image.Point
	total := d.tilesX * d.tilesY

	for wi := range d.words {
		word := d.words[wi].Swap(0)
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			idx := wi*64 + bit
			if idx >= total {
				break
			}
			dirty = append(dirty, image.Pt(idx%d.tilesX, idx/d.tilesX))
			word &^= 1 << bit
		}
	}
	return dirty
}

// TilesX returns the number of tiles horizontally.
func (d *DirtyRegion) TilesX() int { return d.tilesX }

// TilesY returns the number of tiles vertically.
func (d *DirtyRegion) TilesY() int { return d.tilesY }

func tilesFor(pixels, tile int) int {
	if pixels <= 0 {
		return 0
	}
	return (pixels + tile - 1) / tile
}
