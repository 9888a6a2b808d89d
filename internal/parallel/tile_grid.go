package parallel

// TileGrid holds the tiles of one compositing layer.
//
// The grid divides the layer's bounds into 64x64 pixel tiles. Edge tiles may
// have smaller dimensions. Each slot has at most one ready tile (the pixels
// currently composited) and at most one pending tile (requested for a newer
// frame and not yet promoted). Slots are stored in flat slices indexed by
// ty*tilesX + tx.
//
// The grid holds one reference to every tile in its slots. Operations that
// evict a tile retire it and hand that reference to the caller, which is
// expected to queue it for release.
//
// Thread safety: TileGrid is NOT thread-safe and belongs to the owning
// goroutine. Workers only touch the tiles they were given.
type TileGrid struct {
	ready   []*Tile
	pending []*Tile

	tilesX int
	tilesY int
	width  int
	height int

	pool   *TilePool
	closed bool
}

// NewTileGrid creates an empty tile grid covering width x height pixels.
// Tiles are allocated lazily by Request. A nil pool uses the default pool.
func NewTileGrid(width, height int, pool *TilePool) *TileGrid {
	if pool == nil {
		pool = defaultPool
	}
	g := &TileGrid{pool: pool}
	g.setSize(width, height)
	return g
}

func (g *TileGrid) setSize(width, height int) {
	if width <= 0 || height <= 0 {
		width, height = 0, 0
	}
	g.width = width
	g.height = height
	g.tilesX = tilesFor(width, TileWidth)
	g.tilesY = tilesFor(height, TileHeight)
	g.ready = make([]*Tile, g.tilesX*g.tilesY)
	g.pending = make([]*Tile, g.tilesX*g.tilesY)
}

func (g *TileGrid) index(tx, ty int) int {
	if tx < 0 || tx >= g.tilesX || ty < 0 || ty >= g.tilesY {
		return -1
	}
	return ty*g.tilesX + tx
}

// tileSize returns the actual dimensions of the tile at (tx, ty).
func (g *TileGrid) tileSize(tx, ty int) (w, h int) {
	w = min(TileWidth, g.width-tx*TileWidth)
	h = min(TileHeight, g.height-ty*TileHeight)
	return w, h
}

// Request allocates a fresh tile for (tx, ty) stamped with the drawing index.
// The returned tile carries the grid's reference; callers that keep it take
// their own with Ref. If the slot already had a pending tile, that tile is
// retired and returned as superseded, carrying the grid's former reference.
// Request returns a nil tile for out-of-range coordinates or a closed grid.
func (g *TileGrid) Request(tx, ty int, drawingIndex int64) (tile, superseded *Tile) {
	i := g.index(tx, ty)
	if i < 0 || g.closed {
		return nil, nil
	}
	if old := g.pending[i]; old != nil {
		old.Retire()
		superseded = old
	}
	w, h := g.tileSize(tx, ty)
	tile = newTile(g, g.pool, tx, ty, w, h, drawingIndex)
	g.pending[i] = tile
	return tile, superseded
}

// Promote swaps a ready tile into its slot. It succeeds only if t is still
// the slot's pending tile and finished rasterizing. The previously ready
// tile, if any, is retired and returned carrying the grid's reference.
func (g *TileGrid) Promote(t *Tile) (old *Tile, ok bool) {
	if t == nil || !t.IsSameGrid(g) || g.closed {
		return nil, false
	}
	i := g.index(t.X, t.Y)
	if i < 0 || g.pending[i] != t || t.State() != TileReady {
		return nil, false
	}
	old = g.ready[i]
	if old != nil {
		old.Retire()
	}
	g.ready[i] = t
	g.pending[i] = nil
	return old, true
}

// Resize changes the covered pixel size. Every tile in the grid is retired
// and returned; the grid starts over empty. Unchanged sizes are a no-op.
func (g *TileGrid) Resize(width, height int) []*Tile {
	if width == g.width && height == g.height {
		return nil
	}
	evicted := g.evictAll()
	g.setSize(width, height)
	return evicted
}

// Close retires every tile and returns them. Subsequent requests fail.
func (g *TileGrid) Close() []*Tile {
	g.closed = true
	return g.evictAll()
}

func (g *TileGrid) evictAll() []*Tile {
	var out []*Tile
	for _, slots := range [][]*Tile{g.pending, g.ready} {
		for i, t := range slots {
			if t == nil {
				continue
			}
			t.Retire()
			out = append(out, t)
			slots[i] = nil
		}
	}
	return out
}

// TileAt returns the ready tile at (tx, ty), or nil.
func (g *TileGrid) TileAt(tx, ty int) *Tile {
	i := g.index(tx, ty)
	if i < 0 {
		return nil
	}
	return g.ready[i]
}

// PendingAt returns the pending tile at (tx, ty), or nil.
func (g *TileGrid) PendingAt(tx, ty int) *Tile {
	i := g.index(tx, ty)
	if i < 0 {
		return nil
	}
	return g.pending[i]
}

// ForEachReady calls fn for each ready tile in row-major order.
func (g *TileGrid) ForEachReady(fn func(*Tile)) {
	for _, t := range g.ready {
		if t != nil {
			fn(t)
		}
	}
}

// ReadyCount returns the number of ready tiles.
func (g *TileGrid) ReadyCount() int {
	n := 0
	for _, t := range g.ready {
		if t != nil {
			n++
		}
	}
	return n
}

// PendingCount returns the number of pending tiles.
func (g *TileGrid) PendingCount() int {
	n := 0
	for _, t := range g.pending {
		if t != nil {
			n++
		}
	}
	return n
}

// TilesX returns the number of tiles horizontally.
func (g *TileGrid) TilesX() int { return g.tilesX }

// TilesY returns the number of tiles vertically.
func (g *TileGrid) TilesY() int { return g.tilesY }

// Width returns the covered width in pixels.
func (g *TileGrid) Width() int { return g.width }

// Height returns the covered height in pixels.
func (g *TileGrid) Height() int { return g.height }

// Closed reports whether Close was called.
func (g *TileGrid) Closed() bool { return g.closed }
