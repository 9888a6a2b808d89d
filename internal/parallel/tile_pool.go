package parallel

import "sync"

// TilePool reuses tile pixel buffers via sync.Pool.
//
// Buffers are pooled per tile size. A buffer returned to the pool is zeroed
// before it is handed out again.
//
// Thread safety: TilePool is safe for concurrent use.
type TilePool struct {
	// pools holds a *sync.Pool per edge-tile size.
	// Key format: (width << 16) | height
	pools sync.Map

	// full is the dedicated pool for 64x64 buffers, the common case.
	full sync.Pool
}

// NewTilePool creates a new buffer pool.
func NewTilePool() *TilePool {
	p := &TilePool{}
	p.full.New = func() any {
		b := make([]byte, TileBytes)
		return &b
	}
	return p
}

// Get returns a zeroed RGBA buffer for a width x height tile.
// Returns nil for non-positive dimensions.
func (p *TilePool) Get(width, height int) []byte {
	if width <= 0 || height <= 0 {
		return nil
	}
	var bp *[]byte
	if width == TileWidth && height == TileHeight {
		bp = p.full.Get().(*[]byte)
	} else {
		bp = p.sized(width, height).Get().(*[]byte)
	}
	b := *bp
	clear(b)
	return b
}

// Put returns a buffer to the pool. Buffers whose size matches no tile
// shape are left to the GC.
func (p *TilePool) Put(b []byte) {
	if len(b) == 0 {
		return
	}
	if len(b) == TileBytes {
		p.full.Put(&b)
		return
	}
	// Edge buffers are only recognized by a pool created from Get.
	p.pools.Range(func(_, v any) bool {
		sp := v.(*sizedPool)
		if sp.bytes == len(b) {
			sp.Put(&b)
			return false
		}
		return true
	})
}

type sizedPool struct {
	sync.Pool
	bytes int
}

func (p *TilePool) sized(width, height int) *sizedPool {
	key := poolKey(width, height)
	if sp, ok := p.pools.Load(key); ok {
		return sp.(*sizedPool)
	}
	n := width * height * 4
	sp := &sizedPool{bytes: n}
	sp.New = func() any {
		b := make([]byte, n)
		return &b
	}
	actual, _ := p.pools.LoadOrStore(key, sp)
	return actual.(*sizedPool)
}

// poolKey creates a unique key for a tile size.
// Width and height are clamped to 16-bit values to prevent overflow.
func poolKey(width, height int) uint32 {
	w := min(width, 0xFFFF)
	h := min(height, 0xFFFF)
	return uint32(w)<<16 | uint32(h) //nolint:gosec // values are clamped above
}

// defaultPool backs grids created without an explicit pool.
var defaultPool = NewTilePool()
