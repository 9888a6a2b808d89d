package compositor

import (
	"testing"

	"github.com/gogpu/compositor/geom"
)

func TestLayer_ReleasedIgnoresMutations(t *testing.T) {
	h, _, _ := newTestHost(t)

	l := h.NewLayer()
	l.Release()
	before := h.PendingActions()

	l.SetOpacity(0.5)
	l.SetPosition(geom.Pt(1, 1))
	l.SetNeedsDisplay()
	l.Release()

	if got := h.PendingActions(); got != before {
		t.Errorf("PendingActions() = %d, want %d", got, before)
	}
	if !l.Released() {
		t.Error("Released() = false")
	}
}

func TestLayer_ReleaseBeforeCommit(t *testing.T) {
	h, _, _ := newTestHost(t)

	l := h.NewLayer()
	l.Release()
	h.SetRoot(l)

	if h.Root() != nil {
		t.Error("released layer became the root")
	}
	if h.NodeByID(l.ID()) != nil {
		t.Error("released layer still committed")
	}
}

func TestLayer_TreeMutations(t *testing.T) {
	h, _, _ := newTestHost(t)

	root := h.NewLayer()
	a, b, c := h.NewLayer(), h.NewLayer(), h.NewLayer()
	root.AddChild(a)
	root.AddChild(b)
	root.InsertChild(c, 0)
	h.SetRoot(root)

	ids := func() []int {
		var out []int
		for _, n := range h.Root().Children() {
			out = append(out, n.ID())
		}
		return out
	}
	if got := ids(); len(got) != 3 || got[0] != c.ID() || got[1] != a.ID() || got[2] != b.ID() {
		t.Errorf("children = %v, want [%d %d %d]", got, c.ID(), a.ID(), b.ID())
	}

	a.RemoveFromParent()
	h.Commit(true)
	if got := ids(); len(got) != 2 {
		t.Errorf("children after RemoveFromParent = %v, want 2", got)
	}

	root.RemoveAllChildren()
	h.Commit(true)
	if got := ids(); len(got) != 0 {
		t.Errorf("children after RemoveAllChildren = %v, want none", got)
	}
	if h.NodeByID(b.ID()) == nil {
		t.Error("detached layer was destroyed")
	}
}

func TestLayer_PropertySetters(t *testing.T) {
	h, _, _ := newTestHost(t)

	l := h.NewLayer()
	l.SetBounds(geom.Sz(10, 20))
	l.SetTransformOrigin(geom.Pt3(5, 10, 0))
	l.SetTransform(geom.Scaling(2, 2, 1))
	l.SetScrollOffset(geom.Pt(3, 4))
	l.SetMasksToBounds(true)
	l.SetOpaque(true)
	l.SetDrawsContent(true)
	l.SetShouldFlattenTransform(false)
	h.Commit(true)

	n := h.NodeByID(l.ID())
	switch {
	case n.Bounds() != geom.Sz(10, 20):
		t.Errorf("Bounds() = %v", n.Bounds())
	case n.TransformOrigin() != geom.Pt3(5, 10, 0):
		t.Errorf("TransformOrigin() = %v", n.TransformOrigin())
	case n.Transform() != geom.Scaling(2, 2, 1):
		t.Errorf("Transform() = %v", n.Transform())
	case n.ScrollOffset() != geom.Pt(3, 4):
		t.Errorf("ScrollOffset() = %v", n.ScrollOffset())
	case !n.MasksToBounds() || !n.Opaque() || !n.DrawsContent():
		t.Error("boolean properties not applied")
	case n.ShouldFlattenTransform():
		t.Error("ShouldFlattenTransform() = true, want false")
	}
}

func TestLayer_InsertForeignChildPanics(t *testing.T) {
	h1, _, _ := newTestHost(t)
	h2, _, _ := newTestHost(t)

	parent := h1.NewLayer()
	child := h2.NewLayer()
	expectPanic(t, "InsertChild with a foreign child", func() { parent.AddChild(child) })
	expectPanic(t, "InsertChild with nil", func() { parent.AddChild(nil) })
}

func TestLayer_NewLayerAfterClose(t *testing.T) {
	h := New(nil, WithWorkers(1))
	h.Close()

	l := h.NewLayer()
	if !l.Released() {
		t.Error("layer created on a closed host is live")
	}
	if h.LiveLayers() != 0 || h.PendingActions() != 0 {
		t.Errorf("live = %d, pending = %d, want 0 and 0", h.LiveLayers(), h.PendingActions())
	}
	l.SetOpacity(0.5)
	if h.PendingActions() != 0 {
		t.Error("mutation recorded on a closed host")
	}
}

func TestLayer_LayerByID(t *testing.T) {
	h, _, _ := newTestHost(t)

	l := h.NewLayer()
	got, ok := h.LayerByID(l.ID())
	if !ok || got != l {
		t.Errorf("LayerByID(%d) = %v, %v, want the handle", l.ID(), got, ok)
	}
	if h.LiveLayers() != 1 {
		t.Errorf("LiveLayers() = %d, want 1", h.LiveLayers())
	}
}
