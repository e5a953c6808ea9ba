package render

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gantry3d/gantry/core"
)

// FramePacket is everything the backend needs to draw one frame. The item
// slice is already culled and sorted; the backend draws it in order.
type FramePacket struct {
	Time int64

	View       mgl32.Mat4
	Projection mgl32.Mat4
	ClearColor mgl32.Vec4

	Width  int
	Height int

	Items []DrawItem

	// Text carries the screen-space label quads for this frame, built
	// against Atlas. Atlas is nil when no labels are visible.
	Text  []core.TextVertex
	Atlas *core.GlyphAtlas
}

// PickQuery describes a single-pixel identity read. Projection is already
// restricted to the queried pixel, so the backend renders into a 1x1 target
// with no further viewport math.
type PickQuery struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
}

// Backend is the GPU seam. The renderer drives it single-threaded from the
// frame loop; implementations own every GPU resource behind it.
type Backend interface {
	// Render draws one frame. Failures are returned, not fatal; the
	// renderer logs and carries on.
	Render(packet *FramePacket) error

	// Pick renders the given items into a 1x1 identity target and returns
	// the RGBA bytes of that pixel.
	Pick(query PickQuery, items []DrawItem) ([4]byte, error)

	// Resize reconfigures every size-dependent target.
	Resize(width, height int)

	// Release frees all GPU resources. Called exactly once, on dispose.
	Release()
}
