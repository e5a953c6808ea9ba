package render

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gantry3d/gantry"
	"github.com/gantry3d/gantry/core"
)

// PickResult identifies the renderable under a pixel. Hit is false for
// background, offscreen queries, or any pick-path failure.
type PickResult struct {
	Key    Key
	PickID uint32
	Hit    bool
}

// EncodePickColor turns a pick id into the RGBA identity color written by
// the pick pass. Id zero is reserved for the background.
func EncodePickColor(id uint32) [4]byte {
	return [4]byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
}

// DecodePickColor is the inverse of EncodePickColor.
func DecodePickColor(b [4]byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Picker renders the last frame's visible set into a single identity pixel.
// It never re-culls: whatever survived the last frame is what can be picked.
type Picker struct {
	backend Backend
}

func newPicker(b Backend) *Picker {
	return &Picker{backend: b}
}

// pick runs one query. The visible slice is the last frame's culled item
// list; a nil slice means no frame has been rendered yet and nothing can be
// hit.
func (p *Picker) pick(x, y float64, width, height int, view, proj mgl32.Mat4, visible []DrawItem, resolve func(uint32) (Key, bool), predicate func(Key) bool) PickResult {
	if x < 0 || y < 0 || int(x) >= width || int(y) >= height {
		return PickResult{}
	}
	if visible == nil {
		return PickResult{}
	}

	candidates := make([]DrawItem, 0, len(visible))
	for _, item := range visible {
		if item.PickID == 0 {
			continue
		}
		if item.Material == MaterialHoverOutline || item.Material == MaterialSelectionOutline {
			continue
		}
		if item.Geometry.Empty() {
			continue
		}
		if predicate != nil && !predicate(item.Key) {
			continue
		}
		candidates = append(candidates, item)
	}
	if len(candidates) == 0 {
		return PickResult{}
	}

	query := PickQuery{
		View:       view,
		Projection: core.PickProjection(proj, x, y, width, height),
	}
	pixel, err := p.backend.Pick(query, candidates)
	if err != nil {
		gantry.Log().Warnf("pick at (%.0f, %.0f) failed: %v", x, y, err)
		return PickResult{}
	}

	id := DecodePickColor(pixel)
	if id == 0 {
		return PickResult{}
	}
	key, ok := resolve(id)
	if !ok {
		// The backend returned an id that no longer maps to a renderable.
		// Treat it as background rather than surfacing a stale hit.
		return PickResult{}
	}
	return PickResult{Key: key, PickID: id, Hit: true}
}
