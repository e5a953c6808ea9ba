package render

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gantry3d/gantry"
	"github.com/gantry3d/gantry/core"
	"github.com/gantry3d/gantry/msg"
)

// gridFamily keeps one renderable per topic. Grids render as a single
// palettized texture on a quad in the grid's frame.
type gridFamily struct {
	renderer *Renderer
	reg      *registry
	options  map[string]GridOptions
}

func newGridFamily(r *Renderer) *gridFamily {
	return &gridFamily{
		renderer: r,
		reg:      newRegistry(),
		options:  make(map[string]GridOptions),
	}
}

func (f *gridFamily) optionsFor(topic string) GridOptions {
	if o, ok := f.options[topic]; ok {
		return o
	}
	return DefaultGridOptions()
}

func (f *gridFamily) setOptions(topic string, o GridOptions) {
	f.options[topic] = o
	if r, ok := f.reg.get(Key{Topic: topic}); ok {
		r.(*gridRenderable).applyOptions(o)
	}
}

func (f *gridFamily) handleMessage(topic string, g *msg.OccupancyGrid) {
	if err := g.Validate(); err != nil {
		gantry.Log().Warnf("occupancy grid on %s: %v", topic, err)
		return
	}

	key := Key{Topic: topic}
	var gr *gridRenderable
	if existing, ok := f.reg.get(key); ok {
		gr = existing.(*gridRenderable)
	} else {
		gr = &gridRenderable{
			renderer: f.renderer,
			key:      key,
			pickID:   f.renderer.allocPickID(key),
			opts:     f.optionsFor(topic),
		}
		f.reg.put(gr)
	}
	gr.update(g)
}

func (f *gridFamily) startFrame(now int64) {
	f.reg.each(func(r Renderable) { r.StartFrame(now) })
}

func (f *gridFamily) appendDrawItems(items []DrawItem) []DrawItem {
	f.reg.each(func(r Renderable) {
		gr := r.(*gridRenderable)
		if gr.visible {
			items = gr.AppendDrawItems(items)
		}
	})
	return items
}

func (f *gridFamily) removeTopic(topic string) int {
	return f.reg.removeIf(func(k Key) bool { return k.Topic == topic })
}

func (f *gridFamily) dispose() {
	f.reg.clear()
}

type gridRenderable struct {
	renderer *Renderer
	key      Key
	pickID   uint32
	opts     GridOptions
	lastMsg  *msg.OccupancyGrid

	frameID string
	stamp   int64

	// model maps the unit quad into the grid's message frame: origin pose
	// then cell-size scaling.
	model       mgl32.Mat4
	texture     *TextureData
	localBounds core.AABB
	transparent bool

	visible   bool
	transform mgl32.Mat4
	bounds    core.AABB
	disposed  bool
}

func (gr *gridRenderable) Key() Key       { return gr.key }
func (gr *gridRenderable) PickID() uint32 { return gr.pickID }

func (gr *gridRenderable) update(g *msg.OccupancyGrid) {
	gr.lastMsg = g
	gr.frameID = g.Header.FrameID
	gr.stamp = g.Header.Stamp

	palette := core.BuildGridPalette(gr.opts.Palette)
	w, h := int(g.Width), int(g.Height)

	var pixels []byte
	if gr.texture != nil && cap(gr.texture.Pixels) >= w*h*4 {
		pixels = gr.texture.Pixels[:0]
	}
	transparent := false
	for _, cell := range g.Data {
		entry := palette[uint8(cell)]
		if entry[3] < 255 {
			transparent = true
		}
		pixels = append(pixels, entry[0], entry[1], entry[2], entry[3])
	}
	gr.texture = &TextureData{Width: w, Height: h, Pixels: pixels}
	gr.transparent = transparent

	worldW := float32(g.Resolution) * float32(w)
	worldH := float32(g.Resolution) * float32(h)
	origin := g.Origin.CorePose()
	gr.model = origin.Mat4().Mul4(mgl32.Scale3D(worldW, worldH, 1))
	gr.localBounds = core.TransformAABB(core.AABB{{0, 0, 0}, {worldW, worldH, 0}}, origin.Mat4())
}

func (gr *gridRenderable) applyOptions(o GridOptions) {
	gr.opts = o
	if gr.lastMsg != nil {
		gr.update(gr.lastMsg)
	}
}

func (gr *gridRenderable) StartFrame(now int64) bool {
	srcTime := gr.stamp
	if gr.opts.FrameLocked {
		srcTime = now
	}
	resolved, ok := gr.renderer.poseInRenderFrame(gr.frameID, srcTime, now, core.IdentityPose())
	if !ok {
		gr.visible = false
		return false
	}
	gr.visible = true
	frameMat := resolved.Mat4()
	gr.transform = frameMat.Mul4(gr.model)
	gr.bounds = core.TransformAABB(gr.localBounds, frameMat)
	return true
}

func (gr *gridRenderable) AppendDrawItems(items []DrawItem) []DrawItem {
	if gr.texture == nil || len(gr.texture.Pixels) == 0 {
		return items
	}
	material := MaterialOpaque
	if gr.transparent {
		material = MaterialTransparent
	}
	return append(items, DrawItem{
		Key:       gr.key,
		PickID:    gr.pickID,
		Material:  material,
		Transform: gr.transform,
		Geometry: Geometry{
			Kind:    GeomTexturedQuad,
			Texture: gr.texture,
		},
		Bounds:      gr.bounds,
		BoundsValid: true,
	})
}

func (gr *gridRenderable) Dispose() {
	if gr.disposed {
		return
	}
	gr.disposed = true
	gr.renderer.releasePickID(gr.pickID)
}
