package render

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gantry3d/gantry/core"
)

// frameAxesTopic is the pseudo-topic frame axis renderables live under, so
// they share the registry key space with message-driven families.
const frameAxesTopic = "_frame_axes"

// axesFamily keeps one triad renderable per frame known to the transform
// tree, synced at the start of every frame.
type axesFamily struct {
	renderer *Renderer
	reg      *registry
	opts     AxesOptions
}

func newAxesFamily(r *Renderer) *axesFamily {
	return &axesFamily{
		renderer: r,
		reg:      newRegistry(),
		opts:     DefaultAxesOptions(),
	}
}

func (f *axesFamily) setOptions(o AxesOptions) {
	if o.Scale <= 0 {
		o.Scale = DefaultAxesOptions().Scale
	}
	f.opts = o
	f.reg.each(func(r Renderable) {
		r.(*axesRenderable).rebuild(o)
	})
}

// syncFrames reconciles the renderable set against the tree's frame list.
func (f *axesFamily) syncFrames(frames []string) {
	if !f.opts.Enabled {
		if f.reg.len() > 0 {
			f.reg.clear()
		}
		return
	}
	known := make(map[string]bool, len(frames))
	for _, id := range frames {
		known[id] = true
		key := Key{Topic: frameAxesTopic, Namespace: id}
		if _, ok := f.reg.get(key); ok {
			continue
		}
		ar := &axesRenderable{
			renderer: f.renderer,
			key:      key,
			frameID:  id,
			pickID:   f.renderer.allocPickID(key),
		}
		ar.rebuild(f.opts)
		f.reg.put(ar)
	}
	f.reg.removeIf(func(k Key) bool { return !known[k.Namespace] })
}

func (f *axesFamily) startFrame(now int64) {
	f.reg.each(func(r Renderable) { r.StartFrame(now) })
}

func (f *axesFamily) appendDrawItems(items []DrawItem) []DrawItem {
	f.reg.each(func(r Renderable) {
		ar := r.(*axesRenderable)
		if ar.visible {
			items = ar.AppendDrawItems(items)
		}
	})
	return items
}

func (f *axesFamily) dispose() {
	f.reg.clear()
}

// axesRenderable draws the red/green/blue arrow triad of one frame, with an
// optional name label at the origin.
type axesRenderable struct {
	renderer *Renderer
	key      Key
	frameID  string
	pickID   uint32

	geometry    Geometry
	localBounds core.AABB
	showLabel   bool

	visible   bool
	transform mgl32.Mat4
	bounds    core.AABB
	disposed  bool
}

func (ar *axesRenderable) Key() Key       { return ar.key }
func (ar *axesRenderable) PickID() uint32 { return ar.pickID }

func (ar *axesRenderable) rebuild(opts AxesOptions) {
	s := float32(opts.Scale)
	w := s * 0.05

	scale := mgl32.Scale3D(s, w, w)
	ar.geometry = Geometry{
		Kind: GeomShapes,
		Instances: []Instance{
			{Shape: ShapeArrow, Model: scale, Color: mgl32.Vec4{1, 0, 0, 1}},
			{Shape: ShapeArrow, Model: mgl32.HomogRotate3DZ(mgl32.DegToRad(90)).Mul4(scale), Color: mgl32.Vec4{0, 1, 0, 1}},
			{Shape: ShapeArrow, Model: mgl32.HomogRotate3DY(mgl32.DegToRad(-90)).Mul4(scale), Color: mgl32.Vec4{0, 0, 1, 1}},
		},
	}
	ar.localBounds = core.AABB{{-w, -w, -w}, {s, s, s}}
	ar.showLabel = opts.Labels
}

func (ar *axesRenderable) StartFrame(now int64) bool {
	resolved, ok := ar.renderer.poseInRenderFrame(ar.frameID, now, now, core.IdentityPose())
	if !ok {
		ar.visible = false
		return false
	}
	ar.visible = true
	ar.transform = resolved.Mat4()
	ar.bounds = core.TransformAABB(ar.localBounds, ar.transform)

	if ar.showLabel {
		t := resolved.Translation
		ar.renderer.labels.place("frame:"+ar.frameID, ar.frameID,
			[4]float32{1, 1, 1, 1},
			mgl32.Vec3{float32(t.X()), float32(t.Y()), float32(t.Z())}, 1)
	}
	return true
}

func (ar *axesRenderable) AppendDrawItems(items []DrawItem) []DrawItem {
	return append(items, DrawItem{
		Key:         ar.key,
		PickID:      ar.pickID,
		Material:    MaterialOpaque,
		Transform:   ar.transform,
		Geometry:    ar.geometry,
		Bounds:      ar.bounds,
		BoundsValid: true,
	})
}

func (ar *axesRenderable) Dispose() {
	if ar.disposed {
		return
	}
	ar.disposed = true
	ar.renderer.releasePickID(ar.pickID)
	ar.renderer.labels.remove("frame:" + ar.frameID)
}
