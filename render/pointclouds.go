package render

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gantry3d/gantry"
	"github.com/gantry3d/gantry/core"
	"github.com/gantry3d/gantry/msg"
)

// pointCloudFamily keeps one renderable per topic. With a decay time set,
// past clouds stay on screen until their stamp falls out of the window.
type pointCloudFamily struct {
	renderer *Renderer
	reg      *registry
	options  map[string]PointCloudOptions
}

func newPointCloudFamily(r *Renderer) *pointCloudFamily {
	return &pointCloudFamily{
		renderer: r,
		reg:      newRegistry(),
		options:  make(map[string]PointCloudOptions),
	}
}

func (f *pointCloudFamily) optionsFor(topic string) PointCloudOptions {
	if o, ok := f.options[topic]; ok {
		return o
	}
	return DefaultPointCloudOptions()
}

// setOptions stores per-topic settings and recolors the live cloud from its
// retained message.
func (f *pointCloudFamily) setOptions(topic string, o PointCloudOptions) {
	f.options[topic] = o
	if r, ok := f.reg.get(Key{Topic: topic}); ok {
		r.(*cloudRenderable).applyOptions(o)
	}
}

func (f *pointCloudFamily) handleMessage(topic string, pc *msg.PointCloud2) {
	reader, err := msg.NewCloudReader(pc)
	if err != nil {
		gantry.Log().Warnf("point cloud on %s: %v", topic, err)
		return
	}

	key := Key{Topic: topic}
	var cr *cloudRenderable
	if existing, ok := f.reg.get(key); ok {
		cr = existing.(*cloudRenderable)
	} else {
		cr = &cloudRenderable{
			renderer: f.renderer,
			key:      key,
			pickID:   f.renderer.allocPickID(key),
			opts:     f.optionsFor(topic),
		}
		f.reg.put(cr)
	}
	cr.update(pc, reader)
}

func (f *pointCloudFamily) startFrame(now int64) {
	f.reg.each(func(r Renderable) { r.StartFrame(now) })
}

func (f *pointCloudFamily) appendDrawItems(items []DrawItem) []DrawItem {
	f.reg.each(func(r Renderable) {
		cr := r.(*cloudRenderable)
		if cr.visible {
			items = cr.AppendDrawItems(items)
		}
	})
	return items
}

func (f *pointCloudFamily) removeTopic(topic string) int {
	return f.reg.removeIf(func(k Key) bool { return k.Topic == topic })
}

func (f *pointCloudFamily) dispose() {
	f.reg.clear()
}

// cloudEntry is one decoded cloud. Without decay there is exactly one; with
// decay the slice holds the retained history, newest last.
type cloudEntry struct {
	stamp       int64
	frameID     string
	verts       []ColorVertex
	localBounds core.AABB
	transparent bool

	resolved  bool
	transform mgl32.Mat4
	bounds    core.AABB
}

type cloudRenderable struct {
	renderer *Renderer
	key      Key
	pickID   uint32
	opts     PointCloudOptions

	// lastMsg is retained so an options change can recolor without a new
	// message.
	lastMsg *msg.PointCloud2

	entries  []cloudEntry
	visible  bool
	disposed bool
}

func (cr *cloudRenderable) Key() Key       { return cr.key }
func (cr *cloudRenderable) PickID() uint32 { return cr.pickID }

func (cr *cloudRenderable) update(pc *msg.PointCloud2, reader *msg.CloudReader) {
	cr.lastMsg = pc

	entry := cloudEntry{
		stamp:   pc.Header.Stamp,
		frameID: pc.Header.FrameID,
	}
	if cr.opts.DecayTime <= 0 && len(cr.entries) == 1 {
		// Reuse the previous vertex buffer so steady-state updates do not
		// reallocate.
		entry.verts = cr.entries[0].verts[:0]
	}
	entry.verts, entry.localBounds, entry.transparent = buildCloudVertices(entry.verts, reader, cr.opts)

	if cr.opts.DecayTime > 0 {
		cr.entries = append(cr.entries, entry)
	} else {
		cr.entries = cr.entries[:0]
		cr.entries = append(cr.entries, entry)
	}
}

func (cr *cloudRenderable) applyOptions(o PointCloudOptions) {
	cr.opts = o
	if cr.lastMsg == nil {
		return
	}
	reader, err := msg.NewCloudReader(cr.lastMsg)
	if err != nil {
		return
	}
	// Recoloring drops the decay history; only the latest cloud can be
	// rebuilt from the retained message.
	cr.entries = cr.entries[:0]
	cr.update(cr.lastMsg, reader)
}

func (cr *cloudRenderable) StartFrame(now int64) bool {
	if cr.opts.DecayTime > 0 {
		cutoff := now - cr.opts.DecayTime
		kept := cr.entries[:0]
		for _, e := range cr.entries {
			if e.stamp >= cutoff {
				kept = append(kept, e)
			}
		}
		cr.entries = kept
	}

	cr.visible = false
	for i := range cr.entries {
		e := &cr.entries[i]
		resolved, ok := cr.renderer.poseInRenderFrame(e.frameID, e.stamp, now, core.IdentityPose())
		e.resolved = ok
		if !ok {
			continue
		}
		e.transform = resolved.Mat4()
		e.bounds = core.TransformAABB(e.localBounds, e.transform)
		cr.visible = true
	}
	return cr.visible
}

func (cr *cloudRenderable) AppendDrawItems(items []DrawItem) []DrawItem {
	for i := range cr.entries {
		e := &cr.entries[i]
		if !e.resolved || len(e.verts) == 0 {
			continue
		}
		material := MaterialOpaque
		if e.transparent {
			material = MaterialTransparent
		}
		items = append(items, DrawItem{
			Key:       cr.key,
			PickID:    cr.pickID,
			Material:  material,
			Transform: e.transform,
			Geometry: Geometry{
				Kind:      GeomPoints,
				Points:    e.verts,
				PointSize: cr.opts.PointSize,
			},
			Bounds:      e.bounds,
			BoundsValid: true,
		})
	}
	return items
}

func (cr *cloudRenderable) Dispose() {
	if cr.disposed {
		return
	}
	cr.disposed = true
	cr.renderer.releasePickID(cr.pickID)
}

// buildCloudVertices colors every point of the cloud into dst. Packed point
// colors win over intensity mapping unless the options force a flat color.
func buildCloudVertices(dst []ColorVertex, reader *msg.CloudReader, opts PointCloudOptions) ([]ColorVertex, core.AABB, bool) {
	count := reader.Count()
	bounds := emptyBounds()
	transparent := false

	flat := opts.Colormap == core.ColormapFlat || (!reader.HasColor() && !reader.HasIntensity())
	var table *core.ColormapTable
	var minI, maxI, span float32
	usePacked := false
	switch {
	case flat:
		table = core.NewColormapTable(core.ColormapFlat, 1, opts.FlatColor.Vec4())
		transparent = opts.FlatColor.A < 1
	case reader.HasColor():
		usePacked = true
	default:
		table = core.NewColormapTable(opts.Colormap, core.DefaultColormapSize, opts.FlatColor.Vec4())
		minI, maxI = reader.IntensityBounds()
		span = maxI - minI
	}

	for i := 0; i < count; i++ {
		pos := reader.Vec3At(i)
		var color mgl32.Vec4
		switch {
		case usePacked:
			c := reader.ColorAt(i)
			color = core.SRGBAToLinear(c)
			if c.W() < 1 {
				transparent = true
			}
		case flat:
			color = table.At(0)
		default:
			frac := float32(0.5)
			if span > 0 {
				frac = (reader.IntensityAt(i) - minI) / span
			}
			color = table.At(frac)
		}
		dst = append(dst, ColorVertex{Position: pos, Color: color})
		bounds = growBounds(bounds, pos)
	}
	return dst, bounds, transparent
}
