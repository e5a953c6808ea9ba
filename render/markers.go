package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gantry3d/gantry"
	"github.com/gantry3d/gantry/core"
	"github.com/gantry3d/gantry/msg"
)

// markerFamily owns one renderable per (topic, namespace, id). Delete and
// delete-all actions remove entries; expired markers are swept at the start
// of each frame.
type markerFamily struct {
	renderer *Renderer
	reg      *registry

	// meshWarned tracks topics that already logged the unsupported
	// mesh-resource marker so the warning fires once per topic.
	meshWarned map[string]bool
}

func newMarkerFamily(r *Renderer) *markerFamily {
	return &markerFamily{
		renderer:   r,
		reg:        newRegistry(),
		meshWarned: make(map[string]bool),
	}
}

func (f *markerFamily) handleMessage(topic string, m *msg.Marker) {
	switch m.Action {
	case msg.MarkerDelete:
		f.reg.remove(Key{Topic: topic, Namespace: m.Namespace, ID: m.ID})
		return
	case msg.MarkerDeleteAll:
		f.reg.removeIf(func(k Key) bool { return k.Topic == topic })
		return
	case msg.MarkerAdd:
		// Modify shares the Add value.
	default:
		gantry.Log().Warnf("marker %s/%s/%d: unknown action %d, dropping", topic, m.Namespace, m.ID, m.Action)
		return
	}

	if m.Type == msg.MarkerMeshResource {
		if !f.meshWarned[topic] {
			f.meshWarned[topic] = true
			gantry.Log().Warnf("marker topic %s: mesh resource markers are not supported", topic)
		}
		return
	}

	pose := m.Pose.CorePose()
	if !pose.Finite() {
		gantry.Log().Warnf("marker %s/%s/%d: non-finite pose, dropping", topic, m.Namespace, m.ID)
		return
	}

	key := Key{Topic: topic, Namespace: m.Namespace, ID: m.ID}
	existing, ok := f.reg.get(key)
	var mr *markerRenderable
	if ok {
		mr = existing.(*markerRenderable)
	} else {
		mr = &markerRenderable{
			renderer: f.renderer,
			key:      key,
			pickID:   f.renderer.allocPickID(key),
		}
		f.reg.put(mr)
	}
	mr.update(m, pose)
}

// startFrame sweeps expired markers, then resolves the rest.
func (f *markerFamily) startFrame(now int64) {
	f.reg.removeIf(func(k Key) bool {
		mr := mustMarker(f.reg, k)
		return now >= mr.expiresAt
	})
	f.reg.each(func(r Renderable) {
		r.StartFrame(now)
	})
}

func (f *markerFamily) appendDrawItems(items []DrawItem) []DrawItem {
	f.reg.each(func(r Renderable) {
		mr := r.(*markerRenderable)
		if mr.visible {
			items = mr.AppendDrawItems(items)
		}
	})
	return items
}

func (f *markerFamily) removeTopic(topic string) int {
	return f.reg.removeIf(func(k Key) bool { return k.Topic == topic })
}

func (f *markerFamily) dispose() {
	f.reg.clear()
}

func mustMarker(reg *registry, k Key) *markerRenderable {
	r, _ := reg.get(k)
	return r.(*markerRenderable)
}

// markerRenderable wraps one decoded marker. Geometry is rebuilt on update;
// the transform is re-resolved every frame.
type markerRenderable struct {
	renderer *Renderer
	key      Key
	pickID   uint32

	frameID     string
	stamp       int64
	frameLocked bool
	expiresAt   int64
	pose        core.Pose

	geometry    Geometry
	localBounds core.AABB
	boundsValid bool
	transparent bool

	labelText  string
	labelColor [4]float32

	visible   bool
	transform mgl32.Mat4
	bounds    core.AABB
	disposed  bool
}

func (mr *markerRenderable) Key() Key       { return mr.key }
func (mr *markerRenderable) PickID() uint32 { return mr.pickID }

func (mr *markerRenderable) update(m *msg.Marker, pose core.Pose) {
	mr.frameID = m.Header.FrameID
	mr.stamp = m.Header.Stamp
	mr.frameLocked = m.FrameLocked
	mr.expiresAt = m.ExpiresAt()
	mr.pose = pose

	mr.geometry, mr.localBounds, mr.boundsValid, mr.transparent = buildMarkerGeometry(m)

	if m.Type == msg.MarkerTextViewFacing {
		mr.labelText = m.Text
		mr.labelColor = markerColor(m).Vec4()
	} else {
		mr.labelText = ""
	}
}

func (mr *markerRenderable) StartFrame(now int64) bool {
	srcTime := mr.stamp
	if mr.frameLocked {
		srcTime = now
	}
	resolved, ok := mr.renderer.poseInRenderFrame(mr.frameID, srcTime, now, mr.pose)
	if !ok {
		mr.visible = false
		return false
	}

	mr.visible = true
	mr.transform = resolved.Mat4()
	if mr.boundsValid {
		mr.bounds = core.TransformAABB(mr.localBounds, mr.transform)
	}

	if mr.labelText != "" {
		anchor := resolved.Translation
		mr.renderer.labels.place(mr.key.String(), mr.labelText, mr.labelColor,
			mgl32.Vec3{float32(anchor.X()), float32(anchor.Y()), float32(anchor.Z())}, 1)
	}
	return true
}

func (mr *markerRenderable) AppendDrawItems(items []DrawItem) []DrawItem {
	if mr.geometry.Empty() {
		return items
	}
	material := MaterialOpaque
	if mr.transparent {
		material = MaterialTransparent
	}
	return append(items, DrawItem{
		Key:         mr.key,
		PickID:      mr.pickID,
		Material:    material,
		Transform:   mr.transform,
		Geometry:    mr.geometry,
		Bounds:      mr.bounds,
		BoundsValid: mr.boundsValid,
	})
}

func (mr *markerRenderable) Dispose() {
	if mr.disposed {
		return
	}
	mr.disposed = true
	mr.renderer.releasePickID(mr.pickID)
	if mr.labelText != "" {
		mr.renderer.labels.remove(mr.key.String())
	}
}

// markerColor returns the uniform marker color, defaulting alpha to opaque
// white when the color is entirely unset.
func markerColor(m *msg.Marker) msg.ColorRGBA {
	c := m.Color
	if c.R == 0 && c.G == 0 && c.B == 0 && c.A == 0 {
		return msg.ColorRGBA{R: 1, G: 1, B: 1, A: 1}
	}
	return c
}

// vertexColors resolves the per-point color list. A colors list matching the
// point count wins; otherwise the uniform color applies everywhere.
func vertexColors(m *msg.Marker) func(i int) mgl32.Vec4 {
	uniform := core.SRGBAToLinear(markerColor(m).Vec4())
	if len(m.Colors) != len(m.Points) || len(m.Colors) == 0 {
		return func(int) mgl32.Vec4 { return uniform }
	}
	converted := make([]mgl32.Vec4, len(m.Colors))
	for i, c := range m.Colors {
		converted[i] = core.SRGBAToLinear(c.Vec4())
	}
	return func(i int) mgl32.Vec4 { return converted[i] }
}

func markerTransparent(m *msg.Marker) bool {
	if markerColor(m).A < 1 {
		return true
	}
	if len(m.Colors) == len(m.Points) {
		for _, c := range m.Colors {
			if c.A < 1 {
				return true
			}
		}
	}
	return false
}

// buildMarkerGeometry converts a marker message into draw geometry and a
// local-space AABB. Text markers return empty geometry; they render as
// labels instead.
func buildMarkerGeometry(m *msg.Marker) (Geometry, core.AABB, bool, bool) {
	transparent := markerTransparent(m)

	switch m.Type {
	case msg.MarkerArrow:
		return buildArrow(m), arrowBounds(m), true, transparent

	case msg.MarkerCube, msg.MarkerSphere, msg.MarkerCylinder:
		shape := shapeForMarker(m.Type)
		scale := m.Scale.Vec3f()
		g := Geometry{
			Kind: GeomShapes,
			Instances: []Instance{{
				Shape: shape,
				Model: mgl32.Scale3D(scale.X(), scale.Y(), scale.Z()),
				Color: core.SRGBAToLinear(markerColor(m).Vec4()),
			}},
		}
		half := scale.Mul(0.5)
		return g, core.AABB{half.Mul(-1), half}, true, transparent

	case msg.MarkerCubeList, msg.MarkerSphereList:
		shape := ShapeCube
		if m.Type == msg.MarkerSphereList {
			shape = ShapeSphere
		}
		return buildShapeList(m, shape)

	case msg.MarkerLineStrip, msg.MarkerLineList:
		return buildLines(m, m.Type == msg.MarkerLineStrip)

	case msg.MarkerPoints:
		return buildPointsMarker(m)

	case msg.MarkerTriangleList:
		return buildTriangles(m)

	case msg.MarkerTextViewFacing:
		return Geometry{}, core.AABB{}, false, transparent
	}

	gantry.Log().Warnf("marker %s/%d: unknown type %d", m.Namespace, m.ID, m.Type)
	return Geometry{}, core.AABB{}, false, false
}

func shapeForMarker(t msg.MarkerType) ShapeKind {
	switch t {
	case msg.MarkerSphere:
		return ShapeSphere
	case msg.MarkerCylinder:
		return ShapeCylinder
	}
	return ShapeCube
}

// buildArrow produces a single unit-arrow instance. The pose-form arrow
// spans scale.x along local +x; the two-point form is oriented from the
// first point to the second, with scale.x and scale.y as shaft and head
// diameters.
func buildArrow(m *msg.Marker) Geometry {
	color := core.SRGBAToLinear(markerColor(m).Vec4())

	if len(m.Points) >= 2 {
		start := m.Points[0].Vec3f()
		end := m.Points[1].Vec3f()
		dir := end.Sub(start)
		length := dir.Len()
		if length < 1e-9 {
			return Geometry{}
		}
		rot := mgl32.QuatBetweenVectors(mgl32.Vec3{1, 0, 0}, dir)
		width := float32(m.Scale.X)
		if width <= 0 {
			width = length * 0.1
		}
		model := mgl32.Translate3D(start.X(), start.Y(), start.Z()).
			Mul4(rot.Mat4()).
			Mul4(mgl32.Scale3D(length, width, width))
		return Geometry{Kind: GeomShapes, Instances: []Instance{{Shape: ShapeArrow, Model: model, Color: color}}}
	}

	s := m.Scale.Vec3f()
	return Geometry{
		Kind: GeomShapes,
		Instances: []Instance{{
			Shape: ShapeArrow,
			Model: mgl32.Scale3D(s.X(), s.Y(), s.Z()),
			Color: color,
		}},
	}
}

func arrowBounds(m *msg.Marker) core.AABB {
	if len(m.Points) >= 2 {
		a := m.Points[0].Vec3f()
		b := m.Points[1].Vec3f()
		pad := float32(m.Scale.Y)
		if pad <= 0 {
			pad = float32(m.Scale.X)
		}
		lo := mgl32.Vec3{
			min(a.X(), b.X()) - pad,
			min(a.Y(), b.Y()) - pad,
			min(a.Z(), b.Z()) - pad,
		}
		hi := mgl32.Vec3{
			max(a.X(), b.X()) + pad,
			max(a.Y(), b.Y()) + pad,
			max(a.Z(), b.Z()) + pad,
		}
		return core.AABB{lo, hi}
	}
	s := m.Scale.Vec3f()
	half := max(s.Y(), s.Z()) * 0.5
	return core.AABB{{0, -half, -half}, {s.X(), half, half}}
}

func buildShapeList(m *msg.Marker, shape ShapeKind) (Geometry, core.AABB, bool, bool) {
	if len(m.Points) == 0 {
		return Geometry{}, core.AABB{}, false, false
	}
	colorAt := vertexColors(m)
	scale := m.Scale.Vec3f()
	half := scale.Mul(0.5)

	instances := make([]Instance, 0, len(m.Points))
	bounds := emptyBounds()
	for i, p := range m.Points {
		at := p.Vec3f()
		instances = append(instances, Instance{
			Shape: shape,
			Model: mgl32.Translate3D(at.X(), at.Y(), at.Z()).Mul4(mgl32.Scale3D(scale.X(), scale.Y(), scale.Z())),
			Color: colorAt(i),
		})
		bounds = growBounds(bounds, at.Sub(half))
		bounds = growBounds(bounds, at.Add(half))
	}
	return Geometry{Kind: GeomShapes, Instances: instances}, bounds, true, markerTransparent(m)
}

func buildLines(m *msg.Marker, strip bool) (Geometry, core.AABB, bool, bool) {
	if len(m.Points) < 2 {
		return Geometry{}, core.AABB{}, false, false
	}
	colorAt := vertexColors(m)
	verts := make([]ColorVertex, 0, len(m.Points))
	bounds := emptyBounds()
	for i, p := range m.Points {
		at := p.Vec3f()
		verts = append(verts, ColorVertex{Position: at, Color: colorAt(i)})
		bounds = growBounds(bounds, at)
	}
	g := Geometry{
		Kind:      GeomLines,
		Lines:     verts,
		LineStrip: strip,
		LineWidth: float32(m.Scale.X),
	}
	return g, bounds, true, markerTransparent(m)
}

func buildPointsMarker(m *msg.Marker) (Geometry, core.AABB, bool, bool) {
	if len(m.Points) == 0 {
		return Geometry{}, core.AABB{}, false, false
	}
	colorAt := vertexColors(m)
	size := float32(m.Scale.X)
	if size <= 0 {
		size = 0.01
	}
	verts := make([]ColorVertex, 0, len(m.Points))
	bounds := emptyBounds()
	for i, p := range m.Points {
		at := p.Vec3f()
		verts = append(verts, ColorVertex{Position: at, Color: colorAt(i)})
		bounds = growBounds(bounds, at)
	}
	pad := mgl32.Vec3{size / 2, size / 2, size / 2}
	bounds = core.AABB{bounds[0].Sub(pad), bounds[1].Add(pad)}
	g := Geometry{
		Kind:      GeomPoints,
		Points:    verts,
		PointSize: size,
		WorldSize: true,
	}
	return g, bounds, true, markerTransparent(m)
}

func buildTriangles(m *msg.Marker) (Geometry, core.AABB, bool, bool) {
	n := len(m.Points) - len(m.Points)%3
	if n < 3 {
		return Geometry{}, core.AABB{}, false, false
	}
	colorAt := vertexColors(m)
	scale := m.Scale.Vec3f()
	if scale.X() == 0 && scale.Y() == 0 && scale.Z() == 0 {
		scale = mgl32.Vec3{1, 1, 1}
	}
	verts := make([]ColorVertex, 0, n)
	bounds := emptyBounds()
	for i := 0; i < n; i++ {
		at := m.Points[i].Vec3f()
		at = mgl32.Vec3{at.X() * scale.X(), at.Y() * scale.Y(), at.Z() * scale.Z()}
		verts = append(verts, ColorVertex{Position: at, Color: colorAt(i)})
		bounds = growBounds(bounds, at)
	}
	return Geometry{Kind: GeomTriangles, Triangles: verts}, bounds, true, markerTransparent(m)
}

func emptyBounds() core.AABB {
	inf := float32(math.Inf(1))
	return core.AABB{{inf, inf, inf}, {-inf, -inf, -inf}}
}

func growBounds(b core.AABB, p mgl32.Vec3) core.AABB {
	return core.AABB{
		{min(b[0].X(), p.X()), min(b[0].Y(), p.Y()), min(b[0].Z(), p.Z())},
		{max(b[1].X(), p.X()), max(b[1].Y(), p.Y()), max(b[1].Z(), p.Z())},
	}
}
