// Package render turns decoded robotics messages into per-frame draw lists
// for a GPU backend. It owns the transform tree, the renderable families,
// picking and the event surface; everything GPU-specific sits behind the
// Backend interface so the package runs headless in tests.
package render

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gantry3d/gantry"
	"github.com/gantry3d/gantry/core"
	"github.com/gantry3d/gantry/msg"
)

// Renderer is the scene orchestrator. All methods must be called from the
// same goroutine; the renderer never starts goroutines of its own.
type Renderer struct {
	backend Backend
	picker  *Picker
	tree    *core.TransformTree
	events  *Emitter
	labels  *labelSet
	atlas   *core.GlyphAtlas

	markers *markerFamily
	clouds  *pointCloudFamily
	grids   *gridFamily
	axes    *axesFamily

	camera       core.CameraState
	renderFrame  string
	fixedFrame   string
	upCorrection mgl32.Mat4
	clearColor   mgl32.Vec4

	// curRender and curFixed are the frame ids resolved at the start of the
	// current frame; families read them through poseInRenderFrame.
	curRender string
	curFixed  string

	width  int
	height int

	pickIndex  map[uint32]Key
	nextPickID uint32

	lastVisible []DrawItem
	lastTime    int64
	rendered    bool
	frameCount  uint64

	disposed bool
}

func New(opts Options) (*Renderer, error) {
	if opts.Backend == nil {
		return nil, ErrNoBackend
	}

	labelSize := opts.LabelSize
	if labelSize <= 0 {
		labelSize = defaultLabelSize
	}
	atlas, err := core.NewGlyphAtlas(labelSize)
	if err != nil {
		return nil, fmt.Errorf("building glyph atlas: %w", err)
	}

	tree := opts.Tree
	if tree == nil {
		tree = core.NewTransformTree()
	}

	camera := core.DefaultCameraState()
	if opts.Camera != nil {
		camera = *opts.Camera
	}

	clear := defaultClearColor()
	if opts.ClearColor != nil {
		clear = core.SRGBAToLinear(opts.ClearColor.Vec4())
	}

	up := mgl32.Ident4()
	if opts.Up == UpY {
		up = mgl32.HomogRotate3DX(mgl32.DegToRad(90))
	}

	r := &Renderer{
		backend:      opts.Backend,
		picker:       newPicker(opts.Backend),
		tree:         tree,
		events:       NewEmitter(),
		atlas:        atlas,
		camera:       camera,
		renderFrame:  opts.RenderFrame,
		fixedFrame:   opts.FixedFrame,
		upCorrection: up,
		clearColor:   clear,
		width:        opts.Width,
		height:       opts.Height,
		pickIndex:    make(map[uint32]Key),
	}
	r.labels = newLabelSet(r.events)
	r.markers = newMarkerFamily(r)
	r.clouds = newPointCloudFamily(r)
	r.grids = newGridFamily(r)
	r.axes = newAxesFamily(r)
	return r, nil
}

// Events exposes the event surface for subscribe and unsubscribe.
func (r *Renderer) Events() *Emitter { return r.events }

// Tree exposes the transform tree for direct inspection.
func (r *Renderer) Tree() *core.TransformTree { return r.tree }

func (r *Renderer) CameraState() core.CameraState { return r.camera }

// SetCameraState replaces the camera and announces the move. Setting the
// same state twice renders identically; the state is the whole input.
func (r *Renderer) SetCameraState(s core.CameraState) error {
	if r.disposed {
		return ErrDisposed
	}
	r.camera = s
	r.events.Emit(Event{Type: EventCameraMove, Camera: s})
	return nil
}

// SetRenderFrame follows the given frame. An empty id or an id the tree
// does not know falls back to an automatically chosen root frame, re-
// evaluated every frame.
func (r *Renderer) SetRenderFrame(id string) {
	r.renderFrame = id
}

// SetFixedFrame overrides the stable root used when resolving poses across
// time. Empty means the root of the render frame's tree.
func (r *Renderer) SetFixedFrame(id string) {
	r.fixedFrame = id
}

func (r *Renderer) SetPointCloudOptions(topic string, o PointCloudOptions) error {
	if r.disposed {
		return ErrDisposed
	}
	r.clouds.setOptions(topic, o)
	return nil
}

func (r *Renderer) SetGridOptions(topic string, o GridOptions) error {
	if r.disposed {
		return ErrDisposed
	}
	r.grids.setOptions(topic, o)
	return nil
}

func (r *Renderer) SetAxesOptions(o AxesOptions) error {
	if r.disposed {
		return ErrDisposed
	}
	r.axes.setOptions(o)
	return nil
}

// AddTransformMessage feeds one transform sample into the tree. Accepted
// samples announce a tree update.
func (r *Renderer) AddTransformMessage(topic string, t *msg.FrameTransform) error {
	if r.disposed {
		return ErrDisposed
	}
	if t == nil {
		return ErrNilMessage
	}
	if !r.tree.AddTransform(t.ParentFrameID, t.ChildFrameID, t.Stamp, t.Pose()) {
		gantry.Log().Debugf("transform on %s rejected", topic)
		return nil
	}
	r.events.Emit(Event{Type: EventTransformTreeUpdate})
	return nil
}

func (r *Renderer) AddMarkerMessage(topic string, m *msg.Marker) error {
	if r.disposed {
		return ErrDisposed
	}
	if m == nil {
		return ErrNilMessage
	}
	r.tree.RegisterFrame(m.Header.FrameID)
	r.markers.handleMessage(topic, m)
	return nil
}

func (r *Renderer) AddPointCloudMessage(topic string, pc *msg.PointCloud2) error {
	if r.disposed {
		return ErrDisposed
	}
	if pc == nil {
		return ErrNilMessage
	}
	r.tree.RegisterFrame(pc.Header.FrameID)
	r.clouds.handleMessage(topic, pc)
	return nil
}

func (r *Renderer) AddGridMessage(topic string, g *msg.OccupancyGrid) error {
	if r.disposed {
		return ErrDisposed
	}
	if g == nil {
		return ErrNilMessage
	}
	r.tree.RegisterFrame(g.Header.FrameID)
	r.grids.handleMessage(topic, g)
	return nil
}

// RemoveTopic disposes every renderable created for the topic.
func (r *Renderer) RemoveTopic(topic string) int {
	if r.disposed {
		return 0
	}
	n := r.markers.removeTopic(topic)
	n += r.clouds.removeTopic(topic)
	n += r.grids.removeTopic(topic)
	return n
}

// RenderableCount counts live renderables across all families.
func (r *Renderer) RenderableCount() int {
	return r.markers.reg.len() + r.clouds.reg.len() + r.grids.reg.len() + r.axes.reg.len()
}

// MarkerCount counts live marker renderables.
func (r *Renderer) MarkerCount() int { return r.markers.reg.len() }

// RenderFrame draws one frame at the given time: transforms resolve first,
// then every family updates visibility and contributes draw items, which
// are culled and sorted before the backend draws them.
func (r *Renderer) RenderFrame(now int64) error {
	if r.disposed {
		return ErrDisposed
	}
	r.lastTime = now
	r.events.Emit(Event{Type: EventStartFrame, Time: now})

	r.curRender, r.curFixed = r.resolveFrames()

	r.axes.syncFrames(r.tree.Frames())
	r.labels.beginFrame()

	r.markers.startFrame(now)
	r.clouds.startFrame(now)
	r.grids.startFrame(now)
	r.axes.startFrame(now)

	items := make([]DrawItem, 0, 16)
	items = r.markers.appendDrawItems(items)
	items = r.clouds.appendDrawItems(items)
	items = r.grids.appendDrawItems(items)
	items = r.axes.appendDrawItems(items)

	view := r.viewMatrix()
	proj := r.camera.ProjectionMatrix(r.width, r.height)
	visible := cullItems(items, view, proj)
	sortItems(visible, view)

	text := r.labels.build(view, proj, r.width, r.height, r.atlas)
	var atlas *core.GlyphAtlas
	if len(text) > 0 {
		atlas = r.atlas
	}

	packet := &FramePacket{
		Time:       now,
		View:       view,
		Projection: proj,
		ClearColor: r.clearColor,
		Width:      r.width,
		Height:     r.height,
		Items:      visible,
		Text:       text,
		Atlas:      atlas,
	}

	err := r.backend.Render(packet)
	if err != nil {
		gantry.Log().Warnf("frame at %d failed: %v", now, err)
	} else {
		r.lastVisible = visible
		r.rendered = true
		r.frameCount++
	}

	r.events.Emit(Event{Type: EventEndFrame, Time: now})
	if err != nil {
		return fmt.Errorf("render frame: %w", err)
	}
	return nil
}

// Resize reconfigures the backend targets and re-renders exactly once at
// the last rendered time. A no-op when the size is unchanged.
func (r *Renderer) Resize(width, height int) error {
	if r.disposed {
		return ErrDisposed
	}
	if width == r.width && height == r.height {
		return nil
	}
	r.width = width
	r.height = height
	if width < 1 || height < 1 {
		// Minimized window; nothing can be rendered at this size.
		return nil
	}
	r.backend.Resize(width, height)
	if !r.rendered {
		return nil
	}
	return r.RenderFrame(r.lastTime)
}

// Pick resolves the renderable under the pixel (x, y) using the visible set
// of the last rendered frame. The optional predicate filters candidates by
// key. Misses and pick-path failures return a zero result; hits announce an
// object-select event.
func (r *Renderer) Pick(x, y float64, predicate func(Key) bool) (PickResult, error) {
	if r.disposed {
		return PickResult{}, ErrDisposed
	}
	visible := r.lastVisible
	if !r.rendered {
		visible = nil
	}
	view := r.viewMatrix()
	proj := r.camera.ProjectionMatrix(r.width, r.height)
	res := r.picker.pick(x, y, r.width, r.height, view, proj, visible, r.lookupPickKey, predicate)
	if res.Hit {
		r.events.Emit(Event{Type: EventObjectSelect, Key: res.Key, PickID: res.PickID})
	}
	return res, nil
}

// Dispose tears the renderer down: listeners are removed first so teardown
// is silent, then every renderable and the backend release their resources.
// Disposing twice logs and does nothing.
func (r *Renderer) Dispose() {
	if r.disposed {
		gantry.Log().Warnf("renderer disposed twice")
		return
	}
	r.disposed = true

	r.events.RemoveAll()
	r.markers.dispose()
	r.clouds.dispose()
	r.grids.dispose()
	r.axes.dispose()
	r.labels.clear()
	r.lastVisible = nil
	r.backend.Release()
}

// Disposed reports whether Dispose has run.
func (r *Renderer) Disposed() bool { return r.disposed }

// Stats is a point-in-time snapshot of renderer counters.
type Stats struct {
	Frames      uint64
	Renderables int
	LastItems   int
	TreeFrames  int
	TreeSamples int
	Labels      int
}

func (r *Renderer) Stats() Stats {
	return Stats{
		Frames:      r.frameCount,
		Renderables: r.RenderableCount(),
		LastItems:   len(r.lastVisible),
		TreeFrames:  len(r.tree.Frames()),
		TreeSamples: r.tree.SampleCount(),
		Labels:      r.labels.shownCount(),
	}
}

func (r *Renderer) viewMatrix() mgl32.Mat4 {
	return r.camera.ViewMatrix().Mul4(r.upCorrection)
}

// resolveFrames picks the effective render and fixed frames for this frame.
// A configured frame the tree knows wins; otherwise the render frame falls
// back to the first root frame and the fixed frame to the render frame's
// root.
func (r *Renderer) resolveFrames() (renderFrame, fixedFrame string) {
	renderFrame = r.renderFrame
	if renderFrame == "" || !r.tree.HasFrame(renderFrame) {
		roots := r.tree.RootFrames()
		if len(roots) == 0 {
			return "", ""
		}
		renderFrame = roots[0]
	}
	fixedFrame = r.fixedFrame
	if fixedFrame == "" || !r.tree.HasFrame(fixedFrame) {
		fixedFrame = r.tree.RootOf(renderFrame)
	}
	return renderFrame, fixedFrame
}

// poseInRenderFrame maps a pose in srcFrame into the current render frame,
// going through the fixed frame so the source side resolves at srcTime and
// the destination side at dstTime. Frame-locked content passes the display
// time for both.
func (r *Renderer) poseInRenderFrame(srcFrame string, srcTime, dstTime int64, pose core.Pose) (core.Pose, bool) {
	if r.curRender == "" {
		return core.Pose{}, false
	}
	a, ok := r.tree.Lookup(srcFrame, r.curFixed, srcTime)
	if !ok {
		return core.Pose{}, false
	}
	b, ok := r.tree.Lookup(r.curFixed, r.curRender, dstTime)
	if !ok {
		return core.Pose{}, false
	}
	return b.Mul(a).Mul(pose), true
}

func (r *Renderer) allocPickID(k Key) uint32 {
	r.nextPickID++
	id := r.nextPickID
	r.pickIndex[id] = k
	return id
}

func (r *Renderer) releasePickID(id uint32) {
	delete(r.pickIndex, id)
}

func (r *Renderer) lookupPickKey(id uint32) (Key, bool) {
	k, ok := r.pickIndex[id]
	return k, ok
}

// cullItems drops items whose bounds fall outside the view frustum. Items
// without valid bounds always survive.
func cullItems(items []DrawItem, view, proj mgl32.Mat4) []DrawItem {
	planes := core.ExtractFrustum(proj.Mul4(view))
	visible := make([]DrawItem, 0, len(items))
	for _, item := range items {
		if item.BoundsValid && !core.AABBInFrustum(item.Bounds, planes) {
			continue
		}
		visible = append(visible, item)
	}
	return visible
}

// sortItems orders the draw list: opaque front to back, then transparent
// back to front, then outlines on top. The sort is stable so items at equal
// depth keep family order.
func sortItems(items []DrawItem, view mgl32.Mat4) {
	for i := range items {
		items[i].depth = viewDepth(&items[i], view)
	}
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := materialRank(items[i].Material), materialRank(items[j].Material)
		if ri != rj {
			return ri < rj
		}
		if ri == 1 {
			// Transparent: far first.
			return items[i].depth > items[j].depth
		}
		return items[i].depth < items[j].depth
	})
}

func materialRank(m MaterialKind) int {
	switch m {
	case MaterialOpaque:
		return 0
	case MaterialTransparent:
		return 1
	case MaterialHoverOutline:
		return 2
	}
	return 3
}

// viewDepth is the distance along the view direction to the item's bounds
// center, or its origin when bounds are invalid.
func viewDepth(item *DrawItem, view mgl32.Mat4) float32 {
	var center mgl32.Vec3
	if item.BoundsValid {
		center = item.Bounds[0].Add(item.Bounds[1]).Mul(0.5)
	} else {
		center = mgl32.Vec3{item.Transform.At(0, 3), item.Transform.At(1, 3), item.Transform.At(2, 3)}
	}
	v := view.Mul4x1(center.Vec4(1))
	return -v.Z()
}
