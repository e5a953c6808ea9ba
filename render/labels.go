package render

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gantry3d/gantry/core"
)

// label is one screen-space text run anchored at a world position. Owners
// re-place their labels every frame; labels not placed in a frame are
// hidden.
type label struct {
	id     string
	text   string
	color  [4]float32
	anchor mgl32.Vec3
	scale  float32

	touched bool
	shown   bool
}

// labelSet owns every label in the scene and emits label-show and
// label-hide events on visibility transitions.
type labelSet struct {
	labels  map[string]*label
	order   []string
	emitter *Emitter
}

func newLabelSet(emitter *Emitter) *labelSet {
	return &labelSet{
		labels:  make(map[string]*label),
		emitter: emitter,
	}
}

// beginFrame clears the per-frame placement marks.
func (ls *labelSet) beginFrame() {
	for _, l := range ls.labels {
		l.touched = false
	}
}

// place creates or updates a label for the current frame. The anchor is in
// render-frame coordinates.
func (ls *labelSet) place(id, text string, color [4]float32, anchor mgl32.Vec3, scale float32) {
	l, ok := ls.labels[id]
	if !ok {
		l = &label{id: id}
		ls.labels[id] = l
		ls.order = append(ls.order, id)
	}
	l.text = text
	l.color = color
	l.anchor = anchor
	if scale <= 0 {
		scale = 1
	}
	l.scale = scale
	l.touched = true
}

// remove drops a label entirely, emitting label-hide if it was shown.
func (ls *labelSet) remove(id string) {
	l, ok := ls.labels[id]
	if !ok {
		return
	}
	if l.shown {
		ls.emitter.Emit(Event{Type: EventLabelHide, LabelID: id})
	}
	delete(ls.labels, id)
	for i, existing := range ls.order {
		if existing == id {
			ls.order = append(ls.order[:i:i], ls.order[i+1:]...)
			break
		}
	}
}

// build projects every placed label into screen space and returns the text
// vertices for the frame. Labels behind the camera or far offscreen are
// hidden. Visibility transitions emit events here.
func (ls *labelSet) build(view, proj mgl32.Mat4, width, height int, atlas *core.GlyphAtlas) []core.TextVertex {
	if atlas == nil || width <= 0 || height <= 0 {
		return nil
	}

	vp := proj.Mul4(view)
	items := make([]core.TextItem, 0, len(ls.labels))

	for _, id := range ls.order {
		l := ls.labels[id]
		visible := l.touched && l.text != ""

		var px, py float32
		if visible {
			clip := vp.Mul4x1(mgl32.Vec4{l.anchor.X(), l.anchor.Y(), l.anchor.Z(), 1})
			if clip.W() <= 1e-6 {
				visible = false
			} else {
				ndcX := clip.X() / clip.W()
				ndcY := clip.Y() / clip.W()
				if ndcX < -1.1 || ndcX > 1.1 || ndcY < -1.1 || ndcY > 1.1 {
					visible = false
				} else {
					px = (ndcX*0.5 + 0.5) * float32(width)
					py = (1 - (ndcY*0.5 + 0.5)) * float32(height)
				}
			}
		}

		if visible != l.shown {
			l.shown = visible
			if visible {
				ls.emitter.Emit(Event{Type: EventLabelShow, LabelID: id})
			} else {
				ls.emitter.Emit(Event{Type: EventLabelHide, LabelID: id})
			}
		}
		if !visible {
			continue
		}

		w, h := atlas.MeasureText(l.text, l.scale)
		items = append(items, core.TextItem{
			Text:     l.text,
			Position: [2]float32{px - w/2, py - h},
			Scale:    l.scale,
			Color:    l.color,
		})
	}

	if len(items) == 0 {
		return nil
	}
	return atlas.BuildVertices(items, width, height)
}

// shownCount reports how many labels are currently shown.
func (ls *labelSet) shownCount() int {
	n := 0
	for _, l := range ls.labels {
		if l.shown {
			n++
		}
	}
	return n
}

// clear drops every label without emitting events. Used on dispose.
func (ls *labelSet) clear() {
	ls.labels = make(map[string]*label)
	ls.order = nil
}
