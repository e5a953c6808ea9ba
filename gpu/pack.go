package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gantry3d/gantry/render"
)

// Vertex and instance strides, matched to the WGSL attribute layouts.
const (
	shapeInstanceStride = 80
	segmentStride       = 64
	pointStride         = 36
	triVertexStride     = 28
	quadVertexStride    = 20
	textVertexStride    = 32

	frameUniformSize = 208

	pointWorldSizeFlag = 1
)

type pipelineVariant uint8

const (
	variantOpaque pipelineVariant = iota
	variantAlpha
	variantOverlay
	variantPick
)

// Highlight tints drawn in place of item colors for outline materials.
var (
	hoverTint  = [4]float32{1, 0.85, 0.1, 0.5}
	selectTint = [4]float32{0.25, 0.55, 1, 0.6}
)

// drawSpan is one draw call: a range of packed instances or vertices plus
// the pipeline flavor to draw them with.
type drawSpan struct {
	kind    render.GeometryKind
	variant pipelineVariant
	shape   render.ShapeKind
	first   uint32
	count   uint32
	texture *render.TextureData
}

// framePack is the CPU staging area rebuilt every frame. Slices are reused
// across frames to keep steady-state allocation flat.
type framePack struct {
	shapeInstances []byte
	segments       []byte
	points         []byte
	triangles      []byte
	quads          []byte
	spans          []drawSpan

	shapeCount uint32
	segCount   uint32
	pointCount uint32
	triCount   uint32
	quadCount  uint32
}

func (p *framePack) reset() {
	p.shapeInstances = p.shapeInstances[:0]
	p.segments = p.segments[:0]
	p.points = p.points[:0]
	p.triangles = p.triangles[:0]
	p.quads = p.quads[:0]
	p.spans = p.spans[:0]
	p.shapeCount = 0
	p.segCount = 0
	p.pointCount = 0
	p.triCount = 0
	p.quadCount = 0
}

// addItems packs the draw list in order. In pick mode every color becomes
// the item's identity color and textured quads degrade to flat triangles.
func (p *framePack) addItems(items []render.DrawItem, pick bool) {
	for i := range items {
		item := &items[i]
		if item.Geometry.Empty() {
			continue
		}
		if pick {
			c := pickColor(item.PickID)
			p.addItem(item, variantPick, &c)
			continue
		}
		variant := variantFor(item.Material)
		var override *[4]float32
		switch item.Material {
		case render.MaterialHoverOutline:
			override = &hoverTint
		case render.MaterialSelectionOutline:
			override = &selectTint
		}
		p.addItem(item, variant, override)
	}
}

func (p *framePack) addItem(item *render.DrawItem, variant pipelineVariant, override *[4]float32) {
	switch item.Geometry.Kind {
	case render.GeomShapes:
		p.addShapes(item, variant, override)
	case render.GeomLines:
		p.addLines(item, variant, override)
	case render.GeomPoints:
		p.addPoints(item, variant, override)
	case render.GeomTriangles:
		p.addTriangles(item, variant, override)
	case render.GeomTexturedQuad:
		if variant == variantPick {
			p.addQuadAsTriangles(item, override)
		} else {
			p.addQuad(item, variant)
		}
	}
}

func (p *framePack) addShapes(item *render.DrawItem, variant pipelineVariant, override *[4]float32) {
	g := &item.Geometry
	cur := g.Instances[0].Shape
	runStart := p.shapeCount
	flush := func() {
		if p.shapeCount > runStart {
			p.spans = append(p.spans, drawSpan{
				kind:    render.GeomShapes,
				variant: variant,
				shape:   cur,
				first:   runStart,
				count:   p.shapeCount - runStart,
			})
		}
	}
	for _, inst := range g.Instances {
		if inst.Shape != cur {
			flush()
			cur = inst.Shape
			runStart = p.shapeCount
		}
		color := [4]float32(inst.Color)
		if override != nil {
			color = *override
		}
		p.shapeInstances = appendMat4(p.shapeInstances, item.Transform.Mul4(inst.Model))
		p.shapeInstances = appendVec4(p.shapeInstances, color)
		p.shapeCount++
	}
	flush()
}

func (p *framePack) addLines(item *render.DrawItem, variant pipelineVariant, override *[4]float32) {
	g := &item.Geometry
	start := p.segCount
	emit := func(a, b render.ColorVertex) {
		ca, cb := a.Color, b.Color
		if override != nil {
			ca, cb = *override, *override
		}
		p.segments = appendVec3(p.segments, transformPoint(item.Transform, a.Position))
		p.segments = appendVec3(p.segments, transformPoint(item.Transform, b.Position))
		p.segments = appendVec4(p.segments, ca)
		p.segments = appendVec4(p.segments, cb)
		p.segments = appendF32(p.segments, g.LineWidth)
		p.segments = appendF32(p.segments, 0)
		p.segCount++
	}
	if g.LineStrip {
		for i := 1; i < len(g.Lines); i++ {
			emit(g.Lines[i-1], g.Lines[i])
		}
	} else {
		for i := 0; i+1 < len(g.Lines); i += 2 {
			emit(g.Lines[i], g.Lines[i+1])
		}
	}
	if p.segCount > start {
		p.spans = append(p.spans, drawSpan{
			kind:    render.GeomLines,
			variant: variant,
			first:   start,
			count:   p.segCount - start,
		})
	}
}

func (p *framePack) addPoints(item *render.DrawItem, variant pipelineVariant, override *[4]float32) {
	g := &item.Geometry
	size := g.PointSize
	if size <= 0 {
		size = 1
	}
	flags := uint32(0)
	if g.WorldSize {
		flags = pointWorldSizeFlag
	}
	start := p.pointCount
	for _, v := range g.Points {
		color := v.Color
		if override != nil {
			color = *override
		}
		p.points = appendVec3(p.points, transformPoint(item.Transform, v.Position))
		p.points = appendF32(p.points, size)
		p.points = appendVec4(p.points, color)
		p.points = appendU32(p.points, flags)
		p.pointCount++
	}
	p.spans = append(p.spans, drawSpan{
		kind:    render.GeomPoints,
		variant: variant,
		first:   start,
		count:   p.pointCount - start,
	})
}

func (p *framePack) addTriangles(item *render.DrawItem, variant pipelineVariant, override *[4]float32) {
	g := &item.Geometry
	count := uint32(len(g.Triangles))
	count -= count % 3
	start := p.triCount
	for _, v := range g.Triangles[:count] {
		color := v.Color
		if override != nil {
			color = *override
		}
		p.triangles = appendVec3(p.triangles, transformPoint(item.Transform, v.Position))
		p.triangles = appendVec4(p.triangles, color)
		p.triCount++
	}
	p.spans = append(p.spans, drawSpan{
		kind:    render.GeomTriangles,
		variant: variant,
		first:   start,
		count:   p.triCount - start,
	})
}

var quadCornerOrder = [6][2]float32{
	{0, 0}, {1, 0}, {1, 1},
	{0, 0}, {1, 1}, {0, 1},
}

func (p *framePack) addQuad(item *render.DrawItem, variant pipelineVariant) {
	start := p.quadCount
	for _, c := range quadCornerOrder {
		p.quads = appendVec3(p.quads, transformPoint(item.Transform, [3]float32{c[0], c[1], 0}))
		p.quads = appendF32(p.quads, c[0])
		p.quads = appendF32(p.quads, c[1])
		p.quadCount++
	}
	p.spans = append(p.spans, drawSpan{
		kind:    render.GeomTexturedQuad,
		variant: variant,
		first:   start,
		count:   6,
		texture: item.Geometry.Texture,
	})
}

// addQuadAsTriangles flattens a textured quad into two identity-colored
// triangles for the pick pass.
func (p *framePack) addQuadAsTriangles(item *render.DrawItem, color *[4]float32) {
	start := p.triCount
	for _, c := range quadCornerOrder {
		p.triangles = appendVec3(p.triangles, transformPoint(item.Transform, [3]float32{c[0], c[1], 0}))
		p.triangles = appendVec4(p.triangles, *color)
		p.triCount++
	}
	p.spans = append(p.spans, drawSpan{
		kind:    render.GeomTriangles,
		variant: variantPick,
		first:   start,
		count:   6,
	})
}

func variantFor(m render.MaterialKind) pipelineVariant {
	switch m {
	case render.MaterialTransparent:
		return variantAlpha
	case render.MaterialHoverOutline, render.MaterialSelectionOutline:
		return variantOverlay
	}
	return variantOpaque
}

func pickColor(id uint32) [4]float32 {
	b := render.EncodePickColor(id)
	return [4]float32{
		float32(b[0]) / 255,
		float32(b[1]) / 255,
		float32(b[2]) / 255,
		float32(b[3]) / 255,
	}
}

func packFrameUniforms(view, proj mgl32.Mat4, vpW, vpH float32) []byte {
	if vpW <= 0 {
		vpW = 1
	}
	if vpH <= 0 {
		vpH = 1
	}
	buf := make([]byte, frameUniformSize)
	writeMat := func(off int, m mgl32.Mat4) {
		for i, v := range m {
			binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(v))
		}
	}
	writeMat(0, proj.Mul4(view))
	writeMat(64, view)
	writeMat(128, proj)
	binary.LittleEndian.PutUint32(buf[192:], math.Float32bits(vpW))
	binary.LittleEndian.PutUint32(buf[196:], math.Float32bits(vpH))
	binary.LittleEndian.PutUint32(buf[200:], math.Float32bits(1/vpW))
	binary.LittleEndian.PutUint32(buf[204:], math.Float32bits(1/vpH))
	return buf
}

func transformPoint(m mgl32.Mat4, p [3]float32) [3]float32 {
	v := m.Mul4x1(mgl32.Vec4{p[0], p[1], p[2], 1})
	return [3]float32{v[0], v[1], v[2]}
}

func appendF32(dst []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
}

func appendU32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

func appendVec3(dst []byte, v [3]float32) []byte {
	dst = appendF32(dst, v[0])
	dst = appendF32(dst, v[1])
	return appendF32(dst, v[2])
}

func appendVec4(dst []byte, v [4]float32) []byte {
	dst = appendF32(dst, v[0])
	dst = appendF32(dst, v[1])
	dst = appendF32(dst, v[2])
	return appendF32(dst, v[3])
}

func appendMat4(dst []byte, m mgl32.Mat4) []byte {
	for _, v := range m {
		dst = appendF32(dst, v)
	}
	return dst
}
