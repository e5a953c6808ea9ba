package render

import (
	"strconv"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gantry3d/gantry/core"
)

// Key identifies a renderable inside the registry. Families that keep one
// renderable per topic leave Namespace and ID zero.
type Key struct {
	Topic     string
	Namespace string
	ID        int32
}

func (k Key) String() string {
	if k.Namespace == "" && k.ID == 0 {
		return k.Topic
	}
	return k.Topic + "/" + k.Namespace + "/" + strconv.FormatInt(int64(k.ID), 10)
}

// MaterialKind selects the pipeline flavor for a draw item. The two outline
// materials exist for hover and selection highlights and are never pickable.
type MaterialKind uint8

const (
	MaterialOpaque MaterialKind = iota
	MaterialTransparent
	MaterialHoverOutline
	MaterialSelectionOutline
)

// ShapeKind names a unit geometry instanced by the shape pass.
type ShapeKind uint8

const (
	ShapeCube ShapeKind = iota
	ShapeSphere
	ShapeCylinder
	ShapeArrow
)

type GeometryKind uint8

const (
	GeomNone GeometryKind = iota
	GeomShapes
	GeomLines
	GeomPoints
	GeomTriangles
	GeomTexturedQuad
)

// Instance is one unit-shape instance: a model transform relative to the
// item transform and a linear-space color.
type Instance struct {
	Shape ShapeKind
	Model mgl32.Mat4
	Color mgl32.Vec4
}

// ColorVertex is the shared vertex layout for line, point and triangle
// geometry. Colors are linear-space.
type ColorVertex struct {
	Position [3]float32
	Color    [4]float32
}

// TextureData is an RGBA8 image uploaded for textured-quad items. Pixels
// are display-space; the sampler applies the sRGB transfer.
type TextureData struct {
	Width  int
	Height int
	Pixels []byte
}

// Geometry is the tagged union of everything a draw item can carry. Exactly
// the fields implied by Kind are set.
type Geometry struct {
	Kind GeometryKind

	Instances []Instance

	Lines     []ColorVertex
	LineStrip bool
	// LineWidth is in world units; zero draws native one-pixel lines.
	LineWidth float32

	Points []ColorVertex
	// PointSize is in pixels unless WorldSize is set, in which case it is
	// the point's world-space edge length.
	PointSize float32
	WorldSize bool

	Triangles []ColorVertex

	Texture *TextureData
}

// Empty reports whether there is nothing to draw. Empty items are skipped
// by both the render pass and the picker.
func (g *Geometry) Empty() bool {
	switch g.Kind {
	case GeomShapes:
		return len(g.Instances) == 0
	case GeomLines:
		return len(g.Lines) < 2
	case GeomPoints:
		return len(g.Points) == 0
	case GeomTriangles:
		return len(g.Triangles) < 3
	case GeomTexturedQuad:
		return g.Texture == nil || len(g.Texture.Pixels) == 0
	}
	return true
}

// DrawItem is one renderable's contribution to a frame: resolved transform,
// geometry and identity for picking.
type DrawItem struct {
	Key      Key
	PickID   uint32
	Material MaterialKind

	// Transform maps item-local coordinates into the render frame.
	Transform mgl32.Mat4

	Geometry Geometry

	// Bounds is the world-space AABB used for culling; BoundsValid is false
	// for items that are never culled (e.g. screen-space content).
	Bounds      core.AABB
	BoundsValid bool

	depth float32
}
