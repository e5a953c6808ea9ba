package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gantry3d/gantry/render"
)

// meshVertex is the vertex layout shared by all unit shape meshes.
type meshVertex struct {
	Position [3]float32
	Normal   [3]float32
}

const meshVertexStride = 24

type meshData struct {
	Vertices []meshVertex
	Indices  []uint16
}

func (m *meshData) vertexBytes() []byte {
	buf := make([]byte, 0, len(m.Vertices)*meshVertexStride)
	for _, v := range m.Vertices {
		buf = appendVec3(buf, v.Position)
		buf = appendVec3(buf, v.Normal)
	}
	return buf
}

// indexBytes pads to a four byte multiple so the upload stays valid for an
// odd index count.
func (m *meshData) indexBytes() []byte {
	buf := make([]byte, 0, (len(m.Indices)*2+3)&^3)
	for _, i := range m.Indices {
		buf = binary.LittleEndian.AppendUint16(buf, i)
	}
	if len(buf)%4 != 0 {
		buf = append(buf, 0, 0)
	}
	return buf
}

// buildMeshData returns the CPU meshes for the unit shapes, indexed by
// render.ShapeKind. Cube spans half an extent either side of the origin,
// sphere and cylinder have unit diameter, the cylinder unit height along z,
// and the arrow runs from the origin to unit length along +x.
func buildMeshData() [4]meshData {
	var out [4]meshData
	out[render.ShapeCube] = unitCube()
	out[render.ShapeSphere] = unitSphere(24, 16)
	out[render.ShapeCylinder] = unitCylinder(24)
	out[render.ShapeArrow] = unitArrow(16)
	return out
}

func unitCube() meshData {
	var m meshData
	addFace := func(normal, du, dv mgl32.Vec3) {
		origin := normal.Mul(0.5).Sub(du.Mul(0.5)).Sub(dv.Mul(0.5))
		base := uint16(len(m.Vertices))
		for _, c := range [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}} {
			p := origin.Add(du.Mul(c[0])).Add(dv.Mul(c[1]))
			m.Vertices = append(m.Vertices, meshVertex{Position: p, Normal: normal})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	addFace(mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1})
	addFace(mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0})
	addFace(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0})
	addFace(mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1})
	addFace(mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0})
	addFace(mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0})
	return m
}

func unitSphere(segments, rings int) meshData {
	var m meshData
	for r := 0; r <= rings; r++ {
		phi := math.Pi * float64(r) / float64(rings)
		z := math.Cos(phi)
		s := math.Sin(phi)
		for c := 0; c <= segments; c++ {
			theta := 2 * math.Pi * float64(c) / float64(segments)
			n := mgl32.Vec3{
				float32(s * math.Cos(theta)),
				float32(s * math.Sin(theta)),
				float32(z),
			}
			m.Vertices = append(m.Vertices, meshVertex{Position: n.Mul(0.5), Normal: n})
		}
	}
	stride := uint16(segments + 1)
	for r := 0; r < rings; r++ {
		for c := 0; c < segments; c++ {
			i0 := uint16(r)*stride + uint16(c)
			i1 := i0 + 1
			i2 := i0 + stride
			i3 := i2 + 1
			m.Indices = append(m.Indices, i0, i2, i1, i1, i2, i3)
		}
	}
	return m
}

func unitCylinder(segments int) meshData {
	var m meshData

	for c := 0; c <= segments; c++ {
		theta := 2 * math.Pi * float64(c) / float64(segments)
		n := mgl32.Vec3{float32(math.Cos(theta)), float32(math.Sin(theta)), 0}
		m.Vertices = append(m.Vertices,
			meshVertex{Position: [3]float32{n[0] * 0.5, n[1] * 0.5, 0.5}, Normal: n},
			meshVertex{Position: [3]float32{n[0] * 0.5, n[1] * 0.5, -0.5}, Normal: n},
		)
	}
	for c := 0; c < segments; c++ {
		i := uint16(2 * c)
		m.Indices = append(m.Indices, i, i+1, i+2, i+2, i+1, i+3)
	}

	for _, zs := range [2]float32{0.5, -0.5} {
		n := mgl32.Vec3{0, 0, 1}
		if zs < 0 {
			n = mgl32.Vec3{0, 0, -1}
		}
		center := uint16(len(m.Vertices))
		m.Vertices = append(m.Vertices, meshVertex{Position: [3]float32{0, 0, zs}, Normal: n})
		for c := 0; c <= segments; c++ {
			theta := 2 * math.Pi * float64(c) / float64(segments)
			m.Vertices = append(m.Vertices, meshVertex{
				Position: [3]float32{float32(math.Cos(theta)) * 0.5, float32(math.Sin(theta)) * 0.5, zs},
				Normal:   n,
			})
		}
		for c := 0; c < segments; c++ {
			i := center + 1 + uint16(c)
			if zs > 0 {
				m.Indices = append(m.Indices, center, i, i+1)
			} else {
				m.Indices = append(m.Indices, center, i+1, i)
			}
		}
	}
	return m
}

// unitArrow builds a shaft plus cone head. The proportions leave the head a
// quarter of the length and the full unit diameter, so a scale of
// (length, width, width) reproduces the usual marker arrow.
func unitArrow(segments int) meshData {
	const (
		shaftRadius = 0.2
		headRadius  = 0.5
		headStart   = 0.75
	)
	var m meshData

	ring := func(x, radius float64, normal func(cy, cz float64) mgl32.Vec3) uint16 {
		base := uint16(len(m.Vertices))
		for c := 0; c <= segments; c++ {
			theta := 2 * math.Pi * float64(c) / float64(segments)
			cy, cz := math.Cos(theta), math.Sin(theta)
			m.Vertices = append(m.Vertices, meshVertex{
				Position: [3]float32{float32(x), float32(radius * cy), float32(radius * cz)},
				Normal:   normal(cy, cz),
			})
		}
		return base
	}
	quadStrip := func(a, b uint16) {
		for c := 0; c < segments; c++ {
			i0 := a + uint16(c)
			i1 := b + uint16(c)
			m.Indices = append(m.Indices, i0, i0+1, i1, i0+1, i1+1, i1)
		}
	}
	// disk facing -x, closing the back of the shaft and the head.
	disk := func(x, radius float64) {
		center := uint16(len(m.Vertices))
		m.Vertices = append(m.Vertices, meshVertex{Position: [3]float32{float32(x), 0, 0}, Normal: [3]float32{-1, 0, 0}})
		for c := 0; c <= segments; c++ {
			theta := 2 * math.Pi * float64(c) / float64(segments)
			m.Vertices = append(m.Vertices, meshVertex{
				Position: [3]float32{float32(x), float32(radius * math.Cos(theta)), float32(radius * math.Sin(theta))},
				Normal:   [3]float32{-1, 0, 0},
			})
		}
		for c := 0; c < segments; c++ {
			i := center + 1 + uint16(c)
			m.Indices = append(m.Indices, center, i+1, i)
		}
	}

	radial := func(cy, cz float64) mgl32.Vec3 {
		return mgl32.Vec3{0, float32(cy), float32(cz)}
	}
	coneLen := 1 - headStart
	slant := math.Hypot(coneLen, headRadius)
	coneNormal := func(cy, cz float64) mgl32.Vec3 {
		return mgl32.Vec3{
			float32(headRadius / slant),
			float32(cy * coneLen / slant),
			float32(cz * coneLen / slant),
		}
	}

	quadStrip(ring(0, shaftRadius, radial), ring(headStart, shaftRadius, radial))
	quadStrip(ring(headStart, headRadius, coneNormal), ring(1, 0, coneNormal))
	disk(0, shaftRadius)
	disk(headStart, headRadius)
	return m
}
