package shaders

import (
	_ "embed"
)

//go:embed shapes.wgsl
var ShapesWGSL string

//go:embed lines.wgsl
var LinesWGSL string

//go:embed points.wgsl
var PointsWGSL string

//go:embed triangles.wgsl
var TrianglesWGSL string

//go:embed quad.wgsl
var QuadWGSL string

//go:embed text.wgsl
var TextWGSL string
