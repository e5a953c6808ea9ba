// Package msg holds the decoded robotics message types the renderer
// consumes. Field layouts follow the common ROS shapes; all timestamps are
// nanosecond-resolution integers.
package msg

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/gantry3d/gantry/core"
)

type Header struct {
	FrameID string `json:"frame_id"`
	Stamp   int64  `json:"stamp"`
}

type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vector3) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

func (v Vector3) Vec3f() mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

func (q Quaternion) Quat() mgl64.Quat {
	return mgl64.Quat{W: q.W, V: mgl64.Vec3{q.X, q.Y, q.Z}}
}

type Pose struct {
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// CorePose converts to the renderer pose type, normalizing the orientation.
func (p Pose) CorePose() core.Pose {
	return core.NewPose(p.Position.Vec3(), p.Orientation.Quat())
}

// ColorRGBA is a display-space (gamma-encoded) color with channels in
// [0, 1]. Convert through core.SRGBAToLinear before lighting use.
type ColorRGBA struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

func (c ColorRGBA) Vec4() mgl32.Vec4 {
	return mgl32.Vec4{c.R, c.G, c.B, c.A}
}
