package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// CameraState is the external spherical-orbit camera descriptor. Angles are
// in degrees. Phi is the polar angle measured from +Z (0 places the camera
// straight above the target); ThetaOffset is the azimuth about +Z measured
// from -Y toward +X. Target and TargetOffset position the orbit center;
// TargetOrientation rotates the offset frame. Z-up throughout.
//
// Deriving a camera pose from a state is a pure function: the same state
// always yields the same pose, with no dependency on any prior state.
type CameraState struct {
	Distance          float64    `json:"distance" yaml:"distance"`
	Perspective       bool       `json:"perspective" yaml:"perspective"`
	Phi               float64    `json:"phi" yaml:"phi"`
	ThetaOffset       float64    `json:"thetaOffset" yaml:"theta_offset"`
	Target            mgl64.Vec3 `json:"target" yaml:"target"`
	TargetOffset      mgl64.Vec3 `json:"targetOffset" yaml:"target_offset"`
	TargetOrientation mgl64.Quat `json:"targetOrientation" yaml:"-"`
	Fovy              float64    `json:"fovy" yaml:"fovy"`
	Near              float64    `json:"near" yaml:"near"`
	Far               float64    `json:"far" yaml:"far"`
}

func DefaultCameraState() CameraState {
	return CameraState{
		Distance:          20,
		Perspective:       true,
		Phi:               60,
		ThetaOffset:       45,
		TargetOrientation: mgl64.QuatIdent(),
		Fovy:              45,
		Near:              0.5,
		Far:               5000,
	}
}

// normalizedOrientation guards against zero-valued states loaded from
// configs where the quaternion was left empty.
func (s CameraState) normalizedOrientation() mgl64.Quat {
	q := s.TargetOrientation
	if l := q.Len(); l < 1e-9 || math.IsNaN(l) {
		return mgl64.QuatIdent()
	}
	return q.Normalize()
}

// EyeCenterUp resolves the camera eye position, look-at center and up vector
// for the state.
func (s CameraState) EyeCenterUp() (eye, center, up mgl64.Vec3) {
	q := s.normalizedOrientation()
	center = s.Target.Add(q.Rotate(s.TargetOffset))

	var offset mgl64.Vec3
	if s.Perspective {
		phi := mgl64.DegToRad(s.Phi)
		theta := mgl64.DegToRad(s.ThetaOffset)
		offset = mgl64.Vec3{
			s.Distance * math.Sin(phi) * math.Sin(theta),
			-s.Distance * math.Sin(phi) * math.Cos(theta),
			s.Distance * math.Cos(phi),
		}
	} else {
		offset = mgl64.Vec3{0, 0, s.Distance}
	}
	eye = center.Add(q.Rotate(offset))

	up = q.Rotate(mgl64.Vec3{0, 0, 1})
	if s.Perspective {
		// Degenerate when looking straight down; tilt up toward -Y so the
		// view basis stays well defined.
		if math.Abs(math.Sin(mgl64.DegToRad(s.Phi))) < 1e-6 {
			theta := mgl64.DegToRad(s.ThetaOffset)
			up = q.Rotate(mgl64.Vec3{-math.Sin(theta), math.Cos(theta), 0})
		}
	} else {
		theta := mgl64.DegToRad(s.ThetaOffset)
		up = q.Rotate(mgl64.Vec3{-math.Sin(theta), math.Cos(theta), 0})
	}
	return eye, center, up
}

// Pose returns the camera pose in the render frame: the eye position and the
// orientation whose local -Z looks at the center.
func (s CameraState) Pose() Pose {
	eye, center, up := s.EyeCenterUp()
	forward := center.Sub(eye).Normalize()
	right := forward.Cross(up).Normalize()
	realUp := right.Cross(forward)
	m := mgl64.Mat4FromCols(
		right.Vec4(0),
		realUp.Vec4(0),
		forward.Mul(-1).Vec4(0),
		mgl64.Vec4{0, 0, 0, 1},
	)
	return Pose{Translation: eye, Rotation: mgl64.Mat4ToQuat(m)}
}

// ViewMatrix returns the float32 world-to-camera matrix for the state.
func (s CameraState) ViewMatrix() mgl32.Mat4 {
	eye, center, up := s.EyeCenterUp()
	return mgl32.LookAtV(vec3to32(eye), vec3to32(center), vec3to32(up))
}

// ProjectionMatrix returns the projection for the state at the given
// viewport size in pixels.
func (s CameraState) ProjectionMatrix(width, height int) mgl32.Mat4 {
	if width <= 0 || height <= 0 {
		width, height = 1, 1
	}
	aspect := float32(width) / float32(height)
	if s.Perspective {
		return mgl32.Perspective(
			mgl32.DegToRad(float32(s.Fovy)),
			aspect,
			float32(s.Near),
			float32(s.Far),
		)
	}
	halfH := float32(s.Distance) / 2
	halfW := halfH * aspect
	return mgl32.Ortho(-halfW, halfW, -halfH, halfH, float32(s.Near), float32(s.Far))
}

// PickProjection narrows a full-viewport projection to the single pixel at
// (x, y), mapping that pixel to the whole clip space. Pure; the input is not
// modified, so camera state is trivially restored after a pick.
func PickProjection(proj mgl32.Mat4, x, y float64, width, height int) mgl32.Mat4 {
	if width <= 0 || height <= 0 {
		return proj
	}
	w := float32(width)
	h := float32(height)
	ndcX := 2*(float32(x)+0.5)/w - 1
	ndcY := 1 - 2*(float32(y)+0.5)/h

	var m mgl32.Mat4
	m = mgl32.Ident4()
	m.Set(0, 0, w)
	m.Set(1, 1, h)
	m.Set(0, 3, -w*ndcX)
	m.Set(1, 3, -h*ndcY)
	return m.Mul4(proj)
}

func vec3to32(v mgl64.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}
