package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// Pose is a rigid transform from a child coordinate frame into its parent:
// rotate, then translate. Stored in float64; render matrices are produced in
// float32 at the last moment.
type Pose struct {
	Translation mgl64.Vec3
	Rotation    mgl64.Quat
}

func IdentityPose() Pose {
	return Pose{Rotation: mgl64.QuatIdent()}
}

// NewPose builds a pose from a translation and rotation, normalizing the
// rotation. A degenerate (zero-length) quaternion falls back to identity.
func NewPose(translation mgl64.Vec3, rotation mgl64.Quat) Pose {
	if l := rotation.Len(); l < 1e-9 || math.IsNaN(l) {
		rotation = mgl64.QuatIdent()
	} else {
		rotation = rotation.Normalize()
	}
	return Pose{Translation: translation, Rotation: rotation}
}

// Apply maps a point in the child frame into the parent frame.
func (p Pose) Apply(v mgl64.Vec3) mgl64.Vec3 {
	return p.Rotation.Rotate(v).Add(p.Translation)
}

// Mul composes poses so that p.Mul(o).Apply(v) == p.Apply(o.Apply(v)).
func (p Pose) Mul(o Pose) Pose {
	return Pose{
		Translation: p.Rotation.Rotate(o.Translation).Add(p.Translation),
		Rotation:    p.Rotation.Mul(o.Rotation).Normalize(),
	}
}

func (p Pose) Invert() Pose {
	inv := p.Rotation.Inverse()
	return Pose{
		Translation: inv.Rotate(p.Translation.Mul(-1)),
		Rotation:    inv,
	}
}

// Finite reports whether every component is a real number. Poses failing
// this check must never enter the transform tree.
func (p Pose) Finite() bool {
	for i := 0; i < 3; i++ {
		if !finite(p.Translation[i]) {
			return false
		}
	}
	return finite(p.Rotation.W) &&
		finite(p.Rotation.V[0]) &&
		finite(p.Rotation.V[1]) &&
		finite(p.Rotation.V[2])
}

func (p Pose) Mat4() mgl32.Mat4 {
	rot := mgl32.Quat{
		W: float32(p.Rotation.W),
		V: mgl32.Vec3{
			float32(p.Rotation.V[0]),
			float32(p.Rotation.V[1]),
			float32(p.Rotation.V[2]),
		},
	}
	return mgl32.Translate3D(
		float32(p.Translation[0]),
		float32(p.Translation[1]),
		float32(p.Translation[2]),
	).Mul4(rot.Mat4())
}

// LerpPose interpolates between two poses: linear on translation, spherical
// on rotation. t is clamped to [0, 1].
func LerpPose(a, b Pose, t float64) Pose {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return Pose{
		Translation: a.Translation.Add(b.Translation.Sub(a.Translation).Mul(t)),
		Rotation:    mgl64.QuatSlerp(a.Rotation, b.Rotation, t),
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
