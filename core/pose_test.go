package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func closeEnough(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

func vecsClose(a, b mgl64.Vec3, epsilon float64) bool {
	for i := 0; i < 3; i++ {
		if !closeEnough(a[i], b[i], epsilon) {
			return false
		}
	}
	return true
}

func posesClose(a, b Pose, epsilon float64) bool {
	if !vecsClose(a.Translation, b.Translation, epsilon) {
		return false
	}
	// q and -q encode the same rotation
	return closeEnough(math.Abs(a.Rotation.Dot(b.Rotation)), 1.0, epsilon)
}

func TestPoseApply(t *testing.T) {
	p := NewPose(
		mgl64.Vec3{1, 2, 3},
		mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}),
	)

	got := p.Apply(mgl64.Vec3{1, 0, 0})
	want := mgl64.Vec3{1, 3, 3} // rotated onto +Y, then translated

	if !vecsClose(got, want, 1e-9) {
		t.Errorf("Apply returned %v, want %v", got, want)
	}
}

func TestPoseMulMatchesNestedApply(t *testing.T) {
	a := NewPose(mgl64.Vec3{1, 0, 0}, mgl64.QuatRotate(0.3, mgl64.Vec3{0, 0, 1}))
	b := NewPose(mgl64.Vec3{0, 2, 0}, mgl64.QuatRotate(-0.7, mgl64.Vec3{1, 0, 0}))
	v := mgl64.Vec3{0.5, -1, 2}

	got := a.Mul(b).Apply(v)
	want := a.Apply(b.Apply(v))

	if !vecsClose(got, want, 1e-9) {
		t.Errorf("composed apply %v, nested apply %v", got, want)
	}
}

func TestPoseInvert(t *testing.T) {
	p := NewPose(mgl64.Vec3{3, -2, 5}, mgl64.QuatRotate(1.1, mgl64.Vec3{0, 1, 0}))

	id := p.Mul(p.Invert())
	if !posesClose(id, IdentityPose(), 1e-9) {
		t.Errorf("p * p^-1 = %v, want identity", id)
	}

	v := mgl64.Vec3{7, 8, 9}
	back := p.Invert().Apply(p.Apply(v))
	if !vecsClose(back, v, 1e-9) {
		t.Errorf("inverse round trip moved %v to %v", v, back)
	}
}

func TestLerpPose(t *testing.T) {
	a := NewPose(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent())
	b := NewPose(mgl64.Vec3{10, 0, 0}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}))

	if got := LerpPose(a, b, 0); !posesClose(got, a, 1e-9) {
		t.Errorf("lerp at 0 should be the first pose, got %v", got)
	}
	if got := LerpPose(a, b, 1); !posesClose(got, b, 1e-9) {
		t.Errorf("lerp at 1 should be the second pose, got %v", got)
	}

	mid := LerpPose(a, b, 0.5)
	if !vecsClose(mid.Translation, mgl64.Vec3{5, 0, 0}, 1e-9) {
		t.Errorf("midpoint translation %v, want {5 0 0}", mid.Translation)
	}
	// Slerp midpoint of a 90 degree turn is a 45 degree turn.
	rotated := mid.Rotation.Rotate(mgl64.Vec3{1, 0, 0})
	want := mgl64.Vec3{math.Sqrt2 / 2, math.Sqrt2 / 2, 0}
	if !vecsClose(rotated, want, 1e-9) {
		t.Errorf("midpoint rotation maps +X to %v, want %v", rotated, want)
	}

	if got := LerpPose(a, b, -1); !posesClose(got, a, 1e-9) {
		t.Errorf("lerp clamps below 0, got %v", got)
	}
	if got := LerpPose(a, b, 2); !posesClose(got, b, 1e-9) {
		t.Errorf("lerp clamps above 1, got %v", got)
	}
}

func TestPoseFinite(t *testing.T) {
	if !IdentityPose().Finite() {
		t.Error("identity pose should be finite")
	}

	bad := IdentityPose()
	bad.Translation[1] = math.NaN()
	if bad.Finite() {
		t.Error("NaN translation should not be finite")
	}

	bad = IdentityPose()
	bad.Rotation.W = math.Inf(1)
	if bad.Finite() {
		t.Error("Inf rotation should not be finite")
	}
}

func TestNewPoseNormalizes(t *testing.T) {
	p := NewPose(mgl64.Vec3{}, mgl64.Quat{W: 2, V: mgl64.Vec3{0, 0, 0}})
	if !closeEnough(p.Rotation.Len(), 1, 1e-9) {
		t.Errorf("rotation length %f, want 1", p.Rotation.Len())
	}

	degenerate := NewPose(mgl64.Vec3{}, mgl64.Quat{})
	if !posesClose(degenerate, IdentityPose(), 1e-9) {
		t.Errorf("zero quaternion should fall back to identity, got %v", degenerate)
	}
}

func TestPoseMat4MatchesApply(t *testing.T) {
	p := NewPose(mgl64.Vec3{1, -2, 0.5}, mgl64.QuatRotate(0.9, mgl64.Vec3{0, 1, 0}))
	m := p.Mat4()

	v := mgl64.Vec3{3, 1, -4}
	want := p.Apply(v)
	got := m.Mul4x1(vec3to32(v).Vec4(1)).Vec3()

	for i := 0; i < 3; i++ {
		if !closeEnough(float64(got[i]), want[i], 1e-5) {
			t.Errorf("Mat4 apply component %d = %f, want %f", i, got[i], want[i])
		}
	}
}
