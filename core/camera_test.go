package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

func TestCameraPoseDeterministic(t *testing.T) {
	s := DefaultCameraState()
	s.Phi = 42
	s.ThetaOffset = 117
	s.Target = mgl64.Vec3{3, -1, 2}

	p1 := s.Pose()

	// Deriving an unrelated pose in between must not leak into the next
	// derivation of the same state.
	other := DefaultCameraState()
	other.Distance = 3
	_ = other.Pose()

	p2 := s.Pose()
	if !posesClose(p1, p2, 1e-12) {
		t.Errorf("pose is not a pure function of state: %v vs %v", p1, p2)
	}
}

func TestCameraEyePositions(t *testing.T) {
	s := DefaultCameraState()
	s.Distance = 10
	s.Target = mgl64.Vec3{1, 2, 3}

	// Horizontal camera; theta 0 places the eye on -Y of the target.
	s.Phi = 90
	s.ThetaOffset = 0
	eye, center, _ := s.EyeCenterUp()
	if !vecsClose(center, s.Target, 1e-9) {
		t.Errorf("center %v, want target %v", center, s.Target)
	}
	if !vecsClose(eye, mgl64.Vec3{1, -8, 3}, 1e-9) {
		t.Errorf("eye at phi=90 theta=0 is %v, want {1 -8 3}", eye)
	}

	// Theta 90 swings the eye onto +X.
	s.ThetaOffset = 90
	eye, _, _ = s.EyeCenterUp()
	if !vecsClose(eye, mgl64.Vec3{11, 2, 3}, 1e-9) {
		t.Errorf("eye at phi=90 theta=90 is %v, want {11 2 3}", eye)
	}

	// Phi 0 is straight above.
	s.Phi = 0
	eye, _, up := s.EyeCenterUp()
	if !vecsClose(eye, mgl64.Vec3{1, 2, 13}, 1e-9) {
		t.Errorf("eye at phi=0 is %v, want {1 2 13}", eye)
	}
	if closeEnough(up[2], 1, 1e-9) {
		t.Error("top-down camera needs a horizontal up vector")
	}
}

func TestCameraTargetOffset(t *testing.T) {
	s := DefaultCameraState()
	s.Target = mgl64.Vec3{0, 0, 0}
	s.TargetOffset = mgl64.Vec3{5, 0, 0}
	s.Phi = 90
	s.ThetaOffset = 0
	s.Distance = 10

	_, center, _ := s.EyeCenterUp()
	if !vecsClose(center, mgl64.Vec3{5, 0, 0}, 1e-9) {
		t.Errorf("center %v, want offset target {5 0 0}", center)
	}
}

func TestCameraViewMatrixCentersTarget(t *testing.T) {
	s := DefaultCameraState()
	s.Distance = 10
	s.Phi = 60
	s.ThetaOffset = 30
	s.Target = mgl64.Vec3{2, 2, 0}

	eye, center, _ := s.EyeCenterUp()
	view := s.ViewMatrix()

	// The eye maps to the view-space origin.
	ve := view.Mul4x1(vec3to32(eye).Vec4(1))
	for i := 0; i < 3; i++ {
		if !closeEnough(float64(ve[i]), 0, 1e-4) {
			t.Errorf("eye in view space component %d = %f, want 0", i, ve[i])
		}
	}

	// The orbit center sits straight ahead on -Z at orbit distance.
	vc := view.Mul4x1(vec3to32(center).Vec4(1))
	if !closeEnough(float64(vc[0]), 0, 1e-4) || !closeEnough(float64(vc[1]), 0, 1e-4) {
		t.Errorf("center in view space = (%f, %f), want on the view axis", vc[0], vc[1])
	}
	if !closeEnough(float64(vc[2]), -10, 1e-4) {
		t.Errorf("center depth %f, want -10", vc[2])
	}
}

func TestCameraPoseLooksAtCenter(t *testing.T) {
	s := DefaultCameraState()
	s.Distance = 7
	s.Phi = 45
	s.ThetaOffset = 80

	pose := s.Pose()
	eye, center, _ := s.EyeCenterUp()

	if !vecsClose(pose.Translation, eye, 1e-9) {
		t.Errorf("pose translation %v, want eye %v", pose.Translation, eye)
	}
	// Camera space looks down its local -Z.
	forward := pose.Rotation.Rotate(mgl64.Vec3{0, 0, -1})
	want := center.Sub(eye).Normalize()
	if !vecsClose(forward, want, 1e-9) {
		t.Errorf("pose forward %v, want %v", forward, want)
	}
}

func TestOrthographicProjection(t *testing.T) {
	s := DefaultCameraState()
	s.Perspective = false
	s.Distance = 20

	m := s.ProjectionMatrix(800, 800)
	// Half height is distance/2, so the X scale is 1/halfW = 0.1.
	if !closeEnough(float64(m.At(0, 0)), 0.1, 1e-6) {
		t.Errorf("ortho x scale %f, want 0.1", m.At(0, 0))
	}
}

func TestProjectionDegenerateViewport(t *testing.T) {
	s := DefaultCameraState()
	m := s.ProjectionMatrix(0, 0)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			f := float64(m.At(i, j))
			if f != f {
				t.Fatal("projection with zero viewport produced NaN")
			}
		}
	}
}

func TestPickProjectionCentersPixel(t *testing.T) {
	const w, h = 320, 240
	s := DefaultCameraState()
	proj := s.ProjectionMatrix(w, h)

	// Project a camera-space point, find the pixel it lands on, then check
	// the pick projection maps it to the clip-space center.
	v := mgl32.Vec4{0.3, -0.2, -5, 1}
	clip := proj.Mul4x1(v)
	ndcX := clip[0] / clip[3]
	ndcY := clip[1] / clip[3]
	px := float64((ndcX+1)/2*w - 0.5)
	py := float64((1-ndcY)/2*h - 0.5)

	pick := PickProjection(proj, px, py, w, h)
	pclip := pick.Mul4x1(v)
	if !closeEnough(float64(pclip[0]/pclip[3]), 0, 1e-4) {
		t.Errorf("picked pixel x maps to NDC %f, want 0", pclip[0]/pclip[3])
	}
	if !closeEnough(float64(pclip[1]/pclip[3]), 0, 1e-4) {
		t.Errorf("picked pixel y maps to NDC %f, want 0", pclip[1]/pclip[3])
	}

	// Depth is untouched by the pixel restriction.
	if !closeEnough(float64(pclip[2]/pclip[3]), float64(clip[2]/clip[3]), 1e-5) {
		t.Errorf("pick projection changed depth: %f vs %f", pclip[2]/pclip[3], clip[2]/clip[3])
	}
}

func TestPickProjectionLeavesInputAlone(t *testing.T) {
	s := DefaultCameraState()
	proj := s.ProjectionMatrix(100, 100)
	before := proj
	_ = PickProjection(proj, 10, 20, 100, 100)
	if proj != before {
		t.Error("PickProjection must not modify its input")
	}
}
