package core

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

func sec(s float64) int64 {
	return int64(s * float64(time.Second))
}

func trPose(x, y, z float64) Pose {
	return NewPose(mgl64.Vec3{x, y, z}, mgl64.QuatIdent())
}

func TestTreeDirectLookup(t *testing.T) {
	tree := NewTransformTree()
	pose := NewPose(mgl64.Vec3{1, 2, 3}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}))

	if !tree.AddTransform("map", "base", sec(10), pose) {
		t.Fatal("AddTransform should accept a finite sample")
	}

	got, ok := tree.Lookup("base", "map", sec(10))
	if !ok {
		t.Fatal("lookup base->map should resolve")
	}
	if !posesClose(got, pose, 1e-9) {
		t.Errorf("lookup returned %v, want %v", got, pose)
	}

	// A point on the child +X axis lands on the parent +Y axis after the
	// quarter turn, plus the translation.
	p := got.Apply(mgl64.Vec3{1, 0, 0})
	if !vecsClose(p, mgl64.Vec3{1, 3, 3}, 1e-9) {
		t.Errorf("transformed point %v, want {1 3 3}", p)
	}
}

func TestTreeInverseLookup(t *testing.T) {
	tree := NewTransformTree()
	pose := NewPose(mgl64.Vec3{4, -1, 2}, mgl64.QuatRotate(0.8, mgl64.Vec3{1, 1, 0}.Normalize()))
	tree.AddTransform("map", "base", sec(5), pose)

	fwd, ok1 := tree.Lookup("base", "map", sec(5))
	rev, ok2 := tree.Lookup("map", "base", sec(5))
	if !ok1 || !ok2 {
		t.Fatal("both lookup directions should resolve")
	}

	id := fwd.Mul(rev)
	if !posesClose(id, IdentityPose(), 1e-9) {
		t.Errorf("forward * reverse = %v, want identity", id)
	}
}

func TestTreeChainComposition(t *testing.T) {
	tree := NewTransformTree()
	pa := NewPose(mgl64.Vec3{1, 0, 0}, mgl64.QuatRotate(0.4, mgl64.Vec3{0, 0, 1}))
	pb := NewPose(mgl64.Vec3{0, 2, 0}, mgl64.QuatRotate(-0.2, mgl64.Vec3{0, 1, 0}))
	tree.AddTransform("map", "odom", sec(1), pa)
	tree.AddTransform("odom", "base", sec(1), pb)

	got, ok := tree.Lookup("base", "map", sec(1))
	if !ok {
		t.Fatal("chained lookup should resolve")
	}
	want := pa.Mul(pb)
	if !posesClose(got, want, 1e-9) {
		t.Errorf("chained lookup %v, want direct composition %v", got, want)
	}
}

func TestTreeDiamondResolvesConsistently(t *testing.T) {
	// Two equal-length paths from c to a carrying consistent transforms.
	tree := NewTransformTree()
	tree.AddTransform("a", "b", sec(1), trPose(1, 0, 0))
	tree.AddTransform("b", "c", sec(1), trPose(1, 0, 0))
	tree.AddTransform("a", "d", sec(1), trPose(0, 1, 0))
	tree.AddTransform("d", "c", sec(1), trPose(2, -1, 0))

	got, ok := tree.Lookup("c", "a", sec(1))
	if !ok {
		t.Fatal("diamond lookup should resolve")
	}
	if !posesClose(got, trPose(2, 0, 0), 1e-9) {
		t.Errorf("diamond lookup %v, want translation {2 0 0}", got)
	}
}

func TestTreeInterpolation(t *testing.T) {
	tree := NewTransformTree()
	tree.AddTransform("map", "base", sec(0), trPose(0, 0, 0))
	tree.AddTransform("map", "base", sec(10), trPose(10, 0, 0))

	got, ok := tree.Lookup("base", "map", sec(2.5))
	if !ok {
		t.Fatal("in-range lookup should resolve")
	}
	if !vecsClose(got.Translation, mgl64.Vec3{2.5, 0, 0}, 1e-9) {
		t.Errorf("interpolated translation %v, want {2.5 0 0}", got.Translation)
	}
}

func TestTreeNearestPolicy(t *testing.T) {
	tree := NewTransformTree(WithInterpolation(false))
	tree.AddTransform("map", "base", sec(0), trPose(0, 0, 0))
	tree.AddTransform("map", "base", sec(10), trPose(10, 0, 0))

	got, _ := tree.Lookup("base", "map", sec(2.4))
	if !vecsClose(got.Translation, mgl64.Vec3{0, 0, 0}, 1e-9) {
		t.Errorf("nearest at 2.4s should snap to the earlier sample, got %v", got.Translation)
	}
	got, _ = tree.Lookup("base", "map", sec(7.5))
	if !vecsClose(got.Translation, mgl64.Vec3{10, 0, 0}, 1e-9) {
		t.Errorf("nearest at 7.5s should snap to the later sample, got %v", got.Translation)
	}
}

func TestTreeOutOfRangeTolerance(t *testing.T) {
	tree := NewTransformTree()
	tree.AddTransform("map", "base", sec(10), trPose(1, 0, 0))

	if _, ok := tree.Lookup("base", "map", sec(10.5)); !ok {
		t.Error("lookup half a second past the last sample should use it")
	}
	if _, ok := tree.Lookup("base", "map", sec(12)); ok {
		t.Error("lookup two seconds past the last sample should fail")
	}
	if _, ok := tree.Lookup("base", "map", sec(9.5)); !ok {
		t.Error("lookup half a second before the first sample should use it")
	}
	if _, ok := tree.Lookup("base", "map", sec(8)); ok {
		t.Error("lookup two seconds before the first sample should fail")
	}
}

func TestTreeEviction(t *testing.T) {
	tree := NewTransformTree()
	tree.AddTransform("map", "base", sec(0), trPose(0, 0, 0))
	tree.AddTransform("map", "base", sec(30), trPose(30, 0, 0))
	if n := tree.SampleCount(); n != 2 {
		t.Fatalf("expected 2 samples inside the window, got %d", n)
	}

	// A sample at 90s moves the cutoff to 30s and evicts the one at 0s.
	tree.AddTransform("map", "base", sec(90), trPose(90, 0, 0))
	if n := tree.SampleCount(); n != 2 {
		t.Errorf("expected the 0s sample to be evicted, have %d samples", n)
	}
	if _, ok := tree.Lookup("base", "map", sec(0)); ok {
		t.Error("evicted sample should not be reachable")
	}
	if _, ok := tree.Lookup("base", "map", sec(30)); !ok {
		t.Error("sample at the cutoff should be retained")
	}
}

func TestTreeRejectsStaleSample(t *testing.T) {
	tree := NewTransformTree()
	tree.AddTransform("map", "base", sec(100), trPose(100, 0, 0))

	if tree.AddTransform("map", "base", sec(30), trPose(30, 0, 0)) {
		t.Error("sample 70s older than the pair's latest should be dropped")
	}
	if n := tree.SampleCount(); n != 1 {
		t.Errorf("sample count %d, want 1", n)
	}

	if !tree.AddTransform("map", "base", sec(50), trPose(50, 0, 0)) {
		t.Error("sample inside the retention window should be stored")
	}
	if _, ok := tree.Lookup("base", "map", sec(50)); !ok {
		t.Error("in-window sample should be queryable")
	}
}

func TestTreeEvictionIsPerEdge(t *testing.T) {
	tree := NewTransformTree()
	tree.AddTransform("map", "base", sec(200), trPose(1, 0, 0))
	// A different pair far in the past is unaffected by the first pair's
	// latest sample.
	if !tree.AddTransform("map", "lidar", sec(10), trPose(2, 0, 0)) {
		t.Error("edges evict independently; the old pair should accept its sample")
	}
	if _, ok := tree.Lookup("lidar", "map", sec(10)); !ok {
		t.Error("sample on the second edge should be queryable at its own time")
	}
}

func TestTreeDisconnectedGraphs(t *testing.T) {
	tree := NewTransformTree()
	tree.AddTransform("map", "base", sec(1), trPose(1, 0, 0))
	tree.AddTransform("world", "cam", sec(1), trPose(0, 1, 0))

	if _, ok := tree.Lookup("base", "cam", sec(1)); ok {
		t.Error("lookup across disconnected trees should fail")
	}
	if _, ok := tree.Lookup("base", "map", sec(1)); !ok {
		t.Error("lookup inside the first tree should resolve")
	}
	if _, ok := tree.Lookup("cam", "world", sec(1)); !ok {
		t.Error("lookup inside the second tree should resolve")
	}
}

func TestTreeUnknownFrames(t *testing.T) {
	tree := NewTransformTree()
	tree.AddTransform("map", "base", sec(1), trPose(1, 0, 0))

	if _, ok := tree.Lookup("nope", "map", sec(1)); ok {
		t.Error("unknown source frame should not resolve")
	}
	if _, ok := tree.Lookup("map", "nope", sec(1)); ok {
		t.Error("unknown destination frame should not resolve")
	}

	got, ok := tree.Lookup("map", "map", sec(1))
	if !ok {
		t.Fatal("identity lookup on a known frame should resolve")
	}
	if !posesClose(got, IdentityPose(), 1e-12) {
		t.Errorf("identity lookup returned %v", got)
	}
}

func TestTreeRejectsBadSamples(t *testing.T) {
	tree := NewTransformTree()

	bad := trPose(0, 0, 0)
	bad.Translation[0] = math.NaN()
	if tree.AddTransform("map", "base", sec(1), bad) {
		t.Error("non-finite pose should be dropped")
	}
	if tree.AddTransform("map", "map", sec(1), trPose(1, 0, 0)) {
		t.Error("self-referencing transform should be dropped")
	}
	if n := tree.SampleCount(); n != 0 {
		t.Errorf("rejected samples should not be stored, have %d", n)
	}
	if tree.HasFrame("base") {
		t.Error("rejected sample should not register its frames")
	}
}

func TestTreeSameStampReplaces(t *testing.T) {
	tree := NewTransformTree()
	tree.AddTransform("map", "base", sec(1), trPose(1, 0, 0))
	tree.AddTransform("map", "base", sec(1), trPose(2, 0, 0))

	if n := tree.SampleCount(); n != 1 {
		t.Fatalf("same-stamp insert should replace, have %d samples", n)
	}
	got, _ := tree.Lookup("base", "map", sec(1))
	if !vecsClose(got.Translation, mgl64.Vec3{2, 0, 0}, 1e-12) {
		t.Errorf("lookup should see the replacement, got %v", got.Translation)
	}
}

func TestTreeOutOfOrderInsert(t *testing.T) {
	tree := NewTransformTree()
	tree.AddTransform("map", "base", sec(10), trPose(10, 0, 0))
	tree.AddTransform("map", "base", sec(2), trPose(2, 0, 0))
	tree.AddTransform("map", "base", sec(6), trPose(6, 0, 0))

	got, ok := tree.Lookup("base", "map", sec(4))
	if !ok {
		t.Fatal("lookup between out-of-order samples should resolve")
	}
	if !vecsClose(got.Translation, mgl64.Vec3{4, 0, 0}, 1e-9) {
		t.Errorf("interpolation across reordered samples %v, want {4 0 0}", got.Translation)
	}
}

func TestTreeFrames(t *testing.T) {
	tree := NewTransformTree()
	tree.AddTransform("odom", "base", sec(1), trPose(0, 0, 0))
	tree.AddTransform("map", "odom", sec(1), trPose(0, 0, 0))

	got := tree.Frames()
	want := []string{"base", "map", "odom"}
	if !slices.Equal(got, want) {
		t.Errorf("Frames() = %v, want %v", got, want)
	}
	if !tree.HasFrame("odom") || tree.HasFrame("nope") {
		t.Error("HasFrame misreported membership")
	}
}

func TestTreeClear(t *testing.T) {
	tree := NewTransformTree()
	tree.AddTransform("map", "base", sec(1), trPose(1, 0, 0))
	tree.Clear()

	if tree.SampleCount() != 0 || tree.EdgeCount() != 0 || len(tree.Frames()) != 0 {
		t.Error("Clear should drop all state")
	}
	if _, ok := tree.Lookup("base", "map", sec(1)); ok {
		t.Error("lookup after Clear should fail")
	}
}

func TestTreeRetentionOption(t *testing.T) {
	tree := NewTransformTree(WithRetention(5 * time.Second))
	tree.AddTransform("map", "base", sec(0), trPose(0, 0, 0))
	tree.AddTransform("map", "base", sec(10), trPose(10, 0, 0))

	if n := tree.SampleCount(); n != 1 {
		t.Errorf("short retention should have evicted the first sample, have %d", n)
	}
}
