package core

import (
	"slices"
	"sort"
	"time"

	"github.com/gantry3d/gantry"
)

const (
	// DefaultRetention bounds how old a sample may be relative to the newest
	// sample stored for the same frame pair before it is evicted.
	DefaultRetention = 60 * time.Second

	// DefaultMaxDelta is how far outside an edge's sample range a lookup may
	// fall and still resolve to the nearest sample.
	DefaultMaxDelta = time.Second
)

type transformSample struct {
	stamp int64
	pose  Pose
}

// frameEdge holds the time-ordered samples for one (parent, child) pair.
// Samples are kept in non-decreasing stamp order.
type frameEdge struct {
	parent  string
	child   string
	samples []transformSample
}

// TransformTree maintains a time-indexed graph of coordinate-frame
// transforms. Edges connect child frames to parent frames; lookups traverse
// the graph undirected, inverting edges walked against their direction.
// Multiple disconnected trees are legal and no global root is assumed.
//
// Not safe for concurrent use; callers serialize access on the render loop.
type TransformTree struct {
	retention   int64
	maxDelta    int64
	interpolate bool

	edges     map[edgeKey]*frameEdge
	adjacency map[string][]*frameEdge
	frames    map[string]struct{}
}

type edgeKey struct {
	parent string
	child  string
}

type TreeOption func(*TransformTree)

// WithRetention overrides the per-edge sample retention window.
func WithRetention(d time.Duration) TreeOption {
	return func(t *TransformTree) { t.retention = int64(d) }
}

// WithMaxDelta overrides the out-of-range nearest-sample tolerance.
func WithMaxDelta(d time.Duration) TreeOption {
	return func(t *TransformTree) { t.maxDelta = int64(d) }
}

// WithInterpolation selects between interpolating bracketing samples and
// snapping to the nearest one. Interpolation is the default.
func WithInterpolation(enabled bool) TreeOption {
	return func(t *TransformTree) { t.interpolate = enabled }
}

func NewTransformTree(opts ...TreeOption) *TransformTree {
	t := &TransformTree{
		retention:   int64(DefaultRetention),
		maxDelta:    int64(DefaultMaxDelta),
		interpolate: true,
		edges:       make(map[edgeKey]*frameEdge),
		adjacency:   make(map[string][]*frameEdge),
		frames:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AddTransform inserts a transform sample for the (parent, child) pair,
// keeping the pair's samples in timestamp order and evicting samples older
// than the pair's newest stamp minus the retention window. Samples with
// non-finite values are dropped with a warning. Reports whether the sample
// was stored.
func (t *TransformTree) AddTransform(parent, child string, stamp int64, pose Pose) bool {
	if parent == child {
		gantry.Log().Warnf("transform %q -> %q references itself, dropped", parent, child)
		return false
	}
	if !pose.Finite() {
		gantry.Log().Warnf("transform %q -> %q at %d has non-finite values, dropped", parent, child, stamp)
		return false
	}

	key := edgeKey{parent: parent, child: child}
	edge := t.edges[key]
	if edge != nil && len(edge.samples) > 0 {
		if latest := edge.samples[len(edge.samples)-1].stamp; stamp < latest-t.retention {
			gantry.Log().Debugf("transform %q -> %q at %d is outside the retention window, dropped", parent, child, stamp)
			return false
		}
	}
	if edge == nil {
		edge = &frameEdge{parent: parent, child: child}
		t.edges[key] = edge
		t.adjacency[parent] = append(t.adjacency[parent], edge)
		t.adjacency[child] = append(t.adjacency[child], edge)
		t.frames[parent] = struct{}{}
		t.frames[child] = struct{}{}
	}

	i := sort.Search(len(edge.samples), func(i int) bool {
		return edge.samples[i].stamp >= stamp
	})
	if i < len(edge.samples) && edge.samples[i].stamp == stamp {
		edge.samples[i].pose = pose
	} else {
		edge.samples = slices.Insert(edge.samples, i, transformSample{stamp: stamp, pose: pose})
	}

	cutoff := edge.samples[len(edge.samples)-1].stamp - t.retention
	evict := 0
	for evict < len(edge.samples) && edge.samples[evict].stamp < cutoff {
		evict++
	}
	if evict > 0 {
		edge.samples = slices.Delete(edge.samples, 0, evict)
	}
	return true
}

// Lookup resolves the pose of frame `from` relative to frame `to` at the
// given time: the returned pose maps coordinates in `from` into `to`. The
// chain of edges connecting the frames is found by breadth-first search and
// each edge is resolved at the query time. Reports ok=false when either
// frame is unknown, no chain connects them, or any edge on the chain cannot
// be resolved at that time.
func (t *TransformTree) Lookup(from, to string, at int64) (Pose, bool) {
	if _, ok := t.frames[from]; !ok {
		return Pose{}, false
	}
	if _, ok := t.frames[to]; !ok {
		return Pose{}, false
	}
	if from == to {
		return IdentityPose(), true
	}

	type hop struct {
		prev     string
		edge     *frameEdge
		inverted bool
	}
	visited := map[string]hop{from: {}}
	queue := []string{from}
	found := false
	for len(queue) > 0 && !found {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range t.adjacency[cur] {
			next := e.parent
			inverted := false
			if next == cur {
				next = e.child
				inverted = true
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = hop{prev: cur, edge: e, inverted: inverted}
			if next == to {
				found = true
				break
			}
			queue = append(queue, next)
		}
	}
	if !found {
		return Pose{}, false
	}

	// Walk back from `to`, composing each resolved edge. The accumulated
	// pose always maps `from` into the frame reached so far.
	var chain []hop
	for cur := to; cur != from; {
		h := visited[cur]
		chain = append(chain, h)
		cur = h.prev
	}
	acc := IdentityPose()
	for i := len(chain) - 1; i >= 0; i-- {
		step, ok := t.resolveEdge(chain[i].edge, at)
		if !ok {
			return Pose{}, false
		}
		if chain[i].inverted {
			step = step.Invert()
		}
		acc = step.Mul(acc)
	}
	return acc, true
}

func (t *TransformTree) resolveEdge(e *frameEdge, at int64) (Pose, bool) {
	s := e.samples
	if len(s) == 0 {
		return Pose{}, false
	}
	first, last := s[0], s[len(s)-1]
	if at <= first.stamp {
		if first.stamp-at <= t.maxDelta {
			return first.pose, true
		}
		return Pose{}, false
	}
	if at >= last.stamp {
		if at-last.stamp <= t.maxDelta {
			return last.pose, true
		}
		return Pose{}, false
	}
	i := sort.Search(len(s), func(i int) bool { return s[i].stamp >= at })
	if s[i].stamp == at {
		return s[i].pose, true
	}
	lo, hi := s[i-1], s[i]
	frac := float64(at-lo.stamp) / float64(hi.stamp-lo.stamp)
	if !t.interpolate {
		if frac < 0.5 {
			return lo.pose, true
		}
		return hi.pose, true
	}
	return LerpPose(lo.pose, hi.pose, frac), true
}

func (t *TransformTree) HasFrame(id string) bool {
	_, ok := t.frames[id]
	return ok
}

// RegisterFrame records a frame id without any transform samples. Messages
// may reference frames before a transform involving them arrives;
// registering lets same-frame lookups resolve to identity in the meantime.
func (t *TransformTree) RegisterFrame(id string) {
	if id == "" {
		return
	}
	t.frames[id] = struct{}{}
}

// parentOf returns the first recorded parent of id.
func (t *TransformTree) parentOf(id string) (string, bool) {
	for _, e := range t.adjacency[id] {
		if e.child == id {
			return e.parent, true
		}
	}
	return "", false
}

// RootOf follows parent edges from id to the top of its tree. A frame caught
// in a parent cycle resolves to the last frame reached before the cycle
// repeats.
func (t *TransformTree) RootOf(id string) string {
	if _, ok := t.frames[id]; !ok {
		return id
	}
	visited := map[string]bool{id: true}
	cur := id
	for {
		parent, ok := t.parentOf(cur)
		if !ok || visited[parent] {
			return cur
		}
		visited[parent] = true
		cur = parent
	}
}

// RootFrames returns the sorted ids of frames that have no parent edge.
func (t *TransformTree) RootFrames() []string {
	var roots []string
	for id := range t.frames {
		if _, ok := t.parentOf(id); !ok {
			roots = append(roots, id)
		}
	}
	slices.Sort(roots)
	return roots
}

// Frames returns all known frame ids in sorted order.
func (t *TransformTree) Frames() []string {
	frames := make([]string, 0, len(t.frames))
	for id := range t.frames {
		frames = append(frames, id)
	}
	slices.Sort(frames)
	return frames
}

// SampleCount returns the total number of retained samples across all edges.
func (t *TransformTree) SampleCount() int {
	n := 0
	for _, e := range t.edges {
		n += len(e.samples)
	}
	return n
}

func (t *TransformTree) EdgeCount() int { return len(t.edges) }

// Clear drops all frames, edges and samples, e.g. when a replay seeks
// backwards in time.
func (t *TransformTree) Clear() {
	t.edges = make(map[edgeKey]*frameEdge)
	t.adjacency = make(map[string][]*frameEdge)
	t.frames = make(map[string]struct{})
}
