package msg

import "math"

type MarkerType int32

const (
	MarkerArrow          MarkerType = 0
	MarkerCube           MarkerType = 1
	MarkerSphere         MarkerType = 2
	MarkerCylinder       MarkerType = 3
	MarkerLineStrip      MarkerType = 4
	MarkerLineList       MarkerType = 5
	MarkerCubeList       MarkerType = 6
	MarkerSphereList     MarkerType = 7
	MarkerPoints         MarkerType = 8
	MarkerTextViewFacing MarkerType = 9
	MarkerMeshResource   MarkerType = 10
	MarkerTriangleList   MarkerType = 11
)

type MarkerAction int32

const (
	MarkerAdd       MarkerAction = 0
	MarkerModify    MarkerAction = 0
	MarkerDelete    MarkerAction = 2
	MarkerDeleteAll MarkerAction = 3
)

// Marker is one visualization primitive. Markers on a topic are keyed by
// (namespace, id); a later marker with the same key replaces the earlier
// one.
type Marker struct {
	Header      Header       `json:"header"`
	Namespace   string       `json:"ns"`
	ID          int32        `json:"id"`
	Type        MarkerType   `json:"type"`
	Action      MarkerAction `json:"action"`
	Pose        Pose         `json:"pose"`
	Scale       Vector3      `json:"scale"`
	Color       ColorRGBA    `json:"color"`
	Colors      []ColorRGBA  `json:"colors,omitempty"`
	Points      []Vector3    `json:"points,omitempty"`
	Text        string       `json:"text,omitempty"`
	MeshURL     string       `json:"mesh_resource,omitempty"`
	Lifetime    int64        `json:"lifetime"`
	FrameLocked bool         `json:"frame_locked"`
}

// ExpiresAt returns the absolute expiry stamp, or the maximum int64 when the
// marker never expires (lifetime zero).
func (m *Marker) ExpiresAt() int64 {
	if m.Lifetime <= 0 {
		return math.MaxInt64
	}
	return m.Header.Stamp + m.Lifetime
}

func (t MarkerType) String() string {
	switch t {
	case MarkerArrow:
		return "arrow"
	case MarkerCube:
		return "cube"
	case MarkerSphere:
		return "sphere"
	case MarkerCylinder:
		return "cylinder"
	case MarkerLineStrip:
		return "line_strip"
	case MarkerLineList:
		return "line_list"
	case MarkerCubeList:
		return "cube_list"
	case MarkerSphereList:
		return "sphere_list"
	case MarkerPoints:
		return "points"
	case MarkerTextViewFacing:
		return "text_view_facing"
	case MarkerMeshResource:
		return "mesh_resource"
	case MarkerTriangleList:
		return "triangle_list"
	}
	return "unknown"
}
