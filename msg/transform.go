package msg

import "github.com/gantry3d/gantry/core"

// FrameTransform declares the pose of a child coordinate frame relative to
// its parent at one instant.
type FrameTransform struct {
	ParentFrameID string     `json:"parent_frame_id"`
	ChildFrameID  string     `json:"child_frame_id"`
	Stamp         int64      `json:"stamp"`
	Translation   Vector3    `json:"translation"`
	Rotation      Quaternion `json:"rotation"`
}

func (t *FrameTransform) Pose() core.Pose {
	return core.NewPose(t.Translation.Vec3(), t.Rotation.Quat())
}
