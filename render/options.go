package render

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gantry3d/gantry/core"
	"github.com/gantry3d/gantry/msg"
)

// UpAxis selects which axis of incoming data points up. The renderer bakes
// the correction into the view matrix so renderables never see it.
type UpAxis uint8

const (
	UpZ UpAxis = iota
	UpY
)

// Options configures a Renderer at construction time.
type Options struct {
	// Backend is required. Headless callers pass a stub.
	Backend Backend

	// Width and Height are the initial canvas size in pixels.
	Width  int
	Height int

	// RenderFrame is the frame renderables are posed in. FixedFrame is the
	// stable root used as the halfway point when resolving poses across
	// time. Both may be changed later and are re-read every frame.
	RenderFrame string
	FixedFrame  string

	// Up defaults to UpZ.
	Up UpAxis

	// Camera is the initial camera state. Zero value means defaults.
	Camera *core.CameraState

	// ClearColor is display-space; zero value means the default dark gray.
	ClearColor *msg.ColorRGBA

	// LabelSize is the glyph atlas font size in pixels. Zero means 20.
	LabelSize float64

	// Tree supplies an externally owned transform tree. Nil means the
	// renderer creates its own.
	Tree *core.TransformTree
}

const defaultLabelSize = 20

func defaultClearColor() mgl32.Vec4 {
	// 0x121217 in display space.
	return mgl32.Vec4{
		core.SRGBToLinear(0x12 / 255.0),
		core.SRGBToLinear(0x12 / 255.0),
		core.SRGBToLinear(0x17 / 255.0),
		1,
	}
}

// PointCloudOptions are the per-topic display settings for point clouds.
type PointCloudOptions struct {
	// PointSize is in pixels.
	PointSize float32 `json:"point_size" yaml:"point_size"`

	// Colormap maps intensity to color when the cloud has no packed color.
	Colormap core.Colormap `json:"colormap" yaml:"colormap"`

	// FlatColor is used when Colormap is ColormapFlat. Display-space.
	FlatColor msg.ColorRGBA `json:"flat_color" yaml:"flat_color"`

	// DecayTime keeps past clouds on screen for this many nanoseconds.
	// Zero shows only the latest cloud.
	DecayTime int64 `json:"decay_time" yaml:"decay_time"`
}

func DefaultPointCloudOptions() PointCloudOptions {
	return PointCloudOptions{
		PointSize: 2,
		Colormap:  core.ColormapTurbo,
		FlatColor: msg.ColorRGBA{R: 1, G: 1, B: 1, A: 1},
	}
}

// GridOptions are the per-topic display settings for occupancy grids.
type GridOptions struct {
	Palette core.GridPalette `json:"palette" yaml:"palette"`

	// FrameLocked re-resolves the grid pose at display time instead of
	// pinning it at the message stamp.
	FrameLocked bool `json:"frame_locked" yaml:"frame_locked"`
}

func DefaultGridOptions() GridOptions {
	return GridOptions{Palette: core.PaletteMap}
}

// AxesOptions control the rendered frame axis triads.
type AxesOptions struct {
	// Enabled toggles the triads entirely.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Scale is the axis arrow length in meters.
	Scale float64 `json:"scale" yaml:"scale"`

	// Labels toggles the per-frame name labels.
	Labels bool `json:"labels" yaml:"labels"`
}

func DefaultAxesOptions() AxesOptions {
	return AxesOptions{Enabled: true, Scale: 1, Labels: true}
}
