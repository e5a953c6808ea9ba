package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantry3d/gantry/core"
	"github.com/gantry3d/gantry/render"
	"github.com/gantry3d/gantry/source"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "viewer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 1280, c.Window.Width)
	assert.Equal(t, 720, c.Window.Height)
	assert.Equal(t, "z", c.Scene.UpAxis)
	assert.Equal(t, render.DefaultAxesOptions(), c.Scene.Axes)
	assert.Equal(t, SourceNone, c.Source.Kind)
	assert.Equal(t, 1.0, c.Source.Speed)
	require.NoError(t, c.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
window:
  width: 1600
  height: 900
  title: Rover
scene:
  renderFrame: base_link
  fixedFrame: odom
  axes:
    enabled: true
    scale: 0.5
    labels: false
camera:
  distance: 12
  phi: 45
  theta_offset: 90
  perspective: true
  fovy: 60
  near: 0.1
  far: 1000
topics:
  - name: /scan
    family: pointcloud
    pointCloud:
      point_size: 3
      colormap: rainbow
      decay_time: 500000000
  - name: /map
    family: grid
    grid:
      palette: costmap
      frame_locked: true
source:
  path: session.db
  speed: 2
logLevel: debug
`)
	c, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, WindowConfig{Width: 1600, Height: 900, Title: "Rover"}, c.Window)
	assert.Equal(t, "base_link", c.Scene.RenderFrame)
	assert.Equal(t, "odom", c.Scene.FixedFrame)
	assert.Equal(t, render.AxesOptions{Enabled: true, Scale: 0.5, Labels: false}, c.Scene.Axes)

	require.NotNil(t, c.Camera)
	assert.Equal(t, 12.0, c.Camera.Distance)
	assert.Equal(t, 90.0, c.Camera.ThetaOffset)

	require.Len(t, c.Topics, 2)
	require.NotNil(t, c.Topics[0].PointCloud)
	assert.Equal(t, float32(3), c.Topics[0].PointCloud.PointSize)
	assert.Equal(t, core.ColormapRainbow, c.Topics[0].PointCloud.Colormap)
	assert.Equal(t, int64(500000000), c.Topics[0].PointCloud.DecayTime)
	require.NotNil(t, c.Topics[1].Grid)
	assert.Equal(t, core.PaletteCostmap, c.Topics[1].Grid.Palette)
	assert.True(t, c.Topics[1].Grid.FrameLocked)

	assert.Equal(t, SourceReplay, c.Source.Kind)
	assert.Equal(t, 2.0, c.Source.Speed)
	assert.Equal(t, slog.LevelDebug, c.SlogLevel())
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, "window:\n  title: Minimal\n"))
	require.NoError(t, err)
	assert.Equal(t, 1280, c.Window.Width)
	assert.Equal(t, "Minimal", c.Window.Title)
	assert.Equal(t, 1.0, c.Source.Speed)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfigBadYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "window: ["))
	require.Error(t, err)
}

func TestValidateInfersSourceKind(t *testing.T) {
	tests := []struct {
		name string
		src  SourceConfig
		want SourceKind
	}{
		{"none", SourceConfig{}, SourceNone},
		{"replay from path", SourceConfig{Path: "x.db"}, SourceReplay},
		{"live from url", SourceConfig{URL: "ws://host/feed"}, SourceLive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			c.Source = tt.src
			require.NoError(t, c.Validate())
			assert.Equal(t, tt.want, c.Source.Kind)
		})
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero window", func(c *Config) { c.Window.Width = 0 }},
		{"bad up axis", func(c *Config) { c.Scene.UpAxis = "w" }},
		{"replay without path", func(c *Config) { c.Source.Kind = SourceReplay }},
		{"live without url", func(c *Config) { c.Source.Kind = SourceLive }},
		{"unknown kind", func(c *Config) { c.Source.Kind = "carrier-pigeon" }},
		{"negative speed", func(c *Config) { c.Source.Speed = -1 }},
		{"empty topic name", func(c *Config) { c.Topics = []TopicConfig{{}} }},
		{"duplicate topic", func(c *Config) {
			c.Topics = []TopicConfig{{Name: "/a"}, {Name: "/a"}}
		}},
		{"unknown family", func(c *Config) {
			c.Topics = []TopicConfig{{Name: "/a", Family: "hologram"}}
		}},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidateAcceptsTopicWithoutFamily(t *testing.T) {
	c := DefaultConfig()
	c.Topics = []TopicConfig{{Name: "/tf", Family: source.FamilyTransform}, {Name: "/anything"}}
	require.NoError(t, c.Validate())
	assert.Equal(t, []string{"/tf", "/anything"}, c.topicNames())
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
	}
	for _, tt := range tests {
		c := DefaultConfig()
		c.LogLevel = tt.in
		require.NoError(t, c.Validate())
		assert.Equal(t, tt.want, c.SlogLevel(), "level %q", tt.in)
	}
}

func TestUpAxisMapping(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, render.UpZ, c.upAxis())
	c.Scene.UpAxis = "Y"
	assert.Equal(t, render.UpY, c.upAxis())
}
