package app

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gantry3d/gantry/core"
	"github.com/gantry3d/gantry/render"
	"github.com/gantry3d/gantry/source"
)

type SourceKind string

const (
	// SourceNone opens the viewer with an empty scene.
	SourceNone SourceKind = "none"
	// SourceReplay replays a recorded SQLite message log.
	SourceReplay SourceKind = "replay"
	// SourceLive streams messages from a WebSocket server.
	SourceLive SourceKind = "live"
)

// Config is the viewer configuration, loaded from YAML with CLI overrides.
type Config struct {
	Window   WindowConfig      `yaml:"window"`
	Scene    SceneConfig       `yaml:"scene"`
	Camera   *core.CameraState `yaml:"camera"`
	Topics   []TopicConfig     `yaml:"topics"`
	Source   SourceConfig      `yaml:"source"`
	LogLevel string            `yaml:"logLevel"`
}

type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

type SceneConfig struct {
	// RenderFrame poses renderables; empty follows the transform tree root.
	RenderFrame string `yaml:"renderFrame"`
	// FixedFrame is the stable frame for cross-time pose resolution.
	FixedFrame string `yaml:"fixedFrame"`
	// UpAxis is "z" (default) or "y" for Y-up data.
	UpAxis string `yaml:"upAxis"`

	Axes render.AxesOptions `yaml:"axes"`
}

// TopicConfig carries the per-topic display settings. Options that do not
// apply to the topic's family are ignored.
type TopicConfig struct {
	Name       string                    `yaml:"name"`
	Family     source.Family             `yaml:"family"`
	PointCloud *render.PointCloudOptions `yaml:"pointCloud"`
	Grid       *render.GridOptions       `yaml:"grid"`
}

type SourceConfig struct {
	Kind SourceKind `yaml:"kind"`
	// Path is the replay database. Setting it implies kind replay.
	Path string `yaml:"path"`
	// URL is the live WebSocket endpoint. Setting it implies kind live.
	URL string `yaml:"url"`
	// Speed scales replay pacing; 0 replays unthrottled.
	Speed float64 `yaml:"speed"`
}

func DefaultConfig() *Config {
	return &Config{
		Window:   WindowConfig{Width: 1280, Height: 720, Title: "Gantry Viewer"},
		Scene:    SceneConfig{UpAxis: "z", Axes: render.DefaultAxesOptions()},
		Source:   SourceConfig{Kind: SourceNone, Speed: 1},
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML config over the defaults. The result is not yet
// validated; callers apply overrides first.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return c, nil
}

// NewConfigFromCLI assembles the effective config: flags select the config
// file and override its source and log settings.
func NewConfigFromCLI() (*Config, error) {
	var (
		configPath string
		dbPath     string
		wsURL      string
		logLevel   string
	)
	flag.StringVar(&configPath, "c", "", "Path to the YAML configuration file")
	flag.StringVar(&dbPath, "db", "", "Replay the recorded message log at this path")
	flag.StringVar(&wsURL, "ws", "", "Stream live messages from this WebSocket URL")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn or error")
	flag.Parse()

	c := DefaultConfig()
	if configPath != "" {
		var err error
		if c, err = LoadConfig(configPath); err != nil {
			return nil, err
		}
	}
	if dbPath != "" {
		c.Source.Kind = SourceReplay
		c.Source.Path = dbPath
	}
	if wsURL != "" {
		c.Source.Kind = SourceLive
		c.Source.URL = wsURL
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}

	if err := c.Validate(); err != nil {
		flag.Usage()
		return nil, err
	}
	return c, nil
}

// Validate checks the config and fills the source kind in from whichever of
// path and url is set.
func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	switch strings.ToLower(c.Scene.UpAxis) {
	case "", "z", "y":
	default:
		return fmt.Errorf("invalid up axis %q, want z or y", c.Scene.UpAxis)
	}

	if c.Source.Kind == "" {
		switch {
		case c.Source.Path != "":
			c.Source.Kind = SourceReplay
		case c.Source.URL != "":
			c.Source.Kind = SourceLive
		default:
			c.Source.Kind = SourceNone
		}
	}
	switch c.Source.Kind {
	case SourceNone:
	case SourceReplay:
		if c.Source.Path == "" {
			return errors.New("replay source requires a path")
		}
	case SourceLive:
		if c.Source.URL == "" {
			return errors.New("live source requires a url")
		}
	default:
		return fmt.Errorf("invalid source kind %q", c.Source.Kind)
	}
	if c.Source.Speed < 0 {
		return fmt.Errorf("replay speed %f must not be negative", c.Source.Speed)
	}

	seen := make(map[string]struct{}, len(c.Topics))
	for _, tc := range c.Topics {
		if tc.Name == "" {
			return errors.New("topic with empty name")
		}
		if _, dup := seen[tc.Name]; dup {
			return fmt.Errorf("duplicate topic %q", tc.Name)
		}
		seen[tc.Name] = struct{}{}
		if tc.Family != "" && !tc.Family.Valid() {
			return fmt.Errorf("topic %q has unknown family %q", tc.Name, tc.Family)
		}
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level. Call after Validate.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level %q", s)
}

// upAxis maps the config string to the renderer's axis enum.
func (c *Config) upAxis() render.UpAxis {
	if strings.ToLower(c.Scene.UpAxis) == "y" {
		return render.UpY
	}
	return render.UpZ
}

// topicNames lists configured topic names for source subscriptions. Empty
// means every topic.
func (c *Config) topicNames() []string {
	names := make([]string, 0, len(c.Topics))
	for _, tc := range c.Topics {
		names = append(names, tc.Name)
	}
	return names
}
