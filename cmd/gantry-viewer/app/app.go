// Package app wires the window, the renderer and a message source into the
// interactive viewer.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gantry3d/gantry"
	"github.com/gantry3d/gantry/gpu"
	"github.com/gantry3d/gantry/msg"
	"github.com/gantry3d/gantry/render"
	"github.com/gantry3d/gantry/source"
)

const (
	// envelopeBuffer decouples source pacing from frame pacing.
	envelopeBuffer = 256

	// maxMessagesPerFrame bounds per-frame scene updates so an unthrottled
	// replay cannot starve rendering.
	maxMessagesPerFrame = 1024

	statsInterval = 10 * time.Second
)

// Run owns the window and the render loop until the window closes or ctx is
// canceled. Must be called from the main OS thread.
func Run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	gantry.SetLogger(gantry.NewSlogLogger(logger))

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("initializing glfw: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		return fmt.Errorf("creating window: %w", err)
	}
	defer window.Destroy()

	backend, err := gpu.New(window)
	if err != nil {
		return fmt.Errorf("initializing gpu backend: %w", err)
	}

	fbW, fbH := window.GetFramebufferSize()
	renderer, err := render.New(render.Options{
		Backend:     backend,
		Width:       fbW,
		Height:      fbH,
		RenderFrame: cfg.Scene.RenderFrame,
		FixedFrame:  cfg.Scene.FixedFrame,
		Up:          cfg.upAxis(),
		Camera:      cfg.Camera,
	})
	if err != nil {
		backend.Release()
		return fmt.Errorf("initializing renderer: %w", err)
	}
	// Dispose releases the backend as well.
	defer renderer.Dispose()

	if err := configureScene(renderer, cfg); err != nil {
		return err
	}

	renderer.Events().Subscribe(render.EventObjectSelect, func(ev render.Event) {
		logger.Info("object selected",
			"topic", ev.Key.Topic,
			"namespace", ev.Key.Namespace,
			"id", ev.Key.ID,
		)
	})

	srcCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	envCh := make(chan source.Envelope, envelopeBuffer)
	sink := source.SinkFunc(func(env *source.Envelope) error {
		select {
		case envCh <- *env:
			return nil
		case <-srcCtx.Done():
			return srcCtx.Err()
		}
	})
	srcErr := make(chan error, 1)
	go func() {
		srcErr <- runSource(srcCtx, cfg, sink)
	}()

	window.SetFramebufferSizeCallback(func(_ *glfw.Window, w, h int) {
		if err := renderer.Resize(w, h); err != nil {
			logger.Warn("resize failed", "error", err)
		}
	})
	installCameraControl(window, renderer, logger)

	cursor := newTimeCursor()
	statsTick := time.NewTicker(statsInterval)
	defer statsTick.Stop()

	logger.Info("viewer ready",
		"size", fmt.Sprintf("%dx%d", cfg.Window.Width, cfg.Window.Height),
		"source", string(cfg.Source.Kind),
	)

	for !window.ShouldClose() {
		glfw.PollEvents()
		if ctx.Err() != nil {
			window.SetShouldClose(true)
			continue
		}

		drainMessages(renderer, envCh, cursor, logger)
		if err := renderer.RenderFrame(cursor.now()); err != nil {
			return fmt.Errorf("rendering: %w", err)
		}

		select {
		case <-statsTick.C:
			logStats(logger, renderer.Stats())
		default:
		}
	}

	cancel()
	if err := <-srcErr; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("source: %w", err)
	}
	return nil
}

// runSource drives the configured message source until ctx is canceled.
// SourceNone returns immediately and leaves the scene empty.
func runSource(ctx context.Context, cfg *Config, sink source.Sink) error {
	switch cfg.Source.Kind {
	case SourceReplay:
		store := source.NewStore(cfg.Source.Path)
		defer store.Close()
		var opts []source.IterOption
		if names := cfg.topicNames(); len(names) > 0 {
			opts = append(opts, source.WithTopics(names...))
		}
		return store.Replay(ctx, sink, cfg.Source.Speed, opts...)
	case SourceLive:
		return source.LiveReconnect(ctx, cfg.Source.URL, cfg.topicNames(), sink)
	default:
		return nil
	}
}

func configureScene(r *render.Renderer, cfg *Config) error {
	if err := r.SetAxesOptions(cfg.Scene.Axes); err != nil {
		return fmt.Errorf("applying axes options: %w", err)
	}
	for _, tc := range cfg.Topics {
		if tc.PointCloud != nil {
			if err := r.SetPointCloudOptions(tc.Name, *tc.PointCloud); err != nil {
				return fmt.Errorf("topic %q: %w", tc.Name, err)
			}
		}
		if tc.Grid != nil {
			if err := r.SetGridOptions(tc.Name, *tc.Grid); err != nil {
				return fmt.Errorf("topic %q: %w", tc.Name, err)
			}
		}
	}
	return nil
}

// drainMessages moves pending envelopes into the scene, at most
// maxMessagesPerFrame per call.
func drainMessages(r *render.Renderer, envCh <-chan source.Envelope, cursor *timeCursor, logger *slog.Logger) {
	for n := 0; n < maxMessagesPerFrame; n++ {
		select {
		case env := <-envCh:
			cursor.observe(env.StampNS)
			if err := dispatch(r, &env); err != nil {
				logger.Warn("dropping message",
					"topic", env.Topic,
					"family", string(env.Family),
					"error", err,
				)
			}
		default:
			return
		}
	}
}

// dispatch decodes one envelope and routes it to the renderer entry point
// for its family.
func dispatch(r *render.Renderer, env *source.Envelope) error {
	decoded, err := env.Decode()
	if err != nil {
		return err
	}
	switch m := decoded.(type) {
	case *msg.FrameTransform:
		return r.AddTransformMessage(env.Topic, m)
	case *msg.Marker:
		return r.AddMarkerMessage(env.Topic, m)
	case *msg.PointCloud2:
		return r.AddPointCloudMessage(env.Topic, m)
	case *msg.OccupancyGrid:
		return r.AddGridMessage(env.Topic, m)
	}
	return fmt.Errorf("no route for family %q", env.Family)
}

// timeCursor derives the renderer clock from message stamps. Recorded data
// carries its own timeline, so the scene clock follows the newest stamp seen
// and advances with wall time between messages; marker lifetimes and decay
// windows then behave the same against replayed and live data. Before any
// stamp arrives the wall clock is used.
type timeCursor struct {
	stampNS    int64
	observedAt time.Time
}

func newTimeCursor() *timeCursor {
	return &timeCursor{}
}

func (c *timeCursor) observe(stampNS int64) {
	if stampNS > c.stampNS {
		c.stampNS = stampNS
		c.observedAt = time.Now()
	}
}

func (c *timeCursor) now() int64 {
	if c.stampNS == 0 {
		return time.Now().UnixNano()
	}
	return c.stampNS + time.Since(c.observedAt).Nanoseconds()
}

func logStats(logger *slog.Logger, s render.Stats) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	logger.Info("render stats",
		"frames", humanize.Comma(int64(s.Frames)),
		"renderables", s.Renderables,
		"draw_items", s.LastItems,
		"tree_frames", s.TreeFrames,
		"tree_samples", humanize.Comma(int64(s.TreeSamples)),
		"labels", s.Labels,
		"heap", humanize.IBytes(m.HeapAlloc),
	)
}
