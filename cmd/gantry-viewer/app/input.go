package app

import (
	"log/slog"
	"math"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/gantry3d/gantry/core"
	"github.com/gantry3d/gantry/render"
)

const (
	orbitDegPerPixel = 0.3
	zoomStepFactor   = 0.9
	minDistance      = 0.2
	maxDistance      = 4000

	// clickSlopPx separates a click from a drag on release.
	clickSlopPx = 4
)

// cameraControl maps mouse and keyboard input onto the renderer's orbit
// camera. Left drag orbits, right or shift drag pans, scroll dollies, a left
// click picks, R returns to the starting view.
type cameraControl struct {
	window   *glfw.Window
	renderer *render.Renderer
	logger   *slog.Logger
	home     core.CameraState

	rotating       bool
	panning        bool
	lastX, lastY   float64
	pressX, pressY float64
	dragged        bool
}

func installCameraControl(window *glfw.Window, renderer *render.Renderer, logger *slog.Logger) {
	c := &cameraControl{
		window:   window,
		renderer: renderer,
		logger:   logger,
		home:     renderer.CameraState(),
	}
	window.SetKeyCallback(c.onKey)
	window.SetMouseButtonCallback(c.onMouseButton)
	window.SetCursorPosCallback(c.onCursorPos)
	window.SetScrollCallback(c.onScroll)
}

func (c *cameraControl) onKey(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	switch key {
	case glfw.KeyEscape:
		w.SetShouldClose(true)
	case glfw.KeyR:
		c.apply(c.home)
	}
}

func (c *cameraControl) onMouseButton(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	x, y := w.GetCursorPos()
	switch action {
	case glfw.Press:
		c.lastX, c.lastY = x, y
		switch button {
		case glfw.MouseButtonLeft:
			c.pressX, c.pressY = x, y
			c.dragged = false
			if mods&glfw.ModShift != 0 {
				c.panning = true
			} else {
				c.rotating = true
			}
		case glfw.MouseButtonRight:
			c.panning = true
		}
	case glfw.Release:
		switch button {
		case glfw.MouseButtonLeft:
			c.rotating = false
			c.panning = false
			if !c.dragged {
				c.pick(x, y)
			}
		case glfw.MouseButtonRight:
			c.panning = false
		}
	}
}

func (c *cameraControl) onCursorPos(_ *glfw.Window, x, y float64) {
	dx, dy := x-c.lastX, y-c.lastY
	c.lastX, c.lastY = x, y
	if !c.rotating && !c.panning {
		return
	}
	if math.Abs(x-c.pressX) > clickSlopPx || math.Abs(y-c.pressY) > clickSlopPx {
		c.dragged = true
	}
	if c.rotating {
		c.orbit(dx, dy)
	} else {
		c.pan(dx, dy)
	}
}

func (c *cameraControl) onScroll(_ *glfw.Window, _, yoff float64) {
	s := c.renderer.CameraState()
	s.Distance *= math.Pow(zoomStepFactor, yoff)
	s.Distance = math.Min(math.Max(s.Distance, minDistance), maxDistance)
	c.apply(s)
}

func (c *cameraControl) orbit(dx, dy float64) {
	s := c.renderer.CameraState()
	s.ThetaOffset = math.Mod(s.ThetaOffset-dx*orbitDegPerPixel, 360)
	s.Phi = math.Min(math.Max(s.Phi+dy*orbitDegPerPixel, 0), 180)
	c.apply(s)
}

// pan drags the world with the cursor: the target moves so the point under
// the cursor stays under it, using the world size of one pixel at the target
// depth.
func (c *cameraControl) pan(dx, dy float64) {
	s := c.renderer.CameraState()
	_, h := c.window.GetSize()
	if h < 1 {
		return
	}
	world := 2 * s.Distance * math.Tan(s.Fovy*math.Pi/360) / float64(h)
	rot := s.Pose().Rotation
	right := rot.Rotate(mgl64.Vec3{1, 0, 0}).Mul(-dx * world)
	up := rot.Rotate(mgl64.Vec3{0, 1, 0}).Mul(dy * world)
	s.TargetOffset = s.TargetOffset.Add(right).Add(up)
	c.apply(s)
}

// pick maps the cursor position from screen to framebuffer pixels and
// resolves the renderable under it. Hits are announced on the event surface;
// only misses are reported here.
func (c *cameraControl) pick(x, y float64) {
	fw, fh := c.window.GetFramebufferSize()
	ww, wh := c.window.GetSize()
	if ww > 0 && wh > 0 {
		x *= float64(fw) / float64(ww)
		y *= float64(fh) / float64(wh)
	}
	res, err := c.renderer.Pick(x, y, nil)
	if err != nil {
		c.logger.Warn("pick failed", "error", err)
		return
	}
	if !res.Hit {
		c.logger.Debug("pick miss", "x", x, "y", y)
	}
}

func (c *cameraControl) apply(s core.CameraState) {
	if err := c.renderer.SetCameraState(s); err != nil {
		c.logger.Warn("camera update rejected", "error", err)
	}
}
