// Package gpu implements the render.Backend seam on WebGPU. It owns the
// device, the surface, and every pipeline and buffer behind the draw lists
// the renderer hands it.
package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gantry3d/gantry/core"
	"github.com/gantry3d/gantry/render"
)

type gpuMesh struct {
	vertexBuf  *wgpu.Buffer
	indexBuf   *wgpu.Buffer
	indexCount uint32
}

type Backend struct {
	window *glfw.Window

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface
	config   *wgpu.SurfaceConfiguration

	shapePipes pipelineSet
	linePipes  pipelineSet
	pointPipes pipelineSet
	triPipes   pipelineSet
	quadPipes  pipelineSet
	textPipe   *wgpu.RenderPipeline

	uniformBuf *wgpu.Buffer
	uniformBGs map[*wgpu.RenderPipeline]*wgpu.BindGroup

	meshes       [4]gpuMesh
	lineCorners  *wgpu.Buffer
	pointCorners *wgpu.Buffer

	shapeInstBuf *wgpu.Buffer
	segBuf       *wgpu.Buffer
	pointBuf     *wgpu.Buffer
	triBuf       *wgpu.Buffer
	quadBuf      *wgpu.Buffer
	textBuf      *wgpu.Buffer

	depthTexture *wgpu.Texture
	depthView    *wgpu.TextureView

	quadSampler *wgpu.Sampler
	textSampler *wgpu.Sampler

	quadTextures map[*render.TextureData]*quadTexture
	frameSerial  uint64

	atlasSrc  *core.GlyphAtlas
	atlasTex  *wgpu.Texture
	atlasView *wgpu.TextureView
	atlasBG   *wgpu.BindGroup

	pickTexture   *wgpu.Texture
	pickView      *wgpu.TextureView
	pickDepthTex  *wgpu.Texture
	pickDepthView *wgpu.TextureView
	pickReadback  *wgpu.Buffer

	pack        framePack
	textScratch []byte
}

// New brings up the device against the window's surface and builds every
// static resource. The window stays owned by the caller.
func New(window *glfw.Window) (*Backend, error) {
	b := &Backend{
		window:       window,
		uniformBGs:   make(map[*wgpu.RenderPipeline]*wgpu.BindGroup),
		quadTextures: make(map[*render.TextureData]*quadTexture),
	}
	if err := b.init(); err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}

func (b *Backend) init() error {
	b.instance = wgpu.CreateInstance(nil)
	b.surface = b.instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(b.window))

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: b.surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("requesting adapter: %w", err)
	}
	b.adapter = adapter

	b.device, err = adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("requesting device: %w", err)
	}
	b.queue = b.device.GetQueue()

	width, height := b.window.GetFramebufferSize()
	caps := b.surface.GetCapabilities(adapter)
	b.config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      preferredFormat(caps.Formats),
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	b.surface.Configure(b.adapter, b.device, b.config)

	if err := b.createSamplers(); err != nil {
		return err
	}
	if err := b.createPipelines(); err != nil {
		return err
	}
	if err := b.createUniformResources(); err != nil {
		return err
	}
	b.createStaticBuffers()
	b.createDepthTexture()
	return b.createPickTargets()
}

// preferredFormat returns the first sRGB format the surface supports. The
// packed colors are linear, so blending and presentation both want an sRGB
// target; the first supported format is the fallback.
func preferredFormat(formats []wgpu.TextureFormat) wgpu.TextureFormat {
	for _, f := range formats {
		if f == wgpu.TextureFormatBGRA8UnormSrgb || f == wgpu.TextureFormatRGBA8UnormSrgb {
			return f
		}
	}
	return formats[0]
}

func (b *Backend) createSamplers() error {
	var err error
	b.quadSampler, err = b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Quad Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MinFilter:     wgpu.FilterModeNearest,
		MagFilter:     wgpu.FilterModeNearest,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return err
	}
	b.textSampler, err = b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Text Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	return err
}

func (b *Backend) createUniformResources() error {
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Frame Uniforms",
		Size:  frameUniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	b.uniformBuf = buf

	sets := []*pipelineSet{&b.shapePipes, &b.linePipes, &b.pointPipes, &b.triPipes, &b.quadPipes}
	for _, s := range sets {
		for _, pl := range []*wgpu.RenderPipeline{s.opaque, s.alpha, s.overlay, s.pick} {
			if pl == nil {
				continue
			}
			bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
				Label:  "Frame Uniform BG",
				Layout: pl.GetBindGroupLayout(0),
				Entries: []wgpu.BindGroupEntry{
					{Binding: 0, Buffer: b.uniformBuf, Size: wgpu.WholeSize},
				},
			})
			if err != nil {
				return err
			}
			b.uniformBGs[pl] = bg
		}
	}
	return nil
}

func (b *Backend) createStaticBuffers() {
	meshes := buildMeshData()
	for i := range meshes {
		m := &meshes[i]
		b.ensureBuffer("Shape Mesh VB", &b.meshes[i].vertexBuf, m.vertexBytes(), wgpu.BufferUsageVertex, 0)
		b.ensureBuffer("Shape Mesh IB", &b.meshes[i].indexBuf, m.indexBytes(), wgpu.BufferUsageIndex, 0)
		b.meshes[i].indexCount = uint32(len(m.Indices))
	}

	var corners []byte
	for _, c := range [6][2]float32{{0, -1}, {1, -1}, {1, 1}, {0, -1}, {1, 1}, {0, 1}} {
		corners = appendF32(corners, c[0])
		corners = appendF32(corners, c[1])
	}
	b.ensureBuffer("Line Corners", &b.lineCorners, corners, wgpu.BufferUsageVertex, 0)

	corners = corners[:0]
	for _, c := range [6][2]float32{{-0.5, -0.5}, {0.5, -0.5}, {0.5, 0.5}, {-0.5, -0.5}, {0.5, 0.5}, {-0.5, 0.5}} {
		corners = appendF32(corners, c[0])
		corners = appendF32(corners, c[1])
	}
	b.ensureBuffer("Point Corners", &b.pointCorners, corners, wgpu.BufferUsageVertex, 0)
}

func (b *Backend) createDepthTexture() {
	if b.depthView != nil {
		b.depthView.Release()
		b.depthView = nil
	}
	if b.depthTexture != nil {
		b.depthTexture.Release()
		b.depthTexture = nil
	}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              b.config.Width,
			Height:             b.config.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		panic(err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		panic(err)
	}
	b.depthTexture = tex
	b.depthView = view
}

func (b *Backend) createPickTargets() error {
	one := wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Pick Target",
		Size:          one,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        pickFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return err
	}
	b.pickTexture = tex
	if b.pickView, err = tex.CreateView(nil); err != nil {
		return err
	}

	depth, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Pick Depth",
		Size:          one,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return err
	}
	b.pickDepthTex = depth
	if b.pickDepthView, err = depth.CreateView(nil); err != nil {
		return err
	}

	b.pickReadback, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Pick Readback",
		Size:  pickRowBytes,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	return err
}

// Resize reconfigures the surface and depth target. Zero sizes are ignored;
// the renderer holds frames while minimized.
func (b *Backend) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	b.config.Width = uint32(width)
	b.config.Height = uint32(height)
	b.surface.Configure(b.adapter, b.device, b.config)
	b.createDepthTexture()
}

func (b *Backend) Release() {
	for _, qt := range b.quadTextures {
		qt.release()
	}
	b.quadTextures = map[*render.TextureData]*quadTexture{}
	b.releaseAtlas()

	for _, bg := range b.uniformBGs {
		bg.Release()
	}
	b.uniformBGs = map[*wgpu.RenderPipeline]*wgpu.BindGroup{}

	releaseBuffer(&b.uniformBuf)
	releaseBuffer(&b.shapeInstBuf)
	releaseBuffer(&b.segBuf)
	releaseBuffer(&b.pointBuf)
	releaseBuffer(&b.triBuf)
	releaseBuffer(&b.quadBuf)
	releaseBuffer(&b.textBuf)
	releaseBuffer(&b.lineCorners)
	releaseBuffer(&b.pointCorners)
	releaseBuffer(&b.pickReadback)
	for i := range b.meshes {
		releaseBuffer(&b.meshes[i].vertexBuf)
		releaseBuffer(&b.meshes[i].indexBuf)
	}

	for _, view := range []**wgpu.TextureView{&b.depthView, &b.pickView, &b.pickDepthView} {
		if *view != nil {
			(*view).Release()
			*view = nil
		}
	}
	for _, tex := range []**wgpu.Texture{&b.depthTexture, &b.pickTexture, &b.pickDepthTex} {
		if *tex != nil {
			(*tex).Release()
			*tex = nil
		}
	}

	b.shapePipes.release()
	b.linePipes.release()
	b.pointPipes.release()
	b.triPipes.release()
	b.quadPipes.release()
	if b.textPipe != nil {
		b.textPipe.Release()
		b.textPipe = nil
	}

	if b.quadSampler != nil {
		b.quadSampler.Release()
		b.quadSampler = nil
	}
	if b.textSampler != nil {
		b.textSampler.Release()
		b.textSampler = nil
	}

	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
