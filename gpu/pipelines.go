package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gantry3d/gantry/gpu/shaders"
)

const (
	depthFormat = wgpu.TextureFormatDepth24Plus
	pickFormat  = wgpu.TextureFormatRGBA8Unorm
)

// pipelineSet is the variant matrix for one geometry family. Opaque and pick
// write depth; alpha blends against it; overlay draws on top of everything.
type pipelineSet struct {
	opaque  *wgpu.RenderPipeline
	alpha   *wgpu.RenderPipeline
	overlay *wgpu.RenderPipeline
	pick    *wgpu.RenderPipeline
}

func (s *pipelineSet) variant(v pipelineVariant) *wgpu.RenderPipeline {
	switch v {
	case variantAlpha:
		return s.alpha
	case variantOverlay:
		return s.overlay
	case variantPick:
		return s.pick
	}
	return s.opaque
}

func (s *pipelineSet) release() {
	for _, pl := range []*wgpu.RenderPipeline{s.opaque, s.alpha, s.overlay, s.pick} {
		if pl != nil {
			pl.Release()
		}
	}
	*s = pipelineSet{}
}

func (b *Backend) createPipelines() error {
	shapeMod, err := b.createShaderModule("Shape Shader", shaders.ShapesWGSL)
	if err != nil {
		return err
	}
	lineMod, err := b.createShaderModule("Line Shader", shaders.LinesWGSL)
	if err != nil {
		return err
	}
	pointMod, err := b.createShaderModule("Point Shader", shaders.PointsWGSL)
	if err != nil {
		return err
	}
	triMod, err := b.createShaderModule("Triangle Shader", shaders.TrianglesWGSL)
	if err != nil {
		return err
	}
	quadMod, err := b.createShaderModule("Quad Shader", shaders.QuadWGSL)
	if err != nil {
		return err
	}
	textMod, err := b.createShaderModule("Text Shader", shaders.TextWGSL)
	if err != nil {
		return err
	}

	b.shapePipes, err = b.createSet("Shapes", shapeMod, "fs_main", "fs_flat", shapeVertexLayouts(), wgpu.CullModeBack, true)
	if err != nil {
		return err
	}
	b.linePipes, err = b.createSet("Lines", lineMod, "fs_main", "fs_main", lineVertexLayouts(), wgpu.CullModeNone, true)
	if err != nil {
		return err
	}
	b.pointPipes, err = b.createSet("Points", pointMod, "fs_main", "fs_main", pointVertexLayouts(), wgpu.CullModeNone, true)
	if err != nil {
		return err
	}
	b.triPipes, err = b.createSet("Triangles", triMod, "fs_main", "fs_main", triVertexLayouts(), wgpu.CullModeNone, true)
	if err != nil {
		return err
	}
	b.quadPipes, err = b.createSet("Quads", quadMod, "fs_main", "fs_main", quadVertexLayouts(), wgpu.CullModeNone, false)
	if err != nil {
		return err
	}

	b.textPipe, err = b.createPipeline(pipelineParams{
		label:        "Text Pipeline",
		module:       textMod,
		fsEntry:      "fs_main",
		buffers:      textVertexLayouts(),
		cullMode:     wgpu.CullModeNone,
		format:       b.config.Format,
		blend:        alphaBlend(),
		depthWrite:   false,
		depthCompare: wgpu.CompareFunctionAlways,
	})
	return err
}

func (b *Backend) createShaderModule(label, code string) (*wgpu.ShaderModule, error) {
	return b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
}

// createSet builds the variants of one family. fsShade is the lit fragment
// entry used for opaque and alpha draws; fsFlat is the unlit one used for
// overlay and pick.
func (b *Backend) createSet(label string, module *wgpu.ShaderModule, fsShade, fsFlat string, buffers []wgpu.VertexBufferLayout, cull wgpu.CullMode, pick bool) (pipelineSet, error) {
	var s pipelineSet
	var err error

	s.opaque, err = b.createPipeline(pipelineParams{
		label:        label + " Opaque",
		module:       module,
		fsEntry:      fsShade,
		buffers:      buffers,
		cullMode:     cull,
		format:       b.config.Format,
		depthWrite:   true,
		depthCompare: wgpu.CompareFunctionLess,
	})
	if err != nil {
		return s, err
	}
	s.alpha, err = b.createPipeline(pipelineParams{
		label:        label + " Alpha",
		module:       module,
		fsEntry:      fsShade,
		buffers:      buffers,
		cullMode:     cull,
		format:       b.config.Format,
		blend:        alphaBlend(),
		depthWrite:   false,
		depthCompare: wgpu.CompareFunctionLess,
	})
	if err != nil {
		return s, err
	}
	s.overlay, err = b.createPipeline(pipelineParams{
		label:        label + " Overlay",
		module:       module,
		fsEntry:      fsFlat,
		buffers:      buffers,
		cullMode:     cull,
		format:       b.config.Format,
		blend:        alphaBlend(),
		depthWrite:   false,
		depthCompare: wgpu.CompareFunctionAlways,
	})
	if err != nil {
		return s, err
	}
	if pick {
		s.pick, err = b.createPipeline(pipelineParams{
			label:        label + " Pick",
			module:       module,
			fsEntry:      fsFlat,
			buffers:      buffers,
			cullMode:     cull,
			format:       pickFormat,
			depthWrite:   true,
			depthCompare: wgpu.CompareFunctionLess,
		})
	}
	return s, err
}

type pipelineParams struct {
	label        string
	module       *wgpu.ShaderModule
	fsEntry      string
	buffers      []wgpu.VertexBufferLayout
	cullMode     wgpu.CullMode
	format       wgpu.TextureFormat
	blend        *wgpu.BlendState
	depthWrite   bool
	depthCompare wgpu.CompareFunction
}

func (b *Backend) createPipeline(p pipelineParams) (*wgpu.RenderPipeline, error) {
	stencil := wgpu.StencilFaceState{
		Compare:     wgpu.CompareFunctionAlways,
		FailOp:      wgpu.StencilOperationKeep,
		DepthFailOp: wgpu.StencilOperationKeep,
		PassOp:      wgpu.StencilOperationKeep,
	}
	return b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: p.label,
		Vertex: wgpu.VertexState{
			Module:     p.module,
			EntryPoint: "vs_main",
			Buffers:    p.buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.module,
			EntryPoint: p.fsEntry,
			Targets: []wgpu.ColorTargetState{{
				Format:    p.format,
				Blend:     p.blend,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  p.cullMode,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: p.depthWrite,
			DepthCompare:      p.depthCompare,
			StencilFront:      stencil,
			StencilBack:       stencil,
			StencilReadMask:   0xFFFFFFFF,
			StencilWriteMask:  0xFFFFFFFF,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
}

func alphaBlend() *wgpu.BlendState {
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorSrcAlpha,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
		Alpha: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOne,
			Operation: wgpu.BlendOperationAdd,
		},
	}
}

func shapeVertexLayouts() []wgpu.VertexBufferLayout {
	return []wgpu.VertexBufferLayout{
		{
			ArrayStride: meshVertexStride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
			},
		},
		{
			ArrayStride: shapeInstanceStride,
			StepMode:    wgpu.VertexStepModeInstance,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 2},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 3},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 32, ShaderLocation: 4},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 48, ShaderLocation: 5},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 64, ShaderLocation: 6},
			},
		},
	}
}

func lineVertexLayouts() []wgpu.VertexBufferLayout {
	return []wgpu.VertexBufferLayout{
		{
			ArrayStride: 8,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			},
		},
		{
			ArrayStride: segmentStride,
			StepMode:    wgpu.VertexStepModeInstance,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 1},
				{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 2},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 24, ShaderLocation: 3},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 40, ShaderLocation: 4},
				{Format: wgpu.VertexFormatFloat32, Offset: 56, ShaderLocation: 5},
			},
		},
	}
}

func pointVertexLayouts() []wgpu.VertexBufferLayout {
	return []wgpu.VertexBufferLayout{
		{
			ArrayStride: 8,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			},
		},
		{
			ArrayStride: pointStride,
			StepMode:    wgpu.VertexStepModeInstance,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 1},
				{Format: wgpu.VertexFormatFloat32, Offset: 12, ShaderLocation: 2},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 3},
				{Format: wgpu.VertexFormatUint32, Offset: 32, ShaderLocation: 4},
			},
		},
	}
}

func triVertexLayouts() []wgpu.VertexBufferLayout {
	return []wgpu.VertexBufferLayout{{
		ArrayStride: triVertexStride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: wgpu.VertexFormatFloat32x4, Offset: 12, ShaderLocation: 1},
		},
	}}
}

func quadVertexLayouts() []wgpu.VertexBufferLayout {
	return []wgpu.VertexBufferLayout{{
		ArrayStride: quadVertexStride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: wgpu.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
		},
	}}
}

func textVertexLayouts() []wgpu.VertexBufferLayout {
	return []wgpu.VertexBufferLayout{{
		ArrayStride: textVertexStride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
			{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
		},
	}}
}
