package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gantry3d/gantry/render"
)

func (b *Backend) Render(packet *render.FramePacket) error {
	b.frameSerial++

	b.queue.WriteBuffer(b.uniformBuf, 0, packFrameUniforms(
		packet.View, packet.Projection, float32(packet.Width), float32(packet.Height)))

	b.pack.reset()
	b.pack.addItems(packet.Items, false)
	b.uploadPack()

	// Warm the texture cache before recording so uploads order ahead of
	// the pass submission.
	for i := range b.pack.spans {
		if b.pack.spans[i].kind == render.GeomTexturedQuad {
			b.quadTextureFor(b.pack.spans[i].texture)
		}
	}

	textCount := 0
	if len(packet.Text) > 0 && packet.Atlas != nil {
		b.ensureAtlas(packet.Atlas)
		b.textScratch = b.textScratch[:0]
		for _, v := range packet.Text {
			b.textScratch = appendF32(b.textScratch, v.Pos[0])
			b.textScratch = appendF32(b.textScratch, v.Pos[1])
			b.textScratch = appendF32(b.textScratch, v.UV[0])
			b.textScratch = appendF32(b.textScratch, v.UV[1])
			b.textScratch = appendVec4(b.textScratch, v.Color)
		}
		b.ensureBuffer("Text VB", &b.textBuf, b.textScratch, wgpu.BufferUsageVertex, 0)
		textCount = len(packet.Text)
	}

	nextTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("get current texture: %w", err)
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("create surface view: %w", err)
	}
	defer view.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("create encoder: %w", err)
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Scene Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    view,
			LoadOp:  wgpu.LoadOpClear,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(packet.ClearColor[0]),
				G: float64(packet.ClearColor[1]),
				B: float64(packet.ClearColor[2]),
				A: float64(packet.ClearColor[3]),
			},
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		},
	})

	b.drawSpans(pass, b.pack.spans)

	if textCount > 0 && b.textBuf != nil && b.atlasBG != nil {
		pass.SetPipeline(b.textPipe)
		pass.SetBindGroup(0, b.atlasBG, nil)
		pass.SetVertexBuffer(0, b.textBuf, 0, wgpu.WholeSize)
		pass.Draw(uint32(textCount), 1, 0, 0)
	}

	if err := pass.End(); err != nil {
		return fmt.Errorf("scene pass: %w", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("encoder finish: %w", err)
	}
	b.queue.Submit(cmd)
	b.surface.Present()

	b.sweepQuadTextures()
	return nil
}

func (b *Backend) uploadPack() {
	b.ensureBuffer("Shape Instances", &b.shapeInstBuf, b.pack.shapeInstances, wgpu.BufferUsageVertex, headroomGeometry)
	b.ensureBuffer("Line Segments", &b.segBuf, b.pack.segments, wgpu.BufferUsageVertex, headroomGeometry)
	b.ensureBuffer("Point Instances", &b.pointBuf, b.pack.points, wgpu.BufferUsageVertex, headroomGeometry)
	b.ensureBuffer("Triangle VB", &b.triBuf, b.pack.triangles, wgpu.BufferUsageVertex, headroomGeometry)
	b.ensureBuffer("Quad VB", &b.quadBuf, b.pack.quads, wgpu.BufferUsageVertex, headroomGeometry)
}

// drawSpans replays the packed draw list in order. Sorting already happened
// upstream, so order is depth and material correctness.
func (b *Backend) drawSpans(pass *wgpu.RenderPassEncoder, spans []drawSpan) {
	for i := range spans {
		s := &spans[i]
		switch s.kind {
		case render.GeomShapes:
			pl := b.shapePipes.variant(s.variant)
			mesh := &b.meshes[s.shape]
			pass.SetPipeline(pl)
			pass.SetBindGroup(0, b.uniformBGs[pl], nil)
			pass.SetVertexBuffer(0, mesh.vertexBuf, 0, wgpu.WholeSize)
			pass.SetVertexBuffer(1, b.shapeInstBuf, 0, wgpu.WholeSize)
			pass.SetIndexBuffer(mesh.indexBuf, wgpu.IndexFormatUint16, 0, wgpu.WholeSize)
			pass.DrawIndexed(mesh.indexCount, s.count, 0, 0, s.first)

		case render.GeomLines:
			pl := b.linePipes.variant(s.variant)
			pass.SetPipeline(pl)
			pass.SetBindGroup(0, b.uniformBGs[pl], nil)
			pass.SetVertexBuffer(0, b.lineCorners, 0, wgpu.WholeSize)
			pass.SetVertexBuffer(1, b.segBuf, 0, wgpu.WholeSize)
			pass.Draw(6, s.count, 0, s.first)

		case render.GeomPoints:
			pl := b.pointPipes.variant(s.variant)
			pass.SetPipeline(pl)
			pass.SetBindGroup(0, b.uniformBGs[pl], nil)
			pass.SetVertexBuffer(0, b.pointCorners, 0, wgpu.WholeSize)
			pass.SetVertexBuffer(1, b.pointBuf, 0, wgpu.WholeSize)
			pass.Draw(6, s.count, 0, s.first)

		case render.GeomTriangles:
			pl := b.triPipes.variant(s.variant)
			pass.SetPipeline(pl)
			pass.SetBindGroup(0, b.uniformBGs[pl], nil)
			pass.SetVertexBuffer(0, b.triBuf, 0, wgpu.WholeSize)
			pass.Draw(s.count, 1, s.first, 0)

		case render.GeomTexturedQuad:
			qt := b.quadTextureFor(s.texture)
			pl := b.quadPipes.variant(s.variant)
			pass.SetPipeline(pl)
			pass.SetBindGroup(0, b.uniformBGs[pl], nil)
			pass.SetBindGroup(1, qt.groups[s.variant], nil)
			pass.SetVertexBuffer(0, b.quadBuf, 0, wgpu.WholeSize)
			pass.Draw(6, 1, s.first, 0)
		}
	}
}
