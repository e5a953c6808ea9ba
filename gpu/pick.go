package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gantry3d/gantry/render"
)

// pickRowBytes is the 256-aligned row size of the one pixel readback.
const pickRowBytes = 256

// Pick draws the candidate items into the single-pixel identity target and
// reads the pixel back synchronously. The query projection is already
// restricted to the picked pixel.
func (b *Backend) Pick(query render.PickQuery, items []render.DrawItem) ([4]byte, error) {
	b.queue.WriteBuffer(b.uniformBuf, 0, packFrameUniforms(query.View, query.Projection, 1, 1))

	b.pack.reset()
	b.pack.addItems(items, true)
	b.uploadPack()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return [4]byte{}, fmt.Errorf("create encoder: %w", err)
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Pick Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       b.pickView,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{},
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.pickDepthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		},
	})
	b.drawSpans(pass, b.pack.spans)
	if err := pass.End(); err != nil {
		return [4]byte{}, fmt.Errorf("pick pass: %w", err)
	}

	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture: b.pickTexture,
			Origin:  wgpu.Origin3D{},
		},
		&wgpu.ImageCopyBuffer{
			Buffer: b.pickReadback,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  pickRowBytes,
				RowsPerImage: 1,
			},
		},
		&wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
	)

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return [4]byte{}, fmt.Errorf("encoder finish: %w", err)
	}
	b.queue.Submit(cmd)

	var (
		done   bool
		status wgpu.BufferMapAsyncStatus
	)
	err = b.pickReadback.MapAsync(wgpu.MapModeRead, 0, pickRowBytes, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		done = true
	})
	if err != nil {
		return [4]byte{}, fmt.Errorf("map readback: %w", err)
	}
	for !done {
		b.device.Poll(true, nil)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return [4]byte{}, fmt.Errorf("readback map status %d", status)
	}

	data := b.pickReadback.GetMappedRange(0, pickRowBytes)
	var pixel [4]byte
	copy(pixel[:], data[:4])
	b.pickReadback.Unmap()
	return pixel, nil
}
