package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gantry3d/gantry/core"
	"github.com/gantry3d/gantry/render"
)

// quadTextureTTL is how many frames an unreferenced texture survives before
// the sweep releases it. Items that briefly fall out of the frustum keep
// their upload.
const quadTextureTTL = 120

type quadTexture struct {
	texture  *wgpu.Texture
	view     *wgpu.TextureView
	groups   [3]*wgpu.BindGroup
	lastUsed uint64
}

func (qt *quadTexture) release() {
	for _, bg := range qt.groups {
		if bg != nil {
			bg.Release()
		}
	}
	if qt.view != nil {
		qt.view.Release()
	}
	if qt.texture != nil {
		qt.texture.Release()
	}
}

// quadTextureFor returns the GPU texture for a textured-quad item, uploading
// on first sight. Grid updates allocate a fresh TextureData, so pointer
// identity is the cache key.
func (b *Backend) quadTextureFor(td *render.TextureData) *quadTexture {
	if qt, ok := b.quadTextures[td]; ok {
		qt.lastUsed = b.frameSerial
		return qt
	}

	size := wgpu.Extent3D{Width: uint32(td.Width), Height: uint32(td.Height), DepthOrArrayLayers: 1}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Quad Texture",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		panic(err)
	}
	b.queue.WriteTexture(tex.AsImageCopy(), td.Pixels, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(td.Width * 4),
		RowsPerImage: uint32(td.Height),
	}, &size)

	view, err := tex.CreateView(nil)
	if err != nil {
		panic(err)
	}

	qt := &quadTexture{texture: tex, view: view, lastUsed: b.frameSerial}
	variants := [3]*wgpu.RenderPipeline{b.quadPipes.opaque, b.quadPipes.alpha, b.quadPipes.overlay}
	for i, pl := range variants {
		qt.groups[i], err = b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  "Quad Texture BG",
			Layout: pl.GetBindGroupLayout(1),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, TextureView: view},
				{Binding: 1, Sampler: b.quadSampler},
			},
		})
		if err != nil {
			panic(err)
		}
	}

	b.quadTextures[td] = qt
	return qt
}

func (b *Backend) sweepQuadTextures() {
	for td, qt := range b.quadTextures {
		if b.frameSerial-qt.lastUsed > quadTextureTTL {
			qt.release()
			delete(b.quadTextures, td)
		}
	}
}

// ensureAtlas uploads the glyph atlas the first time labels appear and
// again if the renderer swaps atlases.
func (b *Backend) ensureAtlas(atlas *core.GlyphAtlas) {
	if b.atlasSrc == atlas {
		return
	}
	b.releaseAtlas()

	img := atlas.AtlasImage
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	size := wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Label Atlas",
		Size:          size,
		Format:        wgpu.TextureFormatR8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		panic(err)
	}
	b.queue.WriteTexture(tex.AsImageCopy(), img.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(img.Stride),
		RowsPerImage: uint32(h),
	}, &size)

	view, err := tex.CreateView(nil)
	if err != nil {
		panic(err)
	}
	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Label Atlas BG",
		Layout: b.textPipe.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: b.textSampler},
		},
	})
	if err != nil {
		panic(err)
	}

	b.atlasTex = tex
	b.atlasView = view
	b.atlasBG = bg
	b.atlasSrc = atlas
}

func (b *Backend) releaseAtlas() {
	if b.atlasBG != nil {
		b.atlasBG.Release()
		b.atlasBG = nil
	}
	if b.atlasView != nil {
		b.atlasView.Release()
		b.atlasView = nil
	}
	if b.atlasTex != nil {
		b.atlasTex.Release()
		b.atlasTex = nil
	}
	b.atlasSrc = nil
}
