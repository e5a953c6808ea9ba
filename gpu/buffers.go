package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// headroomGeometry pads dynamic vertex buffers so steady scene churn does
// not reallocate every frame.
const headroomGeometry = 64 * 1024

func (b *Backend) ensureBuffer(name string, buf **wgpu.Buffer, data []byte, usage wgpu.BufferUsage, headroom int) bool {
	neededSize := uint64(len(data) + headroom)
	if neededSize%4 != 0 {
		neededSize += 4 - (neededSize % 4)
	}

	current := *buf
	if current == nil || current.GetSize() < neededSize {
		if current != nil {
			current.Release()
		}

		newBuf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            name,
			Size:             neededSize,
			Usage:            usage | wgpu.BufferUsageCopyDst,
			MappedAtCreation: false,
		})
		if err != nil {
			panic(err)
		}
		*buf = newBuf

		if len(data) > 0 {
			b.queue.WriteBuffer(*buf, 0, data)
		}
		return true
	}

	if len(data) > 0 {
		b.queue.WriteBuffer(*buf, 0, data)
	}
	return false
}

func releaseBuffer(buf **wgpu.Buffer) {
	if *buf != nil {
		(*buf).Release()
		*buf = nil
	}
}
