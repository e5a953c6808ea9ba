package msg

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type PointFieldType uint8

const (
	FieldInt8    PointFieldType = 1
	FieldUint8   PointFieldType = 2
	FieldInt16   PointFieldType = 3
	FieldUint16  PointFieldType = 4
	FieldInt32   PointFieldType = 5
	FieldUint32  PointFieldType = 6
	FieldFloat32 PointFieldType = 7
	FieldFloat64 PointFieldType = 8
)

func (t PointFieldType) Size() int {
	switch t {
	case FieldInt8, FieldUint8:
		return 1
	case FieldInt16, FieldUint16:
		return 2
	case FieldInt32, FieldUint32, FieldFloat32:
		return 4
	case FieldFloat64:
		return 8
	}
	return 0
}

type PointField struct {
	Name     string         `json:"name"`
	Offset   uint32         `json:"offset"`
	Datatype PointFieldType `json:"datatype"`
	Count    uint32         `json:"count"`
}

// PointCloud2 carries a serialized point buffer plus the field layout
// describing how to read it.
type PointCloud2 struct {
	Header    Header       `json:"header"`
	Height    uint32       `json:"height"`
	Width     uint32       `json:"width"`
	Fields    []PointField `json:"fields"`
	BigEndian bool         `json:"is_bigendian"`
	PointStep uint32       `json:"point_step"`
	RowStep   uint32       `json:"row_step"`
	Data      []byte       `json:"data"`
}

type fieldAccess struct {
	offset int
	read   func([]byte) float64
}

type packedAccess struct {
	offset   int
	order    binary.ByteOrder
	hasAlpha bool
}

// CloudReader validates a cloud's field layout once and then provides
// random access to positions, packed colors and intensity without further
// checks.
type CloudReader struct {
	data      []byte
	count     int
	width     int
	pointStep int
	rowStep   int

	x, y, z   fieldAccess
	rgb       *packedAccess
	intensity *fieldAccess
}

// NewCloudReader checks that the layout names x, y and z numeric fields
// that fit inside point_step and that the data buffer covers every point.
// Optional rgb/rgba and intensity fields are picked up when present.
func NewCloudReader(pc *PointCloud2) (*CloudReader, error) {
	if pc.PointStep == 0 {
		return nil, fmt.Errorf("point cloud has zero point_step")
	}
	order := byteOrder(pc.BigEndian)

	r := &CloudReader{
		data:      pc.Data,
		count:     int(pc.Width) * int(pc.Height),
		width:     int(pc.Width),
		pointStep: int(pc.PointStep),
		rowStep:   int(pc.RowStep),
	}
	if r.rowStep == 0 {
		r.rowStep = int(pc.Width) * int(pc.PointStep)
	}

	var haveX, haveY, haveZ bool
	for _, f := range pc.Fields {
		size := f.Datatype.Size()
		if size == 0 {
			return nil, fmt.Errorf("field %q has unknown datatype %d", f.Name, f.Datatype)
		}
		if int(f.Offset)+size > int(pc.PointStep) {
			return nil, fmt.Errorf("field %q at offset %d overruns point_step %d", f.Name, f.Offset, pc.PointStep)
		}

		switch f.Name {
		case "x", "y", "z":
			read, err := numericReader(f.Datatype, order)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			access := fieldAccess{offset: int(f.Offset), read: read}
			switch f.Name {
			case "x":
				r.x, haveX = access, true
			case "y":
				r.y, haveY = access, true
			case "z":
				r.z, haveZ = access, true
			}
		case "rgb", "rgba":
			if f.Datatype != FieldFloat32 && f.Datatype != FieldUint32 {
				return nil, fmt.Errorf("field %q must be float32 or uint32, have datatype %d", f.Name, f.Datatype)
			}
			r.rgb = &packedAccess{offset: int(f.Offset), order: order, hasAlpha: f.Name == "rgba"}
		case "intensity":
			read, err := numericReader(f.Datatype, order)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			r.intensity = &fieldAccess{offset: int(f.Offset), read: read}
		}
	}
	if !haveX || !haveY || !haveZ {
		return nil, fmt.Errorf("point cloud layout is missing x, y or z")
	}

	if r.count > 0 {
		need := (int(pc.Height)-1)*r.rowStep + int(pc.Width)*int(pc.PointStep)
		if need > len(pc.Data) {
			return nil, fmt.Errorf("point cloud data is %d bytes, layout requires %d", len(pc.Data), need)
		}
	}
	return r, nil
}

func (r *CloudReader) Count() int { return r.count }

func (r *CloudReader) base(i int) int {
	if r.width <= 1 {
		return i * r.rowStep
	}
	return (i/r.width)*r.rowStep + (i%r.width)*r.pointStep
}

// Vec3At returns the position of point i.
func (r *CloudReader) Vec3At(i int) mgl32.Vec3 {
	b := r.base(i)
	return mgl32.Vec3{
		float32(r.x.read(r.data[b+r.x.offset:])),
		float32(r.y.read(r.data[b+r.y.offset:])),
		float32(r.z.read(r.data[b+r.z.offset:])),
	}
}

func (r *CloudReader) HasColor() bool { return r.rgb != nil }

// ColorAt unpacks the packed rgb/rgba integer of point i. The result is
// display-space.
func (r *CloudReader) ColorAt(i int) mgl32.Vec4 {
	b := r.base(i)
	bits := r.rgb.order.Uint32(r.data[b+r.rgb.offset:])
	if r.rgb.hasAlpha {
		return mgl32.Vec4{
			float32(bits>>24&0xff) / 255,
			float32(bits>>16&0xff) / 255,
			float32(bits>>8&0xff) / 255,
			float32(bits&0xff) / 255,
		}
	}
	return mgl32.Vec4{
		float32(bits>>16&0xff) / 255,
		float32(bits>>8&0xff) / 255,
		float32(bits&0xff) / 255,
		1,
	}
}

func (r *CloudReader) HasIntensity() bool { return r.intensity != nil }

func (r *CloudReader) IntensityAt(i int) float32 {
	b := r.base(i)
	return float32(r.intensity.read(r.data[b+r.intensity.offset:]))
}

// IntensityBounds scans the whole cloud for the intensity range, for
// colormap normalization.
func (r *CloudReader) IntensityBounds() (minV, maxV float32) {
	if r.intensity == nil || r.count == 0 {
		return 0, 0
	}
	minV = float32(math.Inf(1))
	maxV = float32(math.Inf(-1))
	for i := 0; i < r.count; i++ {
		v := r.IntensityAt(i)
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return minV, maxV
}

func byteOrder(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func numericReader(dt PointFieldType, order binary.ByteOrder) (func([]byte) float64, error) {
	switch dt {
	case FieldInt8:
		return func(b []byte) float64 { return float64(int8(b[0])) }, nil
	case FieldUint8:
		return func(b []byte) float64 { return float64(b[0]) }, nil
	case FieldInt16:
		return func(b []byte) float64 { return float64(int16(order.Uint16(b))) }, nil
	case FieldUint16:
		return func(b []byte) float64 { return float64(order.Uint16(b)) }, nil
	case FieldInt32:
		return func(b []byte) float64 { return float64(int32(order.Uint32(b))) }, nil
	case FieldUint32:
		return func(b []byte) float64 { return float64(order.Uint32(b)) }, nil
	case FieldFloat32:
		return func(b []byte) float64 { return float64(math.Float32frombits(order.Uint32(b))) }, nil
	case FieldFloat64:
		return func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) }, nil
	}
	return nil, fmt.Errorf("unsupported datatype %d", dt)
}
