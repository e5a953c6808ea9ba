package msg

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func xyziCloud(points [][4]float32, bigEndian bool) *PointCloud2 {
	order := byteOrder(bigEndian)
	const step = 16
	data := make([]byte, len(points)*step)
	for i, p := range points {
		for j := 0; j < 4; j++ {
			order.PutUint32(data[i*step+j*4:], math.Float32bits(p[j]))
		}
	}
	return &PointCloud2{
		Width:     uint32(len(points)),
		Height:    1,
		BigEndian: bigEndian,
		PointStep: step,
		Fields: []PointField{
			{Name: "x", Offset: 0, Datatype: FieldFloat32, Count: 1},
			{Name: "y", Offset: 4, Datatype: FieldFloat32, Count: 1},
			{Name: "z", Offset: 8, Datatype: FieldFloat32, Count: 1},
			{Name: "intensity", Offset: 12, Datatype: FieldFloat32, Count: 1},
		},
		Data: data,
	}
}

func TestCloudReaderXYZ(t *testing.T) {
	cloud := xyziCloud([][4]float32{
		{1, 2, 3, 0.5},
		{-4, 5, -6, 2},
	}, false)

	r, err := NewCloudReader(cloud)
	require.NoError(t, err)
	require.Equal(t, 2, r.Count())

	p := r.Vec3At(0)
	assert.InDelta(t, 1, p[0], 1e-6)
	assert.InDelta(t, 2, p[1], 1e-6)
	assert.InDelta(t, 3, p[2], 1e-6)

	p = r.Vec3At(1)
	assert.InDelta(t, -4, p[0], 1e-6)
	assert.InDelta(t, -6, p[2], 1e-6)
}

func TestCloudReaderBigEndian(t *testing.T) {
	cloud := xyziCloud([][4]float32{{7, -8, 9, 1}}, true)

	r, err := NewCloudReader(cloud)
	require.NoError(t, err)

	p := r.Vec3At(0)
	assert.InDelta(t, 7, p[0], 1e-6)
	assert.InDelta(t, -8, p[1], 1e-6)
	assert.InDelta(t, 9, p[2], 1e-6)
}

func TestCloudReaderIntensity(t *testing.T) {
	cloud := xyziCloud([][4]float32{
		{0, 0, 0, 10},
		{0, 0, 0, -2},
		{0, 0, 0, 4},
	}, false)

	r, err := NewCloudReader(cloud)
	require.NoError(t, err)
	require.True(t, r.HasIntensity())
	assert.False(t, r.HasColor())

	assert.InDelta(t, 10, r.IntensityAt(0), 1e-6)
	lo, hi := r.IntensityBounds()
	assert.InDelta(t, -2, lo, 1e-6)
	assert.InDelta(t, 10, hi, 1e-6)
}

func TestCloudReaderPackedRGB(t *testing.T) {
	const step = 16
	data := make([]byte, step)
	binary.LittleEndian.PutUint32(data[0:], math.Float32bits(1))
	binary.LittleEndian.PutUint32(data[12:], 0x00FF8040)

	cloud := &PointCloud2{
		Width:     1,
		Height:    1,
		PointStep: step,
		Fields: []PointField{
			{Name: "x", Offset: 0, Datatype: FieldFloat32},
			{Name: "y", Offset: 4, Datatype: FieldFloat32},
			{Name: "z", Offset: 8, Datatype: FieldFloat32},
			{Name: "rgb", Offset: 12, Datatype: FieldFloat32},
		},
		Data: data,
	}

	r, err := NewCloudReader(cloud)
	require.NoError(t, err)
	require.True(t, r.HasColor())

	c := r.ColorAt(0)
	assert.InDelta(t, 1.0, c[0], 1e-3)
	assert.InDelta(t, 0x80/255.0, c[1], 1e-3)
	assert.InDelta(t, 0x40/255.0, c[2], 1e-3)
	assert.InDelta(t, 1.0, c[3], 1e-6)
}

func TestCloudReaderPackedRGBA(t *testing.T) {
	const step = 16
	data := make([]byte, step)
	binary.LittleEndian.PutUint32(data[12:], 0xFF804020)

	cloud := &PointCloud2{
		Width:     1,
		Height:    1,
		PointStep: step,
		Fields: []PointField{
			{Name: "x", Offset: 0, Datatype: FieldFloat32},
			{Name: "y", Offset: 4, Datatype: FieldFloat32},
			{Name: "z", Offset: 8, Datatype: FieldFloat32},
			{Name: "rgba", Offset: 12, Datatype: FieldUint32},
		},
		Data: data,
	}

	r, err := NewCloudReader(cloud)
	require.NoError(t, err)

	c := r.ColorAt(0)
	assert.InDelta(t, 1.0, c[0], 1e-3)
	assert.InDelta(t, 0x80/255.0, c[1], 1e-3)
	assert.InDelta(t, 0x40/255.0, c[2], 1e-3)
	assert.InDelta(t, 0x20/255.0, c[3], 1e-3)
}

func TestCloudReaderOrganized(t *testing.T) {
	// 2x2 organized cloud with 8 bytes of per-row padding.
	const step = 12
	const rowStep = 2*step + 8
	data := make([]byte, 2*rowStep)
	write := func(row, col int, x, y, z float32) {
		b := row*rowStep + col*step
		binary.LittleEndian.PutUint32(data[b:], math.Float32bits(x))
		binary.LittleEndian.PutUint32(data[b+4:], math.Float32bits(y))
		binary.LittleEndian.PutUint32(data[b+8:], math.Float32bits(z))
	}
	write(0, 0, 0, 0, 0)
	write(0, 1, 1, 0, 0)
	write(1, 0, 0, 1, 0)
	write(1, 1, 1, 1, 0)

	cloud := &PointCloud2{
		Width:     2,
		Height:    2,
		PointStep: step,
		RowStep:   rowStep,
		Fields: []PointField{
			{Name: "x", Offset: 0, Datatype: FieldFloat32},
			{Name: "y", Offset: 4, Datatype: FieldFloat32},
			{Name: "z", Offset: 8, Datatype: FieldFloat32},
		},
		Data: data,
	}

	r, err := NewCloudReader(cloud)
	require.NoError(t, err)
	require.Equal(t, 4, r.Count())

	assert.InDelta(t, 1, r.Vec3At(1)[0], 1e-6)
	assert.InDelta(t, 1, r.Vec3At(2)[1], 1e-6)
	p := r.Vec3At(3)
	assert.InDelta(t, 1, p[0], 1e-6)
	assert.InDelta(t, 1, p[1], 1e-6)
}

func TestCloudReaderNonFloatPositions(t *testing.T) {
	// int16 millimeter-style positions still resolve.
	const step = 6
	data := make([]byte, step)
	binary.LittleEndian.PutUint16(data[0:], uint16(1000))
	binary.LittleEndian.PutUint16(data[2:], 0xFFFF) // -1 as int16
	binary.LittleEndian.PutUint16(data[4:], uint16(25))

	cloud := &PointCloud2{
		Width:     1,
		Height:    1,
		PointStep: step,
		Fields: []PointField{
			{Name: "x", Offset: 0, Datatype: FieldInt16},
			{Name: "y", Offset: 2, Datatype: FieldInt16},
			{Name: "z", Offset: 4, Datatype: FieldInt16},
		},
		Data: data,
	}

	r, err := NewCloudReader(cloud)
	require.NoError(t, err)
	p := r.Vec3At(0)
	assert.InDelta(t, 1000, p[0], 1e-6)
	assert.InDelta(t, -1, p[1], 1e-6)
	assert.InDelta(t, 25, p[2], 1e-6)
}

func TestCloudReaderRejectsBadLayouts(t *testing.T) {
	base := xyziCloud([][4]float32{{1, 2, 3, 4}}, false)

	missing := *base
	missing.Fields = base.Fields[:2] // drop z and intensity
	_, err := NewCloudReader(&missing)
	assert.ErrorContains(t, err, "missing")

	overrun := *base
	overrun.Fields = append([]PointField{}, base.Fields...)
	overrun.Fields[3] = PointField{Name: "intensity", Offset: 14, Datatype: FieldFloat32}
	_, err = NewCloudReader(&overrun)
	assert.ErrorContains(t, err, "overruns")

	badType := *base
	badType.Fields = append([]PointField{}, base.Fields...)
	badType.Fields[0].Datatype = 99
	_, err = NewCloudReader(&badType)
	assert.ErrorContains(t, err, "datatype")

	short := *base
	short.Data = base.Data[:8]
	_, err = NewCloudReader(&short)
	assert.ErrorContains(t, err, "requires")

	zeroStep := *base
	zeroStep.PointStep = 0
	_, err = NewCloudReader(&zeroStep)
	assert.ErrorContains(t, err, "point_step")
}

func TestCloudReaderEmptyCloud(t *testing.T) {
	cloud := xyziCloud(nil, false)
	r, err := NewCloudReader(cloud)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Count())

	lo, hi := r.IntensityBounds()
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}
