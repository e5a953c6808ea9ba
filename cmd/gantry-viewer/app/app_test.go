package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantry3d/gantry/render"
	"github.com/gantry3d/gantry/source"
)

type stubBackend struct {
	frames   int
	released bool
}

func (b *stubBackend) Render(*render.FramePacket) error { b.frames++; return nil }

func (b *stubBackend) Pick(render.PickQuery, []render.DrawItem) ([4]byte, error) {
	return [4]byte{}, nil
}

func (b *stubBackend) Resize(int, int) {}
func (b *stubBackend) Release()        { b.released = true }

func testRenderer(t *testing.T) *render.Renderer {
	t.Helper()
	r, err := render.New(render.Options{Backend: &stubBackend{}, Width: 640, Height: 480})
	require.NoError(t, err)
	t.Cleanup(r.Dispose)
	return r
}

func envelope(t *testing.T, topic string, family source.Family, stampNS int64, payload string) source.Envelope {
	t.Helper()
	require.True(t, json.Valid([]byte(payload)), "payload must be valid JSON")
	return source.Envelope{Topic: topic, Family: family, StampNS: stampNS, Payload: json.RawMessage(payload)}
}

const (
	tfPayload = `{"parent_frame_id":"map","child_frame_id":"base",
		"translation":{"x":1},"rotation":{"w":1}}`
	markerPayload = `{"header":{"frame_id":"base","stamp":100},"ns":"boxes","id":1,
		"type":1,"action":0,"pose":{"orientation":{"w":1}},
		"scale":{"x":1,"y":1,"z":1},"color":{"r":1,"a":1}}`
	cloudPayload = `{"header":{"frame_id":"base"},"height":1,"width":1,
		"fields":[{"name":"x","offset":0,"datatype":7,"count":1},
		{"name":"y","offset":4,"datatype":7,"count":1},
		{"name":"z","offset":8,"datatype":7,"count":1}],
		"point_step":12,"row_step":12,"data":"AAAAAAAAAAAAAAAA"}`
	gridPayload = `{"header":{"frame_id":"map"},"resolution":0.1,"width":2,"height":2,
		"origin":{"orientation":{"w":1}},"data":[0,100,-1,50]}`
)

func TestDispatchRoutesFamilies(t *testing.T) {
	r := testRenderer(t)

	env := envelope(t, "/tf", source.FamilyTransform, 100, tfPayload)
	require.NoError(t, dispatch(r, &env))
	assert.Contains(t, r.Tree().Frames(), "base")
	assert.Contains(t, r.Tree().Frames(), "map")

	env = envelope(t, "/markers", source.FamilyMarker, 100, markerPayload)
	require.NoError(t, dispatch(r, &env))
	assert.Equal(t, 1, r.MarkerCount())

	before := r.RenderableCount()
	env = envelope(t, "/scan", source.FamilyPointCloud, 100, cloudPayload)
	require.NoError(t, dispatch(r, &env))
	env = envelope(t, "/map", source.FamilyGrid, 100, gridPayload)
	require.NoError(t, dispatch(r, &env))
	assert.Equal(t, before+2, r.RenderableCount())
}

func TestDispatchRejectsBadInput(t *testing.T) {
	r := testRenderer(t)

	env := source.Envelope{Topic: "/x", Family: "mystery", Payload: json.RawMessage(`{}`)}
	require.ErrorIs(t, dispatch(r, &env), source.ErrUnknownFamily)

	env = source.Envelope{Topic: "/tf", Family: source.FamilyTransform, Payload: json.RawMessage(`{broken`)}
	require.Error(t, dispatch(r, &env))
}

func TestDrainMessagesAppliesPending(t *testing.T) {
	r := testRenderer(t)
	cursor := newTimeCursor()
	logger := slog.New(slog.DiscardHandler)

	envCh := make(chan source.Envelope, 8)
	envCh <- envelope(t, "/tf", source.FamilyTransform, 100, tfPayload)
	envCh <- source.Envelope{Topic: "/junk", Family: "mystery", StampNS: 150, Payload: json.RawMessage(`{}`)}
	envCh <- envelope(t, "/markers", source.FamilyMarker, 200, markerPayload)

	drainMessages(r, envCh, cursor, logger)

	assert.Empty(t, envCh)
	assert.Equal(t, 1, r.MarkerCount())
	// Undecodable messages are skipped but still advance the clock.
	assert.Equal(t, int64(200), cursor.stampNS)
}

func TestTimeCursor(t *testing.T) {
	c := newTimeCursor()

	// Before any stamp the cursor tracks the wall clock.
	now := time.Now().UnixNano()
	assert.InDelta(t, now, c.now(), float64(time.Second))

	c.observe(1000)
	got := c.now()
	assert.GreaterOrEqual(t, got, int64(1000))
	assert.Less(t, got, int64(1000)+int64(10*time.Second))

	// Older stamps never move the cursor backwards.
	c.observe(500)
	assert.Equal(t, int64(1000), c.stampNS)

	c.observe(2000)
	assert.GreaterOrEqual(t, c.now(), int64(2000))
}

func TestRunSourceNone(t *testing.T) {
	cfg := DefaultConfig()
	sink := source.SinkFunc(func(*source.Envelope) error {
		t.Fatal("no messages expected")
		return nil
	})
	require.NoError(t, runSource(context.Background(), cfg, sink))
}

func TestConfigureScene(t *testing.T) {
	r := testRenderer(t)
	cfg := DefaultConfig()
	pc := render.DefaultPointCloudOptions()
	pc.PointSize = 5
	grid := render.DefaultGridOptions()
	cfg.Topics = []TopicConfig{
		{Name: "/scan", Family: source.FamilyPointCloud, PointCloud: &pc},
		{Name: "/map", Family: source.FamilyGrid, Grid: &grid},
	}
	require.NoError(t, configureScene(r, cfg))
}
