package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantry3d/gantry/msg"
)

func memStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(":memory:")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func tfEnvelope(topic string, stampNS int64) Envelope {
	return Envelope{
		Topic:   topic,
		Family:  FamilyTransform,
		StampNS: stampNS,
		Payload: []byte(`{"parent_frame_id":"map","child_frame_id":"base","translation":{"x":1,"y":2,"z":3},"rotation":{"w":1}}`),
	}
}

func collect(t *testing.T, it *MessageIterator) []Envelope {
	t.Helper()
	var out []Envelope
	for it.Next() {
		env := *it.Current()
		out = append(out, env)
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	return out
}

func TestStoreAppendAndIterate(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	// Inserted out of stamp order on purpose.
	for _, stamp := range []int64{300, 100, 200} {
		_, err := s.Append(ctx, &Envelope{
			Topic:   "/tf",
			Family:  FamilyTransform,
			StampNS: stamp,
			Payload: []byte(`{"child_frame_id":"base"}`),
		})
		require.NoError(t, err)
	}

	it, err := s.Messages(ctx)
	require.NoError(t, err)
	envs := collect(t, it)
	require.Len(t, envs, 3)
	assert.Equal(t, int64(100), envs[0].StampNS)
	assert.Equal(t, int64(200), envs[1].StampNS)
	assert.Equal(t, int64(300), envs[2].StampNS)
	assert.Equal(t, "/tf", envs[0].Topic)
	assert.Equal(t, FamilyTransform, envs[0].Family)
	assert.JSONEq(t, `{"child_frame_id":"base"}`, string(envs[0].Payload))
}

func TestStoreRejectsUnknownFamily(t *testing.T) {
	s := memStore(t)
	_, err := s.Append(context.Background(), &Envelope{Topic: "/x", Family: "mystery"})
	assert.ErrorIs(t, err, ErrUnknownFamily)

	err = s.AppendBatch(context.Background(), []Envelope{tfEnvelope("/tf", 1), {Topic: "/x"}})
	assert.ErrorIs(t, err, ErrUnknownFamily)
}

func TestStoreAppendBatch(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	batch := []Envelope{
		tfEnvelope("/tf", 10),
		tfEnvelope("/tf", 20),
		tfEnvelope("/tf_static", 5),
	}
	require.NoError(t, s.AppendBatch(ctx, batch))
	require.NoError(t, s.AppendBatch(ctx, nil))

	_, _, count, err := s.StampBounds(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestStoreStampBounds(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	minNS, maxNS, count, err := s.StampBounds(ctx)
	require.NoError(t, err)
	assert.Zero(t, minNS)
	assert.Zero(t, maxNS)
	assert.Zero(t, count)

	require.NoError(t, s.AppendBatch(ctx, []Envelope{
		tfEnvelope("/tf", 250),
		tfEnvelope("/tf", 50),
	}))
	minNS, maxNS, count, err = s.StampBounds(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), minNS)
	assert.Equal(t, int64(250), maxNS)
	assert.Equal(t, int64(2), count)
}

func TestStoreTopics(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendBatch(ctx, []Envelope{
		tfEnvelope("/tf", 1),
		tfEnvelope("/scan", 2),
		tfEnvelope("/tf", 3),
	}))

	topics, err := s.Topics(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/scan", "/tf"}, topics)
}

func TestIteratorFilters(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendBatch(ctx, []Envelope{
		tfEnvelope("/tf", 100),
		tfEnvelope("/scan", 150),
		tfEnvelope("/tf", 200),
		tfEnvelope("/map", 300),
	}))

	it, err := s.Messages(ctx, WithTopics("/tf"))
	require.NoError(t, err)
	envs := collect(t, it)
	require.Len(t, envs, 2)
	assert.Equal(t, int64(100), envs[0].StampNS)
	assert.Equal(t, int64(200), envs[1].StampNS)

	it, err = s.Messages(ctx, WithStampRange(150, 250))
	require.NoError(t, err)
	envs = collect(t, it)
	require.Len(t, envs, 2)
	assert.Equal(t, "/scan", envs[0].Topic)
	assert.Equal(t, "/tf", envs[1].Topic)

	it, err = s.Messages(ctx, WithTopics("/tf", "/map"), WithStartStamp(150))
	require.NoError(t, err)
	envs = collect(t, it)
	require.Len(t, envs, 2)
	assert.Equal(t, int64(200), envs[0].StampNS)
	assert.Equal(t, int64(300), envs[1].StampNS)
}

func TestStoreClosed(t *testing.T) {
	s := NewStore(":memory:")
	_, err := s.Append(context.Background(), ptr(tfEnvelope("/tf", 1)))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Append(context.Background(), ptr(tfEnvelope("/tf", 2)))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Messages(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func ptr(e Envelope) *Envelope { return &e }

func TestReplayDeliversInOrder(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendBatch(ctx, []Envelope{
		tfEnvelope("/tf", 30),
		tfEnvelope("/tf", 10),
		tfEnvelope("/tf", 20),
	}))

	var stamps []int64
	sink := SinkFunc(func(env *Envelope) error {
		stamps = append(stamps, env.StampNS)
		return nil
	})
	require.NoError(t, s.Replay(ctx, sink, 0))
	assert.Equal(t, []int64{10, 20, 30}, stamps)
}

func TestReplaySinkErrorStops(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendBatch(ctx, []Envelope{
		tfEnvelope("/tf", 1),
		tfEnvelope("/tf", 2),
	}))

	boom := errors.New("boom")
	var delivered int
	sink := SinkFunc(func(env *Envelope) error {
		delivered++
		return boom
	})
	err := s.Replay(ctx, sink, 0)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, delivered)
}

func TestReplayPacesByStamp(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()
	gap := 150 * time.Millisecond
	require.NoError(t, s.AppendBatch(ctx, []Envelope{
		tfEnvelope("/tf", 0),
		tfEnvelope("/tf", gap.Nanoseconds()),
	}))

	start := time.Now()
	require.NoError(t, s.Replay(ctx, SinkFunc(func(*Envelope) error { return nil }), 1))
	assert.GreaterOrEqual(t, time.Since(start), gap-20*time.Millisecond)
}

func TestReplayContextCancel(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendBatch(ctx, []Envelope{
		tfEnvelope("/tf", 0),
		tfEnvelope("/tf", (10 * time.Second).Nanoseconds()),
	}))

	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := s.Replay(shortCtx, SinkFunc(func(*Envelope) error { return nil }), 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestEnvelopeDecode(t *testing.T) {
	cases := []struct {
		family  Family
		payload string
		check   func(t *testing.T, got any)
	}{
		{
			family:  FamilyTransform,
			payload: `{"parent_frame_id":"map","child_frame_id":"base","translation":{"x":1}}`,
			check: func(t *testing.T, got any) {
				m, ok := got.(*msg.FrameTransform)
				require.True(t, ok)
				assert.Equal(t, "map", m.ParentFrameID)
				assert.Equal(t, 1.0, m.Translation.X)
			},
		},
		{
			family:  FamilyMarker,
			payload: `{"ns":"hulls","id":4,"type":1}`,
			check: func(t *testing.T, got any) {
				m, ok := got.(*msg.Marker)
				require.True(t, ok)
				assert.Equal(t, "hulls", m.Namespace)
				assert.Equal(t, int32(4), m.ID)
			},
		},
		{
			family:  FamilyPointCloud,
			payload: `{"width":2,"height":1,"point_step":12}`,
			check: func(t *testing.T, got any) {
				m, ok := got.(*msg.PointCloud2)
				require.True(t, ok)
				assert.Equal(t, uint32(2), m.Width)
			},
		},
		{
			family:  FamilyGrid,
			payload: `{"resolution":0.05,"width":2,"height":2,"data":[0,50,100,-1]}`,
			check: func(t *testing.T, got any) {
				m, ok := got.(*msg.OccupancyGrid)
				require.True(t, ok)
				assert.Equal(t, []int8{0, 50, 100, -1}, m.Data)
			},
		},
	}
	for _, tc := range cases {
		t.Run(string(tc.family), func(t *testing.T) {
			env := &Envelope{Family: tc.family, Payload: []byte(tc.payload)}
			got, err := env.Decode()
			require.NoError(t, err)
			tc.check(t, got)
		})
	}

	_, err := (&Envelope{Family: "mystery", Payload: []byte(`{}`)}).Decode()
	assert.ErrorIs(t, err, ErrUnknownFamily)

	_, err = (&Envelope{Family: FamilyMarker, Payload: []byte(`{broken`)}).Decode()
	assert.Error(t, err)
}
