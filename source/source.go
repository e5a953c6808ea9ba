// Package source feeds the renderer with decoded robotics messages, either
// replayed from a recorded SQLite log or streamed live over a WebSocket.
// Both sources deliver the same Envelope shape to a caller-provided Sink;
// the caller decides how envelopes reach the renderer.
package source

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gantry3d/gantry/msg"
)

var (
	// ErrClosed is returned by store operations after Close.
	ErrClosed = errors.New("message store is closed")

	// ErrUnknownFamily is returned by Decode for a family this package has
	// no message type for.
	ErrUnknownFamily = errors.New("unknown message family")
)

// Family names the decoded type of an envelope payload.
type Family string

const (
	FamilyTransform  Family = "tf"
	FamilyMarker     Family = "marker"
	FamilyPointCloud Family = "pointcloud"
	FamilyGrid       Family = "grid"
)

func (f Family) Valid() bool {
	switch f {
	case FamilyTransform, FamilyMarker, FamilyPointCloud, FamilyGrid:
		return true
	}
	return false
}

// Envelope is one recorded or streamed message: routing metadata plus the
// still-encoded JSON payload.
type Envelope struct {
	Topic   string          `json:"topic"`
	Family  Family          `json:"family"`
	StampNS int64           `json:"stamp"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into the message type its family names.
// The result is one of *msg.FrameTransform, *msg.Marker, *msg.PointCloud2
// or *msg.OccupancyGrid.
func (e *Envelope) Decode() (any, error) {
	var (
		out any
		err error
	)
	switch e.Family {
	case FamilyTransform:
		m := &msg.FrameTransform{}
		err = json.Unmarshal(e.Payload, m)
		out = m
	case FamilyMarker:
		m := &msg.Marker{}
		err = json.Unmarshal(e.Payload, m)
		out = m
	case FamilyPointCloud:
		m := &msg.PointCloud2{}
		err = json.Unmarshal(e.Payload, m)
		out = m
	case FamilyGrid:
		m := &msg.OccupancyGrid{}
		err = json.Unmarshal(e.Payload, m)
		out = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, e.Family)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", e.Family, err)
	}
	return out, nil
}

// Sink consumes envelopes from a source in delivery order. A non-nil error
// stops the source.
type Sink interface {
	Consume(env *Envelope) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(env *Envelope) error

func (f SinkFunc) Consume(env *Envelope) error { return f(env) }
