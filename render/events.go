package render

import (
	"github.com/google/uuid"

	"github.com/gantry3d/gantry/core"
)

// EventType enumerates renderer lifecycle and interaction events.
type EventType uint8

const (
	EventStartFrame EventType = iota
	EventEndFrame
	EventCameraMove
	EventObjectSelect
	EventTransformTreeUpdate
	EventLabelShow
	EventLabelHide
)

func (t EventType) String() string {
	switch t {
	case EventStartFrame:
		return "start-frame"
	case EventEndFrame:
		return "end-frame"
	case EventCameraMove:
		return "camera-move"
	case EventObjectSelect:
		return "object-select"
	case EventTransformTreeUpdate:
		return "transform-tree-update"
	case EventLabelShow:
		return "label-show"
	case EventLabelHide:
		return "label-hide"
	}
	return "unknown"
}

// Event is the payload delivered to subscribers. Only the fields relevant
// to Type are set.
type Event struct {
	Type EventType

	// Time is set for start-frame and end-frame.
	Time int64

	// Camera is set for camera-move.
	Camera core.CameraState

	// Key and PickID are set for object-select.
	Key    Key
	PickID uint32

	// LabelID is set for label-show and label-hide.
	LabelID string
}

// Handler receives events synchronously on the renderer goroutine. Handlers
// must not call back into the renderer.
type Handler func(Event)

type subscription struct {
	token   string
	handler Handler
}

// Emitter is a synchronous event dispatcher. Subscribers per event type are
// invoked in subscription order.
type Emitter struct {
	subs map[EventType][]subscription
}

func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[EventType][]subscription)}
}

// Subscribe registers a handler and returns an opaque token for Unsubscribe.
func (e *Emitter) Subscribe(t EventType, h Handler) string {
	token := uuid.NewString()
	e.subs[t] = append(e.subs[t], subscription{token: token, handler: h})
	return token
}

// Unsubscribe removes the handler registered under token. Unknown tokens
// are ignored.
func (e *Emitter) Unsubscribe(token string) {
	for t, list := range e.subs {
		for i, s := range list {
			if s.token == token {
				e.subs[t] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers ev to every subscriber of its type, in order.
func (e *Emitter) Emit(ev Event) {
	for _, s := range e.subs[ev.Type] {
		s.handler(ev)
	}
}

// SubscriberCount returns the total number of live subscriptions.
func (e *Emitter) SubscriberCount() int {
	n := 0
	for _, list := range e.subs {
		n += len(list)
	}
	return n
}

// RemoveAll drops every subscription.
func (e *Emitter) RemoveAll() {
	e.subs = make(map[EventType][]subscription)
}
