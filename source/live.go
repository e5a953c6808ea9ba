package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gantry3d/gantry"
)

const (
	liveBackoffMin   = time.Second
	liveBackoffMax   = 60 * time.Second
	liveBackoffReset = 10 * time.Second
)

type subscribeRequest struct {
	Op     string   `json:"op"`
	Topics []string `json:"topics"`
}

// Live connects to a message server, subscribes to topics (all topics when
// empty) and forwards pushed envelopes to sink. It returns when the
// connection fails, the sink returns an error, or ctx is canceled.
func Live(ctx context.Context, url string, topics []string, sink Sink) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", url, err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeRequest{Op: "subscribe", Topics: topics}); err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	gantry.Log().Infof("source: connected to %s, %d topic subscriptions", url, len(topics))

	// ReadMessage has no context form; closing the connection is how a
	// canceled ctx unblocks it.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading message: %w", err)
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			gantry.Log().Warnf("source: skipping malformed frame: %v", err)
			continue
		}
		if !env.Family.Valid() {
			gantry.Log().Warnf("source: skipping frame on %q with unknown family %q", env.Topic, env.Family)
			continue
		}
		if err := sink.Consume(&env); err != nil {
			return fmt.Errorf("delivering %s message: %w", env.Topic, err)
		}
	}
}

// LiveReconnect runs Live in a loop, re-dialing with doubling backoff after
// every failure until ctx is canceled. Connections that survive a while
// reset the backoff.
func LiveReconnect(ctx context.Context, url string, topics []string, sink Sink) error {
	backoff := liveBackoffMin
	for {
		connectedAt := time.Now()
		err := Live(ctx, url, topics, sink)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(connectedAt) > liveBackoffReset {
			backoff = liveBackoffMin
		}
		gantry.Log().Warnf("source: live connection lost (%v), reconnecting in %s", err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > liveBackoffMax {
			backoff = liveBackoffMax
		}
	}
}
