package source

import (
	"context"
	"fmt"
	"time"

	"github.com/gantry3d/gantry"
)

// Replay streams the recorded log to sink in stamp order, pacing delivery
// by the recorded timestamps. speed scales the clock: 1 replays in real
// time, 2 twice as fast; speed <= 0 delivers as fast as the sink accepts.
// Replay returns nil after the last message, or the first sink or context
// error that stopped it.
func (s *Store) Replay(ctx context.Context, sink Sink, speed float64, opts ...IterOption) error {
	it, err := s.Messages(ctx, opts...)
	if err != nil {
		return err
	}
	defer it.Close()

	var (
		timer      *time.Timer
		origin     time.Time
		firstStamp int64
		started    bool
		delivered  int64
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for it.Next() {
		env := it.Current()
		if !started {
			started = true
			firstStamp = env.StampNS
			origin = time.Now()
		} else if speed > 0 {
			offset := time.Duration(float64(env.StampNS-firstStamp) / speed)
			if wait := time.Until(origin.Add(offset)); wait > 0 {
				if timer == nil {
					timer = time.NewTimer(wait)
				} else {
					timer.Reset(wait)
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sink.Consume(env); err != nil {
			return fmt.Errorf("delivering %s message: %w", env.Topic, err)
		}
		delivered++
	}
	if err := it.Err(); err != nil {
		return err
	}
	gantry.Log().Infof("source: replay finished, %d messages delivered", delivered)
	return nil
}
