package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// IterOption narrows the range of messages an iterator visits.
type IterOption func(*MessageIterator)

// WithTopics keeps only messages on the given topics.
func WithTopics(topics ...string) IterOption {
	return func(it *MessageIterator) {
		it.topics = topics
	}
}

// WithStartStamp skips messages stamped before startNS.
func WithStartStamp(startNS int64) IterOption {
	return func(it *MessageIterator) {
		it.startNS = &startNS
	}
}

// WithEndStamp skips messages stamped after endNS.
func WithEndStamp(endNS int64) IterOption {
	return func(it *MessageIterator) {
		it.endNS = &endNS
	}
}

// WithStampRange keeps messages with startNS <= stamp <= endNS.
func WithStampRange(startNS, endNS int64) IterOption {
	return func(it *MessageIterator) {
		it.startNS = &startNS
		it.endNS = &endNS
	}
}

// MessageIterator walks the log in stamp order, ties broken by insertion
// order. Close releases the underlying query.
type MessageIterator struct {
	topics  []string
	startNS *int64
	endNS   *int64

	rows *sql.Rows
	cur  Envelope
	err  error
}

// Messages opens an iterator over the log. The iterator holds a database
// connection until Close.
func (s *Store) Messages(ctx context.Context, opts ...IterOption) (*MessageIterator, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	it := &MessageIterator{}
	for _, opt := range opts {
		opt(it)
	}

	var b strings.Builder
	b.WriteString("SELECT topic, family, stamp_ns, payload FROM messages")
	var where []string
	var args []any
	if len(it.topics) > 0 {
		where = append(where, "topic IN (?"+strings.Repeat(", ?", len(it.topics)-1)+")")
		for _, t := range it.topics {
			args = append(args, t)
		}
	}
	if it.startNS != nil {
		where = append(where, "stamp_ns >= ?")
		args = append(args, *it.startNS)
	}
	if it.endNS != nil {
		where = append(where, "stamp_ns <= ?")
		args = append(args, *it.endNS)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY stamp_ns, id")

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	it.rows = rows
	return it, nil
}

// Next advances to the next message, reporting false at the end of the log
// or on error.
func (it *MessageIterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}
	var family string
	var payload []byte
	if err := it.rows.Scan(&it.cur.Topic, &family, &it.cur.StampNS, &payload); err != nil {
		it.err = fmt.Errorf("scanning message: %w", err)
		return false
	}
	it.cur.Family = Family(family)
	it.cur.Payload = payload
	return true
}

// Current returns the envelope Next advanced to. The envelope is reused on
// the following Next call.
func (it *MessageIterator) Current() *Envelope {
	return &it.cur
}

// Err returns the first error hit during iteration.
func (it *MessageIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

// Close releases the query resources.
func (it *MessageIterator) Close() error {
	return it.rows.Close()
}
