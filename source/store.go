package source

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is an append-only SQLite log of message envelopes, one row per
// message in arrival order. The database is opened on first use.
type Store struct {
	path string

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewStore returns a store backed by the database at path. ":memory:" keeps
// the log in memory, which limits the store to a single connection.
func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) getDB() (*sql.DB, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	s.dbOnce.Do(func() {
		dsn := s.path
		if s.path != ":memory:" {
			dsn = "file:" + s.path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
		}
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			s.dbErr = fmt.Errorf("opening database: %w", err)
			return
		}
		if s.path == ":memory:" {
			// Every pooled connection would otherwise get its own empty
			// in-memory database.
			db.SetMaxOpenConns(1)
		}
		if _, err := db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		s.db = db
	})
	return s.db, s.dbErr
}

const insertMessageSQL = `
INSERT INTO messages (topic, family, stamp_ns, payload)
VALUES (?, ?, ?, ?)`

// Append records one envelope and returns its log ID.
func (s *Store) Append(ctx context.Context, env *Envelope) (int64, error) {
	if !env.Family.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFamily, env.Family)
	}
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, insertMessageSQL, env.Topic, string(env.Family), env.StampNS, string(env.Payload))
	if err != nil {
		return 0, fmt.Errorf("inserting message: %w", err)
	}
	return res.LastInsertId()
}

// AppendBatch records envelopes in one transaction.
func (s *Store) AppendBatch(ctx context.Context, envs []Envelope) (err error) {
	if len(envs) == 0 {
		return nil
	}
	for i := range envs {
		if !envs[i].Family.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownFamily, envs[i].Family)
		}
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertMessageSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer func() {
		if cErr := stmt.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing statement: %w", cErr)
		}
	}()

	for i := range envs {
		env := &envs[i]
		if _, err = stmt.ExecContext(ctx, env.Topic, string(env.Family), env.StampNS, string(env.Payload)); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const selectBoundsSQL = `
SELECT COALESCE(MIN(stamp_ns), 0), COALESCE(MAX(stamp_ns), 0), COUNT(*)
FROM messages`

// StampBounds reports the stamp range of the log and how many messages it
// holds. An empty log reports zero bounds.
func (s *Store) StampBounds(ctx context.Context) (minNS, maxNS, count int64, err error) {
	db, err := s.getDB()
	if err != nil {
		return 0, 0, 0, err
	}
	if err := db.QueryRowContext(ctx, selectBoundsSQL).Scan(&minNS, &maxNS, &count); err != nil {
		return 0, 0, 0, fmt.Errorf("querying stamp bounds: %w", err)
	}
	return minNS, maxNS, count, nil
}

const selectTopicsSQL = `
SELECT DISTINCT topic FROM messages ORDER BY topic`

// Topics lists the distinct topics present in the log.
func (s *Store) Topics(ctx context.Context) (topics []string, err error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, selectTopicsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying topics: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()

	for rows.Next() {
		var t string
		if err = rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning topic: %w", err)
		}
		topics = append(topics, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating topics: %w", err)
	}
	return topics, nil
}

// Close releases the database connection. It is safe to call more than
// once; operations after Close return ErrClosed.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.db != nil {
			s.closeErr = s.db.Close()
			s.db = nil
		}
	})
	return s.closeErr
}
