// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists survey results and user preferences in
// SQLite. Raw answers are stored as deterministic CBOR blobs; computed
// scores are stored as JSON text so exports stay human-readable.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/opine-hq/opine/lib/clock"
	"github.com/opine-hq/opine/lib/codec"
	"github.com/opine-hq/opine/lib/sqlitepool"
)

// ErrNoResults is returned by Latest when the user has never
// completed a survey.
var ErrNoResults = errors.New("no results for user")

// schema is applied on every new pool connection. CREATE IF NOT
// EXISTS makes it idempotent across the pool.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id INTEGER PRIMARY KEY,
	lang    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id        INTEGER NOT NULL,
	chat_id        INTEGER NOT NULL,
	lang           TEXT NOT NULL,
	survey_key     TEXT NOT NULL,
	survey_version TEXT NOT NULL,
	survey_hash    TEXT NOT NULL,
	ts             INTEGER NOT NULL,
	raw            BLOB NOT NULL,
	scores         TEXT NOT NULL,
	shared         INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS results_user_ts ON results (user_id, ts DESC);
`

// Result is one completed survey run.
type Result struct {
	// ID is the database row ID, zero until saved.
	ID int64

	// UserID and ChatID identify the Telegram user and conversation.
	UserID int64
	ChatID int64

	// Lang is the locale the survey was taken in.
	Lang string

	// SurveyKey, SurveyVersion, and SurveyHash identify the exact
	// definition that produced this result.
	SurveyKey     string
	SurveyVersion string
	SurveyHash    string

	// Timestamp is when the survey was completed.
	Timestamp time.Time

	// Answers are the raw per-item responses, before reversal.
	Answers []int

	// Scales maps scale key to rounded mean score.
	Scales map[string]float64

	// Shared records whether the user forwarded this result.
	Shared bool
}

// Store manages SQLite storage for survey results.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Config holds the parameters for opening a result store.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to
	// 4 if zero or negative.
	PoolSize int

	// Clock provides timestamps for saved results.
	Clock clock.Clock

	// Logger receives operational messages.
	Logger *slog.Logger
}

// Open creates a result store backed by SQLite. The database file is
// created if it does not exist; the schema is applied on each pool
// connection.
func Open(cfg Config) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("result store: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("result store: Logger is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("result store: %w", err)
	}

	return &Store{pool: pool, clock: cfg.Clock, logger: cfg.Logger}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// SetUserLang records the user's chosen locale.
func (s *Store) SetUserLang(ctx context.Context, userID int64, lang string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("result store: set user lang: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO users (user_id, lang) VALUES (?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET lang = excluded.lang`,
		&sqlitex.ExecOptions{Args: []any{userID, lang}})
	if err != nil {
		return fmt.Errorf("result store: set user lang: %w", err)
	}
	return nil
}

// UserLang returns the user's stored locale, or "" if the user has
// never chosen one.
func (s *Store) UserLang(ctx context.Context, userID int64) (string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", fmt.Errorf("result store: user lang: %w", err)
	}
	defer s.pool.Put(conn)

	var lang string
	err = sqlitex.Execute(conn,
		"SELECT lang FROM users WHERE user_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{userID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				lang = stmt.ColumnText(0)
				return nil
			},
		})
	if err != nil {
		return "", fmt.Errorf("result store: user lang: %w", err)
	}
	return lang, nil
}

// SaveResult writes a completed survey run. The users row is upserted
// and the results row inserted in a single IMMEDIATE transaction. The
// result's ID and Timestamp are filled in on success.
func (s *Store) SaveResult(ctx context.Context, result *Result) error {
	raw, err := codec.Marshal(result.Answers)
	if err != nil {
		return fmt.Errorf("result store: encode answers: %w", err)
	}
	scores, err := json.Marshal(result.Scales)
	if err != nil {
		return fmt.Errorf("result store: encode scores: %w", err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("result store: save result: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("result store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		`INSERT INTO users (user_id, lang) VALUES (?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET lang = excluded.lang`,
		&sqlitex.ExecOptions{Args: []any{result.UserID, result.Lang}})
	if err != nil {
		return fmt.Errorf("result store: upsert user: %w", err)
	}

	result.Timestamp = s.clock.Now().UTC().Truncate(time.Second)

	err = sqlitex.Execute(conn,
		`INSERT INTO results
		 (user_id, chat_id, lang, survey_key, survey_version, survey_hash, ts, raw, scores, shared)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		&sqlitex.ExecOptions{
			Args: []any{
				result.UserID,
				result.ChatID,
				result.Lang,
				result.SurveyKey,
				result.SurveyVersion,
				result.SurveyHash,
				result.Timestamp.Unix(),
				raw,
				string(scores),
			},
		})
	if err != nil {
		return fmt.Errorf("result store: insert result: %w", err)
	}

	result.ID = conn.LastInsertRowID()
	return nil
}

// Latest returns the user's most recent result, decoded. Returns
// ErrNoResults when the user has never completed a survey.
func (s *Store) Latest(ctx context.Context, userID int64) (*Result, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("result store: latest: %w", err)
	}
	defer s.pool.Put(conn)

	var result *Result
	err = sqlitex.Execute(conn,
		`SELECT id, user_id, chat_id, lang, survey_key, survey_version, survey_hash, ts, raw, scores, shared
		 FROM results WHERE user_id = ? ORDER BY ts DESC, id DESC LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{userID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				scanned, err := scanResult(stmt)
				if err != nil {
					return err
				}
				result = scanned
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("result store: latest: %w", err)
	}
	if result == nil {
		return nil, ErrNoResults
	}
	return result, nil
}

// MarkShared flags a saved result as forwarded.
func (s *Store) MarkShared(ctx context.Context, resultID int64) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("result store: mark shared: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"UPDATE results SET shared = 1 WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{resultID}})
	if err != nil {
		return fmt.Errorf("result store: mark shared: %w", err)
	}
	return nil
}

// Count returns the total number of stored results.
func (s *Store) Count(ctx context.Context) (int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("result store: count: %w", err)
	}
	defer s.pool.Put(conn)

	var count int64
	err = sqlitex.Execute(conn,
		"SELECT COUNT(*) FROM results",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("result store: count: %w", err)
	}
	return count, nil
}

// scanResult decodes one results row.
//
// Columns: id(0), user_id(1), chat_id(2), lang(3), survey_key(4),
// survey_version(5), survey_hash(6), ts(7), raw(8), scores(9), shared(10)
func scanResult(stmt *sqlite.Stmt) (*Result, error) {
	result := &Result{
		ID:            stmt.ColumnInt64(0),
		UserID:        stmt.ColumnInt64(1),
		ChatID:        stmt.ColumnInt64(2),
		Lang:          stmt.ColumnText(3),
		SurveyKey:     stmt.ColumnText(4),
		SurveyVersion: stmt.ColumnText(5),
		SurveyHash:    stmt.ColumnText(6),
		Timestamp:     time.Unix(stmt.ColumnInt64(7), 0).UTC(),
		Shared:        stmt.ColumnInt64(10) != 0,
	}

	raw := make([]byte, stmt.ColumnLen(8))
	stmt.ColumnBytes(8, raw)
	if err := codec.Unmarshal(raw, &result.Answers); err != nil {
		return nil, fmt.Errorf("decode answers for result %d: %w", result.ID, err)
	}

	if err := json.Unmarshal([]byte(stmt.ColumnText(9)), &result.Scales); err != nil {
		return nil, fmt.Errorf("decode scores for result %d: %w", result.ID, err)
	}

	return result, nil
}
