package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// SQLite is the Store implementation backed by a local sqlite database.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path and ensures the schema
// exists. Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent tables.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tables (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			config TEXT NOT NULL,
			seed TEXT NOT NULL,
			bucket_key TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS seats (
			table_id TEXT NOT NULL,
			seat_id INTEGER NOT NULL,
			agent_id TEXT,
			stack INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (table_id, seat_id)
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			table_id TEXT NOT NULL,
			seat_id INTEGER NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			table_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			hand_number INTEGER,
			type TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (table_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			api_key_hash TEXT NOT NULL UNIQUE,
			last_seen_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}
	return false
}

func (s *SQLite) CreateTable(ctx context.Context, t TableRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tables (id, status, config, seed, bucket_key, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Status), string(t.ConfigJSON), t.Seed, t.BucketKey, t.CreatedAt)
	if isUniqueViolation(err) {
		return ErrExists
	}
	return err
}

func (s *SQLite) TableByID(ctx context.Context, id string) (TableRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, config, seed, bucket_key, created_at FROM tables WHERE id = ?`, id)
	return scanTable(row)
}

func (s *SQLite) ListTables(ctx context.Context, status TableStatus) ([]TableRecord, error) {
	query := `SELECT id, status, config, seed, bucket_key, created_at FROM tables`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TableRecord
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTable(row rowScanner) (TableRecord, error) {
	var t TableRecord
	var status, config string
	err := row.Scan(&t.ID, &status, &config, &t.Seed, &t.BucketKey, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return TableRecord{}, ErrNotFound
	}
	if err != nil {
		return TableRecord{}, err
	}
	t.Status = TableStatus(status)
	t.ConfigJSON = []byte(config)
	return t, nil
}

func (s *SQLite) UpdateTableStatus(ctx context.Context, id string, status TableStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tables SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) UpsertSeat(ctx context.Context, seat SeatRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO seats (table_id, seat_id, agent_id, stack, is_active) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(table_id, seat_id) DO UPDATE SET agent_id = excluded.agent_id,
		 stack = excluded.stack, is_active = excluded.is_active`,
		seat.TableID, seat.SeatID, seat.AgentID, seat.Stack, seat.IsActive)
	return err
}

func (s *SQLite) SeatsForTable(ctx context.Context, tableID string) ([]SeatRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_id, seat_id, COALESCE(agent_id, ''), stack, is_active FROM seats
		 WHERE table_id = ? ORDER BY seat_id`, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SeatRecord
	for rows.Next() {
		var seat SeatRecord
		if err := rows.Scan(&seat.TableID, &seat.SeatID, &seat.AgentID, &seat.Stack, &seat.IsActive); err != nil {
			return nil, err
		}
		out = append(out, seat)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateSeatStacks(ctx context.Context, tableID string, seats []SeatRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, seat := range seats {
		if _, err := tx.ExecContext(ctx,
			`UPDATE seats SET stack = ?, is_active = ? WHERE table_id = ? AND seat_id = ?`,
			seat.Stack, seat.IsActive, tableID, seat.SeatID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) ClearSeat(ctx context.Context, tableID string, seatID int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM seats WHERE table_id = ? AND seat_id = ?`, tableID, seatID)
	return err
}

func (s *SQLite) CreateSession(ctx context.Context, sess SessionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, agent_id, table_id, seat_id, expires_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.AgentID, sess.TableID, sess.SeatID, sess.ExpiresAt)
	if isUniqueViolation(err) {
		return ErrExists
	}
	return err
}

func (s *SQLite) SessionByID(ctx context.Context, id string) (SessionRecord, error) {
	var sess SessionRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, table_id, seat_id, expires_at FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.AgentID, &sess.TableID, &sess.SeatID, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, ErrNotFound
	}
	if err != nil {
		return SessionRecord{}, err
	}
	return sess, nil
}

func (s *SQLite) RevokeSessions(ctx context.Context, agentID, tableID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE agent_id = ? AND table_id = ?`, agentID, tableID)
	return err
}

func (s *SQLite) AppendEvent(ctx context.Context, e EventRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (table_id, seq, hand_number, type, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.TableID, e.Seq, e.HandNumber, e.Type, string(e.Payload), e.CreatedAt)
	if isUniqueViolation(err) {
		return ErrExists
	}
	return err
}

func (s *SQLite) Events(ctx context.Context, tableID string, fromSeq uint64, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_id, seq, COALESCE(hand_number, 0), type, payload, created_at FROM events
		 WHERE table_id = ? AND seq >= ? ORDER BY seq LIMIT ?`, tableID, fromSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var e EventRecord
		var payload string
		if err := rows.Scan(&e.TableID, &e.Seq, &e.HandNumber, &e.Type, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = []byte(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateAgent(ctx context.Context, a AgentRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (id, name, api_key_hash, last_seen_at) VALUES (?, ?, ?, ?)`,
		a.ID, a.Name, a.APIKeyHash, a.LastSeenAt)
	if isUniqueViolation(err) {
		return ErrExists
	}
	return err
}

func (s *SQLite) AgentByID(ctx context.Context, id string) (AgentRecord, error) {
	return s.agentBy(ctx, `id = ?`, id)
}

func (s *SQLite) AgentByKeyHash(ctx context.Context, hash string) (AgentRecord, error) {
	return s.agentBy(ctx, `api_key_hash = ?`, hash)
}

func (s *SQLite) agentBy(ctx context.Context, where string, arg any) (AgentRecord, error) {
	var a AgentRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, api_key_hash, last_seen_at FROM agents WHERE `+where, arg).
		Scan(&a.ID, &a.Name, &a.APIKeyHash, &a.LastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return AgentRecord{}, ErrNotFound
	}
	if err != nil {
		return AgentRecord{}, err
	}
	return a, nil
}

func (s *SQLite) TouchAgent(ctx context.Context, id string, seen time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE agents SET last_seen_at = ? WHERE id = ?`, seen, id)
	return err
}
