package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/util"
)

// timeLayout is fixed width so that text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLStore persists intents as JSON documents in a SQL table.
// It works with SQLite (modernc.org/sqlite) and PostgreSQL (lib/pq).
type SQLStore struct {
	db       *sql.DB
	postgres bool
}

// Open connects to a SQL database and prepares the schema.
// driver is "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// Each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	s, err := NewSQLStore(ctx, db, driver == "postgres")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an existing connection and migrates the schema
func NewSQLStore(ctx context.Context, db *sql.DB, postgres bool) (*SQLStore, error) {
	s := &SQLStore{db: db, postgres: postgres}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate intents: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS intents (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		evaluation_hash TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		body TEXT NOT NULL
	);`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS intents_evaluation_hash ON intents (evaluation_hash)`)
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (*model.Intent, error) {
	return s.queryOne(ctx, `SELECT body FROM intents WHERE id = ?`, id)
}

func (s *SQLStore) FindByEvaluationHash(ctx context.Context, hash string) (*model.Intent, error) {
	if hash == "" {
		return nil, ErrNotFound
	}
	return s.queryOne(ctx, `SELECT body FROM intents WHERE evaluation_hash = ? ORDER BY created_at LIMIT 1`, hash)
}

func (s *SQLStore) Put(ctx context.Context, intent *model.Intent) error {
	body, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("encode intent %s: %w", intent.ID, err)
	}

	query := `INSERT INTO intents (id, status, evaluation_hash, created_at, body)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		status = excluded.status,
		evaluation_hash = excluded.evaluation_hash,
		body = excluded.body`

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		intent.ID, string(intent.Status), intent.EvaluationHash(), intent.CreatedAt.UTC().Format(timeLayout), string(body),
	)
	if err != nil {
		return fmt.Errorf("upsert intent %s: %w", intent.ID, err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, status model.IntentStatus) ([]*model.Intent, error) {
	query := `SELECT body FROM intents ORDER BY created_at, id`
	var args []any
	if status != "" {
		query = `SELECT body FROM intents WHERE status = ? ORDER BY created_at, id`
		args = append(args, string(status))
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list intents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*model.Intent, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		in, err := decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) queryOne(ctx context.Context, query string, arg any) (*model.Intent, error) {
	var body string
	err := s.db.QueryRowContext(ctx, s.rebind(query), arg).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query intent: %w", err)
	}
	return decode(body)
}

func decode(body string) (*model.Intent, error) {
	var in model.Intent
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}
	return &in, nil
}

// rebind rewrites ? placeholders as $n for PostgreSQL
func (s *SQLStore) rebind(query string) string {
	return util.Rebind(query, s.postgres)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
)
