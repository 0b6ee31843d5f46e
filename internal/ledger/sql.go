package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/util"
)

// SQL is an append-only ledger table. Rows are never updated or deleted.
type SQL struct {
	db       *sql.DB
	postgres bool
	now      func() time.Time
}

// OpenSQL connects and migrates; driver is "sqlite" or "postgres"
func OpenSQL(ctx context.Context, driver, dsn string) (*SQL, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	l, err := NewSQL(ctx, db, driver == "postgres")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// NewSQL wraps an existing connection
func NewSQL(ctx context.Context, db *sql.DB, postgres bool) (*SQL, error) {
	l := &SQL{db: db, postgres: postgres, now: time.Now}
	query := `
	CREATE TABLE IF NOT EXISTS records (
		hash TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		tx_id TEXT NOT NULL,
		stake TEXT NOT NULL,
		payload TEXT NOT NULL,
		submitted_at TEXT NOT NULL
	);`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("migrate records: %w", err)
	}
	return l, nil
}

func (l *SQL) SubmitRecord(ctx context.Context, kind model.RecordKind, payload Payload, stake model.Amount) (model.Receipt, error) {
	rec, err := newRecord(kind, payload, stake, l.now())
	if err != nil {
		return model.Receipt{}, err
	}

	query := `INSERT INTO records (hash, kind, tx_id, stake, payload, submitted_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (hash) DO NOTHING`

	res, err := l.db.ExecContext(ctx, util.Rebind(query, l.postgres),
		rec.Hash, string(rec.Kind), rec.TxID, rec.Stake.String(), string(rec.Payload), rec.SubmittedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return model.Receipt{}, fmt.Errorf("insert record %s: %w", rec.Hash, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return rec.Receipt(), nil
	}

	stored, err := l.QueryRecord(ctx, rec.Hash)
	if err != nil {
		return model.Receipt{}, err
	}
	return existing(stored, kind)
}

func (l *SQL) QueryRecord(ctx context.Context, hash string) (*Record, error) {
	query := `SELECT hash, kind, tx_id, stake, payload, submitted_at FROM records WHERE hash = ?`

	var (
		rec         Record
		kind        string
		stake       string
		payload     string
		submittedAt string
	)
	err := l.db.QueryRowContext(ctx, util.Rebind(query, l.postgres), hash).
		Scan(&rec.Hash, &kind, &rec.TxID, &stake, &payload, &submittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query record %s: %w", hash, err)
	}

	rec.Kind = model.RecordKind(kind)
	rec.Payload = []byte(payload)
	if rec.Stake, err = model.ParseAmount(stake); err != nil {
		return nil, fmt.Errorf("record %s: %w", hash, err)
	}
	if rec.SubmittedAt, err = time.Parse(time.RFC3339Nano, submittedAt); err != nil {
		return nil, fmt.Errorf("record %s: parse submitted_at: %w", hash, err)
	}
	return &rec, nil
}

func (l *SQL) Close() error {
	return l.db.Close()
}
