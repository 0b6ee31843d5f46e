// Package ledger publishes content-addressed records to an append-only log.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/veracity/internal/hashing"
	"github.com/ppiankov/veracity/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate means the hash is already recorded under a different kind
	ErrDuplicate = errors.New("record hash already used")

	ErrInvalidRecord = errors.New("invalid record")
)

// Payload is a publishable record addressed by its content hash
type Payload interface {
	RecordHash() string
}

// Record is a stored ledger entry
type Record struct {
	Kind        model.RecordKind `json:"kind"`
	Hash        string           `json:"hash"`
	Payload     json.RawMessage  `json:"payload"` // Canonical JSON
	Stake       model.Amount     `json:"stake"`
	TxID        string           `json:"tx_id"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

// Receipt returns the acknowledgement for this record
func (r *Record) Receipt() model.Receipt {
	return model.Receipt{Kind: r.Kind, Hash: r.Hash, TxID: r.TxID, SubmittedAt: r.SubmittedAt}
}

// Client submits and reads records. SubmitRecord is idempotent: submitting
// a hash that is already recorded returns the original receipt.
// Implementations never retry internally.
type Client interface {
	SubmitRecord(ctx context.Context, kind model.RecordKind, payload Payload, stake model.Amount) (model.Receipt, error)
	QueryRecord(ctx context.Context, hash string) (*Record, error)
}

// Ledger is a Client that holds resources
type Ledger interface {
	Client
	Close() error
}

// newRecord validates and encodes a submission
func newRecord(kind model.RecordKind, payload Payload, stake model.Amount, now time.Time) (*Record, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrInvalidRecord)
	}
	switch kind {
	case model.RecordEvaluation, model.RecordChallenge, model.RecordSettlement:
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, kind)
	}
	hash := payload.RecordHash()
	if hash == "" {
		return nil, fmt.Errorf("%w: %s has no hash", ErrInvalidRecord, kind)
	}
	body, err := hashing.Canonical(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", kind, hash, err)
	}
	return &Record{
		Kind:        kind,
		Hash:        hash,
		Payload:     body,
		Stake:       stake,
		TxID:        uuid.NewString(),
		SubmittedAt: now.UTC(),
	}, nil
}

// existing resolves a resubmission against the stored record
func existing(stored *Record, kind model.RecordKind) (model.Receipt, error) {
	if stored.Kind != kind {
		return model.Receipt{}, fmt.Errorf("%w: %s is a %s record", ErrDuplicate, stored.Hash, stored.Kind)
	}
	return stored.Receipt(), nil
}

// Open builds a ledger from configuration
func Open(ctx context.Context, cfg model.LedgerConfig) (Ledger, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite", "postgres":
		return OpenSQL(ctx, cfg.Driver, cfg.DSN)
	case "redis":
		return NewRedis(cfg.RedisAddr, cfg.RedisDB), nil
	default:
		return nil, fmt.Errorf("unsupported ledger driver: %s", cfg.Driver)
	}
}
