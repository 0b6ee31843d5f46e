package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// Memory is an in-process ledger
type Memory struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string
	now     func() time.Time
}

// NewMemory creates an empty in-memory ledger
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*Record), now: time.Now}
}

func (m *Memory) SubmitRecord(ctx context.Context, kind model.RecordKind, payload Payload, stake model.Amount) (model.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return model.Receipt{}, err
	}
	rec, err := newRecord(kind, payload, stake, m.now())
	if err != nil {
		return model.Receipt{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if stored, ok := m.records[rec.Hash]; ok {
		return existing(stored, kind)
	}
	m.records[rec.Hash] = rec
	m.order = append(m.order, rec.Hash)
	return rec.Receipt(), nil
}

func (m *Memory) QueryRecord(ctx context.Context, hash string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[hash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// Records returns all records in submission order
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(m.order))
	for _, h := range m.order {
		out = append(out, *m.records[h])
	}
	return out
}

func (m *Memory) Close() error { return nil }
