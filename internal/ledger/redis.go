package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ppiankov/veracity/internal/model"
)

const redisKeyPrefix = "veracity:record:"

// Redis stores each record under its hash with SETNX, so a record is
// written at most once.
type Redis struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedis connects to a single Redis node
func NewRedis(addr string, db int) *Redis {
	return NewRedisWithClient(redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	}))
}

// NewRedisWithClient wraps an existing client
func NewRedisWithClient(client redis.UniversalClient) *Redis {
	return &Redis{client: client, now: time.Now}
}

func (r *Redis) SubmitRecord(ctx context.Context, kind model.RecordKind, payload Payload, stake model.Amount) (model.Receipt, error) {
	rec, err := newRecord(kind, payload, stake, r.now())
	if err != nil {
		return model.Receipt{}, err
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return model.Receipt{}, fmt.Errorf("encode record %s: %w", rec.Hash, err)
	}

	ok, err := r.client.SetNX(ctx, redisKeyPrefix+rec.Hash, body, 0).Result()
	if err != nil {
		return model.Receipt{}, fmt.Errorf("redis setnx %s: %w", rec.Hash, err)
	}
	if ok {
		return rec.Receipt(), nil
	}

	stored, err := r.QueryRecord(ctx, rec.Hash)
	if err != nil {
		return model.Receipt{}, err
	}
	return existing(stored, kind)
}

func (r *Redis) QueryRecord(ctx context.Context, hash string) (*Record, error) {
	body, err := r.client.Get(ctx, redisKeyPrefix+hash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", hash, err)
	}

	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", hash, err)
	}
	return &rec, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
