package redis

import (
	"context"
	"fmt"
	"time"
)

const idempotencyPrefix = "clover:claim:processed:"

// Idempotency guards the Kafka intake against reprocessing a claim id that
// was already handled, within a TTL. Redis SET NX is the claim check: first
// caller wins, later callers see false.
type Idempotency struct {
	client *Client
	ttl    time.Duration
}

func NewIdempotency(client *Client, ttl time.Duration) *Idempotency {
	return &Idempotency{
		client: client,
		ttl:    ttl,
	}
}

// TryClaim marks a claim id as in-process. Returns false when the id was
// already claimed within the TTL.
func (i *Idempotency) TryClaim(ctx context.Context, claimID string) (bool, error) {
	ok, err := i.client.Redis().SetNX(ctx, i.key(claimID), "1", i.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency claim for %s: %w", claimID, err)
	}
	return ok, nil
}

// Release frees a claim id so a failed message can be retried.
func (i *Idempotency) Release(ctx context.Context, claimID string) error {
	return i.client.Redis().Del(ctx, i.key(claimID)).Err()
}

func (i *Idempotency) key(claimID string) string {
	return idempotencyPrefix + claimID
}
