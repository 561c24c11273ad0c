package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fairplay-wallet/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// SeedStore implements ports.SeedStore. Each player has at most one pending
// commitment; nonces come from a per-player counter that never resets.
type SeedStore struct {
	client goredis.Cmdable
	prefix string
}

// NewSeedStore creates a new Redis-backed seed store.
func NewSeedStore(client goredis.Cmdable) *SeedStore {
	return &SeedStore{
		client: client,
		prefix: "seed:",
	}
}

// NextNonce increments and returns the player's nonce counter. The first
// call returns 1.
func (s *SeedStore) NextNonce(ctx context.Context, walletID uuid.UUID) (int64, error) {
	n, err := s.client.Incr(ctx, s.prefix+"nonce:"+walletID.String()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis seed nonce: %w", err)
	}
	return n, nil
}

// Put stores c as the player's pending commitment, replacing any previous one.
func (s *SeedStore) Put(ctx context.Context, walletID uuid.UUID, c domain.SeedCommitment, ttl time.Duration) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode seed commitment: %w", err)
	}
	if err := s.client.Set(ctx, s.commitKey(walletID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis seed put: %w", err)
	}
	return nil
}

// Take removes and returns the pending commitment in one GETDEL, so a
// commitment is never used by two rounds.
func (s *SeedStore) Take(ctx context.Context, walletID uuid.UUID) (*domain.SeedCommitment, error) {
	payload, err := s.client.GetDel(ctx, s.commitKey(walletID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis seed take: %w", err)
	}

	var c domain.SeedCommitment
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("decode seed commitment: %w", err)
	}
	return &c, nil
}

func (s *SeedStore) commitKey(walletID uuid.UUID) string {
	return s.prefix + "commit:" + walletID.String()
}
