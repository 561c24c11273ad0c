package service

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"

	"fairplay-wallet/internal/core/domain"
)

const (
	serverSeedBytes = 32
	maxOutcomeCount = 1024
)

// FairnessEngine derives game outcomes from a committed server seed, a
// player-chosen client seed and a nonce. Outcomes are reproducible by anyone
// holding the revealed server seed.
type FairnessEngine struct{}

// NewFairnessEngine creates a new FairnessEngine.
func NewFairnessEngine() *FairnessEngine {
	return &FairnessEngine{}
}

// NewRound generates a fresh server seed and its public commitment.
func (e *FairnessEngine) NewRound() (serverSeed, serverSeedHash string, err error) {
	buf := make([]byte, serverSeedBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate server seed: %w", err)
	}
	serverSeed = hex.EncodeToString(buf)
	return serverSeed, HashSeed(serverSeed), nil
}

// HashSeed returns hex(SHA-256(serverSeed)).
func HashSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// Verify checks that serverSeed matches the published hash.
func (e *FairnessEngine) Verify(serverSeed, serverSeedHash string) bool {
	return hmac.Equal([]byte(HashSeed(serverSeed)), []byte(serverSeedHash))
}

// Resolve returns spec.Count values uniformly distributed in [0, spec.Range).
//
// Values come from HMAC-SHA512(serverSeed, "clientSeed:nonce") read as
// 4-byte big-endian chunks. Chunks at or above the largest multiple of
// Range are rejected so that v % Range carries no modulo bias. When a digest
// runs out, the next one is computed over "clientSeed:nonce:counter".
func (e *FairnessEngine) Resolve(serverSeed, clientSeed string, nonce int64, spec domain.RangeSpec) ([]int, error) {
	if spec.Count <= 0 || spec.Count > maxOutcomeCount {
		return nil, fmt.Errorf("outcome count %d out of range", spec.Count)
	}
	if spec.Range == 0 {
		return nil, fmt.Errorf("outcome range must be positive")
	}

	rng := uint64(spec.Range)
	limit := (1 << 32) - (1<<32)%rng

	base := clientSeed + ":" + strconv.FormatInt(nonce, 10)
	out := make([]int, 0, spec.Count)

	for counter := 0; len(out) < spec.Count; counter++ {
		msg := base
		if counter > 0 {
			msg += ":" + strconv.Itoa(counter)
		}
		mac := hmac.New(sha512.New, []byte(serverSeed))
		mac.Write([]byte(msg))
		digest := mac.Sum(nil)

		for i := 0; i+4 <= len(digest) && len(out) < spec.Count; i += 4 {
			v := uint64(binary.BigEndian.Uint32(digest[i : i+4]))
			if v >= limit {
				continue
			}
			out = append(out, int(v%rng))
		}
	}
	return out, nil
}
