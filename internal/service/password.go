package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/hermod-app/hermod/internal/config"
	"github.com/hermod-app/hermod/internal/metrics"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

// Argon2Params are the KDF cost parameters. Production hashing always uses
// ProductionArgon2Params; verification reads the parameters from the stored
// hash string instead.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var ProductionArgon2Params = Argon2Params{
	Memory:      15000,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Upper bounds accepted from a stored hash. A corrupt row must not be able
// to make a single verification allocate gigabytes.
const (
	maxArgon2Memory     = 1 << 20
	maxArgon2Iterations = 16
)

var errMalformedHash = errors.New("malformed password hash")

// PasswordHasher produces and checks argon2id hashes in PHC string format:
//
//	$argon2id$v=19$m=15000,t=2,p=1$<salt>$<digest>
type PasswordHasher struct {
	params Argon2Params
}

func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{params: ProductionArgon2Params}
}

// newPasswordHasherWithParams lets tests trade strength for speed.
func newPasswordHasherWithParams(p Argon2Params) *PasswordHasher {
	return &PasswordHasher{params: p}
}

// Hash hashes password with a fresh random salt.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return h.HashWithSalt(password, salt), nil
}

func (h *PasswordHasher) HashWithSalt(password string, salt []byte) string {
	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// Verify reports whether candidate matches encoded. The digest comparison
// is constant time. A hash that cannot be parsed is an error, not a
// mismatch.
func (h *PasswordHasher) Verify(encoded, candidate string) (bool, error) {
	params, salt, want, err := decodeArgon2Hash(encoded)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(candidate), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

func decodeArgon2Hash(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return p, nil, nil, fmt.Errorf("%w: expected 5 fields", errMalformedHash)
	}
	if parts[1] != "argon2id" {
		return p, nil, nil, fmt.Errorf("%w: unsupported algorithm %q", errMalformedHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("%w: version: %v", errMalformedHash, err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: unsupported version %d", errMalformedHash, version)
	}

	var parallelism uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("%w: parameters: %v", errMalformedHash, err)
	}
	if p.Memory == 0 || p.Memory > maxArgon2Memory ||
		p.Iterations == 0 || p.Iterations > maxArgon2Iterations ||
		parallelism == 0 || parallelism > 255 {
		return p, nil, nil, fmt.Errorf("%w: parameters out of range", errMalformedHash)
	}
	p.Parallelism = uint8(parallelism)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: salt: %v", errMalformedHash, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: digest: %v", errMalformedHash, err)
	}
	if len(salt) == 0 || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("%w: empty salt or digest", errMalformedHash)
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))

	return p, salt, key, nil
}

// HashPool runs KDF work on a bounded number of goroutines so a burst of
// logins cannot pin every CPU or allocate unbounded KDF memory.
type HashPool struct {
	hasher  *PasswordHasher
	sem     *semaphore.Weighted
	metrics *metrics.Metrics
}

func NewHashPool(hasher *PasswordHasher, workers int, m *metrics.Metrics) *HashPool {
	if workers < 1 {
		workers = 1
	}
	return &HashPool{
		hasher:  hasher,
		sem:     semaphore.NewWeighted(int64(workers)),
		metrics: m,
	}
}

// HashWorkers reads HASH_WORKERS, defaulting to the CPU count.
func HashWorkers(cfg config.AuthConfig) (int, error) {
	raw := strings.TrimSpace(cfg.HashWorkers)
	if raw == "" {
		return runtime.NumCPU(), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: invalid HASH_WORKERS", ErrMisconfigured)
	}
	return n, nil
}

func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	var (
		hash    string
		hashErr error
	)
	err := p.run(ctx, "hash", func() {
		hash, hashErr = p.hasher.Hash(password)
	})
	if err != nil {
		return "", err
	}
	return hash, hashErr
}

func (p *HashPool) Verify(ctx context.Context, encoded, candidate string) (bool, error) {
	var (
		ok        bool
		verifyErr error
	)
	err := p.run(ctx, "verify", func() {
		ok, verifyErr = p.hasher.Verify(encoded, candidate)
	})
	if err != nil {
		return false, err
	}
	return ok, verifyErr
}

// run executes fn on its own goroutine once a slot is free. If ctx ends
// while fn is running, run returns early and fn finishes in the background
// before releasing its slot.
func (p *HashPool) run(ctx context.Context, op string, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for hash worker: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer p.sem.Release(1)
		defer close(done)
		start := time.Now()
		fn()
		p.metrics.ObserveHash(op, time.Since(start))
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("hash worker: %w", ctx.Err())
	}
}
