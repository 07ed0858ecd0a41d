// Package password provides the one-way hashing capability used to gate
// rooms.
package password

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for room passwords.
const DefaultCost = 8

// bcrypt ignores input past 72 bytes; newer x/crypto releases reject it
// instead, so secrets are truncated to keep long passwords usable.
const maxSecretBytes = 72

// Hasher hashes and verifies secrets. Both calls may be slow and must return
// promptly with ctx.Err() once ctx is done.
type Hasher interface {
	Hash(ctx context.Context, secret string) ([]byte, error)
	Verify(ctx context.Context, secret string, digest []byte) (bool, error)
}

// Bcrypt is a Hasher backed by golang.org/x/crypto/bcrypt.
type Bcrypt struct {
	cost int
}

func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Hash(ctx context.Context, secret string) ([]byte, error) {
	return run(ctx, func() ([]byte, error) {
		return bcrypt.GenerateFromPassword(secretBytes(secret), b.cost)
	})
}

// Verify reports whether secret matches digest. A mismatch is not an error.
func (b *Bcrypt) Verify(ctx context.Context, secret string, digest []byte) (bool, error) {
	return run(ctx, func() (bool, error) {
		err := bcrypt.CompareHashAndPassword(digest, secretBytes(secret))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	})
}

func secretBytes(secret string) []byte {
	b := []byte(secret)
	if len(b) > maxSecretBytes {
		b = b[:maxSecretBytes]
	}
	return b
}

// run executes fn on its own goroutine so the caller can abandon it when ctx
// is cancelled. The goroutine finishes in the background.
func run[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
