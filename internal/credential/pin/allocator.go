// Package pin allocates the 6-digit fallback codes printed alongside a
// credential's QR code.
//
// Uniqueness among active credentials is enforced by the store, not by a
// pre-check: the allocator hands each candidate PIN to a persist callback and
// regenerates only when the store reports the code as already taken. This
// keeps allocation race-free under concurrent creations - the losing insert
// simply retries with a fresh code.
package pin

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/sentinel"
)

const (
	// Length is the number of decimal digits in a PIN.
	Length = 6

	// maxAttempts bounds allocation so a nearly-saturated code space degrades
	// into a retryable error instead of an unbounded loop.
	maxAttempts = 10

	pinMin  = 100000
	pinSpan = 900000 // 100000..999999 inclusive
)

// Allocator generates candidate PINs and drives the insert-retry loop.
type Allocator struct {
	generate func() (string, error)
}

// New constructs an allocator backed by crypto/rand.
func New() *Allocator {
	return &Allocator{generate: Generate}
}

// NewWithGenerator constructs an allocator with a custom generator. Tests use
// this to force collisions deterministically.
func NewWithGenerator(generate func() (string, error)) *Allocator {
	return &Allocator{generate: generate}
}

// Generate returns a random 6-digit decimal PIN in [100000, 999999].
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(pinSpan))
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	return fmt.Sprintf("%06d", pinMin+n.Int64()), nil
}

// Allocate generates PINs and calls persist with each candidate until one is
// accepted. persist must return sentinel.ErrAlreadyUsed (possibly wrapped)
// when the PIN collides with an active credential; any other error aborts the
// loop. After maxAttempts collisions, Allocate fails with
// CodeAllocationExhausted, which callers may retry after backoff.
func (a *Allocator) Allocate(ctx context.Context, persist func(ctx context.Context, pin string) error) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate, err := a.generate()
		if err != nil {
			return "", err
		}
		err = persist(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if isTaken(err) {
			continue
		}
		return "", err
	}
	return "", dErrors.Newf(dErrors.CodeAllocationExhausted,
		"no unique pin found in %d attempts", maxAttempts)
}

func isTaken(err error) bool {
	return errors.Is(err, sentinel.ErrAlreadyUsed) || errors.Is(err, sentinel.ErrConflict)
}
