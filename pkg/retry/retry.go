// Package retry runs a call again with capped exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks an error that must not be retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

type Policy struct {
	// Attempts is the total number of calls, including the first.
	Attempts int
	// Base is the delay before the second attempt; it doubles per attempt.
	Base       time.Duration
	MaxBackoff time.Duration
	MaxJitter  time.Duration
	// OnRetry is called before each wait, with the attempt that just failed.
	OnRetry func(attempt int, err error, wait time.Duration)

	mu   sync.Mutex
	rand *rand.Rand
}

func Default() *Policy {
	return &Policy{
		Attempts:   3,
		Base:       time.Second,
		MaxBackoff: 30 * time.Second,
		MaxJitter:  250 * time.Millisecond,
	}
}

// WithSeed makes jitter deterministic.
func (p *Policy) WithSeed(seed int64) *Policy {
	p.rand = rand.New(rand.NewSource(seed)) //nolint:gosec
	return p
}

// Do calls fn until it succeeds, returns a Permanent error, the attempts are
// exhausted or ctx is done. It returns the last error seen.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == attempts {
			break
		}
		wait := Backoff(attempt, p.Base, p.MaxBackoff) + p.jitter()
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
	return err
}

func (p *Policy) jitter() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rand == nil {
		p.rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}
	return Jitter(p.rand, p.MaxJitter)
}

// Backoff returns base * 2^(attempts-1), capped at maxBackoff.
func Backoff(attempts int, base, maxBackoff time.Duration) time.Duration {
	if attempts <= 0 {
		return 0
	}
	if base <= 0 {
		base = time.Second
	}
	d := time.Duration(math.Pow(2, float64(attempts-1)) * float64(base))
	if maxBackoff > 0 && d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Jitter returns a duration in [0, maxJitter].
func Jitter(r *rand.Rand, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	if r == nil {
		return 0
	}
	return time.Duration(r.Int63n(int64(maxJitter) + 1)) //nolint:gosec
}
