// Package ratelimit provides the two concurrency primitives §4.9 describes:
// a token-bucket bandwidth limiter and a semaphore-based connection
// limiter, both intended to be shared by reference across many sessions.
package ratelimit

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// BandwidthLimiter throttles byte consumption to a configured steady-state
// rate with a configurable burst, grounded on the token-bucket
// implementation in the original source's ratelimit module: refill from
// elapsed wall-clock time, sleep when short, never exceed capacity.
// golang.org/x/time/rate supplies the bucket itself; this type narrows its
// generic "events" API to the spec's byte-oriented Acquire/AvailableTokens
// contract.
type BandwidthLimiter struct {
	limiter  *rate.Limiter
	rateBps  float64
	capacity float64
}

// NewBandwidthLimiter builds a limiter permitting ratePerSecond bytes/s on
// average with bursts up to capacity bytes.
func NewBandwidthLimiter(ratePerSecond, capacity uint64) *BandwidthLimiter {
	return &BandwidthLimiter{
		limiter:  rate.NewLimiter(rate.Limit(ratePerSecond), int(capacity)),
		rateBps:  float64(ratePerSecond),
		capacity: float64(capacity),
	}
}

// Acquire blocks until n bytes' worth of tokens are available, consuming
// them before returning. It refills from elapsed time and sleeps
// (n-tokens)/rate when the bucket is short. A request larger than the
// capacity can never be met and returns an error at once, as does a wait
// that would outlast ctx's deadline.
func (b *BandwidthLimiter) Acquire(ctx context.Context, n uint64) error {
	return b.limiter.WaitN(ctx, int(n))
}

// AvailableTokens reports the number of bytes currently available without
// blocking, clamped to [0, capacity].
func (b *BandwidthLimiter) AvailableTokens() float64 {
	tokens := b.limiter.Tokens()
	if tokens < 0 {
		return 0
	}
	if tokens > b.capacity {
		return b.capacity
	}
	return tokens
}

// Rate returns the configured steady-state rate in bytes/second.
func (b *BandwidthLimiter) Rate() float64 { return b.rateBps }

// Capacity returns the configured maximum burst size in bytes.
func (b *BandwidthLimiter) Capacity() float64 { return b.capacity }

// ConnectionLimiter is a counting semaphore over a fixed number of
// connection slots, grounded on the ConnectionLimiter/ConnectionPermit pair
// in the original source: Acquire blocks for a permit, Release gives it
// back, TryAcquire is the non-blocking variant. Built on
// golang.org/x/sync/semaphore.Weighted with weight 1 per connection.
type ConnectionLimiter struct {
	sem       *semaphore.Weighted
	max       int64
	available atomic.Int64
}

// NewConnectionLimiter builds a limiter with maxConnections permits.
func NewConnectionLimiter(maxConnections int) *ConnectionLimiter {
	l := &ConnectionLimiter{sem: semaphore.NewWeighted(int64(maxConnections)), max: int64(maxConnections)}
	l.available.Store(int64(maxConnections))
	return l
}

// ConnectionPermit is a held slot; Release returns it to the limiter. A
// permit must be released exactly once.
type ConnectionPermit struct {
	release func()
}

// Release gives the permit back. Calls after the first do nothing.
func (p *ConnectionPermit) Release() {
	if p.release != nil {
		p.release()
		p.release = nil
	}
}

// Acquire blocks until a permit is available or ctx is done.
func (l *ConnectionLimiter) Acquire(ctx context.Context) (*ConnectionPermit, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	l.available.Add(-1)
	return l.newPermit(), nil
}

// TryAcquire attempts to take a permit without blocking.
func (l *ConnectionLimiter) TryAcquire() (*ConnectionPermit, bool) {
	if !l.sem.TryAcquire(1) {
		return nil, false
	}
	l.available.Add(-1)
	return l.newPermit(), true
}

func (l *ConnectionLimiter) newPermit() *ConnectionPermit {
	var once bool
	return &ConnectionPermit{release: func() {
		if once {
			return
		}
		once = true
		l.sem.Release(1)
		l.available.Add(1)
	}}
}

// Available returns the number of unheld permits.
func (l *ConnectionLimiter) Available() int {
	return int(l.available.Load())
}

// MaxConnections returns the configured permit count.
func (l *ConnectionLimiter) MaxConnections() int { return int(l.max) }
