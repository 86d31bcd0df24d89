package nntp

import "context"

// Port is the shape a connection-pool/failover layer sitting above a
// single Session would need to satisfy. It is deliberately interface-only:
// pooling, multi-provider failover, and retry policy live in a consumer of
// this package, not here. Grounded on the connection-pool manager this
// package's teacher used to wrap a third-party NNTP pool client — the same
// seams (acquire a session, report availability, tear down), narrowed to
// this package's own Session type instead of an external client.
type Port interface {
	// Acquire returns a ready-to-use Session, dialing and authenticating
	// as configured. The caller releases it back via Release when done.
	Acquire(ctx context.Context) (*Session, error)

	// Release returns a Session to the pool. Implementations should check
	// Session.Broken and discard rather than recycle a broken session.
	Release(s *Session)

	// HasCapacity reports whether an Acquire call is likely to succeed
	// without blocking, for callers doing best-effort load shedding.
	HasCapacity() bool

	// Close tears down every pooled session.
	Close() error
}
