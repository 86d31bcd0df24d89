// Package errs holds the error taxonomy shared by every package in this
// module. It exists so that nntp, yenc, article, and fetcher can classify
// and wrap errors the same way without importing each other.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying transport and protocol failures. Callers use
// errors.Is against these; session-facing errors wrap one of these with
// fmt.Errorf("...: %w", ...) so the original identity survives.
var (
	ErrIO                 = errors.New("nntp: i/o error")
	ErrTLS                = errors.New("nntp: tls error")
	ErrTimeout            = errors.New("nntp: timeout")
	ErrConnectionClosed   = errors.New("nntp: connection closed")
	ErrInvalidResponse    = errors.New("nntp: invalid response")
	ErrAuthFailed         = errors.New("nntp: authentication failed")
	ErrEncryptionRequired = errors.New("nntp: encryption required")
	ErrNoSuchGroup        = errors.New("nntp: no such newsgroup")
	ErrNoSuchArticle      = errors.New("nntp: no such article")
	ErrNoGroupSelected    = errors.New("nntp: no newsgroup selected")
	ErrInvalidArticleNum  = errors.New("nntp: invalid article number")
	ErrPostingNotPermitted = errors.New("nntp: posting not permitted")
	ErrPostingFailed      = errors.New("nntp: posting failed")
	ErrArticleNotWanted   = errors.New("nntp: article not wanted")
	ErrTransferNotPossible = errors.New("nntp: transfer not possible, retry later")
	ErrTransferRejected   = errors.New("nntp: transfer permanently rejected")
)

// ProtocolError represents a server reply whose status code the session
// facade doesn't translate into one of the named sentinels above.
type ProtocolError struct {
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("nntp: unexpected response %d: %s", e.Code, e.Message)
}

// NewProtocolError builds a *ProtocolError for an unexpected status code.
func NewProtocolError(code int, message string) error {
	return &ProtocolError{Code: code, Message: message}
}

// OtherError carries a free-form message that doesn't fit the typed
// taxonomy, mirroring the source's Other(msg) variant.
type OtherError struct {
	Msg string
}

func (e *OtherError) Error() string {
	return e.Msg
}

// NewOther wraps a message as an *OtherError.
func NewOther(msg string) error {
	return &OtherError{Msg: msg}
}

// IsBrokenSessionError reports whether err should mark the owning session
// broken (must not be pooled again) per the connection-closed / malformed
// response recovery rules.
func IsBrokenSessionError(err error) bool {
	return errors.Is(err, ErrInvalidResponse) || errors.Is(err, ErrConnectionClosed)
}

// IsRetryableStreamingError reports whether err is a streaming-mode (CHECK/
// TAKETHIS/IHAVE) error a caller may retry, as opposed to a permanent
// rejection.
func IsRetryableStreamingError(err error) bool {
	return errors.Is(err, ErrTransferNotPossible)
}
