package nntp

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javi11/nntpcore/internal/errs"
)

func TestEncodeDecodeSASL(t *testing.T) {
	assert.Equal(t, "=", encodeSASL(nil))
	got, err := decodeSASL("=")
	require.NoError(t, err)
	assert.Nil(t, got)

	encoded := encodeSASL([]byte("hello"))
	decoded, err := decodeSASL(encoded)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(decoded))

	_, err = decodeSASL("not-base64!!")
	assert.Error(t, err)
}

func TestSaslPlain(t *testing.T) {
	p := SaslPlain{Username: "alice", Password: "secret"}
	assert.Equal(t, "PLAIN", p.Name())
	assert.True(t, p.RequiresTLS())

	initial, ok := p.InitialResponse()
	require.True(t, ok)
	assert.Equal(t, "\x00alice\x00secret", string(initial))

	_, err := p.ProcessChallenge([]byte("unexpected"))
	assert.Error(t, err)
}

func TestSaslScramSHA256_InitialResponse(t *testing.T) {
	mech, err := NewSaslScramSHA256("alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "SCRAM-SHA-256", mech.Name())
	assert.False(t, mech.RequiresTLS())

	initial, ok := mech.InitialResponse()
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(string(initial), "n,,n=alice,r="))
}

// TestSession_AuthenticateSASL_Plain exercises the AUTHINFO SASL exchange
// end to end with the PLAIN mechanism, which sends its credentials as an
// initial response alongside the command (no 383 challenge round-trip).
func TestSession_AuthenticateSASL_Plain(t *testing.T) {
	done := make(chan struct{})
	addr := startFakeServer(t, func(t *testing.T, conn net.Conn) {
		defer close(done)
		s := newScriptedServer(t, conn)
		s.send("200 server ready")

		line := s.readLine()
		assert.True(t, strings.HasPrefix(line, "AUTHINFO SASL PLAIN "))
		s.send("281 authentication accepted")
	})

	sess := dialTestSession(t, addr)
	err := sess.AuthenticateSASL(context.Background(), SaslPlain{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, sess.State())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server script did not complete")
	}
}

// TestSession_AuthenticateSASL_EncryptionRequired covers spec §7's distinct
// EncryptionRequired kind on the SASL terminal-code switch: a 483 must not
// collapse into the generic AuthFailed classification.
func TestSession_AuthenticateSASL_EncryptionRequired(t *testing.T) {
	done := make(chan struct{})
	addr := startFakeServer(t, func(t *testing.T, conn net.Conn) {
		defer close(done)
		s := newScriptedServer(t, conn)
		s.send("200 server ready")

		line := s.readLine()
		assert.True(t, strings.HasPrefix(line, "AUTHINFO SASL PLAIN "))
		s.send("483 encryption required")
	})

	sess := dialTestSession(t, addr)
	err := sess.AuthenticateSASL(context.Background(), SaslPlain{Username: "alice", Password: "secret"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrEncryptionRequired))
	assert.False(t, errors.Is(err, errs.ErrAuthFailed))
	assert.Equal(t, StateReady, sess.State())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server script did not complete")
	}
}
