package nntp

import (
	"bufio"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// startFakeServer listens on an ephemeral local port and runs handle against
// the first accepted connection in its own goroutine, returning the address
// to dial. Grounded on the teacher pack's net.Listen/net.Pipe scripted-server
// test pattern (e.g. sandia-minimega-minimega/src/minitunnel/minitunnel_test.go),
// adapted here to a real TCP listener since Connect always dials out.
func startFakeServer(t *testing.T, handle func(t *testing.T, conn net.Conn)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(t, conn)
	}()

	return ln.Addr().String()
}

// scriptedServer wraps one accepted connection with line-oriented
// expect/send helpers for writing terse protocol scripts.
type scriptedServer struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func newScriptedServer(t *testing.T, conn net.Conn) *scriptedServer {
	return &scriptedServer{t: t, conn: conn, r: bufio.NewReader(conn)}
}

// expect reads one CRLF/LF-terminated line and asserts it equals want.
func (s *scriptedServer) expect(want string) {
	s.t.Helper()
	line, err := s.r.ReadString('\n')
	require.NoError(s.t, err)
	line = strings.TrimRight(line, "\r\n")
	require.Equal(s.t, want, line)
}

// readLine reads and returns one line without asserting its content.
func (s *scriptedServer) readLine() string {
	s.t.Helper()
	line, err := s.r.ReadString('\n')
	require.NoError(s.t, err)
	return strings.TrimRight(line, "\r\n")
}

// readDotTerminated reads lines until a bare ".".
func (s *scriptedServer) readDotTerminated() []string {
	s.t.Helper()
	var lines []string
	for {
		line := s.readLine()
		if line == "." {
			return lines
		}
		lines = append(lines, line)
	}
}

// send writes each line CRLF-terminated.
func (s *scriptedServer) send(lines ...string) {
	s.t.Helper()
	for _, l := range lines {
		_, err := s.conn.Write([]byte(l + "\r\n"))
		require.NoError(s.t, err)
	}
}

// sendRaw writes raw bytes verbatim (for pre-formed binary/compressed blocks).
func (s *scriptedServer) sendRaw(b []byte) {
	s.t.Helper()
	_, err := s.conn.Write(b)
	require.NoError(s.t, err)
}
