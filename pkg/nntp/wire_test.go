package nntp

import (
	"bytes"
	"compress/zlib"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSession_HeadersOnlyCompressedXover covers spec §8 scenario 5: a
// legacy XFEATURE COMPRESS GZIP negotiation, then a zlib-framed XOVER body
// flagged by the [COMPRESS=GZIP] marker in the status line.
func TestSession_HeadersOnlyCompressedXover(t *testing.T) {
	done := make(chan struct{})
	addr := startFakeServer(t, func(t *testing.T, conn net.Conn) {
		defer close(done)
		s := newScriptedServer(t, conn)
		s.send("200 server ready")

		s.expect("COMPRESS DEFLATE")
		s.send("403 not supported")

		s.expect("XFEATURE COMPRESS GZIP")
		s.send("290 feature enabled")

		s.expect("XOVER 1-100")
		s.send("224 overview information follows [COMPRESS=GZIP]")

		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		_, err := zw.Write([]byte("1\tSubj\tAuth\tDate\t<m@x>\tRefs\t100\t5\n"))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		s.sendRaw(buf.Bytes())
		s.sendRaw([]byte(".\r\n"))
	})

	sess := dialTestSession(t, addr)

	enabled := sess.TryEnableCompression(context.Background())
	assert.True(t, enabled)
	assert.Equal(t, CompressionHeadersOnly, sess.c.mode)

	entries, err := sess.FetchXover(context.Background(), "1-100")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(1), entries[0].Number)
	assert.Equal(t, "Subj", entries[0].Subject)
	assert.Equal(t, "<m@x>", entries[0].MessageID)
	assert.Equal(t, uint64(100), entries[0].Bytes)
	assert.Equal(t, uint64(5), entries[0].Lines)

	compressed, decompressed := sess.CompressionCounters()
	assert.Greater(t, decompressed, uint64(0))
	assert.Greater(t, compressed, uint64(0))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server script did not complete")
	}
}

func TestUnstuff(t *testing.T) {
	assert.Equal(t, ".leading", unstuff("..leading"))
	assert.Equal(t, "plain", unstuff("plain"))
	assert.Equal(t, ".", unstuff(".."))
}

func TestParseStatusLine(t *testing.T) {
	code, msg, err := parseStatusLine("200 server ready")
	require.NoError(t, err)
	assert.Equal(t, 200, code)
	assert.Equal(t, "server ready", msg)

	_, _, err = parseStatusLine("2x server ready")
	assert.Error(t, err)

	_, _, err = parseStatusLine("20")
	assert.Error(t, err)
}
