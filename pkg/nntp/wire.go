package nntp

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/javi11/nntpcore/internal/errs"
	"github.com/klauspost/compress/flate"
)

// CompressionMode tracks the in-band compression negotiated for a session.
type CompressionMode int

const (
	// CompressionNone means the stream is processed directly.
	CompressionNone CompressionMode = iota
	// CompressionHeadersOnly is the legacy XFEATURE COMPRESS GZIP mode: only
	// selected multi-line bodies are zlib-framed, one block per response.
	CompressionHeadersOnly
	// CompressionFullSession is RFC 8054 COMPRESS DEFLATE: the whole
	// connection, both directions, is wrapped in a raw deflate stream.
	CompressionFullSession
)

const (
	defaultReadTimeout      = 60 * time.Second
	defaultMultilineTimeout = 180 * time.Second
	defaultConnectTimeout   = 120 * time.Second
	defaultTLSTimeout       = 60 * time.Second
	minReadBufferSize       = 256 * 1024

	// maxCompressedBlock bounds a single headers-only compressed body so a
	// misbehaving peer can't exhaust memory.
	maxCompressedBlock = 64 * 1024 * 1024
)

// wireMarker is the `[COMPRESS=GZIP]` token a server embeds in a status
// line's message to flag that this particular multi-line body is
// zlib-compressed under the legacy headers-only negotiation.
const wireMarker = "[COMPRESS=GZIP]"

// conn implements the framed command/response protocol over a byte stream.
// It owns the buffered reader and, once compression is negotiated, the
// deflate codec wrapping it. A conn is not safe for concurrent use; callers
// serialize access (see the session facade).
type conn struct {
	nc   net.Conn
	br   *bufio.Reader
	bw   io.Writer
	mode CompressionMode

	deflateWriter *flate.Writer

	readTimeout      time.Duration
	multilineTimeout time.Duration

	broken bool

	// bytesCompressed/bytesDecompressed track the wire-compressed and
	// post-decompression byte totals, per the session data model's
	// "counters for bytes compressed/decompressed".
	bytesCompressed   atomic.Uint64
	bytesDecompressed atomic.Uint64
}

type countingReader struct {
	r io.Reader
	n *atomic.Uint64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n.Add(uint64(n))
	return n, err
}

type countingWriter struct {
	w io.Writer
	n *atomic.Uint64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n.Add(uint64(n))
	return n, err
}

func newConn(nc net.Conn) *conn {
	return &conn{
		nc:               nc,
		br:               bufio.NewReaderSize(nc, minReadBufferSize),
		bw:               nc,
		mode:             CompressionNone,
		readTimeout:      defaultReadTimeout,
		multilineTimeout: defaultMultilineTimeout,
	}
}

// markBroken flags the session unusable, per the InvalidResponse/
// ConnectionClosed recovery rule in the error-handling design.
func (c *conn) markBroken() { c.broken = true }

// Broken reports whether this connection must not be reused.
func (c *conn) Broken() bool { return c.broken }

// compressionCounters returns the running wire-compressed and
// post-decompression byte totals.
func (c *conn) compressionCounters() (compressed, decompressed uint64) {
	return c.bytesCompressed.Load(), c.bytesDecompressed.Load()
}

func (c *conn) deadlineFor(ctx context.Context, d time.Duration) time.Time {
	deadline := time.Now().Add(d)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	return deadline
}

// sendCommand writes text to the connection, appending CRLF if absent, and
// flushes it immediately.
func (c *conn) sendCommand(ctx context.Context, text string) error {
	if len(text) < 2 || text[len(text)-2:] != "\r\n" {
		text += "\r\n"
	}

	if err := c.nc.SetWriteDeadline(c.deadlineFor(ctx, c.readTimeout)); err != nil {
		return fmt.Errorf("%w: set write deadline: %v", errs.ErrIO, err)
	}

	if _, err := io.WriteString(c.bw, text); err != nil {
		return fmt.Errorf("%w: write command: %v", errs.ErrIO, err)
	}

	if c.deflateWriter != nil {
		if err := c.deflateWriter.Flush(); err != nil {
			return fmt.Errorf("%w: flush compressed writer: %v", errs.ErrIO, err)
		}
	}

	return nil
}

// readLine reads a single LF-terminated line, stripping a trailing CR, and
// classifies timeouts/EOF according to the error taxonomy.
func (c *conn) readLine(ctx context.Context, timeout time.Duration) (string, error) {
	if err := c.nc.SetReadDeadline(c.deadlineFor(ctx, timeout)); err != nil {
		return "", fmt.Errorf("%w: set read deadline: %v", errs.ErrIO, err)
	}

	line, err := c.br.ReadString('\n')
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return "", fmt.Errorf("%w", errs.ErrTimeout)
		}
		if err == io.EOF {
			c.markBroken()
			return "", fmt.Errorf("%w", errs.ErrConnectionClosed)
		}
		return "", fmt.Errorf("%w: %v", errs.ErrIO, err)
	}

	line = trimLineEnding(line)
	return line, nil
}

func trimLineEnding(s string) string {
	s = stripSuffix(s, "\n")
	s = stripSuffix(s, "\r")
	return s
}

func stripSuffix(s, suffix string) string {
	if len(s) > 0 && s[len(s)-1:] == suffix {
		return s[:len(s)-1]
	}
	return s
}

// readResponse reads one status line and parses (code, message). Per the
// wire-I/O contract, a non-digit status or a short line marks the session
// broken and returns InvalidResponse.
func (c *conn) readResponse(ctx context.Context) (Response, error) {
	line, err := c.readLine(ctx, c.readTimeout)
	if err != nil {
		return Response{}, err
	}

	code, msg, err := parseStatusLine(line)
	if err != nil {
		c.markBroken()
		return Response{}, err
	}

	return Response{Code: code, Message: msg}, nil
}

func parseStatusLine(line string) (int, string, error) {
	if len(line) < 3 {
		return 0, "", fmt.Errorf("%w: status line too short: %q", errs.ErrInvalidResponse, line)
	}

	for i := 0; i < 3; i++ {
		if line[i] < '0' || line[i] > '9' {
			return 0, "", fmt.Errorf("%w: non-numeric status code: %q", errs.ErrInvalidResponse, line)
		}
	}

	code, err := strconv.Atoi(line[:3])
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", errs.ErrInvalidResponse, err)
	}

	msg := line[3:]
	if len(msg) > 0 && msg[0] == ' ' {
		msg = msg[1:]
	}

	return code, msg, nil
}

// unstuff removes one leading dot from a body line that begins with "..".
func unstuff(line string) string {
	if len(line) >= 2 && line[0] == '.' && line[1] == '.' {
		return line[1:]
	}
	return line
}

// readMultilineResponse reads a status line and, for any code below 400
// (1xx, 2xx or 3xx), the dot-terminated body that follows, applying
// byte-unstuffing per line.
func (c *conn) readMultilineResponse(ctx context.Context) (Response, error) {
	resp, err := c.readResponse(ctx)
	if err != nil {
		return Response{}, err
	}

	if resp.Code >= 400 {
		return resp, nil
	}

	if c.mode == CompressionHeadersOnly && containsMarker(resp.Message) {
		lines, err := c.readHeadersOnlyCompressedBody(ctx)
		if err != nil {
			return Response{}, err
		}
		resp.Lines = lines
		return resp, nil
	}

	lines, err := c.readDotTerminatedLines(ctx)
	if err != nil {
		return Response{}, err
	}
	resp.Lines = lines
	return resp, nil
}

// readMultilineResponseBinary behaves like readMultilineResponse but
// accumulates the body as one contiguous byte buffer, without per-line
// allocation or UTF-8 validation. CRLF/LF line terminators are stripped;
// dot-stuffing is undone on the raw bytes.
func (c *conn) readMultilineResponseBinary(ctx context.Context) (BinaryResponse, error) {
	resp, err := c.readResponse(ctx)
	if err != nil {
		return BinaryResponse{}, err
	}

	if resp.Code >= 400 {
		return BinaryResponse{Code: resp.Code, Message: resp.Message}, nil
	}

	var body bytes.Buffer

	if c.mode == CompressionHeadersOnly && containsMarker(resp.Message) {
		lines, err := c.readHeadersOnlyCompressedBody(ctx)
		if err != nil {
			return BinaryResponse{}, err
		}
		for _, l := range lines {
			body.WriteString(l)
		}
		return BinaryResponse{Code: resp.Code, Message: resp.Message, Body: body.Bytes()}, nil
	}

	for {
		line, err := c.readLine(ctx, c.multilineTimeout)
		if err != nil {
			return BinaryResponse{}, err
		}
		if line == "." {
			break
		}
		body.WriteString(unstuff(line))
	}

	return BinaryResponse{Code: resp.Code, Message: resp.Message, Body: body.Bytes()}, nil
}

func containsMarker(message string) bool {
	return bytes.Contains([]byte(message), []byte(wireMarker))
}

func (c *conn) readDotTerminatedLines(ctx context.Context) ([]string, error) {
	var lines []string
	for {
		line, err := c.readLine(ctx, c.multilineTimeout)
		if err != nil {
			return nil, err
		}
		if line == "." {
			return lines, nil
		}
		lines = append(lines, unstuff(line))
	}
}

// readHeadersOnlyCompressedBody reads raw bytes up to and including the
// uncompressed terminator (".\r\n" or ".\n"), strips it, zlib-decompresses
// the block, and splits the decompressed text into unstuffed lines.
func (c *conn) readHeadersOnlyCompressedBody(ctx context.Context) ([]string, error) {
	if err := c.nc.SetReadDeadline(c.deadlineFor(ctx, c.multilineTimeout)); err != nil {
		return nil, fmt.Errorf("%w: set read deadline: %v", errs.ErrIO, err)
	}

	var block bytes.Buffer
	for {
		b, err := c.br.ReadByte()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, fmt.Errorf("%w", errs.ErrTimeout)
			}
			if err == io.EOF {
				c.markBroken()
				return nil, fmt.Errorf("%w", errs.ErrConnectionClosed)
			}
			return nil, fmt.Errorf("%w: %v", errs.ErrIO, err)
		}
		block.WriteByte(b)

		if block.Len() > maxCompressedBlock {
			c.markBroken()
			return nil, fmt.Errorf("%w: compressed block exceeds %d bytes", errs.ErrInvalidResponse, maxCompressedBlock)
		}

		if hasTerminatorSuffix(block.Bytes()) {
			break
		}
	}

	raw := stripTerminatorSuffix(block.Bytes())
	c.bytesCompressed.Add(uint64(len(raw)))

	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		c.markBroken()
		return nil, fmt.Errorf("%w: zlib init: %v", errs.ErrInvalidResponse, err)
	}
	defer zr.Close()

	decompressed, err := io.ReadAll(zr)
	if err != nil {
		c.markBroken()
		return nil, fmt.Errorf("%w: zlib decompress: %v", errs.ErrInvalidResponse, err)
	}
	c.bytesDecompressed.Add(uint64(len(decompressed)))

	var lines []string
	for _, raw := range bytes.Split(decompressed, []byte("\n")) {
		s := string(bytes.TrimSuffix(raw, []byte("\r")))
		lines = append(lines, unstuff(s))
	}
	// A trailing split element after the final newline is an empty string;
	// drop it the way the LF-splitting decode step does elsewhere.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	return lines, nil
}

func hasTerminatorSuffix(b []byte) bool {
	return bytes.HasSuffix(b, []byte(".\r\n")) || bytes.HasSuffix(b, []byte(".\n"))
}

func stripTerminatorSuffix(b []byte) []byte {
	if bytes.HasSuffix(b, []byte(".\r\n")) {
		return b[:len(b)-3]
	}
	if bytes.HasSuffix(b, []byte(".\n")) {
		return b[:len(b)-2]
	}
	return b
}

// enableFullSessionCompression wraps the connection's read and write sides
// in a raw deflate codec, per RFC 8054 COMPRESS DEFLATE negotiation. It must
// be called at most once, immediately after the 206 response.
func (c *conn) enableFullSessionCompression() {
	c.mode = CompressionFullSession

	inflated := &countingReader{r: flate.NewReader(c.br), n: &c.bytesDecompressed}
	c.br = bufio.NewReaderSize(inflated, minReadBufferSize)

	deflatedOut := &countingWriter{w: c.nc, n: &c.bytesCompressed}
	c.deflateWriter = flate.NewWriter(deflatedOut, flate.DefaultCompression)
	c.bw = c.deflateWriter
}

func (c *conn) enableHeadersOnlyCompression() {
	c.mode = CompressionHeadersOnly
}

func (c *conn) close() error {
	if c.deflateWriter != nil {
		_ = c.deflateWriter.Close()
	}
	return c.nc.Close()
}
