package nntp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/javi11/nntpcore/internal/errs"
	"github.com/javi11/nntpcore/internal/slogutil"
)

var logger = slog.Default().With("component", "nntp")

// State is the session's authentication/lifecycle state machine.
type State int

const (
	// StateReady is the state right after connect, before authentication.
	StateReady State = iota
	// StateInProgress is set while an AUTHINFO/AUTHINFO SASL exchange is
	// underway.
	StateInProgress
	// StateAuthenticated is set once authentication succeeds.
	StateAuthenticated
	// StateClosed is set after QUIT; further operations are undefined.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateInProgress:
		return "InProgress"
	case StateAuthenticated:
		return "Authenticated"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ConnectConfig configures Connect.
type ConnectConfig struct {
	// Address is "host:port".
	Address string
	// UseTLS establishes TLS immediately after the TCP handshake (implicit
	// TLS, the common deployment for NNTP-over-TLS on port 563).
	UseTLS bool
	// AllowInsecureTLS disables certificate verification. Dangerous: only
	// for talking to servers with self-signed certificates under the
	// caller's control.
	AllowInsecureTLS bool
	// ServerName overrides the TLS SNI/verification name; defaults to the
	// host portion of Address.
	ServerName string
	// ConnectTimeout bounds the TCP handshake; defaults to 120s.
	ConnectTimeout time.Duration
	// TLSTimeout bounds the TLS handshake; defaults to 60s.
	TLSTimeout time.Duration
}

// Session is the single public entry point for one NNTP connection: dial,
// authenticate, select a group, fetch or post articles. A Session is not
// safe for concurrent use — the design follows the teacher's mutex-around-
// a-session-owning-object pattern (see pkg/nntp/pool.go for the multi-
// connection façade a pool would build on top of this).
type Session struct {
	c     *conn
	state State

	currentGroup string
}

// Connect dials, optionally wraps in TLS, and reads the server greeting.
func Connect(ctx context.Context, cfg ConnectConfig) (*Session, error) {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}

	dialer := net.Dialer{Timeout: connectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", errs.ErrIO, cfg.Address, err)
	}

	if tc, ok := rawConn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
		_ = tc.SetReadBuffer(4 * 1024 * 1024)
		_ = tc.SetWriteBuffer(1024 * 1024)
	}

	netConn := rawConn
	if cfg.UseTLS {
		serverName := cfg.ServerName
		if serverName == "" {
			serverName, _, _ = net.SplitHostPort(cfg.Address)
		}

		tlsTimeout := cfg.TLSTimeout
		if tlsTimeout <= 0 {
			tlsTimeout = defaultTLSTimeout
		}

		tlsConfig := &tls.Config{
			ServerName:         serverName,
			InsecureSkipVerify: cfg.AllowInsecureTLS,
		}

		_ = rawConn.SetDeadline(time.Now().Add(tlsTimeout))
		tlsConn := tls.Client(rawConn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = rawConn.Close()
			return nil, fmt.Errorf("%w: tls handshake: %v", errs.ErrTLS, err)
		}
		_ = rawConn.SetDeadline(time.Time{})
		netConn = tlsConn
	}

	c := newConn(netConn)

	resp, err := c.readResponse(ctx)
	if err != nil {
		_ = c.close()
		return nil, err
	}
	if !resp.IsSuccess() {
		_ = c.close()
		return nil, fmt.Errorf("%w: greeting: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}

	ctx = slogutil.With(ctx, "address", cfg.Address, "tls", cfg.UseTLS)
	logger.DebugContext(ctx, "connected", "greeting", resp.Message)

	return &Session{c: c, state: StateReady}, nil
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Broken reports whether the underlying connection has been marked
// unusable and must be discarded rather than reused.
func (s *Session) Broken() bool { return s.c.Broken() }

// CompressionCounters returns the running wire-compressed and post-
// decompression byte totals for this session.
func (s *Session) CompressionCounters() (compressed, decompressed uint64) {
	return s.c.compressionCounters()
}

func (s *Session) sendAndRead(ctx context.Context, cmd string) (Response, error) {
	if err := s.c.sendCommand(ctx, cmd); err != nil {
		return Response{}, err
	}
	return s.c.readResponse(ctx)
}

// Authenticate performs plain AUTHINFO USER/PASS authentication.
func (s *Session) Authenticate(ctx context.Context, username, password string) error {
	if s.state == StateAuthenticated {
		return fmt.Errorf("%w: already authenticated", errs.NewProtocolError(502, "command unavailable"))
	}
	if s.state != StateReady {
		return fmt.Errorf("%w: authenticate requires Ready state, got %s", errs.ErrAuthFailed, s.state)
	}

	s.state = StateInProgress

	resp, err := s.sendAndRead(ctx, cmdAuthinfoUser(username))
	if err != nil {
		s.state = StateReady
		return err
	}

	switch resp.Code {
	case 281:
		s.state = StateAuthenticated
		return nil
	case 381:
		// continue to PASS
	default:
		s.state = StateReady
		return fmt.Errorf("%w: AUTHINFO USER: %d %s", errs.ErrAuthFailed, resp.Code, resp.Message)
	}

	resp, err = s.sendAndRead(ctx, cmdAuthinfoPass(password))
	if err != nil {
		s.state = StateReady
		return err
	}

	if resp.Code == 483 {
		s.state = StateReady
		logger.WarnContext(ctx, "authentication requires TLS", "code", resp.Code)
		return fmt.Errorf("%w: AUTHINFO PASS: %d %s", errs.ErrEncryptionRequired, resp.Code, resp.Message)
	}

	if resp.Code != 281 {
		s.state = StateReady
		logger.WarnContext(ctx, "authentication failed", "code", resp.Code)
		return fmt.Errorf("%w: AUTHINFO PASS: %d %s", errs.ErrAuthFailed, resp.Code, resp.Message)
	}

	s.state = StateAuthenticated
	logger.DebugContext(ctx, "authenticated", "username", username)
	return nil
}

// AuthenticateSASL runs the AUTHINFO SASL challenge/response loop with a
// pluggable SaslMechanism.
func (s *Session) AuthenticateSASL(ctx context.Context, mechanism SaslMechanism) error {
	if s.state == StateAuthenticated {
		return fmt.Errorf("%w: already authenticated", errs.NewProtocolError(502, "command unavailable"))
	}

	s.state = StateInProgress

	cmd := cmdAuthinfoSASL(mechanism.Name())
	if initial, ok := mechanism.InitialResponse(); ok {
		cmd = cmdAuthinfoSASLInitial(mechanism.Name(), encodeSASL(initial))
	}

	resp, err := s.sendAndRead(ctx, cmd)
	if err != nil {
		s.state = StateReady
		return err
	}

	for resp.Code == 383 {
		challenge, decodeErr := decodeSASL(resp.Message)
		if decodeErr != nil {
			s.state = StateReady
			return decodeErr
		}

		reply, stepErr := mechanism.ProcessChallenge(challenge)
		if stepErr != nil {
			s.state = StateReady
			return stepErr
		}

		resp, err = s.sendAndRead(ctx, cmdAuthinfoSASLContinue(encodeSASL(reply)))
		if err != nil {
			s.state = StateReady
			return err
		}
	}

	switch resp.Code {
	case 281:
		s.state = StateAuthenticated
		return nil
	case 483:
		s.state = StateReady
		return fmt.Errorf("%w: AUTHINFO SASL: %d %s", errs.ErrEncryptionRequired, resp.Code, resp.Message)
	case 481, 482:
		s.state = StateReady
		return fmt.Errorf("%w: AUTHINFO SASL: %d %s", errs.ErrAuthFailed, resp.Code, resp.Message)
	default:
		s.state = StateReady
		return fmt.Errorf("%w: AUTHINFO SASL: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}
}

// Capabilities queries CAPABILITIES and parses the multi-line reply.
func (s *Session) Capabilities(ctx context.Context) (Capabilities, error) {
	if err := s.c.sendCommand(ctx, cmdCapabilities()); err != nil {
		return Capabilities{}, err
	}
	resp, err := s.c.readMultilineResponse(ctx)
	if err != nil {
		return Capabilities{}, err
	}
	if resp.Code != 101 {
		return Capabilities{}, fmt.Errorf("%w: CAPABILITIES: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}
	return ParseCapabilities(resp.Lines), nil
}

// ModeReader sends MODE READER and reports whether posting is allowed
// (200) as opposed to read-only (201).
func (s *Session) ModeReader(ctx context.Context) (postingAllowed bool, err error) {
	resp, err := s.sendAndRead(ctx, cmdModeReader())
	if err != nil {
		return false, err
	}
	switch resp.Code {
	case 200:
		return true, nil
	case 201:
		return false, nil
	default:
		return false, fmt.Errorf("%w: MODE READER: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}
}

// ModeStream sends MODE STREAM, switching the session into streaming
// (CHECK/TAKETHIS) mode.
func (s *Session) ModeStream(ctx context.Context) error {
	resp, err := s.sendAndRead(ctx, cmdModeStream())
	if err != nil {
		return err
	}
	if resp.Code != 203 {
		return fmt.Errorf("%w: MODE STREAM: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}
	return nil
}

// CheckResult is one CHECK response: the server's disposition for a
// message-id a peer is offering to transfer.
type CheckResult int

const (
	CheckSend       CheckResult = iota // 238: server wants the article
	CheckTryLater                      // 431: try again later
	CheckNotWanted                     // 438: server already has it
)

// SendCheck writes a CHECK command without reading the response, so
// callers can pipeline several before reading any back.
func (s *Session) SendCheck(ctx context.Context, messageID string) error {
	return s.c.sendCommand(ctx, cmdCheck(messageID))
}

// ReadCheckResponse reads one CHECK response in command order.
func (s *Session) ReadCheckResponse(ctx context.Context) (messageID string, result CheckResult, err error) {
	resp, err := s.c.readResponse(ctx)
	if err != nil {
		return "", 0, err
	}

	_, id, parseErr := parseArticleIDResponse(resp)
	if parseErr != nil {
		// Fall back to treating the whole message as the echoed id for
		// terse server replies.
		id = strings.TrimSpace(resp.Message)
	}

	switch resp.Code {
	case 238:
		return id, CheckSend, nil
	case 431:
		return id, CheckTryLater, nil
	case 438:
		return id, CheckNotWanted, nil
	default:
		return "", 0, fmt.Errorf("%w: CHECK: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}
}

// Check is the non-pipelined convenience wrapper: send then read.
func (s *Session) Check(ctx context.Context, messageID string) (CheckResult, error) {
	if err := s.SendCheck(ctx, messageID); err != nil {
		return 0, err
	}
	_, result, err := s.ReadCheckResponse(ctx)
	return result, err
}

// SendTakethis writes a TAKETHIS command with the serialized article body,
// without reading the response — the pipelining counterpart to SendCheck.
func (s *Session) SendTakethis(ctx context.Context, messageID string, serializedArticle []byte) error {
	if err := s.c.sendCommand(ctx, cmdTakethis(messageID)); err != nil {
		return err
	}
	return s.sendDotTerminatedBody(ctx, serializedArticle)
}

// ReadTakethisResponse reads one TAKETHIS response: true on 239 (accepted),
// false on 439 (rejected).
func (s *Session) ReadTakethisResponse(ctx context.Context) (accepted bool, err error) {
	resp, err := s.c.readResponse(ctx)
	if err != nil {
		return false, err
	}
	switch resp.Code {
	case 239:
		return true, nil
	case 439:
		return false, nil
	default:
		return false, fmt.Errorf("%w: TAKETHIS: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}
}

// Takethis is the non-pipelined convenience wrapper.
func (s *Session) Takethis(ctx context.Context, messageID string, serializedArticle []byte) (bool, error) {
	if err := s.SendTakethis(ctx, messageID, serializedArticle); err != nil {
		return false, err
	}
	return s.ReadTakethisResponse(ctx)
}

// sendDotTerminatedBody writes body, dot-stuffed and CRLF-terminated, then
// the bare "." terminator line.
func (s *Session) sendDotTerminatedBody(ctx context.Context, body []byte) error {
	var buf bytes.Buffer
	for _, line := range bytes.Split(bytes.TrimSuffix(body, []byte("\n")), []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if bytes.HasPrefix(line, []byte(".")) {
			buf.WriteByte('.')
		}
		buf.Write(line)
		buf.WriteString("\r\n")
	}
	buf.WriteString(".\r\n")
	return s.c.sendCommand(ctx, buf.String())
}

// SelectGroup sends GROUP and, on success, updates CurrentGroup.
func (s *Session) SelectGroup(ctx context.Context, name string) (count, first, last uint64, err error) {
	resp, err := s.sendAndRead(ctx, cmdGroup(name))
	if err != nil {
		return 0, 0, 0, err
	}

	if resp.Code == 411 {
		return 0, 0, 0, fmt.Errorf("%w: %s", errs.ErrNoSuchGroup, name)
	}
	if resp.Code != 211 {
		return 0, 0, 0, fmt.Errorf("%w: GROUP: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}

	count, first, last, err = parseGroupResponse(resp)
	if err != nil {
		return 0, 0, 0, err
	}
	s.currentGroup = name
	logger.DebugContext(ctx, "group selected", "group", name, "count", count, "first", first, "last", last)
	return count, first, last, nil
}

// CurrentGroup returns the last successfully selected group, or "" if none.
func (s *Session) CurrentGroup() string { return s.currentGroup }

func articleNotFoundErr(resp Response) error {
	switch resp.Code {
	case 412:
		return fmt.Errorf("%w", errs.ErrNoGroupSelected)
	case 420, 423:
		return fmt.Errorf("%w", errs.ErrInvalidArticleNum)
	case 430:
		return fmt.Errorf("%w", errs.ErrNoSuchArticle)
	default:
		return fmt.Errorf("%w: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}
}

// FetchArticle sends ARTICLE and returns the text response.
func (s *Session) FetchArticle(ctx context.Context, id string) (Response, error) {
	return s.fetchText(ctx, cmdArticle(id))
}

// FetchHead sends HEAD and returns the text response.
func (s *Session) FetchHead(ctx context.Context, id string) (Response, error) {
	return s.fetchText(ctx, cmdHead(id))
}

// FetchBody sends BODY and returns the text response.
func (s *Session) FetchBody(ctx context.Context, id string) (Response, error) {
	return s.fetchText(ctx, cmdBody(id))
}

func (s *Session) fetchText(ctx context.Context, cmd string) (Response, error) {
	if err := s.c.sendCommand(ctx, cmd); err != nil {
		return Response{}, err
	}
	resp, err := s.c.readMultilineResponse(ctx)
	if err != nil {
		return Response{}, err
	}
	if resp.IsError() {
		return Response{}, articleNotFoundErr(resp)
	}
	return resp, nil
}

// FetchArticleBinary sends ARTICLE and returns the body as one contiguous
// buffer, the path used for high-throughput binary downloads.
func (s *Session) FetchArticleBinary(ctx context.Context, id string) (BinaryResponse, error) {
	return s.fetchBinary(ctx, cmdArticle(id))
}

// FetchBodyBinary sends BODY and returns the body as one contiguous buffer.
func (s *Session) FetchBodyBinary(ctx context.Context, id string) (BinaryResponse, error) {
	return s.fetchBinary(ctx, cmdBody(id))
}

func (s *Session) fetchBinary(ctx context.Context, cmd string) (BinaryResponse, error) {
	if err := s.c.sendCommand(ctx, cmd); err != nil {
		return BinaryResponse{}, err
	}
	resp, err := s.c.readMultilineResponseBinary(ctx)
	if err != nil {
		return BinaryResponse{}, err
	}
	if resp.IsError() {
		return BinaryResponse{}, articleNotFoundErr(Response{Code: resp.Code, Message: resp.Message})
	}
	return resp, nil
}

// FetchArticlesPipelined fetches many articles by writing all commands in a
// chunk before reading any responses back. On the first error within a
// chunk, already-fetched responses in that chunk are discarded and the
// error is returned; callers wanting partial results must use
// maxPipeline == 1.
func (s *Session) FetchArticlesPipelined(ctx context.Context, ids []string, maxPipeline int) ([]BinaryResponse, error) {
	if maxPipeline <= 0 {
		maxPipeline = 1
	}

	results := make([]BinaryResponse, 0, len(ids))

	for start := 0; start < len(ids); start += maxPipeline {
		end := start + maxPipeline
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		for _, id := range chunk {
			if err := s.c.sendCommand(ctx, cmdArticle(id)); err != nil {
				return nil, err
			}
		}

		chunkResults := make([]BinaryResponse, 0, len(chunk))
		for range chunk {
			resp, err := s.c.readMultilineResponseBinary(ctx)
			if err != nil {
				return nil, err
			}
			if resp.IsError() {
				return nil, articleNotFoundErr(Response{Code: resp.Code, Message: resp.Message})
			}
			chunkResults = append(chunkResults, resp)
		}

		results = append(results, chunkResults...)
	}

	return results, nil
}

// Over sends OVER for the given range and parses each line, skipping
// malformed ones.
func (s *Session) Over(ctx context.Context, rng string) ([]XoverEntry, error) {
	return s.fetchOverviewLike(ctx, cmdOver(rng))
}

// FetchXover sends XOVER for the given range and parses each line,
// skipping malformed ones. XOVER is the legacy (pre-RFC 3977) equivalent
// of OVER, still widely deployed.
func (s *Session) FetchXover(ctx context.Context, rng string) ([]XoverEntry, error) {
	return s.fetchOverviewLike(ctx, cmdXover(rng))
}

func (s *Session) fetchOverviewLike(ctx context.Context, cmd string) ([]XoverEntry, error) {
	if err := s.c.sendCommand(ctx, cmd); err != nil {
		return nil, err
	}
	resp, err := s.c.readMultilineResponse(ctx)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}

	entries := make([]XoverEntry, 0, len(resp.Lines))
	for _, line := range resp.Lines {
		entry, parseErr := parseXoverLine(line)
		if parseErr != nil {
			// Malformed overview line: skip rather than fail the whole
			// fetch, per the sparse-result-is-acceptable contract.
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Hdr sends HDR for the given field and range, parsing each line, skipping
// malformed ones.
func (s *Session) Hdr(ctx context.Context, field, rng string) ([]HdrEntry, error) {
	if err := s.c.sendCommand(ctx, cmdHdr(field, rng)); err != nil {
		return nil, err
	}
	resp, err := s.c.readMultilineResponse(ctx)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}

	entries := make([]HdrEntry, 0, len(resp.Lines))
	for _, line := range resp.Lines {
		entry, parseErr := parseHdrLine(line)
		if parseErr != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ListActive sends LIST ACTIVE [wildmat].
func (s *Session) ListActive(ctx context.Context, wildmat string) ([]ActiveGroup, error) {
	lines, err := s.listLines(ctx, cmdListActive(wildmat))
	if err != nil {
		return nil, err
	}
	out := make([]ActiveGroup, 0, len(lines))
	for _, l := range lines {
		g, err := parseActiveGroupLine(l)
		if err != nil {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// ListActiveTimes sends LIST ACTIVE.TIMES [wildmat].
func (s *Session) ListActiveTimes(ctx context.Context, wildmat string) ([]GroupTime, error) {
	lines, err := s.listLines(ctx, cmdListActiveTimes(wildmat))
	if err != nil {
		return nil, err
	}
	out := make([]GroupTime, 0, len(lines))
	for _, l := range lines {
		g, err := parseActiveTimesLine(l)
		if err != nil {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// ListCounts sends LIST COUNTS [wildmat].
func (s *Session) ListCounts(ctx context.Context, wildmat string) ([]CountsGroup, error) {
	lines, err := s.listLines(ctx, cmdListCounts(wildmat))
	if err != nil {
		return nil, err
	}
	out := make([]CountsGroup, 0, len(lines))
	for _, l := range lines {
		g, err := parseCountsLine(l)
		if err != nil {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// ListNewsgroups sends LIST NEWSGROUPS [wildmat].
func (s *Session) ListNewsgroups(ctx context.Context, wildmat string) ([]NewsgroupInfo, error) {
	lines, err := s.listLines(ctx, cmdListNewsgroups(wildmat))
	if err != nil {
		return nil, err
	}
	out := make([]NewsgroupInfo, 0, len(lines))
	for _, l := range lines {
		out = append(out, mustParseNewsgroupsLine(l))
	}
	return out, nil
}

func mustParseNewsgroupsLine(l string) NewsgroupInfo {
	info, _ := parseNewsgroupsLine(l)
	return info
}

// ListDistributions sends LIST DISTRIBUTIONS.
func (s *Session) ListDistributions(ctx context.Context) ([]DistributionInfo, error) {
	lines, err := s.listLines(ctx, cmdListDistributions(""))
	if err != nil {
		return nil, err
	}
	out := make([]DistributionInfo, 0, len(lines))
	for _, l := range lines {
		info, err := parseDistributionLine(l)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// ListModerators sends LIST MODERATORS.
func (s *Session) ListModerators(ctx context.Context) ([]DistributionInfo, error) {
	lines, err := s.listLines(ctx, cmdListModerators())
	if err != nil {
		return nil, err
	}
	out := make([]DistributionInfo, 0, len(lines))
	for _, l := range lines {
		info, err := parseDistributionLine(l)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// ListSubscriptions sends LIST SUBSCRIPTIONS, returning the raw group
// names.
func (s *Session) ListSubscriptions(ctx context.Context) ([]string, error) {
	return s.listLines(ctx, cmdListSubscriptions())
}

func (s *Session) listLines(ctx context.Context, cmd string) ([]string, error) {
	if err := s.c.sendCommand(ctx, cmd); err != nil {
		return nil, err
	}
	resp, err := s.c.readMultilineResponse(ctx)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}
	return resp.Lines, nil
}

// Newgroups sends NEWGROUPS date time [GMT] and returns the new groups,
// each line parsed like a LIST ACTIVE entry.
func (s *Session) Newgroups(ctx context.Context, date, timeStr string, gmt bool) ([]ActiveGroup, error) {
	lines, err := s.listLines(ctx, cmdNewgroups(date, timeStr, gmt))
	if err != nil {
		return nil, err
	}
	out := make([]ActiveGroup, 0, len(lines))
	for _, l := range lines {
		g, err := parseActiveGroupLine(l)
		if err != nil {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// Newnews sends NEWNEWS wildmat date time [GMT] and returns the
// deduplicated, sorted message-ids.
func (s *Session) Newnews(ctx context.Context, wildmat, date, timeStr string, gmt bool) ([]string, error) {
	lines, err := s.listLines(ctx, cmdNewnews(wildmat, date, timeStr, gmt))
	if err != nil {
		return nil, err
	}
	return parseNewnewsResponse(lines), nil
}

// Date sends the DATE command and returns the server's notion of current
// time, parsed from its "YYYYMMDDhhmmss" payload.
func (s *Session) Date(ctx context.Context) (time.Time, error) {
	resp, err := s.sendAndRead(ctx, cmdDate())
	if err != nil {
		return time.Time{}, err
	}
	if resp.Code != 111 {
		return time.Time{}, fmt.Errorf("%w: DATE: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}
	ts := strings.Fields(resp.Message)
	if len(ts) == 0 || len(ts[0]) != 14 {
		return time.Time{}, fmt.Errorf("%w: malformed DATE payload: %q", errs.ErrInvalidResponse, resp.Message)
	}
	t, parseErr := time.Parse("20060102150405", ts[0])
	if parseErr != nil {
		return time.Time{}, fmt.Errorf("%w: malformed DATE payload: %v", errs.ErrInvalidResponse, parseErr)
	}
	return t.UTC(), nil
}

// Help sends HELP and returns the free-text response lines.
func (s *Session) Help(ctx context.Context) ([]string, error) {
	return s.listLines(ctx, cmdHelp())
}

// Post posts an already-serialized article. Requires state Authenticated.
func (s *Session) Post(ctx context.Context, serializedArticle []byte) error {
	if s.state != StateAuthenticated {
		return fmt.Errorf("%w: POST requires an authenticated session", errs.ErrPostingNotPermitted)
	}

	resp, err := s.sendAndRead(ctx, cmdPost())
	if err != nil {
		return err
	}
	if resp.Code == 440 {
		return fmt.Errorf("%w", errs.ErrPostingNotPermitted)
	}
	if resp.Code != 340 {
		return fmt.Errorf("%w: POST: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}

	if err := s.sendDotTerminatedBody(ctx, serializedArticle); err != nil {
		return err
	}

	resp, err = s.c.readResponse(ctx)
	if err != nil {
		return err
	}
	if resp.Code == 441 {
		return fmt.Errorf("%w", errs.ErrPostingFailed)
	}
	if resp.Code != 240 {
		return fmt.Errorf("%w: POST: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}
	return nil
}

// Ihave offers an article by message-id. Requires state Authenticated.
func (s *Session) Ihave(ctx context.Context, messageID string, serializedArticle []byte) error {
	if s.state != StateAuthenticated {
		return fmt.Errorf("%w: IHAVE requires an authenticated session", errs.ErrPostingNotPermitted)
	}

	resp, err := s.sendAndRead(ctx, cmdIhave(messageID))
	if err != nil {
		return err
	}

	switch resp.Code {
	case 435:
		return fmt.Errorf("%w", errs.ErrArticleNotWanted)
	case 436:
		return fmt.Errorf("%w", errs.ErrTransferNotPossible)
	case 335:
		// continue
	default:
		return fmt.Errorf("%w: IHAVE: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}

	if err := s.sendDotTerminatedBody(ctx, serializedArticle); err != nil {
		return err
	}

	resp, err = s.c.readResponse(ctx)
	if err != nil {
		return err
	}

	switch resp.Code {
	case 235:
		return nil
	case 437:
		return fmt.Errorf("%w", errs.ErrTransferRejected)
	default:
		return fmt.Errorf("%w: IHAVE: %d %s", errs.ErrInvalidResponse, resp.Code, resp.Message)
	}
}

// TryEnableCompression tries COMPRESS DEFLATE first, falling back to the
// legacy XFEATURE COMPRESS GZIP. It never returns an error: a server that
// supports neither simply leaves the session uncompressed.
func (s *Session) TryEnableCompression(ctx context.Context) (enabled bool) {
	resp, err := s.sendAndRead(ctx, cmdCompressDeflate())
	if err == nil && resp.Code == 206 {
		s.c.enableFullSessionCompression()
		logger.InfoContext(ctx, "compression enabled", "mode", "full-session-deflate")
		return true
	}

	resp, err = s.sendAndRead(ctx, cmdXfeatureCompressGzip())
	if err == nil && resp.IsSuccess() {
		s.c.enableHeadersOnlyCompression()
		logger.InfoContext(ctx, "compression enabled", "mode", "headers-only-gzip")
		return true
	}

	return false
}

// Quit sends QUIT and closes the connection, setting state Closed.
func (s *Session) Quit(ctx context.Context) error {
	_, _ = s.sendAndRead(ctx, cmdQuit())
	s.state = StateClosed
	logger.DebugContext(ctx, "session closed")
	return s.c.close()
}

// ArticleNumber formats an article number the way ARTICLE/HEAD/BODY/STAT
// expect when no message-id is given.
func ArticleNumber(n uint64) string { return strconv.FormatUint(n, 10) }
