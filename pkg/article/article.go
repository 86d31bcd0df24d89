// Package article implements the RFC 5536 Usenet article model: parsing,
// RFC 2047 header decoding, validation, building, and serialization for
// posting.
package article

import (
	"fmt"
	"sort"
	"strings"

	"github.com/javi11/nntpcore/internal/errs"
)

// Headers holds the RFC 5536 required fields, the named optional fields,
// and an extras map for everything else. Parse matches header names
// case-insensitively and keys Extra by the casing of each header's first
// occurrence; names set through the builder are stored exactly as given.
type Headers struct {
	Date       string
	From       string
	MessageID  string
	Newsgroups []string
	Path       string
	Subject    string

	References  string
	ReplyTo     string
	Organization string
	FollowupTo  []string
	Expires     string
	Control     string
	Distribution string
	Keywords    string
	Summary     string
	Supersedes  string
	Approved    string
	Lines       string
	UserAgent   string
	Xref        string

	Extra map[string]string
}

// Article is a full Usenet article: headers, body, and (when parsed from
// the wire) the original raw text for round-tripping.
type Article struct {
	Headers Headers
	Body    string
	Raw     *string
}

// optionalHeaderOrder is the fixed emission order for named optional
// headers, matching the sequence they're listed in the data model.
var optionalHeaderOrder = []struct {
	name string
	get  func(Headers) string
}{
	{"References", func(h Headers) string { return h.References }},
	{"Reply-To", func(h Headers) string { return h.ReplyTo }},
	{"Organization", func(h Headers) string { return h.Organization }},
	{"Followup-To", func(h Headers) string { return strings.Join(h.FollowupTo, ",") }},
	{"Expires", func(h Headers) string { return h.Expires }},
	{"Control", func(h Headers) string { return h.Control }},
	{"Distribution", func(h Headers) string { return h.Distribution }},
	{"Keywords", func(h Headers) string { return h.Keywords }},
	{"Summary", func(h Headers) string { return h.Summary }},
	{"Supersedes", func(h Headers) string { return h.Supersedes }},
	{"Approved", func(h Headers) string { return h.Approved }},
	{"Lines", func(h Headers) string { return h.Lines }},
	{"User-Agent", func(h Headers) string { return h.UserAgent }},
	{"Xref", func(h Headers) string { return h.Xref }},
}

// decodedHeaderNames get RFC 2047 decoding applied to their raw value
// during Parse.
var decodedHeaderNames = map[string]bool{
	"from": true, "subject": true, "reply-to": true,
	"organization": true, "keywords": true, "summary": true,
}

// Parse splits raw article text into headers and body at the first blank
// line (CRLFCRLF preferred, LFLF fallback), unfolds continuation header
// lines, and extracts the RFC 5536 fields.
func Parse(raw string) (Article, error) {
	headerText, body, err := splitHeadersBody(raw)
	if err != nil {
		return Article{}, err
	}

	rawHeaders, order := parseHeaderLines(headerText)

	h := Headers{Extra: make(map[string]string)}
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		lower := strings.ToLower(name)
		if seen[lower] {
			continue
		}
		seen[lower] = true

		value := rawHeaders[lower]
		if decodedHeaderNames[lower] {
			value = DecodeHeaderValue(value)
		}

		switch lower {
		case "date":
			h.Date = value
		case "from":
			h.From = value
		case "message-id":
			h.MessageID = value
		case "newsgroups":
			h.Newsgroups = parseCommaList(value)
		case "path":
			h.Path = value
		case "subject":
			h.Subject = value
		case "references":
			h.References = value
		case "reply-to":
			h.ReplyTo = value
		case "organization":
			h.Organization = value
		case "followup-to":
			h.FollowupTo = parseCommaList(value)
		case "expires":
			h.Expires = value
		case "control":
			h.Control = value
		case "distribution":
			h.Distribution = value
		case "keywords":
			h.Keywords = value
		case "summary":
			h.Summary = value
		case "supersedes":
			h.Supersedes = value
		case "approved":
			h.Approved = value
		case "lines":
			h.Lines = value
		case "user-agent":
			h.UserAgent = value
		case "xref":
			h.Xref = value
		default:
			h.Extra[name] = value
		}
	}

	return Article{Headers: h, Body: body, Raw: &raw}, nil
}

// splitHeadersBody finds the first blank line separating headers from
// body, preferring CRLFCRLF but falling back to LFLF for lenient input.
func splitHeadersBody(raw string) (headers, body string, err error) {
	if idx := strings.Index(raw, "\r\n\r\n"); idx >= 0 {
		return raw[:idx], raw[idx+4:], nil
	}
	if idx := strings.Index(raw, "\n\n"); idx >= 0 {
		return raw[:idx], raw[idx+2:], nil
	}
	return "", "", fmt.Errorf("%w: article has no header/body separator", errs.ErrInvalidResponse)
}

// parseHeaderLines unfolds continuation lines (leading space/tab) into
// their preceding header, joining with a single space, and returns both a
// lower-cased-key value map and the first-seen order of canonical names.
func parseHeaderLines(headerText string) (map[string]string, []string) {
	lines := strings.Split(strings.ReplaceAll(headerText, "\r\n", "\n"), "\n")

	values := make(map[string]string)
	var order []string
	var currentKey string

	for _, line := range lines {
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && currentKey != "" {
			values[currentKey] += " " + strings.TrimSpace(line)
			continue
		}

		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])

		lower := strings.ToLower(name)
		if _, exists := values[lower]; !exists {
			order = append(order, name)
		}
		values[lower] = value
		currentKey = lower
	}

	return values, order
}

func parseCommaList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SerializeForPosting renders the article in the fixed canonical header
// order (required, then named optionals, then extras sorted by name), a
// blank line, then the body with dot-stuffing and CRLF line endings.
func (a Article) SerializeForPosting() []byte {
	var b strings.Builder

	writeHeader := func(name, value string) {
		if value == "" {
			return
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	writeHeader("Date", a.Headers.Date)
	writeHeader("From", a.Headers.From)
	writeHeader("Message-ID", a.Headers.MessageID)
	writeHeader("Newsgroups", strings.Join(a.Headers.Newsgroups, ","))
	writeHeader("Path", a.Headers.Path)
	writeHeader("Subject", a.Headers.Subject)

	for _, opt := range optionalHeaderOrder {
		writeHeader(opt.name, opt.get(a.Headers))
	}

	extraNames := make([]string, 0, len(a.Headers.Extra))
	for name := range a.Headers.Extra {
		extraNames = append(extraNames, name)
	}
	sort.Strings(extraNames)
	for _, name := range extraNames {
		writeHeader(name, a.Headers.Extra[name])
	}

	b.WriteString("\r\n")

	bodyLines := strings.Split(strings.TrimSuffix(a.Body, "\n"), "\n")
	for _, line := range bodyLines {
		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, ".") {
			b.WriteByte('.')
		}
		b.WriteString(line)
		b.WriteString("\r\n")
	}

	return []byte(b.String())
}
