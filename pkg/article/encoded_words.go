package article

import (
	"encoding/base64"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// DecodeHeaderValue decodes every RFC 2047 encoded word
// (=?charset?B|Q?text?=) in value, stripping whitespace that separates two
// adjacent encoded words per the RFC. Pure ASCII input with no encoded
// words is returned unchanged.
func DecodeHeaderValue(value string) string {
	var out strings.Builder
	i := 0
	lastWasEncoded := false

	for i < len(value) {
		start := strings.Index(value[i:], "=?")
		if start < 0 {
			out.WriteString(value[i:])
			break
		}
		start += i

		end := findEncodedWordEnd(value, start)
		if end < 0 {
			out.WriteString(value[i : start+2])
			i = start + 2
			lastWasEncoded = false
			continue
		}

		between := value[i:start]
		if lastWasEncoded && strings.TrimSpace(between) == "" {
			// RFC 2047: whitespace between adjacent encoded words is not
			// part of either word's decoded content.
		} else {
			out.WriteString(between)
		}

		decoded, ok := decodeEncodedWord(value[start:end])
		if ok {
			out.WriteString(decoded)
			lastWasEncoded = true
		} else {
			out.WriteString(value[start:end])
			lastWasEncoded = false
		}

		i = end
	}

	return out.String()
}

// findEncodedWordEnd locates the index just past the first "?=" that
// follows the charset and encoding markers of the encoded word starting at
// start, or -1 if there is no such "?=" or the text before it contains
// whitespace. A '?' in the text that is not followed by '=' is kept as
// part of the text.
func findEncodedWordEnd(value string, start int) int {
	rest := value[start+2:]

	firstQ := strings.IndexByte(rest, '?')
	if firstQ < 0 {
		return -1
	}
	secondQ := strings.IndexByte(rest[firstQ+1:], '?')
	if secondQ < 0 {
		return -1
	}
	secondQ += firstQ + 1

	tail := rest[secondQ+1:]
	thirdQ := strings.IndexByte(tail, '?')
	for thirdQ >= 0 {
		if thirdQ+1 < len(tail) && tail[thirdQ+1] == '=' {
			prefix := tail[:thirdQ]
			if strings.ContainsAny(prefix, " \t\r\n") {
				return -1
			}
			return start + 2 + secondQ + 1 + thirdQ + 2
		}
		next := strings.IndexByte(tail[thirdQ+1:], '?')
		if next < 0 {
			return -1
		}
		thirdQ += next + 1
	}
	return -1
}

func decodeEncodedWord(word string) (string, bool) {
	if !strings.HasPrefix(word, "=?") || !strings.HasSuffix(word, "?=") {
		return "", false
	}
	inner := word[2 : len(word)-2]

	parts := strings.SplitN(inner, "?", 3)
	if len(parts) != 3 {
		return "", false
	}
	charset, enc, text := parts[0], strings.ToUpper(parts[1]), parts[2]

	var raw []byte
	switch enc {
	case "B":
		b, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return "", false
		}
		raw = b
	case "Q":
		raw = decodeQuotedPrintableWord(text)
	default:
		return "", false
	}

	return charsetToString(charset, raw), true
}

func decodeQuotedPrintableWord(text string) []byte {
	out := make([]byte, 0, len(text))
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == '_':
			out = append(out, ' ')
			i++
		case c == '=' && i+2 < len(text):
			v, err := strconv.ParseUint(text[i+1:i+3], 16, 8)
			if err != nil {
				out = append(out, c)
				i++
				continue
			}
			out = append(out, byte(v))
			i += 3
		default:
			out = append(out, c)
			i++
		}
	}
	return out
}

// charsetToString decodes raw bytes per the named charset. UTF-8 and ASCII
// bytes are returned as-is, without validation;
// ISO-8859-1/Latin-1 is a direct byte-to-rune mapping; anything else goes
// through golang.org/x/text's charmap/htmlindex registry, lossily.
func charsetToString(charset string, raw []byte) string {
	lower := strings.ToLower(charset)

	switch lower {
	case "utf-8", "utf8", "us-ascii", "ascii", "":
		return string(raw)
	case "iso-8859-1", "iso8859-1", "latin1":
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return string(raw)
		}
		return string(decoded)
	}

	if enc, err := htmlindex.Get(charset); err == nil {
		decoded, err := enc.NewDecoder().Bytes(raw)
		if err == nil {
			return string(decoded)
		}
	}

	return string(raw)
}
