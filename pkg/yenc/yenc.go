// Package yenc implements the yEnc binary-to-text encoding used to carry
// binary attachments in Usenet articles.
package yenc

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"

	"github.com/javi11/nntpcore/internal/errs"
)

// Header is the parsed =ybegin line.
type Header struct {
	Line  int
	Size  uint64
	Name  string
	Part  *uint32
	Total *uint32
}

// Part is the parsed =ypart line, present for multi-part files.
type Part struct {
	Begin uint64
	End   uint64
}

// Trailer is the parsed =yend line.
type Trailer struct {
	Size   uint64
	CRC32  *uint32
	PCRC32 *uint32
}

// Decoded is the result of Decode: header/part/trailer metadata plus the
// recovered binary data and its computed CRC32.
type Decoded struct {
	Header         Header
	Part           *Part
	Trailer        Trailer
	Data           []byte
	CalculatedCRC32 uint32
}

// VerifyCRC32 checks the calculated CRC32 against pcrc32 (multi-part) or
// crc32 (single-part), falling back from pcrc32 to crc32 only when pcrc32
// was never sent. Returns false when neither is present.
func (d Decoded) VerifyCRC32() bool {
	if d.Trailer.PCRC32 != nil {
		return d.CalculatedCRC32 == *d.Trailer.PCRC32
	}
	if d.Trailer.CRC32 != nil {
		return d.CalculatedCRC32 == *d.Trailer.CRC32
	}
	return false
}

// IsMultipart reports whether the header carried both part and total.
func (d Decoded) IsMultipart() bool {
	return d.Header.Part != nil && d.Header.Total != nil
}

// Decode parses a complete yEnc-encoded blob: =ybegin line, optional =ypart
// line, data lines, and a =yend trailer, and recovers the original bytes.
func Decode(input []byte) (Decoded, error) {
	lines := splitLines(input)
	if len(lines) == 0 {
		return Decoded{}, fmt.Errorf("%w: empty yEnc input", errs.ErrInvalidResponse)
	}

	headerStr := strings.TrimSuffix(string(lines[0]), "\r")
	header, err := parseYbegin(headerStr)
	if err != nil {
		return Decoded{}, err
	}

	var part *Part
	dataStart := 1
	if len(lines) > 1 {
		if s := strings.TrimSuffix(string(lines[1]), "\r"); strings.HasPrefix(s, "=ypart ") {
			p, err := parseYpart(s)
			if err != nil {
				return Decoded{}, err
			}
			part = &p
			dataStart = 2
		}
	}

	trailerIdx := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(string(lines[i]), "=yend ") {
			trailerIdx = i
			break
		}
	}
	if trailerIdx < 0 {
		return Decoded{}, fmt.Errorf("%w: missing =yend trailer", errs.ErrInvalidResponse)
	}

	trailerStr := strings.TrimSuffix(string(lines[trailerIdx]), "\r")
	trailer, err := parseYend(trailerStr)
	if err != nil {
		return Decoded{}, err
	}

	decoded := make([]byte, 0, trailer.Size)
	for _, line := range lines[dataStart:trailerIdx] {
		var err error
		decoded, err = decodeLineBytes(line, decoded)
		if err != nil {
			return Decoded{}, err
		}
	}

	return Decoded{
		Header:          header,
		Part:            part,
		Trailer:         trailer,
		Data:            decoded,
		CalculatedCRC32: crc32.ChecksumIEEE(decoded),
	}, nil
}

func splitLines(input []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range input {
		if b == '\n' {
			lines = append(lines, input[start:i])
			start = i + 1
		}
	}
	if start < len(input) {
		lines = append(lines, input[start:])
	}
	return lines
}

// decodeLineBytes applies yEnc decoding to one data line, appending to out.
// A bare trailing CR is ignored rather than treated as data.
func decodeLineBytes(line []byte, out []byte) ([]byte, error) {
	i := 0
	for i < len(line) {
		b := line[i]

		if b == '\r' {
			i++
			continue
		}

		if b == '=' {
			if i+1 >= len(line) {
				return nil, fmt.Errorf("%w: incomplete yEnc escape at end of line", errs.ErrInvalidResponse)
			}
			i++
			escaped := line[i]
			out = append(out, escaped-64-42)
		} else {
			out = append(out, b-42)
		}
		i++
	}
	return out, nil
}

func parseYbegin(line string) (Header, error) {
	if !strings.HasPrefix(line, "=ybegin ") {
		return Header{}, fmt.Errorf("%w: invalid yEnc header: %q", errs.ErrInvalidResponse, line)
	}
	params := parseYencParams(line[len("=ybegin "):])

	lineLen, ok := params["line"]
	if !ok {
		return Header{}, fmt.Errorf("%w: missing 'line' parameter", errs.ErrInvalidResponse)
	}
	lineLenInt, err := strconv.Atoi(lineLen)
	if err != nil {
		return Header{}, fmt.Errorf("%w: invalid 'line' parameter: %q", errs.ErrInvalidResponse, lineLen)
	}

	sizeStr, ok := params["size"]
	if !ok {
		return Header{}, fmt.Errorf("%w: missing 'size' parameter", errs.ErrInvalidResponse)
	}
	size, err := strconv.ParseUint(sizeStr, 10, 64)
	if err != nil {
		return Header{}, fmt.Errorf("%w: invalid 'size' parameter: %q", errs.ErrInvalidResponse, sizeStr)
	}

	name, ok := params["name"]
	if !ok {
		return Header{}, fmt.Errorf("%w: missing 'name' parameter", errs.ErrInvalidResponse)
	}

	header := Header{Line: lineLenInt, Size: size, Name: name}
	if p, ok := params["part"]; ok {
		if v, err := strconv.ParseUint(p, 10, 32); err == nil {
			v32 := uint32(v)
			header.Part = &v32
		}
	}
	if t, ok := params["total"]; ok {
		if v, err := strconv.ParseUint(t, 10, 32); err == nil {
			v32 := uint32(v)
			header.Total = &v32
		}
	}

	return header, nil
}

func parseYpart(line string) (Part, error) {
	if !strings.HasPrefix(line, "=ypart ") {
		return Part{}, fmt.Errorf("%w: invalid yEnc part header: %q", errs.ErrInvalidResponse, line)
	}
	params := parseYencParams(line[len("=ypart "):])

	begin, ok := params["begin"]
	if !ok {
		return Part{}, fmt.Errorf("%w: missing 'begin' parameter", errs.ErrInvalidResponse)
	}
	beginVal, err := strconv.ParseUint(begin, 10, 64)
	if err != nil {
		return Part{}, fmt.Errorf("%w: invalid 'begin' parameter: %q", errs.ErrInvalidResponse, begin)
	}

	end, ok := params["end"]
	if !ok {
		return Part{}, fmt.Errorf("%w: missing 'end' parameter", errs.ErrInvalidResponse)
	}
	endVal, err := strconv.ParseUint(end, 10, 64)
	if err != nil {
		return Part{}, fmt.Errorf("%w: invalid 'end' parameter: %q", errs.ErrInvalidResponse, end)
	}

	return Part{Begin: beginVal, End: endVal}, nil
}

func parseYend(line string) (Trailer, error) {
	if !strings.HasPrefix(line, "=yend ") {
		return Trailer{}, fmt.Errorf("%w: invalid yEnc trailer: %q", errs.ErrInvalidResponse, line)
	}
	params := parseYencParams(line[len("=yend "):])

	sizeStr, ok := params["size"]
	if !ok {
		return Trailer{}, fmt.Errorf("%w: missing 'size' parameter", errs.ErrInvalidResponse)
	}
	size, err := strconv.ParseUint(sizeStr, 10, 64)
	if err != nil {
		return Trailer{}, fmt.Errorf("%w: invalid 'size' parameter: %q", errs.ErrInvalidResponse, sizeStr)
	}

	trailer := Trailer{Size: size}
	if c, ok := params["crc32"]; ok {
		if v, err := strconv.ParseUint(c, 16, 32); err == nil {
			v32 := uint32(v)
			trailer.CRC32 = &v32
		}
	}
	if p, ok := params["pcrc32"]; ok {
		if v, err := strconv.ParseUint(p, 16, 32); err == nil {
			v32 := uint32(v)
			trailer.PCRC32 = &v32
		}
	}

	return trailer, nil
}

// parseYencParams is a tolerant whitespace-delimited key=value scan: unknown
// keys are kept but ignored by callers, not rejected.
func parseYencParams(s string) map[string]string {
	result := make(map[string]string)
	i := 0
	for i < len(s) {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		if i >= len(s) {
			break
		}

		keyStart := i
		for i < len(s) && s[i] != '=' {
			i++
		}
		if i >= len(s) {
			break
		}
		key := s[keyStart:i]
		i++ // consume '='
		if key == "" {
			break
		}

		valStart := i
		for i < len(s) && s[i] != ' ' {
			i++
		}
		result[key] = s[valStart:i]
	}
	return result
}

// critical bytes that must always be escaped on encode.
func isCriticalByte(b byte) bool {
	return b == 0x00 || b == 0x0A || b == 0x0D || b == 0x3D
}

// PartInfo describes the part of a multi-part file that Encode emits.
type PartInfo struct {
	Part          uint32
	TotalParts    uint32
	Begin         uint64
	End           uint64
	TotalFileSize uint64
}

// Encode produces a complete yEnc blob: =ybegin line, optional =ypart line,
// data lines wrapped at lineLength bytes, and a =yend trailer. partInfo, if
// non-nil, marks this as one part of a multi-part file.
func Encode(data []byte, filename string, lineLength int, partInfo *PartInfo) ([]byte, error) {
	if lineLength <= 0 || lineLength > 997 {
		return nil, fmt.Errorf("%w: invalid line length %d (must be 1-997)", errs.ErrInvalidResponse, lineLength)
	}

	var out bytes.Buffer

	if partInfo != nil {
		fmt.Fprintf(&out, "=ybegin part=%d total=%d line=%d size=%d name=%s\r\n",
			partInfo.Part, partInfo.TotalParts, lineLength, partInfo.TotalFileSize, filename)
		fmt.Fprintf(&out, "=ypart begin=%d end=%d\r\n", partInfo.Begin, partInfo.End)
	} else {
		fmt.Fprintf(&out, "=ybegin line=%d size=%d name=%s\r\n", lineLength, len(data), filename)
	}

	out.Write(encodeData(data, lineLength))

	crc := crc32.ChecksumIEEE(data)
	if partInfo != nil {
		fmt.Fprintf(&out, "=yend size=%d pcrc32=%08x\r\n", len(data), crc)
	} else {
		fmt.Fprintf(&out, "=yend size=%d crc32=%08x\r\n", len(data), crc)
	}

	return out.Bytes(), nil
}

// encodeData yEnc-shifts and escapes data, wrapping at lineLength bytes.
func encodeData(data []byte, lineLength int) []byte {
	var out bytes.Buffer
	var line []byte

	flush := func() {
		if len(line) > 0 {
			out.Write(line)
			out.WriteString("\r\n")
			line = nil
		}
	}

	for _, b := range data {
		encoded := b + 42

		needsEscape := isCriticalByte(encoded) ||
			(encoded == '\t' && len(line) == 0) ||
			(encoded == ' ' && len(line) == 0)

		if needsEscape {
			if len(line)+2 > lineLength {
				flush()
			}
			line = append(line, '=', encoded+64)
			continue
		}

		wouldEndLine := len(line)+1 >= lineLength
		if wouldEndLine && (encoded == '\t' || encoded == ' ') {
			if len(line)+2 > lineLength {
				flush()
			}
			line = append(line, '=', encoded+64)
			continue
		}

		if len(line) >= lineLength {
			flush()
		}
		line = append(line, encoded)
	}

	flush()
	return out.Bytes()
}
