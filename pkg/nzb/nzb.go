// Package nzb parses and emits NZB files, the XML manifest format
// describing a Usenet binary post as a set of files and message-id
// segments.
package nzb

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/javi11/nntpcore/internal/errs"
)

// Nzb is a parsed NZB manifest.
type Nzb struct {
	Meta  map[string]string
	Files []NzbFile
}

// NzbFile is one <file> entry: a poster/date/subject triple, the
// newsgroups it was posted to, and its ordered segments.
type NzbFile struct {
	Poster  string
	Date    int64
	Subject string
	Groups  []string
	Segments []NzbSegment
}

// NzbSegment is one article making up a file, addressed by message-id.
type NzbSegment struct {
	Bytes     uint64
	Number    uint32
	MessageID string
}

// TotalBytes sums every segment's declared size.
func (f NzbFile) TotalBytes() uint64 {
	var total uint64
	for _, seg := range f.Segments {
		total += seg.Bytes
	}
	return total
}

// TotalBytes sums every file's TotalBytes.
func (n Nzb) TotalBytes() uint64 {
	var total uint64
	for _, f := range n.Files {
		total += f.TotalBytes()
	}
	return total
}

// ValidateSegments checks that segment numbers are sequential from 1 with
// no gaps or duplicates.
func (f NzbFile) ValidateSegments() error {
	if len(f.Segments) == 0 {
		return fmt.Errorf("%w: file has no segments", errs.ErrInvalidResponse)
	}

	seen := make(map[uint32]struct{}, len(f.Segments))
	var maxNumber uint32
	for _, seg := range f.Segments {
		if seg.Number < 1 {
			return fmt.Errorf("%w: invalid segment number: %d", errs.ErrInvalidResponse, seg.Number)
		}
		if _, dup := seen[seg.Number]; dup {
			return fmt.Errorf("%w: duplicate segment number: %d", errs.ErrInvalidResponse, seg.Number)
		}
		seen[seg.Number] = struct{}{}
		if seg.Number > maxNumber {
			maxNumber = seg.Number
		}
	}

	for i := uint32(1); i <= maxNumber; i++ {
		if _, ok := seen[i]; !ok {
			return fmt.Errorf("%w: missing segment number: %d", errs.ErrInvalidResponse, i)
		}
	}

	return nil
}

// MissingSegments returns the gap list in the file's segment numbering.
func (f NzbFile) MissingSegments() []uint32 {
	if len(f.Segments) == 0 {
		return nil
	}

	seen := make(map[uint32]struct{}, len(f.Segments))
	var maxNumber uint32
	for _, seg := range f.Segments {
		seen[seg.Number] = struct{}{}
		if seg.Number > maxNumber {
			maxNumber = seg.Number
		}
	}

	var missing []uint32
	for i := uint32(1); i <= maxNumber; i++ {
		if _, ok := seen[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// Validate checks every file has at least one valid, gap-free segment
// run, and the manifest itself has at least one file.
func (n Nzb) Validate() error {
	if len(n.Files) == 0 {
		return fmt.Errorf("%w: NZB has no files", errs.ErrInvalidResponse)
	}
	for i, f := range n.Files {
		if err := f.ValidateSegments(); err != nil {
			return fmt.Errorf("file %d: %w", i, err)
		}
	}
	return nil
}

// xmlNzb/xmlHead/xmlMeta/xmlFile/xmlGroups/xmlSegments/xmlSegment mirror
// the NZB 1.1 grammar for encoding/xml, kept private so the public Nzb/
// NzbFile/NzbSegment types stay free of XML struct tags.

type xmlNzb struct {
	XMLName xml.Name   `xml:"nzb"`
	Xmlns   string     `xml:"xmlns,attr"`
	Head    *xmlHead   `xml:"head"`
	Files   []xmlFile  `xml:"file"`
}

type xmlHead struct {
	Meta []xmlMeta `xml:"meta"`
}

type xmlMeta struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type xmlFile struct {
	Poster   string      `xml:"poster,attr"`
	Date     int64       `xml:"date,attr"`
	Subject  string      `xml:"subject,attr"`
	Groups   xmlGroups   `xml:"groups"`
	Segments xmlSegments `xml:"segments"`
}

type xmlGroups struct {
	Group []string `xml:"group"`
}

type xmlSegments struct {
	Segment []xmlSegment `xml:"segment"`
}

type xmlSegment struct {
	Bytes   uint64 `xml:"bytes,attr"`
	Number  uint32 `xml:"number,attr"`
	Value   string `xml:",chardata"`
}

// Parse reads an NZB document, trimming whitespace from text content per
// the grammar's leniency.
func Parse(r io.Reader) (Nzb, error) {
	var doc xmlNzb
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return Nzb{}, fmt.Errorf("%w: parse NZB XML: %v", errs.ErrInvalidResponse, err)
	}

	out := Nzb{}
	if doc.Head != nil {
		out.Meta = make(map[string]string, len(doc.Head.Meta))
		for _, m := range doc.Head.Meta {
			out.Meta[strings.TrimSpace(m.Type)] = strings.TrimSpace(m.Value)
		}
	}

	out.Files = make([]NzbFile, 0, len(doc.Files))
	for _, f := range doc.Files {
		file := NzbFile{
			Poster:  strings.TrimSpace(f.Poster),
			Date:    f.Date,
			Subject: strings.TrimSpace(f.Subject),
		}
		for _, g := range f.Groups.Group {
			file.Groups = append(file.Groups, strings.TrimSpace(g))
		}
		for _, s := range f.Segments.Segment {
			file.Segments = append(file.Segments, NzbSegment{
				Bytes:     s.Bytes,
				Number:    s.Number,
				MessageID: strings.TrimSpace(s.Value),
			})
		}
		out.Files = append(out.Files, file)
	}

	return out, nil
}

// ToXML renders n as a pretty-printed NZB 1.1 document with the XML
// declaration and DOCTYPE line the format expects.
func (n Nzb) ToXML() ([]byte, error) {
	var body xmlNzb
	body.Xmlns = "http://www.newzbin.com/DTD/2003/nzb"

	if len(n.Meta) > 0 {
		head := &xmlHead{}
		keys := make([]string, 0, len(n.Meta))
		for k := range n.Meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			head.Meta = append(head.Meta, xmlMeta{Type: k, Value: n.Meta[k]})
		}
		body.Head = head
	}

	for _, f := range n.Files {
		xf := xmlFile{Poster: f.Poster, Date: f.Date, Subject: f.Subject}
		xf.Groups.Group = append([]string(nil), f.Groups...)
		for _, s := range f.Segments {
			xf.Segments.Segment = append(xf.Segments.Segment, xmlSegment{
				Bytes: s.Bytes, Number: s.Number, Value: s.MessageID,
			})
		}
		body.Files = append(body.Files, xf)
	}

	inner, err := xml.MarshalIndent(body, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: emit NZB XML: %v", errs.ErrInvalidResponse, err)
	}

	var out strings.Builder
	out.WriteString(xml.Header)
	out.WriteString("<!DOCTYPE nzb PUBLIC \"-//newzBin//DTD NZB 1.1//EN\" \"http://www.newzbin.com/DTD/nzb/nzb-1.1.dtd\">\n")
	out.Write(inner)
	out.WriteString("\n")

	return []byte(out.String()), nil
}
