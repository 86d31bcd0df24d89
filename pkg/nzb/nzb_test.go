package nzb

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleNzb() Nzb {
	return Nzb{
		Meta: map[string]string{
			"password": "",
			"tag":      "example",
		},
		Files: []NzbFile{
			{
				Poster:  "poster@example.com (Poster)",
				Date:    1700000000,
				Subject: "[1/2] - \"archive.part01.rar\" yEnc (1/10)",
				Groups:  []string{"alt.binaries.test"},
				Segments: []NzbSegment{
					{Bytes: 500000, Number: 1, MessageID: "part1@example"},
					{Bytes: 500000, Number: 2, MessageID: "part2@example"},
				},
			},
			{
				Poster:  "poster@example.com (Poster)",
				Date:    1700000001,
				Subject: "[2/2] - \"archive.part02.rar\" yEnc (1/5)",
				Groups:  []string{"alt.binaries.test", "alt.binaries.test2"},
				Segments: []NzbSegment{
					{Bytes: 250000, Number: 1, MessageID: "part3@example"},
				},
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	n := sampleNzb()

	xmlBytes, err := n.ToXML()
	require.NoError(t, err)

	got, err := Parse(bytes.NewReader(xmlBytes))
	require.NoError(t, err)

	assert.Equal(t, n, got)
}

func TestParse_WhitespaceAndEntities(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE nzb PUBLIC "-//newzBin//DTD NZB 1.1//EN" "http://www.newzbin.com/DTD/nzb/nzb-1.1.dtd">
<nzb xmlns="http://www.newzbin.com/DTD/2003/nzb">
  <head>
    <meta type="tag">A &amp; B</meta>
  </head>
  <file poster="a@b.c" date="1700000000" subject="sub &lt;1&gt;">
    <groups>
      <group> alt.binaries.test </group>
    </groups>
    <segments>
      <segment bytes="123" number="1"> &lt;msg1@x&gt; </segment>
    </segments>
  </file>
</nzb>`

	n, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	require.Len(t, n.Files, 1)
	assert.Equal(t, "A & B", n.Meta["tag"])
	assert.Equal(t, "sub <1>", n.Files[0].Subject)
	assert.Equal(t, []string{"alt.binaries.test"}, n.Files[0].Groups)
	assert.Equal(t, "<msg1@x>", n.Files[0].Segments[0].MessageID)
}

func TestParse_UnknownElementsIgnored(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<nzb xmlns="http://www.newzbin.com/DTD/2003/nzb">
  <head>
    <meta type="tag">v</meta>
    <future-field>ignored</future-field>
  </head>
  <file poster="a@b.c" date="1" subject="s">
    <groups><group>g</group></groups>
    <segments><segment bytes="1" number="1">m@x</segment></segments>
    <unknown-child/>
  </file>
</nzb>`

	n, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "v", n.Meta["tag"])
	require.Len(t, n.Files, 1)
}

func TestToXML_AttributeOrderAndDoctype(t *testing.T) {
	n := Nzb{Files: []NzbFile{{
		Poster:  "p",
		Date:    42,
		Subject: "s",
		Groups:  []string{"g"},
		Segments: []NzbSegment{
			{Bytes: 7, Number: 1, MessageID: "m@x"},
		},
	}}}

	out, err := n.ToXML()
	require.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, s, `<!DOCTYPE nzb PUBLIC "-//newzBin//DTD NZB 1.1//EN"`)
	assert.Contains(t, s, `xmlns="http://www.newzbin.com/DTD/2003/nzb"`)
	assert.Contains(t, s, `poster="p" date="42" subject="s"`)
	assert.Contains(t, s, `bytes="7" number="1"`)
}

func TestNzbFile_TotalBytes(t *testing.T) {
	f := NzbFile{Segments: []NzbSegment{{Bytes: 10}, {Bytes: 20}, {Bytes: 5}}}
	assert.Equal(t, uint64(35), f.TotalBytes())
}

func TestNzb_TotalBytes(t *testing.T) {
	n := sampleNzb()
	assert.Equal(t, uint64(500000+500000+250000), n.TotalBytes())
}

func TestValidateSegments(t *testing.T) {
	tests := []struct {
		name    string
		segs    []NzbSegment
		wantErr bool
	}{
		{"empty", nil, true},
		{"sequential", []NzbSegment{{Number: 1}, {Number: 2}, {Number: 3}}, false},
		{"gap", []NzbSegment{{Number: 1}, {Number: 3}}, true},
		{"duplicate", []NzbSegment{{Number: 1}, {Number: 1}}, true},
		{"zero", []NzbSegment{{Number: 0}}, true},
		{"out of order but complete", []NzbSegment{{Number: 3}, {Number: 1}, {Number: 2}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NzbFile{Segments: tt.segs}
			err := f.ValidateSegments()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMissingSegments(t *testing.T) {
	f := NzbFile{Segments: []NzbSegment{{Number: 1}, {Number: 3}, {Number: 5}}}
	assert.Equal(t, []uint32{2, 4}, f.MissingSegments())

	complete := NzbFile{Segments: []NzbSegment{{Number: 1}, {Number: 2}}}
	assert.Empty(t, complete.MissingSegments())

	assert.Nil(t, (NzbFile{}).MissingSegments())
}

func TestNzb_Validate(t *testing.T) {
	empty := Nzb{}
	assert.Error(t, empty.Validate())

	valid := sampleNzb()
	assert.NoError(t, valid.Validate())

	invalid := sampleNzb()
	invalid.Files[0].Segments = []NzbSegment{{Number: 1}, {Number: 3}}
	assert.Error(t, invalid.Validate())
}
