package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javi11/nntpcore/pkg/nzb"
	"github.com/javi11/nntpcore/pkg/yenc"
)

func TestArticleAssembler_SingleSegment(t *testing.T) {
	data := []byte("Hello, World!")
	raw, err := yenc.Encode(data, "hw.txt", 128, nil)
	require.NoError(t, err)

	file := nzb.NzbFile{Segments: []nzb.NzbSegment{{Bytes: uint64(len(data)), Number: 1, MessageID: "p1@x"}}}
	a := New(file)

	require.NoError(t, a.AddPartBytes(1, raw))
	assert.True(t, a.IsComplete())
	assert.True(t, a.AllPartsValid())

	out, err := a.Assemble()
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestArticleAssembler_ThreePartsOutOfOrder(t *testing.T) {
	full := []byte("Part1Part2Part3")
	file := nzb.NzbFile{Segments: []nzb.NzbSegment{
		{Bytes: 5, Number: 1, MessageID: "p1@x"},
		{Bytes: 5, Number: 2, MessageID: "p2@x"},
		{Bytes: 5, Number: 3, MessageID: "p3@x"},
	}}
	a := New(file)

	encodedParts := make(map[uint32][]byte, 3)
	for i := uint32(1); i <= 3; i++ {
		begin := uint64(5*(i-1) + 1)
		end := uint64(5 * i)
		chunk := full[begin-1 : end]
		raw, err := yenc.Encode(chunk, "f.bin", 128, &yenc.PartInfo{
			Part: i, TotalParts: 3, Begin: begin, End: end, TotalFileSize: 15,
		})
		require.NoError(t, err)
		encodedParts[i] = raw
	}

	for _, n := range []uint32{2, 3, 1} {
		require.NoError(t, a.AddPartBytes(n, encodedParts[n]))
	}

	out, err := a.Assemble()
	require.NoError(t, err)
	assert.Equal(t, full, out)
}

func TestArticleAssembler_MissingSegmentBlocksAssemble(t *testing.T) {
	file := nzb.NzbFile{Segments: []nzb.NzbSegment{
		{Bytes: 5, Number: 1, MessageID: "p1@x"},
		{Bytes: 5, Number: 2, MessageID: "p2@x"},
	}}
	a := New(file)
	a.MarkMissing(1)
	a.MarkCorrupted(2)

	assert.True(t, a.IsComplete())
	assert.False(t, a.AllPartsValid())

	_, err := a.Assemble()
	assert.Error(t, err)
}
