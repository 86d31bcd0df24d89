package nntp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGroupResponse(t *testing.T) {
	count, first, last, err := parseGroupResponse(Response{Message: "100 1 100 alt.test"})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), count)
	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(100), last)

	_, _, _, err = parseGroupResponse(Response{Message: "short"})
	assert.Error(t, err)
}

func TestParseArticleIDResponse(t *testing.T) {
	num, id, err := parseArticleIDResponse(Response{Message: "1 <a@b>"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), num)
	assert.Equal(t, "<a@b>", id)
}

func TestParseXoverLine(t *testing.T) {
	entry, err := parseXoverLine("5\tSubj\tAuth\tDate\t<m@x>\tRefs\t1024\t42")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), entry.Number)
	assert.Equal(t, uint64(1024), entry.Bytes)
	assert.Equal(t, uint64(42), entry.Lines)

	_, err = parseXoverLine("too\tshort")
	assert.Error(t, err)
}

func TestParseHdrLine(t *testing.T) {
	entry, err := parseHdrLine("5 <a@b>")
	require.NoError(t, err)
	assert.Equal(t, "5", entry.ArticleNumber)
	assert.Equal(t, "<a@b>", entry.Value)

	_, err = parseHdrLine("nospaces")
	assert.Error(t, err)
}

func TestParseActiveGroupLine(t *testing.T) {
	g, err := parseActiveGroupLine("alt.test 100 1 y")
	require.NoError(t, err)
	assert.Equal(t, "alt.test", g.Group)
	assert.Equal(t, uint64(100), g.High)
	assert.Equal(t, uint64(1), g.Low)
	assert.Equal(t, "y", g.Status)
}

func TestParseNewnewsResponse(t *testing.T) {
	got := parseNewnewsResponse([]string{"<b@x>", "<a@x>", "<a@x>", "", "  "})
	assert.Equal(t, []string{"<a@x>", "<b@x>"}, got)
}

func TestParseDistributionLine(t *testing.T) {
	d, err := parseDistributionLine("world: worldwide distribution")
	require.NoError(t, err)
	assert.Equal(t, "world", d.Key)
	assert.Equal(t, "worldwide distribution", d.Value)
}
