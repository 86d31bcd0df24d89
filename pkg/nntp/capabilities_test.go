package nntp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCapabilities(t *testing.T) {
	c := ParseCapabilities([]string{"VERSION 2", "READER", "OVER", "COMPRESS DEFLATE", ""})

	assert.True(t, c.Has("reader"))
	assert.True(t, c.Has("VERSION"))
	assert.True(t, c.HasArg("compress", "deflate"))
	assert.False(t, c.HasArg("compress", "gzip"))
	assert.False(t, c.Has("XSECRET"))
	assert.ElementsMatch(t, []string{"VERSION", "READER", "OVER", "COMPRESS"}, c.List())
}
