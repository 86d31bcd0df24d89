package article

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FoldedHeadersAndBody(t *testing.T) {
	raw := "Date: Mon, 1 Jan 2024 00:00:00 +0000\r\n" +
		"From: a@b.com\r\n" +
		"Message-ID: <m@b.com>\r\n" +
		"Newsgroups: alt.test\r\n" +
		"Path: not-for-mail\r\n" +
		"Subject: a very long\r\n subject line\r\n" +
		"\r\n" +
		"body line 1\r\nbody line 2\r\n"

	a, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "a very long subject line", a.Headers.Subject)
	assert.Equal(t, []string{"alt.test"}, a.Headers.Newsgroups)
	assert.Equal(t, "body line 1\r\nbody line 2\r\n", a.Body)
}

func TestParse_LFFallback(t *testing.T) {
	raw := "From: a@b.com\nSubject: s\n\nbody\n"
	a, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", a.Headers.From)
	assert.Equal(t, "body\n", a.Body)
}

func TestSerializeForPosting_FixedOrderAndDotStuffing(t *testing.T) {
	a := Article{
		Headers: Headers{
			Date: "d", From: "f", MessageID: "<m@x>", Newsgroups: []string{"a.b"},
			Path: "not-for-mail", Subject: "s", Extra: map[string]string{"X-Custom": "v"},
		},
		Body: ".leading dot\r\nplain\r\n",
	}

	out := string(a.SerializeForPosting())
	assert.Contains(t, out, "Date: d\r\nFrom: f\r\nMessage-ID: <m@x>\r\nNewsgroups: a.b\r\nPath: not-for-mail\r\nSubject: s\r\n")
	assert.Contains(t, out, "X-Custom: v\r\n")
	assert.Contains(t, out, "..leading dot\r\n")
	assert.Contains(t, out, "plain\r\n")
}

func TestDecodeHeaderValue(t *testing.T) {
	assert.Equal(t, "plain ascii", DecodeHeaderValue("plain ascii"))
	assert.Equal(t, "Hello", DecodeHeaderValue("=?utf-8?B?SGVsbG8=?="))
	assert.Equal(t, "Hello World", DecodeHeaderValue("=?utf-8?Q?Hello_World?="))
	assert.Equal(t, "ab", DecodeHeaderValue("=?utf-8?Q?a?= =?utf-8?Q?b?="))
}

func TestValidate_RejectsBadMessageID(t *testing.T) {
	h := Headers{
		Date: "Mon, 1 Jan 2024 00:00:00 +0000", From: "a@b.com", MessageID: "no-brackets",
		Newsgroups: []string{"alt.test"}, Path: "not-for-mail", Subject: "s",
	}
	err := Validate(h, DefaultValidationConfig())
	assert.Error(t, err)
}

func TestValidate_RejectsUppercaseNewsgroup(t *testing.T) {
	h := Headers{
		Date: "Mon, 1 Jan 2024 00:00:00 +0000", From: "a@b.com", MessageID: "<m@b.com>",
		Newsgroups: []string{"Alt.Test"}, Path: "not-for-mail", Subject: "s",
	}
	err := Validate(h, DefaultValidationConfig())
	assert.Error(t, err)
}

func TestValidate_RejectsSupersedesAndControlTogether(t *testing.T) {
	h := Headers{
		Date: "Mon, 1 Jan 2024 00:00:00 +0000", From: "a@b.com", MessageID: "<m@b.com>",
		Newsgroups: []string{"alt.test"}, Path: "not-for-mail", Subject: "s",
		Supersedes: "<old@b.com>", Control: "cancel <old@b.com>",
	}
	err := Validate(h, DefaultValidationConfig())
	assert.Error(t, err)
}

func TestValidate_AcceptsWellFormedHeaders(t *testing.T) {
	h := Headers{
		Date: "Mon, 1 Jan 2024 00:00:00 +0000", From: "a@b.com", MessageID: "<m@b.com>",
		Newsgroups: []string{"alt.test.sub"}, Path: "not-for-mail", Subject: "s",
		FollowupTo: []string{"poster"},
	}
	assert.NoError(t, Validate(h, DefaultValidationConfig()))
}

func TestBuilder_AutoGeneratesDefaults(t *testing.T) {
	a, err := NewArticleBuilder().
		From("user@example.com").
		Subject("hi").
		Newsgroups("alt.test").
		Build()
	require.NoError(t, err)

	assert.NotEmpty(t, a.Headers.Date)
	assert.Contains(t, a.Headers.MessageID, "@example.com>")
	assert.Equal(t, "not-for-mail", a.Headers.Path)
}

func TestBuilder_RejectsMissingRequiredFields(t *testing.T) {
	_, err := NewArticleBuilder().Subject("s").Newsgroups("a.b").Build()
	assert.Error(t, err)
}

func TestParseControl(t *testing.T) {
	cases := []struct {
		value string
		kind  ControlKind
	}{
		{"cancel <m@x>", ControlCancel},
		{"newgroup alt.test moderated", ControlNewgroup},
		{"rmgroup alt.test", ControlRmgroup},
		{"checkgroups alt 12345", ControlCheckgroups},
		{"ihave <a@x> <b@x> relay.example", ControlIhave},
		{"something else entirely", ControlUnknown},
	}
	for _, c := range cases {
		cm := ParseControl(c.value)
		assert.Equal(t, c.kind, cm.Kind, c.value)
	}

	newgroup := ParseControl("newgroup alt.test moderated")
	assert.True(t, newgroup.Moderated)
	assert.Equal(t, "alt.test", newgroup.Group)

	ihave := ParseControl("ihave <a@x> <b@x> relay.example")
	assert.Equal(t, []string{"<a@x>", "<b@x>"}, ihave.IDs)
	assert.Equal(t, "relay.example", ihave.Relayer)
}
