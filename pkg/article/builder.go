package article

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/javi11/nntpcore/internal/errs"
)

// ArticleBuilder constructs an Article with fluent setters, auto-generating
// Date, Message-ID, and Path when they're left unset.
type ArticleBuilder struct {
	h    Headers
	body string
}

// NewArticleBuilder returns an empty builder.
func NewArticleBuilder() *ArticleBuilder {
	return &ArticleBuilder{h: Headers{Extra: make(map[string]string)}}
}

func (b *ArticleBuilder) From(v string) *ArticleBuilder       { b.h.From = v; return b }
func (b *ArticleBuilder) Subject(v string) *ArticleBuilder    { b.h.Subject = v; return b }
func (b *ArticleBuilder) Newsgroups(v ...string) *ArticleBuilder { b.h.Newsgroups = v; return b }
func (b *ArticleBuilder) Date(v string) *ArticleBuilder       { b.h.Date = v; return b }
func (b *ArticleBuilder) MessageID(v string) *ArticleBuilder  { b.h.MessageID = v; return b }
func (b *ArticleBuilder) Path(v string) *ArticleBuilder       { b.h.Path = v; return b }
func (b *ArticleBuilder) References(v string) *ArticleBuilder { b.h.References = v; return b }
func (b *ArticleBuilder) ReplyTo(v string) *ArticleBuilder    { b.h.ReplyTo = v; return b }
func (b *ArticleBuilder) Organization(v string) *ArticleBuilder { b.h.Organization = v; return b }
func (b *ArticleBuilder) FollowupTo(v ...string) *ArticleBuilder { b.h.FollowupTo = v; return b }
func (b *ArticleBuilder) Expires(v string) *ArticleBuilder    { b.h.Expires = v; return b }
func (b *ArticleBuilder) Control(v string) *ArticleBuilder    { b.h.Control = v; return b }
func (b *ArticleBuilder) Distribution(v string) *ArticleBuilder { b.h.Distribution = v; return b }
func (b *ArticleBuilder) Keywords(v string) *ArticleBuilder   { b.h.Keywords = v; return b }
func (b *ArticleBuilder) Summary(v string) *ArticleBuilder    { b.h.Summary = v; return b }
func (b *ArticleBuilder) Supersedes(v string) *ArticleBuilder { b.h.Supersedes = v; return b }
func (b *ArticleBuilder) Approved(v string) *ArticleBuilder   { b.h.Approved = v; return b }
func (b *ArticleBuilder) Lines(v string) *ArticleBuilder      { b.h.Lines = v; return b }
func (b *ArticleBuilder) UserAgent(v string) *ArticleBuilder  { b.h.UserAgent = v; return b }
func (b *ArticleBuilder) Xref(v string) *ArticleBuilder       { b.h.Xref = v; return b }
func (b *ArticleBuilder) Extra(name, value string) *ArticleBuilder {
	b.h.Extra[name] = value
	return b
}
func (b *ArticleBuilder) Body(v string) *ArticleBuilder { b.body = v; return b }

// Build validates the required fields (From, Subject, at least one
// newsgroup), fills in Date/Message-ID/Path if missing, and enforces the
// Supersedes/Control exclusivity rule.
func (b *ArticleBuilder) Build() (Article, error) {
	if strings.TrimSpace(b.h.From) == "" {
		return Article{}, fmt.Errorf("%w: From is required", errs.ErrInvalidResponse)
	}
	if strings.TrimSpace(b.h.Subject) == "" {
		return Article{}, fmt.Errorf("%w: Subject is required", errs.ErrInvalidResponse)
	}
	if len(b.h.Newsgroups) == 0 {
		return Article{}, fmt.Errorf("%w: at least one newsgroup is required", errs.ErrInvalidResponse)
	}
	if b.h.Supersedes != "" && b.h.Control != "" {
		return Article{}, fmt.Errorf("%w: Supersedes and Control headers are mutually exclusive", errs.ErrInvalidResponse)
	}

	if b.h.Date == "" {
		b.h.Date = time.Now().UTC().Format(time.RFC1123Z)
	}
	if b.h.MessageID == "" {
		b.h.MessageID = fmt.Sprintf("<%s@%s>", uuid.New().String(), domainFromFrom(b.h.From))
	}
	if b.h.Path == "" {
		b.h.Path = "not-for-mail"
	}

	return Article{Headers: b.h, Body: b.body}, nil
}

// BuildForPosting builds the article and immediately serializes it for
// POST/IHAVE/TAKETHIS.
func (b *ArticleBuilder) BuildForPosting() ([]byte, error) {
	a, err := b.Build()
	if err != nil {
		return nil, err
	}
	return a.SerializeForPosting(), nil
}

// domainFromFrom extracts the local-part@domain's domain to seed a
// generated Message-ID's domain, falling back to "localhost" when From
// doesn't look like an address.
func domainFromFrom(from string) string {
	start := strings.IndexByte(from, '<')
	end := strings.IndexByte(from, '>')
	addr := from
	if start >= 0 && end > start {
		addr = from[start+1 : end]
	}

	at := strings.LastIndexByte(addr, '@')
	if at < 0 || at == len(addr)-1 {
		return "localhost"
	}
	domain := strings.TrimSpace(addr[at+1:])
	if domain == "" {
		return "localhost"
	}
	return domain
}
