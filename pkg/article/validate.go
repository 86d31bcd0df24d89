package article

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/javi11/nntpcore/internal/errs"
)

// ValidationConfig controls how strictly Validate checks the Date header
// and whether future-dated articles are accepted.
type ValidationConfig struct {
	StrictDateValidation bool
	AllowFutureDates     bool
	MaxDateAgeDays       *int64
}

// DefaultValidationConfig is the lenient configuration: dates are parsed
// but not bounded.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{AllowFutureDates: true}
}

// Strict rejects future-dated articles and caps age at 36500 days
// (roughly a century), for callers that want defensive bounds by default.
func Strict() ValidationConfig {
	maxAge := int64(36500)
	return ValidationConfig{StrictDateValidation: true, AllowFutureDates: false, MaxDateAgeDays: &maxAge}
}

// Lenient is an alias for DefaultValidationConfig, named to match callers
// reading for the lenient/strict pair explicitly.
func Lenient() ValidationConfig { return DefaultValidationConfig() }

// Validate checks h against the RFC 5536 required-field, Message-ID,
// newsgroup-name, date, and Supersedes/Control-exclusivity rules.
func Validate(h Headers, cfg ValidationConfig) error {
	if strings.TrimSpace(h.Date) == "" {
		return fmt.Errorf("%w: Date header is required", errs.ErrInvalidResponse)
	}
	if strings.TrimSpace(h.From) == "" {
		return fmt.Errorf("%w: From header is required", errs.ErrInvalidResponse)
	}
	if strings.TrimSpace(h.Subject) == "" {
		return fmt.Errorf("%w: Subject header is required", errs.ErrInvalidResponse)
	}
	if strings.TrimSpace(h.Path) == "" {
		return fmt.Errorf("%w: Path header is required", errs.ErrInvalidResponse)
	}
	if len(h.Newsgroups) == 0 {
		return fmt.Errorf("%w: Newsgroups header is required", errs.ErrInvalidResponse)
	}

	if err := validateMessageID(h.MessageID); err != nil {
		return err
	}

	for _, group := range h.Newsgroups {
		if err := validateNewsgroupName(group); err != nil {
			return err
		}
	}
	for _, group := range h.FollowupTo {
		if group == "poster" {
			continue
		}
		if err := validateNewsgroupName(group); err != nil {
			return err
		}
	}

	if _, err := parseDate(h.Date); err != nil {
		return fmt.Errorf("%w: invalid Date header: %v", errs.ErrInvalidResponse, err)
	}
	if cfg.StrictDateValidation {
		if err := validateDate(h.Date, cfg); err != nil {
			return err
		}
	}

	if h.Supersedes != "" && h.Control != "" {
		return fmt.Errorf("%w: Supersedes and Control headers are mutually exclusive", errs.ErrInvalidResponse)
	}

	return nil
}

// validateMessageID checks the "<local@domain>" shape: bracket-wrapped,
// exactly one '@', non-empty local and domain parts, no whitespace or
// control characters.
func validateMessageID(id string) error {
	if len(id) < 5 {
		return fmt.Errorf("%w: Message-ID too short: %q", errs.ErrInvalidResponse, id)
	}
	if id[0] != '<' || id[len(id)-1] != '>' {
		return fmt.Errorf("%w: Message-ID must be bracket-wrapped: %q", errs.ErrInvalidResponse, id)
	}
	inner := id[1 : len(id)-1]

	for _, r := range inner {
		if r <= 0x20 || r == 0x7f {
			return fmt.Errorf("%w: Message-ID contains whitespace or control characters: %q", errs.ErrInvalidResponse, id)
		}
	}

	at := strings.Count(inner, "@")
	if at != 1 {
		return fmt.Errorf("%w: Message-ID must contain exactly one '@': %q", errs.ErrInvalidResponse, id)
	}
	idx := strings.IndexByte(inner, '@')
	local, domain := inner[:idx], inner[idx+1:]
	if local == "" || domain == "" {
		return fmt.Errorf("%w: Message-ID local/domain part is empty: %q", errs.ErrInvalidResponse, id)
	}
	return nil
}

// validateNewsgroupName checks `(lc|digit|+|-|_)+(\.(lc|digit|+|-|_)+)*`:
// lowercase ASCII only, non-empty dot-separated components, no
// leading/trailing dot.
func validateNewsgroupName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: newsgroup name is empty", errs.ErrInvalidResponse)
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("%w: newsgroup name has leading or trailing dot: %q", errs.ErrInvalidResponse, name)
	}

	for _, component := range strings.Split(name, ".") {
		if component == "" {
			return fmt.Errorf("%w: newsgroup name has empty component: %q", errs.ErrInvalidResponse, name)
		}
		for _, r := range component {
			valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '+' || r == '-' || r == '_'
			if !valid {
				return fmt.Errorf("%w: newsgroup name contains invalid character %q: %q", errs.ErrInvalidResponse, r, name)
			}
		}
	}
	return nil
}

// parseDate accepts RFC 5322/2822 dates, with a GMT-for-+0000 substitution
// fallback for the common non-conforming "GMT" zone abbreviation.
func parseDate(date string) (time.Time, error) {
	if t, err := mail.ParseDate(date); err == nil {
		return t, nil
	}
	substituted := strings.ReplaceAll(date, "GMT", "+0000")
	return mail.ParseDate(substituted)
}

func validateDate(date string, cfg ValidationConfig) error {
	t, err := parseDate(date)
	if err != nil {
		return fmt.Errorf("%w: invalid Date header: %v", errs.ErrInvalidResponse, err)
	}

	now := time.Now()
	if !cfg.AllowFutureDates && t.After(now) {
		return fmt.Errorf("%w: Date header is in the future: %q", errs.ErrInvalidResponse, date)
	}
	if cfg.MaxDateAgeDays != nil {
		maxAge := time.Duration(*cfg.MaxDateAgeDays) * 24 * time.Hour
		if now.Sub(t) > maxAge {
			return fmt.Errorf("%w: Date header exceeds max age of %d days: %q", errs.ErrInvalidResponse, *cfg.MaxDateAgeDays, date)
		}
	}
	return nil
}
