package nntp

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/javi11/nntpcore/internal/errs"
)

// Command builders. Each returns the command text without CRLF; sendCommand
// appends it.

func cmdAuthinfoUser(username string) string { return "AUTHINFO USER " + username }
func cmdAuthinfoPass(password string) string { return "AUTHINFO PASS " + password }

func cmdAuthinfoSASL(mechanism string) string {
	return "AUTHINFO SASL " + mechanism
}

func cmdAuthinfoSASLInitial(mechanism, initialResponse string) string {
	return "AUTHINFO SASL " + mechanism + " " + initialResponse
}

func cmdAuthinfoSASLContinue(response string) string { return response }

func cmdGroup(name string) string        { return "GROUP " + name }
func cmdArticle(id string) string        { return "ARTICLE " + id }
func cmdHead(id string) string           { return "HEAD " + id }
func cmdBody(id string) string           { return "BODY " + id }
func cmdStat(id string) string           { return "STAT " + id }
func cmdNext() string                    { return "NEXT" }
func cmdLast() string                    { return "LAST" }
func cmdListgroup(group, rng string) string {
	cmd := "LISTGROUP"
	if group != "" {
		cmd += " " + group
		if rng != "" {
			cmd += " " + rng
		}
	}
	return cmd
}

func cmdXover(rng string) string { return "XOVER " + rng }

func cmdOver(rng string) string {
	if rng == "" {
		return "OVER"
	}
	return "OVER " + rng
}

func cmdHdr(field, rng string) string {
	if rng == "" {
		return "HDR " + field
	}
	return "HDR " + field + " " + rng
}

func cmdListActive(wildmat string) string         { return listCmd("ACTIVE", wildmat) }
func cmdListActiveTimes(wildmat string) string     { return listCmd("ACTIVE.TIMES", wildmat) }
func cmdListNewsgroups(wildmat string) string      { return listCmd("NEWSGROUPS", wildmat) }
func cmdListCounts(wildmat string) string          { return listCmd("COUNTS", wildmat) }
func cmdListDistributions(wildmat string) string   { return listCmd("DISTRIBUTIONS", wildmat) }
func cmdListModerators() string                    { return "LIST MODERATORS" }
func cmdListMotd() string                          { return "LIST MOTD" }
func cmdListSubscriptions() string                 { return "LIST SUBSCRIPTIONS" }
func cmdListOverviewFmt() string                   { return "LIST OVERVIEW.FMT" }
func cmdListHeaders() string                       { return "LIST HEADERS" }
func cmdListHeadersMsgID() string                  { return "LIST HEADERS MSGID" }
func cmdListHeadersRange() string                  { return "LIST HEADERS RANGE" }

func listCmd(variant, wildmat string) string {
	cmd := "LIST " + variant
	if wildmat != "" {
		cmd += " " + wildmat
	}
	return cmd
}

func cmdNewgroups(date, timeStr string, gmt bool) string {
	cmd := "NEWGROUPS " + date + " " + timeStr
	if gmt {
		cmd += " GMT"
	}
	return cmd
}

func cmdNewnews(wildmat, date, timeStr string, gmt bool) string {
	cmd := "NEWNEWS " + wildmat + " " + date + " " + timeStr
	if gmt {
		cmd += " GMT"
	}
	return cmd
}

func cmdPost() string                     { return "POST" }
func cmdIhave(id string) string           { return "IHAVE " + id }
func cmdModeReader() string               { return "MODE READER" }
func cmdModeStream() string               { return "MODE STREAM" }
func cmdCheck(id string) string           { return "CHECK " + id }
func cmdTakethis(id string) string        { return "TAKETHIS " + id }
func cmdDate() string                     { return "DATE" }
func cmdHelp() string                     { return "HELP" }
func cmdCapabilities() string             { return "CAPABILITIES" }
func cmdCapabilitiesKeyword(kw string) string { return "CAPABILITIES " + kw }
func cmdCompressDeflate() string          { return "COMPRESS DEFLATE" }
func cmdXfeatureCompressGzip() string     { return "XFEATURE COMPRESS GZIP" }
func cmdQuit() string                     { return "QUIT" }
func cmdStartTLS() string                 { return "STARTTLS" }

// Response parsers.

// parseGroupResponse tokenizes a 211 reply as "count first last group".
func parseGroupResponse(r Response) (count, first, last uint64, err error) {
	fields := strings.Fields(r.Message)
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("%w: malformed GROUP reply: %q", errs.ErrInvalidResponse, r.Message)
	}
	count, err1 := strconv.ParseUint(fields[0], 10, 64)
	first, err2 := strconv.ParseUint(fields[1], 10, 64)
	last, err3 := strconv.ParseUint(fields[2], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, fmt.Errorf("%w: malformed GROUP counters: %q", errs.ErrInvalidResponse, r.Message)
	}
	return count, first, last, nil
}

// parseArticleIDResponse tokenizes a STAT/NEXT/LAST 22x reply as
// "n message-id", joining any remainder by spaces for nonconforming
// servers.
func parseArticleIDResponse(r Response) (number uint64, messageID string, err error) {
	fields := strings.Fields(r.Message)
	if len(fields) < 2 {
		return 0, "", fmt.Errorf("%w: malformed article-id reply: %q", errs.ErrInvalidResponse, r.Message)
	}
	number, err = strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: malformed article number: %q", errs.ErrInvalidResponse, r.Message)
	}
	return number, strings.Join(fields[1:], " "), nil
}

// XoverEntry is the subset of RFC 3977 overview metadata OVER/XOVER expose.
type XoverEntry struct {
	Number     uint64
	Subject    string
	Author     string
	Date       string
	MessageID  string
	References string
	Bytes      uint64
	Lines      uint64
}

// parseXoverLine parses a tab-separated OVER/XOVER line. Non-integer
// numeric fields default to 0 rather than erroring, since malformed lines
// are skipped by the caller, not this parser.
func parseXoverLine(line string) (XoverEntry, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return XoverEntry{}, fmt.Errorf("%w: short OVER line: %q", errs.ErrInvalidResponse, line)
	}

	number, _ := strconv.ParseUint(fields[0], 10, 64)
	bytesField, _ := strconv.ParseUint(fields[6], 10, 64)
	lines, _ := strconv.ParseUint(fields[7], 10, 64)

	return XoverEntry{
		Number:     number,
		Subject:    fields[1],
		Author:     fields[2],
		Date:       fields[3],
		MessageID:  fields[4],
		References: fields[5],
		Bytes:      bytesField,
		Lines:      lines,
	}, nil
}

// HdrEntry is one parsed line of an HDR/XHDR response.
type HdrEntry struct {
	ArticleNumber string
	Value         string
}

// parseHdrLine splits on the first whitespace run; the left side is the
// article number, the right side the header value verbatim.
func parseHdrLine(line string) (HdrEntry, error) {
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return HdrEntry{}, fmt.Errorf("%w: malformed HDR line: %q", errs.ErrInvalidResponse, line)
	}
	return HdrEntry{ArticleNumber: line[:idx], Value: strings.TrimLeft(line[idx+1:], " \t")}, nil
}

// ActiveGroup is one parsed line of a LIST ACTIVE / NEWGROUPS response.
type ActiveGroup struct {
	Group  string
	High   uint64
	Low    uint64
	Status string
}

func parseActiveGroupLine(line string) (ActiveGroup, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return ActiveGroup{}, fmt.Errorf("%w: malformed LIST ACTIVE line: %q", errs.ErrInvalidResponse, line)
	}
	high, _ := strconv.ParseUint(fields[1], 10, 64)
	low, _ := strconv.ParseUint(fields[2], 10, 64)
	return ActiveGroup{Group: fields[0], High: high, Low: low, Status: fields[3]}, nil
}

// CountsGroup is one parsed line of a LIST COUNTS response.
type CountsGroup struct {
	Group  string
	Count  uint64
	Low    uint64
	High   uint64
	Status string
}

func parseCountsLine(line string) (CountsGroup, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return CountsGroup{}, fmt.Errorf("%w: malformed LIST COUNTS line: %q", errs.ErrInvalidResponse, line)
	}
	count, _ := strconv.ParseUint(fields[1], 10, 64)
	low, _ := strconv.ParseUint(fields[2], 10, 64)
	high, _ := strconv.ParseUint(fields[3], 10, 64)
	return CountsGroup{Group: fields[0], Count: count, Low: low, High: high, Status: fields[4]}, nil
}

// GroupTime is one parsed line of a LIST ACTIVE.TIMES response.
type GroupTime struct {
	Group   string
	Created string
	Creator string
}

func parseActiveTimesLine(line string) (GroupTime, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return GroupTime{}, fmt.Errorf("%w: malformed LIST ACTIVE.TIMES line: %q", errs.ErrInvalidResponse, line)
	}
	return GroupTime{Group: fields[0], Created: fields[1], Creator: strings.Join(fields[2:], " ")}, nil
}

// NewsgroupInfo is one parsed line of a LIST NEWSGROUPS response: group
// name split from its free-text description on the first whitespace run.
type NewsgroupInfo struct {
	Group       string
	Description string
}

func parseNewsgroupsLine(line string) (NewsgroupInfo, error) {
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return NewsgroupInfo{Group: line}, nil
	}
	return NewsgroupInfo{Group: line[:idx], Description: strings.TrimLeft(line[idx+1:], " \t")}, nil
}

// DistributionInfo is one LIST DISTRIBUTIONS or LIST MODERATORS line,
// split on the first colon.
type DistributionInfo struct {
	Key   string
	Value string
}

func parseDistributionLine(line string) (DistributionInfo, error) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return DistributionInfo{Key: line}, nil
	}
	return DistributionInfo{Key: strings.TrimSpace(line[:idx]), Value: strings.TrimSpace(line[idx+1:])}, nil
}

// parseNewnewsResponse dedupes and sorts the returned message-IDs, a
// behavior the distilled spec doesn't call out but every reference client
// in the corpus applies.
func parseNewnewsResponse(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
