package analyzer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/AnTengye/contractlens/model"
)

var (
	numberedHeading = regexp.MustCompile(`^(?:\d{1,3}(?:\.\d{1,3})*[.)]|\d{1,3}(?:\.\d{1,3})+)\s+\S`)
	namedHeading    = regexp.MustCompile(`^(?i:clause|article|section|schedule|annexure|annex)\s+(?:\d{1,3}(?:\.\d{1,3})*|[IVXLC]{1,6}|[A-Z])\b`)
	headingPrefix   = regexp.MustCompile(`^(?:(?i:clause|article|section|schedule|annexure|annex)\s+(?:\d{1,3}(?:\.\d{1,3})*|[IVXLC]{1,6}|[A-Z])\b|\d{1,3}(?:\.\d{1,3})*[.)]?)[\s.:)\-–]*`)
)

const maxCapsHeadingLen = 60

// line is one line of the source text, including its newline.
type line struct {
	start, end int
	text       string
}

func splitLines(s string) []line {
	var lines []line
	for start := 0; start < len(s); {
		end := strings.IndexByte(s[start:], '\n')
		if end < 0 {
			end = len(s)
		} else {
			end += start + 1
		}
		lines = append(lines, line{start: start, end: end, text: s[start:end]})
		start = end
	}
	return lines
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// isHeading reports whether a line opens a new clause: numbered ("1.",
// "2.3", "4)"), named ("Clause 3", "Article IV", "Schedule A") or a short
// line in capitals.
func isHeading(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	if numberedHeading.MatchString(t) || namedHeading.MatchString(t) {
		return true
	}
	return isCapsHeading(t)
}

func isCapsHeading(t string) bool {
	if utf8.RuneCountInString(t) > maxCapsHeadingLen || len(strings.Fields(t)) > 8 {
		return false
	}
	letters := 0
	for _, r := range t {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return false
			}
			if unicode.IsUpper(r) {
				letters++
			}
		}
	}
	return letters >= 3
}

// Segment partitions text into clause spans. Heading lines start clauses;
// without any heading, blank-line paragraph breaks do; text with neither is
// a single clause. The spans cover [0, len(text)) exactly, in order, with
// trailing whitespace kept on the clause it follows.
func Segment(text string) []model.Span {
	if text == "" {
		return nil
	}
	lines := splitLines(text)

	starts := headingStarts(lines)
	if len(starts) == 0 {
		starts = paragraphStarts(lines)
	}
	bounds := append([]int{0}, starts...)
	bounds = dedupSorted(bounds)

	spans := make([]model.Span, 0, len(bounds))
	for i, b := range bounds {
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1]
		}
		spans = append(spans, model.Span{Start: b, End: end})
	}
	return mergeSpans(text, spans)
}

func headingStarts(lines []line) []int {
	var starts []int
	for _, l := range lines {
		if isHeading(l.text) {
			starts = append(starts, l.start)
		}
	}
	return starts
}

func paragraphStarts(lines []line) []int {
	var starts []int
	afterBlank := false
	for _, l := range lines {
		if isBlank(l.text) {
			afterBlank = true
			continue
		}
		if afterBlank {
			starts = append(starts, l.start)
		}
		afterBlank = false
	}
	return starts
}

func dedupSorted(xs []int) []int {
	out := xs[:0]
	for i, x := range xs {
		if i == 0 || x != xs[i-1] {
			out = append(out, x)
		}
	}
	return out
}

// mergeSpans folds whitespace-only spans into their predecessor (or the
// first real clause when they lead the text) and joins a bare heading line
// to the clause body that follows it.
func mergeSpans(text string, spans []model.Span) []model.Span {
	out := make([]model.Span, 0, len(spans))
	for _, s := range spans {
		body := text[s.Start:s.End]
		if len(out) > 0 && isBlank(body) {
			out[len(out)-1].End = s.End
			continue
		}
		if len(out) > 0 {
			prev := &out[len(out)-1]
			if isBlank(text[prev.Start:prev.End]) || bareHeading(text[prev.Start:prev.End]) {
				prev.End = s.End
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// bareHeading reports whether a span holds a single capitalised heading line
// and nothing else.
func bareHeading(body string) bool {
	t := strings.TrimSpace(body)
	return t != "" && !strings.Contains(t, "\n") && isCapsHeading(t)
}

// headingTitle returns a display title taken from the clause's first line
// when that line reads like a heading.
func headingTitle(clauseText string) string {
	first := strings.TrimSpace(clauseText)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = strings.TrimSpace(first[:i])
	}
	if !isHeading(first) {
		return ""
	}
	t := strings.TrimSpace(headingPrefix.ReplaceAllString(first, ""))
	if t == "" {
		t = first
	}
	t = strings.TrimRight(t, ".:;- ")
	if t == "" || utf8.RuneCountInString(t) > maxCapsHeadingLen || len(strings.Fields(t)) > 8 {
		return ""
	}
	if isCapsHeading(t) {
		return titleCase(t)
	}
	return t
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToTitle(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
