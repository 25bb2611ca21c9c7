package analyzer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/AnTengye/contractlens/model"
)

var (
	amountPattern     = regexp.MustCompile(`(?i)(?:₹|\brs\.?|\binr|\$|\busd)\s?\d{1,3}(?:,\d{2,3})*(?:\.\d{1,2})?(?:\s*(?:lakhs?|crores?|million|thousand))?(?:\s*(?:per\s+(?:annum|month|year)|/-))?`)
	wordAmountPattern = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:lakhs?|crores?)(?:\s+rupees)?\b`)

	monthNames   = `(?:January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?`
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(monthNames + `\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}`),
		regexp.MustCompile(`\b\d{1,2}(?:st|nd|rd|th)?\s+(?:day\s+of\s+)?` + monthNames + `,?\s+\d{4}`),
		regexp.MustCompile(`\b\d{1,2}[/.-]\d{1,2}[/.-]\d{4}\b`),
	}

	jurisdictionPattern = regexp.MustCompile(`(?:[Cc]ourts?\s+(?:at|in|of)|[Aa]rbitration\s+(?:in|at)|[Ss]eat\s+of\s+(?:the\s+)?[Aa]rbitration\s+(?:shall\s+be|is|will\s+be)|[Jj]urisdiction\s+of\s+(?:the\s+)?courts?\s+(?:at|in|of))\s+([A-Z][a-z]+(?:\s[A-Z][a-z]+)?(?:,\s*[A-Z][a-z]+)?)`)
	lawsOfIndia         = regexp.MustCompile(`(?i)\blaws?\s+of\s+(?:the\s+(?:Republic\s+of\s+)?)?India\b`)

	companyPattern = regexp.MustCompile(`\b([A-Z][A-Za-z0-9&]*(?:\s+[A-Z][A-Za-z0-9&]*){0,5})\s+(Pvt\.?\s*Ltd\.?|Private\s+Limited|LLP|Limited|Ltd\.?|Inc\.?|LLC|Corporation|Corp\.)`)
	betweenPattern = regexp.MustCompile(`(?i:between)\s+([A-Z][^,;()\n]{2,80}?)\s*(?:\([^)]*\)\s*)?,?\s+(?i:and)\s+([A-Z][^,;()\n]{2,80}?)(?:\s*\(|[,;\n]|\.\s|$)`)

	liabilityCapPattern = regexp.MustCompile(`(?i)(?:liability|liable)[^.;]{0,80}?(?:shall\s+not\s+exceed|limited\s+to|capped\s+at)\s+([^.;\n]{3,80})`)
)

// indianCities are recognised as jurisdictions in dispute and court clauses.
var indianCities = []string{
	"Mumbai", "New Delhi", "Delhi", "Bengaluru", "Bangalore", "Chennai", "Kolkata", "Hyderabad",
	"Pune", "Ahmedabad", "Jaipur", "Lucknow", "Chandigarh", "Kochi", "Gurugram", "Noida",
	"Indore", "Nagpur", "Surat", "Bhopal", "Coimbatore", "Goa",
}

// findCity returns the first known Indian city named in text.
func findCity(text string) string {
	best, bestPos := "", -1
	for _, c := range indianCities {
		if i := strings.Index(text, c); i >= 0 && (bestPos < 0 || i < bestPos) {
			best, bestPos = c, i
		}
	}
	return best
}

// ExtractEntities finds parties, dates, amounts, durations, jurisdictions
// and liability caps in text. Results are de-duplicated by type and
// normalized value, keeping first-seen order and the highest confidence.
func ExtractEntities(text string) []model.ExtractedEntity {
	var found []model.ExtractedEntity
	add := func(t model.EntityType, value string, conf float64) {
		value = strings.TrimSpace(strings.Trim(strings.TrimSpace(value), ",;:"))
		if value != "" {
			found = append(found, model.ExtractedEntity{Type: t, Value: value, Confidence: conf})
		}
	}

	for _, loc := range companyPattern.FindAllStringIndex(text, -1) {
		// "Inc" must not be the start of "Including".
		if r, _ := utf8.DecodeRuneInString(text[loc[1]:]); unicode.IsLetter(r) {
			continue
		}
		add(model.EntityParty, text[loc[0]:loc[1]], 0.9)
	}
	if m := betweenPattern.FindStringSubmatch(text); m != nil {
		add(model.EntityParty, m[1], 0.7)
		add(model.EntityParty, m[2], 0.7)
	}

	for _, re := range datePatterns {
		conf := 0.95
		if re == datePatterns[2] {
			conf = 0.8
		}
		for _, m := range re.FindAllString(text, -1) {
			add(model.EntityDate, m, conf)
		}
	}

	for _, loc := range amountPattern.FindAllStringIndex(text, -1) {
		if containsAny(sentenceAround(text, loc[0], loc[1]), "liabilit", "liable") {
			add(model.EntityLiability, text[loc[0]:loc[1]], 0.85)
		} else {
			add(model.EntityAmount, text[loc[0]:loc[1]], 0.9)
		}
	}
	for _, m := range wordAmountPattern.FindAllString(text, -1) {
		add(model.EntityAmount, m, 0.75)
	}
	for _, m := range liabilityCapPattern.FindAllStringSubmatch(text, -1) {
		add(model.EntityLiability, m[1], 0.8)
	}

	for _, m := range durationPattern.FindAllString(text, -1) {
		add(model.EntityDuration, m, 0.8)
	}

	for _, m := range jurisdictionPattern.FindAllStringSubmatch(text, -1) {
		add(model.EntityJurisdiction, m[1], 0.9)
	}
	for _, s := range sentencesWith(text, "jurisdiction", "arbitrat", "court") {
		if city := findCity(s); city != "" {
			add(model.EntityJurisdiction, city, 0.75)
		}
	}
	if lawsOfIndia.MatchString(text) {
		add(model.EntityJurisdiction, "India", 0.85)
	}

	return DedupEntities(found)
}

// sentenceAround returns the rest of the sentence around text[start:end],
// without the match itself. Abbreviations such as "Rs." inside the match do
// not end the sentence.
func sentenceAround(text string, start, end int) string {
	before := text[max(0, start-120):start]
	if i := strings.LastIndex(before, ". "); i >= 0 {
		before = before[i+2:]
	}
	after := text[end:min(len(text), end+120)]
	if i := strings.Index(after, ". "); i >= 0 {
		after = after[:i]
	}
	return before + " " + after
}

// DedupEntities collapses entities with the same type and normalized value.
// The first occurrence keeps its position; the value and confidence of the
// most confident occurrence win.
func DedupEntities(in []model.ExtractedEntity) []model.ExtractedEntity {
	type key struct {
		t model.EntityType
		v string
	}
	index := make(map[key]int, len(in))
	out := make([]model.ExtractedEntity, 0, len(in))
	for _, e := range in {
		e.Confidence = clamp01(e.Confidence)
		k := key{e.Type, NormalizeValue(e.Value)}
		if i, ok := index[k]; ok {
			if e.Confidence > out[i].Confidence {
				out[i] = e
			}
			continue
		}
		index[k] = len(out)
		out = append(out, e)
	}
	return out
}

// NormalizeValue canonicalises an entity value for comparison: NFKC, case
// folding, collapsed whitespace and no trailing punctuation.
func NormalizeValue(v string) string {
	v = norm.NFKC.String(v)
	v = cases.Fold().String(v)
	v = strings.Join(strings.Fields(v), " ")
	return strings.TrimRightFunc(v, func(r rune) bool {
		return unicode.IsPunct(r) && r != ')'
	})
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
