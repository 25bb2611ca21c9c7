package analyzer

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/AnTengye/contractlens/model"
)

// RuleClassifier classifies clauses with a keyword table and per-category
// risk evaluators. It is deterministic and needs no network.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// assessment is a category evaluator's verdict.
type assessment struct {
	risk        model.RiskLevel
	reason      string
	explanation string
	alternative string
}

var evaluators = map[string]func(text string) assessment{
	CategoryLatePayment:       evalLatePayment,
	CategoryAutoRenewal:       evalAutoRenewal,
	CategoryTermination:       evalTermination,
	CategoryLiabilityCap:      evalLiabilityCap,
	CategoryIndemnity:         evalIndemnity,
	CategoryNonSolicitation:   evalRestriction("hire or approach people you have worked with"),
	CategoryNonCompete:        evalRestriction("run or join a competing business"),
	CategoryIPAssignment:      evalIPAssignment,
	CategoryDisputeResolution: evalDisputeResolution,
	CategoryGoverningLaw:      evalGoverningLaw,
	CategoryConfidentiality:   evalConfidentiality,
	CategoryPaymentTerms:      evalPaymentTerms,
	CategoryAssignment:        evalAssignment,
	CategoryWarranty:          evalWarranty,
	CategoryDataProtection:    evalDataProtection,
}

func (c *RuleClassifier) Classify(ctx context.Context, in ClauseInput) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}

	cat, hits := bestCategory(in.Title + "\n" + in.Text)
	clauseType, modalHits := detectClauseType(in.Text)

	if cat == nil {
		conf := 0.2
		if modalHits > 0 {
			conf = 0.35
		}
		return Classification{
			ClauseType: clauseType,
			Category:   "general",
			RiskLevel:  model.RiskLow,
			Confidence: conf,
		}, nil
	}

	out := Classification{
		ClauseType: clauseType,
		Category:   cat.Name,
		RiskLevel:  model.RiskLow,
		Confidence: math.Min(0.95, 0.55+0.1*float64(hits)),
	}
	if eval, ok := evaluators[cat.Name]; ok {
		a := eval(in.Text)
		if a.risk != "" {
			out.RiskLevel = a.risk
		}
		out.RiskReason = a.reason
		out.Explanation = a.explanation
		out.SuggestedAlternative = a.alternative
	}
	return out, nil
}

// bestCategory picks the category with the most distinct keyword hits.
func bestCategory(text string) (*categoryInfo, int) {
	var (
		best     *categoryInfo
		bestHits int
	)
	for _, c := range categories {
		hits := 0
		for _, re := range c.keywords {
			if re.MatchString(text) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = c, hits
		}
	}
	return best, bestHits
}

var (
	prohibitionSignals = regexp.MustCompile(`(?i)\b(?:shall not|must not|may not|will not|cannot|can not|is prohibited|are prohibited|not permitted|in no event|agrees? not to|refrain from|restricted from|not be entitled)\b`)
	obligationSignals  = regexp.MustCompile(`(?i)\b(?:shall|must|agrees? to|is required to|are required to|undertakes? to|is responsible for|will)\b`)
	rightSignals       = regexp.MustCompile(`(?i)\b(?:may|is entitled to|are entitled to|has the right|have the right|reserves the right|at its (?:sole )?option|at its discretion)\b`)
	definitionSignals  = regexp.MustCompile(`(?i)(?:\bmeans\b|\bshall mean\b|\bis defined as\b|\bhereinafter (?:referred to as|called)\b|\brefers to\b)`)
)

// detectClauseType counts modal signals per clause type. Prohibition phrases
// are removed before counting obligations and rights so "shall not" is not
// also read as "shall". Ties follow model.ClauseTypePriority.
func detectClauseType(text string) (model.ClauseType, int) {
	counts := map[model.ClauseType]int{}
	counts[model.ClauseProhibition] = len(prohibitionSignals.FindAllStringIndex(text, -1))
	rest := prohibitionSignals.ReplaceAllString(text, " ")
	counts[model.ClauseDefinition] = len(definitionSignals.FindAllStringIndex(rest, -1))
	counts[model.ClauseObligation] = len(obligationSignals.FindAllStringIndex(rest, -1))
	counts[model.ClauseRight] = len(rightSignals.FindAllStringIndex(rest, -1))

	best, bestCount, total := model.ClauseGeneral, 0, 0
	for _, t := range model.ClauseTypePriority {
		n := counts[t]
		total += n
		if n > bestCount {
			best, bestCount = t, n
		}
	}
	return best, total
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "fifteen": 15,
	"eighteen": 18, "twenty": 20, "twenty-four": 24, "thirty": 30, "forty-five": 45,
	"sixty": 60, "ninety": 90,
}

var durationPattern = regexp.MustCompile(`(?i)\b(\d{1,4}|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|fifteen|eighteen|twenty-four|twenty|thirty|forty-five|sixty|ninety)\s*(?:\((\d{1,4})\)\s*)?(days?|weeks?|months?|years?)\b`)

// duration is a period found in clause text.
type duration struct {
	n          int
	unit       string // day, week, month, year
	days       int
	start, end int
}

func (d duration) months() int {
	switch d.unit {
	case "year":
		return d.n * 12
	case "month":
		return d.n
	default:
		return d.days / 30
	}
}

func (d duration) String() string {
	return plural(d.n, d.unit)
}

func findDurations(text string) []duration {
	var out []duration
	for _, loc := range durationPattern.FindAllStringSubmatchIndex(text, -1) {
		group := func(i int) string {
			if loc[2*i] < 0 {
				return ""
			}
			return text[loc[2*i]:loc[2*i+1]]
		}
		n := 0
		if g := group(2); g != "" {
			n, _ = strconv.Atoi(g)
		} else if v, err := strconv.Atoi(group(1)); err == nil {
			n = v
		} else {
			n = numberWords[strings.ToLower(group(1))]
		}
		if n == 0 {
			continue
		}
		unit := strings.TrimSuffix(strings.ToLower(group(3)), "s")
		out = append(out, duration{n: n, unit: unit, days: n * unitDays(unit), start: loc[0], end: loc[1]})
	}
	return out
}

const noticeWindow = 32

// noticePeriods returns the durations that read as notice periods: followed
// closely by "notice", "prior", "before" or "in advance", or preceded by
// "notice".
func noticePeriods(text string) []duration {
	var out []duration
	for _, d := range findDurations(text) {
		after := strings.ToLower(text[d.end:min(len(text), d.end+noticeWindow)])
		before := strings.ToLower(text[max(0, d.start-noticeWindow):d.start])
		if containsAny(after, "notice", "prior", "before", "in advance") || strings.Contains(before, "notice") {
			out = append(out, d)
		}
	}
	return out
}

func unitDays(unit string) int {
	switch unit {
	case "week":
		return 7
	case "month":
		return 30
	case "year":
		return 365
	default:
		return 1
	}
}

func maxDuration(ds []duration) duration {
	var best duration
	for _, d := range ds {
		if d.days > best.days {
			best = d
		}
	}
	return best
}

var sentenceBreak = regexp.MustCompile(`[.;]\s+|\n\s*\n`)

func sentencesWith(text string, words ...string) []string {
	var out []string
	for _, s := range sentenceBreak.Split(text, -1) {
		lower := strings.ToLower(s)
		for _, w := range words {
			if strings.Contains(lower, w) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func containsAny(text string, words ...string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

var interestPattern = regexp.MustCompile(`(?i)(\d{1,2}(?:\.\d{1,2})?)\s*(?:%|percent|per cent)\s*(?:\(\s*[a-z\s-]+\s*percent\s*\)\s*)?(per\s+(?:annum|year|month)|p\.\s?a\.|p\.\s?m\.|a\s+(?:year|month)|annually|monthly|per\s+day|daily)?`)

// annualRate returns the highest interest rate in text as a yearly
// percentage. Monthly and daily rates are converted.
func annualRate(text string) float64 {
	best := 0.0
	for _, m := range interestPattern.FindAllStringSubmatch(text, -1) {
		rate, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		unit := strings.ToLower(m[2])
		switch {
		case strings.Contains(unit, "month"), strings.HasPrefix(unit, "p. m"), strings.HasPrefix(unit, "p.m"):
			rate *= 12
		case strings.Contains(unit, "day"), strings.Contains(unit, "daily"):
			rate *= 365
		}
		best = math.Max(best, rate)
	}
	return best
}

func evalLatePayment(text string) assessment {
	rate := annualRate(text)
	if rate == 0 {
		if containsAny(text, "penalty", "liquidated damages") {
			return assessment{
				risk:        model.RiskMedium,
				reason:      "A late payment penalty applies without a stated rate, so the cost of a delay is open-ended.",
				explanation: "If you pay late, you will have to pay a penalty on top of the amount due.",
				alternative: "Ask for the penalty to be a fixed, reasonable interest rate with a short grace period.",
			}
		}
		return assessment{risk: model.RiskLow}
	}

	explanation := fmt.Sprintf("If you pay late, you will be charged %s%% interest a year on the overdue amount.", formatRate(rate))
	if containsAny(text, "costs of collection", "attorney", "legal fees") {
		explanation += " You will also have to pay their legal costs if they have to chase you for payment."
	}
	switch {
	case rate > 18:
		return assessment{
			risk:        model.RiskHigh,
			reason:      fmt.Sprintf("%s%% interest is significantly higher than standard commercial rates (typically 12-15%%). This could lead to substantial additional costs.", formatRate(rate)),
			explanation: explanation,
			alternative: "Negotiate for a more reasonable interest rate of 12-15% per annum, and include a grace period of 7-10 days before interest begins to accrue.",
		}
	case rate > 15:
		return assessment{
			risk:        model.RiskMedium,
			reason:      fmt.Sprintf("%s%% interest is above typical commercial rates of 12-15%%.", formatRate(rate)),
			explanation: explanation,
			alternative: "Ask for interest of 12-15% per annum with a grace period before it starts.",
		}
	}
	return assessment{risk: model.RiskLow, explanation: explanation}
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}

func evalAutoRenewal(text string) assessment {
	notice := maxDuration(noticePeriods(text))
	if notice.days == 0 {
		return assessment{risk: model.RiskLow}
	}
	explanation := fmt.Sprintf("The contract continues automatically unless a cancellation notice is sent %s before it ends. If you miss that window, you are locked in for another term.", notice.String())
	if notice.days >= 60 {
		return assessment{
			risk:        model.RiskMedium,
			reason:      fmt.Sprintf("Auto-renewal with a %s notice requirement can trap you in an unwanted contract if you miss the cancellation window.", notice.String()),
			explanation: explanation,
			alternative: "Request a reminder notification clause 120 days before renewal, or negotiate a shorter notice period of 30-45 days.",
		}
	}
	return assessment{risk: model.RiskLow, explanation: explanation}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

func evalTermination(text string) assessment {
	easyExit := containsAny(text, "without cause", "for convenience", "at any time", "for any reason")
	restricted := containsAny(text, " only ", "material breach", "opportunity to cure")
	notices := noticePeriods(text)
	unequalNotice := false
	for _, n := range notices {
		if n.days != notices[0].days {
			unequalNotice = true
		}
	}

	switch {
	case easyExit && restricted, unequalNotice && strings.Count(strings.ToLower(text), "terminat") >= 2:
		return assessment{
			risk:        model.RiskHigh,
			reason:      "This creates an unfair advantage where one party can exit easily while the other is bound to stricter termination conditions.",
			explanation: "One side can end this contract easily, while the other side can only cancel under stricter conditions or with a longer notice period.",
			alternative: "Request equal termination rights: both parties should be able to terminate with 30-60 days notice, or negotiate termination for convenience with a reasonable notice period for both parties.",
		}
	case containsAny(text, "immediately", "without notice", "forthwith", "without prior notice"):
		return assessment{
			risk:        model.RiskMedium,
			reason:      "The contract can be ended with no notice, leaving no time to make other arrangements.",
			explanation: "The contract can be ended straight away, without any warning period.",
			alternative: "Ask for at least 30 days written notice and a chance to fix any breach before termination.",
		}
	}
	return assessment{risk: model.RiskLow}
}

func evalLiabilityCap(text string) assessment {
	switch {
	case containsAny(text, "unlimited", "uncapped", "without limit", "no limit"):
		return assessment{
			risk:        model.RiskHigh,
			reason:      "Liability is uncapped, so losses under this contract have no ceiling.",
			explanation: "There is no upper limit on how much may have to be paid if something goes wrong.",
			alternative: "Cap total liability at a multiple of the annual fees, except for fraud and wilful misconduct.",
		}
	case containsAny(text, "shall not exceed", "limited to", "capped at", "in no event", "not be liable for any indirect", "consequential"):
		explanation := "The most that can be recovered if something goes wrong is limited, and indirect losses such as lost profits are excluded."
		if d := maxDuration(findDurations(text)); d.days > 0 && containsAny(text, "fees paid", "amounts paid", "fees payable") {
			explanation = fmt.Sprintf("If the other side causes you harm, the most they will pay is what you paid them in the last %s. Indirect losses such as lost profits are not covered.", d.String())
		}
		return assessment{
			risk:        model.RiskMedium,
			reason:      "Your potential losses could significantly exceed this liability cap, leaving you exposed to substantial unrecovered damages.",
			explanation: explanation,
			alternative: "Negotiate for higher liability caps (e.g., 2-3x annual fees) or carve-outs for gross negligence, data breaches, or IP infringement.",
		}
	}
	return assessment{risk: model.RiskLow}
}

func evalIndemnity(text string) assessment {
	if containsAny(text, "each party", "mutual", "both parties", "negligence", "misconduct", "breach") {
		return assessment{risk: model.RiskLow}
	}
	if containsAny(text, "any and all", "all claims", "any claims") {
		return assessment{
			risk:        model.RiskMedium,
			reason:      "The indemnity covers any and all claims, including ones you did not cause.",
			explanation: "One side must cover every claim and loss related to the contract, whoever is at fault.",
			alternative: "Limit the indemnity to losses caused by the indemnifying party's negligence, misconduct or breach.",
		}
	}
	return assessment{risk: model.RiskLow}
}

func evalRestriction(activity string) func(string) assessment {
	return func(text string) assessment {
		if containsAny(text, "perpetual", "indefinite", "in perpetuity", "at any time thereafter") {
			return assessment{
				risk:        model.RiskHigh,
				reason:      "The restriction has no end date and limits your ability to " + activity + " forever.",
				explanation: "You can never " + activity + ", even after the contract ends.",
				alternative: "Limit the restriction to 6-12 months after the contract ends.",
			}
		}
		d := maxDuration(findDurations(text))
		months := d.months()
		explanation := fmt.Sprintf("You cannot %s during the contract and for %s after it ends.", activity, d.String())
		switch {
		case months > 36:
			return assessment{
				risk:        model.RiskHigh,
				reason:      fmt.Sprintf("A %s restriction is excessive and may be unenforceable, but it still limits your ability to %s.", d.String(), activity),
				explanation: explanation,
				alternative: "Negotiate to reduce the restriction to 6-12 months and to a narrow scope.",
			}
		case months > 12:
			return assessment{
				risk:        model.RiskMedium,
				reason:      fmt.Sprintf("%s is a long restriction period that limits your ability to %s.", titleCase(d.String()), activity),
				explanation: explanation,
				alternative: "Negotiate to reduce the restriction period to 6-12 months, or limit it only to people directly involved in your project.",
			}
		}
		if d.days == 0 {
			return assessment{risk: model.RiskLow}
		}
		return assessment{risk: model.RiskLow, explanation: explanation}
	}
}

func evalIPAssignment(text string) assessment {
	if containsAny(text, "retain", "remain the property of", "remains the property of") && !containsAny(text, "property of the client", "property of client") {
		return assessment{
			risk:        model.RiskMedium,
			reason:      "The provider keeps ownership of the work, so you may need permission to use what you paid for.",
			explanation: "The person doing the work keeps ownership of what they create; you only get to use it.",
			alternative: "Ask for all deliverables and work product to become your exclusive property on full payment.",
		}
	}
	return assessment{
		risk:        model.RiskLow,
		explanation: "Everything created for you under this contract becomes your property once you have paid in full.",
	}
}

var foreignSeats = []string{"singapore", "london", "new york", "hong kong", "dubai", "paris", "geneva"}

func evalDisputeResolution(text string) assessment {
	if containsAny(text, foreignSeats...) {
		return assessment{
			risk:        model.RiskMedium,
			reason:      "Disputes must be resolved abroad, which is expensive and slow for a small business.",
			explanation: "Disagreements will be settled outside India.",
			alternative: "Move the seat of arbitration to an Indian city convenient for you.",
		}
	}
	if city := findCity(text); city != "" && containsAny(text, "arbitrat") {
		return assessment{
			risk:        model.RiskLow,
			explanation: fmt.Sprintf("If there's a disagreement, it will be settled by an arbitrator in %s (not in court). The decision will be final and legally binding.", city),
		}
	}
	return assessment{risk: model.RiskLow}
}

func evalGoverningLaw(text string) assessment {
	if containsAny(text, "laws of", "governed by") && !containsAny(text, "india") {
		return assessment{
			risk:        model.RiskMedium,
			reason:      "A foreign law governs the contract, making your rights harder and costlier to enforce.",
			explanation: "The contract is interpreted under the laws of another country.",
			alternative: "Ask for the contract to be governed by the laws of India.",
		}
	}
	return assessment{risk: model.RiskLow}
}

func evalConfidentiality(text string) assessment {
	if containsAny(text, "perpetu", "indefinite", "survive forever", "no time limit") {
		return assessment{
			risk:        model.RiskMedium,
			reason:      "The confidentiality duty never ends.",
			explanation: "You must keep shared information secret forever, even long after the contract ends.",
			alternative: "Limit confidentiality obligations to 2-3 years after the contract ends.",
		}
	}
	return assessment{risk: model.RiskLow}
}

func evalPaymentTerms(text string) assessment {
	if containsAny(text, "non-refundable", "non refundable") {
		return assessment{
			risk:        model.RiskMedium,
			reason:      "Payments are non-refundable even if the work is not delivered.",
			explanation: "Money you pay cannot be got back, even if the other side does not deliver.",
			alternative: "Make advances refundable if deliverables are not accepted, and tie payments to milestones.",
		}
	}
	return assessment{risk: model.RiskLow}
}

var (
	consentFree = regexp.MustCompile(`(?i)without\s+(?:[\w'’]+\s+){0,5}?consent`)
	// A negation before "without consent" makes the sentence a restriction:
	// "neither party may assign ... without the prior written consent".
	consentNegation = regexp.MustCompile(`(?i)\b(?:not|cannot|neither|nor|never|no)\b|\bexcept\s+with\b|\bunless\b`)
)

// consentWaived reports whether some sentence lets a party act without
// consent, as opposed to forbidding it to.
func consentWaived(text string, words ...string) bool {
	for _, s := range sentenceBreak.Split(text, -1) {
		if len(words) > 0 && !containsAny(s, words...) {
			continue
		}
		for _, loc := range consentFree.FindAllStringIndex(s, -1) {
			if !consentNegation.MatchString(s[:loc[0]]) {
				return true
			}
		}
	}
	return false
}

func evalAssignment(text string) assessment {
	if consentWaived(text) {
		return assessment{
			risk:        model.RiskMedium,
			reason:      "The contract can be transferred to another company without your consent.",
			explanation: "The other side can hand this contract over to someone else without asking you.",
			alternative: "Require prior written consent of both parties for any assignment.",
		}
	}
	return assessment{risk: model.RiskLow}
}

func evalWarranty(text string) assessment {
	if containsAny(text, "as is", "disclaim", "no warranty", "without warranty") {
		return assessment{
			risk:        model.RiskMedium,
			reason:      "All warranties are disclaimed, so you may have no remedy for defective work.",
			explanation: "The work or goods come with no promise about quality.",
			alternative: "Ask for a warranty period of at least 90 days during which defects are fixed free of charge.",
		}
	}
	return assessment{risk: model.RiskLow}
}

func evalDataProtection(text string) assessment {
	if consentWaived(text, "share", "transfer", "disclose", "sell") {
		return assessment{
			risk:        model.RiskMedium,
			reason:      "Personal data can be shared without consent.",
			explanation: "Personal data can be passed to others without asking the people it belongs to.",
			alternative: "Require consent for any sharing and compliance with the Digital Personal Data Protection Act, 2023.",
		}
	}
	return assessment{risk: model.RiskLow}
}
