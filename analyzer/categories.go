package analyzer

import (
	"regexp"
	"strings"

	"github.com/AnTengye/contractlens/model"
)

// Category names produced by the rule classifier.
const (
	CategoryTermination       = "termination"
	CategoryAutoRenewal       = "auto_renewal"
	CategoryLiabilityCap      = "liability_cap"
	CategoryIndemnity         = "indemnity"
	CategoryLatePayment       = "late_payment"
	CategoryNonCompete        = "non_compete"
	CategoryNonSolicitation   = "non_solicitation"
	CategoryIPAssignment      = "ip_assignment"
	CategoryDisputeResolution = "dispute_resolution"
	CategoryGoverningLaw      = "governing_law"
	CategoryConfidentiality   = "confidentiality"
	CategoryPaymentTerms      = "payment_terms"
	CategoryDefinitions       = "definitions"
	CategoryForceMajeure      = "force_majeure"
	CategoryAssignment        = "assignment"
	CategoryWarranty          = "warranty"
	CategoryDataProtection    = "data_protection"
)

// categoryInfo holds the reader-facing text for a clause category.
type categoryInfo struct {
	Name        string
	Label       string
	Explanation string
	// Reason is used when a clause is risky but the classifier gave no reason.
	Reason    string
	Recommend string
	// Favorable, when set, describes a low-risk clause worth pointing out.
	Favorable string
	keywords  []*regexp.Regexp
}

func keywords(words ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		pattern := `(?i)\b` + regexp.QuoteMeta(strings.TrimSuffix(w, "*"))
		if !strings.HasSuffix(w, "*") {
			pattern += `\b`
		}
		out[i] = regexp.MustCompile(pattern)
	}
	return out
}

// categories is ordered: on equal keyword hits the earlier entry wins.
var categories = []*categoryInfo{
	{
		Name:        CategoryLatePayment,
		Label:       "Late Payment Penalty",
		Explanation: "If a payment is made late, extra interest or charges are added to the amount due.",
		Reason:      "Late payment charges can add significant cost if a payment slips.",
		Recommend:   "Negotiate interest of 12-15% per annum with a grace period of 7-10 days before it starts.",
		keywords:    keywords("late payment*", "overdue", "interest", "delayed payment*", "per annum", "costs of collection", "penalty"),
	},
	{
		Name:        CategoryAutoRenewal,
		Label:       "Auto-Renewal",
		Explanation: "The contract renews by itself at the end of each term unless someone gives notice in time.",
		Reason:      "Automatic renewal can lock you into another term if the notice window is missed.",
		Recommend:   "Ask for a renewal reminder well before the deadline, or a notice period of 30-45 days.",
		keywords:    keywords("automatically renew*", "auto-renew*", "successive", "renewal", "non-renewal", "renewed"),
	},
	{
		Name:        CategoryTermination,
		Label:       "Termination",
		Explanation: "This clause explains how and when each side can end the contract.",
		Reason:      "The termination terms make it easier for one side to exit than the other.",
		Recommend:   "Negotiate equal termination rights with the same notice period for both parties.",
		keywords:    keywords("terminat*", "without cause", "material breach", "opportunity to cure", "for convenience"),
	},
	{
		Name:        CategoryLiabilityCap,
		Label:       "Limitation of Liability",
		Explanation: "This clause limits how much one side has to pay if things go wrong.",
		Reason:      "Your potential losses could exceed the liability limit, leaving damages unrecovered.",
		Recommend:   "Negotiate a higher cap (2-3x annual fees) with carve-outs for gross negligence, data breaches and IP infringement.",
		keywords:    keywords("limitation of liability", "total liability", "aggregate liability", "liability", "shall not exceed", "consequential", "indirect", "liable", "unlimited"),
	},
	{
		Name:        CategoryIndemnity,
		Label:       "Indemnity",
		Explanation: "One side promises to cover the other's losses and legal costs in certain situations.",
		Reason:      "The indemnity is broad and could make you pay for losses you did not cause.",
		Recommend:   "Limit the indemnity to losses caused by your own negligence or breach, and make it mutual.",
		keywords:    keywords("indemnif*", "hold harmless", "defend"),
	},
	{
		Name:        CategoryNonSolicitation,
		Label:       "Non-Solicitation",
		Explanation: "You agree not to hire or approach the other side's staff or customers for a period of time.",
		Reason:      "The restriction on hiring or approaching people lasts a long time.",
		Recommend:   "Reduce the period to 6-12 months, or limit it to people directly involved in the work.",
		keywords:    keywords("solicit*", "non-solicitation", "engage any employee", "hire any employee", "employ any", "poach*"),
	},
	{
		Name:        CategoryNonCompete,
		Label:       "Non-Compete",
		Explanation: "You agree not to run or join a competing business for a period of time.",
		Reason:      "The non-compete restriction is long or wide and may block normal business.",
		Recommend:   "Limit the non-compete to 12 months or less and to a clearly defined business and area. Note that post-term non-competes are generally void under Section 27 of the Indian Contract Act.",
		keywords:    keywords("non-compete", "compete", "competing", "competitive business", "restraint of trade"),
	},
	{
		Name:        CategoryIPAssignment,
		Label:       "Intellectual Property",
		Explanation: "This clause decides who owns the work, ideas and materials created under the contract.",
		Reason:      "Ownership of the work product does not clearly pass to you.",
		Recommend:   "Make sure all deliverables and work product become your property on payment.",
		Favorable:   "Clear assignment of intellectual property to you provides good protection.",
		keywords:    keywords("intellectual property", "work product", "copyright*", "ownership", "deliverables", "proprietary", "patent*"),
	},
	{
		Name:        CategoryDisputeResolution,
		Label:       "Dispute Resolution",
		Explanation: "Disagreements will be settled in the way and place this clause describes.",
		Reason:      "The dispute process or venue could make resolving a disagreement costly for you.",
		Recommend:   "Name a neutral arbitration institution and a seat convenient for you.",
		Favorable:   "A defined dispute resolution process under Indian law suits a domestic contract.",
		keywords:    keywords("arbitrat*", "dispute*", "conciliation", "mediation", "tribunal"),
	},
	{
		Name:        CategoryGoverningLaw,
		Label:       "Governing Law",
		Explanation: "This clause says which country's laws apply to the contract.",
		Reason:      "A foreign governing law makes it harder and costlier to enforce your rights.",
		Recommend:   "Ask for the contract to be governed by the laws of India.",
		keywords:    keywords("governing law", "governed by", "laws of", "jurisdiction"),
	},
	{
		Name:        CategoryConfidentiality,
		Label:       "Confidentiality",
		Explanation: "Both sides must keep certain shared information secret.",
		Reason:      "The confidentiality duty never ends or is wider than needed.",
		Recommend:   "Limit confidentiality to a fixed period (for example 2-3 years) and clearly marked information.",
		keywords:    keywords("confidential*", "non-disclosure", "disclos*", "secrecy", "proprietary information"),
	},
	{
		Name:        CategoryPaymentTerms,
		Label:       "Payment Terms",
		Explanation: "This clause sets how much is paid, when and how.",
		Reason:      "The payment terms put cash at risk before the work is delivered.",
		Recommend:   "Tie payments to milestones and avoid large non-refundable advances.",
		keywords:    keywords("payment*", "invoice*", "fees", "consideration", "remuneration", "price", "advance"),
	},
	{
		Name:        CategoryDefinitions,
		Label:       "Definitions",
		Explanation: "This clause explains what key words in the contract mean.",
		Reason:      "A key definition is broad enough to change how other clauses apply.",
		Recommend:   "Check that defined terms are narrow and match what was agreed.",
		keywords:    keywords("means", "shall mean", "definitions", "defined as", "interpretation", "hereinafter"),
	},
	{
		Name:        CategoryForceMajeure,
		Label:       "Force Majeure",
		Explanation: "Neither side is blamed for delays caused by events outside their control, such as natural disasters.",
		Reason:      "The force majeure protection is one-sided.",
		Recommend:   "Make force majeure relief mutual and allow termination if it lasts too long.",
		keywords:    keywords("force majeure", "act of god", "acts of god", "beyond the reasonable control", "pandemic", "epidemic"),
	},
	{
		Name:        CategoryAssignment,
		Label:       "Assignment",
		Explanation: "This clause says whether the contract can be transferred to someone else.",
		Reason:      "The other side can transfer the contract without your consent.",
		Recommend:   "Require written consent from both parties for any assignment.",
		keywords:    keywords("assign*", "transfer this agreement", "novat*", "successors"),
	},
	{
		Name:        CategoryWarranty,
		Label:       "Warranty",
		Explanation: "This clause covers the promises made about the quality of the work or goods.",
		Reason:      "Warranties are disclaimed, so you may have no remedy for defective work.",
		Recommend:   "Ask for a warranty period during which defects are fixed free of charge.",
		keywords:    keywords("warrant*", "as is", "merchantability", "fitness for a particular purpose", "defect*"),
	},
	{
		Name:        CategoryDataProtection,
		Label:       "Data Protection",
		Explanation: "This clause covers how personal data is collected, used and protected.",
		Reason:      "Personal data may be shared or used without adequate safeguards.",
		Recommend:   "Require compliance with the Digital Personal Data Protection Act, 2023 and breach notification within 72 hours.",
		keywords:    keywords("personal data", "data protection", "privacy", "data breach", "dpdp"),
	},
}

var categoryIndex = func() map[string]*categoryInfo {
	m := make(map[string]*categoryInfo, len(categories))
	for _, c := range categories {
		m[c.Name] = c
	}
	return m
}()

// lookupCategory returns the category info, or a generic entry for names the
// rule table does not know (for example ones returned by an LLM).
func lookupCategory(name string) *categoryInfo {
	if c, ok := categoryIndex[name]; ok {
		return c
	}
	label := "General"
	if name != "" && name != "general" {
		label = titleCase(strings.ReplaceAll(name, "_", " "))
	}
	return &categoryInfo{
		Name:        name,
		Label:       label,
		Explanation: "This clause sets out general terms of the agreement.",
		Reason:      "This clause contains terms that may work against you.",
		Recommend:   "Have this clause reviewed by a lawyer before signing.",
	}
}

// CategoryLabel returns the display label for a category name.
func CategoryLabel(name string) string {
	return lookupCategory(name).Label
}

// defaultReason is the risk reason used when a classifier flags risk without
// saying why.
func defaultReason(category string, level model.RiskLevel) string {
	if level == model.RiskLow {
		return ""
	}
	return lookupCategory(category).Reason
}
