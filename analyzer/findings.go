package analyzer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/AnTengye/contractlens/model"
)

// minClausesForGaps is the clause count below which missing-clause findings
// are not raised; short texts are usually excerpts, not whole contracts.
const minClausesForGaps = 3

// DeriveFindings turns analysed clauses into risk findings: one per risky
// clause, one per favourable clause worth pointing out, and cross-clause
// findings for repeated high risks and missing protections. Findings come
// back in clause order with cross-clause findings last.
func DeriveFindings(clauses []model.Clause) []model.RiskFinding {
	var findings []model.RiskFinding

	for _, c := range clauses {
		info := lookupCategory(c.Category)
		switch {
		case c.RiskLevel != model.RiskLow:
			rec := c.SuggestedAlternative
			if rec == "" {
				rec = info.Recommend
			}
			findings = append(findings, model.RiskFinding{
				ID:             uuid.NewString(),
				Category:       info.Label,
				Description:    c.RiskReason,
				Severity:       c.RiskLevel,
				ClauseRef:      c.ID,
				ClauseIndex:    c.Index,
				Recommendation: rec,
			})
		case info.Favorable != "":
			findings = append(findings, model.RiskFinding{
				ID:             uuid.NewString(),
				Category:       info.Label,
				Description:    info.Favorable,
				Severity:       model.RiskLow,
				ClauseRef:      c.ID,
				ClauseIndex:    c.Index,
				Recommendation: "No changes needed. This clause is favourable.",
			})
		}
	}

	return append(findings, crossClauseFindings(clauses)...)
}

func crossClauseFindings(clauses []model.Clause) []model.RiskFinding {
	var findings []model.RiskFinding

	highByCategory := map[string][]string{}
	var order []string
	present := map[string]bool{}
	for _, c := range clauses {
		present[c.Category] = true
		if c.RiskLevel != model.RiskHigh || c.Category == "" || c.Category == "general" {
			continue
		}
		if _, seen := highByCategory[c.Category]; !seen {
			order = append(order, c.Category)
		}
		highByCategory[c.Category] = append(highByCategory[c.Category], strconv.Itoa(c.Index+1))
	}

	for _, cat := range order {
		refs := highByCategory[cat]
		if len(refs) < 2 {
			continue
		}
		info := lookupCategory(cat)
		findings = append(findings, model.RiskFinding{
			ID:             uuid.NewString(),
			Category:       "Repeated " + info.Label + " Risk",
			Description:    fmt.Sprintf("%d clauses (%s) carry high %s risk, which compounds your exposure.", len(refs), joinClauseRefs(refs), strings.ToLower(info.Label)),
			Severity:       model.RiskHigh,
			ClauseIndex:    -1,
			Recommendation: info.Recommend,
		})
	}

	if len(clauses) < minClausesForGaps {
		return findings
	}
	if !present[CategoryDisputeResolution] {
		findings = append(findings, model.RiskFinding{
			ID:             uuid.NewString(),
			Category:       "Missing Dispute Resolution",
			Description:    "The contract does not say how disagreements will be resolved, which can lead to slow and costly court cases.",
			Severity:       model.RiskMedium,
			ClauseIndex:    -1,
			Recommendation: "Add an arbitration clause under the Arbitration and Conciliation Act, 1996 with a seat in your city.",
		})
	}
	if !present[CategoryLiabilityCap] {
		findings = append(findings, model.RiskFinding{
			ID:             uuid.NewString(),
			Category:       "Missing Liability Limitation",
			Description:    "No clause limits liability, so either side could face claims with no upper bound.",
			Severity:       model.RiskMedium,
			ClauseIndex:    -1,
			Recommendation: "Add a mutual limitation of liability, for example capped at the fees paid in the last 12 months.",
		})
	}
	return findings
}

func joinClauseRefs(refs []string) string {
	if len(refs) == 1 {
		return "clause " + refs[0]
	}
	return "clauses " + strings.Join(refs[:len(refs)-1], ", ") + " and " + refs[len(refs)-1]
}
