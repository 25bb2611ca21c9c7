package model

import (
	"time"
)

// Status is the lifecycle state of a submitted document.
type Status string

// Analysis status constants
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// RiskLevel grades a clause, finding or whole contract.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Rank orders risk levels: low < medium < high. Unknown levels rank below low.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is one of the declared levels.
func (r RiskLevel) Valid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r is as severe as other.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.Rank() >= other.Rank()
}

// ClauseType is the legal role a clause plays.
type ClauseType string

const (
	ClauseObligation  ClauseType = "obligation"
	ClauseRight       ClauseType = "right"
	ClauseProhibition ClauseType = "prohibition"
	ClauseDefinition  ClauseType = "definition"
	ClauseGeneral     ClauseType = "general"
)

// ClauseTypePriority is the fixed tie-break order used when two clause types
// score equally. Earlier entries win.
var ClauseTypePriority = []ClauseType{
	ClauseProhibition,
	ClauseObligation,
	ClauseRight,
	ClauseDefinition,
	ClauseGeneral,
}

// Valid reports whether t is one of the declared clause types.
func (t ClauseType) Valid() bool {
	for _, p := range ClauseTypePriority {
		if p == t {
			return true
		}
	}
	return false
}

// ContractType is the detected kind of agreement.
type ContractType string

const (
	ContractEmployment  ContractType = "employment"
	ContractVendor      ContractType = "vendor"
	ContractLease       ContractType = "lease"
	ContractPartnership ContractType = "partnership"
	ContractService     ContractType = "service"
	ContractNDA         ContractType = "nda"
	ContractUnknown     ContractType = "unknown"
)

// Language is the detected language of the contract text.
type Language string

const (
	LanguageEnglish Language = "english"
	LanguageHindi   Language = "hindi"
	LanguageMixed   Language = "mixed"
)

// EntityType classifies an extracted entity.
type EntityType string

const (
	EntityParty        EntityType = "party"
	EntityDate         EntityType = "date"
	EntityJurisdiction EntityType = "jurisdiction"
	EntityAmount       EntityType = "amount"
	EntityLiability    EntityType = "liability"
	EntityDuration     EntityType = "duration"
)

// Span is a half-open byte range [Start, End) into extracted text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Clause is one contractual provision and its assessment.
type Clause struct {
	ID                    string     `json:"id"`
	Index                 int        `json:"index"`
	Title                 string     `json:"title"`
	OriginalText          string     `json:"original_text"`
	Span                  Span       `json:"span"`
	Pages                 []int      `json:"pages,omitempty"`
	ClauseType            ClauseType `json:"clause_type"`
	Category              string     `json:"category,omitempty"`
	RiskLevel             RiskLevel  `json:"risk_level"`
	RiskReason            string     `json:"risk_reason,omitempty"`
	SimplifiedExplanation string     `json:"simplified_explanation"`
	SuggestedAlternative  string     `json:"suggested_alternative,omitempty"`
	Flagged               bool       `json:"flagged"`
	FlagReason            string     `json:"flag_reason,omitempty"`
	Confidence            float64    `json:"confidence"`
}

// RiskFinding is an issue that references one clause or spans several.
type RiskFinding struct {
	ID             string    `json:"id"`
	Category       string    `json:"category"`
	Description    string    `json:"description"`
	Severity       RiskLevel `json:"severity"`
	ClauseRef      string    `json:"clause_ref,omitempty"`
	ClauseIndex    int       `json:"clause_index"` // -1 for cross-clause findings
	Recommendation string    `json:"recommendation"`
}

// ExtractedEntity is a structured fact found in the contract text.
type ExtractedEntity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
}

// ScorePolicy records the formula inputs used to compute the overall score:
// score = clamp(round(Baseline + HighWeight*high + MediumWeight*medium + LowWeight*low), 0, 100).
type ScorePolicy struct {
	Baseline     float64 `json:"baseline" yaml:"baseline"`
	HighWeight   float64 `json:"high_weight" yaml:"high_weight"`
	MediumWeight float64 `json:"medium_weight" yaml:"medium_weight"`
	LowWeight    float64 `json:"low_weight" yaml:"low_weight"`
}

// AnalysisResult is the complete, self-describing outcome of one analysis.
// It is never mutated after it is built.
type AnalysisResult struct {
	ID               string            `json:"id"`
	FileName         string            `json:"file_name"`
	CreatedAt        time.Time         `json:"created_at"`
	ContractType     ContractType      `json:"contract_type"`
	Language         Language          `json:"language"`
	OverallRiskScore int               `json:"overall_risk_score"`
	RiskLevel        RiskLevel         `json:"risk_level"`
	ScorePolicy      ScorePolicy       `json:"score_policy"`
	Entities         []ExtractedEntity `json:"entities"`
	Clauses          []Clause          `json:"clauses"`
	Risks            []RiskFinding     `json:"risks"`
	ExecutiveSummary string            `json:"executive_summary"`
	KeyFindings      []string          `json:"key_findings"`
	Recommendations  []string          `json:"recommendations"`
}

// Clone returns a deep copy so callers cannot reach shared slices.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Entities = append([]ExtractedEntity(nil), r.Entities...)
	out.Risks = append([]RiskFinding(nil), r.Risks...)
	out.KeyFindings = append([]string(nil), r.KeyFindings...)
	out.Recommendations = append([]string(nil), r.Recommendations...)
	out.Clauses = make([]Clause, len(r.Clauses))
	for i, c := range r.Clauses {
		c.Pages = append([]int(nil), c.Pages...)
		out.Clauses[i] = c
	}
	return &out
}

// CountByRisk tallies clauses per risk level.
func (r *AnalysisResult) CountByRisk(level RiskLevel) int {
	n := 0
	for _, c := range r.Clauses {
		if c.RiskLevel == level {
			n++
		}
	}
	return n
}

// AnalysisRecord is the externally visible state of a submitted document.
type AnalysisRecord struct {
	ID          string          `json:"id"`
	Tenant      string          `json:"tenant"`
	FileName    string          `json:"file_name"`
	Format      Format          `json:"format"`
	Size        int             `json:"size"`
	DocumentKey string          `json:"document_key"`
	Status      Status          `json:"status"`
	Progress    int             `json:"progress"`
	ErrorKind   ErrorKind       `json:"error_kind,omitempty"`
	ErrorMsg    string          `json:"error_msg,omitempty"`
	Result      *AnalysisResult `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
