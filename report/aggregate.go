package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AnTengye/contractlens/config"
	"github.com/AnTengye/contractlens/model"
)

// Input is everything the analysis stage produced for one document.
type Input struct {
	FileName     string
	ContractType model.ContractType
	Language     model.Language
	Clauses      []model.Clause
	Findings     []model.RiskFinding
	Entities     []model.ExtractedEntity
}

// Aggregator builds immutable AnalysisResults.
type Aggregator struct {
	cfg   config.ReportConfig
	now   func() time.Time
	newID func() string
}

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithIDFunc replaces the result ID generator.
func WithIDFunc(fn func() string) Option {
	return func(a *Aggregator) { a.newID = fn }
}

func NewAggregator(cfg config.ReportConfig, opts ...Option) *Aggregator {
	a := &Aggregator{cfg: cfg, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Policy returns the score policy results are built with.
func (a *Aggregator) Policy() model.ScorePolicy {
	return a.cfg.Score
}

// Build scores the clauses, orders the findings and assembles the result.
// Inputs are copied; the caller keeps ownership of its slices.
func (a *Aggregator) Build(in Input) (*model.AnalysisResult, error) {
	if err := validateClauses(in.Clauses); err != nil {
		return nil, err
	}
	if err := validateFindings(in.Findings, len(in.Clauses)); err != nil {
		return nil, err
	}

	clauses := make([]model.Clause, len(in.Clauses))
	for i, c := range in.Clauses {
		c.Pages = slices.Clone(c.Pages)
		clauses[i] = c
	}
	findings := SortFindings(in.Findings, len(clauses))

	dist := Distribution(clauses)
	score := Score(dist, a.cfg.Score)
	band := Band(score)

	entities := slices.Clone(in.Entities)
	if entities == nil {
		entities = []model.ExtractedEntity{}
	}
	contractType := in.ContractType
	if contractType == "" {
		contractType = model.ContractUnknown
	}
	language := in.Language
	if language == "" {
		language = model.LanguageEnglish
	}

	return &model.AnalysisResult{
		ID:               a.newID(),
		FileName:         in.FileName,
		CreatedAt:        a.now().UTC(),
		ContractType:     contractType,
		Language:         language,
		OverallRiskScore: score,
		RiskLevel:        band,
		ScorePolicy:      a.cfg.Score,
		Entities:         entities,
		Clauses:          clauses,
		Risks:            findings,
		ExecutiveSummary: summarize(contractType, dist, score, band, findings, entities),
		KeyFindings:      keyFindings(findings, a.cfg.MaxKeyFindings),
		Recommendations:  recommendations(findings, a.cfg.MaxRecommendations),
	}, nil
}

func validateClauses(clauses []model.Clause) error {
	if len(clauses) == 0 {
		return model.AggregationError("no clauses to aggregate")
	}
	end := 0
	for i, c := range clauses {
		if c.Index != i {
			return model.AggregationError(fmt.Sprintf("clause %d has index %d", i, c.Index))
		}
		if c.Span.Start != end || c.Span.End < c.Span.Start {
			return model.AggregationError(fmt.Sprintf("clause %d span [%d,%d) does not continue at %d", i, c.Span.Start, c.Span.End, end))
		}
		end = c.Span.End
		if !c.RiskLevel.Valid() {
			return model.AggregationError(fmt.Sprintf("clause %d has unknown risk level %q", i, c.RiskLevel))
		}
		if !c.ClauseType.Valid() {
			return model.AggregationError(fmt.Sprintf("clause %d has unknown clause type %q", i, c.ClauseType))
		}
		if c.RiskLevel != model.RiskLow && strings.TrimSpace(c.RiskReason) == "" {
			return model.AggregationError(fmt.Sprintf("clause %d is %s risk without a reason", i, c.RiskLevel))
		}
		if c.Confidence < 0 || c.Confidence > 1 {
			return model.AggregationError(fmt.Sprintf("clause %d confidence %v outside [0,1]", i, c.Confidence))
		}
	}
	return nil
}

func validateFindings(findings []model.RiskFinding, clauses int) error {
	for i, f := range findings {
		if !f.Severity.Valid() {
			return model.AggregationError(fmt.Sprintf("finding %d has unknown severity %q", i, f.Severity))
		}
		if f.ClauseIndex < -1 || f.ClauseIndex >= clauses {
			return model.AggregationError(fmt.Sprintf("finding %d references clause %d of %d", i, f.ClauseIndex, clauses))
		}
	}
	return nil
}

// SortFindings returns a copy of findings ordered by descending severity, then
// clause order. Cross-clause findings (ClauseIndex -1) sort after clause
// findings of the same severity. Ties keep their input order.
func SortFindings(findings []model.RiskFinding, clauses int) []model.RiskFinding {
	out := slices.Clone(findings)
	if out == nil {
		return []model.RiskFinding{}
	}
	pos := func(f model.RiskFinding) int {
		if f.ClauseIndex < 0 {
			return clauses
		}
		return f.ClauseIndex
	}
	slices.SortStableFunc(out, func(a, b model.RiskFinding) int {
		if d := b.Severity.Rank() - a.Severity.Rank(); d != 0 {
			return d
		}
		return pos(a) - pos(b)
	})
	return out
}

func keyFindings(sorted []model.RiskFinding, limit int) []string {
	out := []string{}
	for _, f := range sorted {
		if len(out) == limit {
			break
		}
		out = append(out, f.Description)
	}
	return out
}

// recommendations maps findings of medium severity or worse to their
// recommendation text, one per finding, most severe first.
func recommendations(sorted []model.RiskFinding, limit int) []string {
	out := []string{}
	for _, f := range sorted {
		if len(out) == limit {
			break
		}
		if !f.Severity.AtLeast(model.RiskMedium) || f.Recommendation == "" {
			continue
		}
		out = append(out, f.Recommendation)
	}
	return out
}

func summarize(ct model.ContractType, dist RiskDistribution, score int, band model.RiskLevel, sorted []model.RiskFinding, entities []model.ExtractedEntity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This %s contract contains %d %s with an overall risk score of %d/100 (%s risk).",
		ct, dist.Total(), plural(dist.Total(), "clause"), score, band)

	fmt.Fprintf(&b, " Our analysis identified %d high-priority %s requiring immediate attention", dist.High, plural(dist.High, "issue"))
	if topics := highTopics(sorted); len(topics) > 0 {
		b.WriteString(", including " + joinAnd(topics))
	}
	b.WriteString(".")

	switch dist.Medium {
	case 0:
		b.WriteString(" No other clauses need review before signing.")
	case 1:
		b.WriteString(" 1 clause requires review before signing.")
	default:
		fmt.Fprintf(&b, " %d clauses require review before signing.", dist.Medium)
	}

	for _, e := range entities {
		if e.Type == model.EntityJurisdiction && e.Value != "India" {
			fmt.Fprintf(&b, " Disputes are to be resolved in %s.", e.Value)
			break
		}
	}
	return b.String()
}

// highTopics lists the distinct categories of high-severity clause findings.
func highTopics(sorted []model.RiskFinding) []string {
	var topics []string
	for _, f := range sorted {
		if f.Severity != model.RiskHigh {
			break
		}
		if f.ClauseIndex < 0 || f.Category == "" {
			continue
		}
		topic := strings.ToLower(f.Category)
		if !slices.Contains(topics, topic) {
			topics = append(topics, topic)
		}
	}
	return topics
}

func joinAnd(items []string) string {
	if len(items) == 1 {
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
