package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnTengye/contractlens/config"
	"github.com/AnTengye/contractlens/model"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestAggregator(mutate ...func(*config.ReportConfig)) *Aggregator {
	cfg := config.Default().Report
	for _, m := range mutate {
		m(&cfg)
	}
	return NewAggregator(cfg,
		WithClock(func() time.Time { return fixedNow }),
		WithIDFunc(func() string { return "result-1" }),
	)
}

// buildClauses makes contiguous clauses of 10 bytes each with the given risks.
func buildClauses(levels ...model.RiskLevel) []model.Clause {
	clauses := make([]model.Clause, len(levels))
	for i, lvl := range levels {
		c := model.Clause{
			ID:         "clause-" + string(rune('1'+i)),
			Index:      i,
			Title:      "Clause",
			Span:       model.Span{Start: i * 10, End: (i + 1) * 10},
			Pages:      []int{1},
			ClauseType: model.ClauseObligation,
			Category:   "general",
			RiskLevel:  lvl,
			Confidence: 0.8,
		}
		if lvl != model.RiskLow {
			c.RiskReason = "risky"
		}
		clauses[i] = c
	}
	return clauses
}

func finding(desc string, sev model.RiskLevel, idx int) model.RiskFinding {
	return model.RiskFinding{
		ID:             desc,
		Category:       "Cat " + desc,
		Description:    desc,
		Severity:       sev,
		ClauseIndex:    idx,
		Recommendation: "fix " + desc,
	}
}

func TestBuildScoresAndBands(t *testing.T) {
	agg := newTestAggregator()
	res, err := agg.Build(Input{
		FileName:     "msa.pdf",
		ContractType: model.ContractService,
		Language:     model.LanguageEnglish,
		Clauses:      buildClauses(model.RiskHigh, model.RiskLow, model.RiskHigh, model.RiskMedium, model.RiskLow),
	})
	require.NoError(t, err)

	assert.Equal(t, "result-1", res.ID)
	assert.Equal(t, fixedNow, res.CreatedAt)
	assert.Equal(t, 78, res.OverallRiskScore)
	assert.Equal(t, model.RiskHigh, res.RiskLevel)
	assert.Equal(t, config.DefaultScorePolicy(), res.ScorePolicy)
	assert.Equal(t, "msa.pdf", res.FileName)
	assert.NotNil(t, res.Entities)
	assert.NotNil(t, res.Risks)
	assert.Len(t, res.Clauses, 5)
}

func TestBuildDefaultsTypeAndLanguage(t *testing.T) {
	res, err := newTestAggregator().Build(Input{Clauses: buildClauses(model.RiskLow)})
	require.NoError(t, err)
	assert.Equal(t, model.ContractUnknown, res.ContractType)
	assert.Equal(t, model.LanguageEnglish, res.Language)
	assert.Equal(t, model.RiskLow, res.RiskLevel)
}

func TestBuildCopiesInput(t *testing.T) {
	clauses := buildClauses(model.RiskLow, model.RiskMedium)
	findings := []model.RiskFinding{finding("a", model.RiskMedium, 1)}

	res, err := newTestAggregator().Build(Input{Clauses: clauses, Findings: findings})
	require.NoError(t, err)

	clauses[0].Pages[0] = 99
	clauses[1].Title = "changed"
	findings[0].Description = "changed"

	assert.Equal(t, []int{1}, res.Clauses[0].Pages)
	assert.Equal(t, "Clause", res.Clauses[1].Title)
	assert.Equal(t, "a", res.Risks[0].Description)
}

func TestBuildRejectsInvalidClauses(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]model.Clause)
	}{
		{"gap between spans", func(c []model.Clause) { c[1].Span.Start = 12 }},
		{"overlap", func(c []model.Clause) { c[1].Span.Start = 8 }},
		{"not starting at zero", func(c []model.Clause) { c[0].Span.Start = 1 }},
		{"unknown risk", func(c []model.Clause) { c[0].RiskLevel = "severe" }},
		{"unknown clause type", func(c []model.Clause) { c[1].ClauseType = "promise" }},
		{"risk without reason", func(c []model.Clause) { c[1].RiskReason = " " }},
		{"bad confidence", func(c []model.Clause) { c[0].Confidence = 1.5 }},
		{"index out of order", func(c []model.Clause) { c[1].Index = 5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clauses := buildClauses(model.RiskLow, model.RiskHigh)
			tt.mutate(clauses)
			_, err := newTestAggregator().Build(Input{Clauses: clauses})
			require.Error(t, err)
			assert.True(t, model.IsKind(err, model.KindAggregation), "got %v", err)
		})
	}
}

func TestBuildRejectsEmptyAndBadFindings(t *testing.T) {
	_, err := newTestAggregator().Build(Input{})
	assert.True(t, model.IsKind(err, model.KindAggregation))

	_, err = newTestAggregator().Build(Input{
		Clauses:  buildClauses(model.RiskLow),
		Findings: []model.RiskFinding{finding("x", model.RiskLow, 3)},
	})
	assert.True(t, model.IsKind(err, model.KindAggregation))

	_, err = newTestAggregator().Build(Input{
		Clauses:  buildClauses(model.RiskLow),
		Findings: []model.RiskFinding{finding("x", "", 0)},
	})
	assert.True(t, model.IsKind(err, model.KindAggregation))
}

func TestSortFindings(t *testing.T) {
	in := []model.RiskFinding{
		finding("low-0", model.RiskLow, 0),
		finding("cross-high", model.RiskHigh, -1),
		finding("med-3", model.RiskMedium, 3),
		finding("high-4", model.RiskHigh, 4),
		finding("med-1", model.RiskMedium, 1),
		finding("high-2", model.RiskHigh, 2),
		finding("cross-med", model.RiskMedium, -1),
		finding("high-2b", model.RiskHigh, 2),
	}

	got := SortFindings(in, 5)

	var order []string
	for _, f := range got {
		order = append(order, f.Description)
	}
	assert.Equal(t, []string{"high-2", "high-2b", "high-4", "cross-high", "med-1", "med-3", "cross-med", "low-0"}, order)
	assert.Equal(t, "low-0", in[0].Description, "input untouched")
}

func TestKeyFindingsAndRecommendationsAreCapped(t *testing.T) {
	agg := newTestAggregator(func(c *config.ReportConfig) {
		c.MaxKeyFindings = 3
		c.MaxRecommendations = 2
	})
	res, err := agg.Build(Input{
		Clauses: buildClauses(model.RiskHigh, model.RiskMedium, model.RiskLow, model.RiskHigh),
		Findings: []model.RiskFinding{
			finding("a", model.RiskHigh, 0),
			finding("b", model.RiskMedium, 1),
			finding("c", model.RiskLow, 2),
			finding("d", model.RiskHigh, 3),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "d", "b"}, res.KeyFindings)
	assert.Equal(t, []string{"fix a", "fix d"}, res.Recommendations)
}

func TestRecommendationsSkipLowFindings(t *testing.T) {
	res, err := newTestAggregator().Build(Input{
		Clauses: buildClauses(model.RiskMedium, model.RiskLow),
		Findings: []model.RiskFinding{
			finding("fav", model.RiskLow, 1),
			finding("m", model.RiskMedium, 0),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fix m"}, res.Recommendations)
	assert.Equal(t, []string{"m", "fav"}, res.KeyFindings)
}

func TestRecommendationsKeepEqualCategoryHighs(t *testing.T) {
	a := finding("first", model.RiskHigh, 0)
	b := finding("second", model.RiskHigh, 1)
	a.Category, b.Category = "Termination", "Termination"

	res, err := newTestAggregator().Build(Input{
		Clauses:  buildClauses(model.RiskHigh, model.RiskHigh),
		Findings: []model.RiskFinding{b, a},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fix first", "fix second"}, res.Recommendations)
}

func TestExecutiveSummary(t *testing.T) {
	high := finding("late", model.RiskHigh, 0)
	high.Category = "Late Payment Penalty"

	res, err := newTestAggregator().Build(Input{
		ContractType: model.ContractService,
		Clauses:      buildClauses(model.RiskHigh, model.RiskMedium, model.RiskLow),
		Findings:     []model.RiskFinding{high},
		Entities: []model.ExtractedEntity{
			{Type: model.EntityJurisdiction, Value: "India", Confidence: 0.85},
			{Type: model.EntityJurisdiction, Value: "Mumbai", Confidence: 0.9},
		},
	})
	require.NoError(t, err)

	s := res.ExecutiveSummary
	assert.True(t, strings.HasPrefix(s, "This service contract contains 3 clauses with an overall risk score of 58/100 (medium risk)."), s)
	assert.Contains(t, s, "identified 1 high-priority issue requiring immediate attention, including late payment penalty.")
	assert.Contains(t, s, "1 clause requires review before signing.")
	assert.Contains(t, s, "Disputes are to be resolved in Mumbai.")
}
