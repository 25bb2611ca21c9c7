// Package analyzer splits extracted contract text into clauses, classifies
// and explains each clause, and extracts entities and risk findings.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/AnTengye/contractlens/config"
	"github.com/AnTengye/contractlens/model"
	"github.com/AnTengye/contractlens/pkg/logger"
)

const defaultExplanation = "This clause sets out general terms of the agreement. No specific risk was detected."

// Analysis is everything the analyzer learns about one document.
type Analysis struct {
	Clauses      []model.Clause
	Findings     []model.RiskFinding
	Entities     []model.ExtractedEntity
	ContractType model.ContractType
	Language     model.Language
}

// ProgressFunc is told how many clauses are done out of the total.
type ProgressFunc func(done, total int)

// FlagPolicy decides which clauses are flagged for attention.
type FlagPolicy struct {
	MinSeverity model.RiskLevel
	AlwaysAt    model.RiskLevel
	Watch       []string
}

func NewFlagPolicy(cfg config.FlagConfig) FlagPolicy {
	p := FlagPolicy{MinSeverity: cfg.MinSeverity, AlwaysAt: cfg.AlwaysAt, Watch: cfg.WatchCategories}
	// Low-risk clauses are never flagged.
	if !p.MinSeverity.AtLeast(model.RiskMedium) {
		p.MinSeverity = model.RiskMedium
	}
	if !p.AlwaysAt.AtLeast(p.MinSeverity) {
		p.AlwaysAt = p.MinSeverity
	}
	return p
}

// Apply returns whether c is flagged and why.
func (p FlagPolicy) Apply(c model.Clause) (bool, string) {
	if c.RiskLevel == model.RiskLow || !c.RiskLevel.Valid() {
		return false, ""
	}
	label := strings.ToLower(CategoryLabel(c.Category))
	if c.RiskLevel.AtLeast(p.AlwaysAt) {
		return true, fmt.Sprintf("%s risk %s clause needs attention before signing", titleCase(string(c.RiskLevel)), label)
	}
	if c.RiskLevel.AtLeast(p.MinSeverity) && slices.Contains(p.Watch, c.Category) {
		return true, fmt.Sprintf("%s is on the watch list and carries %s risk", CategoryLabel(c.Category), c.RiskLevel)
	}
	return false, ""
}

// Analyzer runs segmentation, classification and extraction over one text.
// It holds no per-document state and may be shared.
type Analyzer struct {
	classifier Classifier
	floor      float64
	flags      FlagPolicy
}

func New(classifier Classifier, cfg config.AnalyzerConfig) *Analyzer {
	return &Analyzer{
		classifier: classifier,
		floor:      cfg.ConfidenceFloor,
		flags:      NewFlagPolicy(cfg.Flag),
	}
}

// Analyze segments text into clauses and assesses each one. A clause the
// classifier cannot handle falls back to general/low; only cancellation
// stops the analysis.
func (a *Analyzer) Analyze(ctx context.Context, text *model.ExtractedText, fileName string, progress ProgressFunc) (*Analysis, error) {
	full := text.String()
	spans := Segment(full)

	clauses := make([]model.Clause, 0, len(spans))
	for i, span := range spans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body := full[span.Start:span.End]
		clause, err := a.assess(ctx, i, body)
		if err != nil {
			return nil, err
		}
		clause.Span = span
		clause.Pages = text.PagesFor(span)
		clauses = append(clauses, clause)
		if progress != nil {
			progress(i+1, len(spans))
		}
	}

	return &Analysis{
		Clauses:      clauses,
		Findings:     DeriveFindings(clauses),
		Entities:     ExtractEntities(full),
		ContractType: DetectContractType(full, fileName),
		Language:     DetectLanguage(full),
	}, nil
}

func (a *Analyzer) assess(ctx context.Context, index int, body string) (model.Clause, error) {
	heading := headingTitle(body)
	in := ClauseInput{Index: index, Title: heading, Text: strings.TrimSpace(body)}

	cls, err := a.classifier.Classify(ctx, in)
	if err == nil {
		err = cls.validate()
	}
	if err == nil && cls.Confidence < a.floor {
		err = model.ClassificationError(fmt.Sprintf("confidence %.2f below floor %.2f", cls.Confidence, a.floor), nil)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return model.Clause{}, err
		}
		logger.Debug(ctx, "clause classification fell back to default", "clause", index+1, "error", err)
		cls = Classification{
			ClauseType: model.ClauseGeneral,
			Category:   "general",
			RiskLevel:  model.RiskLow,
			Confidence: cls.Confidence,
		}
	}

	info := lookupCategory(cls.Category)
	c := model.Clause{
		ID:                    fmt.Sprintf("clause-%d", index+1),
		Index:                 index,
		Title:                 clauseTitle(heading, cls.Category, index),
		OriginalText:          in.Text,
		ClauseType:            cls.ClauseType,
		Category:              cls.Category,
		RiskLevel:             cls.RiskLevel,
		RiskReason:            cls.RiskReason,
		SimplifiedExplanation: cls.Explanation,
		SuggestedAlternative:  cls.SuggestedAlternative,
		Confidence:            clamp01(cls.Confidence),
	}
	if c.SimplifiedExplanation == "" {
		c.SimplifiedExplanation = info.Explanation
		if c.Category == "general" || c.Category == "" {
			c.SimplifiedExplanation = defaultExplanation
		}
	}
	if c.RiskLevel == model.RiskLow {
		c.RiskReason = ""
	} else if c.RiskReason == "" {
		c.RiskReason = defaultReason(c.Category, c.RiskLevel)
	}
	c.Flagged, c.FlagReason = a.flags.Apply(c)
	return c, nil
}

func clauseTitle(heading, category string, index int) string {
	if heading != "" {
		return heading
	}
	if category != "" && category != "general" {
		return CategoryLabel(category) + " Clause"
	}
	return fmt.Sprintf("Clause %d", index+1)
}
