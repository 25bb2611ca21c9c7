package analyzer

import (
	"context"

	"github.com/AnTengye/contractlens/model"
)

// ClauseInput is what a classifier sees of one clause.
type ClauseInput struct {
	Index int
	Title string
	Text  string
}

// Classification is a classifier's verdict on one clause. Empty text fields
// are filled with category defaults by the analyzer.
type Classification struct {
	ClauseType           model.ClauseType `json:"clause_type"`
	Category             string           `json:"category"`
	RiskLevel            model.RiskLevel  `json:"risk_level"`
	RiskReason           string           `json:"risk_reason"`
	Explanation          string           `json:"explanation"`
	SuggestedAlternative string           `json:"suggested_alternative"`
	Confidence           float64          `json:"confidence"`
}

// Classifier assigns a clause type, category and risk level to a clause.
// Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, in ClauseInput) (Classification, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, in ClauseInput) (Classification, error)

func (f ClassifierFunc) Classify(ctx context.Context, in ClauseInput) (Classification, error) {
	return f(ctx, in)
}

func (c Classification) validate() error {
	if !c.ClauseType.Valid() {
		return model.ClassificationError("unknown clause type "+string(c.ClauseType), nil)
	}
	if !c.RiskLevel.Valid() {
		return model.ClassificationError("unknown risk level "+string(c.RiskLevel), nil)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return model.ClassificationError("confidence out of range", nil)
	}
	return nil
}
