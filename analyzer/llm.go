package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AnTengye/contractlens/model"
	"github.com/AnTengye/contractlens/pkg/anthropic"
)

const llmSystemPrompt = `You review contract clauses for Indian small-business owners.
Classify the clause you are given and reply with a single JSON object and nothing else:
{
  "clause_type": one of "obligation", "right", "prohibition", "definition", "general",
  "category": one of %s, or "general",
  "risk_level": one of "low", "medium", "high",
  "risk_reason": why the clause is risky for the business owner; required unless risk_level is "low",
  "explanation": one or two plain-language sentences a non-lawyer understands,
  "suggested_alternative": a safer redraft to negotiate, or "" when none is needed,
  "confidence": a number between 0 and 1
}
When two clause types fit equally, prefer them in this order: prohibition, obligation, right, definition, general.`

// LLMClassifier asks a Claude model to classify each clause.
type LLMClassifier struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	system    string
}

func NewLLMClassifier(client anthropic.Client, model string, maxTokens int64) *LLMClassifier {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = `"` + c.Name + `"`
	}
	return &LLMClassifier{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		system:    fmt.Sprintf(llmSystemPrompt, strings.Join(names, ", ")),
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, in ClauseInput) (Classification, error) {
	prompt := in.Text
	if in.Title != "" {
		prompt = "Title: " + in.Title + "\n\n" + in.Text
	}
	temperature := 0.0
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      c.system,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temperature,
	})
	if err != nil {
		if ctx.Err() != nil {
			return Classification{}, ctx.Err()
		}
		return Classification{}, model.ClassificationError("classifier request failed", err)
	}
	resp.Usage.LogUsage(ctx, c.model, "classify")

	out, err := parseClassification(resp.Text())
	if err != nil {
		return Classification{}, err
	}
	return out, nil
}

// parseClassification reads the JSON object out of a model reply, tolerating
// prose or code fences around it.
func parseClassification(reply string) (Classification, error) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return Classification{}, model.ClassificationError("classifier reply has no JSON object", nil)
	}

	var out Classification
	if err := json.Unmarshal([]byte(reply[start:end+1]), &out); err != nil {
		return Classification{}, model.ClassificationError("classifier reply is not valid JSON", err)
	}
	out.Category = strings.ToLower(strings.TrimSpace(out.Category))
	if err := out.validate(); err != nil {
		return Classification{}, err
	}
	return out, nil
}
