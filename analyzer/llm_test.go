package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnTengye/contractlens/model"
	"github.com/AnTengye/contractlens/pkg/anthropic"
)

type fakeAnthropic struct {
	reply string
	err   error
	req   anthropic.MessageRequest
}

func (f *fakeAnthropic) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: f.reply}}}, nil
}

func TestLLMClassifier(t *testing.T) {
	client := &fakeAnthropic{reply: "Here you go:\n```json\n" + `{"clause_type":"obligation","category":" Late_Payment ","risk_level":"high","risk_reason":"24% is steep","explanation":"Pay on time or pay 24%.","suggested_alternative":"Ask for 12%.","confidence":0.85}` + "\n```"}
	c := NewLLMClassifier(client, "claude-haiku-4-5-20251001", 512)

	got, err := c.Classify(context.Background(), ClauseInput{Title: "Late Payment", Text: "Interest at 24% per annum."})
	require.NoError(t, err)
	assert.Equal(t, model.ClauseObligation, got.ClauseType)
	assert.Equal(t, CategoryLatePayment, got.Category)
	assert.Equal(t, model.RiskHigh, got.RiskLevel)
	assert.Equal(t, "24% is steep", got.RiskReason)
	assert.Equal(t, 0.85, got.Confidence)

	assert.Equal(t, "claude-haiku-4-5-20251001", client.req.Model)
	assert.Equal(t, int64(512), client.req.MaxTokens)
	assert.Contains(t, client.req.System, `"late_payment"`)
	require.Len(t, client.req.Messages, 1)
	assert.Contains(t, client.req.Messages[0].Content, "Title: Late Payment")
}

func TestLLMClassifierErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeAnthropic
	}{
		{"request failed", &fakeAnthropic{err: errors.New("overloaded")}},
		{"no json", &fakeAnthropic{reply: "I cannot classify this."}},
		{"bad json", &fakeAnthropic{reply: `{"clause_type": obligation}`}},
		{"invalid risk", &fakeAnthropic{reply: `{"clause_type":"right","risk_level":"severe","confidence":0.9}`}},
		{"confidence out of range", &fakeAnthropic{reply: `{"clause_type":"right","risk_level":"low","confidence":7}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLLMClassifier(tt.client, "m", 16).Classify(context.Background(), ClauseInput{Text: "x"})
			require.Error(t, err)
			assert.True(t, model.IsKind(err, model.KindClassification), "got %v", err)
		})
	}
}
