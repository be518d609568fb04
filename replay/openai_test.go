package replay

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJudge() *OpenAIJudge {
	return &OpenAIJudge{
		cfg:    GatewayConfig{JudgeModel: "gpt-4o-mini"},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestParseVerdict_WellFormed(t *testing.T) {
	raw := "```json\n" + `{
		"dimension_scores": {"accuracy": 90, "helpfulness": 85, "clarity": 80, "completeness": 75},
		"overall_score": 83,
		"reasoning": "accurate and clear",
		"confidence": 0.9
	}` + "\n```"

	score := testJudge().parseVerdict(raw)
	assert.Equal(t, 83.0, score.OverallScore)
	assert.Equal(t, 90.0, score.Dimensions["accuracy"])
	assert.Equal(t, "accurate and clear", score.Reasoning)
	assert.Equal(t, 0.9, score.Confidence)
	assert.Equal(t, "gpt-4o-mini", score.EvaluatorModel)
}

func TestParseVerdict_ClampsOutOfRange(t *testing.T) {
	score := testJudge().parseVerdict(`{
		"dimension_scores": {"accuracy": 140, "helpfulness": -5, "clarity": 50, "completeness": 50},
		"overall_score": 120,
		"confidence": 3.0
	}`)
	assert.Equal(t, 100.0, score.OverallScore)
	assert.Equal(t, 100.0, score.Dimensions["accuracy"])
	assert.Equal(t, 0.0, score.Dimensions["helpfulness"])
	assert.Equal(t, 1.0, score.Confidence)
}

func TestParseVerdict_MalformedIsNeutral(t *testing.T) {
	for _, raw := range []string{
		"The response deserves about an 8/10.",
		"",
		`{"overall_score": "eighty"}`,
	} {
		score := testJudge().parseVerdict(raw)
		require.NotNil(t, score)
		assert.Equal(t, 50.0, score.OverallScore, "raw: %q", raw)
		assert.Equal(t, 0.1, score.Confidence)
	}
}

func TestBuildJudgePrompt_EmbedsSchemaAndCriteria(t *testing.T) {
	prompt := buildJudgePrompt("What is 2+2?", "4")
	assert.Contains(t, prompt, "What is 2+2?")
	assert.Contains(t, prompt, "overall_score")
	assert.Contains(t, prompt, "dimension_scores")
	for name := range Criteria {
		assert.Contains(t, prompt, name)
	}
}

func TestLooksLikeRefusal(t *testing.T) {
	assert.True(t, looksLikeRefusal("I'm sorry, but I can't help with that request."))
	assert.True(t, looksLikeRefusal("As an AI, I cannot provide medical advice."))
	assert.False(t, looksLikeRefusal("Sure, here is the function you asked for."))
	assert.False(t, looksLikeRefusal(""))

	// A refusal phrase deep in a long answer is not a refusal.
	long := strings.Repeat("Here is a thorough explanation. ", 20) + "I am unable to say more."
	assert.False(t, looksLikeRefusal(long))
}

func TestProviderFromSlug(t *testing.T) {
	assert.Equal(t, "openai", providerFromSlug("@openai/gpt-4o"))
	assert.Equal(t, "bedrock", providerFromSlug("@bedrock/anthropic.claude-3-haiku-20240307-v1:0"))
	assert.Equal(t, "unknown", providerFromSlug("gpt-4o"))
	assert.Equal(t, "unknown", providerFromSlug(""))
}

func TestClipText(t *testing.T) {
	assert.Equal(t, "short", clipText("short", 100))

	clipped := clipText(strings.Repeat("x", 200), 100)
	assert.True(t, strings.HasSuffix(clipped, "[truncated]"))
	assert.Less(t, len(clipped), 200)
}
