package replay

import "context"

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Standard message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Conversation is a test conversation to replay against a model.
type Conversation struct {
	Messages     []Message `json:"messages"`
	ModelUsed    string    `json:"model_used,omitempty"`
	TokensInput  int       `json:"tokens_input,omitempty"`
	TokensOutput int       `json:"tokens_output,omitempty"`
}

// Question returns the first user message of the conversation.
func (c Conversation) Question() string {
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			return m.Content
		}
	}
	return ""
}

// UserConversation builds a single-turn conversation from a question.
func UserConversation(question string) Conversation {
	return Conversation{Messages: []Message{{Role: RoleUser, Content: question}}}
}

// ModelConfig tells a Replayer which model to hit and how to price it.
type ModelConfig struct {
	// Name is the display name used in logs and results.
	Name string `json:"name"`

	// Slug is the gateway model identifier, e.g. "@openai/gpt-4o-mini".
	Slug string `json:"slug"`

	// InputPer1K and OutputPer1K price the call when the gateway does
	// not report cost itself.
	InputPer1K  float64 `json:"input_per_1k"`
	OutputPer1K float64 `json:"output_per_1k"`

	// MaxTokens caps the response length. 0 uses the gateway default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Cost prices a call at this config's per-1k rates.
func (mc ModelConfig) Cost(tokensInput, tokensOutput int) float64 {
	return float64(tokensInput)/1000*mc.InputPer1K +
		float64(tokensOutput)/1000*mc.OutputPer1K
}

// Completion is the outcome of replaying one conversation on one model.
type Completion struct {
	ModelName    string  `json:"model_name"`
	Provider     string  `json:"provider"`
	Response     string  `json:"response"`
	TokensInput  int     `json:"tokens_input"`
	TokensOutput int     `json:"tokens_output"`
	LatencyMS    float64 `json:"latency_ms"`
	Cost         float64 `json:"cost"`
	Success      bool    `json:"success"`
	Refusal      bool    `json:"is_refusal"`
	Err          string  `json:"error,omitempty"`
}

// QualityScore is a judge's verdict on one completion.
type QualityScore struct {
	// OverallScore is 0-100.
	OverallScore float64 `json:"overall_score"`

	// Dimensions holds per-criterion 0-100 scores
	// (accuracy, helpfulness, clarity, completeness).
	Dimensions map[string]float64 `json:"dimension_scores"`

	Reasoning string `json:"reasoning"`

	// Confidence is the judge's own confidence in this verdict, 0-1.
	Confidence float64 `json:"confidence"`

	EvaluatorModel string `json:"evaluator_model,omitempty"`
}

// Evaluation criteria presented to the judge.
var Criteria = map[string]string{
	"accuracy":     "How accurate and factual is the response?",
	"helpfulness":  "How helpful and relevant is the response to the user's query?",
	"clarity":      "How clear and well-structured is the response?",
	"completeness": "How complete and comprehensive is the response?",
}

// NeutralScore is the default score when judge output is malformed.
const NeutralScore = 50.0

// NeutralVerdict builds the degraded verdict used when the judge's
// output cannot be parsed.
func NeutralVerdict(reason, evaluatorModel string) *QualityScore {
	dims := make(map[string]float64, len(Criteria))
	for k := range Criteria {
		dims[k] = NeutralScore
	}
	return &QualityScore{
		OverallScore:   NeutralScore,
		Dimensions:     dims,
		Reasoning:      reason,
		Confidence:     0.1,
		EvaluatorModel: evaluatorModel,
	}
}

// Replayer runs a test conversation against a model via the external
// gateway. Implementations must be safe for concurrent use.
type Replayer interface {
	// Replay executes the conversation on the configured model.
	// A permanently failing call returns a Completion with
	// Success=false rather than an error; an error is returned only
	// for structural problems such as context cancellation.
	Replay(ctx context.Context, conv Conversation, cfg ModelConfig) (*Completion, error)
}

// Judge scores the quality of a model response to a question.
// Implementations must degrade malformed judge output to a neutral
// verdict rather than returning an error.
type Judge interface {
	Evaluate(ctx context.Context, question, response string) (*QualityScore, error)
}

// Embedder converts text to a fixed-width vector for the optional
// semantic similarity path.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
