package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/kelseyhightower/envconfig"
	openai "github.com/sashabaranov/go-openai"

	"github.com/paretolabs/modelopt/tokens"
)

// GatewayConfig configures the OpenAI-compatible gateway collaborators.
type GatewayConfig struct {
	APIKey  string `envconfig:"API_KEY"`
	BaseURL string `envconfig:"BASE_URL"`

	JudgeModel string `envconfig:"JUDGE_MODEL" default:"gpt-4o-mini"`
	EmbedModel string `envconfig:"EMBED_MODEL" default:"text-embedding-3-small"`

	// Timeout bounds every individual gateway call.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"30s"`

	// MaxRetries and RetryDelay control the fixed-backoff retry loop
	// around transient call failures.
	MaxRetries int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryDelay time.Duration `envconfig:"RETRY_DELAY" default:"2s"`

	Logger *slog.Logger `ignored:"true"`
}

// GatewayConfigFromEnv reads gateway settings from MODELOPT_GATEWAY_*
// environment variables.
func GatewayConfigFromEnv() (GatewayConfig, error) {
	var cfg GatewayConfig
	if err := envconfig.Process("modelopt_gateway", &cfg); err != nil {
		return cfg, fmt.Errorf("gateway config: %w", err)
	}
	return cfg, nil
}

func init() {
	Register("openai", func(cfg GatewayConfig) (*Collaborators, error) {
		if cfg.APIKey == "" {
			return nil, NewError("openai", "init", ErrMissingCredentials, false)
		}
		client := newClient(cfg)
		logger := cfg.Logger
		if logger == nil {
			logger = slog.Default()
		}
		return &Collaborators{
			Replayer: &OpenAIReplayer{client: client, cfg: cfg, logger: logger},
			Judge:    &OpenAIJudge{client: client, cfg: cfg, logger: logger},
			Embedder: &OpenAIEmbedder{client: client, cfg: cfg},
		}, nil
	})
}

func newClient(cfg GatewayConfig) *openai.Client {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(cc)
}

// OpenAIReplayer replays conversations through an OpenAI-compatible
// gateway endpoint.
type OpenAIReplayer struct {
	client *openai.Client
	cfg    GatewayConfig
	logger *slog.Logger
}

// Replay executes the conversation on the configured model. Transient
// failures are retried with a fixed delay; exhausted retries produce a
// failed Completion, not an error.
func (r *OpenAIReplayer) Replay(ctx context.Context, conv Conversation, mc ModelConfig) (*Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:     mc.Slug,
		Messages:  messages,
		MaxTokens: mc.MaxTokens,
	}

	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, r.cfg.RetryDelay); err != nil {
				return nil, err
			}
			r.logger.Debug("retrying replay",
				slog.String("model", mc.Name),
				slog.Int("attempt", attempt))
		}

		start := time.Now()
		cctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		resp, err := r.client.CreateChatCompletion(cctx, req)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if classifyRetryable(err) {
				continue
			}
			break
		}

		latency := float64(time.Since(start)) / float64(time.Millisecond)
		text := ""
		if len(resp.Choices) > 0 {
			text = resp.Choices[0].Message.Content
		}
		in, out := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
		if in == 0 && out == 0 {
			// Some gateways omit usage; estimate so cost accounting
			// stays non-zero.
			in = tokens.Estimate(flattenMessages(conv.Messages))
			out = tokens.Estimate(text)
		}

		r.logger.Debug("replay completed",
			slog.String("model", mc.Name),
			slog.Float64("latency_ms", latency),
			slog.Int("tokens_out", out))

		return &Completion{
			ModelName:    mc.Name,
			Provider:     providerFromSlug(mc.Slug),
			Response:     text,
			TokensInput:  in,
			TokensOutput: out,
			LatencyMS:    latency,
			Cost:         mc.Cost(in, out),
			Success:      true,
			Refusal:      looksLikeRefusal(text),
		}, nil
	}

	r.logger.Warn("replay failed permanently",
		slog.String("model", mc.Name),
		slog.Any("error", lastErr))
	return &Completion{
		ModelName: mc.Name,
		Provider:  providerFromSlug(mc.Slug),
		Success:   false,
		Err:       lastErr.Error(),
	}, nil
}

// OpenAIJudge scores completions with an LLM judge.
type OpenAIJudge struct {
	client *openai.Client
	cfg    GatewayConfig
	logger *slog.Logger
}

// maxJudgedChars bounds the response text shown to the judge so judging
// cost stays flat for very long completions.
const maxJudgedChars = 4000

// Evaluate asks the judge model for a verdict. Malformed judge output
// degrades to a neutral verdict; only transport failures surface as
// errors.
func (j *OpenAIJudge) Evaluate(ctx context.Context, question, response string) (*QualityScore, error) {
	prompt := buildJudgePrompt(question, clipText(response, maxJudgedChars))

	req := openai.ChatCompletionRequest{
		Model: j.cfg.JudgeModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an expert AI response evaluator. Always respond with valid JSON only.",
			},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	}

	var lastErr error
	for attempt := 0; attempt <= j.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, j.cfg.RetryDelay); err != nil {
				return nil, err
			}
		}

		cctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
		resp, err := j.client.CreateChatCompletion(cctx, req)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if classifyRetryable(err) {
				continue
			}
			break
		}

		if len(resp.Choices) == 0 {
			return NeutralVerdict("judge returned no choices", j.cfg.JudgeModel), nil
		}
		return j.parseVerdict(resp.Choices[0].Message.Content), nil
	}

	return nil, NewError("openai", "judge", lastErr, classifyRetryable(lastErr))
}

// judgeVerdict is the JSON shape the judge is instructed to produce.
// Its schema is generated and embedded in the judge prompt.
type judgeVerdict struct {
	DimensionScores struct {
		Accuracy     float64 `json:"accuracy"`
		Helpfulness  float64 `json:"helpfulness"`
		Clarity      float64 `json:"clarity"`
		Completeness float64 `json:"completeness"`
	} `json:"dimension_scores"`
	OverallScore float64 `json:"overall_score"`
	Reasoning    string  `json:"reasoning"`
	Confidence   float64 `json:"confidence"`
}

func (j *OpenAIJudge) parseVerdict(raw string) *QualityScore {
	data, ok := ExtractJSON(raw)
	if !ok {
		j.logger.Warn("judge output not JSON, using neutral verdict")
		return NeutralVerdict("judge output was not valid JSON", j.cfg.JudgeModel)
	}

	var v judgeVerdict
	if err := json.Unmarshal(data, &v); err != nil {
		j.logger.Warn("judge output shape mismatch", slog.Any("error", err))
		return NeutralVerdict("judge output did not match expected shape", j.cfg.JudgeModel)
	}

	return &QualityScore{
		OverallScore: clampScore(v.OverallScore),
		Dimensions: map[string]float64{
			"accuracy":     clampScore(v.DimensionScores.Accuracy),
			"helpfulness":  clampScore(v.DimensionScores.Helpfulness),
			"clarity":      clampScore(v.DimensionScores.Clarity),
			"completeness": clampScore(v.DimensionScores.Completeness),
		},
		Reasoning:      v.Reasoning,
		Confidence:     clamp01(v.Confidence),
		EvaluatorModel: j.cfg.JudgeModel,
	}
}

var judgeSchemaJSON = func() string {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&judgeVerdict{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		// The verdict type is static; reflection over it cannot fail
		// at runtime once it compiles.
		panic(fmt.Sprintf("reflect judge schema: %v", err))
	}
	return string(data)
}()

func buildJudgePrompt(question, response string) string {
	var b strings.Builder
	b.WriteString("Evaluate the quality of the following AI response.\n\n")
	b.WriteString("USER QUERY:\n")
	b.WriteString(question)
	b.WriteString("\n\nAI RESPONSE:\n")
	b.WriteString(response)
	b.WriteString("\n\nEVALUATION CRITERIA:\n")
	for _, name := range []string{"accuracy", "helpfulness", "clarity", "completeness"} {
		fmt.Fprintf(&b, "- %s: %s\n", name, Criteria[name])
	}
	b.WriteString("\nScore each criterion 0-100, give an overall 0-100 score, brief reasoning, ")
	b.WriteString("and your confidence 0-1.\n")
	b.WriteString("Respond ONLY with a JSON object conforming to this schema:\n")
	b.WriteString(judgeSchemaJSON)
	return b.String()
}

// OpenAIEmbedder produces embeddings for the vector similarity path.
type OpenAIEmbedder struct {
	client *openai.Client
	cfg    GatewayConfig
}

// Embed converts text into a fixed-width vector.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(cctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.cfg.EmbedModel),
	})
	if err != nil {
		return nil, NewError("openai", "embed", err, classifyRetryable(err))
	}
	if len(resp.Data) == 0 {
		return nil, NewError("openai", "embed", errors.New("empty embedding response"), false)
	}
	return resp.Data[0].Embedding, nil
}

// refusalMarkers are phrases that signal a model declined to answer.
var refusalMarkers = []string{
	"i can't help",
	"i cannot help",
	"i can't assist",
	"i cannot assist",
	"i'm sorry, but i can't",
	"i am unable to",
	"i'm not able to",
	"i won't be able to",
	"as an ai, i cannot",
}

// looksLikeRefusal applies a cheap heuristic over the opening of the
// response. The gateway may also report refusals; this catches the rest.
func looksLikeRefusal(text string) bool {
	head := strings.ToLower(text)
	if len(head) > 160 {
		head = head[:160]
	}
	for _, marker := range refusalMarkers {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}

func flattenMessages(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

func providerFromSlug(slug string) string {
	s := strings.TrimPrefix(slug, "@")
	if i := strings.IndexByte(s, '/'); i > 0 {
		return s[:i]
	}
	return "unknown"
}

func clipText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n[truncated]"
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	// Network-level errors are worth one more try.
	var reqErr *openai.RequestError
	return errors.As(err, &reqErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
