package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paretolabs/modelopt/cache"
	"github.com/paretolabs/modelopt/history"
	"github.com/paretolabs/modelopt/profile"
	"github.com/paretolabs/modelopt/replay"
)

// Answer is the result of answering one user question, either fresh
// from the user's current model or reused from their history.
type Answer struct {
	Response     string  `json:"response"`
	ModelUsed    string  `json:"model_used"`
	Cost         float64 `json:"cost"`
	QualityScore float64 `json:"quality_score"`

	// FromCache is true when a sufficiently similar prior answer was
	// returned instead of making a model call.
	FromCache       bool    `json:"from_cache"`
	SimilarityScore float64 `json:"similarity_score,omitempty"`
	MatchedQuestion string  `json:"matched_question,omitempty"`

	ChatID string `json:"chat_id,omitempty"`
}

// AnswerQuestion answers a question on the user's current model, first
// checking whether a similar question was already answered. A match at
// or above ReuseThreshold is returned directly at zero cost with no
// external calls. Fresh answers are judged and appended to history.
func (o *Orchestrator) AnswerQuestion(ctx context.Context, userID, question string) (*Answer, error) {
	if o.history == nil {
		return nil, errors.New("history service not configured")
	}

	p, err := profile.GetOrCreate(o.profiles, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile for %s: %w", userID, err)
	}

	match, err := o.history.FindSimilar(userID, question, o.thresholds.ReuseThreshold)
	if err != nil {
		// History lookup failure is soft; fall through to a fresh call.
		o.logger.Warn("similarity lookup failed",
			slog.String("user_id", userID), slog.Any("error", err))
	}
	if match != nil {
		o.logger.Info("reusing cached answer",
			slog.String("user_id", userID),
			slog.Float64("similarity", match.Score),
			slog.String("chat_id", match.Chat.ID))
		return &Answer{
			Response:        match.Chat.Response,
			ModelUsed:       match.Chat.ModelUsed,
			Cost:            0,
			QualityScore:    match.Chat.QualityScore,
			FromCache:       true,
			SimilarityScore: match.Score,
			MatchedQuestion: match.Chat.Question,
			ChatID:          match.Chat.ID,
		}, nil
	}

	entry, ok := o.registry.Get(p.CurrentModel)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, p.CurrentModel)
	}

	conv := replay.UserConversation(question)
	completion, err := o.replayer.Replay(ctx, conv, replay.ModelConfig{
		Name:        entry.DisplayName,
		Slug:        entry.GatewaySlug,
		InputPer1K:  entry.Pricing.InputPer1K,
		OutputPer1K: entry.Pricing.OutputPer1K,
	})
	if err != nil {
		return nil, fmt.Errorf("answer question: %w", err)
	}
	if !completion.Success {
		return nil, fmt.Errorf("model %s failed to answer: %s", entry.ID, completion.Err)
	}

	quality := judgeFallbackScore
	verdict, err := o.judge.Evaluate(ctx, question, completion.Response)
	if err != nil {
		o.logger.Warn("judge call failed for fresh answer",
			slog.String("user_id", userID), slog.Any("error", err))
	} else {
		quality = verdict.OverallScore
	}

	chatID, err := o.history.Save(ctx, history.Chat{
		UserID:       userID,
		Question:     question,
		Response:     completion.Response,
		ModelUsed:    entry.ID,
		QualityScore: quality,
		Cost:         completion.Cost,
	})
	if err != nil {
		// The user still gets their answer; only reuse is lost.
		o.logger.Warn("chat save failed",
			slog.String("user_id", userID), slog.Any("error", err))
	}

	if err := o.profiles.AddConversation(userID, replay.Conversation{
		Messages: append(conv.Messages, replay.Message{
			Role:    replay.RoleAssistant,
			Content: completion.Response,
		}),
		ModelUsed:    entry.ID,
		TokensInput:  completion.TokensInput,
		TokensOutput: completion.TokensOutput,
	}); err != nil {
		o.logger.Warn("conversation sample update failed",
			slog.String("user_id", userID), slog.Any("error", err))
	}

	return &Answer{
		Response:     completion.Response,
		ModelUsed:    entry.ID,
		Cost:         completion.Cost,
		QualityScore: quality,
		ChatID:       chatID,
	}, nil
}

// AnalyzeQuestion runs the optimization pipeline in the context of one
// question. When a sufficiently similar question was analyzed before,
// the stored outcome is returned instead of repeating the run. Fresh
// outcomes are cached under the question for later reuse.
func (o *Orchestrator) AnalyzeQuestion(ctx context.Context, userID, question string) (*Outcome, error) {
	if o.history != nil && o.cache != nil {
		match, err := o.history.FindSimilar(userID, question, o.thresholds.AnalysisReuseThreshold)
		if err != nil {
			o.logger.Warn("analysis similarity lookup failed",
				slog.String("user_id", userID), slog.Any("error", err))
		}
		if match != nil {
			var cached Outcome
			if o.cache.GetInto(analysisKey(userID, match.Chat.Question), &cached) {
				o.logger.Info("reusing stored analysis",
					slog.String("user_id", userID),
					slog.Float64("similarity", match.Score))
				return &cached, nil
			}
		}
	}

	outcome, err := o.RunOptimization(ctx, userID, DefaultKCandidates, DefaultNTop)
	if err != nil {
		return nil, err
	}
	if o.cache != nil {
		o.cache.Set(analysisKey(userID, question), outcome, o.thresholds.VerificationCacheTTL)
	}
	return outcome, nil
}

func analysisKey(userID, question string) string {
	return cache.GenerateKey(cache.PrefixRecommendation, map[string]string{
		"user_id":       userID,
		"question_hash": history.QuestionHash(question),
	})
}
