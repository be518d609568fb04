package optimizer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/paretolabs/modelopt/cache"
	"github.com/paretolabs/modelopt/registry"
	"github.com/paretolabs/modelopt/replay"
)

// Stage thresholds and fallback scores.
const (
	// maxFormatFailurePercent is the Stage A gate: candidates failing
	// more than this fraction of replays are rejected outright.
	maxFormatFailurePercent = 20.0

	// judgeFallbackScore stands in for a judge verdict when the judge
	// call itself fails. Verification never aborts on a judge error.
	judgeFallbackScore = 85.0

	// Defaults for a candidate that produced no completions at all.
	noCompletionsQuality    = 80.0
	noCompletionsDelta      = -10.0
	noCompletionsConfidence = 0.6

	failedStageAConfidence = 0.5
	unjudgedConfidence     = 0.7
)

// Verifier is Layer 3: it replays test conversations on each candidate,
// judges response quality, and screens results through the A/B/C stages.
type Verifier struct {
	replayer   replay.Replayer
	judge      replay.Judge
	cache      *cache.Manager
	tracker    *registry.Tracker
	thresholds Thresholds
	logger     *slog.Logger
}

// NewVerifier creates the verification layer. The tracker is optional.
func NewVerifier(replayer replay.Replayer, judge replay.Judge, cacheMgr *cache.Manager,
	tracker *registry.Tracker, thresholds Thresholds, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		replayer:   replayer,
		judge:      judge,
		cache:      cacheMgr,
		tracker:    tracker,
		thresholds: thresholds.withDefaults(),
		logger:     logger,
	}
}

// budget is the run-wide verification spend ceiling, shared across the
// concurrently verified candidates.
type budget struct {
	mu    sync.Mutex
	spent float64
	limit float64
}

// allow reports whether new verification calls may still be issued.
func (b *budget) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent <= b.limit
}

func (b *budget) add(cost float64) {
	b.mu.Lock()
	b.spent += cost
	b.mu.Unlock()
}

func (b *budget) total() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent
}

// sample pairs a completion with the question it answered.
type sample struct {
	question   string
	completion replay.Completion
}

// rawRun accumulates one candidate's replay outcomes before staging.
type rawRun struct {
	samples        []sample
	formatFailures int
	refusals       int
	totalCost      float64
	totalLatencyMS float64
}

// Execute verifies the ranked candidates. Conversations may be nil, in
// which case the user's recent history is used, falling back to
// synthetic templates below the minimum sample size. Candidates are
// verified concurrently under a shared budget ceiling; exceeding the
// budget stops new calls but already-collected results are still
// evaluated.
func (v *Verifier) Execute(ctx context.Context, rr *RankingResult,
	conversations []replay.Conversation, iteration int) (*VerificationResult, error) {

	if conversations == nil {
		conversations = rr.Profile.RecentConversations
	}
	if len(conversations) < v.thresholds.MinSampleSize {
		v.logger.Warn("insufficient conversation history, using synthetic tests",
			slog.String("user_id", rr.Profile.UserID),
			slog.Int("have", len(conversations)),
			slog.Int("need", v.thresholds.MinSampleSize))
		conversations = SyntheticConversations(rr.UseCase)
	}
	if len(conversations) > v.thresholds.MaxConversations {
		conversations = conversations[:v.thresholds.MaxConversations]
	}

	convHash := cache.HashJSON(conversations)
	b := &budget{limit: v.thresholds.MaxVerificationBudgetUSD}

	evaluations := make([]Evaluation, len(rr.TopCandidates))
	sem := make(chan struct{}, v.thresholds.VerifyConcurrency)
	var wg sync.WaitGroup

	for i, candidate := range rr.TopCandidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(i int, c Candidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			evaluations[i] = v.verifyOne(ctx, c, conversations, convHash, b)
		}(i, candidate)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acceptable := make([]Evaluation, 0, len(evaluations))
	for _, e := range evaluations {
		if v.acceptable(e) {
			acceptable = append(acceptable, e)
		}
	}

	needsRetry := len(acceptable) == 0 && iteration < v.thresholds.MaxIterations

	v.logger.Info("verification complete",
		slog.Int("iteration", iteration),
		slog.Int("candidates", len(evaluations)),
		slog.Int("acceptable", len(acceptable)),
		slog.Float64("spend_usd", b.total()),
		slog.Bool("needs_retry", needsRetry))

	return &VerificationResult{
		Evaluations: evaluations,
		Acceptable:  acceptable,
		NeedsRetry:  needsRetry,
		Iteration:   iteration,
		TotalCost:   b.total(),
	}, nil
}

// acceptable is the candidate acceptance predicate: bounded quality
// drop, sufficient cost saving, sufficient confidence.
func (v *Verifier) acceptable(e Evaluation) bool {
	return e.QualityDelta >= -v.thresholds.MaxQualityDropPercent &&
		e.Candidate.CostDelta.PercentSaving >= v.thresholds.MinCostSavingPercent &&
		e.Confidence >= v.thresholds.MinConfidence
}

// verifyOne verifies a single candidate, consulting the
// conversation-hash cache first.
func (v *Verifier) verifyOne(ctx context.Context, c Candidate,
	conversations []replay.Conversation, convHash string, b *budget) Evaluation {

	key := cache.GenerateKey(cache.PrefixModelOutput, map[string]string{
		"model_id":          c.Entry.ID,
		"conversation_hash": convHash,
	})

	var cached Evaluation
	if v.cache != nil && v.cache.GetInto(key, &cached) {
		v.logger.Debug("using cached verification",
			slog.String("model_id", c.Entry.ID))
		// Cost deltas depend on the user's current traffic shape, so
		// the cached copy's candidate is replaced with this run's.
		cached.Candidate = c
		cached.VerificationCost = 0
		return cached
	}

	run := v.replayAll(ctx, c, conversations, b)
	eval := v.evaluate(ctx, c, run)
	eval.VerificationCost = run.totalCost

	if v.cache != nil {
		v.cache.Set(key, eval, v.thresholds.VerificationCacheTTL)
	}
	return eval
}

// replayAll runs the test conversations on the candidate, stopping
// early when the shared budget is exhausted or the context is done.
func (v *Verifier) replayAll(ctx context.Context, c Candidate,
	conversations []replay.Conversation, b *budget) rawRun {

	mc := replay.ModelConfig{
		Name:        c.Entry.DisplayName,
		Slug:        c.Entry.GatewaySlug,
		InputPer1K:  c.Entry.Pricing.InputPer1K,
		OutputPer1K: c.Entry.Pricing.OutputPer1K,
		MaxTokens:   1024,
	}

	var run rawRun
	for _, conv := range conversations {
		if ctx.Err() != nil {
			break
		}
		if !b.allow() {
			v.logger.Warn("verification budget exhausted",
				slog.String("model_id", c.Entry.ID),
				slog.Float64("spent_usd", b.total()))
			break
		}

		completion, err := v.replayer.Replay(ctx, conv, mc)
		if err != nil {
			// Structural failure (cancellation); stop this candidate.
			break
		}

		run.samples = append(run.samples, sample{
			question:   conv.Question(),
			completion: *completion,
		})
		run.totalCost += completion.Cost
		run.totalLatencyMS += completion.LatencyMS
		b.add(completion.Cost)
		if v.tracker != nil {
			v.tracker.Record(c.Entry.ID, completion.TokensInput,
				completion.TokensOutput, completion.Cost)
		}

		if completion.Refusal {
			run.refusals++
		}
		if !completion.Success {
			run.formatFailures++
		}
	}
	return run
}

// evaluate applies the A/B/C staging to one candidate's raw run.
func (v *Verifier) evaluate(ctx context.Context, c Candidate, run rawRun) Evaluation {
	eval := Evaluation{Candidate: c, SamplesRun: len(run.samples)}

	if len(run.samples) == 0 {
		eval.QualityScore = noCompletionsQuality
		eval.QualityDelta = noCompletionsDelta
		eval.Confidence = noCompletionsConfidence
		eval.Stage = StageNoCompletions
		return eval
	}

	// Stage A: deterministic checks.
	total := float64(len(run.samples))
	eval.FormatFailureRate = float64(run.formatFailures) / total * 100
	eval.RefusalRate = float64(run.refusals) / total * 100

	if eval.FormatFailureRate > maxFormatFailurePercent {
		eval.QualityScore = 0
		eval.QualityDelta = -100
		eval.Confidence = failedStageAConfidence
		eval.Stage = StageFailedA
		return eval
	}

	// Stage B: heuristic diagnostics.
	successful := 0
	lengthSum := 0
	for _, s := range run.samples {
		if s.completion.Success {
			successful++
			lengthSum += len(s.completion.Response)
		}
	}
	if successful > 0 {
		eval.AvgResponseLength = float64(lengthSum) / float64(successful)
	}

	// Stage C: judged quality over successful, non-refusal samples.
	var scores []float64
	for _, s := range run.samples {
		if !s.completion.Success || s.completion.Refusal {
			continue
		}
		verdict, err := v.judge.Evaluate(ctx, s.question, s.completion.Response)
		if err != nil {
			v.logger.Warn("judge call failed, using fallback score",
				slog.String("model_id", c.Entry.ID),
				slog.Any("error", err))
			scores = append(scores, judgeFallbackScore)
			continue
		}
		scores = append(scores, verdict.OverallScore)
	}
	eval.SamplesJudged = len(scores)

	avgQuality := judgeFallbackScore
	if len(scores) > 0 {
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		avgQuality = sum / float64(len(scores))
	}

	eval.QualityScore = avgQuality
	eval.QualityDelta = avgQuality - v.thresholds.BaselineQuality
	if len(scores) > 0 {
		eval.Confidence = confidenceFor(len(scores))
	} else {
		eval.Confidence = unjudgedConfidence
	}
	eval.Stage = StageCompleted
	return eval
}

// confidenceFor saturates with sample count, capped below certainty.
func confidenceFor(judged int) float64 {
	conf := float64(judged) / 10
	if conf > 0.95 {
		return 0.95
	}
	return conf
}
