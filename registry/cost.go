package registry

import (
	"sync"
)

// CostDelta compares per-request cost between two models at the same
// token volumes.
type CostDelta struct {
	CurrentCost    float64 `json:"current_cost"`
	CandidateCost  float64 `json:"candidate_cost"`
	AbsoluteSaving float64 `json:"absolute_saving"`
	PercentSaving  float64 `json:"percent_saving"`
}

// Cost calculates the per-request cost for a model given token counts.
// Returns 0 for unknown models.
func (r *Registry) Cost(id string, inputTokens, outputTokens int) float64 {
	e, ok := r.Get(id)
	if !ok {
		return 0
	}
	inputCost := float64(inputTokens) / 1000 * e.Pricing.InputPer1K
	outputCost := float64(outputTokens) / 1000 * e.Pricing.OutputPer1K
	return inputCost + outputCost
}

// CostDelta calculates the saving from switching currentID to candidateID
// at the given average token counts. PercentSaving is defined as 0 when
// the current cost is 0.
func (r *Registry) CostDelta(currentID, candidateID string, avgInputTokens, avgOutputTokens int) CostDelta {
	currentCost := r.Cost(currentID, avgInputTokens, avgOutputTokens)
	candidateCost := r.Cost(candidateID, avgInputTokens, avgOutputTokens)

	if currentCost == 0 {
		return CostDelta{CurrentCost: 0, CandidateCost: candidateCost}
	}

	abs := currentCost - candidateCost
	return CostDelta{
		CurrentCost:    currentCost,
		CandidateCost:  candidateCost,
		AbsoluteSaving: abs,
		PercentSaving:  abs / currentCost * 100,
	}
}

// Usage tracks token usage and spend for a model.
type Usage struct {
	InputTokens  int
	OutputTokens int
	Requests     int
	CostUSD      float64
}

// Add adds the given usage to this usage.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Requests += other.Requests
	u.CostUSD += other.CostUSD
}

// TotalTokens returns the total tokens used.
func (u *Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// Tracker accumulates usage and spend across models. Verification uses it
// to account what each run actually cost. Safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	totals map[string]Usage
}

// NewTracker creates a new usage tracker.
func NewTracker() *Tracker {
	return &Tracker{totals: make(map[string]Usage)}
}

// Record adds a usage record for the given model.
func (t *Tracker) Record(modelID string, input, output int, costUSD float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u := t.totals[modelID]
	u.InputTokens += input
	u.OutputTokens += output
	u.Requests++
	u.CostUSD += costUSD
	t.totals[modelID] = u
}

// Usage returns the usage for a specific model.
func (t *Tracker) Usage(modelID string) Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totals[modelID]
}

// Summary returns a copy of all usage totals.
func (t *Tracker) Summary() map[string]Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]Usage, len(t.totals))
	for k, v := range t.totals {
		out[k] = v
	}
	return out
}

// Total returns aggregated usage across all models.
func (t *Tracker) Total() Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var total Usage
	for _, u := range t.totals {
		total.Add(u)
	}
	return total
}

// Reset clears all tracked usage.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totals = make(map[string]Usage)
}
