// Package optimizer implements the three-layer model selection pipeline:
// candidate discovery, use-case fit ranking, and budgeted verification,
// driven by an orchestrator with a bounded retry loop.
//
// Layer 1 (Discovery) finds registry models cheaper than the user's
// current one and prices the switch. Layer 2 (Ranker) scores candidates
// 0-100 against the user's use case and constraints. Layer 3 (Verifier)
// replays real or synthetic conversations on the surviving candidates,
// judges response quality, and screens results through deterministic,
// heuristic, and LLM-judged stages.
//
// The Orchestrator composes the three layers. When no candidate clears
// the acceptance thresholds it retries with a narrowing rank window,
// trading cost-saving aggressiveness for a better chance of passing the
// quality bar. A run that ends without a viable candidate produces a
// structured no-recommendation outcome, not an error.
package optimizer
