// Package tokens estimates token counts for text.
//
// Gateways normally report exact usage with each completion; the
// estimator here backfills counts when a response omits usage, so cost
// accounting never silently reads zero.
package tokens
