// Package history stores append-only user conversation history and
// answers "has this user asked something like this before?".
//
// Saved chats are immutable. Similarity lookup scans the user's recent
// history with a pluggable Matcher; the default Lexical matcher blends
// word overlap with character n-gram overlap. A VectorIndex backed by
// an HNSW graph offers a denser semantic alternative when an Embedder
// is available.
package history
