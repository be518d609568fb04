package history

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// Embedder converts text to a fixed-width vector. The replay package
// provides an OpenAI-compatible implementation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex ranks prior questions by cosine similarity over their
// embeddings. Each user gets an independent HNSW graph so one user's
// history never matches another's.
type VectorIndex struct {
	embedder Embedder

	mu     sync.Mutex
	graphs map[string]*hnsw.Graph[string]
}

// NewVectorIndex creates an empty index over the given embedder.
func NewVectorIndex(embedder Embedder) *VectorIndex {
	return &VectorIndex{
		embedder: embedder,
		graphs:   make(map[string]*hnsw.Graph[string]),
	}
}

// Add embeds the question and inserts it into the user's graph.
func (v *VectorIndex) Add(ctx context.Context, userID, chatID, question string) error {
	vec, err := v.embedder.Embed(ctx, question)
	if err != nil {
		return fmt.Errorf("embed question: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	g, ok := v.graphs[userID]
	if !ok {
		g = hnsw.NewGraph[string]()
		v.graphs[userID] = g
	}
	g.Add(hnsw.MakeNode(chatID, vec))
	return nil
}

// Nearest returns the chat id and cosine similarity of the closest
// stored question, or ok=false when the user has no indexed history.
func (v *VectorIndex) Nearest(ctx context.Context, userID, question string) (chatID string, score float64, ok bool, err error) {
	vec, err := v.embedder.Embed(ctx, question)
	if err != nil {
		return "", 0, false, fmt.Errorf("embed probe: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	g, exists := v.graphs[userID]
	if !exists {
		return "", 0, false, nil
	}
	neighbors := g.Search(vec, 1)
	if len(neighbors) == 0 {
		return "", 0, false, nil
	}
	return neighbors[0].Key, cosineSimilarity(vec, neighbors[0].Value), true, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
