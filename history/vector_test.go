package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedEmbedder maps known texts to fixed vectors.
type fixedEmbedder struct {
	vectors map[string][]float32
}

func (f *fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func TestVectorIndex_NearestPerUser(t *testing.T) {
	emb := &fixedEmbedder{vectors: map[string][]float32{
		"sort a list":   {1, 0, 0},
		"sort an array": {0.9, 0.1, 0},
		"capital city":  {0, 1, 0},
	}}
	idx := NewVectorIndex(emb)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "alice", "chat-sort", "sort a list"))
	require.NoError(t, idx.Add(ctx, "alice", "chat-capital", "capital city"))

	chatID, score, ok, err := idx.Nearest(ctx, "alice", "sort an array")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "chat-sort", chatID)
	assert.Greater(t, score, 0.9)

	// A user without indexed history gets no match.
	_, _, ok, err = idx.Nearest(ctx, "bob", "sort an array")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_FindSimilarSemantic(t *testing.T) {
	emb := &fixedEmbedder{vectors: map[string][]float32{
		"sort a list":   {1, 0, 0},
		"sort an array": {0.9, 0.1, 0},
	}}
	idx := NewVectorIndex(emb)
	svc := NewService(NewMemStore(), WithVectorIndex(idx))
	ctx := context.Background()

	_, err := svc.Save(ctx, Chat{
		UserID:   "alice",
		Question: "sort a list",
		Response: "use sorted()",
	})
	require.NoError(t, err)

	match, err := svc.FindSimilarSemantic(ctx, "alice", "sort an array", 0.8)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "use sorted()", match.Chat.Response)

	match, err = svc.FindSimilarSemantic(ctx, "alice", "sort an array", 0.999)
	require.NoError(t, err)
	assert.Nil(t, match, "matches below the threshold are discarded")
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}), "dimension mismatch scores zero")
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}), "zero vector scores zero")
}
