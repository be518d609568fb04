package profile

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paretolabs/modelopt/replay"
)

func TestGetOrCreate_NewUserGetsDefaults(t *testing.T) {
	store := NewMemStore()

	p, err := GetOrCreate(store, "alice")
	require.NoError(t, err)

	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, DefaultModel, p.CurrentModel)
	assert.Equal(t, "general", p.UseCase)
	assert.Equal(t, DefaultConstraints(), p.Constraints)
	assert.Equal(t, "text", p.PreferredOutputFormat)
	assert.Equal(t, 500, p.AvgInputTokens)
	assert.Equal(t, 200, p.AvgOutputTokens)
	assert.Equal(t, 10000, p.MonthlyRequestVolume)
	assert.False(t, p.CreatedAt.IsZero())

	// The default is persisted, not just returned.
	stored, err := store.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, stored.CurrentModel)
}

func TestGetOrCreate_ExistingUserUntouched(t *testing.T) {
	store := NewMemStore()
	require.NoError(t, store.Put(Profile{
		UserID:       "alice",
		CurrentModel: "gpt-3.5-turbo",
		UseCase:      "coding",
	}))

	p, err := GetOrCreate(store, "alice")
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", p.CurrentModel)
	assert.Equal(t, "coding", p.UseCase)
}

func TestMemStore_Update_Partial(t *testing.T) {
	store := NewMemStore()
	require.NoError(t, store.Put(Profile{
		UserID:          "alice",
		CurrentModel:    "gpt-4o",
		UseCase:         "general",
		AvgInputTokens:  500,
		AvgOutputTokens: 200,
	}))

	model := "gpt-4o-mini"
	volume := 25000
	require.NoError(t, store.Update("alice", Update{
		CurrentModel:         &model,
		MonthlyRequestVolume: &volume,
	}))

	p, err := store.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", p.CurrentModel)
	assert.Equal(t, 25000, p.MonthlyRequestVolume)
	assert.Equal(t, "general", p.UseCase, "unset fields keep their value")
	assert.Equal(t, 500, p.AvgInputTokens)
	assert.False(t, p.UpdatedAt.IsZero())
}

func TestMemStore_Update_UnknownUser(t *testing.T) {
	store := NewMemStore()
	model := "gpt-4o"
	assert.ErrorIs(t, store.Update("nobody", Update{CurrentModel: &model}), ErrNotFound)
}

func TestMemStore_AddConversation_BoundsSample(t *testing.T) {
	store := NewMemStore()
	require.NoError(t, store.Put(Profile{UserID: "alice", CurrentModel: "gpt-4o"}))

	for i := 0; i < ConversationSampleSize+5; i++ {
		conv := replay.Conversation{Messages: []replay.Message{
			{Role: "user", Content: fmt.Sprintf("question %d", i)},
		}}
		require.NoError(t, store.AddConversation("alice", conv))
	}

	p, err := store.Get("alice")
	require.NoError(t, err)
	require.Len(t, p.RecentConversations, ConversationSampleSize)
	assert.Equal(t, fmt.Sprintf("question %d", ConversationSampleSize+4),
		p.RecentConversations[0].Messages[0].Content,
		"newest conversation comes first")
}

func TestMemStore_Get_CopiesConversations(t *testing.T) {
	store := NewMemStore()
	require.NoError(t, store.Put(Profile{UserID: "alice", CurrentModel: "gpt-4o"}))
	require.NoError(t, store.AddConversation("alice", replay.Conversation{
		Messages: []replay.Message{{Role: "user", Content: "original"}},
	}))

	p, err := store.Get("alice")
	require.NoError(t, err)
	p.RecentConversations[0].Messages[0].Content = "mutated"

	again, err := store.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, "original", again.RecentConversations[0].Messages[0].Content)
}
