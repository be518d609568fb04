package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_DuplicatePanics(t *testing.T) {
	Register("dup-collaborator", func(GatewayConfig) (*Collaborators, error) {
		return &Collaborators{}, nil
	})
	defer Unregister("dup-collaborator")

	assert.Panics(t, func() {
		Register("dup-collaborator", func(GatewayConfig) (*Collaborators, error) {
			return &Collaborators{}, nil
		})
	})
}

func TestNew_UnknownCollaborator(t *testing.T) {
	_, err := New("no-such-gateway", GatewayConfig{})
	assert.ErrorIs(t, err, ErrUnknownCollaborator)
}

func TestNew_InvokesFactory(t *testing.T) {
	want := &Collaborators{}
	Register("factory-check", func(cfg GatewayConfig) (*Collaborators, error) {
		assert.Equal(t, "key", cfg.APIKey)
		return want, nil
	})
	defer Unregister("factory-check")

	got, err := New("factory-check", GatewayConfig{APIKey: "key"})
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestAvailable_SortedAndIncludesBuiltin(t *testing.T) {
	names := Available()
	assert.Contains(t, names, "openai")
	assert.IsIncreasing(t, names)
}
