package minigrant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/minigrant/client"
)

func TestScopeServiceValidate(t *testing.T) {
	svc := NewScopeService()
	c := &client.Client{ID: "client-1", AllowedScopes: []string{"profile", "openid"}}
	ctx := context.Background()

	t.Run("empty request falls back to the allow-list", func(t *testing.T) {
		scopes, err := svc.Validate(ctx, c, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"profile", "openid"}, scopes)

		// The fallback must be a copy, not the client's own slice.
		scopes[0] = "mutated"
		assert.Equal(t, "profile", c.AllowedScopes[0])
	})

	t.Run("subset is accepted", func(t *testing.T) {
		scopes, err := svc.Validate(ctx, c, "openid")
		require.NoError(t, err)
		assert.Equal(t, []string{"openid"}, scopes)
	})

	t.Run("whitespace separated", func(t *testing.T) {
		scopes, err := svc.Validate(ctx, c, "  profile   openid ")
		require.NoError(t, err)
		assert.Equal(t, []string{"profile", "openid"}, scopes)
	})

	t.Run("disallowed scope is rejected", func(t *testing.T) {
		_, err := svc.Validate(ctx, c, "profile admin")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "admin")
	})
}

func TestScopeServiceFinalizePassesThrough(t *testing.T) {
	svc := NewScopeService()
	scopes, err := svc.Finalize(context.Background(), []string{"profile"}, GrantTypeMiniProgram, nil, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"profile"}, scopes)
}
