package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceRegistration(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.devices.Register(ctx, NewSession("u1"), "tok/with:odd=chars", "iOS"))
	require.NoError(t, e.devices.Register(ctx, NewSession("u1"), "second", "android"))

	tokens, err := e.devices.Tokens(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	byToken := map[string]string{}
	for _, d := range tokens {
		byToken[d.Token] = d.Platform
		assert.Equal(t, tokenID(d.Token), d.ID)
	}
	assert.Equal(t, map[string]string{"tok/with:odd=chars": "ios", "second": "android"}, byToken)

	// the same token registered by another user moves over
	require.NoError(t, e.devices.Register(ctx, NewSession("u2"), "second", "android"))
	tokens, err = e.devices.Tokens(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, tokens, 1)

	require.NoError(t, e.devices.Remove(ctx, tokenID("second")))
	tokens, err = e.devices.Tokens(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestDeviceRegistration_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	assert.ErrorIs(t, e.devices.Register(ctx, nil, "tok", "ios"), ErrUnauthenticated)
	assert.ErrorIs(t, e.devices.Register(ctx, NewSession("u1"), "  ", "ios"), ErrInvalidArgument)
	assert.Equal(t, tokenID("a"), tokenID("a"))
	assert.NotEqual(t, tokenID("a"), tokenID("b"))
}
