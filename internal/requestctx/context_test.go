package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallerID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CallerID(ctx))

	ctx2 := SetCallerID(ctx, "frontend")
	assert.Equal(t, "frontend", CallerID(ctx2))
	assert.Empty(t, CallerID(ctx))

	ctx3 := SetCallerID(ctx2, "10.0.0.1")
	assert.Equal(t, "10.0.0.1", CallerID(ctx3))
	assert.Equal(t, "frontend", CallerID(ctx2))
}

func TestSessionID(t *testing.T) {
	ctx := SetSessionID(context.Background(), "s1")
	assert.Equal(t, "s1", SessionID(ctx))
	assert.Empty(t, CallerID(ctx))

	ctx = SetCallerID(ctx, "frontend")
	assert.Equal(t, "s1", SessionID(ctx))
}
