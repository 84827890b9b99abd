package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	_, ok := RequestID(context.Background())
	assert.False(t, ok)

	ctx := WithRequestID(context.Background(), "req-1")
	id, ok := RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)

	_, ok = RequestID(WithRequestID(context.Background(), ""))
	assert.False(t, ok)
}

func TestSessionID(t *testing.T) {
	ctx := WithSessionID(WithRequestID(context.Background(), "req-1"), "s1")
	id, ok := SessionID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "s1", id)

	// 两个键互不覆盖
	req, _ := RequestID(ctx)
	assert.Equal(t, "req-1", req)
}
