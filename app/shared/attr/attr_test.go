package attr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc-123")

	assert.Equal(t, "abc-123", CorrelationIDFromContext(ctx))
	assert.Equal(t, "abc-123", ExtractCorrelationID(ctx).Value.String())
	assert.Equal(t, "", CorrelationIDFromContext(context.Background()))
}

func TestError(t *testing.T) {
	assert.Equal(t, "boom", Error(errors.New("boom")).Value.String())
	assert.Equal(t, "", Error(nil).Value.String())
}
