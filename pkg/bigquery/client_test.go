package bigquery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUninitializedClientFailsFast(t *testing.T) {
	var c *Client
	ctx := context.Background()
	assert.ErrorIs(t, c.Ping(ctx), errNotInitialized)
	assert.ErrorIs(t, c.InsertRows(ctx, "donation_events", []any{struct{}{}}), errNotInitialized)
	assert.ErrorIs(t, c.EnsureTable(ctx, "donation_events", nil, ""), errNotInitialized)
	assert.NoError(t, c.Close())
}
