package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONColumn(t *testing.T) {
	col, err := JSONColumn(map[string]string{"status": "claimed"})
	require.NoError(t, err)
	assert.True(t, col.Valid)
	assert.JSONEq(t, `{"status":"claimed"}`, col.JSONVal)

	col, err = JSONColumn(json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, col.JSONVal)

	for _, empty := range []any{nil, json.RawMessage(nil), []byte{}} {
		col, err = JSONColumn(empty)
		require.NoError(t, err)
		assert.False(t, col.Valid)
	}

	_, err = JSONColumn(make(chan int))
	assert.Error(t, err)
}

func TestDonationEventSchemaHasPartitionColumn(t *testing.T) {
	schema, err := DonationEventSchema()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range schema {
		names[f.Name] = true
	}
	assert.True(t, names[PartitionField])
	assert.True(t, names["payload"])
	assert.Len(t, schema, 15)
}
