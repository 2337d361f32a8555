package tracker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTracker(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	found, err := m.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.Record(ctx, Record{
		Fingerprint: "abc",
		TrialID:     "t-1",
		Params:      json.RawMessage(`{"learning_rate":0.001}`),
		Status:      "completed",
	}))

	found, err = m.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, m.Len())

	// Re-recording the same fingerprint overwrites, not duplicates.
	require.NoError(t, m.Record(ctx, Record{Fingerprint: "abc", TrialID: "t-2", Status: "failed"}))
	assert.Equal(t, 1, m.Len())
}
