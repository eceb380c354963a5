package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_ExpireWithoutVotes(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/expire_without_votes.yaml")
	require.NoError(t, err)

	// Regenerate with: go test ./internal/harness -run TestRunWithGolden -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass)
}

func TestMarshalSnapshot_Deterministic(t *testing.T) {
	trace := []TraceEvent{
		{Type: EventStep, Action: StepSweep, Seq: 1},
		{Type: EventOutcome, Case: "Success", Result: map[string]any{"due": 0, "approved": 0}, Seq: 2},
	}

	first, err := MarshalSnapshot("sweep", trace)
	require.NoError(t, err)
	second, err := MarshalSnapshot("sweep", trace)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, string(first), "\"approved\": 0,\n        \"due\": 0")
}
