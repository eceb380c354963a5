package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func minimalScenario() *Scenario {
	return &Scenario{
		Name:        "minimal",
		Description: "One submission",
		Users:       []UserSpec{{Username: "alice"}},
		Flow: []FlowStep{
			{
				Invoke: StepSubmit,
				Args:   map[string]any{"user": "alice", "name": "blog", "value": "203.0.113.7"},
				Expect: &ExpectClause{Case: "Success"},
			},
		},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Action: StepSubmit},
		},
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	result, err := Run(minimalScenario())
	require.NoError(t, err)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)

	// step, outcome, review.post, mail.send
	require.Len(t, result.Trace, 4)
	assert.Equal(t, EventStep, result.Trace[0].Type)
	assert.Equal(t, EventOutcome, result.Trace[1].Type)
	assert.Equal(t, "review.post", result.Trace[2].Action)
	assert.Equal(t, "mail.send", result.Trace[3].Action)
	for i, e := range result.Trace {
		assert.Equal(t, int64(i+1), e.Seq)
	}
}

func TestRun_TypeDefaultsToA(t *testing.T) {
	result, err := Run(minimalScenario())
	require.NoError(t, err)

	assert.Equal(t, "A", result.Trace[1].Result["record_type"])
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	scenario := minimalScenario()
	scenario.Flow[0].Expect = &ExpectClause{Case: "Success", Result: map[string]any{"name": "www.example.org"}}
	scenario.Flow = append(scenario.Flow, FlowStep{
		Invoke: StepVote,
		Args:   map[string]any{"voter": "999", "application": 1, "kind": "approve"},
		Expect: &ExpectClause{Case: "Recorded"},
	})

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "flow[0] submit: expected result")
	assert.Contains(t, result.Errors[1], `flow[1] vote: expected case "Recorded", got "UNAUTHORIZED"`)
}

func TestRun_AssertionFailureReported(t *testing.T) {
	scenario := minimalScenario()
	scenario.Assertions = []Assertion{
		{Type: AssertTraceCount, Action: "dns.create", Count: 1},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: trace_count")
	assert.Contains(t, result.Errors[0], "1 occurrences of dns.create")
}

func TestRun_MissingArgIsAnError(t *testing.T) {
	scenario := minimalScenario()
	scenario.Flow = append(scenario.Flow, FlowStep{Invoke: StepVote, Args: map[string]any{"voter": "100"}})

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `flow step 1 (vote): missing arg "application"`)
}

func TestRun_ConfigOverrides(t *testing.T) {
	scenario := minimalScenario()
	scenario.Config = &Policy{Window: "30m", ParentDomain: "Example.NET"}
	scenario.Flow = append(scenario.Flow,
		FlowStep{Invoke: StepAdvance, Args: map[string]any{"duration": "30m"}},
		FlowStep{Invoke: StepSweep, Expect: &ExpectClause{Case: "Success", Result: map[string]any{"expired": 1}}},
	)
	scenario.Assertions = []Assertion{
		{Type: AssertFinalState, Table: "applications", Where: map[string]any{"id": 1}, Expect: map[string]any{"name": "blog.example.net"}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
}
