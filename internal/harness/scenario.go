package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/subvote/internal/model"
)

// Scenario is a scripted run against a fresh service graph.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides the voting policy. Nil uses the defaults.
	Config *Policy `yaml:"config,omitempty"`

	// Users are created before the flow runs.
	Users []UserSpec `yaml:"users,omitempty"`

	// Flow contains the steps, run in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Policy overrides parts of the voting policy.
type Policy struct {
	Quorum       int    `yaml:"quorum,omitempty"`
	Window       string `yaml:"window,omitempty"` // Go duration
	ParentDomain string `yaml:"parent_domain,omitempty"`
}

// UserSpec is a user created before the flow.
type UserSpec struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email,omitempty"` // Defaults to <username>@example.org
	Role     string `yaml:"role,omitempty"`  // Defaults to user
	ChatID   string `yaml:"chat_id,omitempty"`
}

// FlowStep is one step of the flow.
type FlowStep struct {
	// Invoke names the step, see the package documentation.
	Invoke string `yaml:"invoke"`

	// Args are the step arguments.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect specifies the expected outcome. Nil skips validation.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies an expected step outcome.
type ExpectClause struct {
	// Case is the expected outcome case (e.g. "Success", "Recorded", "VOTE_WINDOW_CLOSED").
	Case string `yaml:"case"`

	// Result contains expected result fields. Subset match.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	// Action is a step or effect name (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are expected arguments (trace_contains). Subset match.
	Args map[string]any `yaml:"args,omitempty"`

	// Table is the table queried (final_state).
	Table string `yaml:"table,omitempty"`

	// Where filters the row (final_state). All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected order (trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Step names.
const (
	StepSubmit       = "submit"
	StepSubmitUpdate = "submit_update"
	StepDeleteRecord = "delete_record"
	StepVote         = "vote"
	StepResolve      = "resolve"
	StepSweep        = "sweep"
	StepAdvance      = "advance"
	StepFailDNS      = "fail_dns"
	StepHealDNS      = "heal_dns"

	StepReportAbuse   = "report_abuse"
	StepSuspendReport = "suspend_report"
	StepIgnoreReport  = "ignore_report"
)

var knownSteps = []string{
	StepSubmit, StepSubmitUpdate, StepDeleteRecord, StepVote, StepResolve,
	StepSweep, StepAdvance, StepFailDNS, StepHealDNS,
	StepReportAbuse, StepSuspendReport, StepIgnoreReport,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios found in %s", dir)
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Config != nil && s.Config.Window != "" {
		if _, err := time.ParseDuration(s.Config.Window); err != nil {
			return fmt.Errorf("config.window: %w", err)
		}
	}

	seen := make(map[string]bool, len(s.Users))
	for i, u := range s.Users {
		if u.Username == "" {
			return fmt.Errorf("users[%d]: username is required", i)
		}
		if seen[u.Username] {
			return fmt.Errorf("users[%d]: duplicate username %q", i, u.Username)
		}
		seen[u.Username] = true
		if u.Role != "" {
			if _, err := model.ParseRole(u.Role); err != nil {
				return fmt.Errorf("users[%d]: %w", i, err)
			}
		}
	}

	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if !slices.Contains(knownSteps, step.Invoke) {
			return fmt.Errorf("flow[%d]: unknown step %q", i, step.Invoke)
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("flow[%d].expect: case is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
