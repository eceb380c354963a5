package harness

// Trace event types.
const (
	EventStep    = "step"    // A scenario step was invoked
	EventOutcome = "outcome" // The step's result
	EventEffect  = "effect"  // A side effect observed at a fake
)

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	Type   string         `json:"type"`
	Action string         `json:"action,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Case   string         `json:"case,omitempty"`
	Result map[string]any `json:"result,omitempty"`
	Seq    int64          `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists steps, outcomes and effects in order.
	Trace []TraceEvent `json:"trace"`

	// Errors describes each failed expectation.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(e TraceEvent) {
	e.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, e)
}

// AddStep traces an invoked step.
func (r *Result) AddStep(action string, args map[string]any) {
	r.add(TraceEvent{Type: EventStep, Action: action, Args: args})
}

// AddOutcome traces a step's result.
func (r *Result) AddOutcome(outcomeCase string, result map[string]any) {
	r.add(TraceEvent{Type: EventOutcome, Case: outcomeCase, Result: result})
}

// AddEffect traces a side effect.
func (r *Result) AddEffect(action string, args map[string]any) {
	r.add(TraceEvent{Type: EventEffect, Action: action, Args: args})
}
