package harness

// TraceEvent records one flow step: what was asked and what came back.
type TraceEvent struct {
	Seq     int            `json:"seq"`
	Op      string         `json:"op"`
	Session string         `json:"session,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Result  map[string]any `json:"result"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds the seed inserts and flow steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
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

func (r *Result) addTrace(op, session string, args, result map[string]any) TraceEvent {
	ev := TraceEvent{
		Seq:     len(r.Trace) + 1,
		Op:      op,
		Session: session,
		Args:    args,
		Result:  result,
	}
	r.Trace = append(r.Trace, ev)
	return ev
}
