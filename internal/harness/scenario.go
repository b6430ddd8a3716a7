package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is an end-to-end run of wizard sessions and contact matching
// against a fresh store.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Survey is a directory of CUE questionnaire definitions, relative to
	// the scenario file. Empty selects the built-in questionnaire.
	Survey string `yaml:"survey,omitempty"`

	// SurveyName picks one definition from Survey. It may be omitted when
	// the directory holds a single definition.
	SurveyName string `yaml:"survey_name,omitempty"`

	// Seed inserts submissions directly, before the flow runs.
	Seed []SeedSubmission `yaml:"seed,omitempty"`

	// Flow is executed in order. Each step is recorded in the trace.
	Flow []FlowStep `yaml:"flow"`

	// Assertions check the store and dashboard after the flow.
	Assertions []Assertion `yaml:"assertions"`
}

// SeedSubmission is a stored submission the flow can match against.
type SeedSubmission struct {
	SurveyID string         `yaml:"survey_id"`
	Answers  map[string]any `yaml:"answers"`
}

// Flow operations.
const (
	OpStart   = "start"
	OpSet     = "set"
	OpAdvance = "advance"
	OpRetreat = "retreat"
	OpSubmit  = "submit"
	OpAbandon = "abandon"
	OpMatch   = "match"
	OpLink    = "link"
	OpWait    = "wait"
)

var sessionOps = map[string]bool{
	OpStart:   true,
	OpSet:     true,
	OpAdvance: true,
	OpRetreat: true,
	OpSubmit:  true,
	OpAbandon: true,
}

// FlowStep is one operation.
type FlowStep struct {
	Op string `yaml:"op"`

	// Session labels a wizard session. start creates it; the other
	// session operations address it.
	Session string `yaml:"session,omitempty"`

	// Answers is staged by set. A value is a string, a number or a list.
	Answers map[string]any `yaml:"answers,omitempty"`

	// Contact is the payload of match and link.
	Contact map[string]string `yaml:"contact,omitempty"`

	// Submission is the id picked by link.
	Submission string `yaml:"submission,omitempty"`

	// Duration moves the clock forward for wait, e.g. "90s".
	Duration string `yaml:"duration,omitempty"`

	// Expect is checked against the step result. Unset fields are not
	// checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is a subset match on a step result.
type Expect struct {
	Step       *int     `yaml:"step,omitempty"`
	Moved      *bool    `yaml:"moved,omitempty"`
	Violations []string `yaml:"violations,omitempty"`
	Outcome    string   `yaml:"outcome,omitempty"`
	Submission string   `yaml:"submission,omitempty"`
	Candidates []string `yaml:"candidates,omitempty"`
	Error      string   `yaml:"error,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kinds is the expected event kind sequence (event_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Kind and Count are used by event_count.
	Kind  string `yaml:"kind,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// SurveyID selects the submission checked by submission.
	SurveyID string `yaml:"survey_id,omitempty"`

	// Expect holds expected values: submission document keys for
	// submission, snapshot keys for dashboard. Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertEventOrder = "event_order"
	AssertEventCount = "event_count"
	AssertSubmission = "submission"
	AssertDashboard  = "dashboard"
)

// LoadScenario reads and parses a scenario YAML file. Unknown keys are
// rejected, and a relative Survey path is resolved against the file's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Survey != "" && !filepath.IsAbs(scenario.Survey) {
		scenario.Survey = filepath.Join(filepath.Dir(path), scenario.Survey)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
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

	if s.Survey != "" {
		if info, err := os.Stat(s.Survey); err != nil || !info.IsDir() {
			return fmt.Errorf("survey directory not found: %s", s.Survey)
		}
	}

	for i, seed := range s.Seed {
		if seed.SurveyID == "" {
			return fmt.Errorf("seed[%d]: survey_id is required", i)
		}
	}

	started := make(map[string]bool)
	for i, step := range s.Flow {
		if err := validateStep(i, step, started); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step FlowStep, started map[string]bool) error {
	switch {
	case sessionOps[step.Op]:
		if step.Session == "" {
			return fmt.Errorf("flow[%d]: session is required for %s", i, step.Op)
		}
		if step.Op == OpStart {
			if started[step.Session] {
				return fmt.Errorf("flow[%d]: session %q already started", i, step.Session)
			}
			started[step.Session] = true
		} else if !started[step.Session] {
			return fmt.Errorf("flow[%d]: session %q used before start", i, step.Session)
		}
		if step.Op == OpSet && len(step.Answers) == 0 {
			return fmt.Errorf("flow[%d]: answers are required for set", i)
		}
	case step.Op == OpMatch || step.Op == OpLink:
		if step.Contact == nil {
			return fmt.Errorf("flow[%d]: contact is required for %s", i, step.Op)
		}
		if step.Op == OpLink && step.Submission == "" {
			return fmt.Errorf("flow[%d]: submission is required for link", i)
		}
	case step.Op == OpWait:
		if _, err := time.ParseDuration(step.Duration); err != nil {
			return fmt.Errorf("flow[%d]: invalid duration %q", i, step.Duration)
		}
	case step.Op == "":
		return fmt.Errorf("flow[%d]: op is required", i)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertEventOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for event_order", index)
		}
	case AssertEventCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertSubmission:
		if a.SurveyID == "" {
			return fmt.Errorf("assertions[%d]: survey_id is required for submission", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for submission", index)
		}
	case AssertDashboard:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for dashboard", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
