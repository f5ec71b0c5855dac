package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/xomicsdatascience/pscs-api/internal/engine"
	"github.com/xomicsdatascience/pscs-api/internal/interaction"
	"github.com/xomicsdatascience/pscs-api/internal/validator"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Pipeline is the path of the pipeline definition (.json or .hcl).
	// Relative paths are resolved against the scenario file's directory.
	Pipeline string `yaml:"pipeline"`

	// Inputs maps input node ids to the files they read.
	// Relative paths are resolved like Pipeline.
	Inputs map[string]string `yaml:"inputs,omitempty"`

	// OutputDir is where output nodes write. If empty, a temporary
	// directory is used and removed after the run.
	OutputDir string `yaml:"output_dir,omitempty"`

	// RunID is the fixed run id. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Expect describes the run outcome.
	Expect Expect `yaml:"expect"`

	// Assertions are checked after Expect.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Expect is the required outcome of a scenario run.
type Expect struct {
	// Valid is whether the graph passes validation as a whole.
	Valid bool `yaml:"valid"`

	// States maps node ids to their required final state.
	// Nodes not listed are not checked.
	States map[string]engine.State `yaml:"states,omitempty"`

	// Failures is the exact set of validation failures.
	Failures []ExpectedFailure `yaml:"failures,omitempty"`
}

// ExpectedFailure names one validation failure.
type ExpectedFailure struct {
	Node string `yaml:"node"`
	Code string `yaml:"code"`
}

// Assertion checks one property of the trace or the validation report.
type Assertion struct {
	// Type specifies the assertion type:
	//   - "state": Node ended in State
	//   - "completed_before": Before completed before After started running
	//   - "guarantee": Node hands (Attr, Field) to its consumers
	//   - "skipped": every node in Nodes was skipped
	Type string `yaml:"type"`

	Node  string       `yaml:"node,omitempty"`
	State engine.State `yaml:"state,omitempty"`

	Before string `yaml:"before,omitempty"`
	After  string `yaml:"after,omitempty"`

	Attr  string `yaml:"attr,omitempty"`
	Field string `yaml:"field,omitempty"`

	Nodes []string `yaml:"nodes,omitempty"`
}

// Assertion type constants.
const (
	AssertState           = "state"
	AssertCompletedBefore = "completed_before"
	AssertGuarantee       = "guarantee"
	AssertSkipped         = "skipped"
)

var knownStates = map[engine.State]bool{
	engine.StatePending:   true,
	engine.StateReady:     true,
	engine.StateRunning:   true,
	engine.StateCompleted: true,
	engine.StateFailed:    true,
	engine.StateSkipped:   true,
}

var knownCodes = map[string]bool{
	validator.CodeRequirementNotMet:   true,
	validator.CodeUnresolvedParameter: true,
	validator.CodeUnconnectedInput:    true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Relative paths in the scenario are resolved against its directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.resolvePaths(filepath.Dir(path))

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func (s *Scenario) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	s.Pipeline = resolve(s.Pipeline)
	s.OutputDir = resolve(s.OutputDir)
	for id, p := range s.Inputs {
		s.Inputs[id] = resolve(p)
	}
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Pipeline == "" {
		return fmt.Errorf("pipeline is required")
	}
	if _, err := os.Stat(s.Pipeline); os.IsNotExist(err) {
		return fmt.Errorf("pipeline file not found: %s", s.Pipeline)
	}

	for id, state := range s.Expect.States {
		if !knownStates[state] {
			return fmt.Errorf("expect.states[%s]: unknown state %q", id, state)
		}
	}
	for i, f := range s.Expect.Failures {
		if f.Node == "" {
			return fmt.Errorf("expect.failures[%d]: node is required", i)
		}
		if !knownCodes[f.Code] {
			return fmt.Errorf("expect.failures[%d]: unknown code %q", i, f.Code)
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
	case AssertState:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for state", index)
		}
		if !knownStates[a.State] {
			return fmt.Errorf("assertions[%d]: unknown state %q", index, a.State)
		}
	case AssertCompletedBefore:
		if a.Before == "" || a.After == "" {
			return fmt.Errorf("assertions[%d]: before and after are required for completed_before", index)
		}
	case AssertGuarantee:
		if a.Node == "" || a.Field == "" {
			return fmt.Errorf("assertions[%d]: node and field are required for guarantee", index)
		}
		if _, err := interaction.ParseAttribute(a.Attr); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertSkipped:
		if len(a.Nodes) == 0 {
			return fmt.Errorf("assertions[%d]: nodes list is required for skipped", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
