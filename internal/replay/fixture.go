package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/agency-engine/internal/lifecycle"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay scenario.
type Fixture struct {
	Description     string                  `json:"description"`
	StartState      FixtureStartState       `json:"start_state"`
	Resources       map[string]string       `json:"resources"` // resource path -> initial content
	Steps           []FixtureStep           `json:"steps"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureStartState seeds the relational state before the first step.
type FixtureStartState struct {
	Trust          float64 `json:"trust"`
	Warmth         float64 `json:"warmth"`
	ElasticMinutes int     `json:"elastic_minutes"` // 0 means no elastic window
}

// FixtureStep is one recorded action request.
type FixtureStep struct {
	StepID      string            `json:"step_id"`
	ActionType  string            `json:"action_type"`
	Resource    string            `json:"resource"`
	Parameters  map[string]string `json:"parameters"`
	DryRun      bool              `json:"dry_run"`
	Override    string            `json:"override"`
	Cancel      bool              `json:"cancel"`       // submit with an already-canceled context
	FailExecute string            `json:"fail_execute"` // non-empty injects a backend failure
	Rollback    string            `json:"rollback"`     // non-empty: roll back the named earlier step instead
}

// FixtureExpectedResult captures the expected terminal status per step.
type FixtureExpectedResult struct {
	StepID   string `json:"step_id"`
	Status   string `json:"status"`
	DenyCode string `json:"deny_code"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToRequestInput converts a fixture step to a lifecycle request.
func (s *FixtureStep) ToRequestInput() lifecycle.RequestInput {
	return lifecycle.RequestInput{
		ActionType:  s.ActionType,
		Resource:    s.Resource,
		Parameters:  s.Parameters,
		RequestedBy: "replay",
		DryRun:      s.DryRun,
		Override:    s.Override,
	}
}

// expectedFor finds the expectation for a step, if any.
func (f *Fixture) expectedFor(stepID string) (FixtureExpectedResult, bool) {
	for _, e := range f.ExpectedResults {
		if e.StepID == stepID {
			return e, true
		}
	}
	return FixtureExpectedResult{}, false
}

// #endregion fixture-loader
