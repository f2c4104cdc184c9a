package replay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/danielpatrickdp/agency-engine/internal/audit"
	"github.com/danielpatrickdp/agency-engine/internal/backend"
	"github.com/danielpatrickdp/agency-engine/internal/cipher"
	"github.com/danielpatrickdp/agency-engine/internal/contract"
	xerrors "github.com/danielpatrickdp/agency-engine/internal/errors"
	"github.com/danielpatrickdp/agency-engine/internal/events"
	"github.com/danielpatrickdp/agency-engine/internal/lifecycle"
	"github.com/danielpatrickdp/agency-engine/internal/relstate"
	"github.com/danielpatrickdp/agency-engine/internal/safetynet"
	"github.com/danielpatrickdp/agency-engine/internal/tier"
)

// #region types

// Result captures the outcome of replaying one step.
type Result struct {
	StepID   string
	ActionID string
	Status   lifecycle.Status
	DenyCode xerrors.Code
	Output   string
	Reason   string

	// Expectation comparison; Match is true when no expectation was given.
	Expected FixtureExpectedResult
	Match    bool
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalSteps int
	Completed  int
	Denied     int
	DryRuns    int
	Failed     int
	RolledBack int
	Mismatches int
	FinalState relstate.StateRecord
	FinalTier  tier.Tier
}

// #endregion types

// #region run

// Run replays a fixture through a throwaway engine: memory resource store,
// scripted backend, scratch SQLite database. Nothing touches the caller's
// data directory.
func Run(fixture *Fixture) ([]Result, Summary, error) {
	dir, err := os.MkdirTemp("", "agency-replay-*")
	if err != nil {
		return nil, Summary{}, fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	store, err := relstate.NewStore(filepath.Join(dir, "replay.db"))
	if err != nil {
		return nil, Summary{}, err
	}
	defer store.Close()

	writer, err := relstate.NewWriter(store, tier.DefaultLadder(), events.NopBus{}, relstate.DefaultWriterConfig())
	if err != nil {
		return nil, Summary{}, err
	}

	auditLog, err := audit.NewLog(store.DB())
	if err != nil {
		return nil, Summary{}, err
	}
	reqStore, err := lifecycle.NewStore(store.DB())
	if err != nil {
		return nil, Summary{}, err
	}
	c, err := cipher.Load(filepath.Join(dir, ".snapshot_key"))
	if err != nil {
		return nil, Summary{}, err
	}

	resources := backend.NewMemoryResourceStore()
	for res, content := range fixture.Resources {
		if err := resources.Write(res, []byte(content)); err != nil {
			return nil, Summary{}, fmt.Errorf("seed resource %s: %w", res, err)
		}
	}
	scripted := backend.NewScriptedBackend(resources)

	net, err := safetynet.NewNet(store.DB(), resources, c, time.Hour)
	if err != nil {
		return nil, Summary{}, err
	}

	manager := lifecycle.NewManager(reqStore, auditLog, writer, contract.DefaultRegistry(),
		net, scripted, events.NopBus{}, lifecycle.DefaultManagerConfig())

	// Seed the relational state.
	cur := writer.Snapshot()
	_, err = writer.Apply(relstate.Event{
		TrustDelta:  fixture.StartState.Trust - cur.Trust,
		WarmthDelta: fixture.StartState.Warmth - cur.Warmth,
		Reason:      "replay start state",
	})
	if err != nil {
		return nil, Summary{}, fmt.Errorf("seed start state: %w", err)
	}
	if fixture.StartState.ElasticMinutes > 0 {
		d := time.Duration(fixture.StartState.ElasticMinutes) * time.Minute
		if _, err := writer.EnterElastic(d, "replay start state"); err != nil {
			return nil, Summary{}, fmt.Errorf("seed elastic window: %w", err)
		}
	}

	results := make([]Result, 0, len(fixture.Steps))
	actionIDs := make(map[string]string) // step ID -> action ID

	for _, step := range fixture.Steps {
		r := runStep(manager, scripted, actionIDs, step)
		if expected, ok := fixture.expectedFor(step.StepID); ok {
			r.Expected = expected
			r.Match = string(r.Status) == expected.Status &&
				(expected.DenyCode == "" || string(r.DenyCode) == expected.DenyCode)
		} else {
			r.Match = true
		}
		results = append(results, r)
	}

	return results, Summarize(results, writer), nil
}

func runStep(manager *lifecycle.Manager, scripted *backend.ScriptedBackend, actionIDs map[string]string, step FixtureStep) Result {
	r := Result{StepID: step.StepID}

	if step.Rollback != "" {
		actionID, ok := actionIDs[step.Rollback]
		if !ok {
			r.Status = lifecycle.StatusFailed
			r.Reason = fmt.Sprintf("rollback target %q not found", step.Rollback)
			return r
		}
		_, err := manager.Rollback(context.Background(), actionID, "replay rollback")
		if err != nil {
			r.DenyCode = xerrors.CodeOf(err)
			r.Reason = err.Error()
		}
		req, getErr := manager.Get(actionID)
		if getErr == nil {
			r.Status = req.Status
		}
		r.ActionID = actionID
		return r
	}

	if step.FailExecute != "" {
		scripted.FailResource(step.Resource, errors.New(step.FailExecute))
	}

	ctx := context.Background()
	if step.Cancel {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		ctx = canceled
	}

	req, err := manager.Request(ctx, step.ToRequestInput())
	r.ActionID = req.ID
	r.Status = req.Status
	r.Output = req.Output
	if err != nil {
		r.DenyCode = xerrors.CodeOf(err)
		r.Reason = err.Error()
	}
	actionIDs[step.StepID] = req.ID
	return r
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result, writer *relstate.Writer) Summary {
	s := Summary{
		TotalSteps: len(results),
		FinalState: writer.Snapshot(),
		FinalTier:  writer.Tier(),
	}
	for _, r := range results {
		switch r.Status {
		case lifecycle.StatusCompleted:
			s.Completed++
		case lifecycle.StatusDenied:
			s.Denied++
		case lifecycle.StatusDryRun:
			s.DryRuns++
		case lifecycle.StatusFailed:
			s.Failed++
		case lifecycle.StatusRolledBack:
			s.RolledBack++
		}
		if !r.Match {
			s.Mismatches++
		}
	}
	return s
}

// #endregion run
