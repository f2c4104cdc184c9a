package lifecycle

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/agency-engine/internal/audit"
	"github.com/danielpatrickdp/agency-engine/internal/backend"
	"github.com/danielpatrickdp/agency-engine/internal/contract"
	xerrors "github.com/danielpatrickdp/agency-engine/internal/errors"
	"github.com/danielpatrickdp/agency-engine/internal/events"
	"github.com/danielpatrickdp/agency-engine/internal/relstate"
	"github.com/danielpatrickdp/agency-engine/internal/safetynet"
	"github.com/danielpatrickdp/agency-engine/internal/tier"
)

// #region config

// ManagerConfig holds the relational feedback applied on completion.
type ManagerConfig struct {
	TrustOnComplete  float64
	WarmthOnComplete float64
}

// DefaultManagerConfig returns the standard feedback deltas.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		TrustOnComplete:  0.01,
		WarmthOnComplete: 0.005,
	}
}

// #endregion config

// #region manager

// Manager drives the action lifecycle: authorization, sandboxing,
// snapshotting, execution, and rollback. Every transition lands in the
// audit log before the manager reports it to the caller.
type Manager struct {
	store    *Store
	log      *audit.Log
	writer   *relstate.Writer
	registry *contract.Registry
	net      *safetynet.Net
	exec     backend.ExecutionBackend
	bus      events.Bus
	config   ManagerConfig

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex // per-resource execution locks
}

// NewManager wires the lifecycle manager.
func NewManager(
	store *Store,
	auditLog *audit.Log,
	writer *relstate.Writer,
	registry *contract.Registry,
	net *safetynet.Net,
	exec backend.ExecutionBackend,
	bus events.Bus,
	config ManagerConfig,
) *Manager {
	if bus == nil {
		bus = events.NopBus{}
	}
	return &Manager{
		store:    store,
		log:      auditLog,
		writer:   writer,
		registry: registry,
		net:      net,
		exec:     exec,
		bus:      bus,
		config:   config,
		locks:    make(map[string]*sync.Mutex),
	}
}

// #endregion manager

// #region request

// Request runs one action through the full gate sequence: structural
// validation, contract lookup, tier gate, sandbox check, optional dry run,
// pre-action snapshot, execution. Denials return synchronously with a
// taxonomy code and are audited like every other transition.
//
// The caller's ctx cancels the request only up to the snapshot commit
// point. After that the action runs to Completed or Failed and rollback is
// the recovery path.
func (m *Manager) Request(ctx context.Context, input RequestInput) (ActionRequest, error) {
	req := ActionRequest{
		ID:          uuid.New().String(),
		ActionType:  input.ActionType,
		Resource:    input.Resource,
		Parameters:  input.Parameters,
		RequestedBy: input.RequestedBy,
		RequestedAt: time.Now().UTC(),
		Status:      StatusRequested,
	}

	// Step 1: structural validation.
	if input.ActionType == "" || input.Resource == "" {
		req.Status = StatusDenied
		req.DenyCode = xerrors.CodeInvalidRequest
		req.StatusReason = "action type and resource are required"
		if err := m.store.Save(req); err != nil {
			return req, err
		}
		m.audit(req.ID, "requested -> denied", string(req.DenyCode), req.StatusReason)
		m.publishDenied(req)
		return req, xerrors.New(xerrors.CodeInvalidRequest, req.StatusReason)
	}

	if err := m.store.Save(req); err != nil {
		return req, err
	}
	m.audit(req.ID, "-> requested", "ok", fmt.Sprintf("%s %s", req.ActionType, req.Resource))

	// Step 2: contract lookup, fail closed.
	c, err := m.registry.Lookup(input.ActionType)
	if err != nil {
		return m.deny(req, xerrors.CodeOf(err), err.Error())
	}

	// Step 3: tier gate. An elastic window grants one tier of grace; an
	// advisory override needs a justification and stays visible in the log.
	resolved := m.writer.Tier()
	authz := tier.Authorize(resolved, c.MinimumTier, input.Override, m.writer.ElasticActive())
	if !authz.Allowed() {
		return m.deny(req, authz.Code, authz.Reason)
	}

	// Step 4: sandbox scope. Independent of tier and not overridable: a
	// fully trusted principal still cannot reach outside the scope.
	if !c.InScope(input.Resource) {
		return m.deny(req, xerrors.CodeOutOfSandbox,
			fmt.Sprintf("resource %q outside sandbox scope %q", input.Resource, c.SandboxScope))
	}

	action := backend.Action{
		ID:         req.ID,
		ActionType: req.ActionType,
		Resource:   req.Resource,
		Parameters: req.Parameters,
	}

	// Step 5: dry run. No lock, no snapshot, no Completed event.
	if input.DryRun {
		if !c.DryRunSupported {
			return m.deny(req, xerrors.CodeInvalidRequest,
				fmt.Sprintf("action type %q does not support dry run", req.ActionType))
		}
		result, err := m.exec.Preview(ctx, action)
		if err != nil {
			// A preview is side-effect-free, so a preview error is a
			// denial, not an execution failure.
			return m.deny(req, xerrors.CodeExecutionFailure,
				fmt.Sprintf("dry run preview failed: %v", err))
		}
		req.Status = StatusDryRun
		req.Output = result.Output
		if err := m.store.UpdateStatus(req.ID, StatusDryRun, "", authz.Reason, result.Output); err != nil {
			return req, err
		}
		m.audit(req.ID, "requested -> dry_run", "ok", result.Output)
		return req, nil
	}

	// The resource lock is held from here through the terminal audit
	// record, so overlapping requests on one resource serialize.
	unlock := m.lockResource(req.Resource)
	defer unlock()

	// Step 6: snapshot commit point. This is the last moment cancellation
	// is honored.
	if err := ctx.Err(); err != nil {
		return m.deny(req, xerrors.CodeCanceled, fmt.Sprintf("request withdrawn before snapshot: %v", err))
	}
	if c.Reversible() {
		_, err := m.net.PreActionCommit(req.ID, []string{req.Resource}, c.RollbackStrategy,
			fmt.Sprintf("%s %s", req.ActionType, req.Resource))
		if err != nil {
			return m.deny(req, xerrors.CodeSafetyNetUnavailable,
				fmt.Sprintf("cannot snapshot %s: %v", req.Resource, err))
		}
	}

	req.Status = StatusAuthorized
	req.StatusReason = authz.Reason
	if err := m.store.UpdateStatus(req.ID, StatusAuthorized, "", authz.Reason, ""); err != nil {
		return req, err
	}
	m.audit(req.ID, "requested -> authorized", string(authz.Outcome), authz.Reason)
	m.bus.Publish(events.Event{
		Type:       events.TypeAuthorized,
		ActionID:   req.ID,
		ActionType: req.ActionType,
		Resource:   req.Resource,
		Detail:     authz.Reason,
	})

	// Step 7: execute.
	req.Status = StatusExecuting
	if err := m.store.UpdateStatus(req.ID, StatusExecuting, "", authz.Reason, ""); err != nil {
		return req, err
	}
	m.audit(req.ID, "authorized -> executing", "ok", "")

	result, err := m.exec.Execute(ctx, action)
	if err != nil {
		// The snapshot stays: a failed execution may have partially
		// mutated the resource and remains rollback-eligible.
		return m.fail(req, "executing -> failed", err)
	}

	req.Status = StatusCompleted
	req.Output = result.Output
	if err := m.store.UpdateStatus(req.ID, StatusCompleted, "", authz.Reason, result.Output); err != nil {
		return req, err
	}
	m.audit(req.ID, "executing -> completed", "ok", result.Output)
	m.bus.Publish(events.Event{
		Type:       events.TypeCompleted,
		ActionID:   req.ID,
		ActionType: req.ActionType,
		Resource:   req.Resource,
		Detail:     result.Output,
	})

	// Completed actions feed the relationship back positively.
	if m.config.TrustOnComplete != 0 || m.config.WarmthOnComplete != 0 {
		_, err := m.writer.Apply(relstate.Event{
			TrustDelta:  m.config.TrustOnComplete,
			WarmthDelta: m.config.WarmthOnComplete,
			Reason:      fmt.Sprintf("completed %s %s", req.ActionType, req.Resource),
		})
		if err != nil {
			log.Printf("[LIFECYCLE] completion feedback failed: %v", err)
		}
	}

	return req, nil
}

// #endregion request

// #region rollback

// Rollback undoes a completed or failed action through the safety net,
// flips the request to RolledBack, and audits the transition. A refused
// rollback is audited too; the status stays where it was.
func (m *Manager) Rollback(ctx context.Context, actionID, reason string) (safetynet.RollbackResult, error) {
	req, err := m.store.Get(actionID)
	if err != nil {
		return safetynet.RollbackResult{}, err
	}

	if err := ctx.Err(); err != nil {
		coded := xerrors.Wrap(xerrors.CodeCanceled, "rollback request withdrawn", err)
		m.refuseRollback(req, coded)
		return safetynet.RollbackResult{}, coded
	}

	switch req.Status {
	case StatusCompleted, StatusFailed:
		// eligible
	case StatusRolledBack:
		coded := xerrors.Newf(xerrors.CodeAlreadyRolledBack, "action %s already rolled back", actionID)
		m.refuseRollback(req, coded)
		return safetynet.RollbackResult{ActionID: actionID, AlreadyRolledBack: true}, coded
	default:
		coded := xerrors.Newf(xerrors.CodeNotRollbackable, "action %s in status %s cannot be rolled back", actionID, req.Status)
		m.refuseRollback(req, coded)
		return safetynet.RollbackResult{}, coded
	}

	unlock := m.lockResource(req.Resource)
	defer unlock()

	result, err := m.net.Rollback(actionID)
	if err != nil {
		m.refuseRollback(req, err)
		return result, err
	}

	if err := m.store.UpdateStatus(actionID, StatusRolledBack, "", reason, req.Output); err != nil {
		return result, err
	}
	m.audit(actionID, fmt.Sprintf("%s -> rolled_back", req.Status), "ok", reason)
	m.bus.Publish(events.Event{
		Type:       events.TypeRolledBack,
		ActionID:   actionID,
		ActionType: req.ActionType,
		Resource:   req.Resource,
		Detail:     reason,
	})
	return result, nil
}

// #endregion rollback

// #region queries

// Get loads one request by id.
func (m *Manager) Get(actionID string) (ActionRequest, error) {
	return m.store.Get(actionID)
}

// ListRange returns requests submitted within [from, to).
func (m *Manager) ListRange(from, to time.Time) ([]ActionRequest, error) {
	return m.store.ListRange(from, to)
}

// AuditTrail returns the audit entries for one action, oldest first.
func (m *Manager) AuditTrail(actionID string) ([]audit.Entry, error) {
	return m.log.ListByAction(actionID)
}

// #endregion queries

// #region internals

// deny flips the request to Denied, audits, publishes, and returns the
// coded error.
func (m *Manager) deny(req ActionRequest, code xerrors.Code, reason string) (ActionRequest, error) {
	req.Status = StatusDenied
	req.DenyCode = code
	req.StatusReason = reason
	if err := m.store.UpdateStatus(req.ID, StatusDenied, code, reason, ""); err != nil {
		return req, err
	}
	m.audit(req.ID, "requested -> denied", string(code), reason)
	m.publishDenied(req)
	return req, xerrors.New(code, reason)
}

// fail flips the request to Failed, keeping rollback eligibility.
func (m *Manager) fail(req ActionRequest, transition string, cause error) (ActionRequest, error) {
	code := xerrors.CodeOf(cause)
	if code == "" {
		code = xerrors.CodeExecutionFailure
	}
	req.Status = StatusFailed
	req.DenyCode = code
	req.StatusReason = cause.Error()
	if err := m.store.UpdateStatus(req.ID, StatusFailed, code, cause.Error(), ""); err != nil {
		return req, err
	}
	m.audit(req.ID, transition, string(code), cause.Error())
	return req, xerrors.Wrap(code, fmt.Sprintf("execute %s %s", req.ActionType, req.Resource), cause)
}

// refuseRollback records a turned-away rollback in the audit trail. The
// status does not move, so the transition is recorded as status -> status.
func (m *Manager) refuseRollback(req ActionRequest, cause error) {
	m.audit(req.ID, fmt.Sprintf("%s -> %s", req.Status, req.Status), string(xerrors.CodeOf(cause)),
		fmt.Sprintf("rollback refused: %v", cause))
}

func (m *Manager) publishDenied(req ActionRequest) {
	m.bus.Publish(events.Event{
		Type:       events.TypeDenied,
		ActionID:   req.ID,
		ActionType: req.ActionType,
		Resource:   req.Resource,
		Detail:     fmt.Sprintf("%s: %s", req.DenyCode, req.StatusReason),
	})
}

func (m *Manager) audit(actionID, transition, cause, detail string) {
	err := m.log.Append(audit.Entry{
		ActionID:   actionID,
		Transition: transition,
		Cause:      cause,
		Detail:     detail,
	})
	if err != nil {
		log.Printf("[LIFECYCLE] audit append failed: %v", err)
	}
}

// lockResource acquires the per-resource mutex, creating it on first use.
func (m *Manager) lockResource(resource string) func() {
	m.locksMu.Lock()
	l, ok := m.locks[resource]
	if !ok {
		l = &sync.Mutex{}
		m.locks[resource] = l
	}
	m.locksMu.Unlock()
	l.Lock()
	return l.Unlock
}

// #endregion internals
