package contract

import (
	xerrors "github.com/danielpatrickdp/agency-engine/internal/errors"
	"github.com/danielpatrickdp/agency-engine/internal/tier"
)

// #region registry

// Registry is the static lookup table from action type to contract.
// An action type absent from the table is denied: the registry fails closed.
type Registry struct {
	contracts map[string]Contract
}

// NewRegistry builds a registry from a contract list. Later entries replace
// earlier ones with the same action type.
func NewRegistry(contracts []Contract) *Registry {
	m := make(map[string]Contract, len(contracts))
	for _, c := range contracts {
		m[c.ActionType] = c
	}
	return &Registry{contracts: m}
}

// DefaultRegistry returns the built-in capability table.
func DefaultRegistry() *Registry {
	return NewRegistry([]Contract{
		{ActionType: "read_resource", MinimumTier: tier.Tier0, DryRunSupported: false, RollbackStrategy: RollbackNone},
		{ActionType: "draft_message", MinimumTier: tier.Tier1, SandboxScope: "drafts", DryRunSupported: true, RollbackStrategy: RollbackDiscard},
		{ActionType: "file_write", MinimumTier: tier.Tier2, SandboxScope: "workspace", DryRunSupported: true, RollbackStrategy: RollbackRevert},
		{ActionType: "file_delete", MinimumTier: tier.Tier2, SandboxScope: "workspace", DryRunSupported: true, RollbackStrategy: RollbackRevert},
		{ActionType: "calendar_write", MinimumTier: tier.Tier2, SandboxScope: "calendar", DryRunSupported: true, RollbackStrategy: RollbackRevert},
		{ActionType: "send_message", MinimumTier: tier.Tier3, DryRunSupported: true, RollbackStrategy: RollbackNone},
		{ActionType: "run_script", MinimumTier: tier.Tier3, SandboxScope: "workspace/scripts", DryRunSupported: true, RollbackStrategy: RollbackRevert},
	})
}

// Lookup resolves an action type to its contract. Unknown action types
// return UNKNOWN_ACTION.
func (r *Registry) Lookup(actionType string) (Contract, error) {
	c, ok := r.contracts[actionType]
	if !ok {
		return Contract{}, xerrors.Newf(xerrors.CodeUnknownAction, "no contract registered for action type %q", actionType)
	}
	return c, nil
}

// CapabilitiesFor filters the table down to contracts reachable at the
// given tier.
func (r *Registry) CapabilitiesFor(t tier.Tier) []Contract {
	var out []Contract
	for _, c := range r.contracts {
		if c.MinimumTier <= t {
			out = append(out, c)
		}
	}
	return out
}

// All returns every registered contract.
func (r *Registry) All() []Contract {
	out := make([]Contract, 0, len(r.contracts))
	for _, c := range r.contracts {
		out = append(out, c)
	}
	return out
}

// #endregion registry
