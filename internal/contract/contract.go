package contract

import (
	"path"
	"strings"

	"github.com/danielpatrickdp/agency-engine/internal/tier"
)

// #region strategy

// RollbackStrategy names how a completed action can be undone.
type RollbackStrategy string

const (
	RollbackNone    RollbackStrategy = "none"
	RollbackRevert  RollbackStrategy = "revert_snapshot"
	RollbackDiscard RollbackStrategy = "discard_draft"
)

// #endregion strategy

// #region contract

// Contract is a static policy entry binding an action type to its minimum
// tier, sandbox scope, and recovery policy.
type Contract struct {
	ActionType       string
	MinimumTier      tier.Tier
	SandboxScope     string // resource-path prefix, "" = unscoped
	DryRunSupported  bool
	RollbackStrategy RollbackStrategy
}

// Reversible reports whether this contract requires a pre-action snapshot.
// A reversible-required action is never executed without a recorded
// rollback point.
func (c Contract) Reversible() bool {
	return c.RollbackStrategy != RollbackNone
}

// InScope checks the sandbox boundary. Paths are cleaned before comparison
// so a "../" segment cannot step outside the scope. Sandboxing is
// defense-in-depth independent of trust: callers apply it regardless of
// tier or override.
func (c Contract) InScope(resource string) bool {
	if c.SandboxScope == "" {
		return true
	}
	scope := path.Clean(c.SandboxScope)
	res := path.Clean(resource)
	if strings.HasPrefix(res, "../") || res == ".." {
		return false
	}
	return res == scope || strings.HasPrefix(res, scope+"/")
}

// #endregion contract
