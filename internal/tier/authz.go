package tier

import (
	"fmt"

	xerrors "github.com/danielpatrickdp/agency-engine/internal/errors"
)

// #region outcome

// Outcome tags the authorization result. Modeled as a variant rather than a
// boolean so an override can never be a silent flag.
type Outcome string

const (
	OutcomeGranted    Outcome = "granted"
	OutcomeDenied     Outcome = "denied"
	OutcomeOverridden Outcome = "overridden"
)

// Authorization is the tagged authorization verdict for one request.
type Authorization struct {
	Outcome Outcome
	Tier    Tier         // tier resolved at decision time
	Code    xerrors.Code // set when denied
	Reason  string       // grant note, denial reason, or override justification
}

// Allowed reports whether the action may proceed.
func (a Authorization) Allowed() bool {
	return a.Outcome == OutcomeGranted || a.Outcome == OutcomeOverridden
}

// #endregion outcome

// #region authorize

// Authorize gates a request against the contract's minimum tier.
//
// elasticGrace lowers the effective bar by exactly one tier while an elastic
// window is open; it never reaches past an adjacent tier and never touches
// sandbox enforcement. An advisory override requires a non-empty
// justification and always produces the Overridden variant so the escape
// hatch stays visible in the audit log.
func Authorize(resolved, minimum Tier, override string, elasticGrace bool) Authorization {
	if resolved >= minimum {
		return Authorization{
			Outcome: OutcomeGranted,
			Tier:    resolved,
			Reason:  fmt.Sprintf("tier %s meets minimum %s", resolved, minimum),
		}
	}

	if elasticGrace && resolved+1 >= minimum {
		return Authorization{
			Outcome: OutcomeGranted,
			Tier:    resolved,
			Reason:  fmt.Sprintf("tier %s below minimum %s, granted under elastic grace", resolved, minimum),
		}
	}

	if override != "" {
		return Authorization{
			Outcome: OutcomeOverridden,
			Tier:    resolved,
			Reason:  override,
		}
	}

	return Authorization{
		Outcome: OutcomeDenied,
		Tier:    resolved,
		Code:    xerrors.CodeInsufficientTrust,
		Reason:  fmt.Sprintf("tier %s below minimum %s", resolved, minimum),
	}
}

// #endregion authorize
