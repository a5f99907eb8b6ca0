package allergy

import (
	"errors"
	"strings"

	"github.com/samber/lo"

	"github.com/jwalitptl/nursing-api/internal/model"
)

var (
	ErrOverrideRoleNotAuthorized = errors.New("role is not authorized to override an allergy block")
	ErrOverrideReasonRequired    = errors.New("override reason is required")
)

// Policy decides who may bypass a blocked verdict.
type Policy struct {
	OverrideRoles []model.Role
}

func DefaultPolicy() Policy {
	return Policy{OverrideRoles: []model.Role{model.RolePhysician, model.RoleAdmin}}
}

func (p Policy) CanOverride(role model.Role) bool {
	return lo.Contains(p.OverrideRoles, role)
}

// AuthorizeOverride reports whether role may bypass result with reason.
// Results that are not blocked need no override and always pass.
func (p Policy) AuthorizeOverride(result Result, role model.Role, reason string) error {
	if result.Verdict != VerdictBlocked {
		return nil
	}
	if !p.CanOverride(role) {
		return ErrOverrideRoleNotAuthorized
	}
	if strings.TrimSpace(reason) == "" {
		return ErrOverrideReasonRequired
	}
	return nil
}

// Gate is what the caller must do next with a medication attempt.
type Gate int

const (
	GateProceed Gate = iota
	GatePendingConfirmation
	GatePendingOverride
	GateOverrideRejected
)

func (g Gate) String() string {
	switch g {
	case GatePendingConfirmation:
		return "pending_confirmation"
	case GatePendingOverride:
		return "pending_override"
	case GateOverrideRejected:
		return "override_rejected"
	default:
		return "proceed"
	}
}

func (g Gate) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// Override is an explicit request to bypass a block.
type Override struct {
	Role   model.Role
	Reason string
}

// Resolution carries the caller's answer to a previous pending gate.
type Resolution struct {
	Confirmed bool
	Override  *Override
}

type Decision struct {
	Gate       Gate
	Overridden bool
	Err        error
}

// Resolve combines a check result with the caller's resolution. A warning
// proceeds once confirmed; a block proceeds only through an authorized
// override.
func (p Policy) Resolve(result Result, res Resolution) Decision {
	switch result.Verdict {
	case VerdictBlocked:
		if res.Override == nil {
			return Decision{Gate: GatePendingOverride}
		}
		if err := p.AuthorizeOverride(result, res.Override.Role, res.Override.Reason); err != nil {
			return Decision{Gate: GateOverrideRejected, Err: err}
		}
		return Decision{Gate: GateProceed, Overridden: true}
	case VerdictWarnAndConfirm:
		if res.Confirmed || res.Override != nil {
			return Decision{Gate: GateProceed}
		}
		return Decision{Gate: GatePendingConfirmation}
	default:
		return Decision{Gate: GateProceed}
	}
}
