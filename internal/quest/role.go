package quest

import "fmt"

// Role is the creator variant of a wizard session. It is fixed for the
// lifetime of the session.
type Role string

const (
	RoleFounder   Role = "founder"
	RoleCommunity Role = "community"
)

// ParseRole parses a role name
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleFounder, RoleCommunity:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidValue, s)
	}
}

// roleVariant carries every rule that branches on the role. Each role has
// exactly one implementation, so a new role does not compile until all
// rules are written for it.
type roleVariant interface {
	// contractField is the contract input owned by the role
	contractField() Field
	// validateContract adds the CONTRACT step errors for the role
	validateContract(state *FormState, errs ValidationErrors)
}

type founderRole struct{}

func (founderRole) contractField() Field { return FieldContracts }

func (founderRole) validateContract(state *FormState, errs ValidationErrors) {
	if len(state.Contracts) == 0 {
		errs[FieldContracts] = "At least one contract is required"
	}
	if state.FunctionABI == "" {
		errs[FieldFunctionABI] = "Function ABI is required"
	}
}

type communityRole struct{}

func (communityRole) contractField() Field { return FieldContractAddress }

func (communityRole) validateContract(state *FormState, errs ValidationErrors) {
	if state.ContractAddress == "" {
		errs[FieldContractAddress] = "Contract address is required"
	}
	if state.FunctionABI == "" {
		errs[FieldFunctionABI] = "Function ABI is required"
	}
}

// variant resolves the rule set for the role
func (r Role) variant() (roleVariant, error) {
	switch r {
	case RoleFounder:
		return founderRole{}, nil
	case RoleCommunity:
		return communityRole{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidValue, string(r))
	}
}

// inactiveField returns the contract field the role must not populate
func (r Role) inactiveField() Field {
	switch r {
	case RoleFounder:
		return FieldContractAddress
	case RoleCommunity:
		return FieldContracts
	default:
		return ""
	}
}
