package auth

import (
	"crypto/subtle"
	"strings"
)

// Role names the privilege a credential grants.
type Role string

const (
	// RoleModerator may change moderation status and delete any record.
	RoleModerator Role = "moderator"
	// RoleService may perform bulk identity assignment on behalf of a trusted internal caller.
	RoleService Role = "service"
)

// Outcome enumerates authorization results.
type Outcome int

const (
	// OutcomeUnconfigured means no credential is configured for the role.
	OutcomeUnconfigured Outcome = iota
	// OutcomeDenied means the presented credential is missing or wrong.
	OutcomeDenied
	// OutcomeGranted means the presented credential carries the role.
	OutcomeGranted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnconfigured:
		return "unconfigured"
	case OutcomeDenied:
		return "denied"
	case OutcomeGranted:
		return "granted"
	default:
		return "unknown"
	}
}

// Decision is the result of checking a credential.
type Decision struct {
	Outcome Outcome
	Role    Role
}

// Unconfigured returns the decision for a role with no configured credential.
func Unconfigured() Decision {
	return Decision{Outcome: OutcomeUnconfigured}
}

// Denied returns the decision for a rejected credential.
func Denied() Decision {
	return Decision{Outcome: OutcomeDenied}
}

// Granted returns the decision for an accepted credential.
func Granted(role Role) Decision {
	return Decision{Outcome: OutcomeGranted, Role: role}
}

// Allows reports whether the decision grants role.
func (d Decision) Allows(role Role) bool {
	return d.Outcome == OutcomeGranted && d.Role == role
}

// Authorizer checks a caller-presented credential.
type Authorizer interface {
	Authorize(credential string) Decision
}

// StaticKeyAuthorizer compares the credential with a configured shared key.
type StaticKeyAuthorizer struct {
	role Role
	key  []byte
}

// NewStaticKeyAuthorizer returns an authorizer granting role to callers presenting key.
// An empty key leaves the role unconfigured.
func NewStaticKeyAuthorizer(role Role, key string) *StaticKeyAuthorizer {
	return &StaticKeyAuthorizer{
		role: role,
		key:  []byte(strings.TrimSpace(key)),
	}
}

// Authorize implements Authorizer.
func (a *StaticKeyAuthorizer) Authorize(credential string) Decision {
	if a == nil || len(a.key) == 0 {
		return Unconfigured()
	}
	presented := strings.TrimSpace(credential)
	if presented == "" {
		return Denied()
	}
	if subtle.ConstantTimeCompare([]byte(presented), a.key) != 1 {
		return Denied()
	}
	return Granted(a.role)
}

// ChainAuthorizer grants when any member grants. It is unconfigured only when every member is.
type ChainAuthorizer struct {
	members []Authorizer
}

// NewChainAuthorizer combines authorizers; nil members are skipped.
func NewChainAuthorizer(members ...Authorizer) *ChainAuthorizer {
	filtered := make([]Authorizer, 0, len(members))
	for _, member := range members {
		if member != nil {
			filtered = append(filtered, member)
		}
	}
	return &ChainAuthorizer{members: filtered}
}

// Authorize implements Authorizer.
func (c *ChainAuthorizer) Authorize(credential string) Decision {
	result := Unconfigured()
	for _, member := range c.members {
		decision := member.Authorize(credential)
		switch decision.Outcome {
		case OutcomeGranted:
			return decision
		case OutcomeDenied:
			result = Denied()
		}
	}
	return result
}
