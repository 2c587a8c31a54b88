package auth

import (
	"errors"

	"github.com/MarcoPoloResearchLab/remarks/internal/apperr"
)

var (
	errCredentialNotConfigured = errors.New("credential not configured")
	errCredentialRejected      = errors.New("credential rejected")
)

// Require checks credential against authorizer and maps the decision onto the error taxonomy.
// A nil authorizer behaves as an unconfigured one.
func Require(authorizer Authorizer, role Role, credential, operation string) error {
	decision := Unconfigured()
	if authorizer != nil {
		decision = authorizer.Authorize(credential)
	}
	switch {
	case decision.Allows(role):
		return nil
	case decision.Outcome == OutcomeUnconfigured:
		return apperr.New(apperr.KindNotConfigured, operation, string(role)+"_credential_not_configured", errCredentialNotConfigured)
	default:
		return apperr.New(apperr.KindUnauthorized, operation, "unauthorized", errCredentialRejected)
	}
}
