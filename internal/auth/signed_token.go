package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultServiceTokenIssuer = "remarks-internal"

var (
	ErrMissingTokenSigningKey = errors.New("signed token authorizer: signing key required")
	ErrMissingToken           = errors.New("signed token authorizer: token required")
	ErrInvalidToken           = errors.New("signed token authorizer: invalid token")
	ErrExpiredToken           = errors.New("signed token authorizer: token expired")
	ErrMissingTokenSubject    = errors.New("signed token authorizer: subject required")
)

// ServiceClaims is the JWT payload presented by trusted internal callers.
type ServiceClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims list role.
func (c ServiceClaims) HasRole(role Role) bool {
	for _, candidate := range c.Roles {
		if strings.EqualFold(strings.TrimSpace(candidate), string(role)) {
			return true
		}
	}
	return false
}

// SignedTokenConfig describes how to validate HS256 service tokens.
type SignedTokenConfig struct {
	SigningSecret []byte
	Issuer        string
	Role          Role
	Clock         func() time.Time
}

// SignedTokenAuthorizer grants its role to callers presenting a valid HS256 JWT listing that role.
type SignedTokenAuthorizer struct {
	signingSecret []byte
	issuer        string
	role          Role
	clock         func() time.Time
}

// NewSignedTokenAuthorizer constructs the authorizer. An empty signing secret is rejected;
// callers that have no secret configured should omit the authorizer instead.
func NewSignedTokenAuthorizer(cfg SignedTokenConfig) (*SignedTokenAuthorizer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingTokenSigningKey
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultServiceTokenIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	role := cfg.Role
	if role == "" {
		role = RoleService
	}
	return &SignedTokenAuthorizer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		role:          role,
		clock:         clock,
	}, nil
}

// Authorize implements Authorizer.
func (a *SignedTokenAuthorizer) Authorize(credential string) Decision {
	if a == nil || len(a.signingSecret) == 0 {
		return Unconfigured()
	}
	claims, err := a.ValidateToken(credential)
	if err != nil || !claims.HasRole(a.role) {
		return Denied()
	}
	return Granted(a.role)
}

// ValidateToken parses the supplied JWT and returns its claims.
func (a *SignedTokenAuthorizer) ValidateToken(tokenString string) (ServiceClaims, error) {
	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tokenString), "Bearer "))
	if token == "" {
		return ServiceClaims{}, ErrMissingToken
	}

	claims := &ServiceClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidToken, t.Method.Alg())
			}
			return a.signingSecret, nil
		},
		jwt.WithTimeFunc(a.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ServiceClaims{}, ErrExpiredToken
		}
		return ServiceClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return ServiceClaims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return ServiceClaims{}, ErrMissingTokenSubject
	}
	return *claims, nil
}
