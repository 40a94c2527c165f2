package security

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

func (c contextKey) String() string {
	return "translation-manager/security/" + string(c)
}

const ctxKeyAuthenticationClaim = contextKey("authenticationClaimKey")
const ctxKeyAuthenticationJwt = contextKey("authenticationJwtKey")

// JwtToContext adds authentication jwt to the current supplied context.
func JwtToContext(ctx context.Context, jwt string) context.Context {
	return context.WithValue(ctx, ctxKeyAuthenticationJwt, jwt)
}

// JwtFromContext extracts authentication jwt from the supplied context if any exist.
func JwtFromContext(ctx context.Context) string {
	jwtString, ok := ctx.Value(ctxKeyAuthenticationJwt).(string)
	if !ok {
		return ""
	}

	return jwtString
}

// AuthenticationClaims are the claims accepted on a bearer token guarding the
// translation manager routes.
type AuthenticationClaims struct {
	Ext   map[string]any `json:"ext,omitempty"`
	Name  string         `json:"name,omitempty"`
	Email string         `json:"email,omitempty"`
	Roles []string       `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

func (a *AuthenticationClaims) GetProfileID() string {
	result, _ := a.GetSubject()

	return result
}

func (a *AuthenticationClaims) GetRoles() []string {
	var result = a.Roles
	if len(result) > 0 {
		return result
	}

	roles, ok := a.Ext["roles"]
	if !ok {
		roles, ok = a.Ext["role"]
		if !ok {
			return result
		}
	}

	switch v := roles.(type) {
	case string:
		result = append(result, strings.Split(v, ",")...)
	case []any:
		for _, r := range v {
			if s, isStr := r.(string); isStr {
				result = append(result, s)
			}
		}
	}

	return result
}

// HasRole reports whether the claims carry the named role.
func (a *AuthenticationClaims) HasRole(role string) bool {
	for _, r := range a.GetRoles() {
		if strings.TrimSpace(r) == role {
			return true
		}
	}

	return false
}

// ClaimsToContext adds authentication claims to the current supplied context.
func (a *AuthenticationClaims) ClaimsToContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyAuthenticationClaim, a)
}

// ClaimsFromContext extracts authentication claims from the supplied context if any exist.
func ClaimsFromContext(ctx context.Context) *AuthenticationClaims {
	authenticationClaims, ok := ctx.Value(ctxKeyAuthenticationClaim).(*AuthenticationClaims)
	if !ok {
		return nil
	}

	return authenticationClaims
}
