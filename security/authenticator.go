package security

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pitabwire/translation-manager/config"
)

var (
	// ErrNoSigningSecret is returned when token verification is attempted without a configured secret.
	ErrNoSigningSecret = errors.New("no jwt signing secret configured")
	// ErrInvalidToken is returned when a token parses but is not valid.
	ErrInvalidToken = errors.New("supplied token was invalid")
)

type Authenticator interface {
	Authenticate(ctx context.Context, jwtToken string) (context.Context, error)
}

type hmacAuthenticator struct {
	cfg config.ConfigurationJWTVerification
}

// NewAuthenticator verifies HS256 signed tokens against the configured shared secret,
// enforcing issuer and audience when those are set.
func NewAuthenticator(cfg config.ConfigurationJWTVerification) Authenticator {
	return &hmacAuthenticator{cfg: cfg}
}

func (a *hmacAuthenticator) Authenticate(ctx context.Context, jwtToken string) (context.Context, error) {
	secret := a.cfg.GetJWTSecret()
	if secret == "" {
		return ctx, ErrNoSigningSecret
	}

	parseOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}

	if audience := a.cfg.GetVerificationAudience(); audience != "" {
		parseOptions = append(parseOptions, jwt.WithAudience(audience))
	}

	if issuer := a.cfg.GetVerificationIssuer(); issuer != "" {
		parseOptions = append(parseOptions, jwt.WithIssuer(issuer))
	}

	claims := &AuthenticationClaims{}

	token, err := jwt.ParseWithClaims(jwtToken, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, parseOptions...)
	if err != nil {
		return ctx, fmt.Errorf("could not verify token: %w", err)
	}

	if !token.Valid {
		return ctx, ErrInvalidToken
	}

	ctx = JwtToContext(ctx, jwtToken)
	ctx = claims.ClaimsToContext(ctx)

	return ctx, nil
}
