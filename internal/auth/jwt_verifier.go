package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"convtree/internal/domain"
)

// JWKSVerifier verifies tokens against keys fetched from a JWKS endpoint
type JWKSVerifier struct {
	jwks   keyfunc.Keyfunc
	roles  map[string]struct{}
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewJWKSVerifier fetches and caches the key set at jwksURL. When roles is
// non-empty, tokens must carry one of them in their role claim.
func NewJWKSVerifier(jwksURL string, logger *slog.Logger, roles ...string) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create JWKS client: %w", err)
	}

	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)
	return &JWKSVerifier{jwks: jwks, roles: allowed, cancel: cancel, logger: logger}, nil
}

// NewKeyfuncVerifier builds a verifier over an existing keyfunc, mainly for tests
func NewKeyfuncVerifier(jwks keyfunc.Keyfunc, logger *slog.Logger) *JWKSVerifier {
	return &JWKSVerifier{jwks: jwks, roles: map[string]struct{}{}, cancel: func() {}, logger: logger}
}

// VerifyToken validates signature, expiry, algorithm, subject and role
func (v *JWKSVerifier) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.jwks.Keyfunc,
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		v.logger.Debug("token parse failed", "error", err)
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, domain.ErrUnauthorized
	}

	if len(v.roles) > 0 {
		if _, ok := v.roles[claims.Role]; !ok {
			v.logger.Warn("token has unexpected role", "role", claims.Role, "owner_id", claims.Subject)
			return nil, domain.ErrUnauthorized
		}
	}

	return claims, nil
}

// Close stops the background JWKS refresh
func (v *JWKSVerifier) Close() error {
	v.cancel()
	return nil
}
