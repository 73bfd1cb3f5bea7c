package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the token claims convtree reads. The subject is the workspace owner.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// OwnerID returns the workspace owner named by the token
func (c *Claims) OwnerID() string {
	return c.Subject
}

// Verifier validates bearer tokens
type Verifier interface {
	// VerifyToken validates a token string and returns its claims
	VerifyToken(tokenString string) (*Claims, error)

	// Close releases any resources held by the verifier
	Close() error
}
