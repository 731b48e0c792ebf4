package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/quick-flayer-api/internal/config"
	"github.com/redmonkez12/quick-flayer-api/internal/user"
)

// ErrInvalidToken is returned for every verification failure: malformed,
// expired, tampered, signed with another key, or missing a claim.
var ErrInvalidToken = errors.New("invalid token")

// TokenClaims is the verified content of an access token
type TokenClaims struct {
	Subject   uuid.UUID
	Email     string
	Role      user.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService issues and verifies self-contained access tokens
type TokenService interface {
	CreateToken(subject uuid.UUID, email string, role user.Role) (string, error)
	VerifyToken(token string) (*TokenClaims, error)
}

// NewTokenService builds the token service selected by cfg.TokenStrategy
func NewTokenService(cfg config.AuthConfig) (TokenService, error) {
	switch cfg.TokenStrategy {
	case config.TokenStrategyPaseto:
		return NewPasetoService(cfg.TokenKey, cfg.AccessTokenDuration)
	case config.TokenStrategyJWT:
		return NewJWTService(cfg.TokenKey, cfg.AccessTokenDuration)
	default:
		return nil, fmt.Errorf("unsupported token strategy %q", cfg.TokenStrategy)
	}
}
