package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/quick-flayer-api/internal/config"
	"github.com/redmonkez12/quick-flayer-api/internal/user"
)

const otherKey = "fedcba9876543210fedcba9876543210"

func tokenServices(t *testing.T, key string, d time.Duration) map[string]TokenService {
	t.Helper()

	p, err := NewPasetoService([]byte(key), d)
	require.NoError(t, err)
	j, err := NewJWTService([]byte(key), d)
	require.NoError(t, err)

	return map[string]TokenService{"paseto": p, "jwt": j}
}

func TestTokenService_RoundTrip(t *testing.T) {
	for name, svc := range tokenServices(t, testKey, time.Hour) {
		t.Run(name, func(t *testing.T) {
			id := uuid.New()
			before := time.Now().Add(-time.Second)

			token, err := svc.CreateToken(id, "ada@example.com", user.RoleAdmin)
			require.NoError(t, err)

			claims, err := svc.VerifyToken(token)
			require.NoError(t, err)

			assert.Equal(t, id, claims.Subject)
			assert.Equal(t, "ada@example.com", claims.Email)
			assert.Equal(t, user.RoleAdmin, claims.Role)
			assert.True(t, claims.IssuedAt.After(before))
			assert.WithinDuration(t, claims.IssuedAt.Add(time.Hour), claims.ExpiresAt, time.Second)
		})
	}
}

func TestTokenService_RejectsExpired(t *testing.T) {
	for name, svc := range tokenServices(t, testKey, -time.Minute) {
		t.Run(name, func(t *testing.T) {
			token, err := svc.CreateToken(uuid.New(), "a@example.com", user.RoleUser)
			require.NoError(t, err)

			_, err = svc.VerifyToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenService_RejectsOtherKey(t *testing.T) {
	signers := tokenServices(t, testKey, time.Hour)
	verifiers := tokenServices(t, otherKey, time.Hour)

	for name, signer := range signers {
		t.Run(name, func(t *testing.T) {
			token, err := signer.CreateToken(uuid.New(), "a@example.com", user.RoleUser)
			require.NoError(t, err)

			_, err = verifiers[name].VerifyToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenService_RejectsTamperingAndGarbage(t *testing.T) {
	for name, svc := range tokenServices(t, testKey, time.Hour) {
		t.Run(name, func(t *testing.T) {
			token, err := svc.CreateToken(uuid.New(), "a@example.com", user.RoleUser)
			require.NoError(t, err)

			// Flip a character in the middle of the token
			mid := len(token) / 2
			replacement := "A"
			if token[mid] == 'A' {
				replacement = "B"
			}
			tampered := token[:mid] + replacement + token[mid+1:]

			for _, bad := range []string{tampered, "", "not-a-token", strings.Repeat("x", 300)} {
				_, err := svc.VerifyToken(bad)
				assert.ErrorIs(t, err, ErrInvalidToken, "token %q", bad)
			}
		})
	}
}

func TestPasetoService_RejectsJWTAndViceVersa(t *testing.T) {
	svcs := tokenServices(t, testKey, time.Hour)

	pasetoToken, err := svcs["paseto"].CreateToken(uuid.New(), "a@example.com", user.RoleUser)
	require.NoError(t, err)
	jwtToken, err := svcs["jwt"].CreateToken(uuid.New(), "a@example.com", user.RoleUser)
	require.NoError(t, err)

	_, err = svcs["jwt"].VerifyToken(pasetoToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svcs["paseto"].VerifyToken(jwtToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsOtherAlgorithms(t *testing.T) {
	svc, err := NewJWTService([]byte(testKey), time.Hour)
	require.NoError(t, err)

	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email: "a@example.com",
		Role:  user.RoleAdmin,
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testKey))
	require.NoError(t, err)
	_, err = svc.VerifyToken(hs512)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.VerifyToken(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsMissingClaims(t *testing.T) {
	svc, err := NewJWTService([]byte(testKey), time.Hour)
	require.NoError(t, err)

	now := time.Now()
	tests := []struct {
		name   string
		claims jwtClaims
	}{
		{
			name: "non-uuid subject",
			claims: jwtClaims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: "42", IssuedAt: jwt.NewNumericDate(now), ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
				Email:            "a@example.com",
				Role:             user.RoleUser,
			},
		},
		{
			name: "no expiry",
			claims: jwtClaims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString(), IssuedAt: jwt.NewNumericDate(now)},
				Email:            "a@example.com",
				Role:             user.RoleUser,
			},
		},
		{
			name: "no role",
			claims: jwtClaims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString(), IssuedAt: jwt.NewNumericDate(now), ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
				Email:            "a@example.com",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tt.claims).SignedString([]byte(testKey))
			require.NoError(t, err)

			_, err = svc.VerifyToken(signed)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewPasetoService_KeyLength(t *testing.T) {
	_, err := NewPasetoService([]byte("short"), time.Hour)
	assert.ErrorContains(t, err, "exactly 32 bytes")
}

func TestNewJWTService_SecretLength(t *testing.T) {
	_, err := NewJWTService([]byte("short"), time.Hour)
	assert.ErrorContains(t, err, "at least 32 bytes")
}

func TestNewTokenService_Strategy(t *testing.T) {
	cfg := config.AuthConfig{TokenKey: []byte(testKey), AccessTokenDuration: time.Hour}

	cfg.TokenStrategy = config.TokenStrategyPaseto
	svc, err := NewTokenService(cfg)
	require.NoError(t, err)
	assert.IsType(t, &PasetoService{}, svc)

	cfg.TokenStrategy = config.TokenStrategyJWT
	svc, err = NewTokenService(cfg)
	require.NoError(t, err)
	assert.IsType(t, &JWTService{}, svc)

	cfg.TokenStrategy = "saml"
	_, err = NewTokenService(cfg)
	assert.Error(t, err)
}
