package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/redmonkez12/quick-flayer-api/internal/logging"
	"github.com/redmonkez12/quick-flayer-api/internal/user"
)

// dummyPassword is hashed once and verified against when a login names an
// unknown email, so both failure paths do a full bcrypt comparison.
const dummyPassword = "quick-flayer-timing-equalizer"

// UserStore is the credential store the service depends on
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	Create(ctx context.Context, u *user.User) (*user.User, error)
}

// AuthResponse is returned by login and register
type AuthResponse struct {
	AccessToken string       `json:"accessToken"`
	User        user.Profile `json:"user"`
}

// RegisterInput carries the fields accepted by Register
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Service handles authentication business logic
type Service struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenService
	logger *logging.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewService(users UserStore, hasher PasswordHasher, tokens TokenService, logger *logging.Logger) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

// Login authenticates a user by email and password and issues an access token.
// Unknown email and wrong password fail identically.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.verifyDummy(ctx, password)
			return nil, errInvalidCredentials()
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "get user by email").Wrap(err)
	}

	ok, err := s.hasher.Verify(ctx, password, existingUser.PasswordHash)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "verify password").With("user_id", existingUser.ID).Wrap(err)
	}
	if !ok {
		return nil, errInvalidCredentials()
	}

	if !existingUser.IsActive {
		return nil, errAccountInactive()
	}

	return s.issue(existingUser)
}

// Register creates an active account with the default role and signs the new
// user in. An email that is already taken, including one taken concurrently
// between the lookup and the insert, is a Conflict.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResponse, error) {
	_, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, errEmailTaken()
	case !errors.Is(err, user.ErrNotFound):
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "get user by email").Wrap(err)
	}

	passwordHash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	created, err := s.users.Create(ctx, &user.User{
		Email:        in.Email,
		PasswordHash: passwordHash,
		Role:         user.RoleUser,
		IsActive:     true,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, errEmailTaken()
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "create user").Wrap(err)
	}

	s.logger.Info("user registered", "user_id", created.ID)

	return s.issue(created)
}

// GetProfile returns the sanitized profile of the user with the given id
func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*user.Profile, error) {
	existingUser, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, errUserNotFound()
		}
		return nil, oops.Code("AUTH_PROFILE_FAILED").With("user_id", id).Wrap(err)
	}

	profile := existingUser.Profile()
	return &profile, nil
}

// VerifyToken checks a token and returns its claims. Every failure is the
// same Unauthorized("Invalid token").
func (s *Service) VerifyToken(_ context.Context, token string) (*TokenClaims, error) {
	claims, err := s.tokens.VerifyToken(token)
	if err != nil {
		return nil, errTokenRejected()
	}
	return claims, nil
}

func (s *Service) issue(u *user.User) (*AuthResponse, error) {
	accessToken, err := s.tokens.CreateToken(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_FAILED").With("user_id", u.ID).Wrap(err)
	}

	return &AuthResponse{
		AccessToken: accessToken,
		User:        u.Profile(),
	}, nil
}

// verifyDummy burns one password comparison. Its result is irrelevant.
func (s *Service) verifyDummy(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		// Not bound to the request: a cancelled first caller must not leave it unset.
		hash, err := s.hasher.Hash(context.Background(), dummyPassword)
		if err != nil {
			s.logger.Warn("failed to prepare dummy password hash", "error", err.Error())
			return
		}
		s.dummyHash = hash
	})

	if s.dummyHash == "" {
		return
	}
	_, _ = s.hasher.Verify(ctx, password, s.dummyHash)
}
