package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/quick-flayer-api/internal/user"
)

func registerInput(email string) RegisterInput {
	return RegisterInput{
		Email:     email,
		Password:  "s3cret-password",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}
}

func TestService_RegisterThenLogin(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	reg, err := svc.Register(ctx, registerInput("ada@example.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, reg.AccessToken)
	assert.Equal(t, user.RoleUser, reg.User.Role)
	assert.True(t, reg.User.IsActive)
	assert.Equal(t, "Ada", reg.User.FirstName)

	stored, err := store.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-password", stored.PasswordHash)

	login, err := svc.Login(ctx, "ada@example.com", "s3cret-password")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	claims, err := svc.VerifyToken(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, user.RoleUser, claims.Role)
}

func TestService_AuthResponseNeverCarriesHash(t *testing.T) {
	svc := newTestService(t, newMemoryStore())

	resp, err := svc.Register(context.Background(), registerInput("hash@example.com"))
	require.NoError(t, err)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "passwordHash")
	assert.NotContains(t, string(body), "$2a$")
	assert.Contains(t, string(body), `"accessToken"`)
}

func TestService_LoginFailuresAreIndistinguishable(t *testing.T) {
	store := newMemoryStore()
	hasher := &countingHasher{PasswordHasher: testHasher()}
	svc := NewService(store, hasher, testTokens(t), testLogger())
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput("known@example.com"))
	require.NoError(t, err)

	_, unknownErr := svc.Login(ctx, "nobody@example.com", "whatever-password")
	_, wrongErr := svc.Login(ctx, "known@example.com", "wrong-password")

	require.Error(t, unknownErr)
	assert.Equal(t, unknownErr, wrongErr)
	assert.ErrorIs(t, unknownErr, ErrUnauthorized)
	assert.Equal(t, MsgInvalidCredentials, unknownErr.Error())
	assert.Equal(t, http.StatusUnauthorized, StatusCode(unknownErr))

	// Unknown email still pays for a comparison
	assert.Equal(t, 2, hasher.verifyCount())
}

func TestService_LoginInactive(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput("idle@example.com"))
	require.NoError(t, err)
	store.setActive("idle@example.com", false)

	_, err = svc.Login(ctx, "idle@example.com", "s3cret-password")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, MsgAccountInactive, err.Error())

	// Wrong password on an inactive account does not reveal the account state
	_, err = svc.Login(ctx, "idle@example.com", "wrong-password")
	assert.Equal(t, MsgInvalidCredentials, err.Error())
}

func TestService_LoginEmailIsCaseSensitive(t *testing.T) {
	svc := newTestService(t, newMemoryStore())
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput("Case@Example.com"))
	require.NoError(t, err)

	_, err = svc.Login(ctx, "case@example.com", "s3cret-password")
	assert.Equal(t, MsgInvalidCredentials, err.Error())
}

func TestService_RegisterDuplicate(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput("dup@example.com"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerInput("dup@example.com"))
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, MsgEmailAlreadyExists, err.Error())
	assert.Equal(t, http.StatusConflict, StatusCode(err))
	assert.Equal(t, 1, store.count())
}

func TestService_RegisterConcurrentSameEmail(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(t, store)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), registerInput("race@example.com"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
	assert.Equal(t, 1, store.count())
}

func TestService_RegisterInsertRaceIsConflict(t *testing.T) {
	store := new(mockStore)
	store.On("GetByEmail", mock.Anything, "late@example.com").Return(nil, user.ErrNotFound)
	store.On("Create", mock.Anything, mock.MatchedBy(func(u *user.User) bool {
		return u.Email == "late@example.com" && u.Role == user.RoleUser && u.IsActive && u.PasswordHash != "s3cret-password"
	})).Return(nil, user.ErrDuplicateEmail)

	svc := newTestService(t, store)

	_, err := svc.Register(context.Background(), registerInput("late@example.com"))
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, MsgEmailAlreadyExists, err.Error())
	store.AssertExpectations(t)
}

func TestService_StoreFailuresAreInternal(t *testing.T) {
	dbErr := errors.New("connection refused")
	ctx := context.Background()

	t.Run("login lookup", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetByEmail", mock.Anything, "a@example.com").Return(nil, dbErr)

		_, err := newTestService(t, store).Login(ctx, "a@example.com", "pw")

		assert.ErrorIs(t, err, dbErr)
		assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
		oopsErr, ok := oops.AsOops(err)
		require.True(t, ok)
		assert.Equal(t, "AUTH_LOGIN_FAILED", oopsErr.Code())
	})

	t.Run("register lookup", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetByEmail", mock.Anything, "a@example.com").Return(nil, dbErr)

		_, err := newTestService(t, store).Register(ctx, registerInput("a@example.com"))

		assert.ErrorIs(t, err, dbErr)
		assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
		store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("register insert", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetByEmail", mock.Anything, "a@example.com").Return(nil, user.ErrNotFound)
		store.On("Create", mock.Anything, mock.Anything).Return(nil, dbErr)

		_, err := newTestService(t, store).Register(ctx, registerInput("a@example.com"))

		assert.ErrorIs(t, err, dbErr)
		oopsErr, ok := oops.AsOops(err)
		require.True(t, ok)
		assert.Equal(t, "AUTH_REGISTER_FAILED", oopsErr.Code())
	})

	t.Run("profile lookup", func(t *testing.T) {
		store := new(mockStore)
		id := uuid.New()
		store.On("GetByID", mock.Anything, id).Return(nil, dbErr)

		_, err := newTestService(t, store).GetProfile(ctx, id)

		assert.ErrorIs(t, err, dbErr)
		assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	})
}

func TestService_LoginCorruptHashIsInternal(t *testing.T) {
	store := new(mockStore)
	store.On("GetByEmail", mock.Anything, "a@example.com").Return(&user.User{
		ID:           uuid.New(),
		Email:        "a@example.com",
		PasswordHash: "plaintext-not-a-hash",
		Role:         user.RoleUser,
		IsActive:     true,
	}, nil)

	_, err := newTestService(t, store).Login(context.Background(), "a@example.com", "pw")
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
}

func TestService_GetProfile(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	reg, err := svc.Register(ctx, registerInput("p@example.com"))
	require.NoError(t, err)

	profile, err := svc.GetProfile(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "p@example.com", profile.Email)
	assert.Equal(t, "Lovelace", profile.LastName)

	_, err = svc.GetProfile(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, MsgUserNotFound, err.Error())
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
}

func TestService_VerifyTokenCollapsesFailures(t *testing.T) {
	svc := newTestService(t, newMemoryStore())

	for _, token := range []string{"", "garbage", "v4.local.AAAA"} {
		_, err := svc.VerifyToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, MsgInvalidToken, err.Error())
	}
}

func TestService_TokenSurvivesUserDeactivation(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	reg, err := svc.Register(ctx, registerInput("stale@example.com"))
	require.NoError(t, err)
	store.setActive("stale@example.com", false)

	// Tokens are self-contained; there is no revocation
	_, err = svc.VerifyToken(ctx, reg.AccessToken)
	assert.NoError(t, err)
}
