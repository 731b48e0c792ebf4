package auth

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/redmonkez12/quick-flayer-api/internal/logging"
	"github.com/redmonkez12/quick-flayer-api/internal/user"
)

const testKey = "0123456789abcdef0123456789abcdef"

// memoryStore is an in-memory UserStore with the same uniqueness rule as the users table
type memoryStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*user.User
	byEmail map[string]uuid.UUID
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		byID:    make(map[uuid.UUID]*user.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *memoryStore) GetByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	u := *s.byID[id]
	return &u, nil
}

func (s *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memoryStore) Create(_ context.Context, u *user.User) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[u.Email]; exists {
		return nil, user.ErrDuplicateEmail
	}

	now := time.Now().UTC()
	stored := *u
	stored.ID = uuid.New()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.byID[stored.ID] = &stored
	s.byEmail[stored.Email] = stored.ID

	cp := stored
	return &cp, nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *memoryStore) setActive(email string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[s.byEmail[email]].IsActive = active
}

// mockStore is a testify mock for failure paths the in-memory store cannot produce
type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func (m *mockStore) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func (m *mockStore) Create(ctx context.Context, u *user.User) (*user.User, error) {
	args := m.Called(ctx, u)
	created, _ := args.Get(0).(*user.User)
	return created, args.Error(1)
}

// countingHasher records how often Verify runs
type countingHasher struct {
	PasswordHasher
	mu       sync.Mutex
	verifies int
}

func (h *countingHasher) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	return h.PasswordHasher.Verify(ctx, plaintext, hash)
}

func (h *countingHasher) verifyCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifies
}

// recordingObserver collects reported outcomes
type recordingObserver struct {
	mu       sync.Mutex
	logins   []string
	rejected []string
}

func (o *recordingObserver) LoginAttempt(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logins = append(o.logins, outcome)
}

func (o *recordingObserver) GuardRejected(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, reason)
}

func testHasher() *BcryptHasher {
	return NewBcryptHasher(bcrypt.MinCost, 4)
}

func testTokens(t *testing.T) *PasetoService {
	t.Helper()
	tokens, err := NewPasetoService([]byte(testKey), time.Hour)
	require.NoError(t, err)
	return tokens
}

func testLogger() *logging.Logger {
	return logging.NewLoggerWithWriter(io.Discard, false)
}

func newTestService(t *testing.T, store UserStore) *Service {
	t.Helper()
	return NewService(store, testHasher(), testTokens(t), testLogger())
}
