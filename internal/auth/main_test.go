package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStore struct {
	mu     sync.Mutex
	users  map[string]User
	err    error
	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]User)}
}

func (s *fakeStore) GetByEmail(ctx context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return User{}, s.err
	}
	user, ok := s.users[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return User{}, s.err
	}
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (s *fakeStore) Create(ctx context.Context, in NewUser) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return User{}, s.err
	}
	if _, exists := s.users[in.Email]; exists {
		return User{}, ErrEmailTaken
	}

	s.nextID++
	now := time.Now().UTC()
	user := User{
		ID:           fmt.Sprintf("user-%d", s.nextID),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[in.Email] = user
	return user, nil
}

func (s *fakeStore) EnsureAdmin(ctx context.Context, name, email, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	user, ok := s.users[email]
	if !ok {
		s.nextID++
		user.ID = fmt.Sprintf("admin-%d", s.nextID)
		user.Email = email
	}
	user.Name = name
	user.PasswordHash = passwordHash
	user.Role = RoleAdmin
	s.users[email] = user
	return nil
}

func (s *fakeStore) delete(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, email)
}

const testSecret = "test-secret-with-enough-entropy"

func newTestService(store Store) *Service {
	return NewService(store, NewTokenIssuer(testSecret, time.Hour)).WithHashCost(4)
}
