package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Store is the persistence the auth flow needs. *Repository implements it.
type Store interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	Create(ctx context.Context, in NewUser) (User, error)
	EnsureAdmin(ctx context.Context, name, email, passwordHash string) error
}

type Service struct {
	store            Store
	tokens           *TokenIssuer
	hashCost         int
	allowAdminSignUp bool
}

func NewService(store Store, tokens *TokenIssuer) *Service {
	return &Service{
		store:    store,
		tokens:   tokens,
		hashCost: bcrypt.DefaultCost,
	}
}

// WithHashCost overrides the bcrypt cost. Values outside bcrypt's range are ignored.
func (s *Service) WithHashCost(cost int) *Service {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		s.hashCost = cost
	}
	return s
}

// WithAdminSignUp lets public sign-up create admin accounts. Off by default.
func (s *Service) WithAdminSignUp(allow bool) *Service {
	s.allowAdminSignUp = allow
	return s
}

func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

func (s *Service) SignUp(ctx context.Context, in SignUpInput) (User, string, error) {
	if in.Role == "" {
		in.Role = RoleUser
	}
	if in.Role == RoleAdmin && !s.allowAdminSignUp {
		return User{}, "", ErrAdminSignUpDisabled
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return User{}, "", err
	}

	user, err := s.store.Create(ctx, NewUser{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
	})
	if err != nil {
		return User{}, "", err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return User{}, "", err
	}

	return user, token, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return User{}, "", ErrInvalidCredentials
	}

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return User{}, "", err
	}

	// bcrypt only compares the first 72 bytes.
	if len(password) > maxPasswordBytes {
		return User{}, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return User{}, "", ErrInvalidCredentials
		}
		return User{}, "", fmt.Errorf("compare password hash: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return User{}, "", err
	}

	return user, token, nil
}

func (s *Service) User(ctx context.Context, id string) (User, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) BootstrapAdmin(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if email == "" && password == "" {
		return nil
	}
	if email == "" || password == "" {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}
	if name == "" {
		name = "Administrator"
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return fmt.Errorf("ADMIN_PASSWORD: %w", err)
	}

	return s.store.EnsureAdmin(ctx, name, email, string(hash))
}

func (s *Service) hashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, passwordTooLongError()
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAdminSignUpDisabled = errors.New("admin sign-up is disabled")
)
