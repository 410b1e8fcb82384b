package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/taskflow/apiserver/internal/events"
	"github.com/taskflow/apiserver/internal/logging"
	"github.com/taskflow/apiserver/internal/store"
	"github.com/taskflow/apiserver/types"
)

// MinPasswordLength is the shortest accepted plaintext password.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// PasswordHasher hashes and verifies plaintext passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) error
}

// TokenIssuer mints identity tokens for a user id.
type TokenIssuer interface {
	Issue(userID int) (string, error)
}

// AccountArchiver snapshots a user's tasks before the account is removed.
type AccountArchiver interface {
	Archive(ctx context.Context, user types.User, tasks []types.Task) error
}

// UserService encapsulates registration, login and account removal.
type UserService struct {
	repo     UserRepository
	tasks    TaskRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	events   events.Publisher
	archiver AccountArchiver
}

type UserServiceOption func(*UserService)

// WithUserEvents publishes user lifecycle events.
func WithUserEvents(p events.Publisher) UserServiceOption {
	return func(s *UserService) { s.events = p }
}

// WithArchiver stores a snapshot of the user's tasks before deletion.
func WithArchiver(a AccountArchiver) UserServiceOption {
	return func(s *UserService) { s.archiver = a }
}

func NewUserService(repo UserRepository, tasks TaskRepository, hasher PasswordHasher, tokens TokenIssuer, opts ...UserServiceOption) *UserService {
	s := &UserService{
		repo:   repo,
		tasks:  tasks,
		hasher: hasher,
		tokens: tokens,
		events: events.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates input, persists a new user and returns it with a token.
func (s *UserService) Register(ctx context.Context, name, email, password string) (types.AuthResult, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return types.AuthResult{}, ErrFieldsRequired
	}
	if !emailPattern.MatchString(email) {
		return types.AuthResult{}, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return types.AuthResult{}, ErrPasswordTooShort
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.AuthResult{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.AuthResult{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return types.AuthResult{}, err
	}

	// The unique constraint settles races the pre-check above cannot see.
	user, err := s.repo.Create(ctx, types.User{
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.AuthResult{}, ErrEmailTaken
		}
		return types.AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return types.AuthResult{}, err
	}

	s.publish(ctx, events.UserRegistered, user.ID)
	return authResult(user, token), nil
}

// Login checks the credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (types.AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return types.AuthResult{}, ErrCredentialsRequired
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.AuthResult{}, ErrInvalidCredentials
		}
		return types.AuthResult{}, fmt.Errorf("load user: %w", err)
	}

	if err := s.hasher.Verify(password, user.PasswordHash); err != nil {
		return types.AuthResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return types.AuthResult{}, err
	}
	return authResult(user, token), nil
}

// DeleteAccount removes the user's tasks and then the user. Deleting an
// account that no longer exists succeeds.
func (s *UserService) DeleteAccount(ctx context.Context, userID int) error {
	if s.archiver != nil {
		if err := s.archive(ctx, userID); err != nil {
			return err
		}
	}

	if err := s.repo.Delete(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete account: %w", err)
	}

	s.publish(ctx, events.UserDeleted, userID)
	return nil
}

func (s *UserService) archive(ctx context.Context, userID int) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load user for archive: %w", err)
	}
	tasks, err := s.tasks.List(ctx, userID, types.TaskFilter{})
	if err != nil {
		return fmt.Errorf("load tasks for archive: %w", err)
	}
	if err := s.archiver.Archive(ctx, user, tasks); err != nil {
		return fmt.Errorf("archive account: %w", err)
	}
	return nil
}

func (s *UserService) publish(ctx context.Context, typ string, userID int) {
	if err := s.events.Publish(ctx, events.New(typ, userID, 0)); err != nil {
		logging.FromContext(ctx).Warn("publish event failed", "type", typ, "user_id", userID, "error", err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func authResult(user types.User, token string) types.AuthResult {
	return types.AuthResult{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Token: token,
	}
}
