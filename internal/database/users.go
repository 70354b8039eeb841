package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

var ErrUserExists = errors.New("user already registered")

// SignUp registers the user and creates the profile row in one transaction.
// Local accounts need no email confirmation, so the new session is returned
// and becomes current.
func (s *Service) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("password should be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("unable to hash password: %w", err)
	}

	user := models.User{Id: uuid.New().String(), Email: email, CreatedAt: s.timestamp()}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, queryInsertUser, user.Id, user.Email, string(hash), user.CreatedAt); err != nil {
		if isConstraint(err, sqlite3.ErrConstraintUnique) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("unable to insert user: %w", err)
	}
	if _, err := tx.ExecContext(ctx, queryInsertProfile, user.Id, user.Email, user.CreatedAt, user.CreatedAt); err != nil {
		return nil, fmt.Errorf("unable to insert profile: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sign up: %w", err)
	}

	zap.L().Info("User registered", zap.String("user_id", user.Id), zap.String("email", user.Email))
	return s.startSession(&user), nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	var hash string
	err := s.db.QueryRowContext(ctx, queryGetUserCredentials, email).Scan(&user.Id, &user.Email, &hash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		zap.L().Debug("Password mismatch", zap.String("user_id", user.Id))
		return nil, store.ErrInvalidCredentials
	}

	zap.L().Info("User signed in", zap.String("user_id", user.Id))
	return s.startSession(&user), nil
}

func (s *Service) SignOut(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}

func (s *Service) Session(_ context.Context) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, nil
	}
	session := *s.session
	return &session, nil
}

func (s *Service) startSession(user *models.User) *models.Session {
	session := &models.Session{
		AccessToken:  uuid.New().String(),
		RefreshToken: uuid.New().String(),
		TokenType:    "bearer",
		User:         user,
	}
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	out := *session
	return &out
}

func (s *Service) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	zap.L().Debug("Querying user by email", zap.String("email", email))

	var user models.User
	err := s.db.QueryRowContext(ctx, queryGetUserByEmail, strings.ToLower(strings.TrimSpace(email))).Scan(&user.Id, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no user with email %s", email)
		}
		return nil, fmt.Errorf("unable to query user by email: %w", err)
	}
	return &user, nil
}
