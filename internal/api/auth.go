package api

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/retry"
	"vcard-wallet-go/internal/store"

	"go.uber.org/zap"
)

// AuthState is a snapshot of the signed-in user. User and Profile are
// replaced, never mutated, so a snapshot may be read without locking.
type AuthState struct {
	User    *models.User
	Profile *models.Profile
	Loading bool
	Error   string
}

// AuthService holds the session-derived user and profile.
type AuthService struct {
	auth           store.Authenticator
	profiles       store.ProfileStore
	policy         retry.Policy
	provisionDelay time.Duration

	mu    sync.RWMutex
	state AuthState
}

func NewAuthService(auth store.Authenticator, profiles store.ProfileStore, policy retry.Policy, provisionDelay time.Duration) *AuthService {
	return &AuthService{
		auth:           auth,
		profiles:       profiles,
		policy:         policy,
		provisionDelay: provisionDelay,
	}
}

func (s *AuthService) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *AuthService) begin() {
	s.mu.Lock()
	s.state.Loading = true
	s.state.Error = ""
	s.mu.Unlock()
}

// end clears Loading and records err, if any, as the user-facing message.
func (s *AuthService) end(err error, fallback string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
	if err != nil {
		s.state.Error = describe(err, fallback)
	}
	return err
}

func (s *AuthService) setUser(user *models.User, profile *models.Profile) {
	s.mu.Lock()
	s.state.User = user
	s.state.Profile = profile
	s.mu.Unlock()
}

func (s *AuthService) setProfile(profile *models.Profile) {
	s.mu.Lock()
	s.state.Profile = profile
	s.mu.Unlock()
}

// SignUp registers an account, then waits for the hosted service to provision
// the profile row. A nil session means email confirmation is pending.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	s.begin()
	session, err := s.signUp(ctx, email, password)
	return session, s.end(err, "Failed to sign up")
}

func (s *AuthService) signUp(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.TrimSpace(email)
	if err := validateInput(credentials{Email: email, Password: password}); err != nil {
		return nil, err
	}

	session, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		zap.L().Warn("Sign up failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	if s.provisionDelay > 0 {
		timer := time.NewTimer(s.provisionDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return session, ctx.Err()
		case <-timer.C:
		}
	}

	zap.L().Info("User signed up", zap.String("email", email), zap.Bool("confirmed", session != nil))
	return session, nil
}

// SignIn authenticates and loads the user's profile.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	s.begin()
	session, err := s.signIn(ctx, email, password)
	return session, s.end(err, "Failed to sign in")
}

func (s *AuthService) signIn(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.TrimSpace(email)
	if err := validateInput(credentials{Email: email, Password: password}); err != nil {
		return nil, err
	}

	session, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.setUser(session.User, nil)

	if err := s.loadUser(ctx); err != nil {
		return session, err
	}
	return session, nil
}

func (s *AuthService) SignOut(ctx context.Context) error {
	s.begin()
	err := s.auth.SignOut(ctx)
	if err == nil {
		s.setUser(nil, nil)
	}
	return s.end(err, "Failed to sign out")
}

// LoadUser reads the current session and the matching profile, each under the
// retry policy. Without a session the user and profile are cleared. An absent
// profile is left nil.
func (s *AuthService) LoadUser(ctx context.Context) error {
	s.begin()
	return s.end(s.loadUser(ctx), "Failed to load user")
}

func (s *AuthService) loadUser(ctx context.Context) error {
	var session *models.Session
	err := retry.Do(ctx, s.policy, "load_session", func(ctx context.Context) error {
		var err error
		session, err = s.auth.Session(ctx)
		return err
	})
	if err != nil {
		zap.L().Error("Load user failed", zap.Error(err))
		s.setUser(nil, nil)
		return err
	}
	if session == nil || session.User == nil {
		s.setUser(nil, nil)
		return nil
	}

	user := session.User
	s.setUser(user, nil)

	var profile *models.Profile
	err = retry.Do(ctx, s.policy, "load_profile", func(ctx context.Context) error {
		var err error
		profile, err = s.profiles.GetProfile(ctx, user.Id)
		return err
	})
	if err != nil {
		zap.L().Error("Load profile failed", zap.String("user_id", user.Id), zap.Error(err))
		s.setUser(nil, nil)
		return err
	}
	if profile == nil {
		zap.L().Warn("No profile row for user", zap.String("user_id", user.Id))
	}
	s.setProfile(profile)
	return nil
}

// UpdateProfile writes the patch to the signed-in user's profile and reloads.
func (s *AuthService) UpdateProfile(ctx context.Context, patch models.ProfilePatch) error {
	s.begin()
	return s.end(s.updateProfile(ctx, patch), "Failed to update profile")
}

func (s *AuthService) updateProfile(ctx context.Context, patch models.ProfilePatch) error {
	user := s.State().User
	if user == nil {
		return store.ErrNotLoggedIn
	}
	if patch.Empty() {
		return &InputError{Message: "Nothing to update"}
	}

	if _, err := s.profiles.UpdateProfile(ctx, user.Id, patch); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	zap.L().Info("Profile updated", zap.String("user_id", user.Id))
	return s.loadUser(ctx)
}
