package session

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"taskboard/internal/auth"
	"taskboard/internal/docstore"
	"taskboard/internal/model"
	"taskboard/internal/notify"
	"taskboard/pkg/metrics"
	"taskboard/pkg/util"
)

// SignInTimeout bounds the remote authentication call. Past it the failure
// is reported as a connection problem, not a credential one.
const SignInTimeout = 30 * time.Second

// SessionStore tracks the signed-in identity and its denormalized profile.
type SessionStore struct {
	provider auth.Provider
	store    docstore.Store
	notifier notify.Notifier
	logger   *zap.Logger

	mu       stdsync.RWMutex
	identity *auth.Identity
	profile  *model.Profile
	// connErr distinguishes "can't reach server" from "wrong password" so
	// the UI can offer a retry instead of a credential prompt.
	connErr bool
}

func NewSessionStore(provider auth.Provider, store docstore.Store, notifier notify.Notifier, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		provider: provider,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// SignIn authenticates and loads the profile, racing the provider against
// SignInTimeout. Credential failures get per-code messages; transport
// failures set the connection-error state instead.
func (s *SessionStore) SignIn(ctx context.Context, email, password string) error {
	ctx, cancel := context.WithTimeout(ctx, SignInTimeout)
	defer cancel()

	ident, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return s.signInFailure(err)
	}

	s.mu.Lock()
	s.identity = ident
	s.connErr = false
	s.mu.Unlock()

	if err := s.loadProfile(ctx, ident.UserID); err != nil {
		// Signed in but profile unreachable: keep the identity, flag the
		// connection, let RetryConnection finish the job.
		s.setConnErr(true)
		metrics.IncrementSignIn("connection_error")
		s.notifier.Error("Signed in, but your profile could not be loaded. Check your connection and retry.")
		return err
	}

	metrics.IncrementSignIn("ok")
	s.logger.Info("Sign-in complete", zap.String("user_id", ident.UserID))
	return nil
}

func (s *SessionStore) signInFailure(err error) error {
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		metrics.IncrementSignIn("denied")
		s.notifier.Error("No account exists for that email address")
	case errors.Is(err, auth.ErrWrongPassword):
		metrics.IncrementSignIn("denied")
		s.notifier.Error("Incorrect password")
	case errors.Is(err, auth.ErrPermissionDenied):
		metrics.IncrementSignIn("denied")
		s.notifier.Error("Your account does not have access")
	case util.IsConnectionError(err):
		s.setConnErr(true)
		metrics.IncrementSignIn("connection_error")
		s.notifier.Error("Cannot reach the server. Check your connection and try again.")
	default:
		metrics.IncrementSignIn("denied")
		s.notifier.Error("Sign-in failed: " + err.Error())
	}
	return err
}

// SignOut clears local identity unconditionally: local lockout must never
// depend on network availability.
func (s *SessionStore) SignOut(ctx context.Context) {
	if err := s.provider.SignOut(ctx); err != nil {
		s.logger.Warn("Remote sign-out failed, clearing local session anyway", zap.Error(err))
	}

	s.mu.Lock()
	s.identity = nil
	s.profile = nil
	s.connErr = false
	s.mu.Unlock()
}

// RetryConnection re-fetches the profile after a previously failed attempt.
func (s *SessionStore) RetryConnection(ctx context.Context) error {
	s.mu.RLock()
	ident := s.identity
	s.mu.RUnlock()
	if ident == nil {
		return errors.New("retry connection: not signed in")
	}

	if err := s.loadProfile(ctx, ident.UserID); err != nil {
		return err
	}
	s.setConnErr(false)
	return nil
}

// Watch re-derives the session on every auth-state transition. Blocks until
// ctx is done; run it in a goroutine.
func (s *SessionStore) Watch(ctx context.Context) {
	states := s.provider.StateChanges()
	for {
		select {
		case <-ctx.Done():
			return
		case ident, ok := <-states:
			if !ok {
				return
			}
			if ident == nil {
				s.mu.Lock()
				s.identity = nil
				s.profile = nil
				s.mu.Unlock()
				continue
			}
			s.mu.Lock()
			s.identity = ident
			s.mu.Unlock()
			if err := s.loadProfile(ctx, ident.UserID); err != nil {
				s.setConnErr(true)
			}
		}
	}
}

func (s *SessionStore) loadProfile(ctx context.Context, userID string) error {
	doc, err := s.store.Get(ctx, model.EmployeesCollection, userID)
	if err != nil {
		s.logger.Warn("Profile load failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return err
	}

	p := &model.Profile{UserID: userID}
	if v, ok := doc.Data["full_name"].(string); ok {
		p.FullName = v
	}
	if v, ok := doc.Data["role"].(string); ok {
		p.Role = v
	}
	if v, ok := doc.Data["email"].(string); ok {
		p.Email = v
	}
	if perms, ok := doc.Data["permissions"].([]any); ok {
		for _, raw := range perms {
			if perm, ok := raw.(string); ok {
				p.Permissions = append(p.Permissions, perm)
			}
		}
	}

	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) setConnErr(v bool) {
	s.mu.Lock()
	s.connErr = v
	s.mu.Unlock()
}

// Identity returns the current identity, nil when signed out.
func (s *SessionStore) Identity() *auth.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Profile returns the loaded profile, nil when absent.
func (s *SessionStore) Profile() *model.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// ConnectionError reports the distinguished connection-error state.
func (s *SessionStore) ConnectionError() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connErr
}
