package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"taskboard/internal/docstore"
	"taskboard/internal/model"
	"taskboard/internal/util"
)

// Provider-specific error codes, mapped to user-facing messages by the
// session layer.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrWrongPassword    = errors.New("wrong password")
	ErrPermissionDenied = errors.New("permission denied")
)

// Identity is the authenticated principal. A nil *Identity on the state
// stream means signed out.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

// Provider is the authentication collaborator: credential checks plus a
// change-notification stream of the current identity.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
	StateChanges() <-chan *Identity
}

// DocstoreProvider authenticates against the users collection with bcrypt
// hashes and issues JWTs.
type DocstoreProvider struct {
	store     docstore.Store
	jwtSecret string
	logger    *zap.Logger

	mu        sync.Mutex
	listeners []chan *Identity
}

func NewDocstoreProvider(store docstore.Store, jwtSecret string, logger *zap.Logger) *DocstoreProvider {
	return &DocstoreProvider{store: store, jwtSecret: jwtSecret, logger: logger}
}

// Register creates a new user with a hashed password.
func (p *DocstoreProvider) Register(ctx context.Context, email, password string) (*model.User, error) {
	existing, err := p.findByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New("email already exists")
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := model.User{
		Email:     email,
		CreatedAt: time.Now(),
	}
	id, err := p.store.Add(ctx, model.UsersCollection, docstore.Document{
		"email":         u.Email,
		"password_hash": hash,
		"created_at":    u.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	u.ID = id

	p.logger.Info("User registered", zap.String("user_id", id))
	return &u, nil
}

// SignIn checks credentials and returns an identity carrying a JWT.
func (p *DocstoreProvider) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	u, err := p.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	hash, _ := u.Data["password_hash"].(string)
	if !util.CheckPassword(password, hash) {
		return nil, ErrWrongPassword
	}

	token, err := util.GenerateJWT(u.ID, p.jwtSecret)
	if err != nil {
		return nil, err
	}

	ident := &Identity{UserID: u.ID, Email: email, Token: token}
	p.broadcast(ident)
	return ident, nil
}

// SignOut clears the provider-side state and notifies listeners.
func (p *DocstoreProvider) SignOut(ctx context.Context) error {
	p.broadcast(nil)
	return nil
}

// StateChanges registers a listener for identity transitions. The channel is
// buffered; a slow listener drops intermediate transitions, never blocks
// sign-in.
func (p *DocstoreProvider) StateChanges() <-chan *Identity {
	ch := make(chan *Identity, 4)
	p.mu.Lock()
	p.listeners = append(p.listeners, ch)
	p.mu.Unlock()
	return ch
}

func (p *DocstoreProvider) broadcast(ident *Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.listeners {
		select {
		case ch <- ident:
		default:
		}
	}
}

func (p *DocstoreProvider) findByEmail(ctx context.Context, email string) (*docstore.Doc, error) {
	docs, err := p.store.Find(ctx, docstore.Query{
		Collection: model.UsersCollection,
		Filters:    map[string]string{"email": email},
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrUserNotFound
	}
	return &docs[0], nil
}
