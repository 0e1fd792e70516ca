package session

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medchain/medchain/internal/apperr"
	"github.com/medchain/medchain/internal/gateway"
)

// Authenticator is the slice of the gateway the manager needs.
type Authenticator interface {
	Login(ctx context.Context, req gateway.LoginRequest) (*gateway.LoginResponse, error)
}

// Manager drives login and logout explicitly against a Store.
type Manager struct {
	store  Store
	auth   Authenticator
	logger zerolog.Logger
	now    func() time.Time
}

func NewManager(store Store, auth Authenticator, logger zerolog.Logger) *Manager {
	return &Manager{store: store, auth: auth, logger: logger, now: time.Now}
}

func (m *Manager) Store() Store { return m.store }

// Login authenticates against the remote service and persists the session.
func (m *Manager) Login(ctx context.Context, hospitalID, privateKey string) (*Session, error) {
	hospitalID = strings.TrimSpace(hospitalID)
	var missing []string
	if hospitalID == "" {
		missing = append(missing, "hospitalId")
	}
	if privateKey == "" {
		missing = append(missing, "privateKey")
	}
	if len(missing) > 0 {
		return nil, apperr.NewValidationError(missing...)
	}

	resp, err := m.auth.Login(ctx, gateway.LoginRequest{HospitalID: hospitalID, PrivateKey: privateKey})
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Token == "" {
		return nil, &apperr.TransportError{Op: gateway.OpLogin, Message: "login response carries no token"}
	}

	sess := New(resp.Token, hospitalID, m.now())
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	m.logger.Info().Str("hospital_id", sess.HospitalID).Msg("logged in")
	return sess, nil
}

// Logout removes the persisted session. It never calls the remote service.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	m.logger.Info().Msg("logged out")
	return nil
}

// Current returns the persisted session or apperr.ErrNoSession.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	return m.store.Load(ctx)
}
