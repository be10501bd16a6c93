// Package session owns the authentication lifecycle against the identity
// service: login, logout, token refresh, persisted-session restore and the
// expiry timer that keeps the token fresh. Components observe the signed-in
// user through a current-value stream.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/api"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/localstore"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/models"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/stream"
)

// expiryMargin is the safety window before token expiration. A session with
// less remaining validity than this is treated as expired, and the refresh
// timer fires once the remaining validity reaches it.
const expiryMargin = 60 * time.Second

// minRefreshDelay floors the refresh timer. A service that keeps issuing
// tokens already inside the margin would otherwise cause a tight refresh loop.
const minRefreshDelay = 5 * time.Second

// Login/refresh failure classification.
var (
	ErrConnection         = errors.New("could not reach the authentication service")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrServer             = errors.New("authentication service error")
	ErrNoToken            = errors.New("no token to refresh")
	ErrSessionExpired     = errors.New("session expired")
)

type phase int

const (
	phaseUnauthenticated phase = iota
	phaseAuthenticating
	phaseAuthenticated
	phaseRefreshing
)

// Manager drives the session state machine:
// Unauthenticated -> Authenticating -> Authenticated -> (Refreshing) -> ...
type Manager struct {
	client        *api.Client
	store         *localstore.Store
	applicationID string

	// OnSessionExpired is invoked (if set) when the expiry timer fails to
	// refresh the token, or when an authenticated call came back 401.
	OnSessionExpired func(notice string)

	mu    sync.Mutex
	phase phase
	timer *time.Timer

	users *stream.Value[*models.User]
}

// New builds a Manager, restores the persisted proxy-mode flag and wires the
// request pipeline's token source, 401 hook and base-switch persistence.
func New(client *api.Client, store *localstore.Store, applicationID string) *Manager {
	m := &Manager{
		client:        client,
		store:         store,
		applicationID: applicationID,
		users:         stream.New[*models.User](nil),
	}

	client.TokenSource = m.Token
	client.OnBaseSwitch = func(useProxy bool) {
		if err := store.Set(localstore.KeyUseProxy, strconv.FormatBool(useProxy)); err != nil {
			slog.Error("Failed to persist proxy-mode flag", "error", err)
		}
	}
	client.OnUnauthorized = func() {
		m.expire("Your session has expired. Please sign in again.")
	}

	// Restore proxy mode before the first request goes out. Proxied is the
	// default when nothing is stored.
	useProxy := true
	if v, err := store.Get(localstore.KeyUseProxy); err == nil {
		useProxy = v == "true"
	}
	client.SetUseProxy(useProxy)

	return m
}

// Users exposes the current-user stream. Subscribers receive the current
// value immediately, then every change (nil means signed out).
func (m *Manager) Users() *stream.Value[*models.User] {
	return m.users
}

// CurrentUser returns the signed-in user, or nil.
func (m *Manager) CurrentUser() *models.User {
	return m.users.Get()
}

// IsAuthenticated reports whether a user is signed in.
func (m *Manager) IsAuthenticated() bool {
	return m.users.Get() != nil
}

// Token returns the persisted auth token, or "".
func (m *Manager) Token() string {
	token, err := m.store.Get(localstore.KeyToken)
	if err != nil {
		return ""
	}
	return token
}

// Login authenticates against the identity service. Failures are classified
// into connection, invalid-credentials and server errors; the session stays
// unauthenticated on any of them.
func (m *Manager) Login(ctx context.Context, loginID, password string) error {
	m.setPhase(phaseAuthenticating)

	body := map[string]interface{}{
		"applicationId": m.applicationID,
		"loginId":       loginID,
		"password":      password,
		"metaData": map[string]interface{}{
			"device": map[string]string{"description": "web"},
		},
	}

	var resp models.AuthResponse
	if err := m.client.Do(ctx, http.MethodPost, "/login", body, &resp); err != nil {
		m.setPhase(phaseUnauthenticated)
		return classifyAuthError(err)
	}

	m.adopt(resp)
	slog.Info("User authenticated", "email", resp.User.Email,
		"expires", time.UnixMilli(resp.TokenExpirationInstant).Format(time.RFC3339))
	return nil
}

// Restore adopts a previously persisted session. Run once at startup. A
// session with 60s or less of remaining validity is discarded.
func (m *Manager) Restore() {
	token, errToken := m.store.Get(localstore.KeyToken)
	rawUser, errUser := m.store.Get(localstore.KeyUser)
	rawExp, errExp := m.store.Get(localstore.KeyExpiration)
	if errToken != nil || errUser != nil || errExp != nil || token == "" {
		slog.Debug("No stored session to restore")
		return
	}

	expMillis, err := strconv.ParseInt(rawExp, 10, 64)
	if err != nil {
		slog.Warn("Stored expiration is unreadable, discarding session", "error", err)
		m.Logout()
		return
	}

	remaining := time.UnixMilli(expMillis).Sub(time.Now())
	if remaining <= expiryMargin {
		slog.Info("Stored token expired or about to expire, logging out")
		m.Logout()
		return
	}

	var user models.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		slog.Warn("Stored user is unreadable, discarding session", "error", err)
		m.Logout()
		return
	}

	m.users.Set(&user)
	m.setPhase(phaseAuthenticated)
	m.armTimer(remaining - expiryMargin)
	slog.Info("Session restored", "email", user.Email,
		"expires", time.UnixMilli(expMillis).Format(time.RFC3339))
}

// Refresh silently renews the token. A 401 from the refresh endpoint forces
// a logout.
func (m *Manager) Refresh(ctx context.Context) error {
	token := m.Token()
	if token == "" {
		return ErrNoToken
	}

	m.setPhase(phaseRefreshing)
	body := map[string]string{
		"token":         token,
		"applicationId": m.applicationID,
	}

	var resp models.AuthResponse
	if err := m.client.Do(ctx, http.MethodPost, "/jwt/refresh", body, &resp); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Kind == api.KindUnauthorized {
			slog.Warn("Refresh rejected with 401, logging out")
			m.Logout()
			return fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		m.setPhase(phaseAuthenticated)
		return classifyAuthError(err)
	}

	m.adopt(resp)
	slog.Info("Token refreshed", "email", resp.User.Email)
	return nil
}

// Logout destroys the session: persisted keys, expiry timer and the
// published user. Safe to call repeatedly.
func (m *Manager) Logout() {
	if err := m.store.Delete(localstore.KeyToken, localstore.KeyUser, localstore.KeyExpiration); err != nil {
		slog.Error("Failed to clear persisted session", "error", err)
	}

	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.phase = phaseUnauthenticated
	m.mu.Unlock()

	m.users.Set(nil)
}

// SetAPIBase switches between the direct and proxied API origin. The chosen
// mode is persisted and survives restarts.
func (m *Manager) SetAPIBase(useProxy bool) {
	m.client.SetUseProxy(useProxy)
}

// UseProxy reports the active API mode.
func (m *Manager) UseProxy() bool {
	return m.client.UseProxy()
}

// ProbeConnection hits the anonymous status endpoint. A connection failure on
// the direct base switches subsequent requests to the proxy (handled by the
// pipeline); the probe itself still reports the failure.
func (m *Manager) ProbeConnection(ctx context.Context) error {
	return m.client.Do(ctx, http.MethodGet, "/status", nil, nil)
}

// adopt persists and publishes a successful auth response, then arms the
// expiry timer for expiresAt - now - 60s.
func (m *Manager) adopt(resp models.AuthResponse) {
	rawUser, err := json.Marshal(resp.User)
	if err != nil {
		slog.Error("Failed to serialize user", "error", err)
		rawUser = []byte("{}")
	}

	if err := m.store.Set(localstore.KeyToken, resp.Token); err != nil {
		slog.Error("Failed to persist token", "error", err)
	}
	if err := m.store.Set(localstore.KeyUser, string(rawUser)); err != nil {
		slog.Error("Failed to persist user", "error", err)
	}
	if err := m.store.Set(localstore.KeyExpiration, strconv.FormatInt(resp.TokenExpirationInstant, 10)); err != nil {
		slog.Error("Failed to persist expiration", "error", err)
	}

	user := resp.User
	m.users.Set(&user)
	m.setPhase(phaseAuthenticated)

	remaining := time.UnixMilli(resp.TokenExpirationInstant).Sub(time.Now()) - expiryMargin
	if remaining < minRefreshDelay {
		remaining = minRefreshDelay
	}
	m.armTimer(remaining)
}

// armTimer schedules the silent refresh. The previous timer is always
// stopped first so a session never has two timers armed.
func (m *Manager) armTimer(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(d, m.refreshOnTimer)
	slog.Debug("Token refresh timer armed", "in", d.Round(time.Second))
}

// refreshOnTimer is the expiry-timer callback: refresh silently, and on any
// failure end the session with a session-expired notice.
func (m *Manager) refreshOnTimer() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	slog.Info("Token about to expire, attempting silent refresh")
	if err := m.Refresh(ctx); err != nil {
		slog.Warn("Silent refresh failed, ending session", "error", err)
		m.expire("Your session has expired. Please sign in again.")
	}
}

// expire logs out and raises the session-expired notice.
func (m *Manager) expire(notice string) {
	wasAuthenticated := m.IsAuthenticated()
	m.Logout()
	if wasAuthenticated && m.OnSessionExpired != nil {
		m.OnSessionExpired(notice)
	}
}

func (m *Manager) setPhase(p phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
}

// classifyAuthError maps pipeline errors onto the login failure taxonomy.
func classifyAuthError(err error) error {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", ErrServer, err)
	}
	switch apiErr.Kind {
	case api.KindConnection:
		return fmt.Errorf("%w: %v", ErrConnection, err)
	case api.KindUnauthorized:
		return ErrInvalidCredentials
	default:
		return fmt.Errorf("%w (status %d): %s", ErrServer, apiErr.Status, apiErr.Message)
	}
}
