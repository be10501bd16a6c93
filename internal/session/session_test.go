package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/api"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/localstore"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/models"
)

func newManager(t *testing.T, serverURL string) (*Manager, *localstore.Store) {
	store, err := localstore.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	client := api.New(serverURL, serverURL, "app-key")
	return New(client, store, "app-1"), store
}

func authResponse(t *testing.T, token string, expiresIn time.Duration) []byte {
	raw, err := json.Marshal(models.AuthResponse{
		Token:                  token,
		TokenExpirationInstant: time.Now().Add(expiresIn).UnixMilli(),
		User: models.User{
			ID:       "u-1",
			Email:    "buyer@example.com",
			Username: "buyer",
			Active:   true,
		},
	})
	require.NoError(t, err)
	return raw
}

func TestLogin_StoresSessionAndPublishesUser(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/login", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write(authResponse(t, "tok-1", time.Hour))
	}))
	defer server.Close()

	m, store := newManager(t, server.URL)

	require.NoError(t, m.Login(context.Background(), "buyer@example.com", "secret"))

	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, "buyer", m.CurrentUser().Username)
	assert.Equal(t, "tok-1", m.Token())

	// Login payload shape expected by the identity service.
	assert.Equal(t, "app-1", gotBody["applicationId"])
	assert.Equal(t, "buyer@example.com", gotBody["loginId"])
	meta := gotBody["metaData"].(map[string]interface{})
	device := meta["device"].(map[string]interface{})
	assert.Equal(t, "web", device["description"])

	// Token, user and expiration are persisted.
	for _, key := range []string{localstore.KeyToken, localstore.KeyUser, localstore.KeyExpiration} {
		_, err := store.Get(key)
		assert.NoError(t, err, "key %s should be stored", key)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	m, _ := newManager(t, server.URL)

	err := m.Login(context.Background(), "buyer@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.False(t, m.IsAuthenticated())
}

func TestLogin_ConnectionFailure(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()

	m, _ := newManager(t, dead.URL)

	err := m.Login(context.Background(), "buyer@example.com", "secret")
	assert.ErrorIs(t, err, ErrConnection)
	assert.False(t, m.IsAuthenticated())
}

func TestLogin_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	m, _ := newManager(t, server.URL)

	err := m.Login(context.Background(), "buyer@example.com", "secret")
	assert.ErrorIs(t, err, ErrServer)
}

func TestLogout_ClearsEverythingAndIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(authResponse(t, "tok-1", time.Hour))
	}))
	defer server.Close()

	m, store := newManager(t, server.URL)
	require.NoError(t, m.Login(context.Background(), "buyer@example.com", "secret"))

	m.Logout()
	m.Logout()

	assert.False(t, m.IsAuthenticated())
	assert.Nil(t, m.CurrentUser())
	assert.Empty(t, m.Token())
	for _, key := range []string{localstore.KeyToken, localstore.KeyUser, localstore.KeyExpiration} {
		_, err := store.Get(key)
		assert.ErrorIs(t, err, localstore.ErrNotFound)
	}
}

func TestRestore_AdoptsValidStoredSession(t *testing.T) {
	m, store := newManager(t, "http://unused.invalid")

	rawUser, _ := json.Marshal(models.User{Username: "restored", Email: "r@example.com"})
	require.NoError(t, store.Set(localstore.KeyToken, "tok-stored"))
	require.NoError(t, store.Set(localstore.KeyUser, string(rawUser)))
	require.NoError(t, store.Set(localstore.KeyExpiration,
		strconv.FormatInt(time.Now().Add(time.Hour).UnixMilli(), 10)))

	m.Restore()

	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, "restored", m.CurrentUser().Username)
}

func TestRestore_DiscardsSessionInsideExpiryMargin(t *testing.T) {
	m, store := newManager(t, "http://unused.invalid")

	rawUser, _ := json.Marshal(models.User{Username: "stale"})
	require.NoError(t, store.Set(localstore.KeyToken, "tok-stale"))
	require.NoError(t, store.Set(localstore.KeyUser, string(rawUser)))
	// 30s of validity left, below the 60s margin.
	require.NoError(t, store.Set(localstore.KeyExpiration,
		strconv.FormatInt(time.Now().Add(30*time.Second).UnixMilli(), 10)))

	m.Restore()

	assert.False(t, m.IsAuthenticated())
	_, err := store.Get(localstore.KeyToken)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestRestore_NoStoredSessionIsANoop(t *testing.T) {
	m, _ := newManager(t, "http://unused.invalid")
	m.Restore()
	assert.False(t, m.IsAuthenticated())
}

func TestRefresh_WithoutToken(t *testing.T) {
	m, _ := newManager(t, "http://unused.invalid")
	assert.ErrorIs(t, m.Refresh(context.Background()), ErrNoToken)
}

func TestRefresh_RenewsToken(t *testing.T) {
	var refreshBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			w.Write(authResponse(t, "tok-old", time.Hour))
		case "/jwt/refresh":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&refreshBody))
			w.Write(authResponse(t, "tok-new", time.Hour))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	m, _ := newManager(t, server.URL)
	require.NoError(t, m.Login(context.Background(), "buyer@example.com", "secret"))

	require.NoError(t, m.Refresh(context.Background()))

	assert.Equal(t, "tok-new", m.Token())
	assert.Equal(t, "tok-old", refreshBody["token"])
	assert.Equal(t, "app-1", refreshBody["applicationId"])
}

func TestLogin_NearExpiredTokenDoesNotRefreshInline(t *testing.T) {
	var refreshes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			// Already inside the 60s margin.
			w.Write(authResponse(t, "tok-short", 10*time.Second))
		case "/jwt/refresh":
			refreshes.Add(1)
			w.Write(authResponse(t, "tok-short", 10*time.Second))
		}
	}))
	defer server.Close()

	m, _ := newManager(t, server.URL)
	require.NoError(t, m.Login(context.Background(), "buyer@example.com", "secret"))
	assert.True(t, m.IsAuthenticated())

	// The retry is armed on a floored timer, never fired inline.
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, refreshes.Load())
}

func TestRefresh_UnauthorizedForcesLogout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			w.Write(authResponse(t, "tok-1", time.Hour))
		case "/jwt/refresh":
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	m, _ := newManager(t, server.URL)
	require.NoError(t, m.Login(context.Background(), "buyer@example.com", "secret"))

	err := m.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.False(t, m.IsAuthenticated())
	assert.Empty(t, m.Token())
}

func TestUnauthorizedAPICallExpiresSessionOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			w.Write(authResponse(t, "tok-1", time.Hour))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	store, err := localstore.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	client := api.New(server.URL, server.URL, "app-key")
	m := New(client, store, "app-1")

	var notices []string
	m.OnSessionExpired = func(notice string) { notices = append(notices, notice) }

	require.NoError(t, m.Login(context.Background(), "buyer@example.com", "secret"))

	err = client.Do(context.Background(), http.MethodGet, "/payment/list", nil, nil)
	require.Error(t, err)

	assert.False(t, m.IsAuthenticated())
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0], "session has expired")
}

func TestProxyModePersistsAcrossManagers(t *testing.T) {
	store, err := localstore.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	client := api.New("http://direct.invalid", "http://proxy.invalid", "key")
	m := New(client, store, "app-1")
	m.SetAPIBase(false)
	assert.False(t, m.UseProxy())

	// A new manager over the same store restores the flag.
	client2 := api.New("http://direct.invalid", "http://proxy.invalid", "key")
	m2 := New(client2, store, "app-1")
	assert.False(t, m2.UseProxy())
}
