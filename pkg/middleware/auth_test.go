package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larpkeep/characterhub/pkg/authz"
	"github.com/larpkeep/characterhub/pkg/contextkeys"
	"github.com/larpkeep/characterhub/pkg/identity"
)

func captureActor(t *testing.T) (http.Handler, **authz.Actor) {
	t.Helper()
	var got *authz.Actor
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = contextkeys.ActorFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}), &got
}

func TestAuthenticatorBearerToken(t *testing.T) {
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/user/me" {
			w.Write([]byte(`{"id":5}`))
			return
		}
		w.Write([]byte(`[{"parentOrgID":4,"roles":["character_edit"]}]`))
	}))
	t.Cleanup(hub.Close)

	next, got := captureActor(t)
	handler := NewAuthenticator(identity.NewClient(hub.URL), nil).Handler(next)

	req := httptest.NewRequest(http.MethodGet, "/characters", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, *got)
	assert.Equal(t, int64(5), (*got).UserID)
	assert.Equal(t, []string{"character_edit"}, (*got).Offices[4])
}

func TestAuthenticatorTrustedHeaders(t *testing.T) {
	next, got := captureActor(t)
	handler := NewAuthenticator(identity.NewClient("http://unused.invalid"), nil).Handler(next)

	offices, err := json.Marshal([]identity.Office{
		{ParentOrgID: 4, Roles: []string{"npc_view_space"}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/characters", nil)
	req.Header.Set(HeaderAuthUser, "5")
	req.Header.Set(HeaderAuthOffices, string(offices))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, *got)
	assert.Equal(t, int64(5), (*got).UserID)
	assert.Equal(t, []string{"npc_view_space"}, (*got).Offices[4])
}

func TestAuthenticatorMissingTokenIs401(t *testing.T) {
	next, _ := captureActor(t)
	handler := NewAuthenticator(identity.NewClient("http://unused.invalid"), nil).Handler(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/characters", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), identity.CodeAuthenticationFailed)
}

func TestAuthenticatorBadHeaderIs401(t *testing.T) {
	next, _ := captureActor(t)
	handler := NewAuthenticator(identity.NewClient("http://unused.invalid"), nil).Handler(next)

	req := httptest.NewRequest(http.MethodGet, "/characters", nil)
	req.Header.Set(HeaderAuthUser, "not-a-number")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	handler := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, contextkeys.RequestIDFrom(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/characters", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
