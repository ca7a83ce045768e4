package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() (*Handler, *Service, *mockStore) {
	store := newMockStore()
	service, _ := newTestService(store)
	return NewHandler(service), service, store
}

func postJSON(handler http.HandlerFunc, path, body string, principal *Principal) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if principal != nil {
		req = req.WithContext(context.WithValue(req.Context(), principalKey{}, *principal))
	}

	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandlerRegister(t *testing.T) {
	handler, _, _ := newTestHandler()

	rec := postJSON(handler.Register, "/accounts/register",
		`{"email":"alice@example.com","username":"alice","password":"sup3rsecret"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "alice@example.com", body["email"])
	assert.Equal(t, false, body["isLoggedIn"])
	assert.NotEmpty(t, body["accessToken"])
	assert.NotContains(t, body, "refreshToken")
}

func TestHandlerRegisterInvalidEmail(t *testing.T) {
	handler, _, _ := newTestHandler()

	rec := postJSON(handler.Register, "/accounts/register",
		`{"email":"not-an-email","password":"sup3rsecret"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRegisterUnknownField(t *testing.T) {
	handler, _, _ := newTestHandler()

	rec := postJSON(handler.Register, "/accounts/register",
		`{"email":"alice@example.com","password":"sup3rsecret","admin":true}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid json body", decodeBody(t, rec)["error"])
}

func TestHandlerRegisterDuplicate(t *testing.T) {
	handler, _, _ := newTestHandler()

	payload := `{"email":"alice@example.com","password":"sup3rsecret"}`
	rec := postJSON(handler.Register, "/accounts/register", payload, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(handler.Register, "/accounts/register", payload, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_entity", decodeBody(t, rec)["code"])
}

func TestHandlerRegisterWeakPassword(t *testing.T) {
	handler, _, _ := newTestHandler()

	rec := postJSON(handler.Register, "/accounts/register",
		`{"email":"alice@example.com","password":"short"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "registration_failed", decodeBody(t, rec)["code"])
}

func TestHandlerLogin(t *testing.T) {
	handler, service, _ := newTestHandler()
	registerAndLogin(t, service)

	rec := postJSON(handler.Login, "/accounts/login",
		`{"email":"alice@example.com","password":"sup3rsecret"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["isLoggedIn"])
	assert.NotEmpty(t, body["refreshToken"])
}

func TestHandlerLoginMissingFields(t *testing.T) {
	handler, _, _ := newTestHandler()

	rec := postJSON(handler.Login, "/accounts/login", `{"email":"","password":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerLoginWrongPassword(t *testing.T) {
	handler, service, _ := newTestHandler()
	registerAndLogin(t, service)

	rec := postJSON(handler.Login, "/accounts/login",
		`{"email":"alice@example.com","password":"wrongpass1"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication_failed", decodeBody(t, rec)["code"])
}

func TestHandlerLoginUnknownEmail(t *testing.T) {
	handler, _, _ := newTestHandler()

	rec := postJSON(handler.Login, "/accounts/login",
		`{"email":"ghost@example.com","password":"whatever1"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerRefresh(t *testing.T) {
	handler, service, _ := newTestHandler()
	session := registerAndLogin(t, service)

	payload, err := json.Marshal(refreshRequest{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	})
	require.NoError(t, err)

	rec := postJSON(handler.Refresh, "/accounts/refresh-token", string(payload), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.NotEqual(t, session.RefreshToken, body["refreshToken"])

	// The pre-rotation pair is spent.
	rec = postJSON(handler.Refresh, "/accounts/refresh-token", string(payload), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerRefreshMissingFields(t *testing.T) {
	handler, _, _ := newTestHandler()

	rec := postJSON(handler.Refresh, "/accounts/refresh-token",
		`{"accessToken":"","refreshToken":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRevoke(t *testing.T) {
	handler, service, _ := newTestHandler()
	session := registerAndLogin(t, service)
	principal := Principal{ID: session.ID, Roles: session.Roles}

	rec := postJSON(handler.Revoke, "/accounts/revoke-token", `{}`, &principal)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "revoked", decodeBody(t, rec)["status"])

	rec = postJSON(handler.Revoke, "/accounts/revoke-token", `{}`, &principal)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerRevokeWithoutPrincipal(t *testing.T) {
	handler, _, _ := newTestHandler()

	rec := postJSON(handler.Revoke, "/accounts/revoke-token", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerRevokeOtherUserForbidden(t *testing.T) {
	handler, service, _ := newTestHandler()
	session := registerAndLogin(t, service)

	caller := Principal{ID: 555, Roles: []string{RoleUser}}
	rec := postJSON(handler.Revoke, "/accounts/revoke-token",
		`{"userId":`+jsonInt(session.ID)+`}`, &caller)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "authorization_failed", decodeBody(t, rec)["code"])

	admin := Principal{ID: 555, Roles: []string{RoleAdmin}}
	rec = postJSON(handler.Revoke, "/accounts/revoke-token",
		`{"userId":`+jsonInt(session.ID)+`}`, &admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func jsonInt(v int64) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}

func TestMiddleware(t *testing.T) {
	codec := testCodec()
	now := time.Now().UTC()

	token, err := codec.Mint(ClaimSet{Name: "alice@example.com", Subject: "7", Roles: []string{RoleAdmin}}, now)
	require.NoError(t, err)

	var seen Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFrom(r.Context())
		require.True(t, ok)
		seen = principal
		w.WriteHeader(http.StatusNoContent)
	})
	protected := Middleware(codec, next)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc123", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusNoContent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}

	assert.Equal(t, int64(7), seen.ID)
	assert.Equal(t, []string{RoleAdmin}, seen.Roles)
}

func TestMiddlewareExpiredToken(t *testing.T) {
	codec := testCodec()

	token, err := codec.Mint(ClaimSet{Name: "alice@example.com", Subject: "7", Roles: []string{RoleUser}}, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	Middleware(codec, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("expired token must not reach the handler")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token expired", decodeBody(t, rec)["error"])
}
