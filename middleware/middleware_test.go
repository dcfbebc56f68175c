package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	InitSessionStore("test-secret-test-secret-test-secret")
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
})

func TestAPIKeyAuthMiddleware(t *testing.T) {
	h := APIKeyAuthMiddleware("sekret")(ok)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic sekret", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer sekret", http.StatusTeapot},
		{"case-insensitive scheme", "bearer sekret", http.StatusTeapot},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/generate", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	APIKeyAuthMiddleware("")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/generate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(http.StatusServiceUnavailable), body["statusCode"])
}

func TestWebAuthMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	WebAuthMiddleware("pw")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	WebAuthMiddleware("")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	SessionAPIMiddleware("pw")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginSessionIsAccepted(t *testing.T) {
	login := httptest.NewRecorder()
	require.NoError(t, SetAuthenticated(login, httptest.NewRequest(http.MethodPost, "/login", nil), true))
	cookies := login.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	WebAuthMiddleware("pw")(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestOwnerIsStableAcrossRequests(t *testing.T) {
	var seen []string
	h := Owner(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, OwnerFrom(r.Context()))
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	cookies := first.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, seen, 2)
	assert.NotEmpty(t, seen[0])
	assert.Equal(t, seen[0], seen[1])

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.NotEqual(t, seen[0], seen[2])
}

func TestPreferencesRoundTripThroughCookie(t *testing.T) {
	save := httptest.NewRecorder()
	require.NoError(t, SavePreferences(save, httptest.NewRequest(http.MethodPut, "/api/preferences", nil),
		Preferences{ModelID: "flux-dev", AspectRatio: "16:9"}))

	req := httptest.NewRequest(http.MethodGet, "/api/preferences", nil)
	for _, c := range save.Result().Cookies() {
		req.AddCookie(c)
	}
	assert.Equal(t, Preferences{ModelID: "flux-dev", AspectRatio: "16:9"}, LoadPreferences(req))
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/generate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggingKeepsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	Logging(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
