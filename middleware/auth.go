package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"

	"dreamsun/config"
)

const (
	// SessionName is the key for the cookie session.
	SessionName = "dreamsun-session"
	// UserSessionKey is the key used to store the authenticated status in the session.
	UserSessionKey = "authenticated"
)

// Store will hold the session cookie store.
var Store *sessions.CookieStore

// InitSessionStore initializes the session store.
// It should be called once during application startup.
func InitSessionStore(secret string) {
	if secret == "" || secret == config.DefaultSessionSecret {
		log.Println("Warning: SESSION_SECRET is not set or is the default. Using a default, insecure key. Please set a strong secret in your .env file for production.")
		secret = config.DefaultSessionSecret
	}
	Store = sessions.NewCookieStore([]byte(secret))

	Store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   false, // Set to true if using HTTPS
		SameSite: http.SameSiteLaxMode,
	}
}

// Authenticated reports whether the request carries a logged-in session.
func Authenticated(r *http.Request) bool {
	session, err := Store.Get(r, SessionName)
	if err != nil {
		return false
	}
	auth, ok := session.Values[UserSessionKey].(bool)
	return ok && auth
}

// SetAuthenticated records the login state in the session.
func SetAuthenticated(w http.ResponseWriter, r *http.Request, auth bool) error {
	session, _ := Store.Get(r, SessionName)
	if auth {
		session.Values[UserSessionKey] = true
	} else {
		delete(session.Values, UserSessionKey)
	}
	return session.Save(r, w)
}

// CheckPassword compares a submitted password with the configured one.
func CheckPassword(submitted, want string) bool {
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(want)) == 1
}

// WebAuthMiddleware protects web routes that require authentication.
// An empty password disables authentication.
func WebAuthMiddleware(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" || Authenticated(r) {
				next.ServeHTTP(w, r)
				return
			}
			http.Redirect(w, r, "/login", http.StatusFound)
		})
	}
}

// SessionAPIMiddleware protects browser API routes. Unlike WebAuthMiddleware
// it answers with a JSON 401 instead of a redirect.
func SessionAPIMiddleware(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" || Authenticated(r) {
				next.ServeHTTP(w, r)
				return
			}
			writeJSONError(w, "Authentication required", http.StatusUnauthorized)
		})
	}
}

// APIKeyAuthMiddleware protects API routes with an API key.
func APIKeyAuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				log.Println("Error: DREAMSUN_API_KEY is not set. API is disabled.")
				writeJSONError(w, "API is not configured on the server.", http.StatusServiceUnavailable)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, "Authorization header is required", http.StatusUnauthorized)
				return
			}

			scheme, providedKey, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") {
				writeJSONError(w, "Invalid Authorization header format. Expected 'Bearer <api_key>'", http.StatusUnauthorized)
				return
			}

			if !CheckPassword(strings.TrimSpace(providedKey), apiKey) {
				writeJSONError(w, "Invalid API Key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": message, "statusCode": status})
}
