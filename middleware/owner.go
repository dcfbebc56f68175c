package middleware

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"
)

const (
	ownerSessionKey       = "owner"
	modelSessionKey       = "modelId"
	aspectRatioSessionKey = "aspectRatio"
)

type ownerKey struct{}

// Owner assigns every browser a stable opaque id, kept in the session
// cookie, and exposes it through OwnerFrom. Requests authenticated with the
// API key share the "api" owner.
func Owner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := Store.Get(r, SessionName)
		if err != nil {
			log.Printf("Session error: %v. Starting a new session.", err)
		}
		owner, _ := session.Values[ownerSessionKey].(string)
		if owner == "" {
			owner = uuid.NewString()
			session.Values[ownerSessionKey] = owner
			if err := session.Save(r, w); err != nil {
				log.Printf("Could not save session: %v", err)
			}
		}
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

// APIOwner marks requests as belonging to the shared API owner.
func APIOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), "api")))
	})
}

// WithOwner returns a context carrying owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFrom returns the owner stored in ctx, or "" if none.
func OwnerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

// Preferences are the last model and aspect ratio a browser selected.
type Preferences struct {
	ModelID     string `json:"modelId"`
	AspectRatio string `json:"aspectRatio"`
}

// LoadPreferences reads the preferences stored in the session.
func LoadPreferences(r *http.Request) Preferences {
	session, _ := Store.Get(r, SessionName)
	var p Preferences
	p.ModelID, _ = session.Values[modelSessionKey].(string)
	p.AspectRatio, _ = session.Values[aspectRatioSessionKey].(string)
	return p
}

// SavePreferences stores p in the session.
func SavePreferences(w http.ResponseWriter, r *http.Request, p Preferences) error {
	session, _ := Store.Get(r, SessionName)
	session.Values[modelSessionKey] = p.ModelID
	session.Values[aspectRatioSessionKey] = p.AspectRatio
	return session.Save(r, w)
}
