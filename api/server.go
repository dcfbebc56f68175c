package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"dreamsun/generation"
	"dreamsun/history"
	"dreamsun/imagehost"
	"dreamsun/middleware"
	"dreamsun/uploads"
)

// Options configure the HTTP surface.
type Options struct {
	WebPassword    string
	APIKey         string
	StaticDir      string
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	service  *generation.Service
	uploader imagehost.Uploader
	tracker  *uploads.Tracker
	history  history.Store
	opts     Options
}

// NewServer creates a Server.
func NewServer(service *generation.Service, uploader imagehost.Uploader, tracker *uploads.Tracker, store history.Store, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Server{
		service:  service,
		uploader: uploader,
		tracker:  tracker,
		history:  store,
		opts:     opts,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)
	r.HandleFunc("/login", s.loginPage).Methods(http.MethodGet)
	r.HandleFunc("/login", s.login).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.logout).Methods(http.MethodPost)

	web := r.PathPrefix("/api").Subrouter()
	web.Use(middleware.SessionAPIMiddleware(s.opts.WebPassword), middleware.Owner)
	web.HandleFunc("/models", s.listModels).Methods(http.MethodGet)
	web.HandleFunc("/generate", s.generate).Methods(http.MethodPost)
	web.HandleFunc("/generate/stream", s.generateStream).Methods(http.MethodGet)
	web.HandleFunc("/upload", s.upload).Methods(http.MethodPost)
	web.HandleFunc("/uploads", s.startUploads).Methods(http.MethodPost)
	web.HandleFunc("/uploads", s.listUploads).Methods(http.MethodGet)
	web.HandleFunc("/uploads/{id}", s.getUpload).Methods(http.MethodGet)
	web.HandleFunc("/uploads/{id}", s.removeUpload).Methods(http.MethodDelete)
	web.HandleFunc("/history", s.listHistory).Methods(http.MethodGet)
	web.HandleFunc("/history", s.clearHistory).Methods(http.MethodDelete)
	web.HandleFunc("/preferences", s.getPreferences).Methods(http.MethodGet)
	web.HandleFunc("/preferences", s.putPreferences).Methods(http.MethodPut)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(middleware.APIKeyAuthMiddleware(s.opts.APIKey), middleware.APIOwner)
	v1.HandleFunc("/models", s.listModels).Methods(http.MethodGet)
	v1.HandleFunc("/generate", s.generate).Methods(http.MethodPost)
	v1.HandleFunc("/upload", s.upload).Methods(http.MethodPost)

	if s.opts.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.opts.StaticDir))
		r.PathPrefix("/").Handler(middleware.WebAuthMiddleware(s.opts.WebPassword)(fs))
	}

	return middleware.Logging(middleware.CORS(r))
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "dreamsun",
	})
}
