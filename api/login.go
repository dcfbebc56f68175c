package api

import (
	"html/template"
	"log"
	"net/http"

	"dreamsun/middleware"
)

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>DreamSun - Login</title></head>
<body>
<form method="post" action="/login">
  <h1>DreamSun</h1>
  {{if .}}<p class="error">{{.}}</p>{{end}}
  <input type="password" name="password" placeholder="Password" autofocus>
  <button type="submit">Log in</button>
</form>
</body>
</html>
`))

func renderLogin(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := loginTemplate.Execute(w, message); err != nil {
		log.Printf("Could not render login page: %v", err)
	}
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	if s.opts.WebPassword == "" || middleware.Authenticated(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	renderLogin(w, http.StatusOK, "")
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if s.opts.WebPassword == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if !middleware.CheckPassword(r.FormValue("password"), s.opts.WebPassword) {
		log.Printf("Failed login attempt from %s", r.RemoteAddr)
		renderLogin(w, http.StatusUnauthorized, "Incorrect password")
		return
	}
	if err := middleware.SetAuthenticated(w, r, true); err != nil {
		log.Printf("Could not save session: %v", err)
		http.Error(w, "Could not save session", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := middleware.SetAuthenticated(w, r, false); err != nil {
		log.Printf("Could not save session: %v", err)
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}
