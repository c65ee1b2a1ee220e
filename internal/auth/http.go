package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

type ctxKey struct{}

// UserFrom returns the username stored by Require.
func UserFrom(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(ctxKey{}).(string)
	return u, ok
}

// Require rejects requests without a valid Authorization token with 401.
func (m *Manager) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		username, err := m.ValidateToken(r.Header.Get("Authorization"))
		if err != nil {
			http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, username)))
	})
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Routes mounts the account endpoints on mux.
func (m *Manager) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", m.handleRegister)
	mux.HandleFunc("POST /api/login", m.handleLogin)
	mux.HandleFunc("POST /api/logout", m.handleLogout)
	mux.Handle("GET /api/validate", m.Require(http.HandlerFunc(m.handleValidate)))
}

func (m *Manager) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password required", http.StatusBadRequest)
		return
	}
	if err := m.Register(req.Username, req.Password); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrUserExists), errors.Is(err, ErrReservedName):
			status = http.StatusConflict
		case errors.Is(err, ErrWeakPassword), errors.Is(err, ErrInvalidCredentials):
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (m *Manager) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	token, err := m.Login(req.Username, req.Password)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"token":    token,
		"username": req.Username,
	})
}

func (m *Manager) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := r.Header.Get("Authorization"); token != "" {
		m.Logout(token)
	}
	w.WriteHeader(http.StatusOK)
}

func (m *Manager) handleValidate(w http.ResponseWriter, r *http.Request) {
	username, _ := UserFrom(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"username": username,
		"valid":    true,
	})
}
