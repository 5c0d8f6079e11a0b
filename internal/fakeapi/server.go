// Package fakeapi is an in-memory stand-in for the users API. It backs the
// journey tests and the CLI's --local mode.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Route names accepted by FailRoute.
const (
	RouteRegister = "register"
	RouteLogin    = "login"
	RouteUpdate   = "update"
	RouteGet      = "get"
	RouteDelete   = "delete"
)

type user struct {
	ID           string
	Email        string
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type userPayload struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Option configures a Server.
type Option func(*Server)

// WithIDFunc overrides how user ids are assigned (uuid by default).
func WithIDFunc(fn func() string) Option {
	return func(s *Server) { s.newID = fn }
}

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithJWTSecret sets the HMAC secret used to sign login tokens.
func WithJWTSecret(secret []byte) Option {
	return func(s *Server) { s.jwtSecret = secret }
}

// Server is an in-memory users API.
type Server struct {
	apiKey    string
	jwtSecret []byte
	newID     func() string
	logger    *zap.Logger

	mu       sync.RWMutex
	users    map[string]*user // id -> user
	byEmail  map[string]string
	failures map[string]int // route -> forced status
}

// New creates a server. An empty apiKey disables the key check.
func New(apiKey string, opts ...Option) *Server {
	s := &Server{
		apiKey:    apiKey,
		jwtSecret: []byte("fakeapi-secret"),
		newID:     func() string { return uuid.New().String() },
		logger:    zap.NewNop(),
		users:     make(map[string]*user),
		byEmail:   make(map[string]string),
		failures:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailRoute makes every request to route answer with status until
// cleared with status 0.
func (s *Server) FailRoute(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, route)
		return
	}
	s.failures[route] = status
}

// UserCount returns the number of stored users.
func (s *Server) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Handler returns the HTTP handler. Routes are mounted at the root and
// under /api so both base URI shapes work.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requireAPIKey)

	routes := func(r chi.Router) {
		r.Post("/users/register", s.fault(RouteRegister, s.handleRegister))
		r.Post("/users/login", s.fault(RouteLogin, s.handleLogin))
		r.Patch("/users/{id}", s.fault(RouteUpdate, s.handleUpdate))
		r.Get("/users/{id}", s.fault(RouteGet, s.handleGet))
		r.Delete("/users/{id}", s.fault(RouteDelete, s.handleDelete))
	}
	routes(r)
	r.Route("/api", routes)
	return r
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("x-api-key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "missing or invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) fault(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		status, ok := s.failures[route]
		s.mu.RUnlock()
		if ok {
			writeError(w, status, "injected failure")
			return
		}
		next(w, r)
	}
}

// handleRegister handles POST /users/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req userPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	email := normalizeEmail(req.Email)
	if !strings.Contains(email, "@") || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.mu.Lock()
	if _, exists := s.byEmail[email]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "user already exists")
		return
	}
	now := time.Now()
	u := &user{
		ID:           s.newID(),
		Email:        email,
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	s.mu.Unlock()

	s.logger.Debug("registered user", zap.String("id", u.ID))
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        u.ID,
		"createdAt": u.CreatedAt,
	})
}

// handleLogin handles POST /users/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req userPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.RLock()
	id, ok := s.byEmail[normalizeEmail(req.Email)]
	var u user
	if ok {
		u = *s.users[id]
	}
	s.mu.RUnlock()

	if !ok || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.signToken(u)
	if err != nil {
		s.logger.Error("failed to sign token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":    u.ID,
		"token": token,
	})
}

// handleUpdate handles PATCH /users/{id}
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req userPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	u, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if req.Email != "" {
		email := normalizeEmail(req.Email)
		if owner, taken := s.byEmail[email]; taken && owner != id {
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, "email already in use")
			return
		}
		delete(s.byEmail, u.Email)
		u.Email = email
		s.byEmail[email] = id
	}
	if req.Username != "" {
		u.Username = req.Username
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
		if err != nil {
			s.mu.Unlock()
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = time.Now()
	out := userView(u)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

// handleGet handles GET /users/{id}
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.RLock()
	u, ok := s.users[id]
	var out map[string]any
	if ok {
		out = userView(u)
	}
	s.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDelete handles DELETE /users/{id}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	u, ok := s.users[id]
	if ok {
		delete(s.byEmail, u.Email)
		delete(s.users, id)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tokenClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func (s *Server) signToken(u user) (string, error) {
	claims := tokenClaims{
		UserID: u.ID,
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "fakeapi",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// ParseToken validates a token issued by this server and returns the user id.
func (s *Server) ParseToken(tokenString string) (string, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func userView(u *user) map[string]any {
	return map[string]any{
		"id":        u.ID,
		"email":     u.Email,
		"username":  u.Username,
		"createdAt": u.CreatedAt,
		"updatedAt": u.UpdatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
