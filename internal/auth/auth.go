// Package auth holds user accounts and the bearer-token sessions that guard
// the persistence API.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const DefaultSessionTimeout = time.Hour

var (
	ErrReservedName       = errors.New("reserved username")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionExpired     = errors.New("session expired")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
)

type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type session struct {
	username  string
	expiresAt time.Time
}

// Manager keeps users on disk under dir/users.json and sessions in memory.
type Manager struct {
	path    string
	timeout time.Duration
	log     *logrus.Entry
	now     func() time.Time

	mu       sync.RWMutex
	users    map[string]*User
	sessions map[string]session
}

type Option func(*Manager)

// WithSessionTimeout sets how long a login token stays valid.
func WithSessionTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(log *logrus.Entry) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager opens the user file in dir, creating dir if needed.
func NewManager(dir string, opts ...Option) (*Manager, error) {
	m := &Manager{
		path:     filepath.Join(dir, "users.json"),
		timeout:  DefaultSessionTimeout,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		now:      time.Now,
		users:    make(map[string]*User),
		sessions: make(map[string]session),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithField("component", "auth")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	b, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("auth: read users: %w", err)
	}
	if err := json.Unmarshal(b, &m.users); err != nil {
		return fmt.Errorf("auth: decode users: %w", err)
	}
	if m.users == nil {
		m.users = make(map[string]*User)
	}
	m.log.WithField("users", len(m.users)).Info("auth: loaded users")
	return nil
}

func (m *Manager) saveLocked() error {
	lock := flock.New(m.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("auth: lock users: %w", err)
	}
	defer lock.Unlock()

	b, err := json.MarshalIndent(m.users, "", "  ")
	if err != nil {
		return fmt.Errorf("auth: encode users: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("auth: write users: %w", err)
	}
	return os.Rename(tmp, m.path)
}

// Register creates a user. "system" and "admin" are reserved.
func (m *Manager) Register(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrInvalidCredentials
	}
	if strings.EqualFold(username, "system") || strings.EqualFold(username, "admin") {
		return ErrReservedName
	}
	if len(password) < 6 {
		return ErrWeakPassword
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[username]; exists {
		return ErrUserExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	m.users[username] = &User{Username: username, PasswordHash: string(hash), CreatedAt: m.now().UTC()}
	if err := m.saveLocked(); err != nil {
		delete(m.users, username)
		return err
	}
	m.log.WithField("user", username).Info("auth: registered")
	return nil
}

// Login checks the password and returns a fresh session token.
func (m *Manager) Login(username, password string) (string, error) {
	m.mu.RLock()
	user, exists := m.users[strings.TrimSpace(username)]
	m.mu.RUnlock()
	if !exists {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := uuid.NewString()
	now := m.now()
	m.mu.Lock()
	m.sessions[token] = session{username: user.Username, expiresAt: now.Add(m.timeout)}
	m.cleanupLocked(now)
	m.mu.Unlock()
	return token, nil
}

// ValidateToken returns the user owning token.
func (m *Manager) ValidateToken(token string) (string, error) {
	token = StripBearer(token)
	m.mu.RLock()
	s, exists := m.sessions[token]
	m.mu.RUnlock()
	if !exists {
		return "", ErrInvalidToken
	}
	if m.now().After(s.expiresAt) {
		m.mu.Lock()
		delete(m.sessions, token)
		m.mu.Unlock()
		return "", ErrSessionExpired
	}
	return s.username, nil
}

func (m *Manager) Logout(token string) {
	m.mu.Lock()
	delete(m.sessions, StripBearer(token))
	m.mu.Unlock()
}

func (m *Manager) cleanupLocked(now time.Time) {
	for token, s := range m.sessions {
		if now.After(s.expiresAt) {
			delete(m.sessions, token)
		}
	}
}

func (m *Manager) Exists(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[username]
	return ok
}

// StripBearer accepts both "Bearer <token>" and a bare token.
func StripBearer(h string) string {
	h = strings.TrimSpace(h)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}
