// Package service contains the business logic layer.
//
// Services orchestrate interactions between the repository, external
// providers and domain rules. They are responsible for:
// - Input validation
// - Entitlement decisions and plan transitions
// - Transaction coordination
// - Error translation (database errors -> domain errors)
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	// Not configurable at runtime so it cannot be weakened by accident.
	BcryptCost = 12

	// SessionTokenBytes is the number of random bytes for session tokens.
	// The token is hex-encoded to 64 characters for transmission.
	SessionTokenBytes = 32

	// DefaultSessionDuration applies when no duration is configured.
	DefaultSessionDuration = 24 * time.Hour

	MinSessionDuration = 15 * time.Minute
	MaxSessionDuration = 30 * 24 * time.Hour

	// MinPasswordLength follows NIST SP 800-63B.
	MinPasswordLength = 8

	// MaxPasswordLength is the bcrypt input limit.
	MaxPasswordLength = 72
)

// commonPasswords are rejected even when they pass the character rules.
var commonPasswords = map[string]struct{}{
	"password1":   {},
	"password123": {},
	"qwerty123":   {},
	"letmein1":    {},
	"welcome1":    {},
	"admin123":    {},
	"abc12345":    {},
	"iloveyou1":   {},
}

// =============================================================================
// Interface Definition
// =============================================================================

// UserService handles accounts and login sessions.
type UserService interface {
	// Register creates a new account on the Free plan.
	// Returns domain.ECONFLICT if the email already exists.
	Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error)

	// Login authenticates a user and creates a new session.
	// Returns domain.EUNAUTHORIZED for invalid credentials.
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)

	// Logout invalidates a session by its raw token. Idempotent.
	Logout(ctx context.Context, token string) error

	// GetByID returns domain.ENOTFOUND if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail returns domain.ENOTFOUND if the user does not exist.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Authenticate resolves a raw session token to its user and session.
	// Returns domain.EUNAUTHORIZED if the token is invalid or expired.
	Authenticate(ctx context.Context, token string) (*domain.User, *domain.Session, error)

	// DeleteExpiredSessions removes expired sessions and their values.
	DeleteExpiredSessions(ctx context.Context) error
}

// =============================================================================
// Implementation
// =============================================================================

// UserServiceConfig tunes session lifetime and staff detection.
type UserServiceConfig struct {
	SessionDuration time.Duration
	// AdminEmails are registered as staff. Staff accounts skip the expiry
	// sweep and receive admin alerts.
	AdminEmails []string
}

type userService struct {
	store           repository.Store
	logger          *slog.Logger
	sessionDuration time.Duration
	adminEmails     map[string]struct{}
}

// NewUserService creates a new UserService instance.
func NewUserService(store repository.Store, logger *slog.Logger, cfg UserServiceConfig) UserService {
	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		e = normalizeEmail(e)
		if e != "" {
			admins[e] = struct{}{}
		}
	}
	return &userService{
		store:           store,
		logger:          logger,
		sessionDuration: normalizeSessionDuration(cfg.SessionDuration),
		adminEmails:     admins,
	}
}

// =============================================================================
// Register Implementation
// =============================================================================

// Register creates a new user account.
//
// Security Considerations:
// - The password is hashed even on duplicate email to flatten timing
// - The raw password is never logged or stored
func (s *userService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	const op = "UserService.Register"

	params.Email = normalizeEmail(params.Email)
	params.Name = strings.TrimSpace(params.Name)

	if err := validateEmail(params.Email); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, domain.ErrorMessage(err))
	}
	if params.Name == "" {
		return nil, domain.Invalid(op, "Name is required")
	}
	if params.YearsExperience < 0 || params.YearsExperience > 60 {
		return nil, domain.Invalid(op, "Years of experience must be between 0 and 60")
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, domain.ErrorMessage(err))
	}

	_, err := s.store.GetUserByEmail(ctx, params.Email)
	if err == nil {
		_, _ = bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
		return nil, domain.Conflict(op, "Email already registered")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "Failed to check email availability")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to hash password")
	}

	_, isStaff := s.adminEmails[params.Email]
	repoUser, err := s.store.CreateUser(ctx, repository.CreateUserParams{
		Email:           params.Email,
		PasswordHash:    string(passwordHash),
		Name:            params.Name,
		YearsExperience: int32(params.YearsExperience),
		IsStaff:         isStaff,
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, domain.Conflict(op, "Email already registered")
		}
		return nil, domain.Internal(err, op, "Failed to create user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email, "is_staff", user.IsStaff)

	return user, nil
}

// =============================================================================
// Login / Logout
// =============================================================================

// dummyHash keeps the unknown-email path as slow as a real comparison.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

func (s *userService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	const op = "UserService.Login"

	email = normalizeEmail(email)

	repoUser, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, domain.Unauthorized(op, "Invalid email or password")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(repoUser.PasswordHash), []byte(password)); err != nil {
		return nil, domain.Unauthorized(op, "Invalid email or password")
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to generate session token")
	}

	_, err = s.store.CreateSession(ctx, repository.CreateSessionParams{
		UserID:    repoUser.ID,
		TokenHash: hashSessionToken(token),
		ExpiresAt: time.Now().Add(s.sessionDuration),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create session")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.logger.Info("user logged in", "user_id", user.ID)

	return &domain.LoginResult{
		User:  user,
		Token: token,
	}, nil
}

func (s *userService) Logout(ctx context.Context, token string) error {
	if len(token) != SessionTokenBytes*2 {
		return nil
	}

	if err := s.store.DeleteSession(ctx, hashSessionToken(token)); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to delete session", "error", err)
	}

	s.logger.Debug("session invalidated")
	return nil
}

// =============================================================================
// Lookups
// =============================================================================

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "UserService.GetByID"

	repoUser, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const op = "UserService.GetByEmail"

	email = normalizeEmail(email)
	repoUser, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", email)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

// Authenticate validates a session token. The session query already filters
// expired rows.
func (s *userService) Authenticate(ctx context.Context, token string) (*domain.User, *domain.Session, error) {
	const op = "UserService.Authenticate"

	if len(token) != SessionTokenBytes*2 {
		return nil, nil, domain.Unauthorized(op, "Invalid or expired session")
	}

	sess, err := s.store.GetSessionByTokenHash(ctx, hashSessionToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, nil, domain.Internal(err, op, "Failed to retrieve session")
	}

	repoUser, err := s.store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, repoSessionToDomain(sess), nil
}

func (s *userService) DeleteExpiredSessions(ctx context.Context) error {
	const op = "UserService.DeleteExpiredSessions"

	if err := s.store.DeleteExpiredSessions(ctx); err != nil {
		return domain.Internal(err, op, "Failed to delete expired sessions")
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// generateSessionToken returns 32 random bytes, hex-encoded.
func generateSessionToken() (string, error) {
	b := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashSessionToken creates a SHA-256 hash of a session token. Tokens are
// high-entropy, so a fast hash is sufficient.
func hashSessionToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeSessionDuration clamps a configured duration into the allowed
// range. Zero selects the default.
func normalizeSessionDuration(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultSessionDuration
	case d < MinSessionDuration:
		return MinSessionDuration
	case d > MaxSessionDuration:
		return MaxSessionDuration
	default:
		return d
	}
}

// validateEmail performs basic shape checks (RFC 5321 length limit, one @,
// dotted domain).
func validateEmail(email string) error {
	if email == "" {
		return domain.Invalid("", "Email is required")
	}
	if len(email) > 254 {
		return domain.Invalid("", "Email must be 254 characters or less")
	}

	local, host, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(host, "@") {
		return domain.Invalid("", "Email must contain exactly one @ symbol")
	}
	if local == "" {
		return domain.Invalid("", "Email cannot start with @")
	}
	if host == "" {
		return domain.Invalid("", "Email cannot end with @")
	}
	if !strings.Contains(host, ".") {
		return domain.Invalid("", "Email domain must contain a dot")
	}
	if strings.Contains(email, "..") {
		return domain.Invalid("", "Email cannot contain consecutive dots")
	}
	return nil
}

// validatePassword enforces length, at least one letter and one digit, and
// rejects well-known passwords.
func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.Invalid("", "Password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return domain.Invalid("", "Password must be 72 characters or less")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		return domain.Invalid("", "Password must contain at least one letter")
	}
	if !hasDigit {
		return domain.Invalid("", "Password must contain at least one number")
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		return domain.Invalid("", "Password is too common")
	}
	return nil
}

// =============================================================================
// Compile-time interface check
// =============================================================================

var _ UserService = (*userService)(nil)
