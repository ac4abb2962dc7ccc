package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/cidco-records/apiserver/internal/events"
	"github.com/cidco-records/apiserver/internal/store"
	"github.com/cidco-records/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultUserRole = "user"
	resetTokenTTL   = time.Hour
	resetTokenBytes = 32
)

// ErrInvalidCredentials is returned on any login failure. Unknown users and
// wrong passwords are indistinguishable to prevent account enumeration.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidResetToken is returned when a reset token is unknown, expired,
// or already consumed. All three cases look identical to the caller.
var ErrInvalidResetToken = errors.New("reset token invalid or expired")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	SyncIDSequence(ctx context.Context) error
	UpdatePassword(ctx context.Context, userID int, passwordHash string) error
	SetResetToken(ctx context.Context, userID int, token string, expires time.Time) error
	GetByValidResetToken(ctx context.Context, token string) (types.User, error)
	ResetPassword(ctx context.Context, userID int, passwordHash string) error
}

// Mailer delivers password-reset email.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, name, resetLink string) error
}

// UserService encapsulates credential and reset-flow use-cases.
type UserService struct {
	repo        UserRepository
	mailer      Mailer
	publisher   events.Publisher
	frontendURL string
}

// NewUserService constructs a UserService. mailer may be nil when SMTP is
// not configured; reset links are then logged instead of sent.
func NewUserService(repo UserRepository, mailer Mailer, publisher events.Publisher, frontendURL string) *UserService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &UserService{
		repo:        repo,
		mailer:      mailer,
		publisher:   publisher,
		frontendURL: frontendURL,
	}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Authenticate verifies a username/password pair. Any mismatch, including an
// unknown username, reports ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil {
		return user, nil
	}
	if verifyLegacy(user.PasswordHash, password) {
		return user, nil
	}
	return types.User{}, ErrInvalidCredentials
}

// verifyLegacy accepts the two historical credential formats still present
// in the table: unsalted sha256 hex digests and raw plaintext. Accounts
// predating the bcrypt rollout keep working until their next password
// change rehashes them.
//
// TODO: remove once the last pre-bcrypt users_react rows are migrated.
func verifyLegacy(stored, password string) bool {
	digest := sha256.Sum256([]byte(password))
	hexDigest := hex.EncodeToString(digest[:])
	if subtle.ConstantTimeCompare([]byte(stored), []byte(hexDigest)) == 1 {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// AddUser creates a credential row with a freshly hashed password. On a
// primary-key collision the identity sequence is resynchronized once and the
// insert retried exactly once. Returns whether the repair path ran.
func (s *UserService) AddUser(ctx context.Context, user types.User, password string) (bool, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}
	user.PasswordHash = string(hashed)
	if user.Role == "" {
		user.Role = defaultUserRole
	}

	repaired := false
	created, err := s.repo.Create(ctx, user)
	if errors.Is(err, store.ErrIDConflict) {
		slog.Warn("primary key collision on user insert, repairing sequence", "username", user.Username)
		repaired = true
		if err := s.repo.SyncIDSequence(ctx); err != nil {
			return repaired, err
		}
		created, err = s.repo.Create(ctx, user)
	}
	if err != nil {
		return repaired, err
	}

	event := events.NewEvent(types.EventUserCreated)
	event.Username = created.Username
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.Error("failed to publish user created event", "username", created.Username, "error", err)
	}
	return repaired, nil
}

// UpdatePassword sets a new bcrypt hash for the user.
func (s *UserService) UpdatePassword(ctx context.Context, userID int, newPassword string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return err
	}
	s.publishPasswordChanged(ctx, userID)
	return nil
}

// ForgotPassword issues a reset token for the account matching the username
// or email, if one exists, and best-effort emails the reset link. Callers
// always respond with the same generic message; only unexpected repository
// failures are returned.
func (s *UserService) ForgotPassword(ctx context.Context, identifier string) error {
	user, err := s.repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Info("password reset requested for unknown identifier")
			return nil
		}
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	if err := s.repo.SetResetToken(ctx, user.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		return err
	}

	resetLink := s.frontendURL + "/#/reset-password/" + token

	name := user.Name
	if name == "" {
		name = user.Username
	}

	if s.mailer == nil {
		slog.Warn("smtp not configured, reset link not emailed", "username", user.Username)
		return nil
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, name, resetLink); err != nil {
		slog.Error("failed to send reset email", "username", user.Username, "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token: the token must be unexpired at the
// moment of use, and the password write clears it in the same statement.
func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	user, err := s.repo.GetByValidResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.ResetPassword(ctx, user.ID, string(hashed)); err != nil {
		return err
	}
	s.publishPasswordChanged(ctx, user.ID)
	return nil
}

func (s *UserService) publishPasswordChanged(ctx context.Context, userID int) {
	event := events.NewEvent(types.EventUserPasswordChanged)
	if user, err := s.repo.GetByID(ctx, userID); err == nil {
		event.Username = user.Username
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.Error("failed to publish password changed event", "user_id", userID, "error", err)
	}
}

func newResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
