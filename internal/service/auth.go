package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/mail"

	"github.com/msomdec/todo-api/internal/domain"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes, so longer passwords are refused
	// rather than silently truncated.
	maxPasswordLen = 72
	maxEmailLen    = 254

	// fallbackDecoyHash is a cost-12 bcrypt hash of a discarded random
	// password, used only if the decoy cannot be derived at startup.
	fallbackDecoyHash = "$2a$12$ldi2kHnUcoK88oLxUk.SK.jCLUF3eD4RpQzEtgYErIuNmBcz2q9yS"
)

// AuthService handles registration, login, logout and the resolution of
// session tokens into users.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionLedger
	tokens   *TokenCodec
	hasher   PasswordHasher

	// decoyHash is compared against when the email is unknown so that both
	// login failures cost one hash comparison.
	decoyHash string
}

// NewAuthService creates a new AuthService. It derives the decoy hash up
// front with hasher.
func NewAuthService(users domain.UserRepository, sessions domain.SessionLedger, tokens *TokenCodec, hasher PasswordHasher) *AuthService {
	decoy, err := hasher.Hash(rand.Text())
	if err != nil || decoy == "" {
		decoy = fallbackDecoyHash
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		hasher:    hasher,
		decoyHash: decoy,
	}
}

// Register creates a new user account and logs it in. It returns the user
// and the token of its first session.
func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.User, string, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, "", err
	}
	if err := validatePassword(password); err != nil {
		return nil, "", err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, "", err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.startSession(ctx, user)
	if err != nil {
		// Without its first session the account is removed again so the
		// client can retry the registration.
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			return nil, "", errors.Join(err, fmt.Errorf("roll back user: %w", delErr))
		}
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate checks email and password. Unknown email and wrong password
// both yield domain.ErrInvalidCredentials, and both run one bcrypt
// comparison.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.hasher.Verify(password, s.decoyHash)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the user and opens a new session for it.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, "", err
	}

	token, err := s.startSession(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// ResolveToken turns a presented token into its user. The checks run in a
// fixed order and each one can reject:
//
//  1. signature and payload (TokenCodec.Verify),
//  2. liveness in the session ledger,
//  3. existence of the user.
//
// Step 2 is never skipped for a token that passed step 1: a logged-out
// token keeps a valid signature forever.
//
// Rejections match domain.ErrUnauthenticated; any other error is a store failure.
func (s *AuthService) ResolveToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	payload, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	live, err := s.sessions.IsLive(ctx, payload.UserID, token)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !live {
		return nil, domain.ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Logout revokes a single session of the user.
func (s *AuthService) Logout(ctx context.Context, userID, token string) error {
	if err := s.sessions.Revoke(ctx, userID, token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// LogoutAll revokes every session of the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	if err := s.sessions.RevokeAll(ctx, userID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

// ChangePassword replaces the user's password hash with one derived from
// newPassword under a fresh salt, and revokes every session except
// currentToken.
//
// Other sessions are revoked both before and after the hash is written.
// currentToken stays in the ledger throughout. If a step fails, no session
// opened before the call outlives a changed password.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentToken, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	ok, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: current password is incorrect", domain.ErrInvalidInput)
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.sessions.RevokeOthers(ctx, userID, currentToken); err != nil {
		return fmt.Errorf("revoke other sessions: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	// Sweep sessions opened with the old password while the hash was written.
	if err := s.sessions.RevokeOthers(ctx, userID, currentToken); err != nil {
		return fmt.Errorf("revoke other sessions: %w", err)
	}
	return nil
}

// DeleteAccount removes the user, its todos and its sessions.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.sessions.RevokeAll(ctx, userID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// startSession mints a token for user and records it in the ledger.
func (s *AuthService) startSession(ctx context.Context, user *domain.User) (string, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	session := domain.Session{Scope: domain.ScopeAuth, Token: token}
	if err := s.sessions.Record(ctx, user.ID, session); err != nil {
		return "", fmt.Errorf("record session: %w", err)
	}
	user.Sessions = append(user.Sessions, session)
	return token, nil
}

func validateEmail(email string) (string, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if len(email) > maxEmailLen {
		return "", fmt.Errorf("%w: email must be %d characters or fewer", domain.ErrInvalidInput, maxEmailLen)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: email is not valid", domain.ErrInvalidInput)
	}
	return email, nil
}

func validatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLen)
	}
	if len(password) > maxPasswordLen {
		return fmt.Errorf("%w: password must be %d bytes or fewer", domain.ErrInvalidInput, maxPasswordLen)
	}
	return nil
}
