package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/msomdec/todo-api/internal/domain"
	"github.com/msomdec/todo-api/internal/repository/sqlite"
	"github.com/msomdec/todo-api/internal/service"
)

const testJWTSecret = "test-secret-key-for-unit-tests-0123456789"

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestCodec(t *testing.T, secret string) *service.TokenCodec {
	t.Helper()
	codec, err := service.NewTokenCodec([]byte(secret))
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	return codec
}

func newTestAuthService(t *testing.T) (*service.AuthService, *sqlite.DB) {
	t.Helper()
	db := newTestDB(t)
	// Use cost 4 for fast tests.
	auth := service.NewAuthService(db.Users(), db.Sessions(), newTestCodec(t, testJWTSecret), service.NewBcryptHasher(4))
	return auth, db
}

func TestAuthService_Register_Success(t *testing.T) {
	auth, db := newTestAuthService(t)
	ctx := context.Background()

	user, token, err := auth.Register(ctx, "  New@Example.com ", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected user ID to be set")
	}
	if user.Email != "new@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.PasswordHash == "password123" || user.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}
	if token == "" {
		t.Fatal("expected a session token")
	}

	stored, err := db.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(stored.Sessions) != 1 || stored.Sessions[0].Token != token || stored.Sessions[0].Scope != domain.ScopeAuth {
		t.Fatalf("expected one auth session for the returned token, got %+v", stored.Sessions)
	}
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	auth, db := newTestAuthService(t)
	ctx := context.Background()

	first, _, err := auth.Register(ctx, "dup@example.com", "password123")
	if err != nil {
		t.Fatalf("Register first: %v", err)
	}

	_, _, err = auth.Register(ctx, "DUP@example.com", "otherpassword")
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	stored, err := db.Users().GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.PasswordHash != first.PasswordHash {
		t.Fatal("duplicate registration must not modify the existing user")
	}
}

func TestAuthService_Register_InvalidInput(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "password123"},
		{"malformed email", "not-an-email", "password123"},
		{"display name form", "Bob <bob@example.com>", "password123"},
		{"empty password", "a@example.com", ""},
		{"short password", "a@example.com", "short"},
		{"overlong password", "a@example.com", string(make([]byte, 73))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, token, err := auth.Register(ctx, tt.email, tt.password)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if token != "" {
				t.Fatal("no token may be issued on failure")
			}
		})
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	registered, _, err := auth.Register(ctx, "alice@example.com", "secretpw")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	user, err := auth.Authenticate(ctx, "Alice@Example.com", "secretpw")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.ID != registered.ID {
		t.Fatalf("expected %s, got %s", registered.ID, user.ID)
	}

	_, wrongPw := auth.Authenticate(ctx, "alice@example.com", "wrongpassword")
	_, unknown := auth.Authenticate(ctx, "nobody@example.com", "secretpw")
	if !errors.Is(wrongPw, domain.ErrInvalidCredentials) || !errors.Is(unknown, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", wrongPw, unknown)
	}
	if wrongPw.Error() != unknown.Error() {
		t.Fatalf("failures must be indistinguishable: %q vs %q", wrongPw, unknown)
	}
}

func TestAuthService_Login_IssuesDistinctTokens(t *testing.T) {
	auth, db := newTestAuthService(t)
	ctx := context.Background()

	user, regToken, err := auth.Register(ctx, "login@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, t1, err := auth.Login(ctx, "login@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	_, t2, err := auth.Login(ctx, "login@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if t1 == t2 || t1 == regToken {
		t.Fatal("every login must yield a distinct token")
	}

	stored, err := db.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(stored.Sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(stored.Sessions))
	}
}

func TestAuthService_Login_Failure(t *testing.T) {
	auth, db := newTestAuthService(t)
	ctx := context.Background()

	user, _, err := auth.Register(ctx, "fail@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, token, err := auth.Login(ctx, "fail@example.com", "nope-nope"); !errors.Is(err, domain.ErrInvalidCredentials) || token != "" {
		t.Fatalf("expected ErrInvalidCredentials and no token, got %v %q", err, token)
	}

	stored, err := db.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(stored.Sessions) != 1 {
		t.Fatalf("failed login must not record a session, got %d", len(stored.Sessions))
	}
}

func TestAuthService_ResolveToken(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	registered, token, err := auth.Register(ctx, "resolve@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	user, err := auth.ResolveToken(ctx, token)
	if err != nil {
		t.Fatalf("ResolveToken: %v", err)
	}
	if user.ID != registered.ID {
		t.Fatalf("expected %s, got %s", registered.ID, user.ID)
	}

	if _, err := auth.ResolveToken(ctx, ""); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for empty token, got %v", err)
	}
	if _, err := auth.ResolveToken(ctx, "garbage"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for garbage, got %v", err)
	}
}

func TestAuthService_ResolveToken_SignedButNeverRecorded(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	user, _, err := auth.Register(ctx, "unrecorded@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Same secret, valid signature, but the ledger never saw it.
	forged, err := newTestCodec(t, testJWTSecret).Issue(user.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := auth.ResolveToken(ctx, forged); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthService_Logout_RevokesOnlyThatToken(t *testing.T) {
	auth, _ := newTestAuthService(t)
	codec := newTestCodec(t, testJWTSecret)
	ctx := context.Background()

	user, a, err := auth.Register(ctx, "logout@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, b, err := auth.Login(ctx, "logout@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := auth.Logout(ctx, user.ID, a); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := auth.ResolveToken(ctx, a); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
	if _, err := auth.ResolveToken(ctx, b); err != nil {
		t.Fatalf("expected other session to survive, got %v", err)
	}

	// The revoked token still verifies cryptographically.
	if _, err := codec.Verify(a); err != nil {
		t.Fatalf("revoked token should still verify: %v", err)
	}

	// Logging out twice is harmless.
	if err := auth.Logout(ctx, user.ID, a); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
}

func TestAuthService_LogoutAll(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	user, a, err := auth.Register(ctx, "all@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, b, err := auth.Login(ctx, "all@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := auth.LogoutAll(ctx, user.ID); err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	for _, tok := range []string{a, b} {
		if _, err := auth.ResolveToken(ctx, tok); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("expected all sessions revoked, got %v", err)
		}
	}
}

func TestAuthService_ConcurrentLogins(t *testing.T) {
	auth, db := newTestAuthService(t)
	ctx := context.Background()

	user, _, err := auth.Register(ctx, "race@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	const n = 8
	tokens := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, tokens[i], errs[i] = auth.Login(ctx, "race@example.com", "password123")
		}()
	}
	wg.Wait()

	for i := range n {
		if errs[i] != nil {
			t.Fatalf("Login %d: %v", i, errs[i])
		}
		if _, err := auth.ResolveToken(ctx, tokens[i]); err != nil {
			t.Fatalf("token %d not live: %v", i, err)
		}
	}

	stored, err := db.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(stored.Sessions) != n+1 {
		t.Fatalf("expected %d sessions, got %d", n+1, len(stored.Sessions))
	}
}

func TestAuthService_ChangePassword(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	user, current, err := auth.Register(ctx, "change@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, other, err := auth.Login(ctx, "change@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := auth.ChangePassword(ctx, user.ID, current, "wrong-password", "newpassword1"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for wrong current password, got %v", err)
	}
	if err := auth.ChangePassword(ctx, user.ID, current, "password123", "short"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for weak new password, got %v", err)
	}

	if err := auth.ChangePassword(ctx, user.ID, current, "password123", "newpassword1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := auth.ResolveToken(ctx, current); err != nil {
		t.Fatalf("presenting session should stay live: %v", err)
	}
	if _, err := auth.ResolveToken(ctx, other); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("other sessions should be revoked, got %v", err)
	}
	if _, err := auth.Authenticate(ctx, "change@example.com", "password123"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password should fail, got %v", err)
	}
	if _, err := auth.Authenticate(ctx, "change@example.com", "newpassword1"); err != nil {
		t.Fatalf("new password should work: %v", err)
	}
}

func TestAuthService_DeleteAccount(t *testing.T) {
	auth, db := newTestAuthService(t)
	todos := service.NewTodoService(db.Todos())
	ctx := context.Background()

	user, token, err := auth.Register(ctx, "delete@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := todos.Create(ctx, user.ID, "leftover"); err != nil {
		t.Fatalf("Create todo: %v", err)
	}

	if err := auth.DeleteAccount(ctx, user.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := auth.ResolveToken(ctx, token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected token of deleted account to be rejected, got %v", err)
	}
	if _, err := db.Users().GetByID(ctx, user.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	left, err := todos.List(ctx, user.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected todos removed, got %d", len(left))
	}
}

// faultyLedger wraps a real ledger and fails the operations it is told to.
type faultyLedger struct {
	domain.SessionLedger

	recordErr error
	// revokeOthersErrOnCall fails the n-th RevokeOthers call (1-based).
	revokeOthersErrOnCall int
	revokeOthersCalls     int
}

func (f *faultyLedger) Record(ctx context.Context, userID string, session domain.Session) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	return f.SessionLedger.Record(ctx, userID, session)
}

func (f *faultyLedger) RevokeOthers(ctx context.Context, userID, keepToken string) error {
	f.revokeOthersCalls++
	if f.revokeOthersCalls == f.revokeOthersErrOnCall {
		return errors.New("ledger unavailable")
	}
	return f.SessionLedger.RevokeOthers(ctx, userID, keepToken)
}

func newFaultyAuthService(t *testing.T) (*service.AuthService, *faultyLedger, *sqlite.DB) {
	t.Helper()
	db := newTestDB(t)
	ledger := &faultyLedger{SessionLedger: db.Sessions()}
	auth := service.NewAuthService(db.Users(), ledger, newTestCodec(t, testJWTSecret), service.NewBcryptHasher(4))
	return auth, ledger, db
}

func TestAuthService_ChangePassword_LedgerFailsFirst(t *testing.T) {
	auth, ledger, _ := newFaultyAuthService(t)
	ctx := context.Background()

	user, current, err := auth.Register(ctx, "first@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, other, err := auth.Login(ctx, "first@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	ledger.revokeOthersErrOnCall = 1
	err = auth.ChangePassword(ctx, user.ID, current, "password123", "newpassword1")
	if err == nil || errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected a store error, got %v", err)
	}

	// Nothing changed: old password and both sessions still work.
	if _, err := auth.Authenticate(ctx, "first@example.com", "password123"); err != nil {
		t.Fatalf("old password should still work: %v", err)
	}
	for _, tok := range []string{current, other} {
		if _, err := auth.ResolveToken(ctx, tok); err != nil {
			t.Fatalf("session should still be live: %v", err)
		}
	}
}

func TestAuthService_ChangePassword_LedgerFailsAfterHashWritten(t *testing.T) {
	auth, ledger, _ := newFaultyAuthService(t)
	ctx := context.Background()

	user, current, err := auth.Register(ctx, "second@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, other, err := auth.Login(ctx, "second@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	ledger.revokeOthersErrOnCall = 2
	if err := auth.ChangePassword(ctx, user.ID, current, "password123", "newpassword1"); err == nil {
		t.Fatal("expected the failed sweep to be reported")
	}

	// The password changed, so no earlier session may survive, and the
	// caller's own session is never dropped.
	if _, err := auth.Authenticate(ctx, "second@example.com", "newpassword1"); err != nil {
		t.Fatalf("new password should work: %v", err)
	}
	if _, err := auth.ResolveToken(ctx, other); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("other session should be revoked, got %v", err)
	}
	if _, err := auth.ResolveToken(ctx, current); err != nil {
		t.Fatalf("presenting session should stay live: %v", err)
	}
}

func TestAuthService_Register_RollsBackWithoutSession(t *testing.T) {
	auth, ledger, db := newFaultyAuthService(t)
	ctx := context.Background()

	ledger.recordErr = errors.New("ledger unavailable")
	_, token, err := auth.Register(ctx, "retry@example.com", "password123")
	if err == nil || token != "" {
		t.Fatalf("expected failure without a token, got %q, %v", token, err)
	}
	if _, err := db.Users().GetByEmail(ctx, "retry@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected the account to be rolled back, got %v", err)
	}

	ledger.recordErr = nil
	if _, _, err := auth.Register(ctx, "retry@example.com", "password123"); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
}

// recordingHasher remembers every hash it is asked to verify against.
type recordingHasher struct {
	service.PasswordHasher

	hashErr  error
	verified []string
}

func (h *recordingHasher) Hash(password string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return h.PasswordHasher.Hash(password)
}

func (h *recordingHasher) Verify(password, hash string) (bool, error) {
	h.verified = append(h.verified, hash)
	return h.PasswordHasher.Verify(password, hash)
}

func TestAuthService_Authenticate_UnknownEmailComparesDecoy(t *testing.T) {
	tests := []struct {
		name    string
		hashErr error
	}{
		{"derived decoy", nil},
		{"decoy derivation failed", errors.New("entropy exhausted")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			hasher := &recordingHasher{PasswordHasher: service.NewBcryptHasher(4), hashErr: tt.hashErr}
			auth := service.NewAuthService(db.Users(), db.Sessions(), newTestCodec(t, testJWTSecret), hasher)

			_, err := auth.Authenticate(context.Background(), "nobody@example.com", "password123")
			if !errors.Is(err, domain.ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			if len(hasher.verified) != 1 {
				t.Fatalf("expected one comparison, got %d", len(hasher.verified))
			}
			if !strings.HasPrefix(hasher.verified[0], "$2a$") {
				t.Fatalf("expected a bcrypt decoy, got %q", hasher.verified[0])
			}
		})
	}
}
