package accounts

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"linkbio/models"
	"linkbio/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.Open("sqlite://" + filepath.Join(t.TempDir(), "accounts.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := st.SeedRoles(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return New(st, Options{JWTSecret: []byte("test-secret"), BcryptCost: bcrypt.MinCost})
}

func TestValidUsername(t *testing.T) {
	for name, want := range map[string]bool{
		"alice":                  true,
		"a.b+c-d_e@f":            true,
		"":                       false,
		"has space":              false,
		"semi;colon":             false,
		strings.Repeat("a", 151): false,
	} {
		if got := ValidUsername(name); got != want {
			t.Errorf("ValidUsername(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestRegisterCreatesUserProfileAndToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, Registration{Username: "alice", Password: "p1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.User.Username != "alice" || res.Tokens.Access == "" || res.Tokens.Refresh == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Profile.Slug != "alice" {
		t.Fatalf("slug = %q", res.Profile.Slug)
	}
	if res.User.IsStaff() {
		t.Fatal("registered user must not be staff")
	}

	user, tok, err := svc.Resolve(ctx, res.Tokens.Access)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if user.ID != res.User.ID || tok.Kind != models.TokenAccess {
		t.Fatalf("resolved %+v / %+v", user, tok)
	}
}

func TestRegisterDuplicateLeavesNoRows(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, Registration{Username: "bob", Password: "x"}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Register(ctx, Registration{Username: "bob", Password: "y"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	profiles, err := svc.Store().ListProfiles(ctx, store.All)
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 1 {
		t.Fatalf("%d profiles after failed registration, want 1", len(profiles))
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, Registration{Username: "bad name", Password: "x"}); !errors.Is(err, ErrInvalidUsername) {
		t.Errorf("bad username: %v", err)
	}
	if _, err := svc.Register(ctx, Registration{Username: "ok"}); !errors.Is(err, ErrPasswordRequired) {
		t.Errorf("missing password: %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, Registration{Username: "carol", Password: "secret"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Login(ctx, "carol", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: %v", err)
	}
	_, tokens, err := svc.Login(ctx, " carol ", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if tokens.Access == "" {
		t.Fatal("empty access token")
	}
}

func TestRefreshRotates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	res, err := svc.Register(ctx, Registration{Username: "dave", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	_, next, err := svc.Refresh(ctx, res.Tokens.Refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.Refresh == res.Tokens.Refresh {
		t.Fatal("refresh token was not rotated")
	}
	if _, _, err := svc.Refresh(ctx, res.Tokens.Refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("old refresh token still usable: %v", err)
	}
	if _, _, err := svc.Resolve(ctx, next.Access); err != nil {
		t.Fatalf("new access token: %v", err)
	}
	if err := svc.RevokeRefresh(ctx, next.Refresh); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Refresh(ctx, next.Refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("revoked refresh token accepted: %v", err)
	}
}

func TestResolveRejects(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	res, err := svc.Register(ctx, Registration{Username: "erin", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := svc.Resolve(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: %v", err)
	}

	other := New(svc.Store(), Options{JWTSecret: []byte("other-secret")})
	if _, _, err := other.Resolve(ctx, res.Tokens.Access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign signature: %v", err)
	}

	// a correctly signed token that was never stored
	forged, _, err := svc.issueAccess(ctx, svc.Store(), res.User)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Store().DB().Where("token_hash = ?", HashToken(forged)).Delete(&models.AuthToken{}).Error; err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Resolve(ctx, forged); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("unstored token: %v", err)
	}

	_, row, err := svc.Resolve(ctx, res.Tokens.Access)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Logout(ctx, row); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Resolve(ctx, res.Tokens.Access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("logged out token: %v", err)
	}
}

func TestResolveExpired(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	res, err := svc.Register(ctx, Registration{Username: "fred", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	if _, _, err := svc.Resolve(ctx, res.Tokens.Access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token accepted: %v", err)
	}
	n, err := svc.PurgeExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("purged %d tokens, want 1 (the refresh token lives 30 days)", n)
	}
}

func TestSetPasswordRevokesTokens(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	res, err := svc.Register(ctx, Registration{Username: "gina", Password: "old"})
	if err != nil {
		t.Fatal(err)
	}
	n, err := svc.SetPassword(ctx, "gina", "new")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("revoked %d tokens, want 2", n)
	}
	if _, _, err := svc.Resolve(ctx, res.Tokens.Access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token survived password change: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "gina", "new"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if err := svc.EnsureAdmin(ctx, "admin", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Store().UserByUsername(ctx, "admin"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("admin created without password: %v", err)
	}
	if err := svc.EnsureAdmin(ctx, "admin", "s3cret"); err != nil {
		t.Fatal(err)
	}
	admin, err := svc.Store().UserByUsername(ctx, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if !admin.IsStaff() {
		t.Fatal("admin is not staff")
	}
	if _, err := svc.Store().ProfileByUserID(ctx, admin.ID); err != nil {
		t.Fatalf("admin has no profile: %v", err)
	}
	// idempotent
	if err := svc.EnsureAdmin(ctx, "admin", "s3cret"); err != nil {
		t.Fatal(err)
	}
}
