package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"linkbio/models"
	"linkbio/pkg/slug"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := s.SeedRoles(context.Background()); err != nil {
		t.Fatalf("seed roles: %v", err)
	}
	return s
}

func mustUser(t *testing.T, s *Store, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, HashedPassword: []byte("x")}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func mustProfile(t *testing.T, s *Store, u *models.User) *models.Profile {
	t.Helper()
	p := models.NewProfile(u.ID)
	if err := s.CreateProfile(context.Background(), p, u.Username); err != nil {
		t.Fatalf("create profile for %s: %v", u.Username, err)
	}
	return p
}

func mustLink(t *testing.T, s *Store, p *models.Profile, title string, order int) *models.Link {
	t.Helper()
	l := &models.Link{ProfileID: p.ID, Title: title, URL: "https://example.com/" + title, Order: order}
	if err := s.CreateLink(context.Background(), l); err != nil {
		t.Fatalf("create link %s: %v", title, err)
	}
	return l
}

func TestSqlitePath(t *testing.T) {
	cases := []struct {
		dsn  string
		ok   bool
		want string
	}{
		{"sqlite://data/app.db", true, "data/app.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"app.db", true, "app.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"file:x.db?mode=memory", true, "file:x.db?mode=memory&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"postgres://u:p@localhost/db", false, ""},
		{"host=localhost user=u dbname=db", false, ""},
	}
	for _, c := range cases {
		got, ok := sqlitePath(c.dsn)
		if ok != c.ok || got != c.want {
			t.Errorf("sqlitePath(%q) = %q, %v; want %q, %v", c.dsn, got, ok, c.want, c.ok)
		}
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	s := openTestStore(t)
	mustUser(t, s, "alice")
	err := s.CreateUser(context.Background(), &models.User{Username: "alice", HashedPassword: []byte("y")})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateProfileSlugs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p1 := mustProfile(t, s, mustUser(t, s, "Alice"))
	if p1.Slug != "alice" {
		t.Fatalf("slug = %q, want alice", p1.Slug)
	}
	p2 := mustProfile(t, s, mustUser(t, s, "alice!"))
	if p2.Slug != "alice-2" {
		t.Fatalf("slug = %q, want alice-2", p2.Slug)
	}
	p3 := mustProfile(t, s, mustUser(t, s, "ALICE"))
	if p3.Slug != "alice-3" {
		t.Fatalf("slug = %q, want alice-3", p3.Slug)
	}
	p4 := mustProfile(t, s, mustUser(t, s, "@@@"))
	if p4.Slug != "user" {
		t.Fatalf("slug = %q, want user", p4.Slug)
	}

	// explicit slugs are not suffixed
	bob := mustUser(t, s, "bob")
	err := s.CreateProfile(ctx, &models.Profile{UserID: bob.ID, Slug: "alice"}, bob.Username)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("explicit duplicate slug: got %v", err)
	}
	err = s.CreateProfile(ctx, &models.Profile{UserID: bob.ID, Slug: "Not Valid"}, bob.Username)
	if !errors.Is(err, ErrInvalidSlug) {
		t.Fatalf("invalid slug: got %v", err)
	}

	// one profile per user
	err = s.CreateProfile(ctx, models.NewProfile(p1.UserID), "whatever")
	if !errors.Is(err, ErrProfileExists) {
		t.Fatalf("second profile: got %v", err)
	}
}

func TestCreateProfileLongSlugs(t *testing.T) {
	s := openTestStore(t)
	seen := map[string]bool{}
	for n := 101; n <= 110; n++ {
		p := mustProfile(t, s, mustUser(t, s, strings.Repeat("a", n)))
		if !slug.Valid(p.Slug) {
			t.Fatalf("slug %q is not valid", p.Slug)
		}
		if seen[p.Slug] {
			t.Fatalf("slug %q handed out twice", p.Slug)
		}
		seen[p.Slug] = true
	}
	if !seen[strings.Repeat("a", 100)] || !seen[strings.Repeat("a", 97)+"-10"] {
		t.Fatalf("unexpected slugs: %v", seen)
	}
}

func TestCreateProfileInsideTransaction(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustProfile(t, s, mustUser(t, s, "carol"))

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx *Store) error {
		u := &models.User{Username: "Carol", HashedPassword: []byte("x")}
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		p := models.NewProfile(u.ID)
		if err := tx.CreateProfile(ctx, p, u.Username); err != nil {
			return err
		}
		if p.Slug != "carol-2" {
			t.Errorf("slug = %q, want carol-2", p.Slug)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("transaction error = %v", err)
	}
	if _, err := s.UserByUsername(ctx, "Carol"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rolled back user still visible: %v", err)
	}
	if _, err := s.ProfileBySlug(ctx, "carol-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rolled back profile still visible: %v", err)
	}
}

func TestLinksOrdered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := mustProfile(t, s, mustUser(t, s, "dave"))
	mustLink(t, s, p, "c", 2)
	mustLink(t, s, p, "a", 0)
	mustLink(t, s, p, "b", 1)
	mustLink(t, s, p, "a2", 0)

	links, err := s.LinksForProfile(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, l := range links {
		got = append(got, l.Title)
	}
	want := []string{"a", "a2", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestScopeHidesForeignRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	pa := mustProfile(t, s, alice)
	pb := mustProfile(t, s, bob)
	la := mustLink(t, s, pa, "a", 0)
	lb := mustLink(t, s, pb, "b", 0)
	if _, err := s.CreateClick(ctx, la.ID, nil); err != nil {
		t.Fatal(err)
	}
	cb, err := s.CreateClick(ctx, lb.ID, nil)
	if err != nil {
		t.Fatal(err)
	}

	as := Scope{UserID: alice.ID}
	profiles, _ := s.ListProfiles(ctx, as)
	if len(profiles) != 1 || profiles[0].ID != pa.ID {
		t.Fatalf("profiles in scope: %+v", profiles)
	}
	links, _ := s.ListLinks(ctx, as)
	if len(links) != 1 || links[0].ID != la.ID {
		t.Fatalf("links in scope: %+v", links)
	}
	clicks, _ := s.ListClicks(ctx, as, 0)
	if len(clicks) != 1 || clicks[0].LinkID != la.ID {
		t.Fatalf("clicks in scope: %+v", clicks)
	}
	// a filter on a foreign link narrows to nothing
	clicks, _ = s.ListClicks(ctx, as, lb.ID)
	if len(clicks) != 0 {
		t.Fatalf("foreign link filter leaked %d clicks", len(clicks))
	}

	if _, err := s.ProfileByID(ctx, as, pb.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign profile: %v", err)
	}
	if _, err := s.LinkByID(ctx, as, lb.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign link: %v", err)
	}
	if _, err := s.ClickByID(ctx, as, cb.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign click: %v", err)
	}
	title := "hijack"
	if _, err := s.UpdateLink(ctx, as, lb.ID, LinkChanges{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign update: %v", err)
	}
	if err := s.DeleteLink(ctx, as, lb.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign delete: %v", err)
	}
	if err := s.DeleteProfile(ctx, as, pb.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign profile delete: %v", err)
	}

	all, _ := s.ListLinks(ctx, All)
	if len(all) != 2 {
		t.Fatalf("staff sees %d links, want 2", len(all))
	}
}

func TestDeleteProfileCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "erin")
	p := mustProfile(t, s, u)
	l := mustLink(t, s, p, "a", 0)
	for i := 0; i < 3; i++ {
		if _, err := s.CreateClick(ctx, l.ID, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.DeleteProfile(ctx, Scope{UserID: u.ID}, p.ID); err != nil {
		t.Fatalf("delete profile: %v", err)
	}
	if ok, _ := s.LinkExists(ctx, l.ID); ok {
		t.Fatal("link survived profile delete")
	}
	if n, _ := s.CountClicks(ctx, l.ID); n != 0 {
		t.Fatalf("%d clicks survived profile delete", n)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "frank")
	p := mustProfile(t, s, u)
	l := mustLink(t, s, p, "a", 0)
	if _, err := s.CreateClick(ctx, l.ID, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateToken(ctx, &models.AuthToken{UserID: u.ID, Kind: models.TokenAccess, TokenHash: "h", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ProfileByUserID(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("profile survived: %v", err)
	}
	if n, _ := s.CountScopedClicks(ctx, All); n != 0 {
		t.Fatalf("%d clicks survived", n)
	}
	if _, err := s.TokenByHash(ctx, models.TokenAccess, "h"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("token survived: %v", err)
	}
}

func TestClickCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := mustProfile(t, s, mustUser(t, s, "gina"))
	l1 := mustLink(t, s, p, "one", 0)
	l2 := mustLink(t, s, p, "two", 1)
	l3 := mustLink(t, s, p, "three", 2)
	ip := "10.0.0.1"
	for i := 0; i < 3; i++ {
		if _, err := s.CreateClick(ctx, l1.ID, &ip); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.CreateClick(ctx, l2.ID, nil); err != nil {
		t.Fatal(err)
	}
	counts, err := s.ClickCounts(ctx, []uint{l1.ID, l2.ID, l3.ID})
	if err != nil {
		t.Fatal(err)
	}
	if counts[l1.ID] != 3 || counts[l2.ID] != 1 || counts[l3.ID] != 0 {
		t.Fatalf("counts = %v", counts)
	}

	now := time.Now().UTC()
	report, err := s.ClickCountsBetween(ctx, p.UserID, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(report) != 3 || report[0].Clicks != 3 || report[1].Clicks != 1 || report[2].Clicks != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestPurgeTokens(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "hank")
	now := time.Now()
	toks := []*models.AuthToken{
		{UserID: u.ID, Kind: models.TokenAccess, TokenHash: "live", ExpiresAt: now.Add(time.Hour)},
		{UserID: u.ID, Kind: models.TokenAccess, TokenHash: "old", ExpiresAt: now.Add(-time.Hour)},
		{UserID: u.ID, Kind: models.TokenRefresh, TokenHash: "revoked", ExpiresAt: now.Add(time.Hour), Revoked: true},
	}
	for _, tok := range toks {
		if err := s.CreateToken(ctx, tok); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.PurgeTokens(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("purged %d, want 2", n)
	}
	if _, err := s.TokenByHash(ctx, models.TokenAccess, "live"); err != nil {
		t.Fatalf("live token gone: %v", err)
	}
}

func TestClaimTokenOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "ivy")
	tok := &models.AuthToken{UserID: u.ID, Kind: models.TokenRefresh, TokenHash: "r1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := s.CreateToken(ctx, tok); err != nil {
		t.Fatal(err)
	}
	if err := s.ClaimToken(ctx, tok.ID); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := s.ClaimToken(ctx, tok.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second claim: got %v, want ErrNotFound", err)
	}
	if err := s.RevokeToken(ctx, tok.ID); err != nil {
		t.Fatalf("revoking a revoked token: %v", err)
	}
}

func TestForeignKeysCascade(t *testing.T) {
	s := openTestStore(t)
	fks, err := s.ForeignKeys(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	cascades := map[string]bool{}
	for _, fk := range fks {
		if fk.OnDelete == "CASCADE" {
			cascades[fk.Table+"->"+fk.ReferencedTable] = true
		}
	}
	for _, edge := range []string{"profiles->users", "links->profiles", "clicks->links", "auth_tokens->users"} {
		if !cascades[edge] {
			t.Errorf("missing cascade %s in %+v", edge, fks)
		}
	}
}
