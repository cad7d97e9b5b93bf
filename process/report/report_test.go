package report

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"linkbio/models"
	"linkbio/store"
)

func TestMonthRange(t *testing.T) {
	start, end, err := MonthRange("2025-12")
	if err != nil {
		t.Fatal(err)
	}
	if !start.Equal(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("range = %v .. %v", start, end)
	}
	if _, _, err := MonthRange("12-2025"); err == nil {
		t.Fatal("expected error for bad month")
	}
}

func TestRun(t *testing.T) {
	st, err := store.Open("sqlite://" + filepath.Join(t.TempDir(), "report.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.Migrate(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	u := &models.User{Username: "alice", HashedPassword: []byte("x")}
	if err := st.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	p := models.NewProfile(u.ID)
	if err := st.CreateProfile(ctx, p, u.Username); err != nil {
		t.Fatal(err)
	}
	l := &models.Link{ProfileID: p.ID, Title: "blog", URL: "https://example.com"}
	if err := st.CreateLink(ctx, l); err != nil {
		t.Fatal(err)
	}
	ip := "192.0.2.1"
	for i := 0; i < 2; i++ {
		if _, err := st.CreateClick(ctx, l.ID, &ip); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	month := time.Now().UTC().Format("2006-01")
	if err := Run(ctx, st, &out, "alice", month, true); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, "links=1 clicks=2") {
		t.Fatalf("unexpected totals:\n%s", got)
	}
	if strings.Count(got, "|"+ip) != 2 {
		t.Fatalf("expected two listed clicks:\n%s", got)
	}

	if err := Run(ctx, st, &out, "nobody", month, false); err == nil {
		t.Fatal("expected error for unknown user")
	}
}
