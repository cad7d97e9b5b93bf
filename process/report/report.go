// Package report prints per-link click totals for one user and month.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"linkbio/store"
)

// MonthRange parses YYYY-MM and returns the [start, end) bounds in UTC.
func MonthRange(month string) (time.Time, time.Time, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM", month)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}

// Run writes a month-bounded click report for username to w and, when list is
// set, every click in the window.
func Run(ctx context.Context, st *store.Store, w io.Writer, username, month string, list bool) error {
	user, err := st.UserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("user %s: %w", username, err)
	}
	start, end, err := MonthRange(month)
	if err != nil {
		return err
	}
	rows, err := st.ClickCountsBetween(ctx, user.ID, start, end)
	if err != nil {
		return err
	}
	var total int64
	for _, r := range rows {
		total += r.Clicks
	}
	fmt.Fprintf(w, "Report for user=%s month=%s (UTC):\n", user.Username, month)
	fmt.Fprintf(w, "  links=%d clicks=%d\n", len(rows), total)
	for _, r := range rows {
		fmt.Fprintf(w, "  %d|%s|%s|%d\n", r.LinkID, r.Title, r.URL, r.Clicks)
	}

	if list {
		clicks, err := st.ClicksBetween(ctx, user.ID, start, end)
		if err != nil {
			return err
		}
		for _, c := range clicks {
			ip := ""
			if c.IPAddress != nil {
				ip = *c.IPAddress
			}
			fmt.Fprintf(w, "%d|%d|%s|%s\n", c.ID, c.LinkID, c.ClickedAt.UTC().Format(time.RFC3339), ip)
		}
	}
	return nil
}
