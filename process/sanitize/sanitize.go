// Package sanitize empties application tables, e.g. to reset a staging database.
package sanitize

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang/glog"

	"linkbio/store"
)

// Options control a sanitize run. Nothing is changed unless DryRun is false and
// Yes is true.
type Options struct {
	DryRun bool
	Yes    bool
	// Tables defaults to every application table.
	Tables []string
}

// ParseTables splits a comma separated list, dropping blanks.
func ParseTables(list string) []string {
	var out []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Run reports the tables it would empty to w and empties them when confirmed.
// It returns the tables that were truncated.
func Run(ctx context.Context, st *store.Store, w io.Writer, opts Options) ([]string, error) {
	wanted := opts.Tables
	if len(wanted) == 0 {
		wanted = store.TableNames()
	}
	existing, err := st.ExistingTables(ctx, wanted)
	if err != nil {
		return nil, err
	}
	if len(existing) < len(wanted) {
		glog.Infof("sanitize: %d of %d requested tables are missing or invalid, skipping them", len(wanted)-len(existing), len(wanted))
	}
	if len(existing) == 0 {
		fmt.Fprintln(w, "no requested tables present in the database; nothing to do")
		return nil, nil
	}

	fmt.Fprintln(w, "Tables considered for truncation:")
	for _, t := range existing {
		fmt.Fprintf(w, " - %s\n", t)
	}
	if opts.DryRun {
		fmt.Fprintln(w, "dry-run enabled; no changes will be made. Use --dry-run=false --yes to execute.")
		return nil, nil
	}
	if !opts.Yes {
		fmt.Fprintln(w, "Destructive operation. Pass --yes to confirm execution. Aborting.")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := st.Truncate(ctx, existing); err != nil {
		return nil, fmt.Errorf("truncate: %w", err)
	}
	glog.Infof("sanitize: truncated %s", strings.Join(existing, ", "))
	fmt.Fprintln(w, "Truncate completed.")
	return existing, nil
}
