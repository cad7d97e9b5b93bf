package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/golang/glog"

	"linkbio/config"
	"linkbio/store"
)

func main() {
	user := flag.String("user", "", "Username whose link clicks are removed. If empty, removes clicks for all users.")
	dry := flag.Bool("dry-run", true, "Preview actions without modifying the DB")
	yes := flag.Bool("yes", false, "Confirm destructive action when dry-run=false")
	configFile := flag.String("config", "", "config file")
	flag.Parse()
	defer glog.Flush()

	cfg, _, err := config.Load(*configFile)
	if err != nil {
		glog.Exitf("config: %v", err)
	}
	st, err := store.Open(cfg.Database.DSN)
	if err != nil {
		glog.Exitf("failed to connect db: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	scope := store.All
	target := "ALL users"
	if *user != "" {
		u, err := st.UserByUsername(ctx, *user)
		if err != nil {
			glog.Exitf("user lookup failed for %s: %v", *user, err)
		}
		scope = store.Scope{UserID: u.ID}
		target = fmt.Sprintf("user %s (id=%d)", u.Username, u.ID)
	}
	n, err := st.CountScopedClicks(ctx, scope)
	if err != nil {
		glog.Exitf("count clicks: %v", err)
	}

	fmt.Printf("Planned actions for %s:\n", target)
	fmt.Printf(" - DELETE %d rows from clicks\n", n)
	if *dry {
		fmt.Println("dry-run: no changes made. Use --dry-run=false --yes to execute.")
		return
	}
	if !*yes {
		fmt.Println("Destructive! Pass --yes to proceed.")
		return
	}
	deleted, err := st.DeleteClicks(ctx, scope)
	if err != nil {
		glog.Exitf("delete clicks failed: %v", err)
	}
	glog.Infof("cleanup_clicks: removed %d clicks for %s", deleted, target)
	fmt.Printf("cleanup done: %d clicks removed\n", deleted)
}
