package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"

	"linkbio/accounts"
	"linkbio/config"
	"linkbio/store"
)

func main() {
	staff := flag.Bool("staff", false, "give the user the staff role")
	configFile := flag.String("config", "", "config file (defaults to ./configs/config.yaml or ./config.yaml)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: go run ./cmd/create_user [-staff] <username> <password>")
		flag.PrintDefaults()
	}
	flag.Parse()
	defer glog.Flush()
	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(2)
	}
	username, password := flag.Arg(0), flag.Arg(1)

	cfg, _, err := config.Load(*configFile)
	if err != nil {
		glog.Exitf("config: %v", err)
	}
	st, err := store.Open(cfg.Database.DSN)
	if err != nil {
		glog.Exitf("failed to open db: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := st.SeedRoles(ctx); err != nil {
		glog.Exitf("seed roles: %v", err)
	}

	svc := accounts.New(st, accounts.Options{JWTSecret: []byte(cfg.Auth.JWTSecret), BcryptCost: cfg.Auth.BcryptCost})
	user, err := svc.CreateAccount(ctx, username, password, *staff)
	switch {
	case errors.Is(err, accounts.ErrUsernameTaken):
		existing, _ := st.UserByUsername(ctx, username)
		if existing != nil {
			fmt.Printf("user %s already exists (id=%d)\n", username, existing.ID)
		}
		return
	case err != nil:
		glog.Exitf("failed to create user: %v", err)
	}
	p, err := st.ProfileByUserID(ctx, user.ID)
	if err != nil {
		glog.Warningf("profile lookup: %v", err)
		fmt.Printf("created user %s id=%d staff=%v\n", user.Username, user.ID, *staff)
		return
	}
	fmt.Printf("created user %s id=%d staff=%v slug=%s\n", user.Username, user.ID, *staff, p.Slug)
}
