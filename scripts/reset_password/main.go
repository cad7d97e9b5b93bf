package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/golang/glog"

	"linkbio/accounts"
	"linkbio/config"
	"linkbio/store"
)

func main() {
	username := flag.String("username", "", "username to reset")
	password := flag.String("password", "", "new plaintext password")
	configFile := flag.String("config", "", "config file")
	flag.Parse()
	defer glog.Flush()
	if *username == "" || *password == "" {
		glog.Exit("--username and --password are required")
	}

	cfg, _, err := config.Load(*configFile)
	if err != nil {
		glog.Exitf("config: %v", err)
	}
	st, err := store.Open(cfg.Database.DSN)
	if err != nil {
		glog.Exitf("open db: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	svc := accounts.New(st, accounts.Options{JWTSecret: []byte(cfg.Auth.JWTSecret), BcryptCost: cfg.Auth.BcryptCost})
	revoked, err := svc.SetPassword(ctx, *username, *password)
	if err != nil {
		glog.Exitf("reset failed: %v", err)
	}
	fmt.Printf("Password reset for user %s (%d tokens revoked)\n", *username, revoked)
}
