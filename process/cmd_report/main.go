package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"

	"linkbio/config"
	"linkbio/process/report"
	"linkbio/store"
)

func main() {
	username := flag.String("username", "", "username to report for")
	month := flag.String("month", time.Now().UTC().Format("2006-01"), "month to report (YYYY-MM)")
	list := flag.Bool("list", false, "list matching clicks")
	configFile := flag.String("config", "", "config file")
	flag.Parse()
	defer glog.Flush()
	if *username == "" {
		fmt.Fprintln(os.Stderr, "--username is required")
		os.Exit(2)
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

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := report.Run(ctx, st, os.Stdout, *username, *month, *list); err != nil {
		glog.Exitf("report: %v", err)
	}
}
