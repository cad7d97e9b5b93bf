package main

// seeds links onto a user's profile from a text file. Each non-blank line is
// "title|url"; lines starting with # are skipped. New links are ordered after
// the ones already on the profile.

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/glog"

	"linkbio/config"
	"linkbio/models"
	"linkbio/pkg/cleantext"
	"linkbio/store"
)

type entry struct {
	Title string
	URL   string
}

func parseLine(line string) (entry, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return entry{}, false, nil
	}
	title, rawURL, ok := strings.Cut(line, "|")
	if !ok {
		return entry{}, false, fmt.Errorf("missing '|' separator")
	}
	e := entry{Title: cleantext.Limit(cleantext.Text(title), 100), URL: strings.TrimSpace(rawURL)}
	if e.Title == "" {
		return entry{}, false, fmt.Errorf("empty title")
	}
	u, err := url.Parse(e.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return entry{}, false, fmt.Errorf("invalid url %q", e.URL)
	}
	if len(e.URL) > 200 {
		return entry{}, false, fmt.Errorf("url longer than 200 characters")
	}
	return e, true, nil
}

func main() {
	username := flag.String("username", "", "owner of the profile to seed")
	file := flag.String("file", "links.txt", "file with title|url lines")
	dry := flag.Bool("dry-run", false, "parse and print without writing")
	configFile := flag.String("config", "", "config file")
	flag.Parse()
	defer glog.Flush()
	if *username == "" {
		glog.Exit("--username is required")
	}

	f, err := os.Open(filepath.Clean(*file))
	if err != nil {
		glog.Exitf("open %s: %v", *file, err)
	}
	defer f.Close()
	var entries []entry
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		e, ok, err := parseLine(scanner.Text())
		if err != nil {
			glog.Warningf("%s:%d: %v, skipping", *file, n, err)
			continue
		}
		if ok {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		glog.Exitf("read %s: %v", *file, err)
	}
	if *dry {
		for _, e := range entries {
			fmt.Printf("%s -> %s\n", e.Title, e.URL)
		}
		fmt.Printf("dry-run: %d links parsed, nothing written\n", len(entries))
		return
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
	user, err := st.UserByUsername(ctx, *username)
	if err != nil {
		glog.Exitf("user %s: %v", *username, err)
	}
	profile, err := st.ProfileByUserID(ctx, user.ID)
	if err != nil {
		glog.Exitf("profile for %s: %v", *username, err)
	}
	existing, err := st.LinksForProfile(ctx, profile.ID)
	if err != nil {
		glog.Exitf("list links: %v", err)
	}
	next := 0
	for _, l := range existing {
		if l.Order >= next {
			next = l.Order + 1
		}
	}

	err = st.Transaction(ctx, func(tx *store.Store) error {
		for i, e := range entries {
			l := &models.Link{ProfileID: profile.ID, Title: e.Title, URL: e.URL, Order: next + i}
			if err := tx.CreateLink(ctx, l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		glog.Exitf("seed failed: %v", err)
	}
	fmt.Printf("seeded %d links onto /p/%s/\n", len(entries), profile.Slug)
}
