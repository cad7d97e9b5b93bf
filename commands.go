package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"linkbio/config"
	"linkbio/process/sanitize"
	"linkbio/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the maintenance jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch cfg.Server.Mode {
		case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
			gin.SetMode(cfg.Server.Mode)
		case "":
		default:
			return fmt.Errorf("unknown server.mode %q", cfg.Server.Mode)
		}

		st, err := initDB(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		srv, err := newServer(cfg, st)
		if err != nil {
			return err
		}

		r := gin.Default()
		setupRoutes(r, srv)
		config.Watch(vp, srv.reload)
		jobs := srv.startCron(cfg.Cron.PurgeTokens)
		defer jobs.Stop()

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			glog.Infof("listening on %s", httpSrv.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		glog.Info("shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		glog.Info("server stopped")
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema and seed roles and the admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Database.AutoMigrate = true
		st, err := initDB(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		if _, err := newServer(cfg, st); err != nil {
			return err
		}
		fmt.Println("migration and seeding completed")
		return nil
	},
}

// openStore connects without migrating, for the tools below.
func openStore() (*store.Store, error) {
	return store.Open(cfg.Database.DSN)
}

var issueAll bool

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token [username]",
	Short: "Print a fresh access token for a user, or for every user with --all",
	Args: func(cmd *cobra.Command, args []string) error {
		if issueAll {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		ctx := cmd.Context()
		svc := newAccounts(cfg, st)

		var users []string
		if issueAll {
			all, err := st.ListUsers(ctx)
			if err != nil {
				return err
			}
			for _, u := range all {
				users = append(users, u.Username)
			}
		} else {
			users = args
		}
		for _, name := range users {
			u, err := st.UserByUsername(ctx, name)
			if err != nil {
				return fmt.Errorf("user %s: %w", name, err)
			}
			token, exp, err := svc.IssueAccessToken(ctx, u)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\t%s\n", u.Username, token, exp.UTC().Format(time.RFC3339))
		}
		return nil
	},
}

var debugProfileCmd = &cobra.Command{
	Use:   "debug-profile <username>",
	Short: "Show a user's profile as the API returns it, with a token to call the API as them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		ctx := cmd.Context()
		u, err := st.UserByUsername(ctx, args[0])
		if err != nil {
			return fmt.Errorf("user %s: %w", args[0], err)
		}
		fmt.Printf("user: id=%d username=%s staff=%v\n", u.ID, u.Username, u.IsStaff())

		token, _, err := newAccounts(cfg, st).IssueAccessToken(ctx, u)
		if err != nil {
			return err
		}
		fmt.Printf("token: %s\n", token)

		p, err := st.ProfileByUserID(ctx, u.ID)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Println("profile: none")
			return nil
		}
		if err != nil {
			return err
		}
		rec, err := serializeProfile(ctx, st, p, false)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("profile:\n%s\n", out)
		return nil
	},
}

var purgeTokensCmd = &cobra.Command{
	Use:   "purge-tokens",
	Short: "Delete expired and revoked tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		n, err := newAccounts(cfg, st).PurgeExpired(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("purged %d tokens\n", n)
		return nil
	},
}

var inspectFKsCmd = &cobra.Command{
	Use:   "inspect-fks",
	Short: "List foreign keys and their delete rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		return st.InspectForeignKeys(cmd.Context(), os.Stdout)
	},
}

var (
	sanitizeDry    bool
	sanitizeYes    bool
	sanitizeReseed bool
	sanitizeTables string
)

var sanitizeCmd = &cobra.Command{
	Use:   "sanitize-db",
	Short: "Empty the application tables (destructive)",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		ctx := cmd.Context()
		done, err := sanitize.Run(ctx, st, os.Stdout, sanitize.Options{
			DryRun: sanitizeDry,
			Yes:    sanitizeYes,
			Tables: sanitize.ParseTables(sanitizeTables),
		})
		if err != nil {
			return err
		}
		if len(done) == 0 || !sanitizeReseed {
			return nil
		}
		if err := st.SeedRoles(ctx); err != nil {
			return err
		}
		if err := newAccounts(cfg, st).EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
			return err
		}
		fmt.Println("roles and admin account reseeded")
		return nil
	},
}

func init() {
	issueTokenCmd.Flags().BoolVar(&issueAll, "all", false, "issue a token for every user")

	sanitizeCmd.Flags().BoolVar(&sanitizeDry, "dry-run", true, "only list the tables")
	sanitizeCmd.Flags().BoolVar(&sanitizeYes, "yes", false, "confirm the truncation")
	sanitizeCmd.Flags().BoolVar(&sanitizeReseed, "reseed", false, "seed roles and the admin account afterwards")
	sanitizeCmd.Flags().StringVar(&sanitizeTables, "tables", "", "comma separated tables (default: all application tables)")
}
