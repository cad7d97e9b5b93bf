package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"

	"linkbio/accounts"
	"linkbio/config"
	"linkbio/storage"
	"linkbio/store"
)

// initDB opens the database and, unless disabled with database.auto_migrate
// (DB_AUTO_MIGRATE), migrates the schema. Roles are always seeded so the users
// foreign key can be satisfied.
func initDB(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	glog.Infof("connected to %s database", st.Dialect())
	if cfg.Database.AutoMigrate {
		if err := st.Migrate(); err != nil {
			st.Close()
			return nil, err
		}
		glog.V(1).Info("schema migrated")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := st.SeedRoles(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func newAccounts(cfg *config.Config, st *store.Store) *accounts.Service {
	return accounts.New(st, accounts.Options{
		JWTSecret:  []byte(cfg.Auth.JWTSecret),
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	})
}

// newMedia picks the image storage backend.
func newMedia(ctx context.Context, cfg *config.Config, prefix string) (storage.Storage, string, error) {
	switch strings.ToLower(cfg.Uploads.Backend) {
	case "", "local":
		l, err := storage.NewLocal(cfg.Uploads.BaseDir, prefix)
		if err != nil {
			return nil, "", err
		}
		return l, l.BaseDir, nil
	case "s3", "minio":
		s3, err := storage.NewS3(ctx, storage.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			UseSSL:    cfg.S3.UseSSL,
			PublicURL: cfg.S3.PublicURL,
		})
		if err != nil {
			return nil, "", err
		}
		return s3, "", nil
	default:
		return nil, "", fmt.Errorf("unknown uploads.backend %q", cfg.Uploads.Backend)
	}
}

// newServer wires the request handlers to st. The admin account from the config
// is seeded here, like the other startup data.
func newServer(cfg *config.Config, st *store.Store) (*server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	prefix := strings.TrimRight(cfg.Uploads.PublicPrefix, "/")
	if prefix == "" {
		prefix = "/media"
	}
	media, localDir, err := newMedia(ctx, cfg, prefix)
	if err != nil {
		return nil, err
	}
	s := &server{
		store:       st,
		accounts:    newAccounts(cfg, st),
		media:       media,
		localMedia:  localDir,
		mediaPrefix: prefix,
	}
	s.reload(cfg)
	if err := s.accounts.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		return nil, err
	}
	return s, nil
}
