// Package store is the persistence layer: gorm models access, owner scoping and
// the cascade rules that keep profiles, links and clicks consistent.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/golang/glog"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"linkbio/models"
)

var (
	// ErrNotFound is returned when a row does not exist or is outside the caller's scope.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("store: duplicate value")
)

// Store wraps a gorm handle. The zero value is not usable; call Open or New.
type Store struct {
	db      *gorm.DB
	dialect string
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db, dialect: db.Dialector.Name()}
}

// Open connects to dsn. sqlite://path, file: URIs and *.db paths use SQLite with
// foreign keys enforced; anything else is handed to the postgres driver.
func Open(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("store: empty DSN")
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	var dialector gorm.Dialector
	if path, ok := sqlitePath(dsn); ok {
		dialector = sqlite.Open(path)
	} else {
		dialector = postgres.Open(dsn)
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialector.Name(), err)
	}
	return New(db), nil
}

func sqlitePath(dsn string) (string, bool) {
	var path string
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		path = strings.TrimPrefix(dsn, "sqlite://")
	case strings.HasPrefix(dsn, "file:"), strings.HasSuffix(dsn, ".db"):
		path = dsn
	default:
		return "", false
	}
	if !strings.Contains(path, "foreign_keys") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	return path, true
}

// DB exposes the underlying handle for tools that need raw access.
func (s *Store) DB() *gorm.DB { return s.db }

// Dialect is "postgres" or "sqlite".
func (s *Store) Dialect() string { return s.dialect }

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Models lists every table in dependency order.
func Models() []any {
	return []any{
		&models.Role{},
		&models.User{},
		&models.Profile{},
		&models.Link{},
		&models.Click{},
		&models.AuthToken{},
	}
}

// Migrate creates or updates all tables. Models are migrated individually so a
// failure names the table it happened on.
func (s *Store) Migrate() error {
	for _, m := range Models() {
		if err := s.db.AutoMigrate(m); err != nil {
			stmt := &gorm.Statement{DB: s.db}
			_ = stmt.Parse(m)
			return fmt.Errorf("migrate %s: %w", stmt.Table, err)
		}
	}
	return nil
}

// SeedRoles ensures the master roles exist.
func (s *Store) SeedRoles(ctx context.Context) error {
	roles := []models.Role{
		{Name: models.RoleStaff, Description: "full access"},
		{Name: models.RoleUser, Description: "regular user"},
	}
	for _, r := range roles {
		role := r
		if err := s.db.WithContext(ctx).Where("name = ?", role.Name).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", r.Name, err)
		}
	}
	return nil
}

// Transaction runs fn against a Store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, dialect: s.dialect})
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Scope limits queries to the rows an identity may see.
type Scope struct {
	UserID uint
	Staff  bool
}

// All is the scope of maintenance tools.
var All = Scope{Staff: true}

func (s *Store) ownedProfileIDs(ctx context.Context, userID uint) *gorm.DB {
	return s.conn(ctx).Model(&models.Profile{}).Select("id").Where("user_id = ?", userID)
}

func (s *Store) ownedLinkIDs(ctx context.Context, userID uint) *gorm.DB {
	return s.conn(ctx).Model(&models.Link{}).Select("id").Where("profile_id IN (?)", s.ownedProfileIDs(ctx, userID))
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// isUniqueViolation recognises unique constraint errors from postgres and sqlite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "UNIQUE constraint failed") || strings.Contains(s, "unique constraint")
}

func logQuery(op string, err error) {
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		glog.Warningf("store %s: %v", op, err)
	}
}
