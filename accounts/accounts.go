// Package accounts owns user registration, password checks and the issue,
// rotation and revocation of API tokens.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang/glog"
	"golang.org/x/crypto/bcrypt"

	"linkbio/models"
	"linkbio/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUsernameTaken      = errors.New("a user with that username already exists")
	ErrInvalidUsername    = errors.New("username may contain only letters, digits and @/./+/-/_")
	ErrPasswordRequired   = errors.New("password required")
)

// MaxUsernameLength matches the users.username column.
const MaxUsernameLength = 150

var usernameRe = regexp.MustCompile(`^[\w.@+-]+$`)

// ValidUsername reports whether name is acceptable as a username.
func ValidUsername(name string) bool {
	return len(name) <= MaxUsernameLength && usernameRe.MatchString(name)
}

// Options configures token lifetimes and hashing.
type Options struct {
	JWTSecret  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

// Service implements the account use cases on top of a Store.
type Service struct {
	store *store.Store
	opts  Options
	now   func() time.Time
}

// New returns a Service. Zero lifetimes fall back to 24h access and 30 day refresh tokens.
func New(st *store.Store, opts Options) *Service {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 24 * time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 30 * 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{store: st, opts: opts, now: time.Now}
}

// Store exposes the underlying store.
func (s *Service) Store() *store.Store { return s.store }

// Registration is the input of Register.
type Registration struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
}

// Result is what a successful Register returns.
type Result struct {
	User    *models.User
	Profile *models.Profile
	Tokens  Tokens
}

// Register creates the user, its profile and a token pair in a single
// transaction. Nothing is stored when any step fails.
func (s *Service) Register(ctx context.Context, r Registration) (*Result, error) {
	r.Username = strings.TrimSpace(r.Username)
	if !ValidUsername(r.Username) {
		return nil, ErrInvalidUsername
	}
	if r.Password == "" {
		return nil, ErrPasswordRequired
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var res Result
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		user, err := s.createUser(ctx, tx, &models.User{
			Username:       r.Username,
			Email:          strings.TrimSpace(r.Email),
			FirstName:      r.FirstName,
			LastName:       r.LastName,
			HashedPassword: hash,
		}, models.RoleUser)
		if err != nil {
			return err
		}
		profile := models.NewProfile(user.ID)
		if err := tx.CreateProfile(ctx, profile, user.Username); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		tokens, err := s.issueTokens(ctx, tx, user)
		if err != nil {
			return err
		}
		res = Result{User: user, Profile: profile, Tokens: tokens}
		return nil
	})
	if err != nil {
		return nil, err
	}
	glog.Infof("registered user %q (id %d) with profile slug %q", res.User.Username, res.User.ID, res.Profile.Slug)
	return &res, nil
}

// CreateAccount creates a user and its profile without issuing tokens. It backs
// the admin seeding and the create_user tool.
func (s *Service) CreateAccount(ctx context.Context, username, password string, staff bool) (*models.User, error) {
	username = strings.TrimSpace(username)
	if !ValidUsername(username) {
		return nil, ErrInvalidUsername
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	role := models.RoleUser
	if staff {
		role = models.RoleStaff
	}
	var user *models.User
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		u, err := s.createUser(ctx, tx, &models.User{Username: username, HashedPassword: hash}, role)
		if err != nil {
			return err
		}
		if err := tx.CreateProfile(ctx, models.NewProfile(u.ID), u.Username); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		user = u
		return nil
	})
	return user, err
}

func (s *Service) createUser(ctx context.Context, tx *store.Store, u *models.User, roleName string) (*models.User, error) {
	role, err := tx.RoleByName(ctx, roleName)
	if err != nil {
		return nil, fmt.Errorf("load role %s: %w", roleName, err)
	}
	u.RoleID = &role.ID
	if err := tx.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	u.Role = role
	return u, nil
}

// Authenticate checks a username and password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a token pair.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, Tokens, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, Tokens{}, err
	}
	tokens, err := s.IssueTokens(ctx, user)
	if err != nil {
		return nil, Tokens{}, err
	}
	return user, tokens, nil
}

// SetPassword replaces the password of username and revokes every token the
// user holds. It returns the number of tokens revoked.
func (s *Service) SetPassword(ctx context.Context, username, password string) (int64, error) {
	if password == "" {
		return 0, ErrPasswordRequired
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	var revoked int64
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		user, err := tx.UserByUsername(ctx, username)
		if err != nil {
			return err
		}
		if err := tx.SetPassword(ctx, user.ID, hash); err != nil {
			return err
		}
		revoked, err = tx.RevokeUserTokens(ctx, user.ID)
		return err
	})
	return revoked, err
}

// EnsureAdmin creates a staff account called username when password is set and
// no such user exists. An existing user is promoted to staff.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		glog.V(1).Info("admin seeding skipped: no admin password configured")
		return nil
	}
	existing, err := s.store.UserByUsername(ctx, username)
	switch {
	case err == nil:
		if existing.IsStaff() {
			return nil
		}
		role, err := s.store.RoleByName(ctx, models.RoleStaff)
		if err != nil {
			return err
		}
		glog.Infof("promoting existing user %q to staff", username)
		return s.store.SetRole(ctx, existing.ID, role.ID)
	case errors.Is(err, store.ErrNotFound):
		if _, err := s.CreateAccount(ctx, username, password, true); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		glog.Infof("seeded staff user %q", username)
		return nil
	default:
		return err
	}
}
