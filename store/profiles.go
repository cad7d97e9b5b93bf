package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"linkbio/models"
	"linkbio/pkg/slug"
)

var (
	// ErrProfileExists is returned when the owner already has a profile.
	ErrProfileExists = errors.New("store: user already has a profile")
	// ErrInvalidSlug is returned for explicit slugs that are not URL-safe.
	ErrInvalidSlug = errors.New("store: invalid slug")
)

// fallbackSlug is the base used when a username has no ASCII letters or digits.
const fallbackSlug = "user"

const maxSlugAttempts = 5

// CreateProfile inserts p for p.UserID. An explicit p.Slug must be valid and
// free. An empty slug is derived from username; when the derived value is taken
// the first free "-N" suffix (N >= 2) is used.
func (s *Store) CreateProfile(ctx context.Context, p *models.Profile, username string) error {
	if _, err := s.ProfileByUserID(ctx, p.UserID); err == nil {
		return ErrProfileExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if p.Slug != "" {
		if !slug.Valid(p.Slug) {
			return ErrInvalidSlug
		}
		if err := s.insertProfile(ctx, p); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("create profile: %w", err)
		}
		return nil
	}

	base := slug.Make(username)
	if base == "" {
		base = fallbackSlug
	}
	skip := map[string]bool{}
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		candidate, err := s.freeSlug(ctx, base, skip)
		if err != nil {
			return err
		}
		p.Slug = candidate
		err = s.insertProfile(ctx, p)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("create profile: %w", err)
		}
		if _, lookupErr := s.ProfileByUserID(ctx, p.UserID); lookupErr == nil {
			return ErrProfileExists
		}
		skip[candidate] = true
	}
	p.Slug = ""
	return fmt.Errorf("create profile: no free slug for %q after %d attempts", base, maxSlugAttempts)
}

// insertProfile runs the insert in its own (nested) transaction so a unique
// violation does not poison an enclosing postgres transaction.
func (s *Store) insertProfile(ctx context.Context, p *models.Profile) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Create(p).Error
	})
}

// slugBatch is how many candidates freeSlug checks per query.
const slugBatch = 20

// freeSlug returns the first of base, base-2, base-3, ... that no profile uses
// and that is not in skip. Candidates are matched exactly; WithSuffix shortens
// bases near MaxLength.
func (s *Store) freeSlug(ctx context.Context, base string, skip map[string]bool) (string, error) {
	for start := 1; ; start += slugBatch {
		candidates := make([]string, 0, slugBatch)
		for n := start; n < start+slugBatch; n++ {
			if n == 1 {
				candidates = append(candidates, base)
				continue
			}
			candidates = append(candidates, slug.WithSuffix(base, n))
		}
		var taken []string
		err := s.conn(ctx).Model(&models.Profile{}).
			Where("slug IN ?", candidates).
			Pluck("slug", &taken).Error
		if err != nil {
			return "", fmt.Errorf("look up slugs: %w", err)
		}
		used := make(map[string]bool, len(taken))
		for _, t := range taken {
			used[t] = true
		}
		for _, c := range candidates {
			if !used[c] && !skip[c] {
				return c, nil
			}
		}
	}
}

func (s *Store) scopedProfiles(ctx context.Context, scope Scope) *gorm.DB {
	q := s.conn(ctx).Model(&models.Profile{}).Preload("User")
	if !scope.Staff {
		q = q.Where("profiles.user_id = ?", scope.UserID)
	}
	return q
}

// ListProfiles returns the profiles visible in scope.
func (s *Store) ListProfiles(ctx context.Context, scope Scope) ([]models.Profile, error) {
	var out []models.Profile
	if err := s.scopedProfiles(ctx, scope).Order("profiles.id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}

// ProfileByID returns the profile with id if it is visible in scope.
func (s *Store) ProfileByID(ctx context.Context, scope Scope, id uint) (*models.Profile, error) {
	var p models.Profile
	if err := s.scopedProfiles(ctx, scope).Where("profiles.id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ProfileByUserID returns the profile owned by userID.
func (s *Store) ProfileByUserID(ctx context.Context, userID uint) (*models.Profile, error) {
	var p models.Profile
	if err := s.conn(ctx).Preload("User").Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ProfileBySlug is the unscoped public lookup.
func (s *Store) ProfileBySlug(ctx context.Context, slug string) (*models.Profile, error) {
	var p models.Profile
	if err := s.conn(ctx).Preload("User").Where("slug = ?", slug).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// Directory lists profiles that opted into the public directory.
func (s *Store) Directory(ctx context.Context, limit int) ([]models.Profile, error) {
	var out []models.Profile
	err := s.conn(ctx).Where("show_in_directory = ?", true).Order("slug").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list directory: %w", err)
	}
	return out, nil
}

// ProfileChanges holds editable profile fields; nil members are left untouched.
// The slug is not editable.
type ProfileChanges struct {
	DisplayName     *string
	Bio             *string
	Location        *string
	Website         *string
	Twitter         *string
	Instagram       *string
	YouTube         *string
	ImageURL        *string
	ShowInDirectory *bool
	ShowStats       *bool
	HideEmail       *bool
}

func (ch ProfileChanges) columns() map[string]any {
	out := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			out[col] = *v
		}
	}
	set("display_name", ch.DisplayName)
	set("bio", ch.Bio)
	set("location", ch.Location)
	set("website", ch.Website)
	set("twitter", ch.Twitter)
	set("instagram", ch.Instagram)
	set("youtube", ch.YouTube)
	set("image_url", ch.ImageURL)
	if ch.ShowInDirectory != nil {
		out["show_in_directory"] = *ch.ShowInDirectory
	}
	if ch.ShowStats != nil {
		out["show_stats"] = *ch.ShowStats
	}
	if ch.HideEmail != nil {
		out["hide_email"] = *ch.HideEmail
	}
	return out
}

// UpdateProfile applies ch to the profile with id if it is visible in scope and
// returns the stored result.
func (s *Store) UpdateProfile(ctx context.Context, scope Scope, id uint, ch ProfileChanges) (*models.Profile, error) {
	p, err := s.ProfileByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if cols := ch.columns(); len(cols) > 0 {
		if err := s.conn(ctx).Model(&models.Profile{}).Where("id = ?", p.ID).Updates(cols).Error; err != nil {
			return nil, fmt.Errorf("update profile %d: %w", id, err)
		}
	}
	return s.ProfileByID(ctx, scope, id)
}

// DeleteProfile removes the profile with id if it is visible in scope. Links and
// their clicks are removed by the foreign key cascade in the same statement.
func (s *Store) DeleteProfile(ctx context.Context, scope Scope, id uint) error {
	q := s.conn(ctx).Where("id = ?", id)
	if !scope.Staff {
		q = q.Where("user_id = ?", scope.UserID)
	}
	res := q.Delete(&models.Profile{})
	if res.Error != nil {
		return fmt.Errorf("delete profile %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
