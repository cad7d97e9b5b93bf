package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"linkbio/models"
)

const linkOrder = "sort_order ASC, id ASC"

func (s *Store) scopedLinks(ctx context.Context, scope Scope) *gorm.DB {
	q := s.conn(ctx).Model(&models.Link{})
	if !scope.Staff {
		q = q.Where("profile_id IN (?)", s.ownedProfileIDs(ctx, scope.UserID))
	}
	return q
}

// ListLinks returns every link visible in scope, in display order.
func (s *Store) ListLinks(ctx context.Context, scope Scope) ([]models.Link, error) {
	var out []models.Link
	if err := s.scopedLinks(ctx, scope).Order(linkOrder).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return out, nil
}

// LinksForProfile returns the links of one profile in display order.
func (s *Store) LinksForProfile(ctx context.Context, profileID uint) ([]models.Link, error) {
	var out []models.Link
	if err := s.conn(ctx).Where("profile_id = ?", profileID).Order(linkOrder).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list links of profile %d: %w", profileID, err)
	}
	return out, nil
}

// LinkByID returns the link if it is visible in scope.
func (s *Store) LinkByID(ctx context.Context, scope Scope, id uint) (*models.Link, error) {
	var l models.Link
	if err := s.scopedLinks(ctx, scope).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

// LinkExists is the unscoped lookup used by click tracking.
func (s *Store) LinkExists(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := s.conn(ctx).Model(&models.Link{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("look up link %d: %w", id, err)
	}
	return n > 0, nil
}

// CreateLink inserts l. l.ProfileID must already be set by the caller.
func (s *Store) CreateLink(ctx context.Context, l *models.Link) error {
	if l.ProfileID == 0 {
		return fmt.Errorf("create link: missing profile")
	}
	if err := s.conn(ctx).Omit(clause.Associations).Create(l).Error; err != nil {
		return fmt.Errorf("create link: %w", err)
	}
	return nil
}

// LinkChanges holds editable link fields; nil members are left untouched.
type LinkChanges struct {
	Title *string
	URL   *string
	Order *int
}

// UpdateLink applies ch to the link if it is visible in scope.
func (s *Store) UpdateLink(ctx context.Context, scope Scope, id uint, ch LinkChanges) (*models.Link, error) {
	l, err := s.LinkByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if ch.Title != nil {
		updates["title"] = *ch.Title
	}
	if ch.URL != nil {
		updates["url"] = *ch.URL
	}
	if ch.Order != nil {
		updates["sort_order"] = *ch.Order
	}
	if len(updates) > 0 {
		if err := s.conn(ctx).Model(l).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update link %d: %w", id, err)
		}
	}
	return s.LinkByID(ctx, scope, id)
}

// DeleteLink removes the link and, through the foreign key, its clicks.
func (s *Store) DeleteLink(ctx context.Context, scope Scope, id uint) error {
	res := s.scopedLinks(ctx, scope).Where("id = ?", id).Delete(&models.Link{})
	if res.Error != nil {
		return fmt.Errorf("delete link %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
