package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"linkbio/models"
)

// CreateClick records one visit to linkID. ip may be nil when the caller's
// address is unknown.
func (s *Store) CreateClick(ctx context.Context, linkID uint, ip *string) (*models.Click, error) {
	c := &models.Click{LinkID: linkID, ClickedAt: time.Now().UTC(), IPAddress: ip}
	if err := s.conn(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("create click for link %d: %w", linkID, err)
	}
	return c, nil
}

func (s *Store) scopedClicks(ctx context.Context, scope Scope) *gorm.DB {
	q := s.conn(ctx).Model(&models.Click{})
	if !scope.Staff {
		q = q.Where("link_id IN (?)", s.ownedLinkIDs(ctx, scope.UserID))
	}
	return q
}

// ListClicks returns clicks visible in scope, newest first. A non-zero linkID
// narrows the result further; it never widens the scope.
func (s *Store) ListClicks(ctx context.Context, scope Scope, linkID uint) ([]models.Click, error) {
	q := s.scopedClicks(ctx, scope)
	if linkID != 0 {
		q = q.Where("link_id = ?", linkID)
	}
	var out []models.Click
	if err := q.Order("clicked_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list clicks: %w", err)
	}
	return out, nil
}

// ClickByID returns a click if it is visible in scope.
func (s *Store) ClickByID(ctx context.Context, scope Scope, id uint) (*models.Click, error) {
	var c models.Click
	if err := s.scopedClicks(ctx, scope).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// CountClicks returns the current number of clicks on linkID.
func (s *Store) CountClicks(ctx context.Context, linkID uint) (int64, error) {
	var n int64
	if err := s.conn(ctx).Model(&models.Click{}).Where("link_id = ?", linkID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count clicks for link %d: %w", linkID, err)
	}
	return n, nil
}

// ClickCounts returns live click totals for linkIDs in one grouped query. Links
// without clicks are absent from the map.
func (s *Store) ClickCounts(ctx context.Context, linkIDs []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(linkIDs))
	if len(linkIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		LinkID uint
		Total  int64
	}
	err := s.conn(ctx).Model(&models.Click{}).
		Select("link_id, COUNT(*) AS total").
		Where("link_id IN ?", linkIDs).
		Group("link_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count clicks: %w", err)
	}
	for _, r := range rows {
		out[r.LinkID] = r.Total
	}
	return out, nil
}

// LinkClickCount is one row of the monthly report.
type LinkClickCount struct {
	LinkID uint
	Title  string
	URL    string
	Clicks int64
}

// ClickCountsBetween counts clicks per link of userID's profile with clicked_at
// in [from, to). Links without clicks in the window are included with zero.
func (s *Store) ClickCountsBetween(ctx context.Context, userID uint, from, to time.Time) ([]LinkClickCount, error) {
	var out []LinkClickCount
	err := s.conn(ctx).Table("links").
		Select("links.id AS link_id, links.title, links.url, COUNT(clicks.id) AS clicks").
		Joins("JOIN profiles ON profiles.id = links.profile_id").
		Joins("LEFT JOIN clicks ON clicks.link_id = links.id AND clicks.clicked_at >= ? AND clicks.clicked_at < ?", from, to).
		Where("profiles.user_id = ?", userID).
		Group("links.id, links.title, links.url, links.sort_order").
		Order("links.sort_order ASC, links.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("click report for user %d: %w", userID, err)
	}
	return out, nil
}

// ClicksBetween lists the raw clicks behind ClickCountsBetween.
func (s *Store) ClicksBetween(ctx context.Context, userID uint, from, to time.Time) ([]models.Click, error) {
	var out []models.Click
	err := s.scopedClicks(ctx, Scope{UserID: userID}).
		Where("clicked_at >= ? AND clicked_at < ?", from, to).
		Order("clicked_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list clicks for user %d: %w", userID, err)
	}
	return out, nil
}

// CountScopedClicks counts every click visible in scope.
func (s *Store) CountScopedClicks(ctx context.Context, scope Scope) (int64, error) {
	var n int64
	if err := s.scopedClicks(ctx, scope).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count clicks: %w", err)
	}
	return n, nil
}

// DeleteClicks removes every click visible in scope and returns how many went.
// Used by maintenance tools only; the API has no delete path for clicks.
func (s *Store) DeleteClicks(ctx context.Context, scope Scope) (int64, error) {
	q := s.conn(ctx).Session(&gorm.Session{AllowGlobalUpdate: scope.Staff})
	if !scope.Staff {
		q = q.Where("link_id IN (?)", s.ownedLinkIDs(ctx, scope.UserID))
	}
	res := q.Delete(&models.Click{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete clicks: %w", res.Error)
	}
	return res.RowsAffected, nil
}
