package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"linkbio/models"
)

// CreateToken stores a hashed token row.
func (s *Store) CreateToken(ctx context.Context, t *models.AuthToken) error {
	if err := s.conn(ctx).Omit(clause.Associations).Create(t).Error; err != nil {
		return fmt.Errorf("store %s token: %w", t.Kind, err)
	}
	return nil
}

// TokenByHash looks up a token of kind by its hash. Revoked and expired rows are
// returned too; callers decide with AuthToken.Usable.
func (s *Store) TokenByHash(ctx context.Context, kind, hash string) (*models.AuthToken, error) {
	var t models.AuthToken
	if err := s.conn(ctx).Where("kind = ? AND token_hash = ?", kind, hash).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// RevokeToken marks one token revoked. Revoking twice is not an error.
func (s *Store) RevokeToken(ctx context.Context, id uint) error {
	res := s.conn(ctx).Model(&models.AuthToken{}).Where("id = ?", id).Update("revoked", true)
	if res.Error != nil {
		return fmt.Errorf("revoke token %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimToken revokes a live token and fails with ErrNotFound when it was
// already revoked, so only one caller can consume a refresh token.
func (s *Store) ClaimToken(ctx context.Context, id uint) error {
	res := s.conn(ctx).Model(&models.AuthToken{}).
		Where("id = ? AND revoked = ?", id, false).
		Update("revoked", true)
	if res.Error != nil {
		return fmt.Errorf("claim token %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeUserTokens revokes every live token of the user and returns how many changed.
func (s *Store) RevokeUserTokens(ctx context.Context, userID uint) (int64, error) {
	res := s.conn(ctx).Model(&models.AuthToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true)
	if res.Error != nil {
		return 0, fmt.Errorf("revoke tokens of user %d: %w", userID, res.Error)
	}
	return res.RowsAffected, nil
}

// PurgeTokens deletes tokens that expired before now or were revoked.
func (s *Store) PurgeTokens(ctx context.Context, now time.Time) (int64, error) {
	res := s.conn(ctx).Where("expires_at < ? OR revoked = ?", now, true).Delete(&models.AuthToken{})
	logQuery("purge tokens", res.Error)
	if res.Error != nil {
		return 0, fmt.Errorf("purge tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}
