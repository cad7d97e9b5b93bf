package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"linkbio/models"
)

// RoleByName returns the role called name.
func (s *Store) RoleByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	if err := s.conn(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, notFound(err)
	}
	return &role, nil
}

// CreateUser inserts u. A taken username yields ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.conn(ctx).Omit(clause.Associations).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UserByID loads a user with its role.
func (s *Store) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Preload("Role").First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UserByUsername loads a user with its role.
func (s *Store) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Preload("Role").Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UserChanges holds the editable account fields; nil members are left untouched.
type UserChanges struct {
	Email     *string
	FirstName *string
	LastName  *string
}

// UpdateUser applies changes to the user with id.
func (s *Store) UpdateUser(ctx context.Context, id uint, ch UserChanges) error {
	updates := map[string]any{}
	if ch.Email != nil {
		updates["email"] = *ch.Email
	}
	if ch.FirstName != nil {
		updates["first_name"] = *ch.FirstName
	}
	if ch.LastName != nil {
		updates["last_name"] = *ch.LastName
	}
	if len(updates) == 0 {
		return nil
	}
	res := s.conn(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update user %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPassword replaces the stored password hash.
func (s *Store) SetPassword(ctx context.Context, id uint, hash []byte) error {
	res := s.conn(ctx).Model(&models.User{}).Where("id = ?", id).Update("hashed_password", hash)
	if res.Error != nil {
		return fmt.Errorf("set password for user %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRole assigns roleID to the user.
func (s *Store) SetRole(ctx context.Context, id, roleID uint) error {
	return s.conn(ctx).Model(&models.User{}).Where("id = ?", id).Update("role_id", roleID).Error
}

// DeleteUser removes the user; the database cascades to the profile, its links
// and clicks, and the user's tokens.
func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	res := s.conn(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete user %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns every user with its role, oldest first.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.conn(ctx).Preload("Role").Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
