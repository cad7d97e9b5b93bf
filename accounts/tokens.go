package accounts

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/glog"
	"github.com/google/uuid"

	"linkbio/models"
	"linkbio/store"
)

// Tokens is an access/refresh pair handed to a client.
type Tokens struct {
	Access           string    `json:"token"`
	Refresh          string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"-"`
}

// Claims are carried in access tokens. The token is only honoured while its
// hash is stored and not revoked, so claims are never trusted on their own.
type Claims struct {
	UserID uint `json:"user_id"`
	Staff  bool `json:"staff"`
	jwt.RegisteredClaims
}

// HashToken returns the hex sha256 under which a raw token is stored.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// IssueTokens creates and stores a new access and refresh token for u.
func (s *Service) IssueTokens(ctx context.Context, u *models.User) (Tokens, error) {
	return s.issueTokens(ctx, s.store, u)
}

// IssueAccessToken creates and stores a single access token for u.
func (s *Service) IssueAccessToken(ctx context.Context, u *models.User) (string, time.Time, error) {
	return s.issueAccess(ctx, s.store, u)
}

func (s *Service) issueTokens(ctx context.Context, st *store.Store, u *models.User) (Tokens, error) {
	access, exp, err := s.issueAccess(ctx, st, u)
	if err != nil {
		return Tokens{}, err
	}
	refresh, rexp, err := s.issueRefresh(ctx, st, u.ID)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{Access: access, Refresh: refresh, AccessExpiresAt: exp, RefreshExpiresAt: rexp}, nil
}

func (s *Service) issueAccess(ctx context.Context, st *store.Store, u *models.User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.opts.AccessTTL)
	claims := Claims{
		UserID: u.ID,
		Staff:  u.IsStaff(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.JWTSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	row := &models.AuthToken{UserID: u.ID, Kind: models.TokenAccess, TokenHash: HashToken(signed), ExpiresAt: exp}
	if err := st.CreateToken(ctx, row); err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// issueRefresh generates a random refresh token and stores its hash.
func (s *Service) issueRefresh(ctx context.Context, st *store.Store, userID uint) (string, time.Time, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, fmt.Errorf("generate refresh token: %w", err)
	}
	raw := hex.EncodeToString(b)
	exp := s.now().Add(s.opts.RefreshTTL)
	row := &models.AuthToken{UserID: userID, Kind: models.TokenRefresh, TokenHash: HashToken(raw), ExpiresAt: exp}
	if err := st.CreateToken(ctx, row); err != nil {
		return "", time.Time{}, err
	}
	return raw, exp, nil
}

func (s *Service) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.opts.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Resolve maps a raw access token to its user. The signature and expiry are
// checked first, then the stored row must exist, be unrevoked and unexpired.
func (s *Service) Resolve(ctx context.Context, raw string) (*models.User, *models.AuthToken, error) {
	claims, err := s.parse(raw)
	if err != nil {
		glog.V(2).Infof("rejecting access token: %v", err)
		return nil, nil, ErrInvalidToken
	}
	row, err := s.store.TokenByHash(ctx, models.TokenAccess, HashToken(raw))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	if !row.Usable(s.now()) || row.UserID != claims.UserID {
		return nil, nil, ErrInvalidToken
	}
	user, err := s.store.UserByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	return user, row, nil
}

// Refresh exchanges a refresh token for a new pair. The presented refresh token
// is revoked in the same transaction.
func (s *Service) Refresh(ctx context.Context, raw string) (*models.User, Tokens, error) {
	var (
		user   *models.User
		tokens Tokens
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		row, err := tx.TokenByHash(ctx, models.TokenRefresh, HashToken(raw))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		if !row.Usable(s.now()) {
			return ErrInvalidToken
		}
		if user, err = tx.UserByID(ctx, row.UserID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		if err := tx.ClaimToken(ctx, row.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		tokens, err = s.issueTokens(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, Tokens{}, err
	}
	return user, tokens, nil
}

// RevokeRefresh revokes a refresh token, e.g. on logout from a client that only
// kept the refresh token.
func (s *Service) RevokeRefresh(ctx context.Context, raw string) error {
	row, err := s.store.TokenByHash(ctx, models.TokenRefresh, HashToken(raw))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	return s.store.RevokeToken(ctx, row.ID)
}

// Logout revokes the access token row that authenticated the current request.
func (s *Service) Logout(ctx context.Context, token *models.AuthToken) error {
	return s.store.RevokeToken(ctx, token.ID)
}

// PurgeExpired deletes expired and revoked token rows.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.PurgeTokens(ctx, s.now())
}
