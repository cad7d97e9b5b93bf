package main

import (
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/google/uuid"

	"linkbio/accounts"
	"linkbio/config"
	"linkbio/storage"
	"linkbio/store"
)

// settings are the values that may change while the server runs (config reload).
type settings struct {
	RegistrationOpen bool
	MaxUploadBytes   int64
	AvatarSize       int
}

func settingsFrom(cfg *config.Config) *settings {
	return &settings{
		RegistrationOpen: cfg.Registration.Open,
		MaxUploadBytes:   cfg.Uploads.MaxBytes,
		AvatarSize:       cfg.Uploads.AvatarSize,
	}
}

type server struct {
	store    *store.Store
	accounts *accounts.Service
	media    storage.Storage
	// localMedia is non-empty when images are served from disk
	localMedia  string
	mediaPrefix string
	current     atomic.Pointer[settings]
}

func (s *server) settings() *settings { return s.current.Load() }

func (s *server) reload(cfg *config.Config) {
	s.current.Store(settingsFrom(cfg))
}

func setupRoutes(r *gin.Engine, s *server) {
	registerValidators()
	r.Use(requestIDMiddleware())

	r.GET("/health", s.healthHandler)
	if s.localMedia != "" {
		r.Static(s.mediaPrefix, s.localMedia)
	}

	authPublic := r.Group("/auth")
	authPublic.POST("/register/", s.registerHandler)
	authPublic.POST("/token/", s.loginHandler)
	authPublic.POST("/refresh/", s.refreshHandler)
	authPublic.POST("/revoke/", s.revokeRefreshHandler)

	r.GET("/p/:slug/", s.publicProfileHandler)
	r.GET("/track-click/:link_id/", s.trackClickHandler)
	r.GET("/directory/", s.directoryHandler)

	authGroup := r.Group("")
	authGroup.Use(s.tokenAuthMiddleware())
	authGroup.GET("/auth/me/", s.meHandler)
	authGroup.POST("/auth/logout/", s.logoutHandler)

	authGroup.GET("/profiles/", s.listProfilesHandler)
	authGroup.POST("/profiles/", s.createProfileHandler)
	authGroup.GET("/profiles/me/", s.myProfileHandler)
	authGroup.PATCH("/profiles/me/", s.updateMyProfileHandler)
	authGroup.POST("/profiles/upload-image/", s.uploadImageHandler)
	authGroup.GET("/profiles/:id/", s.getProfileHandler)
	authGroup.PATCH("/profiles/:id/", s.updateProfileHandler)
	authGroup.DELETE("/profiles/:id/", s.deleteProfileHandler)

	authGroup.GET("/links/", s.listLinksHandler)
	authGroup.POST("/links/", s.createLinkHandler)
	authGroup.GET("/links/:id/", s.getLinkHandler)
	authGroup.PATCH("/links/:id/", s.updateLinkHandler)
	authGroup.DELETE("/links/:id/", s.deleteLinkHandler)

	authGroup.GET("/clicks/", s.listClicksHandler)
	authGroup.GET("/clicks/:id/", s.getClickHandler)
}

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware tags every request with an id that error responses and
// server logs share.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		c.Set(requestIDHeader, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDHeader)
}

func (s *server) healthHandler(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		glog.Warningf("health: database ping failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *server) registerHandler(c *gin.Context) {
	if !s.settings().RegistrationOpen {
		respondError(c, http.StatusForbidden, RegistrationClosed, "registration is closed")
		return
	}
	var req struct {
		Username  string `json:"username" binding:"required,max=150,username"`
		Password  string `json:"password" binding:"required"`
		Email     string `json:"email" binding:"omitempty,email,max=254"`
		FirstName string `json:"first_name" binding:"max=150"`
		LastName  string `json:"last_name" binding:"max=150"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	res, err := s.accounts.Register(c.Request.Context(), accounts.Registration{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if fields, ok := accountFieldError(err); ok {
			respondFields(c, fields)
			return
		}
		respondInternal(c, "register", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":          serializeUser(res.User),
		"token":         res.Tokens.Access,
		"refresh_token": res.Tokens.Refresh,
		"expires_at":    res.Tokens.AccessExpiresAt,
	})
}

func (s *server) loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	_, tokens, err := s.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, InvalidCredentials, "invalid credentials")
			return
		}
		respondInternal(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// refreshHandler exchanges a refresh token for a new pair and rotates the refresh token.
func (s *server) refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	_, tokens, err := s.accounts.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidToken) {
			respondError(c, http.StatusUnauthorized, InvalidToken, "invalid or expired refresh token")
			return
		}
		respondInternal(c, "refresh", err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// revokeRefreshHandler revokes a given refresh token (useful on logout).
func (s *server) revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := s.accounts.RevokeRefresh(c.Request.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, accounts.ErrInvalidToken) {
			respondNotFound(c, "refresh token")
			return
		}
		respondInternal(c, "revoke refresh token", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}

func (s *server) logoutHandler(c *gin.Context) {
	if err := s.accounts.Logout(c.Request.Context(), currentToken(c)); err != nil {
		respondInternal(c, "logout", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (s *server) meHandler(c *gin.Context) {
	u := currentUser(c)
	c.JSON(http.StatusOK, gin.H{"user": serializeUser(u), "is_staff": u.IsStaff()})
}
