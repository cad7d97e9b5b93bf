package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/google/uuid"

	"linkbio/models"
	"linkbio/pkg/cleantext"
	"linkbio/pkg/imageproc"
	"linkbio/storage"
	"linkbio/store"
)

// profileFields are the writable profile attributes shared by create and update.
// Pointers distinguish "absent" from "set to empty".
type profileFields struct {
	DisplayName     *string `json:"display_name" binding:"omitempty,max=100"`
	Bio             *string `json:"bio" binding:"omitempty,max=500"`
	Location        *string `json:"location" binding:"omitempty,max=100"`
	Website         *string `json:"website" binding:"omitempty,max=200,weburl"`
	Twitter         *string `json:"twitter" binding:"omitempty,max=100"`
	Instagram       *string `json:"instagram" binding:"omitempty,max=100"`
	YouTube         *string `json:"youtube" binding:"omitempty,max=100"`
	ShowInDirectory *bool   `json:"show_in_directory"`
	ShowStats       *bool   `json:"show_stats"`
	HideEmail       *bool   `json:"hide_email"`
}

func cleaned(s *string, limit int) *string {
	if s == nil {
		return nil
	}
	v := cleantext.Limit(cleantext.Text(*s), limit)
	return &v
}

func (f profileFields) changes() store.ProfileChanges {
	return store.ProfileChanges{
		DisplayName:     cleaned(f.DisplayName, 100),
		Bio:             cleaned(f.Bio, 500),
		Location:        cleaned(f.Location, 100),
		Website:         f.Website,
		Twitter:         cleaned(f.Twitter, 100),
		Instagram:       cleaned(f.Instagram, 100),
		YouTube:         cleaned(f.YouTube, 100),
		ShowInDirectory: f.ShowInDirectory,
		ShowStats:       f.ShowStats,
		HideEmail:       f.HideEmail,
	}
}

func (f profileFields) apply(p *models.Profile) {
	ch := f.changes()
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.DisplayName, ch.DisplayName)
	set(&p.Bio, ch.Bio)
	set(&p.Location, ch.Location)
	set(&p.Website, ch.Website)
	set(&p.Twitter, ch.Twitter)
	set(&p.Instagram, ch.Instagram)
	set(&p.YouTube, ch.YouTube)
	if ch.ShowInDirectory != nil {
		p.ShowInDirectory = *ch.ShowInDirectory
	}
	if ch.ShowStats != nil {
		p.ShowStats = *ch.ShowStats
	}
	if ch.HideEmail != nil {
		p.HideEmail = *ch.HideEmail
	}
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (s *server) respondProfile(c *gin.Context, status int, p *models.Profile) {
	rec, err := serializeProfile(c.Request.Context(), s.store, p, false)
	if err != nil {
		respondInternal(c, "serialize profile", err)
		return
	}
	c.JSON(status, rec)
}

func (s *server) listProfilesHandler(c *gin.Context) {
	ctx := c.Request.Context()
	profiles, err := s.store.ListProfiles(ctx, currentScope(c))
	if err != nil {
		respondInternal(c, "list profiles", err)
		return
	}
	out := make([]*profileRecord, 0, len(profiles))
	for i := range profiles {
		rec, err := serializeProfile(ctx, s.store, &profiles[i], false)
		if err != nil {
			respondInternal(c, "serialize profile", err)
			return
		}
		out = append(out, rec)
	}
	c.JSON(http.StatusOK, out)
}

// createProfileHandler creates the caller's profile. Registration already does
// this, so the endpoint only matters for accounts made before profiles existed
// or whose profile was deleted.
func (s *server) createProfileHandler(c *gin.Context) {
	var req struct {
		Slug string `json:"slug" binding:"omitempty,max=100,slug"`
		profileFields
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	user := currentUser(c)
	p := models.NewProfile(user.ID)
	p.Slug = req.Slug
	req.profileFields.apply(p)

	ctx := c.Request.Context()
	err := s.store.CreateProfile(ctx, p, user.Username)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrProfileExists):
		respondError(c, http.StatusConflict, ProfileExists, "you already have a profile")
		return
	case errors.Is(err, store.ErrDuplicate):
		respondFields(c, map[string][]string{"slug": {"profile with this slug already exists."}})
		return
	case errors.Is(err, store.ErrInvalidSlug):
		respondFields(c, map[string][]string{"slug": {"Enter a valid slug consisting of lowercase letters, numbers, underscores or hyphens."}})
		return
	default:
		respondInternal(c, "create profile", err)
		return
	}
	p.User = user
	s.respondProfile(c, http.StatusCreated, p)
}

func (s *server) getProfileHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		respondNotFound(c, "profile")
		return
	}
	p, err := s.store.ProfileByID(c.Request.Context(), currentScope(c), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondNotFound(c, "profile")
			return
		}
		respondInternal(c, "get profile", err)
		return
	}
	s.respondProfile(c, http.StatusOK, p)
}

func (s *server) updateProfileHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		respondNotFound(c, "profile")
		return
	}
	var req profileFields
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	p, err := s.store.UpdateProfile(c.Request.Context(), currentScope(c), id, req.changes())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondNotFound(c, "profile")
			return
		}
		respondInternal(c, "update profile", err)
		return
	}
	s.respondProfile(c, http.StatusOK, p)
}

func (s *server) deleteProfileHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		respondNotFound(c, "profile")
		return
	}
	if err := s.store.DeleteProfile(c.Request.Context(), currentScope(c), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondNotFound(c, "profile")
			return
		}
		respondInternal(c, "delete profile", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) myProfile(c *gin.Context) (*models.Profile, bool) {
	p, err := s.store.ProfileByUserID(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondNotFound(c, "profile")
			return nil, false
		}
		respondInternal(c, "get own profile", err)
		return nil, false
	}
	return p, true
}

func (s *server) myProfileHandler(c *gin.Context) {
	p, ok := s.myProfile(c)
	if !ok {
		return
	}
	s.respondProfile(c, http.StatusOK, p)
}

// updateMyProfileHandler edits the caller's profile and account names in one
// transaction.
func (s *server) updateMyProfileHandler(c *gin.Context) {
	var req struct {
		FirstName *string `json:"first_name" binding:"omitempty,max=150"`
		LastName  *string `json:"last_name" binding:"omitempty,max=150"`
		Email     *string `json:"email" binding:"omitempty,email,max=254"`
		profileFields
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	p, ok := s.myProfile(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user := currentUser(c)
	var updated *models.Profile
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		ch := store.UserChanges{FirstName: cleaned(req.FirstName, 150), LastName: cleaned(req.LastName, 150), Email: req.Email}
		if err := tx.UpdateUser(ctx, user.ID, ch); err != nil {
			return err
		}
		var err error
		updated, err = tx.UpdateProfile(ctx, store.Scope{UserID: user.ID}, p.ID, req.profileFields.changes())
		return err
	})
	if err != nil {
		respondInternal(c, "update own profile", err)
		return
	}
	s.respondProfile(c, http.StatusOK, updated)
}

// uploadImageHandler takes a multipart "image", crops it to a square avatar and
// stores it as the caller's profile image.
func (s *server) uploadImageHandler(c *gin.Context) {
	p, ok := s.myProfile(c)
	if !ok {
		return
	}
	cfg := s.settings()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxUploadBytes+1<<20)
	fh, err := c.FormFile("image")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(c, http.StatusRequestEntityTooLarge, FileTooLarge, "image too large")
			return
		}
		respondFields(c, map[string][]string{"image": {"No file was submitted."}})
		return
	}
	if fh.Size > cfg.MaxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, FileTooLarge, fmt.Sprintf("image exceeds %d bytes", cfg.MaxUploadBytes))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondInternal(c, "open upload", err)
		return
	}
	defer f.Close()

	avatar, err := imageproc.MakeAvatar(f, cfg.AvatarSize)
	if err != nil {
		if errors.Is(err, imageproc.ErrNotImage) {
			respondError(c, http.StatusBadRequest, NotAnImage, "upload a valid image")
			return
		}
		respondInternal(c, "process image", err)
		return
	}

	ctx := c.Request.Context()
	name := fmt.Sprintf("profiles/%d/%s%s", p.ID, uuid.NewString(), avatar.Ext())
	url, err := s.media.Put(ctx, name, bytes.NewReader(avatar.Data), int64(len(avatar.Data)), avatar.ContentType)
	if err != nil {
		respondInternal(c, "store image", err)
		return
	}
	updated, err := s.store.UpdateProfile(ctx, store.Scope{UserID: p.UserID}, p.ID, store.ProfileChanges{ImageURL: &url})
	if err != nil {
		_ = s.media.Delete(ctx, name)
		respondInternal(c, "save image url", err)
		return
	}
	if old := storage.NameFromURL(s.media, p.ImageURL); old != "" {
		if err := s.media.Delete(ctx, old); err != nil {
			glog.Warningf("[%s] removing previous image %s: %v", requestID(c), old, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"image_url": updated.ImageURL, "width": avatar.Width, "height": avatar.Height})
}
