package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"linkbio/store"
)

const directoryLimit = 200

func (s *server) publicProfileHandler(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := s.store.ProfileBySlug(ctx, c.Param("slug"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondNotFound(c, "profile")
			return
		}
		respondInternal(c, "public profile", err)
		return
	}
	rec, err := serializeProfile(ctx, s.store, p, true)
	if err != nil {
		respondInternal(c, "serialize public profile", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// trackClickHandler records a visit. It is a GET so it can sit behind a plain
// anchor; every successful call adds exactly one row.
func (s *server) trackClickHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("link_id"), 10, 64)
	if err != nil || id == 0 {
		respondNotFound(c, "link")
		return
	}
	ctx := c.Request.Context()
	ok, err := s.store.LinkExists(ctx, uint(id))
	if err != nil {
		respondInternal(c, "look up link", err)
		return
	}
	if !ok {
		respondNotFound(c, "link")
		return
	}
	var ip *string
	if addr := c.ClientIP(); addr != "" {
		ip = &addr
	}
	if _, err := s.store.CreateClick(ctx, uint(id), ip); err != nil {
		respondInternal(c, "record click", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *server) directoryHandler(c *gin.Context) {
	profiles, err := s.store.Directory(c.Request.Context(), directoryLimit)
	if err != nil {
		respondInternal(c, "directory", err)
		return
	}
	out := make([]directoryEntry, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, directoryEntry{Slug: p.Slug, DisplayName: p.DisplayName, ImageURL: p.ImageURL, Bio: p.Bio})
	}
	c.JSON(http.StatusOK, out)
}
