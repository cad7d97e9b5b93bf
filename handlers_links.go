package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"linkbio/models"
	"linkbio/pkg/cleantext"
	"linkbio/store"
)

func (s *server) listLinksHandler(c *gin.Context) {
	ctx := c.Request.Context()
	links, err := s.store.ListLinks(ctx, currentScope(c))
	if err != nil {
		respondInternal(c, "list links", err)
		return
	}
	out, err := serializeLinks(ctx, s.store, links, true)
	if err != nil {
		respondInternal(c, "count clicks", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// createLinkHandler always binds the new link to the caller's own profile; a
// profile id in the body is ignored.
func (s *server) createLinkHandler(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required,max=100"`
		URL   string `json:"url" binding:"required,max=200,weburl"`
		Order int    `json:"order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	title := cleantext.Limit(cleantext.Text(req.Title), 100)
	if title == "" {
		respondFields(c, map[string][]string{"title": {blankMessage}})
		return
	}
	p, ok := s.myProfile(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	l := &models.Link{
		ProfileID: p.ID,
		Title:     title,
		URL:       strings.TrimSpace(req.URL),
		Order:     req.Order,
	}
	if err := s.store.CreateLink(ctx, l); err != nil {
		respondInternal(c, "create link", err)
		return
	}
	rec, err := serializeLink(ctx, s.store, l)
	if err != nil {
		respondInternal(c, "serialize link", err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *server) getLinkHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		respondNotFound(c, "link")
		return
	}
	ctx := c.Request.Context()
	l, err := s.store.LinkByID(ctx, currentScope(c), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondNotFound(c, "link")
			return
		}
		respondInternal(c, "get link", err)
		return
	}
	rec, err := serializeLink(ctx, s.store, l)
	if err != nil {
		respondInternal(c, "serialize link", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *server) updateLinkHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		respondNotFound(c, "link")
		return
	}
	var req struct {
		Title *string `json:"title" binding:"omitnil,min=1,max=100"`
		URL   *string `json:"url" binding:"omitempty,max=200,weburl"`
		Order *int    `json:"order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.URL != nil && strings.TrimSpace(*req.URL) == "" {
		respondFields(c, map[string][]string{"url": {blankMessage}})
		return
	}
	title := cleaned(req.Title, 100)
	if title != nil && *title == "" {
		respondFields(c, map[string][]string{"title": {blankMessage}})
		return
	}
	ctx := c.Request.Context()
	ch := store.LinkChanges{Title: title, URL: req.URL, Order: req.Order}
	l, err := s.store.UpdateLink(ctx, currentScope(c), id, ch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondNotFound(c, "link")
			return
		}
		respondInternal(c, "update link", err)
		return
	}
	rec, err := serializeLink(ctx, s.store, l)
	if err != nil {
		respondInternal(c, "serialize link", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *server) deleteLinkHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		respondNotFound(c, "link")
		return
	}
	if err := s.store.DeleteLink(c.Request.Context(), currentScope(c), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondNotFound(c, "link")
			return
		}
		respondInternal(c, "delete link", err)
		return
	}
	c.Status(http.StatusNoContent)
}
