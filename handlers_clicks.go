package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"linkbio/store"
)

// listClicksHandler lists the caller's clicks. ?link=<id> narrows the list; it
// cannot reach links outside the caller's scope.
func (s *server) listClicksHandler(c *gin.Context) {
	var linkID uint
	if v := c.Query("link"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondFields(c, map[string][]string{"link": {"A valid integer is required."}})
			return
		}
		linkID = uint(id)
	}
	clicks, err := s.store.ListClicks(c.Request.Context(), currentScope(c), linkID)
	if err != nil {
		respondInternal(c, "list clicks", err)
		return
	}
	out := make([]clickRecord, 0, len(clicks))
	for i := range clicks {
		out = append(out, serializeClick(&clicks[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) getClickHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		respondNotFound(c, "click")
		return
	}
	click, err := s.store.ClickByID(c.Request.Context(), currentScope(c), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondNotFound(c, "click")
			return
		}
		respondInternal(c, "get click", err)
		return
	}
	c.JSON(http.StatusOK, serializeClick(click))
}
