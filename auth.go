package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"linkbio/accounts"
	"linkbio/models"
	"linkbio/store"
)

// context keys set by tokenAuthMiddleware
const (
	ctxUser  = "user"
	ctxToken = "auth_token"
)

// bearerToken accepts "Bearer <t>" and "Token <t>".
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	if !strings.EqualFold(scheme, "Bearer") && !strings.EqualFold(scheme, "Token") {
		return "", false
	}
	return token, true
}

// tokenAuthMiddleware resolves the presented token to a user or stops the
// request with 401.
func (s *server) tokenAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="linkbio"`)
			respondError(c, http.StatusUnauthorized, LoginRequired, "missing or invalid Authorization header")
			return
		}
		user, tok, err := s.accounts.Resolve(c.Request.Context(), raw)
		if err != nil {
			if errors.Is(err, accounts.ErrInvalidToken) {
				c.Header("WWW-Authenticate", `Bearer realm="linkbio", error="invalid_token"`)
				respondError(c, http.StatusUnauthorized, InvalidToken, "invalid token")
				return
			}
			respondInternal(c, "resolve token", err)
			return
		}
		c.Set(ctxUser, user)
		c.Set(ctxToken, tok)
		c.Next()
	}
}

// currentUser returns the user set by tokenAuthMiddleware.
func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

func currentToken(c *gin.Context) *models.AuthToken {
	v, ok := c.Get(ctxToken)
	if !ok {
		return nil
	}
	t, _ := v.(*models.AuthToken)
	return t
}

// currentScope limits store queries to what the caller may see: everything for
// staff, otherwise rows the caller owns.
func currentScope(c *gin.Context) store.Scope {
	u := currentUser(c)
	if u == nil {
		// unreachable behind the middleware; an empty scope matches nothing
		return store.Scope{}
	}
	return store.Scope{UserID: u.ID, Staff: u.IsStaff()}
}
