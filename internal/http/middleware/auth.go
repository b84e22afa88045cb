// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller's identity. Every request under the API
// group must carry a bearer token (or, for browser websocket clients that
// cannot set headers, an access_token query parameter). When development
// headers are enabled, X-User-ID / X-User-Role are trusted instead.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/homefinder-messaging/internal/auth"
)

// Context keys holding the authenticated caller.
const (
	CtxUserID   = "userID"
	CtxUserRole = "userRole"
)

// Dev identity headers, honored only when AuthOptions.DevHeaders is set.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// AuthOptions configures Authenticate.
type AuthOptions struct {
	// Verifier validates bearer tokens. May be nil when only dev headers are used.
	Verifier auth.Verifier
	// DevHeaders trusts X-User-ID / X-User-Role. Never enable in production.
	DevHeaders bool
}

// Authenticate stores the caller's user ID and role in the Gin context or
// aborts with 401.
func Authenticate(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := identify(c, opts)
		if err != nil {
			msg := "authentication required"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "token expired"
			} else if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrMissingClaim) {
				msg = "invalid token"
			}
			c.Header("WWW-Authenticate", `Bearer realm="messaging"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    msg,
			})
			return
		}
		c.Set(CtxUserID, id.UserID)
		if id.Role != "" {
			c.Set(CtxUserRole, id.Role)
		}
		c.Next()
	}
}

var errNoCredentials = errors.New("no credentials")

func identify(c *gin.Context, opts AuthOptions) (auth.Identity, error) {
	if tok := bearerToken(c); tok != "" && opts.Verifier != nil {
		return opts.Verifier.Verify(tok)
	}
	if opts.DevHeaders {
		uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if uid != "" {
			role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole)))
			if role != "" && !auth.ValidRole(role) {
				return auth.Identity{}, auth.ErrInvalidToken
			}
			return auth.Identity{UserID: uid, Role: role}, nil
		}
	}
	return auth.Identity{}, errNoCredentials
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return c.Query("access_token")
}

// UserID returns the authenticated user ID, or "" outside Authenticate.
func UserID(c *gin.Context) string {
	v, _ := c.Get(CtxUserID)
	return asString(v)
}

// UserRole returns the authenticated role, or "" when the identity carried none.
func UserRole(c *gin.Context) string {
	v, _ := c.Get(CtxUserRole)
	return asString(v)
}
