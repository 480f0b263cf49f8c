// README: Cookie-based session auth for the three API surfaces.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rideon/internal/modules/account"
	"rideon/internal/modules/chair"
)

const (
	appSessionCookie   = "app_session"
	ownerSessionCookie = "owner_session"
	chairSessionCookie = "chair_session"

	userKey  = "auth.user"
	ownerKey = "auth.owner"
	chairKey = "auth.chair"
)

type UserSource interface {
	UserByAccessToken(ctx context.Context, token string) (*account.User, error)
}

type OwnerSource interface {
	OwnerByAccessToken(ctx context.Context, token string) (*account.Owner, error)
}

type ChairSource interface {
	ByAccessToken(ctx context.Context, token string) (*chair.Chair, error)
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msg})
}

func AppAuth(users UserSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(appSessionCookie)
		if err != nil {
			abortUnauthorized(c, "app_session cookie is required")
			return
		}
		u, err := users.UserByAccessToken(c.Request.Context(), token)
		if errors.Is(err, account.ErrNotFound) {
			abortUnauthorized(c, "invalid access token")
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

func OwnerAuth(owners OwnerSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(ownerSessionCookie)
		if err != nil {
			abortUnauthorized(c, "owner_session cookie is required")
			return
		}
		o, err := owners.OwnerByAccessToken(c.Request.Context(), token)
		if errors.Is(err, account.ErrNotFound) {
			abortUnauthorized(c, "invalid access token")
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
			return
		}
		c.Set(ownerKey, o)
		c.Next()
	}
}

func ChairAuth(chairs ChairSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(chairSessionCookie)
		if err != nil {
			abortUnauthorized(c, "chair_session cookie is required")
			return
		}
		ch, err := chairs.ByAccessToken(c.Request.Context(), token)
		if errors.Is(err, chair.ErrNotFound) {
			abortUnauthorized(c, "invalid access token")
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
			return
		}
		c.Set(chairKey, ch)
		c.Next()
	}
}

// CurrentUser returns the authenticated requester; AppAuth must have run.
func CurrentUser(c *gin.Context) *account.User {
	return c.MustGet(userKey).(*account.User)
}

func CurrentOwner(c *gin.Context) *account.Owner {
	return c.MustGet(ownerKey).(*account.Owner)
}

func CurrentChair(c *gin.Context) *chair.Chair {
	return c.MustGet(chairKey).(*chair.Chair)
}
