package middleware

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/yatube-project/yatube/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// LoginPath is where unauthenticated requests for protected pages are sent.
	LoginPath = "/auth/login/"
)

// CurrentUser resolves the session cookie when present and stores the user
// identity in the request context. It never rejects the request; public
// pages use it to adjust navigation and the following flag.
func CurrentUser() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if claims, ok := sessionClaims(ctx); ok {
			ctx.Set(ContextUserIDKey, claims.UserID)
			ctx.Set(ContextUsernameKey, claims.Username)
		}
		ctx.Next()
	}
}

// LoginRequired redirects unauthenticated requests to the login page,
// preserving the original path in the next parameter.
func LoginRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, ok := sessionClaims(ctx)
		if !ok {
			target := LoginPath + "?next=" + url.QueryEscape(ctx.Request.URL.Path)
			ctx.Redirect(http.StatusFound, target)
			ctx.Abort()
			return
		}
		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextUsernameKey, claims.Username)
		ctx.Next()
	}
}

func sessionClaims(ctx *gin.Context) (*utils.Claims, bool) {
	token, err := ctx.Cookie(utils.AuthCookieName)
	if err != nil || token == "" {
		return nil, false
	}
	if utils.IsTokenBlacklisted(token) {
		return nil, false
	}
	claims, err := utils.ParseToken(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}
