package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/phillip/levy-collector-go/config"
	"github.com/phillip/levy-collector-go/models"
	"github.com/phillip/levy-collector-go/utils"
)

// context keys set by AuthMiddleware
const (
	ctxClaims = "claims"
	ctxUserID = "user_id"
	ctxEmail  = "email"
	ctxRole   = "role"
)

// AuthMiddleware accepts a Bearer access token, or an access_token query
// parameter for websocket upgrades, and rejects revoked tokens.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			abort(c, http.StatusUnauthorized, "authorization token not provided")
			return
		}

		claims, err := utils.ParseToken(cfg.JWTSecret, tokenStr, utils.TokenAccess)
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		revoked, err := IsRevoked(c.Request.Context(), cfg.Redis, claims.ID)
		if err != nil {
			// fail open: Redis only carries logouts
			slog.Error("revocation lookup failed", "err", err, "user_id", claims.UserID)
		}
		if revoked {
			abort(c, http.StatusUnauthorized, "token has been revoked")
			return
		}

		c.Set(ctxClaims, claims)
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("access_token")
}

// RequireRole lets only the listed roles through. Must run after AuthMiddleware.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CurrentRole(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "forbidden")
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func CurrentClaims(c *gin.Context) *utils.Claims {
	if v, ok := c.Get(ctxClaims); ok {
		if claims, ok := v.(*utils.Claims); ok {
			return claims
		}
	}
	return nil
}

func CurrentUserID(c *gin.Context) string { return c.GetString(ctxUserID) }

func CurrentEmail(c *gin.Context) string { return c.GetString(ctxEmail) }

func CurrentRole(c *gin.Context) models.Role {
	if v, ok := c.Get(ctxRole); ok {
		if r, ok := v.(models.Role); ok {
			return r
		}
	}
	return ""
}

func revokedKey(jti string) string { return "revoked:" + jti }

// RevokeToken blacklists a token id until it would have expired anyway.
// It is a no-op without Redis.
func RevokeToken(ctx context.Context, rdb *redis.Client, claims *utils.Claims) error {
	if rdb == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}
	return rdb.Set(ctx, revokedKey(claims.ID), "1", ttl).Err()
}

func IsRevoked(ctx context.Context, rdb *redis.Client, jti string) (bool, error) {
	if rdb == nil || jti == "" {
		return false, nil
	}
	_, err := rdb.Get(ctx, revokedKey(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
