package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	config "github.com/phillip/levy-collector-go/config"
	middleware "github.com/phillip/levy-collector-go/middleware"
	models "github.com/phillip/levy-collector-go/models"
	store "github.com/phillip/levy-collector-go/store"
	utils "github.com/phillip/levy-collector-go/utils"
)

const minPasswordLength = 8

type credentialsInput struct {
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// newUser validates in and hashes the password. It does not store anything.
func newUser(in credentialsInput, role models.Role) (*models.User, error) {
	if len(in.Password) < minPasswordLength {
		return nil, errors.New("password must be at least 8 characters")
	}
	if !role.Valid() {
		return nil, errors.New("role must be collector or admin")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" {
		name = email
	}
	return &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}, nil
}

func issueTokens(cfg *config.Config, u models.User) (gin.H, error) {
	now := cfg.Now()
	access, _, err := utils.GenerateToken(cfg.JWTSecret, u, utils.TokenAccess, cfg.AccessTTL, now)
	if err != nil {
		return nil, err
	}
	refresh, _, err := utils.GenerateToken(cfg.JWTSecret, u, utils.TokenRefresh, cfg.RefreshTTL, now)
	if err != nil {
		return nil, err
	}
	return gin.H{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
		"expires_in":    int(cfg.AccessTTL.Seconds()),
		"user":          u,
	}, nil
}

// ---------------- REGISTER ----------------
// Self-service sign-up always creates a collector. Admins are created by
// another admin or seeded from ADMIN_EMAIL.
func Register(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input credentialsInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, err := newUser(input, models.RoleCollector)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := requestContext(c, 5*time.Second)
		defer cancel()

		if err := cfg.Store.CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
				return
			}
			serverError(c, "could not create account", err)
			return
		}

		resp, err := issueTokens(cfg, *user)
		if err != nil {
			serverError(c, "could not issue tokens", err)
			return
		}
		c.JSON(http.StatusCreated, resp)
	}
}

// ---------------- LOGIN ----------------
func Login(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input credentialsInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := requestContext(c, 5*time.Second)
		defer cancel()

		user, err := cfg.Store.GetUserByEmail(ctx, input.Email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
				return
			}
			serverError(c, "could not sign in", err)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		if input.Role != "" && models.Role(input.Role) != user.Role {
			c.JSON(http.StatusForbidden, gin.H{"error": "account does not have the " + input.Role + " role"})
			return
		}

		resp, err := issueTokens(cfg, *user)
		if err != nil {
			serverError(c, "could not issue tokens", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ---------------- REFRESH ----------------
// The presented refresh token is revoked once a new pair is issued.
func RefreshToken(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claims, err := utils.ParseToken(cfg.JWTSecret, input.RefreshToken, utils.TokenRefresh)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
			return
		}

		ctx, cancel := requestContext(c, 5*time.Second)
		defer cancel()

		revoked, err := middleware.IsRevoked(ctx, cfg.Redis, claims.ID)
		if err != nil {
			slog.Error("revocation lookup failed", "err", err, "user_id", claims.UserID)
		}
		if revoked {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token has been revoked"})
			return
		}

		user, err := cfg.Store.GetUserByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "account no longer exists"})
				return
			}
			serverError(c, "could not refresh session", err)
			return
		}

		resp, err := issueTokens(cfg, *user)
		if err != nil {
			serverError(c, "could not issue tokens", err)
			return
		}
		if err := middleware.RevokeToken(ctx, cfg.Redis, claims); err != nil {
			slog.Warn("could not revoke refresh token", "err", err, "user_id", user.ID)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ---------------- LOGOUT ----------------
func Logout(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			RefreshToken string `json:"refresh_token"`
		}
		// body is optional
		_ = c.ShouldBindJSON(&input)

		ctx, cancel := requestContext(c, 5*time.Second)
		defer cancel()

		if err := middleware.RevokeToken(ctx, cfg.Redis, middleware.CurrentClaims(c)); err != nil {
			serverError(c, "could not sign out", err)
			return
		}
		if input.RefreshToken != "" {
			if claims, err := utils.ParseToken(cfg.JWTSecret, input.RefreshToken, utils.TokenRefresh); err == nil {
				if err := middleware.RevokeToken(ctx, cfg.Redis, claims); err != nil {
					slog.Warn("could not revoke refresh token", "err", err)
				}
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": "signed out"})
	}
}

// ---------------- ME ----------------
func Me(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, 5*time.Second)
		defer cancel()

		user, err := cfg.Store.GetUserByID(ctx, middleware.CurrentUserID(c))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			serverError(c, "could not fetch user", err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// ---------------- USERS (admin) ----------------
func ListUsers(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, 5*time.Second)
		defer cancel()

		users, err := cfg.Store.ListUsers(ctx)
		if err != nil {
			serverError(c, "could not fetch users", err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func CreateUser(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input credentialsInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		role := models.Role(input.Role)
		if input.Role == "" {
			role = models.RoleCollector
		}

		user, err := newUser(input, role)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := requestContext(c, 5*time.Second)
		defer cancel()

		if err := cfg.Store.CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
				return
			}
			serverError(c, "could not create user", err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

// EnsureAdmin creates the seed administrator unless an account with that
// email already exists.
func EnsureAdmin(ctx context.Context, cfg *config.Config) error {
	seed := cfg.Admin
	if seed.Email == "" || seed.Password == "" {
		return nil
	}
	if _, err := cfg.Store.GetUserByEmail(ctx, seed.Email); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	user, err := newUser(credentialsInput{Name: seed.Name, Email: seed.Email, Password: seed.Password}, models.RoleAdmin)
	if err != nil {
		return err
	}
	if err := cfg.Store.CreateUser(ctx, user); err != nil && !errors.Is(err, store.ErrDuplicate) {
		return err
	}
	slog.Info("seeded admin account", "email", user.Email)
	return nil
}
