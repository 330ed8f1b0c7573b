package auth

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/librarian/internal/audit"
	"github.com/openshelf/librarian/internal/config"
)

// setupMutex serializes setup requests so concurrent calls cannot both
// pass the HasActiveAdmin check.
var setupMutex sync.Mutex

// Controller handles authentication HTTP endpoints.
type Controller struct {
	service        *Service
	sessionManager *SessionManager
	auditor        *audit.Service
	rateLimiter    *RateLimiter
}

// NewController creates an authentication controller. The auditor may
// be nil, in which case auth events are not recorded.
func NewController(service *Service, sessionManager *SessionManager, auditor *audit.Service, cfg config.Auth) *Controller {
	rateLimiter := NewRateLimiter(RateLimitConfig{
		MaxAttempts:     cfg.MaxLoginAttempts,
		WindowDuration:  cfg.RateLimitWindow,
		LockoutDuration: cfg.LockoutDuration,
	})

	return &Controller{
		service:        service,
		sessionManager: sessionManager,
		auditor:        auditor,
		rateLimiter:    rateLimiter,
	}
}

// RegisterRoutes registers authentication routes on the router.
func (ac *Controller) RegisterRoutes(router gin.IRouter) {
	grp := router.Group("/api/v1/auth")
	grp.GET("/status", ac.Status)
	grp.POST("/setup", ac.Setup)
	grp.POST("/login", ac.Login)
	grp.POST("/logout", ac.Logout)
	grp.GET("/me", ac.Me)
	grp.POST("/change-password", ac.ChangePassword)
	grp.POST("/deactivate", ac.Deactivate)
	grp.POST("/token", ac.GenerateToken)
	grp.DELETE("/token", ac.RevokeToken)
}

// Stop cleans up the rate limiter's background goroutine.
func (ac *Controller) Stop() {
	if ac.rateLimiter != nil {
		ac.rateLimiter.Stop()
	}
}

// Status reports whether initial setup is still open. Clients use this
// to decide between showing a setup or a login flow.
func (ac *Controller) Status(c *gin.Context) {
	hasAdmin, err := ac.service.HasActiveAdmin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"setup_required": !hasAdmin,
		"authenticated":  ac.sessionManager != nil && ac.sessionManager.IsAuthenticated(c.Request),
	})
}

type setupRequest struct {
	Username        string `json:"username" binding:"required"`
	Email           string `json:"email" binding:"required"`
	Phone           string `json:"phone"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// Setup creates the admin account. Only allowed while no active admin
// exists.
func (ac *Controller) Setup(c *gin.Context) {
	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.Password != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "passwords do not match"})
		return
	}

	setupMutex.Lock()
	admin, err := ac.service.RegisterAdmin(req.Username, req.Email, req.Phone, req.Password)
	setupMutex.Unlock()

	if err != nil {
		switch {
		case errors.Is(err, ErrAdminExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, ErrPasswordTooShort),
			errors.Is(err, ErrPasswordTooLong),
			errors.Is(err, ErrUsernameRequired),
			errors.Is(err, ErrUsernameInvalid),
			errors.Is(err, ErrEmailRequired),
			errors.Is(err, ErrEmailInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create admin"})
		}
		return
	}

	if ac.sessionManager != nil {
		_ = ac.sessionManager.CreateSession(c.Request, admin)
	}
	if ac.auditor != nil {
		ac.auditor.LogAuth(admin.ID, "setup", c.ClientIP(), true)
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       admin.ID,
		"username": admin.Username,
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates the admin and establishes a session.
func (ac *Controller) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	clientIP := c.ClientIP()

	if ac.rateLimiter != nil {
		allowed, retryAfter := ac.rateLimiter.Allow(clientIP, req.Username)
		if !allowed {
			c.Header("Retry-After", retryAfter.String())
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many login attempts",
				"retry_after": retryAfter.String(),
			})
			return
		}
	}

	admin, err := ac.service.Authenticate(req.Username, req.Password)
	if err != nil {
		if ac.rateLimiter != nil {
			ac.rateLimiter.RecordFailure(clientIP, req.Username)
		}
		if ac.auditor != nil {
			ac.auditor.LogAuth(0, "login", clientIP, false)
		}

		if errors.Is(err, ErrAccountLocked) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "account is locked, try again later"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	if ac.rateLimiter != nil {
		ac.rateLimiter.RecordSuccess(clientIP, req.Username)
	}

	if ac.sessionManager != nil {
		if err := ac.sessionManager.CreateSession(c.Request, admin); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
			return
		}
	}
	if ac.auditor != nil {
		ac.auditor.LogAuth(admin.ID, "login", clientIP, true)
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       admin.ID,
		"username": admin.Username,
	})
}

// Logout destroys the session.
func (ac *Controller) Logout(c *gin.Context) {
	adminID := GetAdminID(c)
	if ac.sessionManager != nil {
		_ = ac.sessionManager.DestroySession(c.Request)
	}
	if ac.auditor != nil && adminID != 0 {
		ac.auditor.LogAuth(adminID, "logout", c.ClientIP(), true)
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated admin's profile.
func (ac *Controller) Me(c *gin.Context) {
	adminID := GetAdminID(c)
	if adminID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	admin, err := ac.service.GetAdminByID(adminID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "admin not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            admin.ID,
		"username":      admin.Username,
		"email":         admin.Email,
		"phone":         admin.Phone,
		"last_login_at": admin.LastLoginAt,
	})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangePassword updates the admin's password after verifying the old
// one.
func (ac *Controller) ChangePassword(c *gin.Context) {
	adminID := GetAdminID(c)
	if adminID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := ac.service.ChangePassword(adminID, req.OldPassword, req.NewPassword)
	if err != nil {
		if ac.auditor != nil {
			ac.auditor.LogAuth(adminID, "change_password", c.ClientIP(), false)
		}
		switch {
		case errors.Is(err, ErrInvalidPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "current password is incorrect"})
		case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to change password"})
		}
		return
	}

	if ac.auditor != nil {
		ac.auditor.LogAuth(adminID, "change_password", c.ClientIP(), true)
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

type deactivateRequest struct {
	Password string `json:"password" binding:"required"`
}

// Deactivate disables the admin account after verifying the password.
// This re-opens setup for a replacement admin.
func (ac *Controller) Deactivate(c *gin.Context) {
	adminID := GetAdminID(c)
	if adminID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req deactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := ac.service.DeactivateAdmin(adminID, req.Password)
	if err != nil {
		if ac.auditor != nil {
			ac.auditor.LogAuth(adminID, "deactivate", c.ClientIP(), false)
		}
		switch {
		case errors.Is(err, ErrInvalidPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "password is incorrect"})
		case errors.Is(err, ErrAdminInactive):
			c.JSON(http.StatusConflict, gin.H{"error": "admin is already deactivated"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate admin"})
		}
		return
	}

	if ac.sessionManager != nil {
		_ = ac.sessionManager.DestroySession(c.Request)
	}
	if ac.auditor != nil {
		ac.auditor.LogAuth(adminID, "deactivate", c.ClientIP(), true)
	}
	c.JSON(http.StatusOK, gin.H{"message": "admin deactivated, setup re-opened"})
}

// GenerateToken issues a new API token for the authenticated admin.
// The plaintext token is shown once; only its hash is stored.
func (ac *Controller) GenerateToken(c *gin.Context) {
	adminID := GetAdminID(c)
	if adminID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	token, err := ac.service.GenerateToken(adminID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	if ac.auditor != nil {
		ac.auditor.LogAuth(adminID, "generate_token", c.ClientIP(), true)
	}
	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"message": "store this token securely - it will not be shown again",
	})
}

// RevokeToken revokes the admin's API token.
func (ac *Controller) RevokeToken(c *gin.Context) {
	adminID := GetAdminID(c)
	if adminID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	if err := ac.service.RevokeToken(adminID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}

	if ac.auditor != nil {
		ac.auditor.LogAuth(adminID, "revoke_token", c.ClientIP(), true)
	}
	c.JSON(http.StatusOK, gin.H{"message": "token revoked"})
}
