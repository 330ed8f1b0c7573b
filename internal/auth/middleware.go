package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/librarian/internal/entities"
)

// Context keys for admin data
const (
	ContextKeyAdminID  = "auth_admin_id"
	ContextKeyUsername = "auth_username"
	ContextKeyAuthType = "auth_type"
)

// AuthType indicates how the request was authenticated.
type AuthType string

const (
	AuthTypeNone    AuthType = "none"
	AuthTypeSession AuthType = "session"
	AuthTypeBearer  AuthType = "bearer"
)

// Middleware handles authentication for HTTP requests.
type Middleware struct {
	service        *Service
	sessionManager *SessionManager
	publicPaths    map[string]bool
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(service *Service, sessionManager *SessionManager) *Middleware {
	publicPaths := map[string]bool{
		"/health":             true,
		"/ping":               true,
		"/api/v1/auth/login":  true,
		"/api/v1/auth/setup":  true,
		"/api/v1/auth/status": true,
	}

	return &Middleware{
		service:        service,
		sessionManager: sessionManager,
		publicPaths:    publicPaths,
	}
}

// Handler returns a Gin middleware that authenticates every request
// outside the public path set. Clients authenticate with either a
// session cookie or a bearer API token.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.publicPaths[c.Request.URL.Path] {
			c.Set(ContextKeyAuthType, AuthTypeNone)
			c.Next()
			return
		}

		if admin := m.tryBearerAuth(c); admin != nil {
			m.setAdminContext(c, admin, AuthTypeBearer)
			c.Next()
			return
		}

		if admin := m.trySessionAuth(c); admin != nil {
			m.setAdminContext(c, admin, AuthTypeSession)
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "authentication required",
		})
	}
}

// tryBearerAuth attempts to authenticate using an API token from the
// Authorization header.
func (m *Middleware) tryBearerAuth(c *gin.Context) *entities.Admin {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil
	}

	admin, err := m.service.ValidateToken(parts[1])
	if err != nil {
		return nil
	}
	return admin
}

// trySessionAuth attempts to authenticate using the session cookie.
func (m *Middleware) trySessionAuth(c *gin.Context) *entities.Admin {
	if m.sessionManager == nil {
		return nil
	}

	adminID := m.sessionManager.GetAdminID(c.Request)
	if adminID == 0 {
		return nil
	}

	admin, err := m.service.GetAdminByID(adminID)
	if err != nil || !admin.IsActive {
		return nil
	}
	return admin
}

func (m *Middleware) setAdminContext(c *gin.Context, admin *entities.Admin, authType AuthType) {
	c.Set(ContextKeyAdminID, admin.ID)
	c.Set(ContextKeyUsername, admin.Username)
	c.Set(ContextKeyAuthType, authType)
}

// GetAdminID retrieves the authenticated admin's ID from the context.
// Returns 0 when the request is unauthenticated.
func GetAdminID(c *gin.Context) uint {
	if id, exists := c.Get(ContextKeyAdminID); exists {
		if adminID, ok := id.(uint); ok {
			return adminID
		}
	}
	return 0
}

// GetUsername retrieves the authenticated admin's username from the context.
func GetUsername(c *gin.Context) string {
	if name, exists := c.Get(ContextKeyUsername); exists {
		if username, ok := name.(string); ok {
			return username
		}
	}
	return ""
}

// GetAuthType retrieves the authentication method used for the request.
func GetAuthType(c *gin.Context) AuthType {
	if t, exists := c.Get(ContextKeyAuthType); exists {
		if authType, ok := t.(AuthType); ok {
			return authType
		}
	}
	return AuthTypeNone
}
