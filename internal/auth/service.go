package auth

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"gorm.io/gorm"

	"github.com/openshelf/librarian/internal/config"
	"github.com/openshelf/librarian/internal/entities"
)

// Validation patterns
var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

var (
	ErrAdminNotFound    = errors.New("admin not found")
	ErrAdminExists      = errors.New("an active admin already exists")
	ErrAdminInactive    = errors.New("admin account is deactivated")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrUsernameRequired = errors.New("username is required")
	ErrEmailRequired    = errors.New("email is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrAccountLocked    = errors.New("account is locked due to too many failed login attempts")
	ErrUsernameInvalid  = errors.New("username must be 3-64 characters, alphanumeric and underscore/hyphen only")
	ErrEmailInvalid     = errors.New("invalid email format")
)

// Service handles admin authentication and account management.
type Service struct {
	db     *gorm.DB
	config config.Auth
}

// NewService creates a new authentication service.
func NewService(db *gorm.DB, cfg config.Auth) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// RegisterAdmin creates the admin account. Registration is blocked while
// an active admin exists: deactivate the current admin first.
func (s *Service) RegisterAdmin(username, email, phone, password string) (*entities.Admin, error) {
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if email == "" {
		return nil, ErrEmailRequired
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}

	if !usernamePattern.MatchString(username) {
		return nil, ErrUsernameInvalid
	}
	// RFC 5321 limit is 254
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return nil, ErrEmailInvalid
	}

	active, err := s.HasActiveAdmin()
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrAdminExists
	}

	passwordHash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &entities.Admin{
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: passwordHash,
		IsActive:     true,
	}

	if err := s.db.Create(admin).Error; err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	return admin, nil
}

// Authenticate validates credentials and returns the admin.
// Implements account lockout after too many failed attempts.
func (s *Service) Authenticate(username, password string) (*entities.Admin, error) {
	var admin entities.Admin
	err := s.db.Where("username = ?", username).First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}

	if !admin.IsActive {
		return nil, ErrAdminInactive
	}

	if admin.LockedUntil != nil && time.Now().Before(*admin.LockedUntil) {
		return nil, ErrAccountLocked
	}

	if err := CheckPassword(password, admin.PasswordHash); err != nil {
		s.recordFailedLogin(&admin)
		return nil, err
	}

	// Successful login - reset failed attempts and update last login
	now := time.Now()
	s.db.Model(&admin).Updates(map[string]any{
		"last_login_at":      now,
		"failed_login_count": 0,
		"locked_until":       nil,
	})

	return &admin, nil
}

// recordFailedLogin increments the failed login counter and locks the
// account if the threshold is reached.
func (s *Service) recordFailedLogin(admin *entities.Admin) {
	admin.FailedLoginCount++

	updates := map[string]any{
		"failed_login_count": admin.FailedLoginCount,
	}

	maxAttempts := s.config.MaxLoginAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if admin.FailedLoginCount >= maxAttempts {
		lockoutDuration := s.config.LockoutDuration
		if lockoutDuration == 0 {
			lockoutDuration = 30 * time.Minute
		}
		updates["locked_until"] = time.Now().Add(lockoutDuration)
	}

	s.db.Model(admin).Updates(updates)
}

// GetAdminByID retrieves an admin by ID.
func (s *Service) GetAdminByID(id uint) (*entities.Admin, error) {
	var admin entities.Admin
	err := s.db.First(&admin, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	return &admin, nil
}

// ChangePassword updates an admin's password after verifying the old one.
func (s *Service) ChangePassword(adminID uint, oldPassword, newPassword string) error {
	admin, err := s.GetAdminByID(adminID)
	if err != nil {
		return err
	}

	if err := CheckPassword(oldPassword, admin.PasswordHash); err != nil {
		return err
	}

	newHash, err := HashPassword(newPassword, s.config.BcryptCost)
	if err != nil {
		return err
	}

	return s.db.Model(admin).Update("password_hash", newHash).Error
}

// DeactivateAdmin flips the active flag after verifying the password.
// Deactivation re-opens setup for a replacement admin.
func (s *Service) DeactivateAdmin(adminID uint, password string) error {
	admin, err := s.GetAdminByID(adminID)
	if err != nil {
		return err
	}
	if !admin.IsActive {
		return ErrAdminInactive
	}

	if err := CheckPassword(password, admin.PasswordHash); err != nil {
		return err
	}

	return s.db.Model(admin).Updates(map[string]any{
		"is_active":        false,
		"token_hash":       "",
		"token_created_at": nil,
	}).Error
}

// HasActiveAdmin returns true if an active admin account exists.
func (s *Service) HasActiveAdmin() (bool, error) {
	var count int64
	err := s.db.Model(&entities.Admin{}).Where("is_active = ?", true).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count admins: %w", err)
	}
	return count > 0, nil
}

// ValidateToken checks a plaintext API token and returns the associated
// admin. Returns ErrTokenExpired if the token is past its expiry time.
func (s *Service) ValidateToken(token string) (*entities.Admin, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	tokenHash := HashToken(token)

	var admin entities.Admin
	err := s.db.Where("token_hash = ? AND is_active = ?", tokenHash, true).First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if s.config.TokenExpiry > 0 && admin.TokenCreatedAt != nil {
		if time.Since(*admin.TokenCreatedAt) > s.config.TokenExpiry {
			return nil, ErrTokenExpired
		}
	}

	return &admin, nil
}

// GenerateToken creates a new API token for an admin. Returns the
// plaintext token (show to user once) - only the hash is stored.
func (s *Service) GenerateToken(adminID uint) (string, error) {
	plaintext, hash, err := GenerateAPIToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now()
	result := s.db.Model(&entities.Admin{}).Where("id = ?", adminID).Updates(map[string]any{
		"token_hash":       hash,
		"token_created_at": now,
	})
	if result.Error != nil {
		return "", fmt.Errorf("failed to save token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return "", ErrAdminNotFound
	}

	return plaintext, nil
}

// RevokeToken removes an admin's API token.
func (s *Service) RevokeToken(adminID uint) error {
	result := s.db.Model(&entities.Admin{}).Where("id = ?", adminID).Updates(map[string]any{
		"token_hash":       "",
		"token_created_at": nil,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke token: %w", result.Error)
	}
	return nil
}
