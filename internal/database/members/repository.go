// Package members provides database operations for library member
// registration and lifecycle.
//
// Members are soft-deleted: the is_deleted flag hides them from listings
// and blocks new loan issuance while existing loan records stay intact.
package members

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/openshelf/librarian/internal/entities"
	"github.com/openshelf/librarian/internal/liberr"
)

// Validation patterns
var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[0-9]{7,15}$`)
)

// Repository handles all member database operations.
type Repository struct {
	db       *gorm.DB
	prefixes []string
}

// NewRepository creates a new members repository. prefixes lists the
// institutional membership-number prefixes accepted at registration.
func NewRepository(db *gorm.DB, prefixes []string) *Repository {
	return &Repository{db: db, prefixes: prefixes}
}

// RegisterMember validates and inserts a new member, active by default.
func (r *Repository) RegisterMember(member *entities.Member) error {
	if err := r.validateMember(member); err != nil {
		return err
	}

	var existing entities.Member
	err := r.db.Where("membership_number = ? OR email = ?", member.MembershipNumber, member.Email).
		First(&existing).Error
	if err == nil {
		return liberr.Conflictf("membership number %s or email %s already exists",
			member.MembershipNumber, member.Email)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check existing member: %w", err)
	}

	member.IsActive = true
	member.IsDeleted = false
	member.ActivatedAt = time.Now()

	if err := r.db.Create(member).Error; err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// UpdateMember applies field changes to an existing, non-deleted member.
func (r *Repository) UpdateMember(member *entities.Member) error {
	if err := r.validateMember(member); err != nil {
		return err
	}

	var current entities.Member
	err := r.db.Where("id = ? AND is_deleted = ?", member.ID, false).First(&current).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return liberr.NotFoundf("member %d", member.ID)
		}
		return fmt.Errorf("failed to load member: %w", err)
	}

	if member.MembershipNumber != current.MembershipNumber || member.Email != current.Email {
		var existing entities.Member
		err := r.db.Where("(membership_number = ? OR email = ?) AND id <> ?",
			member.MembershipNumber, member.Email, member.ID).First(&existing).Error
		if err == nil {
			return liberr.Conflictf("membership number %s or email %s already exists",
				member.MembershipNumber, member.Email)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check existing member: %w", err)
		}
	}

	result := r.db.Model(&entities.Member{}).Where("id = ?", member.ID).
		Select("username", "membership_number", "email", "phone", "address", "is_active").
		Updates(member)
	if result.Error != nil {
		return fmt.Errorf("failed to update member: %w", result.Error)
	}
	return nil
}

// SoftDeleteMember flips the is_deleted flag. Loan history is preserved.
func (r *Repository) SoftDeleteMember(id uint) error {
	result := r.db.Model(&entities.Member{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("is_deleted", true)
	if result.Error != nil {
		return fmt.Errorf("failed to delete member: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return liberr.NotFoundf("member %d", id)
	}
	return nil
}

// GetMemberByID retrieves a non-deleted member by ID.
func (r *Repository) GetMemberByID(id uint) (*entities.Member, error) {
	var member entities.Member
	err := r.db.Where("id = ? AND is_deleted = ?", id, false).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, liberr.NotFoundf("member %d", id)
		}
		return nil, fmt.Errorf("failed to load member: %w", err)
	}
	return &member, nil
}

// GetMemberByUsername retrieves a non-deleted member by username.
func (r *Repository) GetMemberByUsername(username string) (*entities.Member, error) {
	var member entities.Member
	err := r.db.Where("username = ? AND is_deleted = ?", username, false).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, liberr.NotFoundf("member %q", username)
		}
		return nil, fmt.Errorf("failed to load member: %w", err)
	}
	return &member, nil
}

// ListMembers retrieves all non-deleted members.
func (r *Repository) ListMembers() ([]entities.Member, error) {
	var members []entities.Member
	err := r.db.Where("is_deleted = ?", false).Order("username ASC").Find(&members).Error
	return members, err
}

// SearchMembers matches non-deleted members by username or membership number.
func (r *Repository) SearchMembers(query string) ([]entities.Member, error) {
	var members []entities.Member
	pattern := "%" + query + "%"
	err := r.db.Where("is_deleted = ? AND (LOWER(username) LIKE LOWER(?) OR membership_number LIKE ?)",
		false, pattern, pattern).
		Order("username ASC").Find(&members).Error
	return members, err
}

// CountActiveMembers returns the number of active, non-deleted members.
func (r *Repository) CountActiveMembers() (int64, error) {
	var count int64
	err := r.db.Model(&entities.Member{}).
		Where("is_active = ? AND is_deleted = ?", true, false).
		Count(&count).Error
	return count, err
}

func (r *Repository) validateMember(member *entities.Member) error {
	if strings.TrimSpace(member.Username) == "" {
		return liberr.Validationf("username is required")
	}
	if strings.TrimSpace(member.Address) == "" {
		return liberr.Validationf("address is required")
	}
	if !r.hasValidPrefix(member.MembershipNumber) {
		return liberr.Validationf("membership number %s must start with one of %s",
			member.MembershipNumber, strings.Join(r.prefixes, ", "))
	}
	if len(member.Email) > 254 || !emailPattern.MatchString(member.Email) {
		return liberr.Validationf("invalid email format")
	}
	if !phonePattern.MatchString(member.Phone) {
		return liberr.Validationf("phone number must contain digits only")
	}
	return nil
}

func (r *Repository) hasValidPrefix(number string) bool {
	for _, prefix := range r.prefixes {
		if strings.HasPrefix(number, prefix) && len(number) > len(prefix) {
			return true
		}
	}
	return false
}
