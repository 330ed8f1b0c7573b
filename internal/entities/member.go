package entities

import "time"

// Member is a registered library patron. Members are never physically
// deleted while loans reference them; IsDeleted hides them instead.
type Member struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Username         string    `gorm:"index;size:100" json:"username"`
	MembershipNumber string    `gorm:"uniqueIndex;size:50" json:"membership_number"`
	Email            string    `gorm:"index;size:255" json:"email"`
	Phone            string    `gorm:"size:20" json:"phone"`
	Address          string    `gorm:"size:512" json:"address"`
	IsActive         bool      `gorm:"default:true" json:"is_active"`
	IsDeleted        bool      `gorm:"default:false" json:"is_deleted"`
	ActivatedAt      time.Time `json:"activated_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Member) TableName() string {
	return "members"
}
