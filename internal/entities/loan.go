package entities

import "time"

// Loan records one book copy issued to one member. A loan is open until
// returned; the Issued -> Returned transition is terminal.
type Loan struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	MemberID   uint       `gorm:"index;not null" json:"member_id"`
	BookID     uint       `gorm:"index;not null" json:"book_id"`
	IssueDate  time.Time  `gorm:"index;not null" json:"issue_date"`
	DueDate    time.Time  `gorm:"not null" json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	IsReturned bool       `gorm:"index;default:false" json:"is_returned"`

	Member Member `gorm:"foreignKey:MemberID" json:"member,omitempty"`
	Book   Book   `gorm:"foreignKey:BookID" json:"book,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Loan) TableName() string {
	return "loans"
}
