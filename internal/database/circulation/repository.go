// Package circulation implements the loan ledger: the transactional
// rules that keep a book's available-copy count, derived status, and
// per-member loan records consistent across issue and return.
//
// Every issue and return runs as a single gorm transaction. The copy
// counter is adjusted with guarded conditional UPDATEs (WHERE clauses on
// the current count) so that two concurrent issues can never both
// observe a free copy and overdraw the count below zero, and a return
// can never push the count past copies_total.
package circulation

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/openshelf/librarian/internal/entities"
	"github.com/openshelf/librarian/internal/liberr"
)

// DefaultLoanPeriodDays is used when the repository is constructed with
// a non-positive loan period.
const DefaultLoanPeriodDays = 30

// LoanFilter narrows loan listings.
type LoanFilter struct {
	MemberID uint
	BookID   uint
	Status   string // "open", "returned", or "" for all
}

// Stats is the read-side dashboard projection.
type Stats struct {
	TotalBooks    int64 `json:"total_books"`
	OpenLoans     int64 `json:"open_loans"`
	ReturnedLoans int64 `json:"returned_loans"`
	ActiveMembers int64 `json:"active_members"`
}

// Repository handles the circulation ledger.
type Repository struct {
	db         *gorm.DB
	loanPeriod time.Duration
}

// NewRepository creates a new circulation repository. loanPeriodDays is
// the due-date offset applied at issue time.
func NewRepository(db *gorm.DB, loanPeriodDays int) *Repository {
	if loanPeriodDays <= 0 {
		loanPeriodDays = DefaultLoanPeriodDays
	}
	return &Repository{
		db:         db,
		loanPeriod: time.Duration(loanPeriodDays) * 24 * time.Hour,
	}
}

// IssueBook records a loan of one copy of the named book to the named
// member. The loan insert and the copy decrement commit together or not
// at all.
func (r *Repository) IssueBook(username, title string) (*entities.Loan, error) {
	var loan *entities.Loan
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var member entities.Member
		err := tx.Where("username = ? AND is_deleted = ?", username, false).First(&member).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return liberr.NotFoundf("member %q", username)
			}
			return fmt.Errorf("failed to load member: %w", err)
		}
		if !member.IsActive {
			return liberr.Validationf("member %q is not active", username)
		}

		var book entities.Book
		err = tx.Where("LOWER(title) = LOWER(?)", title).First(&book).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return liberr.NotFoundf("book %q", title)
			}
			return fmt.Errorf("failed to load book: %w", err)
		}

		if book.CopiesAvailable == 0 {
			return liberr.ErrUnavailable
		}

		var open int64
		err = tx.Model(&entities.Loan{}).
			Where("member_id = ? AND book_id = ? AND is_returned = ?", member.ID, book.ID, false).
			Count(&open).Error
		if err != nil {
			return fmt.Errorf("failed to count open loans: %w", err)
		}
		if open > 0 {
			return liberr.ErrAlreadyIssued
		}

		// Guarded decrement: the WHERE clause re-checks the count so a
		// concurrent issue that drained the last copy aborts here
		// instead of overdrawing. Status derives from the new count in
		// the same statement.
		result := tx.Model(&entities.Book{}).
			Where("id = ? AND copies_available > 0", book.ID).
			Updates(map[string]any{
				"copies_available": gorm.Expr("copies_available - 1"),
				"status": gorm.Expr("CASE WHEN copies_available - 1 > 0 THEN ? ELSE ? END",
					entities.BookStatusAvailable, entities.BookStatusUnavailable),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to decrement copies: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return liberr.ErrUnavailable
		}

		now := time.Now()
		l := &entities.Loan{
			MemberID:  member.ID,
			BookID:    book.ID,
			IssueDate: now,
			DueDate:   now.Add(r.loanPeriod),
		}
		if err := tx.Create(l).Error; err != nil {
			return fmt.Errorf("failed to create loan: %w", err)
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// ReturnBook closes a loan and gives the copy back to the book. The
// Issued -> Returned transition is terminal: a second return fails with
// ErrAlreadyReturned and leaves the ledger unchanged.
func (r *Repository) ReturnBook(loanID uint) (*entities.Loan, error) {
	var loan entities.Loan
	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&loan, loanID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return liberr.NotFoundf("loan %d", loanID)
			}
			return fmt.Errorf("failed to load loan: %w", err)
		}
		if loan.IsReturned {
			return liberr.ErrAlreadyReturned
		}

		now := time.Now()
		// Guarded close: is_returned in the WHERE clause makes a
		// concurrent double return lose the race cleanly.
		result := tx.Model(&entities.Loan{}).
			Where("id = ? AND is_returned = ?", loanID, false).
			Updates(map[string]any{
				"is_returned": true,
				"return_date": now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to close loan: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return liberr.ErrAlreadyReturned
		}

		// Guarded increment with copies_total as the ceiling. A counter
		// already at the ceiling (manual edit) is clamped rather than
		// overdrawn; the loan still closes.
		result = tx.Model(&entities.Book{}).
			Where("id = ? AND copies_available < copies_total", loan.BookID).
			Updates(map[string]any{
				"copies_available": gorm.Expr("copies_available + 1"),
				"status":           entities.BookStatusAvailable,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to increment copies: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			log.Printf("Loan %d returned but book %d already at full copy count; counter clamped", loanID, loan.BookID)
		}

		loan.IsReturned = true
		loan.ReturnDate = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// GetLoanByID retrieves a loan with its member and book.
func (r *Repository) GetLoanByID(id uint) (*entities.Loan, error) {
	var loan entities.Loan
	err := r.db.Preload("Member").Preload("Book").First(&loan, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, liberr.NotFoundf("loan %d", id)
		}
		return nil, fmt.Errorf("failed to load loan: %w", err)
	}
	return &loan, nil
}

// ListLoans retrieves loans matching the filter, most recent first.
func (r *Repository) ListLoans(filter LoanFilter) ([]entities.Loan, error) {
	query := r.db.Preload("Member").Preload("Book").Order("issue_date DESC")
	if filter.MemberID > 0 {
		query = query.Where("member_id = ?", filter.MemberID)
	}
	if filter.BookID > 0 {
		query = query.Where("book_id = ?", filter.BookID)
	}
	switch filter.Status {
	case "open":
		query = query.Where("is_returned = ?", false)
	case "returned":
		query = query.Where("is_returned = ?", true)
	}

	var loans []entities.Loan
	if err := query.Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

// OverdueLoans retrieves open loans whose due date has passed as of the
// given time.
func (r *Repository) OverdueLoans(asOf time.Time) ([]entities.Loan, error) {
	var loans []entities.Loan
	err := r.db.Preload("Member").Preload("Book").
		Where("is_returned = ? AND due_date < ?", false, asOf).
		Order("due_date ASC").Find(&loans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue loans: %w", err)
	}
	return loans, nil
}

// GetStats computes the dashboard counts.
func (r *Repository) GetStats() (Stats, error) {
	var stats Stats
	if err := r.db.Model(&entities.Book{}).Count(&stats.TotalBooks).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&entities.Loan{}).Where("is_returned = ?", false).Count(&stats.OpenLoans).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&entities.Loan{}).Where("is_returned = ?", true).Count(&stats.ReturnedLoans).Error; err != nil {
		return stats, err
	}
	err := r.db.Model(&entities.Member{}).
		Where("is_active = ? AND is_deleted = ?", true, false).
		Count(&stats.ActiveMembers).Error
	return stats, err
}
