package http

import (
	"time"

	"github.com/openshelf/librarian/internal/database/circulation"
	"github.com/openshelf/librarian/internal/entities"
)

// Store interfaces used by the HTTP controllers. Each controller
// depends only on the methods it actually calls; the repositories in
// internal/database satisfy these.

// BookStore provides catalog access for book endpoints.
type BookStore interface {
	CreateBook(book *entities.Book, genreIDs []uint) error
	UpdateBook(book *entities.Book, genreIDs []uint) error
	DeleteBook(id uint) error
	GetBookByID(id uint) (*entities.Book, error)
	ListBooks() ([]entities.Book, error)
	SearchBooks(query string) ([]entities.Book, error)
}

// CatalogStore provides access to the catalog's supporting entities.
type CatalogStore interface {
	CreateAuthor(name string) (*entities.Author, error)
	UpdateAuthor(id uint, name string) error
	SoftDeleteAuthor(id uint) error
	ListAuthors() ([]entities.Author, error)

	CreatePublisher(name string) (*entities.Publisher, error)
	UpdatePublisher(id uint, name string) error
	SoftDeletePublisher(id uint) error
	ListPublishers() ([]entities.Publisher, error)

	CreateGenre(name string) (*entities.Genre, error)
	UpdateGenre(id uint, name string) error
	SoftDeleteGenre(id uint) error
	ListGenres() ([]entities.Genre, error)
}

// MemberStore provides membership management.
type MemberStore interface {
	RegisterMember(member *entities.Member) error
	UpdateMember(member *entities.Member) error
	SoftDeleteMember(id uint) error
	GetMemberByID(id uint) (*entities.Member, error)
	ListMembers() ([]entities.Member, error)
	SearchMembers(query string) ([]entities.Member, error)
}

// CirculationStore provides loan issue/return operations.
type CirculationStore interface {
	IssueBook(username, title string) (*entities.Loan, error)
	ReturnBook(loanID uint) (*entities.Loan, error)
	GetLoanByID(id uint) (*entities.Loan, error)
	ListLoans(filter circulation.LoanFilter) ([]entities.Loan, error)
	OverdueLoans(asOf time.Time) ([]entities.Loan, error)
	GetStats() (circulation.Stats, error)
}

// AuditStore provides read access to the audit trail.
type AuditStore interface {
	GetEvents(limit, offset int) ([]entities.AuditEvent, int64, error)
	GetEventsByType(eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error)
}
