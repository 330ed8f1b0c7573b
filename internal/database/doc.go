// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations, genre seeding
//	├── catalog/         # Book, author, publisher, genre CRUD with soft deletes
//	├── members/         # Member registration and lifecycle
//	├── circulation/     # Loan ledger: issue/return accounting
//	└── audit/           # Audit event persistence
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	// Initialize database connection
//	db, err := database.NewDatabase("./librarian.db")
//
//	// Create domain-specific repositories
//	catalogRepo := catalog.NewRepository(db.DB)
//	ledger := circulation.NewRepository(db.DB, circulation.DefaultLoanPeriodDays)
//
//	// Use repositories
//	book, err := catalogRepo.GetBookByID(123)
//	loan, err := ledger.IssueBook("jsmith", "The Go Programming Language")
//
// The circulation repository is the one place with real invariants: the
// available-copy count of a book must stay within [0, copies_total] and
// the loan insert plus the copy decrement commit in a single transaction.
package database
