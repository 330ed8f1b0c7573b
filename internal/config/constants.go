package config

// DefaultDatabasePath is the default path for the main application database
const DefaultDatabasePath = "./librarian.db"

// DefaultLoanPeriodDays is the loan period applied when issuing a book.
const DefaultLoanPeriodDays = 30

// DefaultMembershipPrefixes are the institutional prefixes a membership
// number must start with to be accepted at registration.
var DefaultMembershipPrefixes = []string{"PA", "PSS"}
