package cli

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/openshelf/librarian/internal/config"
	"github.com/openshelf/librarian/internal/database"
	"github.com/openshelf/librarian/internal/database/circulation"
)

// OverdueReportCommand prints loans past their due date.
type OverdueReportCommand struct {
	DatabasePath string
	AsOf         string
}

func NewOverdueReportCommand() *OverdueReportCommand {
	return &OverdueReportCommand{}
}

func (cmd *OverdueReportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("overdue-report", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")
	fs.StringVar(&cmd.AsOf, "as-of", "", "Reference date (YYYY-MM-DD, default: today)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s overdue-report [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "List open loans past their due date.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *OverdueReportCommand) Run() error {
	asOf := time.Now()
	if cmd.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", cmd.AsOf)
		if err != nil {
			return fmt.Errorf("invalid -as-of date %q: %w", cmd.AsOf, err)
		}
		asOf = parsed
	}

	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	cfg := config.NewConfig()
	repo := circulation.NewRepository(db.DB, cfg.Circulation.LoanPeriodDays)

	loans, err := repo.OverdueLoans(asOf)
	if err != nil {
		return fmt.Errorf("failed to list overdue loans: %w", err)
	}

	if len(loans) == 0 {
		fmt.Printf("No overdue loans as of %s\n", asOf.Format("2006-01-02"))
		return nil
	}

	fmt.Printf("%-6s %-24s %-40s %-12s %s\n", "LOAN", "MEMBER", "TITLE", "DUE", "DAYS LATE")
	for _, loan := range loans {
		daysLate := int(asOf.Sub(loan.DueDate).Hours() / 24)
		fmt.Printf("%-6d %-24s %-40s %-12s %d\n",
			loan.ID, loan.Member.Username, loan.Book.Title,
			loan.DueDate.Format("2006-01-02"), daysLate)
	}
	fmt.Printf("\n%d overdue loan(s) as of %s\n", len(loans), asOf.Format("2006-01-02"))
	return nil
}
