package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/openshelf/librarian/internal/entities"
)

// OverdueLoanLister returns loans past their due date as of a moment.
type OverdueLoanLister interface {
	OverdueLoans(asOf time.Time) ([]entities.Loan, error)
}

// OverdueScanReporter records the outcome of an overdue sweep.
type OverdueScanReporter interface {
	LogOverdueScan(overdueCount int, err error)
}

// OverdueScanTask sweeps the ledger for loans past their due date and
// records the result in the audit trail. Enqueued by the scheduler on
// its cron cadence, or on demand through the tasks API.
type OverdueScanTask struct {
	AsOf time.Time `json:"as_of"`
}

// Config returns the queue configuration for overdue scan tasks.
func (t OverdueScanTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "overdue_scan",
		MaxAttempts: 3,
		Backoff:     2 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// OverdueScanProcessor creates a processor function for OverdueScanTask.
func OverdueScanProcessor(lister OverdueLoanLister, reporter OverdueScanReporter) backlite.QueueProcessor[OverdueScanTask] {
	return func(ctx context.Context, task OverdueScanTask) error {
		if lister == nil {
			return fmt.Errorf("overdue loan lister not configured")
		}

		asOf := task.AsOf
		if asOf.IsZero() {
			asOf = time.Now()
		}

		loans, err := lister.OverdueLoans(asOf)
		if reporter != nil {
			reporter.LogOverdueScan(len(loans), err)
		}
		if err != nil {
			return fmt.Errorf("overdue scan: %w", err)
		}

		for _, loan := range loans {
			log.Printf("[TASK] Overdue: loan %d, member %q, book %q, due %s",
				loan.ID, loan.Member.Username, loan.Book.Title,
				loan.DueDate.Format("2006-01-02"))
		}
		log.Printf("[TASK] Overdue scan found %d loans past due as of %s",
			len(loans), asOf.Format(time.RFC3339))
		return nil
	}
}

// NewOverdueScanQueue creates a backlite queue for overdue scan tasks.
func NewOverdueScanQueue(lister OverdueLoanLister, reporter OverdueScanReporter) backlite.Queue {
	return backlite.NewQueue(OverdueScanProcessor(lister, reporter))
}
