package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/librarian/internal/audit"
	"github.com/openshelf/librarian/internal/auth"
	"github.com/openshelf/librarian/internal/database/circulation"
)

// CirculationController handles loan issue and return endpoints.
type CirculationController struct {
	store   CirculationStore
	auditor *audit.Service
}

func NewCirculationController(store CirculationStore, auditor *audit.Service) *CirculationController {
	return &CirculationController{
		store:   store,
		auditor: auditor,
	}
}

type issueRequest struct {
	Username string `json:"username" binding:"required"`
	Title    string `json:"title" binding:"required"`
}

// IssueBook lends a copy to a member. The store decrements the
// available-copy counter and opens the loan atomically, so two issues
// racing for the last copy cannot both succeed.
func (controller *CirculationController) IssueBook(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "username and title are required")
		return
	}

	loan, err := controller.store.IssueBook(strings.TrimSpace(req.Username), strings.TrimSpace(req.Title))
	if err != nil {
		if controller.auditor != nil {
			controller.auditor.LogCirculation(auth.GetAdminID(c), "issue",
				fmt.Sprintf("Issue %q to %q", req.Title, req.Username), 0, err)
		}
		respondStoreError(c, err, "issue book")
		return
	}

	if controller.auditor != nil {
		controller.auditor.LogCirculation(auth.GetAdminID(c), "issue",
			fmt.Sprintf("Issued %q to %q, due %s", req.Title, req.Username,
				loan.DueDate.Format("2006-01-02")), loan.ID, nil)
	}
	respondCreated(c, loan)
}

// ReturnBook closes a loan and releases the copy back to the shelf.
func (controller *CirculationController) ReturnBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	loan, err := controller.store.ReturnBook(id)
	if err != nil {
		if controller.auditor != nil {
			controller.auditor.LogCirculation(auth.GetAdminID(c), "return",
				fmt.Sprintf("Return loan %d", id), id, err)
		}
		respondStoreError(c, err, "return book")
		return
	}

	if controller.auditor != nil {
		controller.auditor.LogCirculation(auth.GetAdminID(c), "return",
			fmt.Sprintf("Returned %q from %q", loan.Book.Title, loan.Member.Username), loan.ID, nil)
	}
	c.JSON(http.StatusOK, loan)
}

// GetLoan returns a single loan with its member and book.
func (controller *CirculationController) GetLoan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	loan, err := controller.store.GetLoanByID(id)
	if err != nil {
		respondStoreError(c, err, "get loan")
		return
	}

	c.JSON(http.StatusOK, loan)
}

// ListLoans returns loans, optionally filtered by member_id, book_id
// and status ("open" or "returned").
func (controller *CirculationController) ListLoans(c *gin.Context) {
	var filter circulation.LoanFilter

	if idStr := c.Query("member_id"); idStr != "" {
		id, ok := parseQueryUint(c, "member_id", idStr)
		if !ok {
			return
		}
		filter.MemberID = id
	}
	if idStr := c.Query("book_id"); idStr != "" {
		id, ok := parseQueryUint(c, "book_id", idStr)
		if !ok {
			return
		}
		filter.BookID = id
	}

	switch status := c.Query("status"); status {
	case "", "open", "returned":
		filter.Status = status
	default:
		respondBadRequest(c, "status must be 'open' or 'returned'")
		return
	}

	loans, err := controller.store.ListLoans(filter)
	if err != nil {
		respondStoreError(c, err, "list loans")
		return
	}

	c.JSON(http.StatusOK, gin.H{"loans": loans, "count": len(loans)})
}

// ListOverdue returns open loans past their due date. An optional
// "as_of" query (RFC 3339) overrides the reference time.
func (controller *CirculationController) ListOverdue(c *gin.Context) {
	asOf := time.Now()
	if v := c.Query("as_of"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondBadRequest(c, "as_of must be RFC 3339 formatted")
			return
		}
		asOf = parsed
	}

	loans, err := controller.store.OverdueLoans(asOf)
	if err != nil {
		respondStoreError(c, err, "list overdue loans")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"loans": loans,
		"count": len(loans),
		"as_of": asOf.Format(time.RFC3339),
	})
}
