package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DashboardController serves the front-desk summary counters.
type DashboardController struct {
	store CirculationStore
}

func NewDashboardController(store CirculationStore) *DashboardController {
	return &DashboardController{store: store}
}

// GetStats returns catalog size, open and returned loan counts and the
// active member count in one call.
func (controller *DashboardController) GetStats(c *gin.Context) {
	stats, err := controller.store.GetStats()
	if err != nil {
		respondInternalError(c, err, "dashboard stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_books":    stats.TotalBooks,
		"open_loans":     stats.OpenLoans,
		"returned_loans": stats.ReturnedLoans,
		"active_members": stats.ActiveMembers,
	})
}
