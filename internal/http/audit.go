package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/librarian/internal/entities"
)

// AuditController exposes the audit trail to administrators.
type AuditController struct {
	store AuditStore
}

func NewAuditController(store AuditStore) *AuditController {
	return &AuditController{store: store}
}

// ListEvents returns audit events, newest first. An optional "type"
// query restricts to one event class.
func (controller *AuditController) ListEvents(c *gin.Context) {
	limit, offset := parsePagination(c, 50)

	var (
		events []entities.AuditEvent
		total  int64
		err    error
	)

	switch eventType := c.Query("type"); eventType {
	case "":
		events, total, err = controller.store.GetEvents(limit, offset)
	case string(entities.AuditEventAuth),
		string(entities.AuditEventCatalog),
		string(entities.AuditEventMembership),
		string(entities.AuditEventCirculation):
		events, total, err = controller.store.GetEventsByType(entities.AuditEventType(eventType), limit, offset)
	default:
		respondBadRequest(c, "unknown event type")
		return
	}
	if err != nil {
		respondInternalError(c, err, "list audit events")
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:    events,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(events)) < total,
	})
}
