// Package audit provides high-level audit logging over the audit
// repository. Events are written in the background so request handling
// never blocks on audit persistence.
package audit

import (
	"encoding/json"
	"log"

	"github.com/openshelf/librarian/internal/database/audit"
	"github.com/openshelf/librarian/internal/entities"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo *audit.Repository
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	go func() {
		if err := s.repo.LogEvent(event); err != nil {
			log.Printf("Failed to log audit event: %v", err)
		}
	}()
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(adminID uint, action, ipAddr string, success bool) {
	event := &entities.AuditEvent{
		AdminID:   adminID,
		EventType: entities.AuditEventAuth,
		Action:    action,
		IPAddress: ipAddr,
		Status:    entities.AuditStatusSuccess,
	}
	if !success {
		event.Status = entities.AuditStatusFailed
	}
	s.LogAsync(event)
}

// LogCirculation records an issue or return event.
func (s *Service) LogCirculation(adminID uint, action, description string, loanID uint, err error) {
	event := &entities.AuditEvent{
		AdminID:     adminID,
		EventType:   entities.AuditEventCirculation,
		Action:      action,
		Description: description,
		EntityType:  "loan",
		EntityID:    &loanID,
		Status:      entities.AuditStatusSuccess,
	}
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
	s.LogAsync(event)
}

// LogCatalog records a catalog mutation (book/author/publisher/genre).
func (s *Service) LogCatalog(adminID uint, action, entityType string, entityID uint, description string) {
	event := &entities.AuditEvent{
		AdminID:     adminID,
		EventType:   entities.AuditEventCatalog,
		Action:      action,
		Description: description,
		EntityType:  entityType,
		EntityID:    &entityID,
		Status:      entities.AuditStatusSuccess,
	}
	s.LogAsync(event)
}

// LogMembership records a member registration or lifecycle change.
func (s *Service) LogMembership(adminID uint, action string, memberID uint, description string) {
	event := &entities.AuditEvent{
		AdminID:     adminID,
		EventType:   entities.AuditEventMembership,
		Action:      action,
		Description: description,
		EntityType:  "member",
		EntityID:    &memberID,
		Status:      entities.AuditStatusSuccess,
	}
	s.LogAsync(event)
}

// LogOverdueScan records the outcome of a scheduled overdue sweep.
func (s *Service) LogOverdueScan(overdueCount int, err error) {
	metadata, _ := json.Marshal(map[string]any{"overdue_count": overdueCount})
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventCirculation,
		Action:      "overdue_scan",
		Description: "Scheduled overdue loan sweep",
		Metadata:    string(metadata),
		Status:      entities.AuditStatusSuccess,
	}
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
	s.LogAsync(event)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
