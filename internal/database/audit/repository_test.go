package audit

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/librarian/internal/database"
	"github.com/openshelf/librarian/internal/entities"
)

func setupTestRepo(t *testing.T) (*Repository, func()) {
	t.Helper()
	dbPath := "./test_" + t.Name() + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return NewRepository(db.DB), cleanup
}

func TestLogEvent(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	event := &entities.AuditEvent{
		AdminID:     1,
		EventType:   entities.AuditEventCirculation,
		Action:      "book_issue",
		Description: "issued \"Dune\" to alice",
		EntityType:  "loan",
		Status:      entities.AuditStatusSuccess,
	}
	require.NoError(t, repo.LogEvent(event))
	assert.NotZero(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())

	events, total, err := repo.GetEvents(10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, "book_issue", events[0].Action)
}

func TestGetEventsPagination(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		require.NoError(t, repo.LogEvent(&entities.AuditEvent{
			AdminID:   1,
			EventType: entities.AuditEventAuth,
			Action:    fmt.Sprintf("login_%d", i),
			Status:    entities.AuditStatusSuccess,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, total, err := repo.GetEvents(10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 25, total)
	require.Len(t, page, 10)
	// Most recent first
	assert.Equal(t, "login_24", page[0].Action)

	page, _, err = repo.GetEvents(10, 20)
	require.NoError(t, err)
	assert.Len(t, page, 5)

	// Non-positive limit falls back to the default page size
	page, _, err = repo.GetEvents(0, 0)
	require.NoError(t, err)
	assert.Len(t, page, 25)
}

func TestGetEventsByType(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		EventType: entities.AuditEventAuth, Action: "login", Status: entities.AuditStatusSuccess,
	}))
	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		EventType: entities.AuditEventCatalog, Action: "book_create", Status: entities.AuditStatusSuccess,
	}))
	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		EventType: entities.AuditEventCatalog, Action: "book_delete", Status: entities.AuditStatusFailed,
	}))

	events, total, err := repo.GetEventsByType(entities.AuditEventCatalog, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, events, 2)

	events, total, err = repo.GetEventsByType(entities.AuditEventMembership, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
	assert.Empty(t, events)
}

func TestDeleteOldEvents(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		EventType: entities.AuditEventAuth, Action: "stale",
		Status:    entities.AuditStatusSuccess,
		CreatedAt: time.Now().Add(-100 * 24 * time.Hour),
	}))
	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		EventType: entities.AuditEventAuth, Action: "fresh",
		Status: entities.AuditStatusSuccess,
	}))

	deleted, err := repo.DeleteOldEvents(90 * 24 * time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	events, total, err := repo.GetEvents(10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, "fresh", events[0].Action)

	// Nothing else crosses the cutoff
	deleted, err = repo.DeleteOldEvents(90 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
