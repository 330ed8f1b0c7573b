package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/librarian/internal/database"
	auditrepo "github.com/openshelf/librarian/internal/database/audit"
	"github.com/openshelf/librarian/internal/database/catalog"
	"github.com/openshelf/librarian/internal/database/circulation"
	"github.com/openshelf/librarian/internal/database/members"
	"github.com/openshelf/librarian/internal/entities"
)

// setupTestRouter builds the API against a throwaway database with
// authentication disabled, so tests exercise the handler-to-store
// contract directly.
func setupTestRouter(t *testing.T) (*gin.Engine, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := "./test_" + t.Name() + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)

	catalogRepo := catalog.NewRepository(db.DB)
	router := NewRouter(RouterConfig{
		Database:         db,
		BookStore:        catalogRepo,
		CatalogStore:     catalogRepo,
		MemberStore:      members.NewRepository(db.DB, []string{"PA", "PSS"}),
		CirculationStore: circulation.NewRepository(db.DB, 30),
		Version:          "test",
	})

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return router, cleanup
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// createBook seeds an author, a publisher and a book through the API and
// returns the book ID.
func createBook(t *testing.T, router *gin.Engine, title, isbn string, copies int) uint {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/v1/authors", gin.H{"name": "Author of " + title})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	authorID := decode(t, w)["id"].(float64)

	w = doJSON(t, router, "POST", "/api/v1/publishers", gin.H{"name": "Publisher of " + title})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	publisherID := decode(t, w)["id"].(float64)

	w = doJSON(t, router, "POST", "/api/v1/books", gin.H{
		"title": title, "isbn": isbn, "edition": "1st",
		"copies_total": copies, "shelf_number": 1,
		"author_id": authorID, "publisher_id": publisherID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return uint(decode(t, w)["id"].(float64))
}

func registerMember(t *testing.T, router *gin.Engine, username, number string) uint {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/v1/members", gin.H{
		"username":          username,
		"membership_number": number,
		"email":             username + "@example.com",
		"phone":             "5551234567",
		"address":           "1 Main St",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return uint(decode(t, w)["id"].(float64))
}

func TestHealthEndpoints(t *testing.T) {
	router, cleanup := setupTestRouter(t)
	defer cleanup()

	w := doJSON(t, router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "GET", "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", decode(t, w)["message"])
}

func TestBookEndpoints(t *testing.T) {
	router, cleanup := setupTestRouter(t)
	defer cleanup()

	bookID := createBook(t, router, "The Dispossessed", "9780060125639", 2)

	t.Run("get", func(t *testing.T) {
		w := doJSON(t, router, "GET", fmt.Sprintf("/api/v1/books/%d", bookID), nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "The Dispossessed", body["title"])
		assert.Equal(t, "available", body["status"])
	})

	t.Run("missing required field", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/books", gin.H{"title": "No ISBN"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate isbn maps to conflict", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/authors", gin.H{"name": "Someone Else"})
		require.Equal(t, http.StatusCreated, w.Code)
		authorID := decode(t, w)["id"].(float64)
		w = doJSON(t, router, "POST", "/api/v1/publishers", gin.H{"name": "Another House"})
		require.Equal(t, http.StatusCreated, w.Code)
		publisherID := decode(t, w)["id"].(float64)

		w = doJSON(t, router, "POST", "/api/v1/books", gin.H{
			"title": "Duplicate", "isbn": "9780060125639", "edition": "2nd",
			"copies_total": 1, "shelf_number": 2,
			"author_id": authorID, "publisher_id": publisherID,
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "conflict", decode(t, w)["code"])
	})

	t.Run("unknown book", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/v1/books/9999", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", decode(t, w)["code"])
	})

	t.Run("non-numeric id", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/v1/books/abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("search", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/v1/books?q=dispossessed", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, decode(t, w)["count"])

		w = doJSON(t, router, "GET", "/api/v1/books?q=zzz-no-match", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 0, decode(t, w)["count"])
	})

	t.Run("delete", func(t *testing.T) {
		w := doJSON(t, router, "DELETE", fmt.Sprintf("/api/v1/books/%d", bookID), nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, router, "GET", fmt.Sprintf("/api/v1/books/%d", bookID), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestMemberEndpoints(t *testing.T) {
	router, cleanup := setupTestRouter(t)
	defer cleanup()

	memberID := registerMember(t, router, "asha", "PA1001")

	t.Run("validation failures map to 400", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/members", gin.H{
			"username":          "badprefix",
			"membership_number": "XX42",
			"email":             "bad@example.com",
			"phone":             "5551234567",
			"address":           "1 Main St",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation", decode(t, w)["code"])
	})

	t.Run("duplicate membership number maps to 409", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/members", gin.H{
			"username":          "other",
			"membership_number": "PA1001",
			"email":             "other@example.com",
			"phone":             "5551234567",
			"address":           "1 Main St",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("get and list", func(t *testing.T) {
		w := doJSON(t, router, "GET", fmt.Sprintf("/api/v1/members/%d", memberID), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "asha", decode(t, w)["username"])

		w = doJSON(t, router, "GET", "/api/v1/members?q=ash", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, decode(t, w)["count"])
	})

	t.Run("delete hides the member", func(t *testing.T) {
		w := doJSON(t, router, "DELETE", fmt.Sprintf("/api/v1/members/%d", memberID), nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, router, "GET", fmt.Sprintf("/api/v1/members/%d", memberID), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestLoanEndpoints(t *testing.T) {
	router, cleanup := setupTestRouter(t)
	defer cleanup()

	createBook(t, router, "Foundation", "9780553293357", 1)
	registerMember(t, router, "alice", "PA1")
	registerMember(t, router, "bob", "PA2")

	var loanID uint

	t.Run("issue", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/loans/issue", gin.H{
			"username": "alice", "title": "Foundation",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		body := decode(t, w)
		loanID = uint(body["id"].(float64))
		assert.Equal(t, false, body["is_returned"])
	})

	t.Run("issue with missing fields", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/loans/issue", gin.H{"username": "alice"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no copies left maps to 409 unavailable", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/loans/issue", gin.H{
			"username": "bob", "title": "Foundation",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "unavailable", decode(t, w)["code"])
	})

	t.Run("duplicate hold maps to 409 already_issued", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/loans/issue", gin.H{
			"username": "alice", "title": "Foundation",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "already_issued", decode(t, w)["code"])
	})

	t.Run("unknown member maps to 404", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/loans/issue", gin.H{
			"username": "nobody", "title": "Foundation",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list with filters", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/v1/loans?status=open", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, decode(t, w)["count"])

		w = doJSON(t, router, "GET", "/api/v1/loans?status=bogus", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doJSON(t, router, "GET", "/api/v1/loans?member_id=abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get loan", func(t *testing.T) {
		w := doJSON(t, router, "GET", fmt.Sprintf("/api/v1/loans/%d", loanID), nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "alice", body["member"].(map[string]any)["username"])
		assert.Equal(t, "Foundation", body["book"].(map[string]any)["title"])
	})

	t.Run("overdue with bad as_of", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/v1/loans/overdue?as_of=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("overdue in the future", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/v1/loans/overdue?as_of=2099-01-01T00:00:00Z", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, decode(t, w)["count"])
	})

	t.Run("return", func(t *testing.T) {
		w := doJSON(t, router, "POST", fmt.Sprintf("/api/v1/loans/%d/return", loanID), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decode(t, w)["is_returned"])
	})

	t.Run("double return maps to 409 already_returned", func(t *testing.T) {
		w := doJSON(t, router, "POST", fmt.Sprintf("/api/v1/loans/%d/return", loanID), nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "already_returned", decode(t, w)["code"])
	})

	t.Run("return unknown loan", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/loans/9999/return", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("dashboard stats", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/v1/dashboard/stats", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.EqualValues(t, 1, body["total_books"])
		assert.EqualValues(t, 0, body["open_loans"])
		assert.EqualValues(t, 1, body["returned_loans"])
		assert.EqualValues(t, 2, body["active_members"])
	})
}

func TestCatalogEndpoints(t *testing.T) {
	router, cleanup := setupTestRouter(t)
	defer cleanup()

	t.Run("genres are seeded", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/v1/genres", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 6, decode(t, w)["count"])
	})

	t.Run("author lifecycle", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/authors", gin.H{"name": "Octavia Butler"})
		require.Equal(t, http.StatusCreated, w.Code)
		id := uint(decode(t, w)["id"].(float64))

		w = doJSON(t, router, "POST", "/api/v1/authors", gin.H{"name": "octavia butler"})
		assert.Equal(t, http.StatusConflict, w.Code)

		w = doJSON(t, router, "PUT", fmt.Sprintf("/api/v1/authors/%d", id), gin.H{"name": "Octavia E. Butler"})
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, router, "DELETE", fmt.Sprintf("/api/v1/authors/%d", id), nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, router, "GET", "/api/v1/authors", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 0, decode(t, w)["count"])
	})

	t.Run("empty name rejected", func(t *testing.T) {
		w := doJSON(t, router, "POST", "/api/v1/publishers", gin.H{"name": "   "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuditEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dbPath := "./test_" + t.Name() + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)
	defer func() {
		db.Close()
		os.Remove(dbPath)
	}()

	repo := auditrepo.NewRepository(db.DB)
	router := NewRouter(RouterConfig{Database: db, AuditStore: repo, Version: "test"})

	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		EventType: entities.AuditEventAuth, Action: "login", Status: entities.AuditStatusSuccess,
	}))
	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		EventType: entities.AuditEventCatalog, Action: "create_book", Status: entities.AuditStatusSuccess,
	}))

	t.Run("list all", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/v1/audit/events", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.EqualValues(t, 2, body["total"])
		assert.Equal(t, false, body["has_more"])
	})

	t.Run("filter by type", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/v1/audit/events?type=catalog", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, decode(t, w)["total"])
	})

	t.Run("pagination window", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/v1/audit/events?limit=1&offset=0", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.EqualValues(t, 2, body["total"])
		assert.Equal(t, true, body["has_more"])
		assert.Len(t, body["data"], 1)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/v1/audit/events?type=bogus", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSecurityHeaders(t *testing.T) {
	router, cleanup := setupTestRouter(t)
	defer cleanup()

	w := doJSON(t, router, "GET", "/ping", nil)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
