package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/librarian/internal/audit"
	"github.com/openshelf/librarian/internal/auth"
	"github.com/openshelf/librarian/internal/entities"
)

// BooksController handles book catalog endpoints.
type BooksController struct {
	store   BookStore
	auditor *audit.Service
}

func NewBooksController(store BookStore, auditor *audit.Service) *BooksController {
	return &BooksController{
		store:   store,
		auditor: auditor,
	}
}

type bookRequest struct {
	Title         string `json:"title" binding:"required"`
	ISBN          string `json:"isbn" binding:"required"`
	Edition       string `json:"edition" binding:"required"`
	CopiesTotal   int    `json:"copies_total"`
	ShelfNumber   int    `json:"shelf_number"`
	PublishedYear int    `json:"published_year"`
	AuthorID      uint   `json:"author_id" binding:"required"`
	PublisherID   uint   `json:"publisher_id" binding:"required"`
	GenreIDs      []uint `json:"genre_ids"`
}

// CreateBook adds a title to the catalog.
func (controller *BooksController) CreateBook(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	book := &entities.Book{
		Title:         strings.TrimSpace(req.Title),
		ISBN:          strings.TrimSpace(req.ISBN),
		Edition:       strings.TrimSpace(req.Edition),
		CopiesTotal:   req.CopiesTotal,
		ShelfNumber:   req.ShelfNumber,
		PublishedYear: req.PublishedYear,
		AuthorID:      req.AuthorID,
		PublisherID:   req.PublisherID,
	}

	if err := controller.store.CreateBook(book, req.GenreIDs); err != nil {
		respondStoreError(c, err, "create book")
		return
	}

	if controller.auditor != nil {
		controller.auditor.LogCatalog(auth.GetAdminID(c), "create_book", "book", book.ID,
			fmt.Sprintf("Added %q (ISBN %s)", book.Title, book.ISBN))
	}
	respondCreated(c, book)
}

// UpdateBook modifies an existing catalog entry.
func (controller *BooksController) UpdateBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	book := &entities.Book{
		ID:            id,
		Title:         strings.TrimSpace(req.Title),
		ISBN:          strings.TrimSpace(req.ISBN),
		Edition:       strings.TrimSpace(req.Edition),
		CopiesTotal:   req.CopiesTotal,
		ShelfNumber:   req.ShelfNumber,
		PublishedYear: req.PublishedYear,
		AuthorID:      req.AuthorID,
		PublisherID:   req.PublisherID,
	}

	if err := controller.store.UpdateBook(book, req.GenreIDs); err != nil {
		respondStoreError(c, err, "update book")
		return
	}

	updated, err := controller.store.GetBookByID(id)
	if err != nil {
		respondStoreError(c, err, "update book")
		return
	}

	if controller.auditor != nil {
		controller.auditor.LogCatalog(auth.GetAdminID(c), "update_book", "book", id,
			fmt.Sprintf("Updated %q", updated.Title))
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteBook removes a book. Refused while copies are out on loan.
func (controller *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := controller.store.DeleteBook(id); err != nil {
		respondStoreError(c, err, "delete book")
		return
	}

	if controller.auditor != nil {
		controller.auditor.LogCatalog(auth.GetAdminID(c), "delete_book", "book", id, "Removed book")
	}
	respondSuccess(c, "book deleted")
}

// GetBook returns a single book with its author, publisher and genres.
func (controller *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := controller.store.GetBookByID(id)
	if err != nil {
		respondStoreError(c, err, "get book")
		return
	}

	c.JSON(http.StatusOK, book)
}

// ListBooks returns the catalog. An optional "q" query filters by
// title, ISBN or author name.
func (controller *BooksController) ListBooks(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))

	var (
		books []entities.Book
		err   error
	)
	if query != "" {
		books, err = controller.store.SearchBooks(query)
	} else {
		books, err = controller.store.ListBooks()
	}
	if err != nil {
		respondStoreError(c, err, "list books")
		return
	}

	c.JSON(http.StatusOK, gin.H{"books": books, "count": len(books)})
}
