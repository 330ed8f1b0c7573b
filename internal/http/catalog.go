package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/librarian/internal/audit"
	"github.com/openshelf/librarian/internal/auth"
)

// CatalogController handles author, publisher and genre endpoints.
// These entities are soft-deleted so historical loans keep their
// references.
type CatalogController struct {
	store   CatalogStore
	auditor *audit.Service
}

func NewCatalogController(store CatalogStore, auditor *audit.Service) *CatalogController {
	return &CatalogController{
		store:   store,
		auditor: auditor,
	}
}

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

func (controller *CatalogController) logChange(c *gin.Context, action, entityType string, entityID uint, name string) {
	if controller.auditor == nil {
		return
	}
	description := entityType
	if name != "" {
		description = fmt.Sprintf("%s %q", entityType, name)
	}
	controller.auditor.LogCatalog(auth.GetAdminID(c), action, entityType, entityID, description)
}

// --- Authors ---

func (controller *CatalogController) CreateAuthor(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name is required")
		return
	}

	author, err := controller.store.CreateAuthor(strings.TrimSpace(req.Name))
	if err != nil {
		respondStoreError(c, err, "create author")
		return
	}

	controller.logChange(c, "create_author", "author", author.ID, author.Name)
	respondCreated(c, author)
}

func (controller *CatalogController) UpdateAuthor(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name is required")
		return
	}

	if err := controller.store.UpdateAuthor(id, strings.TrimSpace(req.Name)); err != nil {
		respondStoreError(c, err, "update author")
		return
	}

	controller.logChange(c, "update_author", "author", id, req.Name)
	respondSuccess(c, "author updated")
}

func (controller *CatalogController) DeleteAuthor(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := controller.store.SoftDeleteAuthor(id); err != nil {
		respondStoreError(c, err, "delete author")
		return
	}

	controller.logChange(c, "delete_author", "author", id, "")
	respondSuccess(c, "author deleted")
}

func (controller *CatalogController) ListAuthors(c *gin.Context) {
	authors, err := controller.store.ListAuthors()
	if err != nil {
		respondStoreError(c, err, "list authors")
		return
	}
	c.JSON(http.StatusOK, gin.H{"authors": authors, "count": len(authors)})
}

// --- Publishers ---

func (controller *CatalogController) CreatePublisher(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name is required")
		return
	}

	publisher, err := controller.store.CreatePublisher(strings.TrimSpace(req.Name))
	if err != nil {
		respondStoreError(c, err, "create publisher")
		return
	}

	controller.logChange(c, "create_publisher", "publisher", publisher.ID, publisher.Name)
	respondCreated(c, publisher)
}

func (controller *CatalogController) UpdatePublisher(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name is required")
		return
	}

	if err := controller.store.UpdatePublisher(id, strings.TrimSpace(req.Name)); err != nil {
		respondStoreError(c, err, "update publisher")
		return
	}

	controller.logChange(c, "update_publisher", "publisher", id, req.Name)
	respondSuccess(c, "publisher updated")
}

func (controller *CatalogController) DeletePublisher(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := controller.store.SoftDeletePublisher(id); err != nil {
		respondStoreError(c, err, "delete publisher")
		return
	}

	controller.logChange(c, "delete_publisher", "publisher", id, "")
	respondSuccess(c, "publisher deleted")
}

func (controller *CatalogController) ListPublishers(c *gin.Context) {
	publishers, err := controller.store.ListPublishers()
	if err != nil {
		respondStoreError(c, err, "list publishers")
		return
	}
	c.JSON(http.StatusOK, gin.H{"publishers": publishers, "count": len(publishers)})
}

// --- Genres ---

func (controller *CatalogController) CreateGenre(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name is required")
		return
	}

	genre, err := controller.store.CreateGenre(strings.TrimSpace(req.Name))
	if err != nil {
		respondStoreError(c, err, "create genre")
		return
	}

	controller.logChange(c, "create_genre", "genre", genre.ID, genre.Name)
	respondCreated(c, genre)
}

func (controller *CatalogController) UpdateGenre(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "name is required")
		return
	}

	if err := controller.store.UpdateGenre(id, strings.TrimSpace(req.Name)); err != nil {
		respondStoreError(c, err, "update genre")
		return
	}

	controller.logChange(c, "update_genre", "genre", id, req.Name)
	respondSuccess(c, "genre updated")
}

func (controller *CatalogController) DeleteGenre(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := controller.store.SoftDeleteGenre(id); err != nil {
		respondStoreError(c, err, "delete genre")
		return
	}

	controller.logChange(c, "delete_genre", "genre", id, "")
	respondSuccess(c, "genre deleted")
}

func (controller *CatalogController) ListGenres(c *gin.Context) {
	genres, err := controller.store.ListGenres()
	if err != nil {
		respondStoreError(c, err, "list genres")
		return
	}
	c.JSON(http.StatusOK, gin.H{"genres": genres, "count": len(genres)})
}
