// Package http wires the catalog, membership, circulation, audit and
// task stores to the JSON API surface.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/openshelf/librarian/internal/auth"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(auth.SecurityHeadersMiddleware())

	// CSRF must run before session so that session context is
	// preserved on top of CSRF's request replacement.
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies, cfg.AuthService))
	}

	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	if cfg.AuthMiddleware != nil {
		router.Use(cfg.AuthMiddleware.Handler())
	}

	// Health endpoints
	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Auth endpoints
	if cfg.AuthController != nil {
		cfg.AuthController.RegisterRoutes(router)
	}

	api := router.Group("/api/v1")

	// Catalog endpoints
	if cfg.BookStore != nil {
		booksController := NewBooksController(cfg.BookStore, cfg.Auditor)
		api.GET("/books", booksController.ListBooks)
		api.POST("/books", booksController.CreateBook)
		api.GET("/books/:id", booksController.GetBook)
		api.PUT("/books/:id", booksController.UpdateBook)
		api.DELETE("/books/:id", booksController.DeleteBook)
	}

	if cfg.CatalogStore != nil {
		catalogController := NewCatalogController(cfg.CatalogStore, cfg.Auditor)
		api.GET("/authors", catalogController.ListAuthors)
		api.POST("/authors", catalogController.CreateAuthor)
		api.PUT("/authors/:id", catalogController.UpdateAuthor)
		api.DELETE("/authors/:id", catalogController.DeleteAuthor)

		api.GET("/publishers", catalogController.ListPublishers)
		api.POST("/publishers", catalogController.CreatePublisher)
		api.PUT("/publishers/:id", catalogController.UpdatePublisher)
		api.DELETE("/publishers/:id", catalogController.DeletePublisher)

		api.GET("/genres", catalogController.ListGenres)
		api.POST("/genres", catalogController.CreateGenre)
		api.PUT("/genres/:id", catalogController.UpdateGenre)
		api.DELETE("/genres/:id", catalogController.DeleteGenre)
	}

	// Membership endpoints
	if cfg.MemberStore != nil {
		membersController := NewMembersController(cfg.MemberStore, cfg.Auditor)
		api.GET("/members", membersController.ListMembers)
		api.POST("/members", membersController.RegisterMember)
		api.GET("/members/:id", membersController.GetMember)
		api.PUT("/members/:id", membersController.UpdateMember)
		api.DELETE("/members/:id", membersController.DeleteMember)
	}

	// Circulation endpoints
	if cfg.CirculationStore != nil {
		circulationController := NewCirculationController(cfg.CirculationStore, cfg.Auditor)
		api.POST("/loans/issue", circulationController.IssueBook)
		api.POST("/loans/:id/return", circulationController.ReturnBook)
		api.GET("/loans", circulationController.ListLoans)
		api.GET("/loans/:id", circulationController.GetLoan)
		api.GET("/loans/overdue", circulationController.ListOverdue)

		dashboardController := NewDashboardController(cfg.CirculationStore)
		api.GET("/dashboard/stats", dashboardController.GetStats)
	}

	// Audit trail endpoints
	if cfg.AuditStore != nil {
		auditController := NewAuditController(cfg.AuditStore)
		api.GET("/audit/events", auditController.ListEvents)
	}

	// Task management endpoints
	if cfg.TaskClient != nil {
		tasksController := NewTasksController(cfg.TaskClient)
		api.GET("/tasks/types", tasksController.ListTaskTypes)
		api.GET("/tasks/:id", tasksController.GetTaskStatus)
		api.POST("/tasks/:type/run", tasksController.RunTask)
	}

	return router
}
