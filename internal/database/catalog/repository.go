// Package catalog provides database operations for books, authors,
// publishers, and genres.
//
// Authors, publishers, and genres are soft-deleted only: the is_deleted
// flag hides them from listings while existing book references stay
// intact. Books are the one catalog entity that is hard-deleted.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/openshelf/librarian/internal/entities"
	"github.com/openshelf/librarian/internal/liberr"
)

// Repository handles all catalog database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new catalog repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// --- Books ---

// CreateBook validates and inserts a new book with its genre associations.
// copies_available starts equal to copies_total and status is derived
// from it.
func (r *Repository) CreateBook(book *entities.Book, genreIDs []uint) error {
	if err := validateBook(book); err != nil {
		return err
	}

	if _, err := r.activeAuthor(book.AuthorID); err != nil {
		return err
	}
	if _, err := r.activePublisher(book.PublisherID); err != nil {
		return err
	}

	var existing entities.Book
	err := r.db.Where("isbn = ?", book.ISBN).First(&existing).Error
	if err == nil {
		return liberr.Conflictf("isbn %s already exists", book.ISBN)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check existing isbn: %w", err)
	}

	genres, err := r.activeGenres(genreIDs)
	if err != nil {
		return err
	}

	book.CopiesAvailable = book.CopiesTotal
	book.Status = entities.DeriveStatus(book.CopiesAvailable)

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Genres", "Author", "Publisher").Create(book).Error; err != nil {
			return fmt.Errorf("failed to create book: %w", err)
		}
		if len(genres) > 0 {
			if err := tx.Model(book).Association("Genres").Append(genres); err != nil {
				return fmt.Errorf("failed to attach genres: %w", err)
			}
		}
		return nil
	})
}

// UpdateBook applies field changes to an existing book and replaces its
// genre associations wholesale. Status is recomputed from the new copy
// counts on every write, and copies_available is clamped to
// [0, copies_total].
func (r *Repository) UpdateBook(book *entities.Book, genreIDs []uint) error {
	if err := validateBook(book); err != nil {
		return err
	}

	var current entities.Book
	if err := r.db.First(&current, book.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return liberr.NotFoundf("book %d", book.ID)
		}
		return fmt.Errorf("failed to load book: %w", err)
	}

	if book.ISBN != current.ISBN {
		var existing entities.Book
		err := r.db.Where("isbn = ? AND id <> ?", book.ISBN, book.ID).First(&existing).Error
		if err == nil {
			return liberr.Conflictf("isbn %s already exists", book.ISBN)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check existing isbn: %w", err)
		}
	}

	if _, err := r.activeAuthor(book.AuthorID); err != nil {
		return err
	}
	if _, err := r.activePublisher(book.PublisherID); err != nil {
		return err
	}

	genres, err := r.activeGenres(genreIDs)
	if err != nil {
		return err
	}

	if book.CopiesAvailable < 0 {
		book.CopiesAvailable = 0
	}
	if book.CopiesAvailable > book.CopiesTotal {
		book.CopiesAvailable = book.CopiesTotal
	}
	book.Status = entities.DeriveStatus(book.CopiesAvailable)

	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entities.Book{}).Where("id = ?", book.ID).
			Select("title", "isbn", "edition", "copies_total", "copies_available",
				"shelf_number", "status", "published_year", "author_id", "publisher_id").
			Updates(book)
		if result.Error != nil {
			return fmt.Errorf("failed to update book: %w", result.Error)
		}
		// Replace associations wholesale rather than diffing
		if len(genres) == 0 {
			if err := tx.Model(book).Association("Genres").Clear(); err != nil {
				return fmt.Errorf("failed to clear genres: %w", err)
			}
			return nil
		}
		if err := tx.Model(book).Association("Genres").Replace(genres); err != nil {
			return fmt.Errorf("failed to replace genres: %w", err)
		}
		return nil
	})
}

// GetBookByID retrieves a book with its author, publisher, and genres.
func (r *Repository) GetBookByID(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Preload("Author").Preload("Publisher").Preload("Genres").First(&book, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, liberr.NotFoundf("book %d", id)
		}
		return nil, fmt.Errorf("failed to load book: %w", err)
	}
	return &book, nil
}

// GetBookByTitle retrieves a book by exact title (case-insensitive).
func (r *Repository) GetBookByTitle(title string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Preload("Author").Preload("Publisher").
		Where("LOWER(title) = LOWER(?)", title).First(&book).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, liberr.NotFoundf("book %q", title)
		}
		return nil, fmt.Errorf("failed to load book: %w", err)
	}
	return &book, nil
}

// ListBooks retrieves all books ordered by title.
func (r *Repository) ListBooks() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Preload("Author").Preload("Publisher").Preload("Genres").
		Order("title ASC").Find(&books).Error
	return books, err
}

// SearchBooks matches books by title or ISBN (case-insensitive partial match).
func (r *Repository) SearchBooks(query string) ([]entities.Book, error) {
	var books []entities.Book
	pattern := "%" + query + "%"
	err := r.db.Preload("Author").Preload("Publisher").Preload("Genres").
		Where("LOWER(title) LIKE LOWER(?) OR isbn LIKE ?", pattern, pattern).
		Order("title ASC").Find(&books).Error
	return books, err
}

// DeleteBook hard-deletes a book and its genre associations. The delete
// is refused while un-returned loans still reference the book, so the
// ledger never loses the book row behind an open loan.
func (r *Repository) DeleteBook(id uint) error {
	var book entities.Book
	if err := r.db.First(&book, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return liberr.NotFoundf("book %d", id)
		}
		return fmt.Errorf("failed to load book: %w", err)
	}

	var open int64
	err := r.db.Model(&entities.Loan{}).
		Where("book_id = ? AND is_returned = ?", id, false).
		Count(&open).Error
	if err != nil {
		return fmt.Errorf("failed to count open loans: %w", err)
	}
	if open > 0 {
		return liberr.Conflictf("book %d has %d un-returned loans", id, open)
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&book).Association("Genres").Clear(); err != nil {
			return fmt.Errorf("failed to clear genres: %w", err)
		}
		if err := tx.Delete(&entities.Book{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete book: %w", err)
		}
		return nil
	})
}

func validateBook(book *entities.Book) error {
	if strings.TrimSpace(book.Title) == "" {
		return liberr.Validationf("title is required")
	}
	if strings.TrimSpace(book.ISBN) == "" {
		return liberr.Validationf("isbn is required")
	}
	if strings.TrimSpace(book.Edition) == "" {
		return liberr.Validationf("edition is required")
	}
	if book.CopiesTotal < 0 {
		return liberr.Validationf("copies_total must be >= 0")
	}
	if book.ShelfNumber <= 0 {
		return liberr.Validationf("shelf_number must be a positive number")
	}
	if book.AuthorID == 0 {
		return liberr.Validationf("author is required")
	}
	if book.PublisherID == 0 {
		return liberr.Validationf("publisher is required")
	}
	return nil
}

func (r *Repository) activeAuthor(id uint) (*entities.Author, error) {
	var author entities.Author
	err := r.db.Where("id = ? AND is_deleted = ?", id, false).First(&author).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, liberr.NotFoundf("author %d", id)
		}
		return nil, fmt.Errorf("failed to load author: %w", err)
	}
	return &author, nil
}

func (r *Repository) activePublisher(id uint) (*entities.Publisher, error) {
	var publisher entities.Publisher
	err := r.db.Where("id = ? AND is_deleted = ?", id, false).First(&publisher).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, liberr.NotFoundf("publisher %d", id)
		}
		return nil, fmt.Errorf("failed to load publisher: %w", err)
	}
	return &publisher, nil
}

func (r *Repository) activeGenres(ids []uint) ([]entities.Genre, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var genres []entities.Genre
	err := r.db.Where("id IN ? AND is_deleted = ?", ids, false).Find(&genres).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load genres: %w", err)
	}
	if len(genres) != len(ids) {
		return nil, liberr.Validationf("invalid genre selection")
	}
	return genres, nil
}

// --- Authors ---

// CreateAuthor inserts a new author. Names are unique within the active
// (non-deleted) set.
func (r *Repository) CreateAuthor(name string) (*entities.Author, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, liberr.Validationf("author name cannot be empty")
	}

	var existing entities.Author
	err := r.db.Where("LOWER(name) = LOWER(?) AND is_deleted = ?", name, false).First(&existing).Error
	if err == nil {
		return nil, liberr.Conflictf("author %q already exists", name)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing author: %w", err)
	}

	author := &entities.Author{Name: name}
	if err := r.db.Create(author).Error; err != nil {
		return nil, fmt.Errorf("failed to create author: %w", err)
	}
	return author, nil
}

// UpdateAuthor renames an author.
func (r *Repository) UpdateAuthor(id uint, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return liberr.Validationf("author name cannot be empty")
	}
	result := r.db.Model(&entities.Author{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("name", name)
	if result.Error != nil {
		return fmt.Errorf("failed to update author: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return liberr.NotFoundf("author %d", id)
	}
	return nil
}

// SoftDeleteAuthor flips the is_deleted flag. Books referencing the
// author keep a valid reference; nothing cascades.
func (r *Repository) SoftDeleteAuthor(id uint) error {
	return r.softDelete(&entities.Author{}, "author", id)
}

// ListAuthors retrieves all non-deleted authors.
func (r *Repository) ListAuthors() ([]entities.Author, error) {
	var authors []entities.Author
	err := r.db.Where("is_deleted = ?", false).Order("name ASC").Find(&authors).Error
	return authors, err
}

// --- Publishers ---

// CreatePublisher inserts a new publisher, unique within the active set.
func (r *Repository) CreatePublisher(name string) (*entities.Publisher, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, liberr.Validationf("publisher name cannot be empty")
	}

	var existing entities.Publisher
	err := r.db.Where("LOWER(name) = LOWER(?) AND is_deleted = ?", name, false).First(&existing).Error
	if err == nil {
		return nil, liberr.Conflictf("publisher %q already exists", name)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing publisher: %w", err)
	}

	publisher := &entities.Publisher{Name: name}
	if err := r.db.Create(publisher).Error; err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}
	return publisher, nil
}

// UpdatePublisher renames a publisher.
func (r *Repository) UpdatePublisher(id uint, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return liberr.Validationf("publisher name cannot be empty")
	}
	result := r.db.Model(&entities.Publisher{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("name", name)
	if result.Error != nil {
		return fmt.Errorf("failed to update publisher: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return liberr.NotFoundf("publisher %d", id)
	}
	return nil
}

// SoftDeletePublisher flips the is_deleted flag.
func (r *Repository) SoftDeletePublisher(id uint) error {
	return r.softDelete(&entities.Publisher{}, "publisher", id)
}

// ListPublishers retrieves all non-deleted publishers.
func (r *Repository) ListPublishers() ([]entities.Publisher, error) {
	var publishers []entities.Publisher
	err := r.db.Where("is_deleted = ?", false).Order("name ASC").Find(&publishers).Error
	return publishers, err
}

// --- Genres ---

// CreateGenre inserts a new genre, unique within the active set.
func (r *Repository) CreateGenre(name string) (*entities.Genre, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, liberr.Validationf("genre name cannot be empty")
	}

	var existing entities.Genre
	err := r.db.Where("LOWER(name) = LOWER(?) AND is_deleted = ?", name, false).First(&existing).Error
	if err == nil {
		return nil, liberr.Conflictf("genre %q already exists", name)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing genre: %w", err)
	}

	genre := &entities.Genre{Name: name}
	if err := r.db.Create(genre).Error; err != nil {
		return nil, fmt.Errorf("failed to create genre: %w", err)
	}
	return genre, nil
}

// UpdateGenre renames a genre.
func (r *Repository) UpdateGenre(id uint, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return liberr.Validationf("genre name cannot be empty")
	}
	result := r.db.Model(&entities.Genre{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("name", name)
	if result.Error != nil {
		return fmt.Errorf("failed to update genre: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return liberr.NotFoundf("genre %d", id)
	}
	return nil
}

// SoftDeleteGenre flips the is_deleted flag. Existing book_genres rows
// are preserved.
func (r *Repository) SoftDeleteGenre(id uint) error {
	return r.softDelete(&entities.Genre{}, "genre", id)
}

// ListGenres retrieves all non-deleted genres.
func (r *Repository) ListGenres() ([]entities.Genre, error) {
	var genres []entities.Genre
	err := r.db.Where("is_deleted = ?", false).Order("name ASC").Find(&genres).Error
	return genres, err
}

func (r *Repository) softDelete(model any, label string, id uint) error {
	result := r.db.Model(model).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("is_deleted", true)
	if result.Error != nil {
		return fmt.Errorf("failed to delete %s: %w", label, result.Error)
	}
	if result.RowsAffected == 0 {
		return liberr.NotFoundf("%s %d", label, id)
	}
	return nil
}
