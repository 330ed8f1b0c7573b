package entities

import "time"

type BookStatus string

const (
	BookStatusAvailable   BookStatus = "available"
	BookStatusUnavailable BookStatus = "unavailable"
)

// DeriveStatus computes a book's status from its available-copy count.
// Status is never stored independently of copies_available.
func DeriveStatus(copiesAvailable int) BookStatus {
	if copiesAvailable > 0 {
		return BookStatusAvailable
	}
	return BookStatusUnavailable
}

type Book struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Title           string     `gorm:"index;size:512" json:"title"`
	ISBN            string     `gorm:"uniqueIndex;size:20" json:"isbn"`
	Edition         string     `gorm:"size:50" json:"edition"`
	CopiesTotal     int        `json:"copies_total"`
	CopiesAvailable int        `json:"copies_available"`
	ShelfNumber     int        `json:"shelf_number"`
	Status          BookStatus `gorm:"size:20;default:'available'" json:"status"`
	PublishedYear   int        `json:"published_year"`

	AuthorID    uint      `gorm:"index" json:"author_id"`
	PublisherID uint      `gorm:"index" json:"publisher_id"`
	Author      Author    `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Publisher   Publisher `gorm:"foreignKey:PublisherID" json:"publisher,omitempty"`
	Genres      []Genre   `gorm:"many2many:book_genres;" json:"genres,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Author struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"index;size:256" json:"name"`
	IsDeleted bool      `gorm:"default:false" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Publisher struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"index;size:256" json:"name"`
	IsDeleted bool      `gorm:"default:false" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Genre struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"index;size:100" json:"name"`
	IsDeleted bool      `gorm:"default:false" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	Books     []Book    `gorm:"many2many:book_genres;" json:"-"`
}

func (Book) TableName() string {
	return "books"
}

func (Author) TableName() string {
	return "authors"
}

func (Publisher) TableName() string {
	return "publishers"
}

func (Genre) TableName() string {
	return "genres"
}
