// internal/catalog/domain.go
package catalog

import (
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Status is the availability of a book, derived from its stock.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBorrowed  Status = "borrowed"
)

// Category is one of the fixed shelf labels.
type Category string

const (
	CategoryFiction      Category = "Fiction"
	CategoryNonFiction   Category = "Non-Fiction"
	CategoryScience      Category = "Science"
	CategoryMathematics  Category = "Mathematics"
	CategoryHistory      Category = "History"
	CategoryLanguage     Category = "Language"
	CategoryReligion     Category = "Religion"
	CategoryTechnology   Category = "Technology"
	CategoryArt          Category = "Art"
	CategorySports       Category = "Sports"
	CategoryEncyclopedia Category = "Encyclopedia"
	CategoryComics       Category = "Comics"
	CategoryNovel        Category = "Novel"
	CategoryBiography    Category = "Biography"
	CategoryOther        Category = "Other"
)

// Categories lists every label in display order.
var Categories = []Category{
	CategoryFiction,
	CategoryNonFiction,
	CategoryScience,
	CategoryMathematics,
	CategoryHistory,
	CategoryLanguage,
	CategoryReligion,
	CategoryTechnology,
	CategoryArt,
	CategorySports,
	CategoryEncyclopedia,
	CategoryComics,
	CategoryNovel,
	CategoryBiography,
	CategoryOther,
}

// Valid reports whether c is one of the fixed labels.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Book represents a title on the shelf and how many copies are in.
type Book struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Publisher   string    `json:"publisher"`
	Year        int       `json:"year"`
	Category    Category  `json:"category"`
	Description string    `json:"description"`
	CoverURL    string    `json:"cover_url"`
	ISBN        string    `json:"isbn"`
	Stock       int       `json:"stock"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Status is computed from stock and never stored.
func (b Book) Status() Status {
	if b.Stock > 0 {
		return StatusAvailable
	}
	return StatusBorrowed
}

// bookView is the wire shape of a Book, carrying the derived status.
type bookView struct {
	bookAlias
	Status Status `json:"status"`
}

type bookAlias Book

// MarshalJSON adds the derived status to the encoded book.
func (b Book) MarshalJSON() ([]byte, error) {
	return json.Marshal(bookView{bookAlias: bookAlias(b), Status: b.Status()})
}

// Draft holds the fields an admin or an import supplies for a new book.
type Draft struct {
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Publisher   string   `json:"publisher"`
	Year        int      `json:"year"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	CoverURL    string   `json:"cover_url"`
	ISBN        string   `json:"isbn"`
	Stock       int      `json:"stock"`
}

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Author      *string   `json:"author,omitempty"`
	Publisher   *string   `json:"publisher,omitempty"`
	Year        *int      `json:"year,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Description *string   `json:"description,omitempty"`
	CoverURL    *string   `json:"cover_url,omitempty"`
	ISBN        *string   `json:"isbn,omitempty"`
	Stock       *int      `json:"stock,omitempty"`
}

// Filter narrows a catalog listing.
type Filter struct {
	Query    string
	Category Category
}

// BookAddedEvent is journaled when a book enters the catalog.
type BookAddedEvent struct {
	ID       uuid.UUID `json:"id"`
	ISBN     string    `json:"isbn"`
	Title    string    `json:"title"`
	Author   string    `json:"author"`
	Stock    int       `json:"stock"`
	Imported bool      `json:"imported"`
}

// BookUpdatedEvent is journaled when admin edits descriptive fields.
type BookUpdatedEvent struct {
	ID    uuid.UUID `json:"id"`
	Patch Patch     `json:"patch"`
}

// BookRemovedEvent is journaled when a book leaves the catalog.
type BookRemovedEvent struct {
	ID uuid.UUID `json:"id"`
}
