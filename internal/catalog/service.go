// internal/catalog/service.go
package catalog

import (
	"context"

	"schoolshelf/internal/journal"

	"github.com/google/uuid"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, draft Draft) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, patch Patch) (*Book, error)
	RemoveBook(ctx context.Context, id uuid.UUID) error
	ListBooks(ctx context.Context, filter Filter) ([]Book, error)
	ImportBook(ctx context.Context, req ImportRequest) (*Book, error)
	SearchMetadata(ctx context.Context, query string) ([]Draft, error)
	LookupISBN(ctx context.Context, isbn string) (*Draft, error)
	History(ctx context.Context, id uuid.UUID) ([]journal.Event, error)
}

// StockWriter owns every stock transition. The catalog hands admin stock edits
// and removals to it instead of writing the store directly.
type StockWriter interface {
	SetStock(ctx context.Context, id uuid.UUID, stock int) (Book, error)
	Retire(ctx context.Context, id uuid.UUID) (Book, error)
}

// MetadataSource looks up candidate drafts in an external catalog.
type MetadataSource interface {
	SearchByText(ctx context.Context, query string) ([]Draft, error)
	SearchByISBN(ctx context.Context, isbn string) (*Draft, error)
}

// ImportRequest asks for a book to be created from external metadata. ISBN
// takes precedence over Query.
type ImportRequest struct {
	ISBN     string    `json:"isbn"`
	Query    string    `json:"query"`
	Stock    *int      `json:"stock"`
	Category *Category `json:"category"`
}
