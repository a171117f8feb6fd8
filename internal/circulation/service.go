// internal/circulation/service.go
package circulation

import (
	"context"

	"schoolshelf/internal/catalog"
	"schoolshelf/internal/journal"

	"github.com/google/uuid"
)

// Service defines the interface for the circulation service.
type Service interface {
	Borrow(ctx context.Context, req BorrowRequest) (*LoanView, error)
	Return(ctx context.Context, loanID uuid.UUID) (*LoanView, error)
	GetLoan(ctx context.Context, loanID uuid.UUID) (*LoanView, error)
	FindActiveByBorrower(ctx context.Context, nis string) ([]LoanView, error)
	ListActive(ctx context.Context) ([]LoanView, error)
	ListReturned(ctx context.Context) ([]LoanView, error)
	History(ctx context.Context, loanID uuid.UUID) ([]journal.Event, error)
}

// Inventory performs the stock side of a borrow or return.
type Inventory interface {
	Borrow(ctx context.Context, bookID uuid.UUID, openLoan func(catalog.Book) error) (catalog.Book, error)
	Return(ctx context.Context, bookID uuid.UUID, closeLoan func() error) (catalog.Book, error)
}

// BookReader resolves the book a loan refers to.
type BookReader interface {
	Get(ctx context.Context, id uuid.UUID) (catalog.Book, error)
}
