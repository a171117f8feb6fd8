package circulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	ErrLoanNotFound    = errors.New("loan not found")
	ErrAlreadyReturned = errors.New("loan already returned")
	ErrValidation      = errors.New("invalid loan request")
)

// Repository keeps loans in memory, in the order they were opened. Loans are
// never deleted.
type Repository struct {
	mu    sync.RWMutex
	loans map[uuid.UUID]*Loan
	order []uuid.UUID
}

// NewRepository returns an empty loan repository.
func NewRepository() *Repository {
	return &Repository{loans: make(map[uuid.UUID]*Loan)}
}

// Insert stores a new active loan.
func (r *Repository) Insert(ctx context.Context, loan Loan) (Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if loan.ID == uuid.Nil {
		loan.ID = uuid.New()
	}
	if _, exists := r.loans[loan.ID]; exists {
		return Loan{}, fmt.Errorf("%w: duplicate loan id %s", ErrValidation, loan.ID)
	}
	loan.Status = LoanActive
	loan.ReturnDate = nil
	loan.Version = 1

	stored := loan
	r.loans[loan.ID] = &stored
	r.order = append(r.order, loan.ID)
	return loan, nil
}

// Get returns a copy of the loan.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Loan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loan, ok := r.loans[id]
	if !ok {
		return Loan{}, fmt.Errorf("%w: %s", ErrLoanNotFound, id)
	}
	return copyLoan(loan), nil
}

// MarkReturned moves an active loan to returned. It is the only transition a
// loan ever makes.
func (r *Repository) MarkReturned(ctx context.Context, id uuid.UUID, at time.Time) (Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	loan, ok := r.loans[id]
	if !ok {
		return Loan{}, fmt.Errorf("%w: %s", ErrLoanNotFound, id)
	}
	if loan.Status == LoanReturned {
		return Loan{}, fmt.Errorf("%w: %s", ErrAlreadyReturned, id)
	}

	returnedAt := at
	loan.ReturnDate = &returnedAt
	loan.Status = LoanReturned
	loan.Version++
	return copyLoan(loan), nil
}

// List returns copies of the loans matching keep, in the order they were opened.
func (r *Repository) List(ctx context.Context, keep func(Loan) bool) []Loan {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.FilterMap(r.order, func(id uuid.UUID, _ int) (Loan, bool) {
		loan := copyLoan(r.loans[id])
		if keep != nil && !keep(loan) {
			return Loan{}, false
		}
		return loan, true
	})
}

// CountActive reports how many active loans reference the book.
func (r *Repository) CountActive(ctx context.Context, bookID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.CountBy(r.order, func(id uuid.UUID) bool {
		loan := r.loans[id]
		return loan.BookID == bookID && loan.Status == LoanActive
	})
}

func copyLoan(l *Loan) Loan {
	out := *l
	if l.ReturnDate != nil {
		at := *l.ReturnDate
		out.ReturnDate = &at
	}
	return out
}
