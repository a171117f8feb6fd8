package chaos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"schoolshelf/internal/catalog"
	"schoolshelf/internal/circulation"
	"schoolshelf/internal/inventory"

	"github.com/google/uuid"
)

// Target is the library instance the experiments run against.
type Target struct {
	Catalog     catalog.Service
	Circulation circulation.Service
	Coordinator *inventory.Coordinator
}

// Load sizes the built-in experiments.
type Load struct {
	Copies    int // copies on the shelf for the borrow race
	Borrowers int // concurrent borrowers in the borrow race
	Loans     int // loans opened for the return storm
	Returners int // concurrent returns per loan in the return storm
}

var DefaultLoad = Load{Copies: 5, Borrowers: 50, Loans: 10, Returners: 8}

// RegisterDefaults registers the built-in experiments sized by load.
func (e *Engine) RegisterDefaults(t Target, load Load) {
	e.Register(ConcurrentBorrowExperiment(t, load.Copies, load.Borrowers))
	e.Register(DoubleReturnStormExperiment(t, load.Loans, load.Returners))
}

func ledgerConsistency(t Target) Metric {
	return Metric{
		Name: "ledger_discrepancies",
		Query: func(ctx context.Context) (float64, error) {
			return float64(len(t.Coordinator.Verify(ctx))), nil
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

func bookStock(t Target, id *uuid.UUID) Metric {
	return Metric{
		Name: "book_stock",
		Query: func(ctx context.Context) (float64, error) {
			book, err := t.Catalog.GetBook(ctx, *id)
			if err != nil {
				return 0, err
			}
			return float64(book.Stock), nil
		},
	}
}

func counter(name string, n *atomic.Int64) Metric {
	return Metric{
		Name:  name,
		Query: func(context.Context) (float64, error) { return float64(n.Load()), nil },
	}
}

func addScratchBook(ctx context.Context, t Target, title string, stock int) (uuid.UUID, error) {
	book, err := t.Catalog.AddBook(ctx, catalog.Draft{
		Title:    title,
		Author:   "Consistency Check",
		Category: catalog.CategoryOther,
		Stock:    stock,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return book.ID, nil
}

func returnAll(ctx context.Context, t Target, loans []uuid.UUID) error {
	var errs []error
	for _, id := range loans {
		if _, err := t.Circulation.Return(ctx, id); err != nil && !errors.Is(err, circulation.ErrAlreadyReturned) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ConcurrentBorrowExperiment fires borrowers goroutines at a book holding
// copies copies. Exactly copies borrows may succeed and stock must end at zero.
func ConcurrentBorrowExperiment(t Target, copies, borrowers int) Experiment {
	var (
		bookID     uuid.UUID
		succeeded  atomic.Int64
		outOfStock atomic.Int64
		mu         sync.Mutex
		loans      []uuid.UUID
	)

	return Experiment{
		Name:        "concurrent-borrow-race",
		Hypothesis:  "Concurrent borrows of one book never lend more copies than the shelf holds",
		SteadyState: []Metric{ledgerConsistency(t)},
		Probes: []Metric{
			counter("borrow_successes", &succeeded),
			counter("borrow_out_of_stock", &outOfStock),
			bookStock(t, &bookID),
		},
		Method: []Action{
			{
				Type:   "add-book",
				Target: "catalog",
				Execute: func(ctx context.Context) error {
					succeeded.Store(0)
					outOfStock.Store(0)
					loans = nil
					id, err := addScratchBook(ctx, t, "Borrow Race", copies)
					bookID = id
					return err
				},
			},
			{
				Type:   "concurrent-borrows",
				Target: "circulation",
				Execute: func(ctx context.Context) error {
					var wg sync.WaitGroup
					errs := make(chan error, borrowers)
					for i := 0; i < borrowers; i++ {
						wg.Add(1)
						go func(i int) {
							defer wg.Done()
							loan, err := t.Circulation.Borrow(ctx, circulation.BorrowRequest{
								BookID:       bookID,
								StudentName:  fmt.Sprintf("Student %d", i),
								StudentClass: "X-1",
								StudentNIS:   fmt.Sprintf("race-%d", i),
							})
							switch {
							case err == nil:
								succeeded.Add(1)
								mu.Lock()
								loans = append(loans, loan.ID)
								mu.Unlock()
							case errors.Is(err, inventory.ErrOutOfStock):
								outOfStock.Add(1)
							default:
								errs <- err
							}
						}(i)
					}
					wg.Wait()
					close(errs)

					var unexpected []error
					for err := range errs {
						unexpected = append(unexpected, err)
					}
					return errors.Join(unexpected...)
				},
			},
		},
		Rollback: []Action{
			{
				Type:    "return-loans",
				Target:  "circulation",
				Execute: func(ctx context.Context) error { return returnAll(ctx, t, loans) },
			},
			{
				Type:   "remove-book",
				Target: "catalog",
				Execute: func(ctx context.Context) error {
					return t.Catalog.RemoveBook(ctx, bookID)
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "borrow_successes",
				Condition: func(v float64) bool { return v == float64(copies) },
				Message:   fmt.Sprintf("exactly %d borrows should succeed", copies),
			},
			{
				Metric:    "borrow_out_of_stock",
				Condition: func(v float64) bool { return v == float64(borrowers-copies) },
				Message:   fmt.Sprintf("exactly %d borrows should be refused", borrowers-copies),
			},
			{
				Metric:    "book_stock",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "stock should end at zero",
			},
			{
				Metric:    "ledger_discrepancies",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "ledger should match active loans",
			},
		},
		Duration: 200 * time.Millisecond,
	}
}

// DoubleReturnStormExperiment opens loans on one book and then returns each
// of them from several goroutines at once. Only one return per loan may count.
func DoubleReturnStormExperiment(t Target, loansOpened, returnersPerLoan int) Experiment {
	var (
		bookID    uuid.UUID
		loans     []uuid.UUID
		succeeded atomic.Int64
		rejected  atomic.Int64
	)

	return Experiment{
		Name:        "double-return-storm",
		Hypothesis:  "Returning the same loan concurrently restores exactly one copy",
		SteadyState: []Metric{ledgerConsistency(t)},
		Probes: []Metric{
			counter("return_successes", &succeeded),
			counter("return_already_returned", &rejected),
			bookStock(t, &bookID),
		},
		Method: []Action{
			{
				Type:   "open-loans",
				Target: "circulation",
				Execute: func(ctx context.Context) error {
					succeeded.Store(0)
					rejected.Store(0)
					loans = nil
					id, err := addScratchBook(ctx, t, "Return Storm", loansOpened)
					if err != nil {
						return err
					}
					bookID = id
					for i := 0; i < loansOpened; i++ {
						loan, err := t.Circulation.Borrow(ctx, circulation.BorrowRequest{
							BookID:       bookID,
							StudentName:  fmt.Sprintf("Student %d", i),
							StudentClass: "XI-2",
							StudentNIS:   fmt.Sprintf("storm-%d", i),
						})
						if err != nil {
							return err
						}
						loans = append(loans, loan.ID)
					}
					return nil
				},
			},
			{
				Type:   "concurrent-returns",
				Target: "circulation",
				Execute: func(ctx context.Context) error {
					var wg sync.WaitGroup
					errs := make(chan error, len(loans)*returnersPerLoan)
					for _, loanID := range loans {
						for r := 0; r < returnersPerLoan; r++ {
							wg.Add(1)
							go func(id uuid.UUID) {
								defer wg.Done()
								_, err := t.Circulation.Return(ctx, id)
								switch {
								case err == nil:
									succeeded.Add(1)
								case errors.Is(err, circulation.ErrAlreadyReturned):
									rejected.Add(1)
								default:
									errs <- err
								}
							}(loanID)
						}
					}
					wg.Wait()
					close(errs)

					var unexpected []error
					for err := range errs {
						unexpected = append(unexpected, err)
					}
					return errors.Join(unexpected...)
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "remove-book",
				Target: "catalog",
				Execute: func(ctx context.Context) error {
					return t.Catalog.RemoveBook(ctx, bookID)
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "return_successes",
				Condition: func(v float64) bool { return v == float64(loansOpened) },
				Message:   fmt.Sprintf("exactly %d returns should succeed", loansOpened),
			},
			{
				Metric:    "return_already_returned",
				Condition: func(v float64) bool { return v == float64(loansOpened*(returnersPerLoan-1)) },
				Message:   "every duplicate return should be refused",
			},
			{
				Metric:    "book_stock",
				Condition: func(v float64) bool { return v == float64(loansOpened) },
				Message:   "stock should be fully restored",
			},
			{
				Metric:    "ledger_discrepancies",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "ledger should match active loans",
			},
		},
		Duration: 200 * time.Millisecond,
	}
}
