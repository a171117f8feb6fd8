// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"schoolshelf/internal/catalog"
	"schoolshelf/internal/journal"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const aggregateType = "loan"

// service implements the Service interface.
type service struct {
	loans     *Repository
	books     BookReader
	inventory Inventory
	journal   journal.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new circulation service instance.
func NewService(loans *Repository, books BookReader, inventory Inventory, rec journal.Recorder, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = journal.NewMemoryJournal()
	}
	return &service{
		loans:     loans,
		books:     books,
		inventory: inventory,
		journal:   rec,
		logger:    logger,
		now:       time.Now,
	}
}

// Borrow lends one copy of a book to a student. The loan is opened inside the
// inventory's critical section, so a failed insert gives the copy back.
func (s *service) Borrow(ctx context.Context, req BorrowRequest) (*LoanView, error) {
	req.StudentName = strings.TrimSpace(req.StudentName)
	req.StudentClass = strings.TrimSpace(req.StudentClass)
	req.StudentNIS = strings.TrimSpace(req.StudentNIS)
	if err := validateBorrow(req); err != nil {
		return nil, err
	}

	var loan Loan
	book, err := s.inventory.Borrow(ctx, req.BookID, func(book catalog.Book) error {
		opened, err := s.loans.Insert(ctx, Loan{
			ID:           uuid.New(),
			BookID:       book.ID,
			StudentName:  req.StudentName,
			StudentClass: req.StudentClass,
			StudentNIS:   req.StudentNIS,
			BorrowDate:   s.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("failed to open loan: %w", err)
		}
		loan = opened
		return nil
	})
	if err != nil {
		return nil, err
	}

	journal.Record(ctx, s.journal, s.logger, journal.Entry{
		AggregateID:   loan.ID,
		AggregateType: aggregateType,
		EventType:     "LoanOpened",
		Version:       loan.Version,
		Data: LoanOpenedEvent{
			LoanID:     loan.ID,
			BookID:     loan.BookID,
			StudentNIS: loan.StudentNIS,
			BorrowDate: loan.BorrowDate,
		},
	})
	s.logger.InfoContext(ctx, "book borrowed",
		"loan_id", loan.ID, "book_id", book.ID, "student_nis", loan.StudentNIS, "stock", book.Stock)

	return &LoanView{Loan: loan, Book: &book}, nil
}

// Return closes an active loan and puts the copy back on the shelf.
func (s *service) Return(ctx context.Context, loanID uuid.UUID) (*LoanView, error) {
	current, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if current.Status == LoanReturned {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyReturned, loanID)
	}

	var loan Loan
	book, err := s.inventory.Return(ctx, current.BookID, func() error {
		closed, err := s.loans.MarkReturned(ctx, loanID, s.now().UTC())
		if err != nil {
			return err
		}
		loan = closed
		return nil
	})
	if err != nil {
		return nil, err
	}

	journal.Record(ctx, s.journal, s.logger, journal.Entry{
		AggregateID:   loan.ID,
		AggregateType: aggregateType,
		EventType:     "LoanReturned",
		Version:       loan.Version,
		Data: LoanReturnedEvent{
			LoanID:     loan.ID,
			BookID:     loan.BookID,
			StudentNIS: loan.StudentNIS,
			ReturnDate: *loan.ReturnDate,
		},
	})
	s.logger.InfoContext(ctx, "book returned",
		"loan_id", loan.ID, "book_id", book.ID, "student_nis", loan.StudentNIS, "stock", book.Stock)

	return &LoanView{Loan: loan, Book: &book}, nil
}

// GetLoan returns a single loan joined with its book.
func (s *service) GetLoan(ctx context.Context, loanID uuid.UUID) (*LoanView, error) {
	loan, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	view := s.join(ctx, loan)
	return &view, nil
}

// FindActiveByBorrower lists the active loans of one student.
func (s *service) FindActiveByBorrower(ctx context.Context, nis string) ([]LoanView, error) {
	nis = strings.TrimSpace(nis)
	if nis == "" {
		return nil, fmt.Errorf("%w: student NIS is required", ErrValidation)
	}
	return s.view(ctx, func(l Loan) bool {
		return l.StudentNIS == nis && l.Status == LoanActive
	}), nil
}

// ListActive lists every loan still out.
func (s *service) ListActive(ctx context.Context) ([]LoanView, error) {
	return s.view(ctx, func(l Loan) bool { return l.Status == LoanActive }), nil
}

// ListReturned lists every closed loan.
func (s *service) ListReturned(ctx context.Context) ([]LoanView, error) {
	return s.view(ctx, func(l Loan) bool { return l.Status == LoanReturned }), nil
}

// History returns the journaled events of a loan.
func (s *service) History(ctx context.Context, loanID uuid.UUID) ([]journal.Event, error) {
	return s.journal.Load(ctx, loanID)
}

func (s *service) view(ctx context.Context, keep func(Loan) bool) []LoanView {
	return lo.Map(s.loans.List(ctx, keep), func(l Loan, _ int) LoanView {
		return s.join(ctx, l)
	})
}

func (s *service) join(ctx context.Context, loan Loan) LoanView {
	view := LoanView{Loan: loan}
	book, err := s.books.Get(ctx, loan.BookID)
	if err == nil {
		view.Book = &book
	} else if !errors.Is(err, catalog.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to join loan with book", "loan_id", loan.ID, "book_id", loan.BookID, "error", err)
	}
	return view
}

func validateBorrow(req BorrowRequest) error {
	switch {
	case req.BookID == uuid.Nil:
		return fmt.Errorf("%w: book_id is required", ErrValidation)
	case req.StudentName == "":
		return fmt.Errorf("%w: student_name is required", ErrValidation)
	case req.StudentClass == "":
		return fmt.Errorf("%w: student_class is required", ErrValidation)
	case req.StudentNIS == "":
		return fmt.Errorf("%w: student_nis is required", ErrValidation)
	}
	return nil
}
