// internal/circulation/domain.go
package circulation

import (
	"time"

	"schoolshelf/internal/catalog"

	"github.com/google/uuid"
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
)

// Loan represents one copy of a book lent to a student.
type Loan struct {
	ID           uuid.UUID  `json:"id"`
	BookID       uuid.UUID  `json:"book_id"`
	StudentName  string     `json:"student_name"`
	StudentClass string     `json:"student_class"`
	StudentNIS   string     `json:"student_nis"`
	BorrowDate   time.Time  `json:"borrow_date"`
	ReturnDate   *time.Time `json:"return_date"`
	Status       LoanStatus `json:"status"`
	Version      int        `json:"version"`
}

// LoanView is a loan joined with a snapshot of its book. Book is nil when the
// book is no longer in the catalog.
type LoanView struct {
	Loan
	Book *catalog.Book `json:"book,omitempty"`
}

// BorrowRequest names the book and the student taking it.
type BorrowRequest struct {
	BookID       uuid.UUID `json:"book_id"`
	StudentName  string    `json:"student_name"`
	StudentClass string    `json:"student_class"`
	StudentNIS   string    `json:"student_nis"`
}

// LoanOpenedEvent is journaled when a book is lent.
type LoanOpenedEvent struct {
	LoanID     uuid.UUID `json:"loan_id"`
	BookID     uuid.UUID `json:"book_id"`
	StudentNIS string    `json:"student_nis"`
	BorrowDate time.Time `json:"borrow_date"`
}

// LoanReturnedEvent is journaled when a book comes back.
type LoanReturnedEvent struct {
	LoanID     uuid.UUID `json:"loan_id"`
	BookID     uuid.UUID `json:"book_id"`
	StudentNIS string    `json:"student_nis"`
	ReturnDate time.Time `json:"return_date"`
}
