package circulation

import (
	"context"
	"fmt"

	"schoolshelf/internal/catalog"
)

// SampleLoan is a starter loan against a sample book, matched by title.
type SampleLoan struct {
	Title        string
	StudentName  string
	StudentClass string
	StudentNIS   string
	Returned     bool
}

// SampleLoans take out the only copies of two sample books and leave one
// finished loan in the history.
var SampleLoans = []SampleLoan{
	{Title: "Filosofi Teras", StudentName: "Ahmad Rizky", StudentClass: "XII IPA 1", StudentNIS: "12345"},
	{Title: "Sejarah Dunia yang Disembunyikan", StudentName: "Siti Nurhaliza", StudentClass: "XI IPS 2", StudentNIS: "12346"},
	{Title: "Laskar Pelangi", StudentName: "Budi Santoso", StudentClass: "X MIPA 3", StudentNIS: "12347", Returned: true},
}

// Seed borrows (and, where marked, returns) the sample loans through svc so
// stock and the journal stay consistent with them.
func Seed(ctx context.Context, svc Service, books []catalog.Book) ([]LoanView, error) {
	byTitle := make(map[string]catalog.Book, len(books))
	for _, b := range books {
		byTitle[b.Title] = b
	}

	loans := make([]LoanView, 0, len(SampleLoans))
	for _, sample := range SampleLoans {
		book, ok := byTitle[sample.Title]
		if !ok {
			return nil, fmt.Errorf("%w: no sample book titled %q", catalog.ErrNotFound, sample.Title)
		}
		view, err := svc.Borrow(ctx, BorrowRequest{
			BookID:       book.ID,
			StudentName:  sample.StudentName,
			StudentClass: sample.StudentClass,
			StudentNIS:   sample.StudentNIS,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to seed loan of %q: %w", sample.Title, err)
		}
		if sample.Returned {
			if view, err = svc.Return(ctx, view.ID); err != nil {
				return nil, fmt.Errorf("failed to seed return of %q: %w", sample.Title, err)
			}
		}
		loans = append(loans, *view)
	}
	return loans, nil
}
