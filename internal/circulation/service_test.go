package circulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"schoolshelf/internal/catalog"
	"schoolshelf/internal/inventory"
	"schoolshelf/internal/journal"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc         Service
	books       *catalog.Store
	loans       *Repository
	coordinator *inventory.Coordinator
	journal     *journal.MemoryJournal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	books := catalog.NewStore()
	loans := NewRepository()
	j := journal.NewMemoryJournal()
	coordinator := inventory.NewCoordinator(books, loans, j, nil)
	return &fixture{
		svc:         NewService(loans, books, coordinator, j, nil),
		books:       books,
		loans:       loans,
		coordinator: coordinator,
		journal:     j,
	}
}

func (f *fixture) addBook(t *testing.T, title string, stock int) catalog.Book {
	t.Helper()
	book, err := f.books.Insert(context.Background(), catalog.Book{Title: title, Author: "Author", Stock: stock})
	require.NoError(t, err)
	return book
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	book, err := f.books.Get(context.Background(), id)
	require.NoError(t, err)
	return book.Stock
}

func borrowReq(bookID uuid.UUID, nis string) BorrowRequest {
	return BorrowRequest{BookID: bookID, StudentName: "Ahmad Rizky", StudentClass: "XII IPA 1", StudentNIS: nis}
}

func TestBorrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Laskar Pelangi", 3)

	view, err := f.svc.Borrow(ctx, borrowReq(book.ID, "12345"))
	require.NoError(t, err)
	assert.Equal(t, LoanActive, view.Status)
	assert.Nil(t, view.ReturnDate)
	assert.Equal(t, "12345", view.StudentNIS)
	require.NotNil(t, view.Book)
	assert.Equal(t, 2, view.Book.Stock)
	assert.Equal(t, 2, f.stock(t, book.ID))

	events, err := f.svc.History(ctx, view.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "LoanOpened", events[0].EventType)
}

func TestBorrowOutOfStock(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t, "Filosofi Teras", 0)

	_, err := f.svc.Borrow(context.Background(), borrowReq(book.ID, "12345"))
	assert.ErrorIs(t, err, inventory.ErrOutOfStock)
	assert.Empty(t, f.loans.List(context.Background(), nil))
	assert.Equal(t, 0, f.stock(t, book.ID))
}

func TestBorrowValidation(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t, "Atomic Habits", 5)

	tests := []struct {
		name string
		req  BorrowRequest
	}{
		{"missing book", BorrowRequest{StudentName: "a", StudentClass: "b", StudentNIS: "c"}},
		{"blank name", BorrowRequest{BookID: book.ID, StudentName: " ", StudentClass: "b", StudentNIS: "c"}},
		{"missing class", BorrowRequest{BookID: book.ID, StudentName: "a", StudentNIS: "c"}},
		{"missing nis", BorrowRequest{BookID: book.ID, StudentName: "a", StudentClass: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Borrow(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Equal(t, 5, f.stock(t, book.ID))
}

func TestBorrowUnknownBook(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Borrow(context.Background(), borrowReq(uuid.New(), "1"))
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Sapiens", 1)
	returnedAt := time.Date(2024, 1, 12, 9, 30, 0, 0, time.UTC)
	f.svc.(*service).now = func() time.Time { return returnedAt }

	loan, err := f.svc.Borrow(ctx, borrowReq(book.ID, "12347"))
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusBorrowed, loan.Book.Status())

	returned, err := f.svc.Return(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, LoanReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)
	assert.Equal(t, returnedAt, *returned.ReturnDate)
	assert.Equal(t, 1, f.stock(t, book.ID))
	assert.Equal(t, catalog.StatusAvailable, returned.Book.Status())

	_, err = f.svc.Return(ctx, loan.ID)
	assert.ErrorIs(t, err, ErrAlreadyReturned)
	assert.Equal(t, 1, f.stock(t, book.ID), "a second return changes nothing")

	_, err = f.svc.Return(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrLoanNotFound)

	events, err := f.svc.History(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "LoanReturned", events[1].EventType)
}

func TestFindActiveByBorrower(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addBook(t, "Bumi Manusia", 2)
	b := f.addBook(t, "Laskar Pelangi", 2)

	first, err := f.svc.Borrow(ctx, borrowReq(a.ID, "12345"))
	require.NoError(t, err)
	second, err := f.svc.Borrow(ctx, borrowReq(b.ID, "12345"))
	require.NoError(t, err)
	_, err = f.svc.Borrow(ctx, borrowReq(a.ID, "99999"))
	require.NoError(t, err)
	_, err = f.svc.Return(ctx, first.ID)
	require.NoError(t, err)

	active, err := f.svc.FindActiveByBorrower(ctx, " 12345 ")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
	require.NotNil(t, active[0].Book)
	assert.Equal(t, "Laskar Pelangi", active[0].Book.Title)

	none, err := f.svc.FindActiveByBorrower(ctx, "00000")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.svc.FindActiveByBorrower(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListActiveAndReturned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Atomic Habits", 5)

	var ids []uuid.UUID
	for _, nis := range []string{"1", "2", "3"} {
		loan, err := f.svc.Borrow(ctx, borrowReq(book.ID, nis))
		require.NoError(t, err)
		ids = append(ids, loan.ID)
	}
	_, err := f.svc.Return(ctx, ids[1])
	require.NoError(t, err)

	active, err := f.svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, ids[0], active[0].ID)
	assert.Equal(t, ids[2], active[1].ID)

	returned, err := f.svc.ListReturned(ctx)
	require.NoError(t, err)
	require.Len(t, returned, 1)
	assert.Equal(t, ids[1], returned[0].ID)
}

func TestRoundTripRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Laskar Pelangi", 3)

	var loans []uuid.UUID
	for i := 0; i < 3; i++ {
		loan, err := f.svc.Borrow(ctx, borrowReq(book.ID, "12345"))
		require.NoError(t, err)
		loans = append(loans, loan.ID)
	}
	_, err := f.svc.Borrow(ctx, borrowReq(book.ID, "12345"))
	assert.ErrorIs(t, err, inventory.ErrOutOfStock)

	for _, id := range loans {
		_, err := f.svc.Return(ctx, id)
		require.NoError(t, err)
	}

	got, err := f.books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
	assert.Equal(t, catalog.StatusAvailable, got.Status())
	assert.Empty(t, f.coordinator.Verify(ctx))
}

func TestLoanViewSurvivesRemovedBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Sejarah Dunia", 1)

	loan, err := f.svc.Borrow(ctx, borrowReq(book.ID, "12346"))
	require.NoError(t, err)
	_, err = f.svc.Return(ctx, loan.ID)
	require.NoError(t, err)
	_, err = f.coordinator.Retire(ctx, book.ID)
	require.NoError(t, err)

	view, err := f.svc.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Book)
}

// failingInventory refuses every stock change.
type failingInventory struct {
	err error
}

func (f failingInventory) Borrow(ctx context.Context, bookID uuid.UUID, openLoan func(catalog.Book) error) (catalog.Book, error) {
	return catalog.Book{}, f.err
}

func (f failingInventory) Return(ctx context.Context, bookID uuid.UUID, closeLoan func() error) (catalog.Book, error) {
	return catalog.Book{}, f.err
}

func TestBorrowPropagatesInventoryFailure(t *testing.T) {
	books := catalog.NewStore()
	loans := NewRepository()
	stockErr := errors.New("inventory unavailable")
	svc := NewService(loans, books, failingInventory{err: stockErr}, nil, nil)

	_, err := svc.Borrow(context.Background(), borrowReq(uuid.New(), "1"))
	assert.ErrorIs(t, err, stockErr)
	assert.Empty(t, loans.List(context.Background(), nil))
}
