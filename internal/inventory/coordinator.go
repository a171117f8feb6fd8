// Package inventory serializes every stock transition of the catalog. Borrows,
// returns, admin restocks and removals of one book run under that book's lock,
// so stock can never be over-drawn by concurrent callers.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"schoolshelf/internal/catalog"
	"schoolshelf/internal/journal"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrOutOfStock = errors.New("book is out of stock")
	ErrBookOnLoan = errors.New("book has active loans")
)

// LoanCounter reports how many active loans reference a book.
type LoanCounter interface {
	CountActive(ctx context.Context, bookID uuid.UUID) int
}

// StockAdjustedEvent is journaled on every stock transition.
type StockAdjustedEvent struct {
	BookID   uuid.UUID `json:"book_id"`
	Reason   string    `json:"reason"`
	Delta    int       `json:"delta"`
	NewStock int       `json:"new_stock"`
}

// Discrepancy describes a book whose ledger disagrees with its loans.
type Discrepancy struct {
	BookID      uuid.UUID `json:"book_id"`
	Outstanding int       `json:"outstanding"`
	ActiveLoans int       `json:"active_loans"`
}

// Coordinator is the only writer of book stock.
type Coordinator struct {
	store   *catalog.Store
	loans   LoanCounter
	journal journal.Recorder
	logger  *slog.Logger
	tracer  trace.Tracer

	borrowed metric.Int64Counter
	returned metric.Int64Counter
	rejected metric.Int64Counter

	mu          sync.Mutex
	locks       map[uuid.UUID]*sync.Mutex
	outstanding map[uuid.UUID]int
}

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	meterProvider metric.MeterProvider
}

// WithMeterProvider records the borrow and return counters on mp instead of
// the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// NewCoordinator creates a coordinator over the catalog store. A nil loans
// counter treats every book as having no active loans.
func NewCoordinator(store *catalog.Store, loans LoanCounter, rec journal.Recorder, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{meterProvider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	meter := o.meterProvider.Meter("schoolshelf/inventory")
	borrowed, _ := meter.Int64Counter("inventory.borrows", metric.WithDescription("Copies lent out"))
	returned, _ := meter.Int64Counter("inventory.returns", metric.WithDescription("Copies brought back"))
	rejected, _ := meter.Int64Counter("inventory.borrows.rejected", metric.WithDescription("Borrows refused for lack of stock"))

	return &Coordinator{
		store:       store,
		loans:       loans,
		journal:     rec,
		logger:      logger,
		tracer:      otel.Tracer("schoolshelf/inventory"),
		borrowed:    borrowed,
		returned:    returned,
		rejected:    rejected,
		locks:       make(map[uuid.UUID]*sync.Mutex),
		outstanding: make(map[uuid.UUID]int),
	}
}

func (c *Coordinator) lockFor(id uuid.UUID) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	return l
}

// Borrow takes one copy of the book and runs openLoan while still holding the
// book's lock. If openLoan fails the copy is put back, so either both the
// decrement and the loan happen or neither does.
func (c *Coordinator) Borrow(ctx context.Context, bookID uuid.UUID, openLoan func(catalog.Book) error) (catalog.Book, error) {
	ctx, span := c.tracer.Start(ctx, "inventory.borrow",
		trace.WithAttributes(attribute.String("book.id", bookID.String())),
	)
	defer span.End()

	l := c.lockFor(bookID)
	l.Lock()
	defer l.Unlock()

	book, err := c.store.Mutate(ctx, bookID, func(b *catalog.Book) error {
		if b.Stock <= 0 {
			return fmt.Errorf("%w: %q", ErrOutOfStock, b.Title)
		}
		b.Stock--
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOutOfStock) {
			c.rejected.Add(ctx, 1)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return catalog.Book{}, err
	}

	if err := openLoan(book); err != nil {
		c.logger.WarnContext(ctx, "compensating for failed borrow: restoring stock", "book_id", bookID, "error", err)
		if _, cerr := c.store.Mutate(ctx, bookID, func(b *catalog.Book) error {
			b.Stock++
			return nil
		}); cerr != nil {
			c.logger.ErrorContext(ctx, "failed to compensate stock", "book_id", bookID, "error", cerr)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return catalog.Book{}, err
	}

	c.adjustLedger(bookID, 1)
	c.borrowed.Add(ctx, 1)
	c.record(ctx, book, "borrow", -1)
	span.SetAttributes(attribute.Int("book.stock", book.Stock))
	return book, nil
}

// Return runs closeLoan under the book's lock and, when it succeeds, puts one copy
// back. The increment is unconditional: the loan record is trusted.
func (c *Coordinator) Return(ctx context.Context, bookID uuid.UUID, closeLoan func() error) (catalog.Book, error) {
	ctx, span := c.tracer.Start(ctx, "inventory.return",
		trace.WithAttributes(attribute.String("book.id", bookID.String())),
	)
	defer span.End()

	l := c.lockFor(bookID)
	l.Lock()
	defer l.Unlock()

	// Removal takes the same lock, so the book cannot vanish between this
	// check and the increment below.
	if _, err := c.store.Get(ctx, bookID); err != nil {
		span.RecordError(err)
		return catalog.Book{}, err
	}
	if err := closeLoan(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return catalog.Book{}, err
	}

	book, err := c.store.Mutate(ctx, bookID, func(b *catalog.Book) error {
		b.Stock++
		return nil
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "loan closed but stock not restored", "book_id", bookID, "error", err)
		return catalog.Book{}, err
	}

	c.adjustLedger(bookID, -1)
	c.returned.Add(ctx, 1)
	c.record(ctx, book, "return", 1)
	span.SetAttributes(attribute.Int("book.stock", book.Stock))
	return book, nil
}

// SetStock overwrites the shelf count of a book, as an admin correction.
func (c *Coordinator) SetStock(ctx context.Context, bookID uuid.UUID, stock int) (catalog.Book, error) {
	ctx, span := c.tracer.Start(ctx, "inventory.set_stock",
		trace.WithAttributes(
			attribute.String("book.id", bookID.String()),
			attribute.Int("book.stock", stock),
		),
	)
	defer span.End()

	if stock < 0 {
		return catalog.Book{}, fmt.Errorf("%w: stock cannot be negative", catalog.ErrValidation)
	}

	l := c.lockFor(bookID)
	l.Lock()
	defer l.Unlock()

	var delta int
	book, err := c.store.Mutate(ctx, bookID, func(b *catalog.Book) error {
		delta = stock - b.Stock
		b.Stock = stock
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return catalog.Book{}, err
	}

	c.record(ctx, book, "restock", delta)
	c.logger.InfoContext(ctx, "stock set", "book_id", bookID, "stock", stock, "delta", delta)
	return book, nil
}

// Retire deletes a book that has no active loans.
func (c *Coordinator) Retire(ctx context.Context, bookID uuid.UUID) (catalog.Book, error) {
	ctx, span := c.tracer.Start(ctx, "inventory.retire",
		trace.WithAttributes(attribute.String("book.id", bookID.String())),
	)
	defer span.End()

	l := c.lockFor(bookID)
	l.Lock()
	defer l.Unlock()

	if _, err := c.store.Get(ctx, bookID); err != nil {
		return catalog.Book{}, err
	}
	if c.loans != nil {
		if active := c.loans.CountActive(ctx, bookID); active > 0 {
			err := fmt.Errorf("%w: %d copies still out", ErrBookOnLoan, active)
			span.RecordError(err)
			return catalog.Book{}, err
		}
	}

	book, err := c.store.Delete(ctx, bookID)
	if err != nil {
		return catalog.Book{}, err
	}

	c.mu.Lock()
	delete(c.outstanding, bookID)
	delete(c.locks, bookID)
	c.mu.Unlock()
	return book, nil
}

// Outstanding returns how many copies of the book the coordinator has lent
// and not yet taken back.
func (c *Coordinator) Outstanding(bookID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outstanding[bookID]
}

// Verify checks that every book's outstanding count equals its active loans.
// An empty result means the paired mutation invariant holds.
func (c *Coordinator) Verify(ctx context.Context) []Discrepancy {
	c.mu.Lock()
	ids := make([]uuid.UUID, 0, len(c.outstanding))
	for id := range c.outstanding {
		ids = append(ids, id)
	}
	for _, book := range c.store.List(ctx, catalog.Filter{}) {
		if _, ok := c.outstanding[book.ID]; !ok {
			ids = append(ids, book.ID)
		}
	}
	c.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	discrepancies := make([]Discrepancy, 0)
	for _, id := range ids {
		l := c.lockFor(id)
		l.Lock()
		outstanding := c.Outstanding(id)
		active := 0
		if c.loans != nil {
			active = c.loans.CountActive(ctx, id)
		}
		l.Unlock()

		if outstanding != active {
			discrepancies = append(discrepancies, Discrepancy{
				BookID:      id,
				Outstanding: outstanding,
				ActiveLoans: active,
			})
		}
	}
	return discrepancies
}

func (c *Coordinator) adjustLedger(bookID uuid.UUID, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outstanding[bookID] += delta
}

func (c *Coordinator) record(ctx context.Context, book catalog.Book, reason string, delta int) {
	journal.Record(ctx, c.journal, c.logger, journal.Entry{
		AggregateID:   book.ID,
		AggregateType: "book",
		EventType:     "StockAdjusted",
		Version:       book.Version,
		Data: StockAdjustedEvent{
			BookID:   book.ID,
			Reason:   reason,
			Delta:    delta,
			NewStock: book.Stock,
		},
	})
}
