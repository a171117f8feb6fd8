// internal/catalog/implementation.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"schoolshelf/internal/journal"

	"github.com/google/uuid"
)

const aggregateType = "book"

// ErrNoSource is returned by lookups when no metadata source is configured.
var ErrNoSource = errors.New("no metadata source configured")

// service implements the Service interface.
type service struct {
	store   *Store
	stock   StockWriter
	source  MetadataSource
	journal journal.Recorder
	logger  *slog.Logger
}

// NewService creates a new catalog service instance. source may be nil, in
// which case imports and lookups fail with ErrNoSource.
func NewService(store *Store, stock StockWriter, source MetadataSource, rec journal.Recorder, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = journal.NewMemoryJournal()
	}
	return &service{
		store:   store,
		stock:   stock,
		source:  source,
		journal: rec,
		logger:  logger,
	}
}

// AddBook validates a draft and stores it as a new book.
func (s *service) AddBook(ctx context.Context, draft Draft) (*Book, error) {
	return s.addBook(ctx, draft, false)
}

func (s *service) addBook(ctx context.Context, draft Draft, imported bool) (*Book, error) {
	book, err := bookFromDraft(draft)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.Insert(ctx, book)
	if err != nil {
		return nil, fmt.Errorf("failed to insert book: %w", err)
	}

	journal.Record(ctx, s.journal, s.logger, journal.Entry{
		AggregateID:   stored.ID,
		AggregateType: aggregateType,
		EventType:     "BookAdded",
		Version:       stored.Version,
		Data: BookAddedEvent{
			ID:       stored.ID,
			ISBN:     stored.ISBN,
			Title:    stored.Title,
			Author:   stored.Author,
			Stock:    stored.Stock,
			Imported: imported,
		},
	})
	s.logger.InfoContext(ctx, "book added", "book_id", stored.ID, "title", stored.Title, "stock", stored.Stock)

	return &stored, nil
}

// GetBook retrieves a book by its ID.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	book, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// UpdateBook merges a patch into an existing book. A stock change is handed to
// the stock writer so the availability ledger stays in step.
func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, patch Patch) (*Book, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	descriptive := patch
	descriptive.Stock = nil

	var (
		book Book
		err  error
	)
	if !descriptive.empty() {
		book, err = s.store.Mutate(ctx, id, func(b *Book) error {
			descriptive.apply(b)
			if strings.TrimSpace(b.Title) == "" || strings.TrimSpace(b.Author) == "" {
				return fmt.Errorf("%w: title and author are required", ErrValidation)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		journal.Record(ctx, s.journal, s.logger, journal.Entry{
			AggregateID:   id,
			AggregateType: aggregateType,
			EventType:     "BookUpdated",
			Version:       book.Version,
			Data:          BookUpdatedEvent{ID: id, Patch: descriptive},
		})
	}

	if patch.Stock != nil {
		book, err = s.stock.SetStock(ctx, id, *patch.Stock)
		if err != nil {
			return nil, err
		}
	}

	if descriptive.empty() && patch.Stock == nil {
		book, err = s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	return &book, nil
}

// RemoveBook deletes a book from the catalog.
func (s *service) RemoveBook(ctx context.Context, id uuid.UUID) error {
	book, err := s.stock.Retire(ctx, id)
	if err != nil {
		return err
	}

	journal.Record(ctx, s.journal, s.logger, journal.Entry{
		AggregateID:   id,
		AggregateType: aggregateType,
		EventType:     "BookRemoved",
		Version:       book.Version + 1,
		Data:          BookRemovedEvent{ID: id},
	})
	s.logger.InfoContext(ctx, "book removed", "book_id", id, "title", book.Title)
	return nil
}

// ListBooks finds books matching the filter.
func (s *service) ListBooks(ctx context.Context, filter Filter) ([]Book, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, filter.Category)
	}
	return s.store.List(ctx, filter), nil
}

// ImportBook creates a book from the first external match.
func (s *service) ImportBook(ctx context.Context, req ImportRequest) (*Book, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}

	var draft *Draft
	switch {
	case strings.TrimSpace(req.ISBN) != "":
		found, err := s.source.SearchByISBN(ctx, strings.TrimSpace(req.ISBN))
		if err != nil {
			return nil, err
		}
		if found == nil {
			return nil, fmt.Errorf("%w: no volume for isbn %s", ErrNotFound, req.ISBN)
		}
		draft = found
	case strings.TrimSpace(req.Query) != "":
		found, err := s.source.SearchByText(ctx, strings.TrimSpace(req.Query))
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("%w: no volume matches %q", ErrNotFound, req.Query)
		}
		draft = &found[0]
	default:
		return nil, fmt.Errorf("%w: isbn or query is required", ErrValidation)
	}

	draft.Stock = 1
	if req.Stock != nil {
		draft.Stock = *req.Stock
	}
	if req.Category != nil {
		draft.Category = *req.Category
	}

	return s.addBook(ctx, *draft, true)
}

// SearchMetadata returns candidate drafts for a free-text query.
func (s *service) SearchMetadata(ctx context.Context, query string) ([]Draft, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: missing search query", ErrValidation)
	}
	return s.source.SearchByText(ctx, query)
}

// LookupISBN returns the draft for a single ISBN, or nil when nothing matches.
func (s *service) LookupISBN(ctx context.Context, isbn string) (*Draft, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}
	if strings.TrimSpace(isbn) == "" {
		return nil, fmt.Errorf("%w: missing isbn", ErrValidation)
	}
	return s.source.SearchByISBN(ctx, isbn)
}

// History returns the journaled events of a book.
func (s *service) History(ctx context.Context, id uuid.UUID) ([]journal.Event, error) {
	return s.journal.Load(ctx, id)
}

func bookFromDraft(draft Draft) (Book, error) {
	title := strings.TrimSpace(draft.Title)
	author := strings.TrimSpace(draft.Author)
	if title == "" {
		return Book{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if author == "" {
		return Book{}, fmt.Errorf("%w: author is required", ErrValidation)
	}
	if draft.Stock < 0 {
		return Book{}, fmt.Errorf("%w: stock cannot be negative", ErrValidation)
	}
	category := draft.Category
	if category == "" {
		category = CategoryOther
	}
	if !category.Valid() {
		return Book{}, fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}

	return Book{
		Title:       title,
		Author:      author,
		Publisher:   strings.TrimSpace(draft.Publisher),
		Year:        draft.Year,
		Category:    category,
		Description: draft.Description,
		CoverURL:    draft.CoverURL,
		ISBN:        strings.TrimSpace(draft.ISBN),
		Stock:       draft.Stock,
	}, nil
}

func validatePatch(p Patch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if p.Author != nil && strings.TrimSpace(*p.Author) == "" {
		return fmt.Errorf("%w: author is required", ErrValidation)
	}
	if p.Stock != nil && *p.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrValidation)
	}
	if p.Category != nil && !p.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, *p.Category)
	}
	return nil
}

func (p Patch) empty() bool {
	return p.Title == nil && p.Author == nil && p.Publisher == nil && p.Year == nil &&
		p.Category == nil && p.Description == nil && p.CoverURL == nil && p.ISBN == nil &&
		p.Stock == nil
}

func (p Patch) apply(b *Book) {
	if p.Title != nil {
		b.Title = strings.TrimSpace(*p.Title)
	}
	if p.Author != nil {
		b.Author = strings.TrimSpace(*p.Author)
	}
	if p.Publisher != nil {
		b.Publisher = *p.Publisher
	}
	if p.Year != nil {
		b.Year = *p.Year
	}
	if p.Category != nil {
		b.Category = *p.Category
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.CoverURL != nil {
		b.CoverURL = *p.CoverURL
	}
	if p.ISBN != nil {
		b.ISBN = *p.ISBN
	}
}
