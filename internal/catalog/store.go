package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Store keeps books in memory, in insertion order.
type Store struct {
	mu    sync.RWMutex
	books map[uuid.UUID]*Book
	order []uuid.UUID
	now   func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		books: make(map[uuid.UUID]*Book),
		now:   time.Now,
	}
}

// Insert stores a new book at version 1 and returns a copy of it.
func (s *Store) Insert(ctx context.Context, book Book) (Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if book.ID == uuid.Nil {
		book.ID = uuid.New()
	}
	if _, exists := s.books[book.ID]; exists {
		return Book{}, fmt.Errorf("%w: duplicate id %s", ErrValidation, book.ID)
	}
	now := s.now().UTC()
	book.Version = 1
	book.CreatedAt = now
	book.UpdatedAt = now

	stored := book
	s.books[book.ID] = &stored
	s.order = append(s.order, book.ID)
	return book, nil
}

// Get returns a copy of the book with the given id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[id]
	if !ok {
		return Book{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *book, nil
}

// Mutate applies fn to a working copy of the book under the write lock. The
// copy replaces the stored book only when fn succeeds, and the version is
// bumped on every successful mutation.
func (s *Store) Mutate(ctx context.Context, id uuid.UUID, fn func(*Book) error) (Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.books[id]
	if !ok {
		return Book{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	working := *current
	if err := fn(&working); err != nil {
		return Book{}, err
	}
	if working.Stock < 0 {
		return Book{}, fmt.Errorf("%w: stock cannot be negative", ErrValidation)
	}
	working.ID = current.ID
	working.CreatedAt = current.CreatedAt
	working.Version = current.Version + 1
	working.UpdatedAt = s.now().UTC()

	*current = working
	return working, nil
}

// Delete removes the book with the given id.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) (Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok {
		return Book{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.books, id)
	s.order = lo.Without(s.order, id)
	return *book, nil
}

// List returns copies of the books matching the filter, in insertion order.
func (s *Store) List(ctx context.Context, filter Filter) []Book {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	matched := lo.FilterMap(s.order, func(id uuid.UUID, _ int) (Book, bool) {
		book := s.books[id]
		if filter.Category != "" && book.Category != filter.Category {
			return Book{}, false
		}
		if query != "" && !matchesText(book, query) {
			return Book{}, false
		}
		return *book, true
	})
	return matched
}

// Len reports how many books are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.books)
}

func matchesText(book *Book, query string) bool {
	return strings.Contains(strings.ToLower(book.Title), query) ||
		strings.Contains(strings.ToLower(book.Author), query) ||
		strings.Contains(strings.ToLower(book.ISBN), query)
}
