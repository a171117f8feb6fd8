package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreInsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	fixed := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	book, err := s.Insert(ctx, Book{Title: "Laskar Pelangi", Author: "Andrea Hirata", Stock: 3})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, book.ID)
	assert.Equal(t, 1, book.Version)
	assert.Equal(t, fixed, book.CreatedAt)

	got, err := s.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book, got)

	_, err = s.Insert(ctx, Book{ID: book.ID, Title: "dup", Author: "dup"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreMutateWorksOnCopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	book, err := s.Insert(ctx, Book{Title: "Atomic Habits", Author: "James Clear", Stock: 1})
	require.NoError(t, err)

	_, err = s.Mutate(ctx, book.ID, func(b *Book) error {
		b.Stock = 99
		return errors.New("boom")
	})
	require.Error(t, err)

	got, err := s.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock, "a failed mutation must leave the book untouched")
	assert.Equal(t, 1, got.Version)

	updated, err := s.Mutate(ctx, book.ID, func(b *Book) error {
		b.Stock--
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Stock)
	assert.Equal(t, StatusBorrowed, updated.Status())
	assert.Equal(t, 2, updated.Version)
}

func TestStoreMutateRejectsNegativeStock(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	book, err := s.Insert(ctx, Book{Title: "Sapiens", Author: "Yuval Noah Harari", Stock: 0})
	require.NoError(t, err)

	_, err = s.Mutate(ctx, book.ID, func(b *Book) error {
		b.Stock--
		return nil
	})
	assert.ErrorIs(t, err, ErrValidation)

	got, err := s.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a, _ := s.Insert(ctx, Book{Title: "A", Author: "x"})
	b, _ := s.Insert(ctx, Book{Title: "B", Author: "x"})

	_, err := s.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	_, err = s.Delete(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	books := s.List(ctx, Filter{})
	require.Len(t, books, 1)
	assert.Equal(t, b.ID, books[0].ID)
}

func TestStoreListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, b := range []Book{
		{Title: "Laskar Pelangi", Author: "Andrea Hirata", Category: CategoryNovel, ISBN: "9789793062792"},
		{Title: "Bumi Manusia", Author: "Pramoedya Ananta Toer", Category: CategoryNovel},
		{Title: "Sapiens", Author: "Yuval Noah Harari", Category: CategoryHistory},
	} {
		_, err := s.Insert(ctx, b)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all in insertion order", Filter{}, []string{"Laskar Pelangi", "Bumi Manusia", "Sapiens"}},
		{"title is case insensitive", Filter{Query: "bumi"}, []string{"Bumi Manusia"}},
		{"author", Filter{Query: "HARARI"}, []string{"Sapiens"}},
		{"isbn", Filter{Query: "979306"}, []string{"Laskar Pelangi"}},
		{"category", Filter{Category: CategoryNovel}, []string{"Laskar Pelangi", "Bumi Manusia"}},
		{"text and category", Filter{Query: "a", Category: CategoryHistory}, []string{"Sapiens"}},
		{"no match", Filter{Query: "zzz"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			titles := make([]string, 0)
			for _, b := range s.List(ctx, tt.filter) {
				titles = append(titles, b.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}

func TestBookStatusIsDerivedFromStock(t *testing.T) {
	assert.Equal(t, StatusAvailable, Book{Stock: 2}.Status())
	assert.Equal(t, StatusBorrowed, Book{Stock: 0}.Status())
}

func TestBookJSONCarriesStatus(t *testing.T) {
	data, err := json.Marshal(Book{Title: "Filosofi Teras", Author: "Henry Manampiring", Stock: 0})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "borrowed", decoded["status"])
	assert.Equal(t, "Filosofi Teras", decoded["title"])
	assert.EqualValues(t, 0, decoded["stock"])
}
