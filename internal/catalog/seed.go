package catalog

import (
	"context"
	"fmt"
)

// SampleBooks is the starter shelf loaded when seeding is enabled. Stock
// counts owned copies; the sample loans then take some of them out.
var SampleBooks = []Draft{
	{
		Title:       "Laskar Pelangi",
		Author:      "Andrea Hirata",
		Publisher:   "Bentang Pustaka",
		Year:        2005,
		Category:    CategoryNovel,
		Description: "Ten children from Belitung fight to keep their village school open.",
		CoverURL:    "https://images-na.ssl-images-amazon.com/images/S/compressed.photo.goodreads.com/books/1410632027i/1362193.jpg",
		ISBN:        "9789793062792",
		Stock:       3,
	},
	{
		Title:       "Bumi Manusia",
		Author:      "Pramoedya Ananta Toer",
		Publisher:   "Hasta Mitra",
		Year:        1980,
		Category:    CategoryNovel,
		Description: "The first book of the Buru Quartet, following Minke in the colonial Indies.",
		CoverURL:    "https://images-na.ssl-images-amazon.com/images/S/compressed.photo.goodreads.com/books/1565392935i/1398034.jpg",
		ISBN:        "9789799731234",
		Stock:       2,
	},
	{
		Title:       "Filosofi Teras",
		Author:      "Henry Manampiring",
		Publisher:   "Kompas",
		Year:        2018,
		Category:    CategoryNonFiction,
		Description: "Stoic philosophy applied to modern everyday life.",
		CoverURL:    "https://images-na.ssl-images-amazon.com/images/S/compressed.photo.goodreads.com/books/1549204790i/42861019.jpg",
		ISBN:        "9786024125875",
		Stock:       1,
	},
	{
		Title:       "Atomic Habits",
		Author:      "James Clear",
		Publisher:   "Gramedia",
		Year:        2019,
		Category:    CategoryNonFiction,
		Description: "A practical method for building good habits and breaking bad ones.",
		CoverURL:    "https://images-na.ssl-images-amazon.com/images/S/compressed.photo.goodreads.com/books/1655988385i/40121378.jpg",
		ISBN:        "9786020633176",
		Stock:       5,
	},
	{
		Title:       "Sapiens: Riwayat Singkat Umat Manusia",
		Author:      "Yuval Noah Harari",
		Publisher:   "Kepustakaan Populer Gramedia",
		Year:        2017,
		Category:    CategoryHistory,
		Description: "A history of humankind from the stone age to the modern era.",
		CoverURL:    "https://images-na.ssl-images-amazon.com/images/S/compressed.photo.goodreads.com/books/1595674533i/23692271.jpg",
		ISBN:        "9786024240240",
		Stock:       1,
	},
	{
		Title:       "Sejarah Dunia yang Disembunyikan",
		Author:      "Jonathan Black",
		Publisher:   "Alvabet",
		Year:        2015,
		Category:    CategoryHistory,
		Description: "The hidden histories of ancient civilizations.",
		CoverURL:    "https://images-na.ssl-images-amazon.com/images/S/compressed.photo.goodreads.com/books/1347493874i/5722.jpg",
		ISBN:        "9786021193143",
		Stock:       1,
	},
}

// Seed adds the sample books through the service so they are journaled like
// any admin addition.
func Seed(ctx context.Context, svc Service) ([]Book, error) {
	books := make([]Book, 0, len(SampleBooks))
	for _, draft := range SampleBooks {
		book, err := svc.AddBook(ctx, draft)
		if err != nil {
			return nil, fmt.Errorf("failed to seed %q: %w", draft.Title, err)
		}
		books = append(books, *book)
	}
	return books, nil
}
