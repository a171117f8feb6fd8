package googlebooks

import (
	"strconv"
	"strings"
	"time"

	"schoolshelf/internal/catalog"
)

const (
	unknownAuthor     = "Unknown author"
	unknownPublisher  = "Unknown publisher"
	noDescriptionText = "No description available."
)

// Volume is one record of the volumes search response.
type Volume struct {
	ID         string     `json:"id"`
	VolumeInfo VolumeInfo `json:"volumeInfo"`
}

// VolumeInfo holds the bibliographic metadata of a volume.
type VolumeInfo struct {
	Title               string               `json:"title"`
	Authors             []string             `json:"authors"`
	Publisher           string               `json:"publisher"`
	PublishedDate       string               `json:"publishedDate"`
	Description         string               `json:"description"`
	IndustryIdentifiers []IndustryIdentifier `json:"industryIdentifiers"`
	ImageLinks          *ImageLinks          `json:"imageLinks"`
	Categories          []string             `json:"categories"`
}

// IndustryIdentifier is an ISBN or other identifier of a volume.
type IndustryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// ImageLinks points at cover thumbnails.
type ImageLinks struct {
	Thumbnail      string `json:"thumbnail"`
	SmallThumbnail string `json:"smallThumbnail"`
}

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []Volume `json:"items"`
}

// categoryKeywords is checked in order; the first keyword found in the
// volume's first category wins.
var categoryKeywords = []struct {
	keyword  string
	category catalog.Category
}{
	{"fiction", catalog.CategoryFiction},
	{"novel", catalog.CategoryNovel},
	{"history", catalog.CategoryHistory},
	{"science", catalog.CategoryScience},
	{"education", catalog.CategoryNonFiction},
	{"religion", catalog.CategoryReligion},
	{"technology", catalog.CategoryTechnology},
	{"art", catalog.CategoryArt},
	{"sports", catalog.CategorySports},
	{"biography", catalog.CategoryBiography},
	{"comics", catalog.CategoryComics},
}

// ToDraft maps a volume onto a catalog draft. Stock is left at zero for the
// caller to decide.
func (v Volume) ToDraft(now time.Time) catalog.Draft {
	info := v.VolumeInfo

	author := strings.Join(info.Authors, ", ")
	if author == "" {
		author = unknownAuthor
	}
	publisher := info.Publisher
	if publisher == "" {
		publisher = unknownPublisher
	}
	description := info.Description
	if description == "" {
		description = noDescriptionText
	}

	return catalog.Draft{
		Title:       info.Title,
		Author:      author,
		Publisher:   publisher,
		Year:        publishedYear(info.PublishedDate, now),
		Category:    mapCategory(info.Categories),
		Description: description,
		CoverURL:    coverURL(info.ImageLinks),
		ISBN:        preferredISBN(info.IndustryIdentifiers),
	}
}

func publishedYear(date string, now time.Time) int {
	if len(date) >= 4 {
		if year, err := strconv.Atoi(date[:4]); err == nil {
			return year
		}
	}
	return now.Year()
}

func coverURL(links *ImageLinks) string {
	if links == nil || links.Thumbnail == "" {
		return ""
	}
	if strings.HasPrefix(links.Thumbnail, "http:") {
		return "https:" + strings.TrimPrefix(links.Thumbnail, "http:")
	}
	return links.Thumbnail
}

func preferredISBN(ids []IndustryIdentifier) string {
	var isbn10 string
	for _, id := range ids {
		switch id.Type {
		case "ISBN_13":
			return id.Identifier
		case "ISBN_10":
			if isbn10 == "" {
				isbn10 = id.Identifier
			}
		}
	}
	return isbn10
}

func mapCategory(categories []string) catalog.Category {
	if len(categories) == 0 {
		return catalog.CategoryOther
	}
	first := strings.ToLower(categories[0])
	for _, entry := range categoryKeywords {
		if strings.Contains(first, entry.keyword) {
			return entry.category
		}
	}
	return catalog.CategoryOther
}
