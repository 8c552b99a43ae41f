package store

import "time"

// Book is a catalogued e-book. FilePath locates the container on disk and
// is unique across the catalogue.
type Book struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"index" json:"title"`
	Authors       []string  `gorm:"serializer:json" json:"authors"`
	Publishers    []string  `gorm:"serializer:json" json:"publishers"`
	Subjects      []string  `gorm:"serializer:json" json:"subjects,omitempty"`
	PublishedDate string    `json:"published_date,omitempty"`
	ISBN          string    `gorm:"index" json:"isbn,omitempty"`
	Language      string    `json:"language,omitempty"`
	Description   string    `json:"description,omitempty"`
	FilePath      string    `gorm:"uniqueIndex;not null" json:"file_path"`
	CoverPath     string    `json:"-"`
	ThumbnailPath string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasCover reports whether a cover image was stored for the book
func (b *Book) HasCover() bool {
	return b.CoverPath != ""
}
