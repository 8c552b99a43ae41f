package content

// Defaults used when the package document leaves a field empty
const (
	UnknownTitle     = "Unknown Title"
	UnknownAuthor    = "Unknown Author"
	UnknownPublisher = "Unknown Publisher"
)

// BookMetadata holds the bibliographic record extracted from a container.
// Authors and Publishers always have at least one entry.
type BookMetadata struct {
	Title         string
	Authors       []string
	Publishers    []string
	PublishedDate string // as written in the package, not normalized
	ISBN          string
	Language      string
	Description   string
	Subjects      []string
	FilePath      string
	Cover         *Cover // nil when the book has no readable image
}

// Cover is the raw cover image of a book
type Cover struct {
	Data      []byte
	MediaType string
	Href      string
}
