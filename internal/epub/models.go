package epub

// Package represents the parsed package document (OPF) of a container
type Package struct {
	Version  string
	Metadata Metadata
	Manifest *Manifest
}

// Metadata represents the Dublin Core metadata section of the package document
type Metadata struct {
	Titles      []string
	Creators    []Creator
	Publishers  []string
	Dates       []string
	Identifiers []Identifier
	Language    string
	Description string
	Subjects    []string
	CoverID     string // EPUB 2.0 cover image manifest item ID (from meta name="cover")
}

// Creator represents a creator (author, editor, etc.) of the book
type Creator struct {
	Name string
	Role string // e.g., "aut" for author, "edt" for editor
}

// Identifier represents a dc:identifier element
type Identifier struct {
	Value  string
	Scheme string // opf:scheme attribute (EPUB 2.0), e.g. "ISBN"
	ID     string
}

// ManifestItem represents an item in the manifest
type ManifestItem struct {
	ID         string
	Href       string // path inside the container, relative to the archive root
	MediaType  string
	Properties []string
}

// SpineItem represents an item reference in the spine
type SpineItem struct {
	IDRef  string
	Linear bool
}

// Manifest is the resource table of an open container together with its
// reading order. It is built once when the container is opened and is
// read-only afterwards.
type Manifest struct {
	items  map[string]ManifestItem // id -> item
	byHref map[string]string       // normalized href -> id
	order  []string                // manifest document order
	spine  []SpineItem
}

func newManifest() *Manifest {
	return &Manifest{
		items:  make(map[string]ManifestItem),
		byHref: make(map[string]string),
	}
}

// add registers an item. The first item wins when ids or hrefs repeat.
func (m *Manifest) add(item ManifestItem) {
	if _, dup := m.items[item.ID]; dup {
		return
	}
	m.items[item.ID] = item
	m.order = append(m.order, item.ID)

	key := NormalizeHref(item.Href)
	if _, dup := m.byHref[key]; !dup {
		m.byHref[key] = item.ID
	}
}

// ByID looks up a manifest item by its id
func (m *Manifest) ByID(id string) (ManifestItem, bool) {
	if m == nil {
		return ManifestItem{}, false
	}
	item, ok := m.items[id]
	return item, ok
}

// ByHref looks up a manifest item by its path inside the container.
// The path is normalized before lookup.
func (m *Manifest) ByHref(href string) (ManifestItem, bool) {
	if m == nil {
		return ManifestItem{}, false
	}
	id, ok := m.byHref[NormalizeHref(href)]
	if !ok {
		return ManifestItem{}, false
	}
	return m.items[id], true
}

// Spine returns the reading sequence
func (m *Manifest) Spine() []SpineItem {
	if m == nil {
		return nil
	}
	return append([]SpineItem(nil), m.spine...)
}

// SpineIDs returns the idrefs of the reading sequence in order
func (m *Manifest) SpineIDs() []string {
	if m == nil {
		return nil
	}
	ids := make([]string, len(m.spine))
	for i, s := range m.spine {
		ids[i] = s.IDRef
	}
	return ids
}

// Items returns all manifest items in document order
func (m *Manifest) Items() []ManifestItem {
	if m == nil {
		return nil
	}
	items := make([]ManifestItem, 0, len(m.order))
	for _, id := range m.order {
		items = append(items, m.items[id])
	}
	return items
}

// Len returns the number of manifest items
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}
