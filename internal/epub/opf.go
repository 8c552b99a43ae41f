package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path"
	"strings"

	"golang.org/x/net/html/charset"
)

// opfPackage represents the OPF XML structure
type opfPackage struct {
	XMLName  xml.Name     `xml:"package"`
	Version  string       `xml:"version,attr"`
	UniqueID string       `xml:"unique-identifier,attr"`
	Metadata opfMetadata  `xml:"metadata"`
	Manifest *opfManifest `xml:"manifest"`
	Spine    opfSpine     `xml:"spine"`
}

// opfMetadata represents the metadata section
type opfMetadata struct {
	Title       []string        `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creator     []opfCreator    `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Language    []string        `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifier  []opfIdentifier `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Publisher   []string        `xml:"http://purl.org/dc/elements/1.1/ publisher"`
	Date        []string        `xml:"http://purl.org/dc/elements/1.1/ date"`
	Description []string        `xml:"http://purl.org/dc/elements/1.1/ description"`
	Subject     []string        `xml:"http://purl.org/dc/elements/1.1/ subject"`
	Meta        []opfMeta       `xml:"meta"`
}

// opfCreator represents a creator element
type opfCreator struct {
	Name string `xml:",chardata"`
	Role string `xml:"http://www.idpf.org/2007/opf role,attr"`
	ID   string `xml:"id,attr"`
}

// opfIdentifier represents an identifier element
type opfIdentifier struct {
	Value  string `xml:",chardata"`
	ID     string `xml:"id,attr"`
	Scheme string `xml:"http://www.idpf.org/2007/opf scheme,attr"`
}

// opfMeta represents a meta element (EPUB 2.0 and 3.0)
type opfMeta struct {
	Name     string `xml:"name,attr"`
	Content  string `xml:"content,attr"` // EPUB 2.0: attribute value
	Value    string `xml:",chardata"`    // EPUB 3.0: element text content
	Property string `xml:"property,attr"`
	Refines  string `xml:"refines,attr"`
}

// opfManifest represents the manifest section
type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

// opfManifestItem represents an item in the manifest
type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// opfSpine represents the spine section
type opfSpine struct {
	ItemRefs []opfItemRef `xml:"itemref"`
}

// opfItemRef represents an itemref in the spine
type opfItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// ParsePackage parses package document content.
// opfDir is the directory containing the package document (e.g., "OEBPS"); manifest
// hrefs are resolved against it so that they become archive-root paths.
func ParsePackage(content []byte, opfDir string) (*Package, error) {
	var pkg opfPackage
	d := xml.NewDecoder(bytes.NewReader(content))
	d.Strict = false
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel
	if err := d.Decode(&pkg); err != nil {
		return nil, fmt.Errorf("failed to parse package XML: %w", err)
	}
	if pkg.Manifest == nil {
		return nil, ErrNoManifest
	}

	manifest := newManifest()
	for _, item := range pkg.Manifest.Items {
		if item.ID == "" {
			continue
		}
		manifestItem := ManifestItem{
			ID:        item.ID,
			Href:      joinPath(opfDir, item.Href),
			MediaType: strings.TrimSpace(item.MediaType),
		}

		// Parse properties (space-separated)
		if item.Properties != "" {
			manifestItem.Properties = strings.Fields(item.Properties)
		}

		manifest.add(manifestItem)
	}

	for _, itemRef := range pkg.Spine.ItemRefs {
		manifest.spine = append(manifest.spine, SpineItem{
			IDRef:  itemRef.IDRef,
			Linear: itemRef.Linear != "no",
		})
	}

	return &Package{
		Version:  pkg.Version,
		Metadata: parseMetadata(&pkg.Metadata),
		Manifest: manifest,
	}, nil
}

// parseMetadata parses the metadata section. Values are trimmed and empty
// elements dropped; defaults are left to callers.
func parseMetadata(meta *opfMetadata) Metadata {
	md := Metadata{
		Titles:     nonEmpty(meta.Title),
		Publishers: nonEmpty(meta.Publisher),
		Dates:      nonEmpty(meta.Date),
		Subjects:   nonEmpty(meta.Subject),
	}

	if langs := nonEmpty(meta.Language); len(langs) > 0 {
		md.Language = langs[0]
	}
	if descs := nonEmpty(meta.Description); len(descs) > 0 {
		md.Description = descs[0]
	}

	refinedRoles := make(map[string]string)
	for _, m := range meta.Meta {
		if m.Property == "role" && m.Refines != "" {
			role := strings.TrimSpace(m.Value)
			if role == "" {
				role = strings.TrimSpace(m.Content)
			}
			refinedRoles[strings.TrimPrefix(m.Refines, "#")] = role
		}
		if m.Name == "cover" && m.Content != "" && md.CoverID == "" {
			md.CoverID = m.Content
		}
	}

	for _, creator := range meta.Creator {
		name := strings.TrimSpace(creator.Name)
		if name == "" {
			continue
		}
		role := creator.Role
		if r, ok := refinedRoles[creator.ID]; ok && creator.ID != "" {
			role = r
		}
		md.Creators = append(md.Creators, Creator{Name: name, Role: role})
	}

	for _, id := range meta.Identifier {
		value := strings.TrimSpace(id.Value)
		if value == "" {
			continue
		}
		md.Identifiers = append(md.Identifiers, Identifier{
			Value:  value,
			Scheme: strings.TrimSpace(id.Scheme),
			ID:     id.ID,
		})
	}

	return md
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// joinPath joins the package document directory with a manifest href
func joinPath(base, rel string) string {
	return NormalizeHref(path.Join(base, rel))
}
