package content

import (
	"encoding/base64"
	"fmt"
	"html"
	"log/slog"
	"mime"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuanying/epubshelf/internal/epub"
)

// imgSrcPattern matches the src attribute of an img tag in either quote style
var imgSrcPattern = regexp.MustCompile(`(?is)<img\b[^>]*?\ssrc\s*=\s*(?:"([^"]*)"|'([^']*)')`)

// Renderer renders a whole book into one HTML fragment
type Renderer struct {
	logger *slog.Logger
}

// NewRenderer creates a Renderer. A nil logger uses slog.Default().
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger}
}

// Render opens the container at path and concatenates the body content of
// every content document in reading order, with images inlined as data URIs.
//
// Only a failure to open the container is returned as an error. Dangling
// spine entries, unreadable documents and unresolvable images are logged and
// skipped so that a damaged book still renders as much as possible.
func (r *Renderer) Render(filePath string) (string, error) {
	c, err := epub.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open EPUB: %w", err)
	}
	defer c.Close()

	logger := r.logger.With("file", filePath)
	for _, w := range c.Warnings() {
		logger.Warn("container warning", "warning", w)
	}

	manifest := c.Manifest()
	var out strings.Builder
	for _, idref := range manifest.SpineIDs() {
		item, ok := manifest.ByID(idref)
		if !ok {
			logger.Warn("spine item not found in manifest, skipping", "idref", idref)
			continue
		}
		if !epub.IsContentDocument(item.MediaType) {
			logger.Debug("spine item is not a content document, skipping", "href", item.Href, "media_type", item.MediaType)
			continue
		}

		text, err := c.ReadText(item)
		if err != nil {
			logger.Warn("failed to read content document, skipping", "href", item.Href, "error", err)
			continue
		}

		text = r.inlineImages(c, item, text, logger)

		body, ok := extractBody(text)
		if !ok {
			logger.Warn("content document has no body, skipping", "href", item.Href)
			continue
		}
		out.WriteString(body)
	}

	return out.String(), nil
}

// inlineImages rewrites every img reference of the document that resolves to
// a manifest image into a base64 data URI. References that cannot be resolved
// or read are left as they are.
func (r *Renderer) inlineImages(c *epub.Container, doc epub.ManifestItem, text string, logger *slog.Logger) string {
	refs := imageRefs(text)
	if len(refs) == 0 {
		return text
	}

	manifest := c.Manifest()
	for _, ref := range refs {
		if isDataURI(ref) {
			continue
		}

		resolved, ok := epub.ResolveHref(doc.Href, html.UnescapeString(ref))
		if !ok {
			logger.Debug("image reference not resolvable", "document", doc.Href, "src", ref)
			continue
		}
		target, ok := manifest.ByHref(resolved)
		if !ok {
			logger.Warn("image not found in manifest", "document", doc.Href, "src", ref, "resolved", resolved)
			continue
		}
		data, err := c.ReadBytes(target)
		if err != nil {
			logger.Warn("failed to read image", "document", doc.Href, "href", target.Href, "error", err)
			continue
		}

		text = replaceRef(text, ref, dataURI(mediaTypeOf(target), data))
	}
	return text
}

// replaceRef replaces every occurrence of ref that stands on its own, that is
// bounded by quotes, parentheses, whitespace, '=' or '>'. This covers quoted
// and unquoted attributes as well as url(ref) in inline styles, while a
// longer name that merely contains ref is left alone.
func replaceRef(text, ref, replacement string) string {
	pattern := regexp.MustCompile(`(^|["'(\s=])` + regexp.QuoteMeta(ref) + `($|["')\s>])`)
	replacement = strings.ReplaceAll(replacement, "$", "$$")
	// delimiters consumed by one match cannot open the next, so run until stable
	for {
		next := pattern.ReplaceAllString(text, "${1}"+replacement+"${2}")
		if next == text {
			return next
		}
		text = next
	}
}

// imageRefs returns the distinct img src values of the markup in order of
// first appearance
func imageRefs(text string) []string {
	matches := imgSrcPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	var refs []string
	for _, m := range matches {
		ref := m[1]
		if ref == "" {
			ref = m[2]
		}
		if strings.TrimSpace(ref) == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}

// extractBody returns the inner HTML of the document's body element
func extractBody(text string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return "", false
	}
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return "", false
	}
	inner, err := body.Html()
	if err != nil {
		return "", false
	}
	return inner, true
}

func isDataURI(ref string) bool {
	ref = strings.TrimSpace(ref)
	return len(ref) >= 5 && strings.EqualFold(ref[:5], "data:")
}

func dataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// mediaTypeOf returns the declared media type of an item, falling back to
// its file extension
func mediaTypeOf(item epub.ManifestItem) string {
	if mt := strings.TrimSpace(item.MediaType); mt != "" {
		return mt
	}
	if mt := mime.TypeByExtension(strings.ToLower(path.Ext(item.Href))); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
