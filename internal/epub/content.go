package epub

import (
	"net/url"
	"path"
	"strings"
)

// Media types of manifest items that are rendered as content documents
var contentMediaTypes = map[string]bool{
	"application/xhtml+xml": true,
	"text/html":             true,
}

// IsContentDocument reports whether a media type is markup intended for display
func IsContentDocument(mediaType string) bool {
	return contentMediaTypes[strings.ToLower(strings.TrimSpace(mediaType))]
}

// IsImage reports whether a media type is an image type
func IsImage(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/")
}

// NormalizeHref normalizes a path inside the container so that manifest hrefs
// and zip entry names compare equal: percent-escapes are decoded, the
// fragment is dropped, "." and ".." segments are resolved and separators are
// forward slashes.
func NormalizeHref(href string) string {
	href = strings.TrimSpace(href)
	href, _, _ = strings.Cut(href, "#")
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	href = strings.ReplaceAll(href, "\\", "/")
	if href == "" {
		return ""
	}
	cleaned := path.Clean(href)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "." {
		return ""
	}
	return cleaned
}

// ResolveHref resolves a reference found in a document against the
// directory of that document's own location in the container.
// baseHref: location of the referencing document (e.g., "OEBPS/text/ch1.xhtml")
// ref: reference as written (e.g., "../images/photo.jpg")
// returns: resolved container path (e.g., "OEBPS/images/photo.jpg")
//
// References carrying a URL scheme or escaping the archive root do not
// resolve. A leading slash is taken as relative to the archive root.
func ResolveHref(baseHref, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || hasScheme(ref) {
		return "", false
	}
	ref, _, _ = strings.Cut(ref, "#")
	ref, _, _ = strings.Cut(ref, "?")
	if decoded, err := url.PathUnescape(ref); err == nil {
		ref = decoded
	}
	if ref == "" {
		return "", false
	}

	var joined string
	if strings.HasPrefix(ref, "/") {
		joined = path.Clean(ref[1:])
	} else {
		joined = path.Join(path.Dir(NormalizeHref(baseHref)), ref)
	}
	if joined == "." || joined == ".." || strings.HasPrefix(joined, "../") {
		return "", false
	}
	return joined, true
}

// hasScheme reports whether s starts with a URL scheme such as "http:" or "data:"
func hasScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ':':
			return i > 0
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return false
}
