package epub

import "strings"

// Well-known package locations and media types.
const (
	MimetypePath    = "mimetype"
	MimetypeContent = "application/epub+zip"
	ContainerPath   = "META-INF/container.xml"

	PackageMediaType = "application/oebps-package+xml"
	XHTMLMediaType   = "application/xhtml+xml"
	NCXMediaType     = "application/x-dtbncx+xml"
	CSSMediaType     = "text/css"
)

// Package is a parsed package document.
type Package struct {
	// Path is the package document's path inside the archive; BaseDir is its
	// parent directory, the base for every manifest href.
	Path    string
	BaseDir string

	Version  string
	Metadata Metadata
	Manifest []ManifestItem // document order, duplicates included
	Spine    []SpineItem
	SpineTOC string
}

// Metadata is the subset of package metadata the codec reads and writes.
type Metadata struct {
	Identifier string
	Title      string
	Creator    string
	Language   string
	Modified   string

	// Rendition properties; empty for reflowable packages.
	Layout      string
	Orientation string
	Spread      string
	Viewport    string

	CoverID string // EPUB 2 <meta name="cover"> manifest id
}

// ManifestItem is an item in the manifest. Href is relative to the package
// document's directory, exactly as declared.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
}

// HasProperty reports whether the space-separated properties include prop.
func (m ManifestItem) HasProperty(prop string) bool {
	for _, p := range strings.Fields(m.Properties) {
		if p == prop {
			return true
		}
	}
	return false
}

// SpineItem is an item reference in the spine.
type SpineItem struct {
	IDRef  string
	Linear bool
}
