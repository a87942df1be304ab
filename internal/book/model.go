package book

import (
	"fmt"
	"strings"
)

// Default strings used on both the encode and decode side when a book is
// missing its title or author.
const (
	DefaultTitle  = "Untitled"
	DefaultAuthor = "Unknown"
)

// Default fixed-layout page size (A4 at 96 DPI).
const (
	DefaultPageWidth  = 794
	DefaultPageHeight = 1123
	DefaultPageUnit   = "px"
)

// LayoutMode selects between reflowable and fixed-layout renditions.
type LayoutMode string

const (
	LayoutReflow LayoutMode = "reflow"
	LayoutFixed  LayoutMode = "fixed"
)

// ParseLayoutMode converts a user supplied string to a LayoutMode.
// The empty string maps to LayoutReflow.
func ParseLayoutMode(s string) (LayoutMode, error) {
	switch LayoutMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", LayoutReflow:
		return LayoutReflow, nil
	case LayoutFixed:
		return LayoutFixed, nil
	}
	return "", fmt.Errorf("unknown layout mode %q", s)
}

// Valid reports whether m is a known layout mode.
func (m LayoutMode) Valid() bool {
	return m == LayoutReflow || m == LayoutFixed
}

// PageType classifies a page within the book.
type PageType string

const (
	PageCover   PageType = "cover"
	PageChapter PageType = "chapter"
	PageContent PageType = "content"
	PageTOC     PageType = "toc"
)

// PageSize is the physical size of a fixed-layout page.
type PageSize struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Unit   string `yaml:"unit"`
}

// DefaultPageSize returns the page size used when a fixed-layout book does not
// declare one.
func DefaultPageSize() PageSize {
	return PageSize{Width: DefaultPageWidth, Height: DefaultPageHeight, Unit: DefaultPageUnit}
}

// Book holds book-level metadata.
type Book struct {
	ID         string     `yaml:"id"`
	Title      string     `yaml:"title"`
	Author     string     `yaml:"author"`
	LayoutMode LayoutMode `yaml:"layoutMode"`
	PageSize   *PageSize  `yaml:"pageSize,omitempty"`

	// Assets are binary resources shipped alongside the pages. On encode the
	// key is the href relative to the package directory (e.g. "images/a.png").
	Assets []Asset `yaml:"-"`
}

// EffectivePageSize returns the book's page size, falling back to the default
// when none is set. A missing unit defaults to px.
func (b *Book) EffectivePageSize() PageSize {
	if b == nil || b.PageSize == nil {
		return DefaultPageSize()
	}
	size := *b.PageSize
	if size.Unit == "" {
		size.Unit = DefaultPageUnit
	}
	return size
}

// Page is a single page of the book. Content is a markup fragment that forms
// the body of the page.
type Page struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Content    string   `yaml:"content,omitempty"`
	Styles     string   `yaml:"styles,omitempty"`
	PageNumber int      `yaml:"pageNumber"`
	Type       PageType `yaml:"type"`
}

// Asset is a binary resource. Key is the href exactly as declared in the
// package manifest.
type Asset struct {
	Key       string `yaml:"key"`
	MediaType string `yaml:"mediaType"`
	Data      []byte `yaml:"-"`
	Cover     bool   `yaml:"cover,omitempty"`

	// Width and Height are filled in by the decoder for raster images it
	// could probe. Zero when unknown.
	Width  int `yaml:"width,omitempty"`
	Height int `yaml:"height,omitempty"`
}
