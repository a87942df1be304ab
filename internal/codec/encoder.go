package codec

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yuanying/bookpack/internal/book"
	"github.com/yuanying/bookpack/internal/epub"
)

// Layout of an encoded package. Hrefs are relative to PackageDir.
const (
	PackageDir  = "OEBPS"
	PackagePath = PackageDir + "/content.opf"

	navID       = "nav"
	navHref     = "nav.xhtml"
	ncxID       = "ncx"
	ncxHref     = "toc.ncx"
	baseCSSID   = "css-base"
	baseCSSHref = "styles/base.css"
	pageCSSID   = "css-page"
	pageCSSHref = "styles/page.css"
)

// pageAssetPrefix leads from xhtml/page-N.xhtml back to the package directory.
const pageAssetPrefix = "../"

// pageStylesheets are the stylesheet hrefs as seen from xhtml/page-N.xhtml.
var pageStylesheets = []string{pageAssetPrefix + baseCSSHref, pageAssetPrefix + pageCSSHref}

// Encoder turns a book and its ordered pages into package entries.
// An Encoder holds configuration only; every call builds its own state, so
// one Encoder may serve concurrent calls.
type Encoder struct {
	opts EncoderOptions
}

// NewEncoder creates an Encoder, filling in defaults for unset options.
func NewEncoder(opts EncoderOptions) *Encoder {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewIdentifier == nil {
		opts.NewIdentifier = newUUIDURN
	}
	if opts.Markup == nil {
		opts.Markup = epub.GoqueryParser{}
	}
	return &Encoder{opts: opts}
}

// PageHref returns the href of the n-th (1-based) page relative to PackageDir.
func PageHref(n int) string {
	return fmt.Sprintf("xhtml/page-%d.xhtml", n)
}

// PageID returns the manifest id of the n-th (1-based) page.
func PageID(n int) string {
	return fmt.Sprintf("page-%d", n)
}

// Encode returns the package's entries in archive order: the stored mimetype
// marker, the container, the package document, the NCX, the nav document,
// both stylesheets, one XHTML file per page, then any book assets.
//
// An empty mode falls back to b.LayoutMode, then to reflow. Inputs are never
// modified.
func (e *Encoder) Encode(ctx context.Context, b *book.Book, pages []book.Page, mode book.LayoutMode) ([]epub.Entry, error) {
	entries, _, err := e.encode(ctx, b, pages, mode)
	return entries, err
}

// EncodeTo encodes the book and writes it as a zip archive to w.
func (e *Encoder) EncodeTo(ctx context.Context, w io.Writer, b *book.Book, pages []book.Page, mode book.LayoutMode) error {
	entries, modified, err := e.encode(ctx, b, pages, mode)
	if err != nil {
		return err
	}

	zw := epub.NewZipWriter(w, modified)
	if err := epub.WriteEntries(zw, entries); err != nil {
		return err
	}
	return zw.Close()
}

// encodeState is the per-call builder. It never outlives a single encode.
type encodeState struct {
	book       book.Book
	pages      []book.Page
	fixed      *epub.FixedSize
	assetKeys  map[string]bool
	identifier string
	title      string
	author     string
	modified   time.Time
}

func (e *Encoder) encode(ctx context.Context, b *book.Book, pages []book.Page, mode book.LayoutMode) ([]epub.Entry, time.Time, error) {
	st, err := e.newState(b, pages, mode)
	if err != nil {
		return nil, time.Time{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, cancelled(err)
	}

	pageDocs, assets, err := e.renderParallel(ctx, st)
	if err != nil {
		return nil, time.Time{}, err
	}

	e.opts.Logger.Debug("encoding package",
		"title", st.title, "pages", len(st.pages), "assets", len(assets), "fixed", st.fixed != nil)

	entries := make([]epub.Entry, 0, 7+len(pageDocs)+len(assets))
	entries = append(entries,
		epub.Entry{Path: epub.MimetypePath, Data: []byte(epub.MimetypeContent), Store: true},
		epub.Entry{Path: epub.ContainerPath, Data: epub.BuildContainer(PackagePath)},
		epub.Entry{Path: PackagePath, Data: st.packageDocument(assets)},
		epub.Entry{Path: path.Join(PackageDir, ncxHref), Data: epub.BuildNCX(st.identifier, st.title, st.navPoints())},
		epub.Entry{Path: path.Join(PackageDir, navHref), Data: epub.BuildNav(st.title, st.navPoints())},
		epub.Entry{Path: path.Join(PackageDir, baseCSSHref), Data: []byte(epub.BaseStylesheet)},
		epub.Entry{Path: path.Join(PackageDir, pageCSSHref), Data: []byte(epub.PageStylesheet)},
	)
	for i, doc := range pageDocs {
		entries = append(entries, epub.Entry{Path: path.Join(PackageDir, PageHref(i+1)), Data: doc})
	}
	for _, a := range assets {
		entries = append(entries, epub.Entry{Path: path.Join(PackageDir, a.Key), Data: a.Data})
	}

	return entries, st.modified, nil
}

func (e *Encoder) newState(b *book.Book, pages []book.Page, mode book.LayoutMode) (*encodeState, error) {
	if b == nil {
		return nil, &epub.InputError{Reason: "book is nil"}
	}
	if mode == "" {
		mode = b.LayoutMode
	}
	if mode == "" {
		mode = book.LayoutReflow
	}
	if !mode.Valid() {
		return nil, &epub.InputError{Reason: fmt.Sprintf("unknown layout mode %q", mode)}
	}

	st := &encodeState{
		book:       *b,
		pages:      append([]book.Page(nil), pages...),
		identifier: strings.TrimSpace(b.ID),
		title:      strings.TrimSpace(b.Title),
		author:     strings.TrimSpace(b.Author),
		modified:   e.opts.Now(),
	}
	st.book.Assets = append([]book.Asset(nil), b.Assets...)

	if mode == book.LayoutFixed {
		size := b.EffectivePageSize()
		if size.Width <= 0 || size.Height <= 0 {
			return nil, &epub.InputError{Reason: fmt.Sprintf("invalid page size %dx%d", size.Width, size.Height)}
		}
		st.fixed = &epub.FixedSize{Width: size.Width, Height: size.Height, Unit: size.Unit}
	}

	if err := validateAssets(st.book.Assets); err != nil {
		return nil, err
	}
	st.assetKeys = make(map[string]bool, len(st.book.Assets))
	for _, a := range st.book.Assets {
		st.assetKeys[a.Key] = true
	}

	if st.identifier == "" {
		st.identifier = e.opts.NewIdentifier()
	}
	if st.title == "" {
		st.title = book.DefaultTitle
	}
	if st.author == "" {
		st.author = book.DefaultAuthor
	}
	return st, nil
}

// reservedHrefs are package paths an asset key may not take over.
var reservedHrefs = map[string]bool{
	"content.opf": true,
	navHref:       true,
	ncxHref:       true,
	baseCSSHref:   true,
	pageCSSHref:   true,
}

func validateAssets(assets []book.Asset) error {
	seen := make(map[string]bool, len(assets))
	for _, a := range assets {
		key := a.Key
		if key == "" {
			return &epub.InputError{Reason: "asset with empty key"}
		}
		if path.IsAbs(key) || path.Clean(key) != key || strings.HasPrefix(key, "../") {
			return &epub.InputError{Reason: fmt.Sprintf("asset key %q is not a clean relative path", key)}
		}
		if reservedHrefs[key] || strings.HasPrefix(key, "xhtml/page-") {
			return &epub.InputError{Reason: fmt.Sprintf("asset key %q collides with a generated file", key)}
		}
		if seen[key] {
			return &epub.InputError{Reason: fmt.Sprintf("duplicate asset key %q", key)}
		}
		seen[key] = true
	}
	return nil
}

// renderParallel renders every page document and optimizes every asset on a
// bounded pool. Results keep input order. The context is checked before each
// page so cancellation never yields a truncated page list.
func (e *Encoder) renderParallel(ctx context.Context, st *encodeState) ([][]byte, []book.Asset, error) {
	docs := make([][]byte, len(st.pages))
	assets := make([]book.Asset, len(st.book.Assets))
	notes := make([]string, len(st.book.Assets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for i := range st.pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := st.renderPage(e.opts.Markup, i)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	for i, a := range st.book.Assets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if e.opts.Images != nil && epub.IsImageMediaType(a.MediaType) {
				assets[i], notes[i] = e.opts.Images.Optimize(a)
			} else {
				assets[i] = a
			}
			return nil
		})
	}

	err := g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, cancelled(ctxErr)
	}
	if err != nil {
		return nil, nil, err
	}

	for i, note := range notes {
		if note != "" {
			e.opts.Logger.Warn("image passed through unchanged", "asset", assets[i].Key, "reason", note)
		}
	}
	return docs, assets, nil
}

func (st *encodeState) pageName(i int) string {
	if name := strings.TrimSpace(st.pages[i].Name); name != "" {
		return name
	}
	return fmt.Sprintf("Page %d", i+1)
}

func (st *encodeState) renderPage(markup epub.MarkupParser, i int) ([]byte, error) {
	p := st.pages[i]
	content, err := st.pageContent(markup, p.Content)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", i+1, err)
	}
	return epub.BuildPage(epub.PageDocument{
		Title:       st.pageName(i),
		Content:     content,
		Styles:      p.Styles,
		Stylesheets: pageStylesheets,
		Fixed:       st.fixed,
	}), nil
}

// pageContent re-serializes a page's markup so it is well-formed inside an
// XHTML document, and points image sources naming an asset key at the
// asset's location relative to the page.
func (st *encodeState) pageContent(markup epub.MarkupParser, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return content, nil
	}
	doc, err := markup.ParseFragment([]byte(content))
	if err != nil {
		return "", err
	}
	for _, img := range doc.ElementsByTag("img") {
		if src, ok := img.Attr("src"); ok && st.assetKeys[src] {
			img.SetAttr("src", pageAssetPrefix+src)
		}
	}
	bodies := doc.ElementsByTag("body")
	if len(bodies) == 0 {
		return "", nil
	}
	return bodies[0].InnerMarkup()
}

func (st *encodeState) navPoints() []epub.NavPoint {
	points := make([]epub.NavPoint, len(st.pages))
	for i := range st.pages {
		points[i] = epub.NavPoint{
			ID:          fmt.Sprintf("navpoint-%d", i+1),
			PlayOrder:   i + 1,
			Label:       st.pageName(i),
			ContentPath: PageHref(i + 1),
		}
	}
	return points
}

func (st *encodeState) packageDocument(assets []book.Asset) []byte {
	manifest := []epub.ManifestItem{
		{ID: navID, Href: navHref, MediaType: epub.XHTMLMediaType, Properties: "nav"},
		{ID: ncxID, Href: ncxHref, MediaType: epub.NCXMediaType},
		{ID: baseCSSID, Href: baseCSSHref, MediaType: epub.CSSMediaType},
		{ID: pageCSSID, Href: pageCSSHref, MediaType: epub.CSSMediaType},
	}
	spine := make([]epub.SpineItem, 0, len(st.pages))
	for i := range st.pages {
		id := PageID(i + 1)
		manifest = append(manifest, epub.ManifestItem{ID: id, Href: PageHref(i + 1), MediaType: epub.XHTMLMediaType})
		spine = append(spine, epub.SpineItem{IDRef: id, Linear: true})
	}

	var coverID string
	for i, a := range assets {
		item := epub.ManifestItem{
			ID:        fmt.Sprintf("asset-%d", i+1),
			Href:      a.Key,
			MediaType: a.MediaType,
		}
		if a.Cover && coverID == "" && epub.IsImageMediaType(a.MediaType) {
			item.Properties = "cover-image"
			coverID = item.ID
		}
		manifest = append(manifest, item)
	}

	doc := epub.PackageDocument{
		Identifier: st.identifier,
		Title:      st.title,
		Creator:    st.author,
		Language:   "en",
		Modified:   st.modified,
		CoverID:    coverID,
		Manifest:   manifest,
		Spine:      spine,
		SpineTOC:   ncxID,
	}
	if st.fixed != nil {
		doc.Rendition = epub.FixedRendition(st.fixed.Width, st.fixed.Height)
	}
	return epub.BuildPackageDocument(doc)
}

// cancelled wraps a context error as ErrCancelled.
func cancelled(err error) error {
	return fmt.Errorf("%w: %w", epub.ErrCancelled, err)
}
