package codec

import (
	"context"
	"fmt"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yuanying/bookpack/internal/book"
	"github.com/yuanying/bookpack/internal/epub"
)

// Result is the outcome of a decode: the book metadata, its pages in spine
// order, the assets found in the manifest, and every recoverable problem met
// on the way.
type Result struct {
	Book  book.Book
	Pages []book.Page
	// Assets is keyed by manifest href exactly as declared.
	Assets *AssetTable
	// Stylesheet concatenates every text/css manifest item in manifest
	// order. It is applied to every page.
	Stylesheet string
	// Cover is the asset key of the detected cover image, if any.
	Cover    string
	Warnings []Warning
}

// Decoder turns package archives back into the document model. Like Encoder
// it holds configuration only and is safe for concurrent calls.
type Decoder struct {
	opts DecoderOptions
}

// NewDecoder creates a Decoder, filling in defaults for unset options.
func NewDecoder(opts DecoderOptions) *Decoder {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.Markup == nil {
		opts.Markup = epub.GoqueryParser{}
	}
	return &Decoder{opts: opts}
}

// DecodeBytes decodes an in-memory zip archive. Data that is not a zip
// archive is reported as a missing container.
func (d *Decoder) DecodeBytes(ctx context.Context, data []byte) (*Result, error) {
	zr, err := epub.OpenZipBytes(data)
	if err != nil {
		return nil, &epub.FormatError{Reason: epub.ErrMissingContainer.Reason, Err: err}
	}
	return d.Decode(ctx, zr)
}

// Decode reads a package through r. Only an absent container, rootfile or
// package document fails the call; any other broken resource is omitted and
// reported in Result.Warnings.
func (d *Decoder) Decode(ctx context.Context, r epub.ArchiveReader) (*Result, error) {
	pkg, err := epub.ReadPackage(r)
	if err != nil {
		return nil, err
	}

	st := &decodeState{
		reader:   r,
		pkg:      pkg,
		byID:     make(map[string]epub.ManifestItem, len(pkg.Manifest)),
		assets:   NewAssetTable(),
		warnings: warningList{logger: d.opts.Logger},
	}
	st.indexManifest()

	if err := d.readResources(ctx, st); err != nil {
		return nil, err
	}

	pages, err := d.assemblePages(ctx, st)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Book:       st.book(),
		Pages:      pages,
		Assets:     st.assets,
		Stylesheet: st.stylesheet,
		Warnings:   st.warnings.items,
	}
	if cover := pkg.DetectCover(); cover != nil {
		if _, ok := st.assets.Get(cover.Href); ok {
			res.Cover = cover.Href
		}
	}
	res.Book.Assets = st.assets.All()
	for i := range res.Book.Assets {
		res.Book.Assets[i].Cover = res.Book.Assets[i].Key == res.Cover && res.Cover != ""
	}

	d.opts.Logger.Debug("decoded package",
		"title", res.Book.Title, "pages", len(res.Pages), "assets", st.assets.Len(), "warnings", len(res.Warnings))
	return res, nil
}

// decodeState is the per-call decode state.
type decodeState struct {
	reader     epub.ArchiveReader
	pkg        *epub.Package
	items      []epub.ManifestItem // manifest order, first of each id
	byID       map[string]epub.ManifestItem
	assets     *AssetTable
	stylesheet string
	warnings   warningList
}

func (st *decodeState) indexManifest() {
	for _, item := range st.pkg.Manifest {
		if _, dup := st.byID[item.ID]; dup {
			st.warnings.add(ValidationWarning, item.Href, "duplicate manifest id %q, keeping the first", item.ID)
			continue
		}
		st.byID[item.ID] = item
		st.items = append(st.items, item)
	}
}

func (st *decodeState) resolve(href string) string {
	return epub.Resolve(st.pkg.BaseDir, href)
}

func (st *decodeState) book() book.Book {
	md := st.pkg.Metadata
	b := book.Book{
		ID:         md.Identifier,
		Title:      md.Title,
		Author:     md.Creator,
		LayoutMode: book.LayoutReflow,
	}
	if b.Title == "" {
		b.Title = book.DefaultTitle
	}
	if b.Author == "" {
		b.Author = book.DefaultAuthor
	}
	if md.Layout == epub.LayoutPrePaginated {
		b.LayoutMode = book.LayoutFixed
		if w, h, ok := epub.ParseViewport(md.Viewport); ok {
			b.PageSize = &book.PageSize{Width: w, Height: h, Unit: book.DefaultPageUnit}
		}
	}
	return b
}

// resourceRead is one image or stylesheet read by the worker pool.
type resourceRead struct {
	item epub.ManifestItem
	data []byte
	err  error
}

// readResources reads every image and stylesheet of the manifest on a bounded
// pool, then registers them in manifest order.
func (d *Decoder) readResources(ctx context.Context, st *decodeState) error {
	var reads []*resourceRead
	for _, item := range st.items {
		if epub.IsImageMediaType(item.MediaType) || isStylesheet(item.MediaType) {
			reads = append(reads, &resourceRead{item: item})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for _, rr := range reads {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rr.data, rr.err = st.reader.ReadEntry(st.resolve(rr.item.Href))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return cancelled(err)
	}
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}

	var css []string
	for _, rr := range reads {
		if rr.err != nil {
			st.warnings.add(ResourceWarning, rr.item.Href, "failed to read %s: %v", rr.item.MediaType, rr.err)
			continue
		}
		if isStylesheet(rr.item.MediaType) {
			css = append(css, string(rr.data))
			continue
		}
		w, h := probeImage(rr.data)
		st.assets.Add(book.Asset{
			Key:       rr.item.Href,
			MediaType: rr.item.MediaType,
			Data:      rr.data,
			Width:     w,
			Height:    h,
		})
	}
	st.stylesheet = strings.Join(css, "\n")
	return nil
}

// assemblePages walks the spine in order and builds one page per readable
// itemref.
func (d *Decoder) assemblePages(ctx context.Context, st *decodeState) ([]book.Page, error) {
	pages := make([]book.Page, 0, len(st.pkg.Spine))
	for _, ref := range st.pkg.Spine {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}

		item, ok := st.byID[ref.IDRef]
		if !ok {
			st.warnings.add(ValidationWarning, "", "spine itemref %q has no manifest item, skipping", ref.IDRef)
			continue
		}

		page, err := d.decodePage(st, item, len(pages)+1)
		if err != nil {
			st.warnings.add(ResourceWarning, item.Href, "%v, skipping page", err)
			continue
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func (d *Decoder) decodePage(st *decodeState, item epub.ManifestItem, n int) (book.Page, error) {
	data, err := st.reader.ReadEntry(st.resolve(item.Href))
	if err != nil {
		return book.Page{}, fmt.Errorf("failed to read page: %w", err)
	}

	doc, err := d.opts.Markup.Parse(data)
	if err != nil {
		return book.Page{}, err
	}

	for _, img := range doc.ElementsByTag("img") {
		src, ok := img.Attr("src")
		if !ok {
			continue
		}
		if m := st.matchImage(item.Href, src); m.Kind != Unresolved {
			img.SetAttr("src", m.Key)
		}
	}

	name := fmt.Sprintf("Page %d", n)
	if titles := doc.ElementsByTag("title"); len(titles) > 0 {
		if t := strings.TrimSpace(titles[0].Text()); t != "" {
			name = t
		}
	}

	var content string
	if bodies := doc.ElementsByTag("body"); len(bodies) > 0 {
		content, err = pageContent(bodies[0])
		if err != nil {
			return book.Page{}, err
		}
	}

	pageType := book.PageContent
	if item.HasProperty("nav") {
		pageType = book.PageTOC
	}

	return book.Page{
		ID:         item.ID,
		Name:       name,
		Content:    content,
		Styles:     st.stylesheet,
		PageNumber: n,
		Type:       pageType,
	}, nil
}

// pageContent serializes the body's inner markup. When the body holds nothing
// but a page container, the container's own inner markup is returned.
func pageContent(body epub.MarkupElement) (string, error) {
	children := body.Children()
	if len(children) == 1 {
		c := children[0]
		if c.Tag() == "div" && epub.HasClass(c, epub.PageContainerClass) &&
			strings.TrimSpace(body.Text()) == strings.TrimSpace(c.Text()) {
			return c.InnerMarkup()
		}
	}
	return body.InnerMarkup()
}

// matchImage resolves an image source found in the page at pageHref. A
// source relative to the page's directory that lands on an asset key counts
// as an exact match; otherwise the asset table decides.
func (st *decodeState) matchImage(pageHref, src string) AssetMatch {
	m := st.assets.Match(src)
	if m.Kind == ExactMatch || src == "" || strings.Contains(src, ":") || strings.HasPrefix(src, "/") {
		return m
	}
	resolved := path.Join(epub.ParentDir(pageHref), src)
	if _, ok := st.assets.Get(resolved); ok {
		return AssetMatch{Kind: ExactMatch, Key: resolved}
	}
	return m
}

func isStylesheet(mediaType string) bool {
	return strings.EqualFold(mediaType, epub.CSSMediaType)
}
