package epub

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// opfPackage represents the OPF XML structure
type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Version  string      `xml:"version,attr"`
	UniqueID string      `xml:"unique-identifier,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
}

// opfMetadata represents the metadata section
type opfMetadata struct {
	Title      []string        `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creator    []string        `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Language   []string        `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifier []opfIdentifier `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Meta       []opfMeta       `xml:"meta"`
}

// opfIdentifier represents an identifier element
type opfIdentifier struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr"`
}

// opfMeta represents a meta element (EPUB 2.0 and 3.0)
type opfMeta struct {
	Name     string `xml:"name,attr"`
	Content  string `xml:"content,attr"` // EPUB 2.0: attribute value
	Value    string `xml:",chardata"`    // EPUB 3.0: element text content
	Property string `xml:"property,attr"`
}

type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfSpine struct {
	Toc      string       `xml:"toc,attr"`
	ItemRefs []opfItemRef `xml:"itemref"`
}

type opfItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// ParsePackage parses a package document located at opfPath.
// Manifest hrefs are kept exactly as declared.
func ParsePackage(content []byte, opfPath string) (*Package, error) {
	var pkg opfPackage
	if err := xml.Unmarshal(stripBOM(content), &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse OPF XML: %w", err)
	}

	p := &Package{
		Path:     opfPath,
		BaseDir:  ParentDir(opfPath),
		Version:  pkg.Version,
		Metadata: parseMetadata(&pkg.Metadata, pkg.UniqueID),
		SpineTOC: pkg.Spine.Toc,
	}

	for _, item := range pkg.Manifest.Items {
		p.Manifest = append(p.Manifest, ManifestItem{
			ID:         strings.TrimSpace(item.ID),
			Href:       strings.TrimSpace(item.Href),
			MediaType:  strings.TrimSpace(item.MediaType),
			Properties: item.Properties,
		})
	}

	for _, ref := range pkg.Spine.ItemRefs {
		p.Spine = append(p.Spine, SpineItem{
			IDRef:  strings.TrimSpace(ref.IDRef),
			Linear: ref.Linear != "no",
		})
	}

	return p, nil
}

// parseMetadata parses the metadata section
func parseMetadata(meta *opfMetadata, uniqueID string) Metadata {
	var md Metadata

	if len(meta.Title) > 0 {
		md.Title = strings.TrimSpace(meta.Title[0])
	}
	if len(meta.Creator) > 0 {
		md.Creator = strings.TrimSpace(meta.Creator[0])
	}
	if len(meta.Language) > 0 {
		md.Language = strings.TrimSpace(meta.Language[0])
	}

	// Identifier (find the one marked as unique-identifier)
	for _, id := range meta.Identifier {
		if id.ID == uniqueID {
			md.Identifier = strings.TrimSpace(id.Value)
			break
		}
	}
	if md.Identifier == "" && len(meta.Identifier) > 0 {
		md.Identifier = strings.TrimSpace(meta.Identifier[0].Value)
	}

	for _, m := range meta.Meta {
		value := strings.TrimSpace(m.Value)
		switch m.Property {
		case "dcterms:modified":
			md.Modified = value
		case "rendition:layout":
			md.Layout = value
		case "rendition:orientation":
			md.Orientation = value
		case "rendition:spread":
			md.Spread = value
		case "rendition:viewport":
			md.Viewport = value
		}
		switch m.Name {
		case "cover":
			if md.CoverID == "" {
				md.CoverID = strings.TrimSpace(m.Content)
			}
		case "viewport":
			if md.Viewport == "" {
				md.Viewport = strings.TrimSpace(m.Content)
			}
		}
	}

	return md
}

// Rendition properties for a fixed-layout package.
const (
	LayoutPrePaginated = "pre-paginated"
	RenditionAuto      = "auto"
)

// Rendition is fixed-layout rendition metadata.
type Rendition struct {
	Layout      string
	Orientation string
	Spread      string
	Width       int
	Height      int
}

// FixedRendition returns pre-paginated rendition metadata with auto
// orientation and spread.
func FixedRendition(width, height int) *Rendition {
	return &Rendition{
		Layout:      LayoutPrePaginated,
		Orientation: RenditionAuto,
		Spread:      RenditionAuto,
		Width:       width,
		Height:      height,
	}
}

// Viewport formats the rendition size as "width=W, height=H".
func (r *Rendition) Viewport() string {
	return FormatViewport(r.Width, r.Height)
}

// FormatViewport formats a viewport declaration.
func FormatViewport(width, height int) string {
	return fmt.Sprintf("width=%d, height=%d", width, height)
}

var viewportRe = regexp.MustCompile(`(?i)width\s*=\s*(\d+)\s*[,;]?\s*height\s*=\s*(\d+)`)

// ParseViewport parses a "width=W, height=H" declaration.
func ParseViewport(s string) (width, height int, ok bool) {
	m := viewportRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	w, errW := strconv.Atoi(m[1])
	h, errH := strconv.Atoi(m[2])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

// PackageDocument is the input to BuildPackageDocument.
type PackageDocument struct {
	Identifier string
	Title      string
	Creator    string
	Language   string
	Modified   time.Time
	Rendition  *Rendition // nil for reflowable packages
	CoverID    string     // manifest id of the cover image, if any
	Manifest   []ManifestItem
	Spine      []SpineItem
	SpineTOC   string // manifest id of the NCX
}

// BuildPackageDocument renders an EPUB 3 package document.
func BuildPackageDocument(doc PackageDocument) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="book-id"`)
	if doc.Rendition != nil {
		b.WriteString(` prefix="rendition: http://www.idpf.org/vocab/rendition/#"`)
	}
	b.WriteString(">\n")

	b.WriteString(`  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">` + "\n")
	fmt.Fprintf(&b, "    <dc:identifier id=\"book-id\">%s</dc:identifier>\n", escapeXML(doc.Identifier))
	fmt.Fprintf(&b, "    <dc:title>%s</dc:title>\n", escapeXML(doc.Title))
	fmt.Fprintf(&b, "    <dc:creator>%s</dc:creator>\n", escapeXML(doc.Creator))
	fmt.Fprintf(&b, "    <dc:language>%s</dc:language>\n", escapeXML(doc.Language))
	fmt.Fprintf(&b, "    <meta property=\"dcterms:modified\">%s</meta>\n", doc.Modified.UTC().Format("2006-01-02T15:04:05Z"))
	if r := doc.Rendition; r != nil {
		fmt.Fprintf(&b, "    <meta property=\"rendition:layout\">%s</meta>\n", escapeXML(r.Layout))
		fmt.Fprintf(&b, "    <meta property=\"rendition:orientation\">%s</meta>\n", escapeXML(r.Orientation))
		fmt.Fprintf(&b, "    <meta property=\"rendition:spread\">%s</meta>\n", escapeXML(r.Spread))
		fmt.Fprintf(&b, "    <meta property=\"rendition:viewport\">%s</meta>\n", r.Viewport())
	}
	if doc.CoverID != "" {
		fmt.Fprintf(&b, "    <meta name=\"cover\" content=\"%s\"/>\n", escapeXML(doc.CoverID))
	}
	b.WriteString("  </metadata>\n")

	b.WriteString("  <manifest>\n")
	for _, item := range doc.Manifest {
		fmt.Fprintf(&b, `    <item id="%s" href="%s" media-type="%s"`,
			escapeXML(item.ID), escapeXML(item.Href), escapeXML(item.MediaType))
		if item.Properties != "" {
			fmt.Fprintf(&b, ` properties="%s"`, escapeXML(item.Properties))
		}
		b.WriteString("/>\n")
	}
	b.WriteString("  </manifest>\n")

	b.WriteString(`  <spine page-progression-direction="ltr"`)
	if doc.SpineTOC != "" {
		fmt.Fprintf(&b, ` toc="%s"`, escapeXML(doc.SpineTOC))
	}
	b.WriteString(">\n")
	for _, ref := range doc.Spine {
		fmt.Fprintf(&b, "    <itemref idref=\"%s\"", escapeXML(ref.IDRef))
		if !ref.Linear {
			b.WriteString(` linear="no"`)
		}
		b.WriteString("/>\n")
	}
	b.WriteString("  </spine>\n")
	b.WriteString("</package>\n")

	return []byte(b.String())
}
