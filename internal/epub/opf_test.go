package epub

import (
	"strings"
	"testing"
	"time"
)

func TestParsePackage_EPUB20(t *testing.T) {
	opfContent := `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Sample Book Title</dc:title>
    <dc:creator opf:role="aut">John Doe</dc:creator>
    <dc:creator opf:role="edt">Jane Editor</dc:creator>
    <dc:language>en</dc:language>
    <dc:identifier id="other">urn:x:1</dc:identifier>
    <dc:identifier id="bookid">urn:isbn:1234567890</dc:identifier>
    <meta name="cover" content="cover-image"/>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="cover-image" href="images/cover.jpg" media-type="image/jpeg"/>
    <item id="chapter1" href="text/chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="chapter2" href="text/chapter2.xhtml" media-type="application/xhtml+xml"/>
    <item id="stylesheet" href="css/style.css" media-type="text/css"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="chapter1"/>
    <itemref idref="chapter2" linear="no"/>
  </spine>
</package>`

	pkg, err := ParsePackage([]byte(opfContent), "OEBPS/content.opf")
	if err != nil {
		t.Fatalf("ParsePackage failed: %v", err)
	}

	if pkg.Metadata.Title != "Sample Book Title" {
		t.Errorf("Title = %q, want %q", pkg.Metadata.Title, "Sample Book Title")
	}
	if pkg.Metadata.Creator != "John Doe" {
		t.Errorf("Creator = %q, want %q", pkg.Metadata.Creator, "John Doe")
	}
	if pkg.Metadata.Identifier != "urn:isbn:1234567890" {
		t.Errorf("Identifier = %q, want the unique-identifier value", pkg.Metadata.Identifier)
	}
	if pkg.Metadata.CoverID != "cover-image" {
		t.Errorf("CoverID = %q, want %q", pkg.Metadata.CoverID, "cover-image")
	}
	if pkg.Version != "2.0" {
		t.Errorf("Version = %q, want %q", pkg.Version, "2.0")
	}
	if pkg.BaseDir != "OEBPS" {
		t.Errorf("BaseDir = %q, want %q", pkg.BaseDir, "OEBPS")
	}
	if pkg.SpineTOC != "ncx" {
		t.Errorf("SpineTOC = %q, want %q", pkg.SpineTOC, "ncx")
	}

	// Manifest keeps document order and hrefs as declared.
	wantHrefs := []string{"toc.ncx", "images/cover.jpg", "text/chapter1.xhtml", "text/chapter2.xhtml", "css/style.css"}
	if len(pkg.Manifest) != len(wantHrefs) {
		t.Fatalf("Manifest count = %d, want %d", len(pkg.Manifest), len(wantHrefs))
	}
	for i, want := range wantHrefs {
		if pkg.Manifest[i].Href != want {
			t.Errorf("Manifest[%d].Href = %q, want %q", i, pkg.Manifest[i].Href, want)
		}
	}

	if len(pkg.Spine) != 2 {
		t.Fatalf("Spine count = %d, want 2", len(pkg.Spine))
	}
	if pkg.Spine[0].IDRef != "chapter1" || !pkg.Spine[0].Linear {
		t.Errorf("Spine[0] = %+v, want linear chapter1", pkg.Spine[0])
	}
	if pkg.Spine[1].IDRef != "chapter2" || pkg.Spine[1].Linear {
		t.Errorf("Spine[1] = %+v, want non-linear chapter2", pkg.Spine[1])
	}
}

func TestParsePackage_EPUB30Rendition(t *testing.T) {
	opfContent := `<?xml version="1.0" encoding="UTF-8"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="uid">urn:uuid:1</dc:identifier>
    <dc:title>  Fixed  </dc:title>
    <meta property="dcterms:modified">2024-01-01T00:00:00Z</meta>
    <meta property="rendition:layout">pre-paginated</meta>
    <meta property="rendition:orientation">auto</meta>
    <meta property="rendition:spread">none</meta>
    <meta property="rendition:viewport">width=600, height=800</meta>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav scripted"/>
  </manifest>
  <spine/>
</package>`

	pkg, err := ParsePackage([]byte(opfContent), "content.opf")
	if err != nil {
		t.Fatalf("ParsePackage failed: %v", err)
	}
	md := pkg.Metadata
	if md.Title != "Fixed" {
		t.Errorf("Title = %q, want trimmed %q", md.Title, "Fixed")
	}
	if md.Modified != "2024-01-01T00:00:00Z" {
		t.Errorf("Modified = %q", md.Modified)
	}
	if md.Layout != LayoutPrePaginated || md.Orientation != "auto" || md.Spread != "none" {
		t.Errorf("rendition = %q/%q/%q", md.Layout, md.Orientation, md.Spread)
	}
	if md.Viewport != "width=600, height=800" {
		t.Errorf("Viewport = %q", md.Viewport)
	}
	if pkg.BaseDir != "" {
		t.Errorf("BaseDir = %q, want empty for a root-level package", pkg.BaseDir)
	}
	if !pkg.Manifest[0].HasProperty("nav") || pkg.Manifest[0].HasProperty("cover-image") {
		t.Errorf("HasProperty mismatch for %q", pkg.Manifest[0].Properties)
	}
}

func TestParsePackage_InvalidXML(t *testing.T) {
	if _, err := ParsePackage([]byte("<package><metadata>"), "content.opf"); err == nil {
		t.Fatal("expected error for malformed package document")
	}
}

func TestParseViewport(t *testing.T) {
	tests := []struct {
		in     string
		w, h   int
		wantOK bool
	}{
		{"width=600, height=800", 600, 800, true},
		{"width=1200,height=1600", 1200, 1600, true},
		{"WIDTH = 10; HEIGHT = 20", 10, 20, true},
		{"width=0, height=800", 0, 0, false},
		{"device-width", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		w, h, ok := ParseViewport(tt.in)
		if ok != tt.wantOK || w != tt.w || h != tt.h {
			t.Errorf("ParseViewport(%q) = %d, %d, %v; want %d, %d, %v", tt.in, w, h, ok, tt.w, tt.h, tt.wantOK)
		}
	}
}

func TestBuildPackageDocument_RoundTrip(t *testing.T) {
	doc := PackageDocument{
		Identifier: "urn:uuid:abc",
		Title:      "Fish & Chips",
		Creator:    "A <Cook>",
		Language:   "en",
		Modified:   time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("X", 3600)),
		Rendition:  FixedRendition(600, 800),
		CoverID:    "asset-1",
		Manifest: []ManifestItem{
			{ID: "nav", Href: "nav.xhtml", MediaType: XHTMLMediaType, Properties: "nav"},
			{ID: "page-1", Href: "xhtml/page-1.xhtml", MediaType: XHTMLMediaType},
			{ID: "asset-1", Href: "images/cover.png", MediaType: "image/png", Properties: "cover-image"},
		},
		Spine:    []SpineItem{{IDRef: "page-1", Linear: true}},
		SpineTOC: "ncx",
	}

	out := BuildPackageDocument(doc)
	text := string(out)
	for _, want := range []string{
		`version="3.0"`,
		`<meta property="dcterms:modified">2024-05-06T06:08:09Z</meta>`,
		`<meta property="rendition:viewport">width=600, height=800</meta>`,
		`page-progression-direction="ltr"`,
		`prefix="rendition: http://www.idpf.org/vocab/rendition/#"`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("package document missing %q", want)
		}
	}

	pkg, err := ParsePackage(out, "OEBPS/content.opf")
	if err != nil {
		t.Fatalf("ParsePackage failed: %v", err)
	}
	md := pkg.Metadata
	if md.Title != "Fish & Chips" || md.Creator != "A <Cook>" || md.Identifier != "urn:uuid:abc" || md.Language != "en" {
		t.Errorf("metadata = %+v", md)
	}
	if md.Layout != LayoutPrePaginated || md.Orientation != RenditionAuto || md.Spread != RenditionAuto {
		t.Errorf("rendition = %q/%q/%q", md.Layout, md.Orientation, md.Spread)
	}
	if md.CoverID != "asset-1" {
		t.Errorf("CoverID = %q", md.CoverID)
	}
	if len(pkg.Manifest) != 3 || pkg.Manifest[2].Properties != "cover-image" {
		t.Errorf("Manifest = %+v", pkg.Manifest)
	}
	if len(pkg.Spine) != 1 || pkg.Spine[0].IDRef != "page-1" {
		t.Errorf("Spine = %+v", pkg.Spine)
	}
}

func TestBuildPackageDocument_Reflow(t *testing.T) {
	text := string(BuildPackageDocument(PackageDocument{Identifier: "id", Title: "t", Creator: "c", Language: "en"}))
	if strings.Contains(text, "rendition:") {
		t.Error("reflowable package must not carry rendition metadata")
	}
	if !strings.Contains(text, "<spine page-progression-direction=\"ltr\">") {
		t.Error("expected an empty ltr spine")
	}
}
