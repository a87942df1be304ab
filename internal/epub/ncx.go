package epub

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// NavPoint is a single entry of the flat table of contents. ContentPath is
// relative to the package document's directory.
type NavPoint struct {
	ID          string
	PlayOrder   int
	Label       string
	ContentPath string
}

// BuildNCX renders the legacy NCX navigation file: one navPoint per entry,
// play order as given.
func BuildNCX(uid, title string, points []NavPoint) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">` + "\n")
	b.WriteString("  <head>\n")
	fmt.Fprintf(&b, "    <meta name=\"dtb:uid\" content=\"%s\"/>\n", escapeXML(uid))
	b.WriteString("    <meta name=\"dtb:depth\" content=\"1\"/>\n")
	b.WriteString("    <meta name=\"dtb:totalPageCount\" content=\"0\"/>\n")
	b.WriteString("    <meta name=\"dtb:maxPageNumber\" content=\"0\"/>\n")
	b.WriteString("  </head>\n")
	fmt.Fprintf(&b, "  <docTitle><text>%s</text></docTitle>\n", escapeXML(title))
	b.WriteString("  <navMap>\n")
	for _, np := range points {
		fmt.Fprintf(&b, "    <navPoint id=\"%s\" playOrder=\"%d\">\n", escapeXML(np.ID), np.PlayOrder)
		fmt.Fprintf(&b, "      <navLabel><text>%s</text></navLabel>\n", escapeXML(np.Label))
		fmt.Fprintf(&b, "      <content src=\"%s\"/>\n", escapeXML(np.ContentPath))
		b.WriteString("    </navPoint>\n")
	}
	b.WriteString("  </navMap>\n")
	b.WriteString("</ncx>\n")
	return []byte(b.String())
}

// BuildNav renders the navigation document with an ordered table of contents
// listing the entries in the given order.
func BuildNav(title string, points []NavPoint) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" lang="en" xml:lang="en">` + "\n")
	b.WriteString("<head>\n")
	fmt.Fprintf(&b, "  <title>%s</title>\n", escapeXML(title))
	b.WriteString("</head>\n")
	b.WriteString("<body>\n")
	b.WriteString(`  <nav epub:type="toc" id="toc">` + "\n")
	b.WriteString("    <h1>Table of Contents</h1>\n")
	b.WriteString("    <ol>\n")
	for _, np := range points {
		fmt.Fprintf(&b, "      <li><a href=\"%s\">%s</a></li>\n", escapeXML(np.ContentPath), escapeXML(np.Label))
	}
	b.WriteString("    </ol>\n")
	b.WriteString("  </nav>\n")
	b.WriteString("</body>\n")
	b.WriteString("</html>\n")
	return []byte(b.String())
}
