package epub

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// PageContainerClass marks the element wrapping a page's content.
const PageContainerClass = "page-content"

// PageDocument is the input to BuildPage.
type PageDocument struct {
	Title string
	// Content is embedded verbatim inside the page container.
	Content string
	// Styles is embedded as an inline stylesheet when non-empty.
	Styles string
	// Stylesheets are hrefs relative to the page's own location.
	Stylesheets []string
	// Fixed sizes the page container. Nil for reflowable pages.
	Fixed *FixedSize
}

// FixedSize is the rendered size of a fixed-layout page.
type FixedSize struct {
	Width  int
	Height int
	Unit   string
}

// BuildPage renders a page's XHTML document.
func BuildPage(page PageDocument) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" lang="en" xml:lang="en">` + "\n")
	b.WriteString("<head>\n")
	b.WriteString("  <meta charset=\"utf-8\"/>\n")
	fmt.Fprintf(&b, "  <title>%s</title>\n", escapeXML(page.Title))
	if page.Fixed != nil {
		fmt.Fprintf(&b, "  <meta name=\"viewport\" content=\"%s\"/>\n", FormatViewport(page.Fixed.Width, page.Fixed.Height))
	}
	for _, href := range page.Stylesheets {
		fmt.Fprintf(&b, "  <link rel=\"stylesheet\" type=\"text/css\" href=\"%s\"/>\n", escapeXML(href))
	}
	if page.Styles != "" {
		// Keep a literal </style> inside the CSS from closing the element.
		styles := strings.ReplaceAll(page.Styles, "</style>", `<\/style>`)
		fmt.Fprintf(&b, "  <style>%s</style>\n", styles)
	}
	b.WriteString("</head>\n")
	b.WriteString("<body>\n")
	fmt.Fprintf(&b, `<div class="%s"`, PageContainerClass)
	if f := page.Fixed; f != nil {
		fmt.Fprintf(&b, ` style="width:%d%s;height:%d%s"`, f.Width, f.Unit, f.Height, f.Unit)
	}
	b.WriteString(">")
	b.WriteString(page.Content)
	b.WriteString("</div>\n")
	b.WriteString("</body>\n")
	b.WriteString("</html>\n")
	return []byte(b.String())
}
