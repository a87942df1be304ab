package epub

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MarkupParser parses page markup into a queryable tree.
type MarkupParser interface {
	Parse(data []byte) (MarkupDocument, error)
	// ParseFragment parses a body fragment. The returned document holds a
	// single body element wrapping the fragment's nodes.
	ParseFragment(data []byte) (MarkupDocument, error)
}

// MarkupDocument is a parsed markup tree.
type MarkupDocument interface {
	// ElementsByTag returns every element with the given tag name in
	// document order.
	ElementsByTag(tag string) []MarkupElement
}

// MarkupElement is a single element of a MarkupDocument.
type MarkupElement interface {
	Tag() string
	Attr(name string) (string, bool)
	SetAttr(name, value string)
	Text() string
	Children() []MarkupElement
	// InnerMarkup serializes the element's children back to text.
	InnerMarkup() (string, error)
}

// GoqueryParser is the goquery-backed MarkupParser. The zero value is ready
// to use and holds no state between calls.
type GoqueryParser struct{}

// Parse parses XHTML (or HTML) content.
func (GoqueryParser) Parse(data []byte) (MarkupDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XHTML: %w", err)
	}
	return &goqueryDocument{doc: doc}, nil
}

// ParseFragment parses content the way a browser parses the inside of
// <body>: unclosed elements are closed and stray markup is repaired.
func (GoqueryParser) ParseFragment(data []byte) (MarkupDocument, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(data), body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page content: %w", err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	root := &html.Node{Type: html.DocumentNode}
	htmlNode := &html.Node{Type: html.ElementNode, Data: "html", DataAtom: atom.Html}
	root.AppendChild(htmlNode)
	htmlNode.AppendChild(body)
	return &goqueryDocument{doc: goquery.NewDocumentFromNode(root)}, nil
}

type goqueryDocument struct {
	doc *goquery.Document
}

func (d *goqueryDocument) ElementsByTag(tag string) []MarkupElement {
	return wrapSelection(d.doc.Find(tag))
}

type goqueryElement struct {
	sel *goquery.Selection
}

func wrapSelection(sel *goquery.Selection) []MarkupElement {
	elements := make([]MarkupElement, 0, sel.Length())
	sel.Each(func(i int, s *goquery.Selection) {
		elements = append(elements, &goqueryElement{sel: s})
	})
	return elements
}

func (e *goqueryElement) Tag() string {
	node := e.sel.Get(0)
	if node == nil || node.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(node.Data)
}

func (e *goqueryElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e *goqueryElement) SetAttr(name, value string) {
	e.sel.SetAttr(name, value)
}

func (e *goqueryElement) Text() string {
	return e.sel.Text()
}

func (e *goqueryElement) Children() []MarkupElement {
	return wrapSelection(e.sel.Children())
}

func (e *goqueryElement) InnerMarkup() (string, error) {
	inner, err := e.sel.Html()
	if err != nil {
		return "", fmt.Errorf("failed to serialize <%s>: %w", e.Tag(), err)
	}
	return inner, nil
}

// HasClass reports whether el carries class in its class attribute.
func HasClass(el MarkupElement, class string) bool {
	attr, ok := el.Attr("class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(attr) {
		if c == class {
			return true
		}
	}
	return false
}
