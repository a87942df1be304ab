package epub

import (
	"strings"
	"testing"
)

const testPageXHTML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
	<title>Chapter 1</title>
</head>
<body><div class="wrap page-content"><h1>Chapter 1</h1><p>Text</p><img src="../images/photo.jpg" alt="Sample photo"/><img alt="no source"/></div></body>
</html>`

func parseTestPage(t *testing.T) MarkupDocument {
	t.Helper()
	doc, err := GoqueryParser{}.Parse([]byte(testPageXHTML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func TestGoqueryParser_Images(t *testing.T) {
	doc := parseTestPage(t)

	imgs := doc.ElementsByTag("img")
	if len(imgs) != 2 {
		t.Fatalf("img count = %d, want 2", len(imgs))
	}
	src, ok := imgs[0].Attr("src")
	if !ok || src != "../images/photo.jpg" {
		t.Errorf("src = %q, %v", src, ok)
	}
	if _, ok := imgs[1].Attr("src"); ok {
		t.Error("second image should have no src")
	}

	imgs[0].SetAttr("src", "images/photo.jpg")
	body := doc.ElementsByTag("body")[0]
	inner, err := body.InnerMarkup()
	if err != nil {
		t.Fatalf("InnerMarkup failed: %v", err)
	}
	if !strings.Contains(inner, `src="images/photo.jpg"`) {
		t.Errorf("rewritten src missing from %q", inner)
	}
}

func TestGoqueryParser_TreeAccess(t *testing.T) {
	doc := parseTestPage(t)

	titles := doc.ElementsByTag("title")
	if len(titles) != 1 || strings.TrimSpace(titles[0].Text()) != "Chapter 1" {
		t.Fatalf("title lookup failed")
	}

	body := doc.ElementsByTag("body")[0]
	children := body.Children()
	if len(children) != 1 {
		t.Fatalf("body children = %d, want 1", len(children))
	}
	div := children[0]
	if div.Tag() != "div" {
		t.Errorf("Tag = %q, want div", div.Tag())
	}
	if !HasClass(div, PageContainerClass) || !HasClass(div, "wrap") || HasClass(div, "page") {
		t.Error("HasClass mismatch")
	}

	grandChildren := div.Children()
	tags := make([]string, len(grandChildren))
	for i, c := range grandChildren {
		tags[i] = c.Tag()
	}
	if got := strings.Join(tags, ","); got != "h1,p,img,img" {
		t.Errorf("child tags = %s", got)
	}

	inner, err := div.InnerMarkup()
	if err != nil {
		t.Fatalf("InnerMarkup failed: %v", err)
	}
	if !strings.HasPrefix(inner, "<h1>Chapter 1</h1><p>Text</p>") {
		t.Errorf("InnerMarkup = %q", inner)
	}
}

func TestHasClass_NoAttribute(t *testing.T) {
	doc := parseTestPage(t)
	if HasClass(doc.ElementsByTag("h1")[0], "page-content") {
		t.Error("element without class attribute matched")
	}
}

func TestBuildPage_Reflow(t *testing.T) {
	out := string(BuildPage(PageDocument{
		Title:       "Intro & Setup",
		Content:     "<p>Hello</p>",
		Styles:      "p { color: red; } </style><script>",
		Stylesheets: []string{"../styles/base.css", "../styles/page.css"},
	}))

	for _, want := range []string{
		"<title>Intro &amp; Setup</title>",
		`<link rel="stylesheet" type="text/css" href="../styles/base.css"/>`,
		`<link rel="stylesheet" type="text/css" href="../styles/page.css"/>`,
		`<div class="page-content"><p>Hello</p></div>`,
		`<\/style><script>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("page missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, `name="viewport"`) {
		t.Error("reflowable page must not declare a viewport")
	}
	if strings.Count(out, "</style>") != 1 {
		t.Error("inline styles must not close the style element early")
	}
}

func TestBuildPage_Fixed(t *testing.T) {
	out := string(BuildPage(PageDocument{
		Title:   "Page 1",
		Content: "<p>x</p>",
		Fixed:   &FixedSize{Width: 600, Height: 800, Unit: "px"},
	}))

	if !strings.Contains(out, `<meta name="viewport" content="width=600, height=800"/>`) {
		t.Errorf("viewport meta missing:\n%s", out)
	}
	if !strings.Contains(out, `style="width:600px;height:800px"`) {
		t.Errorf("container size missing:\n%s", out)
	}
	if strings.Contains(out, "<style>") {
		t.Error("no inline style expected without page styles")
	}
}

func TestBuildPage_ParsesBackToContent(t *testing.T) {
	out := BuildPage(PageDocument{Title: "T", Content: `<p class="a">One</p><p>Two</p>`})

	doc, err := GoqueryParser{}.Parse(out)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	children := doc.ElementsByTag("body")[0].Children()
	if len(children) != 1 || !HasClass(children[0], PageContainerClass) {
		t.Fatalf("expected a single page container")
	}
	inner, err := children[0].InnerMarkup()
	if err != nil {
		t.Fatalf("InnerMarkup failed: %v", err)
	}
	if inner != `<p class="a">One</p><p>Two</p>` {
		t.Errorf("inner = %q", inner)
	}
}

func TestGoqueryParser_ParseFragment(t *testing.T) {
	doc, err := GoqueryParser{}.ParseFragment([]byte(`Tom & Jerry<p>a<br>b&nbsp;c<img src="x.png" alt=fig></p><p>open`))
	if err != nil {
		t.Fatalf("ParseFragment failed: %v", err)
	}

	bodies := doc.ElementsByTag("body")
	if len(bodies) != 1 {
		t.Fatalf("body count = %d, want 1", len(bodies))
	}
	imgs := doc.ElementsByTag("img")
	if len(imgs) != 1 {
		t.Fatalf("img count = %d, want 1", len(imgs))
	}
	imgs[0].SetAttr("src", "../x.png")

	inner, err := bodies[0].InnerMarkup()
	if err != nil {
		t.Fatalf("InnerMarkup failed: %v", err)
	}
	want := "Tom &amp; Jerry<p>a<br/>b\u00a0c<img src=\"../x.png\" alt=\"fig\"/></p><p>open</p>"
	if inner != want {
		t.Errorf("InnerMarkup = %q, want %q", inner, want)
	}
}
