package codec

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yuanying/bookpack/internal/book"
	"github.com/yuanying/bookpack/internal/epub"
)

// memArchive is an in-memory epub.ArchiveReader.
type memArchive struct {
	mu    sync.Mutex
	files map[string][]byte
	reads []string
}

func newMemArchive(entries []epub.Entry) *memArchive {
	a := &memArchive{files: make(map[string][]byte, len(entries))}
	for _, e := range entries {
		a.files[e.Path] = e.Data
	}
	return a
}

func (a *memArchive) ReadEntry(name string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reads = append(a.reads, name)
	data, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", epub.ErrEntryNotFound, name)
	}
	return data, nil
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
}

func testEncoder() *Encoder {
	return NewEncoder(EncoderOptions{
		Now:           fixedNow,
		NewIdentifier: func() string { return "urn:uuid:test" },
	})
}

func testPages(n int) []book.Page {
	pages := make([]book.Page, n)
	for i := range pages {
		pages[i] = book.Page{
			ID:         fmt.Sprintf("p%d", i+1),
			Name:       fmt.Sprintf("Chapter %d", i+1),
			Content:    fmt.Sprintf("<p>Body %d</p>", i+1),
			PageNumber: i + 1,
			Type:       book.PageContent,
		}
	}
	return pages
}

func encodeEntries(t *testing.T, b *book.Book, pages []book.Page, mode book.LayoutMode) []epub.Entry {
	t.Helper()
	entries, err := testEncoder().Encode(context.Background(), b, pages, mode)
	require.NoError(t, err)
	return entries
}

func entryPaths(entries []epub.Entry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths
}

func findEntry(t *testing.T, entries []epub.Entry, path string) epub.Entry {
	t.Helper()
	for _, e := range entries {
		if e.Path == path {
			return e
		}
	}
	t.Fatalf("entry %s not found in %v", path, entryPaths(entries))
	return epub.Entry{}
}

// testPNG returns a solid w x h PNG.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
