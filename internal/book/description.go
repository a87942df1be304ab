package book

import (
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DescriptionFile is the file name used by SaveDescription.
const DescriptionFile = "book.yaml"

// description is the on-disk shape of a book description. Page content and
// asset payloads may live in sibling files referenced relative to the
// description's directory.
type description struct {
	Book  `yaml:",inline"`
	Pages []pageEntry  `yaml:"pages"`
	Files []assetEntry `yaml:"assets,omitempty"`
}

type pageEntry struct {
	Page        `yaml:",inline"`
	ContentFile string `yaml:"contentFile,omitempty"`
	StylesFile  string `yaml:"stylesFile,omitempty"`
}

type assetEntry struct {
	Key       string `yaml:"key"`
	MediaType string `yaml:"mediaType,omitempty"`
	File      string `yaml:"file"`
	Cover     bool   `yaml:"cover,omitempty"`
}

// LoadDescription reads a YAML (or JSON) book description and returns the
// book and its ordered pages. Page numbers are assigned from list position
// when absent.
func LoadDescription(filename string) (*Book, []Page, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read book description: %w", err)
	}
	return ParseDescription(data, filepath.Dir(filename))
}

// ParseDescription parses a book description. Relative file references are
// resolved against baseDir.
func ParseDescription(data []byte, baseDir string) (*Book, []Page, error) {
	var d description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, nil, fmt.Errorf("failed to parse book description: %w", err)
	}

	b := d.Book
	if b.LayoutMode == "" {
		b.LayoutMode = LayoutReflow
	}
	if !b.LayoutMode.Valid() {
		return nil, nil, fmt.Errorf("unknown layout mode %q", b.LayoutMode)
	}

	pages := make([]Page, 0, len(d.Pages))
	for i, entry := range d.Pages {
		p := entry.Page
		if entry.ContentFile != "" {
			content, err := os.ReadFile(filepath.Join(baseDir, entry.ContentFile))
			if err != nil {
				return nil, nil, fmt.Errorf("page %d: failed to read content: %w", i+1, err)
			}
			p.Content = string(content)
		}
		if entry.StylesFile != "" {
			styles, err := os.ReadFile(filepath.Join(baseDir, entry.StylesFile))
			if err != nil {
				return nil, nil, fmt.Errorf("page %d: failed to read styles: %w", i+1, err)
			}
			p.Styles = string(styles)
		}
		if p.PageNumber == 0 {
			p.PageNumber = i + 1
		}
		if p.Type == "" {
			p.Type = PageContent
		}
		pages = append(pages, p)
	}

	for _, entry := range d.Files {
		payload, err := os.ReadFile(filepath.Join(baseDir, entry.File))
		if err != nil {
			return nil, nil, fmt.Errorf("asset %q: %w", entry.Key, err)
		}
		mediaType := entry.MediaType
		if mediaType == "" {
			mediaType = mediaTypeFromName(entry.Key)
		}
		b.Assets = append(b.Assets, Asset{
			Key:       entry.Key,
			MediaType: mediaType,
			Data:      payload,
			Cover:     entry.Cover,
		})
	}

	return &b, pages, nil
}

// SaveDescription writes b and pages under dir: one content file per page,
// one shared stylesheet when pages carry styles, every asset under assets/,
// and a book.yaml tying them together.
func SaveDescription(dir string, b *Book, pages []Page) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	d := description{Book: *b}

	styleFiles := make(map[string]string)
	for i, p := range pages {
		entry := pageEntry{Page: p}
		entry.ContentFile = fmt.Sprintf("pages/page-%d.html", i+1)
		if err := writeFile(dir, entry.ContentFile, []byte(p.Content)); err != nil {
			return err
		}
		entry.Content = ""

		if p.Styles != "" {
			name, ok := styleFiles[p.Styles]
			if !ok {
				name = fmt.Sprintf("styles/style-%d.css", len(styleFiles)+1)
				if err := writeFile(dir, name, []byte(p.Styles)); err != nil {
					return err
				}
				styleFiles[p.Styles] = name
			}
			entry.StylesFile = name
			entry.Styles = ""
		}
		d.Pages = append(d.Pages, entry)
	}

	for _, a := range b.Assets {
		name := path.Join("assets", safeRelPath(a.Key))
		if err := writeFile(dir, name, a.Data); err != nil {
			return err
		}
		d.Files = append(d.Files, assetEntry{
			Key:       a.Key,
			MediaType: a.MediaType,
			File:      name,
			Cover:     a.Cover,
		})
	}

	out, err := yaml.Marshal(&d)
	if err != nil {
		return fmt.Errorf("failed to encode book description: %w", err)
	}
	return writeFile(dir, DescriptionFile, out)
}

func writeFile(dir, name string, data []byte) error {
	full := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// safeRelPath keeps a manifest href inside the output directory.
func safeRelPath(p string) string {
	cleaned := path.Clean("/" + p)
	return strings.TrimPrefix(cleaned, "/")
}

func mediaTypeFromName(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(name))); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return "application/octet-stream"
}
