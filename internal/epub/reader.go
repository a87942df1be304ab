package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// container.xml structure
type container struct {
	XMLName   xml.Name `xml:"container"`
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// ParseContainer extracts the package document path from container.xml.
// A rootfile with the package media type is preferred; otherwise the first
// non-empty rootfile is used.
func ParseContainer(content []byte) (string, error) {
	var c container
	if err := xml.Unmarshal(stripBOM(content), &c); err != nil {
		return "", &FormatError{Reason: ErrMissingRootfile.Reason, Err: fmt.Errorf("failed to parse container.xml: %w", err)}
	}

	var fallback string
	for _, rf := range c.Rootfiles.Rootfile {
		fullPath := strings.TrimSpace(rf.FullPath)
		if fullPath == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(rf.MediaType), PackageMediaType) {
			return normalizePath(fullPath), nil
		}
		if fallback == "" {
			fallback = fullPath
		}
	}
	if fallback == "" {
		return "", &FormatError{Reason: ErrMissingRootfile.Reason}
	}
	return normalizePath(fallback), nil
}

// BuildContainer renders a container.xml pointing at packagePath.
func BuildContainer(packagePath string) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">` + "\n")
	b.WriteString("  <rootfiles>\n")
	fmt.Fprintf(&b, `    <rootfile full-path="%s" media-type="%s"/>`+"\n", escapeXML(packagePath), PackageMediaType)
	b.WriteString("  </rootfiles>\n")
	b.WriteString("</container>\n")
	return []byte(b.String())
}

// ReadPackage locates and parses the package document of an archive.
// The three failures that make a package unreadable are reported as
// *FormatError: ErrMissingContainer, ErrMissingRootfile, ErrMissingPackage.
func ReadPackage(r ArchiveReader) (*Package, error) {
	containerData, err := r.ReadEntry(ContainerPath)
	if err != nil {
		return nil, &FormatError{Reason: ErrMissingContainer.Reason, Err: err}
	}

	opfPath, err := ParseContainer(containerData)
	if err != nil {
		return nil, err
	}

	opfData, err := r.ReadEntry(opfPath)
	if err != nil {
		return nil, &FormatError{Reason: ErrMissingPackage.Reason, Err: err}
	}

	pkg, err := ParsePackage(opfData, opfPath)
	if err != nil {
		return nil, &FormatError{Reason: ErrMissingPackage.Reason, Err: err}
	}
	return pkg, nil
}

// stripBOM removes a leading UTF-8 byte order mark.
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
}

// escapeXML escapes s for use in XML text and attribute values.
func escapeXML(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}
