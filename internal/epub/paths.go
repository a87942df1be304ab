package epub

import (
	"net/url"
	"path"
	"strings"
)

// Resolve joins baseDir and href with exactly one separator.
// An empty baseDir returns href unchanged.
func Resolve(baseDir, href string) string {
	if baseDir == "" {
		return href
	}
	return strings.TrimRight(baseDir, "/") + "/" + strings.TrimLeft(href, "/")
}

// MatchByFilename returns the first key, in the given order, whose last path
// segment equals the last path segment of src.
//
// Two keys sharing a filename in different directories cannot be told apart;
// the earlier one always wins.
func MatchByFilename(keys []string, src string) (string, bool) {
	name := lastSegment(src)
	if name == "" {
		return "", false
	}
	for _, key := range keys {
		if lastSegment(key) == name {
			return key, true
		}
	}
	return "", false
}

func lastSegment(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// ParentDir returns the directory part of an archive path, or "" for paths at
// the archive root.
func ParentDir(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// normalizePath turns an archive reference into the form entries are stored
// under: forward slashes, no leading "./" or "/", and "." / ".." segments
// collapsed. It returns "" for paths escaping the archive root.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return ""
	}
	return cleaned
}

// unescapePath percent-decodes an href, returning it unchanged when it is not
// valid percent-encoding.
func unescapePath(p string) string {
	if decoded, err := url.PathUnescape(p); err == nil {
		return decoded
	}
	return p
}
