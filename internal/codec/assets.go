package codec

import (
	"fmt"

	"github.com/yuanying/bookpack/internal/book"
	"github.com/yuanying/bookpack/internal/epub"
)

// MatchKind is the outcome of resolving an image reference against the
// asset table.
type MatchKind int

const (
	Unresolved MatchKind = iota
	ExactMatch
	FilenameFallback
)

func (k MatchKind) String() string {
	switch k {
	case Unresolved:
		return "unresolved"
	case ExactMatch:
		return "exact"
	case FilenameFallback:
		return "filename-fallback"
	}
	return fmt.Sprintf("MatchKind(%d)", int(k))
}

// AssetMatch is the result of AssetTable.Match. Key is empty when Kind is
// Unresolved.
type AssetMatch struct {
	Kind MatchKind
	Key  string
}

// AssetTable holds decoded assets keyed by manifest href, remembering
// insertion order.
type AssetTable struct {
	keys   []string
	assets map[string]book.Asset
}

// NewAssetTable creates an empty table.
func NewAssetTable() *AssetTable {
	return &AssetTable{assets: make(map[string]book.Asset)}
}

// Add registers a under a.Key. It returns false, leaving the table unchanged,
// when the key is already present.
func (t *AssetTable) Add(a book.Asset) bool {
	if _, exists := t.assets[a.Key]; exists {
		return false
	}
	t.keys = append(t.keys, a.Key)
	t.assets[a.Key] = a
	return true
}

// Get returns the asset stored under key.
func (t *AssetTable) Get(key string) (book.Asset, bool) {
	a, ok := t.assets[key]
	return a, ok
}

// Len returns the number of assets.
func (t *AssetTable) Len() int {
	return len(t.keys)
}

// Keys returns the asset keys in insertion order.
func (t *AssetTable) Keys() []string {
	return append([]string(nil), t.keys...)
}

// All returns the assets in insertion order.
func (t *AssetTable) All() []book.Asset {
	out := make([]book.Asset, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, t.assets[k])
	}
	return out
}

// Match resolves an image source reference: an exact key match first, then
// the first key sharing its filename.
func (t *AssetTable) Match(src string) AssetMatch {
	if src == "" {
		return AssetMatch{Kind: Unresolved}
	}
	if _, ok := t.assets[src]; ok {
		return AssetMatch{Kind: ExactMatch, Key: src}
	}
	if key, ok := epub.MatchByFilename(t.keys, src); ok {
		return AssetMatch{Kind: FilenameFallback, Key: key}
	}
	return AssetMatch{Kind: Unresolved}
}
