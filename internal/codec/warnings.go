package codec

import (
	"fmt"
	"log/slog"
)

// WarningKind classifies a recoverable decode condition.
type WarningKind int

const (
	// ResourceWarning: an asset, stylesheet or page could not be read and
	// was omitted.
	ResourceWarning WarningKind = iota + 1
	// ValidationWarning: a structural inconsistency (dangling spine idref,
	// duplicate manifest id) whose offending entry was skipped.
	ValidationWarning
)

func (k WarningKind) String() string {
	switch k {
	case ResourceWarning:
		return "resource"
	case ValidationWarning:
		return "validation"
	}
	return fmt.Sprintf("WarningKind(%d)", int(k))
}

// Warning is a recoverable problem met while decoding.
type Warning struct {
	Kind    WarningKind
	Path    string
	Message string
}

func (w Warning) String() string {
	if w.Path == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Path, w.Message)
}

// warningList accumulates warnings and mirrors each one to the logger.
type warningList struct {
	logger *slog.Logger
	items  []Warning
}

func (l *warningList) add(kind WarningKind, path, format string, args ...any) {
	w := Warning{Kind: kind, Path: path, Message: fmt.Sprintf(format, args...)}
	l.logger.Warn("decode warning", "kind", kind.String(), "path", path, "message", w.Message)
	l.items = append(l.items, w)
}
