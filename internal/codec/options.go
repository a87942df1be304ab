package codec

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/yuanying/bookpack/internal/epub"
)

const defaultWorkers = 4

// EncoderOptions configures an Encoder.
type EncoderOptions struct {
	// Workers bounds concurrent page generation. Defaults to 4.
	Workers int
	Logger  *slog.Logger
	// Now stamps the package's last-modified metadata. Defaults to time.Now.
	Now func() time.Time
	// NewIdentifier generates a package identifier for books without an ID.
	// Defaults to a random urn:uuid.
	NewIdentifier func() string
	// Images optimizes embedded image assets. Nil writes them unchanged.
	Images *ImageOptimizer
	// Markup normalizes page content into well-formed markup. Defaults to
	// epub.GoqueryParser.
	Markup epub.MarkupParser
}

// DecoderOptions configures a Decoder.
type DecoderOptions struct {
	// Workers bounds concurrent resource reads. Defaults to 4.
	Workers int
	Logger  *slog.Logger
	// Markup parses page documents. Defaults to epub.GoqueryParser.
	Markup epub.MarkupParser
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newUUIDURN returns a random version 4 UUID as a URN.
func newUUIDURN() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("urn:uuid:%d", time.Now().UnixNano())
	}
	b[6] = (b[6] & 0x0F) | 0x40
	b[8] = (b[8] & 0x3F) | 0x80
	return fmt.Sprintf("urn:uuid:%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
