package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"hash/crc32"
	"io"
	"sort"
	"time"

	"github.com/klauspost/compress/flate"
)

// maxEntrySize bounds the decompressed size of a single archive entry.
const maxEntrySize int64 = 256 * 1024 * 1024

// Entry is one file of a package, in the order it must be written.
// Store requests the entry be written without compression.
type Entry struct {
	Path  string
	Data  []byte
	Store bool
}

// ArchiveReader reads entries of a package archive. Implementations must be
// safe for concurrent ReadEntry calls and return ErrEntryNotFound for absent
// entries.
type ArchiveReader interface {
	ReadEntry(name string) ([]byte, error)
}

// ArchiveWriter writes entries of a package archive in call order.
type ArchiveWriter interface {
	WriteEntry(name string, data []byte, store bool) error
	Close() error
}

// ZipReader is the zip-backed ArchiveReader.
type ZipReader struct {
	zr    *zip.Reader
	files map[string]*zip.File
	limit int64
}

// NewZipReader opens a zip archive from r.
func NewZipReader(r io.ReaderAt, size int64) (*ZipReader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)

	reader := &ZipReader{
		zr:    zr,
		files: make(map[string]*zip.File, len(zr.File)),
		limit: maxEntrySize,
	}
	for _, f := range zr.File {
		name := normalizePath(f.Name)
		if name == "" {
			continue
		}
		if _, dup := reader.files[name]; !dup {
			reader.files[name] = f
		}
	}
	return reader, nil
}

// OpenZipBytes opens an in-memory zip archive.
func OpenZipBytes(data []byte) (*ZipReader, error) {
	return NewZipReader(bytes.NewReader(data), int64(len(data)))
}

// Names returns all entry names in sorted order.
func (r *ZipReader) Names() []string {
	names := make([]string, 0, len(r.files))
	for name := range r.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stored reports whether the named entry exists and uses the Store method.
func (r *ZipReader) Stored(name string) bool {
	f, ok := r.lookup(name)
	return ok && f.Method == zip.Store
}

// ReadEntry reads the named entry. Names are normalized and, failing an exact
// match, percent-decoded before lookup.
func (r *ZipReader) ReadEntry(name string) ([]byte, error) {
	f, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	if f.UncompressedSize64 > uint64(r.limit) {
		return nil, fmt.Errorf("entry %s too large: %d bytes (max %d)", name, f.UncompressedSize64, r.limit)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open entry %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, r.limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", name, err)
	}
	if int64(len(data)) > r.limit {
		return nil, fmt.Errorf("entry %s decompressed size exceeds limit (%d bytes)", name, r.limit)
	}
	return data, nil
}

func (r *ZipReader) lookup(name string) (*zip.File, bool) {
	norm := normalizePath(name)
	if norm == "" {
		return nil, false
	}
	if f, ok := r.files[norm]; ok {
		return f, true
	}
	if decoded := normalizePath(unescapePath(name)); decoded != "" && decoded != norm {
		if f, ok := r.files[decoded]; ok {
			return f, true
		}
	}
	return nil, false
}

// ZipWriter is the zip-backed ArchiveWriter. Each encode owns its own writer.
type ZipWriter struct {
	zw       *zip.Writer
	modified time.Time
}

// NewZipWriter creates a ZipWriter writing to w. Entries are stamped with
// modified.
func NewZipWriter(w io.Writer, modified time.Time) *ZipWriter {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	return &ZipWriter{zw: zw, modified: modified}
}

// WriteEntry appends an entry. Stored entries are written raw: sizes in the
// local header, no data descriptor and no extra field, as readers expect of
// the leading mimetype entry.
func (w *ZipWriter) WriteEntry(name string, data []byte, store bool) error {
	if store {
		fh := &zip.FileHeader{
			Name:               name,
			Method:             zip.Store,
			CreatorVersion:     20,
			ReaderVersion:      20,
			CRC32:              crc32.ChecksumIEEE(data),
			CompressedSize64:   uint64(len(data)),
			UncompressedSize64: uint64(len(data)),
		}
		fw, err := w.zw.CreateRaw(fh)
		if err != nil {
			return fmt.Errorf("failed to create entry %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("failed to write entry %s: %w", name, err)
		}
		return nil
	}

	fw, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: w.modified,
	})
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", name, err)
	}
	return nil
}

// Close finishes the archive's central directory.
func (w *ZipWriter) Close() error {
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

// WriteEntries writes entries to w in order.
func WriteEntries(w ArchiveWriter, entries []Entry) error {
	for _, e := range entries {
		if err := w.WriteEntry(e.Path, e.Data, e.Store); err != nil {
			return err
		}
	}
	return nil
}
