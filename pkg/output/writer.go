// Package output persists fetch results as indented JSON files.
package output

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

// Indent is the indentation of written documents.
const Indent = "    "

// GzipSuffix selects gzip compression when a path ends with it.
const GzipSuffix = ".gz"

// ErrInvalidPath is returned for an empty or directory-like output path.
var ErrInvalidPath = errors.New("invalid output path")

// Options controls how files are written.
type Options struct {
	// PermFile and PermDir default to 0o644 and 0o755.
	PermFile os.FileMode
	PermDir  os.FileMode

	// Gzip compresses the output. A path ending in ".gz" enables it too.
	Gzip bool

	// BufSize is the write buffer size; <= 0 uses 64 KiB.
	BufSize int
}

func (o Options) withDefaults() Options {
	if o.PermFile == 0 {
		o.PermFile = 0o644
	}
	if o.PermDir == 0 {
		o.PermDir = 0o755
	}
	if o.BufSize <= 0 {
		o.BufSize = 64 * 1024
	}
	return o
}

// WriteJSON encodes v as four-space indented JSON and replaces path with it.
// The document is written to a temporary file in the same directory and
// renamed over path, so readers never see a partial file.
func WriteJSON(path string, v any, opts Options) error {
	if strings.TrimSpace(path) == "" || strings.HasSuffix(path, string(filepath.Separator)) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	opts = opts.withDefaults()

	data, err := json.MarshalIndent(v, "", Indent)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, opts.PermDir); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	compress := opts.Gzip || strings.HasSuffix(path, GzipSuffix)
	if err := writeAtomic(path, data, compress, opts); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	log.Info().
		Str("component", "output").
		Str("path", path).
		Int("bytes", len(data)).
		Bool("gzip", compress).
		Msg("Wrote output file")
	return nil
}

func writeAtomic(dest string, data []byte, compress bool, opts Options) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, opts.PermFile)

	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	bw := bufio.NewWriterSize(tmp, opts.BufSize)
	if err := encode(bw, data, compress); err != nil {
		return cleanup(err)
	}
	if err := bw.Flush(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func encode(w io.Writer, data []byte, compress bool) error {
	if !compress {
		_, err := w.Write(data)
		return err
	}

	zw := gzip.NewWriter(w)
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// ReadJSON decodes the file at path into v, transparently decompressing
// gzip files.
func ReadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, GzipSuffix) {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("open gzip %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
