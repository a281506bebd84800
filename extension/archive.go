package extension

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

// crxMagic starts every Chrome extension package. The zip payload follows a
// version dependent header.
var crxMagic = []byte("Cr24") //nolint:gochecknoglobals

// zipOffset returns where the zip payload of a package starts: past the
// header for CRX2 and CRX3 packages, at 0 for anything else.
func zipOffset(r io.ReaderAt, size int64) (int64, error) {
	var hdr [16]byte
	n, err := r.ReadAt(hdr[:], 0)
	if n < 4 || !bytes.Equal(hdr[:4], crxMagic) {
		return 0, nil //nolint:nilerr
	}
	if n < 12 {
		return 0, fmt.Errorf("truncated crx header: %w", err)
	}

	var offset int64
	switch version := binary.LittleEndian.Uint32(hdr[4:8]); version {
	case 2:
		if n < 16 {
			return 0, fmt.Errorf("truncated crx2 header: %w", err)
		}
		pubKeyLen := int64(binary.LittleEndian.Uint32(hdr[8:12]))
		sigLen := int64(binary.LittleEndian.Uint32(hdr[12:16]))
		offset = 16 + pubKeyLen + sigLen
	case 3:
		offset = 12 + int64(binary.LittleEndian.Uint32(hdr[8:12]))
	default:
		return 0, fmt.Errorf("unsupported crx version %d", version)
	}
	if offset > size {
		return 0, fmt.Errorf("crx header of %d bytes exceeds package size %d", offset, size)
	}
	return offset, nil
}

// unpack extracts the zip or crx package at src into the existing directory
// dst. Any failing entry aborts the whole extraction.
func unpack(fs afero.Fs, src, dst string) (err error) {
	f, err := fs.Open(src)
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	fi, err := f.Stat()
	if err != nil {
		return err //nolint:wrapcheck
	}
	offset, err := zipOffset(f, fi.Size())
	if err != nil {
		return err
	}
	payload := io.NewSectionReader(f, offset, fi.Size()-offset)
	zr, err := zip.NewReader(payload, payload.Size())
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}

	for _, entry := range zr.File {
		if err := extractEntry(fs, entry, dst); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(fs afero.Fs, entry *zip.File, dst string) error {
	target, err := entryPath(dst, entry.Name)
	if err != nil {
		return err
	}

	if entry.FileInfo().IsDir() {
		return fs.MkdirAll(target, 0o755) //nolint:wrapcheck
	}
	if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err //nolint:wrapcheck
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", entry.Name, err)
	}
	defer func() { _ = rc.Close() }()

	perm := entry.Mode().Perm() | 0o600
	out, err := fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err //nolint:wrapcheck
	}
	if _, err := io.Copy(out, rc); err != nil { //nolint:gosec
		_ = out.Close()
		return fmt.Errorf("writing %s: %w", entry.Name, err)
	}
	return out.Close() //nolint:wrapcheck
}

var errEscapingEntry = errors.New("entry escapes the destination directory")

// entryPath resolves the name of an archive entry under dst, refusing
// absolute names and names climbing out of dst.
func entryPath(dst, name string) (string, error) {
	clean := filepath.FromSlash(name)
	if filepath.IsAbs(clean) || strings.HasPrefix(name, "/") || filepath.VolumeName(clean) != "" {
		return "", fmt.Errorf("%q: %w", name, errEscapingEntry)
	}
	target := filepath.Join(dst, clean)
	rel, err := filepath.Rel(dst, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", name, errEscapingEntry)
	}
	return target, nil
}
