// Package archive extracts plain and self-extracting zip archives.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	sierrors "github.com/jsettlers-installer/installer/client/errors"
)

const scanChunkSize = 64 * 1024

var localFileHeader = []byte("PK\x03\x04")

// Extract expands the zip at archivePath into target. Executable stubs in front of
// the zip data are skipped.
func Extract(archivePath, target string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}

	return ExtractReader(f, stat.Size(), target)
}

// ExtractReader expands the zip data held by r into target. Nothing is written when
// any entry would land outside target.
func ExtractReader(r io.ReaderAt, size int64, target string) error {
	zr, err := openZip(r, size)
	if err != nil {
		return err
	}

	target = filepath.Clean(target)
	for _, f := range zr.File {
		if _, err := destination(target, f.Name); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("create target %s: %w", target, err)
	}

	var dirs []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			dirs = append(dirs, f)
		}
		if err := extractFile(target, f); err != nil {
			return err
		}
	}

	// directory times last, writing files into them moves their mtime
	for i := len(dirs) - 1; i >= 0; i-- {
		path, _ := destination(target, dirs[i].Name)
		setModified(path, dirs[i].Modified)
	}

	log.Debugf("extracted %d entries to %s", len(zr.File), target)
	return nil
}

// openZip hands the zip data to archive/zip, starting at the first local file header.
// Plain archives start with one, self-extracting ones carry an executable stub first.
func openZip(r io.ReaderAt, size int64) (*zip.Reader, error) {
	offset, err := payloadOffset(r, size)
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		log.Debugf("skipping a %d byte stub in front of the zip data", offset)
	}

	zr, err := newZipReader(io.NewSectionReader(r, offset, size-offset), size-offset)
	if err != nil {
		return nil, fmt.Errorf("not a zip archive: %w", err)
	}
	return zr, nil
}

// payloadOffset returns the position of the first local file header signature.
func payloadOffset(r io.ReaderAt, size int64) (int64, error) {
	// chunks overlap so a signature spanning two of them is still found
	buf := make([]byte, scanChunkSize+len(localFileHeader)-1)
	for base := int64(0); base < size; base += scanChunkSize {
		n, err := r.ReadAt(buf, base)
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("scan archive: %w", err)
		}
		if pos := bytes.Index(buf[:n], localFileHeader); pos >= 0 {
			return base + int64(pos), nil
		}
		if n < len(buf) {
			break
		}
	}
	return 0, errors.New("not a zip archive: no local file header")
}

func newZipReader(r io.ReaderAt, size int64) (*zip.Reader, error) {
	zr, err := zip.NewReader(r, size)
	// entry names are validated by destination
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, err
	}
	if len(zr.File) == 0 {
		return nil, errors.New("archive has no entries")
	}
	return zr, nil
}

// destination resolves the path of an entry and rejects names escaping target.
func destination(target, name string) (string, error) {
	path := filepath.Join(target, filepath.FromSlash(name))
	if path != target && !strings.HasPrefix(path, target+string(os.PathSeparator)) {
		return "", &sierrors.SecurityError{Entry: name, Target: target}
	}
	return path, nil
}

func extractFile(target string, f *zip.File) error {
	path, err := destination(target, f.Name)
	if err != nil {
		return err
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
		return nil
	}

	if f.Mode()&os.ModeSymlink != 0 {
		log.Debugf("skipping symbolic link %s", f.Name)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", filepath.Dir(path), err)
	}

	if err := writeFile(path, f); err != nil {
		return err
	}
	setModified(path, f.Modified)
	return nil
}

func writeFile(path string, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func setModified(path string, modified time.Time) {
	if modified.IsZero() {
		return
	}
	if err := os.Chtimes(path, modified, modified); err != nil {
		log.Debugf("failed to set modification time of %s: %v", path, err)
	}
}
