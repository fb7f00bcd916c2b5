package spool

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"resume-wizard/internal/shared/util"
)

// sniffLen matches the amount of data mimetype inspects by default.
const sniffLen = 3072

// File describes one spooled upload.
type File struct {
	Path      string
	Name      string
	MediaType string
	Size      int64
}

// Spool keeps transient copies of uploaded files on local disk.
type Spool struct {
	baseDir string
}

// New creates a spool rooted at baseDir. The directory is created lazily.
func New(baseDir string) *Spool {
	return &Spool{baseDir: baseDir}
}

// Dir returns the spool directory.
func (s *Spool) Dir() string {
	return s.baseDir
}

// Save copies r to a uniquely named file. When declaredType is empty or generic the
// media type is sniffed from the leading bytes.
func (s *Spool) Save(ctx context.Context, fileName string, declaredType string, r io.Reader) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		sanitized = "upload"
	}
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return File{}, fmt.Errorf("spool mkdir: %w", err)
	}

	fullPath := filepath.Join(s.baseDir, fmt.Sprintf("%s_%s", randomID(), sanitized))
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return File{}, fmt.Errorf("spool open: %w", err)
	}

	out := File{Path: fullPath, Name: sanitized}
	if err := s.copyInto(f, r, declaredType, &out); err != nil {
		_ = f.Close()
		_ = os.Remove(fullPath)
		return File{}, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(fullPath)
		return File{}, fmt.Errorf("spool close: %w", err)
	}
	return out, nil
}

func (s *Spool) copyInto(f *os.File, r io.Reader, declaredType string, out *File) error {
	sniff := make([]byte, sniffLen)
	n, readErr := io.ReadFull(r, sniff)
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		return fmt.Errorf("spool read: %w", readErr)
	}
	sniff = sniff[:n]

	out.MediaType = strings.TrimSpace(declaredType)
	if isGeneric(out.MediaType) {
		out.MediaType = mimetype.Detect(sniff).String()
	}

	if n > 0 {
		if _, err := f.Write(sniff); err != nil {
			return fmt.Errorf("spool write: %w", err)
		}
	}
	written, err := io.Copy(f, r)
	if err != nil {
		return fmt.Errorf("spool write: %w", err)
	}
	out.Size = int64(n) + written
	return nil
}

// Remove deletes a spooled file. Paths outside the spool directory are refused.
func (s *Spool) Remove(path string) error {
	rel, err := filepath.Rel(s.baseDir, path)
	if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return fmt.Errorf("spool remove: %s is outside %s", path, s.baseDir)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("spool remove: %w", err)
	}
	return nil
}

func isGeneric(mediaType string) bool {
	switch strings.ToLower(strings.Split(mediaType, ";")[0]) {
	case "", "application/octet-stream", "binary/octet-stream":
		return true
	default:
		return false
	}
}

func randomID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
