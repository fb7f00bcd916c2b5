package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText = "text/plain"
)

// ErrUnsupported is returned for media types no extractor handles.
var ErrUnsupported = errors.New("unsupported media type")

// ErrEmpty is returned when a document yields no text.
var ErrEmpty = errors.New("no text extracted")

// File reads the document at path and returns its plain text.
func File(ctx context.Context, path string, mediaType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("extract %s: read: %w", filepath.Base(path), err)
	}
	text, err := Bytes(ctx, data, mediaType, filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	return text, nil
}

// Bytes extracts text from an in-memory payload.
func Bytes(ctx context.Context, data []byte, mediaType string, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var (
		text string
		err  error
	)
	normalized := Normalize(mediaType, fileName, data)
	switch normalized {
	case MimePDF:
		text, err = extractPDF(data)
	case MimeDOCX:
		text, err = extractDOCX(data)
	case MimeText:
		text = decodeText(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, normalized)
	}
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// IsSupported reports whether mediaType names an extractable document.
func IsSupported(mediaType string) bool {
	switch cleanMime(mediaType) {
	case MimePDF, MimeDOCX, MimeText:
		return true
	default:
		return false
	}
}

// Accepts reports whether a file with this declared type and name is worth extracting.
// Generic or zip types are judged by extension since no content is available.
func Accepts(mediaType string, fileName string) bool {
	clean := cleanMime(mediaType)
	switch clean {
	case "", "application/octet-stream", "binary/octet-stream", "application/zip":
		return fromExtension(fileName) != ""
	}
	if strings.HasPrefix(clean, "text/") && clean != "text/html" {
		return true
	}
	return IsSupported(clean)
}

// Normalize resolves the effective media type of data. Declared types win unless they are
// missing, generic, or a zip container that turns out to be an OOXML document.
func Normalize(mediaType string, fileName string, data []byte) string {
	clean := cleanMime(mediaType)
	switch clean {
	case "", "application/octet-stream", "binary/octet-stream":
		clean = cleanMime(mimetype.Detect(data).String())
		if clean == "application/octet-stream" || clean == "application/zip" {
			if byExt := fromExtension(fileName); byExt != "" {
				return byExt
			}
		}
	}
	if clean == "application/zip" {
		if mapped := mapOOXMLFromZip(data); mapped != "" {
			return mapped
		}
		if byExt := fromExtension(fileName); byExt == MimeDOCX {
			return byExt
		}
	}
	if strings.HasPrefix(clean, "text/") && clean != "text/html" {
		return MimeText
	}
	return clean
}

func cleanMime(raw string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(raw, ";")[0]))
}

func fromExtension(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return MimePDF
	case ".docx":
		return MimeDOCX
	case ".txt", ".text", ".md":
		return MimeText
	default:
		return ""
	}
}

// decodeText returns UTF-8 input unchanged and reinterprets anything else as Latin-1.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(out)
}

func extractPDF(data []byte) (string, error) {
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf: %w", err)
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("pdf text: %w", err)
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("docx: empty data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("docx: word/document.xml not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("docx: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("docx: %w", err)
	}
	return stripDocxXML(raw), nil
}

// stripDocxXML keeps character data and turns paragraph, break and tab elements into whitespace.
func stripDocxXML(raw []byte) string {
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return string(raw)
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.Write(t)
		case xml.StartElement:
			if t.Name.Local == "tab" {
				buf.WriteString("\t")
			}
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func mapOOXMLFromZip(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return MimeDOCX
		}
	}
	return ""
}
