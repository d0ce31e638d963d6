// Package extract turns uploaded or on-disk files into (title, text) sources
// ready for ingestion.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"docrag/internal/domain"
)

var textExtensions = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
}

// Supported reports whether path has an extension this package can read.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return textExtensions[ext] || ext == ".pdf"
}

// File reads the file at path. The source title is the file's base name.
func File(path string) (domain.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Source{Title: filepath.Base(path)}, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}
	defer f.Close()
	return Reader(filepath.Base(path), f)
}

// Reader extracts text from r, choosing the format from name's extension.
// The text is returned as found, surrounding whitespace included.
func Reader(name string, r io.Reader) (domain.Source, error) {
	src := domain.Source{Title: name}
	data, err := io.ReadAll(r)
	if err != nil {
		return src, fmt.Errorf("%w: read %s: %w", domain.ErrExtraction, name, err)
	}

	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext == ".pdf":
		src.Text, err = pdfText(data)
	case textExtensions[ext]:
		if !utf8.Valid(data) {
			err = fmt.Errorf("%s is not valid UTF-8", name)
		}
		src.Text = string(data)
	default:
		err = fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return src, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}

	if strings.TrimSpace(src.Text) == "" {
		return src, fmt.Errorf("%w: no text in %s", domain.ErrExtraction, name)
	}
	return src, nil
}

func pdfText(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf buffer: %w", err)
	}
	return buf.String(), nil
}

// Files expands glob patterns and extracts every supported match. Failures
// are returned as sources carrying Err so a batch can report and skip them.
func Files(patterns []string) []domain.Source {
	var out []domain.Source
	for _, p := range patterns {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && info.IsDir() {
				out = append(out, dir(m)...)
				continue
			}
			src, err := File(m)
			src.Err = err
			out = append(out, src)
		}
	}
	return out
}

func dir(root string) []domain.Source {
	var out []domain.Source
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !Supported(path) {
			return nil
		}
		src, err := File(path)
		src.Err = err
		out = append(out, src)
		return nil
	})
	return out
}
