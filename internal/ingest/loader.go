// internal/ingest/loader.go
// Package ingest loads knowledge-base documents and splits them into
// overlapping chunks ready for embedding.
package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ragline/ragline/internal/logging"
	"github.com/ragline/ragline/internal/rag"
)

// Document is a raw text unit read from the knowledge base, discarded
// after chunking.
type Document struct {
	Path    string
	Name    string
	Content string
}

var supportedExtensions = map[string]struct{}{
	".txt": {},
	".md":  {},
	".pdf": {},
}

// Load reads all supported documents under dir. A file that fails to load
// is logged and skipped so one malformed document does not block the rest.
// A missing directory, or one containing no supported files, is a fatal
// configuration error.
func Load(dir string, recursive bool) ([]Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, rag.NewConfigError("knowledge base directory %s does not exist", dir)
	}
	if !info.IsDir() {
		return nil, rag.NewConfigError("knowledge base path %s is not a directory", dir)
	}

	paths, err := discoverFiles(dir, recursive)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, rag.NewConfigError("no supported documents (.txt, .md, .pdf) found in %s", dir)
	}

	var documents []Document
	for _, path := range paths {
		doc, err := loadFile(path)
		if err != nil {
			loadErr := &rag.LoadError{Path: path, Err: err}
			logging.LogEvent("[INGEST] Skipping document: %v", loadErr)
			continue
		}
		if strings.TrimSpace(doc.Content) == "" {
			logging.LogEvent("[INGEST] Skipping empty document: %s", path)
			continue
		}
		documents = append(documents, doc)
	}
	if len(documents) == 0 {
		return nil, rag.NewConfigError("all %d documents in %s failed to load or were empty", len(paths), dir)
	}
	return documents, nil
}

func discoverFiles(root string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := supportedExtensions[ext]; ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func loadFile(path string) (Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var content string
	var err error
	switch ext {
	case ".pdf":
		content, err = extractPDFText(path)
	default:
		var raw []byte
		raw, err = os.ReadFile(path)
		content = string(raw)
	}
	if err != nil {
		return Document{}, err
	}
	return Document{
		Path:    path,
		Name:    filepath.Base(path),
		Content: content,
	}, nil
}

// extractPDFText pulls the plain text out of every page of a PDF.
func extractPDFText(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", err
	}
	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logging.LogEvent("[INGEST] Failed to extract page %d of %s: %v", pageNum, path, err)
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}
