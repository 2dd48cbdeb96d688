// Package pdfimage extracts embedded receipt scans from PDF files.
package pdfimage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/mkurosawa/receiptd/internal/capability"
)

// Extractor pulls embedded images out of a PDF using pdfcpu. Scanned
// receipts carry one full-page image per page, so extracting the
// embedded images recovers the original scans without rasterizing.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor.
func New(logger *slog.Logger) *Extractor {
	return &Extractor{
		logger: logger.With("system", "pdfimage"),
	}
}

// ExtractImages writes the PDF's embedded images into outputDir and
// returns their paths sorted by name, which follows page order in
// pdfcpu's naming scheme. A PDF with no embedded images is an error:
// there is nothing for vision extraction to read.
func (e *Extractor) ExtractImages(ctx context.Context, pdfPath, outputDir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}

	if err := api.ExtractImagesFile(pdfPath, outputDir, nil, nil); err != nil {
		return nil, fmt.Errorf("extract images from %s: %w", filepath.Base(pdfPath), err)
	}

	paths, err := listImages(outputDir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", capability.ErrNoImages, filepath.Base(pdfPath))
	}

	e.logger.Debug("extracted images", "pdf", filepath.Base(pdfPath), "count", len(paths))
	return paths, nil
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read image directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".webp":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Strings(paths)
	return paths, nil
}
