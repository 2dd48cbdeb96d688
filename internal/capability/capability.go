// Package capability defines the pluggable operations the pipeline
// depends on. Production implementations live in the pdfimage and
// gemini subpackages; tests substitute fakes.
package capability

import (
	"context"
	"errors"

	"github.com/mkurosawa/receiptd/internal/receipt"
)

var (
	// ErrNoImages indicates the PDF yielded no embedded images.
	ErrNoImages = errors.New("no images extracted from pdf")

	// ErrEmptyResponse indicates the model returned no usable content.
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrInvalidResponse indicates the model output parsed but violated
	// the response contract.
	ErrInvalidResponse = errors.New("model response violates contract")
)

// ImageExtractor renders a PDF's embedded images into outputDir and
// returns the image paths in page order.
type ImageExtractor interface {
	ExtractImages(ctx context.Context, pdfPath, outputDir string) ([]string, error)
}

// DataExtractor reads receipt images and returns the structured field
// mapping.
type DataExtractor interface {
	ExtractData(ctx context.Context, imagePaths []string) (receipt.Fields, error)
}

// Evaluator scores extracted fields for accuracy and completeness.
// pdfPath identifies the source receipt in failure reporting.
type Evaluator interface {
	Evaluate(ctx context.Context, fields receipt.Fields, pdfPath string) (receipt.Evaluation, error)
}

// Set bundles the three capabilities for wiring into the pipeline.
type Set struct {
	Images ImageExtractor
	Data   DataExtractor
	Eval   Evaluator
}
