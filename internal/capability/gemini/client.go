// Package gemini implements vision extraction and evaluation on
// Vertex AI generative models.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"

	"github.com/mkurosawa/receiptd/internal/capability"
	"github.com/mkurosawa/receiptd/internal/config"
	"github.com/mkurosawa/receiptd/internal/receipt"
	"github.com/mkurosawa/receiptd/pkg/formatting"
)

// Client holds the pre-configured extraction and evaluation models.
// It implements capability.DataExtractor and capability.Evaluator.
type Client struct {
	extraction *genai.GenerativeModel
	evaluation *genai.GenerativeModel
	base       *genai.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient creates a Client from the Gemini configuration.
// Credentials are resolved through the standard Google application
// default credentials chain.
func NewClient(ctx context.Context, cfg config.GeminiConfig, logger *slog.Logger) (*Client, error) {
	if cfg.Project == "" {
		return nil, errors.New("gemini project is required")
	}

	base, err := genai.NewClient(ctx, cfg.Project, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("create vertex client: %w", err)
	}

	extraction := base.GenerativeModel(cfg.ExtractionModel)
	extraction.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	evaluation := base.GenerativeModel(cfg.EvaluationModel)
	evaluation.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	return &Client{
		extraction: extraction,
		evaluation: evaluation,
		base:       base,
		timeout:    cfg.CallTimeoutDuration(),
		logger:     logger.With("system", "gemini"),
	}, nil
}

// Close releases the underlying Vertex AI client.
func (c *Client) Close() error {
	return c.base.Close()
}

// ExtractData sends the receipt images to the extraction model and
// parses the returned JSON into a field mapping. All pages go into a
// single request so multi-page receipts consolidate into one object.
func (c *Client) ExtractData(ctx context.Context, imagePaths []string) (receipt.Fields, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []genai.Part{genai.Text(extractionPrompt)}
	for _, path := range imagePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", filepath.Base(path), err)
		}
		parts = append(parts, genai.ImageData(imageFormat(path), data))
	}

	resp, err := c.extraction.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("vision extraction: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	fields, err := formatting.Parse[receipt.Fields](text)
	if err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}

	c.logger.Debug("extracted receipt fields", "images", len(imagePaths))
	return fields, nil
}

// Evaluate asks the evaluation model to score the extracted fields.
// Scores outside 0-100 violate the response contract and are rejected.
func (c *Client) Evaluate(ctx context.Context, fields receipt.Fields, pdfPath string) (receipt.Evaluation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rendered, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return receipt.Evaluation{}, fmt.Errorf("render fields for evaluation: %w", err)
	}

	prompt := fmt.Sprintf(evaluationPromptTemplate, rendered)
	resp, err := c.evaluation.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return receipt.Evaluation{}, fmt.Errorf("evaluation of %s: %w", filepath.Base(pdfPath), err)
	}

	text, err := responseText(resp)
	if err != nil {
		return receipt.Evaluation{}, err
	}

	eval, err := formatting.Parse[receipt.Evaluation](text)
	if err != nil {
		return receipt.Evaluation{}, fmt.Errorf("parse evaluation response: %w", err)
	}
	if !eval.Valid() {
		return receipt.Evaluation{}, fmt.Errorf("%w: score %d outside 0-100", capability.ErrInvalidResponse, eval.Score)
	}

	c.logger.Debug("evaluated receipt fields", "pdf", filepath.Base(pdfPath), "score", eval.Score)
	return eval, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", capability.ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", capability.ErrEmptyResponse
	}
	return sb.String(), nil
}

func imageFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".tif", ".tiff":
		return "tiff"
	case ".webp":
		return "webp"
	default:
		return "png"
	}
}
