package pipeline

import (
	"path/filepath"

	"github.com/mkurosawa/receiptd/internal/receipt"
)

// Status is the terminal disposition of a pipeline run.
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Context is the run state threaded through the pipeline stages. It is
// passed and returned by value: stages derive a new Context instead of
// mutating their input, so a stage can never observe another stage's
// partial writes and the error message survives exactly as the first
// failing stage set it.
type Context struct {
	PDFPath          string
	OriginalFilename string
	ImagePaths       []string
	Fields           receipt.Fields
	Evaluation       *receipt.Evaluation
	Status           Status
	ErrorMessage     string
	RecordID         string
}

// NewContext starts a pending run for the PDF at pdfPath.
func NewContext(pdfPath string) Context {
	return Context{
		PDFPath:          pdfPath,
		OriginalFilename: filepath.Base(pdfPath),
		Status:           StatusPending,
	}
}

// WithImages returns a copy carrying the extracted image paths.
func (c Context) WithImages(paths []string) Context {
	c.ImagePaths = paths
	return c
}

// WithFields returns a copy carrying the extracted field mapping.
func (c Context) WithFields(fields receipt.Fields) Context {
	c.Fields = fields
	return c
}

// WithEvaluation returns a copy carrying the evaluation result.
func (c Context) WithEvaluation(eval receipt.Evaluation) Context {
	c.Evaluation = &eval
	return c
}

// WithRecord returns a copy carrying the generated receipt id.
func (c Context) WithRecord(id string) Context {
	c.RecordID = id
	return c
}

// Failed returns a copy marked failed. The first failure message wins;
// later calls keep the original message so downstream stages cannot
// mask the root cause.
func (c Context) Failed(message string) Context {
	if c.Status == StatusFailed {
		return c
	}
	c.Status = StatusFailed
	c.ErrorMessage = message
	return c
}

// Succeeded returns a copy marked successful with the generated id.
func (c Context) Succeeded(id string) Context {
	c.Status = StatusSuccess
	c.RecordID = id
	return c
}
