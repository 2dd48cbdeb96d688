// Package pipeline runs the four-stage receipt workflow: image
// extraction, vision extraction, evaluation, and finalize. Terminal
// outcomes are persisted to the store and the PDF is filed into the
// success or error directory under its generated id.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mkurosawa/receiptd/internal/capability"
	"github.com/mkurosawa/receiptd/internal/config"
	"github.com/mkurosawa/receiptd/internal/receipt"
)

// Recorder persists terminal pipeline outcomes. Implemented by
// store.Store.
type Recorder interface {
	InsertSuccess(ctx context.Context, filename string, fields receipt.Fields, eval receipt.Evaluation) (string, error)
	InsertFailed(ctx context.Context, filename, errorMessage string, fields receipt.Fields, eval *receipt.Evaluation) (string, error)
}

// Engine executes the pipeline for one PDF at a time. It is safe for
// concurrent use: each run carries its own Context and scratch
// directory.
type Engine struct {
	caps     capability.Set
	recorder Recorder
	storage  config.StorageConfig
	logger   *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(caps capability.Set, recorder Recorder, storage config.StorageConfig, logger *slog.Logger) *Engine {
	return &Engine{
		caps:     caps,
		recorder: recorder,
		storage:  storage,
		logger:   logger.With("system", "pipeline"),
	}
}

// Run executes the full pipeline for the PDF at pdfPath and returns
// the terminal Context. Stage panics are contained to the run: the
// run is marked failed and still reaches finalize, so a panicking
// capability cannot take the worker down or leave the outcome
// unrecorded.
func (e *Engine) Run(ctx context.Context, pdfPath string) (result Context) {
	pc := NewContext(pdfPath)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("finalize panicked", "pdf", pc.OriginalFilename, "panic", r)
			result = pc.Failed(MsgInternalError)
		}
	}()

	scratch := filepath.Join(e.storage.ImageDir, uuid.NewString())
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			e.logger.Warn("scratch cleanup failed", "dir", scratch, "error", err)
		}
	}()

	pc = e.process(ctx, pc, scratch)
	return e.finalize(ctx, pc)
}

// RecordDuplicate records a duplicate submission without running the
// stages and files the PDF into the error directory.
func (e *Engine) RecordDuplicate(ctx context.Context, pdfPath string) Context {
	pc := NewContext(pdfPath).Failed(MsgDuplicate)
	e.logger.Info("duplicate receipt", "pdf", pc.OriginalFilename)
	return e.recordFailure(ctx, pc)
}

func (e *Engine) process(ctx context.Context, pc Context, scratch string) (result Context) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("pipeline stage panicked", "pdf", pc.OriginalFilename, "panic", r)
			result = pc.Failed(MsgInternalError)
		}
	}()

	pc = e.extractImages(ctx, pc, scratch)
	pc = e.extractData(ctx, pc)
	pc = e.evaluate(ctx, pc)
	return pc
}
