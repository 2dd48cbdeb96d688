package pipeline

import (
	"context"
	"path/filepath"
)

// Each stage checks the incoming status and passes failed runs through
// untouched, so the chain can always execute in full and the finalize
// stage sees every run exactly once.

func (e *Engine) extractImages(ctx context.Context, pc Context, outputDir string) Context {
	if pc.Status == StatusFailed {
		return pc
	}

	paths, err := e.caps.Images.ExtractImages(ctx, pc.PDFPath, outputDir)
	if err != nil {
		e.logger.Error("image extraction failed", "pdf", pc.OriginalFilename, "error", err)
		return pc.Failed(MsgImageFailed)
	}

	e.logger.Info("images extracted", "pdf", pc.OriginalFilename, "count", len(paths))
	return pc.WithImages(paths)
}

func (e *Engine) extractData(ctx context.Context, pc Context) Context {
	if pc.Status == StatusFailed {
		return pc
	}

	fields, err := e.caps.Data.ExtractData(ctx, pc.ImagePaths)
	if err != nil {
		e.logger.Error("data extraction failed", "pdf", pc.OriginalFilename, "error", err)
		return pc.Failed(MsgVisionFailed)
	}

	e.logger.Info("receipt data extracted", "pdf", pc.OriginalFilename)
	return pc.WithFields(fields)
}

func (e *Engine) evaluate(ctx context.Context, pc Context) Context {
	if pc.Status == StatusFailed {
		return pc
	}

	eval, err := e.caps.Eval.Evaluate(ctx, pc.Fields, pc.PDFPath)
	if err != nil {
		e.logger.Error("evaluation failed", "pdf", pc.OriginalFilename, "error", err)
		return pc.Failed(MsgEvalFailed)
	}

	e.logger.Info("receipt data evaluated", "pdf", pc.OriginalFilename, "score", eval.Score)
	return pc.WithEvaluation(eval)
}

// finalize persists the terminal outcome and files the PDF under its
// generated id. Failed runs land in the error directory; accepted runs
// require a score strictly above AcceptThreshold to reach the success
// directory.
func (e *Engine) finalize(ctx context.Context, pc Context) Context {
	if pc.Status == StatusFailed {
		return e.recordFailure(ctx, pc)
	}
	if pc.Evaluation == nil {
		return e.recordFailure(ctx, pc.Failed(MsgEvalFailed))
	}
	if pc.Evaluation.Score <= AcceptThreshold {
		e.logger.Info("receipt rejected", "pdf", pc.OriginalFilename, "score", pc.Evaluation.Score)
		return e.recordFailure(ctx, pc.Failed(MsgLowConfidence))
	}

	id, err := e.recorder.InsertSuccess(ctx, pc.OriginalFilename, pc.Fields, *pc.Evaluation)
	if err != nil {
		e.logger.Error("recording accepted receipt failed", "pdf", pc.OriginalFilename, "error", err)
		return pc.Failed(MsgPersistFailed)
	}

	dst := filepath.Join(e.storage.SuccessDir, id+".pdf")
	if err := MoveFile(pc.PDFPath, dst); err != nil {
		e.logger.Error("moving accepted receipt failed", "id", id, "error", err)
	}

	e.logger.Info("receipt accepted", "id", id, "pdf", pc.OriginalFilename, "score", pc.Evaluation.Score)
	return pc.Succeeded(id)
}

// recordFailure writes the failed row and files the PDF in the error
// directory. When the insert itself fails the PDF is left in place for
// the caller's fallback move.
func (e *Engine) recordFailure(ctx context.Context, pc Context) Context {
	id, err := e.recorder.InsertFailed(ctx, pc.OriginalFilename, pc.ErrorMessage, pc.Fields, pc.Evaluation)
	if err != nil {
		e.logger.Error("recording failed receipt failed", "pdf", pc.OriginalFilename, "error", err)
		return pc
	}

	dst := filepath.Join(e.storage.ErrorDir, id+".pdf")
	if err := MoveFile(pc.PDFPath, dst); err != nil {
		e.logger.Error("moving failed receipt failed", "id", id, "error", err)
	}

	e.logger.Info("receipt failed", "id", id, "pdf", pc.OriginalFilename, "reason", pc.ErrorMessage)
	return pc.WithRecord(id)
}
