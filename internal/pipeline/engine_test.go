package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkurosawa/receiptd/internal/capability"
	"github.com/mkurosawa/receiptd/internal/config"
	"github.com/mkurosawa/receiptd/internal/pipeline"
	"github.com/mkurosawa/receiptd/internal/receipt"
)

type fakeImages struct {
	paths []string
	err   error
	calls int
}

func (f *fakeImages) ExtractImages(_ context.Context, _, _ string) ([]string, error) {
	f.calls++
	return f.paths, f.err
}

type fakeData struct {
	fields receipt.Fields
	err    error
	calls  int
}

func (f *fakeData) ExtractData(_ context.Context, _ []string) (receipt.Fields, error) {
	f.calls++
	return f.fields, f.err
}

type fakeEval struct {
	eval    receipt.Evaluation
	err     error
	panics  bool
	calls   int
	lastPDF string
}

func (f *fakeEval) Evaluate(_ context.Context, _ receipt.Fields, pdfPath string) (receipt.Evaluation, error) {
	f.calls++
	f.lastPDF = pdfPath
	if f.panics {
		panic("evaluator exploded")
	}
	return f.eval, f.err
}

type fakeRecorder struct {
	successErr   error
	failedErr    error
	successCalls int
	failedCalls  int
	lastMessage  string
	lastEval     *receipt.Evaluation
}

func (f *fakeRecorder) InsertSuccess(_ context.Context, _ string, _ receipt.Fields, _ receipt.Evaluation) (string, error) {
	f.successCalls++
	if f.successErr != nil {
		return "", f.successErr
	}
	return "240315_001", nil
}

func (f *fakeRecorder) InsertFailed(_ context.Context, _, message string, _ receipt.Fields, eval *receipt.Evaluation) (string, error) {
	f.failedCalls++
	f.lastMessage = message
	f.lastEval = eval
	if f.failedErr != nil {
		return "", f.failedErr
	}
	return "240315_001", nil
}

type harness struct {
	engine   *pipeline.Engine
	storage  config.StorageConfig
	pdfPath  string
	recorder *fakeRecorder
}

func newHarness(t *testing.T, caps capability.Set, recorder *fakeRecorder) harness {
	t.Helper()

	root := t.TempDir()
	storage := config.StorageConfig{
		InputDir:   filepath.Join(root, "pdfs"),
		SuccessDir: filepath.Join(root, "success_pdfs"),
		ErrorDir:   filepath.Join(root, "error_pdfs"),
		ImageDir:   filepath.Join(root, "images"),
	}
	if err := storage.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error = %v", err)
	}

	pdfPath := filepath.Join(storage.InputDir, "receipt.pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	return harness{
		engine:   pipeline.NewEngine(caps, recorder, storage, slog.Default()),
		storage:  storage,
		pdfPath:  pdfPath,
		recorder: recorder,
	}
}

func passingCaps() (capability.Set, *fakeImages, *fakeData, *fakeEval) {
	images := &fakeImages{paths: []string{"page1.png"}}
	data := &fakeData{fields: receipt.Fields{receipt.KeyAmount: "1500"}}
	eval := &fakeEval{eval: receipt.Evaluation{Score: 90, Feedback: "ok"}}
	return capability.Set{Images: images, Data: data, Eval: eval}, images, data, eval
}

func fileExists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stat %s: %v", path, err)
	}
	return err == nil
}

func TestRunAccepted(t *testing.T) {
	caps, _, _, eval := passingCaps()
	recorder := &fakeRecorder{}
	h := newHarness(t, caps, recorder)

	result := h.engine.Run(context.Background(), h.pdfPath)

	if result.Status != pipeline.StatusSuccess {
		t.Fatalf("Status = %v, want success (error %q)", result.Status, result.ErrorMessage)
	}
	if eval.lastPDF != h.pdfPath {
		t.Errorf("Evaluate() pdf = %q, want %q", eval.lastPDF, h.pdfPath)
	}
	if result.RecordID != "240315_001" {
		t.Errorf("RecordID = %q", result.RecordID)
	}
	if recorder.failedCalls != 0 {
		t.Errorf("failedCalls = %d, want 0", recorder.failedCalls)
	}
	if !fileExists(t, filepath.Join(h.storage.SuccessDir, "240315_001.pdf")) {
		t.Error("accepted pdf not filed in success directory")
	}
	if fileExists(t, h.pdfPath) {
		t.Error("pdf still present in input directory")
	}
}

func TestRunScoreThreshold(t *testing.T) {
	tests := []struct {
		name       string
		score      int
		wantStatus pipeline.Status
	}{
		{"at threshold is rejected", 75, pipeline.StatusFailed},
		{"above threshold is accepted", 76, pipeline.StatusSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps, _, _, eval := passingCaps()
			eval.eval = receipt.Evaluation{Score: tt.score, Feedback: "feedback"}
			recorder := &fakeRecorder{}
			h := newHarness(t, caps, recorder)

			result := h.engine.Run(context.Background(), h.pdfPath)

			if result.Status != tt.wantStatus {
				t.Fatalf("Status = %v, want %v", result.Status, tt.wantStatus)
			}
			if tt.wantStatus == pipeline.StatusFailed {
				if result.ErrorMessage != pipeline.MsgLowConfidence {
					t.Errorf("ErrorMessage = %q, want %q", result.ErrorMessage, pipeline.MsgLowConfidence)
				}
				if recorder.lastEval == nil || recorder.lastEval.Score != tt.score {
					t.Error("rejected run should record the evaluation alongside the failure")
				}
				if !fileExists(t, filepath.Join(h.storage.ErrorDir, "240315_001.pdf")) {
					t.Error("rejected pdf not filed in error directory")
				}
			}
		})
	}
}

func TestRunStageFailureShortCircuits(t *testing.T) {
	caps, images, data, eval := passingCaps()
	images.err = errors.New("corrupt pdf")
	recorder := &fakeRecorder{}
	h := newHarness(t, caps, recorder)

	result := h.engine.Run(context.Background(), h.pdfPath)

	if result.Status != pipeline.StatusFailed {
		t.Fatalf("Status = %v, want failed", result.Status)
	}
	if result.ErrorMessage != pipeline.MsgImageFailed {
		t.Errorf("ErrorMessage = %q, want %q", result.ErrorMessage, pipeline.MsgImageFailed)
	}
	if data.calls != 0 || eval.calls != 0 {
		t.Errorf("downstream stages ran after failure: data=%d eval=%d", data.calls, eval.calls)
	}
	if recorder.failedCalls != 1 {
		t.Errorf("failedCalls = %d, want 1", recorder.failedCalls)
	}
	if recorder.lastEval != nil {
		t.Error("pre-evaluation failure should not carry an evaluation")
	}
	if !fileExists(t, filepath.Join(h.storage.ErrorDir, "240315_001.pdf")) {
		t.Error("failed pdf not filed in error directory")
	}
}

func TestRunStagePanicIsContained(t *testing.T) {
	caps, _, _, eval := passingCaps()
	eval.panics = true
	recorder := &fakeRecorder{}
	h := newHarness(t, caps, recorder)

	result := h.engine.Run(context.Background(), h.pdfPath)

	if result.Status != pipeline.StatusFailed {
		t.Fatalf("Status = %v, want failed", result.Status)
	}
	if result.ErrorMessage != pipeline.MsgInternalError {
		t.Errorf("ErrorMessage = %q, want %q", result.ErrorMessage, pipeline.MsgInternalError)
	}
	if recorder.failedCalls != 1 {
		t.Errorf("failedCalls = %d, want 1: a panicking stage must still reach finalize", recorder.failedCalls)
	}
}

func TestRunInsertFailureLeavesFileInPlace(t *testing.T) {
	caps, images, _, _ := passingCaps()
	images.err = errors.New("corrupt pdf")
	recorder := &fakeRecorder{failedErr: errors.New("database locked")}
	h := newHarness(t, caps, recorder)

	result := h.engine.Run(context.Background(), h.pdfPath)

	if result.RecordID != "" {
		t.Errorf("RecordID = %q, want empty", result.RecordID)
	}
	if !fileExists(t, h.pdfPath) {
		t.Error("pdf should remain in input directory when the failure row cannot be written")
	}
}

func TestRecordDuplicate(t *testing.T) {
	caps, images, _, _ := passingCaps()
	recorder := &fakeRecorder{}
	h := newHarness(t, caps, recorder)

	result := h.engine.RecordDuplicate(context.Background(), h.pdfPath)

	if result.Status != pipeline.StatusFailed {
		t.Fatalf("Status = %v, want failed", result.Status)
	}
	if recorder.lastMessage != pipeline.MsgDuplicate {
		t.Errorf("lastMessage = %q, want %q", recorder.lastMessage, pipeline.MsgDuplicate)
	}
	if images.calls != 0 {
		t.Error("duplicate handling must not run the stages")
	}
	if !fileExists(t, filepath.Join(h.storage.ErrorDir, "240315_001.pdf")) {
		t.Error("duplicate pdf not filed in error directory")
	}
}

func TestScratchDirectoryCleanedUp(t *testing.T) {
	caps, _, _, _ := passingCaps()
	recorder := &fakeRecorder{}
	h := newHarness(t, caps, recorder)

	h.engine.Run(context.Background(), h.pdfPath)

	entries, err := os.ReadDir(h.storage.ImageDir)
	if err != nil {
		t.Fatalf("read image dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("image dir has %d leftover entries, want 0", len(entries))
	}
}
