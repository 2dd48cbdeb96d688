package store_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/mkurosawa/receiptd/internal/receipt"
	"github.com/mkurosawa/receiptd/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "receipts.db")
	s := store.New(path, slog.Default())
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return s
}

func fieldsWithDate(date string) receipt.Fields {
	return receipt.Fields{
		receipt.KeyDate:   date,
		receipt.KeyAmount: "1500",
		receipt.KeyVendor: map[string]any{
			receipt.KeyVendorName: "テスト商店",
		},
	}
}

func TestInsertSuccessSequencesIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	eval := receipt.Evaluation{Score: 90, Feedback: "ok"}

	want := []string{"240315_001", "240315_002", "240315_003"}
	for i, expected := range want {
		id, err := s.InsertSuccess(ctx, "receipt.pdf", fieldsWithDate("20240315"), eval)
		if err != nil {
			t.Fatalf("InsertSuccess() #%d error = %v", i, err)
		}
		if id != expected {
			t.Errorf("InsertSuccess() #%d id = %q, want %q", i, id, expected)
		}
	}
}

func TestSequenceRestartsPerDay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	eval := receipt.Evaluation{Score: 90}

	first, err := s.InsertSuccess(ctx, "a.pdf", fieldsWithDate("20240315"), eval)
	if err != nil {
		t.Fatalf("InsertSuccess() error = %v", err)
	}
	second, err := s.InsertSuccess(ctx, "b.pdf", fieldsWithDate("20240316"), eval)
	if err != nil {
		t.Fatalf("InsertSuccess() error = %v", err)
	}

	if first != "240315_001" {
		t.Errorf("first id = %q, want 240315_001", first)
	}
	if second != "240316_001" {
		t.Errorf("second id = %q, want 240316_001", second)
	}
}

func TestSequencesIndependentAcrossTables(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fields := fieldsWithDate("20240315")

	if _, err := s.InsertSuccess(ctx, "ok.pdf", fields, receipt.Evaluation{Score: 90}); err != nil {
		t.Fatalf("InsertSuccess() error = %v", err)
	}

	id, err := s.InsertFailed(ctx, "bad.pdf", "処理に失敗しました", fields, nil)
	if err != nil {
		t.Fatalf("InsertFailed() error = %v", err)
	}
	if id != "240315_001" {
		t.Errorf("failed id = %q, want 240315_001 (sequence is per table)", id)
	}
}

func TestExistsCountsSuccessOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fields := fieldsWithDate("20240315")

	if _, err := s.InsertFailed(ctx, "retry.pdf", "error", fields, nil); err != nil {
		t.Fatalf("InsertFailed() error = %v", err)
	}

	exists, err := s.Exists(ctx, "retry.pdf")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Exists() = true for failed-only filename, want false")
	}

	if _, err := s.InsertSuccess(ctx, "retry.pdf", fields, receipt.Evaluation{Score: 90}); err != nil {
		t.Fatalf("InsertSuccess() error = %v", err)
	}

	exists, err = s.Exists(ctx, "retry.pdf")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Error("Exists() = false after successful insert, want true")
	}
}

func TestInsertFailedWithoutExtraction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertFailed(ctx, "broken.pdf", "画像の抽出に失敗しました", nil, nil)
	if err != nil {
		t.Fatalf("InsertFailed() error = %v", err)
	}

	record, err := s.Find(ctx, id)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if !record.Failed {
		t.Error("Find() Failed = false, want true")
	}
	if record.ErrorMessage != "画像の抽出に失敗しました" {
		t.Errorf("ErrorMessage = %q", record.ErrorMessage)
	}
	if record.Score != nil {
		t.Errorf("Score = %v, want nil", *record.Score)
	}
	if record.RawExtracted != "{}" {
		t.Errorf("RawExtracted = %q, want {}", record.RawExtracted)
	}
}

func TestFindMapsColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fields := receipt.Fields{
		receipt.KeyDate:         "20240315",
		receipt.KeyAmount:       float64(1500),
		receipt.KeyTax:          "136",
		receipt.KeyTaxRate:      "10%",
		receipt.KeyRegistration: "T1234567890123",
		receipt.KeyCategory:     "消耗品費",
		receipt.KeyVendor: map[string]any{
			receipt.KeyVendorName:  "テスト商店",
			receipt.KeyVendorAddr:  "東京都千代田区1-1-1",
			receipt.KeyVendorPhone: "03-1234-5678",
		},
		receipt.KeyDescription: []any{
			map[string]any{"品名": "コピー用紙", "単価": float64(500)},
		},
	}

	id, err := s.InsertSuccess(ctx, "receipt.pdf", fields, receipt.Evaluation{Score: 88, Feedback: "読み取り良好"})
	if err != nil {
		t.Fatalf("InsertSuccess() error = %v", err)
	}

	record, err := s.Find(ctx, id)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}

	if record.Failed {
		t.Error("Find() Failed = true, want false")
	}
	if record.Date != "20240315" {
		t.Errorf("Date = %q", record.Date)
	}
	if record.Amount != "1500" {
		t.Errorf("Amount = %q, want 1500", record.Amount)
	}
	if record.VendorName != "テスト商店" {
		t.Errorf("VendorName = %q", record.VendorName)
	}
	if record.VendorPhone != "03-1234-5678" {
		t.Errorf("VendorPhone = %q", record.VendorPhone)
	}
	if record.Category != "消耗品費" {
		t.Errorf("Category = %q", record.Category)
	}
	if record.Score == nil || *record.Score != 88 {
		t.Errorf("Score = %v, want 88", record.Score)
	}
	if record.Feedback != "読み取り良好" {
		t.Errorf("Feedback = %q", record.Feedback)
	}
	if record.Description == "" {
		t.Error("Description is empty, want serialized line items")
	}
}

func TestFindNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Find(context.Background(), "991231_999")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Find() error = %v, want ErrNotFound", err)
	}
}

func TestListOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	eval := receipt.Evaluation{Score: 90}

	for _, date := range []string{"20240315", "20240315", "20240316"} {
		if _, err := s.InsertSuccess(ctx, "r.pdf", fieldsWithDate(date), eval); err != nil {
			t.Fatalf("InsertSuccess() error = %v", err)
		}
	}

	records, err := s.ListSuccessful(ctx)
	if err != nil {
		t.Fatalf("ListSuccessful() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("ListSuccessful() returned %d records, want 3", len(records))
	}

	failed, err := s.ListFailed(ctx)
	if err != nil {
		t.Fatalf("ListFailed() error = %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("ListFailed() returned %d records, want 0", len(failed))
	}
}
