// Package store persists pipeline outcomes to SQLite. Successful and
// failed runs land in separate tables keyed by a generated receipt id
// of the form YYMMDD_NNN, where the sequence restarts per table per
// day.
//
// Every operation opens its own connection and closes it before
// returning. The database file lives next to a watch folder that may
// be inspected or copied while the service runs, so nothing holds the
// file open between operations. WAL mode plus a busy timeout keeps
// concurrent short-lived writers from failing on lock contention.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mkurosawa/receiptd/internal/receipt"
	"github.com/mkurosawa/receiptd/pkg/repository"
)

// Store provides receipt persistence over a SQLite database file.
type Store struct {
	path   string
	logger *slog.Logger
}

// New creates a Store for the database at path. The file is created on
// first use; call Migrate before serving traffic.
func New(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With("system", "store"),
	}
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) open() (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)",
		s.path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Exists reports whether a successful receipt was already recorded for
// the given original filename. Failed rows do not count: a file that
// previously failed may be corrected and resubmitted under the same
// name.
func (s *Store) Exists(ctx context.Context, filename string) (bool, error) {
	db, err := s.open()
	if err != nil {
		return false, err
	}
	defer db.Close()

	var one int
	err = db.QueryRowContext(ctx,
		`SELECT 1 FROM successful_receipts WHERE original_pdf_filename = ? LIMIT 1`,
		filename,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const insertSuccessQuery = `
	INSERT INTO successful_receipts (
		generated_receipt_id, original_pdf_filename,
		date, amount, tax, tax_rate,
		vendor_name, vendor_address, vendor_phone, registration_number,
		description, category, original_extracted_data,
		feedback, evaluation_score
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertSuccess records an accepted receipt and returns the generated
// id. The id is issued inside the same transaction as the insert, so
// concurrent writers cannot race on the per-day sequence.
func (s *Store) InsertSuccess(ctx context.Context, filename string, fields receipt.Fields, eval receipt.Evaluation) (string, error) {
	db, err := s.open()
	if err != nil {
		return "", err
	}
	defer db.Close()

	id, err := repository.WithTx(ctx, db, func(tx *sql.Tx) (string, error) {
		id, err := nextID(ctx, tx, "successful_receipts", fields.DatePrefix(time.Now()))
		if err != nil {
			return "", err
		}

		_, err = tx.ExecContext(ctx, insertSuccessQuery,
			id, filename,
			fields.String(receipt.KeyDate),
			fields.String(receipt.KeyAmount),
			fields.String(receipt.KeyTax),
			fields.String(receipt.KeyTaxRate),
			fields.Vendor(receipt.KeyVendorName),
			fields.Vendor(receipt.KeyVendorAddr),
			fields.Vendor(receipt.KeyVendorPhone),
			fields.String(receipt.KeyRegistration),
			fields.Description(),
			fields.String(receipt.KeyCategory),
			fields.Raw(),
			eval.Feedback, eval.Score,
		)
		if err != nil {
			return "", err
		}
		return id, nil
	})
	if err != nil {
		return "", repository.MapError(err, ErrNotFound, ErrDuplicateID)
	}

	s.logger.Info("recorded successful receipt", "id", id, "filename", filename)
	return id, nil
}

const insertFailedQuery = `
	INSERT INTO failed_receipts (
		generated_receipt_id, original_pdf_filename,
		date, amount, tax, tax_rate,
		vendor_name, vendor_address, vendor_phone, registration_number,
		description, category, error_message, original_extracted_data,
		feedback, evaluation_score
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertFailed records a failed run and returns the generated id.
// Fields may be partial or nil when the failure occurred before
// extraction completed; eval is nil unless the run reached evaluation.
func (s *Store) InsertFailed(ctx context.Context, filename, errorMessage string, fields receipt.Fields, eval *receipt.Evaluation) (string, error) {
	db, err := s.open()
	if err != nil {
		return "", err
	}
	defer db.Close()

	var feedback, score any
	if eval != nil {
		feedback = eval.Feedback
		score = eval.Score
	}

	id, err := repository.WithTx(ctx, db, func(tx *sql.Tx) (string, error) {
		id, err := nextID(ctx, tx, "failed_receipts", fields.DatePrefix(time.Now()))
		if err != nil {
			return "", err
		}

		_, err = tx.ExecContext(ctx, insertFailedQuery,
			id, filename,
			fields.String(receipt.KeyDate),
			fields.String(receipt.KeyAmount),
			fields.String(receipt.KeyTax),
			fields.String(receipt.KeyTaxRate),
			fields.Vendor(receipt.KeyVendorName),
			fields.Vendor(receipt.KeyVendorAddr),
			fields.Vendor(receipt.KeyVendorPhone),
			fields.String(receipt.KeyRegistration),
			fields.Description(),
			fields.String(receipt.KeyCategory),
			errorMessage,
			fields.Raw(),
			feedback, score,
		)
		if err != nil {
			return "", err
		}
		return id, nil
	})
	if err != nil {
		return "", repository.MapError(err, ErrNotFound, ErrDuplicateID)
	}

	s.logger.Info("recorded failed receipt", "id", id, "filename", filename, "reason", errorMessage)
	return id, nil
}

// ListSuccessful returns all accepted receipts, newest first.
func (s *Store) ListSuccessful(ctx context.Context) ([]Record, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := fmt.Sprintf(
		`SELECT %s FROM successful_receipts ORDER BY processed_timestamp DESC, generated_receipt_id DESC`,
		successColumns,
	)
	return repository.QueryMany(ctx, db, query, nil, scanSuccess)
}

// ListFailed returns all failed receipts, newest first.
func (s *Store) ListFailed(ctx context.Context) ([]Record, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := fmt.Sprintf(
		`SELECT %s FROM failed_receipts ORDER BY processed_timestamp DESC, generated_receipt_id DESC`,
		failedColumns,
	)
	return repository.QueryMany(ctx, db, query, nil, scanFailed)
}

// Find returns the receipt with the given generated id from either
// table. The successful table is checked first; ids never collide in
// practice because a run lands in exactly one table.
func (s *Store) Find(ctx context.Context, id string) (Record, error) {
	db, err := s.open()
	if err != nil {
		return Record{}, err
	}
	defer db.Close()

	query := fmt.Sprintf(`SELECT %s FROM successful_receipts WHERE generated_receipt_id = ?`, successColumns)
	record, err := repository.QueryOne(ctx, db, query, []any{id}, scanSuccess)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Record{}, err
	}

	query = fmt.Sprintf(`SELECT %s FROM failed_receipts WHERE generated_receipt_id = ?`, failedColumns)
	record, err = repository.QueryOne(ctx, db, query, []any{id}, scanFailed)
	if err != nil {
		return Record{}, repository.MapError(err, ErrNotFound, ErrDuplicateID)
	}
	return record, nil
}

// NotifyChanges polls the SQLite data version on a dedicated
// connection and signals on the returned channel whenever another
// connection has written to the database. The channel is never closed;
// polling stops when ctx is cancelled.
//
// PRAGMA data_version only moves for writes made on other connections,
// which is exactly the shape of this store: every write happens on its
// own short-lived connection, while the poller keeps one connection
// open for the lifetime of the subscription.
func (s *Store) NotifyChanges(ctx context.Context, interval time.Duration) (<-chan struct{}, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	version, err := dataVersion(ctx, conn)
	if err != nil {
		conn.Close()
		db.Close()
		return nil, err
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer db.Close()
		defer conn.Close()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				current, err := dataVersion(ctx, conn)
				if err != nil {
					if ctx.Err() == nil {
						s.logger.Error("data version poll failed", "error", err)
					}
					return
				}
				if current != version {
					version = current
					select {
					case ch <- struct{}{}:
					default:
					}
				}
			}
		}
	}()

	return ch, nil
}

func dataVersion(ctx context.Context, conn *sql.Conn) (int64, error) {
	var version int64
	err := conn.QueryRowContext(ctx, "PRAGMA data_version").Scan(&version)
	return version, err
}

// nextID issues the next generated receipt id for the table: the
// YYMMDD prefix plus a zero-padded sequence that restarts each day.
// Must run inside the insert transaction so concurrent inserts cannot
// issue the same id.
func nextID(ctx context.Context, tx *sql.Tx, table, prefix string) (string, error) {
	query := fmt.Sprintf(
		`SELECT generated_receipt_id FROM %s WHERE generated_receipt_id LIKE ? ORDER BY generated_receipt_id DESC LIMIT 1`,
		table,
	)

	seq := 1
	var last string
	err := tx.QueryRowContext(ctx, query, prefix+"_%").Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return "", err
	default:
		if n, perr := strconv.Atoi(last[len(prefix)+1:]); perr == nil {
			seq = n + 1
		}
	}

	return fmt.Sprintf("%s_%03d", prefix, seq), nil
}
