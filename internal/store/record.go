package store

import (
	"database/sql"

	"github.com/mkurosawa/receiptd/pkg/repository"
)

// Record is a persisted receipt row from either outcome table. Failed
// is true for rows read from failed_receipts, where ErrorMessage is
// populated and Score may be absent.
type Record struct {
	ID                 string
	OriginalFilename   string
	Date               string
	Amount             string
	Tax                string
	TaxRate            string
	VendorName         string
	VendorAddress      string
	VendorPhone        string
	RegistrationNumber string
	Description        string
	Category           string
	RawExtracted       string
	Feedback           string
	Score              *int
	ErrorMessage       string
	ProcessedAt        string
	Failed             bool
}

const successColumns = `generated_receipt_id, original_pdf_filename,
	date, amount, tax, tax_rate,
	vendor_name, vendor_address, vendor_phone, registration_number,
	description, category, original_extracted_data,
	feedback, evaluation_score, processed_timestamp`

const failedColumns = `generated_receipt_id, original_pdf_filename,
	date, amount, tax, tax_rate,
	vendor_name, vendor_address, vendor_phone, registration_number,
	description, category, error_message, original_extracted_data,
	feedback, evaluation_score, processed_timestamp`

func scanSuccess(s repository.Scanner) (Record, error) {
	var (
		r        Record
		opt      [11]sql.NullString
		feedback sql.NullString
		score    sql.NullInt64
	)

	err := s.Scan(
		&r.ID, &r.OriginalFilename,
		&opt[0], &opt[1], &opt[2], &opt[3],
		&opt[4], &opt[5], &opt[6], &opt[7],
		&opt[8], &opt[9], &opt[10],
		&feedback, &score, &r.ProcessedAt,
	)
	if err != nil {
		return Record{}, err
	}

	assignOptional(&r, opt)
	r.Feedback = feedback.String
	if score.Valid {
		n := int(score.Int64)
		r.Score = &n
	}
	return r, nil
}

func scanFailed(s repository.Scanner) (Record, error) {
	var (
		r        Record
		opt      [11]sql.NullString
		errMsg   sql.NullString
		feedback sql.NullString
		score    sql.NullInt64
	)

	err := s.Scan(
		&r.ID, &r.OriginalFilename,
		&opt[0], &opt[1], &opt[2], &opt[3],
		&opt[4], &opt[5], &opt[6], &opt[7],
		&opt[8], &opt[9], &errMsg, &opt[10],
		&feedback, &score, &r.ProcessedAt,
	)
	if err != nil {
		return Record{}, err
	}

	assignOptional(&r, opt)
	r.ErrorMessage = errMsg.String
	r.Feedback = feedback.String
	if score.Valid {
		n := int(score.Int64)
		r.Score = &n
	}
	r.Failed = true
	return r, nil
}

func assignOptional(r *Record, opt [11]sql.NullString) {
	r.Date = opt[0].String
	r.Amount = opt[1].String
	r.Tax = opt[2].String
	r.TaxRate = opt[3].String
	r.VendorName = opt[4].String
	r.VendorAddress = opt[5].String
	r.VendorPhone = opt[6].String
	r.RegistrationNumber = opt[7].String
	r.Description = opt[8].String
	r.Category = opt[9].String
	r.RawExtracted = opt[10].String
}
