package dashboard

import (
	"github.com/mkurosawa/receiptd/internal/store"
)

// SuccessSummary is one accepted receipt in the list view.
type SuccessSummary struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	Amount     string `json:"amount"`
	VendorName string `json:"vendor_name"`
	Category   string `json:"category"`
	Score      *int   `json:"score"`
}

// FailureSummary is one failed receipt in the list view. Score is
// null for runs that never reached evaluation.
type FailureSummary struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Error    string `json:"error"`
	Score    *int   `json:"score"`
}

type listResponse struct {
	Successful []SuccessSummary `json:"successful"`
	Failed     []FailureSummary `json:"failed"`
}

// Detail is the full receipt row plus a link to the archived PDF.
// Field names mirror the database columns so the payload reads the
// same as the stored record.
type Detail struct {
	ID                 string `json:"generated_receipt_id"`
	OriginalFilename   string `json:"original_pdf_filename"`
	Date               string `json:"date"`
	Amount             string `json:"amount"`
	Tax                string `json:"tax"`
	TaxRate            string `json:"tax_rate"`
	VendorName         string `json:"vendor_name"`
	VendorAddress      string `json:"vendor_address"`
	VendorPhone        string `json:"vendor_phone"`
	RegistrationNumber string `json:"registration_number"`
	Description        string `json:"description"`
	Category           string `json:"category"`
	RawExtracted       string `json:"original_extracted_data"`
	Feedback           string `json:"feedback"`
	Score              *int   `json:"evaluation_score"`
	ErrorMessage       string `json:"error_message,omitempty"`
	ProcessedAt        string `json:"processed_timestamp"`
	PDFURL             string `json:"pdf_url"`
}

func toSuccessSummary(r store.Record) SuccessSummary {
	return SuccessSummary{
		ID:         r.ID,
		Date:       r.Date,
		Amount:     r.Amount,
		VendorName: r.VendorName,
		Category:   r.Category,
		Score:      r.Score,
	}
}

func toFailureSummary(r store.Record) FailureSummary {
	return FailureSummary{
		ID:       r.ID,
		Filename: r.OriginalFilename,
		Error:    r.ErrorMessage,
		Score:    r.Score,
	}
}

func toDetail(r store.Record, basePath string) Detail {
	kind := "success"
	if r.Failed {
		kind = "failed"
	}

	return Detail{
		ID:                 r.ID,
		OriginalFilename:   r.OriginalFilename,
		Date:               r.Date,
		Amount:             r.Amount,
		Tax:                r.Tax,
		TaxRate:            r.TaxRate,
		VendorName:         r.VendorName,
		VendorAddress:      r.VendorAddress,
		VendorPhone:        r.VendorPhone,
		RegistrationNumber: r.RegistrationNumber,
		Description:        r.Description,
		Category:           r.Category,
		RawExtracted:       r.RawExtracted,
		Feedback:           r.Feedback,
		Score:              r.Score,
		ErrorMessage:       r.ErrorMessage,
		ProcessedAt:        r.ProcessedAt,
		PDFURL:             basePath + "/receipt-file/" + r.ID + "/" + kind,
	}
}
