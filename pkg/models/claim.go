package models

import (
	"strings"

	"github.com/Gobusters/ectolinq"
)

// ClaimRecord is the structured record extracted from a scanned claim form
// by the upstream OCR/LLM pipeline. It is immutable input to the matching
// engine; only the enrichment fields are appended after a successful match.
type ClaimRecord struct {
	ClaimID      string        `json:"claim_id,omitempty"`
	PatientInfo  PatientInfo   `json:"patient_info"`
	ServiceLines []ServiceLine `json:"service_lines"`

	// Enrichment fields, populated on match
	OrderID               string `json:"order_id,omitempty"`
	FileMakerRecordNumber string `json:"filemaker_record_number,omitempty"`
}

// PatientInfo holds the patient fields extracted from the form header
type PatientInfo struct {
	PatientName string `json:"patient_name,omitempty"`
	PatientDOB  string `json:"patient_dob,omitempty"`
}

// ServiceLine is one billed line on the claim form. All fields arrive as
// raw strings from extraction and may be empty.
type ServiceLine struct {
	DateOfService string `json:"date_of_service,omitempty"`
	CPTCode       string `json:"cpt_code,omitempty"`
	ChargeAmount  string `json:"charge_amount,omitempty"`
}

// PatientName returns the raw extracted patient name.
func (c *ClaimRecord) PatientName() string {
	return c.PatientInfo.PatientName
}

// RawDates returns the date-of-service strings in service-line order.
// Absent dates are kept as empty strings; the date parser drops them.
func (c *ClaimRecord) RawDates() []string {
	return ectolinq.Map(c.ServiceLines, func(line ServiceLine) string {
		return line.DateOfService
	})
}

// CPTCodes returns the deduplicated, trimmed procedure codes from the
// claim's service lines. Lines with no code are skipped.
func (c *ClaimRecord) CPTCodes() map[string]struct{} {
	codes := make(map[string]struct{})
	for _, line := range c.ServiceLines {
		code := strings.TrimSpace(line.CPTCode)
		if code == "" {
			continue
		}
		codes[code] = struct{}{}
	}
	return codes
}

// WithMatch returns a copy of the claim with the enrichment fields set.
func (c *ClaimRecord) WithMatch(orderID, fileMakerRecordNumber string) *ClaimRecord {
	enriched := *c
	enriched.ServiceLines = append([]ServiceLine(nil), c.ServiceLines...)
	enriched.OrderID = orderID
	enriched.FileMakerRecordNumber = fileMakerRecordNumber
	return &enriched
}
