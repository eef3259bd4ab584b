package models

import (
	"strings"
	"time"
)

// OrderRecord is one reference-ledger entry: a known service order with the
// service dates and procedure codes derived from its line items. Records
// are built once by the reference index loader and never mutated by
// matching.
type OrderRecord struct {
	OrderID               string `json:"order_id" db:"order_id"`
	FileMakerRecordNumber string `json:"filemaker_record_number" db:"filemaker_record_number"`
	PatientLastName       string `json:"patient_last_name,omitempty" db:"patient_last_name"`
	PatientFirstName      string `json:"patient_first_name,omitempty" db:"patient_first_name"`
	PatientName           string `json:"patient_name,omitempty" db:"patient_name"`

	// NormalizedName is the comparison fingerprint of DisplayName,
	// computed at index build time.
	NormalizedName string `json:"normalized_name,omitempty" db:"-"`

	// DatesOfService holds the line-item dates that parsed successfully,
	// in line-item order. May be empty; such orders can never satisfy the
	// date-proximity condition but stay in the index.
	DatesOfService []time.Time `json:"-" db:"-"`

	// CPTCodes holds the distinct, trimmed procedure codes from the
	// order's line items.
	CPTCodes map[string]struct{} `json:"-" db:"-"`
}

// DisplayName returns the raw name used for matching: the combined
// patient-name column when the ledger has one, otherwise last and first
// name joined.
func (o *OrderRecord) DisplayName() string {
	if strings.TrimSpace(o.PatientName) != "" {
		return o.PatientName
	}
	return strings.TrimSpace(o.PatientLastName + " " + o.PatientFirstName)
}
