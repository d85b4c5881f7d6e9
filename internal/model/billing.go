package model

import (
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "draft"
	InvoiceStatusIssued InvoiceStatus = "issued"
	InvoiceStatusPaid   InvoiceStatus = "paid"
	InvoiceStatusVoid   InvoiceStatus = "void"
)

// Invoice: at most one per appointment. Billing computation is out of scope;
// the row exists so appointment deletion can clean it up explicitly.
type Invoice struct {
	Base
	AppointmentID uuid.UUID     `db:"appointment_id" json:"appointment_id"`
	TotalCent     int64         `db:"total_cent" json:"total_cent"`
	Status        InvoiceStatus `db:"status" json:"status"`
	IssuedAt      *time.Time    `db:"issued_at" json:"issued_at,omitempty"`
}

// Prescription: zero or more per appointment, never affects scheduling.
type Prescription struct {
	Base
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	Medication    string    `db:"medication" json:"medication"`
	Dosage        string    `db:"dosage" json:"dosage"`
	Instructions  string    `db:"instructions" json:"instructions,omitempty"`
}
