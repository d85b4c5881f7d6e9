package model

import "github.com/google/uuid"

// Service is a row of the billable service catalog. The catalog is
// admin-extensible, so it stays a table rather than a closed enum.
type Service struct {
	Base
	Code      string `db:"code" json:"code"`
	Name      string `db:"name" json:"name"`
	PriceCent int64  `db:"price_cent" json:"price_cent"`
}

// AppointmentService links an appointment to a billable service.
type AppointmentService struct {
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	ServiceID     uuid.UUID `db:"service_id" json:"service_id"`
	Quantity      int       `db:"quantity" json:"quantity"`
}
