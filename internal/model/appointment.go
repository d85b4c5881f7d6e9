package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCheckedIn AppointmentStatus = "checked_in"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusCheckedIn,
		AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// Active reports whether an appointment in this status still holds its
// doctor and room slot. Terminal statuses never block new bookings.
func (s AppointmentStatus) Active() bool {
	return s == AppointmentStatusScheduled || s == AppointmentStatusCheckedIn
}

func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// statusTransitions is the closed lifecycle table: Scheduled moves forward to
// CheckedIn or diverts to Cancelled/NoShow; CheckedIn moves to Completed or
// Cancelled. Terminal statuses have no outgoing edges.
var statusTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled: {AppointmentStatusCheckedIn, AppointmentStatusCancelled, AppointmentStatusNoShow},
	AppointmentStatusCheckedIn: {AppointmentStatusCompleted, AppointmentStatusCancelled},
}

// CanTransition reports whether the lifecycle table allows moving from s to next.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

type Appointment struct {
	Base
	PatientID      uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID       uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	RoomID         *uuid.UUID        `db:"room_id" json:"room_id,omitempty"`
	ScheduledStart time.Time         `db:"scheduled_start" json:"scheduled_start"`
	ScheduledEnd   time.Time         `db:"scheduled_end" json:"scheduled_end"`
	Status         AppointmentStatus `db:"status" json:"status"`
	Reason         string            `db:"reason" json:"reason,omitempty"`
	CancelReason   *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

type CreateAppointmentRequest struct {
	PatientID      uuid.UUID  `json:"patient_id" validate:"required"`
	DoctorID       uuid.UUID  `json:"doctor_id" validate:"required"`
	RoomID         *uuid.UUID `json:"room_id"`
	ScheduledStart time.Time  `json:"scheduled_start" validate:"required"`
	ScheduledEnd   time.Time  `json:"scheduled_end" validate:"required"`
	Reason         string     `json:"reason" validate:"max=1000"`
}

// Interval ordering is deliberately not a struct rule: the scheduling
// validator owns it so a reversed interval reports as invalid_interval.
type RescheduleAppointmentRequest struct {
	RoomID         *uuid.UUID `json:"room_id"`
	ScheduledStart time.Time  `json:"scheduled_start" validate:"required"`
	ScheduledEnd   time.Time  `json:"scheduled_end" validate:"required"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type AppointmentFilters struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	RoomID    uuid.UUID
	Status    AppointmentStatus
	StartDate time.Time
	EndDate   time.Time
}

type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
