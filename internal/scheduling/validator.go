// Package scheduling decides whether a proposed appointment may be booked.
//
// The validator is a pure function over a candidate slot and the active
// bookings already held by the same doctor and room. It performs no storage
// access and holds no state; callers pre-filter bookings to the relevant
// window and invoke it inside whatever critical section protects the
// subsequent write.
package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/booking-api/internal/model"
)

type RejectionKind string

const (
	RejectInvalidInterval    RejectionKind = "invalid_interval"
	RejectInactiveDoctor     RejectionKind = "inactive_doctor"
	RejectDoctorDoubleBooked RejectionKind = "doctor_double_booked"
	RejectRoomDoubleBooked   RejectionKind = "room_double_booked"
)

// Candidate is a proposed appointment slot. RoomID is optional; a candidate
// without a room never conflicts on room. ExcludeID, when set, ignores that
// appointment during both scans so a reschedule does not collide with itself.
type Candidate struct {
	DoctorID  uuid.UUID
	RoomID    *uuid.UUID
	Start     time.Time
	End       time.Time
	ExcludeID *uuid.UUID
}

// Booking is the projection of an existing appointment the validator needs.
type Booking struct {
	ID     uuid.UUID
	Start  time.Time
	End    time.Time
	Status model.AppointmentStatus
}

// Conflict identifies the booking that blocked a candidate.
type Conflict struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

// Decision is the validator verdict. A rejected decision always carries the
// kind and, for double bookings, the offending appointment. When both the
// doctor and the room are double booked, Kind reports the doctor conflict
// (reassigning a room cannot resolve it) and RoomConflict carries the other.
type Decision struct {
	Kind         RejectionKind `json:"kind,omitempty"`
	Conflict     *Conflict     `json:"conflict,omitempty"`
	RoomConflict *Conflict     `json:"room_conflict,omitempty"`
}

func (d Decision) Accepted() bool { return d.Kind == "" }

func accept() Decision { return Decision{} }

// Validate runs the precondition checks and the two interval-overlap scans.
// doctorBookings and roomBookings are the existing appointments for the
// candidate's doctor and room respectively; only those in an active status
// (Scheduled, CheckedIn) count toward conflicts.
func Validate(c Candidate, doctorActive bool, doctorBookings, roomBookings []Booking) Decision {
	if !c.End.After(c.Start) {
		return Decision{Kind: RejectInvalidInterval}
	}
	if !doctorActive {
		return Decision{Kind: RejectInactiveDoctor}
	}

	doctorHit := scan(c, doctorBookings)

	var roomHit *Conflict
	if c.RoomID != nil {
		roomHit = scan(c, roomBookings)
	}

	if doctorHit != nil {
		return Decision{Kind: RejectDoctorDoubleBooked, Conflict: doctorHit, RoomConflict: roomHit}
	}
	if roomHit != nil {
		return Decision{Kind: RejectRoomDoubleBooked, Conflict: roomHit}
	}
	return accept()
}

// scan returns the first active booking whose half-open interval intersects
// the candidate's. [s,e) and [s2,e2) overlap iff s < e2 && s2 < e, so a
// booking ending exactly when the candidate starts does not conflict.
func scan(c Candidate, bookings []Booking) *Conflict {
	for _, b := range bookings {
		if !b.Status.Active() {
			continue
		}
		if c.ExcludeID != nil && b.ID == *c.ExcludeID {
			continue
		}
		if c.Start.Before(b.End) && b.Start.Before(c.End) {
			return &Conflict{AppointmentID: b.ID, Start: b.Start, End: b.End}
		}
	}
	return nil
}
