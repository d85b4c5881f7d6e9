package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/booking-api/internal/model"
)

// ScheduleLockKey identifies one advisory-lock slot: a doctor's or a room's
// calendar for a single day. Booking writes for the same key serialize on it.
type ScheduleLockKey struct {
	Kind string // "doctor" or "room"
	ID   uuid.UUID
	Day  time.Time
}

func DoctorLockKey(id uuid.UUID, day time.Time) ScheduleLockKey {
	return ScheduleLockKey{Kind: "doctor", ID: id, Day: day.Truncate(24 * time.Hour)}
}

func RoomLockKey(id uuid.UUID, day time.Time) ScheduleLockKey {
	return ScheduleLockKey{Kind: "room", ID: id, Day: day.Truncate(24 * time.Hour)}
}

// AppointmentTx is the transaction-scoped surface the booking workflow runs
// its critical section against: take the schedule locks, re-read the active
// bookings, then write. Everything inside one Transact call commits or rolls
// back together, outbox row included.
type AppointmentTx interface {
	LockSchedules(ctx context.Context, keys ...ScheduleLockKey) error
	ListActiveForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
	ListActiveForRoom(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	Create(ctx context.Context, apt *model.Appointment) error
	UpdateSchedule(ctx context.Context, apt *model.Appointment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus, cancelReason *string) error
	Delete(ctx context.Context, id uuid.UUID) error
	CreateOutboxEvent(ctx context.Context, event *model.OutboxEvent) error
}

type AppointmentRepository interface {
	Transact(ctx context.Context, fn func(tx AppointmentTx) error) error
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
	ListActiveForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, doctor *model.Doctor) error
	Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	GetByEmail(ctx context.Context, email string) (*model.Doctor, error)
	Update(ctx context.Context, doctor *model.Doctor) error
	List(ctx context.Context) ([]*model.Doctor, error)
}

type PatientRepository interface {
	Create(ctx context.Context, patient *model.Patient) error
	Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	Update(ctx context.Context, patient *model.Patient) error
	List(ctx context.Context, page model.Pagination) ([]*model.Patient, error)
}

type RoomRepository interface {
	Create(ctx context.Context, room *model.Room) error
	Get(ctx context.Context, id uuid.UUID) (*model.Room, error)
	List(ctx context.Context) ([]*model.Room, error)
}

type ServiceRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Service, error)
	List(ctx context.Context) ([]*model.Service, error)
	Attach(ctx context.Context, link *model.AppointmentService) error
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.Service, error)
}

// OutboxRepository hands events to the publisher. ClaimPendingEvents moves a
// batch to processing atomically, so concurrent pollers (the API binary and
// the worker binary both run one) never fetch the same rows. MarkFailed
// requeues the event as pending until maxRetries publish failures have
// accumulated, then parks it as failed.
type OutboxRepository interface {
	Create(ctx context.Context, event *model.OutboxEvent) error
	ClaimPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMessage string, maxRetries int) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
