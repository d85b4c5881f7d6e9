package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/repository"
	"github.com/clinicore/booking-api/internal/scheduling"
	"github.com/clinicore/booking-api/internal/service/notification"
	apperrors "github.com/clinicore/booking-api/pkg/errors"
	"github.com/clinicore/booking-api/pkg/logger"
	"github.com/clinicore/booking-api/pkg/metrics"
	"github.com/clinicore/booking-api/pkg/validator"
)

const (
	lookupCacheTTL     = 5 * time.Minute
	lookupCacheCleanup = 10 * time.Minute
)

// Service owns the booking workflow around the scheduling validator: it is
// the only writer of appointments and always runs validate-then-insert inside
// one transaction holding the schedule advisory locks.
type Service struct {
	appointments repository.AppointmentRepository
	doctors      repository.DoctorRepository
	patients     repository.PatientRepository
	rooms        repository.RoomRepository
	notifier     notification.Service
	validate     *validator.Validator
	lookups      *cache.Cache
	metrics      *metrics.Metrics
	logger       *logger.Logger
}

func NewService(
	appointments repository.AppointmentRepository,
	doctors repository.DoctorRepository,
	patients repository.PatientRepository,
	rooms repository.RoomRepository,
	notifier notification.Service,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		appointments: appointments,
		doctors:      doctors,
		patients:     patients,
		rooms:        rooms,
		notifier:     notifier,
		validate:     validator.New(),
		lookups:      cache.New(lookupCacheTTL, lookupCacheCleanup),
		metrics:      m,
		logger:       log,
	}
}

// Book validates and persists a new appointment. On rejection the returned
// error carries the validator's structured decision; no state is written.
func (s *Service) Book(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}

	doctor, err := s.doctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	patient, err := s.patient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if req.RoomID != nil {
		if _, err := s.room(ctx, *req.RoomID); err != nil {
			return nil, err
		}
	}

	apt := &model.Appointment{
		PatientID:      req.PatientID,
		DoctorID:       req.DoctorID,
		RoomID:         req.RoomID,
		ScheduledStart: req.ScheduledStart,
		ScheduledEnd:   req.ScheduledEnd,
		Status:         model.AppointmentStatusScheduled,
		Reason:         req.Reason,
	}
	apt.ID = uuid.New()
	apt.CreatedAt = time.Now()
	apt.UpdatedAt = time.Now()

	candidate := scheduling.Candidate{
		DoctorID: apt.DoctorID,
		RoomID:   apt.RoomID,
		Start:    apt.ScheduledStart,
		End:      apt.ScheduledEnd,
	}

	err = s.bookInCriticalSection(ctx, candidate, doctor.Active, func(tx repository.AppointmentTx) error {
		if err := tx.Create(ctx, apt); err != nil {
			return err
		}
		return s.writeEvent(ctx, tx, model.EventAppointmentCreated, apt)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.BookingsAccepted.Inc()
	if err := s.notifier.SendBookingConfirmation(ctx, patient, doctor, apt); err != nil {
		s.logger.Error(err, "failed to send booking confirmation", "appointment_id", apt.ID.String())
	}

	return apt, nil
}

// Reschedule moves an appointment to a new slot and optionally a new room,
// revalidating against both calendars with the appointment itself excluded.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}

	apt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.Status != model.AppointmentStatusScheduled {
		return nil, apperrors.InvalidTransition(string(apt.Status), string(model.AppointmentStatusScheduled))
	}

	doctor, err := s.doctor(ctx, apt.DoctorID)
	if err != nil {
		return nil, err
	}
	if req.RoomID != nil {
		if _, err := s.room(ctx, *req.RoomID); err != nil {
			return nil, err
		}
	}

	apt.RoomID = req.RoomID
	apt.ScheduledStart = req.ScheduledStart
	apt.ScheduledEnd = req.ScheduledEnd

	candidate := scheduling.Candidate{
		DoctorID:  apt.DoctorID,
		RoomID:    apt.RoomID,
		Start:     apt.ScheduledStart,
		End:       apt.ScheduledEnd,
		ExcludeID: &apt.ID,
	}

	err = s.bookInCriticalSection(ctx, candidate, doctor.Active, func(tx repository.AppointmentTx) error {
		if err := tx.UpdateSchedule(ctx, apt); err != nil {
			return err
		}
		return s.writeEvent(ctx, tx, model.EventAppointmentRescheduled, apt)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.BookingsAccepted.Inc()
	return apt, nil
}

// bookInCriticalSection runs the validate-then-write sequence under the
// advisory locks for every (doctor, day) and (room, day) the candidate
// touches, closing the race between the conflict read and the write.
func (s *Service) bookInCriticalSection(ctx context.Context, c scheduling.Candidate, doctorActive bool, write func(tx repository.AppointmentTx) error) error {
	timer := prometheus.NewTimer(s.metrics.BookingLatency)
	defer timer.ObserveDuration()

	// Pre-check the cheap preconditions outside the transaction so an
	// obviously bad request never takes a lock.
	if pre := scheduling.Validate(c, doctorActive, nil, nil); !pre.Accepted() {
		return s.reject(pre)
	}

	from, to := dayWindow(c.Start, c.End)

	err := s.appointments.Transact(ctx, func(tx repository.AppointmentTx) error {
		keys := lockKeys(c, from, to)
		if err := tx.LockSchedules(ctx, keys...); err != nil {
			return apperrors.Internal(err)
		}

		doctorAppts, err := tx.ListActiveForDoctor(ctx, c.DoctorID, from, to)
		if err != nil {
			return apperrors.Internal(err)
		}

		var roomAppts []*model.Appointment
		if c.RoomID != nil {
			roomAppts, err = tx.ListActiveForRoom(ctx, *c.RoomID, from, to)
			if err != nil {
				return apperrors.Internal(err)
			}
		}

		decision := scheduling.Validate(c, doctorActive, toBookings(doctorAppts), toBookings(roomAppts))
		if !decision.Accepted() {
			return s.reject(decision)
		}

		if err := write(tx); err != nil {
			return apperrors.Internal(err)
		}
		return nil
	})
	return err
}

func (s *Service) reject(d scheduling.Decision) error {
	s.metrics.BookingsRejected.WithLabelValues(string(d.Kind)).Inc()

	switch d.Kind {
	case scheduling.RejectInvalidInterval:
		return apperrors.Rejection(apperrors.ErrInvalidInterval, "scheduled_end must be after scheduled_start", nil)
	case scheduling.RejectInactiveDoctor:
		return apperrors.Rejection(apperrors.ErrInactiveDoctor, "doctor is not accepting bookings", nil)
	case scheduling.RejectDoctorDoubleBooked:
		return apperrors.Rejection(apperrors.ErrDoctorDoubleBooked, "doctor already booked for this slot", d)
	case scheduling.RejectRoomDoubleBooked:
		return apperrors.Rejection(apperrors.ErrRoomDoubleBooked, "room already booked for this slot", d)
	default:
		return apperrors.Internal(fmt.Errorf("unknown rejection kind %q", d.Kind))
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.appointments.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, apperrors.Internal(err)
	}
	return apt, nil
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	appointments, err := s.appointments.List(ctx, filters)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return appointments, nil
}

func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, id, model.AppointmentStatusCheckedIn, model.EventAppointmentCheckedIn, nil)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, id, model.AppointmentStatusCompleted, model.EventAppointmentCompleted, nil)
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, id, model.AppointmentStatusNoShow, model.EventAppointmentNoShow, nil)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Appointment, error) {
	apt, err := s.transition(ctx, id, model.AppointmentStatusCancelled, model.EventAppointmentCancelled, &reason)
	if err != nil {
		return nil, err
	}

	if patient, perr := s.patient(ctx, apt.PatientID); perr == nil {
		if nerr := s.notifier.SendCancellation(ctx, patient, apt, reason); nerr != nil {
			s.logger.Error(nerr, "failed to send cancellation notice", "appointment_id", apt.ID.String())
		}
	}
	return apt, nil
}

// transition applies one lifecycle edge atomically with its outbox event.
// The row is re-read inside the transaction so concurrent transitions
// serialize on the row rather than racing on a stale status.
func (s *Service) transition(ctx context.Context, id uuid.UUID, next model.AppointmentStatus, eventType string, cancelReason *string) (*model.Appointment, error) {
	var apt *model.Appointment

	err := s.appointments.Transact(ctx, func(tx repository.AppointmentTx) error {
		current, err := tx.Get(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NotFound("appointment", err)
			}
			return apperrors.Internal(err)
		}

		if !current.Status.CanTransition(next) {
			return apperrors.InvalidTransition(string(current.Status), string(next))
		}

		if err := tx.UpdateStatus(ctx, id, next, cancelReason); err != nil {
			return apperrors.Internal(err)
		}

		current.Status = next
		current.CancelReason = cancelReason
		apt = current

		return s.writeEvent(ctx, tx, eventType, current)
	})
	if err != nil {
		return nil, err
	}
	return apt, nil
}

// Delete removes a cancelled appointment and its dependent billing and
// prescription rows in one transaction.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.appointments.Transact(ctx, func(tx repository.AppointmentTx) error {
		apt, err := tx.Get(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NotFound("appointment", err)
			}
			return apperrors.Internal(err)
		}

		if apt.Status != model.AppointmentStatusCancelled {
			return apperrors.BadRequest("only cancelled appointments can be deleted", nil)
		}

		if err := tx.Delete(ctx, id); err != nil {
			return apperrors.Internal(err)
		}
		return nil
	})
}

func (s *Service) writeEvent(ctx context.Context, tx repository.AppointmentTx, eventType string, apt *model.Appointment) error {
	payload, err := json.Marshal(apt)
	if err != nil {
		return apperrors.Internal(err)
	}
	if err := tx.CreateOutboxEvent(ctx, &model.OutboxEvent{EventType: eventType, Payload: payload}); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

func (s *Service) doctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	key := "doctor:" + id.String()
	if cached, ok := s.lookups.Get(key); ok {
		return cached.(*model.Doctor), nil
	}

	doctor, err := s.doctors.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("doctor", err)
		}
		return nil, apperrors.Internal(err)
	}

	s.lookups.Set(key, doctor, cache.DefaultExpiration)
	return doctor, nil
}

func (s *Service) room(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	key := "room:" + id.String()
	if cached, ok := s.lookups.Get(key); ok {
		return cached.(*model.Room), nil
	}

	room, err := s.rooms.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("room", err)
		}
		return nil, apperrors.Internal(err)
	}

	s.lookups.Set(key, room, cache.DefaultExpiration)
	return room, nil
}

func (s *Service) patient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.patients.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("patient", err)
		}
		return nil, apperrors.Internal(err)
	}
	return patient, nil
}

// InvalidateDoctor drops a doctor from the lookup cache; doctor updates call
// this so an active-flag flip takes effect immediately.
func (s *Service) InvalidateDoctor(id uuid.UUID) {
	s.lookups.Delete("doctor:" + id.String())
}

func toBookings(appointments []*model.Appointment) []scheduling.Booking {
	bookings := make([]scheduling.Booking, 0, len(appointments))
	for _, apt := range appointments {
		bookings = append(bookings, scheduling.Booking{
			ID:     apt.ID,
			Start:  apt.ScheduledStart,
			End:    apt.ScheduledEnd,
			Status: apt.Status,
		})
	}
	return bookings
}

// dayWindow expands an interval to whole UTC days so the conflict read covers
// every booking the advisory locks guard.
func dayWindow(start, end time.Time) (time.Time, time.Time) {
	from := start.UTC().Truncate(24 * time.Hour)
	to := end.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	return from, to
}

func lockKeys(c scheduling.Candidate, from, to time.Time) []repository.ScheduleLockKey {
	var keys []repository.ScheduleLockKey
	for day := from; day.Before(to); day = day.Add(24 * time.Hour) {
		keys = append(keys, repository.DoctorLockKey(c.DoctorID, day))
		if c.RoomID != nil {
			keys = append(keys, repository.RoomLockKey(*c.RoomID, day))
		}
	}
	return keys
}
