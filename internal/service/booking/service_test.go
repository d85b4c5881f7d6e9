package booking

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/repository"
	apperrors "github.com/clinicore/booking-api/pkg/errors"
	"github.com/clinicore/booking-api/pkg/logger"
	"github.com/clinicore/booking-api/pkg/metrics"
)

// --- fakes ---

type fakeAppointmentRepo struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
	events       []*model.OutboxEvent
	lockedKeys   []repository.ScheduleLockKey
	txCount      int
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (r *fakeAppointmentRepo) Transact(ctx context.Context, fn func(tx repository.AppointmentTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txCount++
	return fn(&fakeTx{repo: r})
}

func (r *fakeAppointmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *fakeAppointmentRepo) get(id uuid.UUID) (*model.Appointment, error) {
	apt, ok := r.appointments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *apt
	return &cp, nil
}

func (r *fakeAppointmentRepo) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, apt := range r.appointments {
		if filters.DoctorID != uuid.Nil && apt.DoctorID != filters.DoctorID {
			continue
		}
		if filters.Status != "" && apt.Status != filters.Status {
			continue
		}
		cp := *apt
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeAppointmentRepo) ListActiveForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeForDoctor(doctorID, from, to), nil
}

func (r *fakeAppointmentRepo) activeForDoctor(doctorID uuid.UUID, from, to time.Time) []*model.Appointment {
	var out []*model.Appointment
	for _, apt := range r.appointments {
		if apt.DoctorID != doctorID || !apt.Status.Active() {
			continue
		}
		if apt.ScheduledStart.Before(to) && from.Before(apt.ScheduledEnd) {
			cp := *apt
			out = append(out, &cp)
		}
	}
	return out
}

type fakeTx struct {
	repo *fakeAppointmentRepo
}

func (t *fakeTx) LockSchedules(ctx context.Context, keys ...repository.ScheduleLockKey) error {
	t.repo.lockedKeys = append(t.repo.lockedKeys, keys...)
	return nil
}

func (t *fakeTx) ListActiveForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	return t.repo.activeForDoctor(doctorID, from, to), nil
}

func (t *fakeTx) ListActiveForRoom(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, apt := range t.repo.appointments {
		if apt.RoomID == nil || *apt.RoomID != roomID || !apt.Status.Active() {
			continue
		}
		if apt.ScheduledStart.Before(to) && from.Before(apt.ScheduledEnd) {
			cp := *apt
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *fakeTx) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return t.repo.get(id)
}

func (t *fakeTx) Create(ctx context.Context, apt *model.Appointment) error {
	cp := *apt
	t.repo.appointments[apt.ID] = &cp
	return nil
}

func (t *fakeTx) UpdateSchedule(ctx context.Context, apt *model.Appointment) error {
	existing, ok := t.repo.appointments[apt.ID]
	if !ok {
		return sql.ErrNoRows
	}
	existing.RoomID = apt.RoomID
	existing.ScheduledStart = apt.ScheduledStart
	existing.ScheduledEnd = apt.ScheduledEnd
	return nil
}

func (t *fakeTx) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus, cancelReason *string) error {
	existing, ok := t.repo.appointments[id]
	if !ok {
		return sql.ErrNoRows
	}
	existing.Status = status
	existing.CancelReason = cancelReason
	return nil
}

func (t *fakeTx) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.repo.appointments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(t.repo.appointments, id)
	return nil
}

func (t *fakeTx) CreateOutboxEvent(ctx context.Context, event *model.OutboxEvent) error {
	t.repo.events = append(t.repo.events, event)
	return nil
}

type fakeDoctorRepo struct {
	doctors map[uuid.UUID]*model.Doctor
}

func (r *fakeDoctorRepo) Create(ctx context.Context, d *model.Doctor) error { return nil }
func (r *fakeDoctorRepo) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	d, ok := r.doctors[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return d, nil
}
func (r *fakeDoctorRepo) GetByEmail(ctx context.Context, email string) (*model.Doctor, error) {
	return nil, sql.ErrNoRows
}
func (r *fakeDoctorRepo) Update(ctx context.Context, d *model.Doctor) error { return nil }
func (r *fakeDoctorRepo) List(ctx context.Context) ([]*model.Doctor, error) { return nil, nil }

type fakePatientRepo struct {
	patients map[uuid.UUID]*model.Patient
	getErr   error
}

func (r *fakePatientRepo) Create(ctx context.Context, p *model.Patient) error { return nil }
func (r *fakePatientRepo) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	p, ok := r.patients[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}
func (r *fakePatientRepo) Update(ctx context.Context, p *model.Patient) error { return nil }
func (r *fakePatientRepo) List(ctx context.Context, page model.Pagination) ([]*model.Patient, error) {
	return nil, nil
}

type fakeRoomRepo struct {
	rooms  map[uuid.UUID]*model.Room
	getErr error
}

func (r *fakeRoomRepo) Create(ctx context.Context, room *model.Room) error { return nil }
func (r *fakeRoomRepo) Get(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	room, ok := r.rooms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return room, nil
}
func (r *fakeRoomRepo) List(ctx context.Context) ([]*model.Room, error) { return nil, nil }

type fakeNotifier struct {
	confirmations int
	cancellations int
}

func (n *fakeNotifier) SendBookingConfirmation(ctx context.Context, p *model.Patient, d *model.Doctor, a *model.Appointment) error {
	n.confirmations++
	return nil
}

func (n *fakeNotifier) SendCancellation(ctx context.Context, p *model.Patient, a *model.Appointment, reason string) error {
	n.cancellations++
	return nil
}

// --- fixture ---

type fixture struct {
	svc      *Service
	repo     *fakeAppointmentRepo
	patients *fakePatientRepo
	rooms    *fakeRoomRepo
	notifier *fakeNotifier
	doctor   *model.Doctor
	patient  *model.Patient
	room     *model.Room
}

var testMetrics = metrics.NewMetrics("booking_test", "svc")

func newFixture(t *testing.T) *fixture {
	t.Helper()

	doctor := &model.Doctor{
		Name:      "Dr. Reed",
		Email:     "reed@clinic.test",
		Specialty: model.SpecialtyGeneralPractice,
		Active:    true,
	}
	doctor.ID = uuid.New()

	patient := &model.Patient{Name: "Ada Park", Email: "ada@patients.test"}
	patient.ID = uuid.New()

	room := &model.Room{Name: "Exam 1", Type: model.RoomTypeExam}
	room.ID = uuid.New()

	repo := newFakeAppointmentRepo()
	patients := &fakePatientRepo{patients: map[uuid.UUID]*model.Patient{patient.ID: patient}}
	rooms := &fakeRoomRepo{rooms: map[uuid.UUID]*model.Room{room.ID: room}}
	notifier := &fakeNotifier{}

	svc := NewService(
		repo,
		&fakeDoctorRepo{doctors: map[uuid.UUID]*model.Doctor{doctor.ID: doctor}},
		patients,
		rooms,
		notifier,
		testMetrics,
		logger.NewLogger(nil),
	)

	return &fixture{
		svc:      svc,
		repo:     repo,
		patients: patients,
		rooms:    rooms,
		notifier: notifier,
		doctor:   doctor,
		patient:  patient,
		room:     room,
	}
}

func (f *fixture) bookAt(t *testing.T, start, end time.Time) *model.Appointment {
	t.Helper()
	apt, err := f.svc.Book(context.Background(), &model.CreateAppointmentRequest{
		PatientID:      f.patient.ID,
		DoctorID:       f.doctor.ID,
		ScheduledStart: start,
		ScheduledEnd:   end,
		Reason:         "checkup",
	})
	require.NoError(t, err)
	return apt
}

var slotDay = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func slot(hour, min int) time.Time {
	return slotDay.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func rejectionCode(t *testing.T, err error) apperrors.ErrorCode {
	t.Helper()
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr.Code
}

// --- tests ---

func TestBookSuccess(t *testing.T) {
	f := newFixture(t)

	apt := f.bookAt(t, slot(10, 0), slot(10, 30))

	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	assert.NotEqual(t, uuid.Nil, apt.ID)

	stored, err := f.repo.Get(context.Background(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, f.doctor.ID, stored.DoctorID)

	require.Len(t, f.repo.events, 1)
	assert.Equal(t, model.EventAppointmentCreated, f.repo.events[0].EventType)
	assert.Equal(t, 1, f.notifier.confirmations)
	assert.NotEmpty(t, f.repo.lockedKeys)
}

func TestBookDoctorDoubleBooked(t *testing.T) {
	f := newFixture(t)
	existing := f.bookAt(t, slot(10, 0), slot(11, 0))

	_, err := f.svc.Book(context.Background(), &model.CreateAppointmentRequest{
		PatientID:      f.patient.ID,
		DoctorID:       f.doctor.ID,
		ScheduledStart: slot(10, 30),
		ScheduledEnd:   slot(11, 30),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrDoctorDoubleBooked, rejectionCode(t, err))

	// Nothing was written for the rejected booking.
	assert.Len(t, f.repo.appointments, 1)
	require.Len(t, f.repo.events, 1)
	_ = existing
}

func TestBookTouchingIntervalsAccepted(t *testing.T) {
	f := newFixture(t)
	f.bookAt(t, slot(10, 0), slot(10, 30))

	// Back-to-back with the existing booking: half-open intervals do not touch.
	apt := f.bookAt(t, slot(10, 30), slot(11, 0))
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	assert.Len(t, f.repo.appointments, 2)
}

func TestBookIgnoresCancelledAppointments(t *testing.T) {
	f := newFixture(t)
	existing := f.bookAt(t, slot(10, 0), slot(11, 0))

	_, err := f.svc.Cancel(context.Background(), existing.ID, "patient request")
	require.NoError(t, err)

	apt := f.bookAt(t, slot(10, 0), slot(11, 0))
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
}

func TestBookRoomDoubleBooked(t *testing.T) {
	f := newFixture(t)

	// Occupy the room with a different doctor so only the room conflicts.
	otherDoctor := uuid.New()
	occupied := &model.Appointment{
		PatientID:      f.patient.ID,
		DoctorID:       otherDoctor,
		RoomID:         &f.room.ID,
		ScheduledStart: slot(10, 0),
		ScheduledEnd:   slot(11, 0),
		Status:         model.AppointmentStatusScheduled,
	}
	occupied.ID = uuid.New()
	f.repo.appointments[occupied.ID] = occupied

	_, err := f.svc.Book(context.Background(), &model.CreateAppointmentRequest{
		PatientID:      f.patient.ID,
		DoctorID:       f.doctor.ID,
		RoomID:         &f.room.ID,
		ScheduledStart: slot(10, 30),
		ScheduledEnd:   slot(11, 30),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrRoomDoubleBooked, rejectionCode(t, err))
}

func TestBookNilRoomIgnoresRoomOccupancy(t *testing.T) {
	f := newFixture(t)

	otherDoctor := uuid.New()
	occupied := &model.Appointment{
		PatientID:      f.patient.ID,
		DoctorID:       otherDoctor,
		RoomID:         &f.room.ID,
		ScheduledStart: slot(10, 0),
		ScheduledEnd:   slot(11, 0),
		Status:         model.AppointmentStatusScheduled,
	}
	occupied.ID = uuid.New()
	f.repo.appointments[occupied.ID] = occupied

	apt := f.bookAt(t, slot(10, 0), slot(11, 0))
	assert.Nil(t, apt.RoomID)
}

func TestBookInvalidInterval(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct{ start, end time.Time }{
		{slot(10, 0), slot(10, 0)},
		{slot(11, 0), slot(10, 0)},
	} {
		_, err := f.svc.Book(context.Background(), &model.CreateAppointmentRequest{
			PatientID:      f.patient.ID,
			DoctorID:       f.doctor.ID,
			ScheduledStart: tc.start,
			ScheduledEnd:   tc.end,
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrInvalidInterval, rejectionCode(t, err))
	}

	// Precondition failures never open a transaction.
	assert.Equal(t, 0, f.repo.txCount)
}

func TestBookInactiveDoctor(t *testing.T) {
	f := newFixture(t)
	f.doctor.Active = false

	_, err := f.svc.Book(context.Background(), &model.CreateAppointmentRequest{
		PatientID:      f.patient.ID,
		DoctorID:       f.doctor.ID,
		ScheduledStart: slot(10, 0),
		ScheduledEnd:   slot(10, 30),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInactiveDoctor, rejectionCode(t, err))
	assert.Equal(t, 0, f.repo.txCount)
}

func TestBookUnknownDoctor(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Book(context.Background(), &model.CreateAppointmentRequest{
		PatientID:      f.patient.ID,
		DoctorID:       uuid.New(),
		ScheduledStart: slot(10, 0),
		ScheduledEnd:   slot(10, 30),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, rejectionCode(t, err))
}

func TestBookPatientLookupFailure(t *testing.T) {
	f := newFixture(t)
	f.patients.getErr = errors.New("connection reset")

	_, err := f.svc.Book(context.Background(), &model.CreateAppointmentRequest{
		PatientID:      f.patient.ID,
		DoctorID:       f.doctor.ID,
		ScheduledStart: slot(10, 0),
		ScheduledEnd:   slot(10, 30),
	})
	require.Error(t, err)

	// A broken repository is a server fault, not a missing patient.
	assert.Equal(t, apperrors.ErrInternal, rejectionCode(t, err))
}

func TestBookRoomLookupFailure(t *testing.T) {
	f := newFixture(t)
	f.rooms.getErr = errors.New("connection reset")

	_, err := f.svc.Book(context.Background(), &model.CreateAppointmentRequest{
		PatientID:      f.patient.ID,
		DoctorID:       f.doctor.ID,
		RoomID:         &f.room.ID,
		ScheduledStart: slot(10, 0),
		ScheduledEnd:   slot(10, 30),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInternal, rejectionCode(t, err))
}

func TestBookUnknownRoom(t *testing.T) {
	f := newFixture(t)
	unknown := uuid.New()

	_, err := f.svc.Book(context.Background(), &model.CreateAppointmentRequest{
		PatientID:      f.patient.ID,
		DoctorID:       f.doctor.ID,
		RoomID:         &unknown,
		ScheduledStart: slot(10, 0),
		ScheduledEnd:   slot(10, 30),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, rejectionCode(t, err))
}

func TestRescheduleExcludesSelf(t *testing.T) {
	f := newFixture(t)
	apt := f.bookAt(t, slot(10, 0), slot(11, 0))

	// Shift by 30 minutes, overlapping its own old slot.
	moved, err := f.svc.Reschedule(context.Background(), apt.ID, &model.RescheduleAppointmentRequest{
		ScheduledStart: slot(10, 30),
		ScheduledEnd:   slot(11, 30),
	})
	require.NoError(t, err)
	assert.Equal(t, slot(10, 30), moved.ScheduledStart)

	stored, err := f.repo.Get(context.Background(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, slot(11, 30), stored.ScheduledEnd)
}

func TestRescheduleIntoOtherBookingRejected(t *testing.T) {
	f := newFixture(t)
	apt := f.bookAt(t, slot(9, 0), slot(9, 30))
	f.bookAt(t, slot(10, 0), slot(11, 0))

	_, err := f.svc.Reschedule(context.Background(), apt.ID, &model.RescheduleAppointmentRequest{
		ScheduledStart: slot(10, 30),
		ScheduledEnd:   slot(11, 30),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrDoctorDoubleBooked, rejectionCode(t, err))
}

func TestLifecycleTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.bookAt(t, slot(10, 0), slot(10, 30))

	// Completed requires CheckedIn first.
	_, err := f.svc.Complete(ctx, apt.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidTransition, rejectionCode(t, err))

	checked, err := f.svc.CheckIn(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCheckedIn, checked.Status)

	done, err := f.svc.Complete(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, done.Status)

	// Terminal states are immutable.
	_, err = f.svc.Cancel(ctx, apt.ID, "too late")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidTransition, rejectionCode(t, err))
}

func TestCancelWritesReasonAndNotifies(t *testing.T) {
	f := newFixture(t)
	apt := f.bookAt(t, slot(10, 0), slot(10, 30))

	cancelled, err := f.svc.Cancel(context.Background(), apt.ID, "patient request")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "patient request", *cancelled.CancelReason)
	assert.Equal(t, 1, f.notifier.cancellations)

	// created + cancelled outbox events
	require.Len(t, f.repo.events, 2)
	assert.Equal(t, model.EventAppointmentCancelled, f.repo.events[1].EventType)
}

func TestNoShowFromScheduled(t *testing.T) {
	f := newFixture(t)
	apt := f.bookAt(t, slot(10, 0), slot(10, 30))

	marked, err := f.svc.MarkNoShow(context.Background(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusNoShow, marked.Status)
}

func TestDeleteOnlyCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.bookAt(t, slot(10, 0), slot(10, 30))

	err := f.svc.Delete(ctx, apt.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, rejectionCode(t, err))

	_, err = f.svc.Cancel(ctx, apt.ID, "dup entry")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, apt.ID))
	_, err = f.svc.Get(ctx, apt.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, rejectionCode(t, err))
}

func TestBookIdempotentDecision(t *testing.T) {
	f := newFixture(t)
	f.bookAt(t, slot(10, 0), slot(11, 0))

	req := &model.CreateAppointmentRequest{
		PatientID:      f.patient.ID,
		DoctorID:       f.doctor.ID,
		ScheduledStart: slot(10, 15),
		ScheduledEnd:   slot(10, 45),
	}

	_, err1 := f.svc.Book(context.Background(), req)
	_, err2 := f.svc.Book(context.Background(), req)
	require.Error(t, err1)
	require.Error(t, err2)
	assert.Equal(t, rejectionCode(t, err1), rejectionCode(t, err2))
}
