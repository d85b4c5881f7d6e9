package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/repository"
)

const appointmentColumns = `
	id, patient_id, doctor_id, room_id,
	scheduled_start, scheduled_end, status, reason, cancel_reason,
	created_at, updated_at
`

type appointmentTx struct {
	tx *sqlx.Tx
}

func (r *appointmentRepository) Transact(ctx context.Context, fn func(tx repository.AppointmentTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&appointmentTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LockSchedules takes pg_advisory_xact_lock on each key, in sorted order so
// two bookings touching the same doctor/room pair cannot deadlock. The locks
// release automatically at commit or rollback.
func (t *appointmentTx) LockSchedules(ctx context.Context, keys ...repository.ScheduleLockKey) error {
	ids := make([]int64, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, lockID(key))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, id); err != nil {
			return fmt.Errorf("failed to acquire schedule lock: %w", err)
		}
	}
	return nil
}

func lockID(key repository.ScheduleLockKey) int64 {
	h := fnv.New64a()
	h.Write([]byte(key.Kind))
	h.Write([]byte{':'})
	h.Write(key.ID[:])
	h.Write([]byte{':'})
	h.Write([]byte(key.Day.UTC().Format("2006-01-02")))
	return int64(h.Sum64())
}

func (t *appointmentTx) ListActiveForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	return listActiveForDoctor(ctx, t.tx, doctorID, from, to)
}

func (t *appointmentTx) ListActiveForRoom(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE room_id = $1
		AND status IN ('scheduled', 'checked_in')
		AND scheduled_start < $3
		AND scheduled_end > $2
		ORDER BY scheduled_start ASC
	`
	var appointments []*model.Appointment
	if err := sqlx.SelectContext(ctx, t.tx, &appointments, query, roomID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list active room appointments: %w", err)
	}
	return appointments, nil
}

func (t *appointmentTx) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return getAppointment(ctx, t.tx, id)
}

func (t *appointmentTx) Create(ctx context.Context, apt *model.Appointment) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := t.tx.ExecContext(ctx, query,
		apt.ID,
		apt.PatientID,
		apt.DoctorID,
		apt.RoomID,
		apt.ScheduledStart,
		apt.ScheduledEnd,
		apt.Status,
		apt.Reason,
		apt.CancelReason,
		apt.CreatedAt,
		apt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (t *appointmentTx) UpdateSchedule(ctx context.Context, apt *model.Appointment) error {
	query := `
		UPDATE appointments
		SET room_id = $1, scheduled_start = $2, scheduled_end = $3, updated_at = $4
		WHERE id = $5
	`
	apt.UpdatedAt = time.Now()

	result, err := t.tx.ExecContext(ctx, query,
		apt.RoomID,
		apt.ScheduledStart,
		apt.ScheduledEnd,
		apt.UpdatedAt,
		apt.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment schedule: %w", err)
	}
	return requireRow(result)
}

func (t *appointmentTx) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus, cancelReason *string) error {
	query := `
		UPDATE appointments
		SET status = $1, cancel_reason = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := t.tx.ExecContext(ctx, query, status, cancelReason, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	return requireRow(result)
}

// Delete removes the appointment together with its dependent rows. The schema
// would do this with ON DELETE CASCADE; here the ownership is explicit so the
// cleanup is visible and happens in the caller's transaction.
func (t *appointmentTx) Delete(ctx context.Context, id uuid.UUID) error {
	cleanup := []string{
		`DELETE FROM appointment_services WHERE appointment_id = $1`,
		`DELETE FROM prescriptions WHERE appointment_id = $1`,
		`DELETE FROM invoices WHERE appointment_id = $1`,
	}
	for _, q := range cleanup {
		if _, err := t.tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete appointment dependents: %w", err)
		}
	}

	result, err := t.tx.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return requireRow(result)
}

func (t *appointmentTx) CreateOutboxEvent(ctx context.Context, event *model.OutboxEvent) error {
	return createOutboxEvent(ctx, t.tx, event)
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return getAppointment(ctx, r.db, id)
}

func (r *appointmentRepository) ListActiveForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	return listActiveForDoctor(ctx, r.db, doctorID, from, to)
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filters.DoctorID != uuid.Nil {
		query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
		args = append(args, filters.DoctorID)
		argCount++
	}
	if filters.PatientID != uuid.Nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, filters.PatientID)
		argCount++
	}
	if filters.RoomID != uuid.Nil {
		query += fmt.Sprintf(" AND room_id = $%d", argCount)
		args = append(args, filters.RoomID)
		argCount++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}
	if !filters.StartDate.IsZero() {
		query += fmt.Sprintf(" AND scheduled_end > $%d", argCount)
		args = append(args, filters.StartDate)
		argCount++
	}
	if !filters.EndDate.IsZero() {
		query += fmt.Sprintf(" AND scheduled_start < $%d", argCount)
		args = append(args, filters.EndDate)
		argCount++
	}

	query += " ORDER BY scheduled_start ASC"

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func getAppointment(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE id = $1
	`
	var apt model.Appointment
	if err := sqlx.GetContext(ctx, q, &apt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &apt, nil
}

func listActiveForDoctor(ctx context.Context, q sqlx.QueryerContext, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
		AND status IN ('scheduled', 'checked_in')
		AND scheduled_start < $3
		AND scheduled_end > $2
		ORDER BY scheduled_start ASC
	`
	var appointments []*model.Appointment
	if err := sqlx.SelectContext(ctx, q, &appointments, query, doctorID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list active doctor appointments: %w", err)
	}
	return appointments, nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
