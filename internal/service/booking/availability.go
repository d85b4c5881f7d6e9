package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/booking-api/internal/model"
	apperrors "github.com/clinicore/booking-api/pkg/errors"
)

// Clinic working hours bound slot generation. Per-doctor schedules would
// replace these once the roster table lands.
const (
	workdayOpenHour  = 8
	workdayCloseHour = 18
	DefaultSlotLen   = 30 * time.Minute
)

// GetDoctorAvailability returns the free slots of a doctor's working day:
// the slot grid minus every slot that overlaps an active booking.
func (s *Service) GetDoctorAvailability(ctx context.Context, doctorID uuid.UUID, date time.Time, slotLen time.Duration) ([]model.TimeSlot, error) {
	if slotLen <= 0 {
		slotLen = DefaultSlotLen
	}

	doctor, err := s.doctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Active {
		return nil, apperrors.Rejection(apperrors.ErrInactiveDoctor, "doctor is not accepting bookings", nil)
	}

	workday := workdayFor(doctorID, date, slotLen)

	appointments, err := s.appointments.ListActiveForDoctor(ctx, doctorID, workday.Start, workday.End)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return filterAvailableSlots(generateTimeSlots(workday.Start, workday.End, workday.SlotLen), appointments), nil
}

// workdayFor materializes a doctor's bookable window for a calendar day.
// Every doctor currently shares the clinic-wide hours; per-doctor rosters
// will populate this from storage instead.
func workdayFor(doctorID uuid.UUID, date time.Time, slotLen time.Duration) model.DoctorWorkday {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return model.DoctorWorkday{
		DoctorID: doctorID,
		Start:    day.Add(workdayOpenHour * time.Hour),
		End:      day.Add(workdayCloseHour * time.Hour),
		SlotLen:  slotLen,
	}
}

func generateTimeSlots(start, end time.Time, duration time.Duration) []model.TimeSlot {
	var slots []model.TimeSlot
	for t := start; !t.Add(duration).After(end); t = t.Add(duration) {
		slots = append(slots, model.TimeSlot{Start: t, End: t.Add(duration)})
	}
	return slots
}

// filterAvailableSlots keeps slots whose half-open interval misses every
// active appointment. Touching boundaries do not block a slot.
func filterAvailableSlots(slots []model.TimeSlot, appointments []*model.Appointment) []model.TimeSlot {
	available := make([]model.TimeSlot, 0, len(slots))
	for _, slot := range slots {
		conflict := false
		for _, apt := range appointments {
			if !apt.Status.Active() {
				continue
			}
			if slot.Start.Before(apt.ScheduledEnd) && apt.ScheduledStart.Before(slot.End) {
				conflict = true
				break
			}
		}
		if !conflict {
			available = append(available, slot)
		}
	}
	return available
}
