package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/booking-api/internal/model"
)

var day = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func booking(start, end time.Time, status model.AppointmentStatus) Booking {
	return Booking{ID: uuid.New(), Start: start, End: end, Status: status}
}

func candidate(start, end time.Time) Candidate {
	return Candidate{DoctorID: uuid.New(), Start: start, End: end}
}

func TestValidateInvalidInterval(t *testing.T) {
	existing := []Booking{booking(at(9, 0), at(10, 0), model.AppointmentStatusScheduled)}

	tests := []struct {
		name       string
		start, end time.Time
	}{
		{"end equals start", at(10, 0), at(10, 0)},
		{"end before start", at(11, 0), at(10, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Validate(candidate(tt.start, tt.end), true, existing, nil)
			assert.False(t, d.Accepted())
			assert.Equal(t, RejectInvalidInterval, d.Kind)
			assert.Nil(t, d.Conflict)
		})
	}
}

func TestValidateInactiveDoctor(t *testing.T) {
	// Inactive doctor rejects before any conflict scan, even with a clear calendar.
	d := Validate(candidate(at(9, 0), at(9, 30)), false, nil, nil)
	assert.Equal(t, RejectInactiveDoctor, d.Kind)

	// Interval check still comes first.
	d = Validate(candidate(at(9, 30), at(9, 0)), false, nil, nil)
	assert.Equal(t, RejectInvalidInterval, d.Kind)
}

func TestValidateDoctorOverlapMatrix(t *testing.T) {
	existing := booking(at(10, 0), at(11, 0), model.AppointmentStatusScheduled)

	tests := []struct {
		name       string
		start, end time.Time
		conflict   bool
	}{
		{"identical interval", at(10, 0), at(11, 0), true},
		{"candidate inside existing", at(10, 15), at(10, 45), true},
		{"existing inside candidate", at(9, 30), at(11, 30), true},
		{"overlap left edge", at(9, 30), at(10, 30), true},
		{"overlap right edge", at(10, 30), at(11, 30), true},
		{"touching before", at(9, 0), at(10, 0), false},
		{"touching after", at(11, 0), at(12, 0), false},
		{"disjoint before", at(8, 0), at(9, 0), false},
		{"disjoint after", at(12, 0), at(13, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Validate(candidate(tt.start, tt.end), true, []Booking{existing}, nil)
			if tt.conflict {
				require.Equal(t, RejectDoctorDoubleBooked, d.Kind)
				require.NotNil(t, d.Conflict)
				assert.Equal(t, existing.ID, d.Conflict.AppointmentID)
				assert.Equal(t, existing.Start, d.Conflict.Start)
				assert.Equal(t, existing.End, d.Conflict.End)
			} else {
				assert.True(t, d.Accepted(), "expected accept, got %s", d.Kind)
			}
		})
	}
}

func TestValidateTerminalStatusesNeverBlock(t *testing.T) {
	for _, status := range []model.AppointmentStatus{
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	} {
		t.Run(string(status), func(t *testing.T) {
			existing := []Booking{booking(at(10, 0), at(11, 0), status)}
			d := Validate(candidate(at(10, 0), at(11, 0)), true, existing, nil)
			assert.True(t, d.Accepted())
		})
	}
}

func TestValidateRoomConflict(t *testing.T) {
	roomID := uuid.New()
	roomBooking := booking(at(10, 0), at(11, 0), model.AppointmentStatusCheckedIn)

	c := candidate(at(10, 30), at(11, 30))
	c.RoomID = &roomID

	d := Validate(c, true, nil, []Booking{roomBooking})
	require.Equal(t, RejectRoomDoubleBooked, d.Kind)
	require.NotNil(t, d.Conflict)
	assert.Equal(t, roomBooking.ID, d.Conflict.AppointmentID)
}

func TestValidateNilRoomSkipsRoomScan(t *testing.T) {
	// Room bookings are ignored entirely when the candidate has no room,
	// even if the caller passed them in.
	roomBooking := booking(at(10, 0), at(11, 0), model.AppointmentStatusScheduled)
	d := Validate(candidate(at(10, 0), at(11, 0)), true, nil, []Booking{roomBooking})
	assert.True(t, d.Accepted())
}

func TestValidateDoctorConflictWinsOverRoom(t *testing.T) {
	roomID := uuid.New()
	docBooking := booking(at(10, 0), at(11, 0), model.AppointmentStatusScheduled)
	roomBooking := booking(at(10, 15), at(10, 45), model.AppointmentStatusScheduled)

	c := candidate(at(10, 0), at(11, 0))
	c.RoomID = &roomID

	d := Validate(c, true, []Booking{docBooking}, []Booking{roomBooking})
	require.Equal(t, RejectDoctorDoubleBooked, d.Kind)
	assert.Equal(t, docBooking.ID, d.Conflict.AppointmentID)
	// The room conflict is still surfaced alongside.
	require.NotNil(t, d.RoomConflict)
	assert.Equal(t, roomBooking.ID, d.RoomConflict.AppointmentID)
}

func TestValidateExcludeID(t *testing.T) {
	existing := booking(at(10, 0), at(11, 0), model.AppointmentStatusScheduled)

	c := candidate(at(10, 30), at(11, 30))
	c.ExcludeID = &existing.ID

	d := Validate(c, true, []Booking{existing}, nil)
	assert.True(t, d.Accepted())

	other := booking(at(10, 0), at(11, 0), model.AppointmentStatusScheduled)
	d = Validate(c, true, []Booking{existing, other}, nil)
	assert.Equal(t, RejectDoctorDoubleBooked, d.Kind)
	assert.Equal(t, other.ID, d.Conflict.AppointmentID)
}

func TestValidateIdempotent(t *testing.T) {
	existing := []Booking{booking(at(10, 0), at(11, 0), model.AppointmentStatusScheduled)}
	c := candidate(at(10, 30), at(11, 30))

	first := Validate(c, true, existing, nil)
	second := Validate(c, true, existing, nil)
	assert.Equal(t, first, second)
}
