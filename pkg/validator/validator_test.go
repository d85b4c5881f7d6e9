package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/booking-api/internal/model"
)

func TestValidateCreateRoomRequest(t *testing.T) {
	v := New()

	err := v.Validate(&model.CreateRoomRequest{Name: "Exam 1", Type: "exam"})
	require.NoError(t, err)

	err = v.Validate(&model.CreateRoomRequest{Name: "Exam 1", Type: "operating_theatre"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be one of")

	err = v.Validate(&model.CreateRoomRequest{Type: "exam"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestValidateCreateDoctorRequest(t *testing.T) {
	v := New()

	req := &model.CreateDoctorRequest{
		Name:      "Dr. Osei",
		Email:     "osei@clinic.example",
		Specialty: "cardiology",
		Password:  "correct-horse",
	}
	require.NoError(t, v.Validate(req))

	req.Specialty = "astrology"
	err := v.Validate(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "specialty")

	req.Specialty = "cardiology"
	req.Email = "not-an-email"
	err = v.Validate(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid email")

	req.Email = "osei@clinic.example"
	req.Password = "short"
	err = v.Validate(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 8")
}

func TestValidateFlattensMultipleErrors(t *testing.T) {
	v := New()

	err := v.Validate(&model.CreateDoctorRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Name is required")
	assert.Contains(t, err.Error(), "Email is required")
	assert.Contains(t, err.Error(), ";")
}
