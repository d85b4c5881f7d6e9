package model

import (
	"time"

	"github.com/google/uuid"
)

type Specialty string

const (
	SpecialtyGeneralPractice Specialty = "general_practice"
	SpecialtyPediatrics      Specialty = "pediatrics"
	SpecialtyDermatology     Specialty = "dermatology"
	SpecialtyCardiology      Specialty = "cardiology"
	SpecialtyOrthopedics     Specialty = "orthopedics"
)

type Doctor struct {
	Base
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone,omitempty"`
	Specialty    Specialty `db:"specialty" json:"specialty"`
	Active       bool      `db:"active" json:"active"`
	PasswordHash string    `db:"password_hash" json:"-"`
}

type CreateDoctorRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"max=32"`
	Specialty string `json:"specialty" validate:"required,specialty"`
	Password  string `json:"password" validate:"required,min=8"`
}

type UpdateDoctorRequest struct {
	Name      *string `json:"name" validate:"omitempty,max=200"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	Specialty *string `json:"specialty" validate:"omitempty,specialty"`
	Active    *bool   `json:"active"`
}

// DoctorWorkday bounds slot generation for availability queries.
type DoctorWorkday struct {
	DoctorID uuid.UUID     `json:"doctor_id"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	SlotLen  time.Duration `json:"slot_len"`
}
