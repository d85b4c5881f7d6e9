package model

import "time"

type Patient struct {
	Base
	Name        string     `db:"name" json:"name"`
	Email       string     `db:"email" json:"email"`
	Phone       string     `db:"phone" json:"phone,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
}

type CreatePatientRequest struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Email       string     `json:"email" validate:"required,email"`
	Phone       string     `json:"phone" validate:"max=32"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

type UpdatePatientRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=200"`
	Email *string `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone" validate:"omitempty,max=32"`
}
