package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/clinicore/booking-api/internal/repository"
)

type appointmentRepository struct {
	db *sqlx.DB
}

type doctorRepository struct {
	db *sqlx.DB
}

type patientRepository struct {
	db *sqlx.DB
}

type roomRepository struct {
	db *sqlx.DB
}

type serviceRepository struct {
	db *sqlx.DB
}

type outboxRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{db: db}
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

func NewRoomRepository(db *sqlx.DB) repository.RoomRepository {
	return &roomRepository{db: db}
}

func NewServiceRepository(db *sqlx.DB) repository.ServiceRepository {
	return &serviceRepository{db: db}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{db: db}
}
