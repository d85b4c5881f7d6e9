package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/booking-api/internal/model"
)

const doctorColumns = `
	id, name, email, phone, specialty, active, password_hash, created_at, updated_at
`

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (` + doctorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	doctor.ID = uuid.New()
	doctor.CreatedAt = time.Now()
	doctor.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		doctor.ID,
		doctor.Name,
		doctor.Email,
		doctor.Phone,
		doctor.Specialty,
		doctor.Active,
		doctor.PasswordHash,
		doctor.CreatedAt,
		doctor.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`

	var doctor model.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, id); err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByEmail(ctx context.Context, email string) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE email = $1`

	var doctor model.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, email); err != nil {
		return nil, fmt.Errorf("failed to get doctor by email: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	query := `
		UPDATE doctors
		SET name = $1, phone = $2, specialty = $3, active = $4, updated_at = $5
		WHERE id = $6
	`
	doctor.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		doctor.Name,
		doctor.Phone,
		doctor.Specialty,
		doctor.Active,
		doctor.UpdatedAt,
		doctor.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update doctor: %w", err)
	}
	return requireRow(result)
}

func (r *doctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors ORDER BY name ASC`

	var doctors []*model.Doctor
	if err := r.db.SelectContext(ctx, &doctors, query); err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}
