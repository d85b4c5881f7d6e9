package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/booking-api/internal/model"
)

const patientColumns = `
	id, name, email, phone, date_of_birth, created_at, updated_at
`

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	patient.ID = uuid.New()
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.Name,
		patient.Email,
		patient.Phone,
		patient.DateOfBirth,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`

	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET name = $1, email = $2, phone = $3, updated_at = $4
		WHERE id = $5
	`
	patient.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		patient.Name,
		patient.Email,
		patient.Phone,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return requireRow(result)
}

func (r *patientRepository) List(ctx context.Context, page model.Pagination) ([]*model.Patient, error) {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PageSize < 1 || page.PageSize > 100 {
		page.PageSize = 50
	}

	query := `
		SELECT ` + patientColumns + `
		FROM patients
		ORDER BY name ASC
		LIMIT $1 OFFSET $2
	`
	var patients []*model.Patient
	err := r.db.SelectContext(ctx, &patients, query, page.PageSize, (page.Page-1)*page.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}
