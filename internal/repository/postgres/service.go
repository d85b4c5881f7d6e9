package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicore/booking-api/internal/model"
)

func (r *serviceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	query := `SELECT id, code, name, price_cent, created_at, updated_at FROM services WHERE id = $1`

	var svc model.Service
	if err := r.db.GetContext(ctx, &svc, query, id); err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &svc, nil
}

func (r *serviceRepository) List(ctx context.Context) ([]*model.Service, error) {
	query := `SELECT id, code, name, price_cent, created_at, updated_at FROM services ORDER BY code ASC`

	var services []*model.Service
	if err := r.db.SelectContext(ctx, &services, query); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

func (r *serviceRepository) Attach(ctx context.Context, link *model.AppointmentService) error {
	if link.Quantity < 1 {
		link.Quantity = 1
	}
	query := `
		INSERT INTO appointment_services (appointment_id, service_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (appointment_id, service_id) DO UPDATE SET quantity = $3
	`
	_, err := r.db.ExecContext(ctx, query, link.AppointmentID, link.ServiceID, link.Quantity)
	if err != nil {
		return fmt.Errorf("failed to attach service: %w", err)
	}
	return nil
}

func (r *serviceRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.Service, error) {
	query := `
		SELECT s.id, s.code, s.name, s.price_cent, s.created_at, s.updated_at
		FROM services s
		JOIN appointment_services aps ON aps.service_id = s.id
		WHERE aps.appointment_id = $1
		ORDER BY s.code ASC
	`
	var services []*model.Service
	if err := r.db.SelectContext(ctx, &services, query, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to list appointment services: %w", err)
	}
	return services, nil
}
