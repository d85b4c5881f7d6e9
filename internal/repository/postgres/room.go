package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/booking-api/internal/model"
)

func (r *roomRepository) Create(ctx context.Context, room *model.Room) error {
	query := `
		INSERT INTO rooms (id, name, room_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	room.ID = uuid.New()
	room.CreatedAt = time.Now()
	room.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		room.ID,
		room.Name,
		room.Type,
		room.CreatedAt,
		room.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

func (r *roomRepository) Get(ctx context.Context, id uuid.UUID) (*model.Room, error) {
	query := `SELECT id, name, room_type, created_at, updated_at FROM rooms WHERE id = $1`

	var room model.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

func (r *roomRepository) List(ctx context.Context) ([]*model.Room, error) {
	query := `SELECT id, name, room_type, created_at, updated_at FROM rooms ORDER BY name ASC`

	var rooms []*model.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}
