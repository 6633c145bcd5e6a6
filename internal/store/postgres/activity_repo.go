package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"meetup/internal/domain"
)

type ActivityRepo struct {
	db *sql.DB
}

func NewActivityRepo(db *sql.DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

var _ domain.ActivityRepository = (*ActivityRepo)(nil)

func (r *ActivityRepo) Create(ctx context.Context, a *domain.Activity) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO activities (user_id, title, description, category, date_time, location, max_participants, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, a.UserID, a.Title, a.Description, a.Category, a.DateTime, a.Location, a.MaxParticipants, a.Status).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}
