package sqlite

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
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO activities (user_id, title, description, category, date_time, location, max_participants, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.UserID, a.Title, a.Description, a.Category, a.DateTime, a.Location, a.MaxParticipants, a.Status)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	a.ID = id
	return nil
}
