package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"meetup/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

const userCols = `id, username, email, hashed_password, bio, is_active, is_online, created_at, last_seen`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.HashedPassword,
		&u.Bio,
		&u.IsActive,
		&u.IsOnline,
		&u.CreatedAt,
		&u.LastSeen,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, hashed_password, bio, is_active, is_online)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, u.Username, u.Email, u.HashedPassword, u.Bio, u.IsActive, u.IsOnline).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE username = $1`, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (r *UserRepo) ListActive(ctx context.Context, excludeID int64) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userCols+` FROM users
		WHERE is_active = TRUE AND id != $1
		ORDER BY username ASC
	`, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) SetOnlineStatus(ctx context.Context, id int64, isOnline bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_online = $1, last_seen = NOW() WHERE id = $2
	`, isOnline, id)
	if err != nil {
		return fmt.Errorf("set online status: %w", err)
	}
	return nil
}
