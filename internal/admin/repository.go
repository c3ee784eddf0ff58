package admin

import (
	"context"
	"database/sql"
	"errors"
)

var ErrNotFound = errors.New("admin not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, a *Admin) (*Admin, error) {
	var id int
	query := "INSERT INTO admins (username, password) VALUES ($1, $2) RETURNING id"

	if err := r.db.QueryRowContext(ctx, query, a.Username, a.Password).Scan(&id); err != nil {
		return nil, err
	}
	a.ID = id
	return a, nil
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (*Admin, error) {
	a := &Admin{}
	query := "SELECT id, username, password FROM admins WHERE username = $1"

	err := r.db.QueryRowContext(ctx, query, username).Scan(&a.ID, &a.Username, &a.Password)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM admins").Scan(&n)
	return n, err
}
