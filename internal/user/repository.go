package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Sternrassler/user-service/internal/database"
	"github.com/Sternrassler/user-service/pkg/pagination"
	"github.com/uptrace/bun"
)

// Repository errors.
var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("username or email already taken")
)

// Repository reads and writes users.
type Repository struct {
	db bun.IDB
}

// NewRepository creates a repository over db.
func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

// List returns one page of users ordered by id, with the total count.
func (r *Repository) List(ctx context.Context, page pagination.Page) ([]User, int, error) {
	users := make([]User, 0, page.Limit)
	total, err := r.db.NewSelect().
		Model(&users).
		Order("user_id ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// Get returns the user with the given id.
func (r *Repository) Get(ctx context.Context, id int64) (*User, error) {
	u := new(User)
	err := r.db.NewSelect().Model(u).Where("user_id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// Create inserts u and fills in its id.
func (r *Repository) Create(ctx context.Context, u *User) error {
	_, err := r.db.NewInsert().Model(u).Returning("user_id").Exec(ctx)
	if database.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update writes the named columns of u.
func (r *Repository) Update(ctx context.Context, u *User, columns ...string) error {
	res, err := r.db.NewUpdate().Model(u).Column(columns...).WherePK().Exec(ctx)
	if database.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, err)
	}
	return expectRow(res)
}

// Delete removes the user with the given id.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().Model((*User)(nil)).Where("user_id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
