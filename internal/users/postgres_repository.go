package users

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresRepository implements Repository using PostgreSQL. Email
// uniqueness for active users is enforced by a partial unique index;
// violations surface as ErrEmailTaken.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, first_name, last_name, provider, password_hash, is_deleted, deleted_at, created_at, updated_at`

// List returns users matching the filter.
func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE TRUE`
	args := []any{}

	if filter.FirstName != "" {
		args = append(args, "%"+filter.FirstName+"%")
		query += ` AND first_name ILIKE $` + strconv.Itoa(len(args))
	}
	if filter.LastName != "" {
		args = append(args, "%"+filter.LastName+"%")
		query += ` AND last_name ILIKE $` + strconv.Itoa(len(args))
	}
	if filter.Email != "" {
		args = append(args, "%"+filter.Email+"%")
		query += ` AND email ILIKE $` + strconv.Itoa(len(args))
	}
	if filter.IsDeleted != nil {
		args = append(args, *filter.IsDeleted)
		query += ` AND is_deleted = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at, id`

	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	out := make([]User, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toUser())
	}
	return out, nil
}

// FindByID looks up a user by primary key.
func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var row userRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toUser(), nil
}

// FindByEmail looks up the active user holding the email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1) AND NOT is_deleted`

	var row userRow
	if err := r.db.GetContext(ctx, &row, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toUser(), nil
}

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) (User, error) {
	const query = `
		INSERT INTO users (id, email, first_name, last_name, provider, password_hash, is_deleted, deleted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Provider,
		user.PasswordHash,
		user.IsDeleted,
		user.DeletedAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return User{}, mapUniqueViolation(err)
	}
	return user, nil
}

// Update replaces an existing user record.
func (r *PostgresRepository) Update(ctx context.Context, user User) (User, error) {
	const query = `
		UPDATE users
		SET email = $2, first_name = $3, last_name = $4, provider = $5, password_hash = $6,
		    is_deleted = $7, deleted_at = $8, updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Provider,
		user.PasswordHash,
		user.IsDeleted,
		user.DeletedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return User{}, mapUniqueViolation(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return User{}, err
	}
	if affected == 0 {
		return User{}, ErrNotFound
	}
	return user, nil
}

// Touch bumps the updated-at timestamp of an existing record.
func (r *PostgresRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	const query = `UPDATE users SET updated_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, at)
	return err
}

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	return err
}

// userRow is a database row representation of User.
type userRow struct {
	ID           uuid.UUID  `db:"id"`
	Email        string     `db:"email"`
	FirstName    string     `db:"first_name"`
	LastName     string     `db:"last_name"`
	Provider     string     `db:"provider"`
	PasswordHash string     `db:"password_hash"`
	IsDeleted    bool       `db:"is_deleted"`
	DeletedAt    *time.Time `db:"deleted_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func (r *userRow) toUser() *User {
	return &User{
		ID:           r.ID,
		Email:        r.Email,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Provider:     Provider(r.Provider),
		PasswordHash: r.PasswordHash,
		IsDeleted:    r.IsDeleted,
		DeletedAt:    r.DeletedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
