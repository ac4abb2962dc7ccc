package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/cidco-records/apiserver/types"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// UserRepository handles persistence for users_react rows.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `
		SELECT id, username, email, name, role, password_hash
		FROM users_react
		WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `
		SELECT id, username, email, name, role, password_hash
		FROM users_react
		WHERE username = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, username))
}

// GetByIdentifier looks a user up by username or email.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (types.User, error) {
	const query = `
		SELECT id, username, email, name, role, password_hash
		FROM users_react
		WHERE username = $1 OR email = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, identifier))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	const query = `
		INSERT INTO users_react (username, password_hash, email, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.PasswordHash,
		user.Email,
		user.Name,
		user.Role,
	).Scan(&user.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation && strings.Contains(pqErr.Constraint, "pkey") {
			return types.User{}, ErrIDConflict
		}
		return types.User{}, err
	}
	return user, nil
}

// SyncIDSequence resynchronizes the users_react identity sequence to
// max(id)+1. Bulk imports write explicit ids and leave the sequence behind,
// which makes later inserts collide.
func (r *UserRepository) SyncIDSequence(ctx context.Context) error {
	const query = `
		SELECT setval(
			pg_get_serial_sequence('users_react', 'id'),
			COALESCE((SELECT MAX(id) FROM users_react), 0) + 1,
			false
		)`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID int, passwordHash string) error {
	const query = `UPDATE users_react SET password_hash = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, passwordHash, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResetToken records a pending reset token and its expiry for the user.
func (r *UserRepository) SetResetToken(ctx context.Context, userID int, token string, expires time.Time) error {
	const query = `
		UPDATE users_react
		SET reset_token = $1,
			reset_expires = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, token, expires, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByValidResetToken returns the user holding the token if it is
// unexpired at the moment of the query.
func (r *UserRepository) GetByValidResetToken(ctx context.Context, token string) (types.User, error) {
	const query = `
		SELECT id, username, email, name, role, password_hash
		FROM users_react
		WHERE reset_token = $1
		  AND reset_expires > NOW()`
	return r.scanUser(r.db.QueryRowContext(ctx, query, token))
}

// ResetPassword sets the new password hash and clears the reset token and
// expiry in the same statement, making tokens single-use.
func (r *UserRepository) ResetPassword(ctx context.Context, userID int, passwordHash string) error {
	const query = `
		UPDATE users_react
		SET password_hash = $1,
			reset_token = NULL,
			reset_expires = NULL
		WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, passwordHash, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) scanUser(row *sql.Row) (types.User, error) {
	var user types.User
	var email, name, role sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Username,
		&email,
		&name,
		&role,
		&user.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.Email = email.String
	user.Name = name.String
	user.Role = role.String
	return user, nil
}
