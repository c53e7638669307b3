package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-users/internal/logger"
	"github.com/sbilibin2017/gw-users/internal/models"
)

const pgUniqueViolation = "23505"

const userColumns = `user_id, email, password_hash, first_name, last_name, country, image, is_verified, created_at, updated_at`

// executor returns the transaction bound to ctx when present, otherwise the db.
func executor(ctx context.Context, db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) sqlx.ExtContext {
	if txGetter != nil {
		if tx := txGetter(ctx); tx != nil {
			return tx
		}
	}
	return db
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// UserReadRepository handles user read operations
type UserReadRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewUserReadRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *UserReadRepository {
	return &UserReadRepository{db: db, txGetter: txGetter}
}

// List returns all users ordered by creation time.
func (r *UserReadRepository) List(ctx context.Context) ([]models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at, user_id
	`

	users := []models.User{}
	err := sqlx.SelectContext(ctx, executor(ctx, r.db, r.txGetter), &users, query)

	logger.Log.Infow("db query",
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{},
		"result", len(users),
		"error", err,
	)

	if err != nil {
		return nil, err
	}
	return users, nil
}

// GetByID returns the user with the given id, or nil if it does not exist.
func (r *UserReadRepository) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE user_id = $1
	`
	return r.getOne(ctx, query, userID)
}

// GetByEmail returns the user with the given email, or nil if it does not exist.
func (r *UserReadRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`
	return r.getOne(ctx, query, email)
}

func (r *UserReadRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &user, query, arg)

	logger.Log.Infow("db query",
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{arg},
		"result", user,
		"error", err,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserWriteRepository handles user write operations
type UserWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewUserWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *UserWriteRepository {
	return &UserWriteRepository{db: db, txGetter: txGetter}
}

// Save inserts a new unverified user and returns the stored row.
// A duplicate email yields models.ErrEmailAlreadyExists.
func (r *UserWriteRepository) Save(ctx context.Context, user models.User) (*models.User, error) {
	const query = `
		INSERT INTO users (email, password_hash, first_name, last_name, country, image, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW(), NOW())
		RETURNING ` + userColumns

	var saved models.User
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &saved, query,
		user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Country, user.Image,
	)

	logger.Log.Infow("db query",
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{user.Email, user.FirstName, user.LastName, user.Country, user.Image},
		"result", saved.UserID,
		"error", err,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrEmailAlreadyExists
		}
		return nil, err
	}
	return &saved, nil
}

// Update changes the mutable profile fields. Returns nil if no row matched.
func (r *UserWriteRepository) Update(ctx context.Context, userID uuid.UUID, upd models.UserProfileUpdate) (*models.User, error) {
	const query = `
		UPDATE users
		SET first_name = COALESCE($2, first_name),
		    last_name = COALESCE($3, last_name),
		    country = COALESCE($4, country),
		    image = COALESCE($5, image),
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + userColumns

	args := []any{userID, upd.FirstName, upd.LastName, upd.Country, upd.Image}
	return r.returningOne(ctx, query, args...)
}

// SetVerified flips the verification flag to true. Returns nil if no row matched.
func (r *UserWriteRepository) SetVerified(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	const query = `
		UPDATE users
		SET is_verified = TRUE, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + userColumns

	return r.returningOne(ctx, query, userID)
}

// Delete removes the user and reports whether a row was deleted.
func (r *UserWriteRepository) Delete(ctx context.Context, userID uuid.UUID) (bool, error) {
	const query = `
		DELETE FROM users
		WHERE user_id = $1
	`

	res, err := executor(ctx, r.db, r.txGetter).ExecContext(ctx, query, userID)
	var rowsAffected int64
	if res != nil {
		rowsAffected, _ = res.RowsAffected()
	}

	logger.Log.Infow("db query",
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{userID},
		"result", rowsAffected,
		"error", err,
	)

	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func (r *UserWriteRepository) returningOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &user, query, args...)

	logger.Log.Infow("db query",
		"query", strings.Join(strings.Fields(query), " "),
		"args", args,
		"result", user.UserID,
		"error", err,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
