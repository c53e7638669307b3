package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-users/internal/logger"
	"github.com/sbilibin2017/gw-users/internal/models"
)

// VerificationCodeReadRepository handles verification code lookups
type VerificationCodeReadRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewVerificationCodeReadRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *VerificationCodeReadRepository {
	return &VerificationCodeReadRepository{db: db, txGetter: txGetter}
}

// GetByCode returns the code record matching code exactly, or nil if absent.
func (r *VerificationCodeReadRepository) GetByCode(ctx context.Context, code string) (*models.VerificationCode, error) {
	const query = `
		SELECT code, user_id, created_at
		FROM email_verification_codes
		WHERE code = $1
	`

	var vc models.VerificationCode
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &vc, query, code)

	// codes are secrets, only the owner is logged
	logger.Log.Infow("db query",
		"query", strings.Join(strings.Fields(query), " "),
		"result", vc.UserID,
		"error", err,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vc, nil
}

// VerificationCodeWriteRepository handles verification code writes
type VerificationCodeWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewVerificationCodeWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *VerificationCodeWriteRepository {
	return &VerificationCodeWriteRepository{db: db, txGetter: txGetter}
}

// Save stores a new code bound to userID.
func (r *VerificationCodeWriteRepository) Save(ctx context.Context, code string, userID uuid.UUID) error {
	const query = `
		INSERT INTO email_verification_codes (code, user_id, created_at)
		VALUES ($1, $2, NOW())
	`
	return r.exec(ctx, query, []any{userID}, code, userID)
}

// Delete removes a single code.
func (r *VerificationCodeWriteRepository) Delete(ctx context.Context, code string) error {
	const query = `
		DELETE FROM email_verification_codes
		WHERE code = $1
	`
	return r.exec(ctx, query, nil, code)
}

// DeleteByUserID removes every code issued to userID.
func (r *VerificationCodeWriteRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	const query = `
		DELETE FROM email_verification_codes
		WHERE user_id = $1
	`
	return r.exec(ctx, query, []any{userID}, userID)
}

func (r *VerificationCodeWriteRepository) exec(ctx context.Context, query string, logArgs []any, args ...any) error {
	res, err := executor(ctx, r.db, r.txGetter).ExecContext(ctx, query, args...)
	var rowsAffected int64
	if res != nil {
		rowsAffected, _ = res.RowsAffected()
	}

	logger.Log.Infow("db query",
		"query", strings.Join(strings.Fields(query), " "),
		"args", logArgs,
		"result", rowsAffected,
		"error", err,
	)

	return err
}
