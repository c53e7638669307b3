package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-users/internal/migrations"
	"github.com/sbilibin2017/gw-users/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupUserPostgresContainer(t *testing.T) (*sqlx.DB, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "password", "POSTGRES_DB": "testdb", "POSTGRES_USER": "postgres"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp"),
	}

	container, err := tc.GenericContainer(context.Background(), tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, _ := container.Host(context.Background())
	port, _ := container.MappedPort(context.Background(), "5432")

	dsn := fmt.Sprintf("postgres://postgres:password@%s:%d/testdb?sslmode=disable", host, port.Int())

	var db *sqlx.DB
	for i := 0; i < 10; i++ {
		db, err = sqlx.Connect("pgx", dsn)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err)

	require.NoError(t, migrations.Run(context.Background(), db.DB))

	teardown := func() {
		db.Close()
		container.Terminate(context.Background())
	}

	return db, teardown
}

func newUser(email string) models.User {
	return models.User{
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "A",
		LastName:     "B",
		Country:      "US",
	}
}

func TestUserRepositories_Postgres(t *testing.T) {
	db, teardown := setupUserPostgresContainer(t)
	defer teardown()

	writeRepo := NewUserWriteRepository(db, nil)
	readRepo := NewUserReadRepository(db, nil)
	codeWriteRepo := NewVerificationCodeWriteRepository(db, nil)
	codeReadRepo := NewVerificationCodeReadRepository(db, nil)
	ctx := context.Background()

	saved, err := writeRepo.Save(ctx, newUser("a@x.com"))
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.NotEqual(t, uuid.Nil, saved.UserID)
	assert.False(t, saved.IsVerified)
	assert.Nil(t, saved.Image)

	t.Run("DuplicateEmail", func(t *testing.T) {
		dup, err := writeRepo.Save(ctx, newUser("a@x.com"))
		assert.ErrorIs(t, err, models.ErrEmailAlreadyExists)
		assert.Nil(t, dup)

		users, err := readRepo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})

	t.Run("EmailIsCaseSensitive", func(t *testing.T) {
		other, err := writeRepo.Save(ctx, newUser("A@x.com"))
		require.NoError(t, err)
		ok, err := writeRepo.Delete(ctx, other.UserID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("GetByEmailAndID", func(t *testing.T) {
		byEmail, err := readRepo.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		require.NotNil(t, byEmail)
		assert.Equal(t, saved.UserID, byEmail.UserID)
		assert.Equal(t, "hash", byEmail.PasswordHash)

		byID, err := readRepo.GetByID(ctx, saved.UserID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, "a@x.com", byID.Email)

		missing, err := readRepo.GetByID(ctx, uuid.New())
		assert.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("UpdateKeepsAbsentFields", func(t *testing.T) {
		first := "Alice"
		image := "img.png"
		updated, err := writeRepo.Update(ctx, saved.UserID, models.UserProfileUpdate{FirstName: &first, Image: &image})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, "Alice", updated.FirstName)
		assert.Equal(t, "B", updated.LastName)
		assert.Equal(t, "US", updated.Country)
		assert.Equal(t, "img.png", *updated.Image)
		assert.Equal(t, "a@x.com", updated.Email)

		none, err := writeRepo.Update(ctx, uuid.New(), models.UserProfileUpdate{FirstName: &first})
		assert.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("VerificationCodeLifecycle", func(t *testing.T) {
		require.NoError(t, codeWriteRepo.Save(ctx, "code-1", saved.UserID))

		vc, err := codeReadRepo.GetByCode(ctx, "code-1")
		require.NoError(t, err)
		require.NotNil(t, vc)
		assert.Equal(t, saved.UserID, vc.UserID)

		verified, err := writeRepo.SetVerified(ctx, saved.UserID)
		require.NoError(t, err)
		assert.True(t, verified.IsVerified)

		require.NoError(t, codeWriteRepo.Delete(ctx, "code-1"))
		vc, err = codeReadRepo.GetByCode(ctx, "code-1")
		assert.NoError(t, err)
		assert.Nil(t, vc)
	})

	t.Run("DeleteCascadesCodes", func(t *testing.T) {
		require.NoError(t, codeWriteRepo.Save(ctx, "code-2", saved.UserID))

		ok, err := writeRepo.Delete(ctx, saved.UserID)
		require.NoError(t, err)
		assert.True(t, ok)

		vc, err := codeReadRepo.GetByCode(ctx, "code-2")
		assert.NoError(t, err)
		assert.Nil(t, vc)

		ok, err = writeRepo.Delete(ctx, saved.UserID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var userRowColumns = []string{
	"user_id", "email", "password_hash", "first_name", "last_name",
	"country", "image", "is_verified", "created_at", "updated_at",
}

func TestUserWriteRepository_Save_UniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserWriteRepository(db, nil)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	user, err := repo.Save(context.Background(), newUser("a@x.com"))
	assert.ErrorIs(t, err, models.ErrEmailAlreadyExists)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserWriteRepository_Save_OtherError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserWriteRepository(db, nil)

	mock.ExpectQuery("INSERT INTO users").WillReturnError(errors.New("connection reset"))

	user, err := repo.Save(context.Background(), newUser("a@x.com"))
	assert.EqualError(t, err, "connection reset")
	assert.NotErrorIs(t, err, models.ErrEmailAlreadyExists)
	assert.Nil(t, user)
}

func TestUserReadRepository_GetByID_Mock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserReadRepository(db, nil)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM users").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(id.String(), "a@x.com", "hash", "A", "B", "US", nil, true, now, now))

	user, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, id, user.UserID)
	assert.True(t, user.IsVerified)
	assert.Nil(t, user.Image)

	mock.ExpectQuery("FROM users").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	user, err = repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserWriteRepository_UsesContextTx(t *testing.T) {
	db, mock := newMockDB(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM users").WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)

	repo := NewUserWriteRepository(db, func(ctx context.Context) *sqlx.Tx { return tx })
	ok, err := repo.Delete(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationCodeWriteRepository_Mock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVerificationCodeWriteRepository(db, nil)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM email_verification_codes").WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO email_verification_codes").WithArgs("abc", id).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteByUserID(context.Background(), id))
	require.NoError(t, repo.Save(context.Background(), "abc", id))
	assert.NoError(t, mock.ExpectationsWereMet())
}
