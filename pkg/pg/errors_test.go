package pg_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/sessionguard/pkg/pg"
)

func TestConnect_EmptyConnectionString(t *testing.T) {
	_, err := pg.Connect(context.Background(), pg.Config{})
	assert.ErrorIs(t, err, pg.ErrEmptyConnectionString)
}

func TestConnect_InvalidConnectionString(t *testing.T) {
	_, err := pg.Connect(context.Background(), pg.Config{
		ConnectionString: "://not-a-dsn",
		RetryAttempts:    1,
	})
	assert.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
}

func TestMigrate_PathValidation(t *testing.T) {
	log := slog.Default()

	err := pg.Migrate(context.Background(), nil, pg.Config{}, log)
	assert.ErrorIs(t, err, pg.ErrMigrationPathNotProvided)

	err = pg.Migrate(context.Background(), nil, pg.Config{MigrationsPath: "does/not/exist"}, log)
	assert.ErrorIs(t, err, pg.ErrMigrationsDirNotFound)
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, pg.IsNotFoundError(pgx.ErrNoRows))
	assert.False(t, pg.IsNotFoundError(nil))
	assert.False(t, pg.IsNotFoundError(errors.New("other")))

	assert.True(t, pg.IsTxClosedError(pgx.ErrTxClosed))

	dup := &pgconn.PgError{Code: "23505"}
	assert.True(t, pg.IsDuplicateKeyError(dup))
	assert.False(t, pg.IsDuplicateKeyError(&pgconn.PgError{Code: "23503"}))

	fk := &pgconn.PgError{Code: "23503"}
	assert.True(t, pg.IsForeignKeyViolationError(fk))
}
