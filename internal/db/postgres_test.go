package db

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplySQLSchema(t *testing.T) {
	sqlDB, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	schema := `CREATE TABLE IF NOT EXISTS surveys (id BIGSERIAL PRIMARY KEY);`

	dbMock.ExpectExec(regexp.QuoteMeta(schema)).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, ApplySQLSchema(context.Background(), sqlDB, schema))

	dbMock.ExpectExec(regexp.QuoteMeta(schema)).WillReturnError(errors.New("permission denied"))
	err = ApplySQLSchema(context.Background(), sqlDB, schema)
	assert.ErrorContains(t, err, "apply schema")

	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestConnectPostgres_InvalidDSN(t *testing.T) {
	_, err := ConnectPostgres(context.Background(), "postgres://%zz")
	assert.ErrorContains(t, err, "parse postgres dsn")
}
