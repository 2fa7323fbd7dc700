package db

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
)

func TestEnsureSchemaAppliesAllStatements(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	for _, stmt := range schema {
		mock.ExpectExec(regexp.QuoteMeta(strings.TrimSpace(stmt.sql))).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	if err := EnsureSchema(context.Background(), mock); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaStopsOnFailure(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	boom := errors.New("permission denied to create extension")
	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS postgis`).WillReturnError(boom)

	err = EnsureSchema(context.Background(), mock)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "postgis") {
		t.Fatalf("expected statement name in error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaWithoutDatabase(t *testing.T) {
	if err := EnsureSchema(context.Background(), nil); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("expected ErrNoDatabase, got %v", err)
	}
}
