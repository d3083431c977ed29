package db

import (
	"errors"
	"fmt"
	"testing"

	"blood-link/internal/config"
	"blood-link/internal/request-service/core/myerrors"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		code     string
		conflict bool
	}{
		{codeSerializationFailure, true},
		{codeDeadlockDetected, true},
		{codeLockNotAvailable, true},
		{"23505", false},
	}
	for _, tc := range cases {
		err := mapError(fmt.Errorf("exec: %w", &pgconn.PgError{Code: tc.code}))
		if got := errors.Is(err, myerrors.ErrConflict); got != tc.conflict {
			t.Fatalf("code %s: conflict=%v want %v", tc.code, got, tc.conflict)
		}
	}

	if mapError(nil) != nil {
		t.Fatalf("nil stays nil")
	}
	plain := errors.New("boom")
	if !errors.Is(mapError(plain), plain) {
		t.Fatalf("other errors pass through")
	}
}

func TestDSN(t *testing.T) {
	got := dsn(&config.DBconfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "blood"})
	want := "postgres://u:p@db:5433/blood?sslmode=disable"
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}
