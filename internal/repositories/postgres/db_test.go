package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/printhouse/orders-api/internal/repositories"
)

func TestMigrateURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@db:5432/orders?sslmode=disable": "pgx5://u:p@db:5432/orders?sslmode=disable",
		"postgresql://u:p@db:5432/orders":               "pgx5://u:p@db:5432/orders",
		"  postgres://db/orders ":                       "pgx5://db/orders",
		"pgx5://db/orders":                              "pgx5://db/orders",
	}
	for in, want := range cases {
		if got := migrateURL(in); got != want {
			t.Fatalf("migrateURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWrapErrorClassifies(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind repositories.ErrorKind
	}{
		{"not found", gorm.ErrRecordNotFound, repositories.ErrorKindNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, repositories.ErrorKindConflict},
		{"wrapped unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), repositories.ErrorKindConflict},
		{"serialization", &pgconn.PgError{Code: "40001"}, repositories.ErrorKindConflict},
		{"foreign key", &pgconn.PgError{Code: "23503"}, repositories.ErrorKindNotFound},
		{"other pg", &pgconn.PgError{Code: "42P01"}, repositories.ErrorKindUnknown},
		{"plain", errors.New("boom"), repositories.ErrorKindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var repoErr *repositories.Error
			if !errors.As(wrapError("op", tc.err), &repoErr) {
				t.Fatalf("expected repository error")
			}
			if repoErr.Kind != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, repoErr.Kind)
			}
		})
	}
}

func TestWrapErrorPassesThrough(t *testing.T) {
	if err := wrapError("op", context.Canceled); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	classified := repositories.NotFound("orders.get", "ord_1")
	if err := wrapError("other", classified); err != error(classified) {
		t.Fatalf("expected classified error to pass through, got %v", err)
	}
	if wrapError("op", nil) != nil {
		t.Fatal("expected nil")
	}
}
