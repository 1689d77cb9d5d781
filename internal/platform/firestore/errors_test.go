package firestore

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/printhouse/orders-api/internal/repositories"
)

func TestWrapErrorClassifiesStatusCodes(t *testing.T) {
	cases := map[codes.Code]func(repositories.RepositoryError) bool{
		codes.NotFound:          repositories.RepositoryError.IsNotFound,
		codes.AlreadyExists:     repositories.RepositoryError.IsConflict,
		codes.Aborted:           repositories.RepositoryError.IsConflict,
		codes.Unavailable:       repositories.RepositoryError.IsUnavailable,
		codes.ResourceExhausted: repositories.RepositoryError.IsUnavailable,
	}
	for code, check := range cases {
		err := WrapError("orders.get", status.Error(code, "boom"))
		var repoErr repositories.RepositoryError
		if !errors.As(err, &repoErr) {
			t.Fatalf("%s: expected repository error, got %v", code, err)
		}
		if !check(repoErr) {
			t.Fatalf("%s: unexpected classification %v", code, err)
		}
	}
}

func TestWrapErrorPassesThroughContextAndPlainErrors(t *testing.T) {
	if err := WrapError("op", status.Error(codes.Canceled, "x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := WrapError("op", status.Error(codes.DeadlineExceeded, "x")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	sentinel := errors.New("dispatch failed")
	if err := WrapError("transaction", sentinel); err != sentinel {
		t.Fatalf("expected plain error to pass through, got %v", err)
	}
	classified := repositories.NotFound("orders.get", "o-1")
	if err := WrapError("transaction", classified); err != error(classified) {
		t.Fatalf("expected classified error to pass through, got %v", err)
	}
	if WrapError("op", nil) != nil {
		t.Fatalf("expected nil")
	}
}
