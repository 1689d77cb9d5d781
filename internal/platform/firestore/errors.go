package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/printhouse/orders-api/internal/repositories"
)

// WrapError classifies Firestore errors as repository errors. Context
// cancellations pass through untouched, as do errors that are already classified
// or that did not come from gRPC, so callers can still match their own sentinels.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return err
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case codes.NotFound:
		return repositories.NewError(op, repositories.ErrorKindNotFound, err)
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		return repositories.NewError(op, repositories.ErrorKindConflict, err)
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal:
		return repositories.NewError(op, repositories.ErrorKindUnavailable, err)
	default:
		return repositories.NewError(op, repositories.ErrorKindUnknown, err)
	}
}
