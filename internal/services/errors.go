package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/printhouse/orders-api/internal/repositories"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates a duplicate order number or id.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrInvalidStatus indicates the requested status id is not in the catalog.
	ErrInvalidStatus = errors.New("order: invalid status")
	// ErrTransitionNotAllowed indicates the adjacency policy rejected the move.
	ErrTransitionNotAllowed = errors.New("order: transition not allowed")
	// ErrNotificationFailed indicates at least one endpoint did not confirm the change.
	ErrNotificationFailed = errors.New("order: notification failed")
	// ErrPersistenceFailed indicates the unit of work could not commit.
	ErrPersistenceFailed = errors.New("order: persistence failed")

	// ErrStatusNotFound indicates the status id is not in the catalog.
	ErrStatusNotFound = errors.New("status: not found")
	// ErrStatusInvalidInput signals an invalid catalog entry.
	ErrStatusInvalidInput = errors.New("status: invalid input")
	// ErrStatusConflict indicates another status already uses the name.
	ErrStatusConflict = errors.New("status: name already in use")

	// ErrEndpointInvalidInput signals an invalid endpoint definition.
	ErrEndpointInvalidInput = errors.New("webhook: invalid input")
	// ErrEndpointNotFound indicates the endpoint could not be located.
	ErrEndpointNotFound = errors.New("webhook: endpoint not found")
	// ErrEndpointCircuitOpen marks attempts skipped because the endpoint's breaker is open.
	ErrEndpointCircuitOpen = errors.New("webhook: circuit open")

	// ErrIntegrationInvalidInput signals an invalid storefront request.
	ErrIntegrationInvalidInput = errors.New("integration: invalid input")
)

// Notification is the status change delivered to subscribers.
type Notification struct {
	OrderID    string
	StatusID   int
	StatusName string
	OccurredAt time.Time
}

// DispatchReport collects one attempt result per active endpoint.
type DispatchReport struct {
	Results      []NotificationAttemptResult
	DispatchedAt time.Time
}

// Succeeded reports whether every endpoint confirmed. An empty report succeeds.
func (r DispatchReport) Succeeded() bool {
	for _, result := range r.Results {
		if !result.Success {
			return false
		}
	}
	return true
}

// Failures returns the failed attempts in endpoint order.
func (r DispatchReport) Failures() []NotificationAttemptResult {
	var failed []NotificationAttemptResult
	for _, result := range r.Results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

// Summary renders the failed attempts as "failed to notify N of M endpoints: URL: x, Error: y, Status: z; ...".
func (r DispatchReport) Summary() string {
	failed := r.Failures()
	if len(failed) == 0 {
		return ""
	}
	parts := make([]string, 0, len(failed))
	for _, result := range failed {
		status := "N/A"
		if result.HTTPStatus != 0 {
			status = fmt.Sprintf("%d", result.HTTPStatus)
		}
		errText := result.Error
		if errText == "" {
			errText = "unknown error"
		}
		parts = append(parts, fmt.Sprintf("URL: %s, Error: %s, Status: %s", result.URL, errText, status))
	}
	return fmt.Sprintf("failed to notify %d of %d endpoints: %s", len(failed), len(r.Results), strings.Join(parts, "; "))
}

// NotificationError carries the dispatch report of a rejected transition.
type NotificationError struct {
	Report DispatchReport
}

func (e *NotificationError) Error() string {
	if e == nil {
		return ErrNotificationFailed.Error()
	}
	if summary := e.Report.Summary(); summary != "" {
		return fmt.Sprintf("%s: %s", ErrNotificationFailed.Error(), summary)
	}
	return ErrNotificationFailed.Error()
}

// Is lets errors.Is(err, ErrNotificationFailed) match.
func (e *NotificationError) Is(target error) bool {
	return target == ErrNotificationFailed
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
