package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/printhouse/orders-api/internal/domain"
	"github.com/printhouse/orders-api/internal/platform/textutil"
	"github.com/printhouse/orders-api/internal/repositories"
)

const (
	transitionIDPrefix = "trn_"
	maxNoteLength      = 2000
)

// AuditTrailDeps bundles collaborators required to construct the audit trail.
type AuditTrailDeps struct {
	Transitions repositories.TransitionRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type auditTrail struct {
	transitions repositories.TransitionRepository
	clock       func() time.Time
	newID       func() string
}

// NewAuditTrail wires the transition repository into an AuditTrail.
func NewAuditTrail(deps AuditTrailDeps) (AuditTrail, error) {
	if deps.Transitions == nil {
		return nil, errors.New("audit trail: transition repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	return &auditTrail{
		transitions: deps.Transitions,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

// Append fills in id and timestamp when absent, sanitises the note and writes
// the record through ctx, so it joins the caller's unit of work.
func (a *auditTrail) Append(ctx context.Context, record TransitionRecord) (TransitionRecord, error) {
	record.OrderID = strings.TrimSpace(record.OrderID)
	if record.OrderID == "" {
		return TransitionRecord{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if record.NewStatusID <= 0 {
		return TransitionRecord{}, fmt.Errorf("%w: new status id is required", ErrOrderInvalidInput)
	}
	if !record.Action.Valid() {
		return TransitionRecord{}, fmt.Errorf("%w: unknown action %q", ErrOrderInvalidInput, record.Action)
	}
	if record.PreviousStatusID == nil && record.Action != domain.ActionCreation {
		return TransitionRecord{}, fmt.Errorf("%w: previous status is required for %s", ErrOrderInvalidInput, record.Action)
	}
	if record.ID == "" {
		record.ID = transitionIDPrefix + a.newID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = a.clock()
	}
	record.Notes = textutil.PlainText(record.Notes, maxNoteLength)
	if record.ExtraData != nil {
		record.ExtraData = maps.Clone(record.ExtraData)
	}
	if err := a.transitions.Append(ctx, record); err != nil {
		return TransitionRecord{}, err
	}
	return record, nil
}

func (a *auditTrail) ListByOrder(ctx context.Context, orderID string) ([]TransitionRecord, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	return a.transitions.ListByOrder(ctx, orderID)
}

func actorRef(actor Actor) *string {
	id := strings.TrimSpace(actor.ID)
	if id == "" {
		return nil
	}
	return &id
}

func intRef(v int) *int {
	return &v
}
