package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/printhouse/orders-api/internal/domain"
	"github.com/printhouse/orders-api/internal/repositories/memory"
)

func TestAuditTrailAppendFillsDefaults(t *testing.T) {
	registry := memory.NewRegistry()
	now := time.Date(2025, time.April, 1, 8, 0, 0, 0, time.UTC)
	trail, err := NewAuditTrail(AuditTrailDeps{
		Transitions: registry.Transitions(),
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "01TEST" },
	})
	if err != nil {
		t.Fatalf("NewAuditTrail: %v", err)
	}

	record, err := trail.Append(context.Background(), TransitionRecord{
		OrderID:          "ord_1",
		PreviousStatusID: intRef(1),
		NewStatusID:      2,
		Action:           domain.ActionStatusChange,
		Notes:            "<i>enviado</i>\x07 para   produção",
		ExtraData:        map[string]any{"batch": "b1"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if record.ID != "trn_01TEST" || !record.CreatedAt.Equal(now) {
		t.Fatalf("expected id and timestamp defaults, got %+v", record)
	}
	if record.Notes != "enviado para produção" {
		t.Fatalf("unexpected notes %q", record.Notes)
	}

	stored, err := trail.ListByOrder(context.Background(), "ord_1")
	if err != nil {
		t.Fatalf("ListByOrder: %v", err)
	}
	if len(stored) != 1 || stored[0].ExtraData["batch"] != "b1" {
		t.Fatalf("unexpected stored records %+v", stored)
	}
}

func TestAuditTrailAppendValidation(t *testing.T) {
	trail, err := NewAuditTrail(AuditTrailDeps{Transitions: memory.NewRegistry().Transitions()})
	if err != nil {
		t.Fatalf("NewAuditTrail: %v", err)
	}
	cases := map[string]TransitionRecord{
		"no order":       {NewStatusID: 1, Action: domain.ActionCreation},
		"no status":      {OrderID: "ord_1", Action: domain.ActionCreation},
		"unknown action": {OrderID: "ord_1", NewStatusID: 1, Action: "edit"},
		"no previous":    {OrderID: "ord_1", NewStatusID: 2, Action: domain.ActionStatusChange},
	}
	for name, record := range cases {
		if _, err := trail.Append(context.Background(), record); !errors.Is(err, ErrOrderInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}
	if _, err := trail.ListByOrder(context.Background(), " "); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input for empty order id, got %v", err)
	}
}

func TestAuditTrailListIsNewestFirst(t *testing.T) {
	registry := memory.NewRegistry()
	trail, err := NewAuditTrail(AuditTrailDeps{
		Transitions: registry.Transitions(),
		Clock:       tickingClock(time.Date(2025, time.April, 1, 8, 0, 0, 0, time.UTC)),
		IDGenerator: sequentialIDs(""),
	})
	if err != nil {
		t.Fatalf("NewAuditTrail: %v", err)
	}
	ctx := context.Background()
	if _, err := trail.Append(ctx, TransitionRecord{OrderID: "ord_1", NewStatusID: 1, Action: domain.ActionCreation}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := trail.Append(ctx, TransitionRecord{OrderID: "ord_1", PreviousStatusID: intRef(1), NewStatusID: 1, Action: domain.ActionNote, Notes: "ligar"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, err := trail.ListByOrder(ctx, "ord_1")
	if err != nil {
		t.Fatalf("ListByOrder: %v", err)
	}
	if len(records) != 2 || records[0].Action != domain.ActionNote || !strings.HasPrefix(records[1].ID, transitionIDPrefix) {
		t.Fatalf("unexpected order %+v", records)
	}
}
