package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/printhouse/orders-api/internal/repositories"
)

// StatusCatalogDeps bundles collaborators required to construct the status catalog.
type StatusCatalogDeps struct {
	Statuses   repositories.StatusRepository
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type statusCatalog struct {
	statuses   repositories.StatusRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewStatusCatalog wires the status repository into a StatusCatalog.
func NewStatusCatalog(deps StatusCatalogDeps) (StatusCatalog, error) {
	if deps.Statuses == nil {
		return nil, errors.New("status catalog: status repository is required")
	}
	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &statusCatalog{
		statuses:   deps.Statuses,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *statusCatalog) Get(ctx context.Context, statusID int) (Status, error) {
	if statusID <= 0 {
		return Status{}, fmt.Errorf("%w: status id must be positive", ErrStatusInvalidInput)
	}
	status, err := s.statuses.Get(ctx, statusID)
	if err != nil {
		return Status{}, s.mapError(err)
	}
	return status, nil
}

func (s *statusCatalog) List(ctx context.Context, activeOnly bool) ([]Status, error) {
	statuses, err := s.statuses.List(ctx, activeOnly)
	if err != nil {
		return nil, s.mapError(err)
	}
	return statuses, nil
}

func (s *statusCatalog) Upsert(ctx context.Context, status Status) (Status, error) {
	status.Name = strings.TrimSpace(status.Name)
	status.Description = strings.TrimSpace(status.Description)
	status.Color = strings.TrimSpace(status.Color)
	switch {
	case status.ID <= 0:
		return Status{}, fmt.Errorf("%w: status id must be positive", ErrStatusInvalidInput)
	case status.Name == "":
		return Status{}, fmt.Errorf("%w: status name is required", ErrStatusInvalidInput)
	}

	var saved Status
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.statuses.List(txCtx, false)
		if err != nil {
			return err
		}
		key := s.nameKey(status.Name)
		now := s.clock()
		status.CreatedAt = now
		for _, current := range existing {
			if current.ID == status.ID {
				status.CreatedAt = current.CreatedAt
				continue
			}
			if s.nameKey(current.Name) == key {
				return fmt.Errorf("%w: %q used by status %d", ErrStatusConflict, status.Name, current.ID)
			}
		}
		status.UpdatedAt = now
		if err := s.statuses.Upsert(txCtx, status); err != nil {
			return err
		}
		saved = status
		return nil
	})
	if err != nil {
		return Status{}, s.mapError(err)
	}
	return saved, nil
}

// Seed upserts every given status whose id is not in the catalog yet. Existing
// entries are left untouched so operators keep their edits.
func (s *statusCatalog) Seed(ctx context.Context, statuses []Status) error {
	existing, err := s.statuses.List(ctx, false)
	if err != nil {
		return s.mapError(err)
	}
	known := make(map[int]struct{}, len(existing))
	for _, status := range existing {
		known[status.ID] = struct{}{}
	}
	seeded := 0
	for _, status := range statuses {
		if _, ok := known[status.ID]; ok {
			continue
		}
		if _, err := s.Upsert(ctx, status); err != nil {
			return fmt.Errorf("seed status %d: %w", status.ID, err)
		}
		seeded++
	}
	s.logger(ctx, "status.catalog.seeded", map[string]any{
		"seeded":   seeded,
		"existing": len(existing),
	})
	return nil
}

// nameKey compares names after NFC normalisation and Unicode case folding, so
// "Concluído" and "CONCLUÍDO" collide.
func (s *statusCatalog) nameKey(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}

func (s *statusCatalog) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStatusConflict) || errors.Is(err, ErrStatusInvalidInput) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isRepoNotFound(err):
		return fmt.Errorf("%w: %v", ErrStatusNotFound, err)
	case isRepoConflict(err):
		return fmt.Errorf("%w: %v", ErrStatusConflict, err)
	}
	return fmt.Errorf("status catalog: %w", err)
}
