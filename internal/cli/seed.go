package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/printhouse/orders-api/internal/di"
	"github.com/printhouse/orders-api/internal/domain"
)

func newSeedStatusesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-statuses",
		Short: "Insert the default order statuses missing from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			store, err := openBackend(ctx, rt)
			if err != nil {
				return err
			}
			container, err := di.NewContainer(ctx, rt.cfg, store.registry, di.Infrastructure{Logger: rt.logger})
			if err != nil {
				_ = store.registry.Close(ctx)
				return fmt.Errorf("build container: %w", err)
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = container.Close(closeCtx)
			}()

			defaults := domain.DefaultStatuses()
			if err := container.Services.Statuses.Seed(ctx, defaults); err != nil {
				return fmt.Errorf("seed statuses: %w", err)
			}
			rt.logger.Info("status catalog seeded", zap.Int("defaults", len(defaults)))
			return nil
		},
	}
}
