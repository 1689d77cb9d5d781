package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/printhouse/orders-api/internal/platform/config"
	"github.com/printhouse/orders-api/internal/repositories/postgres"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Run database migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) > 0 {
				action = args[0]
			}

			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			return runMigrations(rt, action)
		},
	}

	return cmd
}

// runMigrations applies the embedded Postgres schema. Document backends have
// no schema, so other drivers are a no-op.
func runMigrations(rt *runtime, action string) error {
	if rt.cfg.Database.Driver != config.DriverPostgres {
		rt.logger.Info("migrations skipped", zap.String("driver", rt.cfg.Database.Driver))
		return nil
	}
	if rt.cfg.Database.PostgresDSN == "" {
		return errors.New("postgres dsn is required for migrations")
	}
	changed, err := postgres.Migrate(rt.cfg.Database.PostgresDSN, action)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", action, err)
	}
	rt.logger.Info("migrations finished", zap.String("action", action), zap.Bool("changed", changed))
	return nil
}
