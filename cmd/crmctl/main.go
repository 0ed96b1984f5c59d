// Command crmctl administers the CRM database: accounts, assignment rules and demo data.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jordanlanch/crmleads/config"
	"github.com/jordanlanch/crmleads/pkg/database"
	"github.com/jordanlanch/crmleads/pkg/logger"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	driver      string
	databaseURL string
	logLevel    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(config.Load()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "crmctl:", err)
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "Administer the CRM lead database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.driver, "driver", cfg.DBDriver, "Database driver (postgres, sqlite3)")
	root.PersistentFlags().StringVar(&flags.databaseURL, "db", cfg.DatabaseURL, "Database connection string (overrides DATABASE_URL)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", cfg.LogLevel, "Log level")

	root.AddCommand(
		createUserCommand(flags),
		createAdminCommand(flags),
		importRulesCommand(flags),
		seedDemoCommand(flags),
	)
	return root
}

// openStore connects and applies the schema. The caller closes the client.
func openStore(ctx context.Context, flags *globalFlags) (*database.Client, *database.Store, logger.Logger, error) {
	log := logger.New(flags.logLevel)
	client, err := database.NewClient(ctx, flags.driver, flags.databaseURL, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return client, database.NewStore(client), log, nil
}
