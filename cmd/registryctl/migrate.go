package main

import (
	"fmt"

	"github.com/boddenberg/customer-registry-bff/internal/infra/localstore"
	"github.com/boddenberg/customer-registry-bff/internal/port"
	"github.com/boddenberg/customer-registry-bff/internal/service"

	"github.com/go-extras/cobraflags"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	fileFlag   = "file"
	userIDFlag = "user-id"
)

var migrateFlags = map[string]cobraflags.Flag{
	fileFlag: &cobraflags.StringFlag{
		Name:  fileFlag,
		Value: "",
		Usage: "JSON export of the local customer records (defaults to LOCAL_STORE_PATH)",
	},
	userIDFlag: &cobraflags.StringFlag{
		Name:  userIDFlag,
		Value: "",
		Usage: "Account id recorded as createdBy on every migrated record (required)",
	},
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy local customer records into the configured store",
		Long: `Copy every record of a local JSON export into the configured store.

Records already present (same id) are skipped, so the command can be rerun
after a partial failure. The export file is removed only when every record
was copied.`,
		RunE: migrateCommand,
	}
	cobraflags.RegisterMap(cmd, migrateFlags)
	return cmd
}

func migrateCommand(cmd *cobra.Command, _ []string) error {
	userID := migrateFlags[userIDFlag].GetString()
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("--%s must be a valid UUID", userIDFlag)
	}

	ctx := cmd.Context()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	path := migrateFlags[fileFlag].GetString()
	if path == "" {
		path = e.cfg.LocalStorePath
	}
	var source port.CustomerSource = localstore.New(path, e.logger)

	report, err := service.NewMigrator(e.metrics, e.logger).Migrate(ctx, userID, source, e.stores.AdminCustomers)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Migrated: %d\n", report.Migrated)
	fmt.Fprintf(out, "Skipped:  %d\n", report.Skipped)
	for _, msg := range report.Errors {
		fmt.Fprintf(out, "  - %s\n", msg)
	}
	if !report.Success {
		return fmt.Errorf("migration finished with %d error(s)", len(report.Errors))
	}
	fmt.Fprintln(out, "Local data cleared.")
	return nil
}
