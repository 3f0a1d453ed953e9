package main

import (
	"fmt"
	"os"

	"github.com/boddenberg/customer-registry-bff/internal/config"
	"github.com/boddenberg/customer-registry-bff/internal/infra/postgres"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
)

const databaseURLFlag = "database-url"

var schemaFlags = map[string]cobraflags.Flag{
	databaseURLFlag: &cobraflags.StringFlag{
		Name:  databaseURLFlag,
		Value: "",
		Usage: "Postgres connection string (defaults to DATABASE_URL)",
	},
}

func newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Apply the profiles, user_roles and customers tables to Postgres",
		RunE:  schemaCommand,
	}
	cobraflags.RegisterMap(cmd, schemaFlags)

	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the schema SQL without applying it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.OutOrStdout(), postgres.Schema)
			return nil
		},
	})
	return cmd
}

func schemaCommand(cmd *cobra.Command, _ []string) error {
	url := schemaFlags[databaseURLFlag].GetString()
	if url == "" {
		_ = config.LoadDotEnv(".env")
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return fmt.Errorf("--%s or DATABASE_URL is required", databaseURLFlag)
	}

	ctx := cmd.Context()
	pool, err := postgres.Connect(ctx, url)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.New(pool).EnsureSchema(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Schema applied.")
	return nil
}
