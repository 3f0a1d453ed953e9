package main

import (
	"fmt"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/service"

	"github.com/go-extras/cobraflags"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const roleFlag = "role"

var roleGetFlags = map[string]cobraflags.Flag{
	userIDFlag: &cobraflags.StringFlag{
		Name:  userIDFlag,
		Value: "",
		Usage: "Account id (required)",
	},
}

var roleSetFlags = map[string]cobraflags.Flag{
	userIDFlag: &cobraflags.StringFlag{
		Name:  userIDFlag,
		Value: "",
		Usage: "Account id (required)",
	},
	roleFlag: &cobraflags.StringFlag{
		Name:  roleFlag,
		Value: "",
		Usage: "admin or operator (required)",
	},
}

func newRoleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role [get|set]",
		Short: "Inspect or assign account roles",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Print the effective role of an account",
		RunE:  roleGetCommand,
	}
	cobraflags.RegisterMap(get, roleGetFlags)

	set := &cobra.Command{
		Use:   "set",
		Short: "Overwrite the role assignment of an account",
		Long: `Overwrite the role assignment of an account.

Use it to bootstrap the first admin, or to fix accounts created with a
permission warning.`,
		RunE: roleSetCommand,
	}
	cobraflags.RegisterMap(set, roleSetFlags)

	cmd.AddCommand(get, set)
	return cmd
}

func parseUserID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("--%s must be a valid UUID", userIDFlag)
	}
	return id.String(), nil
}

func roleGetCommand(cmd *cobra.Command, _ []string) error {
	userID, err := parseUserID(roleGetFlags[userIDFlag].GetString())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	role, err := service.NewRoleResolver(e.stores.Roles, e.logger).EffectiveRole(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), role)
	return nil
}

func roleSetCommand(cmd *cobra.Command, _ []string) error {
	userID, err := parseUserID(roleSetFlags[userIDFlag].GetString())
	if err != nil {
		return err
	}
	role, err := domain.ParseRole(roleSetFlags[roleFlag].GetString())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.stores.Roles.UpsertRole(ctx, userID, role); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", userID, role)
	return nil
}
