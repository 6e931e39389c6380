package main

import (
	"context"
	"fmt"

	userrepo "roomly/internal/users/repository"
	userservice "roomly/internal/users/service"
	uservalidator "roomly/internal/users/validator"
	"roomly/pkg/clock"
	"roomly/pkg/config"

	"github.com/spf13/cobra"
)

func newCreateSuperadminCmd() *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "create-superadmin",
		Short: "Create the administrator account, or promote an existing user",
		Long: "Creates an administrator from the flags, falling back to ADMIN_USERNAME, " +
			"ADMIN_EMAIL and ADMIN_PASSWORD. An existing user with that username is promoted instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(ServiceName)
			if username == "" {
				username = cfg.AdminUsername
			}
			if email == "" {
				email = cfg.AdminEmail
			}
			if password == "" {
				password = cfg.AdminPassword
			}

			return withMongo(cmd.Context(), cfg, func(ctx context.Context) error {
				users := userservice.NewUserService(
					userrepo.NewMongoUserRepository(cfg),
					uservalidator.NewUserValidator(),
					nil,
					clock.System(cfg.Location),
					cfg,
				)

				admin, created, err := users.CreateSuperadmin(ctx, username, email, password)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(cmd.OutOrStdout(), "created administrator %s (id=%s)\n", admin.Username, admin.ID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "promoted existing user %s (id=%s) to administrator\n", admin.Username, admin.ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "administrator username (default $ADMIN_USERNAME)")
	cmd.Flags().StringVar(&email, "email", "", "administrator email (default $ADMIN_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "administrator password (default $ADMIN_PASSWORD)")
	return cmd
}
