package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var email, name, role, password string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user who can sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !types.Role(role).Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			profile, err := e.client.CreateUser(cmd.Context(), &storage.Profile{
				Email:       email,
				DisplayName: name,
				Role:        types.Role(role),
			}, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) as %s\n", profile.Email, profile.ID, profile.Role)
			return nil
		},
	}
	add.Flags().StringVar(&email, "email", "", "Sign-in email")
	add.Flags().StringVar(&name, "name", "", "Display name, matched against task assignees")
	add.Flags().StringVar(&role, "role", string(types.RoleUser), "admin, manager or user")
	add.Flags().StringVar(&password, "password", "", "Initial password (at least 8 characters)")
	_ = add.MarkFlagRequired("email")
	_ = add.MarkFlagRequired("password")

	cmd.AddCommand(add)
	return cmd
}
