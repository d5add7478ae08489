package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/camden-git/petclassifier/dto"
)

func userCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(
		userRegisterCommand(app),
		userLoginCommand(app),
		userProfileCommand(app),
		userUpdateCommand(app),
		userDeleteCommand(app),
	)
	return cmd
}

func userRegisterCommand(app *App) *cobra.Command {
	var in dto.RegisterUserDTO
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := app.Users.Register(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "Login email")
	cmd.Flags().StringVar(&in.Password, "password", "", "Password, at least 8 characters")
	cmd.Flags().StringVar(&in.FirstName, "first", "", "First name")
	cmd.Flags().StringVar(&in.LastName, "last", "", "Last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userLoginCommand(app *App) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check credentials and print the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := app.Users.Authenticate(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Login email")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userProfileCommand(app *App) *cobra.Command {
	var id uint
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show a user profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := app.Users.GetProfile(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		},
	}
	cmd.Flags().UintVar(&id, "id", 0, "User id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func userUpdateCommand(app *App) *cobra.Command {
	var (
		in         dto.UpdateUserDTO
		avatarPath string
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change names and optionally the avatar",
		Long:  "Change names and optionally the avatar. Names whose flags are not given keep their current value.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("first") || !cmd.Flags().Changed("last") {
				current, err := app.Users.GetProfile(cmd.Context(), in.ID)
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("first") {
					in.FirstName = current.FirstName
				}
				if !cmd.Flags().Changed("last") {
					in.LastName = current.LastName
				}
			}
			if avatarPath != "" {
				f, err := os.Open(avatarPath)
				if err != nil {
					return err
				}
				defer f.Close()
				in.Avatar = &dto.Upload{Filename: filepath.Base(avatarPath), Content: f}
			}
			u, err := app.Users.UpdateProfile(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		},
	}
	cmd.Flags().UintVar(&in.ID, "id", 0, "User id")
	cmd.Flags().StringVar(&in.FirstName, "first", "", "First name")
	cmd.Flags().StringVar(&in.LastName, "last", "", "Last name")
	cmd.Flags().StringVar(&avatarPath, "avatar", "", "Path to a new profile picture")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func userDeleteCommand(app *App) *cobra.Command {
	var id uint
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a user with their images and models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Users.DeleteProfile(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d deleted\n", id)
			return nil
		},
	}
	cmd.Flags().UintVar(&id, "id", 0, "User id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
