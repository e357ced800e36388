package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

// adminPasswordEnv lets scripts avoid passing the password on the command line
const adminPasswordEnv = "FOODGRAM_ADMIN_PASSWORD"

type adminCreator interface {
	CreateAdmin(ctx context.Context, req *types.RegisterRequest) (*models.User, error)
}

func newCreateAdminCommand() *cobra.Command {
	req := &types.RegisterRequest{}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a user allowed to edit and delete any recipe",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = os.Getenv(adminPasswordEnv)
			}
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := openDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			v, err := newValidator()
			if err != nil {
				return err
			}
			user, err := createAdmin(ctx, service.NewUserService(db, nil), v, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %q created with id %d\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&req.Username, "username", "", "admin username")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "Admin", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "Admin", "last name")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (defaults to $"+adminPasswordEnv+")")
	return cmd
}

func createAdmin(ctx context.Context, users adminCreator, v *validator.Validate, req *types.RegisterRequest) (*models.User, error) {
	if err := v.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return nil, fmt.Errorf("invalid %s: failed %q rule", fieldErrs[0].Field(), fieldErrs[0].Tag())
		}
		return nil, err
	}
	user, err := users.CreateAdmin(ctx, req)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return nil, fmt.Errorf("cannot create admin: %s", verr.Error())
		}
		return nil, err
	}
	return user, nil
}
