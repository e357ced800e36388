package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/server"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
	"github.com/pageza/foodgram/backend/pkg/logger"
)

// demoImage is a 1x1 PNG used for every seeded recipe
const demoImage = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

type demoUser struct {
	username  string
	firstName string
	lastName  string
}

var demoUsers = []demoUser{
	{"john.doe", "John", "Doe"},
	{"jane.smith", "Jane", "Smith"},
	{"bob.wilson", "Bob", "Wilson"},
}

var demoRecipes = []string{"Morning porridge", "Weeknight stew", "Sunday pancakes"}

func newSeedDemoCommand() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "seed-demo",
		Short: "Create demo users and recipes for local development",
		Long: `Creates a few demo users, each with recipes built from the loaded tags and
ingredients. Existing demo users are skipped. Run load-data first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			store, err := server.NewImageStore(ctx, cfg)
			if err != nil {
				return err
			}
			images := service.NewImageService(store)
			links := service.NewShortLinkService(db, nil, nil, cfg.PublicURL)

			created, err := seedDemo(ctx, db, service.NewUserService(db, images), service.NewRecipeService(db, images, links), password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "demo users created: %d (password %q)\n", created, password)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "demo-password", "password for every demo user")
	return cmd
}

// seedDemo registers the demo users missing from db and gives each new user
// one recipe per demo name. It returns the number of users created.
func seedDemo(ctx context.Context, db *gorm.DB, users service.IUserService, recipes service.IRecipeService, password string) (int, error) {
	var tag models.Tag
	if err := db.WithContext(ctx).Order("id").First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, errors.New("no tags loaded; run load-data first")
		}
		return 0, err
	}
	var ingredients []models.Ingredient
	if err := db.WithContext(ctx).Order("id").Limit(3).Find(&ingredients).Error; err != nil {
		return 0, err
	}
	if len(ingredients) == 0 {
		return 0, errors.New("no ingredients loaded; run load-data first")
	}

	created := 0
	for _, u := range demoUsers {
		email := u.username + "@example.com"
		var count int64
		if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return created, err
		}
		if count > 0 {
			logger.Logger.Info().Str("email", email).Msg("demo user already exists, skipping")
			continue
		}

		user, err := users.Register(ctx, &types.RegisterRequest{
			Email:     email,
			Username:  u.username,
			FirstName: u.firstName,
			LastName:  u.lastName,
			Password:  password,
		})
		if err != nil {
			return created, fmt.Errorf("failed to create demo user %s: %w", u.username, err)
		}
		created++

		for i, name := range demoRecipes {
			portions := make([]types.IngredientAmount, len(ingredients))
			for j, ing := range ingredients {
				portions[j] = types.IngredientAmount{ID: ing.ID, Amount: 10 * (i + j + 1)}
			}
			title := fmt.Sprintf("%s by %s", name, u.firstName)
			text := fmt.Sprintf("Demo recipe %d for %s.", i+1, u.firstName)
			minutes := 15 * (i + 1)
			image := demoImage
			_, err := recipes.CreateRecipe(ctx, user.ID, &types.RecipeWriteRequest{
				Name:        &title,
				Text:        &text,
				CookingTime: &minutes,
				Image:       &image,
				Tags:        []uint{tag.ID},
				Ingredients: portions,
			})
			if err != nil {
				return created, fmt.Errorf("failed to create demo recipe for %s: %w", u.username, err)
			}
		}
		logger.Logger.Info().Str("username", u.username).Int("recipes", len(demoRecipes)).Msg("created demo user")
	}
	return created, nil
}
