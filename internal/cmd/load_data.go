package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/pageza/foodgram/backend/internal/api"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/pkg/logger"
)

type ingredientRow struct {
	Name            string `json:"name" binding:"required,max=128"`
	MeasurementUnit string `json:"measurement_unit" binding:"required,max=64"`
}

type tagRow struct {
	Name string `json:"name" binding:"required,max=32"`
	Slug string `json:"slug" binding:"required,max=32,slug"`
}

// catalogImporter is the part of the catalog service load-data needs
type catalogImporter interface {
	ImportIngredients(ctx context.Context, rows []models.Ingredient) (int64, error)
	ImportTags(ctx context.Context, rows []models.Tag) (int64, error)
}

var _ catalogImporter = (*service.CatalogService)(nil)

func newLoadDataCommand() *cobra.Command {
	var ingredientsPath, tagsPath string

	cmd := &cobra.Command{
		Use:   "load-data",
		Short: "Bulk-load ingredients and tags from JSON files",
		Long: `Loads JSON arrays of ingredients ({"name", "measurement_unit"}) and tags
({"name", "slug"}). Rows already present are skipped, so the command can be re-run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ingredientsPath == "" && tagsPath == "" {
				return errors.New("nothing to load: pass --ingredients and/or --tags")
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
			catalog := service.NewCatalogService(db)

			if ingredientsPath != "" {
				n, err := loadFile(ingredientsPath, func(r io.Reader) (int64, error) {
					return loadIngredients(ctx, catalog, v, r)
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ingredients added: %d\n", n)
			}
			if tagsPath != "" {
				n, err := loadFile(tagsPath, func(r io.Reader) (int64, error) {
					return loadTags(ctx, catalog, v, r)
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "tags added: %d\n", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ingredientsPath, "ingredients", "", "path to an ingredients JSON file")
	cmd.Flags().StringVar(&tagsPath, "tags", "", "path to a tags JSON file")
	return cmd
}

// newValidator reads the same binding tags and custom rules as the HTTP layer
func newValidator() (*validator.Validate, error) {
	v := validator.New()
	v.SetTagName("binding")
	if err := api.ConfigureValidator(v); err != nil {
		return nil, err
	}
	return v, nil
}

func loadFile(path string, load func(io.Reader) (int64, error)) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := load(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	logger.Logger.Info().Str("file", path).Int64("added", n).Msg("catalog data loaded")
	return n, nil
}

func loadIngredients(ctx context.Context, catalog catalogImporter, v *validator.Validate, r io.Reader) (int64, error) {
	rows, err := decodeRows[ingredientRow](r, v)
	if err != nil {
		return 0, err
	}
	out := make([]models.Ingredient, len(rows))
	for i, row := range rows {
		out[i] = models.Ingredient{Name: row.Name, MeasurementUnit: row.MeasurementUnit}
	}
	return catalog.ImportIngredients(ctx, out)
}

func loadTags(ctx context.Context, catalog catalogImporter, v *validator.Validate, r io.Reader) (int64, error) {
	rows, err := decodeRows[tagRow](r, v)
	if err != nil {
		return 0, err
	}
	out := make([]models.Tag, len(rows))
	for i, row := range rows {
		out[i] = models.Tag{Name: row.Name, Slug: row.Slug}
	}
	return catalog.ImportTags(ctx, out)
}

// decodeRows parses a JSON array and validates every element. The whole file
// is rejected if any row is invalid.
func decodeRows[T any](r io.Reader, v *validator.Validate) ([]T, error) {
	var rows []T
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	for i := range rows {
		if err := v.Struct(rows[i]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return rows, nil
}

