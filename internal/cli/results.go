package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"quiz-maker-service/internal/config"
	pgstore "quiz-maker-service/internal/infra/postgres"
)

// NewResultsCmd prints the most recent recorded quiz results.
func NewResultsCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "results",
		Short: "List recently completed quizzes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listResults(cmd.Context(), cmd, *configPath, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of results to show")
	return cmd
}

func listResults(ctx context.Context, cmd *cobra.Command, configPath string, limit int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	results, err := pgstore.NewResultStore(pool).Recent(ctx, limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range results {
		category := r.Category
		if r.Subcategory != "" {
			category += ": " + r.Subcategory
		}
		fmt.Fprintf(out, "%s  %-40s %-6s %d/%d %s\n",
			r.FinishedAt.Format("2006-01-02 15:04"), category, r.Difficulty, r.Score, r.Total, r.Band)
	}
	return nil
}
