package cli

import (
	"doubledutch-sync/internal/config"
	"doubledutch-sync/internal/course"
	"doubledutch-sync/internal/infra/postgres"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads course content from a file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert course levels and avatars into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())
			if file == "" {
				file = cfg.Course.Path
			}
			c, err := course.NewFileLoader(file).LoadCourse(ctx)
			if err != nil {
				return err
			}
			if err := runMigrations(ctx, cfg, logger); err != nil {
				return err
			}
			db := openBun(cfg.Postgres.URL)
			defer db.Close()
			if err := postgres.SeedCourse(ctx, db, c); err != nil {
				return err
			}
			logger.Info("course seeded", "levels", len(c.Levels), "avatars", len(c.Avatars))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "course file (json or yaml); defaults to course.path")
	return cmd
}
