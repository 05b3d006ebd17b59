package postgres

import (
	"context"
	"fmt"
	"time"

	"doubledutch-sync/internal/course"
	"doubledutch-sync/internal/domain"
	"github.com/uptrace/bun"
)

type courseLevelRow struct {
	bun.BaseModel `bun:"table:course_levels"`

	ID        string             `bun:"id,pk"`
	Position  int                `bun:"position,notnull"`
	Data      domain.CourseLevel `bun:"data,type:jsonb,notnull"`
	UpdatedAt time.Time          `bun:"updated_at,notnull"`
}

type courseAvatarRow struct {
	bun.BaseModel `bun:"table:course_avatars"`

	Key    string `bun:"key,pk"`
	Symbol string `bun:"symbol,notnull"`
}

// SeedCourse upserts course content, keeping level order by position.
func SeedCourse(ctx context.Context, db *bun.DB, c course.Course) error {
	if err := c.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	levels := make([]courseLevelRow, 0, len(c.Levels))
	for i, level := range c.Levels {
		levels = append(levels, courseLevelRow{ID: level.ID, Position: i, Data: level, UpdatedAt: now})
	}
	avatars := make([]courseAvatarRow, 0, len(c.Avatars))
	for key, symbol := range c.Avatars {
		avatars = append(avatars, courseAvatarRow{Key: key, Symbol: symbol})
	}

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(levels) > 0 {
			if _, err := tx.NewInsert().
				Model(&levels).
				On("CONFLICT (id) DO UPDATE").
				Set("position = EXCLUDED.position").
				Set("data = EXCLUDED.data").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx); err != nil {
				return fmt.Errorf("seed course levels: %w", err)
			}
		}
		if len(avatars) > 0 {
			if _, err := tx.NewInsert().
				Model(&avatars).
				On("CONFLICT (key) DO UPDATE").
				Set("symbol = EXCLUDED.symbol").
				Exec(ctx); err != nil {
				return fmt.Errorf("seed avatars: %w", err)
			}
		}
		return nil
	})
}
