package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"doubledutch-sync/internal/course"
	"doubledutch-sync/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CourseLoader loads course levels (JSONB, ordered by position) and avatars from Postgres.
type CourseLoader struct {
	pool *pgxpool.Pool
}

func NewCourseLoader(pool *pgxpool.Pool) *CourseLoader {
	return &CourseLoader{pool: pool}
}

func (l *CourseLoader) LoadCourse(ctx context.Context) (course.Course, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM course_levels ORDER BY position, id`)
	if err != nil {
		return course.Course{}, fmt.Errorf("load course levels: %w", err)
	}
	defer rows.Close()

	c := course.Course{Avatars: map[string]string{}}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return course.Course{}, fmt.Errorf("scan course level: %w", err)
		}
		var level domain.CourseLevel
		if err := json.Unmarshal(raw, &level); err != nil {
			return course.Course{}, fmt.Errorf("unmarshal course level: %w", err)
		}
		c.Levels = append(c.Levels, level)
	}
	if err := rows.Err(); err != nil {
		return course.Course{}, fmt.Errorf("load course levels: %w", err)
	}

	avatars, err := l.pool.Query(ctx, `SELECT key, symbol FROM course_avatars`)
	if err != nil {
		return course.Course{}, fmt.Errorf("load avatars: %w", err)
	}
	defer avatars.Close()
	for avatars.Next() {
		var key, symbol string
		if err := avatars.Scan(&key, &symbol); err != nil {
			return course.Course{}, fmt.Errorf("scan avatar: %w", err)
		}
		c.Avatars[key] = symbol
	}
	if err := avatars.Err(); err != nil {
		return course.Course{}, fmt.Errorf("load avatars: %w", err)
	}

	if err := c.Validate(); err != nil {
		return course.Course{}, err
	}
	return c, nil
}
