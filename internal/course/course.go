// Package course holds the static course content: the ordered levels and the
// avatar-key-to-symbol mapping. Content is loaded once and never mutated.
package course

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"doubledutch-sync/internal/domain"
	"gopkg.in/yaml.v3"
)

// Loader fetches course content from a backing source (file, database).
type Loader interface {
	LoadCourse(ctx context.Context) (Course, error)
}

// Course is the ordered list of levels plus the avatar symbols.
type Course struct {
	Levels  []domain.CourseLevel `json:"courseData" yaml:"courseData"`
	Avatars map[string]string    `json:"avatars" yaml:"avatars"`
}

// Validate checks level IDs are present and unique and rewards are non-negative.
func (c Course) Validate() error {
	seen := make(map[string]struct{}, len(c.Levels))
	for i, level := range c.Levels {
		if level.ID == "" {
			return fmt.Errorf("level %d: missing id", i)
		}
		if _, dup := seen[level.ID]; dup {
			return fmt.Errorf("level %q: duplicate id", level.ID)
		}
		if level.XPReward < 0 {
			return fmt.Errorf("level %q: %w", level.ID, domain.ErrInvalidReward)
		}
		seen[level.ID] = struct{}{}
	}
	return nil
}

// Level looks up a level by ID.
func (c Course) Level(id string) (domain.CourseLevel, error) {
	for _, level := range c.Levels {
		if level.ID == id {
			return level, nil
		}
	}
	return domain.CourseLevel{}, domain.ErrLevelNotFound
}

// Unlocked reports whether the learner may start the level. The first level is
// always open; the rest open once the first level is completed.
func (c Course) Unlocked(id string, profile domain.UserProfile) bool {
	if len(c.Levels) == 0 {
		return false
	}
	first := c.Levels[0].ID
	if id == first {
		return true
	}
	if _, err := c.Level(id); err != nil {
		return false
	}
	return profile.Completed(first)
}

// Symbol maps an avatar key to its display symbol, falling back to the default avatar.
func (c Course) Symbol(avatar string) string {
	if sym, ok := c.Avatars[avatar]; ok {
		return sym
	}
	return c.Avatars[domain.DefaultAvatar]
}

// Decode parses course content; format is "json" or "yaml".
func Decode(data []byte, format string) (Course, error) {
	var c Course
	var err error
	switch format {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &c)
	case "json":
		err = json.Unmarshal(data, &c)
	default:
		return Course{}, fmt.Errorf("unsupported course format %q", format)
	}
	if err != nil {
		return Course{}, fmt.Errorf("decode course: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Course{}, err
	}
	return c, nil
}

// FileLoader reads a JSON or YAML course file, picking the format by extension.
type FileLoader struct {
	path string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

func (l *FileLoader) LoadCourse(_ context.Context) (Course, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return Course{}, fmt.Errorf("read course: %w", err)
	}
	return Decode(data, strings.TrimPrefix(filepath.Ext(l.path), "."))
}
