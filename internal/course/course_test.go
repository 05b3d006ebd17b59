package course

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"doubledutch-sync/internal/domain"
)

const sampleJSON = `{
  "courseData": [
    {"id": "level-1", "title": "Greetings", "theme": "Hallo", "xpReward": 50,
     "vocabulary": [{"dutch": "hallo", "afrikaans": "hallo", "english": "hello"}],
     "quiz": [{"question": "Hello?", "options": ["hallo", "dag"], "answer": "hallo"}]},
    {"id": "level-2", "title": "Food", "theme": "Eten", "xpReward": 75, "quiz": []}
  ],
  "avatars": {"bear": "B", "fox": "F"}
}`

func TestDecodeJSONAndLookups(t *testing.T) {
	c, err := Decode([]byte(sampleJSON), "json")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	level, err := c.Level("level-1")
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	if level.XPReward != 50 || len(level.Quiz) != 1 || level.Quiz[0].Answer != "hallo" {
		t.Fatalf("unexpected level: %+v", level)
	}
	if _, err := c.Level("nope"); !errors.Is(err, domain.ErrLevelNotFound) {
		t.Fatalf("expected ErrLevelNotFound, got %v", err)
	}
	if c.Symbol("fox") != "F" || c.Symbol("unicorn") != "B" {
		t.Fatalf("unexpected symbols: %q %q", c.Symbol("fox"), c.Symbol("unicorn"))
	}
}

func TestUnlockedRequiresFirstLevel(t *testing.T) {
	c, err := Decode([]byte(sampleJSON), "json")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	profile := domain.DefaultProfile()
	if !c.Unlocked("level-1", profile) {
		t.Fatalf("first level must be unlocked")
	}
	if c.Unlocked("level-2", profile) {
		t.Fatalf("second level must be locked before first completion")
	}
	profile.LevelProgress["level-1"] = domain.LevelProgress{Completed: true, Timestamp: 1}
	if !c.Unlocked("level-2", profile) {
		t.Fatalf("second level must unlock after first completion")
	}
	if c.Unlocked("missing", profile) {
		t.Fatalf("unknown level must not be unlocked")
	}
}

func TestValidateRejectsBadCourses(t *testing.T) {
	cases := map[string]Course{
		"missing id": {Levels: []domain.CourseLevel{{Title: "x"}}},
		"duplicate":  {Levels: []domain.CourseLevel{{ID: "a"}, {ID: "a"}}},
		"negative":   {Levels: []domain.CourseLevel{{ID: "a", XPReward: -1}}},
	}
	for name, c := range cases {
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestFileLoaderYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "course.yaml")
	content := "courseData:\n  - id: level-1\n    xpReward: 10\n    quiz:\n      - question: q\n        options: [a, b]\n        answer: a\navatars:\n  bear: B\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := NewFileLoader(path).LoadCourse(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Levels) != 1 || c.Levels[0].Quiz[0].Answer != "a" {
		t.Fatalf("unexpected course: %+v", c)
	}
}
