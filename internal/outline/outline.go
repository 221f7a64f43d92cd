// Package outline reads course outlines written in YAML and builds them in an editor.
package outline

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-studio/internal/authoring/editor"
	"github.com/p-n-ai/pai-studio/internal/authoring/ids"
	"github.com/p-n-ai/pai-studio/internal/authoring/tree"
	"github.com/p-n-ai/pai-studio/internal/gateway"
)

//go:embed outline.schema.json
var schemaJSON []byte

var schema = mustSchema()

func mustSchema() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("outline schema: %v", err))
	}
	return s
}

// Outline is a whole course described up front.
type Outline struct {
	Title    string    `yaml:"title"`
	Sections []Section `yaml:"sections"`
}

// Section of an outline. Items keep the order they will have in the section.
type Section struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Items       []Item `yaml:"items"`
}

// Item holds exactly one of Lecture and Quiz.
type Item struct {
	Lecture *Lecture `yaml:"lecture"`
	Quiz    *Quiz    `yaml:"quiz"`
}

type Lecture struct {
	Title    string `yaml:"title"`
	Content  string `yaml:"content"`
	Duration int    `yaml:"duration"`
	VideoURL string `yaml:"video_url"`
}

type Quiz struct {
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Points      int        `yaml:"points"`
	TimeLimit   int        `yaml:"time_limit"`
	Questions   []Question `yaml:"questions"`
}

type Question struct {
	Question      string   `yaml:"question"`
	CorrectAnswer string   `yaml:"correct_answer"`
	Answers       []string `yaml:"answers"`
}

// SchemaError lists everything wrong with an outline document.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "outline does not match schema: " + strings.Join(e.Problems, "; ")
}

// Parse decodes and checks an outline document.
func Parse(data []byte) (*Outline, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding outline: %w", err)
	}
	if doc == nil {
		return nil, &SchemaError{Problems: []string{"document is empty"}}
	}

	res, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validating outline: %w", err)
	}
	if !res.Valid() {
		se := &SchemaError{}
		for _, d := range res.Errors() {
			se.Problems = append(se.Problems, d.String())
		}
		return nil, se
	}

	var o Outline
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decoding outline: %w", err)
	}
	return &o, nil
}

// Load reads and parses an outline file.
func Load(path string) (*Outline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading outline: %w", err)
	}
	o, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Info("outline loaded", "path", path, "sections", len(o.Sections))
	return o, nil
}

// Report counts what Apply created.
type Report struct {
	Sections  int
	Lectures  int
	Quizzes   int
	Questions int
}

// Apply appends the outline to the course in ed and saves every entity it adds,
// section by section. It stops at the first failure; entities saved before it stay.
func Apply(ctx context.Context, ed *editor.Editor, o *Outline) (Report, error) {
	var r Report
	for si, sec := range o.Sections {
		sid := ed.AddSection()
		if err := ed.EditSection(sid, tree.SectionPatch{
			Title:       tree.Ptr(sec.Title),
			Description: tree.Ptr(sec.Description),
		}); err != nil {
			return r, err
		}
		sid, err := ed.SaveSection(ctx, sid)
		if err != nil {
			return r, fmt.Errorf("section %d %q: %w", si+1, sec.Title, err)
		}
		r.Sections++

		for ii, it := range sec.Items {
			where := fmt.Sprintf("section %d item %d", si+1, ii+1)
			switch {
			case it.Lecture != nil:
				if err := applyLecture(ctx, ed, sid, *it.Lecture); err != nil {
					return r, fmt.Errorf("%s: %w", where, err)
				}
				r.Lectures++
			case it.Quiz != nil:
				n, err := applyQuiz(ctx, ed, sid, *it.Quiz)
				if err != nil {
					return r, fmt.Errorf("%s: %w", where, err)
				}
				r.Quizzes++
				r.Questions += n
			}
		}
	}
	slog.Info("outline applied",
		"course_id", ed.CourseID(),
		"sections", r.Sections,
		"lectures", r.Lectures,
		"quizzes", r.Quizzes,
		"questions", r.Questions,
	)
	return r, nil
}

func applyLecture(ctx context.Context, ed *editor.Editor, sid ids.ID, l Lecture) error {
	id, err := ed.AddContent(sid, tree.KindLecture)
	if err != nil {
		return err
	}
	if err := ed.EditContent(sid, id, tree.ContentPatch{
		Title:    tree.Ptr(l.Title),
		Content:  tree.Ptr(l.Content),
		Duration: tree.Ptr(l.Duration),
		VideoURL: tree.Ptr(l.VideoURL),
	}); err != nil {
		return err
	}
	_, err = ed.SaveContent(ctx, sid, id)
	return err
}

func applyQuiz(ctx context.Context, ed *editor.Editor, sid ids.ID, q Quiz) (int, error) {
	id, err := ed.AddContent(sid, tree.KindQuiz)
	if err != nil {
		return 0, err
	}
	if err := ed.EditContent(sid, id, tree.ContentPatch{
		Title:       tree.Ptr(q.Title),
		Description: tree.Ptr(q.Description),
		Points:      tree.Ptr(q.Points),
		TimeLimit:   tree.Ptr(q.TimeLimit),
	}); err != nil {
		return 0, err
	}
	id, err = ed.SaveContent(ctx, sid, id)
	if err != nil {
		return 0, err
	}
	if len(q.Questions) == 0 {
		return 0, nil
	}

	in := make([]gateway.QuestionPayload, len(q.Questions))
	for i, qq := range q.Questions {
		in[i] = gateway.QuestionPayload{Question: qq.Question, CorrectAnswer: qq.CorrectAnswer, Answers: qq.Answers}
	}
	if _, err := ed.ImportQuestions(sid, id, in); err != nil {
		return 0, err
	}
	saved, err := ed.SubmitQuestions(ctx, sid, id)
	return len(saved), err
}
