// Package tree holds the in-memory structure of one course being edited.
//
// Every mutator is copy-on-write: it returns a new Course and leaves the receiver
// untouched, so callers can keep earlier values as snapshots.
package tree

import (
	"errors"

	"github.com/p-n-ai/pai-studio/internal/authoring/ids"
)

// ErrNotFound is returned when an id does not resolve inside the course.
var ErrNotFound = errors.New("entity not found")

// Kind discriminates the content item union.
type Kind string

const (
	KindLecture Kind = "lecture"
	KindQuiz    Kind = "quiz"
)

// Course is the tree for one course. Sections are kept in rank order.
type Course struct {
	ID       string    `json:"id"`
	Sections []Section `json:"sections"`
}

// Section is an ordered container of lectures and quizzes.
type Section struct {
	ID          ids.ID    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Position    int       `json:"position"`
	Rank        int       `json:"rank"`
	Lectures    []Lecture `json:"lectures"`
	Quizzes     []Quiz    `json:"quizzes"`
}

// Lecture is a video lesson.
type Lecture struct {
	ID       ids.ID `json:"id"`
	Position int    `json:"position"`
	Rank     int    `json:"rank"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Duration int    `json:"duration"`
	VideoURL string `json:"video_url"`
}

// Quiz is a graded set of questions.
type Quiz struct {
	ID          ids.ID     `json:"id"`
	Position    int        `json:"position"`
	Rank        int        `json:"rank"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Points      int        `json:"points"`
	TimeLimit   int        `json:"time_limit"`
	Questions   []Question `json:"questions"`
}

// Question belongs to a quiz. Answer ids are always editor-side.
type Question struct {
	ID      ids.ID   `json:"id"`
	Text    string   `json:"question_text"`
	Answers []Answer `json:"answers"`
}

// Answer is one option of a question.
type Answer struct {
	ID        ids.ID `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// ContentItem is a lecture or a quiz as seen in a section's merged view.
// Exactly one of Lecture and Quiz is set.
type ContentItem struct {
	Kind    Kind
	Lecture *Lecture
	Quiz    *Quiz
}

// ID returns the wrapped entity's id.
func (c ContentItem) ID() ids.ID {
	if c.Kind == KindQuiz {
		return c.Quiz.ID
	}
	return c.Lecture.ID
}

// Position returns the wrapped entity's server position.
func (c ContentItem) Position() int {
	if c.Kind == KindQuiz {
		return c.Quiz.Position
	}
	return c.Lecture.Position
}

// Rank returns the wrapped entity's display slot.
func (c ContentItem) Rank() int {
	if c.Kind == KindQuiz {
		return c.Quiz.Rank
	}
	return c.Lecture.Rank
}

// Title returns the wrapped entity's title.
func (c ContentItem) Title() string {
	if c.Kind == KindQuiz {
		return c.Quiz.Title
	}
	return c.Lecture.Title
}

// SectionPatch carries optional section field replacements.
type SectionPatch struct {
	Title       *string
	Description *string
}

// ContentPatch carries optional field replacements for a lecture or quiz.
// Fields that do not apply to the item's kind are ignored.
type ContentPatch struct {
	Title       *string
	Description *string
	Content     *string
	Duration    *int
	VideoURL    *string
	Points      *int
	TimeLimit   *int
}

// Ptr is a small helper for building patches.
func Ptr[T any](v T) *T { return &v }
