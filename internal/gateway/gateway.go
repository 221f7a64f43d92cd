// Package gateway is the client side of the course content REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// Gateway is every call the authoring editor makes to the course API.
type Gateway interface {
	ListSections(ctx context.Context, courseID string) ([]SectionRecord, error)
	CreateSection(ctx context.Context, courseID string, in SectionPayload) (SectionRecord, error)
	UpdateSection(ctx context.Context, courseID, sectionID string, in SectionPayload) (SectionRecord, error)
	DeleteSection(ctx context.Context, courseID, sectionID string) error

	CreateLecture(ctx context.Context, courseID, sectionID string, in LecturePayload) (LectureRecord, error)
	UpdateLecture(ctx context.Context, courseID, sectionID, lectureID string, in LecturePayload) (LectureRecord, error)
	MoveLecture(ctx context.Context, courseID, sectionID, lectureID string, position int) (LectureRecord, error)
	DeleteLecture(ctx context.Context, courseID, sectionID, lectureID string) error

	CreateQuiz(ctx context.Context, courseID, sectionID string, in QuizPayload) (QuizRecord, error)
	UpdateQuiz(ctx context.Context, courseID, sectionID, quizID string, in QuizPayload) (QuizRecord, error)
	MoveQuiz(ctx context.Context, courseID, sectionID, quizID string, position int) (QuizRecord, error)
	DeleteQuiz(ctx context.Context, courseID, sectionID, quizID string) error

	ListQuestions(ctx context.Context, courseID, sectionID, quizID string) ([]QuestionRecord, error)
	CreateQuestions(ctx context.Context, courseID, sectionID, quizID string, in []QuestionPayload) ([]QuestionRecord, error)
	UpdateQuestion(ctx context.Context, courseID, sectionID, quizID, questionID string, in QuestionPayload) (QuestionRecord, error)
	DeleteQuestion(ctx context.Context, courseID, sectionID, quizID, questionID string) error
}

// ResourceID is a server id. The API returns ids as JSON numbers or strings.
type ResourceID string

func (id *ResourceID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ResourceID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode resource id: %w", err)
	}
	*id = ResourceID(n.String())
	return nil
}

// SectionPayload is the body of section writes.
type SectionPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}

// SectionRecord is a section as returned by the API. Lectures and quizzes are only
// filled by ListSections.
type SectionRecord struct {
	ID          ResourceID      `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Position    int             `json:"position"`
	Lectures    []LectureRecord `json:"lectures,omitempty"`
	Quizzes     []QuizRecord    `json:"quizzes,omitempty"`
}

// LecturePayload is the body of lecture writes.
type LecturePayload struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Duration int    `json:"duration"`
	VideoURL string `json:"video_url"`
	Position int    `json:"position"`
}

// LectureRecord is a lecture as returned by the API.
type LectureRecord struct {
	ID       ResourceID `json:"id"`
	Title    string     `json:"title"`
	Content  string     `json:"content"`
	Duration int        `json:"duration"`
	VideoURL string     `json:"video_url"`
	Position int        `json:"position"`
}

// QuizPayload is the body of quiz writes.
type QuizPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    int    `json:"position"`
	Points      int    `json:"points"`
	TimeLimit   int    `json:"time_limit"`
}

// QuizRecord is a quiz as returned by the API.
type QuizRecord struct {
	ID          ResourceID `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Position    int        `json:"position"`
	Points      int        `json:"points"`
	TimeLimit   int        `json:"time_limit"`
}

// QuestionPayload is the string-based question shape the API speaks.
type QuestionPayload struct {
	Question      string   `json:"question"`
	CorrectAnswer string   `json:"correct_answer"`
	Answers       []string `json:"answers"`
}

// QuestionRecord is a question as returned by the API.
type QuestionRecord struct {
	ID            ResourceID `json:"id"`
	Question      string     `json:"question"`
	CorrectAnswer string     `json:"correct_answer"`
	Answers       []string   `json:"answers"`
}

type positionPayload struct {
	Position int `json:"position"`
}

type questionBatch struct {
	Questions []QuestionPayload `json:"questions"`
}

// ErrMissingID is returned when a create call succeeded but the answer carries no id.
var ErrMissingID = errors.New("api returned no id")

// Error is a non-2xx answer from the API.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("course api %s %s: %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("course api %s %s: status %d", e.Method, e.Path, e.Status)
}

func sectionsPath(courseID string) string {
	return "/courses/" + url.PathEscape(courseID) + "/sections"
}

func sectionPath(courseID, sectionID string) string {
	return sectionsPath(courseID) + "/" + url.PathEscape(sectionID)
}

func lecturesPath(courseID, sectionID string) string {
	return sectionPath(courseID, sectionID) + "/lectures"
}

func lecturePath(courseID, sectionID, lectureID string) string {
	return lecturesPath(courseID, sectionID) + "/" + url.PathEscape(lectureID)
}

func quizzesPath(courseID, sectionID string) string {
	return sectionPath(courseID, sectionID) + "/quizzes"
}

func quizPath(courseID, sectionID, quizID string) string {
	return quizzesPath(courseID, sectionID) + "/" + url.PathEscape(quizID)
}

func questionsPath(courseID, sectionID, quizID string) string {
	return quizPath(courseID, sectionID, quizID) + "/questions"
}

func questionPath(courseID, sectionID, quizID, questionID string) string {
	return questionsPath(courseID, sectionID, quizID) + "/" + url.PathEscape(questionID)
}

// Itoa is a convenience for mocks and tests that mint numeric ids.
func Itoa(n int) ResourceID { return ResourceID(strconv.Itoa(n)) }
