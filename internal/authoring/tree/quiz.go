package tree

import (
	"fmt"
	"slices"

	"github.com/p-n-ai/pai-studio/internal/authoring/ids"
)

// QuizState is the authoring phase of a quiz.
type QuizState int

const (
	// QuizDraft quizzes only have basic fields and no server id.
	QuizDraft QuizState = iota
	// QuizCreated quizzes have a server id and accept questions.
	QuizCreated
)

func (s QuizState) String() string {
	if s == QuizCreated {
		return "created"
	}
	return "draft"
}

// QuestionState is the persistence phase of a question.
type QuestionState int

const (
	QuestionLocalDraft QuestionState = iota
	QuestionPersisted
)

func (s QuestionState) String() string {
	if s == QuestionPersisted {
		return "persisted"
	}
	return "local_draft"
}

// State is derived from the id kind; there is no way back to Draft.
func (q Quiz) State() QuizState {
	if q.ID.IsPersisted() {
		return QuizCreated
	}
	return QuizDraft
}

// State is derived from the id kind.
func (q Question) State() QuestionState {
	if q.ID.IsPersisted() {
		return QuestionPersisted
	}
	return QuestionLocalDraft
}

// Question looks up a question by id.
func (q Quiz) Question(id ids.ID) (Question, bool) {
	i := slices.IndexFunc(q.Questions, func(qq Question) bool { return qq.ID == id })
	if i < 0 {
		return Question{}, false
	}
	return q.Questions[i], true
}

// LocalDrafts returns the questions not yet persisted, in quiz order.
func (q Quiz) LocalDrafts() []Question {
	var out []Question
	for _, qq := range q.Questions {
		if qq.State() == QuestionLocalDraft {
			out = append(out, qq)
		}
	}
	return out
}

// AddQuestion appends an empty LocalDraft question.
func (q Quiz) AddQuestion(alloc *ids.Allocator) (Quiz, Question) {
	qq := Question{ID: alloc.New(ids.EntityQuestion), Answers: []Answer{}}
	q.Questions = append(slices.Clone(q.Questions), qq)
	return q, qq
}

// WithQuestion replaces the question that has qq.ID.
func (q Quiz) WithQuestion(qq Question) (Quiz, error) {
	i := slices.IndexFunc(q.Questions, func(x Question) bool { return x.ID == qq.ID })
	if i < 0 {
		return q, fmt.Errorf("question %s: %w", qq.ID, ErrNotFound)
	}
	q.Questions = slices.Clone(q.Questions)
	q.Questions[i] = qq
	return q, nil
}

// RemoveQuestion drops a question.
func (q Quiz) RemoveQuestion(id ids.ID) (Quiz, error) {
	i := slices.IndexFunc(q.Questions, func(x Question) bool { return x.ID == id })
	if i < 0 {
		return q, fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	q.Questions = slices.Delete(slices.Clone(q.Questions), i, i+1)
	return q, nil
}

// AddAnswer appends an empty, incorrect answer.
func (q Question) AddAnswer(alloc *ids.Allocator) (Question, Answer) {
	a := Answer{ID: alloc.New(ids.EntityAnswer)}
	q.Answers = append(slices.Clone(q.Answers), a)
	return q, a
}

// EditAnswer replaces an answer's text.
func (q Question) EditAnswer(id ids.ID, text string) (Question, error) {
	i := q.answerIndex(id)
	if i < 0 {
		return q, fmt.Errorf("answer %s: %w", id, ErrNotFound)
	}
	q.Answers = slices.Clone(q.Answers)
	q.Answers[i].Text = text
	return q, nil
}

// RemoveAnswer drops an answer.
func (q Question) RemoveAnswer(id ids.ID) (Question, error) {
	i := q.answerIndex(id)
	if i < 0 {
		return q, fmt.Errorf("answer %s: %w", id, ErrNotFound)
	}
	q.Answers = slices.Delete(slices.Clone(q.Answers), i, i+1)
	return q, nil
}

// ToggleCorrect marks id as the only correct answer.
func (q Question) ToggleCorrect(id ids.ID) (Question, error) {
	if q.answerIndex(id) < 0 {
		return q, fmt.Errorf("answer %s: %w", id, ErrNotFound)
	}
	q.Answers = slices.Clone(q.Answers)
	for i := range q.Answers {
		q.Answers[i].IsCorrect = q.Answers[i].ID == id
	}
	return q, nil
}

// CorrectAnswer returns the first answer marked correct.
func (q Question) CorrectAnswer() (Answer, bool) {
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a, true
		}
	}
	return Answer{}, false
}

// AnswerTexts returns answer texts in order.
func (q Question) AnswerTexts() []string {
	out := make([]string, len(q.Answers))
	for i, a := range q.Answers {
		out[i] = a.Text
	}
	return out
}

// QuestionFromWire rebuilds a question from the server's string-based shape. Answer
// ids are minted locally and the first answer equal to correct is marked correct.
func QuestionFromWire(alloc *ids.Allocator, id ids.ID, text, correct string, answers []string) Question {
	q := Question{ID: id, Text: text, Answers: make([]Answer, 0, len(answers))}
	marked := false
	for _, a := range answers {
		isCorrect := !marked && a == correct
		if isCorrect {
			marked = true
		}
		q.Answers = append(q.Answers, Answer{
			ID:        alloc.New(ids.EntityAnswer),
			Text:      a,
			IsCorrect: isCorrect,
		})
	}
	return q
}

func (q Question) answerIndex(id ids.ID) int {
	return slices.IndexFunc(q.Answers, func(a Answer) bool { return a.ID == id })
}

// Quiz looks up a quiz within a section.
func (s Section) Quiz(id ids.ID) (Quiz, bool) {
	i := s.quizIndex(id)
	if i < 0 {
		return Quiz{}, false
	}
	return s.Quizzes[i], true
}

// Lecture looks up a lecture within a section.
func (s Section) Lecture(id ids.ID) (Lecture, bool) {
	i := s.lectureIndex(id)
	if i < 0 {
		return Lecture{}, false
	}
	return s.Lectures[i], true
}

// ModifyQuiz applies fn to one quiz and returns the updated course.
func (c Course) ModifyQuiz(sectionID, quizID ids.ID, fn func(Quiz) (Quiz, error)) (Course, error) {
	s, ok := c.Section(sectionID)
	if !ok {
		return c, fmt.Errorf("section %s: %w", sectionID, ErrNotFound)
	}
	i := s.quizIndex(quizID)
	if i < 0 {
		return c, fmt.Errorf("quiz %s: %w", quizID, ErrNotFound)
	}
	q, err := fn(s.Quizzes[i])
	if err != nil {
		return c, err
	}
	q.ID = quizID
	s.Quizzes = slices.Clone(s.Quizzes)
	s.Quizzes[i] = q
	return c.WithSection(s)
}

// ModifyQuestion applies fn to one question and returns the updated course.
func (c Course) ModifyQuestion(sectionID, quizID, questionID ids.ID, fn func(Question) (Question, error)) (Course, error) {
	return c.ModifyQuiz(sectionID, quizID, func(q Quiz) (Quiz, error) {
		qq, ok := q.Question(questionID)
		if !ok {
			return q, fmt.Errorf("question %s: %w", questionID, ErrNotFound)
		}
		updated, err := fn(qq)
		if err != nil {
			return q, err
		}
		updated.ID = questionID
		return q.WithQuestion(updated)
	})
}
