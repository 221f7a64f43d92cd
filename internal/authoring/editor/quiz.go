package editor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/p-n-ai/pai-studio/internal/authoring/ids"
	"github.com/p-n-ai/pai-studio/internal/authoring/tree"
	"github.com/p-n-ai/pai-studio/internal/authoring/validate"
	"github.com/p-n-ai/pai-studio/internal/gateway"
	"github.com/p-n-ai/pai-studio/internal/journal"
)

// InvalidQuestionsError lists the draft questions that blocked a batch submit.
type InvalidQuestionsError struct {
	IDs       []ids.ID
	Questions map[ids.ID]*validate.Error
}

func (e *InvalidQuestionsError) Error() string {
	parts := make([]string, 0, len(e.IDs))
	for _, id := range e.IDs {
		parts = append(parts, id.String()+": "+e.Questions[id].Error())
	}
	return fmt.Sprintf("%d question(s) invalid: %s", len(e.IDs), strings.Join(parts, "; "))
}

func (e *InvalidQuestionsError) Unwrap() []error {
	out := make([]error, 0, len(e.IDs))
	for _, id := range e.IDs {
		out = append(out, e.Questions[id])
	}
	return out
}

// Quiz returns a quiz of the current tree.
func (e *Editor) Quiz(sectionID, quizID ids.ID) (tree.Quiz, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quiz(sectionID, quizID)
}

// AddQuestion appends an empty LocalDraft question to a created quiz.
func (e *Editor) AddQuestion(sectionID, quizID ids.ID) (ids.ID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.createdQuiz(sectionID, quizID); err != nil {
		return ids.ID{}, err
	}
	var added tree.Question
	c, err := e.course.ModifyQuiz(sectionID, quizID, func(q tree.Quiz) (tree.Quiz, error) {
		q, added = q.AddQuestion(e.alloc)
		return q, nil
	})
	if err != nil {
		return ids.ID{}, err
	}
	e.course = c
	return added.ID, nil
}

// EditQuestion replaces a question's text locally.
func (e *Editor) EditQuestion(sectionID, quizID, questionID ids.ID, text string) error {
	return e.modifyQuestion(sectionID, quizID, questionID, func(q tree.Question) (tree.Question, error) {
		q.Text = text
		return q, nil
	})
}

// AddAnswer appends an empty, incorrect answer and returns its id.
func (e *Editor) AddAnswer(sectionID, quizID, questionID ids.ID) (ids.ID, error) {
	var added tree.Answer
	err := e.modifyQuestion(sectionID, quizID, questionID, func(q tree.Question) (tree.Question, error) {
		q, added = q.AddAnswer(e.alloc)
		return q, nil
	})
	return added.ID, err
}

// EditAnswer replaces an answer's text locally.
func (e *Editor) EditAnswer(sectionID, quizID, questionID, answerID ids.ID, text string) error {
	return e.modifyQuestion(sectionID, quizID, questionID, func(q tree.Question) (tree.Question, error) {
		return q.EditAnswer(answerID, text)
	})
}

// RemoveAnswer drops an answer locally.
func (e *Editor) RemoveAnswer(sectionID, quizID, questionID, answerID ids.ID) error {
	return e.modifyQuestion(sectionID, quizID, questionID, func(q tree.Question) (tree.Question, error) {
		return q.RemoveAnswer(answerID)
	})
}

// ToggleCorrect makes answerID the one correct answer of its question.
func (e *Editor) ToggleCorrect(sectionID, quizID, questionID, answerID ids.ID) error {
	return e.modifyQuestion(sectionID, quizID, questionID, func(q tree.Question) (tree.Question, error) {
		return q.ToggleCorrect(answerID)
	})
}

// ImportQuestions appends questions in the API's string shape as LocalDraft
// questions. They are validated when submitted.
func (e *Editor) ImportQuestions(sectionID, quizID ids.ID, in []gateway.QuestionPayload) ([]ids.ID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.createdQuiz(sectionID, quizID); err != nil {
		return nil, err
	}
	added := make([]ids.ID, 0, len(in))
	c, err := e.course.ModifyQuiz(sectionID, quizID, func(q tree.Quiz) (tree.Quiz, error) {
		q.Questions = slices.Clone(q.Questions)
		for _, p := range in {
			qq := tree.QuestionFromWire(e.alloc, e.alloc.New(ids.EntityQuestion), p.Question, p.CorrectAnswer, p.Answers)
			q.Questions = append(q.Questions, qq)
			added = append(added, qq.ID)
		}
		return q, nil
	})
	if err != nil {
		return nil, err
	}
	e.course = c
	return added, nil
}

// LoadQuestions fetches the persisted questions of a created quiz. LocalDraft
// questions already in the quiz stay after the fetched ones.
func (e *Editor) LoadQuestions(ctx context.Context, sectionID, quizID ids.ID) error {
	e.mu.Lock()
	_, err := e.createdQuiz(sectionID, quizID)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	recs, err := e.gw.ListQuestions(ctx, e.courseID, sectionID.Value(), quizID.Value())
	if err != nil {
		return fmt.Errorf("loading questions of quiz %s: %w", quizID, err)
	}
	fetched := make([]tree.Question, 0, len(recs))
	for _, r := range recs {
		fetched = append(fetched, tree.QuestionFromWire(e.alloc, ids.FromServer(string(r.ID)), r.Question, r.CorrectAnswer, r.Answers))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.course.ModifyQuiz(sectionID, quizID, func(q tree.Quiz) (tree.Quiz, error) {
		q.Questions = append(fetched, q.LocalDrafts()...)
		return q, nil
	})
	if err != nil {
		slog.Debug("questions loaded for a quiz that is gone", "course_id", e.courseID, "quiz_id", quizID)
		return nil
	}
	e.course = c
	return nil
}

// SubmitQuestions sends every LocalDraft question of a quiz in one batch. A single
// invalid draft blocks the whole batch. On success the drafts take the returned ids
// in order and keep their place in the quiz.
func (e *Editor) SubmitQuestions(ctx context.Context, sectionID, quizID ids.ID) ([]ids.ID, error) {
	e.mu.Lock()
	q, err := e.createdQuiz(sectionID, quizID)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	drafts := q.LocalDrafts()
	if len(drafts) == 0 {
		e.mu.Unlock()
		return nil, nil
	}
	if e.isSaving(quizID) {
		e.mu.Unlock()
		return nil, fmt.Errorf("quiz %s: %w", quizID, ErrBusy)
	}
	for _, d := range drafts {
		if e.isSaving(d.ID) {
			e.mu.Unlock()
			return nil, fmt.Errorf("question %s: %w", d.ID, ErrBusy)
		}
	}

	payloads := make([]gateway.QuestionPayload, 0, len(drafts))
	invalid := &InvalidQuestionsError{Questions: make(map[ids.ID]*validate.Error)}
	for _, d := range drafts {
		p, err := e.questionPayload(d)
		if err != nil {
			ve, ok := validate.AsError(err)
			if !ok {
				e.mu.Unlock()
				return nil, err
			}
			invalid.IDs = append(invalid.IDs, d.ID)
			invalid.Questions[d.ID] = ve
			continue
		}
		payloads = append(payloads, p)
	}
	if len(invalid.IDs) > 0 {
		e.mu.Unlock()
		return nil, invalid
	}

	e.saving[quizID] = struct{}{}
	for _, d := range drafts {
		e.saving[d.ID] = struct{}{}
	}
	e.mu.Unlock()

	recs, err := e.gw.CreateQuestions(ctx, e.courseID, sectionID.Value(), quizID.Value(), payloads)
	if err == nil && slices.ContainsFunc(recs, func(r gateway.QuestionRecord) bool { return r.ID == "" }) {
		err = gateway.ErrMissingID
	}

	e.mu.Lock()
	delete(e.saving, quizID)
	for _, d := range drafts {
		delete(e.saving, d.ID)
	}
	if err != nil {
		e.mu.Unlock()
		return nil, e.failed("submitting questions", quizID, err)
	}
	n := min(len(recs), len(drafts))
	out := make([]ids.ID, n)
	for i := range n {
		out[i] = ids.FromServer(string(recs[i].ID))
		e.reconcile(tree.Confirmation{Local: drafts[i].ID, Persisted: out[i]})
	}
	snap := e.course
	e.mu.Unlock()

	e.record(journal.EventQuestionsAdded, quizID, map[string]any{"count": n})
	e.saveSnapshot(ctx, snap)
	if len(recs) != len(drafts) {
		return out, fmt.Errorf("submitting questions to quiz %s: api returned %d ids for %d questions", quizID, len(recs), len(drafts))
	}
	return out, nil
}

// SaveQuestion creates a single LocalDraft question or updates a persisted one.
func (e *Editor) SaveQuestion(ctx context.Context, sectionID, quizID, questionID ids.ID) (ids.ID, error) {
	e.mu.Lock()
	q, err := e.createdQuiz(sectionID, quizID)
	if err != nil {
		e.mu.Unlock()
		return questionID, err
	}
	qq, ok := q.Question(questionID)
	if !ok {
		e.mu.Unlock()
		return questionID, fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	if e.isSaving(questionID) {
		e.mu.Unlock()
		return questionID, fmt.Errorf("question %s: %w", questionID, ErrBusy)
	}
	payload, err := e.questionPayload(qq)
	if err != nil {
		e.mu.Unlock()
		return questionID, err
	}
	e.saving[questionID] = struct{}{}
	e.mu.Unlock()

	var rid gateway.ResourceID
	if questionID.IsLocal() {
		var recs []gateway.QuestionRecord
		recs, err = e.gw.CreateQuestions(ctx, e.courseID, sectionID.Value(), quizID.Value(), []gateway.QuestionPayload{payload})
		if err == nil && len(recs) != 1 {
			err = fmt.Errorf("api returned %d questions for 1", len(recs))
		}
		if err == nil && recs[0].ID == "" {
			err = gateway.ErrMissingID
		}
		if err == nil {
			rid = recs[0].ID
		}
	} else {
		_, err = e.gw.UpdateQuestion(ctx, e.courseID, sectionID.Value(), quizID.Value(), questionID.Value(), payload)
	}

	e.mu.Lock()
	delete(e.saving, questionID)
	if err != nil {
		e.mu.Unlock()
		return questionID, e.failed("saving question", questionID, err)
	}
	out, event := questionID, journal.EventUpdated
	if questionID.IsLocal() {
		out, event = ids.FromServer(string(rid)), journal.EventCreated
		e.reconcile(tree.Confirmation{Local: questionID, Persisted: out})
	}
	snap := e.course
	e.mu.Unlock()

	e.record(event, out, map[string]any{"entity": "question", "quiz_id": quizID.Value()})
	e.saveSnapshot(ctx, snap)
	return out, nil
}

// DeleteQuestion removes a question. Persisted questions need confirmed set and are
// removed after the API confirmed the delete.
func (e *Editor) DeleteQuestion(ctx context.Context, sectionID, quizID, questionID ids.ID, confirmed bool) error {
	e.mu.Lock()
	q, err := e.quiz(sectionID, quizID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if _, ok := q.Question(questionID); !ok {
		e.mu.Unlock()
		return fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	if e.isSaving(questionID) {
		e.mu.Unlock()
		return fmt.Errorf("question %s: %w", questionID, ErrBusy)
	}
	if questionID.IsLocal() {
		e.course, _ = e.course.ModifyQuiz(sectionID, quizID, func(q tree.Quiz) (tree.Quiz, error) {
			return q.RemoveQuestion(questionID)
		})
		e.mu.Unlock()
		return nil
	}
	if !confirmed {
		e.mu.Unlock()
		return fmt.Errorf("question %s: %w", questionID, ErrConfirmationRequired)
	}
	e.saving[questionID] = struct{}{}
	e.mu.Unlock()

	err = e.gw.DeleteQuestion(ctx, e.courseID, sectionID.Value(), quizID.Value(), questionID.Value())

	e.mu.Lock()
	delete(e.saving, questionID)
	if err != nil {
		e.mu.Unlock()
		return e.failed("deleting question", questionID, err)
	}
	if c, err := e.course.ModifyQuiz(sectionID, quizID, func(q tree.Quiz) (tree.Quiz, error) {
		return q.RemoveQuestion(questionID)
	}); err == nil {
		e.course = c
	}
	snap := e.course
	e.mu.Unlock()

	e.record(journal.EventDeleted, questionID, map[string]any{"entity": "question", "quiz_id": quizID.Value()})
	e.saveSnapshot(ctx, snap)
	return nil
}

// quiz must be called with e.mu held.
func (e *Editor) quiz(sectionID, quizID ids.ID) (tree.Quiz, error) {
	s, ok := e.course.Section(sectionID)
	if !ok {
		return tree.Quiz{}, fmt.Errorf("section %s: %w", sectionID, ErrNotFound)
	}
	q, ok := s.Quiz(quizID)
	if !ok {
		return tree.Quiz{}, fmt.Errorf("quiz %s: %w", quizID, ErrNotFound)
	}
	return q, nil
}

// createdQuiz must be called with e.mu held.
func (e *Editor) createdQuiz(sectionID, quizID ids.ID) (tree.Quiz, error) {
	q, err := e.quiz(sectionID, quizID)
	if err != nil {
		return q, err
	}
	if q.State() != tree.QuizCreated {
		return q, fmt.Errorf("quiz %s: %w", quizID, ErrQuizNotCreated)
	}
	return q, nil
}

func (e *Editor) modifyQuestion(sectionID, quizID, questionID ids.ID, fn func(tree.Question) (tree.Question, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.course.ModifyQuestion(sectionID, quizID, questionID, fn)
	if err != nil {
		return err
	}
	e.course = c
	return nil
}

// questionPayload validates q and converts it to the API's string shape.
func (e *Editor) questionPayload(q tree.Question) (gateway.QuestionPayload, error) {
	in := validate.Question{Text: validate.Clean(q.Text)}
	for _, a := range q.Answers {
		in.Answers = append(in.Answers, validate.Answer{Text: validate.Clean(a.Text), IsCorrect: a.IsCorrect})
	}
	if err := e.validator.Struct(in); err != nil {
		return gateway.QuestionPayload{}, err
	}
	p := gateway.QuestionPayload{Question: in.Text, Answers: make([]string, 0, len(in.Answers))}
	for _, a := range in.Answers {
		p.Answers = append(p.Answers, a.Text)
		if a.IsCorrect && p.CorrectAnswer == "" {
			p.CorrectAnswer = a.Text
		}
	}
	return p, nil
}
