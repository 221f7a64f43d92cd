package tree_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/pai-studio/internal/authoring/ids"
	"github.com/p-n-ai/pai-studio/internal/authoring/tree"
)

func questionWithAnswers(alloc *ids.Allocator, texts ...string) tree.Question {
	q := tree.Question{ID: alloc.New(ids.EntityQuestion), Text: "Q"}
	for _, text := range texts {
		var a tree.Answer
		q, a = q.AddAnswer(alloc)
		q, _ = q.EditAnswer(a.ID, text)
	}
	return q
}

func TestQuizState(t *testing.T) {
	alloc := ids.NewAllocator()
	if got := (tree.Quiz{ID: alloc.New(ids.EntityQuiz)}).State(); got != tree.QuizDraft {
		t.Errorf("local quiz State() = %v, want draft", got)
	}
	if got := (tree.Quiz{ID: ids.FromServer("1")}).State(); got != tree.QuizCreated {
		t.Errorf("persisted quiz State() = %v, want created", got)
	}
	if got := (tree.Question{ID: ids.FromServer("1")}).State(); got != tree.QuestionPersisted {
		t.Errorf("persisted question State() = %v, want persisted", got)
	}
}

func TestQuestion_ToggleCorrect_SingleSelect(t *testing.T) {
	alloc := ids.NewAllocator()
	q := questionWithAnswers(alloc, "a", "b", "c", "d")

	for round := range 3 {
		for _, target := range q.Answers {
			var err error
			q, err = q.ToggleCorrect(target.ID)
			if err != nil {
				t.Fatalf("ToggleCorrect() error = %v", err)
			}
			correct := 0
			for _, a := range q.Answers {
				if a.IsCorrect {
					correct++
					if a.ID != target.ID {
						t.Errorf("round %d: wrong answer marked correct", round)
					}
				}
			}
			if correct != 1 {
				t.Errorf("round %d: correct answers = %d, want 1", round, correct)
			}
		}
	}
}

func TestQuestion_ToggleCorrect_Unknown(t *testing.T) {
	alloc := ids.NewAllocator()
	q := questionWithAnswers(alloc, "a", "b")
	if _, err := q.ToggleCorrect(alloc.New(ids.EntityAnswer)); !errors.Is(err, tree.ErrNotFound) {
		t.Errorf("ToggleCorrect() error = %v, want ErrNotFound", err)
	}
}

func TestQuestion_RemoveAnswer(t *testing.T) {
	alloc := ids.NewAllocator()
	q := questionWithAnswers(alloc, "a", "b", "c")
	q2, err := q.RemoveAnswer(q.Answers[1].ID)
	if err != nil {
		t.Fatalf("RemoveAnswer() error = %v", err)
	}
	if got := q2.AnswerTexts(); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("AnswerTexts() = %v, want [a c]", got)
	}
	if len(q.Answers) != 3 {
		t.Error("RemoveAnswer() mutated the original question")
	}
}

func TestQuestionFromWire(t *testing.T) {
	alloc := ids.NewAllocator()
	q := tree.QuestionFromWire(alloc, ids.FromServer("5"), "2+2?", "4", []string{"3", "4", "5"})

	if q.ID != ids.FromServer("5") || q.Text != "2+2?" {
		t.Errorf("unexpected question %+v", q)
	}
	correct, ok := q.CorrectAnswer()
	if !ok || correct.Text != "4" {
		t.Errorf("CorrectAnswer() = %q, %v; want 4", correct.Text, ok)
	}
	for _, a := range q.Answers {
		if !a.ID.IsLocal() {
			t.Errorf("answer id %s should be local", a.ID)
		}
	}
}

func TestQuestionFromWire_DuplicateTextMarksOnce(t *testing.T) {
	alloc := ids.NewAllocator()
	q := tree.QuestionFromWire(alloc, ids.FromServer("5"), "pick", "yes", []string{"yes", "yes", "no"})
	n := 0
	for _, a := range q.Answers {
		if a.IsCorrect {
			n++
		}
	}
	if n != 1 {
		t.Errorf("correct answers = %d, want 1", n)
	}
}

func TestQuiz_LocalDrafts(t *testing.T) {
	alloc := ids.NewAllocator()
	q := tree.Quiz{ID: ids.FromServer("1"), Questions: []tree.Question{{ID: ids.FromServer("p")}}}
	q, d1 := q.AddQuestion(alloc)
	q, d2 := q.AddQuestion(alloc)

	drafts := q.LocalDrafts()
	if len(drafts) != 2 || drafts[0].ID != d1.ID || drafts[1].ID != d2.ID {
		t.Errorf("LocalDrafts() = %v, want the two drafts in order", drafts)
	}
}
