package tree_test

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/p-n-ai/pai-studio/internal/authoring/ids"
	"github.com/p-n-ai/pai-studio/internal/authoring/tree"
)

func persistedSection(id string, pos int) tree.Section {
	return tree.Section{
		ID:       ids.FromServer(id),
		Title:    "Section " + id,
		Position: pos,
		Rank:     pos,
		Lectures: []tree.Lecture{},
		Quizzes:  []tree.Quiz{},
	}
}

func TestCourse_AddSection(t *testing.T) {
	alloc := ids.NewAllocator()
	c := tree.New("course-1")

	c1, s := c.AddSection(alloc)
	if !s.ID.IsLocal() {
		t.Error("AddSection() should return a local section")
	}
	if len(c.Sections) != 0 {
		t.Error("AddSection() mutated the original course")
	}
	if len(c1.Sections) != 1 {
		t.Fatalf("Sections = %d, want 1", len(c1.Sections))
	}

	c2, s2 := c1.AddSection(alloc)
	if s2.Rank <= s.Rank {
		t.Errorf("second rank = %d, want > %d", s2.Rank, s.Rank)
	}
	if len(c2.Sections) != 2 || len(c1.Sections) != 1 {
		t.Error("AddSection() should be copy-on-write")
	}
}

func TestCourse_AddContent_MergedOrder(t *testing.T) {
	alloc := ids.NewAllocator()
	c, s := tree.New("c").AddSection(alloc)

	c, lec, err := c.AddContent(s.ID, tree.KindLecture, alloc)
	if err != nil {
		t.Fatalf("AddContent(lecture) error = %v", err)
	}
	c, quiz, err := c.AddContent(s.ID, tree.KindQuiz, alloc)
	if err != nil {
		t.Fatalf("AddContent(quiz) error = %v", err)
	}
	c, lec2, err := c.AddContent(s.ID, tree.KindLecture, alloc)
	if err != nil {
		t.Fatalf("AddContent(lecture) error = %v", err)
	}

	sec, _ := c.Section(s.ID)
	merged := sec.Merged()
	want := []ids.ID{lec.ID(), quiz.ID(), lec2.ID()}
	if len(merged) != len(want) {
		t.Fatalf("Merged() len = %d, want %d", len(merged), len(want))
	}
	for i, it := range merged {
		if it.ID() != want[i] {
			t.Errorf("Merged()[%d] = %s, want %s", i, it.ID(), want[i])
		}
	}
	if len(sec.Lectures) != 2 || len(sec.Quizzes) != 1 {
		t.Errorf("lectures=%d quizzes=%d, want 2 and 1", len(sec.Lectures), len(sec.Quizzes))
	}
}

func TestCourse_AddContent_UnknownSection(t *testing.T) {
	alloc := ids.NewAllocator()
	_, _, err := tree.New("c").AddContent(ids.FromServer("nope"), tree.KindLecture, alloc)
	if !errors.Is(err, tree.ErrNotFound) {
		t.Errorf("AddContent() error = %v, want ErrNotFound", err)
	}
}

func TestSection_ContentIsRestartable(t *testing.T) {
	s := persistedSection("1", 1)
	s.Lectures = []tree.Lecture{
		{ID: ids.FromServer("l2"), Position: 2, Rank: 2},
		{ID: ids.FromServer("l1"), Position: 1, Rank: 1},
	}
	s.Quizzes = []tree.Quiz{{ID: ids.FromServer("q3"), Position: 3, Rank: 3}}

	first := s.Merged()
	second := s.Merged()
	for i := range first {
		if first[i].ID() != second[i].ID() {
			t.Errorf("iteration %d differs: %s vs %s", i, first[i].ID(), second[i].ID())
		}
	}
	if first[0].ID() != ids.FromServer("l1") || first[2].ID() != ids.FromServer("q3") {
		t.Errorf("unexpected order: %s, %s, %s", first[0].ID(), first[1].ID(), first[2].ID())
	}
	// Backing slice order is untouched.
	if s.Lectures[0].ID != ids.FromServer("l2") {
		t.Error("Merged() reordered the lectures slice")
	}
}

func TestCourse_UpdateContent_KeepsIDAndKind(t *testing.T) {
	alloc := ids.NewAllocator()
	c, s := tree.New("c").AddSection(alloc)
	c, item, _ := c.AddContent(s.ID, tree.KindQuiz, alloc)

	c, err := c.UpdateContent(s.ID, item.ID(), tree.ContentPatch{
		Title:    tree.Ptr("Checkpoint"),
		Points:   tree.Ptr(10),
		Duration: tree.Ptr(99), // not a quiz field
	})
	if err != nil {
		t.Fatalf("UpdateContent() error = %v", err)
	}

	got, err := c.Content(s.ID, item.ID())
	if err != nil {
		t.Fatalf("Content() error = %v", err)
	}
	if got.Kind != tree.KindQuiz || got.ID() != item.ID() {
		t.Errorf("kind/id changed: %s %s", got.Kind, got.ID())
	}
	if got.Quiz.Title != "Checkpoint" || got.Quiz.Points != 10 {
		t.Errorf("patch not applied: %+v", got.Quiz)
	}
}

func TestCourse_RemoveContent_CompactsPersisted(t *testing.T) {
	s := persistedSection("1", 1)
	s.Lectures = []tree.Lecture{
		{ID: ids.FromServer("a"), Position: 1, Rank: 1},
		{ID: ids.FromServer("c"), Position: 3, Rank: 3},
	}
	s.Quizzes = []tree.Quiz{{ID: ids.FromServer("b"), Position: 2, Rank: 2}}
	c := tree.Course{ID: "c", Sections: []tree.Section{s}}

	c, err := c.RemoveContent(s.ID, ids.FromServer("b"))
	if err != nil {
		t.Fatalf("RemoveContent() error = %v", err)
	}
	sec, _ := c.Section(s.ID)
	positions := map[string]int{}
	for _, it := range sec.Merged() {
		positions[it.ID().Value()] = it.Position()
	}
	if positions["a"] != 1 || positions["c"] != 2 {
		t.Errorf("positions = %v, want a=1 c=2", positions)
	}
}

func TestCourse_RemoveSection(t *testing.T) {
	c := tree.Course{ID: "c", Sections: []tree.Section{
		persistedSection("1", 1),
		persistedSection("2", 2),
		persistedSection("3", 3),
	}}

	c2, err := c.RemoveSection(ids.FromServer("2"))
	if err != nil {
		t.Fatalf("RemoveSection() error = %v", err)
	}
	if len(c2.Sections) != 2 {
		t.Fatalf("Sections = %d, want 2", len(c2.Sections))
	}
	if c2.Sections[1].Position != 2 {
		t.Errorf("remaining position = %d, want 2", c2.Sections[1].Position)
	}
	if c.Sections[2].Position != 3 {
		t.Error("RemoveSection() mutated the original course")
	}
}

func TestCourse_ArrangeSections(t *testing.T) {
	alloc := ids.NewAllocator()
	c := tree.Course{ID: "c", Sections: []tree.Section{persistedSection("1", 1), persistedSection("2", 2)}}
	c, local := c.AddSection(alloc)

	order := []ids.ID{local.ID, ids.FromServer("2"), ids.FromServer("1")}
	c = c.ArrangeSections(order, map[ids.ID]int{ids.FromServer("2"): 1, ids.FromServer("1"): 2})

	for i, id := range order {
		if c.Sections[i].ID != id {
			t.Errorf("Sections[%d] = %s, want %s", i, c.Sections[i].ID, id)
		}
		if c.Sections[i].Rank != i+1 {
			t.Errorf("Sections[%d].Rank = %d, want %d", i, c.Sections[i].Rank, i+1)
		}
	}
	if c.Sections[0].Position != 0 {
		t.Errorf("local section position = %d, want 0", c.Sections[0].Position)
	}
}

func TestCourse_RandomOpsNeverDuplicateIDs(t *testing.T) {
	alloc := ids.NewAllocator()
	r := rand.New(rand.NewPCG(1, 2))
	c := tree.New("c")

	for range 500 {
		switch op := r.IntN(4); {
		case op == 0 || len(c.Sections) == 0:
			c, _ = c.AddSection(alloc)
		case op == 1:
			s := c.Sections[r.IntN(len(c.Sections))]
			kind := tree.KindLecture
			if r.IntN(2) == 0 {
				kind = tree.KindQuiz
			}
			c, _, _ = c.AddContent(s.ID, kind, alloc)
		case op == 2:
			s := c.Sections[r.IntN(len(c.Sections))]
			merged := s.Merged()
			if len(merged) > 0 {
				c, _ = c.RemoveContent(s.ID, merged[r.IntN(len(merged))].ID())
			}
		default:
			c, _ = c.RemoveSection(c.Sections[r.IntN(len(c.Sections))].ID)
		}

		seen := map[ids.ID]bool{}
		for id := range c.All() {
			if seen[id] {
				t.Fatalf("duplicate id %s", id)
			}
			seen[id] = true
		}
	}
}
