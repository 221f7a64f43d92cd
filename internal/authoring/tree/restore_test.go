package tree_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/pai-studio/internal/authoring/ids"
	"github.com/p-n-ai/pai-studio/internal/authoring/tree"
)

func TestCourse_RestoreSectionOrder(t *testing.T) {
	alloc := ids.NewAllocator()
	one, two, three := ids.FromServer("1"), ids.FromServer("2"), ids.FromServer("3")
	prior := tree.Course{ID: "c", Sections: []tree.Section{
		persistedSection("1", 1), persistedSection("2", 2), persistedSection("3", 3),
	}}

	// Optimistic move of section 3 to the top, then a new draft and a delete land
	// before the write fails.
	c := prior.ArrangeSections([]ids.ID{three, one, two}, map[ids.ID]int{three: 1, one: 2, two: 3})
	c, local := c.AddSection(alloc)
	c, err := c.RemoveSection(two)
	if err != nil {
		t.Fatalf("RemoveSection() error = %v", err)
	}

	got := c.RestoreSectionOrder(prior)

	want := []struct {
		id  ids.ID
		pos int
	}{{one, 1}, {three, 2}, {local.ID, 0}}
	if len(got.Sections) != len(want) {
		t.Fatalf("Sections = %d, want %d", len(got.Sections), len(want))
	}
	for i, w := range want {
		s := got.Sections[i]
		if s.ID != w.id || s.Position != w.pos {
			t.Errorf("Sections[%d] = %s@%d, want %s@%d", i, s.ID, s.Position, w.id, w.pos)
		}
	}
	if c.Sections[0].ID != three {
		t.Error("RestoreSectionOrder() mutated its receiver")
	}
}

func TestCourse_RestoreContentOrder(t *testing.T) {
	alloc := ids.NewAllocator()
	sid, lec, quiz := ids.FromServer("10"), ids.FromServer("20"), ids.FromServer("30")
	c := tree.Course{ID: "c", Sections: []tree.Section{{
		ID:       sid,
		Position: 1,
		Rank:     1,
		Lectures: []tree.Lecture{{ID: lec, Position: 1, Rank: 1}},
		Quizzes:  []tree.Quiz{{ID: quiz, Position: 2, Rank: 2}},
	}}}
	prior, _ := c.Section(sid)

	moved, err := c.ArrangeContent(sid, []ids.ID{quiz, lec}, map[ids.ID]int{quiz: 1, lec: 2})
	if err != nil {
		t.Fatalf("ArrangeContent() error = %v", err)
	}
	moved, draft, err := moved.AddContent(sid, tree.KindLecture, alloc)
	if err != nil {
		t.Fatalf("AddContent() error = %v", err)
	}

	got, err := moved.RestoreContentOrder(sid, prior)
	if err != nil {
		t.Fatalf("RestoreContentOrder() error = %v", err)
	}
	s, _ := got.Section(sid)
	items := s.Merged()
	wantIDs := []ids.ID{lec, quiz, draft.ID()}
	wantPos := []int{1, 2, 0}
	if len(items) != len(wantIDs) {
		t.Fatalf("items = %d, want %d", len(items), len(wantIDs))
	}
	for i, it := range items {
		if it.ID() != wantIDs[i] || it.Position() != wantPos[i] {
			t.Errorf("items[%d] = %s@%d, want %s@%d", i, it.ID(), it.Position(), wantIDs[i], wantPos[i])
		}
	}
}

func TestCourse_RestoreContentOrder_UnknownSection(t *testing.T) {
	c := tree.New("c")
	_, err := c.RestoreContentOrder(ids.FromServer("404"), tree.Section{})
	if !errors.Is(err, tree.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
