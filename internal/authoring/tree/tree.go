package tree

import (
	"cmp"
	"fmt"
	"iter"
	"slices"

	"github.com/p-n-ai/pai-studio/internal/authoring/ids"
)

// New returns an empty course tree.
func New(courseID string) Course {
	return Course{ID: courseID, Sections: []Section{}}
}

// Section looks up a section by id.
func (c Course) Section(id ids.ID) (Section, bool) {
	i := c.sectionIndex(id)
	if i < 0 {
		return Section{}, false
	}
	return c.Sections[i], true
}

// PersistedSections counts sections that have a server id.
func (c Course) PersistedSections() int {
	n := 0
	for _, s := range c.Sections {
		if s.ID.IsPersisted() {
			n++
		}
	}
	return n
}

// AddSection appends a Local section at the end of the course.
func (c Course) AddSection(alloc *ids.Allocator) (Course, Section) {
	s := Section{
		ID:       alloc.New(ids.EntitySection),
		Rank:     c.nextSectionRank(),
		Lectures: []Lecture{},
		Quizzes:  []Quiz{},
	}
	out := c
	out.Sections = append(slices.Clone(c.Sections), s)
	return out, s
}

// UpdateSection replaces the given section fields.
func (c Course) UpdateSection(id ids.ID, p SectionPatch) (Course, error) {
	s, ok := c.Section(id)
	if !ok {
		return c, fmt.Errorf("section %s: %w", id, ErrNotFound)
	}
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	return c.WithSection(s)
}

// RemoveSection drops a section and everything in it. Persisted sibling positions
// are compacted when the removed section was persisted.
func (c Course) RemoveSection(id ids.ID) (Course, error) {
	i := c.sectionIndex(id)
	if i < 0 {
		return c, fmt.Errorf("section %s: %w", id, ErrNotFound)
	}
	out := c
	out.Sections = slices.Delete(slices.Clone(c.Sections), i, i+1)
	if id.IsPersisted() {
		out.Sections = compactSections(out.Sections)
	}
	return out, nil
}

// WithSection replaces the section that has s.ID.
func (c Course) WithSection(s Section) (Course, error) {
	i := c.sectionIndex(s.ID)
	if i < 0 {
		return c, fmt.Errorf("section %s: %w", s.ID, ErrNotFound)
	}
	out := c
	out.Sections = slices.Clone(c.Sections)
	out.Sections[i] = s
	return out, nil
}

// ArrangeSections puts sections in the given order, rewriting ranks densely and
// positions from the given map. Sections missing from order keep their relative
// order after the listed ones.
func (c Course) ArrangeSections(order []ids.ID, positions map[ids.ID]int) Course {
	rank := make(map[ids.ID]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	secs := slices.Clone(c.Sections)
	slices.SortStableFunc(secs, func(a, b Section) int {
		ra, okA := rank[a.ID]
		rb, okB := rank[b.ID]
		switch {
		case okA && okB:
			return cmp.Compare(ra, rb)
		case okA:
			return -1
		case okB:
			return 1
		}
		return 0
	})
	for i := range secs {
		secs[i].Rank = i + 1
		if p, ok := positions[secs[i].ID]; ok {
			secs[i].Position = p
		}
	}
	out := c
	out.Sections = secs
	return out
}

// AddContent appends a Local lecture or quiz to the end of a section's merged view.
func (c Course) AddContent(sectionID ids.ID, kind Kind, alloc *ids.Allocator) (Course, ContentItem, error) {
	s, ok := c.Section(sectionID)
	if !ok {
		return c, ContentItem{}, fmt.Errorf("section %s: %w", sectionID, ErrNotFound)
	}
	rank := s.nextRank()

	var item ContentItem
	switch kind {
	case KindLecture:
		l := Lecture{ID: alloc.New(ids.EntityLecture), Rank: rank}
		s.Lectures = append(slices.Clone(s.Lectures), l)
		item = ContentItem{Kind: KindLecture, Lecture: &l}
	case KindQuiz:
		q := Quiz{ID: alloc.New(ids.EntityQuiz), Rank: rank, Questions: []Question{}}
		s.Quizzes = append(slices.Clone(s.Quizzes), q)
		item = ContentItem{Kind: KindQuiz, Quiz: &q}
	default:
		return c, ContentItem{}, fmt.Errorf("unknown content kind %q", kind)
	}

	out, err := c.WithSection(s)
	if err != nil {
		return c, ContentItem{}, err
	}
	return out, item, nil
}

// Content returns one item of a section.
func (c Course) Content(sectionID, contentID ids.ID) (ContentItem, error) {
	s, ok := c.Section(sectionID)
	if !ok {
		return ContentItem{}, fmt.Errorf("section %s: %w", sectionID, ErrNotFound)
	}
	item, ok := s.Item(contentID)
	if !ok {
		return ContentItem{}, fmt.Errorf("content %s: %w", contentID, ErrNotFound)
	}
	return item, nil
}

// UpdateContent applies a patch to a lecture or quiz. The id and kind never change.
func (c Course) UpdateContent(sectionID, contentID ids.ID, p ContentPatch) (Course, error) {
	s, ok := c.Section(sectionID)
	if !ok {
		return c, fmt.Errorf("section %s: %w", sectionID, ErrNotFound)
	}

	if i := s.lectureIndex(contentID); i >= 0 {
		l := s.Lectures[i]
		setIf(&l.Title, p.Title)
		setIf(&l.Content, p.Content)
		setIf(&l.Duration, p.Duration)
		setIf(&l.VideoURL, p.VideoURL)
		s.Lectures = slices.Clone(s.Lectures)
		s.Lectures[i] = l
		return c.WithSection(s)
	}
	if i := s.quizIndex(contentID); i >= 0 {
		q := s.Quizzes[i]
		setIf(&q.Title, p.Title)
		setIf(&q.Description, p.Description)
		setIf(&q.Points, p.Points)
		setIf(&q.TimeLimit, p.TimeLimit)
		s.Quizzes = slices.Clone(s.Quizzes)
		s.Quizzes[i] = q
		return c.WithSection(s)
	}
	return c, fmt.Errorf("content %s: %w", contentID, ErrNotFound)
}

// RemoveContent drops a lecture or quiz from a section. Removing a persisted item
// compacts the remaining persisted positions.
func (c Course) RemoveContent(sectionID, contentID ids.ID) (Course, error) {
	s, ok := c.Section(sectionID)
	if !ok {
		return c, fmt.Errorf("section %s: %w", sectionID, ErrNotFound)
	}
	switch {
	case s.lectureIndex(contentID) >= 0:
		i := s.lectureIndex(contentID)
		s.Lectures = slices.Delete(slices.Clone(s.Lectures), i, i+1)
	case s.quizIndex(contentID) >= 0:
		i := s.quizIndex(contentID)
		s.Quizzes = slices.Delete(slices.Clone(s.Quizzes), i, i+1)
	default:
		return c, fmt.Errorf("content %s: %w", contentID, ErrNotFound)
	}
	if contentID.IsPersisted() {
		s = s.compact()
	}
	return c.WithSection(s)
}

// ArrangeContent rewrites ranks of a section's items to follow order and sets the
// given positions.
func (c Course) ArrangeContent(sectionID ids.ID, order []ids.ID, positions map[ids.ID]int) (Course, error) {
	s, ok := c.Section(sectionID)
	if !ok {
		return c, fmt.Errorf("section %s: %w", sectionID, ErrNotFound)
	}
	rank := make(map[ids.ID]int, len(order))
	for i, id := range order {
		rank[id] = i + 1
	}
	s.Lectures = slices.Clone(s.Lectures)
	for i := range s.Lectures {
		l := &s.Lectures[i]
		if r, ok := rank[l.ID]; ok {
			l.Rank = r
		}
		if p, ok := positions[l.ID]; ok {
			l.Position = p
		}
	}
	s.Quizzes = slices.Clone(s.Quizzes)
	for i := range s.Quizzes {
		q := &s.Quizzes[i]
		if r, ok := rank[q.ID]; ok {
			q.Rank = r
		}
		if p, ok := positions[q.ID]; ok {
			q.Position = p
		}
	}
	return c.WithSection(s)
}

// All yields every entity id in the course, depth first.
func (c Course) All() iter.Seq[ids.ID] {
	return func(yield func(ids.ID) bool) {
		for _, s := range c.Sections {
			if !yield(s.ID) {
				return
			}
			for _, l := range s.Lectures {
				if !yield(l.ID) {
					return
				}
			}
			for _, q := range s.Quizzes {
				if !yield(q.ID) {
					return
				}
				for _, qq := range q.Questions {
					if !yield(qq.ID) {
						return
					}
					for _, a := range qq.Answers {
						if !yield(a.ID) {
							return
						}
					}
				}
			}
		}
	}
}

// Content yields the section's lectures and quizzes merged by rank. Iteration can be
// restarted; the backing slices are never modified and items are copies.
func (s Section) Content() iter.Seq[ContentItem] {
	return func(yield func(ContentItem) bool) {
		items := make([]ContentItem, 0, len(s.Lectures)+len(s.Quizzes))
		for _, l := range s.Lectures {
			items = append(items, ContentItem{Kind: KindLecture, Lecture: &l})
		}
		for _, q := range s.Quizzes {
			items = append(items, ContentItem{Kind: KindQuiz, Quiz: &q})
		}
		slices.SortStableFunc(items, func(a, b ContentItem) int {
			return cmp.Compare(a.Rank(), b.Rank())
		})
		for _, it := range items {
			if !yield(it) {
				return
			}
		}
	}
}

// Merged collects Content into a slice.
func (s Section) Merged() []ContentItem {
	return slices.Collect(s.Content())
}

// Item looks up a lecture or quiz by id.
func (s Section) Item(id ids.ID) (ContentItem, bool) {
	if i := s.lectureIndex(id); i >= 0 {
		l := s.Lectures[i]
		return ContentItem{Kind: KindLecture, Lecture: &l}, true
	}
	if i := s.quizIndex(id); i >= 0 {
		q := s.Quizzes[i]
		return ContentItem{Kind: KindQuiz, Quiz: &q}, true
	}
	return ContentItem{}, false
}

// PersistedContent counts lectures and quizzes that have a server id.
func (s Section) PersistedContent() int {
	n := 0
	for _, l := range s.Lectures {
		if l.ID.IsPersisted() {
			n++
		}
	}
	for _, q := range s.Quizzes {
		if q.ID.IsPersisted() {
			n++
		}
	}
	return n
}

func (c Course) sectionIndex(id ids.ID) int {
	return slices.IndexFunc(c.Sections, func(s Section) bool { return s.ID == id })
}

func (c Course) nextSectionRank() int {
	top := 0
	for _, s := range c.Sections {
		if s.Rank > top {
			top = s.Rank
		}
	}
	return top + 1
}

func (s Section) lectureIndex(id ids.ID) int {
	return slices.IndexFunc(s.Lectures, func(l Lecture) bool { return l.ID == id })
}

func (s Section) quizIndex(id ids.ID) int {
	return slices.IndexFunc(s.Quizzes, func(q Quiz) bool { return q.ID == id })
}

func (s Section) nextRank() int {
	top := 0
	for it := range s.Content() {
		if it.Rank() > top {
			top = it.Rank()
		}
	}
	return top + 1
}

// compact renumbers persisted lectures and quizzes 1..n keeping their position order.
func (s Section) compact() Section {
	type ref struct {
		quiz bool
		idx  int
		pos  int
	}
	var refs []ref
	for i, l := range s.Lectures {
		if l.ID.IsPersisted() {
			refs = append(refs, ref{idx: i, pos: l.Position})
		}
	}
	for i, q := range s.Quizzes {
		if q.ID.IsPersisted() {
			refs = append(refs, ref{quiz: true, idx: i, pos: q.Position})
		}
	}
	slices.SortStableFunc(refs, func(a, b ref) int { return cmp.Compare(a.pos, b.pos) })

	s.Lectures = slices.Clone(s.Lectures)
	s.Quizzes = slices.Clone(s.Quizzes)
	for n, r := range refs {
		if r.quiz {
			s.Quizzes[r.idx].Position = n + 1
		} else {
			s.Lectures[r.idx].Position = n + 1
		}
	}
	return s
}

func compactSections(secs []Section) []Section {
	idx := make([]int, 0, len(secs))
	for i, s := range secs {
		if s.ID.IsPersisted() {
			idx = append(idx, i)
		}
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(secs[a].Position, secs[b].Position)
	})
	for n, i := range idx {
		secs[i].Position = n + 1
	}
	return secs
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
