package tree

import (
	"cmp"
	"slices"

	"github.com/p-n-ai/pai-studio/internal/authoring/ids"
)

// Confirmation is the server's answer to a create call for a Local entity.
type Confirmation struct {
	Local     ids.ID
	Persisted ids.ID
	// Position is the server-assigned position; zero leaves the local value.
	Position int
}

// Reconcile swaps a Local id for its Persisted id wherever the entity currently
// lives. Index, sibling positions and content fields are left as they are. The
// second return is false when the entity is gone, which callers treat as a no-op.
//
// A refetch can land the persisted copy next to the draft before the confirmation
// arrives. In that case the draft's fields are folded into the persisted copy and
// the draft is dropped, so an id never appears twice.
func (c Course) Reconcile(conf Confirmation) (Course, bool) {
	if !conf.Local.IsLocal() || !conf.Persisted.IsPersisted() {
		return c, false
	}

	if i := c.sectionIndex(conf.Local); i >= 0 {
		out := c
		out.Sections = slices.Clone(c.Sections)
		if j := c.sectionIndex(conf.Persisted); j >= 0 {
			out.Sections[j] = mergeSection(out.Sections[j], out.Sections[i], conf.Position)
			out.Sections = slices.Delete(out.Sections, i, i+1)
			return out, true
		}
		out.Sections[i].ID = conf.Persisted
		if conf.Position > 0 {
			out.Sections[i].Position = conf.Position
		}
		return out, true
	}

	for si, s := range c.Sections {
		if i := s.lectureIndex(conf.Local); i >= 0 {
			s.Lectures = slices.Clone(s.Lectures)
			if j := s.lectureIndex(conf.Persisted); j >= 0 {
				l := s.Lectures[i]
				l.ID, l.Rank, l.Position = conf.Persisted, s.Lectures[j].Rank, cmp.Or(conf.Position, s.Lectures[j].Position)
				s.Lectures[j] = l
				s.Lectures = slices.Delete(s.Lectures, i, i+1)
				return c.replaceAt(si, s), true
			}
			s.Lectures[i].ID = conf.Persisted
			if conf.Position > 0 {
				s.Lectures[i].Position = conf.Position
			}
			return c.replaceAt(si, s), true
		}
		if i := s.quizIndex(conf.Local); i >= 0 {
			s.Quizzes = slices.Clone(s.Quizzes)
			if j := s.quizIndex(conf.Persisted); j >= 0 {
				s.Quizzes[j] = mergeQuiz(s.Quizzes[j], s.Quizzes[i], conf.Position)
				s.Quizzes = slices.Delete(s.Quizzes, i, i+1)
				return c.replaceAt(si, s), true
			}
			s.Quizzes[i].ID = conf.Persisted
			if conf.Position > 0 {
				s.Quizzes[i].Position = conf.Position
			}
			return c.replaceAt(si, s), true
		}
		for qi, q := range s.Quizzes {
			i := slices.IndexFunc(q.Questions, func(x Question) bool { return x.ID == conf.Local })
			if i < 0 {
				continue
			}
			q.Questions = slices.Clone(q.Questions)
			if j := slices.IndexFunc(q.Questions, func(x Question) bool { return x.ID == conf.Persisted }); j >= 0 {
				q.Questions[j].Text, q.Questions[j].Answers = q.Questions[i].Text, q.Questions[i].Answers
				q.Questions = slices.Delete(q.Questions, i, i+1)
			} else {
				q.Questions[i].ID = conf.Persisted
			}
			s.Quizzes = slices.Clone(s.Quizzes)
			s.Quizzes[qi] = q
			return c.replaceAt(si, s), true
		}
	}
	return c, false
}

// mergeSection keeps dst's id and slot, takes the draft's fields and appends the
// draft's content, which is all Local.
func mergeSection(dst, draft Section, position int) Section {
	dst.Title, dst.Description = draft.Title, draft.Description
	dst.Position = cmp.Or(position, dst.Position)
	dst.Lectures = slices.Clone(dst.Lectures)
	dst.Quizzes = slices.Clone(dst.Quizzes)
	for it := range draft.Content() {
		if it.Kind == KindQuiz {
			q := *it.Quiz
			q.Rank = dst.nextRank()
			dst.Quizzes = append(dst.Quizzes, q)
		} else {
			l := *it.Lecture
			l.Rank = dst.nextRank()
			dst.Lectures = append(dst.Lectures, l)
		}
	}
	return dst
}

func mergeQuiz(dst, draft Quiz, position int) Quiz {
	out := draft
	out.ID, out.Rank = dst.ID, dst.Rank
	out.Position = cmp.Or(position, dst.Position)
	out.Questions = slices.Clone(dst.Questions)
	for _, q := range draft.Questions {
		if _, ok := dst.Question(q.ID); !ok {
			out.Questions = append(out.Questions, q)
		}
	}
	return out
}

// GraftLocal returns base with every Local entity of current re-attached, so that
// a refetch never loses unsaved drafts. Local entities
// whose persisted parent no longer exists in base are dropped.
func GraftLocal(base, current Course) Course {
	out := base
	out.Sections = slices.Clone(base.Sections)

	for _, cur := range current.Sections {
		if cur.ID.IsLocal() {
			if out.sectionIndex(cur.ID) < 0 {
				cur.Rank = out.nextSectionRank()
				out.Sections = append(out.Sections, cur)
			}
			continue
		}

		i := out.sectionIndex(cur.ID)
		if i < 0 {
			continue
		}
		s := out.Sections[i]
		s.Lectures = slices.Clone(s.Lectures)
		s.Quizzes = slices.Clone(s.Quizzes)

		for _, it := range cur.Merged() {
			switch it.Kind {
			case KindLecture:
				if it.Lecture.ID.IsLocal() && s.lectureIndex(it.Lecture.ID) < 0 {
					l := *it.Lecture
					l.Rank = s.nextRank()
					s.Lectures = append(s.Lectures, l)
				}
			case KindQuiz:
				q := *it.Quiz
				if q.ID.IsLocal() {
					if s.quizIndex(q.ID) < 0 {
						q.Rank = s.nextRank()
						s.Quizzes = append(s.Quizzes, q)
					}
					continue
				}
				qi := s.quizIndex(q.ID)
				if qi < 0 {
					continue
				}
				bq := s.Quizzes[qi]
				bq.Questions = slices.Clone(bq.Questions)
				for _, qq := range q.LocalDrafts() {
					if _, ok := bq.Question(qq.ID); !ok {
						bq.Questions = append(bq.Questions, qq)
					}
				}
				s.Quizzes[qi] = bq
			}
		}
		out.Sections[i] = s
	}
	return out
}

func (c Course) replaceAt(i int, s Section) Course {
	out := c
	out.Sections = slices.Clone(c.Sections)
	out.Sections[i] = s
	return out
}
