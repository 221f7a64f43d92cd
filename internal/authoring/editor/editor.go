// Package editor coordinates the edits made to one course. It applies each change to
// the in-memory tree, sends it to the course API, and folds the API's answer back
// into whatever the tree looks like by the time the answer arrives.
package editor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/p-n-ai/pai-studio/internal/authoring/ids"
	"github.com/p-n-ai/pai-studio/internal/authoring/reorder"
	"github.com/p-n-ai/pai-studio/internal/authoring/tree"
	"github.com/p-n-ai/pai-studio/internal/authoring/validate"
	"github.com/p-n-ai/pai-studio/internal/gateway"
	"github.com/p-n-ai/pai-studio/internal/journal"
	"github.com/p-n-ai/pai-studio/internal/snapshot"
)

var (
	// ErrBusy is returned when a write for the same entity is still in flight.
	ErrBusy = errors.New("entity is already being saved")
	// ErrReorderInFlight is returned when a drag starts before the previous one settled.
	ErrReorderInFlight = errors.New("a reorder is already in flight")
	// ErrNotFound is returned for ids that are not in the course.
	ErrNotFound = tree.ErrNotFound
	// ErrParentNotPersisted is returned when content is saved before its section.
	ErrParentNotPersisted = errors.New("parent section is not saved yet")
	// ErrQuizNotCreated is returned for question operations on a draft quiz.
	ErrQuizNotCreated = errors.New("quiz must be saved before it takes questions")
	// ErrConfirmationRequired is returned when a saved question is deleted unconfirmed.
	ErrConfirmationRequired = errors.New("deleting a saved question must be confirmed")
)

// Config holds dependencies for the editor.
type Config struct {
	CourseID  string
	Gateway   gateway.Gateway
	Allocator *ids.Allocator
	Validator *validate.Validator
	Journal   journal.EventLogger
	Snapshots snapshot.Store
}

// Editor owns the tree of one course. It is safe for concurrent use; API calls are
// made without holding the lock, so other edits go on while a call is outstanding.
type Editor struct {
	courseID  string
	gw        gateway.Gateway
	alloc     *ids.Allocator
	validator *validate.Validator
	journal   journal.EventLogger
	snapshots snapshot.Store

	mu         sync.Mutex
	course     tree.Course
	saving     map[ids.ID]struct{}
	reordering bool
}

// New creates an editor with an empty tree. Call Load to fetch the course.
func New(cfg Config) *Editor {
	alloc := cfg.Allocator
	if alloc == nil {
		alloc = ids.NewAllocator()
	}
	v := cfg.Validator
	if v == nil {
		v = validate.New()
	}
	j := cfg.Journal
	if j == nil {
		j = journal.NopEventLogger{}
	}
	snaps := cfg.Snapshots
	if snaps == nil {
		snaps = snapshot.NopStore{}
	}
	return &Editor{
		courseID:  cfg.CourseID,
		gw:        cfg.Gateway,
		alloc:     alloc,
		validator: v,
		journal:   j,
		snapshots: snaps,
		course:    tree.New(cfg.CourseID),
		saving:    make(map[ids.ID]struct{}),
	}
}

// CourseID returns the id of the edited course.
func (e *Editor) CourseID() string { return e.courseID }

// Course returns the current tree. The value is a snapshot; later edits do not
// show through it.
func (e *Editor) Course() tree.Course {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.course
}

// Saving reports whether a write for id is in flight.
func (e *Editor) Saving(id ids.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isSaving(id)
}

// Load fetches the course from the API. Local entities already in the editor are
// kept on top of the fetched tree.
func (e *Editor) Load(ctx context.Context) error {
	recs, err := e.gw.ListSections(ctx, e.courseID)
	if err != nil {
		return fmt.Errorf("loading course %s: %w", e.courseID, err)
	}
	fetched := courseFromRecords(e.courseID, recs)

	e.mu.Lock()
	e.course = tree.GraftLocal(fetched, e.course)
	snap := e.course
	e.mu.Unlock()

	slog.Info("course loaded", "course_id", e.courseID, "sections", len(fetched.Sections))
	e.saveSnapshot(ctx, snap)
	return nil
}

// Restore replaces the tree with the stored snapshot of the course, if there is one.
func (e *Editor) Restore(ctx context.Context) (bool, error) {
	c, ok, err := e.snapshots.Load(ctx, e.courseID)
	if err != nil {
		return false, fmt.Errorf("restoring course %s: %w", e.courseID, err)
	}
	if !ok {
		return false, nil
	}
	e.mu.Lock()
	e.course = c
	e.mu.Unlock()
	slog.Info("course restored from snapshot", "course_id", e.courseID, "sections", len(c.Sections))
	return true, nil
}

// AddSection appends a new Local section and returns its id.
func (e *Editor) AddSection() ids.ID {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, s := e.course.AddSection(e.alloc)
	e.course = c
	return s.ID
}

// EditSection changes section fields locally.
func (e *Editor) EditSection(id ids.ID, p tree.SectionPatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.course.UpdateSection(id, p)
	if err != nil {
		return err
	}
	e.course = c
	return nil
}

// SaveSection creates a Local section or updates a persisted one. It returns the id
// the section has once the call settled.
func (e *Editor) SaveSection(ctx context.Context, id ids.ID) (ids.ID, error) {
	e.mu.Lock()
	s, ok := e.course.Section(id)
	if !ok {
		e.mu.Unlock()
		return id, fmt.Errorf("section %s: %w", id, ErrNotFound)
	}
	if e.isSaving(id) {
		e.mu.Unlock()
		return id, fmt.Errorf("section %s: %w", id, ErrBusy)
	}
	in := validate.Section{Title: validate.Clean(s.Title), Description: strings.TrimSpace(s.Description)}
	if err := e.validator.Struct(in); err != nil {
		e.mu.Unlock()
		return id, err
	}
	payload := gateway.SectionPayload{Title: in.Title, Description: in.Description, Position: s.Position}
	if id.IsLocal() {
		payload.Position = e.course.PersistedSections() + 1
	}
	e.saving[id] = struct{}{}
	e.mu.Unlock()

	var (
		rec gateway.SectionRecord
		err error
	)
	if id.IsLocal() {
		rec, err = e.gw.CreateSection(ctx, e.courseID, payload)
		if err == nil && rec.ID == "" {
			err = gateway.ErrMissingID
		}
	} else {
		rec, err = e.gw.UpdateSection(ctx, e.courseID, id.Value(), payload)
	}

	e.mu.Lock()
	delete(e.saving, id)
	if err != nil {
		e.mu.Unlock()
		return id, e.failed("saving section", id, err)
	}
	out, event := id, journal.EventUpdated
	if id.IsLocal() {
		out, event = ids.FromServer(string(rec.ID)), journal.EventCreated
		e.reconcile(tree.Confirmation{Local: id, Persisted: out, Position: cmp.Or(rec.Position, payload.Position)})
	}
	snap := e.course
	e.mu.Unlock()

	slog.Debug("section saved", "course_id", e.courseID, "id", out, "position", payload.Position)
	e.record(event, out, map[string]any{"entity": "section", "position": payload.Position})
	e.saveSnapshot(ctx, snap)
	return out, nil
}

// DeleteSection removes a section. Local sections go without a call; persisted ones
// are removed only after the API confirmed the delete.
func (e *Editor) DeleteSection(ctx context.Context, id ids.ID) error {
	e.mu.Lock()
	if _, ok := e.course.Section(id); !ok {
		e.mu.Unlock()
		return fmt.Errorf("section %s: %w", id, ErrNotFound)
	}
	if e.isSaving(id) {
		e.mu.Unlock()
		return fmt.Errorf("section %s: %w", id, ErrBusy)
	}
	if id.IsLocal() {
		e.course, _ = e.course.RemoveSection(id)
		e.mu.Unlock()
		return nil
	}
	e.saving[id] = struct{}{}
	e.mu.Unlock()

	err := e.gw.DeleteSection(ctx, e.courseID, id.Value())

	e.mu.Lock()
	delete(e.saving, id)
	if err != nil {
		e.mu.Unlock()
		return e.failed("deleting section", id, err)
	}
	if c, err := e.course.RemoveSection(id); err == nil {
		e.course = c
	}
	snap := e.course
	e.mu.Unlock()

	e.record(journal.EventDeleted, id, map[string]any{"entity": "section"})
	e.saveSnapshot(ctx, snap)
	return nil
}

// AddContent appends a new Local lecture or quiz to a section and returns its id.
func (e *Editor) AddContent(sectionID ids.ID, kind tree.Kind) (ids.ID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, item, err := e.course.AddContent(sectionID, kind, e.alloc)
	if err != nil {
		return ids.ID{}, err
	}
	e.course = c
	return item.ID(), nil
}

// EditContent changes lecture or quiz fields locally.
func (e *Editor) EditContent(sectionID, contentID ids.ID, p tree.ContentPatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.course.UpdateContent(sectionID, contentID, p)
	if err != nil {
		return err
	}
	e.course = c
	return nil
}

// SaveContent creates or updates a lecture or quiz. Saving a draft quiz moves it to
// the created state. The section must be persisted.
func (e *Editor) SaveContent(ctx context.Context, sectionID, contentID ids.ID) (ids.ID, error) {
	e.mu.Lock()
	s, ok := e.course.Section(sectionID)
	if !ok {
		e.mu.Unlock()
		return contentID, fmt.Errorf("section %s: %w", sectionID, ErrNotFound)
	}
	item, ok := s.Item(contentID)
	if !ok {
		e.mu.Unlock()
		return contentID, fmt.Errorf("content %s: %w", contentID, ErrNotFound)
	}
	if !sectionID.IsPersisted() {
		e.mu.Unlock()
		return contentID, fmt.Errorf("saving %s %s: %w", item.Kind, contentID, ErrParentNotPersisted)
	}
	if e.isSaving(contentID) {
		e.mu.Unlock()
		return contentID, fmt.Errorf("%s %s: %w", item.Kind, contentID, ErrBusy)
	}
	position := item.Position()
	if contentID.IsLocal() {
		position = s.PersistedContent() + 1
	}

	var call func() (gateway.ResourceID, int, error)
	switch item.Kind {
	case tree.KindLecture:
		l := item.Lecture
		in := validate.Lecture{
			Title:    validate.Clean(l.Title),
			Content:  l.Content,
			Duration: l.Duration,
			VideoURL: strings.TrimSpace(l.VideoURL),
		}
		if err := e.validator.Struct(in); err != nil {
			e.mu.Unlock()
			return contentID, err
		}
		payload := gateway.LecturePayload{
			Title:    in.Title,
			Content:  in.Content,
			Duration: in.Duration,
			VideoURL: in.VideoURL,
			Position: position,
		}
		call = func() (gateway.ResourceID, int, error) {
			var (
				rec gateway.LectureRecord
				err error
			)
			if contentID.IsLocal() {
				rec, err = e.gw.CreateLecture(ctx, e.courseID, sectionID.Value(), payload)
			} else {
				rec, err = e.gw.UpdateLecture(ctx, e.courseID, sectionID.Value(), contentID.Value(), payload)
			}
			return rec.ID, rec.Position, err
		}
	case tree.KindQuiz:
		q := item.Quiz
		in := validate.Quiz{
			Title:       validate.Clean(q.Title),
			Description: strings.TrimSpace(q.Description),
			Points:      q.Points,
			TimeLimit:   q.TimeLimit,
		}
		if err := e.validator.Struct(in); err != nil {
			e.mu.Unlock()
			return contentID, err
		}
		payload := gateway.QuizPayload{
			Title:       in.Title,
			Description: in.Description,
			Position:    position,
			Points:      in.Points,
			TimeLimit:   in.TimeLimit,
		}
		call = func() (gateway.ResourceID, int, error) {
			var (
				rec gateway.QuizRecord
				err error
			)
			if contentID.IsLocal() {
				rec, err = e.gw.CreateQuiz(ctx, e.courseID, sectionID.Value(), payload)
			} else {
				rec, err = e.gw.UpdateQuiz(ctx, e.courseID, sectionID.Value(), contentID.Value(), payload)
			}
			return rec.ID, rec.Position, err
		}
	}
	e.saving[contentID] = struct{}{}
	e.mu.Unlock()

	rid, rpos, err := call()
	if err == nil && contentID.IsLocal() && rid == "" {
		err = gateway.ErrMissingID
	}

	e.mu.Lock()
	delete(e.saving, contentID)
	if err != nil {
		e.mu.Unlock()
		return contentID, e.failed("saving "+string(item.Kind), contentID, err)
	}
	out, event := contentID, journal.EventUpdated
	if contentID.IsLocal() {
		out, event = ids.FromServer(string(rid)), journal.EventCreated
		e.reconcile(tree.Confirmation{Local: contentID, Persisted: out, Position: cmp.Or(rpos, position)})
	}
	snap := e.course
	e.mu.Unlock()

	slog.Debug("content saved", "course_id", e.courseID, "kind", item.Kind, "id", out, "position", position)
	e.record(event, out, map[string]any{"entity": string(item.Kind), "section_id": sectionID.Value(), "position": position})
	e.saveSnapshot(ctx, snap)
	return out, nil
}

// DeleteContent removes a lecture or quiz, following the same rules as DeleteSection.
func (e *Editor) DeleteContent(ctx context.Context, sectionID, contentID ids.ID) error {
	e.mu.Lock()
	item, err := e.course.Content(sectionID, contentID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if e.isSaving(contentID) {
		e.mu.Unlock()
		return fmt.Errorf("%s %s: %w", item.Kind, contentID, ErrBusy)
	}
	if contentID.IsLocal() {
		e.course, _ = e.course.RemoveContent(sectionID, contentID)
		e.mu.Unlock()
		return nil
	}
	e.saving[contentID] = struct{}{}
	e.mu.Unlock()

	if item.Kind == tree.KindQuiz {
		err = e.gw.DeleteQuiz(ctx, e.courseID, sectionID.Value(), contentID.Value())
	} else {
		err = e.gw.DeleteLecture(ctx, e.courseID, sectionID.Value(), contentID.Value())
	}

	e.mu.Lock()
	delete(e.saving, contentID)
	if err != nil {
		e.mu.Unlock()
		return e.failed("deleting "+string(item.Kind), contentID, err)
	}
	if c, err := e.course.RemoveContent(sectionID, contentID); err == nil {
		e.course = c
	}
	snap := e.course
	e.mu.Unlock()

	e.record(journal.EventDeleted, contentID, map[string]any{"entity": string(item.Kind), "section_id": sectionID.Value()})
	e.saveSnapshot(ctx, snap)
	return nil
}

// ReorderSections drops section active onto the slot of section over. The new order
// shows immediately; when the dragged section is persisted its new position is sent,
// and the previous order comes back if that call fails.
func (e *Editor) ReorderSections(ctx context.Context, active, over ids.ID) error {
	e.mu.Lock()
	if e.reordering {
		e.mu.Unlock()
		return ErrReorderInFlight
	}
	secs := slices.Clone(e.course.Sections)
	slices.SortStableFunc(secs, func(a, b tree.Section) int { return cmp.Compare(a.Rank, b.Rank) })
	items := make([]reorder.Item, len(secs))
	for i, s := range secs {
		items[i] = reorder.Item{ID: s.ID, Position: s.Position}
	}
	res, err := reorder.Plan(items, active, over)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("reordering sections: %w", err)
	}
	if res.Write != nil && e.isSaving(res.Write.ID) {
		e.mu.Unlock()
		return fmt.Errorf("section %s: %w", res.Write.ID, ErrBusy)
	}
	// The section write carries title and description, so a dragged section with
	// invalid edits stays where it was.
	var payload gateway.SectionPayload
	if res.Write != nil {
		s, _ := e.course.Section(res.Write.ID)
		in := validate.Section{Title: validate.Clean(s.Title), Description: strings.TrimSpace(s.Description)}
		if err := e.validator.Struct(in); err != nil {
			e.mu.Unlock()
			return err
		}
		payload = gateway.SectionPayload{Title: in.Title, Description: in.Description, Position: res.Write.Position}
	}
	prior := e.course
	e.course = e.course.ArrangeSections(res.IDs(), res.Positions)
	if res.Write == nil {
		e.mu.Unlock()
		return nil
	}
	w := *res.Write
	e.reordering = true
	e.saving[w.ID] = struct{}{}
	e.mu.Unlock()

	_, err = e.gw.UpdateSection(ctx, e.courseID, w.ID.Value(), payload)

	e.mu.Lock()
	e.reordering = false
	delete(e.saving, w.ID)
	if err != nil {
		e.course = e.course.RestoreSectionOrder(prior)
		e.mu.Unlock()
		return e.reverted("section", w, err)
	}
	snap := e.course
	e.mu.Unlock()

	e.record(journal.EventMoved, w.ID, map[string]any{"entity": "section", "position": w.Position})
	e.saveSnapshot(ctx, snap)
	return nil
}

// ReorderContent is ReorderSections for the merged lectures and quizzes of a section.
// Only the dragged item's position is sent.
func (e *Editor) ReorderContent(ctx context.Context, sectionID, active, over ids.ID) error {
	e.mu.Lock()
	if e.reordering {
		e.mu.Unlock()
		return ErrReorderInFlight
	}
	s, ok := e.course.Section(sectionID)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("section %s: %w", sectionID, ErrNotFound)
	}
	merged := s.Merged()
	items := make([]reorder.Item, len(merged))
	for i, it := range merged {
		items[i] = reorder.Item{ID: it.ID(), Position: it.Position()}
	}
	res, err := reorder.Plan(items, active, over)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("reordering section %s: %w", sectionID, err)
	}
	if res.Write != nil && e.isSaving(res.Write.ID) {
		e.mu.Unlock()
		return fmt.Errorf("content %s: %w", res.Write.ID, ErrBusy)
	}
	c, err := e.course.ArrangeContent(sectionID, res.IDs(), res.Positions)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.course = c
	if res.Write == nil {
		e.mu.Unlock()
		return nil
	}
	w := *res.Write
	moved, _ := s.Item(w.ID)
	e.reordering = true
	e.saving[w.ID] = struct{}{}
	e.mu.Unlock()

	if moved.Kind == tree.KindQuiz {
		_, err = e.gw.MoveQuiz(ctx, e.courseID, sectionID.Value(), w.ID.Value(), w.Position)
	} else {
		_, err = e.gw.MoveLecture(ctx, e.courseID, sectionID.Value(), w.ID.Value(), w.Position)
	}

	e.mu.Lock()
	e.reordering = false
	delete(e.saving, w.ID)
	if err != nil {
		if c, rerr := e.course.RestoreContentOrder(sectionID, s); rerr == nil {
			e.course = c
		}
		e.mu.Unlock()
		return e.reverted(string(moved.Kind), w, err)
	}
	snap := e.course
	e.mu.Unlock()

	e.record(journal.EventMoved, w.ID, map[string]any{
		"entity":     string(moved.Kind),
		"section_id": sectionID.Value(),
		"position":   w.Position,
	})
	e.saveSnapshot(ctx, snap)
	return nil
}

// isSaving must be called with e.mu held.
func (e *Editor) isSaving(id ids.ID) bool {
	_, ok := e.saving[id]
	return ok
}

// reconcile must be called with e.mu held. A confirmation for an entity that is no
// longer in the tree is dropped.
func (e *Editor) reconcile(conf tree.Confirmation) bool {
	c, ok := e.course.Reconcile(conf)
	if !ok {
		slog.Debug("stale confirmation ignored", "course_id", e.courseID, "local", conf.Local, "persisted", conf.Persisted)
		return false
	}
	e.course = c
	return true
}

func (e *Editor) failed(op string, id ids.ID, err error) error {
	slog.Warn("course api write failed", "course_id", e.courseID, "op", op, "id", id, "error", err)
	e.record(journal.EventWriteFailed, id, map[string]any{"op": op, "error": err.Error()})
	return fmt.Errorf("%s %s: %w", op, id, err)
}

func (e *Editor) reverted(entity string, w reorder.Write, err error) error {
	slog.Warn("reorder reverted", "course_id", e.courseID, "entity", entity, "id", w.ID, "position", w.Position, "error", err)
	e.record(journal.EventReorderReverted, w.ID, map[string]any{"entity": entity, "position": w.Position, "error": err.Error()})
	return fmt.Errorf("moving %s %s to %d: %w", entity, w.ID, w.Position, err)
}

func (e *Editor) record(eventType string, id ids.ID, data map[string]any) {
	err := e.journal.LogEvent(journal.Event{
		CourseID:  e.courseID,
		EntityID:  id.String(),
		EventType: eventType,
		Data:      data,
	})
	if err != nil {
		slog.Warn("journal write failed", "course_id", e.courseID, "type", eventType, "error", err)
	}
}

func (e *Editor) saveSnapshot(ctx context.Context, c tree.Course) {
	if err := e.snapshots.Save(ctx, c); err != nil {
		slog.Warn("snapshot save failed", "course_id", e.courseID, "error", err)
	}
}

// courseFromRecords builds a tree from the API's nested section listing.
func courseFromRecords(courseID string, recs []gateway.SectionRecord) tree.Course {
	recs = slices.Clone(recs)
	slices.SortStableFunc(recs, func(a, b gateway.SectionRecord) int { return cmp.Compare(a.Position, b.Position) })

	c := tree.New(courseID)
	for i, r := range recs {
		s := tree.Section{
			ID:          ids.FromServer(string(r.ID)),
			Title:       r.Title,
			Description: r.Description,
			Position:    r.Position,
			Rank:        i + 1,
			Lectures:    make([]tree.Lecture, 0, len(r.Lectures)),
			Quizzes:     make([]tree.Quiz, 0, len(r.Quizzes)),
		}
		for _, l := range r.Lectures {
			s.Lectures = append(s.Lectures, tree.Lecture{
				ID:       ids.FromServer(string(l.ID)),
				Position: l.Position,
				Title:    l.Title,
				Content:  l.Content,
				Duration: l.Duration,
				VideoURL: l.VideoURL,
			})
		}
		for _, q := range r.Quizzes {
			s.Quizzes = append(s.Quizzes, tree.Quiz{
				ID:          ids.FromServer(string(q.ID)),
				Position:    q.Position,
				Title:       q.Title,
				Description: q.Description,
				Points:      q.Points,
				TimeLimit:   q.TimeLimit,
				Questions:   []tree.Question{},
			})
		}
		c.Sections = append(c.Sections, rankByPosition(s))
	}
	return c
}

// rankByPosition gives lectures and quizzes ranks that follow their positions.
// Lectures come first on equal positions.
func rankByPosition(s tree.Section) tree.Section {
	type slot struct {
		quiz bool
		idx  int
		pos  int
	}
	slots := make([]slot, 0, len(s.Lectures)+len(s.Quizzes))
	for i, l := range s.Lectures {
		slots = append(slots, slot{idx: i, pos: l.Position})
	}
	for i, q := range s.Quizzes {
		slots = append(slots, slot{quiz: true, idx: i, pos: q.Position})
	}
	slices.SortStableFunc(slots, func(a, b slot) int { return cmp.Compare(a.pos, b.pos) })
	for r, sl := range slots {
		if sl.quiz {
			s.Quizzes[sl.idx].Rank = r + 1
		} else {
			s.Lectures[sl.idx].Rank = r + 1
		}
	}
	return s
}
