package tree

import (
	"fmt"

	"github.com/p-n-ai/pai-studio/internal/authoring/ids"
)

// RestoreSectionOrder puts sections back in the order they had in prior and gives
// persisted sections their prior positions. Sections that appeared since keep their
// relative order after the restored ones. Persisted positions end up dense.
func (c Course) RestoreSectionOrder(prior Course) Course {
	present := make(map[ids.ID]bool, len(c.Sections))
	for _, s := range c.Sections {
		present[s.ID] = true
	}

	order := make([]ids.ID, 0, len(c.Sections))
	positions := make(map[ids.ID]int)
	seen := make(map[ids.ID]bool, len(c.Sections))
	for _, s := range prior.Sections {
		if !present[s.ID] {
			continue
		}
		order = append(order, s.ID)
		seen[s.ID] = true
		if s.ID.IsPersisted() {
			positions[s.ID] = s.Position
		}
	}
	for _, s := range c.Sections {
		if !seen[s.ID] {
			order = append(order, s.ID)
		}
	}

	out := c.ArrangeSections(order, positions)
	out.Sections = compactSections(out.Sections)
	return out
}

// RestoreContentOrder does for one section's merged content what
// RestoreSectionOrder does for sections.
func (c Course) RestoreContentOrder(sectionID ids.ID, prior Section) (Course, error) {
	s, ok := c.Section(sectionID)
	if !ok {
		return c, fmt.Errorf("section %s: %w", sectionID, ErrNotFound)
	}

	current := s.Merged()
	present := make(map[ids.ID]bool, len(current))
	for _, it := range current {
		present[it.ID()] = true
	}

	order := make([]ids.ID, 0, len(current))
	positions := make(map[ids.ID]int)
	seen := make(map[ids.ID]bool, len(current))
	for it := range prior.Content() {
		id := it.ID()
		if !present[id] {
			continue
		}
		order = append(order, id)
		seen[id] = true
		if id.IsPersisted() {
			positions[id] = it.Position()
		}
	}
	for _, it := range current {
		if !seen[it.ID()] {
			order = append(order, it.ID())
		}
	}

	out, err := c.ArrangeContent(sectionID, order, positions)
	if err != nil {
		return c, err
	}
	s, _ = out.Section(sectionID)
	return out.WithSection(s.compact())
}
