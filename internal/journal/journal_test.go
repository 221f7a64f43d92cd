package journal_test

import (
	"context"
	"testing"

	"github.com/p-n-ai/pai-studio/internal/journal"
)

func TestMemoryEventLogger_LogEvent(t *testing.T) {
	logger := journal.NewMemoryEventLogger()

	err := logger.LogEvent(journal.Event{
		CourseID:  "course-1",
		EntityID:  "persisted:17",
		EventType: journal.EventCreated,
		Data: map[string]any{
			"entity": "section",
		},
	})
	if err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].EventType != journal.EventCreated {
		t.Errorf("EventType = %q, want created", events[0].EventType)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestMemoryEventLogger_RequiresType(t *testing.T) {
	logger := journal.NewMemoryEventLogger()
	if err := logger.LogEvent(journal.Event{CourseID: "c"}); err == nil {
		t.Fatal("expected error for missing event type")
	}
}

func TestPostgresEventLogger_LogEvent_NilPool(t *testing.T) {
	logger := journal.NewPostgresEventLogger(nil)

	err := logger.LogEvent(journal.Event{
		CourseID:  "course-1",
		EventType: journal.EventUpdated,
	})
	if err == nil {
		t.Fatal("expected error for nil pool")
	}
}

func TestMemoryEventLogger_Recent(t *testing.T) {
	logger := journal.NewMemoryEventLogger()
	for _, e := range []journal.Event{
		{CourseID: "c1", EntityID: "a", EventType: journal.EventCreated},
		{CourseID: "c2", EntityID: "b", EventType: journal.EventCreated},
		{CourseID: "c1", EntityID: "c", EventType: journal.EventMoved},
		{CourseID: "c1", EntityID: "d", EventType: journal.EventDeleted},
	} {
		if err := logger.LogEvent(e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := logger.Recent(context.Background(), "c1", 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 || got[0].EntityID != "d" || got[1].EntityID != "c" {
		t.Errorf("Recent() = %+v, want d then c", got)
	}
}
