package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-studio/internal/authoring/ids"
	"github.com/p-n-ai/pai-studio/internal/authoring/tree"
	"github.com/p-n-ai/pai-studio/internal/gateway"
	"github.com/p-n-ai/pai-studio/internal/journal"
	"github.com/p-n-ai/pai-studio/internal/platform/config"
	"github.com/p-n-ai/pai-studio/internal/questionbank"
	"github.com/p-n-ai/pai-studio/internal/snapshot"
)

func testDeps() (deps, *gateway.MockGateway, *snapshot.MemoryStore) {
	gw := gateway.NewMockGateway()
	gw.Sections = []gateway.SectionRecord{{
		ID:       "10",
		Title:    "Intro",
		Position: 1,
		Lectures: []gateway.LectureRecord{{ID: "20", Title: "Welcome", Position: 1, Duration: 5, VideoURL: "https://v.example.com/1"}},
		Quizzes:  []gateway.QuizRecord{{ID: "30", Title: "Check", Position: 2}},
	}}
	mem := journal.NewMemoryEventLogger()
	snaps := snapshot.NewMemoryStore()
	return deps{gateway: gw, journal: mem, history: mem, snapshots: snaps}, gw, snaps
}

func TestRun_Usage(t *testing.T) {
	d, _, _ := testDeps()
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no args", nil, "usage:"},
		{"no course", []string{"tree"}, "usage:"},
		{"no command", []string{"-course", "c1"}, "usage:"},
		{"unknown command", []string{"-course", "c1", "publish"}, `unknown command "publish"`},
		{"bad flag", []string{"-nope"}, "usage:"},
		{"outline without file", []string{"-course", "c1", "apply-outline"}, "one outline file"},
		{"import without quiz", []string{"-course", "c1", "import-questions", "-section", "10", "x.xlsx"}, "needs -section, -quiz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), d, tt.args, &out)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("run() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestRun_Tree(t *testing.T) {
	d, gw, _ := testDeps()
	gw.Questions["30"] = []gateway.QuestionRecord{
		{ID: "31", Question: "1+1?", CorrectAnswer: "2", Answers: []string{"1", "2"}},
		{ID: "32", Question: "2+2?", CorrectAnswer: "4", Answers: []string{"3", "4"}},
	}
	var out bytes.Buffer
	if err := run(context.Background(), d, []string{"-course", "c1", "tree"}, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	want := "[1 #10] Intro\n" +
		"  [1 #20] lecture Welcome\n" +
		"  [2 #30] quiz Check (2 questions)\n"
	if out.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", out.String(), want)
	}
}

func TestRun_ApplyOutlineThenHistory(t *testing.T) {
	d, gw, snaps := testDeps()
	path := filepath.Join(t.TempDir(), "outline.yaml")
	doc := `sections:
  - title: Next steps
    items:
      - lecture: {title: Modules, duration: 8, video_url: "https://v.example.com/2"}
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := run(context.Background(), d, []string{"-course", "c1", "apply-outline", path}, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := out.String(); got != "created 1 sections, 1 lectures, 0 quizzes, 0 questions\n" {
		t.Errorf("output = %q", got)
	}

	// The new section goes after the existing one.
	var created []gateway.SectionPayload
	for _, c := range gw.Calls() {
		if c.Method == "POST" && c.Path == "/courses/c1/sections" {
			created = append(created, c.Body.(gateway.SectionPayload))
		}
	}
	if len(created) != 1 || created[0].Position != 2 {
		t.Errorf("created sections = %+v, want one at position 2", created)
	}

	c, ok, err := snaps.Load(context.Background(), "c1")
	if err != nil || !ok {
		t.Fatalf("snapshot Load() = %v, %v", ok, err)
	}
	if len(c.Sections) != 2 {
		t.Errorf("snapshot sections = %d, want 2", len(c.Sections))
	}

	out.Reset()
	if err := run(context.Background(), d, []string{"-course", "c1", "history", "-limit", "5"}, &out); err != nil {
		t.Fatalf("history error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("history lines = %q, want 2", lines)
	}
	for _, l := range lines {
		if !strings.Contains(l, journal.EventCreated) {
			t.Errorf("history line %q should be a created event", l)
		}
	}
}

func TestRun_ImportThenExportQuestions(t *testing.T) {
	d, gw, _ := testDeps()
	dir := t.TempDir()

	alloc := ids.NewAllocator()
	bank := tree.Quiz{Questions: []tree.Question{
		tree.QuestionFromWire(alloc, alloc.New(ids.EntityQuestion), "1+1?", "2", []string{"1", "2"}),
		tree.QuestionFromWire(alloc, alloc.New(ids.EntityQuestion), "2*3?", "6", []string{"5", "6", "9"}),
	}}
	in := filepath.Join(dir, "bank.xlsx")
	f, err := os.Create(in)
	if err != nil {
		t.Fatal(err)
	}
	if err := questionbank.Write(f, bank); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	f.Close()

	var out bytes.Buffer
	args := []string{"-course", "c1", "import-questions", "-section", "10", "-quiz", "30", in}
	if err := run(context.Background(), d, args, &out); err != nil {
		t.Fatalf("import error = %v", err)
	}
	if got := out.String(); got != "added 2 questions to quiz 30\n" {
		t.Errorf("output = %q", got)
	}

	var batch struct {
		Questions []gateway.QuestionPayload `json:"questions"`
	}
	calls := gw.Calls()
	last := calls[len(calls)-1]
	raw, _ := json.Marshal(last.Body)
	if err := json.Unmarshal(raw, &batch); err != nil {
		t.Fatal(err)
	}
	if last.Path != "/courses/c1/sections/10/quizzes/30/questions" || len(batch.Questions) != 2 {
		t.Errorf("last call = %s %s", last.Method, last.Path)
	}
	if batch.Questions[1].CorrectAnswer != "6" {
		t.Errorf("second question = %+v", batch.Questions[1])
	}

	exported := filepath.Join(dir, "out.xlsx")
	out.Reset()
	args = []string{"-course", "c1", "export-questions", "-section", "10", "-quiz", "30", exported}
	if err := run(context.Background(), d, args, &out); err != nil {
		t.Fatalf("export error = %v", err)
	}
	r, err := os.Open(exported)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	got, err := questionbank.Read(r)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != 2 || got[0].Question != "1+1?" {
		t.Errorf("exported = %+v", got)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("want exactly one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "shown" || rec["k"] != "v" {
		t.Errorf("record = %v", rec)
	}

	buf.Reset()
	newLogger(config.LogConfig{Level: "bogus", Format: "text"}, &buf).Info("fallback")
	if !strings.Contains(buf.String(), "msg=fallback") {
		t.Errorf("text output = %q", buf.String())
	}
}
