package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/p-n-ai/pai-studio/internal/authoring/editor"
	"github.com/p-n-ai/pai-studio/internal/authoring/ids"
	"github.com/p-n-ai/pai-studio/internal/authoring/tree"
	"github.com/p-n-ai/pai-studio/internal/gateway"
	"github.com/p-n-ai/pai-studio/internal/journal"
	"github.com/p-n-ai/pai-studio/internal/outline"
	"github.com/p-n-ai/pai-studio/internal/platform/cache"
	"github.com/p-n-ai/pai-studio/internal/platform/config"
	"github.com/p-n-ai/pai-studio/internal/platform/database"
	"github.com/p-n-ai/pai-studio/internal/questionbank"
	"github.com/p-n-ai/pai-studio/internal/snapshot"
)

const usage = `usage: studio -course ID <command> [flags] [args]

commands:
  tree                                     print the course tree
  apply-outline FILE                       create the sections, lectures and quizzes of a YAML outline
  import-questions -section S -quiz Q FILE add the questions of an xlsx sheet to a quiz
  export-questions -section S -quiz Q FILE write the questions of a quiz to an xlsx sheet
  history [-limit N]                       show recent authoring events
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	d, cleanup, err := connect(ctx, cfg)
	if err != nil {
		stop()
		slog.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	err = run(ctx, d, os.Args[1:], os.Stdout)
	cleanup()
	stop()
	if err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// deps are the backends a command works against.
type deps struct {
	gateway   gateway.Gateway
	journal   journal.EventLogger
	history   journal.History
	snapshots snapshot.Store
}

// connect builds deps from config. The journal and snapshot backends fall back to
// memory when no database or cache is configured.
func connect(ctx context.Context, cfg *config.Config) (deps, func(), error) {
	d := deps{
		gateway: gateway.NewClient(cfg.API.BaseURL,
			gateway.WithToken(cfg.API.Token),
			gateway.WithTimeout(cfg.API.Timeout),
		),
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.HasJournal() {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return deps{}, func() {}, err
		}
		closers = append(closers, db.Close)
		if err := db.EnsureSchema(ctx); err != nil {
			cleanup()
			return deps{}, func() {}, err
		}
		pg := journal.NewPostgresEventLogger(db.Pool)
		d.journal, d.history = pg, pg
	} else {
		mem := journal.NewMemoryEventLogger()
		d.journal, d.history = mem, mem
	}

	if cfg.HasCache() {
		c, err := cache.New(ctx, cfg.Cache)
		if err != nil {
			cleanup()
			return deps{}, func() {}, err
		}
		closers = append(closers, func() { _ = c.Close() })
		d.snapshots = snapshot.NewRedisStore(c)
	} else {
		d.snapshots = snapshot.NewMemoryStore()
	}
	return d, cleanup, nil
}

func newLogger(c config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: c.AddSource}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// run parses args and executes one command against d.
func run(ctx context.Context, d deps, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("studio", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	courseID := fs.String("course", "", "course id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w\n%s", err, usage)
	}
	if *courseID == "" || fs.NArg() == 0 {
		return errors.New(usage)
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	ed := editor.New(editor.Config{
		CourseID:  *courseID,
		Gateway:   d.gateway,
		Journal:   d.journal,
		Snapshots: d.snapshots,
	})

	switch cmd {
	case "tree":
		if err := load(ctx, ed); err != nil {
			return err
		}
		if err := loadQuestions(ctx, ed); err != nil {
			return err
		}
		printTree(stdout, ed.Course())
		return nil
	case "apply-outline":
		return applyOutline(ctx, ed, rest, stdout)
	case "import-questions":
		return importQuestions(ctx, ed, rest, stdout)
	case "export-questions":
		return exportQuestions(ctx, ed, rest, stdout)
	case "history":
		return history(ctx, d.history, *courseID, rest, stdout)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

// load restores the last snapshot so unsaved drafts survive, then refreshes from the API.
func load(ctx context.Context, ed *editor.Editor) error {
	if _, err := ed.Restore(ctx); err != nil {
		slog.Warn("snapshot restore failed", "course_id", ed.CourseID(), "error", err)
	}
	return ed.Load(ctx)
}

// loadQuestions fetches the questions of every saved quiz; Load leaves them out.
func loadQuestions(ctx context.Context, ed *editor.Editor) error {
	for _, s := range ed.Course().Sections {
		if !s.ID.IsPersisted() {
			continue
		}
		for _, q := range s.Quizzes {
			if q.State() != tree.QuizCreated {
				continue
			}
			if err := ed.LoadQuestions(ctx, s.ID, q.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyOutline(ctx context.Context, ed *editor.Editor, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("apply-outline takes one outline file")
	}
	o, err := outline.Load(args[0])
	if err != nil {
		return err
	}
	if err := load(ctx, ed); err != nil {
		return err
	}
	r, err := outline.Apply(ctx, ed, o)
	fmt.Fprintf(stdout, "created %d sections, %d lectures, %d quizzes, %d questions\n",
		r.Sections, r.Lectures, r.Quizzes, r.Questions)
	return err
}

type quizFlags struct {
	section, quiz string
	file          string
}

func parseQuizFlags(name string, args []string) (quizFlags, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var q quizFlags
	fs.StringVar(&q.section, "section", "", "section id")
	fs.StringVar(&q.quiz, "quiz", "", "quiz id")
	if err := fs.Parse(args); err != nil {
		return q, fmt.Errorf("%s: %w", name, err)
	}
	if q.section == "" || q.quiz == "" || fs.NArg() != 1 {
		return q, fmt.Errorf("%s needs -section, -quiz and one file", name)
	}
	q.file = fs.Arg(0)
	return q, nil
}

func importQuestions(ctx context.Context, ed *editor.Editor, args []string, stdout io.Writer) error {
	qf, err := parseQuizFlags("import-questions", args)
	if err != nil {
		return err
	}
	f, err := os.Open(qf.file)
	if err != nil {
		return fmt.Errorf("opening question bank: %w", err)
	}
	defer f.Close()
	in, err := questionbank.Read(f)
	if err != nil {
		return fmt.Errorf("%s: %w", qf.file, err)
	}

	if err := load(ctx, ed); err != nil {
		return err
	}
	sid, qid := ids.FromServer(qf.section), ids.FromServer(qf.quiz)
	if _, err := ed.ImportQuestions(sid, qid, in); err != nil {
		return err
	}
	saved, err := ed.SubmitQuestions(ctx, sid, qid)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "added %d questions to quiz %s\n", len(saved), qf.quiz)
	return nil
}

func exportQuestions(ctx context.Context, ed *editor.Editor, args []string, stdout io.Writer) error {
	qf, err := parseQuizFlags("export-questions", args)
	if err != nil {
		return err
	}
	if err := load(ctx, ed); err != nil {
		return err
	}
	sid, qid := ids.FromServer(qf.section), ids.FromServer(qf.quiz)
	if err := ed.LoadQuestions(ctx, sid, qid); err != nil {
		return err
	}
	q, err := ed.Quiz(sid, qid)
	if err != nil {
		return err
	}

	f, err := os.Create(qf.file)
	if err != nil {
		return fmt.Errorf("creating %s: %w", qf.file, err)
	}
	if err := questionbank.Write(f, q); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d questions to %s\n", len(q.Questions), qf.file)
	return nil
}

func history(ctx context.Context, h journal.History, courseID string, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("limit", 20, "number of events")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	events, err := h.Recent(ctx, courseID, *limit)
	if err != nil {
		return err
	}
	for _, e := range events {
		fmt.Fprintf(stdout, "%s  %-18s %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.EventType, e.EntityID)
	}
	return nil
}

func printTree(w io.Writer, c tree.Course) {
	for _, s := range c.Sections {
		fmt.Fprintf(w, "%s %s\n", label(s.ID, s.Position), s.Title)
		for it := range s.Content() {
			line := fmt.Sprintf("  %s %s %s", label(it.ID(), it.Position()), it.Kind, it.Title())
			if it.Kind == tree.KindQuiz {
				line += fmt.Sprintf(" (%d questions)", len(it.Quiz.Questions))
			}
			fmt.Fprintln(w, strings.TrimRight(line, " "))
		}
	}
}

func label(id ids.ID, position int) string {
	if id.IsLocal() {
		return "[draft]"
	}
	return fmt.Sprintf("[%d #%s]", position, id.Value())
}
