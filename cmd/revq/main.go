package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/revq/internal/config"
	"github.com/conorfennell/revq/internal/importer"
	"github.com/conorfennell/revq/internal/queue"
	"github.com/conorfennell/revq/internal/scheduler"
	"github.com/conorfennell/revq/internal/storage"
	"github.com/conorfennell/revq/internal/web"
)

const usage = `Usage: revq <command> [flags]

Commands:
  serve    Serve the JSON API
  import   Import items from manifests in a directory or git repository
  due      Print the ordered review queue
  answer   Record a review outcome

Run "revq <command> --help" for the flags of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "revq:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("missing command")
	}

	cmd, args := args[0], args[1:]
	fs := pflag.NewFlagSet("revq "+cmd, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)

	var runCmd func(ctx context.Context, app *app) error
	switch cmd {
	case "serve":
		runCmd = func(ctx context.Context, a *app) error { return a.serve(ctx) }
	case "import":
		owner := fs.String("owner", "", "Owner of the target set")
		set := fs.String("set", "", "Id of the target set")
		prune := fs.Bool("prune", false, "Delete items of the set that no manifest lists")
		runCmd = func(ctx context.Context, a *app) error {
			if fs.NArg() != 1 {
				return errors.New("import needs exactly one source directory or git URL")
			}
			return a.importSet(ctx, importer.Request{OwnerID: *owner, SetID: *set, Source: fs.Arg(0), Prune: *prune})
		}
	case "due":
		owner := fs.String("owner", "", "Owner whose queue to print")
		set := fs.String("set", "", "Restrict the queue to one set")
		asOf := fs.String("as-of", "", "Reference time in RFC 3339 (default now)")
		runCmd = func(ctx context.Context, a *app) error {
			at, err := parseTime(*asOf)
			if err != nil {
				return err
			}
			return a.due(ctx, *owner, *set, at)
		}
	case "answer":
		owner := fs.String("owner", "", "Owner of the item")
		item := fs.String("item", "", "Id of the answered item")
		remembered := fs.Bool("remembered", true, "Whether the answer was recalled")
		at := fs.String("at", "", "Answer time in RFC 3339 (default now)")
		runCmd = func(ctx context.Context, a *app) error {
			t, err := parseTime(*at)
			if err != nil {
				return err
			}
			return a.answer(ctx, *item, *owner, *remembered, t)
		}
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	return runCmd(ctx, a)
}

// app holds the wired dependencies shared by all commands.
type app struct {
	cfg    config.Config
	db     *storage.DB
	sched  *scheduler.Scheduler
	log    *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func newApp(cfg config.Config, stdout, stderr io.Writer) (*app, error) {
	logger := cfg.Log.NewLogger(stderr)
	slog.SetDefault(logger)

	db, err := storage.Open(cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Database opened successfully", "path", cfg.DB.Path)

	policy := cfg.Policy
	sched, err := scheduler.New(db, scheduler.Config{
		Params:      &policy,
		MaxAttempts: cfg.Scheduler.MaxAttempts,
		Logger:      logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{cfg: cfg, db: db, sched: sched, log: logger, stdout: stdout, stderr: stderr}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn("Failed to close database", "error", err)
	}
}

func (a *app) serve(ctx context.Context) error {
	handler := web.NewServer(a.db, a.sched, a.sched.Params().NewState, web.Options{
		RequestTimeout: a.cfg.HTTP.RequestTimeout,
		Logger:         a.log,
	})
	srv := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Info("Starting server", "addr", a.cfg.HTTP.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (a *app) importSet(ctx context.Context, req importer.Request) error {
	if req.OwnerID == "" || req.SetID == "" {
		return errors.New("import needs --owner and --set")
	}
	im := &importer.Importer{
		Store:    a.db,
		Params:   a.sched.Params(),
		ReposDir: a.cfg.Import.ReposDir,
		Progress: a.stderr,
	}
	report, err := im.Import(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Found %d items, %d new, %d existing, %d pruned, %d errors.\n",
		report.Parsed, report.Created, report.Existing, report.Pruned, len(report.Errors))
	if len(report.Errors) > 0 {
		fmt.Fprintln(a.stdout, "\nErrors:")
		for _, e := range report.Errors {
			fmt.Fprintf(a.stdout, "- %s\n", e)
		}
	}
	return nil
}

func (a *app) due(ctx context.Context, owner, set string, asOf time.Time) error {
	seq, err := a.sched.GetDueQueue(ctx, owner, set, asOf)
	if err != nil {
		return err
	}
	ids := queue.Collect(seq)
	for _, id := range ids {
		fmt.Fprintln(a.stdout, id)
	}
	a.log.Info("Due queue", "owner_id", owner, "set_id", set, "as_of", asOf, "count", len(ids))
	return nil
}

func (a *app) answer(ctx context.Context, item, owner string, remembered bool, at time.Time) error {
	st, err := a.sched.RecordAnswer(ctx, item, owner, remembered, at)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: next due %s (interval %d days, ease %.2f, lapses %d)\n",
		item, st.NextDueAt.Format(time.RFC3339), st.IntervalDays, st.EaseFactor, st.LapseCount)
	return nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.UTC(), nil
}
