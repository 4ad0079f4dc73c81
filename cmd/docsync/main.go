package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/compass-docsync/internal/adapters/export"
	"github.com/kirillkom/compass-docsync/internal/adapters/view"
	"github.com/kirillkom/compass-docsync/internal/bootstrap"
	"github.com/kirillkom/compass-docsync/internal/config"
	"github.com/kirillkom/compass-docsync/internal/core/domain"
	"github.com/kirillkom/compass-docsync/internal/observability/logging"
)

const usage = `usage: docsync <command> [flags]

commands:
  upload [-wait] FILE...   upload the first FILE; extra files are ignored
  watch [-filter TYPE] [-ocr] [-events]
                           poll the backend and print the document list on every refresh
  export [-filter TYPE] -o FILE
                           write the current document list to an XLSX workbook
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	envErr := config.LoadEnvironment()
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "docsync", cfg.LogLevel)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Error("config_load_failed", "error", envErr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1], os.Args[2:], cfg, logger)
	stop()

	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "docsync:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string, cfg config.Config, logger *slog.Logger) error {
	var runCommand func(context.Context, *bootstrap.App, []string) error
	switch command {
	case "upload":
		runCommand = runUpload
	case "watch":
		runCommand = runWatch
	case "export":
		runCommand = runExport
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}

	app, err := bootstrap.New(ctx, "docsync", cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	return runCommand(ctx, app, args)
}

func runUpload(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	wait := fs.Bool("wait", false, "wait for the upload to settle and print the document")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("upload: at least one FILE is required")
	}

	files := make([]domain.UploadFile, 0, fs.NArg())
	for _, path := range fs.Args() {
		file, closer, err := app.Storage.OpenUpload(ctx, path)
		if err != nil {
			return fmt.Errorf("upload: %w", err)
		}
		defer closer.Close()
		files = append(files, file)
	}

	state, err := app.Uploads.Accept(ctx, files)
	if err != nil {
		return errors.New(domain.UserMessage(err, err.Error()))
	}
	printUpload(os.Stdout, state)
	if !*wait {
		return nil
	}

	if err := waitIdle(ctx, app); err != nil {
		return err
	}
	if err := app.Collection.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh after upload: %w", err)
	}
	doc, ok := app.Collection.Find(state.DocumentID)
	if !ok {
		fmt.Fprintf(os.Stdout, "document %s is not listed yet\n", state.DocumentID)
		return nil
	}
	card := app.Formatter.RenderCard(doc, false)
	return view.WriteText(os.Stdout, view.ListView{State: view.StateReady, Cards: []view.Card{card}}, nil)
}

func waitIdle(ctx context.Context, app *bootstrap.App) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if app.Uploads.State().Phase == domain.PhaseIdle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func runWatch(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	filterFlag := fs.String("filter", "all", "classification filter: all, invoice, contract, meeting_minutes, email")
	showOCR := fs.Bool("ocr", false, "expand OCR previews")
	events := fs.Bool("events", false, "also print status change events from NATS")
	if err := fs.Parse(args); err != nil {
		return err
	}
	filter, err := domain.ParseFilter(*filterFlag)
	if err != nil {
		return err
	}

	render := func(state domain.CollectionState) {
		fmt.Fprintf(os.Stdout, "\n===== %s =====\n", time.Now().Format(time.TimeOnly))
		list := app.Formatter.RenderList(state, filter, *showOCR)
		upload := app.Uploads.State()
		if err := view.WriteText(os.Stdout, list, &upload); err != nil {
			app.Logger.Error("watch_render_failed", "error", err)
		}
	}
	app.Collection.Subscribe(render)

	if *events {
		if app.Queue == nil {
			return errors.New("watch: -events needs NATS_URL")
		}
		go func() {
			err := app.Queue.SubscribeStatusChanges(ctx, func(_ context.Context, change domain.StatusChange) error {
				from := string(change.From)
				if from == "" {
					from = "new"
				}
				fmt.Fprintf(os.Stdout, "* %s: %s -> %s\n", change.Filename, from, change.To)
				return nil
			})
			if err != nil {
				app.Logger.Error("status_subscription_failed", "error", err)
			}
		}()
	}

	app.Sync.Start(ctx)
	<-ctx.Done()
	app.Sync.Stop()
	return nil
}

func runExport(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	filterFlag := fs.String("filter", "all", "classification filter")
	out := fs.String("o", "documents.xlsx", "output file, relative to STORAGE_PATH")
	if err := fs.Parse(args); err != nil {
		return err
	}
	filter, err := domain.ParseFilter(*filterFlag)
	if err != nil {
		return err
	}

	if err := app.Collection.Refresh(ctx); err != nil {
		state := app.Collection.Snapshot()
		if !state.FromSnapshot {
			return err
		}
		app.Logger.Warn("export_using_snapshot", "refreshed_at", state.RefreshedAt, "error", err)
	}

	state := app.Collection.Snapshot()
	docs := domain.FilterByType(state.Documents, filter)

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, docs, domain.CountByType(state.Documents), app.Formatter); err != nil {
		return err
	}
	path, err := app.Storage.Save(ctx, *out, &buf)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(os.Stdout, "exported %d documents to %s\n", len(docs), path)
	return nil
}

func printUpload(w io.Writer, state domain.UploadState) {
	line := fmt.Sprintf("%s: %s", state.Filename, state.ProgressText)
	if state.Pages > 0 {
		line += fmt.Sprintf(" (%d pages)", state.Pages)
	}
	fmt.Fprintln(w, line)
}
