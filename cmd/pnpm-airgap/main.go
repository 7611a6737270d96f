package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ReemX/pnpm-airgap/internal/config"
	"github.com/ReemX/pnpm-airgap/internal/engine"
	"github.com/ReemX/pnpm-airgap/internal/existence"
	"github.com/ReemX/pnpm-airgap/internal/history"
	"github.com/ReemX/pnpm-airgap/internal/lock"
	"github.com/ReemX/pnpm-airgap/internal/log"
	"github.com/ReemX/pnpm-airgap/internal/publish"
	"github.com/ReemX/pnpm-airgap/internal/reconcile"
	"github.com/ReemX/pnpm-airgap/internal/registry"
	"github.com/ReemX/pnpm-airgap/internal/report"
	"github.com/ReemX/pnpm-airgap/internal/snapshot"
)

const version = "0.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "publish":
		os.Exit(runPublish(args))
	case "precheck":
		os.Exit(runPrecheck(args))
	case "snapshot":
		os.Exit(runSnapshotNoun(args))
	case "history":
		os.Exit(runHistoryNoun(args))
	case "version":
		fmt.Printf("pnpm-airgap version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`pnpm-airgap - Transfer staged npm package tarballs into an air-gapped registry

Usage:
  pnpm-airgap <command> [flags]

Commands:
  publish           Publish the staged batch to the configured registry
  precheck          Check which staged artifacts the registry already has
  snapshot export   Capture the registry's current contents to a file
  snapshot diff     Compare a requirements list against a snapshot
  history list      Show recent publish runs
  history show <id> Show one run's full report

General:
  version           Show version information
  help              Show this help message

Use 'pnpm-airgap <command> --help' for command-specific flags.
`)
}

// wiring bundles the collaborators every registry-facing command needs.
type wiring struct {
	cfg    *config.Config
	client *registry.Client
	oracle *existence.Oracle
}

func wire(configPath string) (*wiring, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log.Setup(cfg.Service.LogLevel)

	var tokens *registry.TokenProvider
	if cfg.Registry.Token != "" {
		tokens = registry.NewTokenProvider(registry.StaticToken(cfg.Registry.Token), cfg.Registry.TokenTTL)
	}
	client := registry.NewClient(tokens)
	oracle := existence.NewOracle(client, cfg.Check.CacheSize, cfg.Check.CacheEvictBlock)

	return &wiring{cfg: cfg, client: client, oracle: oracle}, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM so an
// interrupted run still reconciles and reports what it finished.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runPublish(args []string) int {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	dryRun := fs.Bool("dry-run", false, "Resolve tags and report without uploading")
	snapshotPath := fs.String("snapshot", "", "Skip pre-checks for artifacts this snapshot lists")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	w, err := wire(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	logger := log.WithComponent("main")
	logger.Info("pnpm-airgap starting", "version", version, "config", *configPath)

	runLock, err := lock.AcquireRunLock(w.cfg.Staging.Dir)
	if err != nil {
		logger.Error("failed to lock staging directory (another run may be active)", "error", err)
		return 1
	}
	defer runLock.Release()

	var snap *snapshot.Snapshot
	if *snapshotPath != "" {
		snap, err = snapshot.Load(*snapshotPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load snapshot: %v\n", err)
			return 1
		}
	}

	exec := publish.NewExecutor(publish.NewCLIPublisher(), publish.TimeoutPolicy{
		Base:          w.cfg.Publish.BaseTimeout,
		PerMiB:        w.cfg.Publish.PerMiBTimeout,
		Max:           w.cfg.Publish.MaxTimeout,
		SlowArtifacts: w.cfg.Publish.SlowArtifacts,
	})
	rec := reconcile.New(w.oracle, w.cfg.Reconcile.Concurrency)
	eng := engine.New(w.cfg, w.oracle, exec, rec)

	ctx, stop := signalContext()
	defer stop()

	r, err := eng.Run(ctx, engine.RunOptions{Snapshot: snap, DryRun: *dryRun})
	if err != nil {
		logger.Error("run failed", "error", err)
		return 1
	}

	if err := report.Save(w.cfg.Report.Path, r); err != nil {
		logger.Error("failed to write report", "path", w.cfg.Report.Path, "error", err)
		return 1
	}

	if !r.DryRun {
		if err := recordHistory(ctx, w.cfg.History.Path, r); err != nil {
			// History is best effort; the report file already exists.
			logger.Warn("failed to record run history", "error", err)
		}
	}

	fmt.Println(report.Render(r, report.RenderOptions{MaxFailures: w.cfg.Report.MaxFailures}))
	if r.Totals.Failed > 0 {
		return 1
	}
	return 0
}

func recordHistory(ctx context.Context, path string, r *report.Report) error {
	db, err := history.OpenSQLite(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()
	return history.NewStore(db).RecordRun(ctx, r)
}

func runPrecheck(args []string) int {
	fs := flag.NewFlagSet("precheck", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	w, err := wire(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx, stop := signalContext()
	defer stop()

	eng := engine.New(w.cfg, w.oracle, nil, nil)
	results, err := eng.Precheck(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Precheck failed: %v\n", err)
		return 1
	}

	present, missing, uncertain := 0, 0, 0
	for _, cr := range results {
		switch cr.Result.Status {
		case existence.StatusExists:
			present++
			fmt.Printf("present    %s\n", cr.Handle.Key())
		case existence.StatusNotExists:
			missing++
			fmt.Printf("missing    %s\n", cr.Handle.Key())
		default:
			uncertain++
			fmt.Printf("uncertain  %s (%s)\n", cr.Handle.Key(), cr.Result.ErrorDetail)
		}
	}
	fmt.Printf("\n%d present, %d missing, %d uncertain\n", present, missing, uncertain)
	return 0
}

func runSnapshotNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pnpm-airgap snapshot <export|diff> [flags]")
		return 1
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "export":
		return runSnapshotExport(actionArgs)
	case "diff":
		return runSnapshotDiff(actionArgs)
	case "help", "--help", "-h":
		fmt.Println("Usage: pnpm-airgap snapshot <export|diff> [flags]")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown snapshot action: %s\n", action)
		return 1
	}
}

func runSnapshotExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	outPath := fs.String("out", "", "Snapshot output path (default from config)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	w, err := wire(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	path := *outPath
	if path == "" {
		path = w.cfg.Snapshot.Path
	}

	ctx, stop := signalContext()
	defer stop()

	snap, err := snapshot.NewExporter(w.client).Export(ctx, w.cfg.Registry.URL, snapshot.ExportOptions{
		Scope:       w.cfg.Registry.Scope,
		Concurrency: w.cfg.Check.Concurrency,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		return 1
	}
	if err := snapshot.Save(path, snap); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write snapshot: %v\n", err)
		return 1
	}

	fmt.Printf("Snapshot of %s written to %s (%d packages)\n",
		snap.RegistryURL, path, len(snap.Packages))
	return 0
}

func runSnapshotDiff(args []string) int {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	snapshotPath := fs.String("snapshot", "", "Path to a snapshot file")
	requirementsPath := fs.String("requirements", "", "Path to a JSON list of name@version keys")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if *snapshotPath == "" || *requirementsPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: pnpm-airgap snapshot diff --snapshot <file> --requirements <file>")
		return 1
	}

	snap, err := snapshot.Load(*snapshotPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load snapshot: %v\n", err)
		return 1
	}
	required, err := snapshot.LoadRequirements(*requirementsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load requirements: %v\n", err)
		return 1
	}

	d := snapshot.DiffRequired(required, snap)
	for _, id := range d.Missing {
		fmt.Printf("missing   %s\n", id.Key())
	}
	for _, id := range d.Existing {
		fmt.Printf("existing  %s\n", id.Key())
	}
	fmt.Printf("\n%d missing, %d existing\n", len(d.Missing), len(d.Existing))
	return 0
}

func runHistoryNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pnpm-airgap history <list|show <id>> [flags]")
		return 1
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "list":
		return runHistoryList(actionArgs)
	case "show":
		return runHistoryShow(actionArgs)
	case "help", "--help", "-h":
		fmt.Println("Usage: pnpm-airgap history <list|show <id>> [flags]")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown history action: %s\n", action)
		return 1
	}
}

func runHistoryList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	limit := fs.Int("limit", 20, "Maximum number of runs to show")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, err := history.OpenSQLite(ctx, cfg.History.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
		return 1
	}
	defer db.Close()

	runs, err := history.NewStore(db).ListRuns(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return 0
	}

	for _, run := range runs {
		marker := ""
		if run.DryRun {
			marker = " (dry run)"
		}
		fmt.Printf("%s  %s  published %d, skipped %d, failed %d%s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"), run.RunID,
			run.Totals.Published, run.Totals.Skipped, run.Totals.Failed, marker)
	}
	return 0
}

func runHistoryShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output the full report as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pnpm-airgap history show <run-id> [--json]")
		return 1
	}
	runID := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, err := history.OpenSQLite(ctx, cfg.History.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
		return 1
	}
	defer db.Close()

	r, err := history.NewStore(db).GetRun(ctx, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load run: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(r, "", "  ")
		fmt.Println(string(data))
		return 0
	}
	fmt.Println(report.Render(r, report.RenderOptions{MaxFailures: cfg.Report.MaxFailures}))
	return 0
}
