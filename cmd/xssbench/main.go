package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xssbench/xssbench/internal/bench"
	"github.com/xssbench/xssbench/internal/config"
	"github.com/xssbench/xssbench/internal/engine"
	"github.com/xssbench/xssbench/internal/importer"
	"github.com/xssbench/xssbench/internal/logging"
	"github.com/xssbench/xssbench/internal/report"
	"github.com/xssbench/xssbench/internal/sanitize"
	"github.com/xssbench/xssbench/internal/vector"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.LoadOrDefault()

	vectors := flag.String("vectors", cfg.Vectors.Dir, "Comma-separated vector files or directories")
	sanitizers := flag.String("sanitizers", "", "Comma-separated sanitizer names (default: all)")
	browser := flag.String("browser", cfg.Bench.Browser, `Comma-separated browser engines, or "all"`)
	timeoutMS := flag.Int("timeout-ms", cfg.Bench.TimeoutMS, "Per-case observation window in ms (0 = adaptive)")
	workers := flag.Int("workers", cfg.Bench.Workers, "Parallel worker sessions")
	failFast := flag.Bool("fail-fast", cfg.Bench.FailFast, "Stop at the first executed case")
	progressEvery := flag.Int("progress-every", cfg.Bench.ProgressEvery, "Progress line interval in cases (0 = silent)")
	watchdogMS := flag.Int("watchdog-stall-ms", cfg.Bench.WatchdogStallMS, "Parallel stall tolerance in ms")
	jsonOut := flag.String("json-out", cfg.Report.JSONOut, "Write the run artifact to this path")
	listSanitizers := flag.Bool("list-sanitizers", false, "List sanitizers and exit")
	compileOut := flag.String("compile-out", "", "Compile vectors into one artifact and exit")
	dedupe := flag.Bool("dedupe", true, "Drop unuseful duplicates when compiling")
	checkAgainst := flag.String("check-against", "", "Check -vectors candidates against these files and exit")
	importPortswigger := flag.Bool("import-portswigger", false, "Import the PortSwigger cheat sheet and exit")
	importURL := flag.String("import-url", importer.DefaultCheatSheetURL, "Cheat sheet URL for -import-portswigger")
	flag.Parse()

	log, err := logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return bench.ExitDegraded
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *listSanitizers {
		names := make([]string, 0)
		for name := range sanitize.Available() {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s, _ := sanitize.Get(name)
			fmt.Printf("%s\t%s\n", s.Name, s.Description)
		}
		return bench.ExitClean
	}

	if *importPortswigger {
		out := filepath.Join(cfg.Report.WorkDir, "imported-portswigger.json")
		count, err := importer.New(log).ImportCheatSheet(ctx, *importURL, out)
		if err != nil {
			log.Error("import failed", zap.Error(err))
			return bench.ExitDegraded
		}
		fmt.Printf("imported %d vectors to %s\n", count, out)
		return bench.ExitClean
	}

	paths, err := expandVectorPaths(splitList(*vectors))
	if err != nil {
		log.Error("resolve vector paths", zap.Error(err))
		return bench.ExitDegraded
	}

	if *checkAgainst != "" {
		return runCheck(paths, splitList(*checkAgainst))
	}

	if *compileOut != "" {
		stats, err := vector.Compile(paths, *compileOut, *dedupe)
		if err != nil {
			log.Error("compile failed", zap.Error(err))
			return bench.ExitDegraded
		}
		fmt.Printf("compiled %d vectors to %s (%d expanded, %d unuseful duplicates dropped)\n",
			stats.WrittenVectors, *compileOut, stats.ExpandedVectors, stats.SkippedUnusefulDuplicates)
		return bench.ExitClean
	}

	vecs, err := vector.Load(paths)
	if err != nil {
		log.Error("load vectors", zap.Error(err))
		return bench.ExitDegraded
	}
	if len(vecs) == 0 {
		log.Error("no vectors loaded", zap.Strings("paths", paths))
		return bench.ExitDegraded
	}

	sans, err := selectSanitizers(*sanitizers)
	if err != nil {
		log.Error("select sanitizers", zap.Error(err))
		return bench.ExitDegraded
	}

	browsers := selectBrowsers(*browser)
	total := len(vecs) * len(sans) * len(browsers)
	log.Info("starting benchmark",
		zap.Int("vectors", len(vecs)),
		zap.Int("sanitizers", len(sans)),
		zap.Int("cases", total),
		zap.Strings("browsers", browsers),
		zap.Int("workers", *workers))

	startedAt := time.Now().UTC()
	runner := bench.NewRunner(sans, vecs, bench.Options{
		Browsers:      browsers,
		Timeout:       time.Duration(*timeoutMS) * time.Millisecond,
		Workers:       *workers,
		FailFast:      *failFast,
		WatchdogStall: time.Duration(*watchdogMS) * time.Millisecond,
		Progress:      progressPrinter(*progressEvery),
		Logger:        log,
	})
	results, err := runner.Run(ctx)
	if err != nil {
		log.Error("benchmark failed", zap.Error(err))
		return bench.ExitDegraded
	}

	artifact := report.New(browsers, startedAt, results)
	report.Table(os.Stdout, artifact.Summary)
	report.Failures(os.Stdout, results)

	if *jsonOut != "" {
		if err := artifact.WriteJSON(*jsonOut); err != nil {
			log.Error("write artifact", zap.Error(err))
			return bench.ExitDegraded
		}
		log.Info("wrote run artifact", zap.String("path", *jsonOut), zap.String("run_id", artifact.ID))
	}

	return bench.ExitCode(results)
}

func runCheck(newPaths, againstPaths []string) int {
	results, err := vector.CheckCandidates(newPaths, againstPaths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "check: %v\n", err)
		return bench.ExitDegraded
	}
	dups := 0
	for _, r := range results {
		if !r.AlreadyTested {
			fmt.Printf("new\t%s\t%s\n", r.PayloadContext, r.PayloadHTML)
			continue
		}
		dups++
		for _, m := range r.Matched {
			fmt.Printf("dup\t%s\t%s\t(matches %s@%s in %s)\n",
				r.PayloadContext, r.PayloadHTML, m.VectorID, m.PayloadContext, m.File)
		}
	}
	if dups > 0 {
		return bench.ExitDegraded
	}
	return bench.ExitClean
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// expandVectorPaths turns directories into their sorted *.json contents.
func expandVectorPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("vector path %s: %w", p, err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.json"))
		if err != nil {
			return nil, fmt.Errorf("vector dir %s: %w", p, err)
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no vector files found")
	}
	return out, nil
}

func selectBrowsers(names string) []string {
	out := splitList(names)
	if len(out) == 1 && out[0] == "all" {
		return engine.Engines()
	}
	if len(out) == 0 {
		return []string{"goja"}
	}
	return out
}

func selectSanitizers(names string) ([]sanitize.Sanitizer, error) {
	if strings.TrimSpace(names) == "" {
		return sanitize.Defaults(), nil
	}
	var out []sanitize.Sanitizer
	for _, name := range splitList(names) {
		s, err := sanitize.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func progressPrinter(every int) func(done, total int) {
	if every <= 0 {
		return nil
	}
	return func(done, total int) {
		if done%every == 0 || done == total {
			fmt.Fprintf(os.Stderr, "progress: %d/%d cases\n", done, total)
		}
	}
}
