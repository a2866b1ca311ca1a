// Command qual is a minimal smoke-test entry point over the core:
// discover record files under a project root, resolve supersession
// and scores, print each subject's report, and optionally compact a
// record file in place. The full CLI front-end (subcommands, flags,
// terminal formatting) is out of scope for this repo; this binary
// exists to exercise the core end to end, with tracing/metrics wired
// in the same way a production caller would wire them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/qualifier-dev/qualifier/pkg/qcompact"
	"github.com/qualifier-dev/qualifier/pkg/qconfig"
	"github.com/qualifier-dev/qualifier/pkg/qobserve"
	"github.com/qualifier-dev/qualifier/pkg/qrecord"
	"github.com/qualifier-dev/qualifier/pkg/qscore"
	"github.com/qualifier-dev/qualifier/pkg/qstore"
)

const legacyGraphFileName = "qualifier.graph.jsonl"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("qual", flag.ContinueOnError)
	fs.SetOutput(stderr)
	startDir := fs.String("root", ".", "directory to search for a project root")
	compactFile := fs.String("compact", "", "path to a record file to compact in place, instead of reporting scores")
	snapshot := fs.Bool("snapshot", false, "use snapshot mode for -compact (default: prune)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := qconfig.Load()

	obsCfg := qobserve.DefaultConfig()
	obsCfg.Enabled = cfg.OTelEnabled
	ctx := context.Background()
	provider, err := qobserve.New(ctx, obsCfg)
	if err != nil {
		fmt.Fprintf(stderr, "qual: %v\n", err)
		return 1
	}
	defer provider.Shutdown(ctx)

	if *compactFile != "" {
		return runCompact(ctx, provider, *compactFile, *snapshot, cfg, stderr)
	}
	return runReport(ctx, provider, *startDir, cfg, stdout, stderr)
}

func runReport(ctx context.Context, provider *qobserve.Provider, startDir string, cfg *qconfig.Config, stdout, stderr *os.File) int {
	root := cfg.ProjectRoot
	if root == "" {
		found, err := qstore.FindRoot(startDir)
		if err != nil {
			fmt.Fprintf(stderr, "qual: %v\n", err)
			return 1
		}
		root = found
	}

	discoverCtx, endDiscover := provider.TrackOperation(ctx, "qualifier.discover", attribute.String("qualifier.root", root))
	files, err := qstore.Discover(root)
	endDiscover(err)
	if err != nil {
		fmt.Fprintf(stderr, "qual: %v\n", err)
		return 1
	}

	var records []qrecord.Record
	for _, f := range files {
		for _, lineErr := range f.Errors {
			fmt.Fprintf(stderr, "qual: %s: %v\n", f.Path, lineErr)
		}
		provider.RecordsParsed(discoverCtx, int64(len(f.Records)), f.Path)
		records = append(records, f.Records...)
	}

	scoreCtx, endScore := provider.TrackOperation(ctx, "qualifier.score", attribute.Int("qualifier.record_count", len(records)))
	subjectResults, err := qscore.ResolveAll(records, cfg.ClampMin, cfg.ClampMax)
	if err != nil {
		endScore(err)
		fmt.Fprintf(stderr, "qual: %v\n", err)
		return 1
	}

	raw := make(map[string]int32, len(subjectResults))
	for subj, res := range subjectResults {
		raw[subj] = res.Raw
	}

	depGraph, err := loadDependencyGraph(root, records)
	if err != nil {
		endScore(err)
		fmt.Fprintf(stderr, "qual: %v\n", err)
		return 1
	}

	reports, err := qscore.EffectiveScores(depGraph, raw)
	endScore(err)
	if err != nil {
		fmt.Fprintf(stderr, "qual: %v\n", err)
		return 1
	}
	provider.ScoresComputed(scoreCtx, int64(len(reports)))

	subjects := make([]string, 0, len(reports))
	for s := range reports {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)

	for _, subj := range subjects {
		r := reports[subj]
		hasActiveScored := false
		for _, rec := range subjectResults[subj].Active {
			if _, ok := rec.Score(); ok {
				hasActiveScored = true
				break
			}
		}
		status := qscore.Status(r, hasActiveScored, cfg.HealthyThreshold)
		fmt.Fprintf(stdout, "%-40s raw=%-4d eff=%-4d %s", subj, r.Raw, r.Effective, status)
		if r.Limited() {
			fmt.Fprintf(stdout, " limited-by=%v", r.LimitingPath)
		}
		fmt.Fprintln(stdout)
	}
	return 0
}

func runCompact(ctx context.Context, provider *qobserve.Provider, path string, snapshot bool, cfg *qconfig.Config, stderr *os.File) int {
	mode := qcompact.ModePrune
	modeName := "prune"
	if snapshot {
		mode = qcompact.ModeSnapshot
		modeName = "snapshot"
	}

	compactCtx, endCompact := provider.TrackOperation(ctx, "qualifier.compact",
		attribute.String("qualifier.path", path), attribute.String("qualifier.mode", modeName))
	result, err := qcompact.Compact(path, mode, time.Now().UTC().Format(time.RFC3339), cfg.ClampMin, cfg.ClampMax)
	endCompact(err)
	if err != nil {
		fmt.Fprintf(stderr, "qual: %v\n", err)
		return 1
	}
	provider.CompactionRun(compactCtx, modeName)
	fmt.Fprintf(stderr, "qual: compacted %s: %d -> %d records (%d pruned)\n", path, result.Before, result.After, result.Pruned)
	return 0
}

// loadDependencyGraph merges edges from every parsed dependency
// record with the legacy graph file at the project root, if present.
func loadDependencyGraph(root string, records []qrecord.Record) (qscore.Graph, error) {
	graph := qscore.FromDependencyRecords(records)

	legacyPath := filepath.Join(root, legacyGraphFileName)
	data, err := os.ReadFile(legacyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return graph, nil
		}
		return nil, fmt.Errorf("read %s: %w", legacyPath, err)
	}

	legacy, lineErrs := qscore.LoadLegacyGraph(data)
	for _, e := range lineErrs {
		fmt.Fprintf(os.Stderr, "qual: %s: %v\n", legacyPath, e)
	}
	return qscore.Merge(graph, legacy), nil
}
