// Command spotcall calls genes on spot colours with orthogonal matching
// pursuit and optionally stores the result in a sqlite database.
//
//	spotcall -input run.json [-config omp.json] [-db spots.db]
//	spotcall -db spots.db migrate up
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/banshee-data/spotcall/internal/config"
	"github.com/banshee-data/spotcall/internal/db"
	"github.com/banshee-data/spotcall/internal/fsutil"
	"github.com/banshee-data/spotcall/internal/iss"
	"github.com/banshee-data/spotcall/internal/iss/pipeline"
	"github.com/banshee-data/spotcall/internal/iss/storage/sqlite"
	"github.com/banshee-data/spotcall/internal/timeutil"
	"github.com/banshee-data/spotcall/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

type options struct {
	configPath    string
	inputPath     string
	dbPath        string
	migrationsDir string
	wait          time.Duration
	logDiag       bool
	logTrace      bool
	showVersion   bool
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	fs := flag.NewFlagSet("spotcall", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var o options
	fs.StringVar(&o.configPath, "config", "", "calling config JSON (defaults when empty)")
	fs.StringVar(&o.inputPath, "input", "", "input bundle JSON with codes, geometry and spot colours")
	fs.StringVar(&o.dbPath, "db", "", "sqlite database to store the run in")
	fs.StringVar(&o.migrationsDir, "migrations", "", "migrations directory (embedded migrations when empty)")
	fs.DurationVar(&o.wait, "wait", 0, "how long to wait for the input file to appear")
	fs.BoolVar(&o.logDiag, "log-diag", false, "enable the diagnostic log stream")
	fs.BoolVar(&o.logTrace, "log-trace", false, "enable the trace log stream")
	fs.BoolVar(&o.showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return &o, fs.Args(), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, rest, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.showVersion {
		fmt.Fprintln(stdout, version.String())
		return nil
	}

	lw := iss.LogWriters{Ops: stderr}
	if o.logDiag {
		lw.Diag = stderr
	}
	if o.logTrace {
		lw.Trace = stderr
	}
	iss.SetLogWriters(lw)

	if len(rest) > 0 && rest[0] == "migrate" {
		if o.dbPath == "" {
			return fmt.Errorf("migrate requires -db")
		}
		return db.RunMigrateCommand(rest[1:], o.dbPath, o.migrationsDir, stdout)
	}
	if len(rest) > 0 {
		return fmt.Errorf("unknown command %q", rest[0])
	}
	if o.inputPath == "" {
		return fmt.Errorf("-input is required")
	}

	cfg := config.DefaultCallingConfig()
	if o.configPath != "" {
		if cfg, err = config.LoadCallingConfig(o.configPath); err != nil {
			return err
		}
	}

	if o.wait > 0 {
		if err := fsutil.WaitForFile(ctx, fsutil.OSFileSystem{}, timeutil.RealClock{}, o.inputPath, fsutil.WaitOptions{Timeout: o.wait}); err != nil {
			return err
		}
	}
	b, err := loadBundle(o.inputPath)
	if err != nil {
		return err
	}
	in, src, err := b.inputs()
	if err != nil {
		return err
	}
	in.Config = cfg

	var store *pipeline.StoreSink
	var sink pipeline.SpotSink
	if o.dbPath != "" {
		migrations, err := db.MigrationsFS(o.migrationsDir)
		if err != nil {
			return err
		}
		database, err := db.OpenMigrated(o.dbPath, migrations)
		if err != nil {
			return err
		}
		defer database.Close()
		store = &pipeline.StoreSink{Store: sqlite.NewSpotStore(database.DB)}
		sink = store
	}

	res, err := pipeline.RunOMP(ctx, in, src, sink)
	if err != nil {
		return err
	}
	printSummary(stdout, res, store)
	return nil
}

func printSummary(w io.Writer, res *pipeline.Result, sink *pipeline.StoreSink) {
	kept := res.Kept()
	if sink != nil {
		fmt.Fprintf(w, "run_id: %s\n", sink.RunID)
	}
	fmt.Fprintf(w, "spots: %d kept of %d (intensity threshold %.4g, %s)\n",
		len(kept), len(res.Records), res.IntensityThresh, res.Rule)

	counts := make(map[int]int)
	for _, r := range kept {
		counts[r.Gene]++
	}
	genes := make([]int, 0, len(counts))
	for g := range counts {
		genes = append(genes, g)
	}
	sort.Ints(genes)
	for _, g := range genes {
		name := "(none)"
		if g >= 0 {
			name = res.GeneNames[g]
		}
		fmt.Fprintf(w, "  %-12s %d\n", name, counts[g])
	}
}
