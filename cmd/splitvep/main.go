// Command splitvep flattens the VEP annotation of a VCF into a compressed
// CSV/TSV table with one row per annotation entry.
//
//	splitvep [flags] <input.vcf[.gz]|-|URL> <output_prefix> [scratch_dir]
//
// The input is split into blocks that are transformed in parallel; the
// output is byte-identical to a sequential run. With -config, paths and
// settings can come from a JSON pipeline file instead; flags win over it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"splitvep/internal/config"
	"splitvep/internal/metrics"
	"splitvep/internal/metrics/datadog"
	"splitvep/internal/metrics/prompush"

	// register all backends with the storage factory; the config selects one.
	_ "splitvep/internal/storage/all"
)

// cliFlags holds the raw command-line values. Zero values mean "not set" and
// fall through to the config file.
type cliFlags struct {
	configPath     string
	blockSize      int
	workers        int
	format         string
	empty          string
	emptySet       bool
	scratch        string
	staging        string
	tag            string
	codec          string
	storageKind    string
	dsn            string
	table          string
	createTable    bool
	metricsBackend string
	pushGatewayURL string
	datadogAddr    string
	validate       bool
	verbose        bool
	args           []string
}

func main() {
	fl, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fatalf("%v", err)
	}

	p, err := resolve(fl)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("configuration is invalid")
		os.Exit(1)
	}
	if fl.validate {
		log.Printf("configuration is valid")
		os.Exit(0)
	}

	flush := setupMetrics(p, fl.verbose)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	start := time.Now()
	err = execute(ctx, p, fl.verbose)
	stop()
	flush()
	if err != nil {
		fatalf("splitvep: %v", err)
	}
	if fl.verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// parseFlags parses args into cliFlags. Usage goes to out.
func parseFlags(args []string, out io.Writer) (cliFlags, error) {
	var fl cliFlags
	fs := flag.NewFlagSet("splitvep", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(out, "usage: splitvep [flags] <input.vcf[.gz]|-|URL> <output_prefix> [scratch_dir]\n\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&fl.configPath, "config", "", "pipeline config JSON path (optional)")
	fs.IntVar(&fl.blockSize, "block-size", 0, "data lines per parallel block (default 100000)")
	fs.IntVar(&fl.workers, "workers", 0, "blocks transformed concurrently (default: number of CPUs)")
	fs.StringVar(&fl.format, "format", "", "output format: csv or tsv")
	fs.StringVar(&fl.empty, "empty", "", "placeholder written for empty values (csv default \"\", tsv default \".\")")
	fs.StringVar(&fl.scratch, "scratch", "", "scratch directory for staging artifacts (default: system temp dir)")
	fs.StringVar(&fl.staging, "staging", "", "staging backend: disk or memory")
	fs.StringVar(&fl.tag, "tag", "", "INFO tag holding the annotation (default CSQ)")
	fs.StringVar(&fl.codec, "codec", "", "output compression: gzip, zstd, lz4 or none")
	fs.StringVar(&fl.storageKind, "storage", "", "load the output into a database: postgres, sqlite, mssql, mysql")
	fs.StringVar(&fl.dsn, "dsn", "", "database DSN (overrides env SPLITVEP_DSN)")
	fs.StringVar(&fl.table, "table", "", "destination table for -storage")
	fs.BoolVar(&fl.createTable, "create-table", false, "create the destination table when missing")
	fs.StringVar(&fl.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway or datadog")
	fs.StringVar(&fl.pushGatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	fs.StringVar(&fl.datadogAddr, "datadog-addr", "", "DogStatsD address (overrides env DD_DOGSTATSD_URL)")
	fs.BoolVar(&fl.validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&fl.verbose, "v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		return fl, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "empty" {
			fl.emptySet = true
		}
	})

	fl.args = fs.Args()
	if len(fl.args) > 3 {
		fs.Usage()
		return fl, fmt.Errorf("too many arguments: %d", len(fl.args))
	}
	if fl.configPath == "" && len(fl.args) < 2 {
		fs.Usage()
		return fl, fmt.Errorf("missing <input> and <output_prefix>")
	}
	return fl, nil
}

// resolve layers defaults, environment, the config file, positional
// arguments and flags into one Pipeline.
func resolve(fl cliFlags) (config.Pipeline, error) {
	p, err := config.Load(fl.configPath)
	if err != nil {
		return p, err
	}

	if len(fl.args) > 0 {
		if in := fl.args[0]; strings.HasPrefix(in, "http://") || strings.HasPrefix(in, "https://") {
			p.Source.Kind = "http"
			p.Source.HTTP.URL = in
		} else {
			p.Source.Kind = "file"
			p.Source.File.Path = in
		}
	}
	if len(fl.args) > 1 {
		p.Output.Prefix = fl.args[1]
	}
	if len(fl.args) > 2 {
		p.Runtime.ScratchDir = fl.args[2]
	}

	p.Runtime.BlockSize = config.PickInt(fl.blockSize, p.Runtime.BlockSize)
	p.Runtime.Workers = config.PickInt(fl.workers, p.Runtime.Workers)
	p.Output.Format = pickString(fl.format, p.Output.Format)
	p.Output.Codec = pickString(fl.codec, p.Output.Codec)
	p.Runtime.ScratchDir = pickString(fl.scratch, p.Runtime.ScratchDir)
	p.Runtime.Staging = pickString(fl.staging, p.Runtime.Staging)
	p.Annotation.Tag = pickString(fl.tag, p.Annotation.Tag)
	p.Storage.Kind = pickString(fl.storageKind, p.Storage.Kind)
	p.Storage.DB.DSN = pickString(fl.dsn, p.Storage.DB.DSN)
	p.Storage.DB.Table = pickString(fl.table, p.Storage.DB.Table)
	p.Storage.DB.AutoCreateTable = p.Storage.DB.AutoCreateTable || fl.createTable
	p.Metrics.Backend = pickString(fl.metricsBackend, p.Metrics.Backend)
	p.Metrics.PushgatewayURL = pickString(fl.pushGatewayURL, p.Metrics.PushgatewayURL)
	p.Metrics.DatadogAddr = pickString(fl.datadogAddr, p.Metrics.DatadogAddr)
	if fl.emptySet {
		empty := fl.empty
		p.Output.EmptyValue = &empty
	}
	return p, nil
}

func pickString(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// setupMetrics installs the configured backend and returns the function that
// flushes it at the end of the run.
func setupMetrics(p config.Pipeline, verbose bool) func() {
	nop := func() {}
	switch p.Metrics.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(p.Job, p.Metrics.PushgatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return nop
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", p.Metrics.PushgatewayURL, p.Metrics.Backend, p.Job)
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       p.Metrics.DatadogAddr,
			Namespace:  p.Metrics.Options.String("namespace", ""),
			GlobalTags: append(p.Metrics.Options.StringSlice("tags"), "job:"+p.Job),
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return nop
		}
		log.Printf("metrics: addr=%v, backend=%v, job_name=%v", p.Metrics.DatadogAddr, p.Metrics.Backend, p.Job)
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", p.Metrics.Backend)
		}
		return nop

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", p.Metrics.Backend)
		return nop
	}

	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
