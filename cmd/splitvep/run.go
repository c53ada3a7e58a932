package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"splitvep/internal/config"
	"splitvep/internal/datasource"
	"splitvep/internal/datasource/file"
	"splitvep/internal/datasource/httpds"
	"splitvep/internal/load"
	"splitvep/internal/output"
	"splitvep/internal/pipeline"
	"splitvep/internal/sink"
)

// runOptions is the resolved, typed form of a Pipeline.
type runOptions struct {
	split   pipeline.Options
	input   string
	source  datasource.Source
	load    bool
	loadOpt load.Options
}

// newSource builds the input source and a printable name for it.
func newSource(s config.Source) (string, datasource.Source, error) {
	switch s.Kind {
	case "", "file":
		return s.File.Path, file.NewLocal(s.File.Path), nil
	case "http":
		hdr := make(http.Header, len(s.HTTP.Headers))
		for k, v := range s.HTTP.Headers {
			hdr.Set(k, v)
		}
		client := httpds.NewClient(httpds.Config{
			Timeout:            time.Duration(s.HTTP.TimeoutSeconds) * time.Second,
			MaxRetries:         s.HTTP.MaxRetries,
			InsecureSkipVerify: s.HTTP.InsecureSkipVerify,
			Headers:            hdr,
		})
		return s.HTTP.URL, httpds.NewRemote(s.HTTP.URL, client), nil
	default:
		return "", nil, fmt.Errorf("unsupported source.kind=%s", s.Kind)
	}
}

func newRunOptions(p config.Pipeline, verbose bool) (runOptions, error) {
	format, err := output.ByName(p.Output.Format, p.Output.EmptyValue)
	if err != nil {
		return runOptions{}, err
	}
	codec, err := sink.ParseCodec(p.Output.Codec)
	if err != nil {
		return runOptions{}, fmt.Errorf("output codec: %w", err)
	}
	stagingCodec, err := sink.ParseCodec(p.Runtime.StagingCodec)
	if err != nil {
		return runOptions{}, fmt.Errorf("staging codec: %w", err)
	}

	input, src, err := newSource(p.Source)
	if err != nil {
		return runOptions{}, err
	}

	outPath := p.Output.Prefix + format.Ext(codec.Ext())
	ro := runOptions{
		input:  input,
		source: src,
		split: pipeline.Options{
			Job:           p.Job,
			Tag:           p.Annotation.Tag,
			Format:        format,
			Codec:         codec,
			OutputPath:    outPath,
			BlockSize:     p.Runtime.BlockSize,
			Workers:       p.Runtime.Workers,
			ScratchDir:    p.Runtime.ScratchDir,
			Staging:       p.Runtime.Staging,
			StagingCodec:  stagingCodec,
			ProgressEvery: p.Runtime.ProgressEvery,
			Verbose:       verbose,
		},
	}

	switch p.Storage.Kind {
	case "", "none":
	default:
		ro.load = true
		ro.loadOpt = load.Options{
			Job:        p.Job,
			Kind:       p.Storage.Kind,
			DSN:        p.Storage.DB.DSN,
			Table:      p.Storage.DB.Table,
			AutoCreate: p.Storage.DB.AutoCreateTable,
			BatchSize:  config.PickInt(p.Storage.DB.BatchSize, 5000),
			Codec:      codec,
			Format:     format,
		}
	}
	return ro, nil
}

// execute runs the split and, when storage is configured, the table load.
func execute(ctx context.Context, p config.Pipeline, verbose bool) error {
	ro, err := newRunOptions(p, verbose)
	if err != nil {
		return err
	}

	if verbose {
		log.Printf("pipeline: input=%s output=%s format=%s block_size=%d workers=%d staging=%s storage=%s",
			ro.input, ro.split.OutputPath, ro.split.Format.Name, ro.split.BlockSize, ro.split.Workers,
			ro.split.Staging, p.Storage.Kind)
	}

	st, err := pipeline.Run(ctx, ro.source, ro.split)
	if err != nil {
		return err
	}
	logGlobalSummary(st)
	log.Printf("output: %s", ro.split.OutputPath)

	if !ro.load {
		return nil
	}
	if _, err := load.File(ctx, ro.split.OutputPath, ro.loadOpt); err != nil {
		return err
	}
	return nil
}

// logGlobalSummary prints final aggregated statistics for the run.
//
// Invariants for the counters are:
//
//	lines == header_lines + blank + schema_missing + records + short_records
//	entries == rows + dropped
func logGlobalSummary(st pipeline.Stats) {
	log.Printf(
		"summary: lines=%s header_lines=%d records=%s short_records=%d schema_missing=%d no_annotation=%s entries=%s repaired=%d dropped=%d rows=%s blocks=%d bytes=%s elapsed=%s",
		humanize.Comma(st.Lines),
		st.HeaderLines,
		humanize.Comma(st.Records),
		st.ShortRecords,
		st.SchemaMissing,
		humanize.Comma(st.NoAnnotation),
		humanize.Comma(st.Entries),
		st.Repaired,
		st.Dropped,
		humanize.Comma(st.Rows),
		st.Blocks,
		humanize.Bytes(uint64(st.Bytes)),
		st.Elapsed.Truncate(time.Millisecond),
	)

	accounted := st.HeaderLines + st.Blank + st.SchemaMissing + st.Records + st.ShortRecords
	if accounted != st.Lines {
		log.Printf("WARNING: line accounting mismatch: lines=%d accounted=%d (delta=%d)",
			st.Lines, accounted, st.Lines-accounted)
	}
}
