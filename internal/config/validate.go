package config

import (
	"fmt"
	"net/url"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single lint finding. Path is a dotted path into the config,
// e.g. "runtime.block_size".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline lints p without mutating it.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels logs and metrics",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateAnnotation(p.Annotation)...)
	issues = append(issues, validateOutput(p.Output)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.path",
				Message:  "file source requires a non-empty path (\"-\" for stdin)",
			})
		}
	case "http":
		u, err := url.Parse(s.HTTP.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.url",
				Message:  fmt.Sprintf("http source requires an absolute http(s) URL, got %q", s.HTTP.URL),
			})
		}
		if s.HTTP.MaxRetries < 0 || s.HTTP.TimeoutSeconds < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http",
				Message:  "max_retries and timeout_seconds must be >= 0",
			})
		}
		if s.HTTP.InsecureSkipVerify {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "source.http.insecure_skip_verify",
				Message:  "TLS certificate verification is disabled",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; want file or http", s.Kind),
		})
	}
	return issues
}

func validateAnnotation(a Annotation) []Issue {
	var issues []Issue
	switch {
	case a.Tag == "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "annotation.tag",
			Message:  "annotation.tag must not be empty",
		})
	case strings.ContainsAny(a.Tag, "=;,\t "):
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "annotation.tag",
			Message:  fmt.Sprintf("annotation.tag %q must not contain '=', ';', ',' or whitespace", a.Tag),
		})
	}
	return issues
}

func validateOutput(o Output) []Issue {
	var issues []Issue
	if strings.TrimSpace(o.Prefix) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.prefix",
			Message:  "output.prefix must not be empty",
		})
	}

	delim := ""
	switch o.Format {
	case "csv":
		delim = ","
	case "tsv":
		delim = "\t"
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.format",
			Message:  fmt.Sprintf("unknown format %q; want csv or tsv", o.Format),
		})
	}
	if o.EmptyValue != nil && delim != "" && strings.Contains(*o.EmptyValue, delim) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "output.empty_value",
			Message:  fmt.Sprintf("empty_value %q contains the %s delimiter; rows will not split back cleanly", *o.EmptyValue, o.Format),
		})
	}
	if !knownCodec(o.Codec) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.codec",
			Message:  fmt.Sprintf("unknown codec %q; want gzip, zstd or none", o.Codec),
		})
	}
	return issues
}

func validateRuntime(r Runtime) []Issue {
	var issues []Issue
	if r.BlockSize < 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.block_size",
			Message:  fmt.Sprintf("block_size=%d; must be at least 1", r.BlockSize),
		})
	} else if r.BlockSize < 100 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.block_size",
			Message:  fmt.Sprintf("block_size=%d; tiny blocks spend more time on staging than decoding", r.BlockSize),
		})
	}
	if r.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must not be negative (0 means one per CPU)",
		})
	}
	if r.Staging != "disk" && r.Staging != "memory" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.staging",
			Message:  fmt.Sprintf("unknown staging %q; want disk or memory", r.Staging),
		})
	}
	if r.Staging == "memory" && r.ScratchDir != "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.scratch_dir",
			Message:  "scratch_dir is ignored with memory staging",
		})
	}
	if !knownCodec(r.StagingCodec) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.staging_codec",
			Message:  fmt.Sprintf("unknown codec %q; want gzip, zstd or none", r.StagingCodec),
		})
	}
	if r.ProgressEvery < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.progress_every",
			Message:  "progress_every must not be negative",
		})
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	switch s.Kind {
	case "", "none":
		return nil
	case "postgres", "sqlite", "mssql", "mysql":
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(s.DB.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}
	if s.DB.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.db.batch_size",
			Message:  fmt.Sprintf("batch_size=%d; a default will be used", s.DB.BatchSize),
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires a URL",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires a DogStatsD address",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics disabled", m.Backend),
		})
	}
	return issues
}

func knownCodec(c string) bool {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "", "gzip", "gz", "zstd", "zst", "lz4", "none", "plain":
		return true
	}
	return false
}
