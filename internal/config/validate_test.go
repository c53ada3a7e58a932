package config

import (
	"testing"
)

func validPipeline() Pipeline {
	p := Default()
	p.Source.File.Path = "in.vcf.gz"
	p.Output.Prefix = "out/run"
	return p
}

func strptr(s string) *string { return &s }

func TestValidatePipeline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(p *Pipeline)
		wantPath string
		wantSev  IssueSeverity
	}{
		{"empty_job", func(p *Pipeline) { p.Job = " " }, "job", SeverityError},
		{"unknown_source", func(p *Pipeline) { p.Source.Kind = "s3" }, "source.kind", SeverityError},
		{"http_bad_url", func(p *Pipeline) { p.Source.Kind, p.Source.HTTP.URL = "http", "ftp://host/x.vcf" }, "source.http.url", SeverityError},
		{"http_negative_retries", func(p *Pipeline) {
			p.Source.Kind, p.Source.HTTP.URL, p.Source.HTTP.MaxRetries = "http", "https://h/x.vcf.gz", -1
		}, "source.http", SeverityError},
		{"http_insecure", func(p *Pipeline) {
			p.Source.Kind, p.Source.HTTP.URL, p.Source.HTTP.InsecureSkipVerify = "http", "https://h/x.vcf.gz", true
		}, "source.http.insecure_skip_verify", SeverityWarning},
		{"missing_path", func(p *Pipeline) { p.Source.File.Path = "" }, "source.file.path", SeverityError},
		{"empty_tag", func(p *Pipeline) { p.Annotation.Tag = "" }, "annotation.tag", SeverityError},
		{"tag_with_equals", func(p *Pipeline) { p.Annotation.Tag = "CSQ=" }, "annotation.tag", SeverityError},
		{"missing_prefix", func(p *Pipeline) { p.Output.Prefix = "" }, "output.prefix", SeverityError},
		{"bad_format", func(p *Pipeline) { p.Output.Format = "xlsx" }, "output.format", SeverityError},
		{"empty_value_has_delimiter", func(p *Pipeline) { p.Output.EmptyValue = strptr("a,b") }, "output.empty_value", SeverityWarning},
		{"bad_codec", func(p *Pipeline) { p.Output.Codec = "bz2" }, "output.codec", SeverityError},
		{"zero_block_size", func(p *Pipeline) { p.Runtime.BlockSize = 0 }, "runtime.block_size", SeverityError},
		{"tiny_block_size", func(p *Pipeline) { p.Runtime.BlockSize = 10 }, "runtime.block_size", SeverityWarning},
		{"negative_workers", func(p *Pipeline) { p.Runtime.Workers = -2 }, "runtime.workers", SeverityError},
		{"bad_staging", func(p *Pipeline) { p.Runtime.Staging = "tape" }, "runtime.staging", SeverityError},
		{"memory_with_scratch", func(p *Pipeline) {
			p.Runtime.Staging = "memory"
			p.Runtime.ScratchDir = "/tmp"
		}, "runtime.scratch_dir", SeverityWarning},
		{"bad_staging_codec", func(p *Pipeline) { p.Runtime.StagingCodec = "lz4" }, "runtime.staging_codec", SeverityError},
		{"negative_progress", func(p *Pipeline) { p.Runtime.ProgressEvery = -1 }, "runtime.progress_every", SeverityError},
		{"storage_without_dsn", func(p *Pipeline) {
			p.Storage.Kind = "postgres"
			p.Storage.DB.Table = "public.csq"
		}, "storage.db.dsn", SeverityError},
		{"storage_without_table", func(p *Pipeline) {
			p.Storage.Kind = "sqlite"
			p.Storage.DB.DSN = ":memory:"
		}, "storage.db.table", SeverityError},
		{"unknown_storage", func(p *Pipeline) {
			p.Storage.Kind = "oracle"
			p.Storage.DB.DSN = "x"
			p.Storage.DB.Table = "t"
		}, "storage.kind", SeverityWarning},
		{"pushgateway_without_url", func(p *Pipeline) { p.Metrics.Backend = "pushgateway" }, "metrics.pushgateway_url", SeverityError},
		{"datadog_without_addr", func(p *Pipeline) { p.Metrics.Backend = "datadog" }, "metrics.datadog_addr", SeverityError},
		{"unknown_metrics", func(p *Pipeline) { p.Metrics.Backend = "statsd" }, "metrics.backend", SeverityWarning},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := validPipeline()
			tt.mutate(&p)
			issues := ValidatePipeline(p)

			found := false
			for _, iss := range issues {
				if iss.Path == tt.wantPath && iss.Severity == tt.wantSev {
					found = true
				}
			}
			if !found {
				t.Fatalf("issues = %v; want %s at %s", issues, tt.wantSev, tt.wantPath)
			}
		})
	}
}

func TestValidatePipeline_ValidHasNoIssues(t *testing.T) {
	t.Parallel()

	if issues := ValidatePipeline(validPipeline()); len(issues) != 0 {
		t.Fatalf("issues = %v, want none", issues)
	}
}

func TestIssue_Error(t *testing.T) {
	t.Parallel()

	iss := Issue{Severity: SeverityError, Path: "runtime.block_size", Message: "must be at least 1"}
	if got, want := iss.Error(), "error at runtime.block_size: must be at least 1"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !HasErrors([]Issue{{Severity: SeverityWarning}, iss}) || HasErrors([]Issue{{Severity: SeverityWarning}}) {
		t.Fatal("HasErrors misreports severity")
	}
}
