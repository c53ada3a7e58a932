// Package config defines the JSON-serializable run configuration for the
// splitter.
//
// Values are layered: Default, then SPLITVEP_* environment variables
// (ApplyEnv), then the config file (Load), then command-line flags applied by
// the caller. ValidatePipeline lints the result.
//
// Example:
//
//	{
//	  "job": "gnomad-chr21",
//	  "source":  { "kind": "file", "file": { "path": "chr21.vep.vcf.gz" } },
//	  "output":  { "prefix": "out/chr21", "format": "tsv" },
//	  "runtime": { "block_size": 50000, "workers": 8, "scratch_dir": "/scratch" },
//	  "storage": { "kind": "postgres", "db": { "dsn": "postgresql://...", "table": "public.csq", "auto_create_table": true } }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Pipeline is the top-level object decoded from a config file.
type Pipeline struct {
	// Job names the run in logs and metrics.
	Job string `json:"job"`

	Source     Source     `json:"source"`
	Annotation Annotation `json:"annotation"`
	Output     Output     `json:"output"`
	Runtime    Runtime    `json:"runtime"`

	// Storage optionally loads the finished table into a database.
	Storage Storage `json:"storage"`
	Metrics Metrics `json:"metrics"`
}

// Source identifies the input: "file" (default) or "http".
type Source struct {
	Kind string     `json:"kind"`
	File SourceFile `json:"file"`
	HTTP SourceHTTP `json:"http"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	// Path is the input VCF, plain or gzip/BGZF. "-" reads stdin.
	Path string `json:"path"`
}

// SourceHTTP streams the input from a URL.
type SourceHTTP struct {
	URL string `json:"url"`
	// TimeoutSeconds bounds the whole download; 0 means no limit.
	TimeoutSeconds     int               `json:"timeout_seconds"`
	MaxRetries         int               `json:"max_retries"`
	InsecureSkipVerify bool              `json:"insecure_skip_verify"`
	Headers            map[string]string `json:"headers"`
}

// Annotation selects the INFO sub-field holding the annotation entries.
type Annotation struct {
	Tag string `json:"tag"`
}

// Output controls the final table.
type Output struct {
	// Prefix is the output path without extension.
	Prefix string `json:"prefix"`
	// Format is "csv" or "tsv".
	Format string `json:"format"`
	// EmptyValue overrides the format's placeholder for empty values when set.
	EmptyValue *string `json:"empty_value,omitempty"`
	// Codec compresses the final table: "gzip" (default), "zstd", "lz4" or "none".
	Codec string `json:"codec"`
}

// Runtime controls block size, concurrency and staging.
type Runtime struct {
	// BlockSize is the number of data lines per parallel block.
	BlockSize int `json:"block_size"`
	// Workers is the number of blocks transformed concurrently; 0 means one
	// per CPU.
	Workers int `json:"workers"`
	// ScratchDir holds the run's staging directory. Empty uses os.TempDir.
	ScratchDir string `json:"scratch_dir"`
	// Staging is "disk" or "memory".
	Staging string `json:"staging"`
	// StagingCodec compresses staging artifacts: "zstd" (default), "lz4",
	// "gzip" or "none".
	StagingCodec string `json:"staging_codec"`
	// ProgressEvery logs progress every N blocks in verbose mode.
	ProgressEvery int `json:"progress_every"`
}

// Storage selects an optional database load. Kind "" or "none" disables it.
type Storage struct {
	Kind string   `json:"kind"`
	DB   DBConfig `json:"db"`
}

// DBConfig configures the database load.
type DBConfig struct {
	// DSN is the driver-specific connection string.
	DSN string `json:"dsn"`
	// Table is the destination table, optionally schema-qualified.
	Table string `json:"table"`
	// AutoCreateTable creates Table with text columns when missing.
	AutoCreateTable bool `json:"auto_create_table"`
	// BatchSize is the number of rows per COPY/bulk batch.
	BatchSize int `json:"batch_size"`
}

// Metrics selects the metrics backend: "none", "pushgateway" or "datadog".
type Metrics struct {
	Backend        string `json:"backend"`
	PushgatewayURL string `json:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr"`
	// Options carries backend-specific extras, e.g. "namespace" (string) and
	// "tags" ([]string) for datadog.
	Options Options `json:"options"`
}

// Default returns the built-in configuration.
func Default() Pipeline {
	return Pipeline{
		Job:        "splitvep",
		Source:     Source{Kind: "file", HTTP: SourceHTTP{MaxRetries: 3}},
		Annotation: Annotation{Tag: "CSQ"},
		Output:     Output{Format: "csv", Codec: "gzip"},
		Runtime: Runtime{
			BlockSize:     100_000,
			Staging:       "disk",
			StagingCodec:  "zstd",
			ProgressEvery: 50,
		},
		Storage: Storage{Kind: "none", DB: DBConfig{BatchSize: 5000}},
		Metrics: Metrics{Backend: "none", Options: Options{}},
	}
}

// Load returns Default with the environment applied and, when path is not
// empty, the config file decoded on top. Unknown fields are rejected.
func Load(path string) (Pipeline, error) {
	p := Default()
	ApplyEnv(&p)
	if path == "" {
		return p, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return p, nil
}

// ApplyEnv overrides p with SPLITVEP_* environment variables that are set.
func ApplyEnv(p *Pipeline) {
	p.Runtime.BlockSize = getenvInt("SPLITVEP_BLOCK_SIZE", p.Runtime.BlockSize)
	p.Runtime.Workers = getenvInt("SPLITVEP_WORKERS", p.Runtime.Workers)
	p.Storage.DB.BatchSize = getenvInt("SPLITVEP_BATCH_SIZE", p.Storage.DB.BatchSize)

	p.Runtime.ScratchDir = getenvString("SPLITVEP_SCRATCH_DIR", p.Runtime.ScratchDir)
	p.Storage.DB.DSN = getenvString("SPLITVEP_DSN", p.Storage.DB.DSN)
	p.Metrics.Backend = getenvString("SPLITVEP_METRICS_BACKEND", p.Metrics.Backend)
	p.Metrics.PushgatewayURL = getenvString("PUSHGATEWAY_URL", p.Metrics.PushgatewayURL)
	p.Metrics.DatadogAddr = getenvString("DD_DOGSTATSD_URL", p.Metrics.DatadogAddr)
}

// getenvInt returns the integer value of k, or def when unset or invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

func getenvString(k, def string) string {
	if s := os.Getenv(k); s != "" {
		return s
	}
	return def
}

// PickInt chooses a when it is positive, otherwise b. Flag handling uses it
// to let an unset (zero) flag fall through to the config value.
func PickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}

// Options fetches typed values from a free-form JSON object. Missing keys
// and unexpected types yield the provided default.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return def
}

// Int returns the int value for key or def. encoding/json decodes numbers as
// float64, which is accepted and truncated.
func (o Options) Int(key string, def int) int {
	switch n := o[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}

// StringSlice returns the strings of an array value for key. Non-string
// elements are skipped. It returns nil when key is missing.
func (o Options) StringSlice(key string) []string {
	switch vv := o[key].(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	}
	return nil
}

// UnmarshalJSON decodes a missing or null object to an empty, non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
