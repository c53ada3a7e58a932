package vcf

import "strings"

// Row is one output row: the positional fields of a record followed by one
// annotation entry's values in schema order.
type Row struct {
	Chrom  string
	Pos    string
	Ref    string
	Alt    string
	Values []string
}

// DecodeStats counts what a Decoder saw. Counts are plain ints: a Decoder
// belongs to a single worker and the caller folds the totals together.
type DecodeStats struct {
	Records      int64 // data records decoded
	NoAnnotation int64 // records without a tag= sub-field
	Entries      int64 // entries inspected
	Repaired     int64 // entries one value short, padded with ""
	Dropped      int64 // entries whose width did not match the schema
	Rows         int64 // rows emitted
}

// Add folds o into s.
func (s *DecodeStats) Add(o DecodeStats) {
	s.Records += o.Records
	s.NoAnnotation += o.NoAnnotation
	s.Entries += o.Entries
	s.Repaired += o.Repaired
	s.Dropped += o.Dropped
	s.Rows += o.Rows
}

// Decoder expands annotation blobs into rows aligned to a Schema.
// A Decoder is not safe for concurrent use; the Schema it wraps is.
type Decoder struct {
	schema Schema
	prefix string // "CSQ="
	Stats  DecodeStats
}

// NewDecoder returns a Decoder for the given schema and INFO tag.
func NewDecoder(schema Schema, tag string) *Decoder {
	if tag == "" {
		tag = DefaultTag
	}
	return &Decoder{schema: schema, prefix: tag + "="}
}

// Decode calls emit once per annotation entry of rec that survives the width
// check. Malformed entries are counted and skipped; Decode never fails.
//
// The Row passed to emit is only valid for the duration of the call.
func (d *Decoder) Decode(rec RawRecord, emit func(Row)) {
	d.Stats.Records++

	found := false
	for _, sub := range strings.Split(rec.Info, ";") {
		if !strings.HasPrefix(sub, d.prefix) {
			continue
		}
		found = true

		blob := sub[len(d.prefix):]
		if blob == "" {
			continue
		}
		for _, entry := range strings.Split(blob, ",") {
			d.Stats.Entries++
			values, ok := d.align(entry)
			if !ok {
				d.Stats.Dropped++
				continue
			}
			d.Stats.Rows++
			emit(Row{
				Chrom:  rec.Chrom,
				Pos:    rec.Pos,
				Ref:    rec.Ref,
				Alt:    rec.Alt,
				Values: values,
			})
		}
	}

	if !found {
		d.Stats.NoAnnotation++
	}
}

// align splits entry on '|' and applies the repair rule: exactly one value
// short gets an empty trailing value, any other width mismatch is rejected.
// An empty entry string carries no values and is rejected.
func (d *Decoder) align(entry string) ([]string, bool) {
	if entry == "" {
		return nil, false
	}
	n := len(d.schema)
	values := strings.Split(entry, "|")
	switch len(values) {
	case n:
		return values, true
	case n - 1:
		d.Stats.Repaired++
		return append(values, ""), true
	default:
		return nil, false
	}
}
