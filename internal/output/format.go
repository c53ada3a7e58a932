// Package output renders decoded rows as delimited text.
//
// Presentation is kept apart from parsing: the decoder always yields raw
// values, and a Format decides the delimiter and how empty values are shown.
// Two formats ship by default, mirroring the two historical emitters:
//
//   - csv: comma-delimited, empty values written as-is.
//   - tsv: tab-delimited, empty values replaced by ".".
package output

import (
	"bytes"
	"fmt"
	"strings"

	"splitvep/internal/vcf"
)

// Positional column names written ahead of the schema fields.
var Positional = []string{"CHROM", "POS", "REF", "ALT"}

// Format describes how rows are rendered.
type Format struct {
	Name      string // "csv" or "tsv"
	Delimiter byte
	// Empty replaces empty values in data rows. "" leaves them empty.
	Empty string
}

// CSV returns the comma-delimited format.
func CSV() Format { return Format{Name: "csv", Delimiter: ','} }

// TSV returns the tab-delimited format with "." for empty values.
func TSV() Format { return Format{Name: "tsv", Delimiter: '\t', Empty: "."} }

// ByName resolves a format name. A non-nil empty overrides the format's
// default placeholder.
func ByName(name string, empty *string) (Format, error) {
	var f Format
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "csv":
		f = CSV()
	case "tsv":
		f = TSV()
	default:
		return Format{}, fmt.Errorf("output: unknown format %q (want csv or tsv)", name)
	}
	if empty != nil {
		f.Empty = *empty
	}
	return f, nil
}

// Ext returns the file extension for the format including the compression
// suffix, e.g. ".csv.gz".
func (f Format) Ext(compressed string) string {
	ext := "." + f.Name
	if compressed != "" {
		ext += "." + compressed
	}
	return ext
}

// Header renders the column header row, terminated by '\n'.
func (f Format) Header(schema vcf.Schema) []byte {
	var b bytes.Buffer
	for i, name := range Positional {
		if i > 0 {
			b.WriteByte(f.Delimiter)
		}
		b.WriteString(name)
	}
	for _, name := range schema {
		b.WriteByte(f.Delimiter)
		b.WriteString(name)
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// AppendRow appends the rendered row, terminated by '\n', to dst.
func (f Format) AppendRow(dst []byte, r vcf.Row) []byte {
	dst = f.appendField(dst, r.Chrom)
	dst = append(dst, f.Delimiter)
	dst = f.appendField(dst, r.Pos)
	dst = append(dst, f.Delimiter)
	dst = f.appendField(dst, r.Ref)
	dst = append(dst, f.Delimiter)
	dst = f.appendField(dst, r.Alt)
	for _, v := range r.Values {
		dst = append(dst, f.Delimiter)
		dst = f.appendField(dst, v)
	}
	return append(dst, '\n')
}

func (f Format) appendField(dst []byte, v string) []byte {
	if v == "" {
		return append(dst, f.Empty...)
	}
	return append(dst, v...)
}

// SplitRow splits a rendered row (without its terminator) back into fields,
// mapping the empty placeholder to "". It is the inverse of AppendRow for
// values that do not contain the delimiter.
func (f Format) SplitRow(line string) []string {
	fields := strings.Split(line, string(f.Delimiter))
	if f.Empty == "" {
		return fields
	}
	for i, v := range fields {
		if v == f.Empty {
			fields[i] = ""
		}
	}
	return fields
}
