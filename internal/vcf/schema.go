// Package vcf decodes the parts of a VEP-annotated VCF that the splitter
// needs: the annotation schema declared in the header and the positional
// fields plus annotation entries of each data line.
//
// Nothing here performs I/O. Callers feed lines (with or without their
// terminator) and receive schemas and rows back; all malformed annotation
// content degrades to "no rows" rather than an error.
package vcf

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultTag is the INFO key VEP uses for consequence annotations.
const DefaultTag = "CSQ"

const (
	declarationPrefix = "##INFO=<ID="
	formatMarker      = "Format: "
	declarationSuffix = `">`
)

var (
	// ErrNoSchema is returned when input ends without a schema declaration.
	ErrNoSchema = errors.New("vcf: no annotation schema declaration found")

	// ErrMalformedDeclaration is returned when a line carries the declaration
	// prefix but no usable field list.
	ErrMalformedDeclaration = errors.New("vcf: malformed annotation declaration")
)

// Schema is the ordered list of annotation field names. Order defines output
// column order; duplicate names are allowed. A Schema is never modified after
// ParseDeclaration returns it.
type Schema []string

// Len returns the number of fields.
func (s Schema) Len() int { return len(s) }

// IsDeclaration reports whether line is the header line declaring the
// annotation format for tag, e.g. `##INFO=<ID=CSQ,...`.
func IsDeclaration(line, tag string) bool {
	return strings.HasPrefix(line, declarationPrefix+tag+",")
}

// ParseDeclaration extracts the schema from a declaration line:
//
//	##INFO=<ID=CSQ,Number=.,Type=String,Description="Consequence annotations from Ensembl VEP. Format: Allele|Consequence|SYMBOL">
//
// yields [Allele Consequence SYMBOL]. The line terminator is optional.
func ParseDeclaration(line, tag string) (Schema, error) {
	line = trimEOL(line)
	if !IsDeclaration(line, tag) {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrMalformedDeclaration, declarationPrefix+tag)
	}

	i := strings.Index(line, formatMarker)
	if i < 0 {
		return nil, fmt.Errorf("%w: no %q marker", ErrMalformedDeclaration, strings.TrimSpace(formatMarker))
	}
	payload := line[i+len(formatMarker):]
	payload = strings.TrimSuffix(payload, declarationSuffix)
	payload = strings.TrimSuffix(payload, ">")
	payload = strings.TrimSuffix(payload, `"`)
	if strings.TrimSpace(payload) == "" {
		return nil, fmt.Errorf("%w: empty field list", ErrMalformedDeclaration)
	}

	return Schema(strings.Split(payload, "|")), nil
}

// trimEOL strips one trailing "\n" or "\r\n".
func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
