package vcf

import "strings"

// MinColumns is the number of fixed VCF columns a data line must carry:
// CHROM POS ID REF ALT QUAL FILTER INFO.
const MinColumns = 8

// RawRecord holds the positional fields of one data line that end up in
// every output row, plus the undecoded INFO column.
type RawRecord struct {
	Chrom string
	Pos   string
	Ref   string
	Alt   string
	Info  string
}

// IsHeader reports whether line is a header/comment line.
func IsHeader(line string) bool {
	return strings.HasPrefix(line, "#")
}

// ParseRecord splits a tab-delimited data line. It returns false when the
// line has fewer than MinColumns columns. Only the first eight columns are
// inspected; sample columns are never split.
func ParseRecord(line string) (RawRecord, bool) {
	line = trimEOL(line)

	var cols [MinColumns]string
	rest := line
	for i := 0; i < MinColumns; i++ {
		if i == MinColumns-1 {
			// INFO ends at the next tab (FORMAT) or end of line.
			if j := strings.IndexByte(rest, '\t'); j >= 0 {
				rest = rest[:j]
			}
			cols[i] = rest
			break
		}
		j := strings.IndexByte(rest, '\t')
		if j < 0 {
			return RawRecord{}, false
		}
		cols[i] = rest[:j]
		rest = rest[j+1:]
	}

	return RawRecord{
		Chrom: cols[0],
		Pos:   cols[1],
		Ref:   cols[3],
		Alt:   cols[4],
		Info:  cols[7],
	}, true
}
