package output

import (
	"reflect"
	"testing"

	"splitvep/internal/vcf"
)

func TestFormat_HeaderAndRow(t *testing.T) {
	t.Parallel()

	schema := vcf.Schema{"Allele", "Gene", "SIFT"}
	row := vcf.Row{Chrom: "chr1", Pos: "100", Ref: "A", Alt: "T", Values: []string{"T", "ENSG1", ""}}

	tests := []struct {
		name       string
		format     Format
		wantHeader string
		wantRow    string
	}{
		{
			name:       "csv_keeps_empty",
			format:     CSV(),
			wantHeader: "CHROM,POS,REF,ALT,Allele,Gene,SIFT\n",
			wantRow:    "chr1,100,A,T,T,ENSG1,\n",
		},
		{
			name:       "tsv_substitutes_dot",
			format:     TSV(),
			wantHeader: "CHROM\tPOS\tREF\tALT\tAllele\tGene\tSIFT\n",
			wantRow:    "chr1\t100\tA\tT\tT\tENSG1\t.\n",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := string(tc.format.Header(schema)); got != tc.wantHeader {
				t.Fatalf("header = %q, want %q", got, tc.wantHeader)
			}
			if got := string(tc.format.AppendRow(nil, row)); got != tc.wantRow {
				t.Fatalf("row = %q, want %q", got, tc.wantRow)
			}
		})
	}
}

func TestByName(t *testing.T) {
	t.Parallel()

	f, err := ByName("TSV", nil)
	if err != nil || f.Delimiter != '\t' || f.Empty != "." {
		t.Fatalf("ByName(TSV) = %+v, %v", f, err)
	}

	none := ""
	f, err = ByName("tsv", &none)
	if err != nil || f.Empty != "" {
		t.Fatalf("override empty: %+v, %v", f, err)
	}

	na := "NA"
	f, err = ByName("csv", &na)
	if err != nil || f.Empty != "NA" || f.Delimiter != ',' {
		t.Fatalf("csv with NA: %+v, %v", f, err)
	}

	if _, err := ByName("xlsx", nil); err == nil {
		t.Fatal("expected error for unknown format")
	}

	if got := CSV().Ext("gz"); got != ".csv.gz" {
		t.Fatalf("Ext = %q", got)
	}
}

func TestSplitRow(t *testing.T) {
	t.Parallel()

	got := TSV().SplitRow("chr1\t100\tA\tT\t.\tG")
	want := []string{"chr1", "100", "A", "T", "", "G"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitRow = %q, want %q", got, want)
	}
}
