package sqlite

import (
	"context"
	"testing"

	"splitvep/internal/storage"
)

func newRepo(t *testing.T, table string) *Repository {
	t.Helper()
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: ":memory:", Table: table})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(closeFn)
	return r
}

func TestStorageNew_CreateCopyQuery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo, err := storage.New(ctx, storage.Config{Kind: "sqlite", DSN: ":memory:", Table: "csq"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer repo.Close()

	cols := []string{"chrom", "pos", "gene"}
	def := storage.TableDef{Table: "csq", Columns: cols}
	if err := storage.EnsureTable(ctx, "sqlite", repo, def); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	// IF NOT EXISTS makes a second bootstrap a no-op.
	if err := storage.EnsureTable(ctx, "sqlite", repo, def); err != nil {
		t.Fatalf("EnsureTable again: %v", err)
	}

	n, err := repo.CopyFrom(ctx, cols, [][]any{
		{"chr1", "100", "ENSG1"},
		{"chr1", "100", nil},
	})
	if err != nil || n != 2 {
		t.Fatalf("CopyFrom = %d, %v; want 2", n, err)
	}

	w, ok := repo.(*wrappedRepo)
	if !ok {
		t.Fatalf("repo is %T", repo)
	}
	var total, nulls int
	if err := w.db.QueryRowContext(ctx, `SELECT COUNT(*), SUM(gene IS NULL) FROM csq`).Scan(&total, &nulls); err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 2 || nulls != 1 {
		t.Fatalf("total/nulls = %d/%d, want 2/1", total, nulls)
	}
}

func TestCopyFrom_RollsBackOnBadRow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := newRepo(t, "t")
	stmt, err := CreateTableSQL(storage.TableDef{Table: "t", Columns: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("CreateTableSQL: %v", err)
	}
	if err := r.Exec(ctx, stmt); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = r.CopyFrom(ctx, []string{"a", "b"}, [][]any{{"1", "2"}, {"only-one"}})
	if err == nil {
		t.Fatal("expected error for short row")
	}
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM t`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("rows after rollback = %d, want 0", n)
	}
}

func TestCopyFrom_EdgeCases(t *testing.T) {
	t.Parallel()

	r := newRepo(t, "t")
	if n, err := r.CopyFrom(context.Background(), []string{"a"}, nil); n != 0 || err != nil {
		t.Fatalf("empty CopyFrom = %d, %v", n, err)
	}
	if _, err := r.CopyFrom(context.Background(), nil, [][]any{{"x"}}); err == nil {
		t.Fatal("expected error for empty columns")
	}
	if err := r.Exec(context.Background(), "  "); err != nil {
		t.Fatalf("blank Exec: %v", err)
	}
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	got, err := CreateTableSQL(storage.TableDef{Table: "main.csq", Columns: []string{"a"}})
	if err != nil {
		t.Fatalf("CreateTableSQL: %v", err)
	}
	if want := "CREATE TABLE IF NOT EXISTS \"main\".\"csq\" (\n  \"a\" TEXT\n);"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if _, err := CreateTableSQL(storage.TableDef{Table: "t"}); err == nil {
		t.Fatal("expected error for no columns")
	}
}

