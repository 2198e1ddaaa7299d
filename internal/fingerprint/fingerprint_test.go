package fingerprint

import (
	"slices"
	"testing"

	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/dsl"
	"github.com/hlop3z/xpdb/internal/testutil"
)

func schema(t *testing.T, extra ...dsl.ColumnBuilder) *ast.Schema {
	t.Helper()
	var users *ast.TableDef
	users = dsl.Table("users", append([]dsl.ColumnBuilder{
		dsl.UUIDPK("id"),
		dsl.Varchar("email").Unique(),
	}, extra...)...)
	posts := dsl.Table("posts",
		dsl.UUIDPK("id"),
		dsl.UUID("authorId").References(func() *ast.ColumnDef { return users.Col("id") }),
	)
	s, err := dsl.Schema(users, posts)
	testutil.AssertNoError(t, err)
	return s
}

func TestComputeIsDeterministic(t *testing.T) {
	a, err := Compute(schema(t))
	testutil.AssertNoError(t, err)
	b, err := Compute(schema(t))
	testutil.AssertNoError(t, err)

	if a.Root != b.Root {
		t.Errorf("roots differ: %s vs %s", a.Root, b.Root)
	}
	if len(a.Root) != 64 {
		t.Errorf("root %q is not a sha256 hex digest", a.Root)
	}
	if got := a.Short(); len(got) != ShortLen || got != a.Root[:ShortLen] {
		t.Errorf("Short() = %q", got)
	}
	if len(a.Tables) != 2 || len(a.Tables["posts"].Columns) != 2 {
		t.Errorf("unexpected drill-down: %+v", a.Tables)
	}
}

func TestComputeEmpty(t *testing.T) {
	a, err := Compute(nil)
	testutil.AssertNoError(t, err)
	b, err := Compute(ast.NewSchema())
	testutil.AssertNoError(t, err)
	if a.Root != b.Root || a.Root == "" {
		t.Errorf("empty schemas should share a fingerprint: %q %q", a.Root, b.Root)
	}
}

func TestComputeDetectsChanges(t *testing.T) {
	base, err := Compute(schema(t))
	testutil.AssertNoError(t, err)

	tests := []struct {
		name  string
		extra dsl.ColumnBuilder
	}{
		{"added column", dsl.Text("bio")},
		{"not null", dsl.Text("bio").NotNull()},
		{"default", dsl.Text("bio").Default("x")},
	}

	seen := map[string]bool{base.Root: true}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Compute(schema(t, tt.extra))
			testutil.AssertNoError(t, err)
			if seen[h.Root] {
				t.Errorf("fingerprint %s collides with an earlier schema", h.Short())
			}
			seen[h.Root] = true
			if h.Tables["posts"].Hash != base.Tables["posts"].Hash {
				t.Error("unchanged table hash moved")
			}
		})
	}
}

func TestCompare(t *testing.T) {
	old, err := Compute(schema(t))
	testutil.AssertNoError(t, err)

	s := schema(t, dsl.Text("bio"))
	testutil.AssertNoError(t, s.Add(dsl.Table("tags", dsl.UUIDPK("id"))))
	cur, err := Compute(s)
	testutil.AssertNoError(t, err)

	c := Compare(old, cur)
	if c.Match {
		t.Fatal("expected mismatch")
	}
	if !slices.Equal(c.Added, []string{"tags"}) || !slices.Equal(c.Modified, []string{"users"}) || len(c.Removed) != 0 {
		t.Errorf("Compare() = %+v", c)
	}

	back := Compare(cur, old)
	if !slices.Equal(back.Removed, []string{"tags"}) {
		t.Errorf("reverse Compare() = %+v", back)
	}

	if !Compare(old, old).Match {
		t.Error("a fingerprint must match itself")
	}
}
