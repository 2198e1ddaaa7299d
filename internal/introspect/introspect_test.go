package introspect

import (
	"context"
	"errors"
	"testing"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/testutil"
)

// fakeIntrospector serves canned catalog data.
type fakeIntrospector struct {
	tables  []string
	columns map[string][]ColumnInfo
	fks     map[string][]ForeignKeyInfo
	err     error
}

func (f *fakeIntrospector) Dialect() string { return "postgres" }

func (f *fakeIntrospector) TableNames(context.Context) ([]string, error) {
	return f.tables, nil
}

func (f *fakeIntrospector) TableColumns(_ context.Context, table string) ([]ColumnInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.columns[table], nil
}

func (f *fakeIntrospector) TableForeignKeys(_ context.Context, table string) ([]ForeignKeyInfo, error) {
	return f.fks[table], nil
}

func (f *fakeIntrospector) ColumnType(col ColumnInfo) ast.Type {
	return MapPostgresType(col)
}

func strPtr(s string) *string { return &s }

func TestDetectSchema(t *testing.T) {
	f := &fakeIntrospector{
		tables: []string{"orders", "ghost"},
		columns: map[string][]ColumnInfo{
			"orders": {
				{Name: "id", NativeType: "uuid", Nullable: true, PrimaryKey: true, Unique: true},
				{Name: "customer_id", NativeType: "uuid", Nullable: true},
				{Name: "region", NativeType: "text"},
				{Name: "note", NativeType: "text", Nullable: true, Default: strPtr("NULL::text")},
			},
		},
		fks: map[string][]ForeignKeyInfo{
			"orders": {
				{Name: "fk_orders_customer_id", Columns: []string{"customer_id"}, RefTable: "customers", RefColumns: []string{"id"}, OnDelete: "set null", OnUpdate: "NO ACTION"},
				{Name: "fk_composite", Columns: []string{"region", "id"}, RefTable: "regions", RefColumns: []string{"code", "id"}},
			},
		},
	}

	schema, err := DetectSchema(context.Background(), f)
	testutil.AssertNoError(t, err)

	if schema.Has("ghost") {
		t.Error("a table without columns is not reported")
	}

	orders := schema.Table("orders")
	id := orders.Col("id")
	if id.Nullable || id.Unique {
		t.Errorf("primary key should be NOT NULL and not separately unique: %+v", id)
	}

	customer := orders.Col("customerId")
	if customer == nil || customer.Ref == nil {
		t.Fatal("customer_id should carry a reference")
	}
	if customer.Ref.OnDelete != "SET NULL" || customer.Ref.OnUpdate != "" {
		t.Errorf("actions = %q/%q", customer.Ref.OnDelete, customer.Ref.OnUpdate)
	}

	if orders.Col("region").Ref != nil {
		t.Error("composite keys are not mapped onto columns")
	}
	if orders.Col("note").Default != nil {
		t.Error("NULL default should read as no default")
	}
}

func TestDetectSchemaWrapsErrors(t *testing.T) {
	cause := errors.New("connection reset")
	f := &fakeIntrospector{tables: []string{"orders"}, err: cause}

	_, err := DetectSchema(context.Background(), f)
	testutil.AssertError(t, err, alerr.ErrIntrospection)
	if !errors.Is(err, cause) {
		t.Error("cause should stay reachable through the chain")
	}

	e, _ := alerr.As(err)
	if e.Get("table") != "orders" || e.Get("dialect") != "postgres" {
		t.Errorf("context = %v", e.GetContext())
	}
}
