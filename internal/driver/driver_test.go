package driver

import (
	"database/sql"
	sqldriver "database/sql/driver"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/testutil"
)

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	err := r.Register(Descriptor{Name: "Fake", SQLDriver: "fake", Capabilities: Capabilities{Dialect: "pg"}})
	testutil.AssertNoError(t, err)

	d, err := r.Lookup("fake")
	testutil.AssertNoError(t, err)
	if d.Name != "fake" || d.Capabilities.Dialect != "postgres" {
		t.Errorf("Lookup() = %+v", d)
	}

	err = r.Register(Descriptor{Name: "FAKE", SQLDriver: "fake", Capabilities: Capabilities{Dialect: "postgres"}})
	testutil.AssertError(t, err, alerr.ErrDuplicateDriver)
}

func TestRegistryRegisterInvalid(t *testing.T) {
	tests := []struct {
		name string
		desc Descriptor
		code alerr.Code
	}{
		{"empty name", Descriptor{SQLDriver: "x", Capabilities: Capabilities{Dialect: "sqlite"}}, alerr.ErrInvalidIdentifier},
		{"empty sql driver", Descriptor{Name: "x", Capabilities: Capabilities{Dialect: "sqlite"}}, alerr.ErrInvalidIdentifier},
		{"unknown dialect", Descriptor{Name: "x", SQLDriver: "x", Capabilities: Capabilities{Dialect: "oracle"}}, alerr.ErrUnsupportedDriver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertError(t, NewRegistry().Register(tt.desc), tt.code)
		})
	}
}

func TestRegistryLookupUnknown(t *testing.T) {
	_, err := Builtin().Lookup("mysq")
	testutil.AssertError(t, err, alerr.ErrUnsupportedDriver)

	e, ok := alerr.As(err)
	if !ok {
		t.Fatalf("expected *alerr.Error, got %T", err)
	}
	if !slices.Contains(e.Helps(), `did you mean "mysql"?`) {
		t.Errorf("expected suggestion, got %v", e.Helps())
	}
}

func TestBuiltin(t *testing.T) {
	r := Builtin()

	if got, want := r.Names(), []string{"mysql", "pgx", "postgres", "sqlite", "sqlite3"}; !slices.Equal(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}

	tests := []struct {
		name     string
		dialect  string
		embedded bool
		txDDL    bool
	}{
		{"postgres", "postgres", false, true},
		{"pgx", "postgres", false, true},
		{"sqlite", "sqlite", true, true},
		{"sqlite3", "sqlite", true, true},
		{"mysql", "mysql", false, false},
	}

	drivers := sql.Drivers()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := r.Lookup(tt.name)
			testutil.AssertNoError(t, err)
			c := d.Capabilities
			if c.Dialect != tt.dialect || c.Embedded != tt.embedded || c.TransactionalDDL != tt.txDDL {
				t.Errorf("Capabilities = %+v", c)
			}
			if c.Transient == nil {
				t.Error("missing transient classifier")
			}
			if tt.embedded != (c.Settle() == EmbeddedSettle) {
				t.Errorf("Settle() = %v", c.Settle())
			}
			if !slices.Contains(drivers, d.SQLDriver) {
				t.Errorf("database/sql driver %q is not registered", d.SQLDriver)
			}
		})
	}
}

func TestSetDefault(t *testing.T) {
	custom := NewRegistry()
	prev := SetDefault(custom)
	t.Cleanup(func() { SetDefault(prev) })

	if Default() != custom {
		t.Error("Default() did not return the installed registry")
	}
	if prev == nil || prev.Len() != 5 {
		t.Errorf("previous default should hold the built-in drivers")
	}
}

// -----------------------------------------------------------------------------
// Transient classification
// -----------------------------------------------------------------------------

func TestTransientClassifiers(t *testing.T) {
	badConn := fmt.Errorf("query: %w", sqldriver.ErrBadConn)

	tests := []struct {
		name     string
		classify func(error) bool
		err      error
		want     bool
	}{
		{"pq serialization failure", pqTransient, &pq.Error{Code: "40001"}, true},
		{"pq cannot connect now", pqTransient, &pq.Error{Code: "57P03"}, true},
		{"pq unique violation", pqTransient, &pq.Error{Code: "23505"}, false},
		{"pq bad conn", pqTransient, badConn, true},
		{"pgx connection failure", pgxTransient, &pgconn.PgError{Code: "08006"}, true},
		{"pgx wrapped deadlock", pgxTransient, fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"pgx syntax error", pgxTransient, &pgconn.PgError{Code: "42601"}, false},
		{"mysql deadlock", mysqlTransient, &mysql.MySQLError{Number: 1213}, true},
		{"mysql lock wait", mysqlTransient, &mysql.MySQLError{Number: 1205}, true},
		{"mysql duplicate key", mysqlTransient, &mysql.MySQLError{Number: 1062}, false},
		{"mysql invalid conn", mysqlTransient, mysql.ErrInvalidConn, true},
		{"mattn locked", mattnTransient, errors.New("database is locked"), true},
		{"mattn syntax", mattnTransient, errors.New(`near "SELEC": syntax error`), false},
		{"modernc bad conn", moderncTransient, badConn, true},
		{"modernc other", moderncTransient, errors.New("no such table: users"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.classify(tt.err); got != tt.want {
				t.Errorf("classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCapabilitiesSettle(t *testing.T) {
	tests := []struct {
		name string
		caps Capabilities
		want time.Duration
	}{
		{"network", Capabilities{}, 0},
		{"embedded", Capabilities{Embedded: true}, EmbeddedSettle},
		{"embedded override", Capabilities{Embedded: true, SettleDelay: time.Second}, time.Second},
		{"network override", Capabilities{SettleDelay: time.Millisecond}, time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.caps.Settle(); got != tt.want {
				t.Errorf("Settle() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCapabilitiesIsTransient(t *testing.T) {
	var c Capabilities
	if c.IsTransient(errors.New("x")) {
		t.Error("nil classifier must never retry")
	}
	c.Transient = func(error) bool { return true }
	if c.IsTransient(nil) {
		t.Error("nil error is never transient")
	}
	if !c.IsTransient(errors.New("x")) {
		t.Error("classifier not consulted")
	}
}
