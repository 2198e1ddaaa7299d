package alerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Constructor Tests
// -----------------------------------------------------------------------------

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    Code
		message string
	}{
		{"duplicate table", ErrDuplicateTable, "table users declared twice"},
		{"cyclic schema", ErrCyclicSchema, "foreign keys form a cycle"},
		{"unsupported operation", ErrUnsupportedOperation, "sqlite cannot alter column"},
		{"sql", ErrSQLExecution, "statement failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message)
			if err.GetCode() != tt.code {
				t.Errorf("code = %v, want %v", err.GetCode(), tt.code)
			}
			if err.GetMessage() != tt.message {
				t.Errorf("message = %v, want %v", err.GetMessage(), tt.message)
			}
			if err.GetCause() != nil {
				t.Error("expected nil cause for New()")
			}
			if err.GetStack() == "" {
				t.Error("expected stack trace to be captured")
			}
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("wrap existing error", func(t *testing.T) {
		cause := errors.New("database is locked")
		err := Wrap(ErrTransientExhausted, cause, "gave up after 5 attempts")

		if !errors.Is(err, cause) {
			t.Error("errors.Is should find the wrapped cause")
		}
		if !strings.Contains(err.Error(), "cause: database is locked") {
			t.Errorf("Error() = %q, want cause line", err.Error())
		}
	})

	t.Run("wrap nil behaves like New", func(t *testing.T) {
		err := Wrap(ErrSQLExecution, nil, "boom")
		if err.GetCause() != nil {
			t.Error("expected nil cause")
		}
	})
}

// -----------------------------------------------------------------------------
// Context Tests
// -----------------------------------------------------------------------------

func TestErrorContextFormatting(t *testing.T) {
	err := New(ErrUnsupportedOperation, "cannot alter column in place").
		WithTable("users").
		WithColumn("email").
		WithDialect("sqlite")

	want := "[E3002] cannot alter column in place\n  column: email\n  dialect: sqlite\n  table: users"
	if err.Error() != want {
		t.Errorf("Error() =\n%s\nwant\n%s", err.Error(), want)
	}
	if err.Get("dialect") != "sqlite" {
		t.Errorf("Get(dialect) = %q", err.Get("dialect"))
	}
	if err.Get("missing") != "" {
		t.Error("Get on a missing key should be empty")
	}
}

func TestWithHelp(t *testing.T) {
	err := New(ErrUnknownColumn, "unknown column").WithHelp("did you mean 'email'?").WithHelp("second")
	if got := err.Helps(); len(got) != 2 || got[0] != "did you mean 'email'?" {
		t.Errorf("Helps() = %v", got)
	}
}

// -----------------------------------------------------------------------------
// Matching Tests
// -----------------------------------------------------------------------------

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("connect: %w", New(ErrDialectMismatch, "sqlite driver cannot speak postgres"))

	if !Is(err, ErrDialectMismatch) {
		t.Error("Is should find the code through %w wrapping")
	}
	if Is(err, ErrUnsupportedDriver) {
		t.Error("Is should not match a different code")
	}
	if !errors.Is(err, New(ErrDialectMismatch, "other message")) {
		t.Error("errors.Is should match errors with the same code")
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Error("plain errors have no code")
	}
	if GetErrorCode(nil) != "" {
		t.Error("nil has no code")
	}
}

func TestAs(t *testing.T) {
	inner := New(ErrCyclicSchema, "cycle")
	if got, ok := As(fmt.Errorf("wrap: %w", inner)); !ok || got != inner {
		t.Error("As should return the wrapped *Error")
	}
	if _, ok := As(errors.New("plain")); ok {
		t.Error("As should fail for plain errors")
	}
}

func TestWrapSQL(t *testing.T) {
	err := WrapSQL(errors.New("no such table"), "introspect columns", "users")
	if err.GetCode() != ErrSQLExecution {
		t.Errorf("code = %s", err.GetCode())
	}
	if err.GetMessage() != "failed to introspect columns" {
		t.Errorf("message = %q", err.GetMessage())
	}
	if err.Get("table") != "users" {
		t.Errorf("table = %q", err.Get("table"))
	}
}

// -----------------------------------------------------------------------------
// Fuzzy Matching Tests
// -----------------------------------------------------------------------------

func TestSuggestSimilar(t *testing.T) {
	options := []string{"email", "name", "createdAt", "sqlite", "sqlite3"}

	tests := []struct {
		input string
		want  string
	}{
		{"emial", `did you mean "email"?`},
		{"nmae", `did you mean "name"?`},
		{"createdAT", `did you mean "createdAt"?`},
		{"created_at", `did you mean "createdAt"?`},
		{"sqlit", `did you mean "sqlite"?`},
		{"Email", `did you mean "email"?`},
		{"zzzzzzzzzz", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SuggestSimilar(tt.input, options); got != tt.want {
				t.Errorf("SuggestSimilar(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"café", "cafe", 1},
	}
	for _, tt := range tests {
		if got := editDistance([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
