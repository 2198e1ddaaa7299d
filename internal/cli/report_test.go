package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hlop3z/xpdb/internal/alerr"
)

func plain(t *testing.T) {
	t.Helper()
	prev := SetDefault(&Config{Mode: ModePlain, Writer: os.Stdout})
	t.Cleanup(func() { SetDefault(prev) })
}

func TestFormatErrorGeneric(t *testing.T) {
	plain(t)
	got := FormatError(errors.New("boom"))
	if got != "❌ Error: boom\n" {
		t.Errorf("FormatError() = %q", got)
	}
	if FormatError(nil) != "" {
		t.Error("FormatError(nil) should be empty")
	}
}

func TestFormatErrorStructured(t *testing.T) {
	plain(t)
	err := alerr.New(alerr.ErrJSExecution, "JavaScript execution failed").
		WithFile("schema.js").
		With("line", 12).
		With("column", 4).
		With("source", "id: uuidPK(),,").
		WithTable("users").
		WithHelp("remove the extra comma")

	want := strings.Join([]string{
		"❌ Error: [E5001] JavaScript execution failed",
		"  --> schema.js:12:4",
		"   |",
		"12 | id: uuidPK(),,",
		"   |",
		"   | table: users",
		"help: remove the extra comma",
		"",
	}, "\n")
	if got := FormatError(err); got != want {
		t.Errorf("FormatError() mismatch:\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestFormatErrorWrapped(t *testing.T) {
	plain(t)
	inner := alerr.Wrap(alerr.ErrSQLExecution, errors.New("disk full"), "statement failed").WithDialect("sqlite")
	got := FormatError(inner)
	for _, want := range []string{"[E4001] statement failed", "dialect: sqlite", "cause: disk full"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatError() missing %q:\n%s", want, got)
		}
	}
}

func TestCleanCause(t *testing.T) {
	got := cleanCause("TypeError: not a column at github.com/hlop3z/xpdb/internal/runtime.(*Sandbox).tableFunc (native)")
	if got != "TypeError: not a column" {
		t.Errorf("cleanCause() = %q", got)
	}
}

func TestFormatLines(t *testing.T) {
	plain(t)
	wd, err := filepath.Abs(".")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"written", FormatWritten(filepath.Join(wd, "generated", "types.ts"), ""), "✓ wrote " + filepath.Join("generated", "types.ts") + "\n"},
		{"written dialect", FormatWritten("/elsewhere/create.mysql.sql", "mysql"), "✓ wrote /elsewhere/create.mysql.sql (mysql)\n"},
		{"unchanged", FormatUnchanged("m.sql", "sqlite"), "• unchanged m.sql (sqlite)\n"},
		{"warning", FormatWarning(`unknown dialect "oracle"`), "⚠ warning: unknown dialect \"oracle\"\n"},
		{"count one", FormatCount(1, "file", "files"), "1 file"},
		{"count many", FormatCount(3, "file", "files"), "3 files"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestDetectMode(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if DetectMode(os.Stdout) != ModePlain {
		t.Error("NO_COLOR must force plain output")
	}

	t.Setenv("NO_COLOR", "")
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if DetectMode(f) != ModePlain {
		t.Error("a regular file is not a terminal")
	}
}

func TestPlainHasNoEscapes(t *testing.T) {
	plain(t)
	for _, s := range []string{Error("x"), Warning("x"), Success("x"), Code("x"), FilePath("x"), Dim("x"), Accent("x"), Help("x")} {
		if strings.Contains(s, "\x1b[") {
			t.Errorf("%q contains ANSI escapes in plain mode", s)
		}
	}
}
