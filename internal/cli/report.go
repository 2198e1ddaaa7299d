package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hlop3z/xpdb/internal/alerr"
)

// ErrorPrefix starts every error report.
const ErrorPrefix = "❌ Error: "

// FormatError renders err for stderr. Structured errors get their code,
// location, source line, context and help; anything else is one line.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	var ae *alerr.Error
	if !errors.As(err, &ae) {
		return Error(ErrorPrefix) + err.Error() + "\n"
	}

	var b strings.Builder
	b.WriteString(Error(ErrorPrefix))
	b.WriteString("[" + Code(string(ae.GetCode())) + "] ")
	b.WriteString(ae.GetMessage())
	b.WriteString("\n")

	file, line, col := ae.Get("file"), ae.Get("line"), ae.Get("column")
	if file != "" {
		loc := file
		if line != "" {
			loc += ":" + line
			if col != "" {
				loc += ":" + col
			}
		}
		fmt.Fprintf(&b, "  %s %s\n", render(stylePipe, "-->"), FilePath(loc))
	}

	gutter := "   "
	if src := ae.Get("source"); src != "" && line != "" {
		gutter = strings.Repeat(" ", len(line)+1)
		fmt.Fprintf(&b, "%s%s\n", gutter, Pipe())
		fmt.Fprintf(&b, "%s %s %s\n", render(stylePipe, line), Pipe(), src)
		fmt.Fprintf(&b, "%s%s\n", gutter, Pipe())
	}

	skip := map[string]bool{"file": true, "line": true, "column": true, "source": true, "helps": true}
	keys := make([]string, 0, len(ae.GetContext()))
	for k := range ae.GetContext() {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s%s %s: %s\n", gutter, Pipe(), k, ae.Get(k))
	}

	for _, help := range ae.Helps() {
		fmt.Fprintf(&b, "%s: %s\n", Help("help"), help)
	}
	if cause := ae.GetCause(); cause != nil {
		fmt.Fprintf(&b, "%s: %s\n", Dim("cause"), cleanCause(cause.Error()))
	}
	return b.String()
}

// cleanCause drops goja's native stack suffix.
func cleanCause(msg string) string {
	if i := strings.Index(msg, " at github.com"); i != -1 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}

// FormatWarning renders a warning line.
func FormatWarning(msg string) string {
	return Warning("⚠ warning") + ": " + msg + "\n"
}

// FormatWritten renders one generated file. dialect may be empty.
func FormatWritten(path, dialect string) string {
	line := Success("✓") + " wrote " + FilePath(relative(path))
	if dialect != "" {
		line += " " + Accent("("+dialect+")")
	}
	return line + "\n"
}

// FormatUnchanged renders a migration that already existed.
func FormatUnchanged(path, dialect string) string {
	line := Dim("• unchanged " + relative(path))
	if dialect != "" {
		line += " " + Dim("("+dialect+")")
	}
	return line + "\n"
}

// FormatCount pluralizes a count, e.g. "1 file" or "3 files".
func FormatCount(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}

// relative shortens path against the working directory when it is inside it.
func relative(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	wd, err := filepath.Abs(".")
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
