package runtime

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/hlop3z/xpdb/internal/alerr"
)

// JSErrorInfo is the position and message pulled out of a goja error.
type JSErrorInfo struct {
	Message string
	Line    int
	Column  int
}

// ParseJSError extracts the message and source position from a goja error.
func ParseJSError(err error) *JSErrorInfo {
	if err == nil {
		return nil
	}
	info := &JSErrorInfo{Message: err.Error()}

	var syntaxErr *goja.CompilerSyntaxError
	if errors.As(err, &syntaxErr) {
		info.Message = syntaxErr.Message
		if syntaxErr.File != nil {
			pos := syntaxErr.File.Position(syntaxErr.Offset)
			info.Line = pos.Line
			info.Column = pos.Column
		}
		return info
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		if v := exception.Value(); v != nil {
			info.Message = v.String()
		}
		// Native frames have no line; the first JS frame is the call site.
		for _, frame := range exception.Stack() {
			if pos := frame.Position(); pos.Line > 0 {
				info.Line = pos.Line
				info.Column = pos.Column
				break
			}
		}
		if info.Line == 0 {
			// Compile errors arrive as a frameless SyntaxError.
			info.Line, info.Column = parseLineCol(info.Message)
		}
		return info
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		info.Message = fmt.Sprintf("execution interrupted: %v", interrupted.Value())
	}
	return info
}

// parseLineCol reads goja's "Line X:Y" syntax error position.
func parseLineCol(msg string) (line, col int) {
	m := lineColPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, 0
	}
	line, _ = strconv.Atoi(m[1])
	col, _ = strconv.Atoi(m[2])
	return line, col
}

var lineColPattern = regexp.MustCompile(`Line (\d+):(\d+)`)

// SourceLine returns line n (1-based) of code, or "".
func SourceLine(code string, n int) string {
	lines := strings.Split(code, "\n")
	if n < 1 || n > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[n-1], "\r")
}

// wrapJSError converts a goja error into an alerr.Error. A Go error thrown
// from a builder keeps its own code; everything else is ErrJSExecution.
func (s *Sandbox) wrapJSError(err error, message string) error {
	if s.failure != nil {
		failure := s.failure
		s.failure = nil
		if e, ok := alerr.As(failure); ok && s.file != "" && e.Get("file") == "" {
			e.WithFile(s.file)
		}
		return failure
	}

	info := ParseJSError(err)
	e := alerr.Wrap(alerr.ErrJSExecution, err, message)
	if s.file != "" {
		e.WithFile(s.file)
	}
	if info.Line > 0 {
		e.With("line", info.Line).With("column", info.Column)
		if src := SourceLine(s.code, info.Line); src != "" {
			e.With("source", strings.TrimSpace(src))
		}
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		e.WithHelp("schema files must finish within " + s.timeout.String())
	}
	return e
}
