package ripple

import (
	"errors"
	"fmt"
	"strings"

	perrors "github.com/pkg/errors"
)

// SourceLocation represents a location in source code
type SourceLocation struct {
	Filename string
	Line     int
	Column   int
	Length   int // Length of the syntax that produced the node
}

func (loc *SourceLocation) String() string {
	if loc == nil {
		return "?"
	}
	return fmt.Sprintf("%s:%d:%d", loc.Filename, loc.Line, loc.Column)
}

// SourceError represents an error with source location information
type SourceError struct {
	Inner    error
	Location *SourceLocation
	Source   string
}

// NewSourceError creates a new SourceError
func NewSourceError(inner error, location *SourceLocation, source string) *SourceError {
	return &SourceError{
		Inner:    inner,
		Location: location,
		Source:   source,
	}
}

func (e *SourceError) Unwrap() error {
	return e.Inner
}

func (e *SourceError) Error() string {
	if e.Location == nil {
		return e.Inner.Error()
	}
	return e.FormatWithHighlighting()
}

// FormatWithHighlighting returns the error followed by the offending source
// line with the location underlined.
func (e *SourceError) FormatWithHighlighting() string {
	lines := strings.Split(e.Source, "\n")
	if e.Location == nil || e.Location.Line < 1 || e.Location.Line > len(lines) {
		return e.Inner.Error()
	}

	const (
		red   = "\033[31m"
		blue  = "\033[34m"
		bold  = "\033[1m"
		reset = "\033[0m"
		dim   = "\033[2m"
	)

	var result strings.Builder
	fmt.Fprintf(&result, "%s%sError:%s %s\n", bold, red, reset, e.Inner)
	fmt.Fprintf(&result, "  %s%s--> %s%s\n", dim, blue, e.Location, reset)
	fmt.Fprintf(&result, " %s%s |%s\n", dim, padLeft("", 3), reset)

	startLine := max(1, e.Location.Line-1)
	endLine := min(len(lines), e.Location.Line+1)
	for i := startLine; i <= endLine; i++ {
		lineStr := padLeft(fmt.Sprintf("%d", i), 3)
		if i == e.Location.Line {
			fmt.Fprintf(&result, " %s%s%s%s | %s%s\n", dim, blue, bold, lineStr, reset, lines[i-1])
			padding := strings.Repeat(" ", 1+3+3+e.Location.Column-1)
			underline := strings.Repeat("^", max(1, e.Location.Length))
			fmt.Fprintf(&result, "%s%s%s%s%s\n", dim, padding, red, underline, reset)
		} else {
			fmt.Fprintf(&result, " %s%s | %s%s\n", dim, lineStr, lines[i-1], reset)
		}
	}
	return result.String()
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// InternalError signals a broken invariant in the compiler or evaluator. It
// aborts the current evaluation pass only.
type InternalError struct {
	err error
}

func (e *InternalError) Error() string {
	return "internal error: " + e.err.Error()
}

func (e *InternalError) Unwrap() error {
	return e.err
}

// Format prints the stack captured when the error was raised with %+v.
func (e *InternalError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "internal error: %+v", e.err)
		return
	}
	fmt.Fprint(s, e.Error())
}

func internalf(format string, args ...any) *InternalError {
	return &InternalError{err: perrors.Errorf(format, args...)}
}

// IsInternal reports whether err is (or wraps) an InternalError.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}
