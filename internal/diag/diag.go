// Package diag holds the diagnostics accumulated by a build.
package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Level is the severity of a diagnostic
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
)

// Diagnostic is an error or warning reported by a build stage
type Diagnostic struct {
	Level       Level  `json:"level"`
	Type        string `json:"type"`
	Header      string `json:"header"`
	Message     string `json:"message"`
	AbsFilePath string `json:"absFilePath,omitempty"`
	Line        int    `json:"line,omitempty"`
	Column      int    `json:"column,omitempty"`
}

func (d Diagnostic) String() string {
	var parts []string

	if d.AbsFilePath != "" {
		location := d.AbsFilePath
		if d.Line > 0 {
			location += fmt.Sprintf(":%d", d.Line)
			if d.Column > 0 {
				location += fmt.Sprintf(":%d", d.Column)
			}
		}
		parts = append(parts, location)
	}

	if d.Header != "" {
		parts = append(parts, d.Header+":")
	}

	parts = append(parts, d.Message)

	return strings.Join(parts, " ")
}

// HasError reports whether any diagnostic has error severity
func HasError(diagnostics []Diagnostic) bool {
	for _, d := range diagnostics {
		if d.Level == LevelError {
			return true
		}
	}

	return false
}

// Error is an error carrying source location, converted verbatim into a diagnostic
type Error struct {
	Type     string
	FilePath string
	Line     int
	Column   int
	Err      error
}

func (e *Error) Error() string {
	if e.FilePath == "" {
		return e.Err.Error()
	}

	return fmt.Sprintf("%s: %v", e.FilePath, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FromError converts err into an error-level diagnostic
func FromError(err error) Diagnostic {
	d := Diagnostic{
		Level:   LevelError,
		Type:    "build",
		Header:  "build error",
		Message: err.Error(),
	}

	var located *Error
	if errors.As(err, &located) {
		if located.Type != "" {
			d.Type = located.Type
		}
		d.AbsFilePath = located.FilePath
		d.Line = located.Line
		d.Column = located.Column
		d.Message = located.Err.Error()
	}

	return d
}
