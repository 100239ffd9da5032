package diag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasError(t *testing.T) {
	tests := []struct {
		name string
		in   []Diagnostic
		want bool
	}{
		{"empty", nil, false},
		{"warnings only", []Diagnostic{{Level: LevelWarn}, {Level: LevelInfo}}, false},
		{"one error", []Diagnostic{{Level: LevelWarn}, {Level: LevelError}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasError(tt.in))
		})
	}
}

func TestFromError(t *testing.T) {
	d := FromError(errors.New("disk full"))

	assert.Equal(t, LevelError, d.Level)
	assert.Equal(t, "build", d.Type)
	assert.Equal(t, "disk full", d.Message)
	assert.Empty(t, d.AbsFilePath)
}

func TestFromError_Located(t *testing.T) {
	err := fmt.Errorf("transpile: %w", &Error{
		Type:     "typescript",
		FilePath: "/src/a.ts",
		Line:     3,
		Column:   7,
		Err:      errors.New("unexpected token"),
	})

	d := FromError(err)

	assert.Equal(t, "typescript", d.Type)
	assert.Equal(t, "/src/a.ts", d.AbsFilePath)
	assert.Equal(t, "unexpected token", d.Message)
	assert.Equal(t, "/src/a.ts:3:7 build error: unexpected token", d.String())
}
