package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSuccess(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     bool
	}{
		{
			name:     "exit code 0 is success",
			exitCode: 0,
			want:     true,
		},
		{
			name:     "exit code 1 is failure (type errors)",
			exitCode: 1,
			want:     false,
		},
		{
			name:     "exit code 2 is failure (output generated with errors)",
			exitCode: 2,
			want:     false,
		},
		{
			name:     "exit code 999 is failure",
			exitCode: 999,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsSuccess(tt.exitCode)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     string
	}{
		{"success", 0, "Success"},
		{"type errors", 1, "Type errors, output skipped"},
		{"invalid project", 3, "Invalid project, output skipped"},
		{"unknown", 42, "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorMessage(tt.exitCode))
		})
	}
}
