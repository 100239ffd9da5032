package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/incr/internal/build"
	"github.com/Norgate-AV/incr/internal/compiler"
	"github.com/Norgate-AV/incr/internal/config"
	"github.com/Norgate-AV/incr/internal/diag"
)

func newTestValidator(run func() error) *Validator {
	return &Validator{builder: &CommandBuilder{
		execCommand: func(string, ...string) Commander {
			return &mockCommander{runFunc: run}
		},
	}}
}

func newBuild(cfg *config.Config) *build.Build {
	return build.New(compiler.NewContext(cfg, nil, nil, nil), nil)
}

func TestValidator_Start(t *testing.T) {
	tests := []struct {
		name      string
		run       func() error
		wantDiags int
		wantErr   bool
	}{
		{"clean", func() error { return nil }, 0, false},
		{"type errors", func() error { return &exitError{code: 1} }, 1, false},
		{"cannot run", func() error { return errors.New("not found") }, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuild(&config.Config{ValidateCommand: "tsc --noEmit"})

			tk := newTestValidator(tt.run).Start(b)
			require.NotNil(t, tk)

			err := tk.Wait(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			assert.Len(t, b.Diagnostics(), tt.wantDiags)
			assert.Equal(t, tt.wantDiags > 0, b.ShouldAbort())
		})
	}
}

func TestValidator_TypeErrorDiagnostic(t *testing.T) {
	b := newBuild(&config.Config{ValidateCommand: "tsc"})

	tk := newTestValidator(func() error { return &exitError{code: 1} }).Start(b)
	require.NoError(t, tk.Wait(context.Background()))

	d := b.Diagnostics()[0]
	assert.Equal(t, diag.LevelError, d.Level)
	assert.Equal(t, "typescript", d.Type)
	assert.Contains(t, d.Message, "tsc exited with code 1: Type errors, output skipped")
}

func TestValidator_JoinedByBuild(t *testing.T) {
	b := newBuild(&config.Config{ValidateCommand: "tsc"})

	release := make(chan struct{})
	tk := newTestValidator(func() error {
		<-release
		return nil
	}).Start(b)

	close(release)
	require.NoError(t, b.ValidateTypesBuild(context.Background()))
	assert.True(t, tk.Finished())
}

func TestValidator_NoCommand(t *testing.T) {
	b := newBuild(&config.Config{})

	assert.Nil(t, NewValidator().Start(b))
	assert.Empty(t, b.Diagnostics())
}
