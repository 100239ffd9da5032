// Package validate runs the configured type checker as the deferred type
// validation of a build.
package validate

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Norgate-AV/incr/internal/config"
)

// Commander interface for testing
type Commander interface {
	Run() error
}

// exitCoder is satisfied by *exec.ExitError
type exitCoder interface {
	ExitCode() int
}

type ShellCommand struct {
	Path string
	Args []string
	Dir  string
}

func (sc *ShellCommand) String() string {
	return strings.Join(append([]string{sc.Path}, sc.Args...), " ")
}

// CommandBuilder handles building type checker commands
type CommandBuilder struct {
	execCommand func(name string, args ...string) Commander
}

// NewCommandBuilder creates a new command builder
func NewCommandBuilder() *CommandBuilder {
	return &CommandBuilder{
		execCommand: func(name string, args ...string) Commander {
			return exec.Command(name, args...)
		},
	}
}

// BuildCommand builds the type checker command from the configuration
func (cb *CommandBuilder) BuildCommand(cfg *config.Config) (*ShellCommand, error) {
	fields := SplitCommand(cfg.ValidateCommand)
	if len(fields) == 0 {
		return nil, fmt.Errorf("no validate command configured")
	}

	return &ShellCommand{
		Path: fields[0],
		Args: fields[1:],
		Dir:  cfg.RootDir(),
	}, nil
}

// ExecuteCommand runs sc and returns its exit code and combined output. An
// error is only returned when the command could not be run at all.
func (cb *CommandBuilder) ExecuteCommand(sc *ShellCommand) (int, string, error) {
	var out bytes.Buffer

	c := cb.execCommand(sc.Path, sc.Args...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Dir = sc.Dir
		cmd.Stdout = &out
		cmd.Stderr = &out
	}

	err := c.Run()
	if err != nil {
		var exitErr exitCoder
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), out.String(), nil
		}

		return -1, out.String(), fmt.Errorf("failed to run %s: %w", sc.Path, err)
	}

	return 0, out.String(), nil
}

// SplitCommand splits a command line into fields. Single or double quotes
// group a field containing spaces.
func SplitCommand(s string) []string {
	fields := make([]string, 0)

	var current strings.Builder
	var quote rune
	inField := false

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)

		case r == '"' || r == '\'':
			quote = r
			inField = true

		case r == ' ' || r == '\t':
			if inField {
				fields = append(fields, current.String())
				current.Reset()
				inField = false
			}

		default:
			current.WriteRune(r)
			inField = true
		}
	}

	if inField {
		fields = append(fields, current.String())
	}

	return fields
}
