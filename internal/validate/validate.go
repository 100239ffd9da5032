package validate

import (
	"fmt"
	"strings"

	"github.com/Norgate-AV/incr/internal/build"
	"github.com/Norgate-AV/incr/internal/diag"
	"github.com/Norgate-AV/incr/internal/task"
)

// Validator runs the type checker alongside a build
type Validator struct {
	builder *CommandBuilder
}

func NewValidator() *Validator {
	return &Validator{builder: NewCommandBuilder()}
}

// Start launches type validation for b and registers it as the build's
// pending validation. Type errors become diagnostics on b. Start returns nil
// when no validate command is configured.
func (v *Validator) Start(b *build.Build) *task.Task {
	cfg := b.Config()
	if cfg.ValidateCommand == "" {
		return nil
	}

	sc, err := v.builder.BuildCommand(cfg)
	if err != nil {
		b.CatchError(err)
		return nil
	}

	b.Debug("validateTypes: " + sc.String())
	span := b.CreateTimeSpan("validateTypes started", true)

	t := task.Go(func() error {
		code, output, err := v.builder.ExecuteCommand(sc)
		if err != nil {
			b.CatchError(err)
			span.Finish("validateTypes failed")
			return err
		}

		if !IsSuccess(code) {
			msg := fmt.Sprintf("%s exited with code %d: %s", sc.Path, code, GetErrorMessage(code))
			if out := strings.TrimSpace(output); out != "" {
				msg += "\n" + out
			}

			b.AddDiagnostic(diag.Diagnostic{
				Level:   diag.LevelError,
				Type:    "typescript",
				Header:  "type validation failed",
				Message: msg,
			})
		}

		span.Finish(fmt.Sprintf("validateTypes finished, exit code: %d", code))

		return nil
	})

	b.SetValidateTypes(t)

	return t
}
