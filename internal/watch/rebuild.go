package watch

import (
	"github.com/Norgate-AV/incr/internal/compiler"
	"github.com/Norgate-AV/incr/internal/events"
)

// Rebuild classifies r, logs a summary of it, reloads the configuration when
// the config file changed and then emits the build event that starts the next
// build.
func Rebuild(ctx *compiler.Context, r *Report) {
	Classify(r, ctx.Config().SrcIndexHTML)

	if msg := Summary(r); msg != "" {
		ctx.Logger.Info(ctx.Logger.Cyan(msg))
	}

	if r.ConfigUpdated {
		if err := ctx.ReloadConfig(); err != nil {
			ctx.Logger.Error("config reload failed, keeping previous config", "error", err)
		} else {
			ctx.Logger.Debug("config reloaded", "file", ctx.Config().ConfigFile)
		}
	}

	ctx.Events.Emit(events.Build, r)
}
