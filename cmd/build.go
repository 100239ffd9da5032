package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/incr/internal/diag"
)

var buildCmd = &cobra.Command{
	Use:          "build",
	Short:        "Build the project once",
	Long:         `Run a full build of the source directory and commit the output.`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	s, err := openSession(cfg, newLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := s.runner.Run(ctx, nil)
	if closeErr := s.close(ctx); closeErr != nil && err == nil {
		err = closeErr
	}

	if err != nil {
		return err
	}

	if res.Aborted || res.HasError {
		count := 0
		for _, d := range res.Diagnostics {
			if d.Level == diag.LevelError {
				count++
			}
		}

		return fmt.Errorf("build failed with %d error(s)", count)
	}

	return nil
}
