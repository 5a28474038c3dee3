package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fmueller/whisperd/internal/launcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLaunchCmd(app *appState) *cobra.Command {
	var reuseRunning bool

	cmd := &cobra.Command{
		Use:   "launch [-- command...]",
		Short: "Start the service with the provisioned venv and supervise it",
		Long: "Checks the venv in the service directory, exports the service environment " +
			"and runs \"whisperd serve\" (or the command after --) until it exits or is interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			command := args
			if len(command) == 0 {
				exe, err := os.Executable()
				if err != nil {
					return fmt.Errorf("resolve executable path: %w", err)
				}
				command = []string{exe, "serve"}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			code, err := launcher.Run(ctx, launcher.Options{
				ServiceDir:   cfg.ServiceDir,
				Command:      command,
				ReuseRunning: reuseRunning,
				Stdout:       cmd.OutOrStdout(),
				Stderr:       cmd.ErrOrStderr(),
				Logger:       app.log(),
			})
			if err != nil {
				app.log().Debug("launcher finished with error", zap.Int("code", code), zap.Error(err))
			}
			if code != 0 {
				return &ExitError{Code: code}
			}
			return nil
		},
	}

	cmd.Flags().String("service-dir", "", "Directory holding the provisioned venv (default: executable directory)")
	cmd.Flags().BoolVar(&reuseRunning, "reuse-running", false, "Exit successfully when a healthy service already answers")

	return cmd
}
