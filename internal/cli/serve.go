package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fmueller/whisperd/internal/backend"
	"github.com/fmueller/whisperd/internal/config"
	"github.com/fmueller/whisperd/internal/engine"
	"github.com/fmueller/whisperd/internal/platform"
	"github.com/fmueller/whisperd/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the model and serve the transcription API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.serve(ctx, cfg)
		},
	}

	bindModelFlags(cmd)
	bindListenFlags(cmd)
	bindServiceFlags(cmd)

	return cmd
}

// serve loads the model before listening. A failed load ends the process
// without serving a single request.
func (a *appState) serve(ctx context.Context, cfg config.Config) error {
	logger := a.log()

	serviceDir, err := platform.ResolveServiceDir(cfg.ServiceDir)
	if err != nil {
		return err
	}
	cfg.ServiceDir = serviceDir

	factory, err := backend.New(cfg, logger)
	if err != nil {
		return err
	}

	primary := backend.PrimarySpec(cfg)
	result := engine.Load(ctx, factory, primary, primary.Fallback(), logger)
	if result.Outcome == engine.OutcomeFailed {
		return &ExitError{Code: 1, Err: result.Err()}
	}

	handle := engine.NewHandle()
	if err := handle.Set(result.Model, result.Spec); err != nil {
		_ = result.Model.Close()
		return err
	}
	defer func() {
		if err := handle.Close(); err != nil {
			logger.Warn("failed to close whisper model", zap.Error(err))
		}
	}()

	srv := server.New(server.Options{
		Handle:         handle,
		ModelName:      cfg.Model,
		Backend:        cfg.Backend,
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		CORSOrigins:    cfg.CORSOrigins,
		Logger:         logger,
	})
	return srv.ListenAndServe(ctx, cfg.Addr())
}
