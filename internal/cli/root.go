package cli

import (
	"fmt"
	"os"

	"github.com/fmueller/whisperd/internal/config"
	"github.com/fmueller/whisperd/internal/logging"
	"github.com/fmueller/whisperd/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type appState struct {
	verbose    bool
	jsonLogs   bool
	noProgress bool
	configFile string

	logger *zap.Logger
	viper  *viper.Viper
}

func NewRootCmd() *cobra.Command {
	app := &appState{}

	cmd := &cobra.Command{
		Use:           "whisperd",
		Short:         "Local speech-to-text service backed by whisper models",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger

			v, err := config.NewViper(app.configFile)
			if err != nil {
				return err
			}
			if err := bindConfigFlags(v, cmd); err != nil {
				return err
			}
			app.viper = v
			return nil
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.jsonLogs, "json-logs", app.jsonLogs, "Enable JSON logging")
	cmd.PersistentFlags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
	cmd.PersistentFlags().StringVar(&app.configFile, "config", app.configFile, "Config file (yaml, json or toml)")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newLaunchCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// bindConfigFlags lets flags that share a config key's name override the
// environment and config file.
func bindConfigFlags(v *viper.Viper, cmd *cobra.Command) error {
	for _, key := range config.Keys() {
		flag := cmd.Flags().Lookup(config.FlagName(key))
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag --%s: %w", flag.Name, err)
		}
	}
	return nil
}

func bindModelFlags(cmd *cobra.Command) {
	cmd.Flags().String("model", config.DefaultModel, "Model name, e.g. tiny|base|small|medium|large-v3")
	cmd.Flags().String("device", config.DefaultDevice, "Compute device: cuda|cpu|auto")
	cmd.Flags().String("compute-type", config.DefaultComputeType, "Compute precision, e.g. float16|int8")
	cmd.Flags().String("backend", config.BackendFasterWhisper, "Engine backend: faster-whisper|whisper-cpp|openai|stub")
	cmd.Flags().String("model-dir", "", "Directory where whisper.cpp models are stored")
}

func bindListenFlags(cmd *cobra.Command) {
	cmd.Flags().String("host", config.DefaultHost, "Listen host")
	cmd.Flags().Int("port", config.DefaultPort, "Listen port")
}

func bindServiceFlags(cmd *cobra.Command) {
	cmd.Flags().String("service-dir", "", "Directory holding the provisioned venv (default: executable directory)")
	cmd.Flags().String("python", "", "Python interpreter for the faster-whisper worker")
	cmd.Flags().String("whisper-cli", "", "Path to the whisper-cli executable")
	cmd.Flags().String("vad-model", "", "Silero VAD model for the whisper-cpp backend")
	cmd.Flags().String("openai-base-url", "", "Base URL of an OpenAI-compatible transcription API")
	cmd.Flags().String("upload-dir", "", "Directory for temporary uploads (default: OS temp dir)")
	cmd.Flags().Int64("max-upload-bytes", config.DefaultMaxUploadBytes, "Largest accepted upload in bytes")
	cmd.Flags().StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")
}

func (a *appState) loadConfig() (config.Config, error) {
	v := a.viper
	if v == nil {
		var err error
		if v, err = config.NewViper(a.configFile); err != nil {
			return config.Config{}, err
		}
	}
	return config.Load(v)
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
