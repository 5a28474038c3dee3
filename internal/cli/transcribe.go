package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fmueller/whisperd/internal/api"
	"github.com/fmueller/whisperd/internal/client"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errServiceUnavailable = errors.New("whisper service is not running or not responding")

type transcribeOptions struct {
	url     string
	upload  bool
	jsonOut bool
}

func newTranscribeCmd(app *appState) *cobra.Command {
	opts := transcribeOptions{}

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file with a running service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audioPath := args[0]
			if _, err := os.Stat(audioPath); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("audio file not found: %s", audioPath)
				}
				return fmt.Errorf("stat audio file: %w", err)
			}

			baseURL := strings.TrimSpace(opts.url)
			if baseURL == "" {
				cfg, err := app.loadConfig()
				if err != nil {
					return err
				}
				baseURL = cfg.BaseURL()
			}

			c := client.New(baseURL)
			if !c.Healthy(cmd.Context()) {
				return fmt.Errorf("%w at %s", errServiceUnavailable, baseURL)
			}

			app.log().Debug("transcribing", zap.String("audio", audioPath), zap.String("url", baseURL), zap.Bool("upload", opts.upload))

			stopSpinner := startSpinner(app.progressEnabled(), "Transcribing")
			var (
				resp api.TranscribeResponse
				err  error
			)
			if opts.upload {
				resp, err = c.TranscribeFile(cmd.Context(), audioPath)
			} else {
				resp, err = c.Transcribe(cmd.Context(), audioPath)
			}
			stopSpinner()
			if err != nil {
				return fmt.Errorf("transcription failed: %w", err)
			}

			if opts.jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "", "Service base URL (default: http://HOST:PORT)")
	cmd.Flags().BoolVar(&opts.upload, "upload", false, "Upload the file instead of sending its path")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the full JSON response")
	bindListenFlags(cmd)

	return cmd
}
