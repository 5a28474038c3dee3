package cli

import (
	"bytes"
	"testing"

	"github.com/fmueller/whisperd/internal/config"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersCoreSubcommands(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	require.Subset(t, names, []string{"serve", "launch", "transcribe", "setup", "version"})

	require.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("json-logs"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("no-progress"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestServeFlagsMatchConfigDefaults(t *testing.T) {
	t.Parallel()

	serve, _, err := NewRootCmd().Find([]string{"serve"})
	require.NoError(t, err)

	require.Equal(t, config.DefaultModel, serve.Flags().Lookup("model").DefValue)
	require.Equal(t, config.DefaultDevice, serve.Flags().Lookup("device").DefValue)
	require.Equal(t, config.DefaultComputeType, serve.Flags().Lookup("compute-type").DefValue)
	require.Equal(t, config.DefaultHost, serve.Flags().Lookup("host").DefValue)
	require.Equal(t, "8001", serve.Flags().Lookup("port").DefValue)
	require.Equal(t, config.BackendFasterWhisper, serve.Flags().Lookup("backend").DefValue)

	for _, key := range config.Keys() {
		if key == "openai_api_key" {
			require.Nil(t, serve.Flags().Lookup(config.FlagName(key)), "api keys are read from the environment only")
			continue
		}
		require.NotNil(t, serve.Flags().Lookup(config.FlagName(key)), key)
	}
}

func TestRootHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	require.NoError(t, err)
	require.Contains(t, out.String(), "serve")
	require.Contains(t, out.String(), "launch")
	require.Contains(t, out.String(), "transcribe")
	require.Contains(t, out.String(), "setup")
}

func TestSubcommandHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{name: "serve", args: []string{"serve", "--help"}, contains: "Load the model and serve the transcription API"},
		{name: "launch", args: []string{"launch", "--help"}, contains: "reuse-running"},
		{name: "transcribe", args: []string{"transcribe", "--help"}, contains: "Transcribe an audio file with a running service"},
		{name: "setup", args: []string{"setup", "--help"}, contains: "Download and verify whisper.cpp model files"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewRootCmd()
			out := new(bytes.Buffer)
			cmd.SetOut(out)
			cmd.SetErr(out)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.NoError(t, err)
			require.Contains(t, out.String(), tt.contains)
		})
	}
}
