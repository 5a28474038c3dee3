package main

import (
	"errors"
	"testing"

	"github.com/fmueller/whisperd/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestShouldPrintUsageHint(t *testing.T) {
	t.Parallel()

	require.True(t, shouldPrintUsageHint(errors.New("unknown command \"bad\" for \"whisperd\"")))
	require.True(t, shouldPrintUsageHint(errors.New("unknown flag: --oops")))
	require.True(t, shouldPrintUsageHint(errors.New("accepts 1 arg(s), received 0")))
	require.False(t, shouldPrintUsageHint(errors.New("download model \"small\": context deadline exceeded")))
	require.False(t, shouldPrintUsageHint(nil))
}

func TestHelpHintTarget(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()
	require.Equal(t, "whisperd", helpHintTarget(root, []string{"--badflag"}))
	require.Equal(t, "whisperd", helpHintTarget(root, []string{"badcmd"}))
	require.Equal(t, "whisperd transcribe", helpHintTarget(root, []string{"transcribe"}))
	require.Equal(t, "whisperd serve", helpHintTarget(root, []string{"serve", "--port", "9000"}))
}

func TestReportErrorUsesExitCode(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()
	require.Equal(t, 3, reportError(root, &cli.ExitError{Code: 3}))
	require.Equal(t, 1, reportError(root, &cli.ExitError{Code: 1, Err: errors.New("load model: boom")}))
	require.Equal(t, 1, reportError(root, errors.New("plain failure")))
}
