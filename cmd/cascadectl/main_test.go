package main

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kajovo/cascade/internal/transport"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "serve", "cancel", "events", "resume", "list", "receipts", "capability"} {
		require.True(t, names[want], "expected %q subcommand to be registered", want)
	}
}

func TestCapabilityCommandRegistersProbe(t *testing.T) {
	names := map[string]bool{}
	for _, c := range capabilityCmd.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["probe"])
}

func TestApplyProbeOutcomeSuccessSetsTrue(t *testing.T) {
	caps := map[string]bool{}
	applyProbeOutcome(caps, "supports_temperature", nil)
	require.True(t, caps["supports_temperature"])
}

func TestApplyProbeOutcomeClientRejectionSetsFalse(t *testing.T) {
	caps := map[string]bool{"supports_temperature": true}
	err := transport.NewProviderError(transport.KindClient, 400, "unsupported parameter", 0)
	applyProbeOutcome(caps, "supports_temperature", err)
	require.False(t, caps["supports_temperature"])
}

func TestApplyProbeOutcomeNoiseDoesNotDowngradeExistingTrue(t *testing.T) {
	caps := map[string]bool{"supports_temperature": true}
	err := transport.NewProviderError(transport.KindServer, 503, "temporarily unavailable", 0)
	applyProbeOutcome(caps, "supports_temperature", err)
	require.True(t, caps["supports_temperature"])
}

func TestApplyProbeOutcomeNoiseDefaultsUnknownToFalse(t *testing.T) {
	caps := map[string]bool{}
	err := errors.New("connection reset")
	applyProbeOutcome(caps, "supports_file_search", err)
	require.False(t, caps["supports_file_search"])
}

func TestReadPromptFromStdinJoinsLines(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString("line one\nline two\n")
	require.NoError(t, err)
	w.Close()

	oldStdin := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = oldStdin }()

	got := readPromptFromStdin()
	require.Equal(t, "line one\nline two", got)
}
