package command

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/saasbill/billing/command/token"
	"github.com/stretchr/testify/require"
)

func testRunOptions(tb testing.TB) (*RunOptions, *bytes.Buffer, *bytes.Buffer) {
	tb.Helper()

	var stdout, stderr bytes.Buffer
	return &RunOptions{
		TokenHelper: token.NewTokenHelperAt(filepath.Join(tb.TempDir(), "token")),
		Stdout:      &stdout,
		Stderr:      &stderr,
		Stdin:       strings.NewReader(""),
	}, &stdout, &stderr
}

func TestRunCustom_version(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{{"version"}, {"-v"}, {"--version"}} {
		opts, stdout, _ := testRunOptions(t)
		require.Equal(t, 0, RunCustom(args, opts))
		require.True(t, strings.HasPrefix(stdout.String(), "Billing v"), stdout.String())
	}
}

func TestRunCustom_help(t *testing.T) {
	t.Parallel()

	opts, stdout, stderr := testRunOptions(t)
	code := RunCustom([]string{"-help"}, opts)
	require.Equal(t, 0, code)

	help := stdout.String() + stderr.String()
	require.Contains(t, help, "Usage: billing <command> [args]")
	require.Contains(t, help, "Common commands:")
	require.Contains(t, help, "    get")
	require.Contains(t, help, "Other commands:")
	require.Contains(t, help, "batch")
	require.NotContains(t, help, "version")
}

func TestRunCustom_invalidFormat(t *testing.T) {
	t.Parallel()

	opts, _, stderr := testRunOptions(t)
	require.Equal(t, 1, RunCustom([]string{"get", "-format=xml", "/plans/"}, opts))
	require.Contains(t, stderr.String(), "Invalid output format: xml")
}

func TestRunCustom_login(t *testing.T) {
	t.Parallel()

	opts, stdout, stderr := testRunOptions(t)
	require.Equal(t, 0, RunCustom([]string{"login", "secret"}, opts), stderr.String())
	require.Contains(t, stdout.String(), "Success!")

	stored, err := opts.TokenHelper.Get()
	require.NoError(t, err)
	require.Equal(t, "secret", stored)
}

func TestSetupEnv(t *testing.T) {
	t.Parallel()

	args, format := setupEnv([]string{"get", "-format", "JSON", "/plans/"})
	require.Equal(t, []string{"get", "-format", "JSON", "/plans/"}, args)
	require.Equal(t, "json", format)

	_, format = setupEnv([]string{"get", "--format=pretty"})
	require.Equal(t, "pretty", format)

	args, _ = setupEnv([]string{"-version"})
	require.Equal(t, []string{"version"}, args)

	_, format = setupEnv([]string{"get", "--", "-format=json"})
	require.Equal(t, "table", format)
}
