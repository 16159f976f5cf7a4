package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aspif/internal/cli"
)

// runCLI executes a fresh root command against args and returns its
// stderr output and the command error. Input/output always go through temp
// files so the leading-byte sniff in cli.run reads real file contents.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stderr.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAspifFactConvertsToExactSmodelsOutput(t *testing.T) {
	in := writeTemp(t, "in.aspif", "asp 1 0 0\n1 0 1 1 0 0\n0\n")
	out := filepath.Join(filepath.Dir(in), "out.sm")

	_, err := runCLI(t, "-i", in, "-o", out)
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "1 2 0 0\n0\n0\nB+\n0\nB-\n1\n0\n1\n", string(got))
}

func TestAspifToTextFact(t *testing.T) {
	in := writeTemp(t, "in.aspif", "asp 1 0 0\n1 0 1 1 0 0\n0\n")
	out := filepath.Join(filepath.Dir(in), "out.lp")

	_, err := runCLI(t, "-i", in, "-o", out, "-t")
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "x_1.\n#show.\n", string(got))
}

func TestAspifToSmodelsConversion(t *testing.T) {
	in := writeTemp(t, "in.aspif", "asp 1 0 0\n1 0 1 1 0 0\n0\n")
	out := filepath.Join(filepath.Dir(in), "out.sm")

	_, err := runCLI(t, "-i", in, "-o", out)
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(got), "1 2 0 0\n")
}

func TestRejectsUnrecognizedFormat(t *testing.T) {
	in := writeTemp(t, "in.txt", "not a program\n")
	out := filepath.Join(filepath.Dir(in), "out")

	stderr, err := runCLI(t, "-i", in, "-o", out)
	require.Error(t, err)
	assert.Contains(t, stderr, "unrecognized input format")
}

func TestRejectsSameInputAndOutputPath(t *testing.T) {
	in := writeTemp(t, "same.aspif", "asp 1 0 0\n0\n")

	_, err := runCLI(t, "-i", in, "-o", in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be different")
}

func TestStatsFlagPrintsToStderr(t *testing.T) {
	in := writeTemp(t, "in.aspif", "asp 1 0 0\n1 0 1 1 0 0\n0\n")
	out := filepath.Join(filepath.Dir(in), "out.lp")

	stderr, err := runCLI(t, "-i", in, "-o", out, "-t", "--stats")
	require.NoError(t, err)
	assert.Contains(t, stderr, "atoms=")
}
