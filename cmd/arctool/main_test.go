package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/x/exp/golden"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/please-build/arcfile"
)

const (
	formatsINI = "../../fixtures/formats.ini"
	mixedArc   = "../../fixtures/mixed.arc"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestList(t *testing.T) {
	out, _, err := run(t, "list", mixedArc, "--fmt", formatsINI)
	require.NoError(t, err)
	golden.RequireEqual(t, out)
}

func TestListFormatFromEnvironment(t *testing.T) {
	t.Setenv(formatEnv, "../../fixtures/formats.json")
	out, _, err := run(t, "list", mixedArc, "--include", "data/**")
	require.NoError(t, err)
	assert.Equal(t, "FILE data/numbers.txt  usize=290  comp=zlib  csize=146\nDone. Listed 1 records.\n", out)
}

func TestNoFormatFile(t *testing.T) {
	t.Setenv(formatEnv, "")
	_, _, err := run(t, "list", mixedArc)
	assert.ErrorIs(t, err, errNoFormatFile)
}

func TestMissingFormatFile(t *testing.T) {
	_, _, err := run(t, "list", mixedArc, "--fmt", "../../fixtures/nope.ini")
	assert.ErrorAs(t, err, new(*arcfile.ConfigError))
}

func TestArgs(t *testing.T) {
	_, _, err := run(t, "list", "--fmt", formatsINI)
	assert.Error(t, err)
	_, _, err = run(t, "extract", "a", "b", "--fmt", formatsINI)
	assert.Error(t, err)
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	out, _, err := run(t, "extract", mixedArc, "--fmt", formatsINI, "--out", dir, "--quiet")
	require.NoError(t, err)
	assert.Contains(t, out, "Extracted docs/readme.txt [lzma] OK\n")
	assert.Contains(t, out, "Done. Extracted 3 files")
	assert.FileExists(t, filepath.Join(dir, "hello.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestExtractIncludeStored(t *testing.T) {
	dir := t.TempDir()
	out, _, err := run(t, "extract", mixedArc, "--fmt", formatsINI, "-o", dir, "--include-stored", "--no-size-check")
	require.NoError(t, err)
	assert.Contains(t, out, "Extracted notes.txt [none] OK\n")
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestExtractMaxSize(t *testing.T) {
	dir := t.TempDir()
	out, logs, err := run(t, "extract", mixedArc, "--fmt", formatsINI, "-o", dir, "--max-size", "100B")
	require.NoError(t, err, "oversized entries are skipped, not fatal")
	assert.Contains(t, out, "Done. Extracted 2 files")
	assert.NoFileExists(t, filepath.Join(dir, "data", "numbers.txt"))
	assert.Contains(t, logs, "numbers.txt")

	_, _, err = run(t, "extract", mixedArc, "--fmt", formatsINI, "-o", dir, "--max-size", "lots")
	assert.ErrorContains(t, err, "invalid --max-size")
}

func TestExtractSignatureMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.arc")
	require.NoError(t, os.WriteFile(path, []byte("ArchiveFilX1\x000\x000\x00"), 0o644))
	_, _, err := run(t, "extract", path, "--fmt", formatsINI, "-o", t.TempDir())
	assert.ErrorIs(t, err, arcfile.ErrSignatureMismatch)
}

func TestDetect(t *testing.T) {
	out, _, err := run(t, "detect", mixedArc, "--fmt", formatsINI)
	require.NoError(t, err)
	assert.Equal(t, "ArchiveFile (magic=\"ArchiveFile\", delimiter=\"\\x00\")\n", out)
}

func TestFormats(t *testing.T) {
	out, _, err := run(t, "formats", "--fmt", "../../fixtures/formats.yaml")
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Contains(t, string(lines[0]), "KEY")
	assert.True(t, bytes.HasPrefix(lines[1], []byte("*")), "the default is marked")
	assert.Contains(t, string(lines[1]), "ArchiveFile ")
	assert.Contains(t, string(lines[2]), "ArchiveFileSum")
	assert.Contains(t, string(lines[3]), `"\x1f"`)
}

func TestVerboseLogsRecords(t *testing.T) {
	_, logs, err := run(t, "list", mixedArc, "--fmt", formatsINI, "--verbose")
	require.NoError(t, err)
	assert.Contains(t, logs, "Parsed record")

	_, logs, err = run(t, "list", mixedArc, "--fmt", formatsINI, "--quiet")
	require.NoError(t, err)
	assert.Empty(t, logs)
}
