package configutil

import (
	"os"
	"path/filepath"
	"testing"
	"utf8fix/lib/testutil"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	File   string `json:"file"`
	Dir    string `json:"dir"`
	Rounds int    `json:"rounds"`
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "utf8fix.local.json5", LocalPath("utf8fix.json5"))
	require.Equal(t, filepath.Join("a", "b.local.json5"), LocalPath(filepath.Join("a", "b.json5")))
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "utf8fix.json5")
	testutil.WriteFile(t, name, `{
		// comments and trailing commas are allowed
		file: "authors.csv",
		rounds: 3,
	}`)
	testutil.WriteFile(t, LocalPath(name), `{dir: "exports"}`)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, testConfig{File: "authors.csv", Dir: "exports", Rounds: 3}, cfg)
}

func TestReadConfigOnlyLocal(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "utf8fix.json5")
	testutil.WriteFile(t, LocalPath(name), `{rounds: 5}`)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Rounds)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "nope.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestReadConfigInvalid(t *testing.T) {
	name := filepath.Join(t.TempDir(), "bad.json5")
	testutil.WriteFile(t, name, `{file: `)
	_, err := ReadConfig[testConfig](name)
	require.Error(t, err)
	require.False(t, os.IsNotExist(err))
}

func TestReadUpwards(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0777))
	testutil.WriteFile(t, filepath.Join(root, "a", "telemetry.json5"), `{file: "found"}`)

	cfg, err := readUpwards[testConfig](nested, "telemetry.json5")
	require.NoError(t, err)
	require.Equal(t, "found", cfg.File)

	_, err = readUpwards[testConfig](nested, "missing-config-name.json5")
	require.True(t, os.IsNotExist(err))
}
