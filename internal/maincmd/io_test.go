package maincmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleName(t *testing.T) {
	assert.Equal(t, "mathutil", moduleName("/a/b/mathutil.ct"))
	assert.Equal(t, "mathutil", moduleName("mathutil.ct"))
	assert.Equal(t, "noext", moduleName("noext"))
}

func TestStdlibModulesEmptyDirArg(t *testing.T) {
	files, err := stdlibModules("")
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestStdlibModulesListsAndSortsCtFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"zed.ct", "alpha.ct", "skip.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("1\n"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.ct"), 0o700))

	files, err := stdlibModules(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "alpha.ct"), files[0])
	assert.Equal(t, filepath.Join(dir, "zed.ct"), files[1])
}

func TestReadFileRegularContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "src.ct")
	require.NoError(t, os.WriteFile(path, []byte("1 + 2\n"), 0o600))

	src, closer, err := readFile(path)
	require.NoError(t, err)
	defer closer()
	assert.Equal(t, "1 + 2\n", string(src))
}

func TestReadFileEmptyFileFallsBackToEmptySlice(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.ct")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	src, closer, err := readFile(path)
	require.NoError(t, err)
	defer closer()
	assert.Empty(t, src)
}

func TestReadFileMissingPathErrors(t *testing.T) {
	_, _, err := readFile(filepath.Join(t.TempDir(), "missing.ct"))
	assert.Error(t, err)
}
