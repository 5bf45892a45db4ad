package maincmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatherProjectOrdersExtraArgsBeforeStdlib(t *testing.T) {
	stdlibDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(stdlibDir, "lib.ct"), []byte("1\n"), 0o600))

	extraDir := t.TempDir()
	extraPath := filepath.Join(extraDir, "extra.ct")
	require.NoError(t, os.WriteFile(extraPath, []byte("2\n"), 0o600))

	loaded, modules, closeAll, err := gatherProject([]string{extraPath}, stdlibDir)
	require.NoError(t, err)
	defer closeAll()

	require.Len(t, loaded, 2)
	require.Len(t, modules, 2)
	assert.Equal(t, "extra", modules[0].Name)
	assert.Equal(t, "lib", modules[1].Name)
}

func TestGatherProjectMissingExtraArgFails(t *testing.T) {
	_, _, closeAll, err := gatherProject([]string{"/does/not/exist.ct"}, "")
	if closeAll != nil {
		closeAll()
	}
	assert.Error(t, err)
}
