package application

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigPath(t *testing.T) {
	dir, err := GetApplicationDirectory()
	if err != nil {
		t.Skipf("no user config directory: %v", err)
	}

	require.Equal(t, AppName, filepath.Base(dir))

	path, err := DefaultConfigPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, ConfigFileName), path)
}
