package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/kbcore/internal/config"
)

func writeUserConfig(t *testing.T, content string) {
	t.Helper()
	path := config.GetUserConfigPath()
	require.NoError(t, os.MkdirAll(config.GetUserConfigDir(), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestConfigShowPrintsEffectiveConfig(t *testing.T) {
	newTestApp(t)

	cmd := newConfigShowCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `"storage"`)
}

func TestConfigBackupAndListBackups(t *testing.T) {
	withIsolatedHome(t)
	writeUserConfig(t, "version: 1\n")

	backupCmd := newConfigBackupCmd()
	backupOut := &bytes.Buffer{}
	backupCmd.SetOut(backupOut)
	require.NoError(t, backupCmd.Execute())
	assert.Contains(t, backupOut.String(), "backed up user config")

	listCmd := newConfigListBackupsCmd()
	listOut := &bytes.Buffer{}
	listCmd.SetOut(listOut)
	require.NoError(t, listCmd.Execute())
	assert.Contains(t, listOut.String(), ".bak.")
}

func TestConfigBackupWithNoUserConfigIsANoop(t *testing.T) {
	withIsolatedHome(t)

	cmd := newConfigBackupCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "no user config file to back up")
}

func TestConfigRestoreRoundTrips(t *testing.T) {
	withIsolatedHome(t)
	writeUserConfig(t, "version: 1\n")

	backups, err := config.ListUserConfigBackups()
	require.NoError(t, err)
	require.Empty(t, backups)

	_, err = config.BackupUserConfig()
	require.NoError(t, err)
	backups, err = config.ListUserConfigBackups()
	require.NoError(t, err)
	require.Len(t, backups, 1)

	writeUserConfig(t, "version: 2\n")

	cmd := newConfigRestoreCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{backups[0]})
	require.NoError(t, cmd.Execute())

	restored, err := os.ReadFile(config.GetUserConfigPath())
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(restored))
}
