package infra

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAutostartManager_RenderPlist verifies the generated LaunchAgent
// content
func TestAutostartManager_RenderPlist(t *testing.T) {
	mgr := NewAutostartManagerWithDir(t.TempDir())

	content, err := mgr.renderPlist("/usr/local/bin/appquota")
	require.NoError(t, err)

	text := string(content)
	assert.Contains(t, text, "<string>"+LaunchdLabel+"</string>")
	assert.Contains(t, text, "<string>/usr/local/bin/appquota</string>")
	assert.Contains(t, text, "<string>start</string>")
	assert.Contains(t, text, "RunAtLoad")
}

// TestAutostartManager_InstallUninstall verifies plist lifecycle on disk
func TestAutostartManager_InstallUninstall(t *testing.T) {
	dir := t.TempDir()
	mgr := NewAutostartManagerWithDir(dir)

	assert.False(t, mgr.IsInstalled())

	require.NoError(t, mgr.Install("/usr/local/bin/appquota"))
	assert.True(t, mgr.IsInstalled())
	assert.True(t, strings.HasPrefix(mgr.PlistPath(), dir))

	raw, err := os.ReadFile(mgr.PlistPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), LaunchdLabel)

	require.NoError(t, mgr.Uninstall())
	assert.False(t, mgr.IsInstalled())

	// Uninstalling twice is fine.
	require.NoError(t, mgr.Uninstall())
}
