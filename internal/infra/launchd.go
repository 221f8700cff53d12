package infra

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"
)

// LaunchAgent plist template for auto-start at login (macOS).
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>start</string>
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <dict>
        <key>Crashed</key>
        <true/>
    </dict>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.ErrorLogPath}}</string>

    <key>ProcessType</key>
    <string>Background</string>
</dict>
</plist>`

// LaunchdLabel is the LaunchAgent identifier.
const LaunchdLabel = "com.appquota.agent"

const launchdLogDir = "/var/tmp"

type plistConfig struct {
	Label          string
	ExecutablePath string
	LogPath        string
	ErrorLogPath   string
}

// AutostartManager registers the daemon to start at login. It is a
// plain I/O wrapper around a LaunchAgent plist; the monitor core only
// sees it through the start command when the start-at-login setting
// is on.
type AutostartManager struct {
	plistDir  string
	plistPath string
}

// NewAutostartManager creates a manager targeting the user's
// LaunchAgents directory.
func NewAutostartManager() *AutostartManager {
	home, _ := os.UserHomeDir()
	dir := filepath.Join(home, "Library/LaunchAgents")
	return &AutostartManager{
		plistDir:  dir,
		plistPath: filepath.Join(dir, LaunchdLabel+".plist"),
	}
}

// NewAutostartManagerWithDir creates a manager with a custom plist
// directory (for testing).
func NewAutostartManagerWithDir(dir string) *AutostartManager {
	return &AutostartManager{
		plistDir:  dir,
		plistPath: filepath.Join(dir, LaunchdLabel+".plist"),
	}
}

// PlistPath returns the plist file location.
func (m *AutostartManager) PlistPath() string {
	return m.plistPath
}

// IsInstalled checks whether the plist exists.
func (m *AutostartManager) IsInstalled() bool {
	_, err := os.Stat(m.plistPath)
	return err == nil
}

// Install writes the plist and loads it into launchd.
func (m *AutostartManager) Install(execPath string) error {
	if err := os.MkdirAll(m.plistDir, 0755); err != nil {
		return err
	}

	content, err := m.renderPlist(execPath)
	if err != nil {
		return err
	}

	if err := os.WriteFile(m.plistPath, content, 0644); err != nil {
		return err
	}

	// Best effort: launchctl is unavailable off macOS and the plist
	// alone is enough for the next login.
	_ = exec.Command("launchctl", "load", m.plistPath).Run()
	return nil
}

// Uninstall unloads and removes the plist.
func (m *AutostartManager) Uninstall() error {
	_ = exec.Command("launchctl", "unload", m.plistPath).Run()

	err := os.Remove(m.plistPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// renderPlist fills the LaunchAgent template for the given binary.
func (m *AutostartManager) renderPlist(execPath string) ([]byte, error) {
	cfg := plistConfig{
		Label:          LaunchdLabel,
		ExecutablePath: execPath,
		LogPath:        filepath.Join(launchdLogDir, "appquota.log"),
		ErrorLogPath:   filepath.Join(launchdLogDir, "appquota.error.log"),
	}

	tmpl, err := template.New("plist").Parse(launchAgentTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse plist template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("render plist template: %w", err)
	}
	return buf.Bytes(), nil
}
