package filemanager

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Reserved directories helpers

// isReservedDirectory checks if the path is a system or reserved directory
func isReservedDirectory(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return true // If we can't resolve it, treat as reserved
	}
	absPath = filepath.Clean(absPath)

	if resolvedPath, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = filepath.Clean(resolvedPath)
	}

	// Always treat the filesystem root as reserved
	if absPath == filepath.VolumeName(absPath)+string(os.PathSeparator) {
		return true
	}

	for _, reserved := range reservedDirectories() {
		reservedAbs, err := filepath.Abs(reserved)
		if err != nil {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(reservedAbs); err == nil {
			reservedAbs = resolved
		}
		reservedAbs = filepath.Clean(reservedAbs)

		if strings.EqualFold(absPath, reservedAbs) {
			return true
		}

		// Children of reserved directories are reserved too, except user
		// temp directories (macOS keeps them under /var/folders).
		prefix := strings.ToLower(reservedAbs) + string(os.PathSeparator)
		if strings.HasPrefix(strings.ToLower(absPath), prefix) {
			if isUserTempDirectory(absPath) {
				continue
			}
			return true
		}
	}

	return false
}

// reservedDirectories returns platform-specific reserved directories
func reservedDirectories() []string {
	var reservedDirs []string

	switch runtime.GOOS {
	case "windows":
		reservedDirs = []string{
			"C:\\Windows",
			"C:\\Program Files",
			"C:\\Program Files (x86)",
			"C:\\System32",
			"C:\\ProgramData\\Microsoft",
		}

	case "darwin":
		reservedDirs = []string{
			"/System",
			"/usr/bin",
			"/usr/sbin",
			"/bin",
			"/sbin",
			"/etc",
			"/var/log",
			"/var/db",
			"/var/root",
			"/Library/System",
			"/Applications",
			"/private/etc",
		}

	default: // Linux and other Unix
		reservedDirs = []string{
			"/bin",
			"/sbin",
			"/usr/bin",
			"/usr/sbin",
			"/etc",
			"/boot",
			"/dev",
			"/proc",
			"/sys",
			"/var/log",
			"/var/lib",
			"/var/cache",
		}
	}

	// Credentials in the user's home must never be exposed to tools
	if home, err := os.UserHomeDir(); err == nil {
		reservedDirs = append(reservedDirs,
			filepath.Join(home, ".ssh"),
			filepath.Join(home, ".gnupg"),
			filepath.Join(home, ".aws"),
			filepath.Join(home, ".kube"),
		)
	}

	return reservedDirs
}

// isUserTempDirectory detects legitimate user temp directories
func isUserTempDirectory(path string) bool {
	if runtime.GOOS == "darwin" && strings.Contains(path, "/var/folders/") {
		return true
	}

	if runtime.GOOS == "linux" && (strings.HasPrefix(path, "/tmp/") || path == "/tmp") {
		return true
	}

	if runtime.GOOS == "windows" {
		lower := strings.ToLower(path)
		if strings.Contains(lower, "\\temp\\") || strings.Contains(lower, "\\tmp\\") {
			return true
		}
	}

	tempDir := filepath.Clean(os.TempDir())
	if resolved, err := filepath.EvalSymlinks(tempDir); err == nil {
		tempDir = resolved
	}
	clean := filepath.Clean(path)
	return clean == tempDir || strings.HasPrefix(clean, tempDir+string(os.PathSeparator))
}
