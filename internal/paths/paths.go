package paths

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns ~/.chatd.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatd")
}

// ConfigPath returns the config file path inside a data dir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "chatd.toml")
}

// DBPath returns the SQLite database path.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "chatd.db")
}

// LogDir returns the log directory.
func LogDir(dataDir string) string {
	return filepath.Join(dataDir, "logs")
}

// LogPath returns the server log file path.
func LogPath(dataDir string) string {
	return filepath.Join(LogDir(dataDir), "chatd.log")
}

// UploadDir returns the directory the disk image store writes to.
func UploadDir(dataDir string) string {
	return filepath.Join(dataDir, "uploads")
}

// EnsureDir creates the data directory tree with owner-only permissions.
func EnsureDir(dataDir string) error {
	for _, d := range []string{dataDir, LogDir(dataDir), UploadDir(dataDir)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
