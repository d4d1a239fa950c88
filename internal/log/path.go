package log

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	appName     = "xlink"
	logFileName = "xlink.log"
)

var (
	logDir     string
	logDirOnce sync.Once
)

// GetLogDir returns the directory for logs and statistics dumps.
// - Linux: /var/log/xlink/ when writable
// - elsewhere: ~/.xlink/
// - fallback: temp directory
// XLINK_LOG_DIR overrides all of them.
func GetLogDir() string {
	logDirOnce.Do(func() {
		logDir = determineLogDir()
		if err := os.MkdirAll(logDir, 0755); err != nil {
			logDir = filepath.Join(os.TempDir(), appName)
			_ = os.MkdirAll(logDir, 0755)
		}
	})
	return logDir
}

func determineLogDir() string {
	if dir := os.Getenv("XLINK_LOG_DIR"); dir != "" {
		return dir
	}
	if runtime.GOOS == "linux" {
		varLogDir := filepath.Join("/var/log", appName)
		if writable(varLogDir) {
			return varLogDir
		}
	}
	return getUserLogDir()
}

func writable(dir string) bool {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false
	}
	f, err := os.CreateTemp(dir, ".write_test")
	if err != nil {
		return false
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true
}

func getUserLogDir() string {
	homeDir, err := os.UserHomeDir()
	if err == nil {
		userLogDir := filepath.Join(homeDir, "."+appName)
		if err := os.MkdirAll(userLogDir, 0755); err == nil {
			return userLogDir
		}
	}
	return filepath.Join(os.TempDir(), appName)
}

func GetLogFilePath() string {
	return filepath.Join(GetLogDir(), logFileName)
}
