package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
)

const appDirName = "marioserve"

// snapshotExtensions lists the file types a data snapshot may use.
var snapshotExtensions = []string{".json", ".msgpack", ".mpk"}

// PathResolver resolves config and data snapshot locations relative to the
// executable, the working directory and the user config dir.
type PathResolver struct {
	executableDir string
	homeDir       string
	configDir     string
}

// NewPathResolver determines the executable location and config dir.
func NewPathResolver() (*PathResolver, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return nil, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warnf("Could not determine home directory: %v", err)
		homeDir = os.TempDir()
	}

	pr := &PathResolver{
		executableDir: filepath.Dir(execPath),
		homeDir:       homeDir,
		configDir:     configDirFor(homeDir),
	}
	log.Debugf("PathResolver initialized: execDir=%s, configDir=%s", pr.executableDir, pr.configDir)
	return pr, nil
}

func configDirFor(homeDir string) string {
	switch runtime.GOOS {
	case "linux":
		if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
			return filepath.Join(configHome, appDirName)
		}
		return filepath.Join(homeDir, ".config", appDirName)
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appDirName)
		}
		return filepath.Join(homeDir, "AppData", "Roaming", appDirName)
	default:
		return filepath.Join(homeDir, ".config", appDirName)
	}
}

// GetDataFile resolves a data snapshot path. Candidates, in order: the path
// as given, relative to the executable, relative to the working directory,
// then <dir>/data/vocabulary.{json,msgpack} under the executable and config
// dirs. When nothing is found the path as given is returned so the caller can
// report it.
func (pr *PathResolver) GetDataFile(userPath string) string {
	for _, path := range pr.dataFileCandidates(userPath) {
		if IsSnapshotFile(path) {
			log.Debugf("Found data snapshot: %s", path)
			return path
		}
		log.Debugf("Data snapshot candidate not valid: %s", path)
	}
	return userPath
}

func (pr *PathResolver) dataFileCandidates(userPath string) []string {
	var candidates []string
	if userPath != "" {
		candidates = append(candidates, userPath)
		if !filepath.IsAbs(userPath) {
			candidates = append(candidates, filepath.Join(pr.executableDir, userPath))
			if cwd, err := os.Getwd(); err == nil {
				candidates = append(candidates, filepath.Join(cwd, userPath))
			}
		}
	}
	for _, dir := range []string{pr.executableDir, pr.configDir} {
		for _, ext := range snapshotExtensions {
			candidates = append(candidates, filepath.Join(dir, "data", "vocabulary"+ext))
		}
	}
	return candidates
}

// IsSnapshotFile reports whether path is a regular file with a snapshot extension
func IsSnapshotFile(path string) bool {
	stat, err := os.Stat(path)
	if err != nil || stat.IsDir() {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range snapshotExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// GetConfigPath returns a writable location for a config file, falling back
// to ~/.marioserve, the temp dir and finally the executable dir.
func (pr *PathResolver) GetConfigPath(filename string) (string, error) {
	dirs := []string{
		pr.configDir,
		filepath.Join(pr.homeDir, "."+appDirName),
		filepath.Join(os.TempDir(), appDirName),
		pr.executableDir,
	}
	for i, dir := range dirs {
		if CheckDirStatus(dir).Writable {
			path := filepath.Join(dir, filename)
			if i > 0 {
				log.Warnf("Using fallback config location: %s", path)
			}
			return path, nil
		}
	}
	tempPath := filepath.Join(os.TempDir(), filename)
	log.Warnf("Using temporary config file: %s", tempPath)
	return tempPath, nil
}

// GetConfigDir returns the config directory
func (pr *PathResolver) GetConfigDir() string {
	return pr.configDir
}

// GetExecutableDir returns the directory containing the executable
func (pr *PathResolver) GetExecutableDir() string {
	return pr.executableDir
}
