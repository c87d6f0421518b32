// Package constants is responsible for defining the constants used in the application.
// It also provides utility functions to get the default configuration and cache paths.
package constants

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Version is the version of the executable, set at build time.
var Version = "Dev"

const (
	// CmdName is the name of the command line tool.
	CmdName = "datasynth"

	// DefaultAppFolder is the name of the default root folder.
	DefaultAppFolder = "datasynth"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// CacheFileName is the default base name of the schema cache file.
	CacheFileName = "schemas.json"

	// BackupSuffix is appended to the cache file name to build the default backup path.
	BackupSuffix = ".backup"

	// SQLiteFileName is the default base name of the sqlite schema cache.
	SQLiteFileName = "schemas.db"

	// CacheFormatVersion is the version written in new cache files.
	CacheFormatVersion = "1.0"
)

// Defaults of the generation pipeline.
const (
	DefaultRequestsPerMinute = 3
	DefaultRequestsPerDay    = 200

	DefaultMinRows = 1
	DefaultMaxRows = 10000
	DefaultRows    = 1000

	DefaultMinDescriptionLength = 10
	DefaultMaxDescriptionLength = 4000

	DefaultProvider      = "openai"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultClaudeModel   = "claude-3-5-haiku-latest"
	DefaultMaxTokens     = 4000
	DefaultTemperature   = 0.7
	DefaultMaxAttempts   = 3
	DefaultTimeout       = 30 * time.Second
	DefaultBaseBackoff   = time.Second
	DefaultReseedEvery   = 100
	DefaultGeneratorSeed = 0
)

type options struct {
	baseDir func() (string, error)
}

type option func(*options)

// GetDefaultConfigPath is the default path to the configuration directory.
func GetDefaultConfigPath(opts ...option) string {
	o := options{baseDir: os.UserConfigDir}
	for _, opt := range opts {
		opt(&o)
	}

	return filepath.Join(getBaseDir(o.baseDir), DefaultAppFolder)
}

// GetDefaultCachePath is the default path to the cache directory.
func GetDefaultCachePath(opts ...option) string {
	o := options{baseDir: os.UserCacheDir}
	for _, opt := range opts {
		opt(&o)
	}

	return filepath.Join(getBaseDir(o.baseDir), DefaultAppFolder)
}

// GetDefaultCacheFile is the default path to the schema cache file.
func GetDefaultCacheFile(opts ...option) string {
	return filepath.Join(GetDefaultCachePath(opts...), CacheFileName)
}

// getBaseDir is a helper function to handle the case where the baseDir function returns an error, and instead return an empty string.
func getBaseDir(baseDirFunc func() (string, error)) string {
	dir, err := baseDirFunc()
	if err != nil {
		return ""
	}
	return dir
}
