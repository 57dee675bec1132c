package config

import (
	"path/filepath"
	"strings"
)

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetDataFolder() string
	GetStoreType() string
	GetStorePath() string
}

func (s *Settings) GetAppName() string {
	return stringOr(s.AppName, "Social Connect")
}

func (s *Settings) GetEnv() string {
	return strings.ToUpper(stringOr(s.Env, "DEV"))
}

func (s *Settings) GetLogLevel() string {
	return stringOr(s.LogLevel, "info")
}

func (s *Settings) GetDataFolder() string {
	return stringOr(s.DataFolder, "./data")
}

// GetStoreType returns "sqlite" or "memory".
func (s *Settings) GetStoreType() string {
	return strings.ToLower(stringOr(s.Store.Type, "sqlite"))
}

// GetStorePath defaults to accounts.db inside the data folder.
func (s *Settings) GetStorePath() string {
	if s.Store.Path != "" {
		return s.Store.Path
	}
	return filepath.Join(s.GetDataFolder(), "accounts.db")
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
