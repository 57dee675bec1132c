package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the full application configuration, split into the small
// getter interfaces each component depends on.
type Config interface {
	EnvConfig
	ListenerConfig
	OAuthConfig
	SecurityConfig
	PlatformConfig
}

// Settings is the concrete configuration document.
// Values come from (highest priority first) environment variables, the YAML
// file, then the env-default tags. A .env file in the working directory is
// loaded into the environment first.
type Settings struct {
	AppName    string `yaml:"app_name" env:"APP_NAME" env-default:"Social Connect"`
	Env        string `yaml:"env" env:"ENV" env-default:"DEV"`
	LogLevel   string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	DataFolder string `yaml:"data_folder" env:"FOLDER" env-default:"./data"`

	Store     StoreSettings    `yaml:"store"`
	Listener  ListenerSettings `yaml:"listener"`
	OAuth     OAuthSettings    `yaml:"oauth"`
	Security  SecuritySettings `yaml:"security"`
	Platforms PlatformSettings `yaml:"platforms"`
}

type StoreSettings struct {
	Type string `yaml:"type" env:"STORE_TYPE" env-default:"sqlite"`
	Path string `yaml:"path" env:"STORE_PATH"`
}

var _ Config = (*Settings)(nil)

const defaultConfigFile = "config.yaml"

// Load reads the configuration.
// Path priority: explicit path, CONFIG_PATH, ./config.yaml, environment only.
func Load(path string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("[config Load] failed to load .env: %w", err)
	}

	var s Settings

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}

	if path != "" {
		// ReadConfig overlays the environment on top of the file
		if err := cleanenv.ReadConfig(path, &s); err != nil {
			return nil, fmt.Errorf("[config Load] failed to read %s: %w", path, err)
		}
		return &s, nil
	}

	if err := cleanenv.ReadEnv(&s); err != nil {
		return nil, fmt.Errorf("[config Load] failed to read environment: %w", err)
	}
	return &s, nil
}
