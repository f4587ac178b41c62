package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Environment variable names read by Load.
const (
	EnvClientID                       = "BOX_CLIENT_ID"
	EnvClientSecret                   = "BOX_CLIENT_SECRET"
	EnvSubjectType                    = "BOX_SUBJECT_TYPE"
	EnvSubjectID                      = "BOX_SUBJECT_ID"
	EnvPublicKeyID                    = "BOX_PUBLIC_KEY_ID"
	EnvPrivateKey                     = "BOX_PRIVATE_KEY"
	EnvPrivateKeyPassphrase           = "BOX_PRIVATE_KEY_PASSPHRASE"
	EnvJWTConfigFile                  = "BOX_JWT_CONFIG_FILE"
	EnvTokenCacheDir                  = "BOX_TOKEN_CACHE_DIR"
	EnvAuthToken                      = "BOX_MCP_SERVER_AUTH_TOKEN"
	EnvProtectedResourceMetadataFile  = "OAUTH_PROTECTED_RESOURCES_CONFIG_FILE"
	EnvAuthorizationServerMetadataURL = "BOX_AUTHORIZATION_SERVER_METADATA_URL"
	EnvLogLevel                       = "LOG_LEVEL"
)

const dotEnvFile = ".env"

// LookupFunc reports the value of an environment variable.
type LookupFunc func(key string) (string, bool)

// Load builds the configuration from, in increasing precedence: defaults,
// the optional YAML file at configFile, a .env file in the working
// directory and the process environment.
func Load(configFile string) (*Config, error) {
	if err := LoadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}
	return load(configFile, os.LookupEnv)
}

// LoadDotEnv exports the variables of a .env file into the process
// environment without overriding variables that are already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		zap.L().Debug("Loaded environment file", zap.String("path", path))
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func load(configFile string, lookup LookupFunc) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error loading config from %s: %w", configFile, err)
		}
		zap.L().Info("Loaded configuration", zap.String("path", configFile))
	}

	applyEnv(cfg, lookup)

	return cfg, nil
}

func applyEnv(cfg *Config, lookup LookupFunc) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set(&cfg.BoxAPI.ClientID, EnvClientID)
	set(&cfg.BoxAPI.ClientSecret, EnvClientSecret)
	set(&cfg.BoxAPI.SubjectType, EnvSubjectType)
	set(&cfg.BoxAPI.SubjectID, EnvSubjectID)
	set(&cfg.BoxAPI.PublicKeyID, EnvPublicKeyID)
	set(&cfg.BoxAPI.PrivateKey, EnvPrivateKey)
	set(&cfg.BoxAPI.PrivateKeyPassphrase, EnvPrivateKeyPassphrase)
	set(&cfg.BoxAPI.JWTConfigFile, EnvJWTConfigFile)
	set(&cfg.BoxAPI.TokenCacheDir, EnvTokenCacheDir)

	set(&cfg.McpAuth.AuthToken, EnvAuthToken)
	set(&cfg.McpAuth.ProtectedResourceMetadataFile, EnvProtectedResourceMetadataFile)
	set(&cfg.McpAuth.AuthorizationServerMetadataURL, EnvAuthorizationServerMetadataURL)

	set(&cfg.Logging.Level, EnvLogLevel)
}
