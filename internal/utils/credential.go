package utils

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// CredentialEnv names the environment variable holding the Carbone API key.
const CredentialEnv = "CARBONE_API_KEY"

// ErrMissingCredential signals that no Carbone API key was configured.
var ErrMissingCredential = errors.New("carbone api key is not configured")

// LoadDotEnv loads variables from .env files (default ".env") without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(paths ...string) {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		Warn("Failed to load .env file", "error", err)
	}
}

// ResolveCredential returns the bearer token for the rendering service.
// The environment wins over the config file.
func ResolveCredential(cfg CarboneConfig) (string, error) {
	if v := strings.TrimSpace(os.Getenv(CredentialEnv)); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(cfg.APIKey); v != "" {
		return v, nil
	}
	return "", ErrMissingCredential
}
