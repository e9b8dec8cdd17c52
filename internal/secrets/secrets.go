// Package secrets loads the geocoding API key from the environment or from a
// mounted secret file.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	EnvAPIKey     = "GEOCODING_API_KEY"
	EnvAPIKeyFile = "GEOCODING_API_KEY_FILE"
)

// ErrNotConfigured means neither source is set.
var ErrNotConfigured = errors.New("geocoding api key not configured")

// GeocodingAPIKey prefers the inline variable over the file. Surrounding
// whitespace, including the trailing newline most secret mounts add, is
// trimmed.
func GeocodingAPIKey() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		return v, nil
	}
	path := strings.TrimSpace(os.Getenv(EnvAPIKeyFile))
	if path == "" {
		return "", ErrNotConfigured
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", EnvAPIKeyFile, err)
	}
	key := strings.TrimSpace(string(b))
	if key == "" {
		return "", fmt.Errorf("%s %q is empty", EnvAPIKeyFile, path)
	}
	return key, nil
}
